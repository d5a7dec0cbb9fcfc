// Package domain models tide-gauge water-level data and the frame cache
// built from it.
//
// # Data Source
//
// Series come from the NOAA CO-OPS data API
// (https://api.tidesandcurrents.noaa.gov/api/prod/datagetter). Two products are
// fetched per station:
//
//	one_minute_water_level  observed water level, response key "data"
//	predictions             harmonic tide prediction, response key "predictions"
//
// Both are requested in metric units relative to MLLW with GMT timestamps.
// Samples arrive as string pairs, e.g. {"t":"2025-07-29 23:25","v":"0.412"}.
// An empty "v" means the gauge did not report for that minute.
//
// # Wave Delta
//
// The anomaly ("wave delta") at a timestamp is observed minus predicted. It is
// only defined where both products report at exactly the same timestamp. The
// join does not tolerate clock drift between products: a prediction stamped
// 23:25:00 never pairs with an observation stamped 23:25:06. CO-OPS samples
// both products on the same one-minute cadence, so this drops nothing in
// practice; see [Align].
//
// # Frames
//
// Anomalies from every station are placed on one canonical timeline
// ([BuildTimeline]), gap-filled ([Resample]), ordered by great-circle distance
// from the reference point ([SelectStations]) and cut into one frame per
// timeline position ([BuildFrameCache]). Frame i holds one amplitude per
// active station in a fixed left-to-right order; consumers rely on that
// position, not on per-sample keys.
package domain
