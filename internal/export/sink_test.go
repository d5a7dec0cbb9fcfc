package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink_WritesAndReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "frame_data_client.json")
	sink := NewFileSink(path)
	assert.Equal(t, path, sink.Location())

	require.NoError(t, sink.Write(context.Background(), []byte(`{"v":1}`)))
	require.NoError(t, sink.Write(context.Background(), []byte(`{"v":2}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestFileSink_FailureLeavesOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frames.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	// A directory at the destination makes the rename fail after the temp
	// file has been written.
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "child"), 0o755))
	err := NewFileSink(blocked).Write(context.Background(), []byte("new"))
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFileSink_CancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.json")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, NewFileSink(path).Write(ctx, []byte("x")), context.Canceled)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
