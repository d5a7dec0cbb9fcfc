package export

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// ArtifactChecker reports readiness once a valid artifact exists at path. The
// last result is reused until the file's size or modification time changes.
type ArtifactChecker struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	size    int64
	err     error
}

// NewArtifactChecker creates a checker for path.
func NewArtifactChecker(path string) *ArtifactChecker {
	return &ArtifactChecker{path: path}
}

// CheckReadiness returns nil if the artifact exists and validates.
func (c *ArtifactChecker) CheckReadiness(_ context.Context) error {
	info, err := os.Stat(c.path)
	if err != nil {
		return fmt.Errorf("artifact unavailable: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if info.ModTime().Equal(c.modTime) && info.Size() == c.size {
		return c.err
	}

	data, err := os.ReadFile(c.path)
	if err == nil {
		var a Artifact
		if a, err = Decode(data); err == nil {
			err = Validate(a)
		}
	}
	c.modTime, c.size, c.err = info.ModTime(), info.Size(), err
	return err
}
