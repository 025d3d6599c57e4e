package recording

import (
	"fmt"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
)

// SnapshotWriter saves still images.
type SnapshotWriter struct{}

// Save writes frame to path, creating its directory.
func (SnapshotWriter) Save(path string, frame gocv.Mat) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if !gocv.IMWrite(path, frame) {
		return fmt.Errorf("write snapshot %s failed", path)
	}
	return nil
}
