// Package screenshot persists selected video frames to storage for
// thumbnail display.
package screenshot

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrStorageWrite indicates a frame could not be persisted. The
// pipeline treats it as non-fatal.
var ErrStorageWrite = errors.New("screenshot write failed")

// Capture writes frames as JPEGs under a configured directory,
// addressed by frame index.
type Capture struct {
	dir     string
	quality int
	logger  *slog.Logger
}

// NewCapture creates a capture writing into dir. quality <= 0 uses the
// default JPEG quality of 85.
func NewCapture(dir string, quality int) *Capture {
	if quality <= 0 {
		quality = 85
	}
	return &Capture{
		dir:     dir,
		quality: quality,
		logger:  slog.Default().With("component", "screenshot"),
	}
}

// Dir returns the capture directory.
func (c *Capture) Dir() string { return c.dir }

// Save persists one frame and returns the stored path. The file name is
// derived from the frame index so a frame saved twice overwrites itself
// rather than accumulating copies.
func (c *Capture) Save(frameNumber int, img image.Image) (string, error) {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("%w: creating %s: %v", ErrStorageWrite, c.dir, err)
	}

	path := filepath.Join(c.dir, fmt.Sprintf("frame_%06d.jpg", frameNumber))

	// Write to a temp file first so readers never observe a partial
	// JPEG.
	tmp, err := os.CreateTemp(c.dir, ".frame-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	tmpName := tmp.Name()

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: c.quality}); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: encoding frame %d: %v", ErrStorageWrite, frameNumber, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	c.logger.Debug("Saved screenshot", "frame", frameNumber, "path", path)
	return path, nil
}
