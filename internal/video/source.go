// Package video provides frame extraction from video files and frame
// preprocessing for model input.
package video

import (
	"context"
	"errors"
	"image"
)

// ErrVideoSource indicates the video path does not exist or the
// container could not be opened. Always fatal: it is surfaced before any
// frame reaches a model.
var ErrVideoSource = errors.New("video source unavailable")

// Frame is one decoded video frame.
type Frame struct {
	Number    int         // frame index in the source video, starting at 0
	Timestamp float64     // seconds from start of video
	Image     image.Image // decoded pixels
}

// Stream is a lazy, finite, forward-only frame sequence. One pass per
// invocation; a Stream is not restartable. Next returns io.EOF when the
// source is exhausted.
type Stream interface {
	Next() (*Frame, error)
	Close() error
}

// Source opens video files into frame streams.
type Source interface {
	// Open validates the path and starts decoding. Fails with an error
	// wrapping ErrVideoSource if the path does not exist or the
	// container cannot be opened.
	Open(ctx context.Context, path string) (Stream, error)
}
