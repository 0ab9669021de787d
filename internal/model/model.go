// Package model defines the detection model contract and the registry
// that owns model lifecycle for the pipeline.
package model

import (
	"github.com/framesight/framesight/internal/detection"
	"github.com/framesight/framesight/internal/video"
)

// RawDetection is one unfiltered model output for a frame. Confidence
// thresholds, enhancement and duplicate suppression are applied by the
// pipeline, not the model.
type RawDetection struct {
	ClassLabel string
	Confidence float64
	Box        detection.BoundingBox
}

// Model is the capability every registered detection backend provides.
// Implementations are not assumed to be cancellable internally; the
// pipeline enforces inference deadlines at the call boundary.
type Model interface {
	// Name returns the registered model name.
	Name() string

	// Predict runs inference over one frame and returns raw detections.
	Predict(frame *video.Frame) ([]RawDetection, error)
}
