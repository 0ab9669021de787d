package model

import (
	"time"

	"github.com/framesight/framesight/internal/video"
)

// MockModel is a deterministic scripted model used in tests and, when
// explicitly enabled by configuration, registered as a selectable model
// for smoke-testing deployments. It never substitutes for a real model
// implicitly.
type MockModel struct {
	ModelName string
	// Script maps frame numbers to the detections to emit. Frames
	// without an entry yield no detections.
	Script map[int][]RawDetection
	// Delay is slept on every Predict call, for exercising timeout
	// handling.
	Delay time.Duration
}

// NewMockModel creates an empty mock model.
func NewMockModel(name string) *MockModel {
	return &MockModel{ModelName: name, Script: make(map[int][]RawDetection)}
}

// Name returns the model name.
func (m *MockModel) Name() string { return m.ModelName }

// Predict returns the scripted detections for the frame number.
func (m *MockModel) Predict(frame *video.Frame) ([]RawDetection, error) {
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	dets := m.Script[frame.Number]
	out := make([]RawDetection, len(dets))
	copy(out, dets)
	return out, nil
}
