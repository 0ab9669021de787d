package pipeline

import (
	"time"

	"github.com/framesight/framesight/internal/detection"
)

// RunState is the terminal state of one ProcessVideo call.
type RunState string

const (
	// StateCompleted means the frame sequence was exhausted within the
	// run deadline with no unrecoverable error.
	StateCompleted RunState = "completed"
	// StateDegraded means the run was truncated (deadline,
	// cancellation or mid-run error) and carries partial results.
	StateDegraded RunState = "degraded"
	// StateFailed means the run produced no usable result.
	StateFailed RunState = "failed"
)

// Result is the aggregated outcome of one ProcessVideo call. A result
// with zero detections and StateCompleted is a valid non-error outcome,
// distinct from any failure.
type Result struct {
	RunID     string   `json:"run_id"`
	VideoPath string   `json:"video_path"`
	ModelName string   `json:"model_name"`
	State     RunState `json:"state"`

	// Detections are ordered by non-decreasing frame number.
	Detections []detection.Detection `json:"detections"`

	FramesRead      int `json:"frames_read"`      // frames decoded from the source
	FramesSubmitted int `json:"frames_submitted"` // frames sent to the model
	FramesTimedOut  int `json:"frames_timed_out"` // per-frame deadline hits
	Screenshots     int `json:"screenshots"`      // frames persisted

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	// DegradedReason explains a StateDegraded outcome.
	DegradedReason string `json:"degraded_reason,omitempty"`
}
