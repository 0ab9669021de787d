// Package pipeline orchestrates video object detection: frame
// extraction under a sampling policy, model inference under deadlines,
// per-class filtering and enhancement, duplicate suppression and
// screenshot capture.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/framesight/framesight/internal/detection"
	"github.com/framesight/framesight/internal/model"
	"github.com/framesight/framesight/internal/screenshot"
	"github.com/framesight/framesight/internal/video"
)

var (
	// ErrNotInitialized is returned when ProcessVideo is called before
	// Initialize.
	ErrNotInitialized = errors.New("pipeline not initialized")
	// ErrVideoNotFound is returned when the input path does not exist.
	// Checked before any frame extraction, so malformed input never
	// reaches a model.
	ErrVideoNotFound = errors.New("video file not found")
)

// Pipeline runs object detection over video files. A single Pipeline
// serves concurrent ProcessVideo calls: every run binds its own model
// reference and owns its accumulator, so runs never share mutable
// state.
type Pipeline struct {
	registry *model.Registry
	source   video.Source
	capture  *screenshot.Capture // nil disables screenshot capture

	mu          sync.RWMutex
	initialized bool
	policies    detection.PolicyTable
	defaults    Defaults

	logger *slog.Logger
}

// New creates a pipeline. capture may be nil to disable screenshots.
func New(registry *model.Registry, source video.Source, capture *screenshot.Capture) *Pipeline {
	return &Pipeline{
		registry: registry,
		source:   source,
		capture:  capture,
		logger:   slog.Default().With("component", "pipeline"),
	}
}

// Initialize resolves the policy table and process defaults and moves
// the pipeline to the ready state. Must be called once before
// ProcessVideo.
func (p *Pipeline) Initialize(policies detection.PolicyTable, defaults Defaults) error {
	if p.registry == nil {
		return fmt.Errorf("%w: no model registry", model.ErrModelUnavailable)
	}
	if p.source == nil {
		return errors.New("pipeline requires a frame source")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.policies = policies
	p.defaults = defaults
	p.initialized = true

	p.logger.Info("Pipeline initialized",
		"classes", len(policies.Classes),
		"frame_timeout", defaults.FrameTimeout,
		"run_timeout", defaults.RunTimeout)
	return nil
}

// OnConfigChange swaps the policy table and defaults. Runs already in
// flight keep the snapshot they captured at start.
func (p *Pipeline) OnConfigChange(policies detection.PolicyTable, defaults Defaults) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return
	}
	p.policies = policies
	p.defaults = defaults
	p.logger.Info("Pipeline configuration updated")
}

// snapshot captures the run-local view of shared settings.
func (p *Pipeline) snapshot() (detection.PolicyTable, Defaults, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.initialized {
		return detection.PolicyTable{}, Defaults{}, ErrNotInitialized
	}
	return p.policies, p.defaults, nil
}

// ProcessVideo runs detection over the video at path. cfg may be nil.
//
// Errors before any frame is processed (missing file, unreadable
// container, unresolvable model) are fatal and returned. After partial
// progress the run degrades to a partial result instead, unless
// fallback is disabled. Cancel ctx to stop a long run between frames.
func (p *Pipeline) ProcessVideo(ctx context.Context, path string, cfg *RunConfig) (*Result, error) {
	policies, defaults, err := p.snapshot()
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(path); statErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrVideoNotFound, path)
	}

	eff := mergeConfig(defaults, cfg)
	if eff.confidenceThreshold != nil {
		policies = policies.WithUniformMinConfidence(*eff.confidenceThreshold)
	}

	// Bind the model once for the whole run. A concurrent SetActive
	// affects only runs started after it.
	m, err := p.registry.Resolve(eff.modelName)
	if err != nil {
		return nil, err
	}

	stream, err := p.source.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	result := &Result{
		RunID:      uuid.New().String(),
		VideoPath:  path,
		ModelName:  m.Name(),
		State:      StateCompleted,
		Detections: []detection.Detection{},
		StartedAt:  time.Now(),
	}

	logger := p.logger.With("run_id", result.RunID, "video", path, "model", m.Name())
	logger.Info("Run started", "frame_skip", eff.frameSkip, "max_frames", eff.maxFrames)

	runErr := p.run(ctx, logger, stream, m, policies, eff, result)
	result.Duration = time.Since(result.StartedAt)

	if runErr != nil {
		result.State = StateFailed
		logger.Error("Run failed", "error", runErr, "frames_read", result.FramesRead)
		return result, runErr
	}

	logger.Info("Run finished",
		"state", result.State,
		"detections", len(result.Detections),
		"frames_read", result.FramesRead,
		"frames_submitted", result.FramesSubmitted,
		"frames_timed_out", result.FramesTimedOut,
		"duration", result.Duration)
	return result, nil
}

// run drives the frame loop. A non-nil return means the run failed
// outright; degraded outcomes are recorded on result and return nil.
func (p *Pipeline) run(
	ctx context.Context,
	logger *slog.Logger,
	stream video.Stream,
	m model.Model,
	policies detection.PolicyTable,
	eff effectiveConfig,
	result *Result,
) error {
	deadline := time.Now().Add(eff.runTimeout)
	stride := eff.frameSkip + 1

	for {
		// Cooperative cancellation and the run-wide deadline are
		// checked between frames only; the model call itself is
		// bounded by the per-frame timeout.
		if ctx.Err() != nil {
			p.degrade(result, "cancelled")
			return nil
		}
		if time.Now().After(deadline) {
			p.degrade(result, "run deadline exceeded")
			logger.Warn("Run deadline exceeded", "deadline", eff.runTimeout)
			return nil
		}

		frame, err := stream.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if result.FramesRead == 0 {
				// Nothing processed yet: fatal.
				return err
			}
			if eff.disableFallback {
				return err
			}
			p.degrade(result, fmt.Sprintf("frame extraction error: %v", err))
			logger.Warn("Frame extraction error, returning partial results", "error", err)
			return nil
		}

		result.FramesRead++

		if frame.Number%stride != 0 {
			continue
		}
		if eff.maxFrames > 0 && result.FramesSubmitted >= eff.maxFrames {
			return nil
		}

		result.FramesSubmitted++
		raw, timedOut, err := predictWithTimeout(m, frame, eff.frameTimeout)
		if timedOut {
			result.FramesTimedOut++
			logger.Warn("Inference deadline exceeded, skipping frame",
				"frame", frame.Number, "timeout", eff.frameTimeout)
			continue
		}
		if err != nil {
			if eff.disableFallback {
				return fmt.Errorf("inference failed on frame %d: %w", frame.Number, err)
			}
			p.degrade(result, fmt.Sprintf("inference error on frame %d: %v", frame.Number, err))
			logger.Warn("Inference error, returning partial results", "frame", frame.Number, "error", err)
			return nil
		}

		retained := p.filterFrame(raw, frame, policies, eff.nmsThreshold)
		result.Detections = append(result.Detections, retained...)

		if len(retained) > 0 && p.capture != nil {
			if _, err := p.capture.Save(frame.Number, frame.Image); err != nil {
				logger.Warn("Screenshot capture failed", "frame", frame.Number, "error", err)
			} else {
				result.Screenshots++
			}
		}
	}
}

// filterFrame applies enhancement, the per-class confidence threshold
// and duplicate suppression to one frame's raw model output.
func (p *Pipeline) filterFrame(
	raw []model.RawDetection,
	frame *video.Frame,
	policies detection.PolicyTable,
	nmsThreshold float64,
) []detection.Detection {
	if len(raw) == 0 {
		return nil
	}

	candidates := make([]detection.Detection, 0, len(raw))
	for _, r := range raw {
		if !r.Box.Valid() || r.Confidence < 0 || r.Confidence > 1 {
			continue
		}

		det := detection.Detection{
			ClassLabel:  r.ClassLabel,
			Confidence:  r.Confidence,
			BoundingBox: r.Box,
			Timestamp:   frame.Timestamp,
			FrameNumber: frame.Number,
		}

		policy := policies.Lookup(det.ClassLabel)
		det = detection.Enhance(det, policy)

		// Threshold after enhancement: the single accept/reject
		// boundary.
		if det.Confidence < policy.MinConfidence {
			continue
		}
		candidates = append(candidates, det)
	}

	if len(candidates) == 0 {
		return nil
	}
	return detection.SuppressDuplicates(candidates, nmsThreshold)
}

func (p *Pipeline) degrade(result *Result, reason string) {
	result.State = StateDegraded
	if result.DegradedReason == "" {
		result.DegradedReason = reason
	}
}

// predictWithTimeout invokes the model on its own goroutine and waits
// at most timeout. Models are not assumed cancellable; on timeout the
// prediction goroutine is abandoned and its eventual output discarded.
func predictWithTimeout(m model.Model, frame *video.Frame, timeout time.Duration) (raw []model.RawDetection, timedOut bool, err error) {
	type outcome struct {
		raw []model.RawDetection
		err error
	}

	done := make(chan outcome, 1)
	go func() {
		r, e := m.Predict(frame)
		done <- outcome{raw: r, err: e}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.raw, false, o.err
	case <-timer.C:
		return nil, true, nil
	}
}
