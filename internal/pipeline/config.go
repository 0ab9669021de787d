package pipeline

import "time"

// Defaults are the process-wide pipeline settings. They are merged
// under every per-run config and never mutated by a run.
type Defaults struct {
	// FrameTimeout is the per-frame inference deadline. A frame whose
	// prediction exceeds it yields zero detections; the run continues.
	FrameTimeout time.Duration
	// RunTimeout is the run-wide processing deadline. Exceeding it
	// truncates the run to a degraded partial result.
	RunTimeout time.Duration
	// FrameSkip is the default sampling stride: only frames whose
	// index is a multiple of FrameSkip+1 are submitted to the model.
	FrameSkip int
	// NMSThreshold is the IoU above which same-class detections in one
	// frame are considered duplicates.
	NMSThreshold float64
	// DisableFallback makes mid-run errors fatal instead of degrading
	// to a partial result.
	DisableFallback bool
}

// DefaultSettings returns the stock pipeline tuning.
func DefaultSettings() Defaults {
	return Defaults{
		FrameTimeout: 15 * time.Second,
		RunTimeout:   300 * time.Second,
		FrameSkip:    0,
		NMSThreshold: 0.45,
	}
}

// RunConfig carries per-call overrides. Nil fields fall back to the
// process-wide defaults; a run never mutates the defaults.
type RunConfig struct {
	// ConfidenceThreshold overrides every per-class minimum uniformly.
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	// NMSThreshold overrides the duplicate-suppression IoU threshold.
	NMSThreshold *float64 `json:"nms_threshold,omitempty"`
	// FrameSkip overrides the sampling stride (>= 0).
	FrameSkip *int `json:"frame_skip,omitempty"`
	// MaxFrames bounds the number of frames submitted to the model;
	// skipped frames do not count. 0 means unbounded.
	MaxFrames *int `json:"max_frames,omitempty"`
	// ModelName selects which registered model to bind for the run.
	ModelName string `json:"model_name,omitempty"`
}

// effectiveConfig is a fully resolved run configuration.
type effectiveConfig struct {
	confidenceThreshold *float64
	nmsThreshold        float64
	frameSkip           int
	maxFrames           int
	modelName           string
	frameTimeout        time.Duration
	runTimeout          time.Duration
	disableFallback     bool
}

func mergeConfig(defaults Defaults, cfg *RunConfig) effectiveConfig {
	eff := effectiveConfig{
		nmsThreshold:    defaults.NMSThreshold,
		frameSkip:       defaults.FrameSkip,
		frameTimeout:    defaults.FrameTimeout,
		runTimeout:      defaults.RunTimeout,
		disableFallback: defaults.DisableFallback,
	}
	if cfg == nil {
		return eff
	}

	if cfg.ConfidenceThreshold != nil {
		v := *cfg.ConfidenceThreshold
		eff.confidenceThreshold = &v
	}
	if cfg.NMSThreshold != nil {
		eff.nmsThreshold = *cfg.NMSThreshold
	}
	if cfg.FrameSkip != nil && *cfg.FrameSkip >= 0 {
		eff.frameSkip = *cfg.FrameSkip
	}
	if cfg.MaxFrames != nil && *cfg.MaxFrames > 0 {
		eff.maxFrames = *cfg.MaxFrames
	}
	eff.modelName = cfg.ModelName
	return eff
}
