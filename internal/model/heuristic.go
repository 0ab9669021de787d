package model

import (
	"github.com/framesight/framesight/internal/detection"
	"github.com/framesight/framesight/internal/video"
)

// HeuristicModel is a dependency-free brightness-blob detector. Frames
// are normalized through a video.Processor, tiled into a coarse grid,
// cells whose mean luminance exceeds a threshold are marked, and runs of
// marked cells merge into candidate boxes labelled "bright_region". It
// exists so the service runs end to end without an external inference
// backend and as a reference Model implementation.
type HeuristicModel struct {
	// LuminanceThreshold in [0,255]; cells brighter than this are
	// candidates. Defaults to 200.
	LuminanceThreshold float64
	// GridSize is the number of cells per axis. Defaults to 16.
	GridSize int

	proc *video.Processor
}

// NewHeuristicModel creates a heuristic model with default tuning and a
// 640x640 input processor.
func NewHeuristicModel() *HeuristicModel {
	return NewHeuristicModelWithProcessor(video.NewProcessor(640, 640))
}

// NewHeuristicModelWithProcessor creates a heuristic model reading
// frames through the given processor.
func NewHeuristicModelWithProcessor(proc *video.Processor) *HeuristicModel {
	return &HeuristicModel{LuminanceThreshold: 200, GridSize: 16, proc: proc}
}

// Name returns the model name.
func (m *HeuristicModel) Name() string { return "heuristic-v1" }

// Predict scans the frame for bright regions. Boxes are reported in
// original frame coordinates.
func (m *HeuristicModel) Predict(frame *video.Frame) ([]RawDetection, error) {
	grid := m.GridSize
	if grid <= 0 {
		grid = 16
	}
	threshold := m.LuminanceThreshold
	if threshold <= 0 {
		threshold = 200
	}

	bounds := frame.Image.Bounds()
	frameW, frameH := bounds.Dx(), bounds.Dy()
	if frameW < grid || frameH < grid {
		return nil, nil
	}

	in := m.proc.Preprocess(frame.Image)
	cellW, cellH := in.Width/grid, in.Height/grid
	if cellW == 0 || cellH == 0 {
		return nil, nil
	}

	bright := make([]bool, grid*grid)
	for cy := 0; cy < grid; cy++ {
		for cx := 0; cx < grid; cx++ {
			if cellLuminance(in, cx*cellW, cy*cellH, cellW, cellH) > threshold {
				bright[cy*grid+cx] = true
			}
		}
	}

	// Merge horizontal runs of bright cells into boxes. Confidence
	// scales with run length so longer regions rank higher.
	scaleX := float64(frameW) / float64(in.Width)
	scaleY := float64(frameH) / float64(in.Height)
	var out []RawDetection
	for cy := 0; cy < grid; cy++ {
		runStart := -1
		for cx := 0; cx <= grid; cx++ {
			isBright := cx < grid && bright[cy*grid+cx]
			if isBright && runStart < 0 {
				runStart = cx
			}
			if !isBright && runStart >= 0 {
				runLen := cx - runStart
				conf := 0.5 + 0.5*float64(runLen)/float64(grid)
				if conf > 0.99 {
					conf = 0.99
				}
				out = append(out, RawDetection{
					ClassLabel: "bright_region",
					Confidence: conf,
					Box: detection.BoundingBox{
						X:      float64(runStart*cellW) * scaleX,
						Y:      float64(cy*cellH) * scaleY,
						Width:  float64(runLen*cellW) * scaleX,
						Height: float64(cellH) * scaleY,
					},
				})
				runStart = -1
			}
		}
	}

	return out, nil
}

// cellLuminance averages a 4x4 sample lattice over one grid cell of the
// normalized input tensor, scaled back to [0,255].
func cellLuminance(in *video.ModelInput, x, y, w, h int) float64 {
	const samples = 4
	var sum float64
	for sy := 0; sy < samples; sy++ {
		for sx := 0; sx < samples; sx++ {
			px := x + sx*w/samples
			py := y + sy*h/samples
			i := (py*in.Width + px) * 3
			r := float64(in.Pixels[i])
			g := float64(in.Pixels[i+1])
			b := float64(in.Pixels[i+2])
			sum += (0.299*r + 0.587*g + 0.114*b) * 255
		}
	}
	return sum / (samples * samples)
}
