package video

import (
	"image"
)

// ModelInput is a preprocessed frame in the shape models consume:
// interleaved RGB float32 values normalized to [0,1], row-major.
type ModelInput struct {
	Width  int
	Height int
	Pixels []float32 // len = Width * Height * 3
}

// Processor resizes and normalizes raw frames into model input. Pure
// and deterministic: identical frames yield identical output.
type Processor struct {
	targetWidth  int
	targetHeight int
}

// NewProcessor creates a processor producing inputs of the given size.
func NewProcessor(width, height int) *Processor {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 640
	}
	return &Processor{targetWidth: width, targetHeight: height}
}

// Preprocess converts a raw frame image into the model input tensor.
// Uses nearest-neighbour sampling; no I/O.
func (p *Processor) Preprocess(img image.Image) *ModelInput {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	out := &ModelInput{
		Width:  p.targetWidth,
		Height: p.targetHeight,
		Pixels: make([]float32, p.targetWidth*p.targetHeight*3),
	}
	if srcW == 0 || srcH == 0 {
		return out
	}

	idx := 0
	for y := 0; y < p.targetHeight; y++ {
		srcY := bounds.Min.Y + y*srcH/p.targetHeight
		for x := 0; x < p.targetWidth; x++ {
			srcX := bounds.Min.X + x*srcW/p.targetWidth
			r, g, b, _ := img.At(srcX, srcY).RGBA()
			out.Pixels[idx] = float32(r>>8) / 255.0
			out.Pixels[idx+1] = float32(g>>8) / 255.0
			out.Pixels[idx+2] = float32(b>>8) / 255.0
			idx += 3
		}
	}

	return out
}
