// Package detection provides the detection data model, per-class
// confidence policies, enhancement and duplicate suppression for the
// video processing pipeline.
package detection

// Common class labels produced by the bundled models. Models may emit
// arbitrary labels; these constants only name the ones with dedicated
// default policies.
const (
	ClassPedestrian = "pedestrian"
	ClassVehicle    = "vehicle"
	ClassAnimal     = "animal"
	ClassBicycle    = "bicycle"
)

// BoundingBox represents a detection bounding box in pixel coordinates.
// Immutable once constructed.
type BoundingBox struct {
	X      float64 `json:"x"`      // Top-left X in pixels
	Y      float64 `json:"y"`      // Top-left Y in pixels
	Width  float64 `json:"width"`  // Width in pixels, > 0
	Height float64 `json:"height"` // Height in pixels, > 0
}

// Valid reports whether the box has a non-negative origin and positive size.
func (b BoundingBox) Valid() bool {
	return b.X >= 0 && b.Y >= 0 && b.Width > 0 && b.Height > 0
}

// Center returns the center point of the bounding box.
func (b BoundingBox) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Area returns the area of the bounding box.
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// AspectRatio returns width/height, or 0 for a degenerate box.
func (b BoundingBox) AspectRatio() float64 {
	if b.Height <= 0 {
		return 0
	}
	return b.Width / b.Height
}

// IoU calculates Intersection over Union with another box.
func (b BoundingBox) IoU(other BoundingBox) float64 {
	x1 := max(b.X, other.X)
	y1 := max(b.Y, other.Y)
	x2 := min(b.X+b.Width, other.X+other.Width)
	y2 := min(b.Y+b.Height, other.Y+other.Height)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := b.Area() + other.Area() - intersection

	if union == 0 {
		return 0
	}

	return intersection / union
}

// Detection represents a single detection result: one model-asserted
// object instance in one frame. Never mutated after creation; ownership
// transfers to the caller of ProcessVideo.
type Detection struct {
	ClassLabel  string      `json:"class_label"`
	Confidence  float64     `json:"confidence"` // [0,1]
	BoundingBox BoundingBox `json:"bounding_box"`
	Timestamp   float64     `json:"timestamp"`    // seconds from start of video
	FrameNumber int         `json:"frame_number"` // >= 0, video frame index
}
