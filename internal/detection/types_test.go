package detection

import (
	"math"
	"testing"
)

func TestBoundingBoxValid(t *testing.T) {
	valid := BoundingBox{X: 0, Y: 0, Width: 10, Height: 20}
	if !valid.Valid() {
		t.Error("Expected box to be valid")
	}

	invalid := []BoundingBox{
		{X: -1, Y: 0, Width: 10, Height: 10},
		{X: 0, Y: -5, Width: 10, Height: 10},
		{X: 0, Y: 0, Width: 0, Height: 10},
		{X: 0, Y: 0, Width: 10, Height: 0},
	}
	for i, b := range invalid {
		if b.Valid() {
			t.Errorf("Expected box %d to be invalid: %+v", i, b)
		}
	}
}

func TestBoundingBoxCenterArea(t *testing.T) {
	b := BoundingBox{X: 10, Y: 20, Width: 40, Height: 60}

	cx, cy := b.Center()
	if cx != 30 || cy != 50 {
		t.Errorf("Expected center (30, 50), got (%v, %v)", cx, cy)
	}

	if b.Area() != 2400 {
		t.Errorf("Expected area 2400, got %v", b.Area())
	}
}

func TestBoundingBoxAspectRatio(t *testing.T) {
	b := BoundingBox{Width: 30, Height: 60}
	if b.AspectRatio() != 0.5 {
		t.Errorf("Expected aspect ratio 0.5, got %v", b.AspectRatio())
	}

	degenerate := BoundingBox{Width: 30, Height: 0}
	if degenerate.AspectRatio() != 0 {
		t.Errorf("Expected aspect ratio 0 for degenerate box, got %v", degenerate.AspectRatio())
	}
}

func TestBoundingBoxIoU(t *testing.T) {
	a := BoundingBox{X: 0, Y: 0, Width: 10, Height: 10}

	// Identical boxes
	if iou := a.IoU(a); math.Abs(iou-1.0) > 1e-9 {
		t.Errorf("Expected IoU 1.0 for identical boxes, got %v", iou)
	}

	// Disjoint boxes
	far := BoundingBox{X: 100, Y: 100, Width: 10, Height: 10}
	if iou := a.IoU(far); iou != 0 {
		t.Errorf("Expected IoU 0 for disjoint boxes, got %v", iou)
	}

	// Half overlap: intersection 50, union 150
	half := BoundingBox{X: 5, Y: 0, Width: 10, Height: 10}
	if iou := a.IoU(half); math.Abs(iou-50.0/150.0) > 1e-9 {
		t.Errorf("Expected IoU %v, got %v", 50.0/150.0, iou)
	}

	// Touching edges only
	touch := BoundingBox{X: 10, Y: 0, Width: 10, Height: 10}
	if iou := a.IoU(touch); iou != 0 {
		t.Errorf("Expected IoU 0 for touching boxes, got %v", iou)
	}
}

func TestBoundingBoxIoUSymmetric(t *testing.T) {
	a := BoundingBox{X: 2, Y: 3, Width: 20, Height: 15}
	b := BoundingBox{X: 10, Y: 5, Width: 18, Height: 25}

	if math.Abs(a.IoU(b)-b.IoU(a)) > 1e-12 {
		t.Errorf("IoU should be symmetric: %v vs %v", a.IoU(b), b.IoU(a))
	}
}
