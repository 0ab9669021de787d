package model

import (
	"image"
	"image/color"
	"testing"

	"github.com/framesight/framesight/internal/video"
)

func frameWithBrightBand(w, h, bandTop, bandBottom int) *video.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if y >= bandTop && y < bandBottom {
				img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
			} else {
				img.Set(x, y, color.RGBA{A: 255})
			}
		}
	}
	return &video.Frame{Number: 0, Image: img}
}

func TestHeuristicModelDetectsBrightRegion(t *testing.T) {
	m := NewHeuristicModel()
	dets, err := m.Predict(frameWithBrightBand(320, 320, 100, 160))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(dets) == 0 {
		t.Fatal("Expected detections for bright band")
	}
	for _, d := range dets {
		if d.ClassLabel != "bright_region" {
			t.Errorf("Expected class bright_region, got %s", d.ClassLabel)
		}
		if d.Confidence <= 0 || d.Confidence >= 1 {
			t.Errorf("Confidence out of range: %v", d.Confidence)
		}
		if !d.Box.Valid() {
			t.Errorf("Invalid box: %+v", d.Box)
		}
	}
}

func TestHeuristicModelDarkFrame(t *testing.T) {
	m := NewHeuristicModel()
	img := image.NewRGBA(image.Rect(0, 0, 320, 320))
	dets, err := m.Predict(&video.Frame{Number: 0, Image: img})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(dets) != 0 {
		t.Errorf("Expected no detections for dark frame, got %d", len(dets))
	}
}

func TestHeuristicModelTinyFrame(t *testing.T) {
	m := NewHeuristicModel()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	dets, err := m.Predict(&video.Frame{Number: 0, Image: img})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if dets != nil {
		t.Errorf("Expected nil detections for tiny frame, got %v", dets)
	}
}

func TestMockModelScript(t *testing.T) {
	m := NewMockModel("mock")
	m.Script[2] = []RawDetection{{ClassLabel: "vehicle", Confidence: 0.9}}

	dets, err := m.Predict(&video.Frame{Number: 2})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(dets) != 1 || dets[0].ClassLabel != "vehicle" {
		t.Errorf("Unexpected scripted output: %+v", dets)
	}

	dets, err = m.Predict(&video.Frame{Number: 3})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(dets) != 0 {
		t.Errorf("Expected no detections for unscripted frame, got %d", len(dets))
	}
}
