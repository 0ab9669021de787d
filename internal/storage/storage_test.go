package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/framesight/framesight/internal/detection"
	"github.com/framesight/framesight/internal/pipeline"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		RunID:     "11111111-2222-3333-4444-555555555555",
		VideoPath: "/videos/test.mp4",
		ModelName: "mock",
		State:     pipeline.StateCompleted,
		Detections: []detection.Detection{
			{
				ClassLabel:  "vehicle",
				Confidence:  0.9,
				BoundingBox: detection.BoundingBox{X: 10, Y: 20, Width: 100, Height: 50},
				Timestamp:   0.5,
				FrameNumber: 12,
			},
			{
				ClassLabel:  "pedestrian",
				Confidence:  0.7,
				BoundingBox: detection.BoundingBox{X: 5, Y: 5, Width: 30, Height: 80},
				Timestamp:   1.0,
				FrameNumber: 24,
			},
		},
		FramesRead:      48,
		FramesSubmitted: 24,
		StartedAt:       time.Now().Add(-time.Minute),
		Duration:        45 * time.Second,
	}
}

func TestSaveAndGetRun(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	result := sampleResult()
	if err := db.SaveResult(ctx, result); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}

	rec, err := db.GetRun(ctx, result.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if rec.State != pipeline.StateCompleted {
		t.Errorf("Expected state completed, got %s", rec.State)
	}
	if rec.DetectionCount != 2 {
		t.Errorf("Expected 2 detections counted, got %d", rec.DetectionCount)
	}
	if rec.FramesSubmitted != 24 {
		t.Errorf("Expected 24 submitted frames, got %d", rec.FramesSubmitted)
	}
	if rec.DurationMs != 45000 {
		t.Errorf("Expected 45000ms duration, got %d", rec.DurationMs)
	}
}

func TestGetRunMissing(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetRun(context.Background(), "missing")
	if err != sql.ErrNoRows {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
}

func TestGetDetectionsOrdered(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	result := sampleResult()
	if err := db.SaveResult(ctx, result); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}

	dets, err := db.GetDetections(ctx, result.RunID)
	if err != nil {
		t.Fatalf("GetDetections failed: %v", err)
	}
	if len(dets) != 2 {
		t.Fatalf("Expected 2 detections, got %d", len(dets))
	}
	if dets[0].FrameNumber != 12 || dets[1].FrameNumber != 24 {
		t.Errorf("Detections not ordered by frame number: %d, %d", dets[0].FrameNumber, dets[1].FrameNumber)
	}
	if dets[0].BoundingBox.Width != 100 {
		t.Errorf("Bounding box not round-tripped: %+v", dets[0].BoundingBox)
	}
}

func TestListRuns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first := sampleResult()
	first.RunID = "run-1"
	first.StartedAt = time.Now().Add(-2 * time.Hour)
	second := sampleResult()
	second.RunID = "run-2"
	second.State = pipeline.StateDegraded
	second.DegradedReason = "run deadline exceeded"
	second.StartedAt = time.Now().Add(-time.Hour)

	for _, r := range []*pipeline.Result{first, second} {
		if err := db.SaveResult(ctx, r); err != nil {
			t.Fatalf("SaveResult failed: %v", err)
		}
	}

	runs, err := db.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-2" {
		t.Errorf("Expected newest run first, got %s", runs[0].ID)
	}
	if runs[0].DegradedReason != "run deadline exceeded" {
		t.Errorf("Degraded reason not persisted: %q", runs[0].DegradedReason)
	}
}

func TestListRunsLimit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		r := sampleResult()
		r.RunID = string(rune('a' + i))
		r.Detections = nil
		r.StartedAt = time.Now().Add(time.Duration(i) * time.Minute)
		if err := db.SaveResult(ctx, r); err != nil {
			t.Fatalf("SaveResult failed: %v", err)
		}
	}

	runs, err := db.ListRuns(ctx, 3)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("Expected 3 runs, got %d", len(runs))
	}
}
