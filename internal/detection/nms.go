package detection

import "sort"

// SuppressDuplicates removes overlapping detections of the same class
// within one frame. Candidates are ordered by descending confidence and
// a candidate is discarded when it overlaps an already retained
// detection of its class beyond iouThreshold, so the higher-confidence
// duplicate always wins. Suppression is per frame and per class only;
// detections of different classes never suppress each other.
//
// The input slice is not modified. Retained detections are returned in
// descending confidence order.
func SuppressDuplicates(dets []Detection, iouThreshold float64) []Detection {
	if len(dets) <= 1 {
		return append([]Detection(nil), dets...)
	}

	ordered := append([]Detection(nil), dets...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Confidence > ordered[j].Confidence
	})

	retained := make([]Detection, 0, len(ordered))
	for _, cand := range ordered {
		suppressed := false
		for _, kept := range retained {
			if kept.ClassLabel != cand.ClassLabel {
				continue
			}
			if kept.BoundingBox.IoU(cand.BoundingBox) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			retained = append(retained, cand)
		}
	}

	return retained
}
