package detection

// Enhance applies the class policy's confidence adjustment to a single
// detection and returns the adjusted copy. The input is not modified.
//
// The adjustment is a floor raise: a detection whose box matches the
// class boost rule has its confidence raised to at least the rule's
// ConfidenceFloor, clamped to [0,1]. Raising to a floor makes the rule
// idempotent and never decreases confidence. Detections below the class
// minimum are returned unchanged so enhancement can never promote a
// rejected detection into acceptance.
func Enhance(det Detection, policy ClassPolicy) Detection {
	if !policy.EnhancementEnabled || policy.Boost == nil {
		return det
	}
	if det.Confidence < policy.MinConfidence {
		return det
	}
	if !policy.Boost.Matches(det.BoundingBox) {
		return det
	}

	floor := policy.Boost.ConfidenceFloor
	if floor > 1 {
		floor = 1
	}
	if det.Confidence >= floor {
		return det
	}

	out := det
	out.Confidence = floor
	return out
}
