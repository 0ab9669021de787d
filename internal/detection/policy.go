package detection

// BoostRule describes the declarative confidence enhancement for one
// class. A detection whose box falls inside the aspect-ratio and area
// bands has its confidence raised to at least ConfidenceFloor. Expressed
// as data so thresholds live in configuration, not code.
type BoostRule struct {
	AspectRatioMin  float64 `yaml:"aspect_ratio_min" json:"aspect_ratio_min"`
	AspectRatioMax  float64 `yaml:"aspect_ratio_max" json:"aspect_ratio_max"`
	AreaMin         float64 `yaml:"area_min" json:"area_min"` // pixels^2
	AreaMax         float64 `yaml:"area_max" json:"area_max"` // pixels^2, 0 = unbounded
	ConfidenceFloor float64 `yaml:"confidence_floor" json:"confidence_floor"`
}

// Matches reports whether the box falls inside the rule's size band.
func (r BoostRule) Matches(box BoundingBox) bool {
	ar := box.AspectRatio()
	if ar < r.AspectRatioMin || ar > r.AspectRatioMax {
		return false
	}
	area := box.Area()
	if area < r.AreaMin {
		return false
	}
	if r.AreaMax > 0 && area > r.AreaMax {
		return false
	}
	return true
}

// ClassPolicy holds the per-class detection configuration. Loaded once at
// pipeline construction and read-only during a run.
type ClassPolicy struct {
	MinConfidence      float64    `yaml:"min_confidence" json:"min_confidence"`
	EnhancementEnabled bool       `yaml:"enhancement_enabled" json:"enhancement_enabled"`
	Boost              *BoostRule `yaml:"boost,omitempty" json:"boost,omitempty"`
}

// PolicyTable maps class labels to their policies, with a default for
// unknown classes.
type PolicyTable struct {
	Classes map[string]ClassPolicy
	Default ClassPolicy
}

// Lookup returns the policy for a class label, falling back to the
// default policy for unknown classes.
func (t PolicyTable) Lookup(classLabel string) ClassPolicy {
	if p, ok := t.Classes[classLabel]; ok {
		return p
	}
	return t.Default
}

// WithUniformMinConfidence returns a copy of the table with every class
// minimum (including the default) replaced by threshold. Used when a run
// config sets an explicit confidence threshold. The receiver is not
// modified.
func (t PolicyTable) WithUniformMinConfidence(threshold float64) PolicyTable {
	out := PolicyTable{
		Classes: make(map[string]ClassPolicy, len(t.Classes)),
		Default: t.Default,
	}
	out.Default.MinConfidence = threshold
	for label, p := range t.Classes {
		p.MinConfidence = threshold
		out.Classes[label] = p
	}
	return out
}

// DefaultPolicies returns the built-in policy table. Pedestrians get a
// lower minimum plus a boost for narrow upright boxes, which the default
// model systematically under-scores at distance.
func DefaultPolicies() PolicyTable {
	return PolicyTable{
		Classes: map[string]ClassPolicy{
			ClassPedestrian: {
				MinConfidence:      0.45,
				EnhancementEnabled: true,
				Boost: &BoostRule{
					AspectRatioMin:  0.2,
					AspectRatioMax:  0.65,
					AreaMin:         400,
					AreaMax:         90000,
					ConfidenceFloor: 0.6,
				},
			},
			ClassVehicle: {
				MinConfidence: 0.5,
			},
			ClassBicycle: {
				MinConfidence:      0.4,
				EnhancementEnabled: true,
				Boost: &BoostRule{
					AspectRatioMin:  0.5,
					AspectRatioMax:  1.5,
					AreaMin:         300,
					AreaMax:         60000,
					ConfidenceFloor: 0.5,
				},
			},
			ClassAnimal: {
				MinConfidence: 0.4,
			},
		},
		Default: ClassPolicy{MinConfidence: 0.5},
	}
}
