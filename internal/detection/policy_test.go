package detection

import "testing"

func TestPolicyTableLookup(t *testing.T) {
	table := DefaultPolicies()

	p := table.Lookup(ClassPedestrian)
	if p.MinConfidence != 0.45 {
		t.Errorf("Expected pedestrian min confidence 0.45, got %v", p.MinConfidence)
	}
	if !p.EnhancementEnabled || p.Boost == nil {
		t.Error("Expected pedestrian policy to carry a boost rule")
	}

	unknown := table.Lookup("traffic_cone")
	if unknown.MinConfidence != table.Default.MinConfidence {
		t.Errorf("Expected default policy for unknown class, got %+v", unknown)
	}
}

func TestWithUniformMinConfidence(t *testing.T) {
	table := DefaultPolicies()
	overridden := table.WithUniformMinConfidence(0.8)

	for label := range overridden.Classes {
		if got := overridden.Lookup(label).MinConfidence; got != 0.8 {
			t.Errorf("Class %s: expected min confidence 0.8, got %v", label, got)
		}
	}
	if overridden.Default.MinConfidence != 0.8 {
		t.Errorf("Expected default min confidence 0.8, got %v", overridden.Default.MinConfidence)
	}

	// Original table must not be mutated
	if table.Lookup(ClassPedestrian).MinConfidence != 0.45 {
		t.Error("WithUniformMinConfidence mutated the original table")
	}
	// Boost rules survive the override
	if overridden.Lookup(ClassPedestrian).Boost == nil {
		t.Error("Expected boost rule to survive the override")
	}
}

func TestBoostRuleMatches(t *testing.T) {
	rule := BoostRule{
		AspectRatioMin:  0.2,
		AspectRatioMax:  0.65,
		AreaMin:         400,
		AreaMax:         90000,
		ConfidenceFloor: 0.6,
	}

	tests := []struct {
		name string
		box  BoundingBox
		want bool
	}{
		{"narrow upright in band", BoundingBox{Width: 40, Height: 100}, true},
		{"too wide", BoundingBox{Width: 100, Height: 100}, false},
		{"too small", BoundingBox{Width: 6, Height: 20}, false},
		{"too large", BoundingBox{Width: 300, Height: 700}, false},
	}

	for _, tt := range tests {
		if got := rule.Matches(tt.box); got != tt.want {
			t.Errorf("%s: Matches() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestBoostRuleUnboundedArea(t *testing.T) {
	rule := BoostRule{AspectRatioMin: 0.1, AspectRatioMax: 10, AreaMin: 1}
	huge := BoundingBox{Width: 5000, Height: 5000}
	if !rule.Matches(huge) {
		t.Error("Expected AreaMax 0 to mean unbounded")
	}
}
