package tomo

import "testing"

func TestFilterSamples_ExcludesFarOff(t *testing.T) {
	samples := []float64{1, 2, 3, 4, 5, 6, 7, 8, 16}
	kept := FilterSamples(samples, 1.5)
	if len(kept) != 8 {
		t.Fatalf("expected 8 samples kept, got %d: %v", len(kept), kept)
	}
	for _, v := range kept {
		if v == 16 {
			t.Error("expected 16 to fall outside the fences")
		}
	}
}

func TestFilterSamples_WiderFenceRetains(t *testing.T) {
	samples := []float64{1, 2, 3, 4, 5, 6, 7, 8, 16}
	kept := FilterSamples(samples, 3)
	if len(kept) != len(samples) {
		t.Errorf("expected all %d samples kept at k=3, got %d", len(samples), len(kept))
	}
}

func TestFilterSamples_IdenticalSamples(t *testing.T) {
	samples := []float64{3, 3, 3, 3}
	kept := FilterSamples(samples, 1.5)
	if len(kept) != 4 {
		t.Errorf("expected all identical samples kept, got %d", len(kept))
	}
}

// Filtering never starves the aggregate: fewer than two survivors falls back
// to the full sample set.
func TestFilterSamples_NeverEmpty(t *testing.T) {
	kept := FilterSamples([]float64{1, 2}, 0)
	if len(kept) != 2 {
		t.Fatalf("expected both samples back, got %v", kept)
	}
	kept = FilterSamples([]float64{7}, 1.5)
	if len(kept) != 1 || kept[0] != 7 {
		t.Errorf("expected single sample back, got %v", kept)
	}
	if kept := FilterSamples(nil, 1.5); len(kept) != 0 {
		t.Errorf("expected empty input back, got %v", kept)
	}
}

func TestTukeyFences(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 16}
	lo, hi := tukeyFences(sorted, 1.5)
	if lo >= 1 {
		t.Errorf("expected low fence below the minimum, got %g", lo)
	}
	if hi <= 8 || hi >= 16 {
		t.Errorf("expected high fence between 8 and 16, got %g", hi)
	}
}
