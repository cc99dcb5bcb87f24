package analyzer

import "testing"

// TestHistogramFuseScenario: widths
// [100, 102, 98, 101, 103] at TOLERANCE 0.2 should sum and fuse into one
// bin with mean ~100.8 and count 5.
func TestHistogramFuseScenario(t *testing.T) {
	var h Histogram
	h.Sum([]int{100, 102, 98, 101, 103})
	h.FuseBins()

	if h.Count() != 1 {
		t.Fatalf("expected 1 bin after fuse, got %d", h.Count())
	}
	count, mean, _, _ := h.Bin(0)
	if count != 5 {
		t.Fatalf("expected count 5, got %d", count)
	}
	if mean < 100 || mean > 101 {
		t.Fatalf("expected mean ~100.8, got %d", mean)
	}
}

func TestHistogramSumSeparatesDistinctWidths(t *testing.T) {
	var h Histogram
	h.Sum([]int{100, 100, 500, 500, 100})
	if h.Count() != 2 {
		t.Fatalf("expected 2 bins, got %d", h.Count())
	}
}

func TestHistogramSortMean(t *testing.T) {
	var h Histogram
	h.Sum([]int{500, 100, 300})
	h.SortMean()
	_, m0, _, _ := h.Bin(0)
	_, m1, _, _ := h.Bin(1)
	_, m2, _, _ := h.Bin(2)
	if !(m0 < m1 && m1 < m2) {
		t.Fatalf("bins not sorted ascending: %d %d %d", m0, m1, m2)
	}
}

func TestHistogramDropLeadingZeroBin(t *testing.T) {
	var h Histogram
	h.Sum([]int{0, 100, 100})
	h.SortMean()
	h.DropLeadingZeroBin()
	if h.Count() != 1 {
		t.Fatalf("expected 1 bin after dropping zero bin, got %d", h.Count())
	}
	_, mean, _, _ := h.Bin(0)
	if mean != 100 {
		t.Fatalf("expected remaining bin mean 100, got %d", mean)
	}
}
