// Package analyzer builds pulse/gap/period histograms from a captured
// package and guesses its modulation through a fixed classification
// cascade.
package analyzer

// maxHistBins bounds how many distinct width clusters a histogram can
// hold before new, unmatched widths are simply dropped.
const maxHistBins = 16

// tolerance is the bin-match and bin-fuse predicate's relative slack:
// 20% is wide enough to separate pulse widths at ratios of 0.33/0.66/1.0
// but narrow enough not to blur distinct line-code symbols together.
const tolerance = 0.2

type bin struct {
	count int
	sum   int
	mean  int
	min   int
	max   int
}

// Histogram accumulates integer sample widths into up to maxHistBins
// clusters by closeness of mean.
type Histogram struct {
	bins []bin
}

func (h *Histogram) Count() int { return len(h.bins) }

func (h *Histogram) Bin(i int) (count, mean, min, max int) {
	b := h.bins[i]
	return b.count, b.mean, b.min, b.max
}

// Sum folds each width in data into the nearest existing bin (by the
// tolerance predicate) or starts a new one.
func (h *Histogram) Sum(data []int) {
	for _, x := range data {
		matched := -1
		for i := range h.bins {
			bm := h.bins[i].mean
			if absInt(x-bm) < int(tolerance*float64(maxInt(x, bm))) {
				matched = i
				break
			}
		}
		if matched >= 0 {
			b := &h.bins[matched]
			b.count++
			b.sum += x
			b.mean = b.sum / b.count
			b.min = minInt(b.min, x)
			b.max = maxInt(b.max, x)
			continue
		}
		if len(h.bins) < maxHistBins {
			h.bins = append(h.bins, bin{count: 1, sum: x, mean: x, min: x, max: x})
		}
	}
}

// FuseBins merges any two bins whose means lie within tolerance of each
// other, repeatedly, so near-duplicate clusters collapse to one.
func (h *Histogram) FuseBins() {
	for n := 0; n < len(h.bins)-1; n++ {
		for m := n + 1; m < len(h.bins); m++ {
			bn := h.bins[n].mean
			bm := h.bins[m].mean
			if absInt(bn-bm) < int(tolerance*float64(maxInt(bn, bm))) {
				h.bins[n].count += h.bins[m].count
				h.bins[n].sum += h.bins[m].sum
				h.bins[n].mean = h.bins[n].sum / h.bins[n].count
				h.bins[n].min = minInt(h.bins[n].min, h.bins[m].min)
				h.bins[n].max = maxInt(h.bins[n].max, h.bins[m].max)
				h.deleteBin(m)
				m--
			}
		}
	}
}

func (h *Histogram) deleteBin(index int) {
	h.bins = append(h.bins[:index], h.bins[index+1:]...)
}

// SortMean orders bins ascending by mean, the convention the classifier
// relies on to address "bin 0" as the shortest cluster.
func (h *Histogram) SortMean() {
	for n := 0; n < len(h.bins)-1; n++ {
		for m := n + 1; m < len(h.bins); m++ {
			if h.bins[m].mean < h.bins[n].mean {
				h.bins[m], h.bins[n] = h.bins[n], h.bins[m]
			}
		}
	}
}

// SortCount orders bins ascending by occurrence count, used to single out
// a rare sync/delimiter pulse among three pulse-width clusters.
func (h *Histogram) SortCount() {
	for n := 0; n < len(h.bins)-1; n++ {
		for m := n + 1; m < len(h.bins); m++ {
			if h.bins[m].count < h.bins[n].count {
				h.bins[m], h.bins[n] = h.bins[n], h.bins[m]
			}
		}
	}
}

// DropLeadingZeroBin removes bin 0 if its mean is zero, the artifact FSK
// packages leave from their initial zero-width pulse.
func (h *Histogram) DropLeadingZeroBin() {
	if len(h.bins) > 0 && h.bins[0].mean == 0 {
		h.deleteBin(0)
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
