/* Copyright (C) 2016 Philipp Benner
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package big

/* -------------------------------------------------------------------------- */

// BigSummary is the count/min/max/sum/sumSquares monoid used by both the
// 40-byte total-summary block and every zoom-level data record (spec.md
// §4.7). Grounded on bbi.go's BbiHeader total-summary fields
// (nBasesCovered/minVal/maxVal/sumData/sumSquared); unlike the teacher,
// which stores those as raw uint64 (losing the float payload), this
// reimplementation carries them as float64 end to end, matching the
// format's actual 40-byte `(validCount:u64, minVal/maxVal/sum/sumSquares:f64)`
// layout.

import "math"

/* -------------------------------------------------------------------------- */

// BigSummary accumulates coverage statistics over a set of intervals. The
// zero value is the monoid identity: merging it with anything leaves the
// other operand unchanged.
type BigSummary struct {
	ValidCount float64
	MinVal     float64
	MaxVal     float64
	SumData    float64
	SumSquares float64
}

// NewBigSummary returns the identity summary, with Min/Max set so the
// first real update always wins.
func NewBigSummary() BigSummary {
	return BigSummary{MinVal: math.Inf(1), MaxVal: math.Inf(-1)}
}

// Empty reports whether no item has ever been folded into this summary.
func (s BigSummary) Empty() bool {
	return s.ValidCount == 0
}

// Update folds one source item's value into the summary, weighted by how
// many bases of it fall inside the current bin (spec.md §4.7): count is
// the sum of per-bin intersection lengths, sum/sumSquares are scaled by
// the same intersection length, and min/max are plain value extrema.
func (s *BigSummary) Update(value float64, intersection float64) {
	if intersection <= 0 {
		return
	}
	s.ValidCount += intersection
	s.SumData += value * intersection
	s.SumSquares += value * value * intersection
	if value < s.MinVal {
		s.MinVal = value
	}
	if value > s.MaxVal {
		s.MaxVal = value
	}
}

// Merge combines another summary into s, used both to build the
// total-summary block and to cascade zoom levels. Merging with an empty
// summary is a no-op, and merging into an empty summary copies o — this is
// what makes BigSummary an associative, identity-respecting monoid.
func (s *BigSummary) Merge(o BigSummary) {
	if o.Empty() {
		return
	}
	if s.Empty() {
		*s = o
		return
	}
	s.ValidCount += o.ValidCount
	s.SumData += o.SumData
	s.SumSquares += o.SumSquares
	if o.MinVal < s.MinVal {
		s.MinVal = o.MinVal
	}
	if o.MaxVal > s.MaxVal {
		s.MaxVal = o.MaxVal
	}
}

// MergeScaled combines o into s after scaling its count/sum/sumSquares by
// intersection/total, the rule zoom-to-zoom aggregation uses when a source
// zoom record only partially overlaps the destination bin (spec.md §4.7).
// Min/Max are never scaled.
func (s *BigSummary) MergeScaled(o BigSummary, intersection, total float64) {
	if o.Empty() || total <= 0 {
		return
	}
	scale := intersection / total
	scaled := BigSummary{
		ValidCount: math.Round(o.ValidCount * scale),
		SumData:    o.SumData * scale,
		SumSquares: o.SumSquares * scale,
		MinVal:     o.MinVal,
		MaxVal:     o.MaxVal,
	}
	s.Merge(scaled)
}

// Mean returns sum/count, or 0 for an empty summary.
func (s BigSummary) Mean() float64 {
	if s.ValidCount == 0 {
		return 0
	}
	return s.SumData / s.ValidCount
}

/* zoom level selection
 * -------------------------------------------------------------------------- */

// ZoomLevel pairs a reduction factor with the R+ tree holding its
// precomputed summary records (spec.md §4.6).
type ZoomLevel struct {
	Reduction uint32
	Index     *RTreeIndex
	DataBegin uint64
}

// PickZoomLevel selects the zoom level with the largest reduction <= d
// that is closest to d; it returns ok=false when d <= 1 or no level
// qualifies, signaling the caller should summarize from unzoomed data
// (spec.md §4.7).
func PickZoomLevel(levels []ZoomLevel, d float64) (ZoomLevel, bool) {
	if d <= 1 {
		return ZoomLevel{}, false
	}
	best := -1
	for i, lvl := range levels {
		if float64(lvl.Reduction) > d {
			continue
		}
		if best == -1 || levels[i].Reduction > levels[best].Reduction {
			best = i
		}
	}
	if best == -1 {
		return ZoomLevel{}, false
	}
	return levels[best], true
}

/* binning
 * -------------------------------------------------------------------------- */

// Bin is one equal-width slice of a summarize() query range.
type Bin struct {
	Start, End uint32
	Summary    BigSummary
}

// makeBins divides [start, end) into numBins equal-width bins, matching
// UCSC's convention of letting the final bin absorb any remainder.
func makeBins(start, end uint32, numBins int) []Bin {
	bins := make([]Bin, numBins)
	total := end - start
	width := total / uint32(numBins)
	cur := start
	for i := 0; i < numBins; i++ {
		b := Bin{Start: cur}
		if i == numBins-1 {
			b.End = end
		} else {
			b.End = cur + width
		}
		bins[i] = b
		cur = b.End
	}
	return bins
}

func intersectionLen(aStart, aEnd, bStart, bEnd uint32) uint32 {
	lo := aStart
	if bStart > lo {
		lo = bStart
	}
	hi := aEnd
	if bEnd < hi {
		hi = bEnd
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// SummarizeRaw bins raw (start,end,value) items over [start,end) into
// numBins equal-width bins, weighting each item's contribution by its
// intersection length with the bin (spec.md §4.7). Items must be sorted by
// start, which lets a monotone cursor skip items entirely left of the
// current bin instead of rescanning from the top each time.
func SummarizeRaw(items []WigPoint, start, end uint32, numBins int) []Bin {
	bins := makeBins(start, end, numBins)
	edge := 0
	for bi := range bins {
		b := &bins[bi]
		for edge < len(items) && items[edge].End <= b.Start {
			edge++
		}
		for i := edge; i < len(items) && items[i].Start < b.End; i++ {
			isect := intersectionLen(items[i].Start, items[i].End, b.Start, b.End)
			if isect == 0 {
				continue
			}
			b.Summary.Update(float64(items[i].Value), float64(isect))
		}
	}
	return bins
}

// ZoomRecord is one precomputed, reduction-scaled summary emitted by the
// zoom pyramid builder (spec.md §4.6); it behaves like a WigPoint with a
// BigSummary payload instead of a single value.
type ZoomRecord struct {
	ChromIx    uint32
	Start, End uint32
	Summary    BigSummary
}

// SummarizeZoom bins precomputed zoom records the same way SummarizeRaw
// bins raw points, but scales each record's contribution via MergeScaled
// instead of Update, since a zoom record already aggregates many bases
// (spec.md §4.7's zoom-to-zoom aggregation rule).
func SummarizeZoom(records []ZoomRecord, start, end uint32, numBins int) []Bin {
	bins := makeBins(start, end, numBins)
	edge := 0
	for bi := range bins {
		b := &bins[bi]
		for edge < len(records) && records[edge].End <= b.Start {
			edge++
		}
		for i := edge; i < len(records) && records[i].Start < b.End; i++ {
			isect := intersectionLen(records[i].Start, records[i].End, b.Start, b.End)
			if isect == 0 {
				continue
			}
			total := records[i].End - records[i].Start
			b.Summary.MergeScaled(records[i].Summary, float64(isect), float64(total))
		}
	}
	return bins
}
