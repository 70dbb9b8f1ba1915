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

import (
	"math"
	"testing"
)

func TestBigSummaryMergeIsMonoid(t *testing.T) {
	a := NewBigSummary()
	a.Update(2, 10)
	b := NewBigSummary()
	b.Update(4, 5)

	var identity BigSummary
	merged := a
	merged.Merge(identity)
	if merged.SumData != a.SumData || merged.ValidCount != a.ValidCount {
		t.Fatalf("merging identity changed summary: %+v", merged)
	}

	ab := a
	ab.Merge(b)
	ba := b
	ba.Merge(a)
	if ab.SumData != ba.SumData || ab.ValidCount != ba.ValidCount {
		t.Fatalf("merge not commutative: %+v vs %+v", ab, ba)
	}
	if ab.MinVal != 2 || ab.MaxVal != 4 {
		t.Fatalf("merge min/max wrong: %+v", ab)
	}
}

func TestBigSummaryUpdateWeightsByIntersection(t *testing.T) {
	s := NewBigSummary()
	s.Update(10, 5)
	if s.SumData != 50 {
		t.Fatalf("sum = %v, want 50", s.SumData)
	}
	if s.ValidCount != 5 {
		t.Fatalf("count = %v, want 5", s.ValidCount)
	}
	if s.SumSquares != 500 {
		t.Fatalf("sumSquares = %v, want 500", s.SumSquares)
	}
}

func TestSummarizeRawConservesSum(t *testing.T) {
	items := []WigPoint{
		{Start: 0, End: 10, Value: 2},
		{Start: 10, End: 30, Value: 3},
		{Start: 30, End: 40, Value: 1},
	}
	bins := SummarizeRaw(items, 0, 40, 4)

	var total float64
	for _, b := range bins {
		total += b.Summary.SumData
	}
	want := 10.0*2 + 20.0*3 + 10.0*1
	if math.Abs(total-want) > 1e-9 {
		t.Fatalf("total sum = %v, want %v", total, want)
	}
}

func TestPickZoomLevel(t *testing.T) {
	levels := []ZoomLevel{
		{Reduction: 10},
		{Reduction: 40},
		{Reduction: 160},
	}
	got, ok := PickZoomLevel(levels, 100)
	if !ok || got.Reduction != 40 {
		t.Fatalf("PickZoomLevel(100) = %+v, ok=%v, want reduction 40", got, ok)
	}
	if _, ok := PickZoomLevel(levels, 1); ok {
		t.Fatal("PickZoomLevel(1) should report no match")
	}
	if _, ok := PickZoomLevel(levels, 5); ok {
		t.Fatal("PickZoomLevel(5) should report no match (no level with reduction <= 5)")
	}
}
