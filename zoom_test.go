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
	"testing"

	"github.com/pbenner/threadpool"
)

func TestBuildZoomLevelsReducesLeafCount(t *testing.T) {
	var items []ZoomSourceItem
	for i := uint32(0); i < 2000; i += 10 {
		items = append(items, ZoomSourceItem{ChromIx: 0, Start: i, End: i + 10, Value: 1})
	}
	pool := threadpool.New(1, 10)

	levels := BuildZoomLevels(items, 4, pool)
	if len(levels) == 0 {
		t.Fatal("expected at least one zoom level")
	}
	prev := -1
	for _, lvl := range levels {
		if prev != -1 && len(lvl.Groups) >= prev {
			t.Fatalf("zoom level with reduction %d did not shrink group count: %d -> %d", lvl.Reduction, prev, len(lvl.Groups))
		}
		prev = len(lvl.Groups)
	}
}

func TestEncodeDecodeZoomBlockRoundTrip(t *testing.T) {
	records := []ZoomRecord{
		{ChromIx: 2, Start: 0, End: 10, Summary: BigSummary{ValidCount: 10, MinVal: 1, MaxVal: 5, SumData: 30, SumSquares: 100}},
		{ChromIx: 2, Start: 10, End: 20, Summary: BigSummary{ValidCount: 10, MinVal: 2, MaxVal: 6, SumData: 40, SumSquares: 120}},
	}
	for _, order := range []ByteOrder{LittleEndian(), BigEndian()} {
		buf, err := EncodeZoomBlock(records, order)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := DecodeZoomBlock(buf, order)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != len(records) {
			t.Fatalf("got %d records, want %d", len(got), len(records))
		}
		for i, r := range got {
			if r.ChromIx != records[i].ChromIx || r.Start != records[i].Start || r.End != records[i].End {
				t.Fatalf("record %d mismatch: %+v", i, r)
			}
			if r.Summary.SumData != records[i].Summary.SumData {
				t.Fatalf("record %d sumData mismatch: got %v want %v", i, r.Summary.SumData, records[i].Summary.SumData)
			}
		}
	}
}

func TestInitialReductionFloorsAtOne(t *testing.T) {
	items := []ZoomSourceItem{{ChromIx: 0, Start: 0, End: 1, Value: 1}}
	if got := initialReduction(items); got != 10 {
		t.Fatalf("initialReduction = %d, want 10", got)
	}
}
