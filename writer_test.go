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
	"sort"
	"testing"
)

func TestWriteBigBedRoundTrip(t *testing.T) {
	chromSizes := map[string]uint32{"chr1": 1000, "chr2": 2000}
	entries := []BedEntry{
		{Chrom: "chr1", Start: 10, End: 20, Rest: "featA\t0\t+"},
		{Chrom: "chr1", Start: 50, End: 80, Rest: "featB\t0\t-"},
		{Chrom: "chr2", Start: 5, End: 15, Rest: "featC\t0\t+"},
	}

	buf := newSeekBuffer()
	if err := WriteBigBed(buf, entries, chromSizes, WriteOptions{}); err != nil {
		t.Fatalf("WriteBigBed: %v", err)
	}
	if _, err := buf.Seek(0, 0); err != nil {
		t.Fatal(err)
	}

	bb, err := OpenBigBed(buf, SingleThreaded)
	if err != nil {
		t.Fatalf("OpenBigBed: %v", err)
	}
	defer bb.Close()

	got, err := bb.Query("chr1", 0, 1000, true, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	sort.Slice(got, func(i, j int) bool { return got[i].Start < got[j].Start })
	if len(got) != 2 {
		t.Fatalf("got %d entries on chr1, want 2", len(got))
	}
	if got[0].Start != 10 || got[0].End != 20 || got[0].Rest != "featA\t0\t+" {
		t.Fatalf("entry 0 mismatch: %+v", got[0])
	}
	if got[1].Start != 50 || got[1].End != 80 {
		t.Fatalf("entry 1 mismatch: %+v", got[1])
	}

	got2, err := bb.Query("chr2", 0, 2000, true, nil)
	if err != nil {
		t.Fatalf("Query chr2: %v", err)
	}
	if len(got2) != 1 || got2[0].Rest != "featC\t0\t+" {
		t.Fatalf("chr2 mismatch: %+v", got2)
	}
}

func TestWriteBigWigRoundTrip(t *testing.T) {
	chromSizes := map[string]uint32{"chr1": 1000}
	var samples []WigSample
	for i := uint32(0); i < 100; i += 10 {
		samples = append(samples, WigSample{Chrom: "chr1", Start: i, End: i + 10, Value: float32(i) / 10})
	}

	buf := newSeekBuffer()
	if err := WriteBigWig(buf, samples, chromSizes, WriteOptions{}); err != nil {
		t.Fatalf("WriteBigWig: %v", err)
	}
	if _, err := buf.Seek(0, 0); err != nil {
		t.Fatal(err)
	}

	bw, err := OpenBigWig(buf, SingleThreaded)
	if err != nil {
		t.Fatalf("OpenBigWig: %v", err)
	}
	defer bw.Close()

	got, err := bw.Query("chr1", 0, 100, true, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	sort.Slice(got, func(i, j int) bool { return got[i].Start < got[j].Start })
	if len(got) != len(samples) {
		t.Fatalf("got %d points, want %d", len(got), len(samples))
	}
	for i, p := range got {
		if p.Start != samples[i].Start || p.End != samples[i].End {
			t.Fatalf("point %d interval mismatch: got %+v want %+v", i, p, samples[i])
		}
		if p.Value != samples[i].Value {
			t.Fatalf("point %d value mismatch: got %v want %v", i, p.Value, samples[i].Value)
		}
	}
}

func TestWriteBigWigSummarizeUsesZoomLevel(t *testing.T) {
	chromSizes := map[string]uint32{"chr1": 100000}
	var samples []WigSample
	for i := uint32(0); i < 100000; i += 10 {
		samples = append(samples, WigSample{Chrom: "chr1", Start: i, End: i + 10, Value: 1})
	}

	buf := newSeekBuffer()
	if err := WriteBigWig(buf, samples, chromSizes, WriteOptions{}); err != nil {
		t.Fatalf("WriteBigWig: %v", err)
	}
	if _, err := buf.Seek(0, 0); err != nil {
		t.Fatal(err)
	}

	bw, err := OpenBigWig(buf, SingleThreaded)
	if err != nil {
		t.Fatalf("OpenBigWig: %v", err)
	}
	defer bw.Close()

	lvl, ok := PickZoomLevel(bw.file.ZoomLevels(), float64(100000)/float64(2*10))
	if !ok || lvl.Index == nil {
		t.Fatalf("no written zoom level qualifies for this summarize query: %+v, ok=%v", lvl, ok)
	}

	bins, err := bw.Summarize("chr1", 0, 100000, 10, nil)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(bins) != 10 {
		t.Fatalf("got %d bins, want 10", len(bins))
	}
	for _, b := range bins {
		if b.Summary.Empty() {
			t.Fatalf("bin %+v unexpectedly empty", b)
		}
	}
}
