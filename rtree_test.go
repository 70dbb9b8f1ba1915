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
	"io"
	"testing"
)

func sampleLeaves() []RTreeLeaf {
	return []RTreeLeaf{
		{Interval{0, 0, 100}, 0, 10},
		{Interval{0, 100, 200}, 10, 10},
		{Interval{0, 200, 300}, 20, 10},
		{Interval{1, 0, 50}, 30, 10},
		{Interval{1, 50, 150}, 40, 10},
	}
}

func TestRTreeRoundTrip(t *testing.T) {
	idx := NewRTreeIndex(sampleLeaves(), 2, 1)

	order := LittleEndian()
	sb := newSeekBuffer()
	if err := idx.Write(sb, order); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := sb.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}
	got, err := ReadRTreeIndex(sb, order)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.ItemCount != idx.ItemCount {
		t.Fatalf("itemCount = %d, want %d", got.ItemCount, idx.ItemCount)
	}

	leaves := got.FindOverlapping(0, 50, 150)
	if len(leaves) != 2 {
		t.Fatalf("FindOverlapping(0,50,150) = %d leaves, want 2", len(leaves))
	}
}

func TestRTreeFindOverlappingAcrossChromosomes(t *testing.T) {
	idx := NewRTreeIndex(sampleLeaves(), 2, 1)

	if got := idx.FindOverlapping(1, 0, 10); len(got) != 1 {
		t.Fatalf("chrom 1 query = %d leaves, want 1", len(got))
	}
	if got := idx.FindOverlapping(2, 0, 10); len(got) != 0 {
		t.Fatalf("chrom 2 query = %d leaves, want 0", len(got))
	}
}

func TestRTreeEmpty(t *testing.T) {
	idx := NewRTreeIndex(nil, 2, 1)
	if got := idx.FindOverlapping(0, 0, 100); len(got) != 0 {
		t.Fatalf("empty tree returned %d leaves", len(got))
	}
}
