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
	"fmt"
	"testing"
)

func TestCountLevels(t *testing.T) {
	tests := []struct {
		blockSize, itemCount, want int
	}{
		{10, 100, 2},
		{10, 10, 1},
		{10, 1, 1},
		{10, 1000, 3},
	}
	for _, tc := range tests {
		if got := countLevels(tc.blockSize, tc.itemCount); got != tc.want {
			t.Errorf("countLevels(%d, %d) = %d, want %d", tc.blockSize, tc.itemCount, got, tc.want)
		}
	}
}

func sampleChromLeaves(n int) []BPlusLeaf {
	leaves := make([]BPlusLeaf, n)
	for i := 0; i < n; i++ {
		leaves[i] = BPlusLeaf{Key: fmt.Sprintf("chr%03d", i), Id: uint32(i), Size: uint32(1000 + i)}
	}
	return leaves
}

func TestBPlusTreeTraverseIsExhaustive(t *testing.T) {
	leaves := sampleChromLeaves(37)
	tree, err := NewBPlusTree(leaves, 4, 8)
	if err != nil {
		t.Fatalf("NewBPlusTree: %v", err)
	}

	got := tree.Traverse()
	if uint64(len(got)) != tree.ItemCount {
		t.Fatalf("traverse returned %d leaves, want ItemCount=%d", len(got), tree.ItemCount)
	}

	seen := make(map[string]BPlusLeaf, len(got))
	for _, l := range got {
		seen[l.Key] = l
	}
	if len(seen) != len(leaves) {
		t.Fatalf("traverse returned %d distinct keys, want %d", len(seen), len(leaves))
	}
	for _, want := range leaves {
		got, ok := seen[want.Key]
		if !ok {
			t.Fatalf("traverse missing key %q", want.Key)
		}
		if got.Id != want.Id || got.Size != want.Size {
			t.Fatalf("traverse leaf %q = %+v, want %+v", want.Key, got, want)
		}
	}
}

func TestBPlusTreeFindMatchesTraverse(t *testing.T) {
	leaves := sampleChromLeaves(37)
	tree, err := NewBPlusTree(leaves, 4, 8)
	if err != nil {
		t.Fatalf("NewBPlusTree: %v", err)
	}

	keys := make(map[string]bool, len(leaves))
	for _, l := range leaves {
		keys[l.Key] = true
	}

	for _, l := range leaves {
		found, ok := tree.Find(l.Key)
		if !ok {
			t.Fatalf("Find(%q) = not found, want found", l.Key)
		}
		if found.Id != l.Id || found.Size != l.Size {
			t.Fatalf("Find(%q) = %+v, want %+v", l.Key, found, l)
		}
	}

	for _, absent := range []string{"chrX", "chrUn", "nonexistent"} {
		if keys[absent] {
			continue
		}
		if _, ok := tree.Find(absent); ok {
			t.Fatalf("Find(%q) = found, want not found", absent)
		}
	}
}
