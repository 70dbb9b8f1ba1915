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

// B+ tree mapping chromosome names to (id, size) pairs (spec.md §4.3). Keys
// are zero-padded to a fixed width and compared byte-lexicographically; the
// tree is built bottom-up from a sorted leaf list and read top-down with no
// back-references, following bbi.go's BTree/BVertex/BData shape.

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
)

const bPlusTreeMagic = 0x78CA8C91

/* -------------------------------------------------------------------------- */

// BPlusLeaf is one chromosome entry: a name (key), its assigned id, and its
// length in bases.
type BPlusLeaf struct {
	Key  string
	Id   uint32
	Size uint32
}

/* -------------------------------------------------------------------------- */

type bPlusVertex struct {
	isLeaf bool
	// leaf slots
	leaves []BPlusLeaf
	// internal slots: one key per child, naming the child's first key
	keys     [][]byte
	children []*bPlusVertex
	// populated while writing, so children can patch their own
	// childOffset once the writer knows where they landed
	offset int64
}

/* -------------------------------------------------------------------------- */

// BPlusTree is the in-memory representation of a written or parsed B+ tree.
type BPlusTree struct {
	KeySize   uint32
	ValSize   uint32
	BlockSize uint32
	ItemCount uint64
	root      *bPlusVertex
}

// countLevels computes ceil(log_blockSize(itemCount)), with the special
// case countLevels(n, n) = 1 so that a leaf set that exactly fills one block
// produces a single-level (root-is-leaf) tree (spec.md §4.3). A tree always
// has at least one level, so zero or one item also gives 1.
func countLevels(blockSize, itemCount int) int {
	if itemCount <= 1 {
		return 1
	}
	if itemCount == blockSize {
		return 1
	}
	return int(math.Ceil(math.Log(float64(itemCount)) / math.Log(float64(blockSize))))
}

// NewBPlusTree sorts leaves by key and builds a bottom-up tree. If the leaf
// set fits in a single block, blockSize is narrowed to len(leaves), keeping
// the root compact (spec.md §4.3).
func NewBPlusTree(leaves []BPlusLeaf, blockSize uint32, valSize uint32) (*BPlusTree, error) {
	if blockSize < 2 {
		return nil, fmt.Errorf("bplustree: blockSize must be >= 2, got %d", blockSize)
	}
	sorted := append([]BPlusLeaf(nil), leaves...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	keySize := uint32(0)
	for _, l := range sorted {
		if uint32(len(l.Key)) > keySize {
			keySize = uint32(len(l.Key))
		}
	}

	effectiveBlockSize := blockSize
	if len(sorted) > 0 && uint32(len(sorted)) < blockSize {
		effectiveBlockSize = uint32(len(sorted))
	}

	tree := &BPlusTree{
		KeySize:   keySize,
		ValSize:   valSize,
		BlockSize: effectiveBlockSize,
		ItemCount: uint64(len(sorted)),
	}
	if len(sorted) == 0 {
		tree.root = &bPlusVertex{isLeaf: true}
		return tree, nil
	}
	levels := countLevels(int(effectiveBlockSize), len(sorted))
	tree.root = buildBPlusVertex(sorted, int(effectiveBlockSize), levels-1)
	return tree, nil
}

func buildBPlusVertex(leaves []BPlusLeaf, blockSize, level int) *bPlusVertex {
	v := &bPlusVertex{}
	if level == 0 {
		v.isLeaf = true
		n := len(leaves)
		if n > blockSize {
			n = blockSize
		}
		v.leaves = leaves[:n]
		return v
	}
	// fill up to blockSize children in order, each taking as many leaves as
	// a subtree one level down can hold (the last child takes the rest).
	childCapacity := iPow(blockSize, level)
	for len(leaves) > 0 && len(v.children) < blockSize {
		n := childCapacity
		if n > len(leaves) {
			n = len(leaves)
		}
		child := buildBPlusVertex(leaves[:n], blockSize, level-1)
		v.children = append(v.children, child)
		v.keys = append(v.keys, []byte(firstKey(child)))
		leaves = leaves[n:]
	}
	return v
}

func firstKey(v *bPlusVertex) string {
	if v.isLeaf {
		return v.leaves[0].Key
	}
	return string(v.keys[0])
}

func iPow(x, k int) int {
	r := 1
	for i := 0; i < k; i++ {
		r *= x
	}
	return r
}

/* write
 * -------------------------------------------------------------------------- */

// Write serializes the tree as (header + nodes), back-patching child
// offsets once each child's position is known (spec.md §4.3, §6).
func (t *BPlusTree) Write(w io.WriteSeeker, order ByteOrder) error {
	if err := order.WriteU32(w, bPlusTreeMagic); err != nil {
		return err
	}
	if err := order.WriteU32(w, t.BlockSize); err != nil {
		return err
	}
	if err := order.WriteU32(w, t.KeySize); err != nil {
		return err
	}
	if err := order.WriteU32(w, t.ValSize); err != nil {
		return err
	}
	if err := order.WriteU64(w, t.ItemCount); err != nil {
		return err
	}
	if err := order.WriteU64(w, 0); err != nil { // reserved
		return err
	}
	return writeBPlusVertex(w, order, t.root, t.KeySize, t.ValSize)
}

func writeBPlusVertex(w io.WriteSeeker, order ByteOrder, v *bPlusVertex, keySize, valSize uint32) error {
	if v.isLeaf {
		if err := order.WriteU8(w, 1); err != nil {
			return err
		}
		if err := order.WriteU8(w, 0); err != nil { // reserved
			return err
		}
		if err := order.WriteU16(w, uint16(len(v.leaves))); err != nil {
			return err
		}
		for _, l := range v.leaves {
			if err := order.WriteFixedString(w, l.Key, int(keySize)); err != nil {
				return err
			}
			if err := order.WriteU32(w, l.Id); err != nil {
				return err
			}
			if err := order.WriteU32(w, l.Size); err != nil {
				return err
			}
		}
		return nil
	}
	if err := order.WriteU8(w, 0); err != nil {
		return err
	}
	if err := order.WriteU8(w, 0); err != nil {
		return err
	}
	if err := order.WriteU16(w, uint16(len(v.children))); err != nil {
		return err
	}
	offsetPositions := make([]int64, len(v.children))
	for i, key := range v.keys {
		if err := order.WriteFixedString(w, string(key), int(keySize)); err != nil {
			return err
		}
		pos, err := w.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		offsetPositions[i] = pos
		if err := order.WriteU64(w, 0); err != nil { // placeholder childOffset
			return err
		}
	}
	for i, child := range v.children {
		pos, err := w.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		if err := patchU64At(w, order, offsetPositions[i], uint64(pos)); err != nil {
			return err
		}
		if err := writeBPlusVertex(w, order, child, keySize, valSize); err != nil {
			return err
		}
	}
	return nil
}

func patchU64At(w io.WriteSeeker, order ByteOrder, pos int64, v uint64) error {
	cur, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := w.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	if err := order.WriteU64(w, v); err != nil {
		return err
	}
	_, err = w.Seek(cur, io.SeekStart)
	return err
}

/* read
 * -------------------------------------------------------------------------- */

// ReadBPlusTree parses a B+ tree header and its root vertex from r, which
// must be positioned at the tree's first byte.
func ReadBPlusTree(r io.ReadSeeker, order ByteOrder) (*BPlusTree, error) {
	magic, err := order.ReadU32(r)
	if err != nil {
		return nil, newError(IoError, "bplustree header", 0, err)
	}
	if magic != bPlusTreeMagic {
		return nil, newError(CorruptIndex, "bplustree magic", 0, nil)
	}
	t := &BPlusTree{}
	if t.BlockSize, err = order.ReadU32(r); err != nil {
		return nil, err
	}
	if t.KeySize, err = order.ReadU32(r); err != nil {
		return nil, err
	}
	if t.ValSize, err = order.ReadU32(r); err != nil {
		return nil, err
	}
	if t.ItemCount, err = order.ReadU64(r); err != nil {
		return nil, err
	}
	if _, err = order.ReadU64(r); err != nil { // reserved
		return nil, err
	}
	root, err := readBPlusVertex(r, order, t.KeySize, t.ValSize)
	if err != nil {
		return nil, err
	}
	t.root = root
	return t, nil
}

func readBPlusVertex(r io.ReadSeeker, order ByteOrder, keySize, valSize uint32) (*bPlusVertex, error) {
	isLeaf, err := order.ReadU8(r)
	if err != nil {
		return nil, err
	}
	if _, err := order.ReadU8(r); err != nil { // reserved
		return nil, err
	}
	count, err := order.ReadU16(r)
	if err != nil {
		return nil, err
	}
	v := &bPlusVertex{isLeaf: isLeaf != 0}
	if v.isLeaf {
		for i := 0; i < int(count); i++ {
			key, err := order.ReadFixedString(r, int(keySize))
			if err != nil {
				return nil, err
			}
			id, err := order.ReadU32(r)
			if err != nil {
				return nil, err
			}
			size, err := order.ReadU32(r)
			if err != nil {
				return nil, err
			}
			v.leaves = append(v.leaves, BPlusLeaf{Key: key, Id: id, Size: size})
		}
		return v, nil
	}
	type pending struct {
		key    []byte
		offset uint64
	}
	var items []pending
	for i := 0; i < int(count); i++ {
		keyBytes := make([]byte, keySize)
		if _, err := io.ReadFull(r, keyBytes); err != nil {
			return nil, err
		}
		offset, err := order.ReadU64(r)
		if err != nil {
			return nil, err
		}
		items = append(items, pending{key: bytes.TrimRight(keyBytes, "\x00"), offset: offset})
	}
	for _, it := range items {
		v.keys = append(v.keys, it.key)
		if _, err := r.Seek(int64(it.offset), io.SeekStart); err != nil {
			return nil, err
		}
		child, err := readBPlusVertex(r, order, keySize, valSize)
		if err != nil {
			return nil, err
		}
		v.children = append(v.children, child)
	}
	return v, nil
}

/* query
 * -------------------------------------------------------------------------- */

// Find descends from the root to the leaf matching key and returns its slot,
// or ok=false if no such key exists.
func (t *BPlusTree) Find(key string) (BPlusLeaf, bool) {
	needle := []byte(key)
	v := t.root
	for v != nil && !v.isLeaf {
		idx := 0
		for i, k := range v.keys {
			if bytes.Compare(k, needle) <= 0 {
				idx = i
			} else {
				break
			}
		}
		v = v.children[idx]
	}
	if v == nil {
		return BPlusLeaf{}, false
	}
	for _, l := range v.leaves {
		if l.Key == key {
			return l, true
		}
	}
	return BPlusLeaf{}, false
}

// Traverse yields every leaf in sorted key order (DFS).
func (t *BPlusTree) Traverse() []BPlusLeaf {
	var out []BPlusLeaf
	traverseBPlus(t.root, &out)
	return out
}

func traverseBPlus(v *bPlusVertex, out *[]BPlusLeaf) {
	if v == nil {
		return
	}
	if v.isLeaf {
		*out = append(*out, v.leaves...)
		return
	}
	for _, c := range v.children {
		traverseBPlus(c, out)
	}
}
