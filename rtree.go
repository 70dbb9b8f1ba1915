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

// R+ tree indexing variable-length, chromosome-scoped intervals over data
// blocks (spec.md §4.4). Grounded on bbi.go's RTree/RVertex (the
// blockSize-bucketed bottom-up build, IDX_MAGIC header). Unlike
// nimezhu-indexed's channel-based DFS query generator, which re-reads each
// node's children from disk on demand through a mutable cursor, every
// node's children here are parsed into memory once at read time, so
// FindOverlapping below is a plain in-memory recursion with no cursor to
// mutate (spec.md §4.4, §9 "Iterator-over-mutable-cursor").

import (
	"io"
)

const rTreeMagic = 0x2468ACE0

/* -------------------------------------------------------------------------- */

// Interval is a half-open, chromosome-scoped genomic interval.
type Interval struct {
	ChromIx uint32
	Start   uint32
	End     uint32
}

// less orders intervals by (ChromIx, Start), the sort order data blocks and
// R+ tree leaves are stored in.
func (a Interval) less(b Interval) bool {
	if a.ChromIx != b.ChromIx {
		return a.ChromIx < b.ChromIx
	}
	return a.Start < b.Start
}

// bound is a chromosome-spanning bounding box: (startChromIx, startBase) to
// (endChromIx, endBase), used by internal R+ tree nodes whose children may
// span more than one chromosome.
type bound struct {
	startChromIx, startBase uint32
	endChromIx, endBase     uint32
}

func boundOf(iv Interval) bound {
	return bound{iv.ChromIx, iv.Start, iv.ChromIx, iv.End}
}

func (b bound) union(o bound) bound {
	out := b
	if o.startChromIx < out.startChromIx || (o.startChromIx == out.startChromIx && o.startBase < out.startBase) {
		out.startChromIx, out.startBase = o.startChromIx, o.startBase
	}
	if o.endChromIx > out.endChromIx || (o.endChromIx == out.endChromIx && o.endBase > out.endBase) {
		out.endChromIx, out.endBase = o.endChromIx, o.endBase
	}
	return out
}

// intersects reports whether b overlaps the half-open query range
// [qStart, qEnd) on chromosome qChromIx, comparing in (chromIx, base) order.
func (b bound) intersects(qChromIx, qStart, qEnd uint32) bool {
	lo := chromBase{qChromIx, qStart}
	hi := chromBase{qChromIx, qEnd}
	start := chromBase{b.startChromIx, b.startBase}
	end := chromBase{b.endChromIx, b.endBase}
	return start.less(hi) && lo.less(end)
}

type chromBase struct {
	chromIx, base uint32
}

func (a chromBase) less(b chromBase) bool {
	if a.chromIx != b.chromIx {
		return a.chromIx < b.chromIx
	}
	return a.base < b.base
}

/* -------------------------------------------------------------------------- */

// RTreeLeaf is one entry in the leaf level: the interval covered by the
// entries in one data block, and that block's location.
type RTreeLeaf struct {
	Interval
	DataOffset uint64
	DataSize   uint64
}

type rTreeVertex struct {
	isLeaf bool
	bound  bound
	leaves []RTreeLeaf
	// internal: one bound + child per entry
	childBounds []bound
	children    []*rTreeVertex
}

/* -------------------------------------------------------------------------- */

// RTreeIndex is a built or parsed R+ tree together with its header fields.
type RTreeIndex struct {
	BlockSize     uint32
	ItemCount     uint64
	ItemsPerSlot  uint32
	StartChromIx  uint32
	StartBase     uint32
	EndChromIx    uint32
	EndBase       uint32
	EndDataOffset uint64
	root          *rTreeVertex
}

// NewRTreeIndex builds an R+ tree from leaves, which must already be sorted
// by (ChromIx, Start). Groups of blockSize adjacent leaves are reduced via
// interval union into parent nodes, repeated until a single root remains
// (spec.md §4.4).
func NewRTreeIndex(leaves []RTreeLeaf, blockSize, itemsPerSlot uint32) *RTreeIndex {
	idx := &RTreeIndex{BlockSize: blockSize, ItemsPerSlot: itemsPerSlot, ItemCount: uint64(len(leaves))}
	if len(leaves) == 0 {
		idx.root = &rTreeVertex{isLeaf: true}
		return idx
	}
	level := make([]*rTreeVertex, 0, len(leaves))
	for _, l := range leaves {
		level = append(level, &rTreeVertex{isLeaf: true, bound: boundOf(l.Interval), leaves: []RTreeLeaf{l}})
	}
	// group adjacent leaves into leaf-level nodes of up to blockSize slots
	level = groupRTreeVertices(level, blockSize, true)
	for len(level) > 1 {
		level = groupRTreeVertices(level, blockSize, false)
	}
	idx.root = level[0]
	idx.StartChromIx, idx.StartBase = idx.root.bound.startChromIx, idx.root.bound.startBase
	idx.EndChromIx, idx.EndBase = idx.root.bound.endChromIx, idx.root.bound.endBase
	var maxEnd uint64
	for _, l := range leaves {
		if l.DataOffset+l.DataSize > maxEnd {
			maxEnd = l.DataOffset + l.DataSize
		}
	}
	idx.EndDataOffset = maxEnd
	return idx
}

// groupRTreeVertices buckets up to blockSize adjacent vertices under new
// parents; leafMerge controls whether the resulting nodes are themselves
// leaf nodes (true: merge raw leaf vertices into one leaf node each) or
// internal nodes over the previous level.
func groupRTreeVertices(level []*rTreeVertex, blockSize uint32, leafMerge bool) []*rTreeVertex {
	var out []*rTreeVertex
	for i := 0; i < len(level); i += int(blockSize) {
		end := i + int(blockSize)
		if end > len(level) {
			end = len(level)
		}
		group := level[i:end]
		if leafMerge {
			v := &rTreeVertex{isLeaf: true, bound: group[0].bound}
			for _, g := range group {
				v.leaves = append(v.leaves, g.leaves...)
				v.bound = v.bound.union(g.bound)
			}
			out = append(out, v)
		} else {
			v := &rTreeVertex{bound: group[0].bound}
			for _, g := range group {
				v.children = append(v.children, g)
				v.childBounds = append(v.childBounds, g.bound)
				v.bound = v.bound.union(g.bound)
			}
			out = append(out, v)
		}
	}
	return out
}

/* write
 * -------------------------------------------------------------------------- */

// Write serializes the header and tree, depth-first, back-patching each
// internal slot's childOffset once the child's actual position is known
// (spec.md §4.4, §6).
func (idx *RTreeIndex) Write(w io.WriteSeeker, order ByteOrder) error {
	if err := order.WriteU32(w, rTreeMagic); err != nil {
		return err
	}
	if err := order.WriteU32(w, idx.BlockSize); err != nil {
		return err
	}
	if err := order.WriteU64(w, idx.ItemCount); err != nil {
		return err
	}
	if err := order.WriteU32(w, idx.StartChromIx); err != nil {
		return err
	}
	if err := order.WriteU32(w, idx.StartBase); err != nil {
		return err
	}
	if err := order.WriteU32(w, idx.EndChromIx); err != nil {
		return err
	}
	if err := order.WriteU32(w, idx.EndBase); err != nil {
		return err
	}
	if err := order.WriteU64(w, idx.EndDataOffset); err != nil {
		return err
	}
	if err := order.WriteU32(w, idx.ItemsPerSlot); err != nil {
		return err
	}
	if err := order.WriteU32(w, 0); err != nil { // reserved
		return err
	}
	return writeRTreeVertex(w, order, idx.root)
}

func writeRTreeVertex(w io.WriteSeeker, order ByteOrder, v *rTreeVertex) error {
	if v.isLeaf {
		if err := order.WriteU8(w, 1); err != nil {
			return err
		}
		if err := order.WriteU8(w, 0); err != nil {
			return err
		}
		if err := order.WriteU16(w, uint16(len(v.leaves))); err != nil {
			return err
		}
		for _, l := range v.leaves {
			if err := writeRTreeBound(w, order, boundOf(l.Interval)); err != nil {
				return err
			}
			if err := order.WriteU64(w, l.DataOffset); err != nil {
				return err
			}
			if err := order.WriteU64(w, l.DataSize); err != nil {
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
	for i, b := range v.childBounds {
		if err := writeRTreeBound(w, order, b); err != nil {
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
		if err := writeRTreeVertex(w, order, child); err != nil {
			return err
		}
	}
	return nil
}

func writeRTreeBound(w io.Writer, order ByteOrder, b bound) error {
	if err := order.WriteU32(w, b.startChromIx); err != nil {
		return err
	}
	if err := order.WriteU32(w, b.startBase); err != nil {
		return err
	}
	if err := order.WriteU32(w, b.endChromIx); err != nil {
		return err
	}
	return order.WriteU32(w, b.endBase)
}

/* read
 * -------------------------------------------------------------------------- */

// ReadRTreeIndex parses the header and root, positioned at the tree's first
// byte of r.
func ReadRTreeIndex(r io.ReadSeeker, order ByteOrder) (*RTreeIndex, error) {
	magic, err := order.ReadU32(r)
	if err != nil {
		return nil, newError(IoError, "rtree header", 0, err)
	}
	if magic != rTreeMagic {
		return nil, newError(CorruptIndex, "rtree magic", 0, nil)
	}
	idx := &RTreeIndex{}
	if idx.BlockSize, err = order.ReadU32(r); err != nil {
		return nil, err
	}
	if idx.ItemCount, err = order.ReadU64(r); err != nil {
		return nil, err
	}
	if idx.StartChromIx, err = order.ReadU32(r); err != nil {
		return nil, err
	}
	if idx.StartBase, err = order.ReadU32(r); err != nil {
		return nil, err
	}
	if idx.EndChromIx, err = order.ReadU32(r); err != nil {
		return nil, err
	}
	if idx.EndBase, err = order.ReadU32(r); err != nil {
		return nil, err
	}
	if idx.EndDataOffset, err = order.ReadU64(r); err != nil {
		return nil, err
	}
	if idx.ItemsPerSlot, err = order.ReadU32(r); err != nil {
		return nil, err
	}
	if _, err = order.ReadU32(r); err != nil { // reserved
		return nil, err
	}
	root, err := readRTreeVertex(r, order)
	if err != nil {
		return nil, err
	}
	idx.root = root
	return idx, nil
}

func readRTreeVertex(r io.ReadSeeker, order ByteOrder) (*rTreeVertex, error) {
	isLeaf, err := order.ReadU8(r)
	if err != nil {
		return nil, err
	}
	if _, err := order.ReadU8(r); err != nil {
		return nil, err
	}
	count, err := order.ReadU16(r)
	if err != nil {
		return nil, err
	}
	v := &rTreeVertex{isLeaf: isLeaf != 0}
	if v.isLeaf {
		for i := 0; i < int(count); i++ {
			b, err := readRTreeBound(r, order)
			if err != nil {
				return nil, err
			}
			dataOffset, err := order.ReadU64(r)
			if err != nil {
				return nil, err
			}
			dataSize, err := order.ReadU64(r)
			if err != nil {
				return nil, err
			}
			v.leaves = append(v.leaves, RTreeLeaf{
				Interval:   Interval{b.startChromIx, b.startBase, b.endBase},
				DataOffset: dataOffset,
				DataSize:   dataSize,
			})
			v.bound = v.bound.union(b)
		}
		return v, nil
	}
	type pending struct {
		b      bound
		offset uint64
	}
	var items []pending
	for i := 0; i < int(count); i++ {
		b, err := readRTreeBound(r, order)
		if err != nil {
			return nil, err
		}
		offset, err := order.ReadU64(r)
		if err != nil {
			return nil, err
		}
		items = append(items, pending{b: b, offset: offset})
	}
	for _, it := range items {
		if _, err := r.Seek(int64(it.offset), io.SeekStart); err != nil {
			return nil, err
		}
		child, err := readRTreeVertex(r, order)
		if err != nil {
			return nil, err
		}
		v.children = append(v.children, child)
		v.childBounds = append(v.childBounds, it.b)
		v.bound = v.bound.union(it.b)
	}
	return v, nil
}

func readRTreeBound(r io.Reader, order ByteOrder) (bound, error) {
	var b bound
	var err error
	if b.startChromIx, err = order.ReadU32(r); err != nil {
		return b, err
	}
	if b.startBase, err = order.ReadU32(r); err != nil {
		return b, err
	}
	if b.endChromIx, err = order.ReadU32(r); err != nil {
		return b, err
	}
	if b.endBase, err = order.ReadU32(r); err != nil {
		return b, err
	}
	return b, nil
}

/* query
 * -------------------------------------------------------------------------- */

// FindOverlapping returns every leaf whose interval intersects
// [start, end) on chromIx, via recursive DFS. Each node's children are read
// eagerly into v.children/v.leaves at parse time, so recursion here never
// touches I/O directly (spec.md §4.4, §9).
func (idx *RTreeIndex) FindOverlapping(chromIx, start, end uint32) []RTreeLeaf {
	var out []RTreeLeaf
	if idx.root == nil {
		return out
	}
	collectOverlapping(idx.root, chromIx, start, end, &out)
	return out
}

func collectOverlapping(v *rTreeVertex, chromIx, start, end uint32, out *[]RTreeLeaf) {
	if v.isLeaf {
		for _, l := range v.leaves {
			if boundOf(l.Interval).intersects(chromIx, start, end) {
				*out = append(*out, l)
			}
		}
		return
	}
	for i, b := range v.childBounds {
		if b.intersects(chromIx, start, end) {
			collectOverlapping(v.children[i], chromIx, start, end, out)
		}
	}
}
