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

// Writer drives the staged BigFile write flow (spec.md §4.8): reserve the
// header, write the chromosome B+ tree, stream data blocks while collecting
// R+ tree leaves, write the R+ tree, patch the header, build the zoom
// pyramid, then patch the total-summary block. Grounded on bigWig.go's
// BigWigWriter (Create/WriteChromList/WriteIndex/WriteIndexZoom staged
// calls), generalized into one state machine shared by BigWIG and BigBED.

import (
	"io"
	"sort"

	"github.com/pbenner/threadpool"

	"github.com/yevshin/big/compress"
)

/* -------------------------------------------------------------------------- */

// writeState names where a Writer is in the linear state machine; a writer
// that errors at any step must not advance past it, and its caller must
// delete the truncated output file (spec.md §4.8).
type writeState int

const (
	stateInit writeState = iota
	stateHeaderReserved
	stateChromTreeWritten
	stateDataStreamed
	stateIndexWritten
	stateHeaderPatched
	stateZoomed
	stateSummarized
	stateClosed
)

const (
	defaultBlockSize      = 256
	defaultWriteItemsSlot = 1024
	defaultZoomLevelCount = 8
)

/* -------------------------------------------------------------------------- */

// DataBlockInput is one not-yet-compressed data block a caller (bigwig.go or
// bigbed.go) has already encoded with EncodeBedBlock/EncodeVariableStepBlock/
// EncodeFixedStepBlock; blocks must be supplied in ascending (chromIx, start)
// order (spec.md §7's WriteOrderingViolation).
type DataBlockInput struct {
	ChromIx uint32
	Start   uint32
	End     uint32
	Raw     []byte
}

// WriteOptions configures one Write call. A zero ItemsPerSlot or
// ZoomLevelCount falls back to 1024 or 8 in the writer; WriteBigBed and
// WriteBigWig additionally turn a zero Compression (compress.None) into
// Snappy and a zero Order into little-endian. WriteBigFile called directly
// leaves Compression and Order as given.
type WriteOptions struct {
	ItemsPerSlot      uint32
	ZoomLevelCount    int
	Compression       compress.Type
	Order             ByteOrder
	Cancel            CancelFunc
	FieldCount        uint16
	DefinedFieldCount uint16
}

func (o *WriteOptions) setDefaults() {
	if o.ItemsPerSlot == 0 {
		o.ItemsPerSlot = defaultWriteItemsSlot
	}
	if o.ZoomLevelCount == 0 {
		o.ZoomLevelCount = defaultZoomLevelCount
	}
}

/* -------------------------------------------------------------------------- */

// Writer holds the in-flight state for one BigFile being written.
type Writer struct {
	w      io.WriteSeeker
	order  ByteOrder
	header *Header
	codec  compress.Codec
	opts   WriteOptions
	state  writeState

	maxUncompressed int
}

// newWriter reserves the header and zoom-descriptor slots and writes the
// chrom-tree/data/index placeholders this state machine will later patch.
func newWriter(w io.WriteSeeker, magic uint32, opts WriteOptions) (*Writer, error) {
	opts.setDefaults()
	codec, err := compress.New(opts.Compression)
	if err != nil {
		return nil, err
	}
	version := uint16(4)
	if opts.Compression == compress.Snappy {
		version = 5
	}
	header := &Header{
		Magic:             magic,
		Version:           version,
		ZoomLevelCount:    uint16(opts.ZoomLevelCount),
		Zooms:             make([]ZoomHeader, opts.ZoomLevelCount),
		FieldCount:        opts.FieldCount,
		DefinedFieldCount: opts.DefinedFieldCount,
	}
	if err := header.Write(w, opts.Order); err != nil {
		return nil, err
	}
	wr := &Writer{w: w, order: opts.Order, header: header, codec: codec, opts: opts, state: stateHeaderReserved}
	return wr, nil
}

// writeChromTree builds and writes the chromosome B+ tree, then back-patches
// the header's ChromTreeOffset (spec.md §4.3, §4.8).
func (wr *Writer) writeChromTree(leaves []BPlusLeaf) error {
	if wr.state != stateHeaderReserved {
		return newError(WriteOrderingViolation, "writeChromTree out of order", 0, nil)
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].Key < leaves[j].Key })
	blockSize := uint32(defaultBlockSize)
	if len(leaves) < defaultBlockSize {
		blockSize = uint32(len(leaves))
		if blockSize < 2 {
			blockSize = 2
		}
	}
	tree, err := NewBPlusTree(leaves, blockSize, 8)
	if err != nil {
		return err
	}
	offset, err := wr.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if err := tree.Write(wr.w, wr.order); err != nil {
		return err
	}
	if err := wr.header.PatchChromTreeOffset(wr.w, wr.order, uint64(offset)); err != nil {
		return err
	}
	if _, err := wr.w.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	wr.state = stateChromTreeWritten
	return nil
}

// streamDataBlocks back-patches the header's UnzoomedDataOffset, then
// compresses and appends each block in order, returning one R+ tree leaf
// per block and tracking the largest uncompressed block seen (for
// Header.UncompressBufSize). writeIndex builds and writes the R+ tree over
// the returned leaves (spec.md §4.4, §4.8, §5's per-block cancellation
// point).
func (wr *Writer) streamDataBlocks(blocks []DataBlockInput) ([]RTreeLeaf, error) {
	if wr.state != stateChromTreeWritten {
		return nil, newError(WriteOrderingViolation, "streamDataBlocks out of order", 0, nil)
	}
	dataOffset, err := wr.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	if err := wr.header.PatchUnzoomedDataOffset(wr.w, wr.order, uint64(dataOffset)); err != nil {
		return nil, err
	}
	if _, err := wr.w.Seek(0, io.SeekEnd); err != nil {
		return nil, err
	}

	leaves := make([]RTreeLeaf, 0, len(blocks))
	for i, b := range blocks {
		if i > 0 {
			prev := blocks[i-1]
			if b.ChromIx < prev.ChromIx || (b.ChromIx == prev.ChromIx && b.Start < prev.Start) {
				return nil, newError(WriteOrderingViolation, "data block not sorted by (chrom, start)", 0, nil)
			}
		}
		if wr.opts.Cancel != nil {
			if err := wr.opts.Cancel(); err != nil {
				return nil, newError(Cancelled, "write", 0, err)
			}
		}
		if len(b.Raw) > wr.maxUncompressed {
			wr.maxUncompressed = len(b.Raw)
		}
		compressed, err := wr.codec.Compress(nil, b.Raw)
		if err != nil {
			return nil, newError(DecompressionError, "compress data block", 0, err)
		}
		offset, err := wr.w.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, err
		}
		if _, err := wr.w.Write(compressed); err != nil {
			return nil, err
		}
		leaves = append(leaves, RTreeLeaf{
			Interval:   Interval{ChromIx: b.ChromIx, Start: b.Start, End: b.End},
			DataOffset: uint64(offset),
			DataSize:   uint64(len(compressed)),
		})
	}
	wr.state = stateDataStreamed
	return leaves, nil
}

// writeIndex builds the unzoomed R+ tree over leaves and back-patches the
// header's UnzoomedIndexOffset.
func (wr *Writer) writeIndex(leaves []RTreeLeaf) error {
	if wr.state != stateDataStreamed {
		return newError(WriteOrderingViolation, "writeIndex out of order", 0, nil)
	}
	indexOffset, err := wr.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	idx := NewRTreeIndex(leaves, defaultBlockSize, wr.opts.ItemsPerSlot)
	if err := idx.Write(wr.w, wr.order); err != nil {
		return err
	}
	if err := wr.header.PatchUnzoomedIndexOffset(wr.w, wr.order, uint64(indexOffset)); err != nil {
		return err
	}
	if _, err := wr.w.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	wr.state = stateIndexWritten
	return nil
}

// patchHeader back-patches the maximum uncompressed block size now that
// every unzoomed block has been written.
func (wr *Writer) patchHeader() error {
	if wr.state != stateIndexWritten {
		return newError(WriteOrderingViolation, "patchHeader out of order", 0, nil)
	}
	size := uint32(wr.maxUncompressed)
	if wr.opts.Compression == compress.None {
		size = 0
	}
	if err := wr.header.PatchUncompressBufSize(wr.w, wr.order, size); err != nil {
		return err
	}
	wr.state = stateHeaderPatched
	return nil
}

// writeZoomLevels runs the zoom pyramid builder over zoomItems, writes each
// level's compressed data blocks and R+ tree, and back-patches the matching
// ZoomHeader slot (spec.md §4.6, §4.8).
func (wr *Writer) writeZoomLevels(zoomItems []ZoomSourceItem) error {
	if wr.state != stateHeaderPatched {
		return newError(WriteOrderingViolation, "writeZoomLevels out of order", 0, nil)
	}
	pool := threadpool.New(4, len(zoomItems)+1)
	levels := BuildZoomLevels(zoomItems, wr.opts.ItemsPerSlot, pool)
	for i := 0; i < len(wr.header.Zooms); i++ {
		if i >= len(levels) {
			break
		}
		lvl := levels[i]
		dataOffset, err := wr.w.Seek(0, io.SeekEnd)
		if err != nil {
			return err
		}
		leaves := make([]RTreeLeaf, 0, len(lvl.Groups))
		for _, group := range lvl.Groups {
			if wr.opts.Cancel != nil {
				if err := wr.opts.Cancel(); err != nil {
					return newError(Cancelled, "write zoom level", 0, err)
				}
			}
			raw, err := EncodeZoomBlock(group, wr.order)
			if err != nil {
				return err
			}
			compressed, err := wr.codec.Compress(nil, raw)
			if err != nil {
				return newError(DecompressionError, "compress zoom block", 0, err)
			}
			offset, err := wr.w.Seek(0, io.SeekCurrent)
			if err != nil {
				return err
			}
			if _, err := wr.w.Write(compressed); err != nil {
				return err
			}
			leaves = append(leaves, RTreeLeaf{
				Interval:   Interval{ChromIx: group[0].ChromIx, Start: group[0].Start, End: group[len(group)-1].End},
				DataOffset: uint64(offset),
				DataSize:   uint64(len(compressed)),
			})
		}
		indexOffset, err := wr.w.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		idx := NewRTreeIndex(leaves, defaultBlockSize, wr.opts.ItemsPerSlot)
		if err := idx.Write(wr.w, wr.order); err != nil {
			return err
		}
		wr.header.Zooms[i].ReductionLevel = lvl.Reduction
		if err := wr.header.PatchZoomOffsets(wr.w, wr.order, i, uint64(dataOffset), uint64(indexOffset)); err != nil {
			return err
		}
		if _, err := wr.w.Seek(0, io.SeekEnd); err != nil {
			return err
		}
	}
	wr.state = stateZoomed
	return nil
}

// writeTotalSummary folds summary over every zoom source item and
// back-patches the 40-byte total-summary block (spec.md §4.7, §6).
func (wr *Writer) writeTotalSummary(zoomItems []ZoomSourceItem) error {
	if wr.state != stateZoomed {
		return newError(WriteOrderingViolation, "writeTotalSummary out of order", 0, nil)
	}
	summary := NewBigSummary()
	for _, it := range zoomItems {
		summary.Update(it.Value, float64(it.End-it.Start))
	}
	wr.header.Summary = summary
	if _, err := wr.w.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	if err := wr.header.PatchTotalSummaryOffset(wr.w, wr.order); err != nil {
		return err
	}
	wr.state = stateSummarized
	return nil
}

/* -------------------------------------------------------------------------- */

// WriteBigFile drives the full INIT -> ... -> SUMMARIZED state machine for
// one BigFile (spec.md §4.8's write flow, §6's write(items, chromSizes,
// outPath, ...) surface). blocks must be pre-encoded by the caller's
// BED/WIG codec and pre-sorted by (chromIx, start); zoomItems is the flat
// source the zoom pyramid builder sweeps (one ZoomSourceItem per data row,
// value=1 for BigBED coverage or the sample value for BigWIG).
func WriteBigFile(w io.WriteSeeker, magic uint32, chromLeaves []BPlusLeaf, blocks []DataBlockInput, zoomItems []ZoomSourceItem, opts WriteOptions) error {
	wr, err := newWriter(w, magic, opts)
	if err != nil {
		return err
	}
	if err := wr.writeChromTree(chromLeaves); err != nil {
		return err
	}
	leaves, err := wr.streamDataBlocks(blocks)
	if err != nil {
		return err
	}
	if err := wr.writeIndex(leaves); err != nil {
		return err
	}
	if err := wr.patchHeader(); err != nil {
		return err
	}
	if err := wr.writeZoomLevels(zoomItems); err != nil {
		return err
	}
	if err := wr.writeTotalSummary(zoomItems); err != nil {
		return err
	}
	wr.state = stateClosed
	return nil
}
