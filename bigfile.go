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

// BigFile is the shared façade behind BigWigFile and BigBedFile: header,
// chromosome B+ tree, unzoomed R+ tree, and zoom-level R+ trees, plus the
// RomBuffer used to fetch and decompress data blocks (spec.md §4.8).
// Grounded on bigWig.go's BigWigFile/Open/Create/WriteChromList/WriteIndex
// staged write flow, generalized to cover both magics behind one type and
// an explicit state machine instead of ad hoc method-call ordering.

import (
	"fmt"
	"io"
	"sort"

	"github.com/pbenner/threadpool"
	"github.com/sirupsen/logrus"

	"github.com/yevshin/big/compress"
)

/* -------------------------------------------------------------------------- */

// FileKind distinguishes BigWIG from BigBED once the magic has been read.
type FileKind int

const (
	UnknownKind FileKind = iota
	BigWigKind
	BigBedKind
)

/* -------------------------------------------------------------------------- */

// BigFile is a read-only, opened BigWIG or BigBED file.
type BigFile struct {
	Kind   FileKind
	Header *Header
	Order  ByteOrder
	Buffer *RomBuffer

	chroms      *BPlusTree
	index       *RTreeIndex
	zoomIndexes []*RTreeIndex

	chromIxByName map[string]uint32
	chromSizeByIx map[uint32]uint32
	chromNameByIx map[uint32]string
}

// Open parses the header, chromosome tree, unzoomed index, and every zoom
// index from r, leaving the RomBuffer positioned to serve queries
// (spec.md §6's "Public API surface": `read`).
func Open(r io.ReadSeeker, policy BufferPolicy) (*BigFile, error) {
	header, order, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	kindName, ok := DetermineFileType(header.Magic)
	if !ok {
		return nil, newError(BadSignature, "file magic", 0, nil)
	}
	kind := BigWigKind
	if kindName == "bigBed" {
		kind = BigBedKind
	}
	if header.Version < 1 || header.Version > 5 {
		return nil, newError(UnsupportedVersion, fmt.Sprintf("version %d", header.Version), 0, nil)
	}

	if _, err := r.Seek(int64(header.ChromTreeOffset), io.SeekStart); err != nil {
		return nil, newError(IoError, "seek chrom tree", int64(header.ChromTreeOffset), err)
	}
	chroms, err := ReadBPlusTree(r, order)
	if err != nil {
		return nil, err
	}

	if _, err := r.Seek(int64(header.UnzoomedIndexOffset), io.SeekStart); err != nil {
		return nil, newError(IoError, "seek index", int64(header.UnzoomedIndexOffset), err)
	}
	index, err := ReadRTreeIndex(r, order)
	if err != nil {
		return nil, err
	}

	zoomIndexes := make([]*RTreeIndex, len(header.Zooms))
	for i, z := range header.Zooms {
		if z.IndexOffset == 0 {
			continue
		}
		if _, err := r.Seek(int64(z.IndexOffset), io.SeekStart); err != nil {
			return nil, newError(IoError, "seek zoom index", int64(z.IndexOffset), err)
		}
		zi, err := ReadRTreeIndex(r, order)
		if err != nil {
			return nil, err
		}
		zoomIndexes[i] = zi
	}

	codec, err := blockCodec(header)
	if err != nil {
		return nil, err
	}

	f := &BigFile{
		Kind:          kind,
		Header:        header,
		Order:         order,
		Buffer:        NewRomBuffer(r, order, codec, policy),
		chroms:        chroms,
		index:         index,
		zoomIndexes:   zoomIndexes,
		chromIxByName: map[string]uint32{},
		chromSizeByIx: map[uint32]uint32{},
		chromNameByIx: map[uint32]string{},
	}
	for _, leaf := range chroms.Traverse() {
		f.chromIxByName[leaf.Key] = leaf.Id
		f.chromSizeByIx[leaf.Id] = leaf.Size
		f.chromNameByIx[leaf.Id] = leaf.Key
	}
	return f, nil
}

// blockCodec picks the data-block decompressor implied by the header:
// uncompressBufSize=0 means blocks are stored raw; version=5 signals the
// private Snappy extension; otherwise DEFLATE (spec.md §4.8).
func blockCodec(h *Header) (compress.Codec, error) {
	if h.UncompressBufSize == 0 {
		return compress.New(compress.None)
	}
	if h.Version == 5 {
		return compress.New(compress.Snappy)
	}
	return compress.New(compress.Deflate)
}

// Close releases the underlying reader if it implements io.Closer.
func (f *BigFile) Close() error {
	if c, ok := f.Buffer.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

/* chromosome resolution
 * -------------------------------------------------------------------------- */

// ResolveChrom returns the chromIx and size for a chromosome name, or
// ok=false if it is absent from this file's chromosome tree.
func (f *BigFile) ResolveChrom(name string) (ix uint32, size uint32, ok bool) {
	ix, ok = f.chromIxByName[name]
	if !ok {
		return 0, 0, false
	}
	return ix, f.chromSizeByIx[ix], true
}

// ChromName reverses ResolveChrom.
func (f *BigFile) ChromName(ix uint32) (string, bool) {
	name, ok := f.chromNameByIx[ix]
	return name, ok
}

/* queries
 * -------------------------------------------------------------------------- */

// CancelFunc is invoked before each unzoomed data block is fetched during a
// query and before each data or zoom block is written; returning an error
// aborts the in-flight read or write (spec.md §5). The R+ tree search and
// the zoomed summarize path do not call it.
type CancelFunc func() error

// QueryBlocks fetches and decompresses every unzoomed data block whose R+
// tree leaf overlaps [start, end) on chrom, in on-disk order (spec.md §4.4,
// §5's ordering guarantee). The caller is responsible for decoding each
// block with the BED or WIG codec and filtering individual records.
func (f *BigFile) QueryBlocks(chromIx, start, end uint32, cancel CancelFunc) ([][]byte, error) {
	leaves := f.index.FindOverlapping(chromIx, start, end)
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].Interval.less(leaves[j].Interval) })
	return f.fetchLeafBlocks(leaves, cancel)
}

// zoomRecordsFor decodes every zoom data block overlapping [start, end) at
// the given level into ZoomRecords, used by summarize's zoomed path.
func (f *BigFile) zoomRecordsFor(level int, chromIx, start, end uint32) ([]ZoomRecord, error) {
	if level < 0 || level >= len(f.zoomIndexes) || f.zoomIndexes[level] == nil {
		return nil, nil
	}
	leaves := f.zoomIndexes[level].FindOverlapping(chromIx, start, end)
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].Interval.less(leaves[j].Interval) })
	blocks, err := f.fetchLeafBlocks(leaves, nil)
	if err != nil {
		return nil, err
	}
	var out []ZoomRecord
	for _, block := range blocks {
		records, err := DecodeZoomBlock(block, f.Order)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}

// fetchLeafBlocks fetches and decompresses the data block behind each leaf,
// via AtLeaf so repeated queries into the same leaf skip re-decompression
// (spec.md §4.2's caching requirement). Under the single-threaded buffer
// policy leaves are fetched in order on the calling goroutine; otherwise
// they are swept across a threadpool, with the RomBuffer for each worker
// thread taken from WithThread and indexed by pool.GetThreadId(), the
// per-thread shape of tools/countKmers.go's kmersCounter slice (spec.md
// §5's per-thread-copy/synchronized policies). Under PerThreadCopy each
// worker has its own scratch; under Synchronized all workers share
// f.Buffer and its mutex.
func (f *BigFile) fetchLeafBlocks(leaves []RTreeLeaf, cancel CancelFunc) ([][]byte, error) {
	out := make([][]byte, len(leaves))
	compressed := f.Header.UncompressBufSize > 0
	fetch := func(i int, buf *RomBuffer) error {
		leaf := leaves[i]
		if cancel != nil {
			if err := cancel(); err != nil {
				return newError(Cancelled, "query", int64(leaf.DataOffset), err)
			}
		}
		block, err := buf.AtLeaf(leaf.DataOffset, int(leaf.DataSize), compressed)
		if err != nil {
			return err
		}
		out[i] = append([]byte(nil), block...)
		return nil
	}
	if f.Buffer.policy == SingleThreaded {
		for i := range leaves {
			if err := fetch(i, f.Buffer); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	pool := threadpool.New(4, len(leaves)+1)
	threads := make([]*RomBuffer, pool.NumberOfThreads())
	for i := range threads {
		threads[i] = f.Buffer.WithThread()
	}
	var jobErr error
	pool.RangeJob(0, len(leaves), func(i int, pool threadpool.ThreadPool, erf func() error) error {
		if err := fetch(i, threads[pool.GetThreadId()]); err != nil {
			jobErr = err
			return err
		}
		return nil
	})
	if jobErr != nil {
		return nil, jobErr
	}
	return out, nil
}

// ZoomLevels exposes the reduction factor of every parsed zoom level, used
// by Summarize's level picker.
func (f *BigFile) ZoomLevels() []ZoomLevel {
	levels := make([]ZoomLevel, len(f.Header.Zooms))
	for i, z := range f.Header.Zooms {
		levels[i] = ZoomLevel{Reduction: z.ReductionLevel, Index: f.zoomIndexes[i]}
	}
	return levels
}

// Summarize implements spec.md §4.7's summarize(chrom, start, end, numBins):
// pick the best zoom level for the desired per-bin reduction, or fall back
// to raw decoded items when none qualifies. decodeRaw must decode every
// unzoomed block overlapping [start,end) into WigPoint-shaped samples.
func (f *BigFile) Summarize(chromIx, start, end uint32, numBins int, decodeRaw func([]byte) ([]WigPoint, error), cancel CancelFunc) ([]Bin, error) {
	if numBins <= 0 {
		return nil, fmt.Errorf("big: numBins must be positive")
	}
	desired := float64(end-start) / float64(2*numBins)
	levels := f.ZoomLevels()
	if lvl, ok := PickZoomLevel(levels, desired); ok {
		for i, l := range levels {
			if l.Reduction == lvl.Reduction && l.Index != nil {
				records, err := f.zoomRecordsFor(i, chromIx, start, end)
				if err != nil {
					return nil, err
				}
				return SummarizeZoom(records, start, end, numBins), nil
			}
		}
	}
	blocks, err := f.QueryBlocks(chromIx, start, end, cancel)
	if err != nil {
		return nil, err
	}
	var items []WigPoint
	for _, b := range blocks {
		pts, err := decodeRaw(b)
		if err != nil {
			return nil, err
		}
		items = append(items, pts...)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Start < items[j].Start })
	return SummarizeRaw(items, start, end, numBins), nil
}

/* log helper
 * -------------------------------------------------------------------------- */

func logSoftCondition(fields logrus.Fields, msg string) {
	logrus.WithFields(fields).Debug(msg)
}
