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

// BigBedFile is the BED-specific façade over BigFile: query decodes BED
// blocks into BedEntry, write encodes sorted BedEntry rows into a BigBED
// file (spec.md §6's per-file-type read/query/summarize/close/write
// surface). Grounded on bigWig.go's BigWigFile/BigWigReader/BigWigWriter
// wrapping the shared bbi.go machinery.

import (
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/yevshin/big/compress"
)

/* -------------------------------------------------------------------------- */

// BigBedFile wraps an opened BigFile, narrowing its generic block API to
// BedEntry.
type BigBedFile struct {
	file *BigFile
}

// OpenBigBed opens r as a BigBED file.
func OpenBigBed(r io.ReadSeeker, policy BufferPolicy) (*BigBedFile, error) {
	f, err := Open(r, policy)
	if err != nil {
		return nil, err
	}
	if f.Kind != BigBedKind {
		return nil, newError(BadSignature, "not a bigBed file", 0, nil)
	}
	return &BigBedFile{file: f}, nil
}

// Close releases the underlying reader.
func (bb *BigBedFile) Close() error { return bb.file.Close() }

// Query returns every BedEntry on chrom overlapping (or contained in, per
// overlaps) [start, end), in on-disk order (spec.md §5's ordering
// guarantee).
func (bb *BigBedFile) Query(chrom string, start, end uint32, overlaps bool, cancel CancelFunc) ([]BedEntry, error) {
	chromIx, _, ok := bb.file.ResolveChrom(chrom)
	if !ok {
		return nil, newError(UnknownChromosome, chrom, 0, nil)
	}
	blocks, err := bb.file.QueryBlocks(chromIx, start, end, cancel)
	if err != nil {
		return nil, err
	}
	var out []BedEntry
	for _, block := range blocks {
		entries, err := DecodeBedBlock(block, bb.file.Order, chromIx, start, end, overlaps)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			name, _ := bb.file.ChromName(e.ChromIx)
			out = append(out, BedEntry{Chrom: name, Start: e.Start, End: e.End, Rest: e.Rest})
		}
	}
	return out, nil
}

// Summarize bins feature coverage on chrom over [start, end) into numBins
// equal-width bins, treating each entry's contribution as a single unit of
// coverage (spec.md §4.7); this is the BigBED analogue of BigWIG's
// per-sample summarize, used for feature-density tracks.
func (bb *BigBedFile) Summarize(chrom string, start, end uint32, numBins int, cancel CancelFunc) ([]Bin, error) {
	chromIx, _, ok := bb.file.ResolveChrom(chrom)
	if !ok {
		return nil, newError(UnknownChromosome, chrom, 0, nil)
	}
	decodeRaw := func(block []byte) ([]WigPoint, error) {
		entries, err := DecodeBedBlock(block, bb.file.Order, chromIx, start, end, true)
		if err != nil {
			return nil, err
		}
		pts := make([]WigPoint, len(entries))
		for i, e := range entries {
			pts[i] = WigPoint{Start: e.Start, End: e.End, Value: 1}
		}
		return pts, nil
	}
	return bb.file.Summarize(chromIx, start, end, numBins, decodeRaw, cancel)
}

/* -------------------------------------------------------------------------- */

// WriteBigBed encodes sorted entries (by chrom, then start) into a new
// BigBED file at w (spec.md §6's write(items, chromSizes, outPath, ...)).
func WriteBigBed(w io.WriteSeeker, entries []BedEntry, chromSizes map[string]uint32, opts WriteOptions) error {
	if opts.Order.order == nil {
		opts.Order = LittleEndian()
	}
	if opts.Compression == compress.None {
		opts.Compression = compress.Snappy
	}
	if opts.FieldCount == 0 {
		opts.FieldCount = 3
		opts.DefinedFieldCount = 3
	}

	chromIx, leaves, err := buildChromLeaves(chromSizes)
	if err != nil {
		return err
	}

	sorted := make([]BedEntry, 0, len(entries))
	for _, e := range entries {
		if _, ok := chromIx[e.Chrom]; !ok {
			logSoftCondition(logrus.Fields{"chrom": e.Chrom}, "dropping entry on unknown chromosome")
			continue
		}
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Chrom != sorted[j].Chrom {
			return sorted[i].Chrom < sorted[j].Chrom
		}
		return sorted[i].Start < sorted[j].Start
	})

	itemsPerSlot := opts.ItemsPerSlot
	if itemsPerSlot == 0 {
		itemsPerSlot = defaultWriteItemsSlot
	}

	zoomItems := make([]ZoomSourceItem, 0, len(sorted))
	chromIxOf := make([]uint32, len(sorted))
	for i, e := range sorted {
		ix, ok := chromIx[e.Chrom]
		if !ok {
			return newError(UnknownChromosome, e.Chrom, 0, nil)
		}
		chromIxOf[i] = ix
		zoomItems = append(zoomItems, ZoomSourceItem{ChromIx: ix, Start: e.Start, End: e.End, Value: 1})
	}

	var blocks []DataBlockInput
	i := 0
	for i < len(sorted) {
		end := i + 1
		for end < len(sorted) && end-i < int(itemsPerSlot) && chromIxOf[end] == chromIxOf[i] {
			end++
		}
		run := sorted[i:end]
		decoded := make([]decodedBedEntry, len(run))
		for j, e := range run {
			decoded[j] = decodedBedEntry{ChromIx: chromIxOf[i+j], Start: e.Start, End: e.End, Rest: e.Rest}
		}
		raw, err := EncodeBedBlock(decoded, opts.Order)
		if err != nil {
			return err
		}
		blocks = append(blocks, DataBlockInput{ChromIx: chromIxOf[i], Start: run[0].Start, End: run[len(run)-1].End, Raw: raw})
		i = end
	}
	return WriteBigFile(w, bigBedMagic, leaves, blocks, zoomItems, opts)
}

func buildChromLeaves(chromSizes map[string]uint32) (map[string]uint32, []BPlusLeaf, error) {
	if len(chromSizes) == 0 {
		return nil, nil, fmt.Errorf("big: chromSizes must not be empty")
	}
	names := make([]string, 0, len(chromSizes))
	for name := range chromSizes {
		names = append(names, name)
	}
	sort.Strings(names)
	ix := make(map[string]uint32, len(names))
	leaves := make([]BPlusLeaf, len(names))
	for i, name := range names {
		ix[name] = uint32(i)
		leaves[i] = BPlusLeaf{Key: name, Id: uint32(i), Size: chromSizes[name]}
	}
	return ix, leaves, nil
}
