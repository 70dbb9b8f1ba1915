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

// BigWigFile is the WIG-specific façade over BigFile: query decodes WIG
// blocks into WigPoint samples, write encodes a sorted run of FixedStep or
// VariableStep sections into a BigWIG file (spec.md §6). Grounded on
// bigWig.go's BigWigFile/BigWigReader/BigWigWriter.

import (
	"io"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/yevshin/big/compress"
)

/* -------------------------------------------------------------------------- */

// BigWigFile wraps an opened BigFile, narrowing its generic block API to
// WigPoint samples.
type BigWigFile struct {
	file *BigFile
}

// OpenBigWig opens r as a BigWIG file.
func OpenBigWig(r io.ReadSeeker, policy BufferPolicy) (*BigWigFile, error) {
	f, err := Open(r, policy)
	if err != nil {
		return nil, err
	}
	if f.Kind != BigWigKind {
		return nil, newError(BadSignature, "not a bigWig file", 0, nil)
	}
	return &BigWigFile{file: f}, nil
}

// Close releases the underlying reader.
func (bw *BigWigFile) Close() error { return bw.file.Close() }

// Query returns every sample on chrom overlapping (or contained in, per
// overlaps) [start, end), in on-disk order.
func (bw *BigWigFile) Query(chrom string, start, end uint32, overlaps bool, cancel CancelFunc) ([]WigPoint, error) {
	chromIx, _, ok := bw.file.ResolveChrom(chrom)
	if !ok {
		return nil, newError(UnknownChromosome, chrom, 0, nil)
	}
	blocks, err := bw.file.QueryBlocks(chromIx, start, end, cancel)
	if err != nil {
		return nil, err
	}
	var out []WigPoint
	for _, block := range blocks {
		pts, err := DecodeWigBlock(block, bw.file.Order, chromIx, start, end, overlaps)
		if err != nil {
			return nil, err
		}
		out = append(out, pts...)
	}
	return out, nil
}

// Summarize bins sample values on chrom over [start, end) into numBins
// equal-width bins, picking the best zoom level for the desired resolution
// or falling back to raw samples (spec.md §4.7).
func (bw *BigWigFile) Summarize(chrom string, start, end uint32, numBins int, cancel CancelFunc) ([]Bin, error) {
	chromIx, _, ok := bw.file.ResolveChrom(chrom)
	if !ok {
		return nil, newError(UnknownChromosome, chrom, 0, nil)
	}
	decodeRaw := func(block []byte) ([]WigPoint, error) {
		return DecodeWigBlock(block, bw.file.Order, chromIx, start, end, true)
	}
	return bw.file.Summarize(chromIx, start, end, numBins, decodeRaw, cancel)
}

/* -------------------------------------------------------------------------- */

// WigSample is one input row WriteBigWig encodes: a chromosome-scoped
// interval and value, the common shape underlying both FixedStep and
// VariableStep sections once expanded.
type WigSample struct {
	Chrom string
	Start uint32
	End   uint32
	Value float32
}

// WriteBigWig encodes sorted samples (by chrom, then start) into a new
// BigWIG file at w, packing runs of constant-width, constant-step samples
// into FixedStep blocks and everything else into VariableStep blocks
// (spec.md §6's write(items, chromSizes, outPath, ...)).
func WriteBigWig(w io.WriteSeeker, samples []WigSample, chromSizes map[string]uint32, opts WriteOptions) error {
	if opts.Order.order == nil {
		opts.Order = LittleEndian()
	}
	if opts.Compression == compress.None {
		opts.Compression = compress.Snappy
	}

	chromIx, leaves, err := buildChromLeaves(chromSizes)
	if err != nil {
		return err
	}

	sorted := make([]WigSample, 0, len(samples))
	for _, s := range samples {
		if _, ok := chromIx[s.Chrom]; !ok {
			logSoftCondition(logrus.Fields{"chrom": s.Chrom}, "dropping sample on unknown chromosome")
			continue
		}
		sorted = append(sorted, s)
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

	var blocks []DataBlockInput
	zoomItems := make([]ZoomSourceItem, 0, len(sorted))
	for _, s := range sorted {
		ix, ok := chromIx[s.Chrom]
		if !ok {
			return newError(UnknownChromosome, s.Chrom, 0, nil)
		}
		zoomItems = append(zoomItems, ZoomSourceItem{ChromIx: ix, Start: s.Start, End: s.End, Value: float64(s.Value)})
	}

	i := 0
	for i < len(sorted) {
		chromIxVal := chromIx[sorted[i].Chrom]
		end := i + 1
		for end < len(sorted) && end-i < int(itemsPerSlot) && chromIx[sorted[end].Chrom] == chromIxVal &&
			sorted[end].End-sorted[end].Start == sorted[i].End-sorted[i].Start {
			end++
		}
		run := sorted[i:end]
		raw, blockStart, blockEnd, err := encodeRunAsFixedOrVariableStep(chromIxVal, run, opts.Order)
		if err != nil {
			return err
		}
		blocks = append(blocks, DataBlockInput{ChromIx: chromIxVal, Start: blockStart, End: blockEnd, Raw: raw})
		i = end
	}

	return WriteBigFile(w, bigWigMagic, leaves, blocks, zoomItems, opts)
}

// encodeRunAsFixedOrVariableStep packs one same-chromosome run into a
// FixedStep block if every sample shares the same width and step, or a
// VariableStep block otherwise.
func encodeRunAsFixedOrVariableStep(chromIx uint32, run []WigSample, order ByteOrder) ([]byte, uint32, uint32, error) {
	span := run[0].End - run[0].Start
	fixed := len(run) > 1
	var step uint32
	if len(run) > 1 {
		step = run[1].Start - run[0].Start
	}
	for i := 1; i < len(run) && fixed; i++ {
		if run[i].End-run[i].Start != span {
			fixed = false
			break
		}
		if i > 1 && run[i].Start-run[i-1].Start != step {
			fixed = false
		}
	}
	start := run[0].Start
	end := run[len(run)-1].End

	if fixed && step > 0 {
		values := make([]float32, len(run))
		for i, s := range run {
			values[i] = s.Value
		}
		raw, err := EncodeFixedStepBlock(chromIx, start, step, span, values, order)
		return raw, start, end, err
	}

	positions := make([]uint32, len(run))
	values := make([]float32, len(run))
	for i, s := range run {
		positions[i] = s.Start
		values[i] = s.Value
	}
	raw, err := EncodeVariableStepBlock(chromIx, start, end, span, positions, values, order)
	return raw, start, end, err
}
