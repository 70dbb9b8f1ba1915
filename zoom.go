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

// Zoom pyramid builder (spec.md §4.6). Grounded on bbi.go's
// RVertexGenerator/BbiSequenceSplitter (windowed accumulation into
// itemsPerSlot-sized leaf groups) and on tools/countKmers.go's
// pool.RangeJob pattern: each per-chromosome job builds its own
// accumulator and writes its records into a results slot indexed by job id
// instead of sharing state across goroutines.

import (
	"bytes"
	"math"
	"sort"

	"github.com/pbenner/threadpool"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxZoomLevels = 8
	defaultItemsPerSlot  = 512
)

/* -------------------------------------------------------------------------- */

// ZoomSourceItem is one raw interval item the pyramid builder aggregates
// over, the common shape shared by decoded BED entries and WIG points.
type ZoomSourceItem struct {
	ChromIx uint32
	Start   uint32
	End     uint32
	Value   float64
}

// ZoomLevelBuild is one reduction level's worth of ZoomRecords, already
// grouped into itemsPerSlot-sized, single-chromosome blocks ready to be
// encoded and written (spec.md §4.6). Offsets are assigned later, once the
// blocks are actually streamed to disk.
type ZoomLevelBuild struct {
	Reduction uint32
	Groups    [][]ZoomRecord
}

// BuildZoomLevels computes up to defaultMaxZoomLevels reduction levels
// from sorted source items (ascending by ChromIx, then Start), each built
// by sweeping a moving window of width R_k = initial*4^k, stopping early
// once a level would produce no fewer groups than the previous one
// (spec.md §4.6 step 3).
func BuildZoomLevels(items []ZoomSourceItem, itemsPerSlot uint32, pool threadpool.ThreadPool) []ZoomLevelBuild {
	if itemsPerSlot == 0 {
		itemsPerSlot = defaultItemsPerSlot
	}
	if len(items) == 0 {
		return nil
	}
	initial := initialReduction(items)
	var levels []ZoomLevelBuild
	prevGroups := -1
	for k := 0; k < defaultMaxZoomLevels; k++ {
		reduction := initial * uint32(math.Pow(4, float64(k)))
		records := sweepZoomLevel(items, reduction, pool)
		groups := groupZoomRecords(records, itemsPerSlot)
		if prevGroups != -1 && len(groups) >= prevGroups {
			logrus.WithFields(logrus.Fields{"level": k, "reduction": reduction}).
				Debug("zoom level did not shrink the block count, stopping pyramid early")
			break
		}
		levels = append(levels, ZoomLevelBuild{Reduction: reduction, Groups: groups})
		prevGroups = len(groups)
		if len(groups) <= 1 {
			break
		}
	}
	return levels
}

// initialReduction estimates the starting reduction factor from total base
// coverage over item count (spec.md §4.6 step 1).
func initialReduction(items []ZoomSourceItem) uint32 {
	var sum uint64
	for _, it := range items {
		sum += uint64(it.End - it.Start)
	}
	mean := sum / uint64(len(items))
	if mean < 1 {
		mean = 1
	}
	return uint32(10 * mean)
}

// sweepZoomLevel walks items in interval order, accumulating a moving
// window bin [chromIx, binStart, binStart+reduction) per chromosome and
// emitting one ZoomRecord each time the window advances past the item
// stream (spec.md §4.6 step 2).
func sweepZoomLevel(items []ZoomSourceItem, reduction uint32, pool threadpool.ThreadPool) []ZoomRecord {
	byChrom := groupByChrom(items)
	chroms := make([]uint32, 0, len(byChrom))
	for c := range byChrom {
		chroms = append(chroms, c)
	}
	sort.Slice(chroms, func(i, j int) bool { return chroms[i] < chroms[j] })

	results := make([][]ZoomRecord, len(chroms))
	pool.RangeJob(0, len(chroms), func(i int, pool threadpool.ThreadPool, erf func() error) error {
		results[i] = sweepChromosome(chroms[i], byChrom[chroms[i]], reduction)
		return nil
	})
	var out []ZoomRecord
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

func groupByChrom(items []ZoomSourceItem) map[uint32][]ZoomSourceItem {
	out := make(map[uint32][]ZoomSourceItem)
	for _, it := range items {
		out[it.ChromIx] = append(out[it.ChromIx], it)
	}
	return out
}

func sweepChromosome(chromIx uint32, items []ZoomSourceItem, reduction uint32) []ZoomRecord {
	if len(items) == 0 {
		return nil
	}
	var out []ZoomRecord
	binStart := items[0].Start - items[0].Start%reduction
	acc := NewBigSummary()
	edge := 0
	flush := func(start, end uint32) {
		if !acc.Empty() {
			out = append(out, ZoomRecord{ChromIx: chromIx, Start: start, End: end, Summary: acc})
		}
		acc = NewBigSummary()
	}
	for {
		binEnd := binStart + reduction
		for i := edge; i < len(items); i++ {
			it := items[i]
			if it.Start >= binEnd {
				break
			}
			isect := intersectionLen(it.Start, it.End, binStart, binEnd)
			if isect == 0 {
				continue
			}
			acc.Update(it.Value, float64(isect))
		}
		flush(binStart, binEnd)
		for edge < len(items) && items[edge].End <= binEnd {
			edge++
		}
		if edge >= len(items) {
			break
		}
		binStart = binEnd
	}
	return out
}

// groupZoomRecords buckets records into itemsPerSlot-sized groups,
// mirroring BbiSequenceSplitter's chunking, but never letting a group
// cross a chromosome boundary, since every data block (zoom or unzoomed)
// shares one chromIx (spec.md §4.5).
func groupZoomRecords(records []ZoomRecord, itemsPerSlot uint32) [][]ZoomRecord {
	var out [][]ZoomRecord
	i := 0
	for i < len(records) {
		end := i + int(itemsPerSlot)
		if end > len(records) {
			end = len(records)
		}
		for j := i + 1; j < end; j++ {
			if records[j].ChromIx != records[i].ChromIx {
				end = j
				break
			}
		}
		out = append(out, records[i:end])
		i = end
	}
	return out
}

/* zoom block codec
 * -------------------------------------------------------------------------- */

// zoomRecordSize is the on-disk size of one zoom record: chromIx, start,
// end, validCount (u32 each), then minVal/maxVal/sumData/sumSquares (f32
// each) — the standard 32-byte bigWig zoom summary layout.
const zoomRecordSize = 32

// EncodeZoomBlock packs records, which must all share ChromIx, into one
// zoom data block.
func EncodeZoomBlock(records []ZoomRecord, order ByteOrder) ([]byte, error) {
	var buf bytes.Buffer
	for _, r := range records {
		if err := order.WriteU32(&buf, r.ChromIx); err != nil {
			return nil, err
		}
		if err := order.WriteU32(&buf, r.Start); err != nil {
			return nil, err
		}
		if err := order.WriteU32(&buf, r.End); err != nil {
			return nil, err
		}
		if err := order.WriteU32(&buf, uint32(r.Summary.ValidCount)); err != nil {
			return nil, err
		}
		if err := order.WriteF32(&buf, float32(r.Summary.MinVal)); err != nil {
			return nil, err
		}
		if err := order.WriteF32(&buf, float32(r.Summary.MaxVal)); err != nil {
			return nil, err
		}
		if err := order.WriteF32(&buf, float32(r.Summary.SumData)); err != nil {
			return nil, err
		}
		if err := order.WriteF32(&buf, float32(r.Summary.SumSquares)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeZoomBlock is EncodeZoomBlock's inverse.
func DecodeZoomBlock(buf []byte, order ByteOrder) ([]ZoomRecord, error) {
	if len(buf)%zoomRecordSize != 0 {
		return nil, newError(CorruptIndex, "zoom block length", 0, nil)
	}
	r := bytes.NewReader(buf)
	var out []ZoomRecord
	for r.Len() > 0 {
		var rec ZoomRecord
		var err error
		if rec.ChromIx, err = order.ReadU32(r); err != nil {
			return nil, err
		}
		if rec.Start, err = order.ReadU32(r); err != nil {
			return nil, err
		}
		if rec.End, err = order.ReadU32(r); err != nil {
			return nil, err
		}
		count, err := order.ReadU32(r)
		if err != nil {
			return nil, err
		}
		rec.Summary.ValidCount = float64(count)
		minVal, err := order.ReadF32(r)
		if err != nil {
			return nil, err
		}
		maxVal, err := order.ReadF32(r)
		if err != nil {
			return nil, err
		}
		sumData, err := order.ReadF32(r)
		if err != nil {
			return nil, err
		}
		sumSquares, err := order.ReadF32(r)
		if err != nil {
			return nil, err
		}
		rec.Summary.MinVal = float64(minVal)
		rec.Summary.MaxVal = float64(maxVal)
		rec.Summary.SumData = float64(sumData)
		rec.Summary.SumSquares = float64(sumSquares)
		out = append(out, rec)
	}
	return out, nil
}
