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

// BED data-block codec (spec.md §3, §4.5). A block is a stream of entries
// sharing one chromIx; the extended-field packer/unpacker mirrors the
// column order of granges_bed.go's WriteBed9/WriteBed12 text writers, but
// applied to the binary "rest" cstring instead of a tab-separated line.

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

/* -------------------------------------------------------------------------- */

// BedEntry is one BigBED record: a chromosome-scoped interval plus whatever
// extra tab-separated fields followed columns 1-3 in the source BED line.
type BedEntry struct {
	Chrom string
	Start uint32
	End   uint32
	Rest  string
}

// decodedBedEntry is a BedEntry still carrying its numeric chromIx, used
// while a block is being read before chromIx is resolved to a name.
type decodedBedEntry struct {
	ChromIx uint32
	Start   uint32
	End     uint32
	Rest    string
}

/* decode
 * -------------------------------------------------------------------------- */

// DecodeBedBlock parses a decompressed BED data block. overlaps selects
// between containment filtering (entries fully inside [qStart, qEnd)) and
// intersection filtering; chromIx restricts to one chromosome, matching the
// single-chromIx invariant blocks are built under (spec.md §4.5).
func DecodeBedBlock(buf []byte, order ByteOrder, chromIx, qStart, qEnd uint32, overlaps bool) ([]decodedBedEntry, error) {
	r := bytes.NewReader(buf)
	var out []decodedBedEntry
	for r.Len() > 0 {
		cix, err := order.ReadU32(r)
		if err != nil {
			return nil, newError(CorruptIndex, "bed block chromIx", 0, err)
		}
		start, err := order.ReadU32(r)
		if err != nil {
			return nil, newError(CorruptIndex, "bed block start", 0, err)
		}
		end, err := order.ReadU32(r)
		if err != nil {
			return nil, newError(CorruptIndex, "bed block end", 0, err)
		}
		rest, err := order.ReadCString(r)
		if err != nil {
			return nil, newError(CorruptIndex, "bed block rest", 0, err)
		}
		if cix != chromIx {
			continue
		}
		match := false
		if overlaps {
			match = start < qEnd && end > qStart
		} else {
			match = start >= qStart && end <= qEnd
		}
		if match {
			out = append(out, decodedBedEntry{ChromIx: cix, Start: start, End: end, Rest: rest})
		}
	}
	return out, nil
}

/* encode
 * -------------------------------------------------------------------------- */

// EncodeBedBlock packs entries, which must all share chromIx, into one
// data block in the on-disk (chromIx, start, end, rest-cstring) layout.
func EncodeBedBlock(entries []decodedBedEntry, order ByteOrder) ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range entries {
		if err := order.WriteU32(&buf, e.ChromIx); err != nil {
			return nil, err
		}
		if err := order.WriteU32(&buf, e.Start); err != nil {
			return nil, err
		}
		if err := order.WriteU32(&buf, e.End); err != nil {
			return nil, err
		}
		if err := order.WriteCString(&buf, e.Rest); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

/* extended fields
 * -------------------------------------------------------------------------- */

// ExtendedBedFields is the decomposition of a BED12 "rest" tail into its
// named optional columns, in UCSC column order (spec.md §3).
type ExtendedBedFields struct {
	Name        string
	Score       float64
	Strand      byte
	ThickStart  uint32
	ThickEnd    uint32
	ItemRgb     string
	BlockCount  int
	BlockSizes  []int
	BlockStarts []int
}

// ParseExtendedBedFields decomposes rest (tab-separated, as it appears
// after columns 1-3) following the name/score/strand/thickStart/thickEnd/
// itemRgb/blockCount/blockSizes/blockStarts order (granges_bed.go's
// WriteBed9/WriteBed12 column layout).
func ParseExtendedBedFields(rest string) (ExtendedBedFields, error) {
	var f ExtendedBedFields
	if rest == "" {
		return f, nil
	}
	cols := strings.Split(rest, "\t")
	get := func(i int) (string, bool) {
		if i < len(cols) {
			return cols[i], true
		}
		return "", false
	}
	if v, ok := get(0); ok {
		f.Name = v
	}
	if v, ok := get(1); ok && v != "" && v != "." {
		s, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, fmt.Errorf("bed: score field %q: %w", v, err)
		}
		f.Score = s
	}
	if v, ok := get(2); ok && len(v) == 1 && v != "." {
		f.Strand = v[0]
	} else {
		f.Strand = '*'
	}
	if v, ok := get(3); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return f, fmt.Errorf("bed: thickStart field %q: %w", v, err)
		}
		f.ThickStart = uint32(n)
	}
	if v, ok := get(4); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return f, fmt.Errorf("bed: thickEnd field %q: %w", v, err)
		}
		f.ThickEnd = uint32(n)
	}
	if v, ok := get(5); ok {
		f.ItemRgb = v
	}
	if v, ok := get(6); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("bed: blockCount field %q: %w", v, err)
		}
		f.BlockCount = n
	}
	if v, ok := get(7); ok && v != "" {
		sizes, err := parseCommaInts(v)
		if err != nil {
			return f, fmt.Errorf("bed: blockSizes: %w", err)
		}
		f.BlockSizes = sizes
	}
	if v, ok := get(8); ok && v != "" {
		starts, err := parseCommaInts(v)
		if err != nil {
			return f, fmt.Errorf("bed: blockStarts: %w", err)
		}
		f.BlockStarts = starts
	}
	return f, nil
}

// FormatExtendedBedFields is ParseExtendedBedFields's inverse, producing
// the tab-separated rest tail. The name, score, strand, thickStart,
// thickEnd and itemRgb columns are always written (empty ones as "0", "*"
// or "0,0,0"); the blockCount/blockSizes/blockStarts columns are written
// only when f.BlockCount > 0.
func FormatExtendedBedFields(f ExtendedBedFields) string {
	cols := []string{f.Name}
	if f.Score != 0 {
		cols = append(cols, strconv.FormatFloat(f.Score, 'f', -1, 64))
	} else {
		cols = append(cols, "0")
	}
	strand := f.Strand
	if strand == 0 {
		strand = '*'
	}
	cols = append(cols, string(strand))
	cols = append(cols, strconv.FormatUint(uint64(f.ThickStart), 10))
	cols = append(cols, strconv.FormatUint(uint64(f.ThickEnd), 10))
	if f.ItemRgb != "" {
		cols = append(cols, f.ItemRgb)
	} else {
		cols = append(cols, "0,0,0")
	}
	if f.BlockCount > 0 {
		cols = append(cols, strconv.Itoa(f.BlockCount))
		cols = append(cols, formatCommaInts(f.BlockSizes))
		cols = append(cols, formatCommaInts(f.BlockStarts))
	}
	return strings.Join(cols, "\t")
}

func parseCommaInts(s string) ([]int, error) {
	s = strings.TrimSuffix(s, ",")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func formatCommaInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",") + ","
}
