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

// WIG data-block codec (spec.md §3, §4.5), grounded on bbi.go's
// BbiDataHeader/BbiBlockReader/BbiBlockWriter: a 24-byte header followed by
// count fixed- or variable-width records. WigSection is a closed tagged
// union (fixedStep | variableStep | bedGraph), mirroring track_wig.go's
// section vocabulary.

import (
	"bytes"
	"fmt"
)

const (
	wigTypeBedGraph    uint8 = 1
	wigTypeVariableStep uint8 = 2
	wigTypeFixedStep   uint8 = 3
)

/* -------------------------------------------------------------------------- */

// wigBlockHeader is the 24-byte prefix of every WIG data block.
type wigBlockHeader struct {
	ChromIx   uint32
	Start     uint32
	End       uint32
	Step      uint32
	Span      uint32
	Type      uint8
	Reserved  uint8
	ItemCount uint16
}

func readWigBlockHeader(r *bytes.Reader, order ByteOrder) (wigBlockHeader, error) {
	var h wigBlockHeader
	var err error
	if h.ChromIx, err = order.ReadU32(r); err != nil {
		return h, err
	}
	if h.Start, err = order.ReadU32(r); err != nil {
		return h, err
	}
	if h.End, err = order.ReadU32(r); err != nil {
		return h, err
	}
	if h.Step, err = order.ReadU32(r); err != nil {
		return h, err
	}
	if h.Span, err = order.ReadU32(r); err != nil {
		return h, err
	}
	if h.Type, err = order.ReadU8(r); err != nil {
		return h, err
	}
	if h.Reserved, err = order.ReadU8(r); err != nil {
		return h, err
	}
	if h.ItemCount, err = order.ReadU16(r); err != nil {
		return h, err
	}
	return h, nil
}

func writeWigBlockHeader(w *bytes.Buffer, order ByteOrder, h wigBlockHeader) error {
	if err := order.WriteU32(w, h.ChromIx); err != nil {
		return err
	}
	if err := order.WriteU32(w, h.Start); err != nil {
		return err
	}
	if err := order.WriteU32(w, h.End); err != nil {
		return err
	}
	if err := order.WriteU32(w, h.Step); err != nil {
		return err
	}
	if err := order.WriteU32(w, h.Span); err != nil {
		return err
	}
	if err := order.WriteU8(w, h.Type); err != nil {
		return err
	}
	if err := order.WriteU8(w, h.Reserved); err != nil {
		return err
	}
	return order.WriteU16(w, h.ItemCount)
}

/* -------------------------------------------------------------------------- */

// WigPoint is one (interval, value) sample decoded from a WIG block,
// regardless of which section variant produced it.
type WigPoint struct {
	Start uint32
	End   uint32
	Value float32
}

// VariableStepSection holds step-irregular samples: positions strictly
// ascending, each covering [pos, pos+span) (spec.md §3).
type VariableStepSection struct {
	Chrom     string
	ChromIx   uint32
	Span      uint32
	Positions []uint32
	Values    []float32
}

// equals compares two sections field-by-field; kept for symmetry with
// FixedStepSection.equals, which this reimplementation gets right.
func (s VariableStepSection) equals(o VariableStepSection) bool {
	if s.ChromIx != o.ChromIx || s.Span != o.Span || len(s.Positions) != len(o.Positions) {
		return false
	}
	for i := range s.Positions {
		if s.Positions[i] != o.Positions[i] || s.Values[i] != o.Values[i] {
			return false
		}
	}
	return true
}

// FixedStepSection holds step-regular samples: the i-th interval is
// [start+i*step, start+i*step+span) (spec.md §3).
type FixedStepSection struct {
	Chrom   string
	ChromIx uint32
	Start   uint32
	Step    uint32
	Span    uint32
	Values  []float32
}

// equals compares start against other.start, not against itself — the
// source this is ported from compares start==start, a self-comparison bug
// (spec.md §9 Open Questions); this reimplementation fixes it.
func (s FixedStepSection) equals(o FixedStepSection) bool {
	if s.ChromIx != o.ChromIx || s.Start != o.Start || s.Step != o.Step || s.Span != o.Span {
		return false
	}
	if len(s.Values) != len(o.Values) {
		return false
	}
	for i := range s.Values {
		if s.Values[i] != o.Values[i] {
			return false
		}
	}
	return true
}

// BedGraphSection is read-only within WIG: the writer never emits it
// (spec.md §3), but readers must decode it when encountered.
type BedGraphSection struct {
	Chrom   string
	ChromIx uint32
	Ranges  []WigPoint
}

/* decode
 * -------------------------------------------------------------------------- */

// DecodeWigBlock parses a decompressed WIG data block into the points that
// satisfy the query, applying containment or overlap filtering per
// spec.md §4.5. For fixed-step blocks whose on-disk start predates qStart,
// the effective start is advanced to the first on-grid position so that
// every emitted interval lies within [qStart, qEnd).
func DecodeWigBlock(buf []byte, order ByteOrder, chromIx, qStart, qEnd uint32, overlaps bool) ([]WigPoint, error) {
	r := bytes.NewReader(buf)
	h, err := readWigBlockHeader(r, order)
	if err != nil {
		return nil, newError(CorruptIndex, "wig block header", 0, err)
	}
	if h.ChromIx != chromIx {
		return nil, nil
	}
	switch h.Type {
	case wigTypeVariableStep:
		return decodeVariableStep(r, order, h, qStart, qEnd, overlaps)
	case wigTypeFixedStep:
		return decodeFixedStep(r, order, h, qStart, qEnd, overlaps)
	case wigTypeBedGraph:
		return decodeBedGraph(r, order, h, qStart, qEnd, overlaps)
	default:
		return nil, newError(UnsupportedSection, fmt.Sprintf("wig block type %d", h.Type), 0, nil)
	}
}

func matches(start, end, qStart, qEnd uint32, overlaps bool) bool {
	if overlaps {
		return start < qEnd && end > qStart
	}
	return start >= qStart && end <= qEnd
}

func decodeVariableStep(r *bytes.Reader, order ByteOrder, h wigBlockHeader, qStart, qEnd uint32, overlaps bool) ([]WigPoint, error) {
	var out []WigPoint
	for i := 0; i < int(h.ItemCount); i++ {
		pos, err := order.ReadU32(r)
		if err != nil {
			return nil, newError(CorruptIndex, "variableStep pos", 0, err)
		}
		val, err := order.ReadF32(r)
		if err != nil {
			return nil, newError(CorruptIndex, "variableStep value", 0, err)
		}
		end := pos + h.Span
		if matches(pos, end, qStart, qEnd, overlaps) {
			out = append(out, WigPoint{Start: pos, End: end, Value: val})
		}
	}
	return out, nil
}

func decodeFixedStep(r *bytes.Reader, order ByteOrder, h wigBlockHeader, qStart, qEnd uint32, overlaps bool) ([]WigPoint, error) {
	// advance the effective start to the first on-grid position >= qStart,
	// so every emitted interval falls inside [qStart, qEnd) (spec.md §4.5).
	gridStart := h.Start
	if h.Step > 0 && gridStart < qStart {
		behind := qStart - gridStart
		steps := (behind + h.Step - 1) / h.Step
		gridStart += steps * h.Step
	}
	var out []WigPoint
	pos := h.Start
	for i := 0; i < int(h.ItemCount); i++ {
		val, err := order.ReadF32(r)
		if err != nil {
			return nil, newError(CorruptIndex, "fixedStep value", 0, err)
		}
		end := pos + h.Span
		if pos >= gridStart && matches(pos, end, qStart, qEnd, overlaps) {
			out = append(out, WigPoint{Start: pos, End: end, Value: val})
		}
		pos += h.Step
	}
	return out, nil
}

func decodeBedGraph(r *bytes.Reader, order ByteOrder, h wigBlockHeader, qStart, qEnd uint32, overlaps bool) ([]WigPoint, error) {
	var out []WigPoint
	for i := 0; i < int(h.ItemCount); i++ {
		start, err := order.ReadU32(r)
		if err != nil {
			return nil, newError(CorruptIndex, "bedGraph start", 0, err)
		}
		end, err := order.ReadU32(r)
		if err != nil {
			return nil, newError(CorruptIndex, "bedGraph end", 0, err)
		}
		val, err := order.ReadF32(r)
		if err != nil {
			return nil, newError(CorruptIndex, "bedGraph value", 0, err)
		}
		if matches(start, end, qStart, qEnd, overlaps) {
			out = append(out, WigPoint{Start: start, End: end, Value: val})
		}
	}
	return out, nil
}

/* encode
 * -------------------------------------------------------------------------- */

// EncodeVariableStepBlock packs a VariableStepSection's samples (or a
// sub-range of them) into one data block.
func EncodeVariableStepBlock(chromIx, start, end uint32, span uint32, positions []uint32, values []float32, order ByteOrder) ([]byte, error) {
	if len(positions) != len(values) {
		return nil, fmt.Errorf("wig: positions/values length mismatch")
	}
	var buf bytes.Buffer
	h := wigBlockHeader{ChromIx: chromIx, Start: start, End: end, Step: 0, Span: span, Type: wigTypeVariableStep, ItemCount: uint16(len(positions))}
	if err := writeWigBlockHeader(&buf, order, h); err != nil {
		return nil, err
	}
	for i := range positions {
		if err := order.WriteU32(&buf, positions[i]); err != nil {
			return nil, err
		}
		if err := order.WriteF32(&buf, values[i]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// EncodeFixedStepBlock packs a FixedStepSection's samples into one data
// block.
func EncodeFixedStepBlock(chromIx, start, step, span uint32, values []float32, order ByteOrder) ([]byte, error) {
	var buf bytes.Buffer
	end := start
	if len(values) > 0 {
		end = start + uint32(len(values)-1)*step + span
	}
	h := wigBlockHeader{ChromIx: chromIx, Start: start, End: end, Step: step, Span: span, Type: wigTypeFixedStep, ItemCount: uint16(len(values))}
	if err := writeWigBlockHeader(&buf, order, h); err != nil {
		return nil, err
	}
	for _, v := range values {
		if err := order.WriteF32(&buf, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// EncodeBedGraphBlock always fails: the writer never emits bedGraph blocks
// into a BigWIG file (spec.md §3, §4.5); only the decoder handles them.
func EncodeBedGraphBlock(chromIx uint32, ranges []WigPoint, order ByteOrder) ([]byte, error) {
	return nil, newError(UnsupportedSection, "bedGraph write", 0, nil)
}
