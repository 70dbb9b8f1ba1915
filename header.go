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

// The fixed 64-byte BigFile header, its zoom-level descriptors, and the
// 40-byte total-summary block (spec.md §4.8, §6). Grounded on bbi.go's
// BbiHeader/BbiHeaderZoom: offsets reserved during a first linear write
// pass are remembered as file positions (PtrXxx fields below) and
// back-patched once their real values are known, via the same
// fileWriteAt-style absolute-offset write the teacher uses.

import "io"

const (
	bigWigMagic = 0x888FFC26
	bigBedMagic = 0x8789F2EB
)

/* -------------------------------------------------------------------------- */

// Header is the first 64 bytes of a BigFile, plus zoom descriptors and an
// optional total-summary block that together make up the full preamble
// (spec.md §4.8).
type Header struct {
	Magic               uint32
	Version             uint16
	ZoomLevelCount      uint16
	ChromTreeOffset     uint64
	UnzoomedDataOffset  uint64
	UnzoomedIndexOffset uint64
	FieldCount          uint16
	DefinedFieldCount   uint16
	AsOffset            uint64
	TotalSummaryOffset  uint64
	UncompressBufSize   uint32
	ExtendedHeaderOffset uint64

	Zooms   []ZoomHeader
	Summary BigSummary

	// file positions reserved during Write, remembered so later stages can
	// patch in values not known until the rest of the file has been laid
	// out (chrom tree offset, data offset, index offset, summary offset,
	// uncompressBufSize).
	ptrChromTreeOffset     int64
	ptrUnzoomedDataOffset  int64
	ptrUnzoomedIndexOffset int64
	ptrTotalSummaryOffset  int64
	ptrUncompressBufSize   int64
	ptrExtendedHeaderOffset int64
}

// ZoomHeader is one 32-byte zoom descriptor following the header.
type ZoomHeader struct {
	ReductionLevel uint32
	Reserved       uint32
	DataOffset     uint64
	IndexOffset    uint64

	ptrDataOffset  int64
	ptrIndexOffset int64
}

/* write
 * -------------------------------------------------------------------------- */

// Write emits the 64-byte header and zoomLevelCount zoom descriptors,
// remembering the file position of every field this package back-patches
// later in the write flow (spec.md §4.8's staged write).
func (h *Header) Write(w io.WriteSeeker, order ByteOrder) error {
	if err := order.WriteU32(w, h.Magic); err != nil {
		return err
	}
	if err := order.WriteU16(w, h.Version); err != nil {
		return err
	}
	if err := order.WriteU16(w, h.ZoomLevelCount); err != nil {
		return err
	}
	if err := rememberAndWriteU64(w, order, &h.ptrChromTreeOffset, h.ChromTreeOffset); err != nil {
		return err
	}
	if err := rememberAndWriteU64(w, order, &h.ptrUnzoomedDataOffset, h.UnzoomedDataOffset); err != nil {
		return err
	}
	if err := rememberAndWriteU64(w, order, &h.ptrUnzoomedIndexOffset, h.UnzoomedIndexOffset); err != nil {
		return err
	}
	if err := order.WriteU16(w, h.FieldCount); err != nil {
		return err
	}
	if err := order.WriteU16(w, h.DefinedFieldCount); err != nil {
		return err
	}
	// AsOffset addresses an AutoSQL schema block; AutoSQL parsing is out of
	// scope here, so it is always written as 0 and never back-patched.
	if err := order.WriteU64(w, h.AsOffset); err != nil {
		return err
	}
	if err := rememberAndWriteU64(w, order, &h.ptrTotalSummaryOffset, h.TotalSummaryOffset); err != nil {
		return err
	}
	if err := rememberAndWriteU32(w, order, &h.ptrUncompressBufSize, h.UncompressBufSize); err != nil {
		return err
	}
	if err := rememberAndWriteU64(w, order, &h.ptrExtendedHeaderOffset, h.ExtendedHeaderOffset); err != nil {
		return err
	}
	for i := range h.Zooms {
		if err := h.Zooms[i].write(w, order); err != nil {
			return err
		}
	}
	return nil
}

func (z *ZoomHeader) write(w io.WriteSeeker, order ByteOrder) error {
	if err := order.WriteU32(w, z.ReductionLevel); err != nil {
		return err
	}
	if err := order.WriteU32(w, z.Reserved); err != nil {
		return err
	}
	if err := rememberAndWriteU64(w, order, &z.ptrDataOffset, z.DataOffset); err != nil {
		return err
	}
	return rememberAndWriteU64(w, order, &z.ptrIndexOffset, z.IndexOffset)
}

func rememberAndWriteU64(w io.WriteSeeker, order ByteOrder, ptr *int64, v uint64) error {
	pos, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	*ptr = pos
	return order.WriteU64(w, v)
}

func rememberAndWriteU32(w io.WriteSeeker, order ByteOrder, ptr *int64, v uint32) error {
	pos, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	*ptr = pos
	return order.WriteU32(w, v)
}

// PatchChromTreeOffset back-patches the B+ tree's file offset once it has
// been written.
func (h *Header) PatchChromTreeOffset(w io.WriteSeeker, order ByteOrder, offset uint64) error {
	h.ChromTreeOffset = offset
	return patchU64At(w, order, h.ptrChromTreeOffset, offset)
}

// PatchUnzoomedDataOffset back-patches the unzoomed data section's offset.
func (h *Header) PatchUnzoomedDataOffset(w io.WriteSeeker, order ByteOrder, offset uint64) error {
	h.UnzoomedDataOffset = offset
	return patchU64At(w, order, h.ptrUnzoomedDataOffset, offset)
}

// PatchUnzoomedIndexOffset back-patches the unzoomed R+ tree's offset.
func (h *Header) PatchUnzoomedIndexOffset(w io.WriteSeeker, order ByteOrder, offset uint64) error {
	h.UnzoomedIndexOffset = offset
	return patchU64At(w, order, h.ptrUnzoomedIndexOffset, offset)
}

// PatchTotalSummaryOffset back-patches the total-summary block's offset
// and then writes the block itself at the writer's current position.
func (h *Header) PatchTotalSummaryOffset(w io.WriteSeeker, order ByteOrder) error {
	offset, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	h.TotalSummaryOffset = uint64(offset)
	if err := patchU64At(w, order, h.ptrTotalSummaryOffset, h.TotalSummaryOffset); err != nil {
		return err
	}
	if err := order.WriteU64(w, uint64(h.Summary.ValidCount)); err != nil {
		return err
	}
	if err := order.WriteF64(w, h.Summary.MinVal); err != nil {
		return err
	}
	if err := order.WriteF64(w, h.Summary.MaxVal); err != nil {
		return err
	}
	if err := order.WriteF64(w, h.Summary.SumData); err != nil {
		return err
	}
	return order.WriteF64(w, h.Summary.SumSquares)
}

// PatchUncompressBufSize back-patches the per-block scratch size once the
// largest block written is known.
func (h *Header) PatchUncompressBufSize(w io.WriteSeeker, order ByteOrder, size uint32) error {
	h.UncompressBufSize = size
	return patchU32At(w, order, h.ptrUncompressBufSize, size)
}

// PatchZoomOffsets back-patches one zoom level's data/index offsets.
func (h *Header) PatchZoomOffsets(w io.WriteSeeker, order ByteOrder, level int, dataOffset, indexOffset uint64) error {
	z := &h.Zooms[level]
	z.DataOffset, z.IndexOffset = dataOffset, indexOffset
	if err := patchU64At(w, order, z.ptrDataOffset, dataOffset); err != nil {
		return err
	}
	return patchU64At(w, order, z.ptrIndexOffset, indexOffset)
}

func patchU32At(w io.WriteSeeker, order ByteOrder, pos int64, v uint32) error {
	cur, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := w.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	if err := order.WriteU32(w, v); err != nil {
		return err
	}
	_, err = w.Seek(cur, io.SeekStart)
	return err
}

/* read
 * -------------------------------------------------------------------------- */

// ReadHeader detects byte order from magic, then parses the 64-byte header,
// zoom descriptors, and (if present) the total-summary block.
func ReadHeader(r io.ReadSeeker) (*Header, ByteOrder, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, ByteOrder{}, err
	}
	order, err := detectHeaderOrder(r, start)
	if err != nil {
		return nil, ByteOrder{}, err
	}
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return nil, ByteOrder{}, err
	}
	h := &Header{}
	if h.Magic, err = order.ReadU32(r); err != nil {
		return nil, order, err
	}
	if h.Version, err = order.ReadU16(r); err != nil {
		return nil, order, err
	}
	if h.ZoomLevelCount, err = order.ReadU16(r); err != nil {
		return nil, order, err
	}
	if h.ChromTreeOffset, err = order.ReadU64(r); err != nil {
		return nil, order, err
	}
	if h.UnzoomedDataOffset, err = order.ReadU64(r); err != nil {
		return nil, order, err
	}
	if h.UnzoomedIndexOffset, err = order.ReadU64(r); err != nil {
		return nil, order, err
	}
	if h.FieldCount, err = order.ReadU16(r); err != nil {
		return nil, order, err
	}
	if h.DefinedFieldCount, err = order.ReadU16(r); err != nil {
		return nil, order, err
	}
	if h.AsOffset, err = order.ReadU64(r); err != nil {
		return nil, order, err
	}
	if h.TotalSummaryOffset, err = order.ReadU64(r); err != nil {
		return nil, order, err
	}
	if h.UncompressBufSize, err = order.ReadU32(r); err != nil {
		return nil, order, err
	}
	if h.ExtendedHeaderOffset, err = order.ReadU64(r); err != nil {
		return nil, order, err
	}
	h.Zooms = make([]ZoomHeader, h.ZoomLevelCount)
	for i := range h.Zooms {
		if err := h.Zooms[i].read(r, order); err != nil {
			return nil, order, err
		}
	}
	if h.TotalSummaryOffset > 0 {
		if _, err := r.Seek(int64(h.TotalSummaryOffset), io.SeekStart); err != nil {
			return nil, order, err
		}
		count, err := order.ReadU64(r)
		if err != nil {
			return nil, order, err
		}
		h.Summary.ValidCount = float64(count)
		if h.Summary.MinVal, err = order.ReadF64(r); err != nil {
			return nil, order, err
		}
		if h.Summary.MaxVal, err = order.ReadF64(r); err != nil {
			return nil, order, err
		}
		if h.Summary.SumData, err = order.ReadF64(r); err != nil {
			return nil, order, err
		}
		if h.Summary.SumSquares, err = order.ReadF64(r); err != nil {
			return nil, order, err
		}
	}
	return h, order, nil
}

func (z *ZoomHeader) read(r io.Reader, order ByteOrder) error {
	var err error
	if z.ReductionLevel, err = order.ReadU32(r); err != nil {
		return err
	}
	if z.Reserved, err = order.ReadU32(r); err != nil {
		return err
	}
	if z.DataOffset, err = order.ReadU64(r); err != nil {
		return err
	}
	if z.IndexOffset, err = order.ReadU64(r); err != nil {
		return err
	}
	return nil
}

// detectHeaderOrder tries both magics against both endiannesses, since a
// BigFile may be either BigWIG or BigBED (spec.md §6).
func detectHeaderOrder(r io.ReadSeeker, start int64) (ByteOrder, error) {
	if order, err := DetectOrder(r, bigWigMagic); err == nil {
		return order, nil
	}
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return ByteOrder{}, err
	}
	if order, err := DetectOrder(r, bigBedMagic); err == nil {
		return order, nil
	}
	return ByteOrder{}, newError(BadSignature, "header magic", start, nil)
}

// DetermineFileType reports whether magic identifies a BigWIG or BigBED
// file, or returns ok=false for anything else (spec.md §4.8, §6).
func DetermineFileType(magic uint32) (kind string, ok bool) {
	switch magic {
	case bigWigMagic:
		return "bigWig", true
	case bigBedMagic:
		return "bigBed", true
	default:
		return "", false
	}
}

// DetermineFileTypeFrom peeks at source's first 4 bytes and restores its
// position, implementing spec.md §6's `determineFileType(source) →
// {BigBed, BigWig, null}` without fully parsing the header.
func DetermineFileTypeFrom(source io.ReadSeeker) (kind string, ok bool) {
	start, err := source.Seek(0, io.SeekCurrent)
	if err != nil {
		return "", false
	}
	defer source.Seek(start, io.SeekStart)

	order, err := detectHeaderOrder(source, start)
	if err != nil {
		return "", false
	}
	if _, err := source.Seek(start, io.SeekStart); err != nil {
		return "", false
	}
	magic, err := order.ReadU32(source)
	if err != nil {
		return "", false
	}
	return DetermineFileType(magic)
}
