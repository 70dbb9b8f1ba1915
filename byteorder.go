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

// Ordered, byte-exact primitive I/O shared by every on-disk structure (header,
// B+ tree, R+ tree, data blocks). Byte order is detected once from the
// format's magic number and then threaded explicitly instead of being
// hardcoded, so the same code path reads files written on either endianness.

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

/* -------------------------------------------------------------------------- */

// ByteOrder pairs a concrete binary.ByteOrder with the primitives the format
// needs on top of it (NUL-terminated and fixed-width padded strings).
type ByteOrder struct {
	order binary.ByteOrder
}

func LittleEndian() ByteOrder { return ByteOrder{binary.LittleEndian} }
func BigEndian() ByteOrder    { return ByteOrder{binary.BigEndian} }

func (o ByteOrder) Raw() binary.ByteOrder { return o.order }

func (o ByteOrder) String() string {
	if o.order == binary.BigEndian {
		return "big-endian"
	}
	return "little-endian"
}

/* -------------------------------------------------------------------------- */

// DetectOrder reads a 4-byte magic candidate from r and compares it against
// magic interpreted as big-endian; if that fails, the bytes are reversed and
// compared again. This is the "guess(magic)" probe from the jbb-big reference
// implementation, generalized to binary.ByteOrder instead of a mutable flag.
func DetectOrder(r io.Reader, magic uint32) (ByteOrder, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return ByteOrder{}, newError(IoError, "magic", 0, err)
	}
	if binary.BigEndian.Uint32(b[:]) == magic {
		return BigEndian(), nil
	}
	if binary.LittleEndian.Uint32(b[:]) == magic {
		return LittleEndian(), nil
	}
	return ByteOrder{}, newError(BadSignature, fmt.Sprintf("magic %#08x", magic), 0, nil)
}

/* fixed-size reads
 * -------------------------------------------------------------------------- */

func (o ByteOrder) ReadU8(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (o ByteOrder) ReadU16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return o.order.Uint16(b[:]), nil
}

func (o ByteOrder) ReadI16(r io.Reader) (int16, error) {
	v, err := o.ReadU16(r)
	return int16(v), err
}

func (o ByteOrder) ReadU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return o.order.Uint32(b[:]), nil
}

func (o ByteOrder) ReadI32(r io.Reader) (int32, error) {
	v, err := o.ReadU32(r)
	return int32(v), err
}

func (o ByteOrder) ReadU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return o.order.Uint64(b[:]), nil
}

func (o ByteOrder) ReadI64(r io.Reader) (int64, error) {
	v, err := o.ReadU64(r)
	return int64(v), err
}

func (o ByteOrder) ReadF32(r io.Reader) (float32, error) {
	v, err := o.ReadU32(r)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (o ByteOrder) ReadF64(r io.Reader) (float64, error) {
	v, err := o.ReadU64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

/* fixed-size writes
 * -------------------------------------------------------------------------- */

func (o ByteOrder) WriteU8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func (o ByteOrder) WriteU16(w io.Writer, v uint16) error {
	var b [2]byte
	o.order.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func (o ByteOrder) WriteU32(w io.Writer, v uint32) error {
	var b [4]byte
	o.order.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func (o ByteOrder) WriteU64(w io.Writer, v uint64) error {
	var b [8]byte
	o.order.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func (o ByteOrder) WriteF32(w io.Writer, v float32) error {
	return o.WriteU32(w, math.Float32bits(v))
}

func (o ByteOrder) WriteF64(w io.Writer, v float64) error {
	return o.WriteU64(w, math.Float64bits(v))
}

/* strings
 * -------------------------------------------------------------------------- */

// ReadCString reads bytes until a NUL terminator or EOF and returns the
// string without the terminator.
func (o ByteOrder) ReadCString(r io.ByteReader) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && len(buf) > 0 {
				return string(buf), nil
			}
			return "", err
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
}

// WriteCString writes s followed by a single NUL byte.
func (o ByteOrder) WriteCString(w io.Writer, s string) error {
	if _, err := w.Write([]byte(s)); err != nil {
		return err
	}
	_, err := w.Write([]byte{0})
	return err
}

// ReadFixedString reads exactly size bytes and trims trailing NUL padding.
func (o ByteOrder) ReadFixedString(r io.Reader, size int) (string, error) {
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return string(b[:n]), nil
}

// WriteFixedString writes s zero-padded to size bytes; s must fit.
func (o ByteOrder) WriteFixedString(w io.Writer, s string, size int) error {
	if len(s) > size {
		return fmt.Errorf("WriteFixedString: %q exceeds field size %d", s, size)
	}
	b := make([]byte, size)
	copy(b, s)
	_, err := w.Write(b)
	return err
}
