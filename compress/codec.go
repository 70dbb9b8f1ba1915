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

// Package compress implements the two block-compression codecs a BigWig or
// BigBED data section may use: DEFLATE (any format version >= 3) and Snappy
// (a private extension signaled by version 5). Both sit behind a shared
// Codec interface so the rest of the library never branches on algorithm.
package compress

import "fmt"

// Type identifies a block compression algorithm as recorded implicitly by
// the file's format version (spec.md §4.2, §6).
type Type int

const (
	None Type = iota
	Deflate
	Snappy
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Deflate:
		return "deflate"
	case Snappy:
		return "snappy"
	default:
		return "unknown"
	}
}

// Codec compresses and decompresses whole blocks. Implementations must be
// safe for concurrent use by distinct goroutines as long as each call uses
// its own destination buffer (mirrors the per-thread scratch policy in
// spec.md §4.2/§5).
type Codec interface {
	Compress(dst, src []byte) ([]byte, error)
	Decompress(dst, src []byte) ([]byte, error)
}

// New returns the Codec for t.
func New(t Type) (Codec, error) {
	switch t {
	case None:
		return noopCodec{}, nil
	case Deflate:
		return deflateCodec{}, nil
	case Snappy:
		return snappyCodec{}, nil
	default:
		return nil, fmt.Errorf("compress: unknown codec type %v", t)
	}
}

type noopCodec struct{}

func (noopCodec) Compress(dst, src []byte) ([]byte, error)   { return append(dst[:0], src...), nil }
func (noopCodec) Decompress(dst, src []byte) ([]byte, error) { return append(dst[:0], src...), nil }
