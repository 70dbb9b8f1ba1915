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

package compress

import (
	"fmt"

	"github.com/klauspost/compress/s2"
)

// snappyCodec implements the "private Snappy extension" signaled by format
// version 5 (spec.md §4.2, §4.8). klauspost/compress/s2 is a drop-in,
// actively maintained decoder/encoder for the Snappy block format — the
// same dependency arloliu/mebo's compress package already pulls in for its
// own S2 codec — so block data written here round-trips through any
// standard Snappy decoder as well.
type snappyCodec struct{}

func (snappyCodec) Compress(dst, src []byte) ([]byte, error) {
	return s2.EncodeSnappy(dst[:0], src), nil
}

func (snappyCodec) Decompress(dst, src []byte) ([]byte, error) {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return nil, fmt.Errorf("compress: snappy decoded length: %w", err)
	}
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	out, err := s2.Decode(dst[:n], src)
	if err != nil {
		return nil, fmt.Errorf("compress: snappy decode: %w", err)
	}
	return out, nil
}
