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
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// deflateCodec wraps compress/zlib, exactly as the teacher's
// compressSlice/uncompressSlice in bbi.go did — DEFLATE is the format's
// baseline codec since version 3 and no pack example supplies an
// alternative implementation worth preferring over the standard library's.
type deflateCodec struct{}

func (deflateCodec) Compress(dst, src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("compress: deflate writer: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("compress: deflate write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress: deflate close: %w", err)
	}
	return append(dst[:0], buf.Bytes()...), nil
}

func (deflateCodec) Decompress(dst, src []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("compress: deflate reader: %w", err)
	}
	defer r.Close()

	buf := bytes.NewBuffer(dst[:0])
	if _, err := io.Copy(buf, r); err != nil {
		return nil, fmt.Errorf("compress: deflate read: %w", err)
	}
	return buf.Bytes(), nil
}
