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
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("acgtACGTnN"), 500)

	for _, typ := range []Type{None, Deflate, Snappy} {
		codec, err := New(typ)
		if err != nil {
			t.Fatalf("%v: %v", typ, err)
		}
		compressed, err := codec.Compress(nil, data)
		if err != nil {
			t.Fatalf("%v: compress: %v", typ, err)
		}
		decompressed, err := codec.Decompress(nil, compressed)
		if err != nil {
			t.Fatalf("%v: decompress: %v", typ, err)
		}
		if !bytes.Equal(decompressed, data) {
			t.Fatalf("%v: round-trip mismatch", typ)
		}
	}
}

func TestNewUnknownCodec(t *testing.T) {
	if _, err := New(Type(99)); err == nil {
		t.Fatal("expected error for unknown codec type")
	}
}
