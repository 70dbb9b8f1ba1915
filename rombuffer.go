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

// A read-only, randomly-addressable view over a file or URL (spec.md §4.2).
// RomBuffer seeks and reads through the wrapped ReadSeeker's own cursor; the
// compressed/uncompressed scratch arrays that make block decompression
// allocation-free live in romScratch, and WithThread decides per the chosen
// concurrency policy whether a clone gets its own scratch (spec.md §5).

import (
	"io"
	"sync"

	"github.com/yevshin/big/compress"
)

/* -------------------------------------------------------------------------- */

// romScratch holds the reusable compressed/uncompressed byte arrays for one
// logical reader. Arrays grow by 1.5x when a larger block is encountered, so
// steady-state decompression performs no further allocations.
type romScratch struct {
	compressed   []byte
	uncompressed []byte
}

func (s *romScratch) growCompressed(n int) []byte {
	s.compressed = growTo(s.compressed, n)
	return s.compressed[:n]
}

func growTo(buf []byte, n int) []byte {
	if cap(buf) >= n {
		return buf[:cap(buf)]
	}
	newCap := n
	if cap(buf)*3/2 > newCap {
		newCap = cap(buf) * 3 / 2
	}
	grown := make([]byte, newCap)
	return grown
}

/* -------------------------------------------------------------------------- */

// BufferPolicy selects how RomBuffer scratch is shared across goroutines,
// per spec.md §5: a RomBuffer's mutable scratch is never safe to share, but
// the underlying ReadSeeker may be.
type BufferPolicy int

const (
	// SingleThreaded performs no locking; the caller guarantees the
	// RomBuffer is used from one goroutine at a time. Fastest.
	SingleThreaded BufferPolicy = iota
	// PerThreadCopy hands out one independent view per thread, sharing the
	// underlying ReadSeeker but never the scratch arrays. Grounded on the
	// pbenner/threadpool per-thread-id indexing pattern (see
	// fetchLeafBlocks in bigfile.go).
	PerThreadCopy
	// Synchronized serializes all access to one RomBuffer with a mutex.
	Synchronized
)

/* -------------------------------------------------------------------------- */

type leafCacheEntry struct {
	offset uint64
	data   []byte
}

// RomBuffer is a seekable byte source with a cursor, lazy block
// decompression, and a single-entry cache for the last decompressed R+ tree
// leaf block (spec.md §4.2 "Caching").
type RomBuffer struct {
	r        io.ReadSeeker
	order    ByteOrder
	codec    compress.Codec
	policy   BufferPolicy
	scratch  *romScratch
	mu       *sync.Mutex
	lastLeaf *leafCacheEntry
}

// NewRomBuffer wraps r using codec for block decompression and order for
// primitive decoding. policy governs how scratch buffers are obtained when
// the buffer is cloned via WithThread.
func NewRomBuffer(r io.ReadSeeker, order ByteOrder, codec compress.Codec, policy BufferPolicy) *RomBuffer {
	buf := &RomBuffer{
		r:       r,
		order:   order,
		codec:   codec,
		policy:  policy,
		scratch: &romScratch{},
	}
	if policy == Synchronized {
		buf.mu = &sync.Mutex{}
	}
	return buf
}

// WithThread returns a RomBuffer for use by one more goroutine. Under
// PerThreadCopy it is a new RomBuffer sharing the underlying ReadSeeker but
// owning independent scratch, so goroutines never trample each other's
// decompression buffers; under SingleThreaded and Synchronized it is b
// itself (Synchronized guards that shared scratch with b's mutex).
func (b *RomBuffer) WithThread() *RomBuffer {
	switch b.policy {
	case SingleThreaded:
		return b
	case Synchronized:
		return b
	case PerThreadCopy:
		return &RomBuffer{
			r:       b.r,
			order:   b.order,
			codec:   b.codec,
			policy:  b.policy,
			scratch: &romScratch{},
		}
	default:
		return b
	}
}

// At seeks to offset and reads n raw bytes, decompressing them if
// uncompressBufSize indicates the section is compressed. The result must
// not be retained past the next call on the same RomBuffer.
func (b *RomBuffer) At(offset int64, n int, compressed bool) ([]byte, error) {
	if b.mu != nil {
		b.mu.Lock()
		defer b.mu.Unlock()
	}
	if _, err := b.r.Seek(offset, io.SeekStart); err != nil {
		return nil, newError(IoError, "seek", offset, err)
	}
	raw := b.scratch.growCompressed(n)
	if _, err := io.ReadFull(b.r, raw); err != nil {
		return nil, newError(IoError, "read", offset, err)
	}
	if !compressed {
		return raw, nil
	}
	out, err := b.codec.Decompress(b.scratch.uncompressed, raw)
	if err != nil {
		return nil, newError(DecompressionError, "block", offset, err)
	}
	b.scratch.uncompressed = out
	return out, nil
}

// AtLeaf is At specialized for R+ tree leaf data blocks: consecutive calls
// with the same offset skip re-decompression entirely.
func (b *RomBuffer) AtLeaf(offset uint64, n int, compressed bool) ([]byte, error) {
	if b.mu != nil {
		b.mu.Lock()
	}
	if b.lastLeaf != nil && b.lastLeaf.offset == offset {
		data := b.lastLeaf.data
		if b.mu != nil {
			b.mu.Unlock()
		}
		return data, nil
	}
	if b.mu != nil {
		b.mu.Unlock()
	}
	data, err := b.At(int64(offset), n, compressed)
	if err != nil {
		return nil, err
	}
	cached := append([]byte(nil), data...)
	if b.mu != nil {
		b.mu.Lock()
	}
	b.lastLeaf = &leafCacheEntry{offset: offset, data: cached}
	if b.mu != nil {
		b.mu.Unlock()
	}
	return cached, nil
}

// ReadAt reads a fixed-size value at an absolute offset without disturbing
// any cached cursor state, in the spirit of the teacher's fileReadAt.
func (b *RomBuffer) ReadAt(offset int64, fn func(io.Reader) error) error {
	if b.mu != nil {
		b.mu.Lock()
		defer b.mu.Unlock()
	}
	if _, err := b.r.Seek(offset, io.SeekStart); err != nil {
		return newError(IoError, "seek", offset, err)
	}
	return fn(b.r)
}

func (b *RomBuffer) Order() ByteOrder { return b.order }

// WritableAt is the write-path analogue of ReadAt, used to back-patch fixed
// offsets (header fields, R+ tree slot pointers) after they have been
// reserved in a linear write pass (spec.md §4.8 write flow).
func (b *RomBuffer) WritableAt(w io.WriteSeeker, offset int64, fn func(io.Writer) error) error {
	cur, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return newError(IoError, "tell", offset, err)
	}
	if _, err := w.Seek(offset, io.SeekStart); err != nil {
		return newError(IoError, "seek", offset, err)
	}
	if err := fn(w); err != nil {
		return err
	}
	if _, err := w.Seek(cur, io.SeekStart); err != nil {
		return newError(IoError, "seek", cur, err)
	}
	return nil
}

