// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package swf

import (
	"math/bits"

	"github.com/dotandev/abcmerge/internal/errors"
)

// bitReader reads the bit-packed records SWF uses for rectangles, matrices
// and shape edges, most significant bit first. Byte-sized reads first move
// to the next byte boundary. The first overrun sets err and every later
// read returns zero.
type bitReader struct {
	data []byte
	pos  int // bit offset
	base int // offset of data within the tag, for error positions
	err  error
}

func newBitReader(data []byte, base int) *bitReader {
	return &bitReader{data: data, base: base}
}

func (r *bitReader) fail(what string) {
	if r.err == nil {
		r.err = errors.Malformed(r.base+r.pos/8, "truncated %s", what)
	}
}

func (r *bitReader) ubits(n int) uint32 {
	if r.err != nil || n == 0 {
		return 0
	}
	if r.pos+n > len(r.data)*8 {
		r.fail("bit field")
		return 0
	}
	var v uint32
	for i := 0; i < n; i++ {
		b := r.data[(r.pos)/8] >> (7 - r.pos%8) & 1
		v = v<<1 | uint32(b)
		r.pos++
	}
	return v
}

func (r *bitReader) sbits(n int) int32 {
	v := r.ubits(n)
	if n == 0 || n == 32 {
		return int32(v)
	}
	if v&(1<<(n-1)) != 0 {
		v |= ^uint32(0) << n
	}
	return int32(v)
}

func (r *bitReader) flag() bool { return r.ubits(1) == 1 }

func (r *bitReader) align() {
	r.pos = (r.pos + 7) &^ 7
}

func (r *bitReader) u8() byte {
	r.align()
	return byte(r.ubits(8))
}

func (r *bitReader) u16() uint16 {
	lo := r.u8()
	hi := r.u8()
	return uint16(hi)<<8 | uint16(lo)
}

func (r *bitReader) skip(n int) {
	r.align()
	if r.err != nil {
		return
	}
	if r.pos/8+n > len(r.data) {
		r.fail("record")
		return
	}
	r.pos += n * 8
}

// cstring skips a NUL-terminated string.
func (r *bitReader) cstring() {
	for r.err == nil && r.u8() != 0 {
	}
}

// offset is the byte offset of the next aligned read.
func (r *bitReader) offset() int { return (r.pos + 7) / 8 }

// bitWriter packs bit fields most significant bit first.
type bitWriter struct {
	buf  []byte
	used int // bits used in the last byte; 0 means byte aligned
}

func (w *bitWriter) ubits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		if w.used == 0 {
			w.buf = append(w.buf, 0)
		}
		if v>>i&1 == 1 {
			w.buf[len(w.buf)-1] |= 1 << (7 - w.used)
		}
		w.used = (w.used + 1) % 8
	}
}

func (w *bitWriter) sbits(v int32, n int) {
	w.ubits(uint32(v)&(1<<n-1), n)
}

func (w *bitWriter) bytes() []byte { return w.buf }

// signedWidth is the number of bits needed to hold v as a signed field.
func signedWidth(v int32) int {
	if v < 0 {
		v = ^v
	}
	return bits.Len32(uint32(v)) + 1
}

// Rect is a rectangle in twips.
type Rect struct {
	XMin, XMax, YMin, YMax int32
}

func readRect(r *bitReader) Rect {
	r.align()
	n := int(r.ubits(5))
	rect := Rect{XMin: r.sbits(n), XMax: r.sbits(n), YMin: r.sbits(n), YMax: r.sbits(n)}
	r.align()
	return rect
}

func appendRect(dst []byte, rect Rect) []byte {
	n := 1
	for _, v := range []int32{rect.XMin, rect.XMax, rect.YMin, rect.YMax} {
		n = max(n, signedWidth(v))
	}
	var w bitWriter
	w.ubits(uint32(n), 5)
	w.sbits(rect.XMin, n)
	w.sbits(rect.XMax, n)
	w.sbits(rect.YMin, n)
	w.sbits(rect.YMax, n)
	return append(dst, w.bytes()...)
}

func skipMatrix(r *bitReader) {
	r.align()
	if r.flag() {
		n := int(r.ubits(5))
		r.ubits(2 * n)
	}
	if r.flag() {
		n := int(r.ubits(5))
		r.ubits(2 * n)
	}
	n := int(r.ubits(5))
	r.ubits(2 * n)
	r.align()
}

// skipColorTransform skips a CXFORM, or a CXFORMWITHALPHA when alpha is set.
func skipColorTransform(r *bitReader, alpha bool) {
	r.align()
	hasAdd := r.flag()
	hasMult := r.flag()
	n := int(r.ubits(4))
	terms := 3
	if alpha {
		terms = 4
	}
	if hasMult {
		r.ubits(terms * n)
	}
	if hasAdd {
		r.ubits(terms * n)
	}
	r.align()
}
