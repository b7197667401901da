// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package abc

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Writer accumulates an encoded ABC region.
type Writer struct {
	buf []byte
}

func (w *Writer) Len() int { return len(w.buf) }
func (w *Writer) Bytes() []byte { return w.buf }
func (w *Writer) Reset() { w.buf = w.buf[:0] }

func (w *Writer) WriteU8(v byte) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteU16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *Writer) WriteU32(v uint32) {
	w.buf = appendU32(w.buf, v)
}

func (w *Writer) WriteS32(v int32) {
	w.buf = appendU32(w.buf, uint32(v))
}

const (
	minS24 = -1 << 23
	maxS24 = 1<<23 - 1
)

func (w *Writer) WriteS24(v int32) error {
	if v < minS24 || v > maxS24 {
		return fmt.Errorf("branch offset %d does not fit in 24 bits", v)
	}
	w.buf = append(w.buf, byte(v), byte(v>>8), byte(v>>16))
	return nil
}

// PatchS24 overwrites three bytes at pos with v.
func (w *Writer) PatchS24(pos int, v int32) error {
	if v < minS24 || v > maxS24 {
		return fmt.Errorf("branch offset %d does not fit in 24 bits", v)
	}
	w.buf[pos] = byte(v)
	w.buf[pos+1] = byte(v >> 8)
	w.buf[pos+2] = byte(v >> 16)
	return nil
}

func (w *Writer) WriteDouble(v float64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
}

func (w *Writer) WriteString(s string) {
	w.WriteU32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *Writer) WriteBytes(p []byte) {
	w.buf = append(w.buf, p...)
}

func appendU32(dst []byte, v uint32) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// u32Len reports how many bytes WriteU32 uses for v.
func u32Len(v uint32) int {
	switch {
	case v < 1<<7:
		return 1
	case v < 1<<14:
		return 2
	case v < 1<<21:
		return 3
	case v < 1<<28:
		return 4
	}
	return 5
}
