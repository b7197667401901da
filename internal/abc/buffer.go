// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package abc

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/dotandev/abcmerge/internal/errors"
)

// DataBuffer is a read cursor over an ABC byte region. Every read either
// consumes its whole field or leaves the cursor untouched and returns a
// *errors.DecodeError.
type DataBuffer struct {
	data []byte
	pos  int
}

func NewDataBuffer(data []byte) *DataBuffer {
	return &DataBuffer{data: data}
}

func (b *DataBuffer) Position() int { return b.pos }
func (b *DataBuffer) Size() int { return len(b.data) }
func (b *DataBuffer) Remaining() int { return len(b.data) - b.pos }

// Bytes returns the underlying region. Callers must not modify it.
func (b *DataBuffer) Bytes() []byte { return b.data }

func (b *DataBuffer) Seek(pos int) error {
	if pos < 0 || pos > len(b.data) {
		return errors.Malformed(pos, "seek outside region of %d bytes", len(b.data))
	}
	b.pos = pos
	return nil
}

func (b *DataBuffer) Skip(n int) error {
	if n < 0 || n > b.Remaining() {
		return errors.Malformed(b.pos, "skip of %d bytes past end", n)
	}
	b.pos += n
	return nil
}

// Detour runs fn with the cursor at pos and restores the cursor afterwards,
// whatever fn returns.
func (b *DataBuffer) Detour(pos int, fn func() error) error {
	saved := b.pos
	defer func() { b.pos = saved }()
	if err := b.Seek(pos); err != nil {
		return err
	}
	return fn()
}

func (b *DataBuffer) ReadU8() (byte, error) {
	if b.pos >= len(b.data) {
		return 0, errors.Malformed(b.pos, "truncated u8")
	}
	v := b.data[b.pos]
	b.pos++
	return v, nil
}

func (b *DataBuffer) ReadU16() (uint16, error) {
	if b.Remaining() < 2 {
		return 0, errors.Malformed(b.pos, "truncated u16")
	}
	v := binary.LittleEndian.Uint16(b.data[b.pos:])
	b.pos += 2
	return v, nil
}

func (b *DataBuffer) ReadS24() (int32, error) {
	if b.Remaining() < 3 {
		return 0, errors.Malformed(b.pos, "truncated s24")
	}
	p := b.data[b.pos:]
	v := int32(p[0]) | int32(p[1])<<8 | int32(int8(p[2]))<<16
	b.pos += 3
	return v, nil
}

// ReadU32 decodes the AVM2 variable-length integer: 7 bits per byte, low
// group first, high bit set on every byte but the last, at most 5 bytes.
func (b *DataBuffer) ReadU32() (uint32, error) {
	var v uint32
	p := b.pos
	for i := 0; i < 5; i++ {
		if p >= len(b.data) {
			return 0, errors.Malformed(b.pos, "truncated u32")
		}
		c := b.data[p]
		p++
		v |= uint32(c&0x7f) << (7 * i)
		if c&0x80 == 0 {
			break
		}
	}
	b.pos = p
	return v, nil
}

func (b *DataBuffer) ReadS32() (int32, error) {
	v, err := b.ReadU32()
	return int32(v), err
}

func (b *DataBuffer) SkipU32() error {
	_, err := b.ReadU32()
	return err
}

func (b *DataBuffer) ReadDouble() (float64, error) {
	if b.Remaining() < 8 {
		return 0, errors.Malformed(b.pos, "truncated double")
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(b.data[b.pos:]))
	b.pos += 8
	return v, nil
}

// ReadBytes returns the next n bytes without copying.
func (b *DataBuffer) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > b.Remaining() {
		return nil, errors.Malformed(b.pos, "truncated block of %d bytes", n)
	}
	v := b.data[b.pos : b.pos+n]
	b.pos += n
	return v, nil
}

// ReadString reads a u30 length followed by that many bytes of UTF-8.
func (b *DataBuffer) ReadString() (string, error) {
	start := b.pos
	n, err := b.ReadU32()
	if err != nil {
		return "", err
	}
	raw, err := b.ReadBytes(int(n))
	if err != nil {
		b.pos = start
		return "", err
	}
	if !utf8.Valid(raw) {
		b.pos = start
		return "", errors.Malformed(start, "string is not valid UTF-8")
	}
	return string(raw), nil
}

// ReadCString reads a NUL-terminated string, as used by SWF tag bodies.
func (b *DataBuffer) ReadCString() (string, error) {
	for i := b.pos; i < len(b.data); i++ {
		if b.data[i] == 0 {
			s := string(b.data[b.pos:i])
			b.pos = i + 1
			return s, nil
		}
	}
	return "", errors.Malformed(b.pos, "unterminated string")
}
