// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package swf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/dotandev/abcmerge/internal/errors"
)

const partialHeaderLen = 8

// Header is the part of a movie's header that survives transcoding. The
// signature and file length are recomputed on output.
type Header struct {
	Version    byte
	FrameSize  Rect
	FrameRate  uint16 // 8.8 fixed point
	FrameCount uint16
}

// Movie is a parsed SWF. data holds the whole uncompressed file, partial
// header included, so tag offsets are file offsets.
type Movie struct {
	Header
	Compressed bool
	Tags       []Tag

	data []byte
}

// IsMovie reports whether data starts with a SWF signature.
func IsMovie(data []byte) bool {
	return len(data) >= 3 && (data[0] == 'F' || data[0] == 'C' || data[0] == 'Z') && data[1] == 'W' && data[2] == 'S'
}

// Parse decodes a SWF. Compressed movies are inflated to the length the
// header declares; bytes past that length are ignored.
func Parse(data []byte) (*Movie, error) {
	if len(data) < partialHeaderLen || !IsMovie(data) {
		return nil, errors.Malformed(0, "not a SWF file")
	}
	m := &Movie{}
	m.Version = data[3]
	length := int(binary.LittleEndian.Uint32(data[4:]))
	if length < partialHeaderLen {
		return nil, errors.Malformed(4, "declared file length %d is shorter than the header", length)
	}

	switch data[0] {
	case 'F':
		if len(data) < length {
			return nil, errors.Malformed(len(data), "file is %d bytes, header declares %d", len(data), length)
		}
		m.data = data[:length]
	case 'C':
		m.Compressed = true
		body, err := inflate(data[partialHeaderLen:], length-partialHeaderLen)
		if err != nil {
			return nil, err
		}
		m.data = make([]byte, 0, partialHeaderLen+len(body))
		m.data = append(m.data, data[:partialHeaderLen]...)
		m.data = append(m.data, body...)
	case 'Z':
		return nil, errors.Unsupported("LZMA-compressed SWF (ZWS)")
	}

	r := newBitReader(m.data[partialHeaderLen:], partialHeaderLen)
	m.FrameSize = readRect(r)
	m.FrameRate = r.u16()
	m.FrameCount = r.u16()
	if r.err != nil {
		return nil, fmt.Errorf("movie header: %w", r.err)
	}

	tags, err := parseTags(m.data, partialHeaderLen+r.offset())
	if err != nil {
		return nil, err
	}
	m.Tags = tags
	return m, nil
}

// inflate reads at most n bytes from the zlib stream in src. The buffer
// grows with the data actually inflated, not with the declared length.
func inflate(src []byte, n int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, errors.Malformed(partialHeaderLen, "zlib stream: %v", err)
	}
	defer zr.Close()
	var out bytes.Buffer
	out.Grow(min(n, 4*len(src)))
	if _, err := io.Copy(&out, io.LimitReader(zr, int64(n))); err != nil {
		return nil, errors.Malformed(partialHeaderLen, "zlib stream: %v", err)
	}
	if out.Len() < n {
		return nil, errors.Malformed(partialHeaderLen, "inflated body shorter than the declared %d bytes", n)
	}
	return out.Bytes(), nil
}

// Body returns the payload of t.
func (m *Movie) Body(t Tag) []byte {
	return m.data[t.Start+t.HeaderLen : t.End()]
}

// Raw returns t including its header.
func (m *Movie) Raw(t Tag) []byte {
	return m.data[t.Start:t.End()]
}

// Span returns the bytes between two file offsets.
func (m *Movie) Span(from, to int) []byte {
	return m.data[from:to]
}

// Find returns the index of the first tag with the given code, or -1.
func (m *Movie) Find(code uint16) int {
	for i, t := range m.Tags {
		if t.Code == code {
			return i
		}
	}
	return -1
}

// Encode writes a movie with header h around the already framed tags. The
// output uses the CWS signature when compress is set and FWS otherwise.
func Encode(h Header, tags []byte, compress bool) ([]byte, error) {
	body := appendRect(nil, h.FrameSize)
	body = binary.LittleEndian.AppendUint16(body, h.FrameRate)
	body = binary.LittleEndian.AppendUint16(body, h.FrameCount)
	body = append(body, tags...)

	out := make([]byte, partialHeaderLen, partialHeaderLen+len(body))
	copy(out, "FWS")
	out[3] = h.Version
	binary.LittleEndian.PutUint32(out[4:], uint32(partialHeaderLen+len(body)))
	if !compress {
		return append(out, body...), nil
	}

	out[0] = 'C'
	buf := bytes.NewBuffer(out)
	zw, err := zlib.NewWriterLevel(buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(body); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
