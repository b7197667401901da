// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package swf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/dotandev/abcmerge/internal/errors"
)

// DoABCLazyInitialize defers running the block's scripts until a class in
// it is first referenced.
const DoABCLazyInitialize uint32 = 1

// Fragment is one ABC block carried by a DoABC or DoABC2 tag.
type Fragment struct {
	Flags uint32
	Name  string
	ABC   []byte
}

// ParseDoABC decodes the payload of a DoABC (72) or DoABC2 (82) tag.
func ParseDoABC(code uint16, body []byte) (Fragment, error) {
	switch code {
	case TagDoABC:
		return Fragment{ABC: body}, nil
	case TagDoABC2:
		if len(body) < 5 {
			return Fragment{}, errors.Malformed(0, "DoABC2 payload is %d bytes", len(body))
		}
		f := Fragment{Flags: binary.LittleEndian.Uint32(body)}
		end := bytes.IndexByte(body[4:], 0)
		if end < 0 {
			return Fragment{}, errors.Malformed(4, "DoABC2 name is not terminated")
		}
		f.Name = string(body[4 : 4+end])
		f.ABC = body[4+end+1:]
		return f, nil
	}
	return Fragment{}, errors.Malformed(0, "tag %d does not carry ABC", code)
}

// Fragments lists the ABC blocks of a movie in tag order.
func (m *Movie) Fragments() ([]Fragment, error) {
	var out []Fragment
	for _, t := range m.Tags {
		if t.Code != TagDoABC && t.Code != TagDoABC2 {
			continue
		}
		f, err := ParseDoABC(t.Code, m.Body(t))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// AppendDoABC2 appends a complete DoABC2 tag.
func AppendDoABC2(dst []byte, f Fragment) []byte {
	body := make([]byte, 0, 4+len(f.Name)+1+len(f.ABC))
	body = binary.LittleEndian.AppendUint32(body, f.Flags)
	body = append(body, f.Name...)
	body = append(body, 0)
	body = append(body, f.ABC...)
	return AppendTag(dst, TagDoABC2, body)
}

// Symbol is one (character id, name) pair of a SymbolClass or ExportAssets
// tag.
type Symbol struct {
	ID   uint16
	Name string
}

// ParseSymbols decodes a SymbolClass or ExportAssets payload.
func ParseSymbols(body []byte) ([]Symbol, error) {
	if len(body) < 2 {
		return nil, errors.Malformed(0, "symbol table is %d bytes", len(body))
	}
	n := int(binary.LittleEndian.Uint16(body))
	syms := make([]Symbol, 0, n)
	pos := 2
	for i := 0; i < n; i++ {
		if len(body)-pos < 3 {
			return nil, errors.Malformed(pos, "truncated symbol %d of %d", i, n)
		}
		id := binary.LittleEndian.Uint16(body[pos:])
		end := bytes.IndexByte(body[pos+2:], 0)
		if end < 0 {
			return nil, errors.Malformed(pos+2, "symbol name is not terminated")
		}
		syms = append(syms, Symbol{ID: id, Name: string(body[pos+2 : pos+2+end])})
		pos += 2 + end + 1
	}
	return syms, nil
}

// AppendSymbols appends a complete SymbolClass or ExportAssets tag.
func AppendSymbols(dst []byte, code uint16, syms []Symbol) []byte {
	body := binary.LittleEndian.AppendUint16(nil, uint16(len(syms)))
	for _, s := range syms {
		body = binary.LittleEndian.AppendUint16(body, s.ID)
		body = append(body, s.Name...)
		body = append(body, 0)
	}
	return AppendTag(dst, code, body)
}

// SymbolName converts an ABC qualified name ("pkg.sub:Name") into the
// dotted form SymbolClass uses ("pkg.sub.Name").
func SymbolName(qualified string) string {
	return strings.Replace(qualified, ":", ".", 1)
}
