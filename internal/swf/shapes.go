// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package swf

import (
	"encoding/binary"

	"github.com/dotandev/abcmerge/internal/errors"
)

// The walkers below read just enough of a definition tag to list the
// characters it refers to. Everything else is skipped.

const noBitmap = 0xffff

func skipColor(r *bitReader, alpha bool) {
	if alpha {
		r.skip(4)
	} else {
		r.skip(3)
	}
}

func isBitmapFill(typ byte) bool { return typ >= 0x40 && typ <= 0x43 }

func isGradientFill(typ byte) bool { return typ == 0x10 || typ == 0x12 || typ == 0x13 }

// shapeVersion maps a DefineShape tag to 1..4; the versions differ in
// colors (RGB before 3), style counts and line styles (LINESTYLE2 in 4).
func shapeVersion(code uint16) int {
	switch code {
	case TagDefineShape2:
		return 2
	case TagDefineShape3:
		return 3
	case TagDefineShape4:
		return 4
	}
	return 1
}

type refs []uint16

func (rs *refs) bitmap(id uint16) {
	if id != noBitmap {
		*rs = append(*rs, id)
	}
}

func readFillStyle(r *bitReader, ver int, out *refs) {
	typ := r.u8()
	switch {
	case typ == 0x00:
		skipColor(r, ver >= 3)
	case isGradientFill(typ):
		skipMatrix(r)
		n := int(r.u8() & 0x0f)
		for i := 0; i < n; i++ {
			r.u8()
			skipColor(r, ver >= 3)
		}
		if typ == 0x13 {
			r.u16()
		}
	case isBitmapFill(typ):
		out.bitmap(r.u16())
		skipMatrix(r)
	default:
		if r.err == nil {
			r.err = errors.Malformed(r.base+r.offset()-1, "unknown fill style type 0x%02x", typ)
		}
	}
}

func styleCount(r *bitReader, extended bool) int {
	n := int(r.u8())
	if n == 0xff && extended {
		n = int(r.u16())
	}
	return n
}

// readStyles reads a fill style array, a line style array and the index
// widths that follow them.
func readStyles(r *bitReader, ver int, out *refs) (fillBits, lineBits int) {
	for i, n := 0, styleCount(r, ver >= 2); i < n && r.err == nil; i++ {
		readFillStyle(r, ver, out)
	}
	for i, n := 0, styleCount(r, ver >= 2); i < n && r.err == nil; i++ {
		r.u16() // width
		if ver < 4 {
			skipColor(r, ver >= 3)
			continue
		}
		flags := r.u8()
		r.u8()
		if flags>>4&3 == 2 {
			r.u16() // miter limit
		}
		if flags&0x08 != 0 {
			readFillStyle(r, ver, out)
		} else {
			skipColor(r, true)
		}
	}
	b := r.u8()
	return int(b >> 4), int(b & 0x0f)
}

func shapeRefs(code uint16, body []byte, base int) ([]uint16, error) {
	var out refs
	ver := shapeVersion(code)
	r := newBitReader(body, base)
	r.u16()
	readRect(r)
	if ver == 4 {
		readRect(r)
		r.u8()
	}
	fillBits, lineBits := readStyles(r, ver, &out)
	for r.err == nil {
		if r.flag() {
			straight := r.flag()
			n := int(r.ubits(4)) + 2
			switch {
			case !straight:
				r.ubits(4 * n)
			case r.flag():
				r.ubits(2 * n)
			default:
				r.ubits(1)
				r.ubits(n)
			}
			continue
		}
		newStyles, line, fill1, fill0, move := r.flag(), r.flag(), r.flag(), r.flag(), r.flag()
		if !newStyles && !line && !fill1 && !fill0 && !move {
			break
		}
		if move {
			r.ubits(2 * int(r.ubits(5)))
		}
		if fill0 {
			r.ubits(fillBits)
		}
		if fill1 {
			r.ubits(fillBits)
		}
		if line {
			r.ubits(lineBits)
		}
		if newStyles && ver >= 2 {
			fillBits, lineBits = readStyles(r, ver, &out)
		}
	}
	return out, r.err
}

func readMorphFillStyle(r *bitReader, out *refs) {
	typ := r.u8()
	switch {
	case typ == 0x00:
		r.skip(8)
	case isGradientFill(typ):
		skipMatrix(r)
		skipMatrix(r)
		r.skip(10 * int(r.u8()&0x0f))
	case isBitmapFill(typ):
		out.bitmap(r.u16())
		skipMatrix(r)
		skipMatrix(r)
	default:
		if r.err == nil {
			r.err = errors.Malformed(r.base+r.offset()-1, "unknown morph fill style type 0x%02x", typ)
		}
	}
}

func morphRefs(code uint16, body []byte, base int) ([]uint16, error) {
	var out refs
	r := newBitReader(body, base)
	r.u16()
	readRect(r)
	readRect(r)
	v2 := code == TagDefineMorphShape2
	if v2 {
		readRect(r)
		readRect(r)
		r.u8()
	}
	r.skip(4) // offset to end edges
	for i, n := 0, styleCount(r, true); i < n && r.err == nil; i++ {
		readMorphFillStyle(r, &out)
	}
	for i, n := 0, styleCount(r, true); i < n && r.err == nil; i++ {
		r.skip(4) // start and end width
		if !v2 {
			r.skip(8)
			continue
		}
		flags := r.u8()
		r.u8()
		if flags>>4&3 == 2 {
			r.u16()
		}
		if flags&0x08 != 0 {
			readMorphFillStyle(r, &out)
		} else {
			r.skip(8)
		}
	}
	return out, r.err
}

func textRefs(code uint16, body []byte, base int) ([]uint16, error) {
	var out refs
	r := newBitReader(body, base)
	r.u16()
	readRect(r)
	skipMatrix(r)
	glyphBits := int(r.u8())
	advanceBits := int(r.u8())
	for r.err == nil {
		flags := r.u8()
		if flags == 0 {
			break
		}
		hasFont := flags&0x08 != 0
		if hasFont {
			out = append(out, r.u16())
		}
		if flags&0x04 != 0 {
			skipColor(r, code == TagDefineText2)
		}
		if flags&0x01 != 0 {
			r.u16()
		}
		if flags&0x02 != 0 {
			r.u16()
		}
		if hasFont {
			r.u16() // height
		}
		glyphs := int(r.u8())
		r.ubits(glyphs * (glyphBits + advanceBits))
	}
	return out, r.err
}

func editTextRefs(body []byte, base int) ([]uint16, error) {
	r := newBitReader(body, base)
	r.u16()
	readRect(r)
	flags := r.u8()
	r.u8()
	if flags&0x01 == 0 {
		return nil, r.err
	}
	font := r.u16()
	return []uint16{font}, r.err
}

func skipFilters(r *bitReader) {
	n := int(r.u8())
	for i := 0; i < n && r.err == nil; i++ {
		switch id := r.u8(); id {
		case 0: // drop shadow
			r.skip(23)
		case 1: // blur
			r.skip(9)
		case 2: // glow
			r.skip(15)
		case 3: // bevel
			r.skip(27)
		case 4, 7: // gradient glow, gradient bevel
			colors := int(r.u8())
			r.skip(5*colors + 19)
		case 5: // convolution
			x := int(r.u8())
			y := int(r.u8())
			r.skip(8 + 4*x*y + 5)
		case 6: // color matrix
			r.skip(80)
		default:
			if r.err == nil {
				r.err = errors.Malformed(r.base+r.offset()-1, "unknown filter %d", id)
			}
		}
	}
}

func buttonRefs(code uint16, body []byte, base int) ([]uint16, error) {
	var out refs
	r := newBitReader(body, base)
	r.u16()
	v2 := code == TagDefineButton2
	if v2 {
		r.u8()
		r.u16() // action offset
	}
	for r.err == nil {
		flags := r.u8()
		if flags == 0 {
			break
		}
		out = append(out, r.u16())
		r.u16() // depth
		skipMatrix(r)
		if !v2 {
			continue
		}
		skipColorTransform(r, true)
		if flags&0x10 != 0 {
			skipFilters(r)
		}
		if flags&0x20 != 0 {
			r.u8() // blend mode
		}
	}
	return out, r.err
}

// spriteRefs lists the characters a sprite's timeline places.
func spriteRefs(body []byte, base int) ([]uint16, error) {
	if len(body) < 4 {
		return nil, errors.Malformed(base, "truncated sprite header")
	}
	nested, err := parseTags(body, 4)
	if err != nil {
		return nil, err
	}
	var out []uint16
	for _, t := range nested {
		payload := body[t.Start+t.HeaderLen : t.End()]
		switch t.Code {
		case TagPlaceObject:
			return nil, errors.Unsupported("PlaceObject in an extracted symbol")
		case TagPlaceObject3:
			return nil, errors.Unsupported("PlaceObject3 in an extracted symbol")
		case TagPlaceObject2:
			if len(payload) < 3 {
				return nil, errors.Malformed(base+t.Start, "truncated PlaceObject2")
			}
			if payload[0]&0x02 == 0 {
				continue
			}
			if len(payload) < 5 {
				return nil, errors.Malformed(base+t.Start, "truncated PlaceObject2 character id")
			}
			out = append(out, binary.LittleEndian.Uint16(payload[3:]))
		}
	}
	return out, nil
}

// references lists the character ids a definition tag depends on.
func references(t Tag, body []byte) ([]uint16, error) {
	base := t.Start + t.HeaderLen
	switch t.Code {
	case TagDefineSprite:
		return spriteRefs(body, base)
	case TagDefineShape, TagDefineShape2, TagDefineShape3, TagDefineShape4:
		return shapeRefs(t.Code, body, base)
	case TagDefineMorphShape, TagDefineMorphShape2:
		return morphRefs(t.Code, body, base)
	case TagDefineText, TagDefineText2:
		return textRefs(t.Code, body, base)
	case TagDefineEditText:
		return editTextRefs(body, base)
	case TagDefineButton, TagDefineButton2:
		return buttonRefs(t.Code, body, base)
	}
	return nil, nil
}
