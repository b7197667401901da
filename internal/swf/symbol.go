// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package swf

import (
	"encoding/binary"
	"fmt"

	"github.com/dotandev/abcmerge/internal/errors"
	"github.com/dotandev/abcmerge/internal/logger"
)

// MovieSymbolTranscoder cuts one exported symbol, and every character it
// draws, out of a movie into a standalone movie whose main timeline is the
// symbol.
type MovieSymbolTranscoder struct {
	opts Options
}

func NewMovieSymbolTranscoder(opts Options) *MovieSymbolTranscoder {
	return &MovieSymbolTranscoder{opts: opts}
}

// findSymbol resolves an ExportAssets or SymbolClass name to a character id.
func findSymbol(m *Movie, name string) (uint16, error) {
	dotted := SymbolName(name)
	for _, t := range m.Tags {
		if t.Code != TagExportAssets && t.Code != TagSymbolClass {
			continue
		}
		syms, err := ParseSymbols(m.Body(t))
		if err != nil {
			return 0, fmt.Errorf("%s: %w", t, err)
		}
		for _, s := range syms {
			if s.Name == name || s.Name == dotted {
				if s.ID == 0 {
					return 0, errors.Unsupported("extracting the main timeline class %q", name)
				}
				return s.ID, nil
			}
		}
	}
	return 0, errors.WrapSymbolNotFound(name)
}

func characterID(body []byte) (uint16, bool) {
	if len(body) < 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(body), true
}

// Extract returns a movie holding only the named symbol.
func (x *MovieSymbolTranscoder) Extract(m *Movie, symbol string) ([]byte, error) {
	id, err := findSymbol(m, symbol)
	if err != nil {
		return nil, err
	}

	defs := make(map[uint16]int)
	for i, t := range m.Tags {
		if !definesCharacter(t.Code) {
			continue
		}
		if c, ok := characterID(m.Body(t)); ok {
			defs[c] = i
		}
	}
	root, ok := defs[id]
	if !ok {
		return nil, errors.WrapSymbolNotFound(symbol)
	}

	used := make(map[uint16]bool)
	pending := []uint16{id}
	for len(pending) > 0 {
		c := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if used[c] {
			continue
		}
		used[c] = true
		i, ok := defs[c]
		if !ok {
			return nil, errors.Malformed(0, "character %d is used but never defined", c)
		}
		t := m.Tags[i]
		deps, err := references(t, m.Body(t))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		pending = append(pending, deps...)
	}

	jpegTables := false
	for c := range used {
		if m.Tags[defs[c]].Code == TagDefineBits {
			jpegTables = true
		}
	}

	var tags []byte
	if i := m.Find(TagFileAttributes); i >= 0 {
		tags = append(tags, m.Raw(m.Tags[i])...)
	}
	for i, t := range m.Tags {
		switch {
		case t.Code == TagJPEGTables:
			if jpegTables {
				tags = append(tags, m.Raw(t)...)
			}
		case definesCharacter(t.Code), annotates(t.Code):
			c, _ := characterID(m.Body(t))
			if used[c] && !(i == root && t.Code == TagDefineSprite) {
				tags = append(tags, m.Raw(t)...)
			}
		}
	}

	h := m.Header
	rootTag := m.Tags[root]
	if rootTag.Code == TagDefineSprite {
		body := m.Body(rootTag)
		h.FrameCount = binary.LittleEndian.Uint16(body[2:])
		nested, err := parseTags(body, 4)
		if err != nil {
			return nil, err
		}
		for _, t := range nested {
			if t.Code == TagEnd {
				break
			}
			tags = append(tags, body[t.Start:t.End()]...)
		}
	} else {
		h.FrameCount = 1
		tags = AppendTag(tags, TagPlaceObject2, []byte{0x02, 1, 0, byte(id), byte(id >> 8)})
		tags = AppendTag(tags, TagShowFrame, nil)
	}
	tags = AppendTag(tags, TagEnd, nil)

	logger.Logger.Debug("Extracted symbol", "symbol", symbol, "character", id, "characters_used", len(used))
	return Encode(h, tags, x.opts.Compress)
}
