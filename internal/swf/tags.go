// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package swf

import (
	"encoding/binary"
	"fmt"

	"github.com/dotandev/abcmerge/internal/errors"
)

// Tag codes used by the transcoders. Tags not listed here are copied through
// untouched.
const (
	TagEnd                  uint16 = 0
	TagShowFrame            uint16 = 1
	TagDefineShape          uint16 = 2
	TagPlaceObject          uint16 = 4
	TagRemoveObject         uint16 = 5
	TagDefineBits           uint16 = 6
	TagDefineButton         uint16 = 7
	TagJPEGTables           uint16 = 8
	TagSetBackgroundColor   uint16 = 9
	TagDefineFont           uint16 = 10
	TagDefineText           uint16 = 11
	TagDoAction             uint16 = 12
	TagDefineFontInfo       uint16 = 13
	TagDefineSound          uint16 = 14
	TagDefineBitsLossless   uint16 = 20
	TagDefineBitsJPEG2      uint16 = 21
	TagDefineShape2         uint16 = 22
	TagPlaceObject2         uint16 = 26
	TagRemoveObject2        uint16 = 28
	TagDefineShape3         uint16 = 32
	TagDefineText2          uint16 = 33
	TagDefineButton2        uint16 = 34
	TagDefineBitsJPEG3      uint16 = 35
	TagDefineBitsLossless2  uint16 = 36
	TagDefineEditText       uint16 = 37
	TagDefineSprite         uint16 = 39
	TagProductInfo          uint16 = 41
	TagFrameLabel           uint16 = 43
	TagDefineMorphShape     uint16 = 46
	TagDefineFont2          uint16 = 48
	TagExportAssets         uint16 = 56
	TagEnableDebugger       uint16 = 58
	TagDefineVideoStream    uint16 = 60
	TagDefineFontInfo2      uint16 = 62
	TagDebugID              uint16 = 63
	TagEnableDebugger2      uint16 = 64
	TagScriptLimits         uint16 = 65
	TagFileAttributes       uint16 = 69
	TagPlaceObject3         uint16 = 70
	TagDoABC                uint16 = 72
	TagDefineFontAlignZones uint16 = 73
	TagCSMTextSettings      uint16 = 74
	TagDefineFont3          uint16 = 75
	TagSymbolClass          uint16 = 76
	TagMetadata             uint16 = 77
	TagDefineScalingGrid    uint16 = 78
	TagDoABC2               uint16 = 82
	TagDefineShape4         uint16 = 83
	TagDefineMorphShape2    uint16 = 84
	TagDefineBinaryData     uint16 = 87
	TagDefineFontName       uint16 = 88
	TagDefineBitsJPEG4      uint16 = 90
	TagDefineFont4          uint16 = 91
	TagEnableTelemetry      uint16 = 93
)

// FileAttributes flag bits.
const (
	AttrUseNetwork    byte = 0x01
	AttrActionScript3 byte = 0x08
	AttrHasMetadata   byte = 0x10
	AttrUseGPU        byte = 0x20
	AttrUseDirectBlit byte = 0x40
)

// debugTags only matter to the player's debugger, profiler or authoring
// tools and are left out of transcoded output.
var debugTags = map[uint16]bool{
	TagProductInfo:     true,
	TagEnableDebugger:  true,
	TagDebugID:         true,
	TagEnableDebugger2: true,
	TagMetadata:        true,
	TagEnableTelemetry: true,
}

// definesCharacter reports whether the tag body starts with the id of the
// character it defines.
func definesCharacter(code uint16) bool {
	switch code {
	case TagDefineShape, TagDefineBits, TagDefineButton, TagDefineFont, TagDefineText,
		TagDefineSound, TagDefineBitsLossless, TagDefineBitsJPEG2, TagDefineShape2,
		TagDefineShape3, TagDefineText2, TagDefineButton2, TagDefineBitsJPEG3,
		TagDefineBitsLossless2, TagDefineEditText, TagDefineSprite, TagDefineMorphShape,
		TagDefineFont2, TagDefineVideoStream, TagDefineFont3, TagDefineShape4,
		TagDefineMorphShape2, TagDefineBinaryData, TagDefineBitsJPEG4, TagDefineFont4:
		return true
	}
	return false
}

// annotates reports whether the tag attaches data to a character defined
// elsewhere, naming it by the id in its first two bytes.
func annotates(code uint16) bool {
	switch code {
	case TagDefineFontInfo, TagDefineFontInfo2, TagDefineFontAlignZones,
		TagDefineFontName, TagDefineScalingGrid, TagCSMTextSettings:
		return true
	}
	return false
}

// Tag locates one tag inside a movie's uncompressed body.
type Tag struct {
	Code      uint16
	Start     int
	HeaderLen int
	Length    int
}

// End is the offset just past the tag.
func (t Tag) End() int { return t.Start + t.HeaderLen + t.Length }

func (t Tag) String() string {
	return fmt.Sprintf("tag %d at %d (%d bytes)", t.Code, t.Start, t.Length)
}

// parseTags splits data[start:] into tags, stopping after an End tag or at
// the end of the data.
func parseTags(data []byte, start int) ([]Tag, error) {
	var tags []Tag
	pos := start
	for pos < len(data) {
		if len(data)-pos < 2 {
			return nil, errors.Malformed(pos, "truncated tag header")
		}
		word := binary.LittleEndian.Uint16(data[pos:])
		t := Tag{Code: word >> 6, Start: pos, HeaderLen: 2, Length: int(word & 0x3f)}
		if t.Length == 0x3f {
			if len(data)-pos < 6 {
				return nil, errors.Malformed(pos, "truncated long tag header")
			}
			t.HeaderLen = 6
			t.Length = int(binary.LittleEndian.Uint32(data[pos+2:]))
		}
		if t.Length < 0 || t.Length > len(data)-pos-t.HeaderLen {
			return nil, errors.Malformed(pos, "tag %d length %d runs past the end of the movie", t.Code, t.Length)
		}
		tags = append(tags, t)
		pos = t.End()
		if t.Code == TagEnd {
			break
		}
	}
	return tags, nil
}

// AppendTag appends a tag with the shortest header that can carry body.
func AppendTag(dst []byte, code uint16, body []byte) []byte {
	if len(body) < 0x3f {
		dst = binary.LittleEndian.AppendUint16(dst, code<<6|uint16(len(body)))
	} else {
		dst = binary.LittleEndian.AppendUint16(dst, code<<6|0x3f)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(body)))
	}
	return append(dst, body...)
}

// AppendLongTag appends a tag that always uses the long header form, which
// some players require for bitmap tags.
func AppendLongTag(dst []byte, code uint16, body []byte) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, code<<6|0x3f)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(body)))
	return append(dst, body...)
}
