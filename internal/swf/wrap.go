// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package swf

// Template header for movies built around a bare ABC block: 550x400 at 24
// frames per second, one frame, player version 10.
var wrapHeader = Header{
	Version:    10,
	FrameSize:  Rect{XMax: 550 * 20, YMax: 400 * 20},
	FrameRate:  24 << 8,
	FrameCount: 1,
}

// wrapTags frames an ABC block as FileAttributes(AS3), DoABC2, ShowFrame
// and End.
func wrapTags(name string, block []byte) []byte {
	tags := AppendTag(nil, TagFileAttributes, []byte{AttrActionScript3, 0, 0, 0})
	tags = AppendDoABC2(tags, Fragment{Flags: DoABCLazyInitialize, Name: name, ABC: block})
	tags = AppendTag(tags, TagShowFrame, nil)
	return AppendTag(tags, TagEnd, nil)
}

// WrapABC builds a minimal movie whose only code is block.
func WrapABC(name string, block []byte) (*Movie, error) {
	data, err := Encode(wrapHeader, wrapTags(name, block), false)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}
