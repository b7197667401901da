// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package swf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotandev/abcmerge/internal/abc"
	abcerrors "github.com/dotandev/abcmerge/internal/errors"
)

func fileAttributes(flags byte) []byte {
	return tag(TagFileAttributes, flags, 0, 0, 0)
}

func twoFragmentMovie(t *testing.T, extra ...[]byte) *Movie {
	t.Helper()
	tags := [][]byte{
		fileAttributes(AttrActionScript3 | AttrHasMetadata),
		doABC2(t, "pkg", "A"),
		tag(TagShowFrame),
		doABC2(t, "pkg", "B"),
		symbolTag(TagSymbolClass, Symbol{1, "pkg.A"}, Symbol{2, "pkg.B"}),
	}
	tags = append(tags, extra...)
	tags = append(tags, tag(TagShowFrame), tag(TagEnd))
	return movie(t, tags...)
}

func TestTranscodeMergesAtFirstFragment(t *testing.T) {
	m := twoFragmentMovie(t)
	out, res, err := NewAbcFilter(nil, DefaultOptions()).Transcode(m)
	require.NoError(t, err)

	got := parse(t, out)
	assert.Equal(t, []uint16{TagFileAttributes, TagDoABC2, TagShowFrame, TagSymbolClass, TagShowFrame, TagEnd}, codes(got))
	assert.Equal(t, m.Header, got.Header)
	assert.False(t, got.Compressed)
	assert.Equal(t, m.Raw(m.Tags[0]), got.Raw(got.Tags[0]))

	frags := fragments(t, got)
	require.Len(t, frags, 1)
	assert.Equal(t, "pkg:A", frags[0].Name)
	assert.Equal(t, DoABCLazyInitialize, frags[0].Flags)

	merged := decode(t, frags[0])
	assert.Equal(t, 2, merged.NumScripts())
	names, err := merged.ClassNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg:A", "pkg:B"}, names)

	// Object and trace are shared; only pkg:B is new.
	single := decode(t, fragments(t, m)[0])
	assert.Equal(t, single.Pool.Count(abc.KindMultiname)+1, merged.Pool.Count(abc.KindMultiname))

	assert.Equal(t, []string{"pkg:A", "pkg:B"}, res.Kept)
	assert.Empty(t, res.Rejected)
	assert.Equal(t, 2, res.Stats.Fragments)
	assert.Equal(t, 2, res.Stats.InstructionsRemoved)

	syms, err := ParseSymbols(got.Body(got.Tags[3]))
	require.NoError(t, err)
	assert.Equal(t, []Symbol{{1, "pkg.A"}, {2, "pkg.B"}}, syms)
}

// untouched returns the raw bytes of every tag that is not ABC code.
func untouched(m *Movie) [][]byte {
	var out [][]byte
	for _, tg := range m.Tags {
		if tg.Code != TagDoABC && tg.Code != TagDoABC2 {
			out = append(out, m.Raw(tg))
		}
	}
	return out
}

func TestTranscodeCopiesTagsVerbatim(t *testing.T) {
	const unknownTag = 200
	m := movie(t,
		fileAttributes(AttrActionScript3|AttrHasMetadata),
		AppendLongTag(nil, TagShowFrame, nil),
		doABC2(t, "pkg", "X"),
		AppendLongTag(nil, unknownTag, []byte{1, 2, 3}),
		tag(TagSetBackgroundColor, 0x10, 0x20, 0x30),
		doABC2(t, "pkg", "Y"),
		tag(TagShowFrame),
		tag(TagEnd),
	)

	out, _, err := NewAbcFilter(nil, DefaultOptions()).Transcode(m)
	require.NoError(t, err)
	got := parse(t, out)

	assert.Equal(t, []uint16{TagFileAttributes, TagShowFrame, TagDoABC2, unknownTag, TagSetBackgroundColor, TagShowFrame, TagEnd}, codes(got))
	assert.Equal(t, untouched(m), untouched(got))
	assert.Equal(t, 6, got.Tags[1].HeaderLen)
	assert.Equal(t, 6, got.Tags[3].HeaderLen)
}

func TestTranscodeRejectsFragments(t *testing.T) {
	notB := func(name string) bool { return name != "pkg:B" }

	t.Run("prunes orphaned symbols", func(t *testing.T) {
		out, res, err := NewAbcFilter(notB, DefaultOptions()).Transcode(twoFragmentMovie(t))
		require.NoError(t, err)
		assert.Equal(t, []string{"pkg:A"}, res.Kept)
		assert.Equal(t, []string{"pkg:B"}, res.Rejected)

		got := parse(t, out)
		i := got.Find(TagSymbolClass)
		require.GreaterOrEqual(t, i, 0)
		syms, err := ParseSymbols(got.Body(got.Tags[i]))
		require.NoError(t, err)
		assert.Equal(t, []Symbol{{1, "pkg.A"}}, syms)

		names, err := decode(t, fragments(t, got)[0]).ClassNames()
		require.NoError(t, err)
		assert.Equal(t, []string{"pkg:A"}, names)
	})

	t.Run("drops emptied symbol table", func(t *testing.T) {
		m := movie(t,
			fileAttributes(AttrActionScript3),
			doABC2(t, "pkg", "A"),
			doABC2(t, "pkg", "B"),
			symbolTag(TagSymbolClass, Symbol{2, "pkg.B"}),
			tag(TagShowFrame), tag(TagEnd))
		out, _, err := NewAbcFilter(notB, DefaultOptions()).Transcode(m)
		require.NoError(t, err)
		assert.Equal(t, []uint16{TagFileAttributes, TagDoABC2, TagShowFrame, TagEnd}, codes(parse(t, out)))
	})

	t.Run("class still defined by a kept fragment", func(t *testing.T) {
		other := AppendDoABC2(nil, Fragment{Name: "other", ABC: classBlock(t, "pkg", "B")})
		out, _, err := NewAbcFilter(notB, DefaultOptions()).Transcode(twoFragmentMovie(t, other))
		require.NoError(t, err)
		got := parse(t, out)
		syms, err := ParseSymbols(got.Body(got.Tags[got.Find(TagSymbolClass)]))
		require.NoError(t, err)
		assert.Len(t, syms, 2)
	})

	t.Run("nothing accepted", func(t *testing.T) {
		none := func(string) bool { return false }
		out, res, err := NewAbcFilter(none, DefaultOptions()).Transcode(twoFragmentMovie(t))
		require.NoError(t, err)
		assert.Empty(t, res.Kept)
		got := parse(t, out)
		assert.Equal(t, -1, got.Find(TagDoABC2))
		assert.Equal(t, -1, got.Find(TagSymbolClass))
	})
}

func TestTranscodeDebugTags(t *testing.T) {
	debug := [][]byte{
		tag(TagProductInfo, make([]byte, 26)...),
		tag(TagEnableDebugger2, 0, 0, 'x', 0),
		tag(TagMetadata, []byte("<rdf/>\x00")...),
		tag(TagDebugID, make([]byte, 16)...),
	}

	out, res, err := NewAbcFilter(nil, DefaultOptions()).Transcode(twoFragmentMovie(t, debug...))
	require.NoError(t, err)
	assert.Equal(t, 4, res.DroppedTags)
	got := parse(t, out)
	for code := range debugTags {
		assert.Equal(t, -1, got.Find(code), "tag %d", code)
	}
	assert.Equal(t, AttrActionScript3, got.Body(got.Tags[0])[0])

	opts := DefaultOptions()
	opts.KeepDebugTags = true
	out, res, err = NewAbcFilter(nil, opts).Transcode(twoFragmentMovie(t, debug...))
	require.NoError(t, err)
	assert.Zero(t, res.DroppedTags)
	got = parse(t, out)
	assert.GreaterOrEqual(t, got.Find(TagMetadata), 0)
	assert.Equal(t, AttrActionScript3|AttrHasMetadata, got.Body(got.Tags[0])[0])
}

func TestTranscodeInjection(t *testing.T) {
	injected := classBlock(t, "inj", "X")

	tests := []struct {
		anchor string
		want   []string
	}{
		{"pkg.B", []string{"pkg:A", "inj:X", "pkg:B"}},
		{"pkg:B", []string{"pkg:A", "inj:X", "pkg:B"}},
		{"pkg:A", []string{"inj:X", "pkg:A", "pkg:B"}},
	}
	for _, tt := range tests {
		t.Run(tt.anchor, func(t *testing.T) {
			f := NewAbcFilter(nil, DefaultOptions()).Inject(Injection{Anchor: tt.anchor, Name: "inj", ABC: injected})
			block, res, err := f.TranscodeABC(twoFragmentMovie(t))
			require.NoError(t, err)
			assert.Equal(t, []string{"inj"}, res.Injected)

			d, err := abc.NewDecoder("", block)
			require.NoError(t, err)
			names, err := d.ClassNames()
			require.NoError(t, err)
			assert.Equal(t, tt.want, names)
		})
	}

	f := NewAbcFilter(nil, DefaultOptions()).Inject(Injection{Anchor: "nope", Name: "inj", ABC: injected})
	_, _, err := f.Transcode(twoFragmentMovie(t))
	assert.True(t, errors.Is(err, abcerrors.ErrAnchorNotFound))
}

func TestTranscodeMergePoint(t *testing.T) {
	tests := []struct {
		point int
		want  []uint16
	}{
		{0, []uint16{TagDoABC2, TagFileAttributes, TagShowFrame, TagSymbolClass, TagShowFrame, TagEnd}},
		{3, []uint16{TagFileAttributes, TagShowFrame, TagDoABC2, TagSymbolClass, TagShowFrame, TagEnd}},
		{99, []uint16{TagFileAttributes, TagShowFrame, TagSymbolClass, TagShowFrame, TagDoABC2, TagEnd}},
	}
	for _, tt := range tests {
		opts := DefaultOptions()
		opts.MergePoint = tt.point
		out, _, err := NewAbcFilter(nil, opts).Transcode(twoFragmentMovie(t))
		require.NoError(t, err)
		assert.Equal(t, tt.want, codes(parse(t, out)), "merge point %d", tt.point)
	}
}

func TestTranscodeLibraryMovies(t *testing.T) {
	skel := movie(t, fileAttributes(AttrActionScript3), tag(TagSetBackgroundColor, 0, 0, 0), tag(TagShowFrame), tag(TagEnd))
	lib := movie(t, fileAttributes(AttrActionScript3), doABC2(t, "lib", "L"), tag(TagShowFrame), tag(TagEnd))

	opts := DefaultOptions()
	opts.Compress = true
	out, res, err := NewAbcFilter(nil, opts).Transcode(skel, lib)
	require.NoError(t, err)
	assert.Equal(t, []string{"lib:L"}, res.Kept)

	got := parse(t, out)
	assert.True(t, got.Compressed)
	assert.Equal(t, []uint16{TagFileAttributes, TagSetBackgroundColor, TagDoABC2, TagShowFrame, TagEnd}, codes(got))
}

func TestTranscodeUnnamedFragment(t *testing.T) {
	m := movie(t, fileAttributes(AttrActionScript3), tag(TagDoABC, classBlock(t, "pkg", "A")...), tag(TagShowFrame), tag(TagEnd))
	var seen []string
	accept := func(name string) bool {
		seen = append(seen, name)
		return true
	}
	block, res, err := NewAbcFilter(accept, Options{}).TranscodeABC(m)
	require.NoError(t, err)
	assert.Equal(t, []string{""}, seen)
	assert.Equal(t, []string{""}, res.Kept)
	assert.Zero(t, res.Stats.InstructionsRemoved)

	d, err := abc.NewDecoder("", block)
	require.NoError(t, err)
	assert.Equal(t, 3, d.NumBodies())
}

func TestTranscodeErrors(t *testing.T) {
	_, _, err := NewAbcFilter(nil, DefaultOptions()).Transcode()
	assert.True(t, errors.Is(err, abcerrors.ErrValidation))

	bad := movie(t, AppendDoABC2(nil, Fragment{Name: "bad", ABC: []byte{16, 0, 46, 0, 9}}), tag(TagEnd))
	_, _, err = NewAbcFilter(nil, DefaultOptions()).Transcode(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, abcerrors.ErrMalformedInput))
	assert.Contains(t, err.Error(), `fragment "bad"`)
}

func TestWrapABC(t *testing.T) {
	block := classBlock(t, "pkg", "A")
	m, err := WrapABC("pkg:A", block)
	require.NoError(t, err)
	assert.Equal(t, wrapHeader, m.Header)
	assert.Equal(t, []uint16{TagFileAttributes, TagDoABC2, TagShowFrame, TagEnd}, codes(m))

	frags := fragments(t, m)
	require.Len(t, frags, 1)
	assert.Equal(t, "pkg:A", frags[0].Name)
	assert.Equal(t, block, frags[0].ABC)
}
