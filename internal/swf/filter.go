// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package swf

import (
	"fmt"
	"slices"

	"github.com/dotandev/abcmerge/internal/abc"
	"github.com/dotandev/abcmerge/internal/errors"
	"github.com/dotandev/abcmerge/internal/logger"
)

// Options controls how movies are transcoded.
type Options struct {
	ABC abc.Options
	// KeepDebugTags copies debugger, telemetry and metadata tags through.
	KeepDebugTags bool
	// MergePoint is the index of the skeleton tag the merged DoABC2 tag is
	// written in front of. Negative means the first DoABC or DoABC2 tag.
	MergePoint int
	// Compress writes CWS output.
	Compress bool
}

func DefaultOptions() Options {
	return Options{ABC: abc.DefaultOptions(), MergePoint: -1}
}

// Injection is an extra ABC block spliced into the merge order in front of
// the fragment named Anchor, or the fragment defining class Anchor.
type Injection struct {
	Anchor string
	Name   string
	ABC    []byte
}

// Result describes what a transcode kept and dropped.
type Result struct {
	Kept        []string
	Rejected    []string
	Injected    []string
	DroppedTags int
	Stats       abc.Stats
}

// AbcFilter rewrites movies so that every accepted ABC fragment ends up in a
// single DoABC2 tag. Fragments the accept function turns down are removed,
// along with SymbolClass entries for the classes only they defined.
type AbcFilter struct {
	accept     func(name string) bool
	opts       Options
	injections []Injection
}

// NewAbcFilter returns a filter keeping fragments whose name accept approves.
// A nil accept keeps everything.
func NewAbcFilter(accept func(name string) bool, opts Options) *AbcFilter {
	if accept == nil {
		accept = func(string) bool { return true }
	}
	return &AbcFilter{accept: accept, opts: opts}
}

// Inject schedules an injection for the next transcode.
func (f *AbcFilter) Inject(inj Injection) *AbcFilter {
	f.injections = append(f.injections, inj)
	return f
}

type fragment struct {
	Fragment
	decoder *abc.Decoder
	// classes holds the dotted names of the classes the block defines.
	classes []string
}

func decodeFragment(fr Fragment) (*fragment, error) {
	d, err := abc.NewDecoder(fr.Name, fr.ABC)
	if err != nil {
		return nil, fmt.Errorf("fragment %q: %w", fr.Name, err)
	}
	names, err := d.ClassNames()
	if err != nil {
		return nil, fmt.Errorf("fragment %q: %w", fr.Name, err)
	}
	for i, n := range names {
		names[i] = SymbolName(n)
	}
	return &fragment{Fragment: fr, decoder: d, classes: names}, nil
}

func (fr *fragment) matches(anchor string) bool {
	return fr.Name == anchor || slices.Contains(fr.classes, SymbolName(anchor))
}

// selection is the outcome of sorting fragments into kept and rejected.
type selection struct {
	kept []*fragment
	// orphans are classes defined only by rejected fragments.
	orphans map[string]bool
	result  Result
}

func (f *AbcFilter) selectFragments(movies []*Movie) (*selection, error) {
	sel := &selection{orphans: make(map[string]bool)}
	var rejected []*fragment
	for _, m := range movies {
		frags, err := m.Fragments()
		if err != nil {
			return nil, err
		}
		for _, raw := range frags {
			fr, err := decodeFragment(raw)
			if err != nil {
				return nil, err
			}
			if f.accept(fr.Name) {
				sel.kept = append(sel.kept, fr)
				sel.result.Kept = append(sel.result.Kept, fr.Name)
			} else {
				rejected = append(rejected, fr)
				sel.result.Rejected = append(sel.result.Rejected, fr.Name)
			}
		}
	}

	for _, inj := range f.injections {
		fr, err := decodeFragment(Fragment{Flags: DoABCLazyInitialize, Name: inj.Name, ABC: inj.ABC})
		if err != nil {
			return nil, fmt.Errorf("injection: %w", err)
		}
		at := slices.IndexFunc(sel.kept, func(k *fragment) bool { return k.matches(inj.Anchor) })
		if at < 0 {
			return nil, errors.WrapAnchorNotFound(inj.Anchor)
		}
		sel.kept = slices.Insert(sel.kept, at, fr)
		sel.result.Injected = append(sel.result.Injected, inj.Name)
	}

	for _, fr := range rejected {
		for _, c := range fr.classes {
			sel.orphans[c] = true
		}
	}
	for _, fr := range sel.kept {
		for _, c := range fr.classes {
			delete(sel.orphans, c)
		}
	}
	return sel, nil
}

func (f *AbcFilter) merge(sel *selection) ([]byte, error) {
	decoders := make([]*abc.Decoder, len(sel.kept))
	for i, fr := range sel.kept {
		decoders[i] = fr.decoder
	}
	out, stats, err := abc.Merge(decoders, f.opts.ABC)
	if err != nil {
		return nil, err
	}
	sel.result.Stats = stats
	return out, nil
}

// TranscodeABC merges the accepted fragments of movies and returns the bare
// ABC block.
func (f *AbcFilter) TranscodeABC(movies ...*Movie) ([]byte, Result, error) {
	sel, err := f.selectFragments(movies)
	if err != nil {
		return nil, Result{}, err
	}
	out, err := f.merge(sel)
	if err != nil {
		return nil, Result{}, err
	}
	return out, sel.result, nil
}

// Transcode rewrites the first movie with the accepted fragments of all
// movies merged into one DoABC2 tag. Later movies only contribute code.
func (f *AbcFilter) Transcode(movies ...*Movie) ([]byte, Result, error) {
	if len(movies) == 0 {
		return nil, Result{}, errors.WrapValidationError("no input movies")
	}
	sel, err := f.selectFragments(movies)
	if err != nil {
		return nil, Result{}, err
	}
	var merged []byte
	if len(sel.kept) > 0 {
		abcBlock, err := f.merge(sel)
		if err != nil {
			return nil, Result{}, err
		}
		merged = AppendDoABC2(nil, Fragment{Flags: DoABCLazyInitialize, Name: sel.kept[0].Name, ABC: abcBlock})
	}

	skel := movies[0]
	tags, dropped, err := f.rewrite(skel, merged, sel.orphans)
	if err != nil {
		return nil, Result{}, err
	}
	sel.result.DroppedTags = dropped
	out, err := Encode(skel.Header, tags, f.opts.Compress)
	if err != nil {
		return nil, Result{}, err
	}
	return out, sel.result, nil
}

// mergeIndex picks the skeleton tag the merged block goes in front of: the
// first ABC tag, else the first frame, else the end of the movie.
func (f *AbcFilter) mergeIndex(m *Movie) int {
	if f.opts.MergePoint >= 0 {
		if end := m.Find(TagEnd); end >= 0 && f.opts.MergePoint > end {
			return end
		}
		return min(f.opts.MergePoint, len(m.Tags))
	}
	for i, t := range m.Tags {
		if t.Code == TagDoABC || t.Code == TagDoABC2 {
			return i
		}
	}
	for i, t := range m.Tags {
		if t.Code == TagShowFrame || t.Code == TagEnd {
			return i
		}
	}
	return len(m.Tags)
}

// rewrite walks the skeleton's tags. Runs of tags that are copied unchanged
// are written in one piece when the next tag needing attention comes up.
func (f *AbcFilter) rewrite(m *Movie, merged []byte, orphans map[string]bool) ([]byte, int, error) {
	at := f.mergeIndex(m)
	// FileAttributes only loses HasMetadata along with the Metadata tag.
	dropsMetadata := !f.opts.KeepDebugTags && m.Find(TagMetadata) >= 0
	var out []byte
	dropped := 0
	from := 0
	if len(m.Tags) > 0 {
		from = m.Tags[0].Start
	}
	flush := func(upto int) {
		out = append(out, m.Span(from, upto)...)
	}

	for i, t := range m.Tags {
		if i == at && merged != nil {
			flush(t.Start)
			out = append(out, merged...)
			from = t.Start
		}
		switch {
		case t.Code == TagDoABC || t.Code == TagDoABC2:
			flush(t.Start)
			from = t.End()

		case debugTags[t.Code] && !f.opts.KeepDebugTags:
			flush(t.Start)
			from = t.End()
			dropped++
			logger.Logger.Debug("Dropped tag", "code", t.Code, "offset", t.Start)

		case t.Code == TagFileAttributes && dropsMetadata:
			body := m.Body(t)
			if len(body) == 0 || body[0]&AttrHasMetadata == 0 {
				continue
			}
			flush(t.Start)
			patched := slices.Clone(body)
			patched[0] &^= AttrHasMetadata
			out = AppendTag(out, TagFileAttributes, patched)
			from = t.End()

		case t.Code == TagSymbolClass && len(orphans) > 0:
			syms, err := ParseSymbols(m.Body(t))
			if err != nil {
				return nil, 0, fmt.Errorf("%s: %w", t, err)
			}
			kept := slices.DeleteFunc(slices.Clone(syms), func(s Symbol) bool { return orphans[s.Name] })
			if len(kept) == len(syms) {
				continue
			}
			flush(t.Start)
			if len(kept) > 0 {
				out = AppendSymbols(out, TagSymbolClass, kept)
			}
			from = t.End()
		}
	}
	if len(m.Tags) > 0 {
		flush(m.Tags[len(m.Tags)-1].End())
	}
	if at >= len(m.Tags) && merged != nil {
		out = append(out, merged...)
	}
	return out, dropped, nil
}
