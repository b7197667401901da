// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package namefilter decides which ABC fragments survive a transcode, by
// matching fragment names against include and exclude globs.
//
// Names and patterns are compared with package separators ('.' and ':')
// turned into '/', so "mx.core.*", "mx/core/*" and "mx.core:*" all select
// the fragment named "mx.core:UIComponent", and "**" crosses packages.
package namefilter

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dotandev/abcmerge/internal/errors"
)

// Filter accepts a name when it matches at least one include pattern (or no
// include patterns were given) and no exclude pattern.
type Filter struct {
	include []string
	exclude []string
}

var separators = strings.NewReplacer(".", "/", ":", "/")

func normalize(s string) string {
	return separators.Replace(s)
}

func compile(patterns []string) ([]string, error) {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n := normalize(p)
		if !doublestar.ValidatePattern(n) {
			return nil, errors.WrapValidationError(fmt.Sprintf("invalid name pattern %q", p))
		}
		out = append(out, n)
	}
	return out, nil
}

// New builds a filter. Empty patterns are ignored.
func New(include, exclude []string) (*Filter, error) {
	inc, err := compile(include)
	if err != nil {
		return nil, err
	}
	exc, err := compile(exclude)
	if err != nil {
		return nil, err
	}
	return &Filter{include: inc, exclude: exc}, nil
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		// Patterns were validated in New, so Match cannot fail.
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Accept reports whether the fragment called name is kept. A nil filter
// keeps everything.
func (f *Filter) Accept(name string) bool {
	if f == nil {
		return true
	}
	n := normalize(name)
	if len(f.include) > 0 && !matchAny(f.include, n) {
		return false
	}
	return !matchAny(f.exclude, n)
}

// String renders the normalized patterns; equal strings mean equal filters.
func (f *Filter) String() string {
	if f == nil {
		return "+[] -[]"
	}
	return fmt.Sprintf("+%v -%v", f.include, f.exclude)
}
