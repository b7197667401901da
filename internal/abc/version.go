// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package abc

import (
	"fmt"

	"github.com/hashicorp/go-version"

	"github.com/dotandev/abcmerge/internal/errors"
)

// SupportedVersions is the range of ABC major.minor versions the codec reads.
const SupportedVersions = ">= 46.15, < 48.0"

var supported = version.MustConstraints(version.NewConstraint(SupportedVersions))

// CheckVersion parses major.minor and rejects versions outside
// SupportedVersions.
func CheckVersion(major, minor uint16) (*version.Version, error) {
	v, err := version.NewVersion(fmt.Sprintf("%d.%d", major, minor))
	if err != nil {
		return nil, err
	}
	if !supported.Check(v) {
		return nil, errors.Unsupported("ABC version %s (want %s)", v.Original(), SupportedVersions)
	}
	return v, nil
}

// outputVersion picks the version written on a merged block: the override
// when given, else the highest input version.
func outputVersion(decoders []*Decoder, override string) (minor, major uint16, err error) {
	var best *version.Version
	for _, d := range decoders {
		v, err := CheckVersion(d.Major, d.Minor)
		if err != nil {
			return 0, 0, fmt.Errorf("fragment %q: %w", d.Name, err)
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	if override != "" {
		if best, err = version.NewVersion(override); err != nil {
			return 0, 0, fmt.Errorf("output version %q: %w", override, err)
		}
	}
	if best == nil {
		return 16, 46, nil
	}
	seg := best.Segments()
	return uint16(seg[1]), uint16(seg[0]), nil
}
