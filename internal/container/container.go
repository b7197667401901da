// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package container loads transcoder inputs: SWF movies, SWC libraries and
// bare ABC blocks, any of them optionally xz-compressed.
package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/therootcompany/xz"

	"github.com/dotandev/abcmerge/internal/errors"
	"github.com/dotandev/abcmerge/internal/swf"
)

type Kind int

const (
	KindSWF Kind = iota + 1
	KindSWC
	KindABC
)

func (k Kind) String() string {
	switch k {
	case KindSWF:
		return "swf"
	case KindSWC:
		return "swc"
	case KindABC:
		return "abc"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// LibraryEntry is the member of a SWC archive holding its code.
const LibraryEntry = "library.swf"

const xzMagic = "\xfd7zXZ\x00"

// Input is one loaded input. Movie is set for SWF and SWC inputs, ABC for
// bare blocks.
type Input struct {
	Path  string
	Kind  Kind
	Movie *swf.Movie
	ABC   []byte
	// Size is the number of bytes read from disk, before any decompression.
	Size int
}

// Load reads and identifies the file at path.
func Load(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return Read(path, data)
}

// Read identifies data by its leading bytes. name is used for error messages
// and to name the fragment of a bare ABC block.
func Read(name string, data []byte) (*Input, error) {
	in := &Input{Path: name, Size: len(data)}
	if bytes.HasPrefix(data, []byte(xzMagic)) {
		var err error
		if data, err = unxz(data); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	switch {
	case swf.IsMovie(data):
		m, err := swf.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		in.Kind, in.Movie = KindSWF, m
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		m, err := readSWC(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		in.Kind, in.Movie = KindSWC, m
	case isABC(data):
		in.Kind, in.ABC = KindABC, data
	default:
		return nil, errors.WrapUnknownFormat(name)
	}
	return in, nil
}

func isABC(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	major := binary.LittleEndian.Uint16(data[2:])
	return major == 46 || major == 47
}

func unxz(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data), xz.DefaultDictMax)
	if err != nil {
		return nil, errors.Malformed(0, "xz stream: %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Malformed(0, "xz stream: %v", err)
	}
	return out, nil
}

func readSWC(data []byte) (*swf.Movie, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Malformed(0, "SWC archive: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != LibraryEntry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Malformed(0, "SWC member %s: %v", f.Name, err)
		}
		lib, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, errors.Malformed(0, "SWC member %s: %v", f.Name, err)
		}
		return swf.Parse(lib)
	}
	return nil, errors.Malformed(0, "SWC archive has no %s", LibraryEntry)
}

// FragmentName is the name a bare ABC input at path gets when wrapped: the
// file name without directory or extension.
func FragmentName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (in *Input) FragmentName() string {
	return FragmentName(in.Path)
}

// AsMovie returns the input as a movie, wrapping a bare ABC block in a
// minimal one.
func (in *Input) AsMovie() (*swf.Movie, error) {
	if in.Movie != nil {
		return in.Movie, nil
	}
	return swf.WrapABC(in.FragmentName(), in.ABC)
}
