// Copyright (c) 2026 dotandev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison with errors.Is
var (
	ErrMalformedInput     = errors.New("malformed input")
	ErrUnsupportedFeature = errors.New("unsupported feature")
	ErrUnknownFormat      = errors.New("unknown input format")
	ErrAnchorNotFound     = errors.New("injection anchor not found")
	ErrSymbolNotFound     = errors.New("exported symbol not found")
	ErrConfig             = errors.New("configuration error")
	ErrValidation         = errors.New("validation error")
	ErrUnauthorized       = errors.New("unauthorized")
)

// DecodeError reports malformed input at a byte offset of the region being
// decoded. It unwraps to ErrMalformedInput.
type DecodeError struct {
	Offset int
	What   string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed input at offset %d: %s", e.Offset, e.What)
}

func (e *DecodeError) Unwrap() error {
	return ErrMalformedInput
}

// Malformed builds a DecodeError with a formatted description.
func Malformed(offset int, format string, args ...any) error {
	return &DecodeError{Offset: offset, What: fmt.Sprintf(format, args...)}
}

// UnsupportedError names a construct the transcoder recognises but does not
// handle. It unwraps to ErrUnsupportedFeature.
type UnsupportedError struct {
	Feature string
}

func (e *UnsupportedError) Error() string {
	return "unsupported feature: " + e.Feature
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupportedFeature
}

// Unsupported builds an UnsupportedError.
func Unsupported(format string, args ...any) error {
	return &UnsupportedError{Feature: fmt.Sprintf(format, args...)}
}

// Wrap functions for consistent error wrapping
func WrapConfigError(msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrConfig, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrConfig, msg, err)
}

func WrapValidationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func WrapUnknownFormat(name string) error {
	return fmt.Errorf("%w: %s", ErrUnknownFormat, name)
}

func WrapAnchorNotFound(anchor string) error {
	return fmt.Errorf("%w: %q", ErrAnchorNotFound, anchor)
}

func WrapSymbolNotFound(name string) error {
	return fmt.Errorf("%w: %q", ErrSymbolNotFound, name)
}

func WrapUnauthorized(msg string) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
}
