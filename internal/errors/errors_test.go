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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrors(t *testing.T) {
	assert.NotNil(t, ErrMalformedInput)
	assert.NotNil(t, ErrUnsupportedFeature)
	assert.NotNil(t, ErrUnknownFormat)
	assert.NotNil(t, ErrAnchorNotFound)
	assert.NotNil(t, ErrSymbolNotFound)
	assert.NotNil(t, ErrConfig)
	assert.NotNil(t, ErrValidation)
	assert.NotNil(t, ErrUnauthorized)
}

func TestErrorWrapping(t *testing.T) {
	baseErr := fmt.Errorf("base error")

	wrappedErr := WrapConfigError("failed to read config file", baseErr)
	assert.True(t, errors.Is(wrappedErr, ErrConfig))
	assert.True(t, errors.Is(wrappedErr, baseErr))
	assert.Contains(t, wrappedErr.Error(), "failed to read config file")

	wrappedErr = WrapConfigError("no cause", nil)
	assert.True(t, errors.Is(wrappedErr, ErrConfig))

	wrappedErr = WrapValidationError("log_level is bogus")
	assert.True(t, errors.Is(wrappedErr, ErrValidation))
	assert.Contains(t, wrappedErr.Error(), "log_level is bogus")

	wrappedErr = WrapUnknownFormat("foo.bin")
	assert.True(t, errors.Is(wrappedErr, ErrUnknownFormat))
	assert.Contains(t, wrappedErr.Error(), "foo.bin")

	wrappedErr = WrapAnchorNotFound("mx.core:UIComponent")
	assert.True(t, errors.Is(wrappedErr, ErrAnchorNotFound))
	assert.Contains(t, wrappedErr.Error(), "mx.core:UIComponent")

	wrappedErr = WrapSymbolNotFound("Logo")
	assert.True(t, errors.Is(wrappedErr, ErrSymbolNotFound))

	wrappedErr = WrapUnauthorized("missing token")
	assert.True(t, errors.Is(wrappedErr, ErrUnauthorized))
}

func TestDecodeError(t *testing.T) {
	err := Malformed(42, "unknown multiname kind 0x%02x", 0x33)

	assert.True(t, errors.Is(err, ErrMalformedInput))
	assert.False(t, errors.Is(err, ErrUnsupportedFeature))
	assert.Equal(t, "malformed input at offset 42: unknown multiname kind 0x33", err.Error())

	var de *DecodeError
	assert.True(t, errors.As(fmt.Errorf("decode method body 3: %w", err), &de))
	assert.Equal(t, 42, de.Offset)
}

func TestUnsupportedError(t *testing.T) {
	err := Unsupported("PlaceObject3 in symbol %q", "Logo")

	assert.True(t, errors.Is(err, ErrUnsupportedFeature))
	assert.False(t, errors.Is(err, ErrMalformedInput))
	assert.Contains(t, err.Error(), "PlaceObject3")
}
