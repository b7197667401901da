// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package abc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	abcerrors "github.com/dotandev/abcmerge/internal/errors"
)

func TestOpTableShapes(t *testing.T) {
	for op := 0; op < 256; op++ {
		info, ok := Lookup(byte(op))
		if !ok {
			continue
		}
		assert.NotEmpty(t, info.Name, "op 0x%02x", op)
		for _, kind := range info.Operands {
			if kind == OperandBranch || kind == OperandSwitch {
				assert.Len(t, info.Operands, 1, "%s mixes branch and other operands", info.Name)
			}
		}
	}
	_, ok := Lookup(0xff)
	assert.False(t, ok)
}

func TestLookupSwitchIsRelativeToOpcode(t *testing.T) {
	code := []byte{
		OpNop, OpNop,
		OpLookupSwitch, 0x0b, 0x00, 0x00, 0x01, 0xfe, 0xff, 0xff, 0x0c, 0x00, 0x00,
		OpReturnVoid, OpReturnVoid,
	}
	in, err := DecodeInstruction(code, 2)
	require.NoError(t, err)
	assert.True(t, in.IsSwitch())
	assert.Equal(t, 11, in.Length)
	assert.Equal(t, []int{13, 0, 14}, in.Targets())
}

func TestBranchIsRelativeToEnd(t *testing.T) {
	code := NewCode().Branch(OpIfTrue, "end").Op(OpNop).Label("end").Op(OpReturnVoid).MustAssemble()
	in, err := DecodeInstruction(code, 0)
	require.NoError(t, err)
	assert.True(t, in.IsBranch())
	assert.Equal(t, int32(1), in.Branch)
	assert.Equal(t, []int{5}, in.Targets())
}

func TestDecodeCodeErrors(t *testing.T) {
	_, err := DecodeCode([]byte{OpReturnVoid, 0xff})
	assert.True(t, errors.Is(err, abcerrors.ErrMalformedInput))

	_, err = DecodeCode([]byte{OpJump, 0x01})
	assert.True(t, errors.Is(err, abcerrors.ErrMalformedInput))
}

func TestBranchIntoOperandIsRejected(t *testing.T) {
	b := NewBuilder()
	m := b.AddMethod(MethodInfo{})
	b.AddBody(MethodBody{Method: m, Code: []byte{OpJump, 0x01, 0x00, 0x00, OpPushByte, 0x05, OpReturnVoid}})

	_, _, err := Merge([]*Decoder{mustDecode(t, "bad", b.Bytes())}, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, abcerrors.ErrMalformedInput))
}

func TestExceptionOutsideCodeIsRejected(t *testing.T) {
	b := NewBuilder()
	m := b.AddMethod(MethodInfo{})
	b.AddBody(MethodBody{
		Method:     m,
		Code:       []byte{OpNop, OpReturnVoid},
		Exceptions: []Exception{{From: 0, To: 1, Target: 9}},
	})

	_, _, err := Merge([]*Decoder{mustDecode(t, "bad", b.Bytes())}, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, abcerrors.ErrMalformedInput))
}

func TestCodeAssemblerErrors(t *testing.T) {
	_, err := NewCode().Op(OpJump, 0).Assemble()
	assert.Error(t, err)

	_, err = NewCode().Branch(OpPop, "x").Assemble()
	assert.Error(t, err)

	_, err = NewCode().Branch(OpJump, "missing").Assemble()
	assert.Error(t, err)

	_, err = NewCode().Label("a").Label("a").Assemble()
	assert.Error(t, err)

	_, err = NewCode().Op(OpPushByte).Assemble()
	assert.Error(t, err)

	assert.Panics(t, func() { NewCode().Switch("d").MustAssemble() })
}

func TestCheckVersion(t *testing.T) {
	for _, ok := range [][2]uint16{{46, 15}, {46, 16}, {46, 17}, {47, 12}} {
		_, err := CheckVersion(ok[0], ok[1])
		assert.NoError(t, err, "%d.%d", ok[0], ok[1])
	}
	for _, bad := range [][2]uint16{{46, 14}, {45, 16}, {48, 0}} {
		_, err := CheckVersion(bad[0], bad[1])
		assert.True(t, errors.Is(err, abcerrors.ErrUnsupportedFeature), "%d.%d", bad[0], bad[1])
	}
}
