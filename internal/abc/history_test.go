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

// selfTypeName is a block whose only multiname is a type name applied to
// itself, referenced as a method return type.
func selfTypeName() []byte {
	var w Writer
	w.WriteU16(16)
	w.WriteU16(46)
	for i := 0; i < 6; i++ {
		w.WriteU32(0)
	}
	w.WriteU32(2)
	w.WriteU8(MnTypeName)
	w.WriteU32(1)
	w.WriteU32(1)
	w.WriteU32(1)

	w.WriteU32(1) // methods
	w.WriteU32(0)
	w.WriteU32(1)
	w.WriteU32(0)
	w.WriteU8(0)
	for i := 0; i < 4; i++ { // metadata, classes, scripts, bodies
		w.WriteU32(0)
	}
	return w.Bytes()
}

func TestRemapDetectsCycles(t *testing.T) {
	d := mustDecode(t, "cycle", selfTypeName())

	_, _, err := Merge([]*Decoder{d}, rawOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, abcerrors.ErrMalformedInput))

	_, err = d.Pool.QualifiedName(1)
	assert.True(t, errors.Is(err, abcerrors.ErrMalformedInput))
}

func TestRemapMemoizes(t *testing.T) {
	b := NewBuilder()
	name := b.PackageQName("a.b", "C")
	d := mustDecode(t, "memo", b.Bytes())

	h := NewIndexHistory([]*ConstantPool{d.Pool, d.Pool})
	first, err := h.Remap(0, KindMultiname, name)
	require.NoError(t, err)
	again, err := h.Remap(0, KindMultiname, name)
	require.NoError(t, err)
	other, err := h.Remap(1, KindMultiname, name)
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.Equal(t, first, other)
	assert.Equal(t, 1, h.Part(KindMultiname).Len())
	assert.Equal(t, 1, h.Part(KindNamespace).Len())
	assert.Equal(t, 2, h.Part(KindString).Len())

	zero, err := h.Remap(0, KindString, 0)
	require.NoError(t, err)
	assert.Zero(t, zero)

	_, err = h.Remap(0, KindString, 99)
	assert.True(t, errors.Is(err, abcerrors.ErrMalformedInput))
}

func TestRemapPullsDependenciesFirst(t *testing.T) {
	b := NewBuilder()
	b.String("unused")
	vec := b.TypeName(b.PackageQName("__AS3__.vec", "Vector"), b.QName(b.PackageNamespace(""), "int"))
	d := mustDecode(t, "deps", b.Bytes())

	h := NewIndexHistory([]*ConstantPool{d.Pool})
	idx, err := h.Remap(0, KindMultiname, vec)
	require.NoError(t, err)
	// Both parameters are interned before the type name that uses them.
	assert.Equal(t, uint32(3), idx)
	assert.Equal(t, 4, h.Part(KindString).Len())

	var w Writer
	h.WritePool(&w)
	merged := mustDecode(t, "merged", append(append([]byte{16, 0, 46, 0}, w.Bytes()...), 0, 0, 0, 0, 0))
	got, err := merged.Pool.QualifiedName(idx)
	require.NoError(t, err)
	assert.Equal(t, "__AS3__.vec:Vector.<int>", got)
}

func TestPoolPart(t *testing.T) {
	p := NewPoolPart()
	a := p.Intern([]byte("a"))
	b := p.Intern([]byte("b"))
	assert.Equal(t, uint32(1), a)
	assert.Equal(t, uint32(2), b)
	assert.Equal(t, a, p.Intern([]byte("a")))

	c := p.Append([]byte("a"))
	assert.Equal(t, uint32(3), c)
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, []byte("b"), p.Entry(2))

	var w Writer
	NewPoolPart().writeCounted(&w)
	assert.Equal(t, []byte{0}, w.Bytes())

	w.Reset()
	p.writeCounted(&w)
	assert.Equal(t, []byte{4, 'a', 'b', 'a'}, w.Bytes())
}
