// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package swf

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotandev/abcmerge/internal/abc"
)

// classBlock builds an ABC block defining class pkg:name whose constructor
// calls trace().
func classBlock(t *testing.T, pkg, name string) []byte {
	t.Helper()
	b := abc.NewBuilder()
	pub := b.PackageNamespace("")
	object := b.QName(pub, "Object")
	trace := b.QName(pub, "trace")
	cls := b.PackageQName(pkg, name)

	iinit := b.AddMethod(abc.MethodInfo{})
	cinit := b.AddMethod(abc.MethodInfo{})
	sinit := b.AddMethod(abc.MethodInfo{})
	idx := b.AddClass(abc.Instance{Name: cls, SuperName: object, Flags: abc.InstanceSealed, Init: iinit}, abc.Class{Init: cinit})
	b.AddScript(abc.Script{Init: sinit, Traits: []abc.Trait{{Name: cls, Kind: abc.TraitClass, SlotID: 1, Index: idx}}})

	ctor := abc.NewCode().
		Op(abc.OpGetLocal0).Op(abc.OpPushScope).
		Op(abc.OpGetLocal0).Op(abc.OpConstructSuper, 0).
		Op(abc.OpFindPropStrict, trace).
		Op(abc.OpPushString, b.String(name)).
		Op(abc.OpDebugLine, 3).
		Op(abc.OpCallPropVoid, trace, 1).
		Op(abc.OpReturnVoid).MustAssemble()
	static := abc.NewCode().Op(abc.OpGetLocal0).Op(abc.OpPushScope).Op(abc.OpReturnVoid).MustAssemble()
	install := abc.NewCode().
		Op(abc.OpGetLocal0).Op(abc.OpPushScope).
		Op(abc.OpGetScopeObject, 0).
		Op(abc.OpGetLex, object).Op(abc.OpPushScope).
		Op(abc.OpGetLex, object).Op(abc.OpNewClass, idx).
		Op(abc.OpPopScope).
		Op(abc.OpInitProperty, cls).
		Op(abc.OpReturnVoid).MustAssemble()

	b.AddBody(abc.MethodBody{Method: iinit, MaxStack: 2, LocalCount: 1, MaxScopeDepth: 1, Code: ctor})
	b.AddBody(abc.MethodBody{Method: cinit, MaxStack: 1, LocalCount: 1, MaxScopeDepth: 1, Code: static})
	b.AddBody(abc.MethodBody{Method: sinit, MaxStack: 2, LocalCount: 1, MaxScopeDepth: 2, Code: install})
	return b.Bytes()
}

func doABC2(t *testing.T, pkg, name string) []byte {
	t.Helper()
	return AppendDoABC2(nil, Fragment{Flags: DoABCLazyInitialize, Name: pkg + ":" + name, ABC: classBlock(t, pkg, name)})
}

func tag(code uint16, body ...byte) []byte {
	return AppendTag(nil, code, body)
}

func symbolTag(code uint16, syms ...Symbol) []byte {
	return AppendSymbols(nil, code, syms)
}

// movie frames tags with the wrapper header and parses the result.
func movie(t *testing.T, tags ...[]byte) *Movie {
	t.Helper()
	var body []byte
	for _, tg := range tags {
		body = append(body, tg...)
	}
	data, err := Encode(wrapHeader, body, false)
	require.NoError(t, err)
	m, err := Parse(data)
	require.NoError(t, err)
	return m
}

func parse(t *testing.T, data []byte) *Movie {
	t.Helper()
	m, err := Parse(data)
	require.NoError(t, err)
	return m
}

func codes(m *Movie) []uint16 {
	out := make([]uint16, len(m.Tags))
	for i, tg := range m.Tags {
		out[i] = tg.Code
	}
	return out
}

// fragments decodes every ABC tag of m.
func fragments(t *testing.T, m *Movie) []Fragment {
	t.Helper()
	out, err := m.Fragments()
	require.NoError(t, err)
	return out
}

func decode(t *testing.T, f Fragment) *abc.Decoder {
	t.Helper()
	d, err := abc.NewDecoder(f.Name, f.ABC)
	require.NoError(t, err)
	return d
}
