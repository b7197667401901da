// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package abc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildClassBlock returns a block defining class pkg:name with a constructor,
// a private slot, a public method tagged [Bindable] and [__go_to_definition_help],
// and a script that installs the class. Every pool entry it creates is
// referenced, so a re-encoded copy has the same pool sizes.
func buildClassBlock(t *testing.T, pkg, name string) []byte {
	t.Helper()
	b := NewBuilder()
	pub := b.PackageNamespace("")
	object := b.QName(pub, "Object")
	className := b.PackageQName(pkg, name)
	voidT := b.QName(pub, "void")
	intT := b.QName(pub, "int")
	trace := b.QName(pub, "trace")
	secret := b.QName(b.Namespace(NsPrivate, pkg+":"+name), "secret")

	iinit := b.AddMethod(MethodInfo{Name: b.String(name)})
	cinit := b.AddMethod(MethodInfo{})
	greet := b.AddMethod(MethodInfo{
		ReturnType: voidT,
		ParamTypes: []uint32{intT},
		Name:       b.String("greet"),
		Flags:      MethodHasOptional | MethodHasParamNames,
		Options:    []OptionDetail{{Value: b.Int(7), Kind: ValInt}},
		ParamNames: []uint32{b.String("count")},
	})
	sinit := b.AddMethod(MethodInfo{})

	bindable := b.AddMetadata(Metadata{
		Name:   b.String("Bindable"),
		Keys:   []uint32{b.String("event")},
		Values: []uint32{b.String("change")},
	})
	gotoDef := b.AddMetadata(Metadata{
		Name:   b.String("__go_to_definition_help"),
		Keys:   []uint32{b.String("pos")},
		Values: []uint32{b.String("12")},
	})

	class := b.AddClass(Instance{
		Name:        className,
		SuperName:   object,
		Flags:       InstanceSealed | InstanceProtectedNs,
		ProtectedNS: b.Namespace(NsProtected, pkg+":"+name),
		Init:        iinit,
		Traits: []Trait{
			{Name: secret, Kind: TraitSlot, SlotID: 1, TypeName: intT, VIndex: b.Int(42), VKind: ValInt},
			{Name: b.QName(pub, "greet"), Kind: TraitMethod, Attrs: AttrMetadata, Index: greet, Metadata: []uint32{bindable, gotoDef}},
			{Name: b.QName(pub, "ctorHelp"), Kind: TraitConst, SlotID: 2, TypeName: intT, Attrs: AttrMetadata, Metadata: []uint32{gotoDef}},
		},
	}, Class{Init: cinit})
	b.AddScript(Script{Init: sinit, Traits: []Trait{{Name: className, Kind: TraitClass, SlotID: 1, Index: class}}})

	ctor := NewCode().
		Op(OpGetLocal0).Op(OpPushScope).
		Op(OpGetLocal0).Op(OpConstructSuper, 0).
		Op(OpReturnVoid).MustAssemble()
	static := NewCode().Op(OpGetLocal0).Op(OpPushScope).Op(OpReturnVoid).MustAssemble()
	greetCode := NewCode().
		Op(OpGetLocal0).Op(OpPushScope).
		Op(OpFindPropStrict, trace).
		Op(OpPushString, b.String("hi")).
		Op(OpCallPropVoid, trace, 1).
		Op(OpReturnVoid).MustAssemble()
	scriptCode := NewCode().
		Op(OpGetLocal0).Op(OpPushScope).
		Op(OpGetScopeObject, 0).
		Op(OpGetLex, object).Op(OpPushScope).
		Op(OpGetLex, object).
		Op(OpNewClass, class).
		Op(OpPopScope).
		Op(OpInitProperty, className).
		Op(OpReturnVoid).MustAssemble()

	b.AddBody(MethodBody{Method: iinit, MaxStack: 1, LocalCount: 1, InitScopeDepth: 0, MaxScopeDepth: 1, Code: ctor})
	b.AddBody(MethodBody{Method: cinit, MaxStack: 1, LocalCount: 1, InitScopeDepth: 0, MaxScopeDepth: 1, Code: static})
	b.AddBody(MethodBody{Method: greet, MaxStack: 2, LocalCount: 2, InitScopeDepth: 0, MaxScopeDepth: 1, Code: greetCode})
	b.AddBody(MethodBody{Method: sinit, MaxStack: 2, LocalCount: 1, InitScopeDepth: 0, MaxScopeDepth: 3, Code: scriptCode})
	return b.Bytes()
}

// buildCodeBlock wraps code into a block with a single method. Operand
// indices in code refer to the pool built by setup.
func buildCodeBlock(t *testing.T, setup func(b *Builder) *Code) []byte {
	t.Helper()
	return buildCodeBlockWithExceptions(t, func(b *Builder) (*Code, []Exception) {
		return setup(b), nil
	})
}

func buildCodeBlockWithExceptions(t *testing.T, setup func(b *Builder) (*Code, []Exception)) []byte {
	t.Helper()
	b := NewBuilder()
	code, excs := setup(b)
	raw, err := code.Assemble()
	require.NoError(t, err)
	m := b.AddMethod(MethodInfo{})
	b.AddBody(MethodBody{Method: m, MaxStack: 4, LocalCount: 2, MaxScopeDepth: 1, Code: raw, Exceptions: excs})
	return b.Bytes()
}

func mustDecode(t *testing.T, name string, data []byte) *Decoder {
	t.Helper()
	d, err := NewDecoder(name, data)
	require.NoError(t, err)
	return d
}

// mergeBlocks merges data blocks and decodes the result.
func mergeBlocks(t *testing.T, opts Options, blocks ...[]byte) (*Decoder, Stats) {
	t.Helper()
	decoders := make([]*Decoder, len(blocks))
	for i, data := range blocks {
		decoders[i] = mustDecode(t, "frag", data)
	}
	out, stats, err := Merge(decoders, opts)
	require.NoError(t, err)
	return mustDecode(t, "merged", out), stats
}

// rawOptions re-encodes without changing any code or metadata.
func rawOptions() Options {
	return Options{}
}
