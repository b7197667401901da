// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package swf

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dotandev/abcmerge/internal/abc"
	"github.com/dotandev/abcmerge/internal/errors"
)

// PoolKind selects the base class of generated pool classes.
type PoolKind string

const (
	PoolImage PoolKind = "image"
	PoolSWF   PoolKind = "swf"
)

// MaxPoolClasses bounds Generate; SymbolClass ids are 16 bits and id 0 is the
// main timeline.
const MaxPoolClasses = 0xffff

// poolTemplate is the fixed part of a generated pool movie.
type poolTemplate struct {
	prefix string
	// chain lists the base class and its ancestors, root first.
	chain []string
	// head holds the tags that precede the DoABC2 tag.
	head []byte
}

// poolTemplates is built on first use and read-only afterwards.
var poolTemplates = sync.OnceValue(func() map[PoolKind]*poolTemplate {
	head := AppendTag(nil, TagFileAttributes, []byte{AttrActionScript3, 0, 0, 0})
	head = AppendTag(head, TagSetBackgroundColor, []byte{0xff, 0xff, 0xff})
	display := []string{"Object", "flash.events:EventDispatcher", "flash.display:DisplayObject"}
	return map[PoolKind]*poolTemplate{
		PoolImage: {
			prefix: "img",
			chain:  append(display[:3:3], "flash.display:Bitmap"),
			head:   head,
		},
		PoolSWF: {
			prefix: "swf",
			chain: append(display[:3:3],
				"flash.display:InteractiveObject",
				"flash.display:DisplayObjectContainer",
				"flash.display:Sprite",
				"flash.display:MovieClip"),
			head: head,
		},
	}
})

// ClassPoolGenerator produces movies declaring numbered placeholder classes
// that later builds bind assets to through SymbolClass ids.
type ClassPoolGenerator struct {
	opts Options
}

func NewClassPoolGenerator(opts Options) *ClassPoolGenerator {
	return &ClassPoolGenerator{opts: opts}
}

// ClassName is the name of pool class n.
func (g *ClassPoolGenerator) ClassName(kind PoolKind, n int) (string, error) {
	tpl, ok := poolTemplates()[kind]
	if !ok {
		return "", errors.WrapValidationError(fmt.Sprintf("unknown class pool kind %q", kind))
	}
	return fmt.Sprintf("_%s%d", tpl.prefix, n), nil
}

func qname(b *abc.Builder, qualified string) uint32 {
	if i := strings.LastIndexByte(qualified, ':'); i >= 0 {
		return b.PackageQName(qualified[:i], qualified[i+1:])
	}
	return b.PackageQName("", qualified)
}

// Generate builds a movie with count classes _<prefix>1.._<prefix>count, each
// extending the kind's base class and bound to character id n.
func (g *ClassPoolGenerator) Generate(kind PoolKind, count int) ([]byte, error) {
	tpl, ok := poolTemplates()[kind]
	if !ok {
		return nil, errors.WrapValidationError(fmt.Sprintf("unknown class pool kind %q", kind))
	}
	if count < 1 || count > MaxPoolClasses {
		return nil, errors.WrapValidationError(fmt.Sprintf("class pool size %d out of range 1..%d", count, MaxPoolClasses))
	}

	b := abc.NewBuilder()
	chain := make([]uint32, len(tpl.chain))
	for i, c := range tpl.chain {
		chain[i] = qname(b, c)
	}
	base := chain[len(chain)-1]

	ctor := abc.NewCode().
		Op(abc.OpGetLocal0).Op(abc.OpPushScope).
		Op(abc.OpGetLocal0).Op(abc.OpConstructSuper, 0).
		Op(abc.OpReturnVoid).MustAssemble()
	static := abc.NewCode().Op(abc.OpGetLocal0).Op(abc.OpPushScope).Op(abc.OpReturnVoid).MustAssemble()

	install := abc.NewCode().Op(abc.OpGetLocal0).Op(abc.OpPushScope)
	var traits []abc.Trait
	syms := make([]Symbol, count)
	for n := 1; n <= count; n++ {
		name := fmt.Sprintf("_%s%d", tpl.prefix, n)
		cls := b.PackageQName("", name)
		iinit := b.AddMethod(abc.MethodInfo{})
		cinit := b.AddMethod(abc.MethodInfo{})
		idx := b.AddClass(abc.Instance{Name: cls, SuperName: base, Flags: abc.InstanceSealed, Init: iinit}, abc.Class{Init: cinit})
		b.AddBody(abc.MethodBody{Method: iinit, MaxStack: 1, LocalCount: 1, InitScopeDepth: uint32(len(chain)) + 1, MaxScopeDepth: uint32(len(chain)) + 2, Code: ctor})
		b.AddBody(abc.MethodBody{Method: cinit, MaxStack: 1, LocalCount: 1, InitScopeDepth: uint32(len(chain)) + 1, MaxScopeDepth: uint32(len(chain)) + 2, Code: static})

		install.Op(abc.OpGetScopeObject, 0)
		for _, c := range chain[:len(chain)-1] {
			install.Op(abc.OpGetLex, c).Op(abc.OpPushScope)
		}
		install.Op(abc.OpGetLex, base).Op(abc.OpNewClass, idx)
		for range chain[:len(chain)-1] {
			install.Op(abc.OpPopScope)
		}
		install.Op(abc.OpInitProperty, cls)

		traits = append(traits, abc.Trait{Name: cls, Kind: abc.TraitClass, SlotID: uint32(n), Index: idx})
		syms[n-1] = Symbol{ID: uint16(n), Name: name}
	}
	install.Op(abc.OpReturnVoid)
	code, err := install.Assemble()
	if err != nil {
		return nil, err
	}
	sinit := b.AddMethod(abc.MethodInfo{})
	b.AddScript(abc.Script{Init: sinit, Traits: traits})
	b.AddBody(abc.MethodBody{Method: sinit, MaxStack: 2, LocalCount: 1, MaxScopeDepth: uint32(len(chain)) + 1, Code: code})

	tags := append([]byte(nil), tpl.head...)
	tags = AppendDoABC2(tags, Fragment{Flags: DoABCLazyInitialize, Name: "_" + tpl.prefix + "pool", ABC: b.Bytes()})
	tags = AppendSymbols(tags, TagSymbolClass, syms)
	tags = AppendTag(tags, TagShowFrame, nil)
	tags = AppendTag(tags, TagEnd, nil)
	return Encode(wrapHeader, tags, g.opts.Compress)
}
