// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package abc

import (
	"github.com/dotandev/abcmerge/internal/errors"
)

// All index fields below are raw indices into the owning block's constant
// pool or structural tables. Nothing here holds pointers to other entries.

type OptionDetail struct {
	Value uint32
	Kind  byte
}

type MethodInfo struct {
	ReturnType uint32
	ParamTypes []uint32
	Name       uint32
	Flags      byte
	Options    []OptionDetail
	ParamNames []uint32
}

type Metadata struct {
	Name   uint32
	Keys   []uint32
	Values []uint32
}

type Trait struct {
	Name  uint32
	Kind  TraitKind
	Attrs byte
	// SlotID doubles as the disp_id of method, getter and setter traits.
	SlotID   uint32
	TypeName uint32
	VIndex   uint32
	VKind    byte
	// Index is the method, class or function index for non-slot traits.
	Index    uint32
	Metadata []uint32
}

type Instance struct {
	Name        uint32
	SuperName   uint32
	Flags       byte
	ProtectedNS uint32
	Interfaces  []uint32
	Init        uint32
	Traits      []Trait
}

type Class struct {
	Init   uint32
	Traits []Trait
}

type Script struct {
	Init   uint32
	Traits []Trait
}

type Exception struct {
	From, To, Target uint32
	ExcType          uint32
	VarName          uint32
}

type MethodBody struct {
	Method         uint32
	MaxStack       uint32
	LocalCount     uint32
	InitScopeDepth uint32
	MaxScopeDepth  uint32
	Code           []byte
	Exceptions     []Exception
	Traits         []Trait
}

// readCount reads a table length and rejects lengths that cannot fit in the
// rest of the region, given that every entry takes at least minSize bytes.
func readCount(b *DataBuffer, what string, minSize int) (int, error) {
	at := b.Position()
	n, err := b.ReadU32()
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(minSize) > uint64(b.Remaining()) {
		return 0, errors.Malformed(at, "%s count %d exceeds region", what, n)
	}
	return int(n), nil
}

func readU32s(b *DataBuffer, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}
	out := make([]uint32, n)
	for i := range out {
		v, err := b.ReadU32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func writeU32s(w *Writer, vs []uint32) {
	for _, v := range vs {
		w.WriteU32(v)
	}
}

func readMethodInfo(b *DataBuffer) (MethodInfo, error) {
	var m MethodInfo
	n, err := readCount(b, "parameter", 1)
	if err != nil {
		return m, err
	}
	if m.ReturnType, err = b.ReadU32(); err != nil {
		return m, err
	}
	if m.ParamTypes, err = readU32s(b, n); err != nil {
		return m, err
	}
	if m.Name, err = b.ReadU32(); err != nil {
		return m, err
	}
	if m.Flags, err = b.ReadU8(); err != nil {
		return m, err
	}
	if m.Flags&MethodHasOptional != 0 {
		count, err := readCount(b, "optional parameter", 2)
		if err != nil {
			return m, err
		}
		m.Options = make([]OptionDetail, count)
		for i := range m.Options {
			if m.Options[i].Value, err = b.ReadU32(); err != nil {
				return m, err
			}
			if m.Options[i].Kind, err = b.ReadU8(); err != nil {
				return m, err
			}
		}
	}
	if m.Flags&MethodHasParamNames != 0 {
		if m.ParamNames, err = readU32s(b, n); err != nil {
			return m, err
		}
	}
	return m, nil
}

func writeMethodInfo(w *Writer, m *MethodInfo) {
	w.WriteU32(uint32(len(m.ParamTypes)))
	w.WriteU32(m.ReturnType)
	writeU32s(w, m.ParamTypes)
	w.WriteU32(m.Name)
	w.WriteU8(m.Flags)
	if m.Flags&MethodHasOptional != 0 {
		w.WriteU32(uint32(len(m.Options)))
		for _, o := range m.Options {
			w.WriteU32(o.Value)
			w.WriteU8(o.Kind)
		}
	}
	if m.Flags&MethodHasParamNames != 0 {
		writeU32s(w, m.ParamNames)
	}
}

func readMetadata(b *DataBuffer) (Metadata, error) {
	var md Metadata
	var err error
	if md.Name, err = b.ReadU32(); err != nil {
		return md, err
	}
	n, err := readCount(b, "metadata item", 2)
	if err != nil {
		return md, err
	}
	if md.Keys, err = readU32s(b, n); err != nil {
		return md, err
	}
	md.Values, err = readU32s(b, n)
	return md, err
}

func writeMetadata(w *Writer, md *Metadata) {
	w.WriteU32(md.Name)
	w.WriteU32(uint32(len(md.Keys)))
	writeU32s(w, md.Keys)
	writeU32s(w, md.Values)
}

func readTraits(b *DataBuffer) ([]Trait, error) {
	n, err := readCount(b, "trait", 3)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	traits := make([]Trait, n)
	for i := range traits {
		if traits[i], err = readTrait(b); err != nil {
			return nil, err
		}
	}
	return traits, nil
}

func readTrait(b *DataBuffer) (Trait, error) {
	var t Trait
	var err error
	if t.Name, err = b.ReadU32(); err != nil {
		return t, err
	}
	at := b.Position()
	kind, err := b.ReadU8()
	if err != nil {
		return t, err
	}
	t.Kind = TraitKind(kind & 0x0f)
	t.Attrs = kind >> 4
	switch t.Kind {
	case TraitSlot, TraitConst:
		if t.SlotID, err = b.ReadU32(); err != nil {
			return t, err
		}
		if t.TypeName, err = b.ReadU32(); err != nil {
			return t, err
		}
		if t.VIndex, err = b.ReadU32(); err != nil {
			return t, err
		}
		if t.VIndex != 0 {
			if t.VKind, err = b.ReadU8(); err != nil {
				return t, err
			}
		}
	case TraitMethod, TraitGetter, TraitSetter, TraitClass, TraitFunction:
		if t.SlotID, err = b.ReadU32(); err != nil {
			return t, err
		}
		if t.Index, err = b.ReadU32(); err != nil {
			return t, err
		}
	default:
		return t, errors.Malformed(at, "invalid trait kind %d", t.Kind)
	}
	if t.Attrs&AttrMetadata != 0 {
		n, err := readCount(b, "trait metadata", 1)
		if err != nil {
			return t, err
		}
		if t.Metadata, err = readU32s(b, n); err != nil {
			return t, err
		}
	}
	return t, nil
}

func writeTraits(w *Writer, traits []Trait) {
	w.WriteU32(uint32(len(traits)))
	for i := range traits {
		writeTrait(w, &traits[i])
	}
}

func writeTrait(w *Writer, t *Trait) {
	w.WriteU32(t.Name)
	w.WriteU8(byte(t.Kind)&0x0f | t.Attrs<<4)
	switch t.Kind {
	case TraitSlot, TraitConst:
		w.WriteU32(t.SlotID)
		w.WriteU32(t.TypeName)
		w.WriteU32(t.VIndex)
		if t.VIndex != 0 {
			w.WriteU8(t.VKind)
		}
	default:
		w.WriteU32(t.SlotID)
		w.WriteU32(t.Index)
	}
	if t.Attrs&AttrMetadata != 0 {
		w.WriteU32(uint32(len(t.Metadata)))
		writeU32s(w, t.Metadata)
	}
}

func readInstance(b *DataBuffer) (Instance, error) {
	var in Instance
	var err error
	if in.Name, err = b.ReadU32(); err != nil {
		return in, err
	}
	if in.SuperName, err = b.ReadU32(); err != nil {
		return in, err
	}
	if in.Flags, err = b.ReadU8(); err != nil {
		return in, err
	}
	if in.Flags&InstanceProtectedNs != 0 {
		if in.ProtectedNS, err = b.ReadU32(); err != nil {
			return in, err
		}
	}
	n, err := readCount(b, "interface", 1)
	if err != nil {
		return in, err
	}
	if in.Interfaces, err = readU32s(b, n); err != nil {
		return in, err
	}
	if in.Init, err = b.ReadU32(); err != nil {
		return in, err
	}
	in.Traits, err = readTraits(b)
	return in, err
}

func writeInstance(w *Writer, in *Instance) {
	w.WriteU32(in.Name)
	w.WriteU32(in.SuperName)
	w.WriteU8(in.Flags)
	if in.Flags&InstanceProtectedNs != 0 {
		w.WriteU32(in.ProtectedNS)
	}
	w.WriteU32(uint32(len(in.Interfaces)))
	writeU32s(w, in.Interfaces)
	w.WriteU32(in.Init)
	writeTraits(w, in.Traits)
}

func readClass(b *DataBuffer) (Class, error) {
	var c Class
	var err error
	if c.Init, err = b.ReadU32(); err != nil {
		return c, err
	}
	c.Traits, err = readTraits(b)
	return c, err
}

func writeClass(w *Writer, c *Class) {
	w.WriteU32(c.Init)
	writeTraits(w, c.Traits)
}

func readScript(b *DataBuffer) (Script, error) {
	var s Script
	var err error
	if s.Init, err = b.ReadU32(); err != nil {
		return s, err
	}
	s.Traits, err = readTraits(b)
	return s, err
}

func writeScript(w *Writer, s *Script) {
	w.WriteU32(s.Init)
	writeTraits(w, s.Traits)
}

func readMethodBody(b *DataBuffer) (MethodBody, error) {
	var body MethodBody
	var err error
	for _, f := range []*uint32{&body.Method, &body.MaxStack, &body.LocalCount, &body.InitScopeDepth, &body.MaxScopeDepth} {
		if *f, err = b.ReadU32(); err != nil {
			return body, err
		}
	}
	n, err := readCount(b, "code", 1)
	if err != nil {
		return body, err
	}
	if body.Code, err = b.ReadBytes(n); err != nil {
		return body, err
	}
	n, err = readCount(b, "exception", 5)
	if err != nil {
		return body, err
	}
	if n > 0 {
		body.Exceptions = make([]Exception, n)
		for i := range body.Exceptions {
			e := &body.Exceptions[i]
			for _, f := range []*uint32{&e.From, &e.To, &e.Target, &e.ExcType, &e.VarName} {
				if *f, err = b.ReadU32(); err != nil {
					return body, err
				}
			}
		}
	}
	body.Traits, err = readTraits(b)
	return body, err
}

func writeMethodBody(w *Writer, body *MethodBody) {
	w.WriteU32(body.Method)
	w.WriteU32(body.MaxStack)
	w.WriteU32(body.LocalCount)
	w.WriteU32(body.InitScopeDepth)
	w.WriteU32(body.MaxScopeDepth)
	w.WriteU32(uint32(len(body.Code)))
	w.WriteBytes(body.Code)
	w.WriteU32(uint32(len(body.Exceptions)))
	for _, e := range body.Exceptions {
		w.WriteU32(e.From)
		w.WriteU32(e.To)
		w.WriteU32(e.Target)
		w.WriteU32(e.ExcType)
		w.WriteU32(e.VarName)
	}
	writeTraits(w, body.Traits)
}
