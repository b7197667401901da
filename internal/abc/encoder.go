// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package abc

import (
	"fmt"

	"github.com/dotandev/abcmerge/internal/errors"
)

// DefaultDropMetadata names metadata the compiler emits only for IDE
// navigation.
var DefaultDropMetadata = []string{"__go_to_definition_help", "__go_to_ctor_definition_help"}

// Options controls how blocks are re-encoded.
type Options struct {
	// StripDebug removes debug, debugline, debugfile, bkptline and timestamp.
	StripDebug bool
	// Peephole enables the local code rewrites in peephole.go.
	Peephole bool
	// DropMetadata lists metadata names that are not carried over.
	DropMetadata []string
	// Version forces the output "major.minor"; empty keeps the highest input.
	Version string
}

func DefaultOptions() Options {
	return Options{
		StripDebug:   true,
		Peephole:     true,
		DropMetadata: DefaultDropMetadata,
	}
}

// Stats summarizes a merge.
type Stats struct {
	Fragments           int
	Methods             int
	Metadata            int
	MetadataDropped     int
	Classes             int
	Scripts             int
	Bodies              int
	PoolEntries         [numPoolKinds]int
	InstructionsRemoved int
	InputBytes          int
	OutputBytes         int
}

// Encoder merges decoded blocks into one. Method, class and script tables are
// concatenated in decoder order, so entry i of block p lands at the sum of the
// table sizes of blocks before p, plus i.
type Encoder struct {
	decoders []*Decoder
	opts     Options
	history  *IndexHistory
	peep     peephole
	drop     map[string]bool

	methodBase  []uint32
	classBase   []uint32
	metadataMap [][]int32
	metadata    *PoolPart

	methods   Writer
	instances Writer
	classes   Writer
	scripts   Writer
	bodies    Writer
	scratch   Writer

	stats Stats
}

func NewEncoder(decoders []*Decoder, opts Options) *Encoder {
	pools := make([]*ConstantPool, len(decoders))
	for i, d := range decoders {
		pools[i] = d.Pool
	}
	e := &Encoder{
		decoders:    decoders,
		opts:        opts,
		history:     NewIndexHistory(pools),
		peep:        peephole{stripDebug: opts.StripDebug, enabled: opts.Peephole},
		drop:        make(map[string]bool, len(opts.DropMetadata)),
		methodBase:  make([]uint32, len(decoders)),
		classBase:   make([]uint32, len(decoders)),
		metadataMap: make([][]int32, len(decoders)),
		metadata:    NewPoolPart(),
	}
	for _, name := range opts.DropMetadata {
		e.drop[name] = true
	}
	var methods, classes uint32
	for p, d := range decoders {
		e.methodBase[p] = methods
		e.classBase[p] = classes
		methods += uint32(d.NumMethods())
		classes += uint32(d.NumClasses())
		e.stats.InputBytes += d.Size()
	}
	e.stats.Fragments = len(decoders)
	return e
}

// Merge re-encodes decoders as one block.
func Merge(decoders []*Decoder, opts Options) ([]byte, Stats, error) {
	return NewEncoder(decoders, opts).Encode()
}

// Encode runs the table passes in file order and serializes the result.
func (e *Encoder) Encode() ([]byte, Stats, error) {
	minor, major, err := outputVersion(e.decoders, e.opts.Version)
	if err != nil {
		return nil, Stats{}, err
	}
	passes := []struct {
		name string
		run  func(p int, d *Decoder) error
	}{
		{"method", e.encodeMethods},
		{"metadata", e.encodeMetadata},
		{"instance", e.encodeInstances},
		{"class", e.encodeClasses},
		{"script", e.encodeScripts},
		{"method body", e.encodeBodies},
	}
	for _, pass := range passes {
		for p, d := range e.decoders {
			if err := pass.run(p, d); err != nil {
				return nil, Stats{}, fmt.Errorf("fragment %q: %s table: %w", d.Name, pass.name, err)
			}
		}
	}

	var w Writer
	w.WriteU16(minor)
	w.WriteU16(major)
	e.history.WritePool(&w)
	w.WriteU32(uint32(e.stats.Methods))
	w.WriteBytes(e.methods.Bytes())
	e.metadata.writeTable(&w)
	w.WriteU32(uint32(e.stats.Classes))
	w.WriteBytes(e.instances.Bytes())
	w.WriteBytes(e.classes.Bytes())
	w.WriteU32(uint32(e.stats.Scripts))
	w.WriteBytes(e.scripts.Bytes())
	w.WriteU32(uint32(e.stats.Bodies))
	w.WriteBytes(e.bodies.Bytes())

	e.stats.Metadata = e.metadata.Len()
	for k := range e.stats.PoolEntries {
		e.stats.PoolEntries[k] = e.history.parts[k].Len()
	}
	e.stats.OutputBytes = w.Len()
	return w.Bytes(), e.stats, nil
}

func (e *Encoder) remap(p int, k PoolKind, i uint32) (uint32, error) {
	return e.history.Remap(p, k, i)
}

func (e *Encoder) method(p int, i uint32) (uint32, error) {
	if int(i) >= e.decoders[p].NumMethods() {
		return 0, errors.Malformed(0, "method index %d out of range", i)
	}
	return e.methodBase[p] + i, nil
}

func (e *Encoder) class(p int, i uint32) (uint32, error) {
	if int(i) >= e.decoders[p].NumClasses() {
		return 0, errors.Malformed(0, "class index %d out of range", i)
	}
	return e.classBase[p] + i, nil
}

// value remaps the pool index of a default value according to its kind.
func (e *Encoder) value(p int, kind byte, v uint32) (uint32, error) {
	switch kind {
	case ValInt:
		return e.remap(p, KindInt, v)
	case ValUint:
		return e.remap(p, KindUint, v)
	case ValDouble:
		return e.remap(p, KindDouble, v)
	case ValUtf8:
		return e.remap(p, KindString, v)
	case ValTrue, ValFalse, ValNull, ValUndefined:
		return v, nil
	}
	if isNamespaceKind(kind) {
		return e.remap(p, KindNamespace, v)
	}
	return 0, errors.Malformed(0, "unknown value kind 0x%02x", kind)
}

func (e *Encoder) remapAll(p int, k PoolKind, vs []uint32) error {
	for i, v := range vs {
		nv, err := e.remap(p, k, v)
		if err != nil {
			return err
		}
		vs[i] = nv
	}
	return nil
}

func (e *Encoder) encodeMethods(p int, d *Decoder) error {
	for i := 0; i < d.NumMethods(); i++ {
		m, err := d.Method(i)
		if err != nil {
			return err
		}
		if m.ReturnType, err = e.remap(p, KindMultiname, m.ReturnType); err != nil {
			return err
		}
		if err := e.remapAll(p, KindMultiname, m.ParamTypes); err != nil {
			return err
		}
		if m.Name, err = e.remap(p, KindString, m.Name); err != nil {
			return err
		}
		for j := range m.Options {
			o := &m.Options[j]
			if o.Value, err = e.value(p, o.Kind, o.Value); err != nil {
				return err
			}
		}
		if err := e.remapAll(p, KindString, m.ParamNames); err != nil {
			return err
		}
		writeMethodInfo(&e.methods, &m)
		e.stats.Methods++
	}
	return nil
}

func (e *Encoder) encodeMetadata(p int, d *Decoder) error {
	mapping := make([]int32, d.NumMetadata())
	for i := range mapping {
		md, err := d.Metadata(i)
		if err != nil {
			return err
		}
		name, err := d.Pool.String(md.Name)
		if err != nil {
			return err
		}
		if e.drop[name] {
			mapping[i] = -1
			e.stats.MetadataDropped++
			continue
		}
		if md.Name, err = e.remap(p, KindString, md.Name); err != nil {
			return err
		}
		if err := e.remapAll(p, KindString, md.Keys); err != nil {
			return err
		}
		if err := e.remapAll(p, KindString, md.Values); err != nil {
			return err
		}
		e.scratch.Reset()
		writeMetadata(&e.scratch, &md)
		mapping[i] = int32(e.metadata.Intern(e.scratch.Bytes()) - 1)
	}
	e.metadataMap[p] = mapping
	return nil
}

func (e *Encoder) remapTraits(p int, traits []Trait) error {
	for i := range traits {
		t := &traits[i]
		var err error
		if t.Name, err = e.remap(p, KindMultiname, t.Name); err != nil {
			return err
		}
		switch t.Kind {
		case TraitSlot, TraitConst:
			if t.TypeName, err = e.remap(p, KindMultiname, t.TypeName); err != nil {
				return err
			}
			if t.VIndex != 0 {
				if t.VIndex, err = e.value(p, t.VKind, t.VIndex); err != nil {
					return err
				}
			}
		case TraitMethod, TraitGetter, TraitSetter, TraitFunction:
			if t.Index, err = e.method(p, t.Index); err != nil {
				return err
			}
		case TraitClass:
			if t.Index, err = e.class(p, t.Index); err != nil {
				return err
			}
		}
		if t.Attrs&AttrMetadata == 0 {
			continue
		}
		kept := t.Metadata[:0]
		for _, md := range t.Metadata {
			if int(md) >= len(e.metadataMap[p]) {
				return errors.Malformed(0, "metadata index %d out of range", md)
			}
			if nm := e.metadataMap[p][md]; nm >= 0 {
				kept = append(kept, uint32(nm))
			}
		}
		t.Metadata = kept
		if len(kept) == 0 {
			t.Attrs &^= AttrMetadata
		}
	}
	return nil
}

func (e *Encoder) encodeInstances(p int, d *Decoder) error {
	for i := 0; i < d.NumClasses(); i++ {
		in, err := d.Instance(i)
		if err != nil {
			return err
		}
		if in.Name, err = e.remap(p, KindMultiname, in.Name); err != nil {
			return err
		}
		if in.SuperName, err = e.remap(p, KindMultiname, in.SuperName); err != nil {
			return err
		}
		if in.ProtectedNS, err = e.remap(p, KindNamespace, in.ProtectedNS); err != nil {
			return err
		}
		if err := e.remapAll(p, KindMultiname, in.Interfaces); err != nil {
			return err
		}
		if in.Init, err = e.method(p, in.Init); err != nil {
			return err
		}
		if err := e.remapTraits(p, in.Traits); err != nil {
			return err
		}
		writeInstance(&e.instances, &in)
	}
	return nil
}

func (e *Encoder) encodeClasses(p int, d *Decoder) error {
	for i := 0; i < d.NumClasses(); i++ {
		c, err := d.Class(i)
		if err != nil {
			return err
		}
		if c.Init, err = e.method(p, c.Init); err != nil {
			return err
		}
		if err := e.remapTraits(p, c.Traits); err != nil {
			return err
		}
		writeClass(&e.classes, &c)
		e.stats.Classes++
	}
	return nil
}

func (e *Encoder) encodeScripts(p int, d *Decoder) error {
	for i := 0; i < d.NumScripts(); i++ {
		s, err := d.Script(i)
		if err != nil {
			return err
		}
		if s.Init, err = e.method(p, s.Init); err != nil {
			return err
		}
		if err := e.remapTraits(p, s.Traits); err != nil {
			return err
		}
		writeScript(&e.scripts, &s)
		e.stats.Scripts++
	}
	return nil
}

func (e *Encoder) encodeBodies(p int, d *Decoder) error {
	remap := func(kind Operand, v uint32) (uint32, error) {
		if k, ok := kind.Pool(); ok {
			return e.remap(p, k, v)
		}
		switch kind {
		case OperandMethod:
			return e.method(p, v)
		case OperandClass:
			return e.class(p, v)
		}
		return v, nil
	}
	for i := 0; i < d.NumBodies(); i++ {
		body, err := d.Body(i)
		if err != nil {
			return err
		}
		if body.Method, err = e.method(p, body.Method); err != nil {
			return err
		}
		code, excs, removed, err := rewriteCode(&body, e.peep, remap)
		if err != nil {
			return fmt.Errorf("body %d: %w", i, err)
		}
		body.Code = code
		body.Exceptions = excs
		e.stats.InstructionsRemoved += removed
		for j := range body.Exceptions {
			x := &body.Exceptions[j]
			if x.ExcType, err = e.remap(p, KindMultiname, x.ExcType); err != nil {
				return err
			}
			if x.VarName, err = e.remap(p, KindMultiname, x.VarName); err != nil {
				return err
			}
		}
		if err := e.remapTraits(p, body.Traits); err != nil {
			return err
		}
		writeMethodBody(&e.bodies, &body)
		e.stats.Bodies++
	}
	return nil
}
