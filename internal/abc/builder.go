// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package abc

import (
	"encoding/binary"
	"math"
)

// Builder assembles an ABC block from scratch. Pool entries are interned, so
// asking twice for the same constant returns the same index.
type Builder struct {
	Minor uint16
	Major uint16

	parts    [numPoolKinds]*PoolPart
	metadata *PoolPart

	methods   Writer
	instances Writer
	classes   Writer
	scripts   Writer
	bodies    Writer
	scratch   Writer

	nMethods, nClasses, nScripts, nBodies uint32
}

func NewBuilder() *Builder {
	b := &Builder{Minor: 16, Major: 46, metadata: NewPoolPart()}
	for k := range b.parts {
		b.parts[k] = NewPoolPart()
	}
	return b
}

func (b *Builder) intern(k PoolKind, fill func(w *Writer)) uint32 {
	b.scratch.Reset()
	fill(&b.scratch)
	return b.parts[k].Intern(b.scratch.Bytes())
}

func (b *Builder) Int(v int32) uint32 {
	return b.intern(KindInt, func(w *Writer) { w.WriteS32(v) })
}

func (b *Builder) Uint(v uint32) uint32 {
	return b.intern(KindUint, func(w *Writer) { w.WriteU32(v) })
}

func (b *Builder) Double(v float64) uint32 {
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], math.Float64bits(v))
	return b.intern(KindDouble, func(w *Writer) { w.WriteBytes(raw[:]) })
}

// String interns s. The empty string gets a real entry; index 0 is never
// returned.
func (b *Builder) String(s string) uint32 {
	return b.intern(KindString, func(w *Writer) { w.WriteString(s) })
}

// Namespace returns a namespace of the given kind. Every call with NsPrivate
// creates a new namespace.
func (b *Builder) Namespace(kind byte, uri string) uint32 {
	name := b.String(uri)
	b.scratch.Reset()
	b.scratch.WriteU8(kind)
	b.scratch.WriteU32(name)
	if kind == NsPrivate {
		return b.parts[KindNamespace].Append(b.scratch.Bytes())
	}
	return b.parts[KindNamespace].Intern(b.scratch.Bytes())
}

func (b *Builder) PackageNamespace(pkg string) uint32 {
	return b.Namespace(NsPackage, pkg)
}

func (b *Builder) NamespaceSet(ns ...uint32) uint32 {
	return b.intern(KindNamespaceSet, func(w *Writer) {
		w.WriteU32(uint32(len(ns)))
		writeU32s(w, ns)
	})
}

func (b *Builder) multiname(m Multiname) uint32 {
	return b.intern(KindMultiname, func(w *Writer) { writeMultiname(w, &m) })
}

func (b *Builder) QName(ns uint32, name string) uint32 {
	return b.multiname(Multiname{Kind: MnQName, NS: ns, Name: b.String(name)})
}

// PackageQName is QName(PackageNamespace(pkg), name).
func (b *Builder) PackageQName(pkg, name string) uint32 {
	return b.QName(b.PackageNamespace(pkg), name)
}

func (b *Builder) Multiname(name string, nsset uint32) uint32 {
	return b.multiname(Multiname{Kind: MnMultiname, Name: b.String(name), NSSet: nsset})
}

func (b *Builder) RTQName(name string) uint32 {
	return b.multiname(Multiname{Kind: MnRTQName, Name: b.String(name)})
}

func (b *Builder) MultinameL(nsset uint32) uint32 {
	return b.multiname(Multiname{Kind: MnMultinameL, NSSet: nsset})
}

func (b *Builder) TypeName(base uint32, params ...uint32) uint32 {
	return b.multiname(Multiname{Kind: MnTypeName, Base: base, Params: params})
}

func (b *Builder) AddMethod(m MethodInfo) uint32 {
	writeMethodInfo(&b.methods, &m)
	b.nMethods++
	return b.nMethods - 1
}

// AddMetadata appends a metadata entry and returns its index.
func (b *Builder) AddMetadata(md Metadata) uint32 {
	b.scratch.Reset()
	writeMetadata(&b.scratch, &md)
	return b.metadata.Append(b.scratch.Bytes()) - 1
}

func (b *Builder) AddClass(in Instance, c Class) uint32 {
	writeInstance(&b.instances, &in)
	writeClass(&b.classes, &c)
	b.nClasses++
	return b.nClasses - 1
}

func (b *Builder) AddScript(s Script) uint32 {
	writeScript(&b.scripts, &s)
	b.nScripts++
	return b.nScripts - 1
}

func (b *Builder) AddBody(body MethodBody) uint32 {
	writeMethodBody(&b.bodies, &body)
	b.nBodies++
	return b.nBodies - 1
}

// Bytes serializes the block.
func (b *Builder) Bytes() []byte {
	var w Writer
	w.WriteU16(b.Minor)
	w.WriteU16(b.Major)
	for _, part := range b.parts {
		part.writeCounted(&w)
	}
	w.WriteU32(b.nMethods)
	w.WriteBytes(b.methods.Bytes())
	b.metadata.writeTable(&w)
	w.WriteU32(b.nClasses)
	w.WriteBytes(b.instances.Bytes())
	w.WriteBytes(b.classes.Bytes())
	w.WriteU32(b.nScripts)
	w.WriteBytes(b.scripts.Bytes())
	w.WriteU32(b.nBodies)
	w.WriteBytes(b.bodies.Bytes())
	return w.Bytes()
}
