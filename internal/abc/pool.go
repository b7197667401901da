// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package abc

import (
	"strings"

	"github.com/dgryski/go-tinylfu"

	"github.com/dotandev/abcmerge/internal/errors"
)

// Namespace is a decoded namespace entry. Name is a string-pool index.
type Namespace struct {
	Kind byte
	Name uint32
}

// Multiname is a decoded multiname entry. Which index fields are meaningful
// depends on Kind.
type Multiname struct {
	Kind   byte
	NS     uint32
	Name   uint32
	NSSet  uint32
	Base   uint32
	Params []uint32
}

// ConstantPool is an offset index over the constant pool of one ABC block.
// Entries are decoded only when asked for; decoded strings are memoized.
type ConstantPool struct {
	buf *DataBuffer
	// offsets[k][i] is where entry i of kind k starts; offsets[k][Count(k)] is
	// the end of that table. Slot 0 occupies no bytes.
	offsets [numPoolKinds][]int
	strings *tinylfu.T[uint32, string]
}

const (
	maxStringMemo    = 4096
	maxTypeNameDepth = 16
)

func indexHash(i uint32) uint64 {
	return uint64(i) * 0x9e3779b97f4a7c15
}

// scanConstantPool records entry offsets for all seven tables starting at the
// current cursor and leaves the cursor after the last table.
func scanConstantPool(buf *DataBuffer) (*ConstantPool, error) {
	p := &ConstantPool{buf: buf}
	for k := KindInt; k < numPoolKinds; k++ {
		countPos := buf.Position()
		n, err := buf.ReadU32()
		if err != nil {
			return nil, err
		}
		slots := int(n)
		if slots == 0 {
			slots = 1
		}
		if slots-1 > buf.Remaining() {
			return nil, errors.Malformed(countPos, "%s pool count %d exceeds region", k, n)
		}
		offs := make([]int, slots+1)
		offs[0] = buf.Position()
		for i := 1; i < slots; i++ {
			offs[i] = buf.Position()
			if err := skipPoolEntry(buf, k); err != nil {
				return nil, err
			}
		}
		offs[slots] = buf.Position()
		p.offsets[k] = offs
	}

	size := p.Count(KindString)
	if size > maxStringMemo {
		size = maxStringMemo
	}
	if size < 16 {
		size = 16
	}
	p.strings = tinylfu.New[uint32, string](size, size*10, indexHash)
	return p, nil
}

func skipPoolEntry(buf *DataBuffer, k PoolKind) error {
	switch k {
	case KindInt, KindUint:
		return buf.SkipU32()
	case KindDouble:
		return buf.Skip(8)
	case KindString:
		n, err := buf.ReadU32()
		if err != nil {
			return err
		}
		return buf.Skip(int(n))
	case KindNamespace:
		at := buf.Position()
		kind, err := buf.ReadU8()
		if err != nil {
			return err
		}
		if !isNamespaceKind(kind) {
			return errors.Malformed(at, "unknown namespace kind 0x%02x", kind)
		}
		return buf.SkipU32()
	case KindNamespaceSet:
		n, err := buf.ReadU32()
		if err != nil {
			return err
		}
		if int(n) > buf.Remaining() {
			return errors.Malformed(buf.Position(), "namespace set of %d entries exceeds region", n)
		}
		for ; n > 0; n-- {
			if err := buf.SkipU32(); err != nil {
				return err
			}
		}
		return nil
	case KindMultiname:
		_, err := readMultiname(buf)
		return err
	}
	return errors.Malformed(buf.Position(), "invalid pool kind %d", k)
}

func readMultiname(buf *DataBuffer) (Multiname, error) {
	at := buf.Position()
	kind, err := buf.ReadU8()
	if err != nil {
		return Multiname{}, err
	}
	m := Multiname{Kind: kind}
	switch kind {
	case MnQName, MnQNameA:
		if m.NS, err = buf.ReadU32(); err != nil {
			return m, err
		}
		m.Name, err = buf.ReadU32()
	case MnRTQName, MnRTQNameA:
		m.Name, err = buf.ReadU32()
	case MnRTQNameL, MnRTQNameLA:
	case MnMultiname, MnMultinameA:
		if m.Name, err = buf.ReadU32(); err != nil {
			return m, err
		}
		m.NSSet, err = buf.ReadU32()
	case MnMultinameL, MnMultinameLA:
		m.NSSet, err = buf.ReadU32()
	case MnTypeName:
		if m.Base, err = buf.ReadU32(); err != nil {
			return m, err
		}
		var n uint32
		if n, err = buf.ReadU32(); err != nil {
			return m, err
		}
		if int(n) > buf.Remaining() {
			return m, errors.Malformed(at, "type name with %d parameters exceeds region", n)
		}
		m.Params = make([]uint32, n)
		for i := range m.Params {
			if m.Params[i], err = buf.ReadU32(); err != nil {
				return m, err
			}
		}
	default:
		err = errors.Malformed(at, "unknown multiname kind 0x%02x", kind)
	}
	return m, err
}

// Count returns the number of slots of kind k, including the reserved slot 0.
func (p *ConstantPool) Count(k PoolKind) int {
	return len(p.offsets[k]) - 1
}

func (p *ConstantPool) check(k PoolKind, i uint32) error {
	if int(i) >= p.Count(k) {
		return errors.Malformed(p.offsets[k][0], "%s index %d out of range (%d slots)", k, i, p.Count(k))
	}
	return nil
}

// Entry returns the raw encoded bytes of entry i of kind k.
func (p *ConstantPool) Entry(k PoolKind, i uint32) ([]byte, error) {
	if err := p.check(k, i); err != nil {
		return nil, err
	}
	offs := p.offsets[k]
	return p.buf.Bytes()[offs[i]:offs[i+1]], nil
}

func (p *ConstantPool) at(k PoolKind, i uint32, fn func() error) error {
	if err := p.check(k, i); err != nil {
		return err
	}
	return p.buf.Detour(p.offsets[k][i], fn)
}

func (p *ConstantPool) Int(i uint32) (int32, error) {
	if i == 0 {
		return 0, nil
	}
	var v int32
	err := p.at(KindInt, i, func() (err error) {
		v, err = p.buf.ReadS32()
		return err
	})
	return v, err
}

func (p *ConstantPool) Uint(i uint32) (uint32, error) {
	if i == 0 {
		return 0, nil
	}
	var v uint32
	err := p.at(KindUint, i, func() (err error) {
		v, err = p.buf.ReadU32()
		return err
	})
	return v, err
}

func (p *ConstantPool) Double(i uint32) (float64, error) {
	if i == 0 {
		return 0, nil
	}
	var v float64
	err := p.at(KindDouble, i, func() (err error) {
		v, err = p.buf.ReadDouble()
		return err
	})
	return v, err
}

// String returns string i. Index 0 is the empty string.
func (p *ConstantPool) String(i uint32) (string, error) {
	if i == 0 {
		return "", nil
	}
	if s, ok := p.strings.Get(i); ok {
		return s, nil
	}
	var s string
	err := p.at(KindString, i, func() (err error) {
		s, err = p.buf.ReadString()
		return err
	})
	if err != nil {
		return "", err
	}
	p.strings.Add(i, s)
	return s, nil
}

// Namespace returns namespace i. Index 0 is the any-namespace and decodes to
// the zero value.
func (p *ConstantPool) Namespace(i uint32) (Namespace, error) {
	if i == 0 {
		return Namespace{}, nil
	}
	var ns Namespace
	err := p.at(KindNamespace, i, func() (err error) {
		if ns.Kind, err = p.buf.ReadU8(); err != nil {
			return err
		}
		ns.Name, err = p.buf.ReadU32()
		return err
	})
	return ns, err
}

func (p *ConstantPool) NamespaceSet(i uint32) ([]uint32, error) {
	if i == 0 {
		return nil, nil
	}
	var set []uint32
	err := p.at(KindNamespaceSet, i, func() error {
		n, err := p.buf.ReadU32()
		if err != nil {
			return err
		}
		set = make([]uint32, n)
		for j := range set {
			if set[j], err = p.buf.ReadU32(); err != nil {
				return err
			}
		}
		return nil
	})
	return set, err
}

func (p *ConstantPool) Multiname(i uint32) (Multiname, error) {
	if i == 0 {
		return Multiname{}, nil
	}
	var m Multiname
	err := p.at(KindMultiname, i, func() (err error) {
		m, err = readMultiname(p.buf)
		return err
	})
	return m, err
}

// NamespaceName returns the URI of namespace i.
func (p *ConstantPool) NamespaceName(i uint32) (string, error) {
	ns, err := p.Namespace(i)
	if err != nil {
		return "", err
	}
	return p.String(ns.Name)
}

// QualifiedName renders multiname i the way class names are written in
// SymbolClass tags and DoABC2 names: "pkg.path:Name", or "Name" in the
// public package.
func (p *ConstantPool) QualifiedName(i uint32) (string, error) {
	return p.qualifiedName(i, 0)
}

func (p *ConstantPool) qualifiedName(i uint32, depth int) (string, error) {
	if depth > maxTypeNameDepth {
		return "", errors.Malformed(p.offsets[KindMultiname][0], "type name nesting exceeds %d", maxTypeNameDepth)
	}
	if i == 0 {
		return "*", nil
	}
	m, err := p.Multiname(i)
	if err != nil {
		return "", err
	}
	switch m.Kind {
	case MnQName, MnQNameA:
		uri, err := p.NamespaceName(m.NS)
		if err != nil {
			return "", err
		}
		name, err := p.String(m.Name)
		if err != nil {
			return "", err
		}
		if uri == "" {
			return name, nil
		}
		return uri + ":" + name, nil
	case MnRTQName, MnRTQNameA, MnMultiname, MnMultinameA:
		return p.String(m.Name)
	case MnRTQNameL, MnRTQNameLA, MnMultinameL, MnMultinameLA:
		return "[]", nil
	case MnTypeName:
		base, err := p.qualifiedName(m.Base, depth+1)
		if err != nil {
			return "", err
		}
		params := make([]string, len(m.Params))
		for j, idx := range m.Params {
			if params[j], err = p.qualifiedName(idx, depth+1); err != nil {
				return "", err
			}
		}
		return base + ".<" + strings.Join(params, ",") + ">", nil
	}
	return "", errors.Malformed(p.offsets[KindMultiname][i], "unknown multiname kind 0x%02x", m.Kind)
}

func writeMultiname(w *Writer, m *Multiname) {
	w.WriteU8(m.Kind)
	switch m.Kind {
	case MnQName, MnQNameA:
		w.WriteU32(m.NS)
		w.WriteU32(m.Name)
	case MnRTQName, MnRTQNameA:
		w.WriteU32(m.Name)
	case MnMultiname, MnMultinameA:
		w.WriteU32(m.Name)
		w.WriteU32(m.NSSet)
	case MnMultinameL, MnMultinameLA:
		w.WriteU32(m.NSSet)
	case MnTypeName:
		w.WriteU32(m.Base)
		w.WriteU32(uint32(len(m.Params)))
		writeU32s(w, m.Params)
	}
}
