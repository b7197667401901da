// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package abc

import (
	"math"

	"github.com/dotandev/abcmerge/internal/errors"
)

const resolving = math.MaxUint32

// IndexHistory merges the constant pools of several blocks into one
// deduplicated pool. Entries are pulled in on first reference, together with
// everything they refer to, and the old-to-new mapping is memoized in a flat
// table addressed by (pool, kind, index).
type IndexHistory struct {
	pools []*ConstantPool
	// base[p][k] is the table slot of index 0 of kind k in pool p.
	base    [][numPoolKinds]int
	table   []uint32
	parts   [numPoolKinds]*PoolPart
	scratch Writer
}

func NewIndexHistory(pools []*ConstantPool) *IndexHistory {
	h := &IndexHistory{
		pools: pools,
		base:  make([][numPoolKinds]int, len(pools)),
	}
	total := 0
	for p, pool := range pools {
		for k := KindInt; k < numPoolKinds; k++ {
			h.base[p][k] = total
			total += pool.Count(k)
		}
	}
	h.table = make([]uint32, total)
	for k := range h.parts {
		h.parts[k] = NewPoolPart()
	}
	return h
}

// Part exposes the merged table of kind k.
func (h *IndexHistory) Part(k PoolKind) *PoolPart { return h.parts[k] }

// Remap returns the merged index of entry i of kind k in pool p. Index 0 maps
// to 0.
func (h *IndexHistory) Remap(p int, k PoolKind, i uint32) (uint32, error) {
	if i == 0 {
		return 0, nil
	}
	pool := h.pools[p]
	raw, err := pool.Entry(k, i)
	if err != nil {
		return 0, err
	}
	slot := h.base[p][k] + int(i)
	switch v := h.table[slot]; v {
	case 0:
	case resolving:
		return 0, errors.Malformed(pool.offsets[k][i], "%s %d refers to itself", k, i)
	default:
		return v, nil
	}
	h.table[slot] = resolving

	var idx uint32
	switch k {
	case KindString:
		if _, err := pool.String(i); err != nil {
			return 0, err
		}
		idx = h.parts[k].Intern(raw)
	case KindInt, KindUint, KindDouble:
		idx = h.parts[k].Intern(raw)
	case KindNamespace:
		idx, err = h.remapNamespace(p, i)
	case KindNamespaceSet:
		idx, err = h.remapNamespaceSet(p, i)
	case KindMultiname:
		idx, err = h.remapMultiname(p, i)
	}
	if err != nil {
		return 0, err
	}
	h.table[slot] = idx
	return idx, nil
}

func (h *IndexHistory) remapNamespace(p int, i uint32) (uint32, error) {
	ns, err := h.pools[p].Namespace(i)
	if err != nil {
		return 0, err
	}
	name, err := h.Remap(p, KindString, ns.Name)
	if err != nil {
		return 0, err
	}
	h.scratch.Reset()
	h.scratch.WriteU8(ns.Kind)
	h.scratch.WriteU32(name)
	// Private namespaces are distinct per declaration, whatever their name.
	if ns.Kind == NsPrivate {
		return h.parts[KindNamespace].Append(h.scratch.Bytes()), nil
	}
	return h.parts[KindNamespace].Intern(h.scratch.Bytes()), nil
}

func (h *IndexHistory) remapNamespaceSet(p int, i uint32) (uint32, error) {
	set, err := h.pools[p].NamespaceSet(i)
	if err != nil {
		return 0, err
	}
	for j, ns := range set {
		if set[j], err = h.Remap(p, KindNamespace, ns); err != nil {
			return 0, err
		}
	}
	h.scratch.Reset()
	h.scratch.WriteU32(uint32(len(set)))
	writeU32s(&h.scratch, set)
	return h.parts[KindNamespaceSet].Intern(h.scratch.Bytes()), nil
}

func (h *IndexHistory) remapMultiname(p int, i uint32) (uint32, error) {
	m, err := h.pools[p].Multiname(i)
	if err != nil {
		return 0, err
	}
	if m.NS, err = h.Remap(p, KindNamespace, m.NS); err != nil {
		return 0, err
	}
	if m.Name, err = h.Remap(p, KindString, m.Name); err != nil {
		return 0, err
	}
	if m.NSSet, err = h.Remap(p, KindNamespaceSet, m.NSSet); err != nil {
		return 0, err
	}
	if m.Base, err = h.Remap(p, KindMultiname, m.Base); err != nil {
		return 0, err
	}
	for j, param := range m.Params {
		if m.Params[j], err = h.Remap(p, KindMultiname, param); err != nil {
			return 0, err
		}
	}
	h.scratch.Reset()
	writeMultiname(&h.scratch, &m)
	return h.parts[KindMultiname].Intern(h.scratch.Bytes()), nil
}

// WritePool serializes the merged constant pool.
func (h *IndexHistory) WritePool(w *Writer) {
	for _, part := range h.parts {
		part.writeCounted(w)
	}
}
