// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package abc

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
)

// PoolPart is an append-only table of encoded entries backed by one arena.
// Intern deduplicates by exact byte content; Append never does.
type PoolPart struct {
	arena []byte
	ends  []int
	index map[uint64][]uint32
}

func NewPoolPart() *PoolPart {
	return &PoolPart{index: make(map[uint64][]uint32)}
}

// Len is the number of stored entries. Entries are numbered from 1.
func (p *PoolPart) Len() int { return len(p.ends) }

func (p *PoolPart) Entry(i uint32) []byte {
	start := 0
	if i > 1 {
		start = p.ends[i-2]
	}
	return p.arena[start:p.ends[i-1]]
}

// Intern returns the number of an entry equal to b, adding one if needed.
func (p *PoolPart) Intern(b []byte) uint32 {
	h := xxhash.Sum64(b)
	for _, i := range p.index[h] {
		if bytes.Equal(p.Entry(i), b) {
			return i
		}
	}
	i := p.Append(b)
	p.index[h] = append(p.index[h], i)
	return i
}

// Append stores b as a new entry even if an equal one exists.
func (p *PoolPart) Append(b []byte) uint32 {
	p.arena = append(p.arena, b...)
	p.ends = append(p.ends, len(p.arena))
	return uint32(len(p.ends))
}

// writeCounted writes the table with the constant-pool count convention:
// zero for an empty table, otherwise the entry count plus the reserved slot.
func (p *PoolPart) writeCounted(w *Writer) {
	if p.Len() == 0 {
		w.WriteU32(0)
		return
	}
	w.WriteU32(uint32(p.Len() + 1))
	w.WriteBytes(p.arena)
}

// writeTable writes the entry count followed by the entries.
func (p *PoolPart) writeTable(w *Writer) {
	w.WriteU32(uint32(p.Len()))
	w.WriteBytes(p.arena)
}
