// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package abc

import (
	"fmt"

	"github.com/dotandev/abcmerge/internal/errors"
)

// codeScan is the result of the first pass over a method body: the decoded
// instructions and every offset something jumps to.
type codeScan struct {
	instrs []Instruction
	// targets and boundaries are indexed by old code offset, up to and
	// including len(code).
	targets    []bool
	boundaries []bool
}

func scanCode(code []byte, exceptions []Exception) (*codeScan, error) {
	instrs, err := DecodeCode(code)
	if err != nil {
		return nil, err
	}
	s := &codeScan{
		instrs:     instrs,
		targets:    make([]bool, len(code)+1),
		boundaries: make([]bool, len(code)+1),
	}
	for _, in := range instrs {
		s.boundaries[in.Offset] = true
	}
	s.boundaries[len(code)] = true

	mark := func(from, target int) error {
		if target < 0 || target > len(code) || !s.boundaries[target] {
			return errors.Malformed(from, "branch target %d is not an instruction boundary", target)
		}
		s.targets[target] = true
		return nil
	}
	for _, e := range exceptions {
		for _, off := range []uint32{e.From, e.To, e.Target} {
			if err := mark(int(off), int(off)); err != nil {
				return nil, fmt.Errorf("exception range: %w", err)
			}
		}
	}
	for _, in := range instrs {
		for _, t := range in.Targets() {
			if err := mark(in.Offset, t); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

type fixup struct {
	at     int // position of the s24 field in the new code
	base   int // new offset the displacement is relative to
	target int // old target offset
}

// emission is the output of the second pass: re-encoded code whose branch
// fields still hold placeholders.
type emission struct {
	out       Writer
	newOffset []int
	fixups    []fixup
	removed   int
}

// operandRemapper translates one index operand into the merged index space.
type operandRemapper func(kind Operand, v uint32) (uint32, error)

func emitCode(s *codeScan, codeLen int, opt peephole, remap operandRemapper) (*emission, error) {
	em := &emission{newOffset: make([]int, codeLen+1)}
	for i := range em.newOffset {
		em.newOffset[i] = -1
	}
	for i := range s.instrs {
		in := &s.instrs[i]
		em.newOffset[in.Offset] = em.out.Len()
		if opt.drop(s.instrs, i, s) {
			em.removed++
			continue
		}
		if err := em.emit(in, remap); err != nil {
			return nil, err
		}
	}
	em.newOffset[codeLen] = em.out.Len()
	return em, nil
}

func (em *emission) emit(in *Instruction, remap operandRemapper) error {
	start := em.out.Len()
	em.out.WriteU8(in.Op)
	args := in.Args
	for _, kind := range opTable[in.Op].Operands {
		switch kind {
		case OperandBranch:
			em.placeholder(em.out.Len()+3, in.Offset+in.Length+int(in.Branch))
		case OperandSwitch:
			em.placeholder(start, in.Offset+int(in.Cases[0]))
			em.out.WriteU32(uint32(len(in.Cases) - 2))
			for _, c := range in.Cases[1:] {
				em.placeholder(start, in.Offset+int(c))
			}
		case OperandU8:
			em.out.WriteU8(byte(args[0]))
			args = args[1:]
		default:
			v, err := remap(kind, args[0])
			if err != nil {
				return fmt.Errorf("%s at %d: %w", opTable[in.Op].Name, in.Offset, err)
			}
			em.out.WriteU32(v)
			args = args[1:]
		}
	}
	return nil
}

func (em *emission) placeholder(base, target int) {
	em.fixups = append(em.fixups, fixup{at: em.out.Len(), base: base, target: target})
	em.out.WriteBytes([]byte{0, 0, 0})
}

// patchBranches fills in branch displacements now that every new offset is
// known.
func (em *emission) patchBranches() error {
	for _, f := range em.fixups {
		to := em.newOffset[f.target]
		if to < 0 {
			return errors.Malformed(f.target, "branch target is not an instruction boundary")
		}
		if err := em.out.PatchS24(f.at, int32(to-f.base)); err != nil {
			return err
		}
	}
	return nil
}

// mapOffset translates an old instruction boundary into the new code.
func (em *emission) mapOffset(old uint32) (uint32, error) {
	if int(old) >= len(em.newOffset) || em.newOffset[old] < 0 {
		return 0, errors.Malformed(int(old), "offset is not an instruction boundary")
	}
	return uint32(em.newOffset[old]), nil
}

// rewriteCode runs the scan, emit and patch passes over one method body and
// returns the new code and exception table. remap translates index operands.
func rewriteCode(body *MethodBody, opt peephole, remap operandRemapper) ([]byte, []Exception, int, error) {
	scan, err := scanCode(body.Code, body.Exceptions)
	if err != nil {
		return nil, nil, 0, err
	}
	em, err := emitCode(scan, len(body.Code), opt, remap)
	if err != nil {
		return nil, nil, 0, err
	}
	if err := em.patchBranches(); err != nil {
		return nil, nil, 0, err
	}
	excs := make([]Exception, len(body.Exceptions))
	for i, e := range body.Exceptions {
		if e.From, err = em.mapOffset(e.From); err != nil {
			return nil, nil, 0, err
		}
		if e.To, err = em.mapOffset(e.To); err != nil {
			return nil, nil, 0, err
		}
		if e.Target, err = em.mapOffset(e.Target); err != nil {
			return nil, nil, 0, err
		}
		excs[i] = e
	}
	return em.out.Bytes(), excs, em.removed, nil
}
