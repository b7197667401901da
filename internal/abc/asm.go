// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package abc

import (
	"fmt"
)

// Code assembles a method body's bytecode. Branch targets are named labels
// resolved by Assemble.
type Code struct {
	w      Writer
	labels map[string]int
	refs   []labelRef
	err    error
}

type labelRef struct {
	at    int
	base  int
	label string
}

func NewCode() *Code {
	return &Code{labels: make(map[string]int)}
}

func (c *Code) fail(format string, args ...any) *Code {
	if c.err == nil {
		c.err = fmt.Errorf(format, args...)
	}
	return c
}

// Offset is the position the next instruction will be written at.
func (c *Code) Offset() int { return c.w.Len() }

// Op writes an instruction whose operands are all immediate values.
func (c *Code) Op(op byte, args ...uint32) *Code {
	info, ok := Lookup(op)
	if !ok {
		return c.fail("unknown opcode 0x%02x", op)
	}
	if len(info.Operands) != len(args) {
		return c.fail("%s takes %d operands, got %d", info.Name, len(info.Operands), len(args))
	}
	c.w.WriteU8(op)
	for i, kind := range info.Operands {
		switch kind {
		case OperandBranch, OperandSwitch:
			return c.fail("%s needs a label operand", info.Name)
		case OperandU8:
			c.w.WriteU8(byte(args[i]))
		default:
			c.w.WriteU32(args[i])
		}
	}
	return c
}

func (c *Code) Label(name string) *Code {
	if _, dup := c.labels[name]; dup {
		return c.fail("label %q defined twice", name)
	}
	c.labels[name] = c.w.Len()
	return c
}

// Branch writes a jump or conditional branch to label.
func (c *Code) Branch(op byte, label string) *Code {
	ops := opTable[op].Operands
	if len(ops) != 1 || ops[0] != OperandBranch {
		return c.fail("0x%02x is not a branch", op)
	}
	c.w.WriteU8(op)
	c.refs = append(c.refs, labelRef{at: c.w.Len(), base: c.w.Len() + 3, label: label})
	c.w.WriteBytes([]byte{0, 0, 0})
	return c
}

// Switch writes a lookupswitch with a default label and one label per case.
func (c *Code) Switch(dflt string, cases ...string) *Code {
	if len(cases) == 0 {
		return c.fail("lookupswitch needs at least one case")
	}
	start := c.w.Len()
	c.w.WriteU8(OpLookupSwitch)
	c.refs = append(c.refs, labelRef{at: c.w.Len(), base: start, label: dflt})
	c.w.WriteBytes([]byte{0, 0, 0})
	c.w.WriteU32(uint32(len(cases) - 1))
	for _, l := range cases {
		c.refs = append(c.refs, labelRef{at: c.w.Len(), base: start, label: l})
		c.w.WriteBytes([]byte{0, 0, 0})
	}
	return c
}

// Assemble resolves labels and returns the bytecode.
func (c *Code) Assemble() ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	for _, r := range c.refs {
		to, ok := c.labels[r.label]
		if !ok {
			return nil, fmt.Errorf("undefined label %q", r.label)
		}
		if err := c.w.PatchS24(r.at, int32(to-r.base)); err != nil {
			return nil, err
		}
	}
	out := make([]byte, c.w.Len())
	copy(out, c.w.Bytes())
	return out, nil
}

// MustAssemble is Assemble for code known to be well formed.
func (c *Code) MustAssemble() []byte {
	code, err := c.Assemble()
	if err != nil {
		panic(err)
	}
	return code
}
