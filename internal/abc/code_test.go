// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package abc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopCode is a counting loop with a lookupswitch inside, sprinkled with
// instructions the peephole removes.
func loopCode(b *Builder) *Code {
	return NewCode().
		Op(OpGetLocal0).Op(OpPushScope).
		Op(OpDebugLine, 1).
		Op(OpPushByte, 3).Op(OpSetLocal, 1).
		Label("loop").
		Op(OpNop).
		Op(OpGetLocal, 1).Op(OpPushByte, 0).
		Branch(OpIfLe, "done").
		Op(OpGetLocal, 1).
		Switch("default", "case0", "case1").
		Label("case0").
		Op(OpPushString, b.String("zero")).Op(OpCoerceS).Op(OpPop).
		Branch(OpJump, "next").
		Label("case1").
		Op(OpPushInt, b.Int(5)).Op(OpConvertI).Op(OpPop).
		Branch(OpJump, "next").
		Label("default").
		Branch(OpJump, "next").
		Label("next").
		Op(OpDecLocalI, 1).
		Branch(OpJump, "loop").
		Label("done").
		Op(OpReturnVoid)
}

func mergedCode(t *testing.T, opts Options, block []byte) ([]Instruction, MethodBody, Stats) {
	t.Helper()
	merged, stats := mergeBlocks(t, opts, block)
	body, err := merged.Body(0)
	require.NoError(t, err)
	instrs, err := DecodeCode(body.Code)
	require.NoError(t, err)
	return instrs, body, stats
}

// at returns the instruction starting at off.
func at(t *testing.T, instrs []Instruction, off int) Instruction {
	t.Helper()
	for _, in := range instrs {
		if in.Offset == off {
			return in
		}
	}
	t.Fatalf("no instruction starts at %d", off)
	return Instruction{}
}

func TestPeepholeKeepsBranchesCorrect(t *testing.T) {
	instrs, _, stats := mergedCode(t, DefaultOptions(), buildCodeBlock(t, loopCode))

	assert.Equal(t, 5, stats.InstructionsRemoved)
	var jumps []Instruction
	var ifle, sw Instruction
	for _, in := range instrs {
		switch in.Op {
		case OpDebugLine, OpNop, OpCoerceS, OpConvertI:
			t.Errorf("%s survived the peephole", opTable[in.Op].Name)
		case OpJump:
			jumps = append(jumps, in)
		case OpIfLe:
			ifle = in
		case OpLookupSwitch:
			sw = in
		}
	}
	require.Len(t, jumps, 3)

	assert.Equal(t, OpReturnVoid, at(t, instrs, ifle.Targets()[0]).Op)

	targets := sw.Targets()
	require.Len(t, targets, 3)
	// The default case pointed at a removed jump +0 and now falls to what
	// followed it.
	assert.Equal(t, OpDecLocalI, at(t, instrs, targets[0]).Op)
	assert.Equal(t, OpPushString, at(t, instrs, targets[1]).Op)
	assert.Equal(t, OpPushInt, at(t, instrs, targets[2]).Op)

	assert.Equal(t, OpDecLocalI, at(t, instrs, jumps[0].Targets()[0]).Op)
	assert.Equal(t, OpDecLocalI, at(t, instrs, jumps[1].Targets()[0]).Op)

	// The loop head was a removed nop; the backward jump lands on the load
	// that followed it.
	back := at(t, instrs, jumps[2].Targets()[0])
	assert.Equal(t, OpGetLocal, back.Op)
	assert.Equal(t, []uint32{1}, back.Args)
	assert.Less(t, jumps[2].Targets()[0], jumps[2].Offset)
}

func TestRewriteWithoutPeepholeKeepsCode(t *testing.T) {
	block := buildCodeBlock(t, loopCode)
	orig, err := mustDecode(t, "orig", block).Body(0)
	require.NoError(t, err)

	_, body, stats := mergedCode(t, rawOptions(), block)
	assert.Zero(t, stats.InstructionsRemoved)
	assert.Equal(t, orig.Code, body.Code)
}

func TestStripDebugOnly(t *testing.T) {
	instrs, _, stats := mergedCode(t, Options{StripDebug: true}, buildCodeBlock(t, loopCode))
	assert.Equal(t, 1, stats.InstructionsRemoved)
	ops := map[byte]bool{}
	for _, in := range instrs {
		ops[in.Op] = true
	}
	assert.False(t, ops[OpDebugLine])
	assert.True(t, ops[OpNop])
	assert.True(t, ops[OpCoerceS])
}

func TestPeepholeKeepsTargetedCoercion(t *testing.T) {
	block := buildCodeBlock(t, func(b *Builder) *Code {
		s := b.String("x")
		return NewCode().
			Op(OpPushString, s).
			Label("c").
			Op(OpCoerceS).
			Op(OpPop).
			Op(OpPushString, s).
			Branch(OpJump, "c")
	})
	instrs, _, stats := mergedCode(t, DefaultOptions(), block)
	assert.Zero(t, stats.InstructionsRemoved)
	require.Len(t, instrs, 5)
	assert.Equal(t, OpCoerceS, at(t, instrs, instrs[4].Targets()[0]).Op)
}

func TestExceptionRangesFollowCode(t *testing.T) {
	var from, to, target int
	block := buildCodeBlockWithExceptions(t, func(b *Builder) (*Code, []Exception) {
		c := NewCode()
		from = c.Offset()
		c.Op(OpNop).Op(OpGetLocal0).Op(OpPop)
		to = c.Offset()
		c.Branch(OpJump, "after")
		target = c.Offset()
		c.Op(OpNop).Op(OpPop).Label("after").Op(OpReturnVoid)
		exc := Exception{
			From: uint32(from), To: uint32(to), Target: uint32(target),
			ExcType: b.PackageQName("", "Error"),
			VarName: b.QName(b.PackageNamespace(""), "e"),
		}
		return c, []Exception{exc}
	})

	merged, _ := mergeBlocks(t, DefaultOptions(), block)
	body, err := merged.Body(0)
	require.NoError(t, err)
	instrs, err := DecodeCode(body.Code)
	require.NoError(t, err)
	require.Len(t, body.Exceptions, 1)

	exc := body.Exceptions[0]
	assert.Equal(t, uint32(0), exc.From)
	assert.Equal(t, OpGetLocal0, at(t, instrs, int(exc.From)).Op)
	assert.Equal(t, OpJump, at(t, instrs, int(exc.To)).Op)
	assert.Equal(t, OpPop, at(t, instrs, int(exc.Target)).Op)

	typ, err := merged.Pool.QualifiedName(exc.ExcType)
	require.NoError(t, err)
	assert.Equal(t, "Error", typ)
	v, err := merged.Pool.QualifiedName(exc.VarName)
	require.NoError(t, err)
	assert.Equal(t, "e", v)
}
