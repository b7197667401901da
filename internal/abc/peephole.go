// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package abc

// redundant[coercion] lists the pushes whose result already has the type the
// coercion produces.
var redundant = map[byte][]byte{
	OpCoerceS:  {OpPushString},
	OpConvertS: {OpPushString},
	OpCoerceI:  {OpPushByte, OpPushShort, OpPushInt},
	OpConvertI: {OpPushByte, OpPushShort, OpPushInt},
	OpCoerceU:  {OpPushUint},
	OpConvertU: {OpPushUint},
	OpCoerceD:  {OpPushDouble, OpPushNaN},
	OpConvertD: {OpPushDouble, OpPushNaN},
	OpCoerceB:  {OpPushTrue, OpPushFalse},
	OpConvertB: {OpPushTrue, OpPushFalse},
}

func isDebugOp(op byte) bool {
	switch op {
	case OpDebug, OpDebugLine, OpDebugFile, OpBkptLine, OpTimestamp:
		return true
	}
	return false
}

type peephole struct {
	stripDebug bool
	enabled    bool
}

// drop reports whether instrs[i] can be left out of the re-emitted code.
// Control that reached a dropped instruction continues at the next one.
func (o peephole) drop(instrs []Instruction, i int, scan *codeScan) bool {
	in := &instrs[i]
	if isDebugOp(in.Op) {
		return o.stripDebug
	}
	if !o.enabled {
		return false
	}
	switch in.Op {
	case OpNop:
		return true
	case OpJump:
		return in.Branch == 0
	}
	pushes, ok := redundant[in.Op]
	if !ok || i == 0 || scan.targets[in.Offset] {
		return false
	}
	prev := instrs[i-1].Op
	for _, op := range pushes {
		if prev == op {
			return true
		}
	}
	return false
}
