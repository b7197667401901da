// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package abc

import (
	"github.com/dotandev/abcmerge/internal/errors"
)

// Operand describes one immediate operand of an instruction.
type Operand byte

const (
	OperandU8 Operand = iota + 1
	OperandU30
	OperandBranch // s24, relative to the end of the instruction
	OperandSwitch // lookupswitch case table
	OperandMultiname
	OperandString
	OperandInt
	OperandUint
	OperandDouble
	OperandNamespace
	OperandMethod
	OperandClass
	OperandException
)

// Pool reports which constant-pool table an operand indexes, if any.
func (o Operand) Pool() (PoolKind, bool) {
	switch o {
	case OperandMultiname:
		return KindMultiname, true
	case OperandString:
		return KindString, true
	case OperandInt:
		return KindInt, true
	case OperandUint:
		return KindUint, true
	case OperandDouble:
		return KindDouble, true
	case OperandNamespace:
		return KindNamespace, true
	}
	return 0, false
}

type OpInfo struct {
	Name     string
	Operands []Operand
}

const (
	OpBkpt           byte = 0x01
	OpNop            byte = 0x02
	OpThrow          byte = 0x03
	OpGetSuper       byte = 0x04
	OpSetSuper       byte = 0x05
	OpDxns           byte = 0x06
	OpDxnsLate       byte = 0x07
	OpKill           byte = 0x08
	OpLabel          byte = 0x09
	OpIfNlt          byte = 0x0C
	OpIfNle          byte = 0x0D
	OpIfNgt          byte = 0x0E
	OpIfNge          byte = 0x0F
	OpJump           byte = 0x10
	OpIfTrue         byte = 0x11
	OpIfFalse        byte = 0x12
	OpIfEq           byte = 0x13
	OpIfNe           byte = 0x14
	OpIfLt           byte = 0x15
	OpIfLe           byte = 0x16
	OpIfGt           byte = 0x17
	OpIfGe           byte = 0x18
	OpIfStrictEq     byte = 0x19
	OpIfStrictNe     byte = 0x1A
	OpLookupSwitch   byte = 0x1B
	OpPushWith       byte = 0x1C
	OpPopScope       byte = 0x1D
	OpNextName       byte = 0x1E
	OpHasNext        byte = 0x1F
	OpPushNull       byte = 0x20
	OpPushUndefined  byte = 0x21
	OpNextValue      byte = 0x23
	OpPushByte       byte = 0x24
	OpPushShort      byte = 0x25
	OpPushTrue       byte = 0x26
	OpPushFalse      byte = 0x27
	OpPushNaN        byte = 0x28
	OpPop            byte = 0x29
	OpDup            byte = 0x2A
	OpSwap           byte = 0x2B
	OpPushString     byte = 0x2C
	OpPushInt        byte = 0x2D
	OpPushUint       byte = 0x2E
	OpPushDouble     byte = 0x2F
	OpPushScope      byte = 0x30
	OpPushNamespace  byte = 0x31
	OpHasNext2       byte = 0x32
	OpNewFunction    byte = 0x40
	OpCall           byte = 0x41
	OpConstruct      byte = 0x42
	OpCallMethod     byte = 0x43
	OpCallStatic     byte = 0x44
	OpCallSuper      byte = 0x45
	OpCallProperty   byte = 0x46
	OpReturnVoid     byte = 0x47
	OpReturnValue    byte = 0x48
	OpConstructSuper byte = 0x49
	OpConstructProp  byte = 0x4A
	OpCallPropLex    byte = 0x4C
	OpCallSuperVoid  byte = 0x4E
	OpCallPropVoid   byte = 0x4F
	OpApplyType      byte = 0x53
	OpNewObject      byte = 0x55
	OpNewArray       byte = 0x56
	OpNewActivation  byte = 0x57
	OpNewClass       byte = 0x58
	OpGetDescendants byte = 0x59
	OpNewCatch       byte = 0x5A
	OpFindPropStrict byte = 0x5D
	OpFindProperty   byte = 0x5E
	OpFindDef        byte = 0x5F
	OpGetLex         byte = 0x60
	OpSetProperty    byte = 0x61
	OpGetLocal       byte = 0x62
	OpSetLocal       byte = 0x63
	OpGetGlobalScope byte = 0x64
	OpGetScopeObject byte = 0x65
	OpGetProperty    byte = 0x66
	OpGetOuterScope  byte = 0x67
	OpInitProperty   byte = 0x68
	OpDeleteProperty byte = 0x6A
	OpGetSlot        byte = 0x6C
	OpSetSlot        byte = 0x6D
	OpGetGlobalSlot  byte = 0x6E
	OpSetGlobalSlot  byte = 0x6F
	OpConvertS       byte = 0x70
	OpConvertI       byte = 0x73
	OpConvertU       byte = 0x74
	OpConvertD       byte = 0x75
	OpConvertB       byte = 0x76
	OpCoerce         byte = 0x80
	OpCoerceB        byte = 0x81
	OpCoerceA        byte = 0x82
	OpCoerceI        byte = 0x83
	OpCoerceD        byte = 0x84
	OpCoerceS        byte = 0x85
	OpAsType         byte = 0x86
	OpCoerceU        byte = 0x88
	OpCoerceO        byte = 0x89
	OpIncLocal       byte = 0x92
	OpDecLocal       byte = 0x94
	OpAdd            byte = 0xA0
	OpIsType         byte = 0xB2
	OpIncLocalI      byte = 0xC2
	OpDecLocalI      byte = 0xC3
	OpGetLocal0      byte = 0xD0
	OpSetLocal0      byte = 0xD4
	OpDebug          byte = 0xEF
	OpDebugLine      byte = 0xF0
	OpDebugFile      byte = 0xF1
	OpBkptLine       byte = 0xF2
	OpTimestamp      byte = 0xF3
)

var opTable [256]OpInfo

func def(op byte, name string, operands ...Operand) {
	opTable[op] = OpInfo{Name: name, Operands: operands}
}

func init() {
	u8, u30, br := OperandU8, OperandU30, OperandBranch
	mn := OperandMultiname

	def(OpBkpt, "bkpt")
	def(OpNop, "nop")
	def(OpThrow, "throw")
	def(OpGetSuper, "getsuper", mn)
	def(OpSetSuper, "setsuper", mn)
	def(OpDxns, "dxns", OperandString)
	def(OpDxnsLate, "dxnslate")
	def(OpKill, "kill", u30)
	def(OpLabel, "label")
	def(OpIfNlt, "ifnlt", br)
	def(OpIfNle, "ifnle", br)
	def(OpIfNgt, "ifngt", br)
	def(OpIfNge, "ifnge", br)
	def(OpJump, "jump", br)
	def(OpIfTrue, "iftrue", br)
	def(OpIfFalse, "iffalse", br)
	def(OpIfEq, "ifeq", br)
	def(OpIfNe, "ifne", br)
	def(OpIfLt, "iflt", br)
	def(OpIfLe, "ifle", br)
	def(OpIfGt, "ifgt", br)
	def(OpIfGe, "ifge", br)
	def(OpIfStrictEq, "ifstricteq", br)
	def(OpIfStrictNe, "ifstrictne", br)
	def(OpLookupSwitch, "lookupswitch", OperandSwitch)
	def(OpPushWith, "pushwith")
	def(OpPopScope, "popscope")
	def(OpNextName, "nextname")
	def(OpHasNext, "hasnext")
	def(OpPushNull, "pushnull")
	def(OpPushUndefined, "pushundefined")
	def(OpNextValue, "nextvalue")
	def(OpPushByte, "pushbyte", u8)
	def(OpPushShort, "pushshort", u30)
	def(OpPushTrue, "pushtrue")
	def(OpPushFalse, "pushfalse")
	def(OpPushNaN, "pushnan")
	def(OpPop, "pop")
	def(OpDup, "dup")
	def(OpSwap, "swap")
	def(OpPushString, "pushstring", OperandString)
	def(OpPushInt, "pushint", OperandInt)
	def(OpPushUint, "pushuint", OperandUint)
	def(OpPushDouble, "pushdouble", OperandDouble)
	def(OpPushScope, "pushscope")
	def(OpPushNamespace, "pushnamespace", OperandNamespace)
	def(OpHasNext2, "hasnext2", u30, u30)

	// Domain memory opcodes.
	for op, name := range map[byte]string{
		0x35: "li8", 0x36: "li16", 0x37: "li32", 0x38: "lf32", 0x39: "lf64",
		0x3A: "si8", 0x3B: "si16", 0x3C: "si32", 0x3D: "sf32", 0x3E: "sf64",
		0x50: "sxi1", 0x51: "sxi8", 0x52: "sxi16",
	} {
		def(op, name)
	}

	def(OpNewFunction, "newfunction", OperandMethod)
	def(OpCall, "call", u30)
	def(OpConstruct, "construct", u30)
	def(OpCallMethod, "callmethod", u30, u30)
	def(OpCallStatic, "callstatic", OperandMethod, u30)
	def(OpCallSuper, "callsuper", mn, u30)
	def(OpCallProperty, "callproperty", mn, u30)
	def(OpReturnVoid, "returnvoid")
	def(OpReturnValue, "returnvalue")
	def(OpConstructSuper, "constructsuper", u30)
	def(OpConstructProp, "constructprop", mn, u30)
	def(OpCallPropLex, "callproplex", mn, u30)
	def(OpCallSuperVoid, "callsupervoid", mn, u30)
	def(OpCallPropVoid, "callpropvoid", mn, u30)
	def(OpApplyType, "applytype", u30)
	def(OpNewObject, "newobject", u30)
	def(OpNewArray, "newarray", u30)
	def(OpNewActivation, "newactivation")
	def(OpNewClass, "newclass", OperandClass)
	def(OpGetDescendants, "getdescendants", mn)
	def(OpNewCatch, "newcatch", OperandException)
	def(OpFindPropStrict, "findpropstrict", mn)
	def(OpFindProperty, "findproperty", mn)
	def(OpFindDef, "finddef", mn)
	def(OpGetLex, "getlex", mn)
	def(OpSetProperty, "setproperty", mn)
	def(OpGetLocal, "getlocal", u30)
	def(OpSetLocal, "setlocal", u30)
	def(OpGetGlobalScope, "getglobalscope")
	def(OpGetScopeObject, "getscopeobject", u8)
	def(OpGetProperty, "getproperty", mn)
	def(OpGetOuterScope, "getouterscope", u30)
	def(OpInitProperty, "initproperty", mn)
	def(OpDeleteProperty, "deleteproperty", mn)
	def(OpGetSlot, "getslot", u30)
	def(OpSetSlot, "setslot", u30)
	def(OpGetGlobalSlot, "getglobalslot", u30)
	def(OpSetGlobalSlot, "setglobalslot", u30)

	def(OpConvertS, "convert_s")
	def(0x71, "esc_xelem")
	def(0x72, "esc_xattr")
	def(OpConvertI, "convert_i")
	def(OpConvertU, "convert_u")
	def(OpConvertD, "convert_d")
	def(OpConvertB, "convert_b")
	def(0x77, "convert_o")
	def(0x78, "checkfilter")

	def(OpCoerce, "coerce", mn)
	def(OpCoerceB, "coerce_b")
	def(OpCoerceA, "coerce_a")
	def(OpCoerceI, "coerce_i")
	def(OpCoerceD, "coerce_d")
	def(OpCoerceS, "coerce_s")
	def(OpAsType, "astype", mn)
	def(0x87, "astypelate")
	def(OpCoerceU, "coerce_u")
	def(OpCoerceO, "coerce_o")

	def(0x90, "negate")
	def(0x91, "increment")
	def(OpIncLocal, "inclocal", u30)
	def(0x93, "decrement")
	def(OpDecLocal, "declocal", u30)
	def(0x95, "typeof")
	def(0x96, "not")
	def(0x97, "bitnot")

	for i, name := range []string{
		"add", "subtract", "multiply", "divide", "modulo", "lshift", "rshift", "urshift",
		"bitand", "bitor", "bitxor", "equals", "strictequals", "lessthan", "lessequals",
		"greaterthan", "greaterequals", "instanceof",
	} {
		def(OpAdd+byte(i), name)
	}
	def(OpIsType, "istype", mn)
	def(0xB3, "istypelate")
	def(0xB4, "in")

	def(0xC0, "increment_i")
	def(0xC1, "decrement_i")
	def(OpIncLocalI, "inclocal_i", u30)
	def(OpDecLocalI, "declocal_i", u30)
	def(0xC4, "negate_i")
	def(0xC5, "add_i")
	def(0xC6, "subtract_i")
	def(0xC7, "multiply_i")

	for i := byte(0); i < 4; i++ {
		def(OpGetLocal0+i, "getlocal_"+string('0'+rune(i)))
		def(OpSetLocal0+i, "setlocal_"+string('0'+rune(i)))
	}

	def(OpDebug, "debug", u8, OperandString, u8, u30)
	def(OpDebugLine, "debugline", u30)
	def(OpDebugFile, "debugfile", OperandString)
	def(OpBkptLine, "bkptline", u30)
	def(OpTimestamp, "timestamp")
}

// Lookup returns the table entry for op; ok is false for unassigned bytes.
func Lookup(op byte) (OpInfo, bool) {
	info := opTable[op]
	return info, info.Name != ""
}

// Instruction is one decoded instruction. Args holds every non-branch operand
// in table order; branch displacements live in Branch or Cases.
type Instruction struct {
	Offset int
	Length int
	Op     byte
	Args   []uint32
	Branch int32
	// Cases holds the lookupswitch default displacement followed by each case.
	Cases []int32
}

func (in *Instruction) IsBranch() bool {
	ops := opTable[in.Op].Operands
	return len(ops) == 1 && ops[0] == OperandBranch
}

func (in *Instruction) IsSwitch() bool {
	return in.Op == OpLookupSwitch
}

// Targets returns the absolute code offsets the instruction can transfer
// control to. Branches are relative to the end of the instruction;
// lookupswitch displacements are relative to the opcode itself.
func (in *Instruction) Targets() []int {
	switch {
	case in.IsBranch():
		return []int{in.Offset + in.Length + int(in.Branch)}
	case in.IsSwitch():
		out := make([]int, len(in.Cases))
		for i, c := range in.Cases {
			out[i] = in.Offset + int(c)
		}
		return out
	}
	return nil
}

// DecodeInstruction decodes the instruction at off in code.
func DecodeInstruction(code []byte, off int) (Instruction, error) {
	b := NewDataBuffer(code)
	if err := b.Seek(off); err != nil {
		return Instruction{}, err
	}
	return decodeInstruction(b)
}

func decodeInstruction(b *DataBuffer) (Instruction, error) {
	in := Instruction{Offset: b.Position()}
	op, err := b.ReadU8()
	if err != nil {
		return in, err
	}
	in.Op = op
	info, ok := Lookup(op)
	if !ok {
		return in, errors.Malformed(in.Offset, "unknown opcode 0x%02x", op)
	}
	for _, kind := range info.Operands {
		switch kind {
		case OperandU8:
			v, err := b.ReadU8()
			if err != nil {
				return in, err
			}
			in.Args = append(in.Args, uint32(v))
		case OperandBranch:
			if in.Branch, err = b.ReadS24(); err != nil {
				return in, err
			}
		case OperandSwitch:
			dflt, err := b.ReadS24()
			if err != nil {
				return in, err
			}
			n, err := readCount(b, "lookupswitch case", 3)
			if err != nil {
				return in, err
			}
			in.Cases = make([]int32, 0, n+2)
			in.Cases = append(in.Cases, dflt)
			for i := 0; i <= n; i++ {
				c, err := b.ReadS24()
				if err != nil {
					return in, err
				}
				in.Cases = append(in.Cases, c)
			}
		default:
			v, err := b.ReadU32()
			if err != nil {
				return in, err
			}
			in.Args = append(in.Args, v)
		}
	}
	in.Length = b.Position() - in.Offset
	return in, nil
}

// DecodeCode decodes a whole method body code block.
func DecodeCode(code []byte) ([]Instruction, error) {
	b := NewDataBuffer(code)
	var out []Instruction
	for b.Remaining() > 0 {
		in, err := decodeInstruction(b)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}
