// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package abc

// PoolKind selects one of the seven constant-pool tables, in file order.
type PoolKind int

const (
	KindInt PoolKind = iota
	KindUint
	KindDouble
	KindString
	KindNamespace
	KindNamespaceSet
	KindMultiname
	numPoolKinds
)

var poolKindNames = [numPoolKinds]string{"int", "uint", "double", "string", "namespace", "nsset", "multiname"}

func (k PoolKind) String() string {
	if k < 0 || k >= numPoolKinds {
		return "invalid"
	}
	return poolKindNames[k]
}

// Namespace kinds.
const (
	NsPrivate         byte = 0x05
	NsNamespace       byte = 0x08
	NsPackage         byte = 0x16
	NsPackageInternal byte = 0x17
	NsProtected       byte = 0x18
	NsExplicit        byte = 0x19
	NsStaticProtected byte = 0x1A
)

func isNamespaceKind(k byte) bool {
	switch k {
	case NsPrivate, NsNamespace, NsPackage, NsPackageInternal, NsProtected, NsExplicit, NsStaticProtected:
		return true
	}
	return false
}

// Multiname kinds.
const (
	MnQName       byte = 0x07
	MnQNameA      byte = 0x0D
	MnRTQName     byte = 0x0F
	MnRTQNameA    byte = 0x10
	MnRTQNameL    byte = 0x11
	MnRTQNameLA   byte = 0x12
	MnMultiname   byte = 0x09
	MnMultinameA  byte = 0x0E
	MnMultinameL  byte = 0x1B
	MnMultinameLA byte = 0x1C
	MnTypeName    byte = 0x1D
)

// Value kinds used by optional parameters and slot/const traits.
const (
	ValUndefined byte = 0x00
	ValUtf8      byte = 0x01
	ValInt       byte = 0x03
	ValUint      byte = 0x04
	ValDouble    byte = 0x06
	ValFalse     byte = 0x0A
	ValTrue      byte = 0x0B
	ValNull      byte = 0x0C
)

// Method info flags.
const (
	MethodNeedArguments  byte = 0x01
	MethodNeedActivation byte = 0x02
	MethodNeedRest       byte = 0x04
	MethodHasOptional    byte = 0x08
	MethodSetDxns        byte = 0x40
	MethodHasParamNames  byte = 0x80
)

// Instance flags.
const (
	InstanceSealed      byte = 0x01
	InstanceFinal       byte = 0x02
	InstanceInterface   byte = 0x04
	InstanceProtectedNs byte = 0x08
)

// TraitKind is the low nibble of a trait's kind byte.
type TraitKind byte

const (
	TraitSlot     TraitKind = 0
	TraitMethod   TraitKind = 1
	TraitGetter   TraitKind = 2
	TraitSetter   TraitKind = 3
	TraitClass    TraitKind = 4
	TraitFunction TraitKind = 5
	TraitConst    TraitKind = 6
)

var traitKindNames = [...]string{"slot", "method", "getter", "setter", "class", "function", "const"}

func (k TraitKind) String() string {
	if int(k) < len(traitKindNames) {
		return traitKindNames[k]
	}
	return "invalid"
}

// Trait attribute bits, stored in the high nibble of the kind byte.
const (
	AttrFinal    byte = 0x1
	AttrOverride byte = 0x2
	AttrMetadata byte = 0x4
)
