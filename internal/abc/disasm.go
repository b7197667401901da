// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package abc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Style decorates parts of a listing. Nil fields leave text unchanged.
type Style struct {
	Op    func(a ...any) string
	Label func(a ...any) string
	Name  func(a ...any) string
}

func (s Style) apply(f func(a ...any) string, text string) string {
	if f == nil {
		return text
	}
	return f(text)
}

// Disassemble renders a block with every index resolved to the value it
// names. Two blocks that differ only in pool order disassemble identically.
func Disassemble(d *Decoder) (string, error) {
	return DisassembleStyled(d, Style{})
}

func DisassembleStyled(d *Decoder, style Style) (string, error) {
	l := &lister{d: d, style: style}
	if err := l.run(); err != nil {
		return "", err
	}
	return l.sb.String(), nil
}

type lister struct {
	d     *Decoder
	style Style
	sb    strings.Builder
}

func (l *lister) printf(format string, args ...any) {
	fmt.Fprintf(&l.sb, format, args...)
}

func (l *lister) name(i uint32) string {
	n, err := l.d.Pool.QualifiedName(i)
	if err != nil {
		return fmt.Sprintf("<bad multiname %d>", i)
	}
	return l.style.apply(l.style.Name, n)
}

func (l *lister) str(i uint32) string {
	if i == 0 {
		return "null"
	}
	s, err := l.d.Pool.String(i)
	if err != nil {
		return fmt.Sprintf("<bad string %d>", i)
	}
	return strconv.Quote(s)
}

func (l *lister) namespace(i uint32) string {
	if i == 0 {
		return "*"
	}
	ns, err := l.d.Pool.Namespace(i)
	if err != nil {
		return fmt.Sprintf("<bad namespace %d>", i)
	}
	return fmt.Sprintf("ns(0x%02x %s)", ns.Kind, l.str(ns.Name))
}

func (l *lister) value(kind byte, v uint32) string {
	p := l.d.Pool
	switch kind {
	case ValInt:
		n, err := p.Int(v)
		if err != nil {
			return "<bad int>"
		}
		return strconv.FormatInt(int64(n), 10)
	case ValUint:
		n, err := p.Uint(v)
		if err != nil {
			return "<bad uint>"
		}
		return strconv.FormatUint(uint64(n), 10) + "u"
	case ValDouble:
		f, err := p.Double(v)
		if err != nil {
			return "<bad double>"
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	case ValUtf8:
		return l.str(v)
	case ValTrue:
		return "true"
	case ValFalse:
		return "false"
	case ValNull:
		return "null"
	case ValUndefined:
		return "undefined"
	}
	return l.namespace(v)
}

func (l *lister) run() error {
	d := l.d
	l.printf("abc %s\n", d.Version())
	for k := KindInt; k < numPoolKinds; k++ {
		l.printf("  pool %s: %d\n", k, d.Pool.Count(k))
	}
	for i := 0; i < d.NumMethods(); i++ {
		m, err := d.Method(i)
		if err != nil {
			return err
		}
		l.method(i, &m)
	}
	for i := 0; i < d.NumMetadata(); i++ {
		md, err := d.Metadata(i)
		if err != nil {
			return err
		}
		l.printf("metadata %d %s\n", i, l.metadata(&md))
	}
	for i := 0; i < d.NumClasses(); i++ {
		in, err := d.Instance(i)
		if err != nil {
			return err
		}
		c, err := d.Class(i)
		if err != nil {
			return err
		}
		l.class(i, &in, &c)
	}
	for i := 0; i < d.NumScripts(); i++ {
		s, err := d.Script(i)
		if err != nil {
			return err
		}
		l.printf("script %d init=method %d\n", i, s.Init)
		l.traits(s.Traits)
	}
	for i := 0; i < d.NumBodies(); i++ {
		body, err := d.Body(i)
		if err != nil {
			return err
		}
		if err := l.body(&body); err != nil {
			return fmt.Errorf("body %d: %w", i, err)
		}
	}
	return nil
}

func (l *lister) method(i int, m *MethodInfo) {
	params := make([]string, len(m.ParamTypes))
	for j, t := range m.ParamTypes {
		params[j] = l.name(t)
		if j < len(m.ParamNames) {
			params[j] = l.str(m.ParamNames[j]) + ":" + params[j]
		}
	}
	l.printf("method %d %s(%s):%s flags=0x%02x", i, l.str(m.Name), strings.Join(params, ", "), l.name(m.ReturnType), m.Flags)
	if len(m.Options) > 0 {
		opts := make([]string, len(m.Options))
		for j, o := range m.Options {
			opts[j] = l.value(o.Kind, o.Value)
		}
		l.printf(" defaults=[%s]", strings.Join(opts, ", "))
	}
	l.printf("\n")
}

func (l *lister) metadata(md *Metadata) string {
	items := make([]string, len(md.Keys))
	for j := range md.Keys {
		items[j] = l.str(md.Keys[j]) + "=" + l.str(md.Values[j])
	}
	return fmt.Sprintf("%s(%s)", l.str(md.Name), strings.Join(items, ", "))
}

func (l *lister) class(i int, in *Instance, c *Class) {
	l.printf("class %d %s extends %s flags=0x%02x", i, l.name(in.Name), l.name(in.SuperName), in.Flags)
	if in.Flags&InstanceProtectedNs != 0 {
		l.printf(" protected=%s", l.namespace(in.ProtectedNS))
	}
	if len(in.Interfaces) > 0 {
		names := make([]string, len(in.Interfaces))
		for j, t := range in.Interfaces {
			names[j] = l.name(t)
		}
		l.printf(" implements %s", strings.Join(names, ", "))
	}
	l.printf("\n  iinit=method %d\n", in.Init)
	l.traits(in.Traits)
	l.printf("  cinit=method %d\n", c.Init)
	l.traits(c.Traits)
}

func (l *lister) traits(traits []Trait) {
	for _, t := range traits {
		l.printf("  trait %s %s attrs=0x%x", t.Kind, l.name(t.Name), t.Attrs)
		switch t.Kind {
		case TraitSlot, TraitConst:
			l.printf(" slot=%d type=%s", t.SlotID, l.name(t.TypeName))
			if t.VIndex != 0 {
				l.printf(" value=%s", l.value(t.VKind, t.VIndex))
			}
		case TraitClass:
			l.printf(" slot=%d class=%d", t.SlotID, t.Index)
		default:
			l.printf(" disp=%d method=%d", t.SlotID, t.Index)
		}
		for _, md := range t.Metadata {
			if int(md) < l.d.NumMetadata() {
				if m, err := l.d.Metadata(int(md)); err == nil {
					l.printf(" [%s]", l.metadata(&m))
					continue
				}
			}
			l.printf(" [metadata %d]", md)
		}
		l.printf("\n")
	}
}

func (l *lister) body(body *MethodBody) error {
	scan, err := scanCode(body.Code, body.Exceptions)
	if err != nil {
		return err
	}
	var targets []int
	for off, ok := range scan.targets {
		if ok {
			targets = append(targets, off)
		}
	}
	sort.Ints(targets)
	labels := make(map[int]string, len(targets))
	for n, off := range targets {
		labels[off] = l.style.apply(l.style.Label, fmt.Sprintf("L%d", n))
	}

	l.printf("body method=%d maxstack=%d locals=%d scope=%d..%d\n",
		body.Method, body.MaxStack, body.LocalCount, body.InitScopeDepth, body.MaxScopeDepth)
	for _, in := range scan.instrs {
		prefix := "      "
		if lbl, ok := labels[in.Offset]; ok {
			prefix = fmt.Sprintf("  %s: ", lbl)
		}
		l.printf("%s%s\n", prefix, l.instruction(&in, labels))
	}
	if lbl, ok := labels[len(body.Code)]; ok {
		l.printf("  %s:\n", lbl)
	}
	for _, e := range body.Exceptions {
		l.printf("  catch %s..%s -> %s type=%s var=%s\n",
			labels[int(e.From)], labels[int(e.To)], labels[int(e.Target)], l.name(e.ExcType), l.name(e.VarName))
	}
	l.traits(body.Traits)
	return nil
}

func (l *lister) instruction(in *Instruction, labels map[int]string) string {
	info := opTable[in.Op]
	parts := []string{l.style.apply(l.style.Op, info.Name)}
	args := in.Args
	for _, kind := range info.Operands {
		switch kind {
		case OperandBranch:
			parts = append(parts, labels[in.Targets()[0]])
			continue
		case OperandSwitch:
			t := in.Targets()
			cases := make([]string, len(t)-1)
			for i, off := range t[1:] {
				cases[i] = labels[off]
			}
			parts = append(parts, labels[t[0]], "["+strings.Join(cases, ", ")+"]")
			continue
		}
		v := args[0]
		args = args[1:]
		switch kind {
		case OperandMultiname:
			parts = append(parts, l.name(v))
		case OperandString:
			parts = append(parts, l.str(v))
		case OperandInt:
			parts = append(parts, l.value(ValInt, v))
		case OperandUint:
			parts = append(parts, l.value(ValUint, v))
		case OperandDouble:
			parts = append(parts, l.value(ValDouble, v))
		case OperandNamespace:
			parts = append(parts, l.namespace(v))
		case OperandMethod:
			parts = append(parts, fmt.Sprintf("method %d", v))
		case OperandClass:
			parts = append(parts, fmt.Sprintf("class %d", v))
		default:
			parts = append(parts, strconv.FormatUint(uint64(v), 10))
		}
	}
	return strings.Join(parts, " ")
}
