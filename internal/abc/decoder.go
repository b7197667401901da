// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package abc

import (
	"fmt"

	"github.com/dotandev/abcmerge/internal/errors"
)

// Decoder indexes one ABC block. Construction scans the constant pool and
// records the offset of every structural entry; entry contents are decoded
// only when requested, in any order.
type Decoder struct {
	// Name is the DoABC2 fragment name the block came from, if any.
	Name  string
	Minor uint16
	Major uint16
	Pool  *ConstantPool

	buf       *DataBuffer
	methods   []int
	metadata  []int
	instances []int
	classes   []int
	scripts   []int
	bodies    []int
	end       int
}

// NewDecoder indexes data, which must start with the minor/major version pair.
func NewDecoder(name string, data []byte) (*Decoder, error) {
	buf := NewDataBuffer(data)
	d := &Decoder{Name: name, buf: buf}

	var err error
	if d.Minor, err = buf.ReadU16(); err != nil {
		return nil, err
	}
	if d.Major, err = buf.ReadU16(); err != nil {
		return nil, err
	}
	if d.Pool, err = scanConstantPool(buf); err != nil {
		return nil, fmt.Errorf("scan constant pool: %w", err)
	}

	if d.methods, err = scanTable(buf, "method", 4, skipWith(readMethodInfo)); err != nil {
		return nil, fmt.Errorf("scan method table: %w", err)
	}
	if d.metadata, err = scanTable(buf, "metadata", 2, skipWith(readMetadata)); err != nil {
		return nil, fmt.Errorf("scan metadata table: %w", err)
	}

	// Instances and classes share one count; all instances precede all classes.
	classCount, err := readCount(buf, "class", 6)
	if err != nil {
		return nil, fmt.Errorf("scan class table: %w", err)
	}
	if d.instances, err = scanEntries(buf, classCount, skipWith(readInstance)); err != nil {
		return nil, fmt.Errorf("scan instance table: %w", err)
	}
	if d.classes, err = scanEntries(buf, classCount, skipWith(readClass)); err != nil {
		return nil, fmt.Errorf("scan class table: %w", err)
	}

	if d.scripts, err = scanTable(buf, "script", 2, skipWith(readScript)); err != nil {
		return nil, fmt.Errorf("scan script table: %w", err)
	}
	if d.bodies, err = scanTable(buf, "method body", 8, skipWith(readMethodBody)); err != nil {
		return nil, fmt.Errorf("scan method body table: %w", err)
	}
	d.end = buf.Position()
	return d, nil
}

func skipWith[T any](read func(*DataBuffer) (T, error)) func(*DataBuffer) error {
	return func(b *DataBuffer) error {
		_, err := read(b)
		return err
	}
}

func scanTable(b *DataBuffer, what string, minSize int, skip func(*DataBuffer) error) ([]int, error) {
	n, err := readCount(b, what, minSize)
	if err != nil {
		return nil, err
	}
	return scanEntries(b, n, skip)
}

func scanEntries(b *DataBuffer, n int, skip func(*DataBuffer) error) ([]int, error) {
	offs := make([]int, n)
	for i := range offs {
		offs[i] = b.Position()
		if err := skip(b); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return offs, nil
}

func decodeAt[T any](d *Decoder, offs []int, i int, what string, read func(*DataBuffer) (T, error)) (T, error) {
	var zero T
	if i < 0 || i >= len(offs) {
		return zero, errors.Malformed(d.end, "%s index %d out of range (%d entries)", what, i, len(offs))
	}
	var v T
	err := d.buf.Detour(offs[i], func() (err error) {
		v, err = read(d.buf)
		return err
	})
	return v, err
}

// Version renders the block version as "major.minor".
func (d *Decoder) Version() string {
	return fmt.Sprintf("%d.%d", d.Major, d.Minor)
}

// Size is the number of bytes the block occupies, up to the end of the
// method body table.
func (d *Decoder) Size() int { return d.end }

func (d *Decoder) NumMethods() int { return len(d.methods) }
func (d *Decoder) NumMetadata() int { return len(d.metadata) }
func (d *Decoder) NumClasses() int { return len(d.instances) }
func (d *Decoder) NumScripts() int { return len(d.scripts) }
func (d *Decoder) NumBodies() int { return len(d.bodies) }

func (d *Decoder) Method(i int) (MethodInfo, error) {
	return decodeAt(d, d.methods, i, "method", readMethodInfo)
}

func (d *Decoder) Metadata(i int) (Metadata, error) {
	return decodeAt(d, d.metadata, i, "metadata", readMetadata)
}

func (d *Decoder) Instance(i int) (Instance, error) {
	return decodeAt(d, d.instances, i, "instance", readInstance)
}

func (d *Decoder) Class(i int) (Class, error) {
	return decodeAt(d, d.classes, i, "class", readClass)
}

func (d *Decoder) Script(i int) (Script, error) {
	return decodeAt(d, d.scripts, i, "script", readScript)
}

func (d *Decoder) Body(i int) (MethodBody, error) {
	return decodeAt(d, d.bodies, i, "method body", readMethodBody)
}

// ClassNames returns the qualified names of the classes the block defines,
// in class table order.
func (d *Decoder) ClassNames() ([]string, error) {
	names := make([]string, d.NumClasses())
	for i := range names {
		in, err := d.Instance(i)
		if err != nil {
			return nil, err
		}
		if names[i], err = d.Pool.QualifiedName(in.Name); err != nil {
			return nil, err
		}
	}
	return names, nil
}
