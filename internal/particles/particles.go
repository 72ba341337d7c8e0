// Package particles holds named destination arrays: particle collections
// owning device field buffers and a live particle count.
package particles

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/sphstep/internal/device"
)

var (
	// ErrUnknownArray indicates a destination name with no registered array.
	ErrUnknownArray = errors.New("particles: unknown array")

	// ErrUnknownField indicates a field name absent from an array.
	ErrUnknownField = errors.New("particles: unknown field")
)

// Array is a destination: a named particle collection with device-resident
// field buffers. The real count excludes ghost/remote particles; kernels
// launch over real particles only. Counts and buffers may change between
// stages (inflow, outflow, reallocation), so callers must read them fresh.
type Array struct {
	name   string
	real   int
	total  int
	fields map[string]device.Buffer
}

func NewArray(name string, n int) *Array {
	return &Array{
		name:   name,
		real:   n,
		total:  n,
		fields: make(map[string]device.Buffer),
	}
}

func (a *Array) Name() string { return a.name }

// Count returns the live particle count. realOnly excludes ghosts.
func (a *Array) Count(realOnly bool) int {
	if realOnly {
		return a.real
	}
	return a.total
}

// SetCount updates the live counts, e.g. after inflow or outflow.
func (a *Array) SetCount(real, total int) {
	a.real = real
	a.total = total
}

func (a *Array) AddField(name string, buf device.Buffer) {
	a.fields[name] = buf
}

// Buffer returns the current device buffer for a field. The result must not
// be cached across stages: SwapBuffer may replace it.
func (a *Array) Buffer(field string) (device.Buffer, error) {
	buf, ok := a.fields[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, a.name, field)
	}
	return buf, nil
}

// SwapBuffer replaces a field's buffer, as the array manager does when a
// buffer is reallocated. The field must already exist.
func (a *Array) SwapBuffer(field string, buf device.Buffer) error {
	if _, ok := a.fields[field]; !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, a.name, field)
	}
	a.fields[field] = buf
	return nil
}

// Fields returns the field names in sorted order.
func (a *Array) Fields() []string {
	names := make([]string, 0, len(a.fields))
	for name := range a.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry maps destination names to arrays. It also serves as the
// translator's type registry, answering field types from buffer dtypes.
type Registry struct {
	arrays map[string]*Array
}

func NewRegistry() *Registry {
	return &Registry{arrays: make(map[string]*Array)}
}

func (r *Registry) Add(a *Array) error {
	if _, ok := r.arrays[a.Name()]; ok {
		return fmt.Errorf("particles: duplicate array: %s", a.Name())
	}
	r.arrays[a.Name()] = a
	return nil
}

func (r *Registry) Resolve(name string) (*Array, error) {
	a, ok := r.arrays[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownArray, name)
	}
	return a, nil
}

// Names returns the registered destination names in lexicographic order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.arrays))
	for name := range r.arrays {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldType reports the numeric type bound to a destination field.
func (r *Registry) FieldType(dest, field string) (device.DType, error) {
	a, err := r.Resolve(dest)
	if err != nil {
		return 0, err
	}
	buf, err := a.Buffer(field)
	if err != nil {
		return 0, err
	}
	return buf.DType(), nil
}
