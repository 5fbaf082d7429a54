/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package object

import (
	"sync"

	"embervm/types"
)

// Array is spec §3/§4's array representation. Element slots default
// lazily on first read rather than being eagerly filled, matching "each
// slot lazily defaults to the element's zero/null on first read" --
// this matters for very large primitive arrays, where eagerly boxing
// every *Variable up front would be wasteful.
type Array struct {
	ElementKind  types.Kind
	ElementClass string // class name when ElementKind == types.Ref, else ""
	Dimensions   uint32
	Length       uint32

	mu      sync.RWMutex
	storage []*Variable // nil entries are lazily materialized on GetAt

	// Marker is the "internal object-as-marker instance" described in
	// spec §3/§4.F: it exists solely to host the array's monitor and to
	// let Object-polymorphic calls (hashCode, wait, notify...) dispatch
	// against something with fields/monitor semantics. It never
	// back-references the array (spec §9).
	Marker *Instance
}

// NewPrimitiveArray allocates an array of a primitive/kind element type.
func NewPrimitiveArray(kind types.Kind, length uint32) *Array {
	return &Array{
		ElementKind: kind,
		Dimensions:  1,
		Length:      length,
		storage:     make([]*Variable, length),
		Marker:      newMarker(),
	}
}

// NewRefArray allocates an array of class-instance element type.
func NewRefArray(elementClass string, length uint32, dimensions uint32) *Array {
	if dimensions == 0 {
		dimensions = 1
	}
	return &Array{
		ElementKind:  types.Ref,
		ElementClass: elementClass,
		Dimensions:   dimensions,
		Length:       length,
		storage:      make([]*Variable, length),
		Marker:       newMarker(),
	}
}

func newMarker() *Instance {
	return NewInstance(types.ObjectClassName)
}

// GetAt returns the element at idx, materializing its zero value on
// first access. ok is false for an out-of-range idx; callers (the
// interpreter's *ALOAD handling) translate that into
// ArrayIndexOutOfBoundsException.
func (a *Array) GetAt(idx int32) (*Variable, bool) {
	if idx < 0 || uint32(idx) >= a.Length {
		return nil, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.storage[idx] == nil {
		if a.ElementKind == types.Ref {
			a.storage[idx] = NewNull()
		} else {
			a.storage[idx] = NewDefaultVariable(a.ElementKind)
		}
	}
	return a.storage[idx], true
}

// SetAt stores v at idx. ok is false for an out-of-range idx.
func (a *Array) SetAt(idx int32, v *Variable) bool {
	if idx < 0 || uint32(idx) >= a.Length {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.storage[idx] = v
	return true
}

// IsClassInstanceArray reports whether elements are object references.
func (a *Array) IsClassInstanceArray() bool { return a.ElementKind == types.Ref }

// IsMultiArray reports whether this array has more than one dimension.
func (a *Array) IsMultiArray() bool { return a.Dimensions > 1 }
