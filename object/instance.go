/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package object

import (
	"sync"

	"embervm/monitor"
	"embervm/types"
)

// FieldKey identifies an instance field by (name, descriptor), per spec
// §3 "Field/method identity" -- overloading of fields does not exist in
// the JVM but storage is still keyed by the pair for symmetry with
// methods and to disambiguate hidden fields across a hierarchy.
type FieldKey struct {
	Name string
	Desc string
}

// Instance is a class instance (spec §3 "Class instance"). It does NOT
// hold a pointer to its class type: per spec §9 "Shared ownership with
// cycles", the class-source registry owns ClassType values and hands
// them out by name. An Instance only remembers the name and looks its
// type up through the registry whenever it needs method/field metadata.
type Instance struct {
	className string
	Monitor   *monitor.Monitor

	mu     sync.RWMutex
	Fields map[FieldKey]*Variable

	// refCount implements spec §3's reference-counting lifecycle via
	// Retain/Release. No package in embervm calls those, so the count
	// is advisory bookkeeping rather than an enforced GC, matching the
	// Non-goals.
	refCount int32

	// internalString is a side-channel payload slot, not part of the
	// Java-visible field table: it backs the Go-side content of
	// java/lang/String instances (their UTF-16 text, kept as a Go
	// string rather than modeled field-by-field as a char[]) and the
	// slash-form name java/lang/Class instances describe. Natives read
	// and write it directly; ordinary interpreted bytecode never sees
	// it.
	internalString string
}

// SetInternalString stores the side-channel payload (see field doc).
func (o *Instance) SetInternalString(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.internalString = s
}

// InternalString reads the side-channel payload (see field doc).
func (o *Instance) InternalString() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.internalString
}

// NewInstance allocates an instance of className with no fields set;
// callers (usually the interpreter's NEW handling) populate Fields from
// the resolved class type's field list via InitField.
func NewInstance(className string) *Instance {
	return &Instance{
		className: className,
		Monitor:   monitor.New(),
		Fields:    make(map[FieldKey]*Variable),
	}
}

// ClassName returns the slash-form name of this instance's class.
func (o *Instance) ClassName() string { return o.className }

// InitField sets field (name, desc) to its type-default value, as
// required when an instance is allocated (spec §3 "Fields are
// initialized to type-default values when the instance is allocated").
func (o *Instance) InitField(name, desc string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Fields[FieldKey{name, desc}] = NewDefaultVariable(types.KindFromFieldDescriptor(desc))
}

// GetField returns the field's current value and whether it exists.
func (o *Instance) GetField(name, desc string) (*Variable, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.Fields[FieldKey{name, desc}]
	return v, ok
}

// SetField stores v into field (name, desc), creating the slot if it
// does not already exist (used by reflective/native field writers).
func (o *Instance) SetField(name, desc string, v *Variable) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Fields[FieldKey{name, desc}] = v
}

// Retain/Release implement the reference-counting lifecycle of spec
// §3. Release returns true once the count reaches zero, signaling the
// caller that the instance (and anything it alone retained) may be
// dropped. embervm does not run a GC, and no code in it calls Retain
// or Release.
func (o *Instance) Retain() { o.mu.Lock(); o.refCount++; o.mu.Unlock() }

func (o *Instance) Release() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refCount--
	return o.refCount <= 0
}
