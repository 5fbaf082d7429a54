/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classloader

import (
	"sync"
	"sync/atomic"

	"embervm/monitor"
	"embervm/object"
	"embervm/types"
)

// MethodKey identifies a method by (name, descriptor); overload
// resolution in the JVM is purely syntactic, keyed on the descriptor
// string, so no separate arity/type matching is needed here.
type MethodKey struct {
	Name string
	Desc string
}

// ClassType is the resolved, linked form of a class or interface (spec
// §3/§4.E): its constant pool, its field/method tables, its place in
// the superclass chain, and the mutable state associated with static
// initialization. Once constructed a ClassType is read-mostly; the
// fields that do mutate (StaticFields, ClinitState) are guarded
// independently.
type ClassType struct {
	Name        string
	AccessFlags uint16
	SuperName   string // "" only for java/lang/Object
	Interfaces  []string
	CP          *ConstantPool
	SourceFile  string

	Fields  []FieldInfo
	Methods []MethodInfo

	// StaticFields holds the class's own static storage, one Variable
	// per static FieldInfo, keyed by (name, descriptor) exactly as
	// instance fields are (spec §3 "Field/method identity").
	staticMu     sync.RWMutex
	StaticFields map[object.FieldKey]*object.Variable

	// Monitor backs the class-level lock used by `synchronized` static
	// methods and by clinit's own mutual exclusion (spec §4.E/§4.G).
	Monitor *monitor.Monitor

	clinitState int32 // types.ClInitState, accessed atomically
}

// NewClassType folds a ParsedClassFile into a linked ClassType. Static
// field storage is pre-populated with type-default values; instance
// field layout is left to Instance.InitField at allocation time.
func NewClassType(pc *ParsedClassFile) *ClassType {
	ct := &ClassType{
		Name:         pc.ThisClass,
		AccessFlags:  pc.AccessFlags,
		SuperName:    pc.SuperClass,
		Interfaces:   pc.Interfaces,
		CP:           pc.CP,
		SourceFile:   pc.SourceFile,
		Fields:       pc.Fields,
		Methods:      pc.Methods,
		StaticFields: make(map[object.FieldKey]*object.Variable),
		Monitor:      monitor.New(),
		clinitState:  int32(types.ClInitNotRun),
	}
	for _, f := range pc.Fields {
		if f.AccessFlags&AccStatic != 0 {
			key := object.FieldKey{Name: f.Name, Desc: f.Descriptor}
			ct.StaticFields[key] = object.NewDefaultVariable(types.KindFromFieldDescriptor(f.Descriptor))
		}
	}
	if ct.Name == types.ObjectClassName {
		ct.clinitState = int32(types.NoClinit)
	}
	return ct
}

// IsInterface, IsAbstract, IsPublic, IsFinal read class-level access
// flags.
func (ct *ClassType) IsInterface() bool { return ct.AccessFlags&AccInterface != 0 }
func (ct *ClassType) IsAbstract() bool  { return ct.AccessFlags&AccAbstract != 0 }
func (ct *ClassType) IsPublic() bool    { return ct.AccessFlags&AccPublic != 0 }
func (ct *ClassType) IsFinal() bool     { return ct.AccessFlags&AccFinal != 0 }

// ClinitState returns the class's current static-initialization state.
func (ct *ClassType) ClinitState() types.ClInitState {
	return types.ClInitState(atomic.LoadInt32(&ct.clinitState))
}

// SetClinitState transitions the class's static-initialization state.
// Callers (interp's clinit gate) are expected to serialize transitions
// themselves via ct.Monitor, per spec §4.E "clinit runs at most once,
// guarded by the class's own monitor".
func (ct *ClassType) SetClinitState(s types.ClInitState) {
	atomic.StoreInt32(&ct.clinitState, int32(s))
}

// GetStaticField returns a class's own static field, not walking the
// superclass chain (callers that need inherited statics resolve the
// declaring class first via registry lookups).
func (ct *ClassType) GetStaticField(name, desc string) (*object.Variable, bool) {
	ct.staticMu.RLock()
	defer ct.staticMu.RUnlock()
	v, ok := ct.StaticFields[object.FieldKey{Name: name, Desc: desc}]
	return v, ok
}

// SetStaticField stores v into this class's own static field slot.
func (ct *ClassType) SetStaticField(name, desc string, v *object.Variable) {
	ct.staticMu.Lock()
	defer ct.staticMu.Unlock()
	ct.StaticFields[object.FieldKey{Name: name, Desc: desc}] = v
}

// FindDeclaredMethod looks up a method declared directly on this class
// (no superclass/interface walk); ok is false if absent.
func (ct *ClassType) FindDeclaredMethod(name, desc string) (*MethodInfo, bool) {
	for i := range ct.Methods {
		if ct.Methods[i].Name == name && ct.Methods[i].Descriptor == desc {
			return &ct.Methods[i], true
		}
	}
	return nil, false
}

// FindDeclaredField looks up a field declared directly on this class.
func (ct *ClassType) FindDeclaredField(name, desc string) (*FieldInfo, bool) {
	for i := range ct.Fields {
		if ct.Fields[i].Name == name && ct.Fields[i].Descriptor == desc {
			return &ct.Fields[i], true
		}
	}
	return nil, false
}
