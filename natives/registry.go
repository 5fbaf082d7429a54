/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package natives implements the native-method registry and intrinsics
// of spec §4.I/§4.L: a pair of keyed maps ((class, name, descriptor) ->
// native function) that the interpreter consults before building a
// bytecode frame for any method carrying the `native` access flag.
package natives

import (
	"fmt"
	"sync"

	"embervm/classloader"
	"embervm/object"
	"embervm/stringpool"
	"embervm/thread"
)

// Key identifies a native method the same way a bytecode method
// reference does: by its declaring class, name, and descriptor.
type Key struct {
	Class string
	Name  string
	Desc  string
}

func (k Key) String() string { return k.Class + "." + k.Name + k.Desc }

// Env is everything a native function needs beyond its own arguments:
// a handle back into the VM's shared state and, for the handful of
// intrinsics that must re-enter interpreted code (AccessController's
// doPrivileged is the paradigm case), a callback to invoke an
// arbitrary method. Invoke is supplied by the interp package at VM
// construction time; natives never imports interp, avoiding the
// import cycle that would otherwise exist.
type Env struct {
	Registry *classloader.Registry
	Threads  *thread.Registry
	Strings  *stringpool.StringTable
	Current  *thread.Handle

	// Invoke runs the named method and returns its result (or the
	// exception it threw). className/methodName/desc identify the
	// target exactly as a MethodRef would; this may be nil for a
	// static call.
	Invoke func(className, methodName, desc string, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error)
}

// Func is a native method implementation. this is nil for static
// natives. A non-nil *object.Instance return in the second position is
// a Java exception to be thrown; err is reserved for host-side faults
// (malformed registry state) that should surface as InternalError.
type Func func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error)

// Registry is the native-method table of spec §4.I: static and
// instance natives are tracked in separate maps because the same
// (class, name, descriptor) key could in principle appear in both
// (the JVM spec forbids this in practice, but keeping them separate
// mirrors the reference implementation's own two-map design and keeps
// lookup unambiguous regardless).
type Registry struct {
	mu       sync.RWMutex
	static   map[Key]Func
	instance map[Key]Func
}

// NewRegistry returns an empty native registry.
func NewRegistry() *Registry {
	return &Registry{
		static:   make(map[Key]Func),
		instance: make(map[Key]Func),
	}
}

// RegisterStatic installs fn as the implementation of a static native.
func (r *Registry) RegisterStatic(class, name, desc string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.static[Key{class, name, desc}] = fn
}

// RegisterInstance installs fn as the implementation of an instance
// native.
func (r *Registry) RegisterInstance(class, name, desc string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instance[Key{class, name, desc}] = fn
}

// Lookup finds the native for (class, name, desc). The lookup site
// already knows from the access flags whether it is dispatching a
// static or instance call; isStatic selects which map is searched, and
// the other map is not consulted.
func (r *Registry) Lookup(class, name, desc string, isStatic bool) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key := Key{class, name, desc}
	if isStatic {
		fn, ok := r.static[key]
		return fn, ok
	}
	fn, ok := r.instance[key]
	return fn, ok
}

// MustRegisterDefaults installs the intrinsics named in spec §4.L.
// It never panics: registering the same (class, name, descriptor)
// twice replaces the earlier function. It runs once at startup before
// any class is loaded.
func MustRegisterDefaults(r *Registry) {
	registerObjectIntrinsics(r)
	registerClassIntrinsics(r)
	registerSystemIntrinsics(r)
	registerThreadIntrinsics(r)
	registerThrowableIntrinsics(r)
	registerNumericIntrinsics(r)
	registerMiscIntrinsics(r)
}

func unsatisfiedLink(env *Env, key Key) (*object.Variable, *object.Instance, error) {
	return nil, nil, fmt.Errorf("embervm: unsatisfied link: %s", key)
}
