/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classloader

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"embervm/excnames"
	"embervm/globals"
	"embervm/log"
)

// Source is one place the registry can load raw class bytes from: a
// directory of .class files, a jar/zip archive, or an in-memory map
// (spec §4.D "class source"). Sources are tried in the
// order they were added to the registry; the first one to report a
// hit wins, matching the JVM's classpath-ordering semantics.
type Source interface {
	// Name identifies the source for diagnostics (a directory path, a
	// jar file name, ...).
	Name() string
	// Lookup returns the raw bytes of className (slash form, no
	// ".class" suffix) if this source has it.
	Lookup(className string) (data []byte, found bool, err error)
}

// Registry is the class source registry of spec §4.D: an ordered list
// of Sources plus a cache of already-resolved ClassTypes. Resolution
// is name -> cached ClassType -> (first-hit Source -> parse -> cache).
type Registry struct {
	mu      sync.RWMutex
	sources []Source

	cacheMu sync.Mutex
	cache   *lru.Cache[string, *ClassType]

	resolved map[string]*ClassType // classes resolved past the LRU's eviction horizon stay reachable by name
}

// NewRegistry creates a registry whose resolution cache holds up to
// cacheSize recently-used ClassTypes. The cache is one LRU shared by
// every Source, not one per Source, and a ClassType evicted from it
// stays reachable through the unbounded resolved map, so cacheSize
// does not bound how many ClassTypes the registry keeps.
func NewRegistry(cacheSize int) *Registry {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	c, _ := lru.New[string, *ClassType](cacheSize)
	return &Registry{
		cache:    c,
		resolved: make(map[string]*ClassType),
	}
}

// AddSource appends a Source to the end of the resolution order.
func (reg *Registry) AddSource(s Source) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.sources = append(reg.sources, s)
}

// Resolve returns the ClassType named by className (slash form),
// loading and linking it from the first Source that has it if it is
// not already cached. Throws ClassNotFoundException (via
// globals.FuncThrowException) and returns an error when no source has
// the class; when the bytes fail to parse it returns the wrapped parse
// error without that notification.
func (reg *Registry) Resolve(className string) (*ClassType, error) {
	if ct, ok := reg.lookupCached(className); ok {
		return ct, nil
	}

	reg.mu.RLock()
	sources := reg.sources
	reg.mu.RUnlock()

	for _, src := range sources {
		data, found, err := src.Lookup(className)
		if err != nil {
			log.Log(fmt.Sprintf("registry: source %s errored on %s: %v", src.Name(), className, err), log.WARNING)
			continue
		}
		if !found {
			continue
		}
		pc, err := ParseClassFile(data)
		if err != nil {
			return nil, fmt.Errorf("embervm: parsing %s from %s: %w", className, src.Name(), err)
		}
		ct := NewClassType(pc)
		reg.store(className, ct)
		log.Log(fmt.Sprintf("registry: resolved %s from %s", className, src.Name()), log.FINE)
		return ct, nil
	}

	globals.GetGlobalRef().FuncThrowException(excnames.ClassNotFoundException, className)
	return nil, fmt.Errorf("embervm: class not found: %s", className)
}

func (reg *Registry) lookupCached(className string) (*ClassType, bool) {
	reg.cacheMu.Lock()
	defer reg.cacheMu.Unlock()
	if ct, ok := reg.cache.Get(className); ok {
		return ct, true
	}
	if ct, ok := reg.resolved[className]; ok {
		reg.cache.Add(className, ct)
		return ct, true
	}
	return nil, false
}

// Register inserts an already-built ClassType directly into the
// resolution cache, bypassing Sources entirely. Production code never
// needs this (every class is reachable through a Source); it exists
// for synthesizing fixtures programmatically, the same role a
// ClassLoader.defineClass-style entry point fills in a real JVM.
func (reg *Registry) Register(ct *ClassType) {
	reg.store(ct.Name, ct)
}

func (reg *Registry) store(className string, ct *ClassType) {
	reg.cacheMu.Lock()
	defer reg.cacheMu.Unlock()
	reg.resolved[className] = ct
	reg.cache.Add(className, ct)
}

// ClassTypes returns every ClassType resolved so far, for diagnostics.
func (reg *Registry) ClassTypes() []*ClassType {
	reg.cacheMu.Lock()
	defer reg.cacheMu.Unlock()
	out := make([]*ClassType, 0, len(reg.resolved))
	for _, ct := range reg.resolved {
		out = append(out, ct)
	}
	return out
}

// Reset drops every cached/resolved class and every registered source,
// returning the registry to its zero state (spec §9: "no execution may
// resume without re-preparing after a reset").
func (reg *Registry) Reset() {
	reg.mu.Lock()
	reg.sources = nil
	reg.mu.Unlock()

	reg.cacheMu.Lock()
	reg.cache.Purge()
	reg.resolved = make(map[string]*ClassType)
	reg.cacheMu.Unlock()
}

// Super returns ct's resolved superclass, or (nil, true) for
// java/lang/Object, which has none.
func (reg *Registry) Super(ct *ClassType) (*ClassType, bool, error) {
	if ct.SuperName == "" {
		return nil, true, nil
	}
	super, err := reg.Resolve(ct.SuperName)
	if err != nil {
		return nil, false, err
	}
	return super, false, nil
}

// FindMethod resolves (name, desc) starting at ct and walking up the
// superclass chain, per spec §4.E/§4.K's instance/static method
// resolution order; interfaces (including their default methods) are
// tried last, reachable from any class or interface on the chain.
func (reg *Registry) FindMethod(ct *ClassType, name, desc string) (*ClassType, *MethodInfo, error) {
	for cur := ct; cur != nil; {
		if mi, ok := cur.FindDeclaredMethod(name, desc); ok {
			return cur, mi, nil
		}
		next, isObject, err := reg.Super(cur)
		if err != nil {
			return nil, nil, err
		}
		if isObject {
			break
		}
		cur = next
	}

	owner, mi, err := reg.findInterfaceMethod(ct, name, desc, make(map[string]bool))
	if err != nil {
		return nil, nil, err
	}
	if mi != nil {
		return owner, mi, nil
	}
	return nil, nil, fmt.Errorf("embervm: %w: %s.%s%s", errNoSuchMethod, ct.Name, name, desc)
}

func (reg *Registry) findInterfaceMethod(ct *ClassType, name, desc string, seen map[string]bool) (*ClassType, *MethodInfo, error) {
	for cur := ct; cur != nil; {
		for _, ifaceName := range cur.Interfaces {
			if seen[ifaceName] {
				continue
			}
			seen[ifaceName] = true
			iface, err := reg.Resolve(ifaceName)
			if err != nil {
				return nil, nil, err
			}
			if mi, ok := iface.FindDeclaredMethod(name, desc); ok {
				return iface, mi, nil
			}
			if owner, mi, err := reg.findInterfaceMethod(iface, name, desc, seen); err != nil {
				return nil, nil, err
			} else if mi != nil {
				return owner, mi, nil
			}
		}
		next, isObject, err := reg.Super(cur)
		if err != nil {
			return nil, nil, err
		}
		if isObject {
			break
		}
		cur = next
	}
	return nil, nil, nil
}

// FindField resolves (name, desc) starting at ct, walking the
// superclass chain and then implemented interfaces (for inherited
// interface constants), per spec §4.E field resolution order.
func (reg *Registry) FindField(ct *ClassType, name, desc string) (*ClassType, *FieldInfo, error) {
	for cur := ct; cur != nil; {
		if fi, ok := cur.FindDeclaredField(name, desc); ok {
			return cur, fi, nil
		}
		for _, ifaceName := range cur.Interfaces {
			iface, err := reg.Resolve(ifaceName)
			if err != nil {
				return nil, nil, err
			}
			if fi, ok := iface.FindDeclaredField(name, desc); ok {
				return iface, fi, nil
			}
		}
		next, isObject, err := reg.Super(cur)
		if err != nil {
			return nil, nil, err
		}
		if isObject {
			break
		}
		cur = next
	}
	return nil, nil, fmt.Errorf("embervm: %w: %s.%s", errNoSuchField, ct.Name, name)
}

// CanCastTo reports whether an instance of class from may be assigned
// to a variable of class/interface to (spec §4.E "is-a" checks backing
// CHECKCAST/INSTANCEOF): from == to, to is a superclass of from, or to
// is an interface implemented (directly or transitively) by from or
// any of its superclasses.
func (reg *Registry) CanCastTo(from, to *ClassType) bool {
	if from.Name == to.Name {
		return true
	}
	for cur := from; cur != nil; {
		for _, ifaceName := range cur.Interfaces {
			if ifaceName == to.Name {
				return true
			}
			iface, err := reg.Resolve(ifaceName)
			if err == nil && reg.interfaceExtends(iface, to.Name) {
				return true
			}
		}
		next, isObject, err := reg.Super(cur)
		if err != nil || isObject {
			break
		}
		if next.Name == to.Name {
			return true
		}
		cur = next
	}
	return false
}

func (reg *Registry) interfaceExtends(iface *ClassType, targetName string) bool {
	for _, superIface := range iface.Interfaces {
		if superIface == targetName {
			return true
		}
		if resolved, err := reg.Resolve(superIface); err == nil {
			if reg.interfaceExtends(resolved, targetName) {
				return true
			}
		}
	}
	return false
}

// GetMethodLineNumberTable returns the LineNumberTable of mi's Code
// attribute, or nil if mi has no code (abstract/native) or was
// compiled without debug line info.
func (reg *Registry) GetMethodLineNumberTable(mi *MethodInfo) []LineNumberEntry {
	if mi.Code == nil {
		return nil
	}
	return mi.Code.LineNumberTable
}
