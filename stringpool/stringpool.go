/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package stringpool implements spec §3/§8's two pooling concerns:
// plain Go-string interning for repeated class/member names read out
// of many constant pools, and the Java-level java.lang.String intern
// table where `intern(s1) == intern(s2)` iff the two strings are
// content-equal (spec §8 "Intern table").
package stringpool

import (
	"sync"

	"embervm/object"
)

// Pool deduplicates plain Go strings (class names, descriptors) so
// that repeatedly-seen names across many parsed class files share one
// backing string rather than each constant pool holding its own copy.
type Pool struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewPool returns an empty string pool.
func NewPool() *Pool {
	return &Pool{values: make(map[string]string)}
}

// Intern returns the pool's canonical copy of s, adding s if this is
// the first time it has been seen.
func (p *Pool) Intern(s string) string {
	p.mu.RLock()
	if v, ok := p.values[s]; ok {
		p.mu.RUnlock()
		return v
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.values[s]; ok {
		return v
	}
	p.values[s] = s
	return s
}

// Len reports how many distinct strings are currently pooled.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.values)
}

// StringTable is the Java-level intern table backing
// java.lang.String.intern(): it maps a string's content to the single
// canonical *object.Instance representing it, so two interned
// references with equal content are the same object (`==` succeeds in
// Java code), per spec §8.
type StringTable struct {
	mu    sync.Mutex
	table map[string]*object.Instance
}

// NewStringTable returns an empty intern table.
func NewStringTable() *StringTable {
	return &StringTable{table: make(map[string]*object.Instance)}
}

// Intern returns the canonical String instance for content. If no
// instance has been interned for this content yet, construct is invoked
// to build one (interp's newJavaString supplies it, typically) and the result
// becomes canonical for all future calls with the same content.
func (t *StringTable) Intern(content string, construct func() *object.Instance) *object.Instance {
	t.mu.Lock()
	defer t.mu.Unlock()
	if inst, ok := t.table[content]; ok {
		return inst
	}
	inst := construct()
	t.table[content] = inst
	return inst
}

// Len reports how many distinct strings are currently interned.
func (t *StringTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.table)
}
