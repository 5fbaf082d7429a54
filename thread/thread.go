/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package thread implements the host-thread registry of spec §4.H: one
// record per host thread (goroutine) that is executing Java bytecode,
// holding its call stack and its pending-exception slot. Go has no
// pthread-style thread-local storage, so "the current thread" is
// carried explicitly: every interpreter entry point takes a *Handle
// parameter rather than reaching for ambient state, and the registry
// exists only so native code and diagnostics can look a thread up by
// its id when they were not handed the Handle directly.
package thread

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"embervm/frame"
	"embervm/object"
)

// CallStackEntry is one row of a thread's call stack, captured at call
// time for stack trace construction; it intentionally does not hold a
// *frame.Frame so that a trace snapshot outlives the frame itself.
type CallStackEntry struct {
	ClassName       string
	MethodName      string
	Descriptor      string
	SourceFile      string
	PC              uint16
	Line            uint16
	CallerSensitive bool
}

// Handle is the VM-level identity of one host thread, analogous to the
// Java-level java.lang.Thread object but living on the Go side. Id is
// minted from google/uuid rather than a goroutine id (Go does not
// expose the latter) so it remains stable across the thread's life
// regardless of which OS thread the Go scheduler parks it on.
type Handle struct {
	ID   uuid.UUID
	Name string

	mu        sync.Mutex
	stack     []*frame.Frame
	stackMeta []CallStackEntry

	// JavaThread is the java/lang/Thread instance representing this
	// host thread to Java code (set by interp's Prepare for the main
	// thread); nil before that point and on other handles.
	JavaThread *object.Instance

	// Pending is a slot for an in-flight exception object. The
	// interpreter propagates exceptions as ExecResult values and does
	// not write it, so it stays nil.
	Pending *object.Instance
}

// New mints a fresh Handle named name (java/lang/Thread's constructors
// supply this; the bootstrap main thread is named "main").
func New(name string) *Handle {
	return &Handle{ID: uuid.New(), Name: name}
}

// PushFrame appends f to the call stack and records its static
// metadata for trace snapshots.
func (h *Handle) PushFrame(f *frame.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stack = append(h.stack, f)
	h.stackMeta = append(h.stackMeta, CallStackEntry{
		ClassName:       f.Class.Name,
		MethodName:      f.Method.Name,
		Descriptor:      f.Method.Descriptor,
		SourceFile:      f.Class.SourceFile,
		CallerSensitive: f.CallerSensitive,
	})
}

// PopFrame removes and returns the top frame. Popping an empty stack
// is an interpreter bug, so it panics.
func (h *Handle) PopFrame() *frame.Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.stack)
	if n == 0 {
		panic("embervm: call stack underflow on thread " + h.Name)
	}
	f := h.stack[n-1]
	h.stack = h.stack[:n-1]
	h.stackMeta = h.stackMeta[:n-1]
	return f
}

// CurrentFrame returns the top frame, or nil if the stack is empty.
func (h *Handle) CurrentFrame() *frame.Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.stack) == 0 {
		return nil
	}
	return h.stack[len(h.stack)-1]
}

// Depth returns the current call stack depth.
func (h *Handle) Depth() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.stack)
}

// StackTrace returns a snapshot of the call stack, innermost frame
// first, pairing each entry with the line number active at the time of
// the snapshot (spec §4.J/§8 "Throwable fillInStackTrace").
func (h *Handle) StackTrace() []CallStackEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]CallStackEntry, len(h.stackMeta))
	for i, e := range h.stackMeta {
		if i < len(h.stack) {
			e.PC = h.stack[i].PC
			e.Line = h.stack[i].CurrentLine()
		}
		out[len(out)-1-i] = e
	}
	return out
}

// CallScope pushes f onto h's call stack and returns a function that
// pops it; callers use `defer scope()` so the pop runs on every exit
// path of the calling method (normal return, a propagating exception,
// or a Go panic translated into a VM-internal error), matching the
// reference implementation's ExecutionScopeGuard.
func (h *Handle) CallScope(f *frame.Frame) func() {
	h.PushFrame(f)
	return func() { h.PopFrame() }
}

// Registry maps host-thread ids to their Handles, so native code that
// is only given a raw id (e.g. Unsafe or reflection intrinsics) can
// recover the full Handle (spec §4.H "thread registry").
type Registry struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*Handle
}

// NewRegistry returns an empty thread registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[uuid.UUID]*Handle)}
}

// Register adds h to the registry.
func (r *Registry) Register(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[h.ID] = h
}

// Unregister removes h from the registry.
func (r *Registry) Unregister(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, h.ID)
}

// Lookup finds a registered Handle by id.
func (r *Registry) Lookup(id uuid.UUID) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byID[id]
	return h, ok
}

// All returns every currently registered Handle, for diagnostics.
func (r *Registry) All() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Handle, 0, len(r.byID))
	for _, h := range r.byID {
		out = append(out, h)
	}
	return out
}

func (h *Handle) String() string {
	return fmt.Sprintf("Thread[%s,id=%s]", h.Name, h.ID)
}

// MonitorID returns the uint64 owner id this thread presents to
// monitor.Monitor.Enter/Leave/Wait. monitor.Monitor only needs an
// opaque comparable, non-zero id per thread, so the low 64 bits of the
// UUID serve directly without tracking a separate counter.
func (h *Handle) MonitorID() uint64 {
	var id uint64
	for i := 8; i < 16; i++ {
		id = id<<8 | uint64(h.ID[i])
	}
	return id
}
