/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerClass(reg *Registry, name, super string, interfaces []string, methods []MethodInfo) *ClassType {
	pc := &ParsedClassFile{
		ThisClass:  name,
		SuperClass: super,
		Interfaces: interfaces,
		CP:         NewConstantPoolBuilder().Build(),
		Methods:    methods,
	}
	ct := NewClassType(pc)
	reg.Register(ct)
	return ct
}

// Resolving an already-registered class never re-parses or rebuilds
// it: two Resolve calls on the same name return the identical
// ClassType pointer.
func TestResolveIsIdempotent(t *testing.T) {
	reg := NewRegistry(8)
	want := registerClass(reg, "Foo", "", nil, nil)

	got1, err := reg.Resolve("Foo")
	require.NoError(t, err)
	got2, err := reg.Resolve("Foo")
	require.NoError(t, err)

	assert.Same(t, want, got1)
	assert.Same(t, got1, got2)
}

// FindMethod walks up the superclass chain when a method is not
// declared directly on the starting class.
func TestFindMethodWalksSuperclassChain(t *testing.T) {
	reg := NewRegistry(8)
	registerClass(reg, "java/lang/Object", "", nil, nil)
	registerClass(reg, "Base", "java/lang/Object", nil, []MethodInfo{
		{Name: "greet", Descriptor: "()V"},
	})
	child := registerClass(reg, "Child", "Base", nil, nil)

	owner, mi, err := reg.FindMethod(child, "greet", "()V")
	require.NoError(t, err)
	assert.Equal(t, "Base", owner.Name)
	assert.Equal(t, "greet", mi.Name)
}

func TestFindMethodMissingReturnsError(t *testing.T) {
	reg := NewRegistry(8)
	registerClass(reg, "java/lang/Object", "", nil, nil)
	ct := registerClass(reg, "Base", "java/lang/Object", nil, nil)

	_, _, err := reg.FindMethod(ct, "missing", "()V")
	assert.Error(t, err)
}

// CanCastTo recognizes identity, superclass relationships, and
// (transitive) interface implementation.
func TestCanCastToSuperclassAndInterfaces(t *testing.T) {
	reg := NewRegistry(8)
	registerClass(reg, "java/lang/Object", "", nil, nil)
	registerClass(reg, "Runnable", "", nil, nil)
	registerClass(reg, "Base", "java/lang/Object", nil, nil)
	child := registerClass(reg, "Child", "Base", []string{"Runnable"}, nil)
	base, err := reg.Resolve("Base")
	require.NoError(t, err)
	runnable, err := reg.Resolve("Runnable")
	require.NoError(t, err)
	unrelated := registerClass(reg, "Unrelated", "java/lang/Object", nil, nil)

	assert.True(t, reg.CanCastTo(child, child))
	assert.True(t, reg.CanCastTo(child, base))
	assert.True(t, reg.CanCastTo(child, runnable))
	assert.False(t, reg.CanCastTo(child, unrelated))
}

func TestLineForPCResolvesActiveLine(t *testing.T) {
	code := &CodeAttr{
		LineNumberTable: []LineNumberEntry{
			{StartPC: 0, LineNumber: 5},
			{StartPC: 10, LineNumber: 6},
			{StartPC: 20, LineNumber: 9},
		},
	}

	assert.Equal(t, uint16(5), code.LineForPC(0))
	assert.Equal(t, uint16(5), code.LineForPC(9))
	assert.Equal(t, uint16(6), code.LineForPC(10))
	assert.Equal(t, uint16(9), code.LineForPC(100))
}

func TestLineForPCWithoutTableIsZero(t *testing.T) {
	code := &CodeAttr{}
	assert.Equal(t, uint16(0), code.LineForPC(0))
}
