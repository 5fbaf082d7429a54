/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"embervm/classloader"
	"embervm/object"
)

func testMethod(maxStack, maxLocals uint16, lines []classloader.LineNumberEntry) *classloader.MethodInfo {
	return &classloader.MethodInfo{
		Name:       "run",
		Descriptor: "()V",
		Code: &classloader.CodeAttr{
			MaxStack:        maxStack,
			MaxLocals:       maxLocals,
			Code:            []byte{0x00},
			LineNumberTable: lines,
		},
	}
}

// A long/double argument still occupies only one element of args (spec
// §4.F "the interpreter's operand stack holds one Variable per value
// regardless of category"), but New must reserve the long-standing
// JVM-spec two local-variable slots for it, leaving the second nil.
func TestNewDoublesCategory2LocalSlots(t *testing.T) {
	ct := &classloader.ClassType{Name: "Test"}
	mi := testMethod(4, 8, nil)
	args := []*object.Variable{
		object.NewLong(42),
		object.NewInt(7),
	}
	f := New(ct, mi, nil, args)

	require.Len(t, f.Locals, 8)
	assert.Equal(t, int64(42), f.Locals[0].Int64())
	assert.Nil(t, f.Locals[1], "second slot of a long local must stay nil")
	assert.Equal(t, int32(7), f.Locals[2].Int32())
}

func TestNewPlacesThisBeforeArgs(t *testing.T) {
	ct := &classloader.ClassType{Name: "Test"}
	mi := testMethod(4, 3, nil)
	this := object.NewRef(object.NewInstance("Test"))
	f := New(ct, mi, this, []*object.Variable{object.NewInt(1)})

	assert.Same(t, this, f.Locals[0])
	assert.Equal(t, int32(1), f.Locals[1].Int32())
}

func TestPushPopIsLIFO(t *testing.T) {
	ct := &classloader.ClassType{Name: "Test"}
	mi := testMethod(4, 0, nil)
	f := New(ct, mi, nil, nil)

	f.Push(object.NewInt(1))
	f.Push(object.NewInt(2))
	f.Push(object.NewInt(3))

	assert.Equal(t, int32(3), f.Pop().Int32())
	assert.Equal(t, int32(2), f.Pop().Int32())
	assert.Equal(t, int32(1), f.Pop().Int32())
}

func TestPopOnEmptyStackPanics(t *testing.T) {
	ct := &classloader.ClassType{Name: "Test"}
	mi := testMethod(4, 0, nil)
	f := New(ct, mi, nil, nil)

	assert.Panics(t, func() { f.Pop() })
}

func TestCurrentLineResolvesLineNumberTable(t *testing.T) {
	ct := &classloader.ClassType{Name: "Test"}
	mi := testMethod(4, 0, []classloader.LineNumberEntry{
		{StartPC: 0, LineNumber: 10},
		{StartPC: 5, LineNumber: 12},
		{StartPC: 9, LineNumber: 15},
	})
	f := New(ct, mi, nil, nil)

	f.PC = 0
	assert.Equal(t, uint16(10), f.CurrentLine())
	f.PC = 7
	assert.Equal(t, uint16(12), f.CurrentLine())
	f.PC = 20
	assert.Equal(t, uint16(15), f.CurrentLine())
}

func TestCurrentLineWithoutTableIsZero(t *testing.T) {
	ct := &classloader.ClassType{Name: "Test"}
	mi := testMethod(4, 0, nil)
	f := New(ct, mi, nil, nil)
	assert.Equal(t, uint16(0), f.CurrentLine())
}
