/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package interp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"embervm/classloader"
	"embervm/excnames"
	"embervm/frame"
	"embervm/object"
)

func newTestVM() *VM {
	return NewVM(classloader.NewRegistry(8))
}

func newTestFrame(maxStack uint16) *frame.Frame {
	ct := &classloader.ClassType{Name: "Test"}
	mi := &classloader.MethodInfo{
		Name:       "run",
		Descriptor: "()V",
		Code:       &classloader.CodeAttr{MaxStack: maxStack, MaxLocals: 4, Code: []byte{0}},
	}
	return frame.New(ct, mi, nil, nil)
}

// Integer.MIN_VALUE / -1 returns Integer.MIN_VALUE (Go's own two's
// complement division overflow semantics already match the JVM here;
// this pins that behavior against regression).
func TestIdivMinValueByNegativeOne(t *testing.T) {
	vm := newTestVM()
	f := newTestFrame(4)
	f.Push(object.NewInt(math.MinInt32))
	f.Push(object.NewInt(-1))

	res, done := vm.step(nil, f, nil, opIdiv)
	require.False(t, done)
	assert.False(t, res.IsThrown())
	assert.Equal(t, int32(math.MinInt32), f.Pop().Int32())
}

func TestLdivMinValueByNegativeOne(t *testing.T) {
	vm := newTestVM()
	f := newTestFrame(4)
	f.Push(object.NewLong(math.MinInt64))
	f.Push(object.NewLong(-1))

	res, done := vm.step(nil, f, nil, opLdiv)
	require.False(t, done)
	assert.False(t, res.IsThrown())
	assert.Equal(t, int64(math.MinInt64), f.Pop().Int64())
}

// int shifts mask the shift amount to 5 bits; long shifts mask to 6.
func TestShiftAmountMasking(t *testing.T) {
	vm := newTestVM()

	f := newTestFrame(4)
	f.Push(object.NewInt(1))
	f.Push(object.NewInt(32)) // masks to 0
	_, done := vm.step(nil, f, nil, opIshl)
	require.False(t, done)
	assert.Equal(t, int32(1), f.Pop().Int32())

	f2 := newTestFrame(4)
	f2.Push(object.NewLong(1))
	f2.Push(object.NewInt(64)) // masks to 0
	_, done = vm.step(nil, f2, nil, opLshl)
	require.False(t, done)
	assert.Equal(t, int64(1), f2.Pop().Int64())

	f3 := newTestFrame(4)
	f3.Push(object.NewLong(1))
	f3.Push(object.NewInt(65)) // masks to 1
	_, done = vm.step(nil, f3, nil, opLshl)
	require.False(t, done)
	assert.Equal(t, int64(2), f3.Pop().Int64())
}

// FREM/DREM implement IEEE remainder (math.Mod), not truncated integer
// modulo: 5.5 frem 2.0 must be 1.5, not 1.0.
func TestFremDremUseIEEERemainder(t *testing.T) {
	vm := newTestVM()

	f := newTestFrame(4)
	f.Push(object.NewFloat(5.5))
	f.Push(object.NewFloat(2.0))
	_, done := vm.step(nil, f, nil, opFrem)
	require.False(t, done)
	assert.InDelta(t, 1.5, float64(f.Pop().Float32()), 1e-6)

	f2 := newTestFrame(4)
	f2.Push(object.NewDouble(5.5))
	f2.Push(object.NewDouble(2.0))
	_, done = vm.step(nil, f2, nil, opDrem)
	require.False(t, done)
	assert.InDelta(t, 1.5, f2.Pop().Float64(), 1e-9)
}

// POP2 removes one operand-stack entry for a single category-2 value
// (a long/double, boxed as one Variable here) and two entries for a
// pair of category-1 values.
func TestPop2CategoryAwareWidth(t *testing.T) {
	vm := newTestVM()

	f := newTestFrame(4)
	f.Push(object.NewInt(1)) // should remain after popping the long on top
	f.Push(object.NewLong(99))
	_, done := vm.step(nil, f, nil, opPop2)
	require.False(t, done)
	require.Equal(t, 1, f.StackDepth())
	assert.Equal(t, int32(1), f.Pop().Int32())

	f2 := newTestFrame(4)
	f2.Push(object.NewInt(7)) // should be removed along with the top int
	f2.Push(object.NewInt(8))
	_, done = vm.step(nil, f2, nil, opPop2)
	require.False(t, done)
	assert.Equal(t, 0, f2.StackDepth())
}

// DUP2 form 2 duplicates a single category-2 value; form 1 duplicates
// the top two category-1 values as a pair.
func TestDup2CategoryAwareForms(t *testing.T) {
	vm := newTestVM()

	f := newTestFrame(4)
	f.Push(object.NewLong(5))
	_, done := vm.step(nil, f, nil, opDup2)
	require.False(t, done)
	require.Equal(t, 2, f.StackDepth())
	assert.Equal(t, int64(5), f.Pop().Int64())
	assert.Equal(t, int64(5), f.Pop().Int64())

	f2 := newTestFrame(4)
	f2.Push(object.NewInt(1))
	f2.Push(object.NewInt(2))
	_, done = vm.step(nil, f2, nil, opDup2)
	require.False(t, done)
	require.Equal(t, 4, f2.StackDepth())
	assert.Equal(t, int32(2), f2.Pop().Int32())
	assert.Equal(t, int32(1), f2.Pop().Int32())
	assert.Equal(t, int32(2), f2.Pop().Int32())
	assert.Equal(t, int32(1), f2.Pop().Int32())
}

func TestDup2X1CategoryAwareForms(t *testing.T) {
	vm := newTestVM()

	// form 2: category-2 v1 over category-1 v2 -> v1, v2, v1
	f := newTestFrame(4)
	f.Push(object.NewInt(2))
	f.Push(object.NewLong(1))
	_, done := vm.step(nil, f, nil, opDup2X1)
	require.False(t, done)
	require.Equal(t, 3, f.StackDepth())
	assert.Equal(t, int64(1), f.Pop().Int64())
	assert.Equal(t, int32(2), f.Pop().Int32())
	assert.Equal(t, int64(1), f.Pop().Int64())
}

// A malformed/unverified method that underflows the operand stack must
// surface as a non-catchable InternalError, not crash the goroutine.
func TestOperandStackUnderflowBecomesInternalError(t *testing.T) {
	vm := newTestVM()
	ct := &classloader.ClassType{Name: "Broken"}
	mi := &classloader.MethodInfo{
		Name:       "run",
		Descriptor: "()V",
		Code:       &classloader.CodeAttr{MaxStack: 1, MaxLocals: 0, Code: []byte{opPop, opReturn}},
	}
	f := frame.New(ct, mi, nil, nil)

	res := vm.run(nil, f)
	require.True(t, res.IsThrown())
	assert.False(t, res.Catchable)
	assert.Equal(t, excnames.InternalError, res.Thrown.ClassName())
}

// CHECKCAST/INSTANCEOF treat a null operand specially: CHECKCAST
// succeeds, INSTANCEOF reports false.
func TestCheckcastNullAlwaysSucceeds(t *testing.T) {
	vm := newTestVM()
	f := newTestFrame(4)
	cp := classloader.NewConstantPoolBuilder()
	idx := cp.Class("java/lang/String")
	f.Method.Code.Code = []byte{0xc0, byte(idx >> 8), byte(idx)}
	ct := &classloader.ClassType{Name: "Test", CP: cp.Build()}
	f.Class = ct
	f.PC = 1 // past the opcode byte itself, at the operand index
	f.Push(object.NewNull())

	res := vm.execCheckcast(f, f.Method.Code.Code)
	assert.False(t, res.IsThrown())
}

func TestInstanceofNullIsFalse(t *testing.T) {
	vm := newTestVM()
	f := newTestFrame(4)
	cp := classloader.NewConstantPoolBuilder()
	idx := cp.Class("java/lang/String")
	f.Method.Code.Code = []byte{0xc1, byte(idx >> 8), byte(idx)}
	ct := &classloader.ClassType{Name: "Test", CP: cp.Build()}
	f.Class = ct
	f.PC = 1 // past the opcode byte itself, at the operand index
	f.Push(object.NewNull())

	res := vm.execInstanceof(f, f.Method.Code.Code)
	require.False(t, res.IsThrown())
	assert.Equal(t, int32(0), f.Pop().Int32())
}
