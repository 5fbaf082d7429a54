/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package interp

import (
	"encoding/binary"
	"fmt"
	"math"

	"embervm/excnames"
	"embervm/frame"
	"embervm/monitor"
	"embervm/object"
	"embervm/thread"
	"embervm/types"
)

// run executes f's bytecode to completion: a normal return, an
// uncaught (or non-catchable) exception, or an internal error. This is
// the single dispatch loop of spec §4.K: fetch one opcode, advance pc,
// decode operands, execute, loop.
func (vm *VM) run(current *thread.Handle, f *frame.Frame) (result ExecResult) {
	code := f.Method.Code.Code

	// A malformed or unverified class file can drive an opcode handler
	// into an operand-stack underflow or similar host panic; spec §7/§8
	// require that to surface as a non-catchable InternalError rather
	// than crash the goroutine running this frame.
	defer func() {
		if r := recover(); r != nil {
			result = newInternalError(fmt.Sprintf("%v in %s.%s", r, f.Class.Name, f.Method.Name))
		}
	}()

	for {
		if int(f.PC) >= len(code) {
			return newInternalError("pc ran past end of code in " + f.Class.Name + "." + f.Method.Name)
		}
		op := code[f.PC]
		f.PC++

		res, done := vm.step(current, f, code, op)
		if !done {
			continue
		}
		if !res.IsThrown() {
			return res
		}
		if handled := vm.tryHandle(f, res); handled {
			continue
		}
		return res
	}
}

// tryHandle scans f's exception table at its current pc for a handler
// whose catch class the thrown instance is assignable to (spec
// §4.K "Exception flow", step 1). A nil/empty CatchClass matches any
// throwable (a finally block). Non-catchable throws never scan.
func (vm *VM) tryHandle(f *frame.Frame, res ExecResult) bool {
	if !res.Catchable {
		return false
	}
	thrownClass, err := vm.Registry.Resolve(res.Thrown.ClassName())
	if err != nil {
		return false
	}
	for _, h := range f.AvailableExceptionHandlers() {
		if h.CatchClass == "" {
			f.PC = h.HandlerPC
			f.ClearStack()
			f.Push(object.NewRef(res.Thrown))
			return true
		}
		catchClass, err := vm.Registry.Resolve(h.CatchClass)
		if err != nil {
			continue
		}
		if vm.Registry.CanCastTo(thrownClass, catchClass) {
			f.PC = h.HandlerPC
			f.ClearStack()
			f.Push(object.NewRef(res.Thrown))
			return true
		}
	}
	return false
}

// step executes exactly one opcode. done is false when execution
// should continue looping in run(); true when res is the frame's
// final outcome (a return or a propagating throw/internal error).
func (vm *VM) step(current *thread.Handle, f *frame.Frame, code []byte, op byte) (res ExecResult, done bool) {
	switch op {
	case opNop:
		// nothing

	case opAconstNull:
		f.Push(object.NewNull())
	case opIconstM1, opIconst0, opIconst1, opIconst2, opIconst3, opIconst4, opIconst5:
		f.Push(object.NewInt(int32(op) - int32(opIconst0)))
	case opLconst0, opLconst1:
		f.Push(object.NewLong(int64(op) - int64(opLconst0)))
	case opFconst0, opFconst1, opFconst2:
		f.Push(object.NewFloat(float32(op) - float32(opFconst0)))
	case opDconst0, opDconst1:
		f.Push(object.NewDouble(float64(op) - float64(opDconst0)))

	case opBipush:
		v := int8(code[f.PC])
		f.PC++
		f.Push(object.NewInt(int32(v)))
	case opSipush:
		v := int16(binary.BigEndian.Uint16(code[f.PC:]))
		f.PC += 2
		f.Push(object.NewInt(int32(v)))

	case opLdc:
		idx := int(code[f.PC])
		f.PC++
		if v, ok := vm.loadConstant(f, idx); ok {
			f.Push(v)
		} else {
			return newInternalError("bad LDC index"), true
		}
	case opLdcW:
		idx := int(binary.BigEndian.Uint16(code[f.PC:]))
		f.PC += 2
		if v, ok := vm.loadConstant(f, idx); ok {
			f.Push(v)
		} else {
			return newInternalError("bad LDC_W index"), true
		}
	case opLdc2W:
		idx := int(binary.BigEndian.Uint16(code[f.PC:]))
		f.PC += 2
		if v, ok := vm.loadConstant(f, idx); ok {
			f.Push(v)
		} else {
			return newInternalError("bad LDC2_W index"), true
		}

	case opIload, opLload, opFload, opDload, opAload:
		idx := int(code[f.PC])
		f.PC++
		f.Push(f.Locals[idx])
	case opIload0, opIload1, opIload2, opIload3:
		f.Push(f.Locals[int(op-opIload0)])
	case opLload0, opLload1, opLload2, opLload3:
		f.Push(f.Locals[int(op-opLload0)])
	case opFload0, opFload1, opFload2, opFload3:
		f.Push(f.Locals[int(op-opFload0)])
	case opDload0, opDload1, opDload2, opDload3:
		f.Push(f.Locals[int(op-opDload0)])
	case opAload0, opAload1, opAload2, opAload3:
		f.Push(f.Locals[int(op-opAload0)])

	case opIstore, opLstore, opFstore, opDstore, opAstore:
		idx := int(code[f.PC])
		f.PC++
		f.Locals[idx] = f.Pop()
	case opIstore0, opIstore1, opIstore2, opIstore3:
		f.Locals[int(op-opIstore0)] = f.Pop()
	case opLstore0, opLstore1, opLstore2, opLstore3:
		f.Locals[int(op-opLstore0)] = f.Pop()
	case opFstore0, opFstore1, opFstore2, opFstore3:
		f.Locals[int(op-opFstore0)] = f.Pop()
	case opDstore0, opDstore1, opDstore2, opDstore3:
		f.Locals[int(op-opDstore0)] = f.Pop()
	case opAstore0, opAstore1, opAstore2, opAstore3:
		f.Locals[int(op-opAstore0)] = f.Pop()

	case opIaload, opLaload, opFaload, opDaload, opAaload, opBaload, opCaload, opSaload:
		return thrown(vm.execArrayLoad(f))

	case opIastore, opLastore, opFastore, opDastore, opAastore, opBastore, opCastore, opSastore:
		return thrown(vm.execArrayStore(f))

	case opPop:
		f.Pop()
	case opPop2:
		// Form 2 (one category-2 value) needs only one pop; form 1 (two
		// category-1 values) needs two. A long/double already occupies a
		// single operand-stack slot in this frame's model (see frame.New
		// on locals), so peeking its category tells form 1 from form 2.
		v1 := f.Pop()
		if !v1.Kind.IsCategory2() {
			f.Pop()
		}
	case opDup:
		v := f.Peek()
		f.Push(v)
	case opDupX1:
		v1, v2 := f.Pop(), f.Pop()
		f.Push(v1)
		f.Push(v2)
		f.Push(v1)
	case opDupX2:
		v1 := f.Pop()
		v2 := f.Pop()
		if v2.Kind.IsCategory2() {
			f.Push(v1)
			f.Push(v2)
			f.Push(v1)
		} else {
			v3 := f.Pop()
			f.Push(v1)
			f.Push(v3)
			f.Push(v2)
			f.Push(v1)
		}
	case opDup2:
		v1 := f.Pop()
		if v1.Kind.IsCategory2() {
			f.Push(v1)
			f.Push(v1)
		} else {
			v2 := f.Pop()
			f.Push(v2)
			f.Push(v1)
			f.Push(v2)
			f.Push(v1)
		}
	case opDup2X1:
		v1 := f.Pop()
		if v1.Kind.IsCategory2() {
			v2 := f.Pop()
			f.Push(v1)
			f.Push(v2)
			f.Push(v1)
		} else {
			v2 := f.Pop()
			v3 := f.Pop()
			f.Push(v2)
			f.Push(v1)
			f.Push(v3)
			f.Push(v2)
			f.Push(v1)
		}
	case opDup2X2:
		v1 := f.Pop()
		if v1.Kind.IsCategory2() {
			v2 := f.Pop()
			if v2.Kind.IsCategory2() {
				f.Push(v1)
				f.Push(v2)
				f.Push(v1)
			} else {
				v3 := f.Pop()
				f.Push(v1)
				f.Push(v3)
				f.Push(v2)
				f.Push(v1)
			}
		} else {
			v2 := f.Pop()
			v3 := f.Pop()
			if v3.Kind.IsCategory2() {
				f.Push(v2)
				f.Push(v1)
				f.Push(v3)
				f.Push(v2)
				f.Push(v1)
			} else {
				v4 := f.Pop()
				f.Push(v2)
				f.Push(v1)
				f.Push(v4)
				f.Push(v3)
				f.Push(v2)
				f.Push(v1)
			}
		}
	case opSwap:
		v1, v2 := f.Pop(), f.Pop()
		f.Push(v1)
		f.Push(v2)

	case opIadd:
		b, a := f.Pop().Int32(), f.Pop().Int32()
		f.Push(object.NewInt(a + b))
	case opLadd:
		b, a := f.Pop().Int64(), f.Pop().Int64()
		f.Push(object.NewLong(a + b))
	case opFadd:
		b, a := f.Pop().Float32(), f.Pop().Float32()
		f.Push(object.NewFloat(a + b))
	case opDadd:
		b, a := f.Pop().Float64(), f.Pop().Float64()
		f.Push(object.NewDouble(a + b))
	case opIsub:
		b, a := f.Pop().Int32(), f.Pop().Int32()
		f.Push(object.NewInt(a - b))
	case opLsub:
		b, a := f.Pop().Int64(), f.Pop().Int64()
		f.Push(object.NewLong(a - b))
	case opFsub:
		b, a := f.Pop().Float32(), f.Pop().Float32()
		f.Push(object.NewFloat(a - b))
	case opDsub:
		b, a := f.Pop().Float64(), f.Pop().Float64()
		f.Push(object.NewDouble(a - b))
	case opImul:
		b, a := f.Pop().Int32(), f.Pop().Int32()
		f.Push(object.NewInt(a * b))
	case opLmul:
		b, a := f.Pop().Int64(), f.Pop().Int64()
		f.Push(object.NewLong(a * b))
	case opFmul:
		b, a := f.Pop().Float32(), f.Pop().Float32()
		f.Push(object.NewFloat(a * b))
	case opDmul:
		b, a := f.Pop().Float64(), f.Pop().Float64()
		f.Push(object.NewDouble(a * b))
	case opIdiv:
		b, a := f.Pop().Int32(), f.Pop().Int32()
		if b == 0 {
			return newThrow(excnames.ArithmeticException, "/ by zero"), true
		}
		f.Push(object.NewInt(a / b))
	case opLdiv:
		b, a := f.Pop().Int64(), f.Pop().Int64()
		if b == 0 {
			return newThrow(excnames.ArithmeticException, "/ by zero"), true
		}
		f.Push(object.NewLong(a / b))
	case opFdiv:
		b, a := f.Pop().Float32(), f.Pop().Float32()
		f.Push(object.NewFloat(a / b))
	case opDdiv:
		b, a := f.Pop().Float64(), f.Pop().Float64()
		f.Push(object.NewDouble(a / b))
	case opIrem:
		b, a := f.Pop().Int32(), f.Pop().Int32()
		if b == 0 {
			return newThrow(excnames.ArithmeticException, "/ by zero"), true
		}
		f.Push(object.NewInt(a % b))
	case opLrem:
		b, a := f.Pop().Int64(), f.Pop().Int64()
		if b == 0 {
			return newThrow(excnames.ArithmeticException, "/ by zero"), true
		}
		f.Push(object.NewLong(a % b))
	case opFrem:
		b, a := f.Pop().Float32(), f.Pop().Float32()
		f.Push(object.NewFloat(float32(math.Mod(float64(a), float64(b)))))
	case opDrem:
		b, a := f.Pop().Float64(), f.Pop().Float64()
		f.Push(object.NewDouble(math.Mod(a, b)))
	case opIneg:
		f.Push(object.NewInt(-f.Pop().Int32()))
	case opLneg:
		f.Push(object.NewLong(-f.Pop().Int64()))
	case opFneg:
		f.Push(object.NewFloat(-f.Pop().Float32()))
	case opDneg:
		f.Push(object.NewDouble(-f.Pop().Float64()))

	case opIshl:
		s, a := f.Pop().Int32(), f.Pop().Int32()
		f.Push(object.NewInt(a << (uint32(s) & 0x1f)))
	case opLshl:
		s, a := f.Pop().Int32(), f.Pop().Int64()
		f.Push(object.NewLong(a << (uint64(s) & 0x3f)))
	case opIshr:
		s, a := f.Pop().Int32(), f.Pop().Int32()
		f.Push(object.NewInt(a >> (uint32(s) & 0x1f)))
	case opLshr:
		s, a := f.Pop().Int32(), f.Pop().Int64()
		f.Push(object.NewLong(a >> (uint64(s) & 0x3f)))
	case opIushr:
		s, a := f.Pop().Int32(), f.Pop().Int32()
		f.Push(object.NewInt(int32(uint32(a) >> (uint32(s) & 0x1f))))
	case opLushr:
		s, a := f.Pop().Int32(), f.Pop().Int64()
		f.Push(object.NewLong(int64(uint64(a) >> (uint64(s) & 0x3f))))
	case opIand:
		b, a := f.Pop().Int32(), f.Pop().Int32()
		f.Push(object.NewInt(a & b))
	case opLand:
		b, a := f.Pop().Int64(), f.Pop().Int64()
		f.Push(object.NewLong(a & b))
	case opIor:
		b, a := f.Pop().Int32(), f.Pop().Int32()
		f.Push(object.NewInt(a | b))
	case opLor:
		b, a := f.Pop().Int64(), f.Pop().Int64()
		f.Push(object.NewLong(a | b))
	case opIxor:
		b, a := f.Pop().Int32(), f.Pop().Int32()
		f.Push(object.NewInt(a ^ b))
	case opLxor:
		b, a := f.Pop().Int64(), f.Pop().Int64()
		f.Push(object.NewLong(a ^ b))
	case opIinc:
		idx := int(code[f.PC])
		delta := int8(code[f.PC+1])
		f.PC += 2
		cur := f.Locals[idx].Int32()
		f.Locals[idx] = object.NewInt(cur + int32(delta))

	case opI2l:
		f.Push(object.NewLong(int64(f.Pop().Int32())))
	case opI2f:
		f.Push(object.NewFloat(float32(f.Pop().Int32())))
	case opI2d:
		f.Push(object.NewDouble(float64(f.Pop().Int32())))
	case opL2i:
		f.Push(object.NewInt(int32(f.Pop().Int64())))
	case opL2f:
		f.Push(object.NewFloat(float32(f.Pop().Int64())))
	case opL2d:
		f.Push(object.NewDouble(float64(f.Pop().Int64())))
	case opF2i:
		f.Push(object.NewInt(int32(f.Pop().Float32())))
	case opF2l:
		f.Push(object.NewLong(int64(f.Pop().Float32())))
	case opF2d:
		f.Push(object.NewDouble(float64(f.Pop().Float32())))
	case opD2i:
		f.Push(object.NewInt(int32(f.Pop().Float64())))
	case opD2l:
		f.Push(object.NewLong(int64(f.Pop().Float64())))
	case opD2f:
		f.Push(object.NewFloat(float32(f.Pop().Float64())))
	case opI2b:
		f.Push(object.NewInt(int32(int8(f.Pop().Int32()))))
	case opI2c:
		f.Push(object.NewInt(int32(uint16(f.Pop().Int32()))))
	case opI2s:
		f.Push(object.NewInt(int32(int16(f.Pop().Int32()))))

	case opLcmp:
		b, a := f.Pop().Int64(), f.Pop().Int64()
		f.Push(object.NewInt(cmp64(a, b)))
	case opFcmpl, opFcmpg:
		b, a := f.Pop().Float32(), f.Pop().Float32()
		f.Push(object.NewInt(cmpFloat(float64(a), float64(b), op == opFcmpg)))
	case opDcmpl, opDcmpg:
		b, a := f.Pop().Float64(), f.Pop().Float64()
		f.Push(object.NewInt(cmpFloat(a, b, op == opDcmpg)))

	case opIfeq, opIfne, opIflt, opIfge, opIfgt, opIfle:
		off := int16(binary.BigEndian.Uint16(code[f.PC:]))
		f.PC += 2
		if branchTaken1(op, f.Pop().Int32()) {
			f.PC = uint16(int32(f.PC) - 3 + int32(off))
		}
	case opIfIcmpeq, opIfIcmpne, opIfIcmplt, opIfIcmpge, opIfIcmpgt, opIfIcmple:
		off := int16(binary.BigEndian.Uint16(code[f.PC:]))
		f.PC += 2
		b, a := f.Pop().Int32(), f.Pop().Int32()
		if branchTaken2(op, a, b) {
			f.PC = uint16(int32(f.PC) - 3 + int32(off))
		}
	case opIfAcmpeq, opIfAcmpne:
		off := int16(binary.BigEndian.Uint16(code[f.PC:]))
		f.PC += 2
		b, a := f.Pop(), f.Pop()
		eq := sameReference(a, b)
		if (op == opIfAcmpeq) == eq {
			f.PC = uint16(int32(f.PC) - 3 + int32(off))
		}
	case opIfnull, opIfnonnull:
		off := int16(binary.BigEndian.Uint16(code[f.PC:]))
		f.PC += 2
		v := f.Pop()
		if (op == opIfnull) == v.IsNull() {
			f.PC = uint16(int32(f.PC) - 3 + int32(off))
		}
	case opGoto:
		off := int16(binary.BigEndian.Uint16(code[f.PC:]))
		base := int32(f.PC) - 1
		f.PC = uint16(base + int32(off))
	case opGotoW:
		off := int32(binary.BigEndian.Uint32(code[f.PC:]))
		base := int32(f.PC) - 1
		f.PC = uint16(base + off)
	case opJsr, opJsrW, opRet:
		return newThrow(excnames.AbstractMethodError, "JSR/RET is not supported"), true
	case opTableswitch:
		return vm.execTableswitch(f, code), false
	case opLookupswitch:
		return vm.execLookupswitch(f, code), false

	case opIreturn, opFreturn:
		return returnResult(f.Pop()), true
	case opLreturn, opDreturn:
		return returnResult(f.Pop()), true
	case opAreturn:
		return returnResult(f.Pop()), true
	case opReturn:
		return voidResult(), true

	case opGetstatic:
		return thrown(vm.execGetstatic(current, f, code))
	case opPutstatic:
		return thrown(vm.execPutstatic(current, f, code))
	case opGetfield:
		return thrown(vm.execGetfield(f, code))
	case opPutfield:
		return thrown(vm.execPutfield(f, code))

	case opNew:
		return thrown(vm.execNew(current, f, code))
	case opNewarray:
		return thrown(vm.execNewarray(f, code))
	case opAnewarray:
		return thrown(vm.execAnewarray(f, code))
	case opMultianewarray:
		return thrown(vm.execMultianewarray(f, code))
	case opArraylength:
		v := f.Pop()
		if v.IsNull() {
			return newThrow(excnames.NullPointerException, "arraylength on null"), true
		}
		f.Push(object.NewInt(int32(v.Arr.Length)))

	case opCheckcast:
		return thrown(vm.execCheckcast(f, code))
	case opInstanceof:
		return thrown(vm.execInstanceof(f, code))

	case opInvokestatic:
		return thrown(vm.execInvokestatic(current, f, code))
	case opInvokespecial:
		return thrown(vm.execInvokespecial(current, f, code))
	case opInvokevirtual:
		return thrown(vm.execInvokevirtual(current, f, code))
	case opInvokeinterface:
		return thrown(vm.execInvokeinterface(current, f, code))
	case opInvokedynamic:
		f.PC += 4
		return newThrow(excnames.UnsupportedOperationException, "invokedynamic is not supported"), true

	case opAthrow:
		v := f.Pop()
		if v.IsNull() {
			return newThrow(excnames.NullPointerException, "athrow null"), true
		}
		return throwResult(v.Ref, true), true

	case opMonitorenter:
		v := f.Pop()
		if v.IsNull() {
			return newThrow(excnames.NullPointerException, "monitorenter null"), true
		}
		monitorOf(v).Enter(monitorOwnerID(current))
	case opMonitorexit:
		v := f.Pop()
		if v.IsNull() {
			return newThrow(excnames.NullPointerException, "monitorexit null"), true
		}
		if !monitorOf(v).Leave(monitorOwnerID(current)) {
			return newThrow(excnames.IllegalMonitorStateException, "monitor not held"), true
		}

	case opWide:
		return thrown(vm.execWide(f, code))

	default:
		return newInternalError("unsupported opcode in step dispatch"), true
	}

	return voidResult(), false
}

// thrown adapts an exec* helper's ExecResult into step()'s (res, done)
// shape: a throw propagates immediately, anything else means the
// helper already did its own stack/field bookkeeping and the loop
// should simply continue.
func thrown(res ExecResult) (ExecResult, bool) {
	if res.IsThrown() {
		return res, true
	}
	return voidResult(), false
}

// monitorOf returns the monitor a MONITORENTER/MONITOREXIT on v locks:
// the instance's own monitor, or the marker instance's monitor for an
// array reference (spec §3's "internal object-as-marker instance").
func monitorOf(v *object.Variable) *monitor.Monitor {
	if v.Kind == types.ArrayRef {
		return v.Arr.Marker.Monitor
	}
	return v.Ref.Monitor
}

func monitorOwnerID(current *thread.Handle) uint64 {
	if current == nil {
		return 0
	}
	return current.MonitorID()
}

func cmp64(a, b int64) int32 {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

// cmpFloat implements FCMPL/FCMPG/DCMPL/DCMPG's NaN handling: an
// operand-order comparison that returns 1 for NaN when greaterIsNaN is
// true (the *g variants), -1 otherwise (the *l variants).
func cmpFloat(a, b float64, greaterIsNaN bool) int32 {
	if a != a || b != b { // either operand is NaN
		if greaterIsNaN {
			return 1
		}
		return -1
	}
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

func branchTaken1(op byte, v int32) bool {
	switch op {
	case opIfeq:
		return v == 0
	case opIfne:
		return v != 0
	case opIflt:
		return v < 0
	case opIfge:
		return v >= 0
	case opIfgt:
		return v > 0
	case opIfle:
		return v <= 0
	}
	return false
}

func branchTaken2(op byte, a, b int32) bool {
	switch op {
	case opIfIcmpeq:
		return a == b
	case opIfIcmpne:
		return a != b
	case opIfIcmplt:
		return a < b
	case opIfIcmpge:
		return a >= b
	case opIfIcmpgt:
		return a > b
	case opIfIcmple:
		return a <= b
	}
	return false
}

func sameReference(a, b *object.Variable) bool {
	if a.IsNull() && b.IsNull() {
		return true
	}
	if a.Kind == types.ArrayRef || b.Kind == types.ArrayRef {
		return a.Arr == b.Arr
	}
	return a.Ref == b.Ref
}
