/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package interp

import (
	"encoding/binary"
	"strconv"

	"embervm/classloader"
	"embervm/excnames"
	"embervm/frame"
	"embervm/object"
	"embervm/thread"
	"embervm/types"
)

// loadConstant resolves an LDC/LDC_W/LDC2_W index against f's own
// class's constant pool into a pushable Variable (spec §4.K "LDC:
// resolves an Integer/Float/Long/Double/String/Class constant").
func (vm *VM) loadConstant(f *frame.Frame, idx int) (*object.Variable, bool) {
	cp := f.Class.CP
	switch cp.Tag(idx) {
	case classloader.TagInteger:
		v, _ := cp.Integer(idx)
		return object.NewInt(v), true
	case classloader.TagFloat:
		v, _ := cp.Float(idx)
		return object.NewFloat(v), true
	case classloader.TagLong:
		v, _ := cp.Long(idx)
		return object.NewLong(v), true
	case classloader.TagDouble:
		v, _ := cp.Double(idx)
		return object.NewDouble(v), true
	case classloader.TagString:
		s, _ := cp.String(idx)
		return object.NewRef(vm.newJavaString(s)), true
	case classloader.TagClass:
		name, _ := cp.ClassName(idx)
		return object.NewRef(vm.newJavaClass(name)), true
	default:
		return nil, false
	}
}

// execArrayLoad implements the *ALOAD family: pop index, pop arrayref,
// bounds-check, push the element (spec §4.K array ops).
func (vm *VM) execArrayLoad(f *frame.Frame) ExecResult {
	idx := f.Pop().Int32()
	arrRef := f.Pop()
	if arrRef.IsNull() {
		return newThrow(excnames.NullPointerException, "array load on null")
	}
	v, ok := arrRef.Arr.GetAt(idx)
	if !ok {
		return newThrow(excnames.ArrayIndexOutOfBoundsException, fmt32(idx))
	}
	f.Push(v)
	return voidResult()
}

// execArrayStore implements the *ASTORE family: pop value, index,
// arrayref (in that reverse order), bounds-check, store.
func (vm *VM) execArrayStore(f *frame.Frame) ExecResult {
	value := f.Pop()
	idx := f.Pop().Int32()
	arrRef := f.Pop()
	if arrRef.IsNull() {
		return newThrow(excnames.NullPointerException, "array store on null")
	}
	if !arrRef.Arr.SetAt(idx, value) {
		return newThrow(excnames.ArrayIndexOutOfBoundsException, fmt32(idx))
	}
	return voidResult()
}

func fmt32(v int32) string {
	return strconv.Itoa(int(v))
}

// execGetstatic resolves the field reference at code[pc:pc+2],
// ensures the declaring class's clinit has run, and pushes its static
// value (spec §4.K "field resolution... EnsureStaticInitializerCalled
// before first touch of a class").
func (vm *VM) execGetstatic(current *thread.Handle, f *frame.Frame, code []byte) ExecResult {
	idx := int(binary.BigEndian.Uint16(code[f.PC:]))
	f.PC += 2
	className, name, desc, ok := f.Class.CP.FieldRef(idx)
	if !ok {
		return newInternalError("bad getstatic operand")
	}
	owner, fi, res := vm.resolveField(current, className, name, desc)
	if res.IsThrown() {
		return res
	}
	v, ok := owner.GetStaticField(fi.Name, fi.Descriptor)
	if !ok {
		v = object.NewDefaultVariable(types.KindFromFieldDescriptor(fi.Descriptor))
	}
	f.Push(v)
	return voidResult()
}

// execPutstatic mirrors execGetstatic for writes.
func (vm *VM) execPutstatic(current *thread.Handle, f *frame.Frame, code []byte) ExecResult {
	idx := int(binary.BigEndian.Uint16(code[f.PC:]))
	f.PC += 2
	className, name, desc, ok := f.Class.CP.FieldRef(idx)
	if !ok {
		return newInternalError("bad putstatic operand")
	}
	owner, fi, res := vm.resolveField(current, className, name, desc)
	if res.IsThrown() {
		return res
	}
	v := f.Pop()
	owner.SetStaticField(fi.Name, fi.Descriptor, v)
	return voidResult()
}

// resolveField resolves a field reference to its declaring class,
// ensuring that class's clinit has run first (a getstatic/putstatic is
// the field-access equivalent of "first active use").
func (vm *VM) resolveField(current *thread.Handle, className, name, desc string) (*classloader.ClassType, *classloader.FieldInfo, ExecResult) {
	ct, err := vm.Registry.Resolve(className)
	if err != nil {
		return nil, nil, invalidResult("resolving %s: %v", className, err)
	}
	if res := vm.EnsureStaticInitializerCalled(current, ct); res.IsThrown() {
		return nil, nil, res
	}
	owner, fi, err := vm.Registry.FindField(ct, name, desc)
	if err != nil {
		return nil, nil, newThrow(excnames.NoSuchFieldError, className+"."+name)
	}
	return owner, fi, voidResult()
}

// execGetfield pops the receiver, checks it for null, and pushes its
// instance field value.
func (vm *VM) execGetfield(f *frame.Frame, code []byte) ExecResult {
	idx := int(binary.BigEndian.Uint16(code[f.PC:]))
	f.PC += 2
	_, name, desc, ok := f.Class.CP.FieldRef(idx)
	if !ok {
		return newInternalError("bad getfield operand")
	}
	recv := f.Pop()
	if recv.IsNull() {
		return newThrow(excnames.NullPointerException, "getfield "+name+" on null")
	}
	v, ok := recv.Ref.GetField(name, desc)
	if !ok {
		return newThrow(excnames.NoSuchFieldError, recv.Ref.ClassName()+"."+name)
	}
	f.Push(v)
	return voidResult()
}

// execPutfield pops value then receiver (spec operand order), checks
// for null, and stores.
func (vm *VM) execPutfield(f *frame.Frame, code []byte) ExecResult {
	idx := int(binary.BigEndian.Uint16(code[f.PC:]))
	f.PC += 2
	_, name, desc, ok := f.Class.CP.FieldRef(idx)
	if !ok {
		return newInternalError("bad putfield operand")
	}
	value := f.Pop()
	recv := f.Pop()
	if recv.IsNull() {
		return newThrow(excnames.NullPointerException, "putfield "+name+" on null")
	}
	recv.Ref.SetField(name, desc, value)
	return voidResult()
}

// execNew resolves the class reference, runs its clinit if needed, and
// pushes a freshly allocated (but not yet constructed) instance with
// every declared field at its type default, walking up through every
// superclass so inherited fields exist too (spec §3 "Fields are
// initialized to type-default values when the instance is allocated").
func (vm *VM) execNew(current *thread.Handle, f *frame.Frame, code []byte) ExecResult {
	idx := int(binary.BigEndian.Uint16(code[f.PC:]))
	f.PC += 2
	className, ok := f.Class.CP.ClassName(idx)
	if !ok {
		return newInternalError("bad new operand")
	}
	ct, err := vm.Registry.Resolve(className)
	if err != nil {
		return invalidResult("resolving %s: %v", className, err)
	}
	if res := vm.EnsureStaticInitializerCalled(current, ct); res.IsThrown() {
		return res
	}

	inst := object.NewInstance(className)
	for cur := ct; cur != nil; {
		for _, fld := range cur.Fields {
			if fld.AccessFlags&classloader.AccStatic == 0 {
				inst.InitField(fld.Name, fld.Descriptor)
			}
		}
		next, isObject, serr := vm.Registry.Super(cur)
		if serr != nil || isObject {
			break
		}
		cur = next
	}
	f.Push(object.NewRef(inst))
	return voidResult()
}

// execNewarray allocates a single-dimension primitive array (spec
// §4.K NEWARRAY).
func (vm *VM) execNewarray(f *frame.Frame, code []byte) ExecResult {
	atype := code[f.PC]
	f.PC++
	length := f.Pop().Int32()
	if length < 0 {
		return newThrow(excnames.NegativeArraySizeException, fmt32(length))
	}
	kind, ok := primitiveKindFromAtype(atype)
	if !ok {
		return newInternalError("bad newarray atype")
	}
	f.Push(object.NewArrayRef(object.NewPrimitiveArray(kind, uint32(length))))
	return voidResult()
}

func primitiveKindFromAtype(atype byte) (types.Kind, bool) {
	switch atype {
	case atBoolean:
		return types.Boolean, true
	case atChar:
		return types.Char, true
	case atFloat:
		return types.Float, true
	case atDouble:
		return types.Double, true
	case atByte:
		return types.Byte, true
	case atShort:
		return types.Short, true
	case atInt:
		return types.Int, true
	case atLong:
		return types.Long, true
	default:
		return types.Null, false
	}
}

// execAnewarray allocates a single-dimension class-instance array.
func (vm *VM) execAnewarray(f *frame.Frame, code []byte) ExecResult {
	idx := int(binary.BigEndian.Uint16(code[f.PC:]))
	f.PC += 2
	className, ok := f.Class.CP.ClassName(idx)
	if !ok {
		return newInternalError("bad anewarray operand")
	}
	length := f.Pop().Int32()
	if length < 0 {
		return newThrow(excnames.NegativeArraySizeException, fmt32(length))
	}
	f.Push(object.NewArrayRef(object.NewRefArray(className, uint32(length), 1)))
	return voidResult()
}

// execMultianewarray allocates an N-dimensional class-instance array,
// consuming one length operand per named dimension off the operand
// stack in reverse order and nesting inner arrays eagerly.
func (vm *VM) execMultianewarray(f *frame.Frame, code []byte) ExecResult {
	idx := int(binary.BigEndian.Uint16(code[f.PC:]))
	f.PC += 2
	dims := code[f.PC]
	f.PC++

	className, ok := f.Class.CP.ClassName(idx)
	if !ok {
		return newInternalError("bad multianewarray operand")
	}

	lengths := make([]int32, dims)
	for i := int(dims) - 1; i >= 0; i-- {
		lengths[i] = f.Pop().Int32()
		if lengths[i] < 0 {
			return newThrow(excnames.NegativeArraySizeException, fmt32(lengths[i]))
		}
	}

	arr := buildMultiArray(className, lengths)
	f.Push(object.NewArrayRef(arr))
	return voidResult()
}

func buildMultiArray(className string, lengths []int32) *object.Array {
	arr := object.NewRefArray(className, uint32(lengths[0]), uint32(len(lengths)))
	if len(lengths) == 1 {
		return arr
	}
	for i := int32(0); i < lengths[0]; i++ {
		inner := buildMultiArray(className, lengths[1:])
		arr.SetAt(i, object.NewArrayRef(inner))
	}
	return arr
}

// execCheckcast pops nothing, peeks the receiver, and verifies it is
// assignable to the named class; a null reference always passes
// (spec §4.K CHECKCAST).
func (vm *VM) execCheckcast(f *frame.Frame, code []byte) ExecResult {
	idx := int(binary.BigEndian.Uint16(code[f.PC:]))
	f.PC += 2
	className, ok := f.Class.CP.ClassName(idx)
	if !ok {
		return newInternalError("bad checkcast operand")
	}
	v := f.Peek()
	if v.IsNull() {
		return voidResult()
	}
	if v.Kind == types.ArrayRef {
		return voidResult() // array covariance is not enforced at CHECKCAST in this interpreter
	}
	from, err := vm.Registry.Resolve(v.Ref.ClassName())
	if err != nil {
		return invalidResult("resolving %s: %v", v.Ref.ClassName(), err)
	}
	to, err := vm.Registry.Resolve(className)
	if err != nil {
		return invalidResult("resolving %s: %v", className, err)
	}
	if !vm.Registry.CanCastTo(from, to) {
		return newThrow(excnames.ClassCastException, v.Ref.ClassName()+" cannot be cast to "+className)
	}
	return voidResult()
}

// execInstanceof pops the receiver and pushes 1/0 per spec §4.K
// INSTANCEOF; null always yields 0.
func (vm *VM) execInstanceof(f *frame.Frame, code []byte) ExecResult {
	idx := int(binary.BigEndian.Uint16(code[f.PC:]))
	f.PC += 2
	className, ok := f.Class.CP.ClassName(idx)
	if !ok {
		return newInternalError("bad instanceof operand")
	}
	v := f.Pop()
	if v.IsNull() {
		f.Push(object.NewInt(0))
		return voidResult()
	}
	if v.Kind == types.ArrayRef {
		f.Push(object.NewInt(0))
		return voidResult()
	}
	from, err := vm.Registry.Resolve(v.Ref.ClassName())
	if err != nil {
		return invalidResult("resolving %s: %v", v.Ref.ClassName(), err)
	}
	to, err := vm.Registry.Resolve(className)
	if err != nil {
		return invalidResult("resolving %s: %v", className, err)
	}
	if vm.Registry.CanCastTo(from, to) {
		f.Push(object.NewInt(1))
	} else {
		f.Push(object.NewInt(0))
	}
	return voidResult()
}

func (vm *VM) popArgs(f *frame.Frame, desc string) []*object.Variable {
	n := types.CountMethodParams(desc)
	args := make([]*object.Variable, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = f.Pop()
	}
	return args
}

func pushReturnIfAny(f *frame.Frame, desc string, res ExecResult) {
	if types.ReturnDescriptor(desc) == "V" {
		return
	}
	f.Push(res.Value)
}

// execInvokestatic resolves operands and dispatches via InvokeStatic.
func (vm *VM) execInvokestatic(current *thread.Handle, f *frame.Frame, code []byte) ExecResult {
	idx := int(binary.BigEndian.Uint16(code[f.PC:]))
	f.PC += 2
	className, name, desc, ok := f.Class.CP.MethodRef(idx)
	if !ok {
		return newInternalError("bad invokestatic operand")
	}
	args := vm.popArgs(f, desc)
	res := vm.InvokeStatic(current, className, name, desc, args)
	if res.IsThrown() {
		return res
	}
	pushReturnIfAny(f, desc, res)
	return voidResult()
}

// execInvokespecial resolves operands and dispatches via InvokeSpecial.
func (vm *VM) execInvokespecial(current *thread.Handle, f *frame.Frame, code []byte) ExecResult {
	idx := int(binary.BigEndian.Uint16(code[f.PC:]))
	f.PC += 2
	className, name, desc, ok := f.Class.CP.MethodRef(idx)
	if !ok {
		return newInternalError("bad invokespecial operand")
	}
	args := vm.popArgs(f, desc)
	this := f.Pop()
	if this.IsNull() {
		return newThrow(excnames.NullPointerException, "invokespecial "+name+desc+" on null receiver")
	}
	res := vm.InvokeSpecial(current, className, name, desc, this, args)
	if res.IsThrown() {
		return res
	}
	pushReturnIfAny(f, desc, res)
	return voidResult()
}

// execInvokevirtual resolves operands and dispatches via InvokeVirtual.
func (vm *VM) execInvokevirtual(current *thread.Handle, f *frame.Frame, code []byte) ExecResult {
	idx := int(binary.BigEndian.Uint16(code[f.PC:]))
	f.PC += 2
	_, name, desc, ok := f.Class.CP.MethodRef(idx)
	if !ok {
		return newInternalError("bad invokevirtual operand")
	}
	args := vm.popArgs(f, desc)
	this := f.Pop()
	res := vm.InvokeVirtual(current, this, name, desc, args)
	if res.IsThrown() {
		return res
	}
	pushReturnIfAny(f, desc, res)
	return voidResult()
}

// execInvokeinterface resolves operands (skipping the count/zero
// padding bytes classic invokeinterface carries) and dispatches via
// InvokeInterface.
func (vm *VM) execInvokeinterface(current *thread.Handle, f *frame.Frame, code []byte) ExecResult {
	idx := int(binary.BigEndian.Uint16(code[f.PC:]))
	f.PC += 2
	f.PC += 2 // count byte + reserved zero byte, both unused by this interpreter
	_, name, desc, ok := f.Class.CP.InterfaceMethodRef(idx)
	if !ok {
		return newInternalError("bad invokeinterface operand")
	}
	args := vm.popArgs(f, desc)
	this := f.Pop()
	res := vm.InvokeInterface(current, this, name, desc, args)
	if res.IsThrown() {
		return res
	}
	pushReturnIfAny(f, desc, res)
	return voidResult()
}

// execTableswitch implements the TABLESWITCH opcode: 0-3 bytes of
// padding to align to a 4-byte boundary from the start of the
// instruction, then default/low/high offsets and a jump table.
func (vm *VM) execTableswitch(f *frame.Frame, code []byte) ExecResult {
	opStart := f.PC - 1
	pc := alignTo4(opStart + 1)
	defaultOff := int32(binary.BigEndian.Uint32(code[pc:]))
	low := int32(binary.BigEndian.Uint32(code[pc+4:]))
	high := int32(binary.BigEndian.Uint32(code[pc+8:]))
	tableStart := pc + 12

	index := f.Pop().Int32()
	var target int32
	if index < low || index > high {
		target = int32(opStart) + defaultOff
	} else {
		entry := tableStart + uint16((index-low)*4)
		target = int32(opStart) + int32(binary.BigEndian.Uint32(code[entry:]))
	}
	f.PC = uint16(target)
	return voidResult()
}

// execLookupswitch implements the LOOKUPSWITCH opcode.
func (vm *VM) execLookupswitch(f *frame.Frame, code []byte) ExecResult {
	opStart := f.PC - 1
	pc := alignTo4(opStart + 1)
	defaultOff := int32(binary.BigEndian.Uint32(code[pc:]))
	npairs := int32(binary.BigEndian.Uint32(code[pc+4:]))
	pairsStart := pc + 8

	key := f.Pop().Int32()
	target := int32(opStart) + defaultOff
	for i := int32(0); i < npairs; i++ {
		off := pairsStart + uint16(i*8)
		matchVal := int32(binary.BigEndian.Uint32(code[off:]))
		if matchVal == key {
			target = int32(opStart) + int32(binary.BigEndian.Uint32(code[off+4:]))
			break
		}
	}
	f.PC = uint16(target)
	return voidResult()
}

func alignTo4(pc uint16) uint16 {
	rem := pc % 4
	if rem == 0 {
		return pc
	}
	return pc + (4 - rem)
}

// execWide reinterprets the next opcode with a two-byte local-variable
// index (and, for IINC, a two-byte signed constant), per spec §4.K's
// "wide variants" of the load/store/iinc/ret family.
func (vm *VM) execWide(f *frame.Frame, code []byte) ExecResult {
	sub := code[f.PC]
	f.PC++
	idx := int(binary.BigEndian.Uint16(code[f.PC:]))
	f.PC += 2

	switch sub {
	case opIload, opLload, opFload, opDload, opAload:
		f.Push(f.Locals[idx])
	case opIstore, opLstore, opFstore, opDstore, opAstore:
		f.Locals[idx] = f.Pop()
	case opIinc:
		delta := int16(binary.BigEndian.Uint16(code[f.PC:]))
		f.PC += 2
		cur := f.Locals[idx].Int32()
		f.Locals[idx] = object.NewInt(cur + int32(delta))
	case opRet:
		return newThrow(excnames.AbstractMethodError, "wide RET is not supported")
	default:
		return newInternalError("unsupported wide-prefixed opcode")
	}
	return voidResult()
}
