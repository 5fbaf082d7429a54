/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package interp

import (
	"embervm/classloader"
	"embervm/excnames"
	"embervm/frame"
	"embervm/object"
	"embervm/thread"
)

// InvokeStatic resolves and runs a static method, per spec §4.K
// "invokestatic: target = method on the referenced class itself;
// EnsureStaticInitializerCalled on that class first".
func (vm *VM) InvokeStatic(current *thread.Handle, className, name, desc string, args []*object.Variable) ExecResult {
	ct, err := vm.Registry.Resolve(className)
	if err != nil {
		return invalidResult("resolving %s: %v", className, err)
	}
	if res := vm.EnsureStaticInitializerCalled(current, ct); res.IsThrown() {
		return res
	}
	owner, mi, err := vm.Registry.FindMethod(ct, name, desc)
	if err != nil {
		return newThrow(excnames.NoSuchMethodError, className+"."+name+desc)
	}
	return vm.invokeResolved(current, owner, mi, nil, args)
}

// InvokeSpecial dispatches exactly the method named in the reference,
// with no virtual lookup, per spec §4.K "used for constructors and
// super-calls".
func (vm *VM) InvokeSpecial(current *thread.Handle, className, name, desc string, this *object.Variable, args []*object.Variable) ExecResult {
	ct, err := vm.Registry.Resolve(className)
	if err != nil {
		return invalidResult("resolving %s: %v", className, err)
	}
	mi, ok := ct.FindDeclaredMethod(name, desc)
	if !ok {
		return newThrow(excnames.NoSuchMethodError, className+"."+name+desc)
	}
	return vm.invokeResolved(current, ct, mi, this, args)
}

// InvokeVirtual selects the target by the runtime class of the
// receiver, ascending the class chain for the first matching
// name+descriptor (spec §4.K).
func (vm *VM) InvokeVirtual(current *thread.Handle, this *object.Variable, name, desc string, args []*object.Variable) ExecResult {
	if this == nil || this.IsNull() {
		return newThrow(excnames.NullPointerException, "invokevirtual "+name+desc+" on null receiver")
	}
	runtimeClass, err := vm.Registry.Resolve(this.Ref.ClassName())
	if err != nil {
		return invalidResult("resolving %s: %v", this.Ref.ClassName(), err)
	}
	owner, mi, err := vm.Registry.FindMethod(runtimeClass, name, desc)
	if err != nil {
		return newThrow(excnames.NoSuchMethodError, runtimeClass.Name+"."+name+desc)
	}
	return vm.invokeResolved(current, owner, mi, this, args)
}

// InvokeInterface behaves as InvokeVirtual: resolution starts from the
// receiver's runtime class and falls through to implemented
// interfaces when no direct match exists (spec §4.K).
func (vm *VM) InvokeInterface(current *thread.Handle, this *object.Variable, name, desc string, args []*object.Variable) ExecResult {
	return vm.InvokeVirtual(current, this, name, desc, args)
}

// invokeResolved runs a concrete (owner, method) pair: native methods
// go to the native registry; everything else gets a fresh frame.
// synchronized methods enter/leave the appropriate monitor around the
// call, covering every exit path via defer (spec §4.K/§4.G).
func (vm *VM) invokeResolved(current *thread.Handle, owner *classloader.ClassType, mi *classloader.MethodInfo, this *object.Variable, args []*object.Variable) ExecResult {
	if mi.AccessFlags&classloader.AccSynchronized != 0 {
		var threadID uint64
		if current != nil {
			threadID = current.MonitorID()
		}
		var mon = owner.Monitor
		if mi.AccessFlags&classloader.AccStatic == 0 && this != nil && this.Ref != nil {
			mon = this.Ref.Monitor
		}
		mon.Enter(threadID)
		defer mon.Leave(threadID)
	}

	if mi.AccessFlags&classloader.AccNative != 0 {
		return vm.invokeNative(current, owner, mi, this, args)
	}

	if mi.Code == nil {
		return newInternalError("method with no Code attribute and no native flag: " + owner.Name + "." + mi.Name + mi.Descriptor)
	}

	f := frame.New(owner, mi, this, args)
	if current != nil {
		scope := current.CallScope(f)
		defer scope()
	}
	return vm.run(current, f)
}

func (vm *VM) invokeNative(current *thread.Handle, owner *classloader.ClassType, mi *classloader.MethodInfo, this *object.Variable, args []*object.Variable) ExecResult {
	isStatic := mi.AccessFlags&classloader.AccStatic != 0
	fn, ok := vm.Natives.Lookup(owner.Name, mi.Name, mi.Descriptor, isStatic)
	if !ok {
		return newThrow(excnames.UnsatisfiedLinkError, owner.Name+"."+mi.Name+mi.Descriptor)
	}
	env := vm.nativeEnv(current)
	value, excInst, err := fn(env, this, args)
	if err != nil {
		return newInternalError(err.Error())
	}
	if excInst != nil {
		return throwResult(excInst, true)
	}
	return returnResult(value)
}
