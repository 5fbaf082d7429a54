/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package interp

import (
	"embervm/classloader"
	"embervm/excnames"
	"embervm/globals"
	"embervm/object"
	"embervm/thread"
	"embervm/types"
)

// Prepare runs the bootstrap sequence of spec §6: registers the main
// thread, stands up the thread-group/main-thread pair the rest of the
// class library expects to find live, and runs System's own static
// initializer. Returns the main thread handle so the caller can invoke
// `main([Ljava/lang/String;)V` on it. supplied overrides the defaults
// already seeded into globals.GetGlobalRef().SystemProperties.
func (vm *VM) Prepare(supplied map[string]string) (*thread.Handle, ExecResult) {
	props := globals.GetGlobalRef().SystemProperties
	for k, v := range supplied {
		props[k] = v
	}

	main := thread.New("main")
	vm.Threads.Register(main)

	threadGroupClass, err := vm.Registry.Resolve("java/lang/ThreadGroup")
	if err != nil {
		return main, invalidResult("resolving java/lang/ThreadGroup: %v", err)
	}
	if res := vm.EnsureStaticInitializerCalled(main, threadGroupClass); res.IsThrown() {
		return main, res
	}

	systemGroup := object.NewInstance("java/lang/ThreadGroup")
	initInstanceFields(vm, threadGroupClass, systemGroup)
	if res := vm.construct(main, threadGroupClass, systemGroup, "()V", nil); res.IsThrown() {
		return main, res
	}

	mainGroup := object.NewInstance("java/lang/ThreadGroup")
	initInstanceFields(vm, threadGroupClass, mainGroup)

	classClass, err := vm.Registry.Resolve("java/lang/Class")
	if err != nil {
		return main, invalidResult("resolving java/lang/Class: %v", err)
	}
	if res := vm.EnsureStaticInitializerCalled(main, classClass); res.IsThrown() {
		return main, res
	}
	classClass.SetStaticField("useCaches", "Z", object.NewBoolean(false))

	for _, name := range []string{"java/io/InputStream", "java/io/PrintStream", "java/lang/SecurityManager"} {
		ct, err := vm.Registry.Resolve(name)
		if err != nil {
			continue // not every embedding classpath carries the full class library
		}
		if res := vm.EnsureStaticInitializerCalled(main, ct); res.IsThrown() {
			return main, res
		}
	}

	if res := vm.construct(main, threadGroupClass, mainGroup,
		"(Ljava/lang/Void;Ljava/lang/ThreadGroup;Ljava/lang/String;)V",
		[]*object.Variable{object.NewNull(), object.NewRef(systemGroup), object.NewRef(vm.newJavaString("main"))}); res.IsThrown() {
		return main, res
	}

	// sun/security/util/Debug's static initializer talks to system
	// properties this interpreter does not model; disabling it here
	// matches real embedding JVMs' headless bootstraps, which skip it
	// when no security policy is configured.
	if debugClass, err := vm.Registry.Resolve("sun/security/util/Debug"); err == nil {
		debugClass.SetClinitState(types.ClInitRun)
	}

	javaThreadClass, err := vm.Registry.Resolve("java/lang/Thread")
	if err != nil {
		return main, invalidResult("resolving java/lang/Thread: %v", err)
	}
	javaThread := object.NewInstance("java/lang/Thread")
	initInstanceFields(vm, javaThreadClass, javaThread)
	javaThread.SetField("group", "Ljava/lang/ThreadGroup;", object.NewRef(mainGroup))
	main.JavaThread = javaThread

	if res := vm.construct(main, javaThreadClass, javaThread,
		"(Ljava/lang/ThreadGroup;Ljava/lang/String;)V",
		[]*object.Variable{object.NewRef(mainGroup), object.NewRef(vm.newJavaString("main"))}); res.IsThrown() {
		return main, res
	}

	if utf8Class, err := vm.Registry.Resolve("sun/nio/cs/UTF_8"); err == nil {
		if res := vm.EnsureStaticInitializerCalled(main, utf8Class); res.IsThrown() {
			return main, res
		}
		utf8Inst := object.NewInstance("sun/nio/cs/UTF_8")
		initInstanceFields(vm, utf8Class, utf8Inst)
		if res := vm.construct(main, utf8Class, utf8Inst, "()V", nil); res.IsThrown() {
			return main, res
		}
		if charsetClass, err := vm.Registry.Resolve("java/nio/charset/Charset"); err == nil {
			if res := vm.EnsureStaticInitializerCalled(main, charsetClass); res.IsThrown() {
				return main, res
			}
			charsetClass.SetStaticField("defaultCharset", "Ljava/nio/charset/Charset;", object.NewRef(utf8Inst))
		}
	}

	if systemClass, err := vm.Registry.Resolve("java/lang/System"); err == nil {
		if mi, ok := systemClass.FindDeclaredMethod("initializeSystemClass", "()V"); ok {
			if res := vm.invokeResolved(main, systemClass, mi, nil, nil); res.IsThrown() {
				return main, res
			}
		}
	}

	return main, voidResult()
}

// construct resolves and invokes an instance's own constructor via
// InvokeSpecial, the ordinary path a NEW + INVOKESPECIAL <init> pair
// takes in interpreted code.
func (vm *VM) construct(current *thread.Handle, ct *classloader.ClassType, inst *object.Instance, desc string, args []*object.Variable) ExecResult {
	return vm.InvokeSpecial(current, ct.Name, "<init>", desc, object.NewRef(inst), args)
}

// initInstanceFields seeds inst's instance fields (declared on ct and
// every superclass) at their type defaults, the same walk execNew does
// for interpreted NEW -- bootstrap-constructed instances need the same
// treatment since they never pass through the bytecode's own NEW.
func initInstanceFields(vm *VM, ct *classloader.ClassType, inst *object.Instance) {
	for cur := ct; cur != nil; {
		for _, fld := range cur.Fields {
			if fld.AccessFlags&classloader.AccStatic == 0 {
				inst.InitField(fld.Name, fld.Descriptor)
			}
		}
		next, isObject, err := vm.Registry.Super(cur)
		if err != nil || isObject {
			break
		}
		cur = next
	}
}

// RunMain resolves mainClass, ensures it carries a `main([Ljava/lang/
// String;)V` entry point, and invokes it with args wrapped as a Java
// String[] (spec §6 "obtain a class type for the main class; invoke
// main").
func (vm *VM) RunMain(current *thread.Handle, mainClass string, args []string) ExecResult {
	ct, err := vm.Registry.Resolve(mainClass)
	if err != nil {
		return invalidResult("resolving main class %s: %v", mainClass, err)
	}
	argArr := object.NewRefArray("java/lang/String", uint32(len(args)), 1)
	for i, a := range args {
		argArr.SetAt(int32(i), object.NewRef(vm.newJavaString(a)))
	}
	mi, ok := ct.FindDeclaredMethod("main", "([Ljava/lang/String;)V")
	if !ok {
		return newThrow(excnames.NoSuchMethodError, mainClass+".main([Ljava/lang/String;)V")
	}
	return vm.invokeResolved(current, ct, mi, nil, []*object.Variable{object.NewArrayRef(argArr)})
}
