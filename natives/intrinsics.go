/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package natives

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unsafe"

	"embervm/classloader"
	"embervm/excnames"
	"embervm/object"
)

// registerObjectIntrinsics installs java/lang/Object's native methods
// (spec §4.L).
func registerObjectIntrinsics(r *Registry) {
	r.RegisterStatic("java/lang/Object", "registerNatives", "()V", noop)

	r.RegisterInstance("java/lang/Object", "getClass", "()Ljava/lang/Class;", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		classInst := object.NewInstance("java/lang/Class")
		classInst.SetInternalString(mustThis(this).ClassName())
		return object.NewRef(classInst), nil, nil
	})

	r.RegisterInstance("java/lang/Object", "hashCode", "()I", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		return object.NewInt(identityHash(this)), nil, nil
	})

	r.RegisterInstance("java/lang/Object", "notify", "()V", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		this.Ref.Monitor.Notify()
		return nil, nil, nil
	})

	r.RegisterInstance("java/lang/Object", "notifyAll", "()V", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		this.Ref.Monitor.NotifyAll()
		return nil, nil, nil
	})

	r.RegisterInstance("java/lang/Object", "wait", "(J)V", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		ms := args[0].Int64()
		if ms > 0 {
			this.Ref.Monitor.WaitFor(threadID(env), ms)
		} else {
			this.Ref.Monitor.Wait(threadID(env))
		}
		return nil, nil, nil
	})
}

// registerClassIntrinsics installs java/lang/Class's native methods.
func registerClassIntrinsics(r *Registry) {
	r.RegisterStatic("java/lang/Class", "registerNatives", "()V", noop)

	r.RegisterStatic("java/lang/Class", "getPrimitiveClass", "(Ljava/lang/String;)Ljava/lang/Class;", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		inst := object.NewInstance("java/lang/Class")
		if args[0] != nil && args[0].Ref != nil {
			inst.SetInternalString(args[0].Ref.InternalString())
		}
		inst.InitField("primitive", "Z")
		inst.SetField("primitive", "Z", object.NewBoolean(true))
		return object.NewRef(inst), nil, nil
	})

	r.RegisterInstance("java/lang/Class", "desiredAssertionStatus0", "(Ljava/lang/Class;)Z", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		return object.NewBoolean(false), nil, nil
	})

	r.RegisterStatic("java/lang/Class", "forName0", "(Ljava/lang/String;ZLjava/lang/ClassLoader;Ljava/lang/Class;)Ljava/lang/Class;", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		return nil, nil, fmt.Errorf("embervm: Class.forName0 not implemented for dynamic lookup")
	})

	r.RegisterInstance("java/lang/Class", "getDeclaredFields0", "(Z)[Ljava/lang/reflect/Field;", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		return object.NewArrayRef(object.NewRefArray("java/lang/reflect/Field", 0, 1)), nil, nil
	})

	r.RegisterInstance("java/lang/Class", "isInterface", "()Z", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		ct, err := classTypeOfClassInstance(env, this)
		if err != nil {
			return nil, nil, err
		}
		return object.NewBoolean(ct.IsInterface()), nil, nil
	})

	r.RegisterInstance("java/lang/Class", "isPrimitive", "()Z", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		v, ok := this.Ref.GetField("primitive", "Z")
		if !ok {
			return object.NewBoolean(false), nil, nil
		}
		return object.NewBoolean(v.Bool()), nil, nil
	})

	r.RegisterInstance("java/lang/Class", "isAssignableFrom", "(Ljava/lang/Class;)Z", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		from, err := classTypeOfClassInstance(env, args[0])
		if err != nil {
			return nil, nil, err
		}
		to, err := classTypeOfClassInstance(env, this)
		if err != nil {
			return nil, nil, err
		}
		return object.NewBoolean(env.Registry.CanCastTo(from, to)), nil, nil
	})

	r.RegisterInstance("java/lang/Class", "getModifiers", "()I", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		ct, err := classTypeOfClassInstance(env, this)
		if err != nil {
			return nil, nil, err
		}
		return object.NewInt(int32(ct.AccessFlags)), nil, nil
	})
}

// registerSystemIntrinsics installs java/lang/System's native methods.
func registerSystemIntrinsics(r *Registry) {
	r.RegisterStatic("java/lang/System", "registerNatives", "()V", noop)
	r.RegisterStatic("java/lang/System", "initProperties", "(Ljava/util/Properties;)Ljava/util/Properties;", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		return args[0], nil, nil
	})

	r.RegisterStatic("java/lang/System", "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		src, srcPos, dst, dstPos, length := args[0], args[1].Int32(), args[2], args[3].Int32(), args[4].Int32()
		if src.Arr == nil || dst.Arr == nil {
			return nil, newNPE("arraycopy source/destination is null"), nil
		}
		// Overlapping same-array copies need memmove semantics: when the
		// destination runs ahead of the source, copying front-to-back
		// would read slots this same call already overwrote. Copying
		// back-to-front instead visits every source slot before it's
		// clobbered.
		backward := src.Arr == dst.Arr && dstPos > srcPos
		if backward {
			for i := length - 1; i >= 0; i-- {
				v, ok := src.Arr.GetAt(srcPos + i)
				if !ok {
					return nil, newException("java/lang/ArrayIndexOutOfBoundsException", "arraycopy source index out of range"), nil
				}
				if !dst.Arr.SetAt(dstPos+i, v) {
					return nil, newException("java/lang/ArrayIndexOutOfBoundsException", "arraycopy destination index out of range"), nil
				}
			}
			return nil, nil, nil
		}
		for i := int32(0); i < length; i++ {
			v, ok := src.Arr.GetAt(srcPos + i)
			if !ok {
				return nil, newException("java/lang/ArrayIndexOutOfBoundsException", "arraycopy source index out of range"), nil
			}
			if !dst.Arr.SetAt(dstPos+i, v) {
				return nil, newException("java/lang/ArrayIndexOutOfBoundsException", "arraycopy destination index out of range"), nil
			}
		}
		return nil, nil, nil
	})

	for _, name := range []string{"setIn0", "setOut0", "setErr0"} {
		r.RegisterStatic("java/lang/System", name, "(Ljava/io/InputStream;)V", noop)
	}

	r.RegisterStatic("java/lang/System", "mapLibraryName", "(Ljava/lang/String;)Ljava/lang/String;", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		return args[0], nil, nil
	})

	r.RegisterStatic("java/lang/System", "loadLibrary", "(Ljava/lang/String;)V", noop)

	r.RegisterStatic("java/lang/System", "currentTimeMillis", "()J", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		return object.NewLong(time.Now().UnixMilli()), nil, nil
	})

	r.RegisterStatic("java/lang/System", "identityHashCode", "(Ljava/lang/Object;)I", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		return object.NewInt(identityHash(args[0])), nil, nil
	})
}

// registerThreadIntrinsics installs java/lang/Thread's native methods.
func registerThreadIntrinsics(r *Registry) {
	r.RegisterStatic("java/lang/Thread", "registerNatives", "()V", noop)

	r.RegisterStatic("java/lang/Thread", "currentThread", "()Ljava/lang/Thread;", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		if env.Current == nil || env.Current.JavaThread == nil {
			return object.NewNull(), nil, nil
		}
		return object.NewRef(env.Current.JavaThread), nil, nil
	})

	r.RegisterInstance("java/lang/Thread", "setPriority0", "(I)V", noop)

	r.RegisterInstance("java/lang/Thread", "isAlive", "()Z", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		return object.NewBoolean(true), nil, nil
	})

	r.RegisterInstance("java/lang/Thread", "start0", "()V", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		_, excInst, err := env.Invoke("java/lang/Thread", "run", "()V", this, nil)
		return nil, excInst, err
	})
}

// registerThrowableIntrinsics installs java/lang/Throwable's native
// methods, notably fillInStackTrace (spec §4.L).
func registerThrowableIntrinsics(r *Registry) {
	r.RegisterInstance("java/lang/Throwable", "fillInStackTrace", "(I)Ljava/lang/Throwable;", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		if env.Current == nil {
			return object.NewRef(this.Ref), nil, nil
		}
		trace := env.Current.StackTrace()
		depth := int32(0)
		for _, e := range trace {
			if e.CallerSensitive {
				continue
			}
			depth++
		}
		arr := object.NewRefArray("java/lang/StackTraceElement", uint32(depth), 1)
		i := int32(0)
		for _, e := range trace {
			if e.CallerSensitive {
				continue
			}
			elem := object.NewInstance("java/lang/StackTraceElement")
			elem.SetField("declaringClass", "Ljava/lang/String;", object.NewRef(internedString(env, strings.ReplaceAll(e.ClassName, "/", "."))))
			elem.SetField("methodName", "Ljava/lang/String;", object.NewRef(internedString(env, e.MethodName)))
			if e.SourceFile != "" {
				elem.SetField("fileName", "Ljava/lang/String;", object.NewRef(internedString(env, e.SourceFile)))
			} else {
				elem.SetField("fileName", "Ljava/lang/String;", object.NewNull())
			}
			elem.SetField("lineNumber", "I", object.NewInt(int32(e.Line)))
			arr.SetAt(i, object.NewRef(elem))
			i++
		}
		this.Ref.SetField("backtrace", "Ljava/lang/Object;", object.NewArrayRef(arr))
		this.Ref.SetField("stackTrace", "[Ljava/lang/StackTraceElement;", object.NewNull())
		return object.NewRef(this.Ref), nil, nil
	})

	r.RegisterInstance("java/lang/Throwable", "getStackTraceDepth", "()I", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		arr := backtraceArray(this)
		if arr == nil {
			return object.NewInt(0), nil, nil
		}
		return object.NewInt(int32(arr.Length)), nil, nil
	})

	r.RegisterInstance("java/lang/Throwable", "getStackTraceElement", "(I)Ljava/lang/StackTraceElement;", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		arr := backtraceArray(this)
		if arr == nil {
			return object.NewNull(), nil, nil
		}
		v, ok := arr.GetAt(args[0].Int32())
		if !ok {
			return nil, newException("java/lang/ArrayIndexOutOfBoundsException", "no such stack trace element"), nil
		}
		return v, nil, nil
	})
}

func backtraceArray(this *object.Variable) *object.Array {
	v, ok := this.Ref.GetField("backtrace", "Ljava/lang/Object;")
	if !ok || v.IsNull() {
		return nil
	}
	return v.Arr
}

// registerNumericIntrinsics installs java/lang/Double and
// java/lang/Float's raw bit conversion natives.
func registerNumericIntrinsics(r *Registry) {
	r.RegisterStatic("java/lang/Double", "doubleToRawLongBits", "(D)J", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		return object.NewLong(args[0].Int64()), nil, nil
	})
	r.RegisterStatic("java/lang/Double", "longBitsToDouble", "(J)D", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		return object.NewDouble(object.NewLong(args[0].Int64()).Float64()), nil, nil
	})
	r.RegisterStatic("java/lang/Float", "floatToRawIntBits", "(F)I", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		return object.NewInt(args[0].Int32()), nil, nil
	})
	r.RegisterStatic("java/lang/Float", "intBitsToFloat", "(I)F", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		return object.NewFloat(object.NewInt(args[0].Int32()).Float32()), nil, nil
	})
}

// registerMiscIntrinsics installs the handful of sun.* bootstrap
// intrinsics named in spec §4.L.
func registerMiscIntrinsics(r *Registry) {
	r.RegisterStatic("sun/reflect/Reflection", "getCallerClass", "()Ljava/lang/Class;", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		if env.Current == nil {
			return object.NewNull(), nil, nil
		}
		for _, e := range env.Current.StackTrace() {
			if e.CallerSensitive {
				continue
			}
			inst := object.NewInstance("java/lang/Class")
			inst.SetField("name", "Ljava/lang/String;", object.NewNull())
			return object.NewRef(inst), nil, nil
		}
		return object.NewNull(), nil, nil
	})

	r.RegisterStatic("sun/reflect/Reflection", "getClassAccessFlags", "(Ljava/lang/Class;)I", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		ct, err := classTypeOfClassInstance(env, args[0])
		if err != nil {
			return nil, nil, err
		}
		return object.NewInt(int32(ct.AccessFlags)), nil, nil
	})

	r.RegisterStatic("sun/misc/Unsafe", "registerNatives", "()V", noop)
	r.RegisterStatic("java/util/concurrent/atomic/AtomicLong", "VMSupportsCS8", "()Z", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		return object.NewBoolean(false), nil, nil
	})
	r.RegisterStatic("sun/misc/VM", "initialize", "()V", noop)
	r.RegisterInstance("sun/misc/Signal", "handle0", "(Ljava/lang/String;J)J", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		return object.NewLong(2), nil, nil
	})

	r.RegisterStatic("java/security/AccessController", "doPrivileged", "(Ljava/security/PrivilegedAction;)Ljava/lang/Object;", func(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
		return env.Invoke("java/security/PrivilegedAction", "run", "()Ljava/lang/Object;", args[0], nil)
	})
}

func noop(env *Env, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
	return nil, nil, nil
}

// classTypeOfClassInstance resolves the ClassType a java/lang/Class
// instance stands for. The instance does not hold a pointer to it
// (spec §9: instances never own their type), so the slash-form name is
// recovered from the instance's internal string payload and handed to
// the registry, which owns the authoritative ClassType values.
func classTypeOfClassInstance(env *Env, classVar *object.Variable) (*classloader.ClassType, error) {
	if classVar == nil || classVar.Ref == nil {
		return nil, fmt.Errorf("embervm: null Class reference")
	}
	name := classVar.Ref.InternalString()
	return env.Registry.Resolve(name)
}

func mustThis(this *object.Variable) *object.Instance { return this.Ref }

// identityHash derives System.identityHashCode from the instance's own
// address, the same source real JVMs typically use before an object is
// ever moved by a copying collector; embervm never moves objects, so
// the address is stable for the instance's whole lifetime.
func identityHash(v *object.Variable) int32 {
	if v == nil || v.Ref == nil {
		return 0
	}
	return int32(uintptr(unsafe.Pointer(v.Ref)))
}

var anonThreadSeq uint64

// threadID derives this call's monitor-owner id. A native invoked with
// no Current (unit tests exercising a native directly) still needs a
// nonzero, distinct id per call.
func threadID(env *Env) uint64 {
	if env.Current == nil {
		return atomic.AddUint64(&anonThreadSeq, 1)
	}
	return env.Current.MonitorID()
}

func newNPE(msg string) *object.Instance {
	return newException(excnames.NullPointerException, msg)
}

// newException builds a minimal, un-stack-traced Throwable instance of
// className. msg is stashed in the instance's internal string slot
// (see object.Instance.SetInternalString) rather than built into a
// full java/lang/String field, since a native raising an exception
// does not otherwise need a String object for it; interp's diagnostic
// rendering reads it back via the same slot.
func newException(className, msg string) *object.Instance {
	inst := object.NewInstance(className)
	inst.InitField("detailMessage", "Ljava/lang/String;")
	inst.SetInternalString(msg)
	return inst
}

// internedString returns the canonical java/lang/String instance for
// content through env's intern table, the same pool vm.newJavaString
// draws from, so StackTraceElement fields compare equal to any other
// String built from the same content (spec §8 "Intern table").
func internedString(env *Env, content string) *object.Instance {
	return env.Strings.Intern(content, func() *object.Instance {
		inst := object.NewInstance("java/lang/String")
		inst.SetInternalString(content)
		return inst
	})
}
