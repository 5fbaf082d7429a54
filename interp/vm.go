/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package interp

import (
	"fmt"

	"embervm/classloader"
	"embervm/excnames"
	"embervm/log"
	"embervm/natives"
	"embervm/object"
	"embervm/stringpool"
	"embervm/thread"
	"embervm/types"
)

// VM bundles every shared, process-wide component the interpreter
// needs: the class source registry, the native-method registry, the
// thread registry, and the string intern table (spec §5 "Shared
// mutable state... each guarded by a dedicated mutex").
type VM struct {
	Registry *classloader.Registry
	Natives  *natives.Registry
	Threads  *thread.Registry
	Strings  *stringpool.StringTable
	Names    *stringpool.Pool
}

// NewVM wires a fresh VM around an already-populated class registry,
// installing the default intrinsics from spec §4.L.
func NewVM(registry *classloader.Registry) *VM {
	nativeRegistry := natives.NewRegistry()
	natives.MustRegisterDefaults(nativeRegistry)
	return &VM{
		Registry: registry,
		Natives:  nativeRegistry,
		Threads:  thread.NewRegistry(),
		Strings:  stringpool.NewStringTable(),
		Names:    stringpool.NewPool(),
	}
}

// nativeEnv builds the natives.Env a native call needs, wiring Invoke
// back to vm.invokeForNative so natives like AccessController.
// doPrivileged can re-enter interpreted code without natives importing
// this package.
func (vm *VM) nativeEnv(current *thread.Handle) *natives.Env {
	return &natives.Env{
		Registry: vm.Registry,
		Threads:  vm.Threads,
		Strings:  vm.Strings,
		Current:  current,
		Invoke:   func(class, name, desc string, this *object.Variable, args []*object.Variable) (*object.Variable, *object.Instance, error) {
			res := vm.invokeForNative(current, class, name, desc, this, args)
			switch res.Kind {
			case ResThrow:
				return nil, res.Thrown, nil
			case ResInvalid:
				return nil, nil, errInvalid(res.Message)
			default:
				return res.Value, nil, nil
			}
		},
	}
}

func (vm *VM) invokeForNative(current *thread.Handle, class, name, desc string, this *object.Variable, args []*object.Variable) ExecResult {
	ct, err := vm.Registry.Resolve(class)
	if err != nil {
		return invalidResult("resolving %s for native re-entry: %v", class, err)
	}
	owner, mi, err := vm.Registry.FindMethod(ct, name, desc)
	if err != nil {
		return invalidResult("resolving %s.%s%s for native re-entry: %v", class, name, desc, err)
	}
	return vm.invokeResolved(current, owner, mi, this, args)
}

// EnsureStaticInitializerCalled runs ct's <clinit> exactly once,
// guarded by ct's own monitor so concurrent callers serialize rather
// than racing, per spec §4.K/§8 "EnsureStaticInitializerCalled runs
// exactly once per class across threads".
func (vm *VM) EnsureStaticInitializerCalled(current *thread.Handle, ct *classloader.ClassType) ExecResult {
	threadOwner := uint64(0)
	if current != nil {
		threadOwner = current.MonitorID()
	}
	ct.Monitor.Enter(threadOwner)
	defer ct.Monitor.Leave(threadOwner)

	switch ct.ClinitState() {
	case types.ClInitRun, types.NoClinit:
		return voidResult()
	case types.ClInitInProgress:
		return voidResult() // reentrant call from within clinit itself
	}

	ct.SetClinitState(types.ClInitInProgress)

	if superName := ct.SuperName; superName != "" {
		super, err := vm.Registry.Resolve(superName)
		if err != nil {
			return invalidResult("resolving superclass %s of %s: %v", superName, ct.Name, err)
		}
		if res := vm.EnsureStaticInitializerCalled(current, super); res.IsThrown() {
			return res
		}
	}

	mi, ok := ct.FindDeclaredMethod("<clinit>", "()V")
	if !ok {
		ct.SetClinitState(types.ClInitRun)
		return voidResult()
	}

	log.Log("running <clinit> for "+ct.Name, log.FINE)
	res := vm.invokeResolved(current, ct, mi, nil, nil)
	ct.SetClinitState(types.ClInitRun)
	return res
}

// newInternalError builds an InternalError throwable with catchable
// false (spec §7 plane 2).
func newInternalError(msg string) ExecResult {
	inst := object.NewInstance(excnames.InternalError)
	inst.InitField("detailMessage", "Ljava/lang/String;")
	inst.SetInternalString(msg)
	return throwResult(inst, false)
}

// newThrow builds a catchable throwable of the given class with msg
// stashed in its internal string slot.
func newThrow(className, msg string) ExecResult {
	inst := object.NewInstance(className)
	inst.InitField("detailMessage", "Ljava/lang/String;")
	inst.SetInternalString(msg)
	return throwResult(inst, true)
}

func errInvalid(msg string) error { return fmt.Errorf("embervm: %s", msg) }

// newJavaString returns the canonical java/lang/String instance for
// content, constructing and interning it on first use (spec §8 "Intern
// table"; every LDC of a String constant resolves through the same
// pool literal strings would use).
func (vm *VM) newJavaString(content string) *object.Instance {
	return vm.Strings.Intern(content, func() *object.Instance {
		inst := object.NewInstance("java/lang/String")
		inst.SetInternalString(content)
		return inst
	})
}

// newJavaClass builds a java/lang/Class instance standing for
// className, the same shape natives.getClass hands back (spec §9:
// instances recover their ClassType by name through the registry
// rather than holding a pointer to it).
func (vm *VM) newJavaClass(className string) *object.Instance {
	inst := object.NewInstance("java/lang/Class")
	inst.SetInternalString(className)
	return inst
}
