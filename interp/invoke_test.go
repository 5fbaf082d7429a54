/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package interp

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"embervm/classloader"
	"embervm/object"
	"embervm/thread"
)

// counterClinitClass builds a class whose <clinit> increments its own
// static field "n" by one: GETSTATIC n; ICONST_1; IADD; PUTSTATIC n;
// RETURN. Resolving the field requires the class itself to already be
// registered, since the field being touched belongs to the class
// running its own clinit.
func counterClinitClass(reg *classloader.Registry) *classloader.ClassType {
	cp := classloader.NewConstantPoolBuilder()
	fieldIdx := cp.Fieldref("Counter", "n", "I")

	code := []byte{
		opGetstatic, byte(fieldIdx >> 8), byte(fieldIdx),
		opIconst1,
		opIadd,
		opPutstatic, byte(fieldIdx >> 8), byte(fieldIdx),
		opReturn,
	}
	clinit := classloader.MethodInfo{
		Name:       "<clinit>",
		Descriptor: "()V",
		AccessFlags: classloader.AccStatic,
		Code:       &classloader.CodeAttr{MaxStack: 4, MaxLocals: 0, Code: code},
	}
	field := classloader.FieldInfo{AccessFlags: classloader.AccStatic, Name: "n", Descriptor: "I"}

	pc := &classloader.ParsedClassFile{
		ThisClass: "Counter",
		CP:        cp.Build(),
		Fields:    []classloader.FieldInfo{field},
		Methods:   []classloader.MethodInfo{clinit},
	}
	ct := classloader.NewClassType(pc)
	reg.Register(ct)
	return ct
}

// <clinit> runs exactly once per class, even when many goroutines race
// to trigger it concurrently.
func TestClinitRunsExactlyOnceUnderConcurrency(t *testing.T) {
	reg := classloader.NewRegistry(8)
	vm := NewVM(reg)
	ct := counterClinitClass(reg)

	const workers = 32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			th := thread.New("worker")
			res := vm.EnsureStaticInitializerCalled(th, ct)
			assert.False(t, res.IsThrown())
		}()
	}
	wg.Wait()

	v, ok := ct.GetStaticField("n", "I")
	require.True(t, ok)
	assert.Equal(t, int32(1), v.Int32())
}

// fibClass builds a class with a static recursive fib(int) -> int
// method equivalent to:
//
//	static int fib(int n) {
//	    if (n < 2) return n;
//	    return fib(n - 1) + fib(n - 2);
//	}
func fibClass(reg *classloader.Registry) *classloader.ClassType {
	cp := classloader.NewConstantPoolBuilder()
	methodIdx := cp.Methodref("Fib", "fib", "(I)I")

	// iload_0; iconst_2; if_icmpge L1; iload_0; ireturn
	// L1: iload_0; iconst_1; isub; invokestatic fib; iload_0; iconst_2;
	//     isub; invokestatic fib; iadd; ireturn
	code := []byte{
		opIload0, opIconst2, opIfIcmpge, 0x00, 0x05,
		opIload0, opIreturn,
		opIload0, opIconst1, opIsub, opInvokestatic, byte(methodIdx >> 8), byte(methodIdx),
		opIload0, opIconst2, opIsub, opInvokestatic, byte(methodIdx >> 8), byte(methodIdx),
		opIadd, opIreturn,
	}
	fib := classloader.MethodInfo{
		Name:        "fib",
		Descriptor:  "(I)I",
		AccessFlags: classloader.AccStatic,
		Code:        &classloader.CodeAttr{MaxStack: 4, MaxLocals: 1, Code: code},
	}
	pc := &classloader.ParsedClassFile{
		ThisClass: "Fib",
		CP:        cp.Build(),
		Methods:   []classloader.MethodInfo{fib},
	}
	ct := classloader.NewClassType(pc)
	reg.Register(ct)
	return ct
}

func TestInvokeStaticRecursiveFib(t *testing.T) {
	reg := classloader.NewRegistry(8)
	vm := NewVM(reg)
	fibClass(reg)
	th := thread.New("main")

	res := vm.InvokeStatic(th, "Fib", "fib", "(I)I", []*object.Variable{object.NewInt(10)})
	require.False(t, res.IsThrown())
	assert.Equal(t, int32(55), res.Value.Int32())
}

// counterInstanceClass builds a class with a synchronized instance
// method `bump` equivalent to:
//
//	synchronized void bump() { n = n + 1; }
func counterInstanceClass(reg *classloader.Registry) *classloader.ClassType {
	cp := classloader.NewConstantPoolBuilder()
	fieldIdx := cp.Fieldref("SharedCounter", "n", "I")

	code := []byte{
		opAload0, opDup, opGetfield, byte(fieldIdx >> 8), byte(fieldIdx),
		opIconst1, opIadd,
		opPutfield, byte(fieldIdx >> 8), byte(fieldIdx),
		opReturn,
	}
	bump := classloader.MethodInfo{
		Name:        "bump",
		Descriptor:  "()V",
		AccessFlags: classloader.AccSynchronized,
		Code:        &classloader.CodeAttr{MaxStack: 4, MaxLocals: 1, Code: code},
	}
	field := classloader.FieldInfo{Name: "n", Descriptor: "I"}
	pc := &classloader.ParsedClassFile{
		ThisClass: "SharedCounter",
		CP:        cp.Build(),
		Fields:    []classloader.FieldInfo{field},
		Methods:   []classloader.MethodInfo{bump},
	}
	ct := classloader.NewClassType(pc)
	reg.Register(ct)
	return ct
}

// A synchronized instance method serializes concurrent callers on the
// receiver's own monitor: many goroutines each invoking bump() many
// times must never lose an increment to a lost-update race.
func TestSynchronizedMethodSerializesConcurrentIncrements(t *testing.T) {
	reg := classloader.NewRegistry(8)
	vm := NewVM(reg)
	ct := counterInstanceClass(reg)

	inst := object.NewInstance("SharedCounter")
	inst.InitField("n", "I")
	this := object.NewRef(inst)

	const workers = 10
	const perWorker = 1000
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			th := thread.New("worker")
			for j := 0; j < perWorker; j++ {
				res := vm.InvokeVirtual(th, this, "bump", "()V", nil)
				assert.False(t, res.IsThrown())
			}
		}()
	}
	wg.Wait()

	v, ok := inst.GetField("n", "I")
	require.True(t, ok)
	assert.Equal(t, int32(workers*perWorker), v.Int32())
}
