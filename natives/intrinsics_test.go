/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package natives

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"embervm/classloader"
	"embervm/frame"
	"embervm/object"
	"embervm/stringpool"
	"embervm/thread"
	"embervm/types"
)

func arraycopyFunc(t *testing.T) Func {
	r := NewRegistry()
	registerSystemIntrinsics(r)
	fn, ok := r.Lookup("java/lang/System", "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V", true)
	require.True(t, ok)
	return fn
}

// Overlapping same-array copies where the destination runs ahead of
// the source need memmove semantics: copying [0,4) to [1,5) must shift
// every element right by one, not flood the range with the first
// element.
func TestArraycopyOverlappingForwardShift(t *testing.T) {
	fn := arraycopyFunc(t)
	arr := object.NewPrimitiveArray(types.Int, 5)
	for i := int32(0); i < 4; i++ {
		arr.SetAt(i, object.NewInt(i))
	}
	ref := object.NewArrayRef(arr)

	_, exc, err := fn(&Env{}, nil, []*object.Variable{ref, object.NewInt(0), ref, object.NewInt(1), object.NewInt(4)})
	require.NoError(t, err)
	require.Nil(t, exc)

	want := []int32{0, 0, 1, 2, 3}
	for i, w := range want {
		v, ok := arr.GetAt(int32(i))
		require.True(t, ok)
		assert.Equal(t, w, v.Int32(), "index %d", i)
	}
}

// A non-overlapping copy between two distinct arrays must still behave
// like a plain copy.
func TestArraycopyNonOverlapping(t *testing.T) {
	fn := arraycopyFunc(t)
	src := object.NewPrimitiveArray(types.Int, 3)
	for i := int32(0); i < 3; i++ {
		src.SetAt(i, object.NewInt(i+10))
	}
	dst := object.NewPrimitiveArray(types.Int, 3)

	_, exc, err := fn(&Env{}, nil, []*object.Variable{
		object.NewArrayRef(src), object.NewInt(0),
		object.NewArrayRef(dst), object.NewInt(0),
		object.NewInt(3),
	})
	require.NoError(t, err)
	require.Nil(t, exc)

	for i := int32(0); i < 3; i++ {
		v, ok := dst.GetAt(i)
		require.True(t, ok)
		assert.Equal(t, i+10, v.Int32())
	}
}

func fillInStackTraceFunc(t *testing.T) Func {
	r := NewRegistry()
	registerThrowableIntrinsics(r)
	fn, ok := r.Lookup("java/lang/Throwable", "fillInStackTrace", "(I)Ljava/lang/Throwable;", false)
	require.True(t, ok)
	return fn
}

// fillInStackTrace resolves real dotted class names, method names,
// source files, and line numbers from the live call stack rather than
// leaving them null or stashing the raw bytecode offset.
func TestFillInStackTraceResolvesRealFrameInfo(t *testing.T) {
	fn := fillInStackTraceFunc(t)

	ct := &classloader.ClassType{Name: "com/example/Main", SourceFile: "Main.java"}
	mi := &classloader.MethodInfo{
		Name:       "main",
		Descriptor: "([Ljava/lang/String;)V",
		Code: &classloader.CodeAttr{
			MaxStack:  4,
			MaxLocals: 1,
			Code:      []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			LineNumberTable: []classloader.LineNumberEntry{
				{StartPC: 0, LineNumber: 10},
				{StartPC: 5, LineNumber: 42},
			},
		},
	}
	f := frame.New(ct, mi, nil, nil)
	f.PC = 7

	th := thread.New("main")
	th.PushFrame(f)

	env := &Env{Current: th, Strings: stringpool.NewStringTable()}
	this := object.NewRef(object.NewInstance("java/lang/Throwable"))
	this.Ref.InitField("backtrace", "Ljava/lang/Object;")
	this.Ref.InitField("stackTrace", "[Ljava/lang/StackTraceElement;")

	result, exc, err := fn(env, this, []*object.Variable{object.NewInt(0)})
	require.NoError(t, err)
	require.Nil(t, exc)
	require.NotNil(t, result)

	backtrace, ok := this.Ref.GetField("backtrace", "Ljava/lang/Object;")
	require.True(t, ok)
	require.NotNil(t, backtrace.Arr)
	require.Equal(t, uint32(1), backtrace.Arr.Length)

	elemVar, ok := backtrace.Arr.GetAt(0)
	require.True(t, ok)
	elem := elemVar.Ref

	declClass, ok := elem.GetField("declaringClass", "Ljava/lang/String;")
	require.True(t, ok)
	assert.Equal(t, "com.example.Main", declClass.Ref.InternalString())

	methodName, ok := elem.GetField("methodName", "Ljava/lang/String;")
	require.True(t, ok)
	assert.Equal(t, "main", methodName.Ref.InternalString())

	fileName, ok := elem.GetField("fileName", "Ljava/lang/String;")
	require.True(t, ok)
	assert.Equal(t, "Main.java", fileName.Ref.InternalString())

	line, ok := elem.GetField("lineNumber", "I")
	require.True(t, ok)
	assert.Equal(t, int32(42), line.Int32())
}
