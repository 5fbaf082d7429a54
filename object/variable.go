/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package object implements spec §3/§4.F's variable model together with
// the class-instance and array representations that variables of kind
// Ref/ArrayRef point to. The three are kept in one package because a
// class instance's fields are themselves Variables, and a Variable's
// Ref payload is a *Instance -- splitting them would only create an
// import cycle.
package object

import (
	"fmt"
	"math"

	"embervm/types"
)

// Variable is the tagged union described in spec §3/§4.F. Exactly one
// of the payload fields is meaningful, selected by Kind.
type Variable struct {
	Kind types.Kind

	boolVal bool
	numVal  int64   // byte/char/short/int/long, and bit patterns for float/double
	fltVal  float64 // not written by any constructor; float/double payloads are read from numVal's bits

	Ref   *Instance
	Arr   *Array
}

// NewBoolean, NewByte, ... construct variables of each primitive kind.

func NewBoolean(v bool) *Variable { return &Variable{Kind: types.Boolean, boolVal: v} }
func NewByte(v int8) *Variable    { return &Variable{Kind: types.Byte, numVal: int64(v)} }
func NewChar(v uint16) *Variable  { return &Variable{Kind: types.Char, numVal: int64(v)} }
func NewShort(v int16) *Variable  { return &Variable{Kind: types.Short, numVal: int64(v)} }
func NewInt(v int32) *Variable    { return &Variable{Kind: types.Int, numVal: int64(v)} }
func NewLong(v int64) *Variable   { return &Variable{Kind: types.Long, numVal: v} }

func NewFloat(v float32) *Variable {
	return &Variable{Kind: types.Float, numVal: int64(math.Float32bits(v))}
}

func NewDouble(v float64) *Variable {
	return &Variable{Kind: types.Double, numVal: int64(math.Float64bits(v))}
}

func NewNull() *Variable { return &Variable{Kind: types.Null} }

func NewRef(inst *Instance) *Variable {
	if inst == nil {
		return NewNull()
	}
	return &Variable{Kind: types.Ref, Ref: inst}
}

func NewArrayRef(a *Array) *Variable {
	if a == nil {
		return NewNull()
	}
	return &Variable{Kind: types.ArrayRef, Arr: a}
}

// NewDefaultVariable returns the zero value appropriate for kind: false,
// 0, 0.0, or null, per spec §4.F.
func NewDefaultVariable(kind types.Kind) *Variable {
	switch kind {
	case types.Boolean:
		return NewBoolean(false)
	case types.Byte:
		return NewByte(0)
	case types.Char:
		return NewChar(0)
	case types.Short:
		return NewShort(0)
	case types.Int:
		return NewInt(0)
	case types.Long:
		return NewLong(0)
	case types.Float:
		return NewFloat(0)
	case types.Double:
		return NewDouble(0)
	default:
		return NewNull()
	}
}

// Bool, Int64, Float64 are typed readers. Integer kinds (byte/char/
// short/int/long) are all readable through Int64; float/double through
// Float64. Reading through the wrong accessor still returns a usable
// value (the JVM operand stack often widens byte/char/short to int).

func (v *Variable) Bool() bool { return v.boolVal }

func (v *Variable) Int64() int64 {
	return v.numVal
}

func (v *Variable) Int32() int32 { return int32(v.numVal) }

func (v *Variable) Float32() float32 {
	return math.Float32frombits(uint32(v.numVal))
}

func (v *Variable) Float64() float64 {
	return math.Float64frombits(uint64(v.numVal))
}

// IsNull reports whether this variable is the null reference.
func (v *Variable) IsNull() bool {
	return v.Kind == types.Null || ((v.Kind == types.Ref) && v.Ref == nil) ||
		((v.Kind == types.ArrayRef) && v.Arr == nil)
}

// String renders a variable for diagnostics (trace logging, stack
// traces); it is not the Java-level toString.
func (v *Variable) String() string {
	switch v.Kind {
	case types.Boolean:
		return fmt.Sprintf("boolean(%v)", v.boolVal)
	case types.Byte, types.Char, types.Short, types.Int, types.Long:
		return fmt.Sprintf("%s(%d)", v.Kind, v.numVal)
	case types.Float:
		return fmt.Sprintf("float(%v)", v.Float32())
	case types.Double:
		return fmt.Sprintf("double(%v)", v.Float64())
	case types.Null:
		return "null"
	case types.Ref:
		if v.Ref == nil {
			return "null"
		}
		return "ref(" + v.Ref.ClassName() + ")"
	case types.ArrayRef:
		if v.Arr == nil {
			return "null"
		}
		return fmt.Sprintf("arrayref(%s x%d)", v.Arr.ElementKind, v.Arr.Length)
	default:
		return "?"
	}
}

// WidenToLong, WidenToFloat, WidenToDouble implement the JVM's implicit
// widening conversions. The interpreter's conversion opcodes (I2L,
// I2F, etc.) build their results directly and do not call them.

func (v *Variable) WidenToLong() *Variable   { return NewLong(v.Int64()) }
func (v *Variable) WidenToFloat() *Variable  { return NewFloat(float32(v.numAsFloat())) }
func (v *Variable) WidenToDouble() *Variable { return NewDouble(v.numAsFloat()) }

func (v *Variable) numAsFloat() float64 {
	switch v.Kind {
	case types.Float:
		return float64(v.Float32())
	case types.Double:
		return v.Float64()
	default:
		return float64(v.numVal)
	}
}
