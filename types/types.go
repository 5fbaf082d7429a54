/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package types holds the small, dependency-free vocabulary shared across
// the whole VM: JVM descriptor prefixes, the variable-kind tags, and the
// sentinel values used for "no such index" and "clinit not yet run".
package types

// Kind tags a Variable's payload. The interpreter and object model both
// switch on this value rather than relying on Go's type system, mirroring
// the discriminated-union style of the reference implementation.
type Kind byte

const (
	Boolean Kind = iota
	Byte
	Char
	Short
	Int
	Long
	Float
	Double
	Null
	Ref       // class-instance handle
	ArrayRef  // array handle
)

func (k Kind) String() string {
	switch k {
	case Boolean:
		return "boolean"
	case Byte:
		return "byte"
	case Char:
		return "char"
	case Short:
		return "short"
	case Int:
		return "int"
	case Long:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	case Null:
		return "null"
	case Ref:
		return "ref"
	case ArrayRef:
		return "arrayref"
	default:
		return "unknown"
	}
}

// IsCategory2 reports whether a kind occupies two local/stack slots,
// per the JVM spec (long and double only).
func (k Kind) IsCategory2() bool {
	return k == Long || k == Double
}

// Descriptor prefixes, as they appear in field/method descriptors.
const (
	DescBoolean   = "Z"
	DescByte      = "B"
	DescChar      = "C"
	DescShort     = "S"
	DescInt       = "I"
	DescLong      = "J"
	DescFloat     = "F"
	DescDouble    = "D"
	DescVoid      = "V"
	DescClassPfx  = "L"
	DescArrayPfx  = "["
)

// KindFromFieldDescriptor maps the first character of a field descriptor
// to the Kind that will hold its value. Class and array descriptors both
// map to Ref/ArrayRef respectively.
func KindFromFieldDescriptor(desc string) Kind {
	if desc == "" {
		return Null
	}
	switch string(desc[0]) {
	case DescBoolean:
		return Boolean
	case DescByte:
		return Byte
	case DescChar:
		return Char
	case DescShort:
		return Short
	case DescInt:
		return Int
	case DescLong:
		return Long
	case DescFloat:
		return Float
	case DescDouble:
		return Double
	case DescClassPfx:
		return Ref
	case DescArrayPfx:
		return ArrayRef
	default:
		return Null
	}
}

// ClInit gating states for a class type's static initializer.
type ClInitState int32

const (
	NoClinit ClInitState = iota
	ClInitNotRun
	ClInitInProgress
	ClInitRun
)

// InvalidIndex marks an absent constant-pool or string-pool index.
const InvalidIndex uint16 = 0

// ObjectClassName is the slash-form name of the root of the class DAG.
const ObjectClassName = "java/lang/Object"

// ArrayPrefix and RefArrayPrefix are the descriptor prefixes used to
// recognize array and object-array class references in class files.
const (
	ArrayPrefix    = "["
	RefArrayPrefix = "[L"
)
