/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package excnames holds the slash-form names of the JDK exception and
// error classes the interpreter and native registry throw directly,
// without requiring those classes to be loaded from real class files.
package excnames

const (
	ArithmeticException              = "java/lang/ArithmeticException"
	ArrayIndexOutOfBoundsException    = "java/lang/ArrayIndexOutOfBoundsException"
	ArrayStoreException               = "java/lang/ArrayStoreException"
	ClassCastException                = "java/lang/ClassCastException"
	ClassNotFoundException            = "java/lang/ClassNotFoundException"
	CloneNotSupportedException        = "java/lang/CloneNotSupportedException"
	IllegalArgumentException          = "java/lang/IllegalArgumentException"
	IllegalMonitorStateException      = "java/lang/IllegalMonitorStateException"
	IllegalStateException             = "java/lang/IllegalStateException"
	IndexOutOfBoundsException         = "java/lang/IndexOutOfBoundsException"
	InterruptedException              = "java/lang/InterruptedException"
	NegativeArraySizeException        = "java/lang/NegativeArraySizeException"
	NullPointerException              = "java/lang/NullPointerException"
	NumberFormatException             = "java/lang/NumberFormatException"
	RuntimeException                  = "java/lang/RuntimeException"
	StringIndexOutOfBoundsException   = "java/lang/StringIndexOutOfBoundsException"
	UnsupportedOperationException     = "java/lang/UnsupportedOperationException"

	AbstractMethodError     = "java/lang/AbstractMethodError"
	ClassFormatError        = "java/lang/ClassFormatError"
	IncompatibleClassChangeError = "java/lang/IncompatibleClassChangeError"
	InternalError           = "java/lang/InternalError"
	LinkageError            = "java/lang/LinkageError"
	NoClassDefFoundError    = "java/lang/NoClassDefFoundError"
	NoSuchFieldError        = "java/lang/NoSuchFieldError"
	NoSuchMethodError       = "java/lang/NoSuchMethodError"
	OutOfMemoryError        = "java/lang/OutOfMemoryError"
	StackOverflowError      = "java/lang/StackOverflowError"
	UnsatisfiedLinkError    = "java/lang/UnsatisfiedLinkError"
	VirtualMachineError     = "java/lang/VirtualMachineError"
)
