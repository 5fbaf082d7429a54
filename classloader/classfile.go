/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classloader

import "fmt"

const classFileMagic = 0xCAFEBABE

// Access flag bits, per the JVM spec table 4.1-A/4.5-A/4.6-A (the bits
// are reused across class/field/method with differing meanings at each
// position; callers interpret them with the helpers in classtype.go).
const (
	AccPublic       uint16 = 0x0001
	AccPrivate      uint16 = 0x0002
	AccProtected    uint16 = 0x0004
	AccStatic       uint16 = 0x0008
	AccFinal        uint16 = 0x0010
	AccSynchronized uint16 = 0x0020
	AccSuper        uint16 = 0x0020
	AccVolatile     uint16 = 0x0040
	AccBridge       uint16 = 0x0040
	AccTransient    uint16 = 0x0080
	AccVarargs      uint16 = 0x0080
	AccNative       uint16 = 0x0100
	AccInterface    uint16 = 0x0200
	AccAbstract     uint16 = 0x0400
	AccStrict       uint16 = 0x0800
	AccSynthetic    uint16 = 0x1000
	AccAnnotation   uint16 = 0x2000
	AccEnum         uint16 = 0x4000
)

// ExceptionTableEntry is one row of a Code attribute's exception table
// (spec §4.C/§4.J): the PC range [StartPC, EndPC) is covered, and a
// thrown exception assignable to CatchClass (or any exception, if
// CatchClass is empty, i.e. a finally block) transfers control to
// HandlerPC.
type ExceptionTableEntry struct {
	StartPC    uint16
	EndPC      uint16
	HandlerPC  uint16
	CatchClass string // "" means catch-all (finally)
}

// LineNumberEntry maps a bytecode offset to a source line number.
type LineNumberEntry struct {
	StartPC    uint16
	LineNumber uint16
}

// CodeAttr is a method's Code attribute: bytecode plus the metadata the
// interpreter and exception dispatcher need (spec §4.C/§4.J/§4.K).
type CodeAttr struct {
	MaxStack       uint16
	MaxLocals      uint16
	Code           []byte
	ExceptionTable []ExceptionTableEntry
	LineNumberTable []LineNumberEntry
}

// AvailableExceptionHandlers returns, in table order, the exception
// table entries whose PC range covers pc. Spec §4.J requires table
// order be preserved since earlier (more specific) handlers must be
// tried before later (broader) ones.
func (c *CodeAttr) AvailableExceptionHandlers(pc uint16) []ExceptionTableEntry {
	var out []ExceptionTableEntry
	for _, e := range c.ExceptionTable {
		if pc >= e.StartPC && pc < e.EndPC {
			out = append(out, e)
		}
	}
	return out
}

// LineForPC returns the source line active at pc, or 0 if no
// LineNumberTable was present (class compiled without -g:lines).
func (c *CodeAttr) LineForPC(pc uint16) uint16 {
	var line uint16
	for _, e := range c.LineNumberTable {
		if e.StartPC > pc {
			break
		}
		line = e.LineNumber
	}
	return line
}

// FieldInfo is one field_info entry (spec §4.C).
type FieldInfo struct {
	AccessFlags   uint16
	Name          string
	Descriptor    string
	HasConstValue bool
	ConstIntIdx   int // cp index housing the ConstantValue; recorded only, static fields start at their type default
}

// MethodInfo is one method_info entry (spec §4.C).
type MethodInfo struct {
	AccessFlags      uint16
	Name             string
	Descriptor       string
	Code             *CodeAttr // nil for abstract/native methods
	CheckedExceptions []string
	// RuntimeVisibleAnnotations holds the raw annotation type descriptors
	// present on the method, e.g. "Lsun/reflect/CallerSensitive;" -- spec's
	// supplemented feature for caller-sensitive native dispatch checks
	// only the presence of a given descriptor, so we do not parse
	// annotation element-value pairs at all.
	RuntimeVisibleAnnotations []string
}

// HasAnnotation reports whether descriptor (e.g.
// "Lsun/reflect/CallerSensitive;") is present on this method.
func (m *MethodInfo) HasAnnotation(descriptor string) bool {
	for _, a := range m.RuntimeVisibleAnnotations {
		if a == descriptor {
			return true
		}
	}
	return false
}

// ParsedClassFile is the raw, order-preserving result of parsing one
// .class file (spec §4.C), before it is folded into a ClassType.
type ParsedClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	CP           *ConstantPool
	AccessFlags  uint16
	ThisClass    string
	SuperClass   string // "" for java/lang/Object
	Interfaces   []string
	Fields       []FieldInfo
	Methods      []MethodInfo
	SourceFile   string
}

// ParseClassFile parses the full binary layout of a .class file: magic,
// version, constant pool, access flags, this/super, interfaces, fields,
// methods, and the class-level attributes we track (SourceFile).
func ParseClassFile(data []byte) (*ParsedClassFile, error) {
	r := newReader(data)

	magic, err := r.u4()
	if err != nil {
		return nil, err
	}
	if magic != classFileMagic {
		return nil, fmt.Errorf("%w: bad magic %#x", ErrMalformed, magic)
	}

	minor, err := r.u2()
	if err != nil {
		return nil, err
	}
	major, err := r.u2()
	if err != nil {
		return nil, err
	}

	cp, err := parseConstantPool(r)
	if err != nil {
		return nil, err
	}

	accessFlags, err := r.u2()
	if err != nil {
		return nil, err
	}

	thisIdx, err := r.u2()
	if err != nil {
		return nil, err
	}
	thisClass, ok := cp.ClassName(int(thisIdx))
	if !ok {
		return nil, fmt.Errorf("%w: invalid this_class index", ErrMalformed)
	}

	superIdx, err := r.u2()
	if err != nil {
		return nil, err
	}
	var superClass string
	if superIdx != 0 {
		superClass, ok = cp.ClassName(int(superIdx))
		if !ok {
			return nil, fmt.Errorf("%w: invalid super_class index", ErrMalformed)
		}
	}

	ifaceCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	interfaces := make([]string, 0, ifaceCount)
	for i := 0; i < int(ifaceCount); i++ {
		idx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, ok := cp.ClassName(int(idx))
		if !ok {
			return nil, fmt.Errorf("%w: invalid interface index", ErrMalformed)
		}
		interfaces = append(interfaces, name)
	}

	fields, err := parseFields(r, cp)
	if err != nil {
		return nil, err
	}

	methods, err := parseMethods(r, cp)
	if err != nil {
		return nil, err
	}

	attrCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	var sourceFile string
	for i := 0; i < int(attrCount); i++ {
		name, payload, err := readAttribute(r, cp)
		if err != nil {
			return nil, err
		}
		if name == "SourceFile" && len(payload) == 2 {
			idx := int(payload[0])<<8 | int(payload[1])
			sourceFile, _ = cp.UTF8(idx)
		}
	}

	return &ParsedClassFile{
		MinorVersion: minor,
		MajorVersion: major,
		CP:           cp,
		AccessFlags:  accessFlags,
		ThisClass:    thisClass,
		SuperClass:   superClass,
		Interfaces:   interfaces,
		Fields:       fields,
		Methods:      methods,
		SourceFile:   sourceFile,
	}, nil
}

func parseFields(r *reader, cp *ConstantPool) ([]FieldInfo, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	out := make([]FieldInfo, 0, count)
	for i := 0; i < int(count); i++ {
		flags, err := r.u2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		descIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, _ := cp.UTF8(int(nameIdx))
		desc, _ := cp.UTF8(int(descIdx))

		fi := FieldInfo{AccessFlags: flags, Name: name, Descriptor: desc}

		attrCount, err := r.u2()
		if err != nil {
			return nil, err
		}
		for j := 0; j < int(attrCount); j++ {
			attrName, payload, err := readAttribute(r, cp)
			if err != nil {
				return nil, err
			}
			if attrName == "ConstantValue" && len(payload) == 2 {
				fi.HasConstValue = true
				fi.ConstIntIdx = int(payload[0])<<8 | int(payload[1])
			}
		}
		out = append(out, fi)
	}
	return out, nil
}

func parseMethods(r *reader, cp *ConstantPool) ([]MethodInfo, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	out := make([]MethodInfo, 0, count)
	for i := 0; i < int(count); i++ {
		flags, err := r.u2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		descIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, _ := cp.UTF8(int(nameIdx))
		desc, _ := cp.UTF8(int(descIdx))

		mi := MethodInfo{AccessFlags: flags, Name: name, Descriptor: desc}

		attrCount, err := r.u2()
		if err != nil {
			return nil, err
		}
		for j := 0; j < int(attrCount); j++ {
			attrName, payload, err := readAttribute(r, cp)
			if err != nil {
				return nil, err
			}
			switch attrName {
			case "Code":
				code, err := parseCodeAttr(payload, cp)
				if err != nil {
					return nil, err
				}
				mi.Code = code
			case "Exceptions":
				mi.CheckedExceptions = parseExceptionsAttr(payload, cp)
			case "RuntimeVisibleAnnotations":
				mi.RuntimeVisibleAnnotations = parseAnnotationTypeNames(payload, cp)
			}
		}
		out = append(out, mi)
	}
	return out, nil
}

// parseCodeAttr parses a Code attribute's payload in isolation (it has
// already been sliced out by readAttribute), recursing into its own
// sub-attributes for LineNumberTable.
func parseCodeAttr(payload []byte, cp *ConstantPool) (*CodeAttr, error) {
	r := newReader(payload)

	maxStack, err := r.u2()
	if err != nil {
		return nil, err
	}
	maxLocals, err := r.u2()
	if err != nil {
		return nil, err
	}
	codeLen, err := r.u4()
	if err != nil {
		return nil, err
	}
	code, err := r.bytes(int(codeLen))
	if err != nil {
		return nil, err
	}

	excTableLen, err := r.u2()
	if err != nil {
		return nil, err
	}
	excTable := make([]ExceptionTableEntry, 0, excTableLen)
	for i := 0; i < int(excTableLen); i++ {
		startPC, err := r.u2()
		if err != nil {
			return nil, err
		}
		endPC, err := r.u2()
		if err != nil {
			return nil, err
		}
		handlerPC, err := r.u2()
		if err != nil {
			return nil, err
		}
		catchIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		var catchClass string
		if catchIdx != 0 {
			catchClass, _ = cp.ClassName(int(catchIdx))
		}
		excTable = append(excTable, ExceptionTableEntry{startPC, endPC, handlerPC, catchClass})
	}

	attrCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	var lineTable []LineNumberEntry
	for i := 0; i < int(attrCount); i++ {
		name, sub, err := readAttribute(r, cp)
		if err != nil {
			return nil, err
		}
		if name == "LineNumberTable" {
			lineTable, err = parseLineNumberTable(sub)
			if err != nil {
				return nil, err
			}
		}
	}

	return &CodeAttr{
		MaxStack:        maxStack,
		MaxLocals:       maxLocals,
		Code:            code,
		ExceptionTable:  excTable,
		LineNumberTable: lineTable,
	}, nil
}

func parseLineNumberTable(payload []byte) ([]LineNumberEntry, error) {
	r := newReader(payload)
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	out := make([]LineNumberEntry, 0, count)
	for i := 0; i < int(count); i++ {
		startPC, err := r.u2()
		if err != nil {
			return nil, err
		}
		line, err := r.u2()
		if err != nil {
			return nil, err
		}
		out = append(out, LineNumberEntry{startPC, line})
	}
	return out, nil
}

func parseExceptionsAttr(payload []byte, cp *ConstantPool) []string {
	r := newReader(payload)
	count, err := r.u2()
	if err != nil {
		return nil
	}
	out := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		idx, err := r.u2()
		if err != nil {
			return out
		}
		name, ok := cp.ClassName(int(idx))
		if ok {
			out = append(out, name)
		}
	}
	return out
}

// parseAnnotationTypeNames extracts just the type descriptor of each
// top-level annotation in a RuntimeVisibleAnnotations attribute,
// skipping over its element-value pairs structurally without
// interpreting them -- the interpreter only ever asks "is this
// annotation present", never "what are its arguments".
func parseAnnotationTypeNames(payload []byte, cp *ConstantPool) []string {
	r := newReader(payload)
	count, err := r.u2()
	if err != nil {
		return nil
	}
	out := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		typeIdx, err := r.u2()
		if err != nil {
			return out
		}
		typeName, _ := cp.UTF8(int(typeIdx))
		out = append(out, typeName)
		if err := skipAnnotationElementPairs(r); err != nil {
			return out
		}
	}
	return out
}

func skipAnnotationElementPairs(r *reader) error {
	pairCount, err := r.u2()
	if err != nil {
		return err
	}
	for i := 0; i < int(pairCount); i++ {
		if _, err := r.u2(); err != nil { // element_name_index
			return err
		}
		if err := skipElementValue(r); err != nil {
			return err
		}
	}
	return nil
}

func skipElementValue(r *reader) error {
	tag, err := r.u1()
	if err != nil {
		return err
	}
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's', 'c':
		_, err = r.u2()
		return err
	case 'e':
		if _, err := r.u2(); err != nil {
			return err
		}
		_, err = r.u2()
		return err
	case '@':
		if _, err := r.u2(); err != nil { // type_index
			return err
		}
		return skipAnnotationElementPairs(r)
	case '[':
		n, err := r.u2()
		if err != nil {
			return err
		}
		for i := 0; i < int(n); i++ {
			if err := skipElementValue(r); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown annotation element tag %c", ErrMalformed, tag)
	}
}

// readAttribute reads one generic attribute_info header and returns its
// name and raw payload bytes, leaving the reader positioned at the next
// attribute. Recognized attributes are reparsed from payload by the
// caller; everything else is simply skipped.
func readAttribute(r *reader, cp *ConstantPool) (name string, payload []byte, err error) {
	nameIdx, err := r.u2()
	if err != nil {
		return "", nil, err
	}
	length, err := r.u4()
	if err != nil {
		return "", nil, err
	}
	payload, err = r.bytes(int(length))
	if err != nil {
		return "", nil, err
	}
	name, _ = cp.UTF8(int(nameIdx))
	return name, payload, nil
}
