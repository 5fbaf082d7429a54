/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classloader

// ConstantPoolBuilder assembles a ConstantPool's entries directly,
// without round-tripping through the binary class file format. It
// exists so tests (and any other code that synthesizes a class
// programmatically) can produce a real, resolvable CP without hand
// -encoding bytes through parseConstantPool.
type ConstantPoolBuilder struct {
	cp *ConstantPool
}

// NewConstantPoolBuilder returns a builder seeded with the reserved
// empty index 0, matching every parsed ConstantPool's layout.
func NewConstantPoolBuilder() *ConstantPoolBuilder {
	return &ConstantPoolBuilder{cp: &ConstantPool{entries: []cpSlot{{}}}}
}

func (b *ConstantPoolBuilder) add(tag uint8, slot int) int {
	b.cp.entries = append(b.cp.entries, cpSlot{tag, slot})
	return len(b.cp.entries) - 1
}

// UTF8 adds a UTF8 entry and returns its index.
func (b *ConstantPoolBuilder) UTF8(s string) int {
	b.cp.utf8 = append(b.cp.utf8, s)
	return b.add(TagUTF8, len(b.cp.utf8)-1)
}

// Class adds a Class entry (and the UTF8 name it points at) and
// returns its index.
func (b *ConstantPoolBuilder) Class(name string) int {
	nameIdx := b.UTF8(name)
	b.cp.classRefs = append(b.cp.classRefs, ClassRefEntry{NameIndex: uint16(nameIdx)})
	return b.add(TagClass, len(b.cp.classRefs)-1)
}

// NameAndType adds a NameAndType entry and returns its index.
func (b *ConstantPoolBuilder) NameAndType(name, desc string) int {
	nameIdx := b.UTF8(name)
	descIdx := b.UTF8(desc)
	b.cp.natEntries = append(b.cp.natEntries, NameAndTypeEntry{uint16(nameIdx), uint16(descIdx)})
	return b.add(TagNameAndType, len(b.cp.natEntries)-1)
}

// Methodref adds a Methodref entry (plus the Class/NameAndType entries
// it references) and returns its index.
func (b *ConstantPoolBuilder) Methodref(className, name, desc string) int {
	classIdx := b.Class(className)
	natIdx := b.NameAndType(name, desc)
	b.cp.methodRefs = append(b.cp.methodRefs, RefEntry{uint16(classIdx), uint16(natIdx)})
	return b.add(TagMethodref, len(b.cp.methodRefs)-1)
}

// Fieldref adds a Fieldref entry (plus the Class/NameAndType entries
// it references) and returns its index.
func (b *ConstantPoolBuilder) Fieldref(className, name, desc string) int {
	classIdx := b.Class(className)
	natIdx := b.NameAndType(name, desc)
	b.cp.fieldRefs = append(b.cp.fieldRefs, RefEntry{uint16(classIdx), uint16(natIdx)})
	return b.add(TagFieldref, len(b.cp.fieldRefs)-1)
}

// Build returns the assembled ConstantPool.
func (b *ConstantPoolBuilder) Build() *ConstantPool { return b.cp }
