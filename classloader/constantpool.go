/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classloader

import "fmt"

// Constant pool tag bytes, per the JVM class file spec.
const (
	TagUTF8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagInvokeDynamic      = 18
)

// cpSlot is the generic (tag, slot) record every 1-based constant-pool
// index resolves to; slot indexes into one of the type-segmented slices
// below. This mirrors the teacher's CPutils.go dispatch style: rather
// than a single slice of `interface{}`, each tag has its own densely
// packed slice, and the entries slice maps the file's pool indices
// onto them.
type cpSlot struct {
	Tag  uint8
	Slot int
}

// ClassRefEntry, FieldRefEntry, etc. are the structured payloads for
// reference-kind entries; all other kinds (UTF8 strings, literals) are
// stored directly in their typed slices.

type ClassRefEntry struct{ NameIndex uint16 }

type NameAndTypeEntry struct {
	NameIndex uint16
	DescIndex uint16
}

type RefEntry struct {
	ClassIndex      uint16
	NameAndTypeIdx  uint16
}

type MethodHandleEntry struct {
	RefKind  uint8
	RefIndex uint16
}

type InvokeDynamicEntry struct {
	BootstrapIndex uint16
	NameAndTypeIdx uint16
}

// ConstantPool is spec §3/§4.B's tagged-entry table. Index 0 is always
// empty (the JVM spec reserves it); long/double entries consume the
// following index too, which is left as an empty cpSlot.
type ConstantPool struct {
	entries []cpSlot // 1-based; entries[0] is the reserved empty slot

	utf8      []string
	integers  []int32
	floats    []float32
	longs     []int64
	doubles   []float64
	classRefs []ClassRefEntry
	strings   []uint16 // index into utf8's owning cpSlot, i.e. a cp index
	fieldRefs []RefEntry
	methodRefs []RefEntry
	ifaceMethodRefs []RefEntry
	natEntries []NameAndTypeEntry
	methodHandles []MethodHandleEntry
	methodTypes   []uint16
	invokeDynamics []InvokeDynamicEntry
}

// Count returns the number of constant pool entries, including the
// reserved index 0 and the empty second slot of each long/double.
func (cp *ConstantPool) Count() int { return len(cp.entries) }

func (cp *ConstantPool) valid(idx int) bool {
	return idx > 0 && idx < len(cp.entries)
}

// Tag returns the tag byte at idx, or 0 if idx is out of range or
// points at the dead slot following a long/double.
func (cp *ConstantPool) Tag(idx int) uint8 {
	if !cp.valid(idx) {
		return 0
	}
	return cp.entries[idx].Tag
}

// UTF8 returns the decoded string at idx if idx names a UTF8 entry.
func (cp *ConstantPool) UTF8(idx int) (string, bool) {
	if !cp.valid(idx) || cp.entries[idx].Tag != TagUTF8 {
		return "", false
	}
	return cp.utf8[cp.entries[idx].Slot], true
}

// ClassName resolves a Class-kind entry at idx to its slash-form name.
func (cp *ConstantPool) ClassName(idx int) (string, bool) {
	if !cp.valid(idx) || cp.entries[idx].Tag != TagClass {
		return "", false
	}
	ref := cp.classRefs[cp.entries[idx].Slot]
	return cp.UTF8(int(ref.NameIndex))
}

// NameAndType resolves a NameAndType entry to its (name, descriptor)
// strings.
func (cp *ConstantPool) NameAndType(idx int) (name, desc string, ok bool) {
	if !cp.valid(idx) || cp.entries[idx].Tag != TagNameAndType {
		return "", "", false
	}
	nat := cp.natEntries[cp.entries[idx].Slot]
	n, ok1 := cp.UTF8(int(nat.NameIndex))
	d, ok2 := cp.UTF8(int(nat.DescIndex))
	return n, d, ok1 && ok2
}

// FieldRef / MethodRef / InterfaceMethodRef resolve a *ref entry at idx
// to (className, memberName, descriptor).
func (cp *ConstantPool) FieldRef(idx int) (class, name, desc string, ok bool) {
	return cp.resolveRef(idx, TagFieldref, cp.fieldRefs)
}

func (cp *ConstantPool) MethodRef(idx int) (class, name, desc string, ok bool) {
	return cp.resolveRef(idx, TagMethodref, cp.methodRefs)
}

func (cp *ConstantPool) InterfaceMethodRef(idx int) (class, name, desc string, ok bool) {
	return cp.resolveRef(idx, TagInterfaceMethodref, cp.ifaceMethodRefs)
}

func (cp *ConstantPool) resolveRef(idx int, wantTag uint8, slice []RefEntry) (class, name, desc string, ok bool) {
	if !cp.valid(idx) || cp.entries[idx].Tag != wantTag {
		return "", "", "", false
	}
	ref := slice[cp.entries[idx].Slot]
	cls, ok1 := cp.ClassName(int(ref.ClassIndex))
	n, d, ok2 := cp.NameAndType(int(ref.NameAndTypeIdx))
	return cls, n, d, ok1 && ok2
}

// Integer, Float, Long, Double, String fetch literal constants.

func (cp *ConstantPool) Integer(idx int) (int32, bool) {
	if !cp.valid(idx) || cp.entries[idx].Tag != TagInteger {
		return 0, false
	}
	return cp.integers[cp.entries[idx].Slot], true
}

func (cp *ConstantPool) Float(idx int) (float32, bool) {
	if !cp.valid(idx) || cp.entries[idx].Tag != TagFloat {
		return 0, false
	}
	return cp.floats[cp.entries[idx].Slot], true
}

func (cp *ConstantPool) Long(idx int) (int64, bool) {
	if !cp.valid(idx) || cp.entries[idx].Tag != TagLong {
		return 0, false
	}
	return cp.longs[cp.entries[idx].Slot], true
}

func (cp *ConstantPool) Double(idx int) (float64, bool) {
	if !cp.valid(idx) || cp.entries[idx].Tag != TagDouble {
		return 0, false
	}
	return cp.doubles[cp.entries[idx].Slot], true
}

func (cp *ConstantPool) String(idx int) (string, bool) {
	if !cp.valid(idx) || cp.entries[idx].Tag != TagString {
		return "", false
	}
	return cp.UTF8(int(cp.strings[cp.entries[idx].Slot]))
}

// parseConstantPool reads the count-prefixed constant pool: count-1
// entries follow (index 0 is reserved), and each Long/Double entry
// consumes the following index as an empty marker, per spec §3/§4.B.
func parseConstantPool(r *reader) (*ConstantPool, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	cp := &ConstantPool{entries: make([]cpSlot, count)}

	for i := 1; i < int(count); i++ {
		tag, err := r.u1()
		if err != nil {
			return nil, err
		}
		switch tag {
		case TagUTF8:
			n, err := r.u2()
			if err != nil {
				return nil, err
			}
			b, err := r.bytes(int(n))
			if err != nil {
				return nil, err
			}
			cp.entries[i] = cpSlot{tag, len(cp.utf8)}
			cp.utf8 = append(cp.utf8, decodeModifiedUTF8(b))
		case TagInteger:
			v, err := r.i4()
			if err != nil {
				return nil, err
			}
			cp.entries[i] = cpSlot{tag, len(cp.integers)}
			cp.integers = append(cp.integers, v)
		case TagFloat:
			v, err := r.f4()
			if err != nil {
				return nil, err
			}
			cp.entries[i] = cpSlot{tag, len(cp.floats)}
			cp.floats = append(cp.floats, v)
		case TagLong:
			v, err := r.i8()
			if err != nil {
				return nil, err
			}
			cp.entries[i] = cpSlot{tag, len(cp.longs)}
			cp.longs = append(cp.longs, v)
			i++ // consumes the next index too
		case TagDouble:
			v, err := r.f8()
			if err != nil {
				return nil, err
			}
			cp.entries[i] = cpSlot{tag, len(cp.doubles)}
			cp.doubles = append(cp.doubles, v)
			i++
		case TagClass:
			nameIdx, err := r.u2()
			if err != nil {
				return nil, err
			}
			cp.entries[i] = cpSlot{tag, len(cp.classRefs)}
			cp.classRefs = append(cp.classRefs, ClassRefEntry{NameIndex: nameIdx})
		case TagString:
			utf8Idx, err := r.u2()
			if err != nil {
				return nil, err
			}
			cp.entries[i] = cpSlot{tag, len(cp.strings)}
			cp.strings = append(cp.strings, utf8Idx)
		case TagFieldref:
			classIdx, natIdx, err := readRefPair(r)
			if err != nil {
				return nil, err
			}
			cp.entries[i] = cpSlot{tag, len(cp.fieldRefs)}
			cp.fieldRefs = append(cp.fieldRefs, RefEntry{classIdx, natIdx})
		case TagMethodref:
			classIdx, natIdx, err := readRefPair(r)
			if err != nil {
				return nil, err
			}
			cp.entries[i] = cpSlot{tag, len(cp.methodRefs)}
			cp.methodRefs = append(cp.methodRefs, RefEntry{classIdx, natIdx})
		case TagInterfaceMethodref:
			classIdx, natIdx, err := readRefPair(r)
			if err != nil {
				return nil, err
			}
			cp.entries[i] = cpSlot{tag, len(cp.ifaceMethodRefs)}
			cp.ifaceMethodRefs = append(cp.ifaceMethodRefs, RefEntry{classIdx, natIdx})
		case TagNameAndType:
			nameIdx, err := r.u2()
			if err != nil {
				return nil, err
			}
			descIdx, err := r.u2()
			if err != nil {
				return nil, err
			}
			cp.entries[i] = cpSlot{tag, len(cp.natEntries)}
			cp.natEntries = append(cp.natEntries, NameAndTypeEntry{nameIdx, descIdx})
		case TagMethodHandle:
			kind, err := r.u1()
			if err != nil {
				return nil, err
			}
			refIdx, err := r.u2()
			if err != nil {
				return nil, err
			}
			cp.entries[i] = cpSlot{tag, len(cp.methodHandles)}
			cp.methodHandles = append(cp.methodHandles, MethodHandleEntry{kind, refIdx})
		case TagMethodType:
			descIdx, err := r.u2()
			if err != nil {
				return nil, err
			}
			cp.entries[i] = cpSlot{tag, len(cp.methodTypes)}
			cp.methodTypes = append(cp.methodTypes, descIdx)
		case TagInvokeDynamic:
			bootIdx, err := r.u2()
			if err != nil {
				return nil, err
			}
			natIdx, err := r.u2()
			if err != nil {
				return nil, err
			}
			cp.entries[i] = cpSlot{tag, len(cp.invokeDynamics)}
			cp.invokeDynamics = append(cp.invokeDynamics, InvokeDynamicEntry{bootIdx, natIdx})
		default:
			return nil, fmt.Errorf("%w: unknown constant pool tag %d at index %d", ErrMalformed, tag, i)
		}
	}
	return cp, nil
}

func readRefPair(r *reader) (classIdx, natIdx uint16, err error) {
	classIdx, err = r.u2()
	if err != nil {
		return
	}
	natIdx, err = r.u2()
	return
}

// decodeModifiedUTF8 decodes the JVM's "modified UTF-8" encoding. It
// differs from standard UTF-8 only in its treatment of NUL (encoded as
// two bytes) and supplementary characters (encoded as two surrogate
// three-byte sequences rather than one four-byte sequence); ordinary
// ASCII and BMP text -- the overwhelming majority of class file
// strings -- decodes identically to UTF-8, so we special-case only the
// two divergent forms and fall back to a byte-by-byte UTF-8-compatible
// decode otherwise.
func decodeModifiedUTF8(b []byte) string {
	out := make([]rune, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c&0x80 == 0: // 1-byte
			out = append(out, rune(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b): // 2-byte
			r := (rune(c&0x1F) << 6) | rune(b[i+1]&0x3F)
			out = append(out, r)
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b): // 3-byte, incl. surrogate pairs
			r := (rune(c&0x0F) << 12) | (rune(b[i+1]&0x3F) << 6) | rune(b[i+2]&0x3F)
			if r >= 0xD800 && r <= 0xDBFF && i+5 < len(b) && b[i+3]&0xF0 == 0xE0 {
				lo := (rune(b[i+3]&0x0F) << 12) | (rune(b[i+4]&0x3F) << 6) | rune(b[i+5]&0x3F)
				if lo >= 0xDC00 && lo <= 0xDFFF {
					out = append(out, 0x10000+(r-0xD800)<<10+(lo-0xDC00))
					i += 6
					continue
				}
			}
			out = append(out, r)
			i += 3
		default:
			out = append(out, rune(c))
			i++
		}
	}
	return string(out)
}
