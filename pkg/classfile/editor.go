package classfile

import (
	"fmt"

	"fortio.org/safecast"
)

// ConstantPoolEditor appends entries to the constant pool of a class.
// Existing entries are never moved or removed, so indices held elsewhere stay
// valid.
type ConstantPoolEditor struct {
	cf *ClassFile
}

// NewConstantPoolEditor returns an editor for the pool of cf.
func NewConstantPoolEditor(cf *ClassFile) *ConstantPoolEditor {
	if len(cf.ConstantPool) == 0 {
		// index 0 is unused
		cf.ConstantPool = make([]ConstantPoolEntry, 1)
	}
	return &ConstantPoolEditor{cf: cf}
}

// AddConstant appends c and returns its index. It never reuses an existing
// entry. Long and Double constants occupy two slots.
func (e *ConstantPoolEditor) AddConstant(c ConstantPoolEntry) (uint16, error) {
	// constant_pool_count is a u2, so the last usable index is 0xFFFE.
	last := uint16(0xFFFE)
	wide := c.Tag() == TagLong || c.Tag() == TagDouble
	if wide {
		last--
	}
	index, err := safecast.Conv[uint16](len(e.cf.ConstantPool))
	if err != nil || index > last {
		return 0, fmt.Errorf("constant pool of %s is full", e.className())
	}
	e.cf.ConstantPool = append(e.cf.ConstantPool, c)
	if wide {
		e.cf.ConstantPool = append(e.cf.ConstantPool, nil)
	}
	return index, nil
}

// AddUtf8Constant returns the index of a Utf8 entry holding s, adding one if
// none exists.
func (e *ConstantPoolEditor) AddUtf8Constant(s string) (uint16, error) {
	for i, c := range e.cf.ConstantPool {
		if u, ok := c.(*ConstantUtf8); ok && u.Value == s {
			return uint16(i), nil
		}
	}
	return e.AddConstant(&ConstantUtf8{Value: s})
}

// AddClassConstant returns the index of a Class entry named name, adding one
// if none exists. The referenced class of a reused entry is left untouched.
func (e *ConstantPoolEditor) AddClassConstant(name string, referenced ClassID) (uint16, error) {
	pool := e.cf.ConstantPool
	for i, c := range pool {
		if cc, ok := c.(*ConstantClass); ok {
			if n, err := GetUtf8(pool, cc.NameIndex); err == nil && n == name {
				return uint16(i), nil
			}
		}
	}
	nameIndex, err := e.AddUtf8Constant(name)
	if err != nil {
		return 0, err
	}
	return e.AddNewClassConstant(nameIndex, referenced)
}

// AddNewClassConstant always appends a fresh Class entry, even when an entry
// with the same name already exists. Later passes match class constants by
// identity, so a fresh entry cannot be confused with an existing one.
func (e *ConstantPoolEditor) AddNewClassConstant(nameIndex uint16, referenced ClassID) (uint16, error) {
	return e.AddConstant(&ConstantClass{NameIndex: nameIndex, ReferencedClass: referenced})
}

// AddStringConstant returns the index of a String entry with text s, adding
// one if none exists.
func (e *ConstantPoolEditor) AddStringConstant(s string) (uint16, error) {
	pool := e.cf.ConstantPool
	for i, c := range pool {
		if sc, ok := c.(*ConstantString); ok {
			if v, err := GetUtf8(pool, sc.StringIndex); err == nil && v == s {
				return uint16(i), nil
			}
		}
	}
	index, err := e.AddUtf8Constant(s)
	if err != nil {
		return 0, err
	}
	return e.AddConstant(&ConstantString{StringIndex: index})
}

// AddNameAndTypeConstant returns the index of a NameAndType entry, adding one
// if none exists.
func (e *ConstantPoolEditor) AddNameAndTypeConstant(name, descriptor string) (uint16, error) {
	nameIndex, err := e.AddUtf8Constant(name)
	if err != nil {
		return 0, err
	}
	descIndex, err := e.AddUtf8Constant(descriptor)
	if err != nil {
		return 0, err
	}
	for i, c := range e.cf.ConstantPool {
		if nat, ok := c.(*ConstantNameAndType); ok && nat.NameIndex == nameIndex && nat.DescriptorIndex == descIndex {
			return uint16(i), nil
		}
	}
	return e.AddConstant(&ConstantNameAndType{NameIndex: nameIndex, DescriptorIndex: descIndex})
}

// AddFieldrefConstant adds a field reference constant.
func (e *ConstantPoolEditor) AddFieldrefConstant(className, name, descriptor string) (uint16, error) {
	return e.addRefConstant(TagFieldref, className, name, descriptor)
}

// AddMethodrefConstant adds a method reference constant.
func (e *ConstantPoolEditor) AddMethodrefConstant(className, name, descriptor string) (uint16, error) {
	return e.addRefConstant(TagMethodref, className, name, descriptor)
}

// AddInterfaceMethodrefConstant adds an interface method reference constant.
func (e *ConstantPoolEditor) AddInterfaceMethodrefConstant(className, name, descriptor string) (uint16, error) {
	return e.addRefConstant(TagInterfaceMethodref, className, name, descriptor)
}

func (e *ConstantPoolEditor) addRefConstant(tag uint8, className, name, descriptor string) (uint16, error) {
	classIndex, err := e.AddClassConstant(className, NoClass)
	if err != nil {
		return 0, err
	}
	natIndex, err := e.AddNameAndTypeConstant(name, descriptor)
	if err != nil {
		return 0, err
	}
	for i, c := range e.cf.ConstantPool {
		if c == nil || c.Tag() != tag {
			continue
		}
		if ref := c.(RefConstant).Ref(); ref.ClassIndex == classIndex && ref.NameAndTypeIndex == natIndex {
			return uint16(i), nil
		}
	}
	return e.AddConstant(newRefConstant(tag, RefInfo{ClassIndex: classIndex, NameAndTypeIndex: natIndex}))
}

func (e *ConstantPoolEditor) className() string {
	if name, err := e.cf.ClassName(); err == nil {
		return name
	}
	return "<unnamed class>"
}
