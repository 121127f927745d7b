package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const classMagic = 0xCAFEBABE

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a .class file from the given reader and returns a ClassFile.
func Parse(r io.Reader) (*ClassFile, error) {
	cf := &ClassFile{}

	// Magic number
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, fmt.Errorf("reading magic number: %w", err)
	}
	if magic != classMagic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}

	// Version
	if err := binary.Read(r, binary.BigEndian, &cf.MinorVersion); err != nil {
		return nil, fmt.Errorf("reading minor version: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.MajorVersion); err != nil {
		return nil, fmt.Errorf("reading major version: %w", err)
	}

	// Constant pool
	var cpCount uint16
	if err := binary.Read(r, binary.BigEndian, &cpCount); err != nil {
		return nil, fmt.Errorf("reading constant pool count: %w", err)
	}
	pool, err := parseConstantPool(r, cpCount)
	if err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}
	cf.ConstantPool = pool

	// Access flags, this_class, super_class
	if err := binary.Read(r, binary.BigEndian, &cf.AccessFlags); err != nil {
		return nil, fmt.Errorf("reading access flags: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.ThisClass); err != nil {
		return nil, fmt.Errorf("reading this_class: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.SuperClass); err != nil {
		return nil, fmt.Errorf("reading super_class: %w", err)
	}

	// Interfaces
	var interfacesCount uint16
	if err := binary.Read(r, binary.BigEndian, &interfacesCount); err != nil {
		return nil, fmt.Errorf("reading interfaces count: %w", err)
	}
	cf.Interfaces = make([]uint16, interfacesCount)
	for i := uint16(0); i < interfacesCount; i++ {
		if err := binary.Read(r, binary.BigEndian, &cf.Interfaces[i]); err != nil {
			return nil, fmt.Errorf("reading interface %d: %w", i, err)
		}
	}

	// Fields
	var fieldsCount uint16
	if err := binary.Read(r, binary.BigEndian, &fieldsCount); err != nil {
		return nil, fmt.Errorf("reading fields count: %w", err)
	}
	cf.Fields, err = parseFields(r, cf.ConstantPool, fieldsCount)
	if err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}

	// Methods
	var methodsCount uint16
	if err := binary.Read(r, binary.BigEndian, &methodsCount); err != nil {
		return nil, fmt.Errorf("reading methods count: %w", err)
	}
	cf.Methods, err = parseMethods(r, cf.ConstantPool, methodsCount)
	if err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}

	// Class-level attributes
	var attrCount uint16
	if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
		return nil, fmt.Errorf("reading attributes count: %w", err)
	}
	cf.Attributes, err = parseAttributes(r, cf.ConstantPool, attrCount)
	if err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}

	return cf, nil
}

func parseFields(r io.Reader, pool []ConstantPoolEntry, count uint16) ([]FieldInfo, error) {
	fields := make([]FieldInfo, count)
	for i := uint16(0); i < count; i++ {
		flags, name, desc, attrs, err := parseMember(r, pool)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		fields[i] = FieldInfo{
			AccessFlags: flags,
			Name:        name,
			Descriptor:  desc,
			Attributes:  attrs,
		}
	}
	return fields, nil
}

func parseMethods(r io.Reader, pool []ConstantPoolEntry, count uint16) ([]MethodInfo, error) {
	methods := make([]MethodInfo, count)
	for i := uint16(0); i < count; i++ {
		flags, name, desc, attrs, err := parseMember(r, pool)
		if err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}
		m := MethodInfo{
			AccessFlags: flags,
			Name:        name,
			Descriptor:  desc,
			Attributes:  attrs,
		}
		if code, ok := FindAttribute(attrs, AttrCode).(*CodeAttribute); ok {
			m.Code = code
		}
		methods[i] = m
	}
	return methods, nil
}

// parseMember reads the common field_info/method_info layout.
func parseMember(r io.Reader, pool []ConstantPoolEntry) (uint16, string, string, []Attribute, error) {
	var accessFlags, nameIndex, descIndex, attrCount uint16
	if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
		return 0, "", "", nil, fmt.Errorf("reading access flags: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
		return 0, "", "", nil, fmt.Errorf("reading name index: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
		return 0, "", "", nil, fmt.Errorf("reading descriptor index: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
		return 0, "", "", nil, fmt.Errorf("reading attributes count: %w", err)
	}

	name, err := GetUtf8(pool, nameIndex)
	if err != nil {
		return 0, "", "", nil, fmt.Errorf("resolving name: %w", err)
	}
	desc, err := GetUtf8(pool, descIndex)
	if err != nil {
		return 0, "", "", nil, fmt.Errorf("resolving descriptor: %w", err)
	}

	attrs, err := parseAttributes(r, pool, attrCount)
	if err != nil {
		return 0, "", "", nil, fmt.Errorf("parsing attributes of %s: %w", name, err)
	}
	return accessFlags, name, desc, attrs, nil
}

// ClassName returns the fully qualified name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return GetClassName(cf.ConstantPool, cf.ThisClass)
}

// FindMethod finds a method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}

// FindMethodByName finds a method by name only (first match).
func (cf *ClassFile) FindMethodByName(name string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name {
			return &cf.Methods[i]
		}
	}
	return nil
}

// FindField finds a field by name and, if descriptor is not empty, type.
func (cf *ClassFile) FindField(name, descriptor string) *FieldInfo {
	for i := range cf.Fields {
		f := &cf.Fields[i]
		if f.Name == name && (descriptor == "" || f.Descriptor == descriptor) {
			return f
		}
	}
	return nil
}
