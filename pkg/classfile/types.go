package classfile

import (
	"github.com/hashicorp/go-set/v3"
)

// Access flags
const (
	AccPublic     = 0x0001
	AccPrivate    = 0x0002
	AccStatic     = 0x0008
	AccFinal      = 0x0010
	AccSuper      = 0x0020
	AccInterface  = 0x0200
	AccAbstract   = 0x0400
	AccAnnotation = 0x2000
)

// ClassID is a handle into a class arena. NoClass means "no class".
type ClassID uint32

// NoClass is the zero ClassID.
const NoClass ClassID = 0

// MemberKind distinguishes fields from methods in a MemberRef.
type MemberKind uint8

const (
	NoMember MemberKind = iota
	FieldMember
	MethodMember
)

// MemberRef addresses a field or method of a class in the arena.
// The zero value is an absent reference.
type MemberRef struct {
	Class ClassID
	Kind  MemberKind
	Index int
}

// IsZero reports whether the reference is absent.
func (r MemberRef) IsZero() bool { return r.Kind == NoMember }

// IsField reports whether r refers to a field.
func (r MemberRef) IsField() bool { return r.Kind == FieldMember }

// ClassFile represents a parsed .class file, plus the resolved-reference
// caches that the optimizer keeps on it once it is linked into a pool.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool []ConstantPoolEntry
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []FieldInfo
	Methods      []MethodInfo
	Attributes   []Attribute

	// ID is assigned when the class is added to a pool.
	ID ClassID
	// Library classes are read-only: only their member caches are maintained.
	Library bool
	// Subclasses holds the classes that directly extend or implement this class.
	// nil means the class has no known subclasses.
	Subclasses *set.Set[ClassID]
}

// SuperClassName returns the fully qualified name of the super class.
// Returns "" if this is java/lang/Object (SuperClass == 0).
func (cf *ClassFile) SuperClassName() string {
	if cf.SuperClass == 0 {
		return ""
	}
	name, err := GetClassName(cf.ConstantPool, cf.SuperClass)
	if err != nil {
		return ""
	}
	return name
}

// IsInterface reports whether the class is an interface.
func (cf *ClassFile) IsInterface() bool {
	return cf.AccessFlags&AccInterface != 0
}

// ConstantPoolEntry is an interface implemented by all constant pool types.
type ConstantPoolEntry interface {
	Tag() uint8
}

type ConstantUtf8 struct {
	Value string
}

func (c *ConstantUtf8) Tag() uint8 { return TagUtf8 }

type ConstantInteger struct {
	Value int32
}

func (c *ConstantInteger) Tag() uint8 { return TagInteger }

type ConstantFloat struct {
	Value float32
}

func (c *ConstantFloat) Tag() uint8 { return TagFloat }

type ConstantLong struct {
	Value int64
}

func (c *ConstantLong) Tag() uint8 { return TagLong }

type ConstantDouble struct {
	Value float64
}

func (c *ConstantDouble) Tag() uint8 { return TagDouble }

type ConstantClass struct {
	NameIndex       uint16
	ReferencedClass ClassID
}

func (c *ConstantClass) Tag() uint8 { return TagClass }

// ConstantString carries a class (and possibly a member) only when an
// earlier analysis found the string to be used reflectively, e.g. in
// Class.forName.
type ConstantString struct {
	StringIndex      uint16
	ReferencedClass  ClassID
	ReferencedMember MemberRef
}

func (c *ConstantString) Tag() uint8 { return TagString }

// RefInfo is the common part of field and method reference constants.
type RefInfo struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
	ReferencedClass  ClassID
	ReferencedMember MemberRef
}

// RefConstant is implemented by Fieldref, Methodref and InterfaceMethodref.
type RefConstant interface {
	ConstantPoolEntry
	Ref() *RefInfo
}

type ConstantFieldref struct {
	RefInfo
}

func (c *ConstantFieldref) Tag() uint8 { return TagFieldref }
func (c *ConstantFieldref) Ref() *RefInfo { return &c.RefInfo }

type ConstantMethodref struct {
	RefInfo
}

func (c *ConstantMethodref) Tag() uint8 { return TagMethodref }
func (c *ConstantMethodref) Ref() *RefInfo { return &c.RefInfo }

type ConstantInterfaceMethodref struct {
	RefInfo
}

func (c *ConstantInterfaceMethodref) Tag() uint8 { return TagInterfaceMethodref }
func (c *ConstantInterfaceMethodref) Ref() *RefInfo { return &c.RefInfo }

type ConstantNameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (c *ConstantNameAndType) Tag() uint8 { return TagNameAndType }

// MethodInfo represents a method in a class file.
type MethodInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Attributes  []Attribute
	Code        *CodeAttribute

	// ReferencedClasses holds the classes named by the descriptor, in order.
	// Entries are NoClass for unresolved names.
	ReferencedClasses []ClassID
}

// FieldInfo represents a field in a class file.
type FieldInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Attributes  []Attribute

	// ReferencedClass is the class of the field type, if it is a class type.
	ReferencedClass ClassID
}
