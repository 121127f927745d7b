package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Constant pool tags
const (
	TagUtf8               = 1
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
	TagDynamic            = 17
	TagInvokeDynamic      = 18
)

// parseConstantPool reads constant_pool_count-1 entries from the reader.
// The returned slice is 1-indexed: index 0 is nil.
func parseConstantPool(r io.Reader, count uint16) ([]ConstantPoolEntry, error) {
	pool := make([]ConstantPoolEntry, count)
	// pool[0] is unused (constant pool is 1-indexed)

	for i := uint16(1); i < count; i++ {
		var tag uint8
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return nil, fmt.Errorf("reading constant pool tag at index %d: %w", i, err)
		}

		switch tag {
		case TagUtf8:
			var length uint16
			if err := binary.Read(r, binary.BigEndian, &length); err != nil {
				return nil, fmt.Errorf("reading Utf8 length at index %d: %w", i, err)
			}
			bytes := make([]byte, length)
			if _, err := io.ReadFull(r, bytes); err != nil {
				return nil, fmt.Errorf("reading Utf8 bytes at index %d: %w", i, err)
			}
			pool[i] = &ConstantUtf8{Value: string(bytes)}

		case TagInteger:
			var val int32
			if err := binary.Read(r, binary.BigEndian, &val); err != nil {
				return nil, fmt.Errorf("reading Integer at index %d: %w", i, err)
			}
			pool[i] = &ConstantInteger{Value: val}

		case TagFloat:
			var bits uint32
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, fmt.Errorf("reading Float at index %d: %w", i, err)
			}
			pool[i] = &ConstantFloat{Value: math.Float32frombits(bits)}

		case TagLong:
			var val int64
			if err := binary.Read(r, binary.BigEndian, &val); err != nil {
				return nil, fmt.Errorf("reading Long at index %d: %w", i, err)
			}
			pool[i] = &ConstantLong{Value: val}
			i++ // long takes 2 slots

		case TagDouble:
			var bits uint64
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, fmt.Errorf("reading Double at index %d: %w", i, err)
			}
			pool[i] = &ConstantDouble{Value: math.Float64frombits(bits)}
			i++ // double takes 2 slots

		case TagClass:
			var nameIndex uint16
			if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
				return nil, fmt.Errorf("reading Class at index %d: %w", i, err)
			}
			pool[i] = &ConstantClass{NameIndex: nameIndex}

		case TagString:
			var stringIndex uint16
			if err := binary.Read(r, binary.BigEndian, &stringIndex); err != nil {
				return nil, fmt.Errorf("reading String at index %d: %w", i, err)
			}
			pool[i] = &ConstantString{StringIndex: stringIndex}

		case TagFieldref, TagMethodref, TagInterfaceMethodref:
			var ref RefInfo
			if err := binary.Read(r, binary.BigEndian, &ref.ClassIndex); err != nil {
				return nil, fmt.Errorf("reading %s class_index at index %d: %w", TagName(tag), i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &ref.NameAndTypeIndex); err != nil {
				return nil, fmt.Errorf("reading %s name_and_type_index at index %d: %w", TagName(tag), i, err)
			}
			pool[i] = newRefConstant(tag, ref)

		case TagNameAndType:
			var nameIndex, descIndex uint16
			if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
				return nil, fmt.Errorf("reading NameAndType name_index at index %d: %w", i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
				return nil, fmt.Errorf("reading NameAndType descriptor_index at index %d: %w", i, err)
			}
			pool[i] = &ConstantNameAndType{NameIndex: nameIndex, DescriptorIndex: descIndex}

		case TagMethodHandle:
			// reference_kind (u1) + reference_index (u2) = 3 bytes
			skip := make([]byte, 3)
			if _, err := io.ReadFull(r, skip); err != nil {
				return nil, fmt.Errorf("reading MethodHandle at index %d: %w", i, err)
			}
			pool[i] = &constantPlaceholder{tag: tag}

		case TagMethodType:
			// descriptor_index (u2) = 2 bytes
			skip := make([]byte, 2)
			if _, err := io.ReadFull(r, skip); err != nil {
				return nil, fmt.Errorf("reading MethodType at index %d: %w", i, err)
			}
			pool[i] = &constantPlaceholder{tag: tag}

		case TagDynamic, TagInvokeDynamic:
			// bootstrap_method_attr_index (u2) + name_and_type_index (u2) = 4 bytes
			skip := make([]byte, 4)
			if _, err := io.ReadFull(r, skip); err != nil {
				return nil, fmt.Errorf("reading Dynamic/InvokeDynamic at index %d: %w", i, err)
			}
			pool[i] = &constantPlaceholder{tag: tag}

		default:
			return nil, fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
		}
	}

	return pool, nil
}

// constantPlaceholder is used for constant pool entries we don't fully parse.
type constantPlaceholder struct {
	tag uint8
}

func (c *constantPlaceholder) Tag() uint8 { return c.tag }

// GetUtf8 returns the Utf8 string at the given constant pool index.
func GetUtf8(pool []ConstantPoolEntry, index uint16) (string, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return "", fmt.Errorf("invalid constant pool index %d", index)
	}
	utf8, ok := pool[index].(*ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (tag=%d)", index, pool[index].Tag())
	}
	return utf8.Value, nil
}

// GetClassName returns the class name referenced by a CONSTANT_Class entry.
func GetClassName(pool []ConstantPoolEntry, classIndex uint16) (string, error) {
	if int(classIndex) >= len(pool) || pool[classIndex] == nil {
		return "", fmt.Errorf("invalid constant pool index %d", classIndex)
	}
	class, ok := pool[classIndex].(*ConstantClass)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Class", classIndex)
	}
	return GetUtf8(pool, class.NameIndex)
}

func newRefConstant(tag uint8, ref RefInfo) ConstantPoolEntry {
	switch tag {
	case TagFieldref:
		return &ConstantFieldref{ref}
	case TagInterfaceMethodref:
		return &ConstantInterfaceMethodref{ref}
	default:
		return &ConstantMethodref{ref}
	}
}

// TagName returns the JVMS name of a constant pool tag.
func TagName(tag uint8) string {
	switch tag {
	case TagUtf8:
		return "Utf8"
	case TagInteger:
		return "Integer"
	case TagFloat:
		return "Float"
	case TagLong:
		return "Long"
	case TagDouble:
		return "Double"
	case TagClass:
		return "Class"
	case TagString:
		return "String"
	case TagFieldref:
		return "Fieldref"
	case TagMethodref:
		return "Methodref"
	case TagInterfaceMethodref:
		return "InterfaceMethodref"
	case TagNameAndType:
		return "NameAndType"
	case TagMethodHandle:
		return "MethodHandle"
	case TagMethodType:
		return "MethodType"
	case TagDynamic:
		return "Dynamic"
	case TagInvokeDynamic:
		return "InvokeDynamic"
	}
	return fmt.Sprintf("tag(%d)", tag)
}

// GetString returns the text of a CONSTANT_String entry.
func GetString(pool []ConstantPoolEntry, index uint16) (string, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return "", fmt.Errorf("invalid constant pool index %d", index)
	}
	str, ok := pool[index].(*ConstantString)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not String", index)
	}
	return GetUtf8(pool, str.StringIndex)
}

// RefNames holds the symbolic names of a field or method reference.
type RefNames struct {
	ClassName  string
	Name       string
	Descriptor string
}

// ResolveRef reads the class, name and descriptor of a Fieldref, Methodref
// or InterfaceMethodref entry.
func ResolveRef(pool []ConstantPoolEntry, index uint16) (*RefNames, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return nil, fmt.Errorf("invalid constant pool index %d", index)
	}
	ref, ok := pool[index].(RefConstant)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not a member reference (tag=%d)", index, pool[index].Tag())
	}
	className, err := GetClassName(pool, ref.Ref().ClassIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving %s class: %w", TagName(ref.Tag()), err)
	}
	name, desc, err := GetNameAndType(pool, ref.Ref().NameAndTypeIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", TagName(ref.Tag()), err)
	}
	return &RefNames{ClassName: className, Name: name, Descriptor: desc}, nil
}

// GetNameAndType returns the name and descriptor of a CONSTANT_NameAndType entry.
func GetNameAndType(pool []ConstantPoolEntry, index uint16) (string, string, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return "", "", fmt.Errorf("invalid NameAndType index %d", index)
	}
	nat, ok := pool[index].(*ConstantNameAndType)
	if !ok {
		return "", "", fmt.Errorf("constant pool index %d is not NameAndType", index)
	}
	name, err := GetUtf8(pool, nat.NameIndex)
	if err != nil {
		return "", "", fmt.Errorf("resolving name: %w", err)
	}
	desc, err := GetUtf8(pool, nat.DescriptorIndex)
	if err != nil {
		return "", "", fmt.Errorf("resolving descriptor: %w", err)
	}
	return name, desc, nil
}
