package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

func parseAttributes(r io.Reader, pool []ConstantPoolEntry, count uint16) ([]Attribute, error) {
	attrs := make([]Attribute, 0, count)
	for i := uint16(0); i < count; i++ {
		var nameIndex uint16
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, fmt.Errorf("reading attribute %d name index: %w", i, err)
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("reading attribute %d length: %w", i, err)
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("reading attribute %d data: %w", i, err)
		}

		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}

		attr, err := decodeAttribute(name, data, pool)
		if err != nil {
			return nil, fmt.Errorf("decoding %s attribute: %w", name, err)
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

func decodeAttribute(name string, data []byte, pool []ConstantPoolEntry) (Attribute, error) {
	d := &attrDecoder{r: bytes.NewReader(data), pool: pool}
	switch name {
	case AttrCode:
		return d.code()
	case AttrSignature:
		sig, err := d.utf8()
		if err != nil {
			return nil, err
		}
		return &SignatureAttribute{Signature: sig}, nil
	case AttrLocalVariableTable:
		return d.localVariableTable()
	case AttrLocalVariableTypeTable:
		return d.localVariableTypeTable()
	case AttrRuntimeVisibleAnnotations, AttrRuntimeInvisibleAnnotations:
		anns, err := d.annotations()
		if err != nil {
			return nil, err
		}
		return &AnnotationsAttribute{Name: name, Annotations: anns}, nil
	case AttrRuntimeVisibleParameterAnnotations, AttrRuntimeInvisibleParameterAnnotations:
		return d.parameterAnnotations(name)
	case AttrAnnotationDefault:
		v, err := d.elementValue("")
		if err != nil {
			return nil, err
		}
		return &AnnotationDefaultAttribute{Default: v}, nil
	}
	return &AttributeInfo{Name: name, Data: data}, nil
}

type attrDecoder struct {
	r    *bytes.Reader
	pool []ConstantPoolEntry
}

func (d *attrDecoder) u1() (uint8, error) {
	var v uint8
	err := binary.Read(d.r, binary.BigEndian, &v)
	return v, err
}

func (d *attrDecoder) u2() (uint16, error) {
	var v uint16
	err := binary.Read(d.r, binary.BigEndian, &v)
	return v, err
}

func (d *attrDecoder) utf8() (string, error) {
	index, err := d.u2()
	if err != nil {
		return "", err
	}
	return GetUtf8(d.pool, index)
}

func (d *attrDecoder) code() (*CodeAttribute, error) {
	c := &CodeAttribute{}
	var codeLength uint32
	if err := binary.Read(d.r, binary.BigEndian, &c.MaxStack); err != nil {
		return nil, fmt.Errorf("reading max_stack: %w", err)
	}
	if err := binary.Read(d.r, binary.BigEndian, &c.MaxLocals); err != nil {
		return nil, fmt.Errorf("reading max_locals: %w", err)
	}
	if err := binary.Read(d.r, binary.BigEndian, &codeLength); err != nil {
		return nil, fmt.Errorf("reading code_length: %w", err)
	}
	c.Code = make([]byte, codeLength)
	if _, err := io.ReadFull(d.r, c.Code); err != nil {
		return nil, fmt.Errorf("code shorter than code_length %d: %w", codeLength, err)
	}

	exTableLen, err := d.u2()
	if err != nil {
		return nil, fmt.Errorf("reading exception table length: %w", err)
	}
	c.ExceptionHandlers = make([]ExceptionHandler, exTableLen)
	for i := range c.ExceptionHandlers {
		if err := binary.Read(d.r, binary.BigEndian, &c.ExceptionHandlers[i]); err != nil {
			return nil, fmt.Errorf("reading exception handler %d: %w", i, err)
		}
	}

	attrCount, err := d.u2()
	if err != nil {
		return nil, fmt.Errorf("reading Code attributes count: %w", err)
	}
	c.Attributes, err = parseAttributes(d.r, d.pool, attrCount)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// localVariableEntry reads one local_variable_table or
// local_variable_type_table entry; the two share a layout.
func (d *attrDecoder) localVariableEntry() (start, length uint16, name, desc string, index uint16, err error) {
	if start, err = d.u2(); err != nil {
		return
	}
	if length, err = d.u2(); err != nil {
		return
	}
	if name, err = d.utf8(); err != nil {
		return
	}
	if desc, err = d.utf8(); err != nil {
		return
	}
	index, err = d.u2()
	return
}

func (d *attrDecoder) localVariableTable() (*LocalVariableTableAttribute, error) {
	n, err := d.u2()
	if err != nil {
		return nil, err
	}
	a := &LocalVariableTableAttribute{Variables: make([]LocalVariable, n)}
	for i := range a.Variables {
		start, length, name, desc, index, err := d.localVariableEntry()
		if err != nil {
			return nil, fmt.Errorf("local variable %d: %w", i, err)
		}
		a.Variables[i] = LocalVariable{StartPC: start, Length: length, Name: name, Descriptor: desc, Index: index}
	}
	return a, nil
}

func (d *attrDecoder) localVariableTypeTable() (*LocalVariableTypeTableAttribute, error) {
	n, err := d.u2()
	if err != nil {
		return nil, err
	}
	a := &LocalVariableTypeTableAttribute{Variables: make([]LocalVariableType, n)}
	for i := range a.Variables {
		start, length, name, sig, index, err := d.localVariableEntry()
		if err != nil {
			return nil, fmt.Errorf("local variable type %d: %w", i, err)
		}
		a.Variables[i] = LocalVariableType{StartPC: start, Length: length, Name: name, Signature: sig, Index: index}
	}
	return a, nil
}

func (d *attrDecoder) annotations() ([]*Annotation, error) {
	n, err := d.u2()
	if err != nil {
		return nil, err
	}
	anns := make([]*Annotation, n)
	for i := range anns {
		if anns[i], err = d.annotation(); err != nil {
			return nil, fmt.Errorf("annotation %d: %w", i, err)
		}
	}
	return anns, nil
}

func (d *attrDecoder) parameterAnnotations(name string) (*ParameterAnnotationsAttribute, error) {
	n, err := d.u1()
	if err != nil {
		return nil, err
	}
	a := &ParameterAnnotationsAttribute{Name: name, Parameters: make([][]*Annotation, n)}
	for i := range a.Parameters {
		if a.Parameters[i], err = d.annotations(); err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
	}
	return a, nil
}

func (d *attrDecoder) annotation() (*Annotation, error) {
	typ, err := d.utf8()
	if err != nil {
		return nil, fmt.Errorf("reading type: %w", err)
	}
	n, err := d.u2()
	if err != nil {
		return nil, err
	}
	ann := &Annotation{Type: typ, Elements: make([]ElementValue, n)}
	for i := range ann.Elements {
		name, err := d.utf8()
		if err != nil {
			return nil, fmt.Errorf("reading element %d name: %w", i, err)
		}
		if ann.Elements[i], err = d.elementValue(name); err != nil {
			return nil, fmt.Errorf("element %s: %w", name, err)
		}
	}
	return ann, nil
}

// elementValue reads an element_value. Values nested in arrays carry the
// name of the element that holds the array.
func (d *attrDecoder) elementValue(name string) (ElementValue, error) {
	tag, err := d.u1()
	if err != nil {
		return nil, err
	}
	info := ElementValueInfo{Name: name}
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		index, err := d.u2()
		if err != nil {
			return nil, err
		}
		return &ConstantElementValue{ElementValueInfo: info, ConstTag: tag, ConstIndex: index}, nil
	case ElementTagEnum:
		typeName, err := d.utf8()
		if err != nil {
			return nil, err
		}
		constName, err := d.utf8()
		if err != nil {
			return nil, err
		}
		return &EnumConstantElementValue{ElementValueInfo: info, TypeName: typeName, ConstName: constName}, nil
	case ElementTagClass:
		classInfo, err := d.utf8()
		if err != nil {
			return nil, err
		}
		return &ClassElementValue{ElementValueInfo: info, ClassInfo: classInfo}, nil
	case ElementTagAnnotation:
		ann, err := d.annotation()
		if err != nil {
			return nil, err
		}
		return &AnnotationElementValue{ElementValueInfo: info, Annotation: ann}, nil
	case ElementTagArray:
		n, err := d.u2()
		if err != nil {
			return nil, err
		}
		arr := &ArrayElementValue{ElementValueInfo: info, Values: make([]ElementValue, n)}
		for i := range arr.Values {
			if arr.Values[i], err = d.elementValue(name); err != nil {
				return nil, fmt.Errorf("array value %d: %w", i, err)
			}
		}
		return arr, nil
	}
	return nil, fmt.Errorf("unknown element value tag %q", tag)
}
