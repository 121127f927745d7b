// Package snapshot records the resolved references of every class in a pool
// by name, so that the effect of a rewrite can be printed, stored and
// compared between runs.
package snapshot

import (
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/daimatz/classmerge/pkg/classfile"
	"github.com/daimatz/classmerge/pkg/classpool"
)

// Current schema version - increment when the Snapshot layout changes.
const schemaVersion uint16 = 1

// Snapshot is a name-based view of a class pool.
type Snapshot struct {
	Schema  uint16
	Classes []Class
}

// Class holds the references of one class. Unresolved references are "-".
type Class struct {
	Name       string
	Library    bool
	This       string
	Super      string
	Interfaces []string
	Subclasses []string
	Constants  []Constant
	Fields     []Member
	Methods    []Member
	Attributes []string
}

// Constant is a constant-pool entry that carries a class reference.
type Constant struct {
	Index  uint16
	Kind   string
	Text   string
	Class  string
	Member string
}

// Member is a field or method with its referenced classes.
type Member struct {
	Name       string
	Descriptor string
	Classes    []string
	Attributes []string
}

const unresolved = "-"

// Take records the current state of pool.
func Take(pool *classpool.ClassPool) *Snapshot {
	s := &Snapshot{Schema: schemaVersion}
	for _, id := range pool.IDs() {
		s.Classes = append(s.Classes, takeClass(pool, pool.Class(id)))
	}
	return s
}

func takeClass(pool *classpool.ClassPool, cf *classfile.ClassFile) Class {
	name := func(id classfile.ClassID) string {
		if n := pool.Name(id); n != "" {
			return n
		}
		return unresolved
	}
	names := func(ids []classfile.ClassID) []string {
		out := make([]string, len(ids))
		for i, id := range ids {
			out[i] = name(id)
		}
		return out
	}
	member := func(ref classfile.MemberRef) string {
		if s := pool.MemberString(ref); s != "" {
			return s
		}
		return unresolved
	}

	c := Class{
		Name:    pool.Name(cf.ID),
		Library: cf.Library,
		Super:   name(pool.Superclass(cf.ID)),
	}
	// Library classes keep their own class constant unlinked.
	if cc, ok := constantAt(cf, cf.ThisClass).(*classfile.ConstantClass); ok && !cf.Library {
		c.This = fmt.Sprintf("#%d -> %s", cf.ThisClass, name(cc.ReferencedClass))
	}
	for i := range cf.Interfaces {
		c.Interfaces = append(c.Interfaces, name(classpool.InterfaceAt(cf, i)))
	}
	c.Subclasses = names(pool.Subclasses(cf.ID))

	if !cf.Library {
		for i, entry := range cf.ConstantPool {
			index := uint16(i)
			switch e := entry.(type) {
			case *classfile.ConstantClass:
				text, _ := classfile.GetUtf8(cf.ConstantPool, e.NameIndex)
				c.Constants = append(c.Constants, Constant{Index: index, Kind: "Class", Text: text, Class: name(e.ReferencedClass)})
			case *classfile.ConstantString:
				if e.ReferencedClass == classfile.NoClass {
					continue
				}
				text, _ := classfile.GetUtf8(cf.ConstantPool, e.StringIndex)
				k := Constant{Index: index, Kind: "String", Text: fmt.Sprintf("%q", text), Class: name(e.ReferencedClass)}
				if !e.ReferencedMember.IsZero() {
					k.Member = member(e.ReferencedMember)
				}
				c.Constants = append(c.Constants, k)
			case classfile.RefConstant:
				ref := e.Ref()
				text := ""
				if n, err := classfile.ResolveRef(cf.ConstantPool, index); err == nil {
					text = n.ClassName + "." + n.Name + " " + n.Descriptor
				}
				c.Constants = append(c.Constants, Constant{
					Index:  index,
					Kind:   classfile.TagName(e.Tag()),
					Text:   text,
					Class:  name(ref.ReferencedClass),
					Member: member(ref.ReferencedMember),
				})
			}
		}
	}

	for i := range cf.Fields {
		f := &cf.Fields[i]
		c.Fields = append(c.Fields, Member{
			Name:       f.Name,
			Descriptor: f.Descriptor,
			Classes:    []string{name(f.ReferencedClass)},
			Attributes: attributeLines(f.Attributes, name, member),
		})
	}
	for i := range cf.Methods {
		m := &cf.Methods[i]
		c.Methods = append(c.Methods, Member{
			Name:       m.Name,
			Descriptor: m.Descriptor,
			Classes:    names(m.ReferencedClasses),
			Attributes: attributeLines(m.Attributes, name, member),
		})
	}
	c.Attributes = attributeLines(cf.Attributes, name, member)
	return c
}

func constantAt(cf *classfile.ClassFile, index uint16) classfile.ConstantPoolEntry {
	if int(index) >= len(cf.ConstantPool) {
		return nil
	}
	return cf.ConstantPool[index]
}

func attributeLines(attrs []classfile.Attribute, name func(classfile.ClassID) string, member func(classfile.MemberRef) string) []string {
	var lines []string
	list := func(ids []classfile.ClassID) string {
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = name(id)
		}
		return "[" + strings.Join(parts, " ") + "]"
	}
	var annotation func(indent, label string, ann *classfile.Annotation)
	var element func(indent, label string, v classfile.ElementValue)
	annotation = func(indent, label string, ann *classfile.Annotation) {
		lines = append(lines, fmt.Sprintf("%s%s@%s -> %s", indent, label, ann.Type, list(ann.ReferencedClasses)))
		for _, v := range ann.Elements {
			element(indent+"  ", "", v)
		}
	}
	element = func(indent, label string, v classfile.ElementValue) {
		info := v.Info()
		line := fmt.Sprintf("%s%s%s(%c) -> %s %s", indent, label, info.Name, v.Tag(), name(info.ReferencedClass), member(info.ReferencedMethod))
		switch v := v.(type) {
		case *classfile.EnumConstantElementValue:
			lines = append(lines, line+" "+list(v.ReferencedClasses))
		case *classfile.ClassElementValue:
			lines = append(lines, line+" "+list(v.ReferencedClasses))
		case *classfile.AnnotationElementValue:
			lines = append(lines, line)
			annotation(indent+"  ", "", v.Annotation)
		case *classfile.ArrayElementValue:
			lines = append(lines, line)
			for _, elem := range v.Values {
				element(indent+"  ", "", elem)
			}
		default:
			lines = append(lines, line)
		}
	}

	for _, attr := range attrs {
		switch a := attr.(type) {
		case *classfile.SignatureAttribute:
			lines = append(lines, fmt.Sprintf("Signature %s -> %s", a.Signature, list(a.ReferencedClasses)))
		case *classfile.LocalVariableTableAttribute:
			for _, v := range a.Variables {
				lines = append(lines, fmt.Sprintf("LocalVariable %s %s -> %s", v.Name, v.Descriptor, name(v.ReferencedClass)))
			}
		case *classfile.LocalVariableTypeTableAttribute:
			for _, v := range a.Variables {
				lines = append(lines, fmt.Sprintf("LocalVariableType %s %s -> %s", v.Name, v.Signature, list(v.ReferencedClasses)))
			}
		case *classfile.AnnotationsAttribute:
			for _, ann := range a.Annotations {
				annotation("", a.Name+" ", ann)
			}
		case *classfile.ParameterAnnotationsAttribute:
			for i, anns := range a.Parameters {
				for _, ann := range anns {
					annotation("", fmt.Sprintf("%s[%d] ", a.Name, i), ann)
				}
			}
		case *classfile.AnnotationDefaultAttribute:
			element("", "AnnotationDefault ", a.Default)
		case *classfile.CodeAttribute:
			for _, line := range attributeLines(a.Attributes, name, member) {
				lines = append(lines, "Code "+line)
			}
		}
	}
	return lines
}

// Encode writes s in msgpack form.
func (s *Snapshot) Encode(w io.Writer) error {
	return msgpack.NewEncoder(w).Encode(s)
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := msgpack.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if s.Schema != schemaVersion {
		return nil, fmt.Errorf("snapshot schema %d, want %d", s.Schema, schemaVersion)
	}
	return &s, nil
}
