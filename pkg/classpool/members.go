package classpool

import (
	"github.com/hashicorp/go-set/v3"

	"github.com/daimatz/classmerge/pkg/classfile"
)

// FindField looks up a field by name and, unless descriptor is empty, by
// type. It searches owner itself, then its superclass chain, then its
// interfaces. The zero MemberRef is returned when nothing matches.
func (p *ClassPool) FindField(owner classfile.ClassID, name, descriptor string) classfile.MemberRef {
	return p.findMember(owner, set.New[classfile.ClassID](4), func(cf *classfile.ClassFile) classfile.MemberRef {
		for i := range cf.Fields {
			f := &cf.Fields[i]
			if f.Name == name && (descriptor == "" || f.Descriptor == descriptor) {
				return classfile.MemberRef{Class: cf.ID, Kind: classfile.FieldMember, Index: i}
			}
		}
		return classfile.MemberRef{}
	})
}

// FindMethod looks up a method by name and descriptor in the same order as
// FindField. An empty descriptor matches by name alone, which is only
// unambiguous for annotation accessor methods.
func (p *ClassPool) FindMethod(owner classfile.ClassID, name, descriptor string) classfile.MemberRef {
	return p.findMember(owner, set.New[classfile.ClassID](4), func(cf *classfile.ClassFile) classfile.MemberRef {
		for i := range cf.Methods {
			m := &cf.Methods[i]
			if m.Name == name && (descriptor == "" || m.Descriptor == descriptor) {
				return classfile.MemberRef{Class: cf.ID, Kind: classfile.MethodMember, Index: i}
			}
		}
		return classfile.MemberRef{}
	})
}

func (p *ClassPool) findMember(id classfile.ClassID, visited *set.Set[classfile.ClassID], declared func(*classfile.ClassFile) classfile.MemberRef) classfile.MemberRef {
	cf := p.Class(id)
	if cf == nil || !visited.Insert(id) {
		return classfile.MemberRef{}
	}
	if ref := declared(cf); !ref.IsZero() {
		return ref
	}
	if ref := p.findMember(p.Superclass(id), visited, declared); !ref.IsZero() {
		return ref
	}
	for _, iface := range p.Interfaces(id) {
		if ref := p.findMember(iface, visited, declared); !ref.IsZero() {
			return ref
		}
	}
	return classfile.MemberRef{}
}

// Field returns the field a reference points to, or nil.
func (p *ClassPool) Field(ref classfile.MemberRef) *classfile.FieldInfo {
	cf := p.Class(ref.Class)
	if cf == nil || ref.Kind != classfile.FieldMember || ref.Index < 0 || ref.Index >= len(cf.Fields) {
		return nil
	}
	return &cf.Fields[ref.Index]
}

// Method returns the method a reference points to, or nil.
func (p *ClassPool) Method(ref classfile.MemberRef) *classfile.MethodInfo {
	cf := p.Class(ref.Class)
	if cf == nil || ref.Kind != classfile.MethodMember || ref.Index < 0 || ref.Index >= len(cf.Methods) {
		return nil
	}
	return &cf.Methods[ref.Index]
}

// MemberString formats a reference as Owner.name descriptor, or "" when the
// reference is absent or dangling.
func (p *ClassPool) MemberString(ref classfile.MemberRef) string {
	switch ref.Kind {
	case classfile.FieldMember:
		if f := p.Field(ref); f != nil {
			return p.Name(ref.Class) + "." + f.Name + " " + f.Descriptor
		}
	case classfile.MethodMember:
		if m := p.Method(ref); m != nil {
			return p.Name(ref.Class) + "." + m.Name + m.Descriptor
		}
	}
	return ""
}
