// Package linker fills in the resolved-reference caches of the classes in a
// pool from the symbolic names in their class files, and initializes the
// subclass registry from the class hierarchy.
package linker

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/hashicorp/go-set/v3"

	"github.com/daimatz/classmerge/pkg/classfile"
	"github.com/daimatz/classmerge/pkg/classpool"
)

// Source supplies library classes that are referenced but not in the pool.
// Load returns (nil, nil) when the class is unknown.
type Source interface {
	Load(name string) (*classfile.ClassFile, error)
}

// Options configure a Linker.
type Options struct {
	// Libraries is consulted for names missing from the pool. May be nil.
	Libraries Source
	// LinkStrings makes string constants whose text names a class in the
	// pool (in dotted or internal form) reference that class.
	LinkStrings bool
	Logger      *slog.Logger
}

// Linker resolves names against a pool.
type Linker struct {
	pool    *classpool.ClassPool
	opts    Options
	log     *slog.Logger
	missing *set.Set[string]
}

// New returns a linker for pool.
func New(pool *classpool.ClassPool, opts Options) *Linker {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Linker{pool: pool, opts: opts, log: log, missing: set.New[string](0)}
}

// Link initializes the caches of every class currently in the pool, and of
// library classes pulled in on the way, then rebuilds subclass sets.
func Link(pool *classpool.ClassPool, opts Options) error {
	return New(pool, opts).Link()
}

// Link runs the linker over the whole pool. Class constants are linked
// first for every class, so that member lookups in the second phase can
// walk complete hierarchies.
func (l *Linker) Link() error {
	for _, id := range l.pool.IDs() {
		if err := l.linkHierarchy(l.pool.Class(id)); err != nil {
			return err
		}
	}
	// Library classes may be appended while linking; they are linked too.
	for i := 1; i <= l.pool.Len(); i++ {
		cf := l.pool.Class(classfile.ClassID(i))
		if cf.Library {
			l.linkLibraryMembers(cf)
			continue
		}
		if err := l.linkClass(cf); err != nil {
			return err
		}
	}
	l.initSubclasses()
	return nil
}

// Missing returns the names that could not be resolved, sorted.
func (l *Linker) Missing() []string {
	names := l.missing.Slice()
	slices.Sort(names)
	return names
}

// resolve returns the ID of the named class, loading it from the library
// source if needed.
func (l *Linker) resolve(name string) (classfile.ClassID, error) {
	if id := l.pool.Lookup(name); id != classfile.NoClass {
		return id, nil
	}
	if l.opts.Libraries == nil || l.missing.Contains(name) {
		l.warnMissing(name)
		return classfile.NoClass, nil
	}
	cf, err := l.opts.Libraries.Load(name)
	if err != nil {
		return classfile.NoClass, fmt.Errorf("loading library class %s: %w", name, err)
	}
	if cf == nil {
		l.warnMissing(name)
		return classfile.NoClass, nil
	}
	cf.Library = true
	id, err := l.pool.Add(cf)
	if err != nil {
		return classfile.NoClass, err
	}
	return id, l.linkHierarchy(cf)
}

func (l *Linker) warnMissing(name string) {
	if l.missing.Insert(name) {
		l.log.Warn("can't find referenced class", "class", name)
	}
}

func (l *Linker) resolveAll(names []string) ([]classfile.ClassID, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ids := make([]classfile.ClassID, len(names))
	for i, name := range names {
		id, err := l.resolve(name)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// resolveFirst resolves the first class named in a descriptor.
func (l *Linker) resolveFirst(desc string) (classfile.ClassID, error) {
	names := classfile.DescriptorClassNames(desc)
	if len(names) == 0 {
		return classfile.NoClass, nil
	}
	return l.resolve(names[0])
}

func (l *Linker) linkClass(cf *classfile.ClassFile) error {
	name, _ := cf.ClassName()
	if err := l.linkConstants(cf); err != nil {
		return fmt.Errorf("linking %s: %w", name, err)
	}
	for i := range cf.Fields {
		f := &cf.Fields[i]
		id, err := l.resolveFirst(f.Descriptor)
		if err != nil {
			return fmt.Errorf("linking %s.%s: %w", name, f.Name, err)
		}
		f.ReferencedClass = id
		if err := l.linkAttributes(f.Attributes); err != nil {
			return fmt.Errorf("linking %s.%s: %w", name, f.Name, err)
		}
	}
	for i := range cf.Methods {
		m := &cf.Methods[i]
		ids, err := l.resolveAll(classfile.DescriptorClassNames(m.Descriptor))
		if err != nil {
			return fmt.Errorf("linking %s.%s%s: %w", name, m.Name, m.Descriptor, err)
		}
		m.ReferencedClasses = ids
		if err := l.linkAttributes(m.Attributes); err != nil {
			return fmt.Errorf("linking %s.%s%s: %w", name, m.Name, m.Descriptor, err)
		}
	}
	if err := l.linkAttributes(cf.Attributes); err != nil {
		return fmt.Errorf("linking %s: %w", name, err)
	}
	return nil
}

// linkHierarchy resolves class constants: all of them for program classes,
// only the superclass and interfaces for library classes.
func (l *Linker) linkHierarchy(cf *classfile.ClassFile) error {
	if !cf.Library {
		for i, c := range cf.ConstantPool {
			if _, ok := c.(*classfile.ConstantClass); ok {
				if err := l.linkClassConstant(cf, uint16(i)); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if cf.SuperClass != 0 {
		if err := l.linkClassConstant(cf, cf.SuperClass); err != nil {
			return err
		}
	}
	for _, index := range cf.Interfaces {
		if err := l.linkClassConstant(cf, index); err != nil {
			return err
		}
	}
	return nil
}

func (l *Linker) linkClassConstant(cf *classfile.ClassFile, index uint16) error {
	if int(index) >= len(cf.ConstantPool) {
		return fmt.Errorf("invalid constant pool index %d", index)
	}
	cc, ok := cf.ConstantPool[index].(*classfile.ConstantClass)
	if !ok {
		return fmt.Errorf("constant %d is not a Class", index)
	}
	if cc.ReferencedClass != classfile.NoClass {
		return nil
	}
	name, err := classfile.GetUtf8(cf.ConstantPool, cc.NameIndex)
	if err != nil {
		return err
	}
	if len(name) > 0 && name[0] == '[' {
		// array class: reference its element class
		cc.ReferencedClass, err = l.resolveFirst(name)
		return err
	}
	cc.ReferencedClass, err = l.resolve(name)
	return err
}

// linkLibraryMembers fills the member caches of a library class from
// classes already in the pool, without loading more library classes.
func (l *Linker) linkLibraryMembers(cf *classfile.ClassFile) {
	for i := range cf.Fields {
		f := &cf.Fields[i]
		if names := classfile.DescriptorClassNames(f.Descriptor); len(names) > 0 {
			f.ReferencedClass = l.pool.Lookup(names[0])
		}
	}
	for i := range cf.Methods {
		m := &cf.Methods[i]
		names := classfile.DescriptorClassNames(m.Descriptor)
		if len(names) == 0 {
			continue
		}
		m.ReferencedClasses = make([]classfile.ClassID, len(names))
		for j, name := range names {
			m.ReferencedClasses[j] = l.pool.Lookup(name)
		}
	}
}

func (l *Linker) linkConstants(cf *classfile.ClassFile) error {
	pool := cf.ConstantPool
	for i, c := range pool {
		switch c := c.(type) {
		case classfile.RefConstant:
			ref := c.Ref()
			if int(ref.ClassIndex) >= len(pool) || pool[ref.ClassIndex] == nil {
				return fmt.Errorf("constant %d: invalid class_index %d", i, ref.ClassIndex)
			}
			owner, ok := pool[ref.ClassIndex].(*classfile.ConstantClass)
			if !ok {
				return fmt.Errorf("constant %d: class_index %d is not a Class", i, ref.ClassIndex)
			}
			ref.ReferencedClass = owner.ReferencedClass
			mname, desc, err := classfile.GetNameAndType(pool, ref.NameAndTypeIndex)
			if err != nil {
				return fmt.Errorf("constant %d: %w", i, err)
			}
			if c.Tag() == classfile.TagFieldref {
				ref.ReferencedMember = l.pool.FindField(ref.ReferencedClass, mname, desc)
			} else {
				ref.ReferencedMember = l.pool.FindMethod(ref.ReferencedClass, mname, desc)
			}
		case *classfile.ConstantString:
			if !l.opts.LinkStrings {
				continue
			}
			text, err := classfile.GetUtf8(pool, c.StringIndex)
			if err != nil {
				return fmt.Errorf("constant %d: %w", i, err)
			}
			// Only names of classes already known are taken as class
			// references; arbitrary strings never trigger library loads.
			c.ReferencedClass = l.pool.Lookup(classfile.InternalName(text))
		}
	}
	return nil
}

func (l *Linker) linkAttributes(attrs []classfile.Attribute) error {
	for _, attr := range attrs {
		var err error
		switch a := attr.(type) {
		case *classfile.SignatureAttribute:
			a.ReferencedClasses, err = l.resolveAll(classfile.SignatureClassNames(a.Signature))
		case *classfile.LocalVariableTableAttribute:
			for i := range a.Variables {
				v := &a.Variables[i]
				if v.ReferencedClass, err = l.resolveFirst(v.Descriptor); err != nil {
					break
				}
			}
		case *classfile.LocalVariableTypeTableAttribute:
			for i := range a.Variables {
				v := &a.Variables[i]
				if v.ReferencedClasses, err = l.resolveAll(classfile.SignatureClassNames(v.Signature)); err != nil {
					break
				}
			}
		case *classfile.AnnotationsAttribute:
			err = l.linkAnnotations(a.Annotations)
		case *classfile.ParameterAnnotationsAttribute:
			for _, anns := range a.Parameters {
				if err = l.linkAnnotations(anns); err != nil {
					break
				}
			}
		case *classfile.AnnotationDefaultAttribute:
			// The declaring annotation interface is not known here; the
			// element keeps only its own class references.
			err = l.linkElementValue(a.Default, classfile.NoClass)
		case *classfile.CodeAttribute:
			err = l.linkAttributes(a.Attributes)
		}
		if err != nil {
			return fmt.Errorf("%s attribute: %w", attr.AttributeName(), err)
		}
	}
	return nil
}

func (l *Linker) linkAnnotations(anns []*classfile.Annotation) error {
	for _, ann := range anns {
		if err := l.linkAnnotation(ann); err != nil {
			return err
		}
	}
	return nil
}

func (l *Linker) linkAnnotation(ann *classfile.Annotation) error {
	ids, err := l.resolveAll(classfile.DescriptorClassNames(ann.Type))
	if err != nil {
		return err
	}
	ann.ReferencedClasses = ids
	var annType classfile.ClassID
	if len(ids) > 0 {
		annType = ids[0]
	}
	for _, v := range ann.Elements {
		if err := l.linkElementValue(v, annType); err != nil {
			return err
		}
	}
	return nil
}

func (l *Linker) linkElementValue(v classfile.ElementValue, annType classfile.ClassID) error {
	info := v.Info()
	info.ReferencedClass = annType
	if annType != classfile.NoClass && info.Name != "" {
		info.ReferencedMethod = l.pool.FindMethod(annType, info.Name, "")
	}
	var err error
	switch v := v.(type) {
	case *classfile.EnumConstantElementValue:
		v.ReferencedClasses, err = l.resolveAll(classfile.DescriptorClassNames(v.TypeName))
	case *classfile.ClassElementValue:
		v.ReferencedClasses, err = l.resolveAll(classfile.DescriptorClassNames(v.ClassInfo))
	case *classfile.AnnotationElementValue:
		err = l.linkAnnotation(v.Annotation)
	case *classfile.ArrayElementValue:
		for _, elem := range v.Values {
			if err = l.linkElementValue(elem, annType); err != nil {
				break
			}
		}
	}
	return err
}

// initSubclasses registers every class as a subclass of its direct
// superclass and interfaces.
func (l *Linker) initSubclasses() {
	for _, id := range l.pool.IDs() {
		l.pool.Class(id).Subclasses = nil
	}
	for _, id := range l.pool.IDs() {
		if super := l.pool.Superclass(id); super != classfile.NoClass {
			l.pool.AddSubclass(super, id)
		}
		for _, iface := range l.pool.Interfaces(id) {
			l.pool.AddSubclass(iface, id)
		}
	}
}
