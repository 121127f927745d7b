// Package classpool holds the classes of one optimization run in an arena
// addressed by classfile.ClassID, and answers hierarchy and member-lookup
// questions over it.
package classpool

import (
	"errors"
	"fmt"
	"slices"

	"fortio.org/safecast"
	"github.com/hashicorp/go-set/v3"

	"github.com/daimatz/classmerge/pkg/classfile"
)

// ErrDuplicateClass is returned by Add for a name that is already present.
var ErrDuplicateClass = errors.New("duplicate class")

// ClassPool is an arena of program and library classes.
type ClassPool struct {
	classes []*classfile.ClassFile
	names   []string
	byName  map[string]classfile.ClassID
}

// New returns an empty pool.
func New() *ClassPool {
	return &ClassPool{
		classes: []*classfile.ClassFile{nil}, // reserve 0 as NoClass
		names:   []string{""},
		byName:  make(map[string]classfile.ClassID),
	}
}

// Add registers cf and assigns its ID.
func (p *ClassPool) Add(cf *classfile.ClassFile) (classfile.ClassID, error) {
	name, err := cf.ClassName()
	if err != nil {
		return classfile.NoClass, fmt.Errorf("classpool: %w", err)
	}
	if _, ok := p.byName[name]; ok {
		return classfile.NoClass, fmt.Errorf("classpool: %s: %w", name, ErrDuplicateClass)
	}
	slot, err := safecast.Conv[uint32](len(p.classes))
	if err != nil {
		return classfile.NoClass, fmt.Errorf("classpool: too many classes: %w", err)
	}
	id := classfile.ClassID(slot)
	cf.ID = id
	p.classes = append(p.classes, cf)
	p.names = append(p.names, name)
	p.byName[name] = id
	return id, nil
}

// Class returns the class with the given ID, or nil.
func (p *ClassPool) Class(id classfile.ClassID) *classfile.ClassFile {
	if id == classfile.NoClass || int(id) >= len(p.classes) {
		return nil
	}
	return p.classes[id]
}

// Lookup returns the ID of the named class, or NoClass.
func (p *ClassPool) Lookup(name string) classfile.ClassID {
	return p.byName[name]
}

// Name returns the name the class was registered under, or "" for NoClass.
// The name does not follow later edits of the class's own constant.
func (p *ClassPool) Name(id classfile.ClassID) string {
	if p.Class(id) == nil {
		return ""
	}
	return p.names[id]
}

// Len returns the number of classes in the pool.
func (p *ClassPool) Len() int { return len(p.classes) - 1 }

// IDs returns all class IDs in insertion order.
func (p *ClassPool) IDs() []classfile.ClassID {
	ids := make([]classfile.ClassID, 0, p.Len())
	for i := 1; i < len(p.classes); i++ {
		ids = append(ids, classfile.ClassID(i))
	}
	return ids
}

// Names returns the names of all classes, sorted.
func (p *ClassPool) Names() []string {
	names := make([]string, 0, len(p.byName))
	for name := range p.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Superclass returns the resolved superclass of id, read through the cache
// of its super_class constant.
func (p *ClassPool) Superclass(id classfile.ClassID) classfile.ClassID {
	cf := p.Class(id)
	if cf == nil || cf.SuperClass == 0 {
		return classfile.NoClass
	}
	return referencedClass(cf, cf.SuperClass)
}

// Interfaces returns the resolved interfaces of id in declaration order,
// without duplicates. Unresolved interfaces are omitted.
func (p *ClassPool) Interfaces(id classfile.ClassID) []classfile.ClassID {
	cf := p.Class(id)
	if cf == nil {
		return nil
	}
	var out []classfile.ClassID
	for _, index := range cf.Interfaces {
		ref := referencedClass(cf, index)
		if ref != classfile.NoClass && !slices.Contains(out, ref) {
			out = append(out, ref)
		}
	}
	return out
}

// InterfaceAt returns the resolved class of the i-th interface entry of cf.
func InterfaceAt(cf *classfile.ClassFile, i int) classfile.ClassID {
	return referencedClass(cf, cf.Interfaces[i])
}

func referencedClass(cf *classfile.ClassFile, index uint16) classfile.ClassID {
	if int(index) >= len(cf.ConstantPool) {
		return classfile.NoClass
	}
	if cc, ok := cf.ConstantPool[index].(*classfile.ConstantClass); ok {
		return cc.ReferencedClass
	}
	return classfile.NoClass
}

// ExtendsOrImplements reports whether sub is super, or extends or implements
// it directly or indirectly.
func (p *ClassPool) ExtendsOrImplements(sub, super classfile.ClassID) bool {
	if sub == classfile.NoClass || super == classfile.NoClass {
		return false
	}
	found := false
	p.walkHierarchy(sub, func(id classfile.ClassID) bool {
		found = id == super
		return !found
	})
	return found
}

// walkHierarchy calls fn for id and every class it extends or implements,
// breadth first, each class once. It stops when fn returns false.
func (p *ClassPool) walkHierarchy(id classfile.ClassID, fn func(classfile.ClassID) bool) {
	visited := set.New[classfile.ClassID](8)
	queue := []classfile.ClassID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == classfile.NoClass || !visited.Insert(cur) {
			continue
		}
		if !fn(cur) {
			return
		}
		queue = append(queue, p.Superclass(cur))
		queue = append(queue, p.Interfaces(cur)...)
	}
}

// AddSubclass records sub as a direct subclass of target. Adding the same
// subclass twice has no effect.
func (p *ClassPool) AddSubclass(target, sub classfile.ClassID) bool {
	cf := p.Class(target)
	if cf == nil || sub == classfile.NoClass {
		return false
	}
	if cf.Subclasses == nil {
		cf.Subclasses = set.New[classfile.ClassID](1)
	}
	return cf.Subclasses.Insert(sub)
}

// Subclasses returns the known direct subclasses of id, sorted by ID.
func (p *ClassPool) Subclasses(id classfile.ClassID) []classfile.ClassID {
	cf := p.Class(id)
	if cf == nil || cf.Subclasses == nil {
		return nil
	}
	out := cf.Subclasses.Slice()
	slices.Sort(out)
	return out
}
