package retarget

import (
	"github.com/daimatz/classmerge/pkg/classfile"
	"github.com/daimatz/classmerge/pkg/classpool"
)

// finishClass runs after every reference of cf has been rewritten, because
// it reads the rewritten superclass and interface constants.
func (r *Rewriter) finishClass(cf *classfile.ClassFile) error {
	if _, merged := r.targets.TargetOf(cf.ID); merged {
		return r.isolate(cf)
	}
	r.pruneSelfInterfaces(cf)
	r.registerSubclass(cf)
	return nil
}

// isolate detaches a class that has been merged into another one. Its own
// class constant now references the target, so the original name is
// restored in a fresh constant; the names of constants are fixed later
// based on their referenced classes, matching them by identity.
func (r *Rewriter) isolate(cf *classfile.ClassFile) error {
	name, err := classfile.GetClassName(cf.ConstantPool, cf.ThisClass)
	if err != nil {
		return err
	}
	e := classfile.NewConstantPoolEditor(cf)
	nameIndex, err := e.AddUtf8Constant(name)
	if err != nil {
		return err
	}
	thisClass, err := e.AddNewClassConstant(nameIndex, cf.ID)
	if err != nil {
		return err
	}
	cf.ThisClass = thisClass
	cf.Interfaces = cf.Interfaces[:0]
	cf.Subclasses = nil
	r.stats.RetargetedClasses++
	return nil
}

// pruneSelfInterfaces drops interfaces that were merged into cf itself.
func (r *Rewriter) pruneSelfInterfaces(cf *classfile.ClassFile) {
	kept := cf.Interfaces[:0]
	for i, index := range cf.Interfaces {
		if classpool.InterfaceAt(cf, i) == cf.ID {
			r.stats.PrunedInterfaces++
			continue
		}
		kept = append(kept, index)
	}
	cf.Interfaces = kept
}

// registerSubclass adds cf to the subclass sets of its (rewritten)
// superclass and interfaces.
func (r *Rewriter) registerSubclass(cf *classfile.ClassFile) {
	supers := append([]classfile.ClassID{r.h.Superclass(cf.ID)}, r.h.Interfaces(cf.ID)...)
	for _, super := range supers {
		if super == classfile.NoClass || super == cf.ID || !r.h.ExtendsOrImplements(cf.ID, super) {
			continue
		}
		if r.h.AddSubclass(super, cf.ID) {
			r.stats.RegisteredSubclasses++
		}
	}
}
