// Package retarget rewrites the references of classes whose classes have
// been merged into target classes, and repairs the class hierarchy so that
// the merged classes no longer take part in it.
//
// The rewriter only hops once: the Targets it is given must already map
// every merged class to its final target.
package retarget

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/daimatz/classmerge/pkg/classfile"
)

// Targets reports the class that replaces a merged class.
type Targets interface {
	TargetOf(id classfile.ClassID) (classfile.ClassID, bool)
}

// TargetsFunc adapts a function to Targets.
type TargetsFunc func(id classfile.ClassID) (classfile.ClassID, bool)

func (f TargetsFunc) TargetOf(id classfile.ClassID) (classfile.ClassID, bool) { return f(id) }

// NoTargets is a Targets in which no class is merged.
var NoTargets Targets = TargetsFunc(func(classfile.ClassID) (classfile.ClassID, bool) {
	return classfile.NoClass, false
})

// Hierarchy is the view of the class pool the rewriter needs.
// *classpool.ClassPool implements it.
type Hierarchy interface {
	Class(id classfile.ClassID) *classfile.ClassFile
	Name(id classfile.ClassID) string
	IDs() []classfile.ClassID
	FindField(owner classfile.ClassID, name, descriptor string) classfile.MemberRef
	FindMethod(owner classfile.ClassID, name, descriptor string) classfile.MemberRef
	Superclass(id classfile.ClassID) classfile.ClassID
	Interfaces(id classfile.ClassID) []classfile.ClassID
	ExtendsOrImplements(sub, super classfile.ClassID) bool
	AddSubclass(target, sub classfile.ClassID) bool
}

// Stats counts what a Rewriter changed.
type Stats struct {
	ClassReferences      int // cached class references replaced
	MembersResolved      int // member references re-resolved in a target
	MembersLost          int // member references with no match in the target
	RetargetedClasses    int // classes that were themselves merged
	PrunedInterfaces     int // interfaces dropped because they now name the class itself
	RegisteredSubclasses int // subclass registrations added
}

// Rewriter retargets references in the classes of a hierarchy.
type Rewriter struct {
	h       Hierarchy
	targets Targets
	log     *slog.Logger
	stats   Stats
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithLogger sets the logger; member re-resolutions are logged at debug
// level.
func WithLogger(l *slog.Logger) Option {
	return func(r *Rewriter) { r.log = l }
}

// New returns a rewriter over h using the given merge targets.
func New(h Hierarchy, targets Targets, opts ...Option) *Rewriter {
	r := &Rewriter{
		h:       h,
		targets: targets,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stats returns the counts accumulated so far.
func (r *Rewriter) Stats() Stats { return r.stats }

// Run rewrites every class of the hierarchy, one at a time in ID order.
// Classes must not be rewritten concurrently: rewriting one class can
// modify the subclass sets of others.
func (r *Rewriter) Run() error {
	for _, id := range r.h.IDs() {
		if err := r.VisitClass(id); err != nil {
			return err
		}
	}
	return nil
}

// VisitClass rewrites one class. For a program class it rewrites, in this
// order, the constant pool, the fields, the methods and the class
// attributes, and finally either isolates the class (if it is merged
// itself) or repairs its place in the hierarchy. For a library class only
// fields and methods are rewritten.
func (r *Rewriter) VisitClass(id classfile.ClassID) error {
	cf := r.h.Class(id)
	if cf == nil {
		return nil
	}
	if cf.Library {
		r.rewriteFields(cf)
		r.rewriteMethods(cf)
		return nil
	}
	steps := [...]func(*classfile.ClassFile) error{
		r.rewriteConstantPool,
		r.rewriteFields,
		r.rewriteMethods,
		r.rewriteClassAttributes,
		r.finishClass,
	}
	for _, step := range steps {
		if err := step(cf); err != nil {
			return fmt.Errorf("retargeting %s: %w", r.h.Name(id), err)
		}
	}
	return nil
}

func (r *Rewriter) rewriteConstantPool(cf *classfile.ClassFile) error {
	for _, c := range cf.ConstantPool {
		switch c := c.(type) {
		case *classfile.ConstantClass:
			c.ReferencedClass = r.updateClass(c.ReferencedClass)
		case *classfile.ConstantString:
			r.rewriteString(cf, c)
		case classfile.RefConstant:
			r.rewriteRef(cf, c)
		}
	}
	return nil
}

// rewriteString only acts on strings that an earlier analysis found to
// name a class.
func (r *Rewriter) rewriteString(cf *classfile.ClassFile, c *classfile.ConstantString) {
	old := c.ReferencedClass
	target := r.updateClass(old)
	if target == old {
		return
	}
	text, _ := classfile.GetUtf8(cf.ConstantPool, c.StringIndex)
	c.ReferencedClass = target
	c.ReferencedMember = r.updateMember(c.ReferencedMember, text, "", target)
}

func (r *Rewriter) rewriteRef(cf *classfile.ClassFile, c classfile.RefConstant) {
	ref := c.Ref()
	old := ref.ReferencedClass
	target := r.updateClass(old)
	if target == old {
		return
	}
	name, desc, _ := classfile.GetNameAndType(cf.ConstantPool, ref.NameAndTypeIndex)
	ref.ReferencedClass = target
	ref.ReferencedMember = r.updateMember(ref.ReferencedMember, name, desc, target)
	r.log.Debug("retargeted member reference",
		"class", r.h.Name(cf.ID),
		"from", r.h.Name(old),
		"to", r.h.Name(target),
		"name", name,
		"descriptor", desc,
		"resolved", !ref.ReferencedMember.IsZero())
}

func (r *Rewriter) rewriteFields(cf *classfile.ClassFile) error {
	for i := range cf.Fields {
		f := &cf.Fields[i]
		f.ReferencedClass = r.updateClass(f.ReferencedClass)
		if !cf.Library {
			r.rewriteAttributes(f.Attributes)
		}
	}
	return nil
}

func (r *Rewriter) rewriteMethods(cf *classfile.ClassFile) error {
	for i := range cf.Methods {
		m := &cf.Methods[i]
		r.updateClasses(m.ReferencedClasses)
		if !cf.Library {
			r.rewriteAttributes(m.Attributes)
		}
	}
	return nil
}

func (r *Rewriter) rewriteClassAttributes(cf *classfile.ClassFile) error {
	r.rewriteAttributes(cf.Attributes)
	return nil
}

// updateClass returns the target of id, or id itself if it is not merged.
func (r *Rewriter) updateClass(id classfile.ClassID) classfile.ClassID {
	if id == classfile.NoClass {
		return id
	}
	if target, ok := r.targets.TargetOf(id); ok && target != classfile.NoClass && target != id {
		r.stats.ClassReferences++
		return target
	}
	return id
}

func (r *Rewriter) updateClasses(ids []classfile.ClassID) {
	for i, id := range ids {
		ids[i] = r.updateClass(id)
	}
}

// updateMember looks up the counterpart of member in target. Fields are
// matched by name and type, methods by name and descriptor; an empty
// descriptor matches by name alone. A member that cannot be found becomes
// absent: the merge decision is responsible for keeping every referenced
// member alive in the target.
func (r *Rewriter) updateMember(member classfile.MemberRef, name, descriptor string, target classfile.ClassID) classfile.MemberRef {
	if member.IsZero() {
		return member
	}
	var found classfile.MemberRef
	if member.IsField() {
		found = r.h.FindField(target, name, descriptor)
	} else {
		found = r.h.FindMethod(target, name, descriptor)
	}
	if found.IsZero() {
		r.stats.MembersLost++
		r.log.Debug("member not found in target class",
			"target", r.h.Name(target),
			"name", name,
			"descriptor", descriptor)
	} else {
		r.stats.MembersResolved++
	}
	return found
}
