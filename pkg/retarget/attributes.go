package retarget

import "github.com/daimatz/classmerge/pkg/classfile"

func (r *Rewriter) rewriteAttributes(attrs []classfile.Attribute) {
	for _, attr := range attrs {
		switch a := attr.(type) {
		case *classfile.SignatureAttribute:
			r.updateClasses(a.ReferencedClasses)
		case *classfile.LocalVariableTableAttribute:
			for i := range a.Variables {
				v := &a.Variables[i]
				v.ReferencedClass = r.updateClass(v.ReferencedClass)
			}
		case *classfile.LocalVariableTypeTableAttribute:
			for i := range a.Variables {
				r.updateClasses(a.Variables[i].ReferencedClasses)
			}
		case *classfile.AnnotationsAttribute:
			for _, ann := range a.Annotations {
				r.rewriteAnnotation(ann)
			}
		case *classfile.ParameterAnnotationsAttribute:
			for _, anns := range a.Parameters {
				for _, ann := range anns {
					r.rewriteAnnotation(ann)
				}
			}
		case *classfile.AnnotationDefaultAttribute:
			r.rewriteElementValue(a.Default)
		case *classfile.CodeAttribute:
			// Code attributes never nest, so this recursion is one level deep.
			r.rewriteAttributes(a.Attributes)
		}
	}
}

func (r *Rewriter) rewriteAnnotation(ann *classfile.Annotation) {
	if ann == nil {
		return
	}
	r.updateClasses(ann.ReferencedClasses)
	for _, v := range ann.Elements {
		r.rewriteElementValue(v)
	}
}

func (r *Rewriter) rewriteElementValue(v classfile.ElementValue) {
	if v == nil {
		return
	}
	r.rewriteElementMethod(v.Info())
	switch v := v.(type) {
	case *classfile.EnumConstantElementValue:
		r.updateClasses(v.ReferencedClasses)
	case *classfile.ClassElementValue:
		r.updateClasses(v.ReferencedClasses)
	case *classfile.AnnotationElementValue:
		r.rewriteAnnotation(v.Annotation)
	case *classfile.ArrayElementValue:
		for _, elem := range v.Values {
			r.rewriteElementValue(elem)
		}
	}
}

// rewriteElementMethod moves an element value to the retargeted annotation
// type. Annotation accessor methods cannot be overloaded, so the accessor is
// found by the element name alone.
func (r *Rewriter) rewriteElementMethod(info *classfile.ElementValueInfo) {
	old := info.ReferencedClass
	target := r.updateClass(old)
	if target == old {
		return
	}
	info.ReferencedClass = target
	info.ReferencedMethod = r.updateMember(info.ReferencedMethod, info.Name, "", target)
}
