package classfile

// Annotation is a single annotation: its type descriptor and element values
// in declaration order.
type Annotation struct {
	Type     string
	Elements []ElementValue

	// ReferencedClasses holds the classes named by Type.
	ReferencedClasses []ClassID
}

// Element value tags.
const (
	ElementTagEnum       = 'e'
	ElementTagClass      = 'c'
	ElementTagAnnotation = '@'
	ElementTagArray      = '['
)

// ElementValue is implemented by every element value variant.
type ElementValue interface {
	Tag() byte
	Info() *ElementValueInfo
}

// ElementValueInfo is shared by all element values. ReferencedClass is the
// annotation type that declares the element and ReferencedMethod is its
// accessor method in that type.
type ElementValueInfo struct {
	Name             string
	ReferencedClass  ClassID
	ReferencedMethod MemberRef
}

func (e *ElementValueInfo) Info() *ElementValueInfo { return e }

// ConstantElementValue is a primitive or String constant. ConstTag is one of
// B C D F I J S Z s.
type ConstantElementValue struct {
	ElementValueInfo
	ConstTag   byte
	ConstIndex uint16
}

func (e *ConstantElementValue) Tag() byte { return e.ConstTag }

type EnumConstantElementValue struct {
	ElementValueInfo
	TypeName          string
	ConstName         string
	ReferencedClasses []ClassID
}

func (e *EnumConstantElementValue) Tag() byte { return ElementTagEnum }

type ClassElementValue struct {
	ElementValueInfo
	ClassInfo         string
	ReferencedClasses []ClassID
}

func (e *ClassElementValue) Tag() byte { return ElementTagClass }

type AnnotationElementValue struct {
	ElementValueInfo
	Annotation *Annotation
}

func (e *AnnotationElementValue) Tag() byte { return ElementTagAnnotation }

type ArrayElementValue struct {
	ElementValueInfo
	Values []ElementValue
}

func (e *ArrayElementValue) Tag() byte { return ElementTagArray }
