package classfile

// Attribute names decoded by the parser.
const (
	AttrCode                                 = "Code"
	AttrSignature                            = "Signature"
	AttrLocalVariableTable                   = "LocalVariableTable"
	AttrLocalVariableTypeTable               = "LocalVariableTypeTable"
	AttrRuntimeVisibleAnnotations            = "RuntimeVisibleAnnotations"
	AttrRuntimeInvisibleAnnotations          = "RuntimeInvisibleAnnotations"
	AttrRuntimeVisibleParameterAnnotations   = "RuntimeVisibleParameterAnnotations"
	AttrRuntimeInvisibleParameterAnnotations = "RuntimeInvisibleParameterAnnotations"
	AttrAnnotationDefault                    = "AnnotationDefault"
)

// Attribute is implemented by every attribute kind.
type Attribute interface {
	AttributeName() string
}

// AttributeInfo represents a raw attribute the parser does not decode.
type AttributeInfo struct {
	Name string
	Data []byte
}

func (a *AttributeInfo) AttributeName() string { return a.Name }

// ExceptionHandler represents an entry in the exception table.
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

// CodeAttribute represents the Code attribute of a method.
type CodeAttribute struct {
	MaxStack          uint16
	MaxLocals         uint16
	Code              []byte
	ExceptionHandlers []ExceptionHandler
	Attributes        []Attribute
}

func (a *CodeAttribute) AttributeName() string { return AttrCode }

// SignatureAttribute holds a generic signature of a class, field or method.
type SignatureAttribute struct {
	Signature         string
	ReferencedClasses []ClassID
}

func (a *SignatureAttribute) AttributeName() string { return AttrSignature }

type LocalVariable struct {
	StartPC         uint16
	Length          uint16
	Name            string
	Descriptor      string
	Index           uint16
	ReferencedClass ClassID
}

type LocalVariableTableAttribute struct {
	Variables []LocalVariable
}

func (a *LocalVariableTableAttribute) AttributeName() string { return AttrLocalVariableTable }

type LocalVariableType struct {
	StartPC           uint16
	Length            uint16
	Name              string
	Signature         string
	Index             uint16
	ReferencedClasses []ClassID
}

type LocalVariableTypeTableAttribute struct {
	Variables []LocalVariableType
}

func (a *LocalVariableTypeTableAttribute) AttributeName() string {
	return AttrLocalVariableTypeTable
}

// AnnotationsAttribute is a Runtime(In)VisibleAnnotations attribute.
type AnnotationsAttribute struct {
	Name        string
	Annotations []*Annotation
}

func (a *AnnotationsAttribute) AttributeName() string { return a.Name }

// ParameterAnnotationsAttribute is a Runtime(In)VisibleParameterAnnotations
// attribute, one annotation list per parameter.
type ParameterAnnotationsAttribute struct {
	Name       string
	Parameters [][]*Annotation
}

func (a *ParameterAnnotationsAttribute) AttributeName() string { return a.Name }

type AnnotationDefaultAttribute struct {
	Default ElementValue
}

func (a *AnnotationDefaultAttribute) AttributeName() string { return AttrAnnotationDefault }

// FindAttribute returns the first attribute with the given name, or nil.
func FindAttribute(attrs []Attribute, name string) Attribute {
	for _, a := range attrs {
		if a.AttributeName() == name {
			return a
		}
	}
	return nil
}
