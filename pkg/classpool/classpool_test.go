package classpool

import (
	"errors"
	"slices"
	"testing"

	"github.com/daimatz/classmerge/pkg/classfile"
)

// newClass builds a class whose super and interface constants are already
// resolved to the given IDs.
func newClass(t *testing.T, name string, super classfile.ClassID, ifaces ...classfile.ClassID) *classfile.ClassFile {
	t.Helper()
	cf := &classfile.ClassFile{}
	e := classfile.NewConstantPoolEditor(cf)
	var err error
	if cf.ThisClass, err = e.AddClassConstant(name, classfile.NoClass); err != nil {
		t.Fatal(err)
	}
	if super != classfile.NoClass {
		// Names are irrelevant for resolved constants; only the cache is read.
		if cf.SuperClass, err = e.AddNewClassConstant(cf.ConstantPool[cf.ThisClass].(*classfile.ConstantClass).NameIndex, super); err != nil {
			t.Fatal(err)
		}
	}
	for _, id := range ifaces {
		index, err := e.AddNewClassConstant(cf.ConstantPool[cf.ThisClass].(*classfile.ConstantClass).NameIndex, id)
		if err != nil {
			t.Fatal(err)
		}
		cf.Interfaces = append(cf.Interfaces, index)
	}
	return cf
}

func add(t *testing.T, p *ClassPool, cf *classfile.ClassFile) classfile.ClassID {
	t.Helper()
	id, err := p.Add(cf)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

// testPool builds:
//
//	Object
//	I1, I2 extends I1
//	Base extends Object implements I2
//	Sub extends Base implements I1, I1
func testPool(t *testing.T) *ClassPool {
	p := New()
	object := add(t, p, newClass(t, "java/lang/Object", classfile.NoClass))
	i1 := add(t, p, newClass(t, "pkg/I1", object))
	i2 := add(t, p, newClass(t, "pkg/I2", object, i1))
	base := add(t, p, newClass(t, "pkg/Base", object, i2))
	add(t, p, newClass(t, "pkg/Sub", base, i1, i1))

	p.Class(object).Fields = []classfile.FieldInfo{{Name: "hidden", Descriptor: "I"}}
	p.Class(i1).Fields = []classfile.FieldInfo{{Name: "CONST", Descriptor: "I"}}
	p.Class(i1).Methods = []classfile.MethodInfo{{Name: "get", Descriptor: "()I"}}
	p.Class(base).Methods = []classfile.MethodInfo{
		{Name: "run", Descriptor: "()V"},
		{Name: "run", Descriptor: "(I)V"},
	}
	return p
}

func TestAddAndLookup(t *testing.T) {
	p := testPool(t)
	if p.Len() != 5 {
		t.Errorf("len: got %d, want 5", p.Len())
	}
	id := p.Lookup("pkg/Base")
	if id == classfile.NoClass {
		t.Fatal("pkg/Base not found")
	}
	if got := p.Name(id); got != "pkg/Base" {
		t.Errorf("name: got %q, want %q", got, "pkg/Base")
	}
	if p.Class(id).ID != id {
		t.Errorf("class ID: got %d, want %d", p.Class(id).ID, id)
	}
	if p.Class(classfile.NoClass) != nil || p.Name(classfile.NoClass) != "" {
		t.Error("NoClass resolves to a class")
	}
	if p.Lookup("pkg/Missing") != classfile.NoClass {
		t.Error("missing class found")
	}
	want := []string{"java/lang/Object", "pkg/Base", "pkg/I1", "pkg/I2", "pkg/Sub"}
	if got := p.Names(); !slices.Equal(got, want) {
		t.Errorf("names: got %v, want %v", got, want)
	}

	_, err := p.Add(newClass(t, "pkg/Base", classfile.NoClass))
	if !errors.Is(err, ErrDuplicateClass) {
		t.Errorf("duplicate add: got %v, want ErrDuplicateClass", err)
	}
}

func TestHierarchy(t *testing.T) {
	p := testPool(t)
	object, i1, i2 := p.Lookup("java/lang/Object"), p.Lookup("pkg/I1"), p.Lookup("pkg/I2")
	base, sub := p.Lookup("pkg/Base"), p.Lookup("pkg/Sub")

	if got := p.Superclass(sub); got != base {
		t.Errorf("superclass: got %d, want %d", got, base)
	}
	if got := p.Superclass(object); got != classfile.NoClass {
		t.Errorf("superclass of Object: got %d, want none", got)
	}
	if got := p.Interfaces(sub); !slices.Equal(got, []classfile.ClassID{i1}) {
		t.Errorf("interfaces are not deduplicated: got %v", got)
	}

	tests := []struct {
		sub, super classfile.ClassID
		want       bool
	}{
		{sub, sub, true},
		{sub, base, true},
		{sub, object, true},
		{sub, i2, true},
		{base, i1, true},
		{base, sub, false},
		{i1, i2, false},
		{classfile.NoClass, object, false},
	}
	for _, tt := range tests {
		if got := p.ExtendsOrImplements(tt.sub, tt.super); got != tt.want {
			t.Errorf("ExtendsOrImplements(%s, %s): got %v, want %v", p.Name(tt.sub), p.Name(tt.super), got, tt.want)
		}
	}
}

func TestSubclasses(t *testing.T) {
	p := testPool(t)
	base, sub, i1 := p.Lookup("pkg/Base"), p.Lookup("pkg/Sub"), p.Lookup("pkg/I1")

	if !p.AddSubclass(base, sub) {
		t.Error("first AddSubclass reported no change")
	}
	if p.AddSubclass(base, sub) {
		t.Error("second AddSubclass reported a change")
	}
	p.AddSubclass(base, i1)
	if got := p.Subclasses(base); !slices.Equal(got, []classfile.ClassID{i1, sub}) {
		t.Errorf("subclasses: got %v, want [%d %d]", got, i1, sub)
	}
	if p.AddSubclass(classfile.NoClass, sub) || p.AddSubclass(base, classfile.NoClass) {
		t.Error("AddSubclass accepted NoClass")
	}
	if got := p.Subclasses(sub); got != nil {
		t.Errorf("subclasses of leaf: got %v, want none", got)
	}
}

func TestFindMember(t *testing.T) {
	p := testPool(t)
	tests := []struct {
		name       string
		field      bool
		member     string
		descriptor string
		want       string
	}{
		{"declared method", false, "run", "(I)V", "pkg/Base.run(I)V"},
		{"method by name only", false, "run", "", "pkg/Base.run()V"},
		{"interface method", false, "get", "()I", "pkg/I1.get()I"},
		{"wrong descriptor", false, "get", "()J", ""},
		{"superclass field", true, "hidden", "I", "java/lang/Object.hidden I"},
		{"interface field", true, "CONST", "", "pkg/I1.CONST I"},
		{"missing field", true, "nope", "I", ""},
	}
	sub := p.Lookup("pkg/Sub")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ref classfile.MemberRef
			if tt.field {
				ref = p.FindField(sub, tt.member, tt.descriptor)
			} else {
				ref = p.FindMethod(sub, tt.member, tt.descriptor)
			}
			if got := p.MemberString(ref); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if tt.want == "" && !ref.IsZero() {
				t.Errorf("got %+v, want zero reference", ref)
			}
		})
	}

	if p.Field(classfile.MemberRef{Class: sub, Kind: classfile.FieldMember, Index: 3}) != nil {
		t.Error("out of range field reference resolved")
	}
	if p.Method(classfile.MemberRef{Class: p.Lookup("pkg/Base"), Kind: classfile.FieldMember}) != nil {
		t.Error("field reference resolved as a method")
	}
}
