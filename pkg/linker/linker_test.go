package linker

import (
	"bytes"
	"encoding/binary"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/daimatz/classmerge/pkg/classfile"
	"github.com/daimatz/classmerge/pkg/classpool"
)

type library map[string]*classfile.ClassFile

func (l library) Load(name string) (*classfile.ClassFile, error) { return l[name], nil }

type failingSource struct{}

func (failingSource) Load(name string) (*classfile.ClassFile, error) {
	return nil, errors.New("disk on fire")
}

func newClass(t *testing.T, name, super string, ifaces ...string) (*classfile.ClassFile, *classfile.ConstantPoolEditor) {
	t.Helper()
	cf := &classfile.ClassFile{}
	e := classfile.NewConstantPoolEditor(cf)
	var err error
	if cf.ThisClass, err = e.AddClassConstant(name, classfile.NoClass); err != nil {
		t.Fatal(err)
	}
	if super != "" {
		if cf.SuperClass, err = e.AddClassConstant(super, classfile.NoClass); err != nil {
			t.Fatal(err)
		}
	}
	for _, iface := range ifaces {
		index, err := e.AddClassConstant(iface, classfile.NoClass)
		if err != nil {
			t.Fatal(err)
		}
		cf.Interfaces = append(cf.Interfaces, index)
	}
	return cf, e
}

type fixture struct {
	pool *classpool.ClassPool
	app  *classfile.ClassFile
	libs library
	logs *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	app, e := newClass(t, "pkg/App", "lib/Base", "lib/Iface")
	check := func(_ uint16, err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	check(e.AddClassConstant("[Lpkg/Util;", classfile.NoClass))
	check(e.AddMethodrefConstant("lib/Base", "start", "()V"))
	check(e.AddFieldrefConstant("pkg/Util", "count", "I"))
	check(e.AddStringConstant("pkg.Util"))
	check(e.AddStringConstant("no.such.Class"))
	app.Fields = []classfile.FieldInfo{{Name: "util", Descriptor: "[Lpkg/Util;"}}
	app.Methods = []classfile.MethodInfo{{
		Name:       "use",
		Descriptor: "(Ljava/util/List;I)Lpkg/Util;",
		Attributes: []classfile.Attribute{&classfile.CodeAttribute{Attributes: []classfile.Attribute{
			&classfile.LocalVariableTableAttribute{Variables: []classfile.LocalVariable{{Name: "u", Descriptor: "Lpkg/Util;"}}},
		}}},
	}}
	app.Attributes = []classfile.Attribute{
		&classfile.SignatureAttribute{Signature: "Llib/Base;Llib/Iface;"},
		&classfile.AnnotationsAttribute{Name: classfile.AttrRuntimeVisibleAnnotations, Annotations: []*classfile.Annotation{{
			Type: "Llib/Ann;",
			Elements: []classfile.ElementValue{&classfile.ArrayElementValue{
				ElementValueInfo: classfile.ElementValueInfo{Name: "value"},
				Values: []classfile.ElementValue{&classfile.ClassElementValue{
					ElementValueInfo: classfile.ElementValueInfo{Name: "value"},
					ClassInfo:        "Lpkg/Util;",
				}},
			}},
		}}},
	}

	util, _ := newClass(t, "pkg/Util", "lib/Root")
	util.Fields = []classfile.FieldInfo{{Name: "count", Descriptor: "I"}}

	base, _ := newClass(t, "lib/Base", "lib/Root")
	base.Methods = []classfile.MethodInfo{
		{Name: "start", Descriptor: "()V"},
		{Name: "helper", Descriptor: "(Llib/Unseen;Lpkg/Util;)V"},
	}
	iface, _ := newClass(t, "lib/Iface", "lib/Root")
	root, _ := newClass(t, "lib/Root", "")
	ann, _ := newClass(t, "lib/Ann", "lib/Root")
	ann.Methods = []classfile.MethodInfo{{Name: "value", Descriptor: "()[Ljava/lang/Class;"}}
	unseen, _ := newClass(t, "lib/Unseen", "lib/Root")

	pool := classpool.New()
	for _, cf := range []*classfile.ClassFile{app, util} {
		if _, err := pool.Add(cf); err != nil {
			t.Fatal(err)
		}
	}
	return &fixture{
		pool: pool,
		app:  app,
		libs: library{"lib/Base": base, "lib/Iface": iface, "lib/Root": root, "lib/Ann": ann, "lib/Unseen": unseen},
		logs: &bytes.Buffer{},
	}
}

func (f *fixture) link(t *testing.T, linkStrings bool) *Linker {
	t.Helper()
	l := New(f.pool, Options{
		Libraries:   f.libs,
		LinkStrings: linkStrings,
		Logger:      slog.New(slog.NewTextHandler(f.logs, nil)),
	})
	if err := l.Link(); err != nil {
		t.Fatalf("Link: %v", err)
	}
	return l
}

func (f *fixture) name(id classfile.ClassID) string { return f.pool.Name(id) }

func TestLinkLoadsLibraries(t *testing.T) {
	f := newFixture(t)
	l := f.link(t, true)

	for _, name := range []string{"lib/Base", "lib/Iface", "lib/Root", "lib/Ann"} {
		id := f.pool.Lookup(name)
		if id == classfile.NoClass {
			t.Errorf("%s not loaded", name)
			continue
		}
		if !f.pool.Class(id).Library {
			t.Errorf("%s not marked as library", name)
		}
	}
	if f.pool.Lookup("lib/Unseen") != classfile.NoClass {
		t.Error("lib/Unseen loaded through a library method descriptor")
	}
	base := f.pool.Class(f.pool.Lookup("lib/Base"))
	if got := f.pool.Superclass(base.ID); f.name(got) != "lib/Root" {
		t.Errorf("library superclass: got %q, want lib/Root", f.name(got))
	}
	helper := base.Methods[1].ReferencedClasses
	if len(helper) != 2 || helper[0] != classfile.NoClass || f.name(helper[1]) != "pkg/Util" {
		t.Errorf("library method classes: got %v", helper)
	}

	if got, want := l.Missing(), []string{"java/util/List"}; !slices.Equal(got, want) {
		t.Errorf("missing: got %v, want %v", got, want)
	}
	if n := strings.Count(f.logs.String(), "can't find referenced class"); n != 1 {
		t.Errorf("missing class warnings: got %d, want 1\n%s", n, f.logs)
	}
}

func TestLinkConstants(t *testing.T) {
	f := newFixture(t)
	f.link(t, true)
	pool := f.app.ConstantPool

	for _, c := range pool {
		switch c := c.(type) {
		case *classfile.ConstantClass:
			name, _ := classfile.GetUtf8(pool, c.NameIndex)
			want := name
			if name == "[Lpkg/Util;" {
				want = "pkg/Util"
			}
			if got := f.name(c.ReferencedClass); got != want {
				t.Errorf("class constant %s: got %q, want %q", name, got, want)
			}
		case classfile.RefConstant:
			ref := c.Ref()
			got := f.pool.MemberString(ref.ReferencedMember)
			if got != "lib/Base.start()V" && got != "pkg/Util.count I" {
				t.Errorf("%s: unexpected member %q", classfile.TagName(c.Tag()), got)
			}
		case *classfile.ConstantString:
			text, _ := classfile.GetUtf8(pool, c.StringIndex)
			want := ""
			if text == "pkg.Util" {
				want = "pkg/Util"
			}
			if got := f.name(c.ReferencedClass); got != want {
				t.Errorf("string %q: got %q, want %q", text, got, want)
			}
		}
	}

	t.Run("strings stay unlinked by default", func(t *testing.T) {
		f := newFixture(t)
		f.link(t, false)
		for _, c := range f.app.ConstantPool {
			if cs, ok := c.(*classfile.ConstantString); ok && cs.ReferencedClass != classfile.NoClass {
				t.Errorf("string linked to %s", f.name(cs.ReferencedClass))
			}
		}
	})
}

func TestLinkMembersAndAttributes(t *testing.T) {
	f := newFixture(t)
	f.link(t, true)

	if got := f.name(f.app.Fields[0].ReferencedClass); got != "pkg/Util" {
		t.Errorf("array field: got %q, want pkg/Util", got)
	}
	got := make([]string, 0, 2)
	for _, id := range f.app.Methods[0].ReferencedClasses {
		got = append(got, f.name(id))
	}
	if want := []string{"", "pkg/Util"}; !slices.Equal(got, want) {
		t.Errorf("method classes: got %q, want %q", got, want)
	}

	code := classfile.FindAttribute(f.app.Methods[0].Attributes, classfile.AttrCode).(*classfile.CodeAttribute)
	lvt := code.Attributes[0].(*classfile.LocalVariableTableAttribute)
	if got := f.name(lvt.Variables[0].ReferencedClass); got != "pkg/Util" {
		t.Errorf("local variable: got %q, want pkg/Util", got)
	}

	sig := f.app.Attributes[0].(*classfile.SignatureAttribute)
	if len(sig.ReferencedClasses) != 2 || f.name(sig.ReferencedClasses[1]) != "lib/Iface" {
		t.Errorf("signature classes: got %v", sig.ReferencedClasses)
	}

	ann := f.app.Attributes[1].(*classfile.AnnotationsAttribute).Annotations[0]
	array := ann.Elements[0].(*classfile.ArrayElementValue)
	nested := array.Values[0].(*classfile.ClassElementValue)
	for _, info := range []*classfile.ElementValueInfo{array.Info(), nested.Info()} {
		if got := f.name(info.ReferencedClass); got != "lib/Ann" {
			t.Errorf("element %s class: got %q, want lib/Ann", info.Name, got)
		}
		if got := f.pool.MemberString(info.ReferencedMethod); got != "lib/Ann.value()[Ljava/lang/Class;" {
			t.Errorf("element %s method: got %q", info.Name, got)
		}
	}
	if len(nested.ReferencedClasses) != 1 || f.name(nested.ReferencedClasses[0]) != "pkg/Util" {
		t.Errorf("class value: got %v", nested.ReferencedClasses)
	}
}

func TestLinkSubclasses(t *testing.T) {
	f := newFixture(t)
	f.link(t, true)
	subs := func(name string) []string {
		var out []string
		for _, id := range f.pool.Subclasses(f.pool.Lookup(name)) {
			out = append(out, f.name(id))
		}
		return out
	}
	tests := []struct {
		class string
		want  []string
	}{
		{"lib/Base", []string{"pkg/App"}},
		{"lib/Iface", []string{"pkg/App"}},
		{"lib/Root", []string{"pkg/Util", "lib/Base", "lib/Iface", "lib/Ann"}},
		{"pkg/App", nil},
	}
	for _, tt := range tests {
		if got := subs(tt.class); !slices.Equal(got, tt.want) {
			t.Errorf("subclasses of %s: got %v, want %v", tt.class, got, tt.want)
		}
	}
}

func TestLinkSourceError(t *testing.T) {
	f := newFixture(t)
	err := Link(f.pool, Options{Libraries: failingSource{}})
	if err == nil || !strings.Contains(err.Error(), "disk on fire") {
		t.Errorf("got %v, want the source error", err)
	}
}

// methodrefClass assembles a class whose only Methodref has the given
// class_index. The pool holds 6 entries.
func methodrefClass(classIndex uint16) []byte {
	var b bytes.Buffer
	w := func(v any) { binary.Write(&b, binary.BigEndian, v) }
	utf8 := func(s string) {
		w(uint8(classfile.TagUtf8))
		w(uint16(len(s)))
		b.WriteString(s)
	}
	w(uint32(0xCAFEBABE))
	w(uint16(0))
	w(uint16(52))
	w(uint16(7))
	utf8("pkg/Bad") // #1
	w(uint8(classfile.TagClass))
	w(uint16(1)) // #2
	utf8("run")  // #3
	utf8("()V")  // #4
	w(uint8(classfile.TagNameAndType))
	w(uint16(3))
	w(uint16(4)) // #5
	w(uint8(classfile.TagMethodref))
	w(classIndex)
	w(uint16(5)) // #6
	w(uint16(classfile.AccPublic | classfile.AccSuper))
	w(uint16(2))
	w(uint16(0)) // super_class
	w(uint16(0)) // interfaces
	w(uint16(0)) // fields
	w(uint16(0)) // methods
	w(uint16(0)) // attributes
	return b.Bytes()
}

func TestLinkInvalidClassIndex(t *testing.T) {
	tests := []struct {
		name       string
		classIndex uint16
		want       string
	}{
		{"past the pool", 200, "constant 6: invalid class_index 200"},
		{"unused slot", 0, "constant 6: invalid class_index 0"},
		{"not a class", 3, "constant 6: class_index 3 is not a Class"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cf, err := classfile.Parse(bytes.NewReader(methodrefClass(tt.classIndex)))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			pool := classpool.New()
			if _, err := pool.Add(cf); err != nil {
				t.Fatal(err)
			}
			err = Link(pool, Options{})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}
