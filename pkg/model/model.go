// Package model builds linked class pools from small textual descriptions
// of class graphs. It lets merge scenarios be reproduced without compiled
// class files.
package model

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/daimatz/classmerge/pkg/classfile"
	"github.com/daimatz/classmerge/pkg/classpool"
	"github.com/daimatz/classmerge/pkg/linker"
)

// Graph is a set of classes. In TOML each class is a [[class]] table:
//
//	[[class]]
//	name = "pkg/Caller"
//	super = "java/lang/Object"
//	fields = ["target Lpkg/A;"]
//	methods = ["call(Lpkg/A;)V"]
//	refs = ["class pkg/A", "method pkg/A.run()V", "string pkg.A"]
type Graph struct {
	Classes []Class `toml:"class"`
}

// Class describes one class.
type Class struct {
	Name       string   `toml:"name"`
	Super      string   `toml:"super"`
	Interfaces []string `toml:"interfaces"`
	Interface  bool     `toml:"interface"`
	Library    bool     `toml:"library"`
	// Fields are "name descriptor" pairs.
	Fields []string `toml:"fields"`
	// Methods are name+descriptor, e.g. "run(I)V".
	Methods []string `toml:"methods"`
	// Refs add constants: "class C", "string text", "field C.name desc",
	// "method C.name desc", "imethod C.name desc".
	Refs        []string     `toml:"refs"`
	Signature   string       `toml:"signature"`
	Annotations []Annotation `toml:"annotation"`
}

// Annotation is a runtime-visible annotation on a class. Enum values are
// written "pkg/Kind.CONST", class values as internal names.
type Annotation struct {
	Type    string            `toml:"type"`
	Enums   map[string]string `toml:"enums"`
	Classes map[string]string `toml:"classes"`
}

// LoadFile reads a graph description from a TOML file.
func LoadFile(path string) (Graph, error) {
	var g Graph
	meta, err := toml.DecodeFile(path, &g)
	if err != nil {
		return Graph{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("class") {
		return Graph{}, fmt.Errorf("%s: missing [[class]]", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Graph{}, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	return g, nil
}

// Build turns g into a linked pool. Classes that are referenced but not
// described become empty library classes.
func Build(g Graph, logger *slog.Logger) (*classpool.ClassPool, error) {
	pool := classpool.New()
	for _, c := range g.Classes {
		cf, err := c.classFile()
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", c.Name, err)
		}
		if _, err := pool.Add(cf); err != nil {
			return nil, err
		}
	}
	err := linker.Link(pool, linker.Options{
		Libraries:   stubs{},
		LinkStrings: true,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// stubs supplies an empty library class for any name.
type stubs struct{}

func (stubs) Load(name string) (*classfile.ClassFile, error) {
	return Class{Name: name}.classFile()
}

func (c Class) classFile() (*classfile.ClassFile, error) {
	if c.Name == "" {
		return nil, errors.New("missing name")
	}
	cf := &classfile.ClassFile{MajorVersion: 52, AccessFlags: classfile.AccPublic | classfile.AccSuper, Library: c.Library}
	if c.Interface {
		cf.AccessFlags = classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract
	}
	e := classfile.NewConstantPoolEditor(cf)
	var err error
	if cf.ThisClass, err = e.AddClassConstant(c.Name, classfile.NoClass); err != nil {
		return nil, err
	}
	if c.Super != "" {
		if cf.SuperClass, err = e.AddClassConstant(c.Super, classfile.NoClass); err != nil {
			return nil, err
		}
	}
	for _, name := range c.Interfaces {
		index, err := e.AddClassConstant(name, classfile.NoClass)
		if err != nil {
			return nil, err
		}
		cf.Interfaces = append(cf.Interfaces, index)
	}
	for _, f := range c.Fields {
		name, desc, ok := strings.Cut(f, " ")
		if !ok {
			return nil, fmt.Errorf("field %q: want \"name descriptor\"", f)
		}
		cf.Fields = append(cf.Fields, classfile.FieldInfo{Name: name, Descriptor: desc})
	}
	for _, m := range c.Methods {
		paren := strings.IndexByte(m, '(')
		if paren <= 0 {
			return nil, fmt.Errorf("method %q: want name(args)ret", m)
		}
		flags := uint16(classfile.AccPublic)
		if c.Interface {
			flags |= classfile.AccAbstract
		}
		cf.Methods = append(cf.Methods, classfile.MethodInfo{AccessFlags: flags, Name: m[:paren], Descriptor: m[paren:]})
	}
	for _, r := range c.Refs {
		if err := addRef(e, r); err != nil {
			return nil, err
		}
	}
	if c.Signature != "" {
		cf.Attributes = append(cf.Attributes, &classfile.SignatureAttribute{Signature: c.Signature})
	}
	if len(c.Annotations) > 0 {
		attr := &classfile.AnnotationsAttribute{Name: classfile.AttrRuntimeVisibleAnnotations}
		for _, a := range c.Annotations {
			ann, err := a.annotation()
			if err != nil {
				return nil, err
			}
			attr.Annotations = append(attr.Annotations, ann)
		}
		cf.Attributes = append(cf.Attributes, attr)
	}
	return cf, nil
}

func addRef(e *classfile.ConstantPoolEditor, r string) error {
	kind, rest, ok := strings.Cut(r, " ")
	if !ok {
		return fmt.Errorf("ref %q: want \"kind target\"", r)
	}
	var err error
	switch kind {
	case "class":
		_, err = e.AddClassConstant(rest, classfile.NoClass)
	case "string":
		_, err = e.AddStringConstant(rest)
	case "field", "method", "imethod":
		member, desc, ok := strings.Cut(rest, " ")
		if kind != "field" {
			paren := strings.IndexByte(rest, '(')
			ok = paren > 0
			if ok {
				member, desc = rest[:paren], rest[paren:]
			}
		}
		dot := strings.LastIndexByte(member, '.')
		if !ok || dot <= 0 {
			return fmt.Errorf("ref %q: want Class.member descriptor", r)
		}
		class, name := member[:dot], member[dot+1:]
		switch kind {
		case "field":
			_, err = e.AddFieldrefConstant(class, name, desc)
		case "method":
			_, err = e.AddMethodrefConstant(class, name, desc)
		default:
			_, err = e.AddInterfaceMethodrefConstant(class, name, desc)
		}
	default:
		return fmt.Errorf("ref %q: unknown kind %q", r, kind)
	}
	return err
}

func (a Annotation) annotation() (*classfile.Annotation, error) {
	if a.Type == "" {
		return nil, errors.New("annotation without type")
	}
	ann := &classfile.Annotation{Type: "L" + a.Type + ";"}
	for _, name := range sortedKeys(a.Enums) {
		typ, constName, ok := cutLast(a.Enums[name], '.')
		if !ok {
			return nil, fmt.Errorf("annotation %s: enum value %q: want Type.CONST", a.Type, a.Enums[name])
		}
		ann.Elements = append(ann.Elements, &classfile.EnumConstantElementValue{
			ElementValueInfo: classfile.ElementValueInfo{Name: name},
			TypeName:         "L" + typ + ";",
			ConstName:        constName,
		})
	}
	for _, name := range sortedKeys(a.Classes) {
		ann.Elements = append(ann.Elements, &classfile.ClassElementValue{
			ElementValueInfo: classfile.ElementValueInfo{Name: name},
			ClassInfo:        "L" + a.Classes[name] + ";",
		})
	}
	return ann, nil
}

func cutLast(s string, sep byte) (string, string, bool) {
	i := strings.LastIndexByte(s, sep)
	if i <= 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
