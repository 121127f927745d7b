package snapshot

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/daimatz/classmerge/pkg/classfile"
	"github.com/daimatz/classmerge/pkg/classpool"
	"github.com/daimatz/classmerge/pkg/model"
	"github.com/daimatz/classmerge/pkg/retarget"
)

func testPool(t *testing.T) *classpool.ClassPool {
	t.Helper()
	pool, err := model.Build(model.Graph{Classes: []model.Class{
		{Name: "pkg/Base", Super: "java/lang/Object", Methods: []string{"run()V"}},
		{Name: "pkg/Impl", Super: "pkg/Base", Methods: []string{"run()V"}},
		{
			Name:      "pkg/Caller",
			Super:     "java/lang/Object",
			Fields:    []string{"impl Lpkg/Impl;"},
			Refs:      []string{"method pkg/Impl.run()V", "string pkg.Impl"},
			Signature: "Ljava/lang/Object;Ljava/lang/Comparable<Lpkg/Impl;>;",
		},
	}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return pool
}

func text(t *testing.T, s *Snapshot) string {
	t.Helper()
	var buf bytes.Buffer
	if err := s.WriteText(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestWriteText(t *testing.T) {
	pool := testPool(t)
	out := text(t, Take(pool))

	for _, want := range []string{
		"class pkg/Caller\n",
		"library java/lang/Object\n",
		"  super pkg/Base\n",
		"  subclasses pkg/Impl\n",
		"Methodref pkg/Impl.run ()V -> pkg/Impl pkg/Impl.run()V\n",
		"String \"pkg.Impl\" -> pkg/Impl\n",
		"  field impl Lpkg/Impl; -> [pkg/Impl]\n",
		"  Signature Ljava/lang/Object;Ljava/lang/Comparable<Lpkg/Impl;>; -> [java/lang/Object java/lang/Comparable pkg/Impl]\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "-> -") {
		t.Errorf("unresolved reference in output:\n%s", out)
	}
}

func TestEncodeDecode(t *testing.T) {
	s := Take(testPool(t))
	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if d := Diff(s, got); len(d) != 0 {
		t.Errorf("decoded snapshot differs:\n%s", strings.Join(d, "\n"))
	}
	if text(t, got) != text(t, s) {
		t.Error("decoded snapshot prints differently")
	}

	t.Run("schema mismatch", func(t *testing.T) {
		var buf bytes.Buffer
		old := &Snapshot{Schema: schemaVersion + 1}
		if err := old.Encode(&buf); err != nil {
			t.Fatal(err)
		}
		if _, err := Decode(&buf); err == nil {
			t.Error("expected schema error")
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := Decode(strings.NewReader("not msgpack")); err == nil {
			t.Error("expected decode error")
		}
	})
}

func TestDiff(t *testing.T) {
	pool := testPool(t)
	before := Take(pool)

	targets := retarget.TargetsFunc(func(id classfile.ClassID) (classfile.ClassID, bool) {
		if pool.Name(id) == "pkg/Impl" {
			return pool.Lookup("pkg/Base"), true
		}
		return classfile.NoClass, false
	})
	if err := retarget.New(pool, targets).Run(); err != nil {
		t.Fatal(err)
	}
	after := Take(pool)

	caller := pool.Class(pool.Lookup("pkg/Caller"))
	var implIndex uint16
	for i, c := range caller.ConstantPool {
		if cc, ok := c.(*classfile.ConstantClass); ok {
			if name, _ := classfile.GetUtf8(caller.ConstantPool, cc.NameIndex); name == "pkg/Impl" {
				implIndex = uint16(i)
			}
		}
	}

	d := Diff(before, after)
	for _, want := range []string{
		"class pkg/Caller",
		fmt.Sprintf("-  #%d Class pkg/Impl -> pkg/Impl", implIndex),
		fmt.Sprintf("+  #%d Class pkg/Impl -> pkg/Base", implIndex),
		"-  field impl Lpkg/Impl; -> [pkg/Impl]",
		"+  field impl Lpkg/Impl; -> [pkg/Base]",
		"class pkg/Impl",
	} {
		if !slices.Contains(d, want) {
			t.Errorf("diff missing %q:\n%s", want, strings.Join(d, "\n"))
		}
	}
	if slices.Contains(d, "class pkg/Base") || slices.Contains(d, "library java/lang/Object") {
		t.Errorf("unchanged class in diff:\n%s", strings.Join(d, "\n"))
	}

	t.Run("added and removed classes", func(t *testing.T) {
		small := &Snapshot{Schema: schemaVersion, Classes: before.Classes[:1]}
		d := Diff(small, before)
		if len(d) == 0 || !strings.HasPrefix(d[0], "+class ") && !strings.HasPrefix(d[0], "+library ") {
			t.Errorf("got %q, want added classes", d)
		}
		d = Diff(before, small)
		if len(d) == 0 || d[0][0] != '-' {
			t.Errorf("got %q, want removed classes", d)
		}
	})
}
