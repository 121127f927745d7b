package merge

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/daimatz/classmerge/pkg/classfile"
)

type classNames map[string]classfile.ClassID

func (n classNames) Lookup(name string) classfile.ClassID { return n[name] }

var testClasses = classNames{"pkg/A": 1, "pkg/B": 2, "pkg/C": 3, "pkg/D": 4}

func TestFlatten(t *testing.T) {
	t.Run("chains collapse to the final target", func(t *testing.T) {
		m := NewMap()
		m.Set(1, 2)
		m.Set(2, 3)
		m.Set(4, 1)
		if err := m.Flatten(); err != nil {
			t.Fatal(err)
		}
		for _, class := range []classfile.ClassID{1, 2, 4} {
			if got, _ := m.TargetOf(class); got != 3 {
				t.Errorf("target of %d: got %d, want 3", class, got)
			}
		}
		if _, ok := m.TargetOf(3); ok {
			t.Error("final target has a target")
		}
	})

	t.Run("cycles are rejected", func(t *testing.T) {
		m := NewMap()
		m.Set(1, 2)
		m.Set(2, 3)
		m.Set(3, 1)
		if err := m.Flatten(); !errors.Is(err, ErrCycle) {
			t.Errorf("got %v, want ErrCycle", err)
		}
	})
}

func TestResolve(t *testing.T) {
	cfg := Config{Merge: map[string]string{
		"pkg.A":  "pkg/B",
		" pkg/C": "pkg.B",
	}}
	m, err := cfg.Resolve(testClasses)
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 2 {
		t.Errorf("len: got %d, want 2", m.Len())
	}
	got := m.Classes()
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("classes: got %v, want [1 3]", got)
	}
	if target, ok := m.TargetOf(1); !ok || target != 2 {
		t.Errorf("target of pkg/A: got %d, %v, want 2, true", target, ok)
	}

	tests := []struct {
		name  string
		merge map[string]string
		is    error
	}{
		{"unknown class", map[string]string{"pkg/X": "pkg/B"}, ErrUnknownClass},
		{"unknown target", map[string]string{"pkg/A": "pkg/X"}, ErrUnknownClass},
		{"merged into itself", map[string]string{"pkg/A": "pkg.A"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Config{Merge: tt.merge}.Resolve(testClasses)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("got %v, want %v", err, tt.is)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	t.Run("valid", func(t *testing.T) {
		path := write("merges.toml", "[merge]\n\"pkg/A\" = \"pkg/B\"\n\"pkg/D\" = \"pkg/A\"\n")
		m, err := LoadFile(path, testClasses)
		if err != nil {
			t.Fatal(err)
		}
		if err := m.Flatten(); err != nil {
			t.Fatal(err)
		}
		if got, _ := m.TargetOf(4); got != 2 {
			t.Errorf("target of pkg/D: got %d, want 2", got)
		}
	})

	t.Run("missing table", func(t *testing.T) {
		path := write("empty.toml", "title = \"x\"\n")
		if _, err := LoadFile(path, testClasses); err == nil {
			t.Error("expected error for missing [merge]")
		}
	})

	t.Run("invalid TOML", func(t *testing.T) {
		path := write("bad.toml", "[merge\n")
		if _, err := LoadFile(path, testClasses); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadFile(filepath.Join(dir, "nope.toml"), testClasses); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
