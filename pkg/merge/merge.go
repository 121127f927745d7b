// Package merge holds the class-to-target mapping decided by a class
// merger.
package merge

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/daimatz/classmerge/pkg/classfile"
)

var (
	// ErrUnknownClass is returned when a mapping names a class that is not
	// in the pool.
	ErrUnknownClass = errors.New("unknown class")
	// ErrCycle is returned by Flatten when targets form a cycle.
	ErrCycle = errors.New("merge cycle")
)

// Map maps merged classes to the classes that replace them.
type Map struct {
	targets map[classfile.ClassID]classfile.ClassID
}

// NewMap returns an empty mapping.
func NewMap() *Map {
	return &Map{targets: make(map[classfile.ClassID]classfile.ClassID)}
}

// Set records that class is merged into target.
func (m *Map) Set(class, target classfile.ClassID) {
	m.targets[class] = target
}

// TargetOf returns the target of class, if it has one.
func (m *Map) TargetOf(class classfile.ClassID) (classfile.ClassID, bool) {
	t, ok := m.targets[class]
	return t, ok
}

// Len returns the number of merged classes.
func (m *Map) Len() int { return len(m.targets) }

// Classes returns the merged classes, sorted.
func (m *Map) Classes() []classfile.ClassID {
	out := make([]classfile.ClassID, 0, len(m.targets))
	for c := range m.targets {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Flatten replaces chains A→B→C by A→C so that a single lookup yields the
// final target.
func (m *Map) Flatten() error {
	for _, class := range m.Classes() {
		seen := []classfile.ClassID{class}
		target := m.targets[class]
		for {
			next, ok := m.targets[target]
			if !ok {
				break
			}
			if slices.Contains(seen, target) {
				return fmt.Errorf("class %d: %w", class, ErrCycle)
			}
			seen = append(seen, target)
			target = next
		}
		m.targets[class] = target
	}
	return nil
}

// Resolver looks up class IDs by name.
type Resolver interface {
	Lookup(name string) classfile.ClassID
}

// Config is the TOML form of a mapping:
//
//	[merge]
//	"com/example/Impl" = "com/example/Base"
type Config struct {
	Merge map[string]string `toml:"merge"`
}

// LoadFile reads a mapping from a TOML file and resolves its names.
func LoadFile(path string, classes Resolver) (*Map, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("merge") {
		return nil, fmt.Errorf("%s: missing [merge]", path)
	}
	m, err := cfg.Resolve(classes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Resolve turns the name-keyed configuration into a Map. Names may be
// dotted or in internal form.
func (c Config) Resolve(classes Resolver) (*Map, error) {
	m := NewMap()
	names := make([]string, 0, len(c.Merge))
	for name := range c.Merge {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		from, err := lookup(classes, name)
		if err != nil {
			return nil, err
		}
		to, err := lookup(classes, c.Merge[name])
		if err != nil {
			return nil, err
		}
		if from == to {
			return nil, fmt.Errorf("%s is merged into itself", name)
		}
		m.Set(from, to)
	}
	return m, nil
}

func lookup(classes Resolver, name string) (classfile.ClassID, error) {
	internal := classfile.InternalName(strings.TrimSpace(name))
	id := classes.Lookup(internal)
	if id == classfile.NoClass {
		return classfile.NoClass, fmt.Errorf("%s: %w", internal, ErrUnknownClass)
	}
	return id, nil
}
