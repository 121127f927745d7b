package snapshot

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"
)

// WriteText prints s in a line-oriented form, one block per class.
func (s *Snapshot) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i, c := range s.Classes {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		for _, line := range c.lines() {
			fmt.Fprintln(bw, line)
		}
	}
	return bw.Flush()
}

// Only returns a copy of s restricted to the named classes. With no names
// it returns s.
func (s *Snapshot) Only(names ...string) *Snapshot {
	if len(names) == 0 {
		return s
	}
	out := &Snapshot{Schema: s.Schema}
	for _, c := range s.Classes {
		if slices.Contains(names, c.Name) {
			out.Classes = append(out.Classes, c)
		}
	}
	return out
}

// lines renders c. The first line is the class header; every other line is
// indented.
func (c Class) lines() []string {
	header := "class " + c.Name
	if c.Library {
		header = "library " + c.Name
	}
	out := []string{header}
	add := func(format string, args ...any) {
		out = append(out, "  "+fmt.Sprintf(format, args...))
	}
	if c.This != "" {
		add("this %s", c.This)
	}
	add("super %s", c.Super)
	if len(c.Interfaces) > 0 {
		add("interfaces %s", strings.Join(c.Interfaces, " "))
	}
	if len(c.Subclasses) > 0 {
		add("subclasses %s", strings.Join(c.Subclasses, " "))
	}
	for _, k := range c.Constants {
		line := fmt.Sprintf("#%d %s %s -> %s", k.Index, k.Kind, k.Text, k.Class)
		if k.Member != "" {
			line += " " + k.Member
		}
		add("%s", line)
	}
	member := func(kind string, m Member) {
		add("%s %s %s -> [%s]", kind, m.Name, m.Descriptor, strings.Join(m.Classes, " "))
		for _, a := range m.Attributes {
			add("  %s", a)
		}
	}
	for _, f := range c.Fields {
		member("field", f)
	}
	for _, m := range c.Methods {
		member("method", m)
	}
	for _, a := range c.Attributes {
		add("%s", a)
	}
	return out
}

// Diff compares two snapshots class by class. It returns, for every class
// whose rendering differs, the class header followed by removed lines
// prefixed with "-" and added lines prefixed with "+". Classes only present
// on one side are reported whole.
func Diff(a, b *Snapshot) []string {
	before := byName(a)
	after := byName(b)
	names := make([]string, 0, len(before)+len(after))
	for name := range before {
		names = append(names, name)
	}
	for name := range after {
		if _, ok := before[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	var out []string
	for _, name := range names {
		old, inOld := before[name]
		cur, inCur := after[name]
		switch {
		case !inCur:
			out = append(out, prefixed("-", old.lines())...)
		case !inOld:
			out = append(out, prefixed("+", cur.lines())...)
		default:
			oldLines, curLines := old.lines(), cur.lines()
			if slices.Equal(oldLines, curLines) {
				continue
			}
			out = append(out, curLines[0])
			out = append(out, prefixed("-", missingFrom(oldLines[1:], curLines[1:]))...)
			out = append(out, prefixed("+", missingFrom(curLines[1:], oldLines[1:]))...)
		}
	}
	return out
}

func byName(s *Snapshot) map[string]Class {
	m := make(map[string]Class, len(s.Classes))
	for _, c := range s.Classes {
		m[c.Name] = c
	}
	return m
}

// missingFrom returns the lines of a that b does not contain, counting
// repeated lines.
func missingFrom(a, b []string) []string {
	count := make(map[string]int, len(b))
	for _, line := range b {
		count[line]++
	}
	var out []string
	for _, line := range a {
		if count[line] > 0 {
			count[line]--
			continue
		}
		out = append(out, line)
	}
	return out
}

func prefixed(prefix string, lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = prefix + line
	}
	return out
}
