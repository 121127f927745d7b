package classfile

import "strings"

// InternalName converts a dotted class name to the internal slash form.
func InternalName(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

// DescriptorClassNames returns the class names that appear in a field or
// method descriptor, in order. Array dimensions are dropped, so
// "([Lpkg/A;I)Lpkg/B;" yields ["pkg/A", "pkg/B"].
func DescriptorClassNames(desc string) []string {
	var names []string
	for i := 0; i < len(desc); i++ {
		if desc[i] != 'L' {
			continue
		}
		end := strings.IndexByte(desc[i:], ';')
		if end < 0 {
			break
		}
		names = append(names, desc[i+1:i+end])
		i += end
	}
	return names
}

// SignatureClassNames returns the class names referenced by a class, field
// or method generic signature, in order of appearance. Type variables are
// skipped and inner classes are reported with their binary name
// (Outer$Inner).
func SignatureClassNames(sig string) []string {
	s := &sigScanner{s: sig}
	s.signature()
	return s.names
}

type sigScanner struct {
	s     string
	pos   int
	names []string
}

func (s *sigScanner) eof() bool { return s.pos >= len(s.s) }

func (s *sigScanner) peek(c byte) bool { return !s.eof() && s.s[s.pos] == c }

func (s *sigScanner) signature() {
	if s.peek('<') {
		s.typeParameters()
	}
	if s.peek('(') {
		s.pos++
		for !s.eof() && !s.peek(')') {
			s.typeSignature()
		}
		s.pos++
		s.typeSignature()
		for s.peek('^') {
			s.pos++
			s.typeSignature()
		}
		return
	}
	for !s.eof() {
		s.typeSignature()
	}
}

func (s *sigScanner) typeParameters() {
	s.pos++
	for !s.eof() && !s.peek('>') {
		for !s.eof() && !s.peek(':') {
			s.pos++
		}
		for s.peek(':') {
			s.pos++
			if !s.peek(':') {
				s.typeSignature()
			}
		}
	}
	s.pos++
}

func (s *sigScanner) typeSignature() {
	if s.eof() {
		return
	}
	switch s.s[s.pos] {
	case 'L':
		s.classTypeSignature()
	case 'T':
		end := strings.IndexByte(s.s[s.pos:], ';')
		if end < 0 {
			s.pos = len(s.s)
			return
		}
		s.pos += end + 1
	case '[':
		s.pos++
		s.typeSignature()
	default:
		// base type, or a character we do not understand
		s.pos++
	}
}

func (s *sigScanner) classTypeSignature() {
	s.pos++
	slot := len(s.names)
	s.names = append(s.names, "")
	name := s.identifier()
	s.typeArguments()
	for s.peek('.') {
		s.pos++
		name += "$" + s.identifier()
		s.typeArguments()
	}
	s.names[slot] = name
	if s.peek(';') {
		s.pos++
	}
}

func (s *sigScanner) identifier() string {
	start := s.pos
	for !s.eof() && !s.peek('<') && !s.peek('.') && !s.peek(';') {
		s.pos++
	}
	return s.s[start:s.pos]
}

func (s *sigScanner) typeArguments() {
	if !s.peek('<') {
		return
	}
	s.pos++
	for !s.eof() && !s.peek('>') {
		switch s.s[s.pos] {
		case '*':
			s.pos++
		case '+', '-':
			s.pos++
			s.typeSignature()
		default:
			s.typeSignature()
		}
	}
	s.pos++
}
