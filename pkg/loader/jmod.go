package loader

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/daimatz/classmerge/pkg/classfile"
)

// JmodSource loads library classes from a JDK jmod file. It implements
// linker.Source.
type JmodSource struct {
	JmodPath string
	files    map[string]*zip.File
}

// NewJmodSource returns a source reading from the jmod at jmodPath. The file
// is opened on the first Load.
func NewJmodSource(jmodPath string) *JmodSource {
	return &JmodSource{JmodPath: jmodPath}
}

func (s *JmodSource) ensureIndex() error {
	if s.files != nil {
		return nil
	}

	f, err := os.Open(s.JmodPath)
	if err != nil {
		return fmt.Errorf("jmod: opening %s: %w", s.JmodPath, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("jmod: reading %s: %w", s.JmodPath, err)
	}
	if len(data) < 4 || string(data[:2]) != "JM" {
		return fmt.Errorf("jmod: %s: missing JM header", s.JmodPath)
	}

	data = data[4:] // Skip "JM\x01\x00" header
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("jmod: opening zip: %w", err)
	}
	s.files = make(map[string]*zip.File, len(zr.File))
	for _, file := range zr.File {
		if name, ok := strings.CutPrefix(file.Name, "classes/"); ok && strings.HasSuffix(name, ".class") {
			s.files[strings.TrimSuffix(name, ".class")] = file
		}
	}
	return nil
}

// Load returns the named class, or nil if the jmod does not contain it.
func (s *JmodSource) Load(name string) (*classfile.ClassFile, error) {
	if err := s.ensureIndex(); err != nil {
		return nil, err
	}
	file, ok := s.files[name]
	if !ok {
		return nil, nil
	}
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("jmod: opening %s: %w", file.Name, err)
	}
	defer rc.Close()

	cf, err := classfile.Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("jmod: parsing %s: %w", name, err)
	}
	return cf, nil
}

// FindJmod locates java.base.jmod, or returns "".
func FindJmod() string {
	// 1. Explicit env var
	if env := os.Getenv("JAVA_BASE_JMOD"); env != "" {
		return env
	}
	// 2. JAVA_HOME
	if javaHome := os.Getenv("JAVA_HOME"); javaHome != "" {
		p := filepath.Join(javaHome, "jmods", "java.base.jmod")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	// 3. Glob fallback
	matches, _ := filepath.Glob("/usr/lib/jvm/java-*-openjdk-*/jmods/java.base.jmod")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}
