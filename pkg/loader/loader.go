// Package loader reads program classes from a directory tree and library
// classes from a JDK jmod file.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/daimatz/classmerge/pkg/classfile"
	"github.com/daimatz/classmerge/pkg/classpool"
)

// LoadDir parses every .class file under dir and adds the classes to a new
// pool. Files are parsed in parallel; classes are added in path order so
// that class IDs do not depend on scheduling.
func LoadDir(ctx context.Context, dir string) (*classpool.ClassPool, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".class") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loader: scanning %s: %w", dir, err)
	}
	slices.Sort(paths)

	classes := make([]*classfile.ClassFile, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cf, err := classfile.ParseFile(path)
			if err != nil {
				return fmt.Errorf("loader: parsing %s: %w", path, err)
			}
			classes[i] = cf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pool := classpool.New()
	for i, cf := range classes {
		if _, err := pool.Add(cf); err != nil {
			return nil, fmt.Errorf("loader: %s: %w", paths[i], err)
		}
	}
	return pool, nil
}
