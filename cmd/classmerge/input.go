package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/daimatz/classmerge/pkg/classpool"
	"github.com/daimatz/classmerge/pkg/linker"
	"github.com/daimatz/classmerge/pkg/loader"
	"github.com/daimatz/classmerge/pkg/model"
	"github.com/daimatz/classmerge/pkg/snapshot"
)

// inputFlags select where classes come from: a class directory given as
// argument, or a TOML graph model.
type inputFlags struct {
	model string
	jmod  string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.model, "model", "", "read classes from a TOML graph model instead of a class directory")
	cmd.Flags().StringVar(&f.jmod, "jmod", "", "java.base.jmod for library classes (default: $JAVA_BASE_JMOD, $JAVA_HOME/jmods)")
}

// load returns a linked pool.
func (f *inputFlags) load(cmd *cobra.Command, args []string, log *slog.Logger) (*classpool.ClassPool, error) {
	if f.model != "" {
		if len(args) > 0 {
			return nil, errors.New("--model and a class directory are mutually exclusive")
		}
		g, err := model.LoadFile(f.model)
		if err != nil {
			return nil, err
		}
		return model.Build(g, log)
	}
	if len(args) != 1 {
		return nil, errors.New("need a class directory or --model")
	}

	pool, err := loader.LoadDir(cmd.Context(), args[0])
	if err != nil {
		return nil, err
	}
	opts := linker.Options{LinkStrings: true, Logger: log}
	jmod := f.jmod
	if jmod == "" {
		jmod = loader.FindJmod()
	}
	if jmod != "" {
		opts.Libraries = loader.NewJmodSource(jmod)
	} else {
		log.Warn("could not find java.base.jmod; set JAVA_HOME or JAVA_BASE_JMOD")
	}
	l := linker.New(pool, opts)
	if err := l.Link(); err != nil {
		return nil, err
	}
	if missing := l.Missing(); len(missing) > 0 {
		log.Info("unresolved classes", "count", len(missing))
	}
	return pool, nil
}

func writeSnapshot(path string, s *snapshot.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

func readSnapshot(path string) (*snapshot.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := snapshot.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
