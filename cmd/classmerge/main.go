package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// app holds state shared by all subcommands, set up before any of them runs.
type app struct {
	log   *slog.Logger
	color bool
}

func newRootCmd() *cobra.Command {
	a := &app{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	rootCmd := &cobra.Command{
		Use:   "classmerge",
		Short: "Retarget class references after vertical class merging",
		Long: `classmerge rewrites the class references of a program after classes have
been merged into other classes: every reference to a merged class is moved to
its target, member references are re-resolved in the target, and the class
hierarchy is repaired.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.AddCommand(newRetargetCmd(a))
	rootCmd.AddCommand(newDumpCmd(a))
	rootCmd.AddCommand(newDiffCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("verbose", false, "log debug messages to stderr")
	return rootCmd
}

// main runs the root command and exits with status 1 on error.
func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "classmerge: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	colorFlag, err := flags.GetString("color")
	if err != nil {
		return err
	}
	switch colorFlag {
	case "on":
		a.color = true
	case "off":
		a.color = false
	case "auto":
		a.color = isTerminal(cmd.OutOrStdout())
	default:
		return fmt.Errorf("invalid --color %q (want auto, on or off)", colorFlag)
	}

	verbose, err := flags.GetBool("verbose")
	if err != nil {
		return err
	}
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) == 0 && attr.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return attr
		},
	}))
	return nil
}

// paint returns a color that follows --color rather than the global
// detection of the color package.
func (a *app) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if a.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
