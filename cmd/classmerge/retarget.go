package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/daimatz/classmerge/pkg/classpool"
	"github.com/daimatz/classmerge/pkg/merge"
	"github.com/daimatz/classmerge/pkg/retarget"
	"github.com/daimatz/classmerge/pkg/snapshot"
)

func newRetargetCmd(a *app) *cobra.Command {
	var (
		in           inputFlags
		merges       string
		snapshotPath string
		dump         bool
		noFlatten    bool
		classes      []string
	)
	cmd := &cobra.Command{
		Use:   "retarget [classdir]",
		Short: "Move references to merged classes to their targets",
		Long: `retarget loads a program, reads the merge decisions from a TOML file

	[merge]
	"com/example/Impl" = "com/example/Base"

and rewrites every class so that references to merged classes point at their
targets. A summary of the changes is printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := in.load(cmd, args, a.log)
			if err != nil {
				return err
			}
			m, err := merge.LoadFile(merges, pool)
			if err != nil {
				return err
			}
			if !noFlatten {
				if err := m.Flatten(); err != nil {
					return fmt.Errorf("%s: %w", merges, err)
				}
			}

			r := retarget.New(pool, m, retarget.WithLogger(a.log))
			if err := r.Run(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			a.printSummary(out, pool, m, r.Stats())
			after := snapshot.Take(pool)
			if dump {
				fmt.Fprintln(out)
				if err := after.Only(classes...).WriteText(out); err != nil {
					return err
				}
			}
			if snapshotPath != "" {
				return writeSnapshot(snapshotPath, after)
			}
			return nil
		},
	}
	in.register(cmd)
	cmd.Flags().StringVar(&merges, "merges", "", "TOML file with the [merge] table")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "write the rewritten references to this msgpack file")
	cmd.Flags().BoolVar(&dump, "dump", false, "print the rewritten references")
	cmd.Flags().BoolVar(&noFlatten, "no-flatten", false, "do not follow chains of merges")
	cmd.Flags().StringSliceVar(&classes, "class", nil, "only dump these classes")
	_ = cmd.MarkFlagRequired("merges")
	return cmd
}

func (a *app) printSummary(w io.Writer, pool *classpool.ClassPool, m *merge.Map, s retarget.Stats) {
	title := a.paint(color.FgGreen, color.Bold)
	lost := a.paint(color.FgRed, color.Bold)

	for _, class := range m.Classes() {
		target, _ := m.TargetOf(class)
		fmt.Fprintf(w, "%s %s into %s\n", title.Sprint("merged"), pool.Name(class), pool.Name(target))
	}
	row := func(label string, n int) {
		fmt.Fprintf(w, "%-20s %d\n", label, n)
	}
	row("class references", s.ClassReferences)
	row("members resolved", s.MembersResolved)
	if s.MembersLost > 0 {
		fmt.Fprintf(w, "%-20s %s\n", "members lost", lost.Sprint(s.MembersLost))
	} else {
		row("members lost", 0)
	}
	row("retargeted classes", s.RetargetedClasses)
	row("pruned interfaces", s.PrunedInterfaces)
	row("subclasses added", s.RegisteredSubclasses)
}
