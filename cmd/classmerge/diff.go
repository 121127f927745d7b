package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/daimatz/classmerge/pkg/snapshot"
)

func newDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff old.msgpack new.msgpack",
		Short: "Compare two reference snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			after, err := readSnapshot(args[1])
			if err != nil {
				return err
			}

			removed := a.paint(color.FgRed)
			added := a.paint(color.FgGreen)
			header := a.paint(color.Bold)
			out := cmd.OutOrStdout()
			for _, line := range snapshot.Diff(before, after) {
				switch line[0] {
				case '-':
					removed.Fprintln(out, line)
				case '+':
					added.Fprintln(out, line)
				default:
					header.Fprintln(out, line)
				}
			}
			return nil
		},
	}
}
