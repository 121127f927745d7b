package main

import (
	"github.com/spf13/cobra"

	"github.com/daimatz/classmerge/pkg/snapshot"
)

func newDumpCmd(a *app) *cobra.Command {
	var (
		in           inputFlags
		snapshotPath string
		classes      []string
	)
	cmd := &cobra.Command{
		Use:   "dump [classdir]",
		Short: "Print the resolved references of a program",
		Long: `dump loads and links a program and prints the resolved references of its
classes. With --snapshot the references are written to a msgpack file instead,
for a later diff.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := in.load(cmd, args, a.log)
			if err != nil {
				return err
			}
			s := snapshot.Take(pool)
			if snapshotPath != "" {
				return writeSnapshot(snapshotPath, s)
			}
			return s.Only(classes...).WriteText(cmd.OutOrStdout())
		},
	}
	in.register(cmd)
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "write the references to this msgpack file")
	cmd.Flags().StringSliceVar(&classes, "class", nil, "only print these classes")
	return cmd
}
