package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version can be overridden at build time via -ldflags.
var version = "0.1.0-dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the classmerge version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "classmerge %s\n", version)
			return err
		},
	}
}
