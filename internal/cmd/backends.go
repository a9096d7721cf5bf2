package cmd

import (
	"fmt"

	"github.com/haldane/simtree/internal/crunch"
	"github.com/spf13/cobra"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List the cruncher backends built into this binary",
	RunE:  runBackends,
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}

func runBackends(cmd *cobra.Command, args []string) error {
	names := crunch.Backends()
	if len(names) == 0 {
		return fmt.Errorf("no cruncher backends registered")
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}
