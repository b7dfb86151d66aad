package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [user@host[:port] ...]",
	Short: "Check config, inventory and tasks without connecting",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := buildSession(cmd, args)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "ok: %d hosts, %d tasks from %s\n", len(s.hosts), len(s.tasks), s.source)
		return nil
	},
}

func init() {
	addSourceFlags(validateCmd)
	rootCmd.AddCommand(validateCmd)
}
