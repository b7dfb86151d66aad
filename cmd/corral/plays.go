package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agent462/corral/internal/play"
)

var playsCmd = &cobra.Command{
	Use:   "plays",
	Short: "List built-in and configured plays",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		verbose, _ := cmd.Flags().GetBool("verbose")

		plays := play.MergedPlays(cfg)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSOURCE\tTASKS\tDESCRIPTION")
		for _, name := range play.SortedNames(plays) {
			p := plays[name]
			source := "builtin"
			if _, ok := cfg.Plays[name]; ok {
				source = "config"
				if play.IsBuiltin(name) {
					source = "config (overrides builtin)"
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", name, source, len(p.Tasks), p.Description)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if !verbose {
			return nil
		}
		for _, name := range play.SortedNames(plays) {
			tasks, err := play.TasksFor(name, cfg)
			if err != nil {
				fmt.Fprintf(os.Stdout, "\n%s: %v\n", name, err)
				continue
			}
			fmt.Fprintf(os.Stdout, "\n%s:\n", name)
			for i, t := range tasks {
				line := fmt.Sprintf("  %d. [%s] %s", i+1, t.Kind, t.Command)
				if t.Register != "" {
					line += " -> " + t.Register
				}
				fmt.Fprintln(os.Stdout, line)
			}
		}
		return nil
	},
}

func init() {
	playsCmd.Flags().BoolP("verbose", "v", false, "show each play's tasks")
	rootCmd.AddCommand(playsCmd)
}
