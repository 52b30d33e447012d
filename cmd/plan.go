package cmd

import (
	"fmt"
	"strings"

	"github.com/kiptoo/ignite/internal/bootstrap"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the resolved startup order without running anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := bootstrap.New(bootstrap.Options{})
		if err != nil {
			return err
		}
		defer b.Tracker().Close()

		order, err := b.Scheduler().Plan()
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), formatPlan(order))
		return nil
	},
}

func formatPlan(order []string) string {
	var sb strings.Builder
	sb.WriteString("Startup order:\n")
	for i, name := range order {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, name))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func init() {
	rootCmd.AddCommand(planCmd)
}
