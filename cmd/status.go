package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// newStatusCmd creates the 'status' subcommand showing queue counts.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Shows queue item counts per status",

		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := connectStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close(cmd.Context()) }()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Status", "Count"})
			t.AppendRows([]table.Row{
				{"pending", stats.Pending},
				{"claimed", stats.Claimed},
				{"done", stats.Done},
				{"failed", stats.Failed},
			})
			t.AppendFooter(table.Row{"total", stats.Total()})
			t.Render()
			return nil
		},
	}
}
