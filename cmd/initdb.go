package cmd

import (
	"github.com/spf13/cobra"
)

// newInitDBCmd creates the 'init-db' subcommand applying the queue schema.
func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Creates the queue tables and claim function",
		Long: `Applies the embedded schema: the url_queue and raw_pages tables and the
atomic claim_pending_urls function. All statements are idempotent, so the
command is safe to re-run.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := connectStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close(cmd.Context()) }()

			if err := store.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("Schema applied")
			return nil
		},
	}
}
