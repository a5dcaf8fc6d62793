package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

// newSweepCmd creates the 'sweep' subcommand. Workers never reclaim items
// themselves; claims abandoned by a crashed or interrupted process are
// returned to pending here, as an explicit operator action.
func newSweepCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Returns stale claimed items to pending",
		Long: `Releases items that have been claimed for longer than the given age.
Run this against claims left behind by interrupted workers; it does not
touch retry counts.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := connectStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close(cmd.Context()) }()

			released, err := store.ReleaseStaleClaims(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			cmd.Printf("Released %d stale claims\n", released)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 15*time.Minute, "minimum claim age to release")
	return cmd
}
