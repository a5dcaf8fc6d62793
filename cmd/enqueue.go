package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newEnqueueCmd creates the 'enqueue' subcommand for seeding URLs.
func newEnqueueCmd() *cobra.Command {
	var priority int

	cmd := &cobra.Command{
		Use:   "enqueue URL...",
		Short: "Adds seed URLs to the queue",
		Long: `Inserts one or more URLs into the queue in pending state. URLs already
present are skipped.`,
		Args: cobra.MinimumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := connectStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close(cmd.Context()) }()

			inserted := 0
			for _, raw := range args {
				url := strings.TrimSpace(raw)
				if url == "" {
					continue
				}
				ok, err := store.Enqueue(cmd.Context(), url, priority)
				if err != nil {
					return fmt.Errorf("enqueue %s: %w", url, err)
				}
				if ok {
					inserted++
					cmd.Printf("  + %s\n", url)
				} else {
					cmd.Printf("  (skip) %s\n", url)
				}
			}
			cmd.Printf("Inserted %d/%d seed URLs\n", inserted, len(args))
			return nil
		},
	}

	cmd.Flags().IntVar(&priority, "priority", 0, "queue priority for all URLs")
	return cmd
}
