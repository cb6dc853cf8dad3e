package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"redact/internal/reviewaccess"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var retry bool
	var retryIDs []int64
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan pending documents for personal data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access reviewaccess.Access) error {
				if retry || len(retryIDs) > 0 {
					requeued, err := access.Retry(cmd.Context(), retryIDs)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d failed documents\n", requeued)
				}
				processed, err := access.Scan(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, map[string]int{"processed": processed})
				}
				if processed == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending documents.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d documents\n", processed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&retry, "retry", false, "Requeue all failed documents before scanning")
	cmd.Flags().Int64SliceVar(&retryIDs, "retry-id", nil, "Requeue specific failed document ids before scanning")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}
