package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"redact/internal/reviewaccess"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the configured ntfy topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access reviewaccess.Access) error {
				if err := access.TestNotification(cmd.Context()); err != nil {
					return fmt.Errorf("send test notification: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
				return nil
			})
		},
	}
}
