package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"redact/internal/ipc"
	"redact/internal/reviewaccess"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Inspect and control the background daemon",
	}
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	return daemonCmd
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and scan queue status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access reviewaccess.Access) error {
				status, err := access.Status(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Daemon running:   %s\n", yesNo(status.Running))
				if status.Running {
					fmt.Fprintf(out, "PID:              %d\n", status.PID)
				}
				fmt.Fprintf(out, "Talks:            %d\n", status.Talks)
				fmt.Fprintf(out, "Pending scans:    %d\n", status.PendingDocs)
				fmt.Fprintf(out, "Failed documents: %s\n", strconv.Itoa(status.FailedDocs))
				if status.LastError != "" {
					fmt.Fprintf(out, "Last error:       %s\n", status.LastError)
				}
				fmt.Fprintf(out, "Database:         %s\n", status.DatabasePath)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Stop(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
				return nil
			})
		},
	}
	return cmd
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
