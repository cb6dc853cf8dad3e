package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"redact/internal/ledger"
	"redact/internal/reviewaccess"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Review detected personal data",
	}
	reviewCmd.AddCommand(newReviewPendingCommand(ctx))
	reviewCmd.AddCommand(newReviewDecideCommand(ctx))
	reviewCmd.AddCommand(newReviewAuditCommand(ctx))
	return reviewCmd
}

func newReviewPendingCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "pending <talk>",
		Short: "List findings awaiting a decision, in document order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access reviewaccess.Access) error {
				findings, err := access.PendingFindings(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, findings)
				}
				if len(findings) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending findings; the talk is ready to sanitize.")
					return nil
				}
				rows := make([][]string, 0, len(findings))
				for _, finding := range findings {
					rows = append(rows, []string{
						finding.EntityID,
						finding.Category,
						finding.SampleText,
						fmt.Sprintf("%.2f", finding.Confidence),
						strconv.Itoa(finding.OccurrenceCount),
						strings.Join(finding.Documents, ", "),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Entity", "Category", "Text", "Confidence", "Count", "Documents"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newReviewDecideCommand(ctx *commandContext) *cobra.Command {
	var replacement string
	var note string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "decide <entity-id> <redact|keep|edited>",
		Short: "Record a decision for one entity",
		Long: "Record a review decision. `redact` masks every occurrence with the category placeholder " +
			"(or --replacement), `keep` leaves the text untouched, `edited` replaces it with --replacement. " +
			"Re-deciding supersedes the prior decision and keeps it in the audit trail.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access reviewaccess.Access) error {
				decision, err := access.Decide(cmd.Context(), ledger.DecideRequest{
					EntityID:    args[0],
					Status:      args[1],
					Replacement: replacement,
					Note:        note,
				})
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, decision)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for %s (seq %d)\n", decision.Status, decision.EntityID, decision.Seq)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&replacement, "replacement", "", "Replacement text (required for edited)")
	cmd.Flags().StringVar(&note, "note", "", "Reviewer note for the audit trail")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newReviewAuditCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "audit <entity-id>",
		Short: "Show the full decision history of one entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access reviewaccess.Access) error {
				decisions, err := access.DecisionHistory(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, decisions)
				}
				rows := make([][]string, 0, len(decisions))
				for _, decision := range decisions {
					current := "current"
					if decision.Superseded {
						current = "superseded"
					}
					rows = append(rows, []string{
						strconv.FormatInt(decision.Seq, 10),
						decision.Status,
						decision.Replacement,
						decision.Note,
						decision.DecidedAt.Format("2006-01-02 15:04:05"),
						current,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Seq", "Status", "Replacement", "Note", "Decided", "State"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}
