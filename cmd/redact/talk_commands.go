package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"redact/internal/reviewaccess"
)

func newTalkCommand(ctx *commandContext) *cobra.Command {
	talkCmd := &cobra.Command{
		Use:   "talk",
		Short: "Manage talks",
	}
	talkCmd.AddCommand(newTalkCreateCommand(ctx))
	talkCmd.AddCommand(newTalkListCommand(ctx))
	talkCmd.AddCommand(newTalkShowCommand(ctx))
	talkCmd.AddCommand(newTalkResumeCommand(ctx))
	return talkCmd
}

func newTalkCreateCommand(ctx *commandContext) *cobra.Command {
	var speaker string
	var languageTag string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Register a new talk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access reviewaccess.Access) error {
				talk, err := access.CreateTalk(cmd.Context(), args[0], speaker, languageTag)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, talk)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created talk %s (%s)\n", talk.Slug, talk.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&speaker, "speaker", "", "Speaker name")
	cmd.Flags().StringVar(&languageTag, "language", "", "Transcript language (BCP-47 tag)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newTalkListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List talks with review progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access reviewaccess.Access) error {
				talks, progress, err := access.ListTalks(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, map[string]any{"talks": talks, "progress": progress})
				}
				if len(talks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No talks registered.")
					return nil
				}
				rows := make([][]string, 0, len(talks))
				for i, talk := range talks {
					p := progress[i]
					rows = append(rows, []string{
						talk.Slug,
						talk.Title,
						talk.Status,
						fmt.Sprintf("%d/%d", p.ScannedDocuments, p.Documents),
						fmt.Sprintf("%d/%d", p.DecidedEntities, p.Entities),
						strconv.Itoa(p.PendingEntities),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Slug", "Title", "Status", "Scanned", "Decided", "Pending"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newTalkShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <talk>",
		Short: "Show one talk with its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access reviewaccess.Access) error {
				talk, docs, progress, err := access.ShowTalk(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, map[string]any{"talk": talk, "documents": docs, "progress": progress})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s)\n", talk.Title, talk.Slug)
				if talk.Speaker != "" {
					fmt.Fprintf(out, "  Speaker:  %s\n", talk.Speaker)
				}
				fmt.Fprintf(out, "  Language: %s\n", talk.Language)
				fmt.Fprintf(out, "  Status:   %s\n", talk.Status)
				fmt.Fprintf(out, "  Review:   %d/%d entities decided, %d pending\n",
					progress.DecidedEntities, progress.Entities, progress.PendingEntities)
				if len(docs) == 0 {
					fmt.Fprintln(out, "  No documents uploaded.")
					return nil
				}
				rows := make([][]string, 0, len(docs))
				for _, doc := range docs {
					hint := doc.ErrorHint
					if len(hint) > 60 {
						hint = hint[:57] + "..."
					}
					rows = append(rows, []string{
						strconv.FormatInt(doc.ID, 10),
						doc.Name,
						strconv.Itoa(doc.Version),
						doc.Status,
						hint,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Document", "Version", "Status", "Error"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newTalkResumeCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <talk>",
		Short: "Reactivate a halted talk after resolving its conflict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access reviewaccess.Access) error {
				talk, err := access.ResumeTalk(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Talk %s is active again\n", talk.Slug)
				return nil
			})
		},
	}
	return cmd
}
