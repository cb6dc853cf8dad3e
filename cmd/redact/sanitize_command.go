package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"redact/internal/reviewaccess"
	"redact/internal/sanitize"
)

func newSanitizeCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "sanitize <talk>",
		Short: "Emit sanitized transcripts for a fully reviewed talk",
		Long: "Rewrite every document of the talk against the current decisions and write the results " +
			"plus a JSON diff sidecar under the review directory. Refuses while any entity is undecided.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access reviewaccess.Access) error {
				result, err := access.Sanitize(cmd.Context(), args[0])
				if err != nil {
					var unreviewed *sanitize.UnreviewedError
					if errors.As(err, &unreviewed) {
						return fmt.Errorf("talk has undecided entities: %s\nrun `redact review pending %s`",
							strings.Join(unreviewed.EntityIDs, ", "), args[0])
					}
					// Over the daemon socket the typed error arrives flattened.
					if sanitize.IsUnreviewed(err) {
						return fmt.Errorf("talk has undecided entities, run `redact review pending %s`", args[0])
					}
					return err
				}
				if jsonOut {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				for _, doc := range result.Documents {
					fmt.Fprintf(out, "%s: %d replacements -> %s\n", doc.Name, len(doc.AppliedDiff), doc.OutputPath)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}
