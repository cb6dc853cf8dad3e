package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"redact/internal/reviewaccess"
)

func newDocumentCommand(ctx *commandContext) *cobra.Command {
	docCmd := &cobra.Command{
		Use:   "document",
		Short: "Manage transcript documents",
	}
	docCmd.AddCommand(newDocumentAddCommand(ctx))
	return docCmd
}

func newDocumentAddCommand(ctx *commandContext) *cobra.Command {
	var name string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "add <talk> <file>",
		Short: "Upload a transcript file into a talk",
		Long:  "Upload a UTF-8 transcript. Re-uploading a name supersedes all prior versions of that document.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read transcript: %w", err)
			}
			docName := name
			if docName == "" {
				docName = filepath.Base(args[1])
			}
			return ctx.withAccess(func(access reviewaccess.Access) error {
				doc, err := access.AddDocument(cmd.Context(), args[0], docName, string(content))
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, doc)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s (version %d, id %d); awaiting scan\n", doc.Name, doc.Version, doc.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Document name (defaults to the file name)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}
