// ABOUTME: CLI command to list indexed documents
// ABOUTME: Shows each source with its chunk count and when it was added
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewListCmd creates list command
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed documents",
		Long: `List the documents in the index.

Examples:
  finrag list
  finrag list --format json`,
		RunE: runList,
	}

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer closeApp(a)

	docs := a.Service.ListDocuments()

	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), docs)
	}

	if len(docs) == 0 {
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "No documents indexed\n")
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SOURCE\tCHUNKS\tADDED\n")
	fmt.Fprintf(w, "------\t------\t-----\n")
	total := 0
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%d\t%s\n", truncate(d.Source, 48), d.ChunkCount, formatTime(d.AddedAt))
		total += d.ChunkCount
	}
	w.Flush()

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d documents, %d chunks\n", len(docs), total)
	}
	return nil
}
