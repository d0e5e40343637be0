// ABOUTME: CLI command to remove a document from the index
// ABOUTME: Fails when no chunks are indexed under the given source
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDeleteCmd creates delete command
func NewDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <source>",
		Short: "Remove a document from the index",
		Long: `Remove every chunk indexed under a source name.

The source is the file name shown by 'finrag list'.

Examples:
  finrag delete q3_2024.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: runDelete,
	}

	return cmd
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer closeApp(a)

	source := args[0]
	ok, err := a.Service.Delete(ctx, source)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("document not found: %s", source)
	}

	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), map[string]any{"source": source, "deleted": true})
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", source)
	}
	return nil
}
