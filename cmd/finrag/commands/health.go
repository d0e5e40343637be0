// ABOUTME: CLI command to report engine health
// ABOUTME: Prints index, cache and conversation counts
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/finrag/internal/rag"
)

// NewHealthCmd creates health command
func NewHealthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show engine health",
		Long: `Report the live state of the engine: indexed chunks and sources,
cached responses and whether the cache backend is reachable.`,
		RunE: runHealth,
	}

	return cmd
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer closeApp(a)

	h := a.Service.Health(ctx)
	if wantJSON() {
		if err := printJSON(cmd.OutOrStdout(), h); err != nil {
			return err
		}
	} else {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Status:\t%s\n", h.Status)
		fmt.Fprintf(w, "Chunks:\t%d\n", h.ChunkCount)
		fmt.Fprintf(w, "Sources:\t%d\n", h.SourceCount)
		fmt.Fprintf(w, "Cached responses:\t%d\n", h.CacheSize)
		fmt.Fprintf(w, "Cache backend:\t%s\n", a.Config.CacheBackend)
		w.Flush()
	}

	if h.Status != rag.StatusHealthy {
		return fmt.Errorf("engine is %s", h.Status)
	}
	return nil
}
