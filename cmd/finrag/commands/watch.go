// ABOUTME: CLI command to keep a drop folder in sync with the index
// ABOUTME: Ingests new and changed files and deletes removed ones until interrupted
package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/finrag/internal/ingest"
)

var watchDebounce time.Duration

// NewWatchCmd creates watch command
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Index a folder and keep it in sync",
		Long: `Index every supported file in a folder, then watch it.

Files written to the folder are (re)indexed once they stop changing for
the debounce interval; removed files are deleted from the index.

Examples:
  finrag watch ./inbox
  finrag watch --debounce 2s ./inbox`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().DurationVar(&watchDebounce, "debounce", ingest.DefaultDebounce, "Quiet period before a changed file is indexed")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer closeApp(a)

	loaded, err := a.Service.IngestDir(ctx, dir)
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d new documents from %s\n", loaded, dir)
	}

	watcher, err := ingest.NewWatcher(dir, a.Service.WatchHandler(), watchDebounce, a.Logger)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", dir)
	}
	<-ctx.Done()
	return nil
}
