// ABOUTME: CLI command to index documents from files and directories
// ABOUTME: Re-ingesting a file replaces the chunks indexed under its name
package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/finrag/internal/ingest"
	"github.com/harper/finrag/internal/rag"
)

// NewIngestCmd creates ingest command
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Index documents",
		Long: `Extract, chunk and index documents.

Each argument is a file or a directory; directories contribute every
supported file directly inside them. Supported types: .pdf, .docx, .txt.

Examples:
  finrag ingest reports/q3_2024.pdf
  finrag ingest reports/ notes.txt
  finrag ingest --format json reports/`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no supported files found (allowed: %v)", ingest.SupportedExtensions)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer closeApp(a)

	var results []*rag.UploadResult
	var failures []error
	for _, path := range files {
		res, err := a.Service.IngestFile(ctx, path)
		if err != nil {
			failures = append(failures, err)
			if !quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", filepath.Base(path), err)
			}
			continue
		}
		results = append(results, res)
	}

	if wantJSON() {
		if err := printJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
	} else if len(results) > 0 {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "SOURCE\tCHUNKS\tDOCUMENT ID\n")
		fmt.Fprintf(w, "------\t------\t-----------\n")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%d\t%s\n", r.Filename, r.ChunksCreated, r.DocumentID)
		}
		w.Flush()
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d of %d files failed: %w", len(failures), len(files), errors.Join(failures...))
	}
	return nil
}

// collectFiles expands directory arguments to the supported files directly inside them
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		for _, e := range entries {
			if !e.IsDir() && ingest.Supported(e.Name()) {
				files = append(files, filepath.Join(p, e.Name()))
			}
		}
	}
	return files, nil
}
