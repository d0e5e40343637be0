// ABOUTME: MCP command starts Model Context Protocol server
// ABOUTME: Lets LLM agents query and manage the document index via stdio
package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harper/finrag/internal/mcp"
)

var mcpSampleDir string

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs finrag as an MCP (Model Context Protocol) server, exposing document
question answering, upload, listing and deletion as tools over stdio.

Documents in the sample directory (--sample-dir or sample_dir in the
config) that are not indexed yet are ingested before serving.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by an MCP client)
  finrag mcp

  # Configure in the client's config file:
  # {
  #   "mcpServers": {
  #     "finrag": {
  #       "command": "finrag",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	cmd.Flags().StringVar(&mcpSampleDir, "sample-dir", "", "Directory of documents to index at startup")

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if mcpSampleDir != "" {
		cfg.SampleDir = mcpSampleDir
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openAppWith(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if cfg.SampleDir != "" {
		loaded, err := a.Service.IngestDir(ctx, cfg.SampleDir)
		if err != nil {
			return fmt.Errorf("loading sample documents: %w", err)
		}
		a.Logger.Info("sample documents loaded", "dir", cfg.SampleDir, "count", loaded)
	}

	server, _ := mcp.NewServer(a.Service, a.Logger)
	a.Logger.Info("finrag MCP server starting on stdio")

	if err := mcp.ServeStdio(ctx, server); err != nil {
		return err
	}
	a.Logger.Info("shutdown complete")
	return nil
}
