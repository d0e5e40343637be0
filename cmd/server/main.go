// ABOUTME: Main entry point for the finrag MCP server with stdio transport
// ABOUTME: Builds the engine from the environment, loads sample documents and serves tools
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/harper/finrag/internal/app"
	"github.com/harper/finrag/internal/config"
	"github.com/harper/finrag/internal/mcp"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (for API keys)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found (this is okay for production): %v", err)
	}

	if err := run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{Version: mcp.ServerVersion})
	if err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			a.Logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	if cfg.SampleDir != "" {
		loaded, err := a.Service.IngestDir(ctx, cfg.SampleDir)
		if err != nil {
			a.Logger.Error("failed to load sample documents", "dir", cfg.SampleDir, "error", err)
		} else {
			a.Logger.Info("sample documents loaded", "dir", cfg.SampleDir, "count", loaded)
		}
	}

	server, _ := mcp.NewServer(a.Service, a.Logger)

	a.Logger.Info("finrag MCP server starting on stdio")
	return mcp.ServeStdio(ctx, server)
}
