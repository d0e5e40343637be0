// ABOUTME: Opens the question answering engine for a command invocation
// ABOUTME: Loads .env and config, applies log level flags and prints JSON output
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/harper/finrag/internal/app"
	"github.com/harper/finrag/internal/config"
	"github.com/joho/godotenv"
)

// appOptions seeds the wiring of every command; tests swap in fake model clients
var appOptions = func() app.Options { return app.Options{} }

func loadConfig() (*config.Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	path := configPath
	if path == "" {
		path = os.Getenv("FINRAG_CONFIG")
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	switch {
	case verbose:
		cfg.LogLevel = "debug"
	case quiet:
		cfg.LogLevel = "error"
	}
	return cfg, nil
}

// openApp builds the engine; ephemeral keeps the index in memory
func openApp(ctx context.Context, ephemeral bool) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openAppWith(ctx, cfg, ephemeral)
}

func openAppWith(ctx context.Context, cfg *config.Config, ephemeral bool) (*app.App, error) {
	opts := appOptions()
	opts.Ephemeral = opts.Ephemeral || ephemeral
	opts.Version = versionInfo.Version

	a, err := app.New(ctx, cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("initializing engine: %w", err)
	}
	return a, nil
}

func closeApp(a *app.App) {
	if err := a.Close(context.Background()); err != nil {
		a.Logger.Warn("shutdown incomplete", "error", err)
	}
}

func wantJSON() bool {
	return outputFormat == "json"
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintf(w, "%s\n", data)
	return nil
}
