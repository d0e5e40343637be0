// ABOUTME: Runs an MCP server over stdio until the context is cancelled
// ABOUTME: Shared by the finrag mcp command and the standalone server binary
package mcp

import (
	"context"
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// ServeStdio serves server on stdin/stdout. It returns nil when ctx is
// cancelled and the transport error otherwise.
func ServeStdio(ctx context.Context, server *mcpserver.MCPServer) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}
