// ABOUTME: MCP tool handler implementations for the finrag server
// ABOUTME: Translates tool arguments into Service calls and results into JSON text
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harper/finrag/internal/models"
	"github.com/harper/finrag/internal/rag"
	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	svc    *rag.Service
	logger *slog.Logger
}

// NewHandlers binds tool handlers to a Service
func NewHandlers(svc *rag.Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{svc: svc, logger: logger}
}

// QueryDocuments handles the query_documents tool
func (h *Handlers) QueryDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}

	req := models.QueryRequest{
		Query:          query,
		ConversationID: request.GetString("conversation_id", ""),
		TopK:           request.GetInt("top_k", 0),
	}
	args, _ := request.Params.Arguments.(map[string]any)
	if _, ok := args["use_hybrid_search"]; ok {
		hybrid := request.GetBool("use_hybrid_search", true)
		req.UseHybridSearch = &hybrid
	}
	if _, ok := args["temperature"]; ok {
		temperature := request.GetFloat("temperature", 0)
		req.Temperature = &temperature
	}

	resp, err := h.svc.Query(ctx, req)
	if err != nil {
		return h.failure("query", err), nil
	}
	return jsonResult(resp)
}

// UploadDocument handles the upload_document tool
func (h *Handlers) UploadDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")
	source := request.GetString("source", "")
	text := request.GetString("text", "")

	var (
		res *rag.UploadResult
		err error
	)
	switch {
	case path != "":
		res, err = h.svc.IngestFile(ctx, path)
	case source != "" && text != "":
		res, err = h.svc.IngestText(ctx, source, text)
	default:
		return mcp.NewToolResultError("either path, or source and text, are required"), nil
	}
	if err != nil {
		return h.failure("upload", err), nil
	}
	return jsonResult(res)
}

// ListDocuments handles the list_documents tool
func (h *Handlers) ListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs := h.svc.ListDocuments()
	total := 0
	for _, d := range docs {
		total += d.ChunkCount
	}
	return jsonResult(map[string]interface{}{
		"documents":    docs,
		"count":        len(docs),
		"total_chunks": total,
	})
}

// DeleteDocument handles the delete_document tool
func (h *Handlers) DeleteDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := request.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("source argument is required and must be a string"), nil
	}

	deleted, err := h.svc.Delete(ctx, source)
	if err != nil {
		return h.failure("delete", err), nil
	}
	if !deleted {
		return mcp.NewToolResultError(fmt.Sprintf("document not found: %s", source)), nil
	}
	return jsonResult(map[string]interface{}{
		"deleted": true,
		"source":  source,
	})
}

// GetConversationHistory handles the get_conversation_history tool
func (h *Handlers) GetConversationHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("conversation_id argument is required and must be a string"), nil
	}
	return jsonResult(map[string]interface{}{
		"conversation_id": id,
		"messages":        h.svc.ConversationHistory(id),
	})
}

// ClearConversation handles the clear_conversation tool
func (h *Handlers) ClearConversation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("conversation_id argument is required and must be a string"), nil
	}
	h.svc.ClearConversation(id)
	return jsonResult(map[string]interface{}{
		"cleared":         true,
		"conversation_id": id,
	})
}

// GetHealth handles the get_health tool
func (h *Handlers) GetHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(h.svc.Health(ctx))
}

// failure logs err and turns it into a tool error; validation errors are the caller's fault
func (h *Handlers) failure(op string, err error) *mcp.CallToolResult {
	if errors.Is(err, models.ErrValidation) {
		return mcp.NewToolResultError(err.Error())
	}
	h.logger.Error("tool call failed", "op", op, "error", err)
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", op, err))
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
