// ABOUTME: MCP tool definitions and registration for the finrag server
// ABOUTME: Defines JSON schemas for the document question answering tools
package mcp

import (
	"log/slog"

	"github.com/harper/finrag/internal/rag"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// ServerName and ServerVersion identify the MCP server to clients
const (
	ServerName    = "finrag"
	ServerVersion = "0.1.0"
)

// NewServer creates an MCP server with every finrag tool registered
func NewServer(svc *rag.Service, logger *slog.Logger) (*mcpserver.MCPServer, *Handlers) {
	server := mcpserver.NewMCPServer(ServerName, ServerVersion)
	return server, RegisterTools(server, svc, logger)
}

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, svc *rag.Service, logger *slog.Logger) *Handlers {
	handlers := NewHandlers(svc, logger)

	// 1. query_documents - answer a question from the indexed documents
	server.AddTool(mcp.Tool{
		Name:        "query_documents",
		Description: "Answer a question from the indexed financial documents. Retrieves passages with hybrid search, re-ranks them and cites the sources used.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Question to answer",
				},
				"conversation_id": map[string]interface{}{
					"type":        "string",
					"description": "Conversation to continue; omit to start a new one",
				},
				"use_hybrid_search": map[string]interface{}{
					"type":        "boolean",
					"description": "Combine semantic and keyword search (default: true)",
					"default":     true,
				},
				"top_k": map[string]interface{}{
					"type":        "number",
					"description": "Number of passages to use as context, 1-20 (default: 5)",
					"default":     5,
				},
				"temperature": map[string]interface{}{
					"type":        "number",
					"description": "Sampling temperature, 0-2 (default: 0.7)",
				},
			},
			Required: []string{"query"},
		},
	}, handlers.QueryDocuments)

	// 2. upload_document - index a file from disk or raw text
	server.AddTool(mcp.Tool{
		Name:        "upload_document",
		Description: "Index a document. Pass a path to a PDF, DOCX or TXT file, or a source name with raw text. Re-uploading a source replaces it.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path to a .pdf, .docx or .txt file",
				},
				"source": map[string]interface{}{
					"type":        "string",
					"description": "Source name for raw text uploads",
				},
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Raw document text",
				},
			},
		},
	}, handlers.UploadDocument)

	// 3. list_documents - indexed sources with chunk counts
	server.AddTool(mcp.Tool{
		Name:        "list_documents",
		Description: "List indexed documents with their chunk counts.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.ListDocuments)

	// 4. delete_document - remove a source from the index
	server.AddTool(mcp.Tool{
		Name:        "delete_document",
		Description: "Remove every chunk of a document from the index.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"source": map[string]interface{}{
					"type":        "string",
					"description": "Source name as shown by list_documents",
				},
			},
			Required: []string{"source"},
		},
	}, handlers.DeleteDocument)

	// 5. get_conversation_history - messages of a conversation
	server.AddTool(mcp.Tool{
		Name:        "get_conversation_history",
		Description: "Get the retained messages of a conversation, oldest first.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": map[string]interface{}{
					"type":        "string",
					"description": "Conversation ID returned by query_documents",
				},
			},
			Required: []string{"conversation_id"},
		},
	}, handlers.GetConversationHistory)

	// 6. clear_conversation - forget a conversation
	server.AddTool(mcp.Tool{
		Name:        "clear_conversation",
		Description: "Forget the history of a conversation.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": map[string]interface{}{
					"type":        "string",
					"description": "Conversation ID to clear",
				},
			},
			Required: []string{"conversation_id"},
		},
	}, handlers.ClearConversation)

	// 7. get_health - live engine counts
	server.AddTool(mcp.Tool{
		Name:        "get_health",
		Description: "Report engine health: indexed chunks, sources, cache size and conversations.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.GetHealth)

	return handlers
}
