package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/memvault/memvault/pkg/config"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/observability/logging"
	"github.com/memvault/memvault/pkg/vault"
)

func newMCPCmd(getConfig func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio",
		Long:  "Exposes the memory store as MCP tools so agents can add, search, chat over, and delete memories.",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := buildVault(getConfig())
			if err != nil {
				return err
			}
			if err := v.Open(cmd.Context()); err != nil {
				return err
			}
			defer v.Close()

			s := newMCPServer(v)
			logging.Infof("mcp: serving on stdio")
			return server.ServeStdio(s)
		},
	}
}

func newMCPServer(v *vault.Vault) *server.MCPServer {
	s := server.NewMCPServer("memvault", version,
		server.WithToolCapabilities(true))

	s.AddTool(mcp.NewTool("add_memory",
		mcp.WithDescription("Store a new memory"),
		mcp.WithString("text", mcp.Required(), mcp.Description("The memory text to store")),
		mcp.WithString("type", mcp.Description("Optional memory type, e.g. 'fact' or 'preference'")),
	), handleAddMemory(v))

	s.AddTool(mcp.NewTool("search_memories",
		mcp.WithDescription("Search stored memories by relevance"),
		mcp.WithString("query", mcp.Required(), mcp.Description("What to look for")),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of results (default 5)")),
	), handleSearchMemories(v))

	s.AddTool(mcp.NewTool("chat_with_memory",
		mcp.WithDescription("Chat with relevant memories as context"),
		mcp.WithString("message", mcp.Required(), mcp.Description("The user message")),
	), handleChatWithMemory(v))

	s.AddTool(mcp.NewTool("delete_memory",
		mcp.WithDescription("Delete a memory by id"),
		mcp.WithString("id", mcp.Required(), mcp.Description("The memory id to delete")),
	), handleDeleteMemory(v))

	return s
}

func toolArgs(req mcp.CallToolRequest) (map[string]interface{}, error) {
	args, ok := req.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid arguments format")
	}
	return args, nil
}

func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || strings.TrimSpace(val) == "" {
		return "", fmt.Errorf("%s parameter is required and must be a string", key)
	}
	return val, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func handleAddMemory(v *vault.Vault) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := toolArgs(req)
		if err != nil {
			return nil, err
		}
		text, err := requireString(args, "text")
		if err != nil {
			return nil, err
		}
		meta := memory.Metadata{Source: memory.SourceSystem}
		if t, ok := args["type"].(string); ok {
			meta.Type = t
		}
		ids, err := v.Add(ctx, []string{text}, meta)
		if err != nil {
			return nil, fmt.Errorf("adding memory: %w", err)
		}
		return textResult(fmt.Sprintf("stored memory %s", ids[0])), nil
	}
}

func handleSearchMemories(v *vault.Vault) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := toolArgs(req)
		if err != nil {
			return nil, err
		}
		query, err := requireString(args, "query")
		if err != nil {
			return nil, err
		}
		topK := 5
		if n, ok := args["top_k"].(float64); ok && n > 0 {
			topK = int(n)
		}
		results, err := v.Search(ctx, query, topK, nil)
		if err != nil {
			return nil, fmt.Errorf("searching memories: %w", err)
		}

		type hit struct {
			ID     string  `json:"id"`
			Memory string  `json:"memory"`
			Score  float64 `json:"score"`
		}
		hits := make([]hit, len(results))
		for i, r := range results {
			hits[i] = hit{ID: r.Item.ID, Memory: r.Item.Memory, Score: r.Score}
		}
		data, err := json.MarshalIndent(hits, "", "  ")
		if err != nil {
			return nil, err
		}
		return textResult(string(data)), nil
	}
}

func handleChatWithMemory(v *vault.Vault) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := toolArgs(req)
		if err != nil {
			return nil, err
		}
		message, err := requireString(args, "message")
		if err != nil {
			return nil, err
		}
		reply, err := v.Chat(ctx, message, vault.ChatOptions{})
		if err != nil {
			return nil, fmt.Errorf("chatting: %w", err)
		}
		return textResult(reply), nil
	}
}

func handleDeleteMemory(v *vault.Vault) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := toolArgs(req)
		if err != nil {
			return nil, err
		}
		id, err := requireString(args, "id")
		if err != nil {
			return nil, err
		}
		if err := v.Delete(ctx, []string{id}); err != nil {
			return nil, fmt.Errorf("deleting memory: %w", err)
		}
		return textResult(fmt.Sprintf("deleted memory %s", id)), nil
	}
}
