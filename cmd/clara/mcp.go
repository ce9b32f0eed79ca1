package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goblincore/clara"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "mcp",
		Short: "Expose Clara as an MCP stdio server",
		Args:  cobra.NoArgs,
		RunE:  runMCP,
	})
}

func runMCP(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "clara-mcp",
		Version: "1.0.0",
	}, nil)

	// --- Tool: ask_clara ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_clara",
		Description: "Send a conversation to Clara and get her reply. disconnect=true means Clara ended the session.",
	}, askHandler(engine))

	// --- Tool: select_lore ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "select_lore",
		Description: "Show which Orion lore sections would be injected for a given user text.",
	}, selectLoreHandler(engine))

	// --- Tool: transcript ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "transcript",
		Description: "Read an archived session transcript. Without session_id, lists the most recent sessions. Requires transcript_path.",
	}, transcriptHandler(engine))

	return server.Run(cmd.Context(), &mcp.StdioTransport{})
}

// --- Input types ---

type askInput struct {
	Text      string          `json:"text,omitempty"       jsonschema:"Single user message (ignored when messages is set)"`
	Messages  []clara.Message `json:"messages,omitempty"   jsonschema:"Full conversation, oldest first, roles user or assistant"`
	SessionID string          `json:"session_id,omitempty" jsonschema:"Optional session ID used to tag the transcript"`
}

type selectLoreInput struct {
	Text string `json:"text"          jsonschema:"User text to match against the lore"`
	Max  int    `json:"max,omitempty" jsonschema:"Max sections (default 4)"`
}

type transcriptInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"Session to read. If empty, lists recent sessions."`
	Limit     int    `json:"limit,omitempty"      jsonschema:"Max sessions to list (default 20)"`
}

// --- Handlers ---

func askHandler(e *clara.Engine) func(context.Context, *mcp.CallToolRequest, askInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input askInput) (*mcp.CallToolResult, any, error) {
		msgs := input.Messages
		if len(msgs) == 0 {
			msgs = []clara.Message{{Role: clara.RoleUser, Content: input.Text}}
		}
		reply, err := e.Respond(ctx, clara.Request{SessionID: input.SessionID, Messages: msgs})
		if err != nil {
			return textResult(jsonString(map[string]any{
				"error":     clara.KindOf(err),
				"detail":    clara.DetailOf(err),
				"retryable": clara.IsRetryable(err),
			})), nil, nil
		}
		return textResult(jsonString(reply)), nil, nil
	}
}

func selectLoreHandler(e *clara.Engine) func(context.Context, *mcp.CallToolRequest, selectLoreInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input selectLoreInput) (*mcp.CallToolResult, any, error) {
		sections := e.Lore().Select([]clara.Message{{Role: clara.RoleUser, Content: input.Text}}, input.Max)
		titles := make([]string, len(sections))
		for i, s := range sections {
			titles[i] = s.Title
		}
		return textResult(jsonString(map[string]any{
			"titles":   titles,
			"rendered": clara.RenderLore(sections),
		})), nil, nil
	}
}

func transcriptHandler(e *clara.Engine) func(context.Context, *mcp.CallToolRequest, transcriptInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input transcriptInput) (*mcp.CallToolResult, any, error) {
		store := e.Store()
		if store == nil {
			return textResult("error: transcript archive is disabled (set transcript_path or CLARA_TRANSCRIPT_DB)"), nil, nil
		}

		if input.SessionID == "" {
			sessions, err := store.RecentSessions(ctx, input.Limit)
			if err != nil {
				return textResult(fmt.Sprintf("error: %v", err)), nil, nil
			}
			out := make([]map[string]any, len(sessions))
			for i, s := range sessions {
				out[i] = map[string]any{
					"session_id": s.ID,
					"messages":   s.Messages,
					"started_at": s.StartedAt.Format(time.RFC3339),
					"last_at":    s.LastAt.Format(time.RFC3339),
				}
			}
			return textResult(jsonString(out)), nil, nil
		}

		msgs, err := store.SessionMessages(ctx, input.SessionID)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		out := make([]map[string]any, len(msgs))
		for i, m := range msgs {
			out[i] = transcriptToMap(m)
		}
		return textResult(jsonString(out)), nil, nil
	}
}

// --- Helpers ---

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func transcriptToMap(m clara.TranscriptMessage) map[string]any {
	out := map[string]any{
		"id":         m.ID,
		"role":       m.Role,
		"content":    m.Content,
		"created_at": m.CreatedAt.Format(time.RFC3339),
	}
	if m.Model != "" {
		out["model"] = m.Model
	}
	return out
}

func jsonString(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "marshal: %v"}`, err)
	}
	return string(data)
}
