// Package mcp exposes voice line lookup as Model Context Protocol tools so
// assistants can resolve and search voice lines.
//
// Two tools are registered:
//   - "resolve_voiceline" resolves a query to the audio URL of one response.
//   - "search_voicelines" lists display keys matching a partial query.
//
// Lookup failures a user can fix (bad syntax, unknown entity, missing level)
// are returned as tool results with IsError set, carrying the same message a
// chat user would see. Only protocol failures are returned as errors.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/silibot/internal/app"
	"github.com/MrWong99/silibot/internal/voiceline"
)

// Tool names.
const (
	ToolResolve = "resolve_voiceline"
	ToolSearch  = "search_voicelines"
)

// maxSearchLimit caps the limit argument of search_voicelines.
const maxSearchLimit = voiceline.DefaultMaxResults

// Lookup resolves voice line queries. [*app.Service] implements it.
type Lookup interface {
	Resolve(ctx context.Context, source, query string) (voiceline.Resolution, error)
	Search(ctx context.Context, source, query string, limit int) ([]voiceline.IndexEntry, error)
}

// ResolveArgs is the input of resolve_voiceline.
type ResolveArgs struct {
	Query string `json:"query" jsonschema:"voice line query in the form 'Entity Name (entity_type): Voice line (level)'; wrap the line in double quotes for a regular expression"`
}

// ResolveResult is the output of resolve_voiceline.
type ResolveResult struct {
	URL    string `json:"url"`
	Entity string `json:"entity"`
	Type   string `json:"type"`
	Text   string `json:"text"`

	// Level is 1-based, as typed in queries.
	Level int  `json:"level"`
	Fuzzy bool `json:"fuzzy_entity_match"`
}

// SearchArgs is the input of search_voicelines.
type SearchArgs struct {
	Query string `json:"query,omitempty" jsonschema:"case-insensitive substring of the display key, one typo tolerated; empty lists the first entries"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results (1-50)"`
}

// SearchResult is one entry of the search_voicelines output.
type SearchResult struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Server is an MCP server backed by a [Lookup].
type Server struct {
	lookup Lookup
	server *mcpsdk.Server
}

// NewServer creates a Server with both tools registered. version is
// reported to clients during initialization.
func NewServer(lookup Lookup, version string) *Server {
	s := &Server{
		lookup: lookup,
		server: mcpsdk.NewServer(&mcpsdk.Implementation{Name: "silibot", Version: version}, nil),
	}

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        ToolResolve,
		Description: "Resolve a Dota 2 voice line query to the URL of its audio file.",
	}, s.resolve)
	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        ToolSearch,
		Description: "Search Dota 2 voice lines. Results are display keys that can be passed back to resolve_voiceline as the query.",
	}, s.search)

	return s
}

// Run serves on t until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context, t mcpsdk.Transport) error {
	if err := s.server.Run(ctx, t); err != nil {
		return fmt.Errorf("mcp: run: %w", err)
	}
	return nil
}

// Connect starts a session on t without blocking. Used for in-process
// transports.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	ss, err := s.server.Connect(ctx, t, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: connect: %w", err)
	}
	return ss, nil
}

func (s *Server) resolve(ctx context.Context, _ *mcpsdk.CallToolRequest, args ResolveArgs) (*mcpsdk.CallToolResult, any, error) {
	res, err := s.lookup.Resolve(ctx, app.SourceMCP, args.Query)
	if err != nil {
		slog.Debug("mcp: resolve failed", "query", args.Query, "outcome", voiceline.Outcome(err))
		return toolError(voiceline.UserMessage(err)), nil, nil
	}
	return jsonResult(ResolveResult{
		URL:    res.URL,
		Entity: res.Entity.Name,
		Type:   string(res.Entity.Type),
		Text:   res.Response.Text,
		Level:  res.Level + 1,
		Fuzzy:  res.Fuzzy,
	})
}

func (s *Server) search(ctx context.Context, _ *mcpsdk.CallToolRequest, args SearchArgs) (*mcpsdk.CallToolResult, any, error) {
	if args.Limit < 0 || args.Limit > maxSearchLimit {
		return toolError(fmt.Sprintf("limit must be between 1 and %d", maxSearchLimit)), nil, nil
	}
	entries, err := s.lookup.Search(ctx, app.SourceMCP, args.Query, args.Limit)
	if err != nil {
		return toolError(voiceline.UserMessage(err)), nil, nil
	}
	out := make([]SearchResult, len(entries))
	for i, e := range entries {
		out[i] = SearchResult{Key: e.Key, URL: e.URL}
	}
	return jsonResult(out)
}

func toolError(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
		IsError: true,
	}
}

func jsonResult(v any) (*mcpsdk.CallToolResult, any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("mcp: encode result: %w", err)
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(b)}},
	}, nil, nil
}
