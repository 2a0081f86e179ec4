package mcp_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/silibot/internal/app"
	"github.com/MrWong99/silibot/internal/config"
	"github.com/MrWong99/silibot/internal/corpus/corpustest"
	"github.com/MrWong99/silibot/internal/mcp"
)

// connect starts a server on an in-memory transport and returns a connected
// client session.
func connect(t *testing.T) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()

	cfg := config.Default()
	cfg.Corpus.EntityFile, cfg.Corpus.ResponseFile = corpustest.WriteFiles(t, t.TempDir(), "https://cdn.example")
	_, svc := app.NewCorpusService(cfg, nil)

	st, ct := mcpsdk.NewInMemoryTransports()
	ss, err := mcp.NewServer(svc, "test").Connect(ctx, st)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = ss.Close() })

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *mcpsdk.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if len(res.Content) != 1 {
		t.Fatalf("CallTool(%s) returned %d content items", name, len(res.Content))
	}
	tc, ok := res.Content[0].(*mcpsdk.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s) content is %T", name, res.Content[0])
	}
	return tc.Text, res.IsError
}

func TestServer_ListTools(t *testing.T) {
	t.Parallel()
	cs := connect(t)

	var names []string
	for tool, err := range cs.Tools(context.Background(), nil) {
		if err != nil {
			t.Fatalf("Tools: %v", err)
		}
		names = append(names, tool.Name)
	}
	want := map[string]bool{mcp.ToolResolve: true, mcp.ToolSearch: true}
	if len(names) != len(want) {
		t.Fatalf("tools = %v", names)
	}
	for _, n := range names {
		if !want[n] {
			t.Errorf("unexpected tool %q", n)
		}
	}
}

func TestServer_Resolve(t *testing.T) {
	t.Parallel()
	cs := connect(t)

	text, isErr := callTool(t, cs, mcp.ToolResolve, map[string]any{"query": "Abadon: Abaddon. (3)"})
	if isErr {
		t.Fatalf("resolve failed: %s", text)
	}
	var got mcp.ResolveResult
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
	want := mcp.ResolveResult{
		URL:    "https://cdn.example/abaddon_3.mp3",
		Entity: "Abaddon",
		Type:   "hero",
		Text:   "Abaddon.",
		Level:  3,
		Fuzzy:  true,
	}
	if got != want {
		t.Errorf("result = %+v, want %+v", got, want)
	}
}

func TestServer_ResolveUserErrors(t *testing.T) {
	t.Parallel()
	cs := connect(t)

	tests := []struct {
		query string
		want  string
	}{
		{query: "Zeus", want: "Not enough arguments."},
		{query: "Nobody At All: hi", want: "Could not find responses"},
		{query: "Abaddon: Abaddon. (2)", want: "Alternative response levels are available"},
	}
	for _, tt := range tests {
		text, isErr := callTool(t, cs, mcp.ToolResolve, map[string]any{"query": tt.query})
		if !isErr {
			t.Errorf("%q: expected a tool error, got %s", tt.query, text)
		}
		if !strings.Contains(text, tt.want) {
			t.Errorf("%q: message = %q, want it to contain %q", tt.query, text, tt.want)
		}
	}
}

func TestServer_Search(t *testing.T) {
	t.Parallel()
	cs := connect(t)

	text, isErr := callTool(t, cs, mcp.ToolSearch, map[string]any{"query": "abaddon", "limit": 2})
	if isErr {
		t.Fatalf("search failed: %s", text)
	}
	var got []mcp.SearchResult
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
	if len(got) != 2 || got[0].Key != corpustest.Keys[1] || got[1].Key != corpustest.Keys[2] {
		t.Errorf("results = %+v", got)
	}

	// Every key resolves back to its own URL.
	text, _ = callTool(t, cs, mcp.ToolSearch, map[string]any{})
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
	if len(got) != len(corpustest.Keys) {
		t.Fatalf("blank search returned %d results", len(got))
	}
	for _, r := range got {
		text, isErr := callTool(t, cs, mcp.ToolResolve, map[string]any{"query": r.Key})
		if isErr {
			t.Errorf("resolve %q: %s", r.Key, text)
			continue
		}
		var res mcp.ResolveResult
		if err := json.Unmarshal([]byte(text), &res); err != nil {
			t.Fatalf("decode %q: %v", text, err)
		}
		if res.URL != r.URL {
			t.Errorf("resolve %q = %s, want %s", r.Key, res.URL, r.URL)
		}
	}
}

func TestServer_SearchBadLimit(t *testing.T) {
	t.Parallel()
	cs := connect(t)

	text, isErr := callTool(t, cs, mcp.ToolSearch, map[string]any{"limit": 500})
	if !isErr || !strings.Contains(text, "limit") {
		t.Errorf("limit 500: isErr=%v text=%q", isErr, text)
	}
}
