package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ansuz/internal/recordservice"
	"github.com/starford/ansuz/internal/schema"
	"github.com/starford/ansuz/internal/storage"
)

const mcpSchemaYAML = `
shared:
  status:
    kind: selection
    enum: status
enums:
  status: [open, done]
types:
  objective:
    location: objectives
    shared: [status]
    fields:
      title:
        kind: text
        required: true
    children:
      task:
        fields:
          due:
            kind: date
`

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()

	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s, err := schema.Load([]byte(mcpSchemaYAML))
	if err != nil {
		t.Fatal(err)
	}

	files := map[string]string{
		"objectives/Alpha.md": "---\ntype: objective\ntitle: Alpha\nstatus: open\n---\nalpha\n",
		"objectives/Bad.md":   "---\ntype: objective\nstatus: bogus\n---\n",
	}
	for path, content := range files {
		if err := store.Write(path, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}

	return New(recordservice.NewService(store, s), s, store), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handler
	// functions are exercised directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "query_records":
		result, err = srv.queryRecords(ctx, req)
	case "read_record":
		result, err = srv.readRecord(ctx, req)
	case "list_types":
		result, err = srv.listTypes(ctx, req)
	case "schema_type":
		result, err = srv.schemaType(ctx, req)
	case "validate_records":
		result, err = srv.validateRecords(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestQueryRecords(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "query_records", map[string]interface{}{"type": "objective"})
	text := resultText(r)
	if !strings.Contains(text, "objectives/Alpha.md") {
		t.Errorf("query result = %q", text)
	}
}

func TestQueryRecordsRequiresSelection(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "query_records", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for empty selection")
	}
}

func TestReadRecord(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "read_record", map[string]interface{}{"path": "objectives/Alpha.md"})
	if !strings.Contains(resultText(r), "title: Alpha") {
		t.Errorf("read result = %q", resultText(r))
	}

	r = callTool(t, srv, "read_record", map[string]interface{}{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing record")
	}
}

func TestListTypes(t *testing.T) {
	srv, _ := testServer(t)

	text := resultText(callTool(t, srv, "list_types", map[string]interface{}{}))
	if !strings.Contains(text, "objective/task") {
		t.Errorf("types = %q", text)
	}
}

func TestSchemaType(t *testing.T) {
	srv, _ := testServer(t)

	text := resultText(callTool(t, srv, "schema_type", map[string]interface{}{"type": "objective/task"}))
	if !strings.Contains(text, `"due"`) || !strings.Contains(text, `"status"`) {
		t.Errorf("resolved type = %q", text)
	}

	r := callTool(t, srv, "schema_type", map[string]interface{}{"type": "ghost"})
	if !r.IsError {
		t.Error("expected error for unknown type")
	}
}

func TestValidateRecords(t *testing.T) {
	srv, _ := testServer(t)

	text := resultText(callTool(t, srv, "validate_records", map[string]interface{}{"type": "objective"}))
	if !strings.Contains(text, "objectives/Bad.md") {
		t.Errorf("validation result = %q", text)
	}
}
