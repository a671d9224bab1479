// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes Ansuz record operations for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/recordservice"
	"github.com/starford/ansuz/internal/schema"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/target"
)

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *recordservice.Service
	schema *schema.Schema
	store  storage.Provider
}

// New creates a new MCP server with all Ansuz tools registered.
func New(svc *recordservice.Service, s *schema.Schema, store storage.Provider) *Server {
	srv := &Server{svc: svc, schema: s, store: store}

	srv.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	srv.mcp.AddTool(mcp.NewTool("query_records",
		mcp.WithDescription("Select records by type, path glob, id, body text, or where-expressions. "+
			"At least one criterion (or all=true) is required; the selection never defaults to the whole vault."),
		mcp.WithString("type", mcp.Description("Type path, e.g. objective/task")),
		mcp.WithString("path", mcp.Description("Path glob over vault-relative paths, e.g. objectives/**")),
		mcp.WithString("where", mcp.Description("Where-expression, e.g. status == 'active' and priority > 2")),
		mcp.WithString("id", mcp.Description("Record id (file name without extension)")),
		mcp.WithString("body", mcp.Description("Body substring to match")),
		mcp.WithBoolean("all", mcp.Description("Select every managed record")),
	), srv.queryRecords)

	srv.mcp.AddTool(mcp.NewTool("read_record",
		mcp.WithDescription("Read the full content of a record."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the record (e.g. objectives/plan.md)")),
	), srv.readRecord)

	srv.mcp.AddTool(mcp.NewTool("list_types",
		mcp.WithDescription("List every resolvable type path declared by the schema."),
	), srv.listTypes)

	srv.mcp.AddTool(mcp.NewTool("schema_type",
		mcp.WithDescription("Show the resolved field set, ordering, layout, and ownership declarations of a type path."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Type path, e.g. objective/task")),
	), srv.schemaType)

	srv.mcp.AddTool(mcp.NewTool("validate_records",
		mcp.WithDescription("Validate selected records: required fields, enum membership, and ownership of referenced records."),
		mcp.WithString("type", mcp.Description("Type path to validate")),
		mcp.WithBoolean("all", mcp.Description("Validate every managed record")),
	), srv.validateRecords)

	srv.mcp.AddResource(
		mcp.NewResource("ansuz://record-format", "Record Format Contract",
			mcp.WithResourceDescription("Canonical typed-record format that all vault records must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		srv.readRecordFormatResource,
	)

	return srv
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) queryRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sel := target.Selector{
		TypePath: optString(req, "type"),
		PathGlob: optString(req, "path"),
		ID:       optString(req, "id"),
		Body:     optString(req, "body"),
		All:      optBool(req, "all"),
	}
	if w := optString(req, "where"); w != "" {
		sel.Where = []string{w}
	}

	items, res, err := s.svc.List(ctx, sel)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 && len(res.NearMisses) > 0 {
		return mcp.NewToolResultText(fmt.Sprintf("no match; similar ids: %s", strings.Join(res.NearMisses, ", "))), nil
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) listTypes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(strings.Join(s.schema.ConcreteTypePaths(), "\n")), nil
}

func (s *Server) schemaType(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typePath, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rt, err := s.schema.Resolve(typePath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(rt, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) validateRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sel := target.Selector{
		TypePath: optString(req, "type"),
		All:      optBool(req, "all"),
	}
	report, err := s.svc.Check(ctx, sel)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readRecordFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "ansuz://record-format",
			MIMEType: "text/markdown",
			Text:     RecordFormatContract,
		},
	}, nil
}

func optString(req mcp.CallToolRequest, key string) string {
	if v, err := req.RequireString(key); err == nil {
		return v
	}
	return ""
}

func optBool(req mcp.CallToolRequest, key string) bool {
	if v, err := req.RequireBool(key); err == nil {
		return v
	}
	return false
}
