// Package mcp adapts the netlord daemon to the Model Context Protocol so
// design agents can edit and check circuits through tool calls.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rmax-ai/netlord/pkg/client"
	"github.com/rmax-ai/netlord/pkg/netlist"
	"github.com/rmax-ai/netlord/pkg/patch"
)

// Server adapts netlord-d to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"netlord",
			"1.0.0",
		),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	// netlord://graph
	s.mcpServer.AddResource(mcp.NewResource(
		"netlord://graph",
		"Circuit Graph",
		mcp.WithResourceDescription("The latest circuit graph version: components, pins, nets, and their connections"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadGraph)

	// netlord://report
	s.mcpServer.AddResource(mcp.NewResource(
		"netlord://report",
		"Latest Validation Report",
		mcp.WithResourceDescription("The newest ERC/DRC report: violations sorted by severity"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadReport)
}

// --- Tools ---

func (s *Server) registerTools() {
	// apply_patch
	s.mcpServer.AddTool(mcp.NewTool(
		"apply_patch",
		mcp.WithDescription("Apply a batch of graph edits (add/remove/update nodes and edges) and validate the result. Returns the new version and any rule violations."),
		mcp.WithNumber("base", mcp.Required(), mcp.Description("The graph version the batch was computed against")),
		mcp.WithString("batch", mcp.Required(), mcp.Description("The patch batch as a JSON object: {namespace, ops:[{op, node|edge|id|attrs}]}")),
		mcp.WithString("rule_set", mcp.Description("Rule set to run after the commit (default 'all')")),
	), s.handleApplyPatch)

	// run_checks
	s.mcpServer.AddTool(mcp.NewTool(
		"run_checks",
		mcp.WithDescription("Re-run ERC/DRC checks against an existing graph version without changing anything."),
		mcp.WithNumber("version", mcp.Description("Graph version to check (default: latest)")),
		mcp.WithString("rule_set", mcp.Description("Rule set to run (default 'all')")),
	), s.handleRunChecks)

	// import_netlist
	s.mcpServer.AddTool(mcp.NewTool(
		"import_netlist",
		mcp.WithDescription("Import a full netlist document (components, nets, connections) as one atomic change."),
		mcp.WithNumber("base", mcp.Required(), mcp.Description("The graph version to import on top of")),
		mcp.WithString("netlist", mcp.Required(), mcp.Description("The netlist document as a JSON object: {design_id, components, nets, connections}")),
		mcp.WithString("rule_set", mcp.Description("Rule set to run after the import (default 'all')")),
	), s.handleImportNetlist)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"netlord-aware",
		mcp.WithPromptDescription("Provides context about netlord concepts (versions, patches, rule sets)"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadGraph(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	version, err := s.apiClient.GetGraph(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch graph: %w", err)
	}

	data, err := json.MarshalIndent(version, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleReadReport(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	report, err := s.apiClient.GetReport(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch report: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleApplyPatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	base := int64(mcp.ParseFloat64(request, "base", 0))
	rawBatch := mcp.ParseString(request, "batch", "")
	ruleSet := mcp.ParseString(request, "rule_set", "all")

	var batch patch.Batch
	if err := json.Unmarshal([]byte(rawBatch), &batch); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid batch JSON: %v", err)), nil
	}

	result, err := s.apiClient.ApplyPatch(ctx, base, &batch, ruleSet)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("patch rejected: %v", err)), nil
	}

	return formatResult(result)
}

func (s *Server) handleRunChecks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	version := int64(mcp.ParseFloat64(request, "version", 0))
	ruleSet := mcp.ParseString(request, "rule_set", "all")

	report, err := s.apiClient.Validate(ctx, version, ruleSet)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("validation failed: %v", err)), nil
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal report: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleImportNetlist(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	base := int64(mcp.ParseFloat64(request, "base", 0))
	rawNetlist := mcp.ParseString(request, "netlist", "")
	ruleSet := mcp.ParseString(request, "rule_set", "all")

	var nl netlist.Netlist
	if err := json.Unmarshal([]byte(rawNetlist), &nl); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid netlist JSON: %v", err)), nil
	}

	result, err := s.apiClient.ImportNetlist(ctx, base, &nl, ruleSet)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("import rejected: %v", err)), nil
	}

	return formatResult(result)
}

// formatResult renders a patch submission outcome for the agent.
func formatResult(result *client.PatchResult) (*mcp.CallToolResult, error) {
	if result.ValidationUnavailable {
		msg := fmt.Sprintf("Committed version %d, but validation did not run: %s\nRe-run checks with the run_checks tool.",
			result.Version, result.ValidationError)
		return mcp.NewToolResultText(msg), nil
	}

	summary := map[string]any{
		"version": result.Version,
		"report":  result.Report,
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "netlord-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are interacting with netlord, a versioned circuit-model store with deterministic ERC/DRC validation.

Concepts:
- Version: An immutable snapshot of the circuit graph, numbered from 0. Every change produces a new version.
- Patch batch: An ordered list of edits (add_node, remove_node, update_node_attr, add_edge, remove_edge, update_edge_attr) applied atomically against a base version.
- Base: The version your batch was computed against. If someone else committed first, you get a stale-base rejection; fetch the graph again and rebuild your batch.
- Rule set: A named group of checks ('ERC-default', 'DRC-power', 'all'). Reports list violations sorted by severity.
- Inverse batch: Every successful patch returns the batch that undoes it.

Workflow: read netlord://graph, build a patch against its version number, call apply_patch, then inspect the report. Violations of severity 'error' or 'fatal' mean the design is invalid; warnings are advisory.
`

	return mcp.NewGetPromptResult(
		"netlord-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
