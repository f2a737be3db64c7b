package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"stackline/src/config"
	"stackline/src/definition"
	"stackline/src/logger"
	"stackline/src/store"
)

// Server is the MCP server for stackline.
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *config.Config
	loader     *definition.Loader
	executions store.Store
	cache      *DefinitionCache
	log        logger.Logger
}

// NewServer creates a new MCP server. executions may be nil, in which case
// get_execution reports that no store is configured.
func NewServer(cfg *config.Config, executions store.Store, log logger.Logger) *Server {
	s := server.NewMCPServer(
		"stackline",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer:  s,
		cfg:        cfg,
		loader:     definition.NewLoader(cfg, log),
		executions: executions,
		cache:      NewDefinitionCache(),
		log:        log,
	}
	srv.registerTools()
	return srv
}

// registerTools registers all available tools.
func (s *Server) registerTools() {
	validateTool := mcp.NewTool("validate_pipeline",
		mcp.WithDescription("Load HCL pipeline definitions and check the artifact graph. Returns each pipeline's stages, run-order groups and artifacts, or the validation error with its kind and hint. Valid pipelines can be rendered later by name."),
		mcp.WithString("path",
			mcp.Description("Definition file or directory of .hcl files"),
		),
		mcp.WithString("source",
			mcp.Description("HCL definition text, used when path is empty"),
		),
	)

	renderTool := mcp.NewTool("render_pipeline",
		mcp.WithDescription("Render a pipeline as its CodePipeline declaration JSON. Renders a pipeline validated earlier by name, or one of the built-in variants."),
		mcp.WithString("name",
			mcp.Description("Name of a pipeline returned by validate_pipeline"),
		),
		mcp.WithString("variant",
			mcp.Description("Built-in pipeline when name is empty: production (default) or integration"),
			mcp.Enum("production", "integration"),
		),
		mcp.WithString("pr_number",
			mcp.Description("Pull request number of the integration variant"),
		),
		mcp.WithBoolean("include_template",
			mcp.Description("Also return the infrastructure template of a built-in variant"),
		),
	)

	executionTool := mcp.NewTool("get_execution",
		mcp.WithDescription("Get a recorded pipeline execution with per-action status and the tail of each action's output. Without execution_id, lists the most recent executions."),
		mcp.WithString("pipeline",
			mcp.Required(),
			mcp.Description("Pipeline name"),
		),
		mcp.WithString("execution_id",
			mcp.Description("Execution id"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Executions to list when execution_id is empty (default: 5)"),
		),
	)

	s.mcpServer.AddTool(validateTool, s.handleValidatePipeline)
	s.mcpServer.AddTool(renderTool, s.handleRenderPipeline)
	s.mcpServer.AddTool(executionTool, s.handleGetExecution)
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}
