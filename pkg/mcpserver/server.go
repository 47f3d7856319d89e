// Package mcpserver exposes the engine as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dukex/flowpilot/pkg/engine"
)

// Server wraps the MCP server and the engine its tools call.
type Server struct {
	mcpServer *server.MCPServer
	engine    *engine.Engine
	version   string
	logger    *slog.Logger
}

// NewServer registers every tool. The logger must not write to stdout, which
// carries the protocol.
func NewServer(engine *engine.Engine, version string, logger *slog.Logger) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		mcpServer: server.NewMCPServer("flowpilot", version, server.WithToolCapabilities(false)),
		engine:    engine,
		version:   version,
		logger:    logger.With("module", "mcp"),
	}

	s.registerTools()

	return s
}

// Run serves the tools on stdin and stdout until the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Starting Flowpilot MCP server", "version", s.version)

	err := server.ServeStdio(s.mcpServer)
	if err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("detect_workflow",
		mcp.WithDescription("Detect whether a user message calls for a structured workflow and return the matching template."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The user message")),
		mcp.WithArray("capabilities", mcp.Description("Capabilities the caller can offer, e.g. crm"),
			mcp.Items(map[string]any{"type": "string"})),
	), s.handleDetect)

	s.mcpServer.AddTool(mcp.NewTool("generate_workflow",
		mcp.WithDescription("Instantiate a template for a conversation. Steps whose data is already known are skipped."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation the workflow belongs to")),
		mcp.WithString("template_id", mcp.Description("Template to instantiate (default: the built-in scheduling template)")),
		mcp.WithString("user_id", mcp.Description("User the workflow runs for")),
		mcp.WithObject("existing_data", mcp.Description("Data already known, keyed by field")),
		mcp.WithString("timezone", mcp.Description("IANA timezone of the user")),
		mcp.WithString("language", mcp.Description("Language of the conversation")),
	), s.handleGenerate)

	s.mcpServer.AddTool(mcp.NewTool("get_workflow",
		mcp.WithDescription("Return a workflow with its tasks."),
		mcp.WithString("workflow_id", mcp.Required()),
	), s.handleGetWorkflow)

	s.mcpServer.AddTool(mcp.NewTool("next_task",
		mcp.WithDescription("Return the next runnable task. With claim=true the task is marked active."),
		mcp.WithString("workflow_id", mcp.Required()),
		mcp.WithBoolean("claim", mcp.Description("Activate the task (default: false)")),
	), s.handleNextTask)

	s.mcpServer.AddTool(mcp.NewTool("complete_task",
		mcp.WithDescription("Store the data gathered by a task and complete it."),
		mcp.WithString("task_id", mcp.Required()),
		mcp.WithObject("data", mcp.Description("Collected values keyed by field")),
	), s.handleCompleteTask)

	s.mcpServer.AddTool(mcp.NewTool("fail_task",
		mcp.WithDescription("Record a failed attempt of a task."),
		mcp.WithString("task_id", mcp.Required()),
		mcp.WithString("reason", mcp.Required()),
	), s.handleFailTask)

	s.mcpServer.AddTool(mcp.NewTool("execute_task",
		mcp.WithDescription("Run an execute task through the action executor."),
		mcp.WithString("task_id", mcp.Required()),
	), s.handleExecuteTask)

	s.mcpServer.AddTool(mcp.NewTool("identify_missing_info",
		mcp.WithDescription("List the information a task still needs, with questions to ask the user."),
		mcp.WithString("workflow_id", mcp.Required()),
		mcp.WithString("task_id", mcp.Required()),
		mcp.WithString("tone", mcp.Enum("friendly", "professional", "casual", "urgent")),
	), s.handleMissingInfo)

	s.mcpServer.AddTool(mcp.NewTool("validate_info",
		mcp.WithDescription("Validate and normalize one answer against its requirement."),
		mcp.WithString("value", mcp.Required()),
		mcp.WithObject("requirement", mcp.Required(), mcp.Description("The requirement returned by identify_missing_info")),
	), s.handleValidateInfo)

	s.mcpServer.AddTool(mcp.NewTool("determine_strategy",
		mcp.WithDescription("Decide whether to proceed, ask, infer or wait given the data collected so far."),
		mcp.WithString("workflow_id", mcp.Required()),
		mcp.WithObject("collected", mcp.Description("Collected values keyed by field")),
		mcp.WithBoolean("allow_inference"),
		mcp.WithBoolean("force_proceed"),
	), s.handleStrategy)

	s.mcpServer.AddTool(mcp.NewTool("record_outcome",
		mcp.WithDescription("Finish a workflow and learn from how it went."),
		mcp.WithString("workflow_id", mcp.Required()),
		mcp.WithBoolean("success", mcp.Required()),
		mcp.WithString("reason"),
		mcp.WithNumber("rating", mcp.Min(1), mcp.Max(5)),
	), s.handleRecordOutcome)

	s.mcpServer.AddTool(mcp.NewTool("suggest_optimizations",
		mcp.WithDescription("Suggest advisory changes to the template of a workflow from past runs."),
		mcp.WithString("workflow_id", mcp.Required()),
	), s.handleOptimizations)

	s.mcpServer.AddTool(mcp.NewTool("cancel_workflow",
		mcp.WithDescription("Abandon a workflow that has not finished."),
		mcp.WithString("workflow_id", mcp.Required()),
		mcp.WithString("reason"),
	), s.handleCancel)
}

func errorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

func jsonResponse(value any) (*mcp.CallToolResult, error) {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResponse(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}

	return mcp.NewToolResultText(string(encoded)), nil
}

// decodeArgument converts an object argument into target through its JSON form.
func decodeArgument(request mcp.CallToolRequest, name string, target any) error {
	value, ok := request.GetArguments()[name]
	if !ok || value == nil {
		return nil
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}

	err = json.Unmarshal(encoded, target)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}

	return nil
}
