package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dukex/flowpilot/pkg/information"
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/trigger"
	"github.com/dukex/flowpilot/pkg/workflow"
)

func (s *Server) handleDetect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return errorResponse("Missing or invalid 'text' argument"), nil
	}

	template, err := s.engine.DetectWorkflowNeed(ctx, text, trigger.Context{
		Capabilities: request.GetStringSlice("capabilities", nil),
	})
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	return jsonResponse(map[string]any{"detected": template != nil, "template": template})
}

func (s *Server) handleGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID, err := request.RequireString("conversation_id")
	if err != nil {
		return errorResponse("Missing or invalid 'conversation_id' argument"), nil
	}

	existing := map[string]any{}

	err = decodeArgument(request, "existing_data", &existing)
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	template, err := s.engine.GetTemplate(ctx, request.GetString("template_id", models.BuiltinSchedulingTemplateID))
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	generation, err := s.engine.GenerateWorkflow(ctx, template, workflow.Input{
		ConversationID: conversationID,
		UserID:         request.GetString("user_id", ""),
		Context: models.WorkflowContext{
			ExistingData: existing,
			Timezone:     request.GetString("timezone", ""),
			Language:     request.GetString("language", ""),
		},
	})
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	return jsonResponse(generation)
}

func (s *Server) handleGetWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := request.RequireString("workflow_id")
	if err != nil {
		return errorResponse("Missing or invalid 'workflow_id' argument"), nil
	}

	state, err := s.engine.GetWorkflow(ctx, workflowID)
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	return jsonResponse(state)
}

func (s *Server) handleNextTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := request.RequireString("workflow_id")
	if err != nil {
		return errorResponse("Missing or invalid 'workflow_id' argument"), nil
	}

	var task *models.WorkflowTask

	if request.GetBool("claim", false) {
		task, err = s.engine.ClaimNextTask(ctx, workflowID)
	} else {
		task, err = s.engine.GetNextTask(ctx, workflowID)
	}

	if err != nil {
		return errorResponse(err.Error()), nil
	}

	if task == nil {
		return mcp.NewToolResultText("No task is runnable right now."), nil
	}

	return jsonResponse(task)
}

func (s *Server) handleCompleteTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := request.RequireString("task_id")
	if err != nil {
		return errorResponse("Missing or invalid 'task_id' argument"), nil
	}

	data := map[string]any{}

	err = decodeArgument(request, "data", &data)
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	task, err := s.engine.CompleteTask(ctx, taskID, data)
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	return jsonResponse(task)
}

func (s *Server) handleFailTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := request.RequireString("task_id")
	if err != nil {
		return errorResponse("Missing or invalid 'task_id' argument"), nil
	}

	reason, err := request.RequireString("reason")
	if err != nil {
		return errorResponse("Missing or invalid 'reason' argument"), nil
	}

	task, err := s.engine.FailTask(ctx, taskID, reason)
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	return jsonResponse(task)
}

func (s *Server) handleExecuteTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := request.RequireString("task_id")
	if err != nil {
		return errorResponse("Missing or invalid 'task_id' argument"), nil
	}

	report, err := s.engine.ExecuteTask(ctx, taskID)
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	return jsonResponse(report)
}

func (s *Server) handleMissingInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := request.RequireString("workflow_id")
	if err != nil {
		return errorResponse("Missing or invalid 'workflow_id' argument"), nil
	}

	taskID, err := request.RequireString("task_id")
	if err != nil {
		return errorResponse("Missing or invalid 'task_id' argument"), nil
	}

	requirements, err := s.engine.IdentifyMissingInfo(ctx, workflowID, taskID)
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	prompts := s.engine.GeneratePrompts(ctx, requirements, information.PromptContext{
		Tone: models.Tone(request.GetString("tone", string(models.ToneFriendly))),
	})

	return jsonResponse(map[string]any{"requirements": requirements, "prompts": prompts})
}

func (s *Server) handleValidateInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	value, ok := request.GetArguments()["value"]
	if !ok {
		return errorResponse("Missing 'value' argument"), nil
	}

	var requirement models.InfoRequirement

	err := decodeArgument(request, "requirement", &requirement)
	if err != nil || requirement.Field == "" {
		return errorResponse("Missing or invalid 'requirement' argument"), nil
	}

	return jsonResponse(s.engine.ValidateInfo(ctx, value, requirement))
}

func (s *Server) handleStrategy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := request.RequireString("workflow_id")
	if err != nil {
		return errorResponse("Missing or invalid 'workflow_id' argument"), nil
	}

	collected := map[string]any{}

	err = decodeArgument(request, "collected", &collected)
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	decision, err := s.engine.DetermineStrategy(ctx, workflowID, collected, information.StrategyOptions{
		AllowInference: request.GetBool("allow_inference", false),
		ForceProceed:   request.GetBool("force_proceed", false),
	})
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	return jsonResponse(decision)
}

func (s *Server) handleRecordOutcome(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := request.RequireString("workflow_id")
	if err != nil {
		return errorResponse("Missing or invalid 'workflow_id' argument"), nil
	}

	success, err := request.RequireBool("success")
	if err != nil {
		return errorResponse("Missing or invalid 'success' argument"), nil
	}

	var feedback *models.Feedback

	reason := request.GetString("reason", "")
	rating := request.GetInt("rating", 0)

	if reason != "" || rating != 0 {
		feedback = &models.Feedback{Reason: reason, Rating: rating}
	}

	err = s.engine.RecordOutcome(ctx, workflowID, success, feedback)
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	return mcp.NewToolResultText("Outcome recorded."), nil
}

func (s *Server) handleOptimizations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := request.RequireString("workflow_id")
	if err != nil {
		return errorResponse("Missing or invalid 'workflow_id' argument"), nil
	}

	suggestions, err := s.engine.SuggestOptimizations(ctx, workflowID)
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	return jsonResponse(map[string]any{"optimizations": suggestions})
}

func (s *Server) handleCancel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := request.RequireString("workflow_id")
	if err != nil {
		return errorResponse("Missing or invalid 'workflow_id' argument"), nil
	}

	err = s.engine.CancelWorkflow(ctx, workflowID, request.GetString("reason", ""))
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	return mcp.NewToolResultText("Workflow cancelled."), nil
}
