package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/dukex/flowpilot/pkg/engine"
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/trigger"
	"github.com/dukex/flowpilot/pkg/workflow"
)

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type APIHandlers struct {
	engine    *engine.Engine
	health    HealthChecker
	validator *validator.Validate
}

func NewAPIHandlers(engine *engine.Engine, health HealthChecker, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		engine:    engine,
		health:    health,
		validator: validator,
	}
}

// Register mounts every route on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)

	router.Post("/detect", h.DetectWorkflowNeed)
	router.Post("/prompts", h.GeneratePrompts)
	router.Post("/validate", h.ValidateInfo)

	t := router.Group("/templates")
	t.Post("/", h.SaveTemplate)
	t.Get("/:id", h.GetTemplate)

	w := router.Group("/workflows")
	w.Post("/", h.GenerateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Get("/:id/next", h.GetNextTask)
	w.Post("/:id/claim", h.ClaimNextTask)
	w.Post("/:id/cancel", h.CancelWorkflow)
	w.Post("/:id/strategy", h.DetermineStrategy)
	w.Post("/:id/outcome", h.RecordOutcome)
	w.Get("/:id/optimizations", h.SuggestOptimizations)
	w.Get("/:id/tasks/:taskId/missing", h.IdentifyMissingInfo)

	k := router.Group("/tasks")
	k.Post("/:id/complete", h.CompleteTask)
	k.Post("/:id/fail", h.FailTask)
	k.Post("/:id/execute", h.ExecuteTask)
}

// bind decodes and validates the JSON body. It writes the problem response and
// returns false when the body is unusable.
func (h *APIHandlers) bind(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().JSON(req); err != nil {
		return false, badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return false, badRequest(c, err.Error())
	}

	return true, nil
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK
	repository := "ok"

	if err := h.health.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
		repository = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repository,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) SaveTemplate(c fiber.Ctx) error {
	var template models.WorkflowTemplate
	if err := c.Bind().JSON(&template); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.engine.SaveTemplate(c.Context(), &template); err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(template)
}

func (h *APIHandlers) GetTemplate(c fiber.Ctx) error {
	template, err := h.engine.GetTemplate(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(template)
}

func (h *APIHandlers) DetectWorkflowNeed(c fiber.Ctx) error {
	var req DetectRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	template, err := h.engine.DetectWorkflowNeed(c.Context(), req.Text, trigger.Context{
		Capabilities: req.Capabilities,
		ExistingData: req.ExistingData,
	})
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(DetectResponse{Detected: template != nil, Template: template})
}

func (h *APIHandlers) GenerateWorkflow(c fiber.Ctx) error {
	var req GenerateWorkflowRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	templateID := req.TemplateID
	if templateID == "" {
		templateID = models.BuiltinSchedulingTemplateID
	}

	template, err := h.engine.GetTemplate(c.Context(), templateID)
	if err != nil {
		return handleEngineError(c, err)
	}

	generation, err := h.engine.GenerateWorkflow(c.Context(), template, workflow.Input{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Context:        req.Context,
	})
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(generation)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	state, err := h.engine.GetWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) GetNextTask(c fiber.Ctx) error {
	task, err := h.engine.GetNextTask(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	if task == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.JSON(task)
}

func (h *APIHandlers) ClaimNextTask(c fiber.Ctx) error {
	task, err := h.engine.ClaimNextTask(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	if task == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.JSON(task)
}

func (h *APIHandlers) CancelWorkflow(c fiber.Ctx) error {
	var req CancelWorkflowRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	if err := h.engine.CancelWorkflow(c.Context(), c.Params("id"), req.Reason); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DetermineStrategy(c fiber.Ctx) error {
	var req StrategyRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	decision, err := h.engine.DetermineStrategy(c.Context(), c.Params("id"), req.Collected, req.StrategyOptions)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(decision)
}

func (h *APIHandlers) RecordOutcome(c fiber.Ctx) error {
	var req OutcomeRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	if err := h.engine.RecordOutcome(c.Context(), c.Params("id"), *req.Success, req.Feedback); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SuggestOptimizations(c fiber.Ctx) error {
	suggestions, err := h.engine.SuggestOptimizations(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"optimizations": suggestions})
}

func (h *APIHandlers) IdentifyMissingInfo(c fiber.Ctx) error {
	requirements, err := h.engine.IdentifyMissingInfo(c.Context(), c.Params("id"), c.Params("taskId"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"requirements": requirements})
}

func (h *APIHandlers) CompleteTask(c fiber.Ctx) error {
	var req CompleteTaskRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	task, err := h.engine.CompleteTask(c.Context(), c.Params("id"), req.Data)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) FailTask(c fiber.Ctx) error {
	var req FailTaskRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	task, err := h.engine.FailTask(c.Context(), c.Params("id"), req.Reason)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) ExecuteTask(c fiber.Ctx) error {
	report, err := h.engine.ExecuteTask(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(report)
}

func (h *APIHandlers) GeneratePrompts(c fiber.Ctx) error {
	var req PromptsRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	return c.JSON(fiber.Map{"prompts": h.engine.GeneratePrompts(c.Context(), req.Requirements, req.Context)})
}

func (h *APIHandlers) ValidateInfo(c fiber.Ctx) error {
	var req ValidateRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	return c.JSON(h.engine.ValidateInfo(c.Context(), req.Value, req.Requirement))
}
