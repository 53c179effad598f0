package handler

import (
	"errors"

	"github.com/erp/fulfillment/internal/application/workflow"
	domainworkflow "github.com/erp/fulfillment/internal/domain/workflow"
	"github.com/erp/fulfillment/internal/interfaces/http/dto"
	"github.com/erp/fulfillment/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Request / Response DTOs
// ---------------------------------------------------------------------------

// OrderEventRequest is the inbound order event payload: the order's
// current external sub-status codes plus its payment method code
type OrderEventRequest struct {
	SubStatusCodes    []string `json:"sub_status_codes" binding:"required,min=1,dive,required"`
	PaymentMethodCode string   `json:"payment_method_code"`
	InputEventID      string   `json:"input_event_id" binding:"omitempty,uuid"`
	SkipDispatch      bool     `json:"skip_dispatch"`
}

// TaskLineResponse is the API view of one pipeline task line
type TaskLineResponse struct {
	ID       string `json:"id"`
	Sequence int    `json:"sequence"`
	Task     string `json:"task"`
	Name     string `json:"name"`
	State    string `json:"state"`
	Message  string `json:"message,omitempty"`
}

// PipelineResponse is the API view of a pipeline and its plan
type PipelineResponse struct {
	ID            string             `json:"id"`
	OrderID       string             `json:"order_id"`
	IntegrationID string             `json:"integration_id"`
	SkipDispatch  bool               `json:"skip_dispatch"`
	Version       int                `json:"version"`
	Lines         []TaskLineResponse `json:"lines"`
	dto.TimestampResponse
}

// RunResultResponse carries the outcome message of a manual task run
type RunResultResponse struct {
	Result string `json:"result"`
}

func toPipelineResponse(p *domainworkflow.Pipeline) PipelineResponse {
	resp := PipelineResponse{
		ID:            p.ID.String(),
		OrderID:       p.OrderID.String(),
		IntegrationID: p.IntegrationID.String(),
		SkipDispatch:  p.SkipDispatch,
		Version:       p.Version,
		Lines:         make([]TaskLineResponse, len(p.Lines)),
		TimestampResponse: dto.TimestampResponse{
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		},
	}
	for i, line := range p.Lines {
		resp.Lines[i] = TaskLineResponse{
			ID:       line.ID.String(),
			Sequence: line.Sequence,
			Task:     line.CurrentStepMethod,
			Name:     line.DisplayName(),
			State:    string(line.State),
			Message:  line.LastMessage,
		}
	}
	return resp
}

// ---------------------------------------------------------------------------
// PipelineHandler
// ---------------------------------------------------------------------------

// PipelineHandler exposes pipeline management over HTTP: order event
// intake, plan inspection, manual triggering and teardown
type PipelineHandler struct {
	BaseHandler
	service *workflow.PipelineService
	logger  *zap.Logger
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(service *workflow.PipelineService, logger *zap.Logger) *PipelineHandler {
	return &PipelineHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers pipeline routes on the API group
func (h *PipelineHandler) RegisterRoutes(rg *gin.RouterGroup) {
	integration := rg.Group("/integration")
	{
		integration.POST("/orders/:id/events", h.HandleOrderEvent)
		integration.GET("/pipelines/:id", h.GetPipeline)
		integration.POST("/pipelines/:id/trigger", h.TriggerPipeline)
		integration.POST("/pipelines/:id/lines/:lineId/run", h.RunLine)
		integration.DELETE("/pipelines/:id", h.DropPipeline)
	}
}

// HandleOrderEvent ingests one order event and creates or re-plans the
// order's pipeline. Unresolvable external codes reject the event with
// 422 and leave any existing pipeline untouched.
func (h *PipelineHandler) HandleOrderEvent(c *gin.Context) {
	var idReq dto.IDRequest
	if err := c.ShouldBindUri(&idReq); err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}
	orderID := uuid.MustParse(idReq.ID)

	var req OrderEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			middleware.HandleValidationError(c, err)
			return
		}
		h.BadRequest(c, err.Error())
		return
	}

	opts := make([]workflow.EventOption, 0, 2)
	if req.InputEventID != "" {
		opts = append(opts, workflow.WithInputEvent(uuid.MustParse(req.InputEventID)))
	}
	if req.SkipDispatch {
		opts = append(opts, workflow.WithSkipDispatch())
	}

	data := domainworkflow.OrderData{
		SubStatusCodes:    req.SubStatusCodes,
		PaymentMethodCode: req.PaymentMethodCode,
	}

	pipeline, err := h.service.CreateOrUpdatePipeline(c.Request.Context(), orderID, data, opts...)
	if err != nil {
		h.logger.Warn("order event rejected",
			zap.String("order_id", idReq.ID),
			zap.Error(err))
		h.HandleError(c, err)
		return
	}

	h.Success(c, toPipelineResponse(pipeline))
}

// GetPipeline returns the pipeline and per-line plan summary for an order
func (h *PipelineHandler) GetPipeline(c *gin.Context) {
	var idReq dto.IDRequest
	if err := c.ShouldBindUri(&idReq); err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	pipeline, _, err := h.service.PlanSummary(c.Request.Context(), uuid.MustParse(idReq.ID))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toPipelineResponse(pipeline))
}

// TriggerPipeline queues a re-trigger of the first not-done task
func (h *PipelineHandler) TriggerPipeline(c *gin.Context) {
	var idReq dto.IDRequest
	if err := c.ShouldBindUri(&idReq); err != nil {
		h.BadRequest(c, "Invalid pipeline ID")
		return
	}

	if err := h.service.SubmitTrigger(c.Request.Context(), uuid.MustParse(idReq.ID)); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Accepted(c, RunResultResponse{Result: "Pipeline trigger queued"})
}

// runLineRequest binds both path parameters of the manual run route
type runLineRequest struct {
	ID     string `uri:"id" binding:"required,uuid"`
	LineID string `uri:"lineId" binding:"required,uuid"`
}

// RunLine runs one task line in the foreground, bypassing the queue.
// The line must be active (TODO, IN_PROCESS or FAILED) and every earlier
// non-skipped line must already be done.
func (h *PipelineHandler) RunLine(c *gin.Context) {
	var req runLineRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid pipeline or line ID")
		return
	}

	result, err := h.service.RunLine(c.Request.Context(), uuid.MustParse(req.LineID))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, RunResultResponse{Result: result})
}

// DropPipeline deletes a pipeline and its task lines. Jobs already
// queued against it fail fast once they observe the deletion.
func (h *PipelineHandler) DropPipeline(c *gin.Context) {
	var idReq dto.IDRequest
	if err := c.ShouldBindUri(&idReq); err != nil {
		h.BadRequest(c, "Invalid pipeline ID")
		return
	}

	if err := h.service.Drop(c.Request.Context(), uuid.MustParse(idReq.ID)); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
