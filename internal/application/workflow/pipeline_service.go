package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/fulfillment/internal/domain/order"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/workflow"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

type eventOptions struct {
	inputEventID *uuid.UUID
	skipDispatch bool
}

// EventOption configures pipeline creation/update for one inbound event
type EventOption func(*eventOptions)

// WithInputEvent records the inbound event the plan originated from
func WithInputEvent(id uuid.UUID) EventOption {
	return func(o *eventOptions) {
		o.inputEventID = &id
	}
}

// WithSkipDispatch runs the pipeline without notifying the external
// system of the resulting changes
func WithSkipDispatch() EventOption {
	return func(o *eventOptions) {
		o.skipDispatch = true
	}
}

// ---------------------------------------------------------------------------
// PipelineService
// ---------------------------------------------------------------------------

// PipelineService orchestrates the order fulfillment pipeline: creating a
// pipeline from inbound order data, re-planning it when new data arrives,
// and driving asynchronous task execution through the dispatcher.
//
// Every job body submitted here acts as its own concurrency guard: a
// write conflict reported by an optimistic-lock save propagates out of
// the body, and the dispatcher re-attempts the whole body from scratch
// once the conflicting transaction has completed.
type PipelineService struct {
	pipelines  workflow.PipelineRepository
	orders     order.Repository
	builder    *workflow.TaskListBuilder
	dispatcher workflow.Dispatcher
	registry   *HandlerRegistry
	tx         shared.TransactionManager
	logger     *zap.Logger
}

// NewPipelineService creates a new pipeline service
func NewPipelineService(
	pipelines workflow.PipelineRepository,
	orders order.Repository,
	builder *workflow.TaskListBuilder,
	dispatcher workflow.Dispatcher,
	registry *HandlerRegistry,
	tx shared.TransactionManager,
	logger *zap.Logger,
) *PipelineService {
	return &PipelineService{
		pipelines:  pipelines,
		orders:     orders,
		builder:    builder,
		dispatcher: dispatcher,
		registry:   registry,
		tx:         tx,
		logger:     logger,
	}
}

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// CreateOrUpdatePipeline is the single entry point used by inbound-event
// handling. The first event for an order creates its pipeline; later
// events re-plan the existing one. Either way execution is (re)triggered
// asynchronously afterwards.
func (s *PipelineService) CreateOrUpdatePipeline(ctx context.Context, orderID uuid.UUID, data workflow.OrderData, opts ...EventOption) (*workflow.Pipeline, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var pipeline *workflow.Pipeline
	existing, err := s.pipelines.FindByOrder(ctx, orderID)
	switch {
	case err == nil:
		pipeline, err = s.updatePipeline(ctx, existing, o, data, opts...)
	case errors.Is(err, workflow.ErrPipelineNotFound):
		pipeline, err = s.createPipeline(ctx, o, data, opts...)
	}
	if err != nil {
		return nil, err
	}

	if err := s.submitTrigger(ctx, o, pipeline.ID); err != nil {
		return nil, err
	}
	return pipeline, nil
}

// CreatePipeline computes the plan for an order's first event and
// persists the new pipeline. Fails with ErrPipelineExists when a live
// pipeline is already attached to the order; callers must route to the
// update path instead.
func (s *PipelineService) CreatePipeline(ctx context.Context, orderID uuid.UUID, data workflow.OrderData, opts ...EventOption) (*workflow.Pipeline, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if _, err := s.pipelines.FindByOrder(ctx, orderID); err == nil {
		return nil, workflow.ErrPipelineExists
	} else if !errors.Is(err, workflow.ErrPipelineNotFound) {
		return nil, err
	}

	return s.createPipeline(ctx, o, data, opts...)
}

func (s *PipelineService) createPipeline(ctx context.Context, o *order.Order, data workflow.OrderData, opts ...EventOption) (*workflow.Pipeline, error) {
	options := applyOptions(opts)

	tasks, meta, err := s.buildPlan(ctx, o.IntegrationID, data)
	if err != nil {
		return nil, err
	}

	pipeline, err := workflow.NewPipeline(o.IntegrationID, o.ID, tasks, meta)
	if err != nil {
		return nil, err
	}
	pipeline.InputEventID = options.inputEventID
	pipeline.SkipDispatch = options.skipDispatch

	if err := s.pipelines.Create(ctx, pipeline); err != nil {
		return nil, err
	}

	s.logger.Info("New pipeline created",
		zap.String("order", o.DisplayName()),
		zap.String("pipeline_id", pipeline.ID.String()),
		zap.String("tasks", pipeline.TasksInfoString()),
	)
	return pipeline, nil
}

func (s *PipelineService) updatePipeline(ctx context.Context, pipeline *workflow.Pipeline, o *order.Order, data workflow.OrderData, opts ...EventOption) (*workflow.Pipeline, error) {
	options := applyOptions(opts)

	tasks, meta, err := s.buildPlan(ctx, o.IntegrationID, data)
	if err != nil {
		return nil, err
	}

	reactivated := pipeline.ApplyPlan(tasks, meta)
	pipeline.SkipDispatch = options.skipDispatch
	if options.inputEventID != nil {
		pipeline.InputEventID = options.inputEventID
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.pipelines.SaveWithLock(ctx, pipeline); err != nil {
			return err
		}
		for _, step := range reactivated {
			line := pipeline.LineByStep(step)
			if line == nil {
				continue
			}
			if err := s.pipelines.SaveLineWithLock(ctx, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Existing pipeline updated",
		zap.String("order", o.DisplayName()),
		zap.String("pipeline_id", pipeline.ID.String()),
		zap.Strings("reactivated", reactivated),
	)
	return pipeline, nil
}

// buildPlan runs the task list builder and validates every planned task
// name against the handler registry, so an unknown task fails the event
// instead of a later job.
func (s *PipelineService) buildPlan(ctx context.Context, integrationID uuid.UUID, data workflow.OrderData) ([]workflow.PlannedTask, *workflow.PlanMetadata, error) {
	tasks, meta, err := s.builder.Build(ctx, integrationID, data)
	if err != nil {
		return nil, nil, err
	}

	names := make([]string, len(tasks))
	for i, t := range tasks {
		names[i] = t.Name
	}
	if err := s.registry.Validate(names); err != nil {
		return nil, nil, err
	}
	return tasks, meta, nil
}

// submitTrigger queues a whole-pipeline trigger under the order-scoped
// identity key
func (s *PipelineService) submitTrigger(ctx context.Context, o *order.Order, pipelineID uuid.UUID) error {
	return s.dispatcher.Submit(ctx, workflow.Submission{
		IdentityKey: workflow.PipelineIdentityKey(o.IntegrationID, o.ID),
		Channel:     workflow.ChannelSaleOrder,
		Description: fmt.Sprintf("Run Integration Workflow: [%s] %s", o.IntegrationID, o.DisplayName()),
		Run: func(ctx context.Context) (string, error) {
			return s.Trigger(ctx, pipelineID)
		},
	})
}

// SubmitTrigger queues a manual whole-pipeline re-trigger
func (s *PipelineService) SubmitTrigger(ctx context.Context, pipelineID uuid.UUID) error {
	pipeline, err := s.pipelines.FindByID(ctx, pipelineID)
	if err != nil {
		return err
	}
	o, err := s.orders.FindByID(ctx, pipeline.OrderID)
	if err != nil {
		return err
	}
	return s.submitTrigger(ctx, o, pipeline.ID)
}

// Trigger (re)starts execution from the first non-DONE task line
func (s *PipelineService) Trigger(ctx context.Context, pipelineID uuid.UUID) (string, error) {
	pipeline, err := s.pipelines.FindByID(ctx, pipelineID)
	if err != nil {
		return "", err
	}

	s.logger.Info("Trigger pipeline",
		zap.String("pipeline_id", pipeline.ID.String()),
		zap.String("tasks", pipeline.TasksInfoString()),
	)

	line := pipeline.FirstNotDone()
	if line == nil {
		return fmt.Sprintf("There are no active tasks for the current pipeline: %s", pipeline.TasksInfoString()), nil
	}

	if err := s.runLineWithDelay(ctx, pipeline, line); err != nil {
		return "", err
	}
	return fmt.Sprintf("Task %s submitted.", line.DisplayName()), nil
}

// RunLine executes one task line in the foreground, for manual operator
// retry. SKIP and DONE lines are rejected, and every earlier non-SKIP
// line must be DONE. On success the successor is triggered
// asynchronously.
func (s *PipelineService) RunLine(ctx context.Context, lineID uuid.UUID) (string, error) {
	pipeline, err := s.pipelines.FindByLine(ctx, lineID)
	if err != nil {
		return "", err
	}
	line := pipeline.LineByID(lineID)
	if line == nil {
		return "", workflow.ErrTaskLineNotFound
	}

	if err := line.EnsureRunnable(); err != nil {
		return "", err
	}
	if err := pipeline.ValidatePredecessors(line); err != nil {
		return "", err
	}

	ok, msg, err := s.executeTask(ctx, pipeline, line)
	if err != nil {
		return "", err
	}

	if !ok {
		line.MarkFailed(msg)
		if err := s.pipelines.SaveLineWithLock(ctx, line); err != nil {
			return "", err
		}
		s.escalateFailure(ctx, pipeline, line, msg)
		return msg, nil
	}

	line.MarkDone(msg)
	if err := s.pipelines.SaveLineWithLock(ctx, line); err != nil {
		return "", err
	}
	if _, err := s.callPipelineStep(ctx, pipeline, line.NextStepMethod); err != nil {
		return "", err
	}
	return msg, nil
}

// Drop hard-deletes the pipeline and its task lines. Jobs already queued
// for it fail fast on the missing record and are discarded.
func (s *PipelineService) Drop(ctx context.Context, pipelineID uuid.UUID) error {
	return s.pipelines.Delete(ctx, pipelineID)
}

// PlanSummary returns the order's pipeline state for display and audit
func (s *PipelineService) PlanSummary(ctx context.Context, orderID uuid.UUID) (*workflow.Pipeline, []workflow.LineInfo, error) {
	pipeline, err := s.pipelines.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return pipeline, pipeline.TasksInfo(), nil
}

// ---------------------------------------------------------------------------
// Asynchronous execution
// ---------------------------------------------------------------------------

// runLineWithDelay marks the line IN_PROCESS and submits its execution
// under the task-scoped identity key.
func (s *PipelineService) runLineWithDelay(ctx context.Context, pipeline *workflow.Pipeline, line *workflow.TaskLine) error {
	if line.MarkInProcess() {
		if err := s.pipelines.SaveLineWithLock(ctx, line); err != nil {
			return err
		}
	}

	lineID := line.ID
	return s.dispatcher.Submit(ctx, workflow.Submission{
		IdentityKey: workflow.TaskIdentityKey(pipeline.IntegrationID, line.ID),
		Channel:     workflow.ChannelSaleOrder,
		Description: fmt.Sprintf("Integration Workflow Line: [%s] [%s] %s", pipeline.IntegrationID, pipeline.OrderID, line.DisplayName()),
		Run: func(ctx context.Context) (string, error) {
			return s.runAndCallNext(ctx, lineID)
		},
	})
}

// runAndCallNext is the job-executed body of one task line. The pipeline
// is reloaded from storage on every attempt, so a requeued body observes
// the state left by whichever transaction won the conflict.
func (s *PipelineService) runAndCallNext(ctx context.Context, lineID uuid.UUID) (string, error) {
	pipeline, err := s.pipelines.FindByLine(ctx, lineID)
	if err != nil {
		// A dropped pipeline leaves queued jobs pointing at nothing;
		// they fail fast and are discarded.
		return "", err
	}
	line := pipeline.LineByID(lineID)
	if line == nil {
		return "", workflow.ErrTaskLineNotFound
	}

	// Re-planning may have changed the state after this job was queued
	if line.State == workflow.TaskStateSkip || line.State == workflow.TaskStateDone {
		if _, err := s.callPipelineStep(ctx, pipeline, line.NextStepMethod); err != nil {
			return "", err
		}
		return "Task was skipped.", nil
	}

	ok, msg, err := s.executeTask(ctx, pipeline, line)
	if err != nil {
		return "", err
	}

	if !ok {
		line.MarkFailed(msg)
		if err := s.pipelines.SaveLineWithLock(ctx, line); err != nil {
			return "", err
		}
		s.escalateFailure(ctx, pipeline, line, msg)
		return msg, nil
	}

	line.MarkDone(msg)
	if err := s.pipelines.SaveLineWithLock(ctx, line); err != nil {
		return "", err
	}

	if _, err := s.callPipelineStep(ctx, pipeline, line.NextStepMethod); err != nil {
		return "", err
	}
	return msg, nil
}

// callPipelineStep triggers the named successor task asynchronously. An
// empty or unknown step name means the workflow is done.
func (s *PipelineService) callPipelineStep(ctx context.Context, pipeline *workflow.Pipeline, stepName string) (string, error) {
	if stepName == "" {
		return "Workflow Done!", nil
	}
	line := pipeline.LineByStep(stepName)
	if line == nil {
		return "Workflow Done!", nil
	}
	if err := s.runLineWithDelay(ctx, pipeline, line); err != nil {
		return "", err
	}
	return fmt.Sprintf("Task %s submitted.", line.DisplayName()), nil
}

// executeTask resolves and runs the task body, persisting the order's
// resulting state.
func (s *PipelineService) executeTask(ctx context.Context, pipeline *workflow.Pipeline, line *workflow.TaskLine) (bool, string, error) {
	handler, found := s.registry.Get(line.CurrentStepMethod)
	if !found {
		return false, "", fmt.Errorf("workflow: no handler registered for task %q", line.CurrentStepMethod)
	}

	o, err := s.orders.FindByID(ctx, pipeline.OrderID)
	if err != nil {
		return false, "", err
	}

	plan := PlanContext{
		InvoiceJournalID: pipeline.InvoiceJournalID,
		PaymentJournalID: pipeline.PaymentJournalID,
		ForceInvoiceDate: pipeline.ForceInvoiceDate,
		SkipDispatch:     pipeline.SkipDispatch,
	}

	ok, msg, err := handler(ctx, o, plan)
	if err != nil {
		// Unexpected fault: hand it to the job layer's failure policy,
		// leaving the line in its pre-failure state for inspection
		return false, "", err
	}

	if err := s.orders.Save(ctx, o); err != nil {
		return false, "", err
	}
	return ok, msg, nil
}

// escalateFailure surfaces a task body failure as a durable job log
// entry so operators see it in the queue, not only on the task line.
func (s *PipelineService) escalateFailure(ctx context.Context, pipeline *workflow.Pipeline, line *workflow.TaskLine, message string) {
	err := s.dispatcher.Submit(ctx, workflow.Submission{
		IdentityKey: workflow.FailureIdentityKey(pipeline.IntegrationID, line.ID),
		Channel:     workflow.ChannelSaleOrder,
		Description: fmt.Sprintf("Integration Workflow Line failed: [%s] [%s] %s", pipeline.IntegrationID, pipeline.OrderID, line.DisplayName()),
		Run: func(ctx context.Context) (string, error) {
			return "", errors.New(message)
		},
	})
	if err != nil {
		s.logger.Error("Failed to escalate task failure",
			zap.String("line_id", line.ID.String()),
			zap.Error(err),
		)
	}
}

func applyOptions(opts []EventOption) eventOptions {
	var options eventOptions
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
