package workflow

import (
	"github.com/erp/fulfillment/internal/domain/shared"
)

// Workflow domain errors
var (
	// ErrPlanResolution indicates order data referenced external codes
	// that could not be resolved, or omitted a required field. The inbound
	// event is rejected without mutating any pipeline.
	ErrPlanResolution = shared.NewDomainError("PLAN_RESOLUTION", "Order data could not be resolved into a task plan")

	// ErrInvalidTaskState indicates a manual run was attempted on a task
	// that is inactive for the current workflow (SKIP or DONE)
	ErrInvalidTaskState = shared.NewDomainError("INVALID_STATE", "Inactive task for the current workflow")

	// ErrTaskOutOfOrder indicates a manual run was attempted while an
	// earlier non-SKIP task is not yet DONE
	ErrTaskOutOfOrder = shared.NewDomainError("TASK_OUT_OF_ORDER", "Not all previous tasks are in the state DONE. Fix them first.")

	// ErrPipelineExists indicates a live pipeline already exists for the
	// order; callers must route to the update path instead
	ErrPipelineExists = shared.NewDomainError("ALREADY_EXISTS", "A pipeline already exists for this order")

	ErrPipelineNotFound = shared.NewDomainError("NOT_FOUND", "Pipeline not found")
	ErrTaskLineNotFound = shared.NewDomainError("NOT_FOUND", "Pipeline task line not found")
	ErrEmptyTaskList    = shared.NewDomainError("INVALID_INPUT", "Computed task list is empty")
)
