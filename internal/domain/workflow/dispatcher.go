package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ChannelSaleOrder is the job queue lane all pipeline work runs on. Jobs
// on one channel execute in submission order relative to each other.
const ChannelSaleOrder = "root.sale_order"

// UnitOfWork is a job body. The returned string is the human-readable
// result recorded in the job log.
type UnitOfWork func(ctx context.Context) (string, error)

// Submission describes one unit of work handed to the durable job queue.
type Submission struct {
	// IdentityKey coalesces duplicate submissions: while an equivalent
	// job with this key is still pending or executing, a new submission
	// is absorbed instead of queued.
	IdentityKey string
	// Channel is the FIFO lane the job executes on
	Channel string
	// Description is the human-readable job log entry
	Description string
	// Run is the job body. The queue re-attempts it from scratch when it
	// reports a transient storage conflict.
	Run UnitOfWork
}

// Dispatcher submits work to the durable asynchronous job queue.
type Dispatcher interface {
	Submit(ctx context.Context, sub Submission) error
}

// PipelineIdentityKey is the coalescing key for whole-pipeline triggers
func PipelineIdentityKey(integrationID, orderID uuid.UUID) string {
	return fmt.Sprintf("integration_workflow_pipeline-%s-%s", integrationID, orderID)
}

// TaskIdentityKey is the coalescing key for a single task line run
func TaskIdentityKey(integrationID, lineID uuid.UUID) string {
	return fmt.Sprintf("integration_pipeline_task-%s-%s", integrationID, lineID)
}

// FailureIdentityKey is the key under which a task body failure is
// escalated into the job log
func FailureIdentityKey(integrationID, lineID uuid.UUID) string {
	return fmt.Sprintf("integration_pipeline_task_failure-%s-%s", integrationID, lineID)
}
