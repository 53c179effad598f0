package workflow

import (
	"context"

	"github.com/google/uuid"
)

// PipelineRepository persists pipelines and their task lines. Lookups by
// order back the at-most-one-live-pipeline rule; SaveWithLock and
// SaveLineWithLock enforce optimistic locking and return
// shared.ErrConcurrencyConflict on a stale version.
type PipelineRepository interface {
	// Create persists a new pipeline together with its task lines
	Create(ctx context.Context, pipeline *Pipeline) error

	// FindByID loads a pipeline with its lines, ordered by sequence
	FindByID(ctx context.Context, id uuid.UUID) (*Pipeline, error)

	// FindByOrder returns the live pipeline for the order, or
	// ErrPipelineNotFound
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*Pipeline, error)

	// FindByLine loads the pipeline owning the given task line
	FindByLine(ctx context.Context, lineID uuid.UUID) (*Pipeline, error)

	// SaveWithLock saves pipeline header fields with a version check
	SaveWithLock(ctx context.Context, pipeline *Pipeline) error

	// SaveLineWithLock saves one task line with a version check
	SaveLineWithLock(ctx context.Context, line *TaskLine) error

	// Delete hard-deletes the pipeline; task lines cascade
	Delete(ctx context.Context, id uuid.UUID) error
}
