package workflow

import (
	"strings"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// TaskLine Entity
// ---------------------------------------------------------------------------

// TaskLine is one stateful step within a pipeline. Lines are ordered by
// Sequence; a line only runs once every earlier non-SKIP line is DONE.
type TaskLine struct {
	shared.BaseEntity
	// PipelineID is the owning pipeline; lines are deleted with it
	PipelineID uuid.UUID
	// Sequence is the ordering key within the pipeline
	Sequence int
	// CurrentStepMethod names the task body this line executes
	CurrentStepMethod string
	// NextStepMethod names the successor task ("" for the terminal line)
	NextStepMethod string
	// State is the execution state
	State TaskState
	// LastMessage is the most recent task body result message, kept for
	// operator inspection of halted pipelines
	LastMessage string
	// Version backs optimistic locking on concurrent line writes
	Version int
}

// NewTaskLine creates a task line for a planned task. Disabled tasks are
// planned as SKIP, enabled tasks as TODO.
func NewTaskLine(pipelineID uuid.UUID, sequence int, step, nextStep string, enabled bool) *TaskLine {
	state := TaskStateSkip
	if enabled {
		state = TaskStateTodo
	}
	return &TaskLine{
		BaseEntity:        shared.NewBaseEntity(),
		PipelineID:        pipelineID,
		Sequence:          sequence,
		CurrentStepMethod: step,
		NextStepMethod:    nextStep,
		State:             state,
		Version:           1,
	}
}

// DisplayName returns the humanized step name, e.g. "validate_order"
// becomes "Validate Order".
func (l *TaskLine) DisplayName() string {
	parts := strings.Split(l.CurrentStepMethod, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// IsTerminalStep returns true if this line has no successor
func (l *TaskLine) IsTerminalStep() bool {
	return l.NextStepMethod == ""
}

// EnsureRunnable returns ErrInvalidTaskState if the line is inactive for
// the current workflow (SKIP or DONE).
func (l *TaskLine) EnsureRunnable() error {
	if l.State == TaskStateSkip || l.State == TaskStateDone {
		return ErrInvalidTaskState
	}
	return nil
}

// MarkInProcess transitions the line to IN_PROCESS unless it is SKIP or
// DONE. Returns true if the state changed.
func (l *TaskLine) MarkInProcess() bool {
	if l.State == TaskStateSkip || l.State == TaskStateDone {
		return false
	}
	l.State = TaskStateInProcess
	l.Touch()
	return true
}

// MarkDone records terminal success
func (l *TaskLine) MarkDone(message string) {
	l.State = TaskStateDone
	l.LastMessage = message
	l.Touch()
}

// MarkFailed records a task body failure pending manual intervention
func (l *TaskLine) MarkFailed(message string) {
	l.State = TaskStateFailed
	l.LastMessage = message
	l.Touch()
}

// Reactivate flips the line back to TODO. Used exclusively by re-planning;
// a DONE line is never reactivated.
func (l *TaskLine) Reactivate() bool {
	if l.State == TaskStateDone {
		return false
	}
	l.State = TaskStateTodo
	l.Touch()
	return true
}
