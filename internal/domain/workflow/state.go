package workflow

// TaskState represents the execution state of a single pipeline task line
type TaskState string

const (
	// TaskStateSkip marks a task not applicable to the current plan. A
	// skipped task is inert; execution advances past it without running
	// the task body. Re-planning may flip it back to TODO.
	TaskStateSkip TaskState = "SKIP"
	// TaskStateTodo marks a task eligible for execution, not yet attempted
	TaskStateTodo TaskState = "TODO"
	// TaskStateInProcess marks a task submitted to the asynchronous
	// executor, awaiting its result
	TaskStateInProcess TaskState = "IN_PROCESS"
	// TaskStateDone is terminal success; a DONE task is never reset
	// automatically
	TaskStateDone TaskState = "DONE"
	// TaskStateFailed is a failure requiring manual intervention or a
	// superseding re-plan
	TaskStateFailed TaskState = "FAILED"
)

// IsValid returns true if the state is a known value
func (s TaskState) IsValid() bool {
	switch s {
	case TaskStateSkip, TaskStateTodo, TaskStateInProcess, TaskStateDone, TaskStateFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of TaskState
func (s TaskState) String() string {
	return string(s)
}
