package workflow

import (
	"fmt"
	"strings"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Pipeline Aggregate
// ---------------------------------------------------------------------------

// Pipeline is the persisted, order-scoped ordered plan of fulfillment
// tasks. At most one live pipeline exists per order; creation checks for
// an existing one before creating another. A fully DONE pipeline is kept
// as a durable audit record and is only removed by an explicit drop.
type Pipeline struct {
	shared.BaseAggregateRoot
	// OrderID is the owning order
	OrderID uuid.UUID
	// IntegrationID scopes the pipeline to one platform integration
	IntegrationID uuid.UUID
	// InputEventID references the inbound event the plan originated from
	InputEventID *uuid.UUID
	// SubStatusIDs are the contributing external sub-status mappings
	SubStatusIDs []uuid.UUID
	// PaymentMethodID is the resolved external payment method mapping
	PaymentMethodID *uuid.UUID
	// InvoiceJournalID is the invoice journal from the first contributing
	// sub-status that declares one
	InvoiceJournalID *uuid.UUID
	// PaymentJournalID is the payment journal from the payment method
	PaymentJournalID *uuid.UUID
	// ForceInvoiceDate forces invoice dates to the order date
	ForceInvoiceDate bool
	// SkipDispatch suppresses notifications back to the external system
	// while the pipeline executes
	SkipDispatch bool
	// Lines is the ordered task sequence
	Lines []*TaskLine
}

// NewPipeline builds a pipeline from a computed task list. Line i's next
// step is line i+1's name; the last line has none. Disabled tasks start
// as SKIP, enabled tasks as TODO.
func NewPipeline(integrationID, orderID uuid.UUID, tasks []PlannedTask, meta *PlanMetadata) (*Pipeline, error) {
	if len(tasks) == 0 {
		return nil, ErrEmptyTaskList
	}

	p := &Pipeline{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderID:           orderID,
		IntegrationID:     integrationID,
		Lines:             make([]*TaskLine, 0, len(tasks)),
	}
	p.applyMetadata(meta)

	for i, task := range tasks {
		nextStep := ""
		if i+1 < len(tasks) {
			nextStep = tasks[i+1].Name
		}
		p.Lines = append(p.Lines, NewTaskLine(p.ID, i, task.Name, nextStep, task.Enabled))
	}

	return p, nil
}

func (p *Pipeline) applyMetadata(meta *PlanMetadata) {
	if meta == nil {
		return
	}
	p.SubStatusIDs = mergeIDs(p.SubStatusIDs, meta.SubStatusIDs)
	if meta.PaymentMethodID != nil {
		p.PaymentMethodID = meta.PaymentMethodID
	}
	if meta.InvoiceJournalID != nil {
		p.InvoiceJournalID = meta.InvoiceJournalID
	}
	if meta.PaymentJournalID != nil {
		p.PaymentJournalID = meta.PaymentJournalID
	}
	if meta.ForceInvoiceDate {
		p.ForceInvoiceDate = true
	}
}

// mergeIDs unions b into a, preserving a's order and appending new IDs in
// b's order.
func mergeIDs(a, b []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(a))
	out := make([]uuid.UUID, 0, len(a)+len(b))
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// FirstNotDone returns the first line whose state is not DONE, or nil
// when the whole pipeline is complete. SKIP lines are returned too; the
// execution path advances past them without running the task body.
func (p *Pipeline) FirstNotDone() *TaskLine {
	for _, line := range p.Lines {
		if line.State != TaskStateDone {
			return line
		}
	}
	return nil
}

// LineByStep returns the line executing the given step method, or nil
func (p *Pipeline) LineByStep(step string) *TaskLine {
	for _, line := range p.Lines {
		if line.CurrentStepMethod == step {
			return line
		}
	}
	return nil
}

// LineByID returns the line with the given ID, or nil
func (p *Pipeline) LineByID(id uuid.UUID) *TaskLine {
	for _, line := range p.Lines {
		if line.ID == id {
			return line
		}
	}
	return nil
}

// ValidatePredecessors returns ErrTaskOutOfOrder unless every earlier
// non-SKIP line is DONE.
func (p *Pipeline) ValidatePredecessors(line *TaskLine) error {
	for _, prev := range p.Lines {
		if prev.Sequence >= line.Sequence {
			continue
		}
		if prev.State == TaskStateSkip {
			continue
		}
		if prev.State != TaskStateDone {
			return ErrTaskOutOfOrder
		}
	}
	return nil
}

// ApplyPlan merges a newly computed plan into the existing pipeline.
// Metadata is merged, and every task the new plan enables whose line is
// not yet DONE is flipped back to TODO, re-activating previously skipped
// or failed work. DONE lines are never touched, and lines absent from the
// new plan keep their prior state. Returns the step names that were
// re-activated.
func (p *Pipeline) ApplyPlan(tasks []PlannedTask, meta *PlanMetadata) []string {
	p.applyMetadata(meta)

	reactivated := make([]string, 0)
	for _, task := range tasks {
		if !task.Enabled {
			continue
		}
		line := p.LineByStep(task.Name)
		if line == nil || line.State == TaskStateDone {
			continue
		}
		if line.State == TaskStateTodo {
			continue
		}
		if line.Reactivate() {
			reactivated = append(reactivated, task.Name)
		}
	}
	p.Touch()
	return reactivated
}

// LineInfo is a human-readable snapshot of one task line
type LineInfo struct {
	Name    string    `json:"name"`
	State   TaskState `json:"state"`
	Message string    `json:"message,omitempty"`
}

// TasksInfo returns the per-line plan summary for display and audit
func (p *Pipeline) TasksInfo() []LineInfo {
	info := make([]LineInfo, len(p.Lines))
	for i, line := range p.Lines {
		info[i] = LineInfo{
			Name:    line.DisplayName(),
			State:   line.State,
			Message: line.LastMessage,
		}
	}
	return info
}

// TasksInfoString renders the plan summary as a single log-friendly line
func (p *Pipeline) TasksInfoString() string {
	parts := make([]string, len(p.Lines))
	for i, line := range p.Lines {
		parts[i] = fmt.Sprintf("(%s, %s)", line.DisplayName(), line.State)
	}
	return strings.Join(parts, ", ")
}
