package workflow

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, tasks ...PlannedTask) *Pipeline {
	t.Helper()
	p, err := NewPipeline(uuid.New(), uuid.New(), tasks, nil)
	require.NoError(t, err)
	return p
}

// ---------------------------------------------------------------------------
// Pipeline Tests
// ---------------------------------------------------------------------------

func TestNewPipeline(t *testing.T) {
	t.Run("chains next step methods", func(t *testing.T) {
		p := newTestPipeline(t,
			PlannedTask{Name: "validate_order", Enabled: true},
			PlannedTask{Name: "create_invoice", Enabled: false},
			PlannedTask{Name: "register_payment", Enabled: true},
		)

		require.Len(t, p.Lines, 3)
		assert.Equal(t, "create_invoice", p.Lines[0].NextStepMethod)
		assert.Equal(t, "register_payment", p.Lines[1].NextStepMethod)
		assert.Equal(t, "", p.Lines[2].NextStepMethod)
		assert.True(t, p.Lines[2].IsTerminalStep())
	})

	t.Run("disabled tasks start as SKIP, enabled as TODO", func(t *testing.T) {
		p := newTestPipeline(t,
			PlannedTask{Name: "validate_order", Enabled: true},
			PlannedTask{Name: "create_invoice", Enabled: false},
		)

		assert.Equal(t, TaskStateTodo, p.Lines[0].State)
		assert.Equal(t, TaskStateSkip, p.Lines[1].State)
	})

	t.Run("sequence follows task list order", func(t *testing.T) {
		p := newTestPipeline(t,
			PlannedTask{Name: "validate_order", Enabled: true},
			PlannedTask{Name: "create_invoice", Enabled: true},
		)

		assert.Equal(t, 0, p.Lines[0].Sequence)
		assert.Equal(t, 1, p.Lines[1].Sequence)
	})

	t.Run("empty task list rejected", func(t *testing.T) {
		_, err := NewPipeline(uuid.New(), uuid.New(), nil, nil)
		assert.ErrorIs(t, err, ErrEmptyTaskList)
	})
}

func TestPipeline_FirstNotDone(t *testing.T) {
	t.Run("returns first non-DONE line including SKIP", func(t *testing.T) {
		p := newTestPipeline(t,
			PlannedTask{Name: "validate_order", Enabled: true},
			PlannedTask{Name: "validate_picking", Enabled: false},
			PlannedTask{Name: "create_invoice", Enabled: true},
		)
		p.Lines[0].MarkDone("ok")

		line := p.FirstNotDone()
		require.NotNil(t, line)
		assert.Equal(t, "validate_picking", line.CurrentStepMethod)
	})

	t.Run("returns nil when pipeline is complete", func(t *testing.T) {
		p := newTestPipeline(t, PlannedTask{Name: "validate_order", Enabled: true})
		p.Lines[0].MarkDone("ok")

		assert.Nil(t, p.FirstNotDone())
	})
}

func TestPipeline_ValidatePredecessors(t *testing.T) {
	t.Run("fails when a non-SKIP predecessor is not DONE", func(t *testing.T) {
		p := newTestPipeline(t,
			PlannedTask{Name: "validate_order", Enabled: true},
			PlannedTask{Name: "create_invoice", Enabled: true},
		)

		err := p.ValidatePredecessors(p.Lines[1])
		assert.ErrorIs(t, err, ErrTaskOutOfOrder)
	})

	t.Run("SKIP predecessors are ignored", func(t *testing.T) {
		p := newTestPipeline(t,
			PlannedTask{Name: "validate_order", Enabled: false},
			PlannedTask{Name: "create_invoice", Enabled: true},
		)

		assert.NoError(t, p.ValidatePredecessors(p.Lines[1]))
	})

	t.Run("passes when all predecessors are DONE", func(t *testing.T) {
		p := newTestPipeline(t,
			PlannedTask{Name: "validate_order", Enabled: true},
			PlannedTask{Name: "create_invoice", Enabled: true},
		)
		p.Lines[0].MarkDone("ok")

		assert.NoError(t, p.ValidatePredecessors(p.Lines[1]))
	})
}

func TestPipeline_ApplyPlan(t *testing.T) {
	t.Run("re-activates newly enabled non-DONE lines", func(t *testing.T) {
		p := newTestPipeline(t,
			PlannedTask{Name: "validate_order", Enabled: true},
			PlannedTask{Name: "create_invoice", Enabled: false},
		)
		p.Lines[0].MarkDone("ok")

		reactivated := p.ApplyPlan([]PlannedTask{
			{Name: "validate_order", Enabled: false},
			{Name: "create_invoice", Enabled: true},
		}, nil)

		assert.Equal(t, []string{"create_invoice"}, reactivated)
		assert.Equal(t, TaskStateDone, p.Lines[0].State)
		assert.Equal(t, TaskStateTodo, p.Lines[1].State)
	})

	t.Run("DONE lines are never reset", func(t *testing.T) {
		p := newTestPipeline(t, PlannedTask{Name: "validate_order", Enabled: true})
		p.Lines[0].MarkDone("ok")

		p.ApplyPlan([]PlannedTask{{Name: "validate_order", Enabled: true}}, nil)
		assert.Equal(t, TaskStateDone, p.Lines[0].State)
	})

	t.Run("FAILED lines can be re-activated", func(t *testing.T) {
		p := newTestPipeline(t, PlannedTask{Name: "validate_picking", Enabled: true})
		p.Lines[0].MarkFailed("insufficient stock")

		reactivated := p.ApplyPlan([]PlannedTask{{Name: "validate_picking", Enabled: true}}, nil)
		assert.Equal(t, []string{"validate_picking"}, reactivated)
		assert.Equal(t, TaskStateTodo, p.Lines[0].State)
	})

	t.Run("lines absent from the new plan keep their state", func(t *testing.T) {
		p := newTestPipeline(t,
			PlannedTask{Name: "validate_order", Enabled: false},
			PlannedTask{Name: "create_invoice", Enabled: true},
		)

		p.ApplyPlan([]PlannedTask{{Name: "create_invoice", Enabled: true}}, nil)
		assert.Equal(t, TaskStateSkip, p.Lines[0].State)
	})

	t.Run("applying the same plan twice is idempotent", func(t *testing.T) {
		p := newTestPipeline(t,
			PlannedTask{Name: "validate_order", Enabled: true},
			PlannedTask{Name: "create_invoice", Enabled: false},
		)
		p.Lines[0].MarkDone("ok")

		plan := []PlannedTask{
			{Name: "validate_order", Enabled: true},
			{Name: "create_invoice", Enabled: true},
		}
		first := p.ApplyPlan(plan, nil)
		assert.Equal(t, []string{"create_invoice"}, first)

		second := p.ApplyPlan(plan, nil)
		assert.Empty(t, second)
		assert.Equal(t, TaskStateDone, p.Lines[0].State)
		assert.Equal(t, TaskStateTodo, p.Lines[1].State)
	})

	t.Run("merges metadata without clearing previous values", func(t *testing.T) {
		journal := uuid.New()
		subA, subB := uuid.New(), uuid.New()

		p := newTestPipeline(t, PlannedTask{Name: "validate_order", Enabled: true})
		p.applyMetadata(&PlanMetadata{SubStatusIDs: []uuid.UUID{subA}, InvoiceJournalID: &journal})

		p.ApplyPlan([]PlannedTask{{Name: "validate_order", Enabled: true}}, &PlanMetadata{
			SubStatusIDs:     []uuid.UUID{subA, subB},
			ForceInvoiceDate: true,
		})

		assert.Equal(t, []uuid.UUID{subA, subB}, p.SubStatusIDs)
		assert.Equal(t, journal, *p.InvoiceJournalID)
		assert.True(t, p.ForceInvoiceDate)
	})
}

// ---------------------------------------------------------------------------
// TaskLine Tests
// ---------------------------------------------------------------------------

func TestTaskLine_DisplayName(t *testing.T) {
	line := NewTaskLine(uuid.New(), 0, "validate_order", "create_invoice", true)
	assert.Equal(t, "Validate Order", line.DisplayName())
}

func TestTaskLine_StateMachine(t *testing.T) {
	t.Run("EnsureRunnable rejects SKIP and DONE", func(t *testing.T) {
		skip := NewTaskLine(uuid.New(), 0, "validate_order", "", false)
		assert.ErrorIs(t, skip.EnsureRunnable(), ErrInvalidTaskState)

		done := NewTaskLine(uuid.New(), 0, "validate_order", "", true)
		done.MarkDone("ok")
		assert.ErrorIs(t, done.EnsureRunnable(), ErrInvalidTaskState)

		failed := NewTaskLine(uuid.New(), 0, "validate_order", "", true)
		failed.MarkFailed("boom")
		assert.NoError(t, failed.EnsureRunnable())
	})

	t.Run("MarkInProcess skips inactive lines", func(t *testing.T) {
		line := NewTaskLine(uuid.New(), 0, "validate_order", "", true)
		assert.True(t, line.MarkInProcess())
		assert.Equal(t, TaskStateInProcess, line.State)

		line.MarkDone("ok")
		assert.False(t, line.MarkInProcess())
		assert.Equal(t, TaskStateDone, line.State)
	})

	t.Run("Reactivate never touches DONE", func(t *testing.T) {
		line := NewTaskLine(uuid.New(), 0, "validate_order", "", true)
		line.MarkDone("ok")
		assert.False(t, line.Reactivate())
		assert.Equal(t, TaskStateDone, line.State)
	})

	t.Run("MarkFailed records the failure message", func(t *testing.T) {
		line := NewTaskLine(uuid.New(), 0, "validate_picking", "", true)
		line.MarkFailed("insufficient stock")
		assert.Equal(t, TaskStateFailed, line.State)
		assert.Equal(t, "insufficient stock", line.LastMessage)
	})
}
