package workflow

import (
	"context"
	"testing"

	"github.com/erp/fulfillment/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Test fixtures
// ---------------------------------------------------------------------------

type fakeSubStatusResolver struct {
	byCode map[string]*integration.ExternalSubStatus
}

func (f *fakeSubStatusResolver) ResolveSubStatus(_ context.Context, _ uuid.UUID, code string) (*integration.ExternalSubStatus, error) {
	if sub, ok := f.byCode[code]; ok {
		return sub, nil
	}
	return nil, integration.ErrUnresolvedExternalCode
}

type fakePaymentMethodResolver struct {
	byCode map[string]*integration.ExternalPaymentMethod
}

func (f *fakePaymentMethodResolver) ResolvePaymentMethod(_ context.Context, _ uuid.UUID, code string) (*integration.ExternalPaymentMethod, error) {
	if m, ok := f.byCode[code]; ok {
		return m, nil
	}
	return nil, integration.ErrUnresolvedExternalCode
}

func newSubStatus(t *testing.T, code string, rules ...integration.TaskRule) *integration.ExternalSubStatus {
	t.Helper()
	sub, err := integration.NewExternalSubStatus(uuid.New(), code, code)
	require.NoError(t, err)
	for _, r := range rules {
		require.NoError(t, sub.AddTaskRule(r))
	}
	return sub
}

func newBuilder(subs []*integration.ExternalSubStatus, methods ...*integration.ExternalPaymentMethod) *TaskListBuilder {
	subResolver := &fakeSubStatusResolver{byCode: make(map[string]*integration.ExternalSubStatus)}
	for _, s := range subs {
		subResolver.byCode[s.Code] = s
	}
	payResolver := &fakePaymentMethodResolver{byCode: make(map[string]*integration.ExternalPaymentMethod)}
	for _, m := range methods {
		payResolver.byCode[m.Code] = m
	}
	return NewTaskListBuilder(subResolver, payResolver)
}

// ---------------------------------------------------------------------------
// TaskListBuilder Tests
// ---------------------------------------------------------------------------

func TestTaskListBuilder_Build(t *testing.T) {
	ctx := context.Background()
	integrationID := uuid.New()

	t.Run("merges enabled flags across sub-statuses with OR semantics", func(t *testing.T) {
		paid := newSubStatus(t, "paid",
			integration.TaskRule{TaskName: "validate_order", Enabled: true, Priority: 10},
		)
		shipped := newSubStatus(t, "shipped",
			integration.TaskRule{TaskName: "validate_order", Enabled: false, Priority: 10},
			integration.TaskRule{TaskName: "create_invoice", Enabled: true, Priority: 20},
		)
		builder := newBuilder([]*integration.ExternalSubStatus{paid, shipped})

		tasks, meta, err := builder.Build(ctx, integrationID, OrderData{
			SubStatusCodes: []string{"paid", "shipped"},
		})
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, PlannedTask{Name: "validate_order", Enabled: true}, tasks[0])
		assert.Equal(t, PlannedTask{Name: "create_invoice", Enabled: true}, tasks[1])
		assert.ElementsMatch(t, []uuid.UUID{paid.ID, shipped.ID}, meta.SubStatusIDs)
	})

	t.Run("sorts by priority with stable ties", func(t *testing.T) {
		sub := newSubStatus(t, "paid",
			integration.TaskRule{TaskName: "register_payment", Enabled: true, Priority: 50},
			integration.TaskRule{TaskName: "validate_order", Enabled: true, Priority: 10},
			integration.TaskRule{TaskName: "validate_picking", Enabled: true, Priority: 10},
		)
		builder := newBuilder([]*integration.ExternalSubStatus{sub})

		tasks, _, err := builder.Build(ctx, integrationID, OrderData{SubStatusCodes: []string{"paid"}})
		require.NoError(t, err)
		require.Len(t, tasks, 3)
		assert.Equal(t, "validate_order", tasks[0].Name)
		assert.Equal(t, "validate_picking", tasks[1].Name)
		assert.Equal(t, "register_payment", tasks[2].Name)
	})

	t.Run("same task at two priorities keeps two scheduling slots", func(t *testing.T) {
		sub := newSubStatus(t, "paid",
			integration.TaskRule{TaskName: "validate_picking", Enabled: true, Priority: 10},
			integration.TaskRule{TaskName: "validate_picking", Enabled: true, Priority: 40},
		)
		builder := newBuilder([]*integration.ExternalSubStatus{sub})

		tasks, _, err := builder.Build(ctx, integrationID, OrderData{SubStatusCodes: []string{"paid"}})
		require.NoError(t, err)
		assert.Len(t, tasks, 2)
	})

	t.Run("deduplicates repeated sub-status codes", func(t *testing.T) {
		sub := newSubStatus(t, "paid",
			integration.TaskRule{TaskName: "validate_order", Enabled: true, Priority: 10},
		)
		builder := newBuilder([]*integration.ExternalSubStatus{sub})

		tasks, meta, err := builder.Build(ctx, integrationID, OrderData{
			SubStatusCodes: []string{"paid", "paid"},
		})
		require.NoError(t, err)
		assert.Len(t, tasks, 1)
		assert.Len(t, meta.SubStatusIDs, 1)
	})

	t.Run("unknown sub-status code fails plan resolution", func(t *testing.T) {
		builder := newBuilder(nil)

		_, _, err := builder.Build(ctx, integrationID, OrderData{SubStatusCodes: []string{"unknown"}})
		assert.ErrorIs(t, err, ErrPlanResolution)
	})

	t.Run("empty sub-status slot fails plan resolution", func(t *testing.T) {
		sub := newSubStatus(t, "paid")
		builder := newBuilder([]*integration.ExternalSubStatus{sub})

		_, _, err := builder.Build(ctx, integrationID, OrderData{SubStatusCodes: []string{"paid", ""}})
		assert.ErrorIs(t, err, ErrPlanResolution)
	})

	t.Run("missing sub-status codes fail plan resolution", func(t *testing.T) {
		builder := newBuilder(nil)

		_, _, err := builder.Build(ctx, integrationID, OrderData{})
		assert.ErrorIs(t, err, ErrPlanResolution)
	})

	t.Run("unknown payment method code fails plan resolution", func(t *testing.T) {
		sub := newSubStatus(t, "paid")
		builder := newBuilder([]*integration.ExternalSubStatus{sub})

		_, _, err := builder.Build(ctx, integrationID, OrderData{
			SubStatusCodes:    []string{"paid"},
			PaymentMethodCode: "wire",
		})
		assert.ErrorIs(t, err, ErrPlanResolution)
	})

	t.Run("aggregates plan metadata", func(t *testing.T) {
		invoiceJournal := uuid.New()
		otherJournal := uuid.New()
		paymentJournal := uuid.New()

		first := newSubStatus(t, "paid")
		first.ForceInvoiceDate = true
		first.InvoiceJournalID = &invoiceJournal
		second := newSubStatus(t, "shipped")
		second.InvoiceJournalID = &otherJournal

		method, err := integration.NewExternalPaymentMethod(uuid.New(), "wire", "Wire Transfer")
		require.NoError(t, err)
		method.PaymentJournalID = &paymentJournal

		builder := newBuilder([]*integration.ExternalSubStatus{first, second}, method)

		_, meta, err := builder.Build(ctx, integrationID, OrderData{
			SubStatusCodes:    []string{"paid", "shipped"},
			PaymentMethodCode: "wire",
		})
		require.NoError(t, err)
		assert.True(t, meta.ForceInvoiceDate)
		// Invoice journal comes from the first declaring sub-status
		assert.Equal(t, invoiceJournal, *meta.InvoiceJournalID)
		assert.Equal(t, paymentJournal, *meta.PaymentJournalID)
		assert.Equal(t, method.ID, *meta.PaymentMethodID)
	})

	t.Run("payment-scoped rules excluded for other methods", func(t *testing.T) {
		sub := newSubStatus(t, "paid",
			integration.TaskRule{TaskName: "register_payment", Enabled: true, Priority: 50, PaymentMethodCode: "cod"},
			integration.TaskRule{TaskName: "validate_order", Enabled: true, Priority: 10},
		)
		method, err := integration.NewExternalPaymentMethod(uuid.New(), "wire", "Wire Transfer")
		require.NoError(t, err)
		builder := newBuilder([]*integration.ExternalSubStatus{sub}, method)

		tasks, _, err := builder.Build(ctx, integrationID, OrderData{
			SubStatusCodes:    []string{"paid"},
			PaymentMethodCode: "wire",
		})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, "validate_order", tasks[0].Name)
	})
}
