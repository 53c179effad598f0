package workflow

import (
	"context"

	"github.com/erp/fulfillment/internal/domain/order"
)

// Built-in task bodies. Each is idempotent-safe: called on an order
// already in the terminal-equivalent business state it reports success
// without side effects.

func handleValidateOrder(_ context.Context, o *order.Order, _ PlanContext) (bool, string, error) {
	ok, msg := o.Confirm()
	return ok, msg, nil
}

func handleValidatePicking(_ context.Context, o *order.Order, _ PlanContext) (bool, string, error) {
	ok, msg := o.ValidatePickings()
	return ok, msg, nil
}

func handleCreateInvoice(_ context.Context, o *order.Order, plan PlanContext) (bool, string, error) {
	return o.CreateInvoice(plan.InvoiceJournalID, plan.ForceInvoiceDate)
}

func handleValidateInvoice(_ context.Context, o *order.Order, _ PlanContext) (bool, string, error) {
	ok, msg := o.PostInvoices()
	return ok, msg, nil
}

func handleRegisterPayment(_ context.Context, o *order.Order, plan PlanContext) (bool, string, error) {
	return o.RegisterPayments(plan.PaymentJournalID)
}

func handleActionCancel(_ context.Context, o *order.Order, _ PlanContext) (bool, string, error) {
	ok, msg := o.Cancel()
	return ok, msg, nil
}

func handleActionCancelNoDispatch(ctx context.Context, o *order.Order, plan PlanContext) (bool, string, error) {
	plan.SkipDispatch = true
	return handleActionCancel(ctx, o, plan)
}
