package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/erp/fulfillment/internal/domain/order"
	"github.com/google/uuid"
)

// Task names known to the default registry. Catalog rules reference tasks
// by these names.
const (
	TaskValidateOrder         = "validate_order"
	TaskValidatePicking       = "validate_picking"
	TaskCreateInvoice         = "create_invoice"
	TaskValidateInvoice       = "validate_invoice"
	TaskRegisterPayment       = "register_payment"
	TaskActionCancel          = "action_cancel"
	TaskActionCancelNoDispath = "action_cancel_no_dispatch"
)

// PlanContext carries the pipeline-level values a task body needs
type PlanContext struct {
	// InvoiceJournalID is the journal for invoice creation
	InvoiceJournalID *uuid.UUID
	// PaymentJournalID is the journal for payment registration
	PaymentJournalID *uuid.UUID
	// ForceInvoiceDate dates invoices at the order date
	ForceInvoiceDate bool
	// SkipDispatch suppresses notifications to the external platform
	SkipDispatch bool
}

// TaskHandler is one fulfillment task body. It mutates the order
// aggregate and reports a business outcome: ok=false is an expected,
// recoverable failure (the task line goes FAILED); a non-nil error is an
// unexpected fault handed to the job layer's failure policy.
type TaskHandler func(ctx context.Context, o *order.Order, plan PlanContext) (ok bool, message string, err error)

// HandlerRegistry maps task names to typed handlers. Plans referencing an
// unknown task name are rejected before any line executes.
type HandlerRegistry struct {
	handlers map[string]TaskHandler
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]TaskHandler)}
}

// Register adds a handler for a task name
func (r *HandlerRegistry) Register(name string, handler TaskHandler) error {
	if name == "" || handler == nil {
		return fmt.Errorf("workflow: task name and handler are required")
	}
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("workflow: task handler %q already registered", name)
	}
	r.handlers[name] = handler
	return nil
}

// Get returns the handler for a task name
func (r *HandlerRegistry) Get(name string) (TaskHandler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns all registered task names, sorted
func (r *HandlerRegistry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate fails fast when any of the given task names has no handler.
// Called at wiring time against the configured catalog so a typo in a
// task rule surfaces at startup, not mid-pipeline.
func (r *HandlerRegistry) Validate(taskNames []string) error {
	for _, name := range taskNames {
		if _, ok := r.handlers[name]; !ok {
			return fmt.Errorf("workflow: no handler registered for task %q", name)
		}
	}
	return nil
}

// DefaultRegistry returns a registry with all built-in fulfillment task
// handlers registered.
func DefaultRegistry() *HandlerRegistry {
	r := NewHandlerRegistry()
	// Registration of built-ins cannot collide
	_ = r.Register(TaskValidateOrder, handleValidateOrder)
	_ = r.Register(TaskValidatePicking, handleValidatePicking)
	_ = r.Register(TaskCreateInvoice, handleCreateInvoice)
	_ = r.Register(TaskValidateInvoice, handleValidateInvoice)
	_ = r.Register(TaskRegisterPayment, handleRegisterPayment)
	_ = r.Register(TaskActionCancel, handleActionCancel)
	_ = r.Register(TaskActionCancelNoDispath, handleActionCancelNoDispatch)
	return r
}
