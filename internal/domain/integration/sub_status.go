package integration

import (
	"context"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// ExternalSubStatus Entity
// ---------------------------------------------------------------------------

// TaskRule is one task catalog entry attached to a sub-status mapping.
// It declares that a fulfillment task applies (or explicitly does not
// apply) when an order carries the owning sub-status. PaymentMethodCode
// optionally narrows the rule to orders paid with that method.
type TaskRule struct {
	// TaskName is the workflow step the rule schedules
	TaskName string `json:"task_name"`
	// Enabled decides whether the task runs or is planned as skipped
	Enabled bool `json:"enabled"`
	// Priority orders tasks within the plan (ascending)
	Priority int `json:"priority"`
	// PaymentMethodCode scopes the rule to a payment method ("" = any)
	PaymentMethodCode string `json:"payment_method_code,omitempty"`
}

// ExternalSubStatus maps an external order sub-status code to its internal
// representation, including the workflow task rules conditioned on it.
type ExternalSubStatus struct {
	shared.BaseEntity
	// IntegrationID scopes the mapping to one platform integration
	IntegrationID uuid.UUID
	// Code is the sub-status code as sent by the platform
	Code string
	// Name is the human-readable name
	Name string
	// ForceInvoiceDate forces the invoice date to the order date when the
	// workflow creates invoices for orders in this sub-status
	ForceInvoiceDate bool
	// InvoiceJournalID selects the invoice journal for the create-invoice
	// step (nil when this sub-status declares none)
	InvoiceJournalID *uuid.UUID
	// TaskRules are the catalog entries attached to this sub-status
	TaskRules []TaskRule
}

// NewExternalSubStatus creates a new sub-status mapping
func NewExternalSubStatus(integrationID uuid.UUID, code, name string) (*ExternalSubStatus, error) {
	if integrationID == uuid.Nil {
		return nil, ErrInvalidIntegrationID
	}
	if code == "" {
		return nil, ErrInvalidExternalCode
	}

	return &ExternalSubStatus{
		BaseEntity:    shared.NewBaseEntity(),
		IntegrationID: integrationID,
		Code:          code,
		Name:          name,
		TaskRules:     make([]TaskRule, 0),
	}, nil
}

// AddTaskRule attaches a task catalog entry to this sub-status
func (s *ExternalSubStatus) AddTaskRule(rule TaskRule) error {
	if rule.TaskName == "" {
		return ErrInvalidTaskName
	}
	s.TaskRules = append(s.TaskRules, rule)
	s.Touch()
	return nil
}

// ActiveWorkflowTasks returns the task rules applicable for the given
// payment method code, in declaration order. Rules scoped to a different
// payment method are excluded entirely; unscoped rules always apply.
func (s *ExternalSubStatus) ActiveWorkflowTasks(paymentMethodCode string) []TaskRule {
	tasks := make([]TaskRule, 0, len(s.TaskRules))
	for _, rule := range s.TaskRules {
		if rule.PaymentMethodCode != "" && rule.PaymentMethodCode != paymentMethodCode {
			continue
		}
		tasks = append(tasks, rule)
	}
	return tasks
}

// ---------------------------------------------------------------------------
// Resolver & Repository
// ---------------------------------------------------------------------------

// SubStatusResolver resolves an external sub-status code to its mapping.
// Implementations return ErrUnresolvedExternalCode for unknown codes.
type SubStatusResolver interface {
	ResolveSubStatus(ctx context.Context, integrationID uuid.UUID, code string) (*ExternalSubStatus, error)
}

// SubStatusRepository persists sub-status mappings
type SubStatusRepository interface {
	Save(ctx context.Context, subStatus *ExternalSubStatus) error
	FindByID(ctx context.Context, id uuid.UUID) (*ExternalSubStatus, error)
	FindByCode(ctx context.Context, integrationID uuid.UUID, code string) (*ExternalSubStatus, error)
	FindByIntegration(ctx context.Context, integrationID uuid.UUID) ([]ExternalSubStatus, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
