package integration

import (
	"context"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// ExternalPaymentMethod Entity
// ---------------------------------------------------------------------------

// PaymentStatusTrigger decides when the paid status is pushed back to the
// external platform for orders paid with a method.
type PaymentStatusTrigger string

const (
	// PaymentStatusOnInvoiceValidated pushes paid status once all invoices
	// are posted, even before payment reconciliation
	PaymentStatusOnInvoiceValidated PaymentStatusTrigger = "INVOICE_VALIDATED"
	// PaymentStatusOnInvoicePaid pushes paid status only after invoices
	// are fully paid
	PaymentStatusOnInvoicePaid PaymentStatusTrigger = "INVOICE_PAID"
)

// IsValid returns true if the trigger is a known value
func (t PaymentStatusTrigger) IsValid() bool {
	switch t {
	case PaymentStatusOnInvoiceValidated, PaymentStatusOnInvoicePaid:
		return true
	default:
		return false
	}
}

// ExternalPaymentMethod maps an external payment method code to its
// internal representation, including payment journal selection for the
// register-payment workflow step.
type ExternalPaymentMethod struct {
	shared.BaseEntity
	// IntegrationID scopes the mapping to one platform integration
	IntegrationID uuid.UUID
	// Code is the payment method code as sent by the platform
	Code string
	// Name is the human-readable name
	Name string
	// PaymentJournalID selects the journal payments are registered against
	PaymentJournalID *uuid.UUID
	// SendPaymentStatusWhen decides when paid status is exported
	SendPaymentStatusWhen PaymentStatusTrigger
}

// NewExternalPaymentMethod creates a new payment method mapping
func NewExternalPaymentMethod(integrationID uuid.UUID, code, name string) (*ExternalPaymentMethod, error) {
	if integrationID == uuid.Nil {
		return nil, ErrInvalidIntegrationID
	}
	if code == "" {
		return nil, ErrInvalidExternalCode
	}

	return &ExternalPaymentMethod{
		BaseEntity:            shared.NewBaseEntity(),
		IntegrationID:         integrationID,
		Code:                  code,
		Name:                  name,
		SendPaymentStatusWhen: PaymentStatusOnInvoicePaid,
	}, nil
}

// ---------------------------------------------------------------------------
// Resolver & Repository
// ---------------------------------------------------------------------------

// PaymentMethodResolver resolves an external payment method code to its
// mapping. Implementations return ErrUnresolvedExternalCode for unknown
// codes.
type PaymentMethodResolver interface {
	ResolvePaymentMethod(ctx context.Context, integrationID uuid.UUID, code string) (*ExternalPaymentMethod, error)
}

// PaymentMethodRepository persists payment method mappings
type PaymentMethodRepository interface {
	Save(ctx context.Context, method *ExternalPaymentMethod) error
	FindByID(ctx context.Context, id uuid.UUID) (*ExternalPaymentMethod, error)
	FindByCode(ctx context.Context, integrationID uuid.UUID, code string) (*ExternalPaymentMethod, error)
	FindByIntegration(ctx context.Context, integrationID uuid.UUID) ([]ExternalPaymentMethod, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
