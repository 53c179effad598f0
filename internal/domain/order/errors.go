package order

import (
	"github.com/erp/fulfillment/internal/domain/shared"
)

// Order domain errors
var (
	ErrOrderNotFound        = shared.NewDomainError("NOT_FOUND", "Order not found")
	ErrInvalidIntegrationID = shared.NewDomainError("INVALID_INPUT", "Integration ID is required")
	ErrInvalidExternalRef   = shared.NewDomainError("INVALID_INPUT", "External order reference is required")

	// ErrMissingInvoiceJournal indicates no invoice journal is configured
	// for the create-invoice workflow step
	ErrMissingInvoiceJournal = shared.NewDomainError("INVALID_STATE", "No invoice journal defined for the create invoice step")
	// ErrMissingPaymentJournal indicates no payment journal is configured
	// for the register-payment workflow step
	ErrMissingPaymentJournal = shared.NewDomainError("INVALID_STATE", "No payment journal defined for the payment method")
)
