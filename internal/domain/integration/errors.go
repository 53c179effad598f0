package integration

import (
	"github.com/erp/fulfillment/internal/domain/shared"
)

// Integration domain errors
var (
	// ErrUnresolvedExternalCode indicates an external code (sub-status or
	// payment method) has no mapping for the integration. Callers reject
	// the inbound event; the operation is retried once the mapping exists.
	ErrUnresolvedExternalCode = shared.NewDomainError("UNRESOLVED_EXTERNAL_CODE", "External code has no known mapping")

	ErrInvalidIntegrationID = shared.NewDomainError("INVALID_INPUT", "Integration ID is required")
	ErrInvalidExternalCode  = shared.NewDomainError("INVALID_INPUT", "External code is required")
	ErrInvalidTaskName      = shared.NewDomainError("INVALID_INPUT", "Task name is required")
	ErrSubStatusNotFound    = shared.NewDomainError("NOT_FOUND", "External sub-status mapping not found")
	ErrPaymentNotFound      = shared.NewDomainError("NOT_FOUND", "External payment method mapping not found")
)
