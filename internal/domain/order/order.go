package order

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Order Aggregate
// ---------------------------------------------------------------------------

// Status represents the sales order lifecycle state
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusConfirmed Status = "CONFIRMED"
	StatusDone      Status = "DONE"
	StatusCancelled Status = "CANCELLED"
)

// PickingStatus represents a delivery picking state
type PickingStatus string

const (
	PickingPending   PickingStatus = "PENDING"
	PickingDone      PickingStatus = "DONE"
	PickingCancelled PickingStatus = "CANCELLED"
)

// InvoiceStatus represents an invoice posting state
type InvoiceStatus string

const (
	InvoiceDraft  InvoiceStatus = "DRAFT"
	InvoicePosted InvoiceStatus = "POSTED"
)

// PaymentState represents an invoice payment state
type PaymentState string

const (
	PaymentNotPaid PaymentState = "NOT_PAID"
	PaymentPaid    PaymentState = "PAID"
)

// Picking is one delivery operation attached to the order
type Picking struct {
	ID          uuid.UUID     `json:"id"`
	Status      PickingStatus `json:"status"`
	TrackingRef string        `json:"tracking_ref,omitempty"`
}

// Invoice is one customer invoice attached to the order
type Invoice struct {
	ID           uuid.UUID       `json:"id"`
	JournalID    uuid.UUID       `json:"journal_id"`
	InvoiceDate  *time.Time      `json:"invoice_date,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Status       InvoiceStatus   `json:"status"`
	PaymentState PaymentState    `json:"payment_state"`
}

// Payment is a registered payment reconciling one invoice
type Payment struct {
	ID        uuid.UUID       `json:"id"`
	InvoiceID uuid.UUID       `json:"invoice_id"`
	JournalID uuid.UUID       `json:"journal_id"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
}

// Order is the sales order the fulfillment task bodies act on. Every
// business operation is idempotent-safe: calling it when the order is
// already in the terminal-equivalent state reports success without side
// effects.
type Order struct {
	shared.BaseAggregateRoot
	// IntegrationID is the platform integration this order came from
	IntegrationID uuid.UUID
	// ExternalRef is the order identifier on the platform
	ExternalRef string
	// OrderNumber is the internal order number, e.g. "SO0042"
	OrderNumber string
	// Status is the lifecycle state
	Status Status
	// OrderDate is the platform order date
	OrderDate time.Time
	// AmountTotal is the order total
	AmountTotal decimal.Decimal
	// DeliveryNote is the free-text note sent by the platform
	DeliveryNote string

	Pickings []*Picking `json:"pickings"`
	Invoices []*Invoice `json:"invoices"`
	Payments []*Payment `json:"payments"`
}

// NewOrder creates a draft order for an inbound platform order
func NewOrder(integrationID uuid.UUID, externalRef, orderNumber string, orderDate time.Time, amountTotal decimal.Decimal) (*Order, error) {
	if integrationID == uuid.Nil {
		return nil, ErrInvalidIntegrationID
	}
	if externalRef == "" {
		return nil, ErrInvalidExternalRef
	}

	return &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		IntegrationID:     integrationID,
		ExternalRef:       externalRef,
		OrderNumber:       orderNumber,
		Status:            StatusDraft,
		OrderDate:         orderDate,
		AmountTotal:       amountTotal,
		Pickings:          make([]*Picking, 0),
		Invoices:          make([]*Invoice, 0),
		Payments:          make([]*Payment, 0),
	}, nil
}

// DisplayName returns the order's human-readable name
func (o *Order) DisplayName() string {
	if o.OrderNumber != "" {
		return o.OrderNumber
	}
	return o.ExternalRef
}

// AddPicking attaches a pending picking
func (o *Order) AddPicking() *Picking {
	p := &Picking{ID: uuid.New(), Status: PickingPending}
	o.Pickings = append(o.Pickings, p)
	o.Touch()
	return p
}

// ---------------------------------------------------------------------------
// Workflow task bodies
// ---------------------------------------------------------------------------

// Confirm confirms the order. Already-confirmed orders report success
// without side effects.
func (o *Order) Confirm() (bool, string) {
	switch o.Status {
	case StatusConfirmed, StatusDone, StatusCancelled:
		return true, "The order has been already confirmed."
	}
	o.Status = StatusConfirmed
	o.Touch()
	return true, fmt.Sprintf("%s confirmed successfully.", o.DisplayName())
}

// ValidatePickings marks all pending pickings done. With nothing pending
// it reports success.
func (o *Order) ValidatePickings() (bool, string) {
	pending := 0
	for _, p := range o.Pickings {
		if p.Status == PickingPending {
			p.Status = PickingDone
			pending++
		}
	}
	if pending == 0 {
		return true, fmt.Sprintf("[%s] There are no pickings awaiting validation.", o.DisplayName())
	}
	o.Touch()
	return true, fmt.Sprintf("[%s] %d pickings validated successfully.", o.DisplayName(), pending)
}

// InvoicedAmount is the sum of all invoice amounts
func (o *Order) InvoicedAmount() decimal.Decimal {
	total := decimal.Zero
	for _, inv := range o.Invoices {
		total = total.Add(inv.Amount)
	}
	return total
}

// CreateInvoice invoices the order's uninvoiced residual into the given
// journal. forceDate dates the invoice at the order date. A fully
// invoiced order reports failure with an empty result, matching the
// nothing-to-invoice outcome.
func (o *Order) CreateInvoice(journalID *uuid.UUID, forceDate bool) (bool, string, error) {
	if journalID == nil {
		return false, "", ErrMissingInvoiceJournal
	}

	residual := o.AmountTotal.Sub(o.InvoicedAmount())
	if !residual.IsPositive() {
		return true, fmt.Sprintf("[%s] Nothing left to invoice.", o.DisplayName()), nil
	}

	inv := &Invoice{
		ID:           uuid.New(),
		JournalID:    *journalID,
		Amount:       residual,
		Status:       InvoiceDraft,
		PaymentState: PaymentNotPaid,
	}
	if forceDate {
		d := o.OrderDate
		inv.InvoiceDate = &d
	}
	o.Invoices = append(o.Invoices, inv)
	o.Touch()

	return true, fmt.Sprintf("[%s] invoice for %s created successfully.", o.DisplayName(), residual), nil
}

// PostInvoices posts all draft invoices. With nothing in draft it reports
// success.
func (o *Order) PostInvoices() (bool, string) {
	posted := 0
	for _, inv := range o.Invoices {
		if inv.Status == InvoiceDraft {
			inv.Status = InvoicePosted
			if inv.InvoiceDate == nil {
				now := time.Now()
				inv.InvoiceDate = &now
			}
			posted++
		}
	}
	if posted == 0 {
		return true, "There are no invoices awaiting validation."
	}
	o.Touch()
	return true, fmt.Sprintf("[%s] %d invoices validated successfully.", o.DisplayName(), posted)
}

// RegisterPayments registers a reconciling payment for every posted,
// unpaid invoice against the given journal. Paid invoices are left alone.
func (o *Order) RegisterPayments(journalID *uuid.UUID) (bool, string, error) {
	unpaid := make([]*Invoice, 0, len(o.Invoices))
	for _, inv := range o.Invoices {
		if inv.Status == InvoicePosted && inv.PaymentState != PaymentPaid {
			unpaid = append(unpaid, inv)
		}
	}
	if len(unpaid) == 0 {
		return true, fmt.Sprintf("[%s] All invoices are already paid.", o.DisplayName()), nil
	}
	if journalID == nil {
		return false, "", ErrMissingPaymentJournal
	}

	for _, inv := range unpaid {
		o.Payments = append(o.Payments, &Payment{
			ID:        uuid.New(),
			InvoiceID: inv.ID,
			JournalID: *journalID,
			Amount:    inv.Amount,
			Date:      time.Now(),
		})
		inv.PaymentState = PaymentPaid
	}
	o.Touch()

	return true, fmt.Sprintf("[%s] payments for %d invoices successfully registered.", o.DisplayName(), len(unpaid)), nil
}

// Cancel cancels the order. Already-cancelled orders report success.
func (o *Order) Cancel() (bool, string) {
	if o.Status == StatusCancelled {
		return true, fmt.Sprintf("Order [%s] is already cancelled.", o.DisplayName())
	}
	o.Status = StatusCancelled
	for _, p := range o.Pickings {
		if p.Status == PickingPending {
			p.Status = PickingCancelled
		}
	}
	o.Touch()
	return true, fmt.Sprintf("Order [%s] has been successfully cancelled.", o.DisplayName())
}

// IsFullyPaid returns true when every invoice is posted and paid
func (o *Order) IsFullyPaid() bool {
	if len(o.Invoices) == 0 {
		return false
	}
	for _, inv := range o.Invoices {
		if inv.Status != InvoicePosted || inv.PaymentState != PaymentPaid {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Repository
// ---------------------------------------------------------------------------

// Repository persists orders
type Repository interface {
	Save(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// FindByExternalRef resolves a platform order identifier to the
	// internal order, or ErrOrderNotFound
	FindByExternalRef(ctx context.Context, integrationID uuid.UUID, externalRef string) (*Order, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
