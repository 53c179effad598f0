package models

import (
	"encoding/json"
	"time"

	"github.com/erp/fulfillment/internal/domain/order"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for the Order aggregate. Pickings,
// invoices and payments are value collections owned entirely by the
// order, stored as JSON documents.
type OrderModel struct {
	AggregateModel
	IntegrationID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_orders_external_ref,priority:1"`
	ExternalRef   string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_orders_external_ref,priority:2"`
	OrderNumber   string          `gorm:"type:varchar(50);index:idx_orders_number"`
	Status        order.Status    `gorm:"type:varchar(20);not null;index:idx_orders_status"`
	OrderDate     time.Time       `gorm:"not null"`
	AmountTotal   decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	DeliveryNote  string          `gorm:"type:text"`
	PickingsJSON  string          `gorm:"type:jsonb;column:pickings"`
	InvoicesJSON  string          `gorm:"type:jsonb;column:invoices"`
	PaymentsJSON  string          `gorm:"type:jsonb;column:payments"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order aggregate.
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		IntegrationID: m.IntegrationID,
		ExternalRef:   m.ExternalRef,
		OrderNumber:   m.OrderNumber,
		Status:        m.Status,
		OrderDate:     m.OrderDate,
		AmountTotal:   m.AmountTotal,
		DeliveryNote:  m.DeliveryNote,
		Pickings:      make([]*order.Picking, 0),
		Invoices:      make([]*order.Invoice, 0),
		Payments:      make([]*order.Payment, 0),
	}
	o.BaseEntity = m.BaseModel.ToDomain()
	o.Version = m.Version

	if m.PickingsJSON != "" {
		var pickings []*order.Picking
		if err := json.Unmarshal([]byte(m.PickingsJSON), &pickings); err == nil {
			o.Pickings = pickings
		}
	}
	if m.InvoicesJSON != "" {
		var invoices []*order.Invoice
		if err := json.Unmarshal([]byte(m.InvoicesJSON), &invoices); err == nil {
			o.Invoices = invoices
		}
	}
	if m.PaymentsJSON != "" {
		var payments []*order.Payment
		if err := json.Unmarshal([]byte(m.PaymentsJSON), &payments); err == nil {
			o.Payments = payments
		}
	}
	return o
}

// FromDomain populates the persistence model from a domain Order.
func (m *OrderModel) FromDomain(o *order.Order) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.IntegrationID = o.IntegrationID
	m.ExternalRef = o.ExternalRef
	m.OrderNumber = o.OrderNumber
	m.Status = o.Status
	m.OrderDate = o.OrderDate
	m.AmountTotal = o.AmountTotal
	m.DeliveryNote = o.DeliveryNote

	if data, err := json.Marshal(o.Pickings); err == nil {
		m.PickingsJSON = string(data)
	}
	if data, err := json.Marshal(o.Invoices); err == nil {
		m.InvoicesJSON = string(data)
	}
	if data, err := json.Marshal(o.Payments); err == nil {
		m.PaymentsJSON = string(data)
	}
}
