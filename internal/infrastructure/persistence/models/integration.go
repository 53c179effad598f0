package models

import (
	"encoding/json"

	"github.com/erp/fulfillment/internal/domain/integration"
	"github.com/google/uuid"
)

// SubStatusModel is the persistence model for the ExternalSubStatus
// mapping, including its embedded task catalog rules.
type SubStatusModel struct {
	BaseModel
	IntegrationID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_sub_statuses_code,priority:1"`
	Code             string     `gorm:"type:varchar(100);not null;uniqueIndex:idx_sub_statuses_code,priority:2"`
	Name             string     `gorm:"type:varchar(255)"`
	ForceInvoiceDate bool       `gorm:"not null;default:false"`
	InvoiceJournalID *uuid.UUID `gorm:"type:uuid"`
	TaskRulesJSON    string     `gorm:"type:jsonb;column:task_rules"`
}

// TableName returns the table name for GORM
func (SubStatusModel) TableName() string {
	return "external_sub_statuses"
}

// ToDomain converts the persistence model to a domain ExternalSubStatus.
func (m *SubStatusModel) ToDomain() *integration.ExternalSubStatus {
	s := &integration.ExternalSubStatus{
		IntegrationID:    m.IntegrationID,
		Code:             m.Code,
		Name:             m.Name,
		ForceInvoiceDate: m.ForceInvoiceDate,
		InvoiceJournalID: m.InvoiceJournalID,
		TaskRules:        make([]integration.TaskRule, 0),
	}
	s.BaseEntity = m.BaseModel.ToDomain()

	if m.TaskRulesJSON != "" {
		var rules []integration.TaskRule
		if err := json.Unmarshal([]byte(m.TaskRulesJSON), &rules); err == nil {
			s.TaskRules = rules
		}
	}
	return s
}

// FromDomain populates the persistence model from a domain ExternalSubStatus.
func (m *SubStatusModel) FromDomain(s *integration.ExternalSubStatus) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.IntegrationID = s.IntegrationID
	m.Code = s.Code
	m.Name = s.Name
	m.ForceInvoiceDate = s.ForceInvoiceDate
	m.InvoiceJournalID = s.InvoiceJournalID

	if data, err := json.Marshal(s.TaskRules); err == nil {
		m.TaskRulesJSON = string(data)
	}
}

// PaymentMethodModel is the persistence model for the
// ExternalPaymentMethod mapping.
type PaymentMethodModel struct {
	BaseModel
	IntegrationID         uuid.UUID                         `gorm:"type:uuid;not null;uniqueIndex:idx_payment_methods_code,priority:1"`
	Code                  string                            `gorm:"type:varchar(100);not null;uniqueIndex:idx_payment_methods_code,priority:2"`
	Name                  string                            `gorm:"type:varchar(255)"`
	PaymentJournalID      *uuid.UUID                        `gorm:"type:uuid"`
	SendPaymentStatusWhen integration.PaymentStatusTrigger `gorm:"type:varchar(30);not null"`
}

// TableName returns the table name for GORM
func (PaymentMethodModel) TableName() string {
	return "external_payment_methods"
}

// ToDomain converts the persistence model to a domain ExternalPaymentMethod.
func (m *PaymentMethodModel) ToDomain() *integration.ExternalPaymentMethod {
	p := &integration.ExternalPaymentMethod{
		IntegrationID:         m.IntegrationID,
		Code:                  m.Code,
		Name:                  m.Name,
		PaymentJournalID:      m.PaymentJournalID,
		SendPaymentStatusWhen: m.SendPaymentStatusWhen,
	}
	p.BaseEntity = m.BaseModel.ToDomain()
	return p
}

// FromDomain populates the persistence model from a domain ExternalPaymentMethod.
func (m *PaymentMethodModel) FromDomain(p *integration.ExternalPaymentMethod) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.IntegrationID = p.IntegrationID
	m.Code = p.Code
	m.Name = p.Name
	m.PaymentJournalID = p.PaymentJournalID
	m.SendPaymentStatusWhen = p.SendPaymentStatusWhen
}
