package models

import (
	"encoding/json"

	"github.com/erp/fulfillment/internal/domain/workflow"
	"github.com/google/uuid"
)

// PipelineModel is the persistence model for the Pipeline aggregate.
type PipelineModel struct {
	AggregateModel
	OrderID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_pipelines_order"`
	IntegrationID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_pipelines_integration"`
	InputEventID     *uuid.UUID `gorm:"type:uuid"`
	SubStatusIDsJSON string     `gorm:"type:jsonb;column:sub_status_ids"`
	PaymentMethodID  *uuid.UUID `gorm:"type:uuid"`
	InvoiceJournalID *uuid.UUID `gorm:"type:uuid"`
	PaymentJournalID *uuid.UUID `gorm:"type:uuid"`
	ForceInvoiceDate bool       `gorm:"not null;default:false"`
	SkipDispatch     bool       `gorm:"not null;default:false"`

	Lines []TaskLineModel `gorm:"foreignKey:PipelineID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (PipelineModel) TableName() string {
	return "pipelines"
}

// TaskLineModel is the persistence model for one pipeline task line.
type TaskLineModel struct {
	BaseModel
	PipelineID        uuid.UUID          `gorm:"type:uuid;not null;index:idx_task_lines_pipeline"`
	Sequence          int                `gorm:"not null"`
	CurrentStepMethod string             `gorm:"type:varchar(100);not null"`
	NextStepMethod    string             `gorm:"type:varchar(100)"`
	State             workflow.TaskState `gorm:"type:varchar(20);not null;index:idx_task_lines_state"`
	LastMessage       string             `gorm:"type:text"`
	Version           int                `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (TaskLineModel) TableName() string {
	return "pipeline_task_lines"
}

// ToDomain converts the persistence model to a domain Pipeline aggregate.
func (m *PipelineModel) ToDomain() *workflow.Pipeline {
	p := &workflow.Pipeline{
		OrderID:          m.OrderID,
		IntegrationID:    m.IntegrationID,
		InputEventID:     m.InputEventID,
		SubStatusIDs:     make([]uuid.UUID, 0),
		PaymentMethodID:  m.PaymentMethodID,
		InvoiceJournalID: m.InvoiceJournalID,
		PaymentJournalID: m.PaymentJournalID,
		ForceInvoiceDate: m.ForceInvoiceDate,
		SkipDispatch:     m.SkipDispatch,
		Lines:            make([]*workflow.TaskLine, 0, len(m.Lines)),
	}
	p.BaseEntity = m.BaseModel.ToDomain()
	p.Version = m.Version

	if m.SubStatusIDsJSON != "" {
		var ids []uuid.UUID
		if err := json.Unmarshal([]byte(m.SubStatusIDsJSON), &ids); err == nil {
			p.SubStatusIDs = ids
		}
	}

	for i := range m.Lines {
		p.Lines = append(p.Lines, m.Lines[i].ToDomain())
	}
	return p
}

// FromDomain populates the persistence model from a domain Pipeline.
func (m *PipelineModel) FromDomain(p *workflow.Pipeline) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.OrderID = p.OrderID
	m.IntegrationID = p.IntegrationID
	m.InputEventID = p.InputEventID
	m.PaymentMethodID = p.PaymentMethodID
	m.InvoiceJournalID = p.InvoiceJournalID
	m.PaymentJournalID = p.PaymentJournalID
	m.ForceInvoiceDate = p.ForceInvoiceDate
	m.SkipDispatch = p.SkipDispatch

	if data, err := json.Marshal(p.SubStatusIDs); err == nil {
		m.SubStatusIDsJSON = string(data)
	}

	m.Lines = make([]TaskLineModel, 0, len(p.Lines))
	for _, line := range p.Lines {
		var lm TaskLineModel
		lm.FromDomain(line)
		m.Lines = append(m.Lines, lm)
	}
}

// ToDomain converts the persistence model to a domain TaskLine.
func (m *TaskLineModel) ToDomain() *workflow.TaskLine {
	line := &workflow.TaskLine{
		PipelineID:        m.PipelineID,
		Sequence:          m.Sequence,
		CurrentStepMethod: m.CurrentStepMethod,
		NextStepMethod:    m.NextStepMethod,
		State:             m.State,
		LastMessage:       m.LastMessage,
		Version:           m.Version,
	}
	line.BaseEntity = m.BaseModel.ToDomain()
	return line
}

// FromDomain populates the persistence model from a domain TaskLine.
func (m *TaskLineModel) FromDomain(line *workflow.TaskLine) {
	m.FromDomainBaseEntity(line.BaseEntity)
	m.PipelineID = line.PipelineID
	m.Sequence = line.Sequence
	m.CurrentStepMethod = line.CurrentStepMethod
	m.NextStepMethod = line.NextStepMethod
	m.State = line.State
	m.LastMessage = line.LastMessage
	m.Version = line.Version
}
