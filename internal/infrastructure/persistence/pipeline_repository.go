package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/workflow"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPipelineRepository implements workflow.PipelineRepository using GORM
type GormPipelineRepository struct {
	db *gorm.DB
}

// NewGormPipelineRepository creates a new GormPipelineRepository
func NewGormPipelineRepository(db *gorm.DB) *GormPipelineRepository {
	return &GormPipelineRepository{db: db}
}

// Create persists a new pipeline together with its task lines
func (r *GormPipelineRepository) Create(ctx context.Context, pipeline *workflow.Pipeline) error {
	var model models.PipelineModel
	model.FromDomain(pipeline)

	return dbFromContext(ctx, r.db).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lines := model.Lines
		model.Lines = nil
		if err := tx.Create(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return workflow.ErrPipelineExists
			}
			return err
		}
		for i := range lines {
			if err := tx.Create(&lines[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByID loads a pipeline with its lines, ordered by sequence
func (r *GormPipelineRepository) FindByID(ctx context.Context, id uuid.UUID) (*workflow.Pipeline, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByOrder returns the live pipeline for the order
func (r *GormPipelineRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*workflow.Pipeline, error) {
	return r.findOne(ctx, "order_id = ?", orderID)
}

// FindByLine loads the pipeline owning the given task line
func (r *GormPipelineRepository) FindByLine(ctx context.Context, lineID uuid.UUID) (*workflow.Pipeline, error) {
	var line models.TaskLineModel
	if err := dbFromContext(ctx, r.db).WithContext(ctx).
		First(&line, "id = ?", lineID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.ErrPipelineNotFound
		}
		return nil, err
	}
	return r.FindByID(ctx, line.PipelineID)
}

func (r *GormPipelineRepository) findOne(ctx context.Context, query string, arg interface{}) (*workflow.Pipeline, error) {
	var model models.PipelineModel
	if err := dbFromContext(ctx, r.db).WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		First(&model, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.ErrPipelineNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// SaveWithLock saves pipeline header fields with optimistic locking
// (version check). Task lines are saved individually through
// SaveLineWithLock.
func (r *GormPipelineRepository) SaveWithLock(ctx context.Context, pipeline *workflow.Pipeline) error {
	currentVersion := pipeline.Version
	pipeline.Version++
	pipeline.UpdatedAt = time.Now()

	subStatusIDs, err := json.Marshal(pipeline.SubStatusIDs)
	if err != nil {
		return err
	}

	result := dbFromContext(ctx, r.db).WithContext(ctx).
		Model(&models.PipelineModel{}).
		Where("id = ? AND version = ?", pipeline.ID, currentVersion).
		Updates(map[string]interface{}{
			"input_event_id":     pipeline.InputEventID,
			"sub_status_ids":     string(subStatusIDs),
			"payment_method_id":  pipeline.PaymentMethodID,
			"invoice_journal_id": pipeline.InvoiceJournalID,
			"payment_journal_id": pipeline.PaymentJournalID,
			"force_invoice_date": pipeline.ForceInvoiceDate,
			"skip_dispatch":      pipeline.SkipDispatch,
			"version":            pipeline.Version,
			"updated_at":         pipeline.UpdatedAt,
		})

	if result.Error != nil {
		pipeline.Version = currentVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		pipeline.Version = currentVersion
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// SaveLineWithLock saves one task line with optimistic locking
func (r *GormPipelineRepository) SaveLineWithLock(ctx context.Context, line *workflow.TaskLine) error {
	currentVersion := line.Version
	line.Version++
	line.UpdatedAt = time.Now()

	result := dbFromContext(ctx, r.db).WithContext(ctx).
		Model(&models.TaskLineModel{}).
		Where("id = ? AND version = ?", line.ID, currentVersion).
		Updates(map[string]interface{}{
			"state":        line.State,
			"last_message": line.LastMessage,
			"version":      line.Version,
			"updated_at":   line.UpdatedAt,
		})

	if result.Error != nil {
		line.Version = currentVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		line.Version = currentVersion
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Delete hard-deletes the pipeline and its task lines
func (r *GormPipelineRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return dbFromContext(ctx, r.db).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pipeline_id = ?", id).Delete(&models.TaskLineModel{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.PipelineModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return workflow.ErrPipelineNotFound
		}
		return nil
	})
}

var _ workflow.PipelineRepository = (*GormPipelineRepository)(nil)
