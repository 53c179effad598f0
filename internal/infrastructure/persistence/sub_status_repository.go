package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/fulfillment/internal/domain/integration"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSubStatusRepository implements integration.SubStatusRepository and
// integration.SubStatusResolver using GORM
type GormSubStatusRepository struct {
	db *gorm.DB
}

// NewGormSubStatusRepository creates a new GormSubStatusRepository
func NewGormSubStatusRepository(db *gorm.DB) *GormSubStatusRepository {
	return &GormSubStatusRepository{db: db}
}

// Save creates or updates a sub-status mapping
func (r *GormSubStatusRepository) Save(ctx context.Context, subStatus *integration.ExternalSubStatus) error {
	var model models.SubStatusModel
	model.FromDomain(subStatus)
	return dbFromContext(ctx, r.db).WithContext(ctx).Save(&model).Error
}

// FindByID finds a sub-status mapping by its ID
func (r *GormSubStatusRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.ExternalSubStatus, error) {
	var model models.SubStatusModel
	if err := dbFromContext(ctx, r.db).WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrSubStatusNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCode finds a sub-status mapping by integration and external code
func (r *GormSubStatusRepository) FindByCode(ctx context.Context, integrationID uuid.UUID, code string) (*integration.ExternalSubStatus, error) {
	var model models.SubStatusModel
	if err := dbFromContext(ctx, r.db).WithContext(ctx).
		Where("integration_id = ? AND code = ?", integrationID, code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrSubStatusNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIntegration lists all sub-status mappings for one integration
func (r *GormSubStatusRepository) FindByIntegration(ctx context.Context, integrationID uuid.UUID) ([]integration.ExternalSubStatus, error) {
	var rows []models.SubStatusModel
	if err := dbFromContext(ctx, r.db).WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("code ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]integration.ExternalSubStatus, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

// Delete deletes a sub-status mapping
func (r *GormSubStatusRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := dbFromContext(ctx, r.db).WithContext(ctx).
		Delete(&models.SubStatusModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrSubStatusNotFound
	}
	return nil
}

// ResolveSubStatus resolves an external sub-status code, reporting
// unknown codes as ErrUnresolvedExternalCode so the plan builder can
// halt the inbound event.
func (r *GormSubStatusRepository) ResolveSubStatus(ctx context.Context, integrationID uuid.UUID, code string) (*integration.ExternalSubStatus, error) {
	subStatus, err := r.FindByCode(ctx, integrationID, code)
	if err != nil {
		if errors.Is(err, integration.ErrSubStatusNotFound) {
			return nil, fmt.Errorf("%w: sub-status %q", integration.ErrUnresolvedExternalCode, code)
		}
		return nil, err
	}
	return subStatus, nil
}

var (
	_ integration.SubStatusRepository = (*GormSubStatusRepository)(nil)
	_ integration.SubStatusResolver   = (*GormSubStatusRepository)(nil)
)
