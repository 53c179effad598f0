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

// GormPaymentMethodRepository implements integration.PaymentMethodRepository
// and integration.PaymentMethodResolver using GORM
type GormPaymentMethodRepository struct {
	db *gorm.DB
}

// NewGormPaymentMethodRepository creates a new GormPaymentMethodRepository
func NewGormPaymentMethodRepository(db *gorm.DB) *GormPaymentMethodRepository {
	return &GormPaymentMethodRepository{db: db}
}

// Save creates or updates a payment method mapping
func (r *GormPaymentMethodRepository) Save(ctx context.Context, method *integration.ExternalPaymentMethod) error {
	var model models.PaymentMethodModel
	model.FromDomain(method)
	return dbFromContext(ctx, r.db).WithContext(ctx).Save(&model).Error
}

// FindByID finds a payment method mapping by its ID
func (r *GormPaymentMethodRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.ExternalPaymentMethod, error) {
	var model models.PaymentMethodModel
	if err := dbFromContext(ctx, r.db).WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrPaymentNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCode finds a payment method mapping by integration and external code
func (r *GormPaymentMethodRepository) FindByCode(ctx context.Context, integrationID uuid.UUID, code string) (*integration.ExternalPaymentMethod, error) {
	var model models.PaymentMethodModel
	if err := dbFromContext(ctx, r.db).WithContext(ctx).
		Where("integration_id = ? AND code = ?", integrationID, code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrPaymentNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIntegration lists all payment method mappings for one integration
func (r *GormPaymentMethodRepository) FindByIntegration(ctx context.Context, integrationID uuid.UUID) ([]integration.ExternalPaymentMethod, error) {
	var rows []models.PaymentMethodModel
	if err := dbFromContext(ctx, r.db).WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("code ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]integration.ExternalPaymentMethod, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

// Delete deletes a payment method mapping
func (r *GormPaymentMethodRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := dbFromContext(ctx, r.db).WithContext(ctx).
		Delete(&models.PaymentMethodModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrPaymentNotFound
	}
	return nil
}

// ResolvePaymentMethod resolves an external payment method code,
// reporting unknown codes as ErrUnresolvedExternalCode.
func (r *GormPaymentMethodRepository) ResolvePaymentMethod(ctx context.Context, integrationID uuid.UUID, code string) (*integration.ExternalPaymentMethod, error) {
	method, err := r.FindByCode(ctx, integrationID, code)
	if err != nil {
		if errors.Is(err, integration.ErrPaymentNotFound) {
			return nil, fmt.Errorf("%w: payment method %q", integration.ErrUnresolvedExternalCode, code)
		}
		return nil, err
	}
	return method, nil
}

var (
	_ integration.PaymentMethodRepository = (*GormPaymentMethodRepository)(nil)
	_ integration.PaymentMethodResolver   = (*GormPaymentMethodRepository)(nil)
)
