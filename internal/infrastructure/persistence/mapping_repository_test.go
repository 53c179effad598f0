package persistence

import (
	"context"
	"testing"

	"github.com/erp/fulfillment/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormSubStatusRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewGormSubStatusRepository(db)
	integrationID := uuid.New()

	t.Run("saves and resolves a mapping with its task rules", func(t *testing.T) {
		journal := uuid.New()
		subStatus, err := integration.NewExternalSubStatus(integrationID, "paid", "Paid")
		require.NoError(t, err)
		subStatus.ForceInvoiceDate = true
		subStatus.InvoiceJournalID = &journal
		require.NoError(t, subStatus.AddTaskRule(integration.TaskRule{TaskName: "validate_order", Enabled: true, Priority: 10}))
		require.NoError(t, subStatus.AddTaskRule(integration.TaskRule{TaskName: "register_payment", Enabled: true, Priority: 50, PaymentMethodCode: "card"}))

		require.NoError(t, repo.Save(ctx, subStatus))

		resolved, err := repo.ResolveSubStatus(ctx, integrationID, "paid")
		require.NoError(t, err)
		assert.Equal(t, subStatus.ID, resolved.ID)
		assert.True(t, resolved.ForceInvoiceDate)
		assert.Equal(t, &journal, resolved.InvoiceJournalID)
		require.Len(t, resolved.TaskRules, 2)
		assert.Equal(t, "card", resolved.TaskRules[1].PaymentMethodCode)
	})

	t.Run("reports unknown codes as unresolved", func(t *testing.T) {
		_, err := repo.ResolveSubStatus(ctx, integrationID, "refunded")
		assert.ErrorIs(t, err, integration.ErrUnresolvedExternalCode)
		assert.Contains(t, err.Error(), "refunded")
	})

	t.Run("lists mappings per integration", func(t *testing.T) {
		other, err := integration.NewExternalSubStatus(uuid.New(), "paid", "Paid elsewhere")
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, other))

		rows, err := repo.FindByIntegration(ctx, integrationID)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "paid", rows[0].Code)
	})

	t.Run("deletes a mapping", func(t *testing.T) {
		subStatus, err := integration.NewExternalSubStatus(integrationID, "shipped", "Shipped")
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, subStatus))

		require.NoError(t, repo.Delete(ctx, subStatus.ID))
		_, err = repo.FindByID(ctx, subStatus.ID)
		assert.ErrorIs(t, err, integration.ErrSubStatusNotFound)
	})
}

func TestGormPaymentMethodRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewGormPaymentMethodRepository(db)
	integrationID := uuid.New()

	t.Run("saves and resolves a mapping", func(t *testing.T) {
		journal := uuid.New()
		method, err := integration.NewExternalPaymentMethod(integrationID, "card", "Credit Card")
		require.NoError(t, err)
		method.PaymentJournalID = &journal
		method.SendPaymentStatusWhen = integration.PaymentStatusOnInvoiceValidated

		require.NoError(t, repo.Save(ctx, method))

		resolved, err := repo.ResolvePaymentMethod(ctx, integrationID, "card")
		require.NoError(t, err)
		assert.Equal(t, method.ID, resolved.ID)
		assert.Equal(t, &journal, resolved.PaymentJournalID)
		assert.Equal(t, integration.PaymentStatusOnInvoiceValidated, resolved.SendPaymentStatusWhen)
	})

	t.Run("reports unknown codes as unresolved", func(t *testing.T) {
		_, err := repo.ResolvePaymentMethod(ctx, integrationID, "crypto")
		assert.ErrorIs(t, err, integration.ErrUnresolvedExternalCode)
	})

	t.Run("deletes a mapping", func(t *testing.T) {
		method, err := integration.NewExternalPaymentMethod(integrationID, "wire", "Wire Transfer")
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, method))

		require.NoError(t, repo.Delete(ctx, method.ID))
		_, err = repo.FindByID(ctx, method.ID)
		assert.ErrorIs(t, err, integration.ErrPaymentNotFound)
	})
}
