package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/erp/fulfillment/internal/domain/integration"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Order Data & Plan Types
// ---------------------------------------------------------------------------

// OrderData is the external snapshot driving plan computation, supplied
// fresh on every inbound event.
type OrderData struct {
	// SubStatusCodes are the order's current external sub-status codes.
	// Every slot must be non-empty and resolvable.
	SubStatusCodes []string `json:"sub_status_codes"`
	// PaymentMethodCode is the order's payment method code ("" when the
	// platform did not send one)
	PaymentMethodCode string `json:"payment_method_code"`
}

// PlannedTask is one entry of the computed task list
type PlannedTask struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// PlanMetadata aggregates the auxiliary pipeline values resolved during
// plan computation.
type PlanMetadata struct {
	SubStatusIDs     []uuid.UUID
	PaymentMethodID  *uuid.UUID
	PaymentJournalID *uuid.UUID
	InvoiceJournalID *uuid.UUID
	ForceInvoiceDate bool
}

// ---------------------------------------------------------------------------
// TaskListBuilder
// ---------------------------------------------------------------------------

// TaskListBuilder computes the canonical ordered task list for an order
// from its external sub-statuses and payment method. Catalog entries
// sharing (task name, priority) across sub-statuses are merged with
// OR-enabled semantics; priority is part of the merge key, so the same
// task at two priorities occupies two independent scheduling slots.
type TaskListBuilder struct {
	subStatuses    integration.SubStatusResolver
	paymentMethods integration.PaymentMethodResolver
}

// NewTaskListBuilder creates a task list builder
func NewTaskListBuilder(
	subStatuses integration.SubStatusResolver,
	paymentMethods integration.PaymentMethodResolver,
) *TaskListBuilder {
	return &TaskListBuilder{
		subStatuses:    subStatuses,
		paymentMethods: paymentMethods,
	}
}

// Build resolves the order data and returns the ordered task list plus
// plan metadata. Any unresolvable or missing code fails the whole plan
// with ErrPlanResolution; no partial result is returned.
func (b *TaskListBuilder) Build(ctx context.Context, integrationID uuid.UUID, data OrderData) ([]PlannedTask, *PlanMetadata, error) {
	if len(data.SubStatusCodes) == 0 {
		return nil, nil, fmt.Errorf("%w: order data carries no sub-status codes", ErrPlanResolution)
	}
	for _, code := range data.SubStatusCodes {
		if code == "" {
			return nil, nil, fmt.Errorf("%w: order data carries an empty sub-status slot", ErrPlanResolution)
		}
	}

	meta := &PlanMetadata{}

	if data.PaymentMethodCode != "" {
		method, err := b.paymentMethods.ResolvePaymentMethod(ctx, integrationID, data.PaymentMethodCode)
		if err != nil {
			if errors.Is(err, integration.ErrUnresolvedExternalCode) {
				return nil, nil, fmt.Errorf("%w: payment method code %q", ErrPlanResolution, data.PaymentMethodCode)
			}
			return nil, nil, err
		}
		meta.PaymentMethodID = &method.ID
		meta.PaymentJournalID = method.PaymentJournalID
	}

	subStatuses, err := b.resolveSubStatuses(ctx, integrationID, data.SubStatusCodes)
	if err != nil {
		return nil, nil, err
	}

	for _, sub := range subStatuses {
		meta.SubStatusIDs = append(meta.SubStatusIDs, sub.ID)
		if sub.ForceInvoiceDate {
			meta.ForceInvoiceDate = true
		}
		// Invoice journal comes from the first sub-status declaring one
		if meta.InvoiceJournalID == nil && sub.InvoiceJournalID != nil {
			meta.InvoiceJournalID = sub.InvoiceJournalID
		}
	}

	return mergeTaskRules(subStatuses, data.PaymentMethodCode), meta, nil
}

// resolveSubStatuses resolves every code, deduplicating repeated codes
// while preserving first-occurrence order.
func (b *TaskListBuilder) resolveSubStatuses(ctx context.Context, integrationID uuid.UUID, codes []string) ([]*integration.ExternalSubStatus, error) {
	seen := make(map[uuid.UUID]struct{}, len(codes))
	out := make([]*integration.ExternalSubStatus, 0, len(codes))

	for _, code := range codes {
		sub, err := b.subStatuses.ResolveSubStatus(ctx, integrationID, code)
		if err != nil {
			if errors.Is(err, integration.ErrUnresolvedExternalCode) {
				return nil, fmt.Errorf("%w: sub-status code %q", ErrPlanResolution, code)
			}
			return nil, err
		}
		if _, ok := seen[sub.ID]; ok {
			continue
		}
		seen[sub.ID] = struct{}{}
		out = append(out, sub)
	}
	return out, nil
}

// mergeTaskRules merges the catalog entries of all contributing
// sub-statuses. Entries are keyed by (task name, priority); the merged
// enabled flag is the OR across contributors. The result is sorted
// ascending by priority with a stable sort, so ties keep catalog
// iteration order.
func mergeTaskRules(subStatuses []*integration.ExternalSubStatus, paymentMethodCode string) []PlannedTask {
	type slot struct {
		name     string
		priority int
		enabled  bool
	}

	type key struct {
		name     string
		priority int
	}

	index := make(map[key]int)
	slots := make([]slot, 0)

	for _, sub := range subStatuses {
		for _, rule := range sub.ActiveWorkflowTasks(paymentMethodCode) {
			k := key{name: rule.TaskName, priority: rule.Priority}
			if i, ok := index[k]; ok {
				slots[i].enabled = slots[i].enabled || rule.Enabled
				continue
			}
			index[k] = len(slots)
			slots = append(slots, slot{name: rule.TaskName, priority: rule.Priority, enabled: rule.Enabled})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].priority < slots[j].priority
	})

	tasks := make([]PlannedTask, len(slots))
	for i, s := range slots {
		tasks[i] = PlannedTask{Name: s.name, Enabled: s.enabled}
	}
	return tasks
}
