package jobqueue

import (
	"context"
	"sync"

	"github.com/erp/fulfillment/internal/domain/workflow"
)

// SubmissionRecord is one recorded synchronous submission
type SubmissionRecord struct {
	IdentityKey string
	Channel     string
	Description string
	Result      string
	Err         error
}

// SyncDispatcher is an in-memory workflow.Dispatcher that executes each
// submission inline, applying the same requeue-on-conflict retry the
// durable queue applies. It exists for tests and for synchronous
// command-line execution; production wiring uses Queue.
type SyncDispatcher struct {
	// Retry is the conflict retry policy (DefaultRetryPolicy when zero)
	Retry RetryPolicy

	mu      sync.Mutex
	depth   int
	pending []workflow.Submission
	Records []SubmissionRecord
}

// NewSyncDispatcher creates a synchronous dispatcher with the default
// retry policy
func NewSyncDispatcher() *SyncDispatcher {
	return &SyncDispatcher{Retry: DefaultRetryPolicy()}
}

// Submit executes the submission inline. Nested submissions (a job body
// submitting its successor) are deferred until the current body finishes,
// preserving submission order like a real queue lane.
func (d *SyncDispatcher) Submit(ctx context.Context, sub workflow.Submission) error {
	d.mu.Lock()
	if d.depth > 0 {
		d.pending = append(d.pending, sub)
		d.mu.Unlock()
		return nil
	}
	d.depth++
	d.mu.Unlock()

	d.execute(ctx, sub)

	for {
		d.mu.Lock()
		if len(d.pending) == 0 {
			d.depth--
			d.mu.Unlock()
			return nil
		}
		next := d.pending[0]
		d.pending = d.pending[1:]
		d.mu.Unlock()

		d.execute(ctx, next)
	}
}

func (d *SyncDispatcher) execute(ctx context.Context, sub workflow.Submission) {
	policy := d.Retry
	if policy.MaxAttempts == 0 {
		policy = DefaultRetryPolicy()
	}

	var result string
	var err error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result, err = sub.Run(ctx)
		if err == nil || !policy.IsConflict(err) {
			break
		}
	}

	d.mu.Lock()
	d.Records = append(d.Records, SubmissionRecord{
		IdentityKey: sub.IdentityKey,
		Channel:     sub.Channel,
		Description: sub.Description,
		Result:      result,
		Err:         err,
	})
	d.mu.Unlock()
}

// Failed returns the records whose job body returned an error
func (d *SyncDispatcher) Failed() []SubmissionRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	failed := make([]SubmissionRecord, 0)
	for _, r := range d.Records {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
