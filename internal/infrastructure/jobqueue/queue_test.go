package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupQueueTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Job{}))
	return db
}

func startTestQueue(t *testing.T, db *gorm.DB, cfg Config) *Queue {
	t.Helper()
	q, err := NewQueue(db, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, q.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})
	return q
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry.Backoff = time.Millisecond
	return cfg
}

func waitForJobState(t *testing.T, db *gorm.DB, identityKey string, state JobState) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		if err := db.Where("identity_key = ?", identityKey).First(&job).Error; err != nil {
			return false
		}
		return job.State == state
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestQueue_Submit(t *testing.T) {
	t.Run("executes job and records result", func(t *testing.T) {
		db := setupQueueTestDB(t)
		q := startTestQueue(t, db, testConfig())

		done := make(chan struct{})
		err := q.Submit(context.Background(), workflow.Submission{
			IdentityKey: "job-1",
			Channel:     workflow.ChannelSaleOrder,
			Description: "test job",
			Run: func(ctx context.Context) (string, error) {
				close(done)
				return "ok", nil
			},
		})
		require.NoError(t, err)

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("job was not executed")
		}

		job := waitForJobState(t, db, "job-1", JobStateDone)
		assert.Equal(t, "ok", job.Result)
		assert.Equal(t, 1, job.Attempts)
	})

	t.Run("rejects submissions while stopped", func(t *testing.T) {
		db := setupQueueTestDB(t)
		q, err := NewQueue(db, testConfig(), zap.NewNop())
		require.NoError(t, err)

		err = q.Submit(context.Background(), workflow.Submission{
			IdentityKey: "job-1",
			Channel:     workflow.ChannelSaleOrder,
			Run:         func(ctx context.Context) (string, error) { return "", nil },
		})
		assert.ErrorIs(t, err, ErrQueueNotRunning)
	})
}

func TestQueue_Coalescing(t *testing.T) {
	db := setupQueueTestDB(t)
	q := startTestQueue(t, db, testConfig())

	release := make(chan struct{})
	var executions int
	var mu sync.Mutex

	run := func(ctx context.Context) (string, error) {
		mu.Lock()
		executions++
		mu.Unlock()
		<-release
		return "ok", nil
	}

	sub := workflow.Submission{
		IdentityKey: "same-key",
		Channel:     workflow.ChannelSaleOrder,
		Description: "coalesced job",
		Run:         run,
	}
	require.NoError(t, q.Submit(context.Background(), sub))
	// Second submission with the same key is absorbed, not queued
	require.NoError(t, q.Submit(context.Background(), sub))

	close(release)
	waitForJobState(t, db, "same-key", JobStateDone)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, executions)

	var count int64
	require.NoError(t, db.Model(&Job{}).Where("identity_key = ?", "same-key").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestQueue_ChannelFIFO(t *testing.T) {
	db := setupQueueTestDB(t)
	q := startTestQueue(t, db, testConfig())

	var mu sync.Mutex
	order := make([]int, 0, 5)
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		err := q.Submit(context.Background(), workflow.Submission{
			IdentityKey: fmt.Sprintf("fifo-%d", i),
			Channel:     workflow.ChannelSaleOrder,
			Run: func(ctx context.Context) (string, error) {
				defer wg.Done()
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return "ok", nil
			},
		})
		require.NoError(t, err)
	}

	wg.Wait()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestQueue_RequeueOnConflict(t *testing.T) {
	t.Run("conflict errors are re-attempted to completion", func(t *testing.T) {
		db := setupQueueTestDB(t)
		q := startTestQueue(t, db, testConfig())

		var attempts int
		var mu sync.Mutex
		err := q.Submit(context.Background(), workflow.Submission{
			IdentityKey: "conflicting",
			Channel:     workflow.ChannelSaleOrder,
			Run: func(ctx context.Context) (string, error) {
				mu.Lock()
				defer mu.Unlock()
				attempts++
				if attempts < 3 {
					return "", fmt.Errorf("saving task line: %w", shared.ErrConcurrencyConflict)
				}
				return "ok after retry", nil
			},
		})
		require.NoError(t, err)

		job := waitForJobState(t, db, "conflicting", JobStateDone)
		assert.Equal(t, "ok after retry", job.Result)
		assert.Equal(t, 3, job.Attempts)
	})

	t.Run("attempts are capped by the policy", func(t *testing.T) {
		db := setupQueueTestDB(t)
		cfg := testConfig()
		cfg.Retry.MaxAttempts = 2
		q := startTestQueue(t, db, cfg)

		err := q.Submit(context.Background(), workflow.Submission{
			IdentityKey: "always-conflicting",
			Channel:     workflow.ChannelSaleOrder,
			Run: func(ctx context.Context) (string, error) {
				return "", shared.ErrConcurrencyConflict
			},
		})
		require.NoError(t, err)

		job := waitForJobState(t, db, "always-conflicting", JobStateFailed)
		assert.Equal(t, 2, job.Attempts)
	})

	t.Run("non-conflict errors fail immediately", func(t *testing.T) {
		db := setupQueueTestDB(t)
		q := startTestQueue(t, db, testConfig())

		err := q.Submit(context.Background(), workflow.Submission{
			IdentityKey: "broken",
			Channel:     workflow.ChannelSaleOrder,
			Description: "failing job",
			Run: func(ctx context.Context) (string, error) {
				return "", errors.New("task body failure: insufficient stock")
			},
		})
		require.NoError(t, err)

		job := waitForJobState(t, db, "broken", JobStateFailed)
		assert.Equal(t, 1, job.Attempts)
		assert.Contains(t, job.Error, "insufficient stock")
	})
}

func TestQueue_RecentJobs(t *testing.T) {
	db := setupQueueTestDB(t)
	q := startTestQueue(t, db, testConfig())

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		require.NoError(t, q.Submit(context.Background(), workflow.Submission{
			IdentityKey: fmt.Sprintf("audit-%d", i),
			Channel:     workflow.ChannelSaleOrder,
			Run: func(ctx context.Context) (string, error) {
				defer wg.Done()
				return "ok", nil
			},
		}))
	}
	wg.Wait()

	jobs, err := q.RecentJobs(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)
}

func TestSyncDispatcher(t *testing.T) {
	t.Run("nested submissions run in order after the current body", func(t *testing.T) {
		d := NewSyncDispatcher()
		var order []string

		err := d.Submit(context.Background(), workflow.Submission{
			IdentityKey: "outer",
			Run: func(ctx context.Context) (string, error) {
				order = append(order, "outer")
				_ = d.Submit(ctx, workflow.Submission{
					IdentityKey: "inner",
					Run: func(ctx context.Context) (string, error) {
						order = append(order, "inner")
						return "ok", nil
					},
				})
				order = append(order, "outer-end")
				return "ok", nil
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"outer", "outer-end", "inner"}, order)
	})

	t.Run("retries conflicts like the durable queue", func(t *testing.T) {
		d := NewSyncDispatcher()
		attempts := 0

		err := d.Submit(context.Background(), workflow.Submission{
			IdentityKey: "conflicting",
			Run: func(ctx context.Context) (string, error) {
				attempts++
				if attempts < 2 {
					return "", shared.ErrConcurrencyConflict
				}
				return "ok", nil
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, attempts)
		require.Len(t, d.Records, 1)
		assert.NoError(t, d.Records[0].Err)
	})
}
