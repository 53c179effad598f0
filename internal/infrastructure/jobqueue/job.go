package jobqueue

import (
	"time"

	"github.com/google/uuid"
)

// JobState represents the lifecycle state of a queued job
type JobState string

const (
	JobStatePending JobState = "PENDING"
	JobStateStarted JobState = "STARTED"
	JobStateDone    JobState = "DONE"
	JobStateFailed  JobState = "FAILED"
)

// Job is the durable record of one queued unit of work. The record is the
// job log: every submission, retry, result and failure stays visible for
// operators.
type Job struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	IdentityKey string    `gorm:"type:varchar(255);not null;index:idx_queue_jobs_identity"`
	Channel     string    `gorm:"type:varchar(100);not null;index:idx_queue_jobs_channel"`
	Description string    `gorm:"type:text"`
	State       JobState  `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_queue_jobs_state"`
	Attempts    int       `gorm:"not null;default:0"`
	Result      string    `gorm:"type:text"`
	Error       string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// TableName returns the table name for GORM
func (Job) TableName() string {
	return "queue_jobs"
}

// newJob creates a pending job record
func newJob(identityKey, channel, description string) *Job {
	now := time.Now()
	return &Job{
		ID:          uuid.New(),
		IdentityKey: identityKey,
		Channel:     channel,
		Description: description,
		State:       JobStatePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
