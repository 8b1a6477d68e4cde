package queue

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeVerificationEmail asks the worker to send an e-mail verification link
	JobTypeVerificationEmail JobType = "send_verification_email"
	// JobTypePasswordResetEmail asks the worker to send a password reset link
	JobTypePasswordResetEmail JobType = "send_password_reset_email"
)

// DefaultMaxRetries is how often a failed job is re-enqueued before dead-lettering
const DefaultMaxRetries = 3

// Job is an account e-mail to deliver
type Job struct {
	ID          uuid.UUID  `json:"id"`
	Type        JobType    `json:"type"`
	UserID      uuid.UUID  `json:"user_id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name,omitempty"`
	Link        string     `json:"link"`
	NotBefore   *time.Time `json:"not_before,omitempty"` // earliest processing time (nil = immediate)
	NotAfter    *time.Time `json:"not_after,omitempty"`  // link expiry; the job is dropped afterwards
	CreatedAt   time.Time  `json:"created_at"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// NewMailJob creates an account e-mail job
func NewMailJob(jobType JobType, userID uuid.UUID, email, displayName, link string) *Job {
	return &Job{
		ID:          uuid.New(),
		Type:        jobType,
		UserID:      userID,
		Email:       email,
		DisplayName: displayName,
		Link:        link,
		CreatedAt:   time.Now(),
		MaxRetries:  DefaultMaxRetries,
	}
}

// Validate checks the job carries what the worker needs
func (j *Job) Validate() error {
	switch j.Type {
	case JobTypeVerificationEmail, JobTypePasswordResetEmail:
	default:
		return errors.New("unknown job type " + string(j.Type))
	}
	if j.Email == "" {
		return errors.New("job has no recipient")
	}
	if j.Link == "" {
		return errors.New("job has no link")
	}
	return nil
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
