// Package workers processes queued account e-mail jobs.
package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/moviebox/internal/logger"
	"github.com/benvon/moviebox/internal/queue"
	"go.uber.org/zap"
)

const (
	// sendTimeout bounds a single delivery attempt
	sendTimeout = 30 * time.Second
	// baseRetryDelay is doubled for every retry already spent
	baseRetryDelay = 30 * time.Second
	maxRetryDelay  = 10 * time.Minute
)

// Enqueuer re-publishes jobs for a later attempt
type Enqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// MailDispatcher renders and sends account e-mails delivered by the queue
type MailDispatcher struct {
	mailer   Mailer
	jobQueue Enqueuer
	log      *zap.Logger
	now      func() time.Time
}

// NewMailDispatcher creates a dispatcher. jobQueue may be nil, which turns retries
// into requeues and makes early jobs wait in place.
func NewMailDispatcher(mailer Mailer, jobQueue Enqueuer, log *zap.Logger) *MailDispatcher {
	return &MailDispatcher{
		mailer:   mailer,
		jobQueue: jobQueue,
		log:      logger.OrNop(log),
		now:      time.Now,
	}
}

// ProcessJob handles one delivery and settles the message: ack on success or
// drop, re-enqueue with backoff on a retryable failure, dead-letter otherwise.
func (d *MailDispatcher) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if err := job.Validate(); err != nil {
		if nackErr := msg.Nack(false); nackErr != nil {
			d.log.Error("mail_job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("invalid mail job %s: %w", job.ID, err)
	}

	if job.IsExpired() {
		// The link inside is no longer usable
		d.log.Info("mail_job_expired", zap.String("job_id", job.ID.String()), zap.String("job_type", string(job.Type)))
		return ackOrErr(msg)
	}

	if !job.ShouldProcess() {
		return d.postpone(ctx, msg, job)
	}
	return d.deliver(ctx, msg, job)
}

func (d *MailDispatcher) deliver(ctx context.Context, msg queue.MessageInterface, job *queue.Job) error {
	message, err := RenderMessage(job)
	if err != nil {
		if nackErr := msg.Nack(false); nackErr != nil {
			d.log.Error("mail_job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("render mail job %s: %w", job.ID, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	err = d.mailer.Send(sendCtx, message)
	cancel()
	if err != nil {
		return d.handleJobError(ctx, msg, job, err)
	}

	d.log.Info("mail_sent",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.String("to", logger.MaskEmail(job.Email)),
		zap.Int("attempt", job.RetryCount+1),
	)
	return ackOrErr(msg)
}

// postpone puts a job whose NotBefore lies ahead back on the queue. Without a
// queue to re-publish to, the delivery is held until the job is due.
func (d *MailDispatcher) postpone(ctx context.Context, msg queue.MessageInterface, job *queue.Job) error {
	if job.NotBefore == nil {
		// NotAfter passed since the expiry check
		return ackOrErr(msg)
	}
	if d.jobQueue == nil {
		timer := time.NewTimer(job.NotBefore.Sub(d.now()))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			if nackErr := msg.Nack(true); nackErr != nil {
				d.log.Error("mail_job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
			}
			return fmt.Errorf("early job %s not delivered: %w", job.ID, ctx.Err())
		case <-timer.C:
		}
		return d.deliver(ctx, msg, job)
	}
	if err := d.jobQueue.Enqueue(ctx, job); err != nil {
		if nackErr := msg.Nack(true); nackErr != nil {
			d.log.Error("mail_job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("failed to postpone job %s: %w", job.ID, err)
	}
	return ackOrErr(msg)
}

// handleJobError retries with exponential backoff until MaxRetries, then dead-letters
func (d *MailDispatcher) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, sendErr error) error {
	fields := []zap.Field{
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.Int("retry_count", job.RetryCount),
		zap.Int("max_retries", job.MaxRetries),
		zap.Error(sendErr),
	}

	if errors.Is(sendErr, ErrPermanent) || !job.CanRetry() {
		d.log.Error("mail_job_dead_lettered", fields...)
		if nackErr := msg.Nack(false); nackErr != nil {
			d.log.Error("mail_job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("mail job %s failed permanently: %w", job.ID, sendErr)
	}

	retry := *job
	retry.IncrementRetry()
	notBefore := d.now().Add(RetryDelay(job.RetryCount))
	retry.NotBefore = &notBefore

	if d.jobQueue == nil {
		d.log.Warn("mail_job_requeued", fields...)
		if nackErr := msg.Nack(true); nackErr != nil {
			d.log.Error("mail_job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("mail job %s failed (will retry): %w", job.ID, sendErr)
	}

	if err := d.jobQueue.Enqueue(ctx, &retry); err != nil {
		d.log.Error("mail_job_retry_enqueue_failed", append(fields, zap.NamedError("enqueue_error", err))...)
		if nackErr := msg.Nack(true); nackErr != nil {
			d.log.Error("mail_job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("mail job %s failed, re-enqueue failed: %w", job.ID, err)
	}

	d.log.Warn("mail_job_retry_scheduled", append(fields, zap.Time("not_before", notBefore))...)
	if err := msg.Ack(); err != nil {
		return fmt.Errorf("failed to ack retried job: %w", err)
	}
	return fmt.Errorf("mail job %s failed (retry %d/%d scheduled): %w", job.ID, retry.RetryCount, job.MaxRetries, sendErr)
}

// RetryDelay is the wait before retry number attempt+1
func RetryDelay(attempt int) time.Duration {
	delay := baseRetryDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}

func ackOrErr(msg queue.MessageInterface) error {
	if err := msg.Ack(); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

// Run consumes jobs until ctx is cancelled or the delivery channel closes
func (d *MailDispatcher) Run(ctx context.Context, jobQueue queue.JobQueue, prefetch int) error {
	msgs, errs, err := jobQueue.Consume(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			d.log.Error("queue_error", zap.Error(err))
		case msg, ok := <-msgs:
			if !ok {
				d.log.Info("message_channel_closed")
				return errors.New("delivery channel closed")
			}
			if err := d.ProcessJob(ctx, msg); err != nil {
				job := msg.GetJob()
				d.log.Error("mail_job_failed",
					zap.Error(err),
					zap.String("job_id", job.ID.String()),
					zap.String("job_type", string(job.Type)),
				)
			}
		}
	}
}
