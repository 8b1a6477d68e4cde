package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/moviebox/internal/logger"
	"go.uber.org/zap"
)

// DefaultDLQRetention is how long dead account-mail jobs stay inspectable
const DefaultDLQRetention = 24 * time.Hour

const sweepTimeout = 2 * time.Minute

// DeadMailSweeper trims the account-mail dead-letter queue. Verification and
// reset jobs that exhausted their retries are kept for retention so an
// operator can see why a user never got their link, then dropped.
type DeadMailSweeper struct {
	dlq       DLQPurger
	every     time.Duration
	retention time.Duration
	log       *zap.Logger
}

func NewDeadMailSweeper(dlq DLQPurger, every, retention time.Duration, log *zap.Logger) *DeadMailSweeper {
	if retention <= 0 {
		retention = DefaultDLQRetention
	}
	return &DeadMailSweeper{dlq: dlq, every: every, retention: retention, log: logger.OrNop(log)}
}

// Run sweeps once immediately, then every interval until ctx is done.
// The first sweep clears letters that piled up while the server was down.
func (s *DeadMailSweeper) Run(ctx context.Context) error {
	if s.dlq == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	s.sweepAndLog(ctx)
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *DeadMailSweeper) sweepAndLog(ctx context.Context) {
	n, err := s.sweep(ctx)
	switch {
	case err != nil:
		s.log.Error("dead_mail_sweep_failed", zap.Error(err))
	case n > 0:
		s.log.Info("dead_mail_swept", zap.Int("jobs", n), zap.Duration("retention", s.retention))
	}
}

// sweep drops dead mail jobs older than retention and reports how many went
func (s *DeadMailSweeper) sweep(ctx context.Context) (int, error) {
	if s.dlq == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()
	n, err := s.dlq.PurgeOlderThan(ctx, s.retention)
	if err != nil {
		return n, fmt.Errorf("sweep dead mail: %w", err)
	}
	return n, nil
}
