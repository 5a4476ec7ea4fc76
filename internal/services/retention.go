package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const retentionPollInterval = 1 * time.Hour

// AuditPruner deletes audit records created before cutoff.
type AuditPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionScheduler periodically drops audit records older than the
// retention period.
type RetentionScheduler struct {
	store     AuditPruner
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

func NewRetentionScheduler(store AuditPruner, retention time.Duration) *RetentionScheduler {
	return &RetentionScheduler{
		store:     store,
		retention: retention,
		interval:  retentionPollInterval,
		now:       time.Now,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs a prune immediately and then once per interval. It does
// nothing without a store or a positive retention.
func (s *RetentionScheduler) Start() {
	if s.store == nil || s.retention <= 0 {
		close(s.done)
		return
	}
	go s.loop()
	log.Info().Dur("retention", s.retention).Msg("audit retention scheduler started")
}

// Stop ends the loop and waits for an in-flight prune to finish.
func (s *RetentionScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
}

func (s *RetentionScheduler) loop() {
	defer close(s.done)

	// Run on startup as well as by interval.
	s.prune()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.prune()
		}
	}
}

func (s *RetentionScheduler) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := s.now().UTC().Add(-s.retention)
	n, err := s.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("failed to prune audit log")
		return
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("pruned audit log")
	}
}
