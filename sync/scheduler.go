// ABOUTME: Periodic sync scheduler for daemon mode
// ABOUTME: Runs a sync immediately, then on every tick until the context ends
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/trustcache/models"
)

// MinSyncInterval is the shortest allowed daemon interval.
const MinSyncInterval = time.Minute

// Syncer runs one sync. *Coordinator satisfies it.
type Syncer interface {
	Sync(ctx context.Context, forceFull bool) (*models.SyncResult, error)
}

// Scheduler drives a Syncer on a fixed interval.
type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	logger   *log.Logger

	// OnResult, if set, is called after every run.
	OnResult func(*models.SyncResult, error)
}

// NewScheduler validates interval and returns a scheduler.
func NewScheduler(syncer Syncer, interval time.Duration, logger *log.Logger) (*Scheduler, error) {
	if interval < MinSyncInterval {
		return nil, fmt.Errorf("sync interval %s is below the minimum of %s", interval, MinSyncInterval)
	}
	return newScheduler(syncer, interval, logger), nil
}

func newScheduler(syncer Syncer, interval time.Duration, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		logger:   logger.WithPrefix("scheduler"),
	}
}

// Run blocks until ctx is done. Failed runs are logged and retried on the
// next tick. Incremental syncs only; a full sync is an explicit operator action.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil

		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.syncer.Sync(ctx, false)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("scheduled sync failed", "error", err)
	}
	if s.OnResult != nil {
		s.OnResult(result, err)
	}
}
