// ABOUTME: SyncCoordinator runs single-flight syncs across contact source adapters
// ABOUTME: Fetches per adapter, writes batches through the cache, then persists tokens
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	gosync "sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/trustcache/models"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ContactWriter applies a fetched batch. *cache.TrustCache satisfies it.
type ContactWriter interface {
	ApplyContactChanges(ctx context.Context, upserts []*models.Contact, deleteIDs []string) (int, int, error)
}

// StateStore persists per-source sync state. *db.Store satisfies it.
type StateStore interface {
	GetSyncState(ctx context.Context, sourceType string) (*models.SyncState, error)
	SaveContinuationToken(ctx context.Context, sourceType, token string) error
	MarkSynced(ctx context.Context, sourceType string, fullSync bool, at time.Time) error
	UpdateSyncStatus(ctx context.Context, sourceType, status string, errorMsg *string) error
}

// Options configures a Coordinator.
type Options struct {
	CachingEnabled bool
	// ParallelFetch fetches from all adapters concurrently. Writes still
	// happen one adapter at a time in registration order.
	ParallelFetch bool
	Logger        *log.Logger
}

// Coordinator orchestrates syncs. At most one sync runs at a time; later
// callers wait for the guard rather than being rejected.
type Coordinator struct {
	adapters []ContactSourceAdapter
	writer   ContactWriter
	state    StateStore
	opts     Options
	logger   *log.Logger
	now      func() time.Time

	guard *semaphore.Weighted

	mu                  gosync.RWMutex
	runState            models.SyncRunState
	lastFullSync        *time.Time
	lastIncrementalSync *time.Time
	lastResult          *models.SyncResult
}

// NewCoordinator creates a coordinator over adapters, kept in the given order.
func NewCoordinator(writer ContactWriter, state StateStore, adapters []ContactSourceAdapter, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Coordinator{
		adapters: append([]ContactSourceAdapter(nil), adapters...),
		writer:   writer,
		state:    state,
		opts:     opts,
		logger:   logger.WithPrefix("sync"),
		now:      func() time.Time { return time.Now().UTC() },
		guard:    semaphore.NewWeighted(1),
		runState: models.SyncRunIdle,
	}
}

// Adapters returns the registered adapters in order.
func (c *Coordinator) Adapters() []ContactSourceAdapter {
	return append([]ContactSourceAdapter(nil), c.adapters...)
}

// State returns the state of the current or last sync.
func (c *Coordinator) State() models.SyncRunState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runState
}

// LastFullSync returns when the last successful forced full sync finished.
func (c *Coordinator) LastFullSync() *time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyTime(c.lastFullSync)
}

// LastIncrementalSync returns when the last successful incremental sync finished.
func (c *Coordinator) LastIncrementalSync() *time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyTime(c.lastIncrementalSync)
}

// LastResult returns the most recent sync result, or nil.
func (c *Coordinator) LastResult() *models.SyncResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastResult
}

func (c *Coordinator) setRunState(s models.SyncRunState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runState = s
}

// fetchOutcome is one adapter's fetch, held until its write turn.
type fetchOutcome struct {
	adapter   ContactSourceAdapter
	fullFetch bool
	result    *FetchResult
	err       error
	started   time.Time
}

// Sync runs one sync across all enabled adapters. forceFull ignores stored
// tokens. The returned result is never nil when the guard was acquired; if ctx
// is cancelled mid-sync the partial result is returned with ctx's error.
func (c *Coordinator) Sync(ctx context.Context, forceFull bool) (*models.SyncResult, error) {
	runID := ulid.Make().String()
	started := c.now()

	if !c.opts.CachingEnabled {
		c.logger.Debug("caching disabled, skipping sync", "run_id", runID)
		return &models.SyncResult{
			RunID:        runID,
			State:        models.SyncRunCompleted,
			FullSync:     forceFull,
			Skipped:      true,
			IsSuccessful: true,
			StartedAt:    started,
			CompletedAt:  started,
		}, nil
	}

	if err := c.guard.Acquire(ctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrConcurrencyTimeout, err)
		}
		return nil, err
	}
	defer c.guard.Release(1)

	c.setRunState(models.SyncRunSyncing)
	c.logger.Info("sync started", "run_id", runID, "full", forceFull)

	result := &models.SyncResult{
		RunID:     runID,
		FullSync:  forceFull,
		StartedAt: c.now(),
	}

	var enabled []ContactSourceAdapter
	for _, a := range c.adapters {
		if a.IsEnabled() {
			enabled = append(enabled, a)
		}
	}

	outcomes := c.fetchAll(ctx, enabled, forceFull)

	for _, o := range outcomes {
		ar := c.writeOutcome(ctx, o)
		result.AdapterResults = append(result.AdapterResults, ar)
		if ar.IsSuccessful {
			result.ContactsSynced += ar.ContactsSynced
		}
	}

	c.finish(result, forceFull)

	c.logger.Info("sync finished",
		"run_id", runID,
		"state", result.State,
		"contacts", result.ContactsSynced,
		"failed", len(result.FailedAdapters()),
		"duration", result.CompletedAt.Sub(result.StartedAt),
	)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (c *Coordinator) finish(result *models.SyncResult, forceFull bool) {
	succeeded := 0
	for _, ar := range result.AdapterResults {
		if ar.IsSuccessful {
			succeeded++
		}
	}

	// With no enabled adapters nothing failed
	result.IsSuccessful = succeeded > 0 || len(result.AdapterResults) == 0
	if succeeded == len(result.AdapterResults) {
		result.State = models.SyncRunCompleted
	} else {
		result.State = models.SyncRunPartiallyFailed
	}
	result.CompletedAt = c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.runState = result.State
	c.lastResult = result
	if result.IsSuccessful {
		at := result.CompletedAt
		if forceFull {
			c.lastFullSync = &at
		} else {
			c.lastIncrementalSync = &at
		}
	}
}

// fetchAll fetches from every adapter, concurrently when configured. The
// outcomes keep registration order.
func (c *Coordinator) fetchAll(ctx context.Context, adapters []ContactSourceAdapter, forceFull bool) []fetchOutcome {
	outcomes := make([]fetchOutcome, len(adapters))

	if !c.opts.ParallelFetch {
		for i, a := range adapters {
			outcomes[i] = c.fetch(ctx, a, forceFull)
		}
		return outcomes
	}

	var g errgroup.Group
	for i, a := range adapters {
		g.Go(func() error {
			outcomes[i] = c.fetch(ctx, a, forceFull)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (c *Coordinator) fetch(ctx context.Context, a ContactSourceAdapter, forceFull bool) fetchOutcome {
	o := fetchOutcome{adapter: a, started: time.Now()}
	source := string(a.SourceType())

	if err := ctx.Err(); err != nil {
		o.err = err
		return o
	}

	token := ""
	if !forceFull {
		state, err := c.state.GetSyncState(ctx, source)
		if err != nil {
			// Re-fetching everything is always safe
			c.logger.Warn("failed to read sync state, fetching everything", "source", source, "error", err)
		} else if state.HasToken() {
			token = state.ContinuationToken
		}
	}
	o.fullFetch = token == ""

	if err := c.state.UpdateSyncStatus(ctx, source, models.SyncStatusSyncing, nil); err != nil {
		c.logger.Debug("failed to mark source syncing", "source", source, "error", err)
	}

	c.logger.Debug("fetching contacts", "source", source, "incremental", token != "")
	res, err := a.FetchContacts(ctx, token)
	if err != nil {
		o.err = &AdapterError{Source: a.SourceType(), Err: err}
		return o
	}
	if res == nil {
		res = &FetchResult{}
	}
	o.result = res
	return o
}

// writeOutcome commits one adapter's batch and then its token.
func (c *Coordinator) writeOutcome(ctx context.Context, o fetchOutcome) models.AdapterResult {
	source := o.adapter.SourceType()
	ar := models.AdapterResult{SourceType: source}

	fail := func(kind string, err error) models.AdapterResult {
		ar.IsSuccessful = false
		ar.ErrorKind = kind
		ar.ErrorMessage = err.Error()
		ar.ContactsSynced = 0
		ar.Duration = time.Since(o.started)

		if kind != models.ErrorKindCanceled {
			c.logger.Warn("adapter sync failed", "source", source, "kind", kind, "error", err)
		}
		msg := err.Error()
		// Use a fresh context so a cancelled sync still records its status
		if serr := c.state.UpdateSyncStatus(context.WithoutCancel(ctx), string(source), models.SyncStatusError, &msg); serr != nil {
			c.logger.Debug("failed to record sync error", "source", source, "error", serr)
		}
		return ar
	}

	if o.err != nil {
		if ctx.Err() != nil {
			return fail(models.ErrorKindCanceled, ctx.Err())
		}
		return fail(models.ErrorKindAdapterFetch, o.err)
	}
	if err := ctx.Err(); err != nil {
		return fail(models.ErrorKindCanceled, err)
	}

	written, deleted, err := c.writer.ApplyContactChanges(ctx, o.result.Contacts, o.result.DeletedIDs)
	if err != nil {
		if ctx.Err() != nil {
			return fail(models.ErrorKindCanceled, ctx.Err())
		}
		return fail(models.ErrorKindCacheWrite, &CacheWriteError{Source: source, Err: err})
	}

	ar.IsSuccessful = true
	ar.ContactsSynced = written
	ar.ContactsDeleted = deleted

	// The batch is committed; a lost token only costs a re-fetch next time
	if o.result.NextToken != "" {
		if err := c.state.SaveContinuationToken(ctx, string(source), o.result.NextToken); err != nil {
			c.logger.Warn("failed to persist continuation token", "source", source, "error", err)
		} else {
			ar.HasContinuationToken = true
		}
	}

	if err := c.state.MarkSynced(ctx, string(source), o.fullFetch, c.now()); err != nil {
		c.logger.Warn("failed to stamp sync time", "source", source, "error", err)
	}

	ar.Duration = time.Since(o.started)
	c.logger.Info("adapter synced", "source", source, "contacts", written, "deleted", deleted, "token", ar.HasContinuationToken)
	return ar
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
