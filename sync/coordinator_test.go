package sync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harperreed/trustcache/cache"
	"github.com/harperreed/trustcache/db"
	"github.com/harperreed/trustcache/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	source  models.SourceType
	enabled bool
	fetchFn func(ctx context.Context, token string) (*FetchResult, error)

	mu     gosync.Mutex
	tokens []string
}

func (f *fakeAdapter) SourceType() models.SourceType { return f.source }
func (f *fakeAdapter) IsEnabled() bool               { return f.enabled }

func (f *fakeAdapter) FetchContacts(ctx context.Context, token string) (*FetchResult, error) {
	f.mu.Lock()
	f.tokens = append(f.tokens, token)
	f.mu.Unlock()
	return f.fetchFn(ctx, token)
}

func (f *fakeAdapter) GetSyncStatus(ctx context.Context) (*models.AdapterSyncStatus, error) {
	return &models.AdapterSyncStatus{SourceType: f.source, IsEnabled: f.enabled}, nil
}

func (f *fakeAdapter) HealthCheck(ctx context.Context) (*models.HealthStatus, error) {
	return &models.HealthStatus{Healthy: true, Level: models.HealthOK}, nil
}

func (f *fakeAdapter) receivedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

func contactsFor(prefix string, n int) []*models.Contact {
	out := make([]*models.Contact, n)
	for i := range out {
		out[i] = &models.Contact{
			ID:        fmt.Sprintf("%s-%d", prefix, i),
			AllEmails: []string{fmt.Sprintf("%s%d@example.com", prefix, i)},
		}
	}
	return out
}

func returning(contacts []*models.Contact, token string) func(context.Context, string) (*FetchResult, error) {
	return func(ctx context.Context, _ string) (*FetchResult, error) {
		return &FetchResult{Contacts: contacts, NextToken: token}, nil
	}
}

func failing(msg string) func(context.Context, string) (*FetchResult, error) {
	return func(ctx context.Context, _ string) (*FetchResult, error) {
		return nil, errors.New(msg)
	}
}

type harness struct {
	store *db.Store
	cache *cache.TrustCache
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c, err := cache.New(store, cache.Options{})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	return &harness{store: store, cache: c}
}

func (h *harness) coordinator(parallel bool, adapters ...ContactSourceAdapter) *Coordinator {
	return NewCoordinator(h.cache, h.store, adapters, Options{CachingEnabled: true, ParallelFetch: parallel})
}

func TestSyncOneAdapterFailureDoesNotBlockOthers(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			h := newHarness(t)
			a := &fakeAdapter{source: "source_a", enabled: true, fetchFn: failing("network unreachable")}
			b := &fakeAdapter{source: "source_b", enabled: true, fetchFn: returning(contactsFor("b", 5), "")}

			result, err := h.coordinator(parallel, a, b).Sync(context.Background(), false)
			require.NoError(t, err)

			assert.True(t, result.IsSuccessful)
			assert.Equal(t, 5, result.ContactsSynced)
			assert.Equal(t, models.SyncRunPartiallyFailed, result.State)
			require.Len(t, result.AdapterResults, 2)

			ra := result.AdapterResults[0]
			assert.Equal(t, models.SourceType("source_a"), ra.SourceType)
			assert.False(t, ra.IsSuccessful)
			assert.Equal(t, models.ErrorKindAdapterFetch, ra.ErrorKind)
			assert.Contains(t, ra.ErrorMessage, "network unreachable")
			assert.Zero(t, ra.ContactsSynced)

			rb := result.AdapterResults[1]
			assert.True(t, rb.IsSuccessful)
			assert.Equal(t, 5, rb.ContactsSynced)

			count, err := h.store.CountContacts(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 5, count)

			state, err := h.store.GetSyncState(context.Background(), "source_a")
			require.NoError(t, err)
			require.NotNil(t, state)
			assert.Equal(t, models.SyncStatusError, state.Status)
			assert.Contains(t, state.ErrorMessage, "network unreachable")
		})
	}
}

func TestSyncAllAdaptersFailing(t *testing.T) {
	h := newHarness(t)
	a := &fakeAdapter{source: "source_a", enabled: true, fetchFn: failing("boom a")}
	b := &fakeAdapter{source: "source_b", enabled: true, fetchFn: failing("boom b")}

	result, err := h.coordinator(false, a, b).Sync(context.Background(), false)
	require.NoError(t, err, "failures are reported in the result")
	assert.False(t, result.IsSuccessful)
	assert.Len(t, result.FailedAdapters(), 2)
	assert.Equal(t, models.SyncRunPartiallyFailed, result.State)
}

func TestSyncNoEnabledAdapters(t *testing.T) {
	h := newHarness(t)
	a := &fakeAdapter{source: "source_a", enabled: false, fetchFn: failing("never called")}

	result, err := h.coordinator(false, a).Sync(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, result.IsSuccessful)
	assert.Empty(t, result.AdapterResults)
	assert.Equal(t, models.SyncRunCompleted, result.State)
	assert.Empty(t, a.receivedTokens())
}

func TestSyncPersistsAndUsesContinuationToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := &fakeAdapter{source: "source_a", enabled: true, fetchFn: returning(contactsFor("a", 2), "token-1")}
	coord := h.coordinator(false, a)

	result, err := coord.Sync(ctx, false)
	require.NoError(t, err)
	assert.True(t, result.AdapterResults[0].HasContinuationToken)

	state, err := h.store.GetSyncState(ctx, "source_a")
	require.NoError(t, err)
	assert.Equal(t, "token-1", state.ContinuationToken)
	require.NotNil(t, state.LastFullSync, "first sync without a token is a full fetch")

	_, err = coord.Sync(ctx, false)
	require.NoError(t, err)

	_, err = coord.Sync(ctx, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "token-1", ""}, a.receivedTokens())

	state, err = h.store.GetSyncState(ctx, "source_a")
	require.NoError(t, err)
	assert.NotNil(t, state.LastIncrementalSync)

	assert.NotNil(t, coord.LastFullSync())
	assert.NotNil(t, coord.LastIncrementalSync())
	assert.Equal(t, models.SyncRunCompleted, coord.State())
}

func TestSyncEmptyTokenKeepsStoredToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SaveContinuationToken(ctx, "source_a", "kept"))

	a := &fakeAdapter{source: "source_a", enabled: true, fetchFn: returning(nil, "")}
	result, err := h.coordinator(false, a).Sync(ctx, false)
	require.NoError(t, err)
	assert.False(t, result.AdapterResults[0].HasContinuationToken)

	state, err := h.store.GetSyncState(ctx, "source_a")
	require.NoError(t, err)
	assert.Equal(t, "kept", state.ContinuationToken)
}

func TestSyncCacheWriteFailureSkipsToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	bad := []*models.Contact{{ID: "bad", AllEmails: []string{"not-an-email"}}}
	a := &fakeAdapter{source: "source_a", enabled: true, fetchFn: returning(bad, "token-bad")}
	b := &fakeAdapter{source: "source_b", enabled: true, fetchFn: returning(contactsFor("b", 1), "token-b")}

	result, err := h.coordinator(false, a, b).Sync(ctx, false)
	require.NoError(t, err)
	assert.True(t, result.IsSuccessful)

	ra := result.AdapterResults[0]
	assert.False(t, ra.IsSuccessful)
	assert.Equal(t, models.ErrorKindCacheWrite, ra.ErrorKind)
	assert.False(t, ra.HasContinuationToken)

	state, err := h.store.GetSyncState(ctx, "source_a")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Empty(t, state.ContinuationToken)

	state, err = h.store.GetSyncState(ctx, "source_b")
	require.NoError(t, err)
	assert.Equal(t, "token-b", state.ContinuationToken)
}

// orderingStore records when tokens are saved relative to batch writes.
type orderingStore struct {
	*db.Store
	mu     gosync.Mutex
	events []string
}

func (s *orderingStore) SaveContinuationToken(ctx context.Context, source, token string) error {
	s.mu.Lock()
	s.events = append(s.events, "token:"+source)
	s.mu.Unlock()
	return s.Store.SaveContinuationToken(ctx, source, token)
}

type orderingWriter struct {
	ContactWriter
	log *orderingStore
}

func (w *orderingWriter) ApplyContactChanges(ctx context.Context, upserts []*models.Contact, deleteIDs []string) (int, int, error) {
	n, d, err := w.ContactWriter.ApplyContactChanges(ctx, upserts, deleteIDs)
	w.log.mu.Lock()
	w.log.events = append(w.log.events, fmt.Sprintf("commit:%d", n))
	w.log.mu.Unlock()
	return n, d, err
}

func TestSyncTokenPersistedAfterBatchCommit(t *testing.T) {
	h := newHarness(t)
	rec := &orderingStore{Store: h.store}
	writer := &orderingWriter{ContactWriter: h.cache, log: rec}

	a := &fakeAdapter{source: "source_a", enabled: true, fetchFn: returning(contactsFor("a", 3), "t-a")}
	b := &fakeAdapter{source: "source_b", enabled: true, fetchFn: returning(contactsFor("b", 2), "t-b")}

	coord := NewCoordinator(writer, rec, []ContactSourceAdapter{a, b}, Options{CachingEnabled: true, ParallelFetch: true})
	_, err := coord.Sync(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"commit:3", "token:source_a", "commit:2", "token:source_b"}, rec.events)
}

func TestSyncAppliesDeletedIDs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.cache.CacheContactsBatch(ctx, contactsFor("a", 2))
	require.NoError(t, err)

	a := &fakeAdapter{source: "source_a", enabled: true, fetchFn: func(ctx context.Context, token string) (*FetchResult, error) {
		return &FetchResult{DeletedIDs: []string{"a-0"}, NextToken: "t2"}, nil
	}}

	result, err := h.coordinator(false, a).Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AdapterResults[0].ContactsDeleted)

	got, err := h.cache.GetContactByEmail(ctx, "a0@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = h.cache.GetContactByEmail(ctx, "a1@example.com")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestSyncCachingDisabled(t *testing.T) {
	h := newHarness(t)
	a := &fakeAdapter{source: "source_a", enabled: true, fetchFn: returning(contactsFor("a", 1), "t")}

	coord := NewCoordinator(h.cache, h.store, []ContactSourceAdapter{a}, Options{CachingEnabled: false})
	result, err := coord.Sync(context.Background(), true)
	require.NoError(t, err)

	assert.True(t, result.IsSuccessful)
	assert.True(t, result.Skipped)
	assert.Zero(t, result.ContactsSynced)
	assert.Empty(t, a.receivedTokens())
	assert.NotEmpty(t, result.RunID)
}

func TestSyncIsSingleFlight(t *testing.T) {
	h := newHarness(t)

	var active, maxActive atomic.Int32
	release := make(chan struct{})
	entered := make(chan struct{}, 2)

	a := &fakeAdapter{source: "source_a", enabled: true, fetchFn: func(ctx context.Context, token string) (*FetchResult, error) {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		entered <- struct{}{}
		<-release
		active.Add(-1)
		return &FetchResult{}, nil
	}}
	coord := h.coordinator(true, a)

	var wg gosync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := coord.Sync(context.Background(), false)
			assert.NoError(t, err)
		}()
	}

	<-entered
	select {
	case <-entered:
		t.Fatal("second sync entered while the first was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, models.SyncRunSyncing, coord.State())

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
	assert.Len(t, a.receivedTokens(), 2, "the waiting caller runs after the first, not rejected")
}

func TestSyncWaitTimesOut(t *testing.T) {
	h := newHarness(t)

	release := make(chan struct{})
	entered := make(chan struct{})
	a := &fakeAdapter{source: "source_a", enabled: true, fetchFn: func(ctx context.Context, token string) (*FetchResult, error) {
		close(entered)
		<-release
		return &FetchResult{}, nil
	}}
	coord := h.coordinator(false, a)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = coord.Sync(context.Background(), false)
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	result, err := coord.Sync(ctx, false)
	assert.Nil(t, result)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConcurrencyTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	<-done
}

func TestSyncCancellationReleasesGuard(t *testing.T) {
	h := newHarness(t)

	entered := make(chan struct{})
	blocking := &fakeAdapter{source: "source_a", enabled: true, fetchFn: func(ctx context.Context, token string) (*FetchResult, error) {
		close(entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	later := &fakeAdapter{source: "source_b", enabled: true, fetchFn: returning(contactsFor("b", 1), "tb")}
	coord := h.coordinator(false, blocking, later)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-entered
		cancel()
	}()

	result, err := coord.Sync(ctx, false)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	require.Len(t, result.AdapterResults, 2)
	for _, ar := range result.AdapterResults {
		assert.False(t, ar.IsSuccessful)
		assert.Equal(t, models.ErrorKindCanceled, ar.ErrorKind)
	}

	count, err := h.store.CountContacts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	// The guard was released
	blocking.fetchFn = returning(nil, "")
	result, err = coord.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, result.IsSuccessful)
	assert.Equal(t, 1, result.ContactsSynced)
}

func TestSyncPreservesRegistrationOrder(t *testing.T) {
	h := newHarness(t)

	slow := &fakeAdapter{source: "slow", enabled: true, fetchFn: func(ctx context.Context, token string) (*FetchResult, error) {
		time.Sleep(30 * time.Millisecond)
		return &FetchResult{Contacts: contactsFor("s", 1)}, nil
	}}
	fast := &fakeAdapter{source: "fast", enabled: true, fetchFn: returning(contactsFor("f", 1), "")}

	result, err := h.coordinator(true, slow, fast).Sync(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, result.AdapterResults, 2)
	assert.Equal(t, models.SourceType("slow"), result.AdapterResults[0].SourceType)
	assert.Equal(t, models.SourceType("fast"), result.AdapterResults[1].SourceType)
}
