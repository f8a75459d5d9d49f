// ABOUTME: TrustCache read/write layer in front of the persistent store
// ABOUTME: Normalizes lookups, counts hits and misses, and keeps an optional in-memory fast path
package cache

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/ristretto"
	"github.com/dgraph-io/ristretto/z"
	"github.com/harperreed/trustcache/models"
)

// DefaultHitRateWarningThreshold is the hit rate below which Health warns.
const DefaultHitRateWarningThreshold = 0.7

// Store is the persistence the cache fronts. *db.Store satisfies it.
type Store interface {
	GetContactByID(ctx context.Context, id string) (*models.Contact, error)
	GetContactIDByEmail(ctx context.Context, email string) (string, error)
	UpsertContact(ctx context.Context, contact *models.Contact) error
	ApplyContactChanges(ctx context.Context, upserts []*models.Contact, deleteIDs []string) (int, int, error)
	DeleteContact(ctx context.Context, id string) error
	GetTrustSignal(ctx context.Context, contactID string) (*models.TrustSignal, error)
	UpsertTrustSignal(ctx context.Context, sig *models.TrustSignal) error
	ClearAll(ctx context.Context) error
	CountContacts(ctx context.Context) (int, error)
	CountTrustSignals(ctx context.Context) (int, error)
}

// Options configures a TrustCache.
type Options struct {
	// MemoryEntries bounds the in-memory fast path. Zero disables it.
	MemoryEntries int64
	// HitRateWarningThreshold defaults to DefaultHitRateWarningThreshold.
	HitRateWarningThreshold float64
	Logger                  *log.Logger
}

// versionShards is the number of independent invalidation counters.
const versionShards = 256

// TrustCache is a pass-through over Store. The store stays authoritative;
// the fast path only ever holds copies of committed rows.
type TrustCache struct {
	store     Store
	stats     counters
	threshold float64
	logger    *log.Logger

	// mem is nil when the fast path is disabled. An entry is served only
	// while its shard version is unchanged; every write bumps the version
	// after committing, so a slow reader can never resurrect a replaced row.
	mem      *ristretto.Cache
	versions [versionShards]atomic.Uint64
}

type memEntry struct {
	version uint64
	value   any
}

// New creates a cache over store.
func New(store Store, opts Options) (*TrustCache, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	threshold := opts.HitRateWarningThreshold
	if threshold <= 0 {
		threshold = DefaultHitRateWarningThreshold
	}

	c := &TrustCache{
		store:     store,
		threshold: threshold,
		logger:    logger.WithPrefix("cache"),
	}

	if opts.MemoryEntries > 0 {
		mem, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: opts.MemoryEntries * 10,
			MaxCost:     opts.MemoryEntries,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create memory cache: %w", err)
		}
		c.mem = mem
	}

	return c, nil
}

// Close releases the fast path.
func (c *TrustCache) Close() {
	if c.mem != nil {
		c.mem.Close()
	}
}

func contactKey(id string) string { return "contact:" + id }
func signalKey(id string) string  { return "signal:" + id }

func (c *TrustCache) shard(key string) *atomic.Uint64 {
	h, _ := z.KeyToHash(key)
	return &c.versions[h%versionShards]
}

// version returns the value a reader must capture before going to the store.
func (c *TrustCache) version(key string) uint64 {
	return c.shard(key).Load()
}

func (c *TrustCache) fill(version uint64, key string, value any) {
	if c.mem == nil {
		return
	}
	c.mem.Set(key, memEntry{version: version, value: value}, 1)
}

func (c *TrustCache) evict(keys ...string) {
	for _, k := range keys {
		c.shard(k).Add(1)
		if c.mem != nil {
			c.mem.Del(k)
		}
	}
}

func (c *TrustCache) memGet(key string) (any, bool) {
	if c.mem == nil {
		return nil, false
	}
	v, ok := c.mem.Get(key)
	if !ok {
		return nil, false
	}
	entry, ok := v.(memEntry)
	if !ok || entry.version != c.version(key) {
		return nil, false
	}
	return entry.value, true
}

// GetContactByEmail resolves an address to its contact. A miss is nil, nil.
func (c *TrustCache) GetContactByEmail(ctx context.Context, email string) (*models.Contact, error) {
	normalized := models.NormalizeEmail(email)
	if normalized == "" {
		c.stats.miss()
		return nil, nil
	}

	id, err := c.store.GetContactIDByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if id == "" {
		c.stats.miss()
		c.logger.Debug("contact miss", "email", normalized)
		return nil, nil
	}

	contact, err := c.loadContact(ctx, id)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		c.stats.miss()
		return nil, nil
	}
	c.stats.hit()
	return contact, nil
}

// GetContactByID returns the contact with id, or nil. It is not counted in
// the hit-rate statistics.
func (c *TrustCache) GetContactByID(ctx context.Context, id string) (*models.Contact, error) {
	return c.loadContact(ctx, id)
}

func (c *TrustCache) loadContact(ctx context.Context, id string) (*models.Contact, error) {
	if v, ok := c.memGet(contactKey(id)); ok {
		if contact, ok := v.(*models.Contact); ok {
			return cloneContact(contact), nil
		}
	}

	version := c.version(contactKey(id))
	contact, err := c.store.GetContactByID(ctx, id)
	if err != nil || contact == nil {
		return nil, err
	}
	c.fill(version, contactKey(id), cloneContact(contact))
	return contact, nil
}

// GetTrustSignal returns the stored signal for contactID, or nil. Staleness
// is the caller's concern.
func (c *TrustCache) GetTrustSignal(ctx context.Context, contactID string) (*models.TrustSignal, error) {
	if v, ok := c.memGet(signalKey(contactID)); ok {
		if sig, ok := v.(*models.TrustSignal); ok {
			c.stats.hit()
			return cloneSignal(sig), nil
		}
	}

	version := c.version(signalKey(contactID))
	sig, err := c.store.GetTrustSignal(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if sig == nil {
		c.stats.miss()
		return nil, nil
	}

	c.stats.hit()
	c.fill(version, signalKey(contactID), cloneSignal(sig))
	return sig, nil
}

// CacheTrustSignal upserts the signal.
func (c *TrustCache) CacheTrustSignal(ctx context.Context, sig *models.TrustSignal) error {
	err := c.store.UpsertTrustSignal(ctx, sig)
	if sig != nil {
		c.evict(signalKey(sig.ContactID))
	}
	return err
}

// CacheContact upserts one contact.
func (c *TrustCache) CacheContact(ctx context.Context, contact *models.Contact) error {
	err := c.store.UpsertContact(ctx, contact)
	if contact != nil {
		c.evict(contactKey(contact.ID))
	}
	return err
}

// CacheContactsBatch writes every contact or none and returns the count written.
func (c *TrustCache) CacheContactsBatch(ctx context.Context, contacts []*models.Contact) (int, error) {
	written, _, err := c.ApplyContactChanges(ctx, contacts, nil)
	return written, err
}

// ApplyContactChanges upserts and deletes in one unit of work.
func (c *TrustCache) ApplyContactChanges(ctx context.Context, upserts []*models.Contact, deleteIDs []string) (int, int, error) {
	start := time.Now()
	written, deleted, err := c.store.ApplyContactChanges(ctx, upserts, deleteIDs)

	keys := make([]string, 0, len(upserts)+2*len(deleteIDs))
	for _, contact := range upserts {
		if contact != nil {
			keys = append(keys, contactKey(contact.ID))
		}
	}
	for _, id := range deleteIDs {
		keys = append(keys, contactKey(id), signalKey(id))
	}
	c.evict(keys...)

	if err != nil {
		return 0, 0, err
	}
	c.logger.Debug("applied contact batch", "written", written, "deleted", deleted, "duration", time.Since(start))
	return written, deleted, nil
}

// DeleteContact removes a contact and its trust signal.
func (c *TrustCache) DeleteContact(ctx context.Context, id string) error {
	err := c.store.DeleteContact(ctx, id)
	c.evict(contactKey(id), signalKey(id))
	return err
}

// Statistics returns a snapshot of the lookup counters.
func (c *TrustCache) Statistics() models.CacheStatistics {
	return c.stats.snapshot()
}

// Health warns when the hit rate drops below the threshold. With no lookups
// yet there is nothing to judge.
func (c *TrustCache) Health() models.HealthStatus {
	stats := c.stats.snapshot()
	status := models.HealthStatus{
		Healthy:   true,
		Level:     models.HealthOK,
		CheckedAt: time.Now().UTC(),
	}

	if stats.TotalLookups > 0 && stats.CombinedHitRate < c.threshold {
		status.Level = models.HealthWarning
		status.Message = fmt.Sprintf("cache hit rate %.2f is below %.2f", stats.CombinedHitRate, c.threshold)
	}
	return status
}

// ClearCache truncates the store and resets the counters.
func (c *TrustCache) ClearCache(ctx context.Context) (bool, error) {
	err := c.store.ClearAll(ctx)

	for i := range c.versions {
		c.versions[i].Add(1)
	}
	if c.mem != nil {
		c.mem.Clear()
	}

	if err != nil {
		return false, err
	}
	c.stats.reset()
	c.logger.Info("cache cleared")
	return true, nil
}

// CountContacts returns the number of cached contacts.
func (c *TrustCache) CountContacts(ctx context.Context) (int, error) {
	return c.store.CountContacts(ctx)
}

// CountTrustSignals returns the number of cached trust signals.
func (c *TrustCache) CountTrustSignals(ctx context.Context) (int, error) {
	return c.store.CountTrustSignals(ctx)
}

func cloneContact(c *models.Contact) *models.Contact {
	out := *c
	out.AllEmails = append([]string(nil), c.AllEmails...)
	return &out
}

func cloneSignal(s *models.TrustSignal) *models.TrustSignal {
	out := *s
	out.Justification = append([]string(nil), s.Justification...)
	if s.LastInteractionDate != nil {
		t := *s.LastInteractionDate
		out.LastInteractionDate = &t
	}
	return &out
}
