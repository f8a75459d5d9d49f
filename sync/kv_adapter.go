// ABOUTME: Charm KV source adapter for a contact book shared across devices
// ABOUTME: Stores contacts as JSON records and syncs incrementally by modification time
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	gosync "sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/trustcache/models"
)

// KVContactPrefix prefixes every contact record key.
const KVContactPrefix = "contact:"

// KVStore is the charm KV surface the adapter uses. *charm.Client satisfies it.
type KVStore interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	KeysWithPrefix(prefix []byte) ([][]byte, error)
	Sync() error
	IsConnected() bool
}

// KVContact is the stored record. Deleted records are tombstones so other
// devices learn about removals on their next incremental fetch.
type KVContact struct {
	models.Contact
	Deleted bool `json:"deleted,omitempty"`
}

func kvKey(id string) []byte {
	return []byte(KVContactPrefix + id)
}

// PutKVContact validates and stores a contact, stamping its modification time.
func PutKVContact(store KVStore, contact *models.Contact, now time.Time) error {
	if contact == nil || contact.ID == "" {
		return fmt.Errorf("contact id is required")
	}
	if err := normalizeKVContact(contact); err != nil {
		return err
	}

	rec := KVContact{Contact: *contact}
	rec.SourceType = models.SourceCharmKV
	rec.UpdatedAt = now.UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode contact: %w", err)
	}
	return store.Set(kvKey(contact.ID), data)
}

// normalizeKVContact normalizes the contact's emails in place and rejects
// contacts the store would refuse.
func normalizeKVContact(contact *models.Contact) error {
	contact.NormalizeEmails()
	if len(contact.AllEmails) == 0 {
		return fmt.Errorf("contact %s has no email addresses", contact.ID)
	}
	for _, e := range contact.AllEmails {
		if !models.ValidEmail(e) {
			return fmt.Errorf("malformed email %q for contact %s", e, contact.ID)
		}
	}
	return nil
}

// DeleteKVContact replaces the record with a tombstone.
func DeleteKVContact(store KVStore, id string, now time.Time) error {
	rec := KVContact{
		Contact: models.Contact{ID: id, SourceType: models.SourceCharmKV, UpdatedAt: now.UTC()},
		Deleted: true,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode tombstone: %w", err)
	}
	return store.Set(kvKey(id), data)
}

// KVContactsAdapter reads the shared contact book from charm KV. The
// continuation token is the newest modification time seen, RFC3339Nano.
type KVContactsAdapter struct {
	kv      KVStore
	enabled bool
	logger  *log.Logger

	mu     gosync.Mutex
	status models.AdapterSyncStatus
}

// NewKVContactsAdapter creates the adapter. A nil store disables it.
func NewKVContactsAdapter(store KVStore, enabled bool, logger *log.Logger) *KVContactsAdapter {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &KVContactsAdapter{
		kv:      store,
		enabled: enabled && store != nil,
		logger:  logger.WithPrefix("charm"),
		status:  models.AdapterSyncStatus{SourceType: models.SourceCharmKV},
	}
}

func (a *KVContactsAdapter) SourceType() models.SourceType {
	return models.SourceCharmKV
}

func (a *KVContactsAdapter) IsEnabled() bool {
	return a.enabled
}

// FetchContacts pulls from the charm server, then returns records modified
// after token.
func (a *KVContactsAdapter) FetchContacts(ctx context.Context, token string) (*FetchResult, error) {
	res, err := a.fetch(ctx, token)

	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now().UTC()
	a.status.LastFetchAt = &now
	if err != nil {
		a.status.LastError = err.Error()
		return nil, err
	}
	a.status.LastError = ""
	a.status.LastContactCount = len(res.Contacts)
	a.status.HasContinuationToken = res.NextToken != "" || token != ""
	return res, nil
}

func (a *KVContactsAdapter) fetch(ctx context.Context, token string) (*FetchResult, error) {
	if err := a.kv.Sync(); err != nil {
		return nil, fmt.Errorf("failed to sync charm kv: %w", err)
	}

	var since time.Time
	if token != "" {
		t, err := time.Parse(time.RFC3339Nano, token)
		if err != nil {
			a.logger.Warn("ignoring unreadable continuation token", "token", token, "error", err)
		} else {
			since = t
		}
	}

	keys, err := a.kv.KeysWithPrefix([]byte(KVContactPrefix))
	if err != nil {
		return nil, fmt.Errorf("failed to list contact keys: %w", err)
	}

	out := &FetchResult{}
	var newest time.Time
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := a.kv.Get(key)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}

		var rec KVContact
		if err := json.Unmarshal(data, &rec); err != nil {
			a.logger.Warn("skipping unreadable contact record", "key", string(key), "error", err)
			continue
		}
		if rec.ID == "" {
			continue
		}
		if !since.IsZero() && !rec.UpdatedAt.After(since) {
			continue
		}
		if rec.UpdatedAt.After(newest) {
			newest = rec.UpdatedAt
		}

		if rec.Deleted {
			out.DeletedIDs = append(out.DeletedIDs, rec.ID)
			continue
		}

		contact := rec.Contact
		contact.SourceType = models.SourceCharmKV
		// Other devices may have written records the store would reject
		if err := normalizeKVContact(&contact); err != nil {
			a.logger.Warn("skipping invalid contact record", "key", string(key), "error", err)
			continue
		}
		out.Contacts = append(out.Contacts, &contact)
	}

	if !newest.IsZero() {
		out.NextToken = newest.UTC().Format(time.RFC3339Nano)
	}

	a.logger.Debug("read contact book", "incremental", !since.IsZero(), "contacts", len(out.Contacts), "deleted", len(out.DeletedIDs))
	return out, nil
}

// GetSyncStatus reports the outcome of the last fetch.
func (a *KVContactsAdapter) GetSyncStatus(ctx context.Context) (*models.AdapterSyncStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	status := a.status
	status.IsEnabled = a.enabled
	return &status, nil
}

// HealthCheck reports whether the device is linked to a charm account. An
// unlinked device still serves its local copy, so that is only a warning.
func (a *KVContactsAdapter) HealthCheck(ctx context.Context) (*models.HealthStatus, error) {
	now := time.Now().UTC()
	if !a.enabled {
		return &models.HealthStatus{Healthy: true, Level: models.HealthWarning, Message: "adapter disabled", CheckedAt: now}, nil
	}
	if !a.kv.IsConnected() {
		return &models.HealthStatus{Healthy: true, Level: models.HealthWarning, Message: "charm account not linked; using local data", CheckedAt: now}, nil
	}
	return &models.HealthStatus{Healthy: true, Level: models.HealthOK, CheckedAt: now}, nil
}
