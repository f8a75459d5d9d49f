// ABOUTME: Data models for the contact trust cache
// ABOUTME: Defines Contact, TrustSignal, sync state, and status structs
package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceType identifies the external address book a contact came from.
type SourceType string

const (
	SourceGoogleContacts SourceType = "google_contacts"
	SourceCharmKV        SourceType = "charm_kv"
)

type Contact struct {
	ID                   string     `json:"id"`
	SourceType           SourceType `json:"source_type,omitempty"`
	PrimaryEmail         string     `json:"primary_email"`
	AllEmails            []string   `json:"all_emails"`
	DisplayName          string     `json:"display_name,omitempty"`
	GivenName            string     `json:"given_name,omitempty"`
	FamilyName           string     `json:"family_name,omitempty"`
	OrganizationName     string     `json:"organization_name,omitempty"`
	OrganizationTitle    string     `json:"organization_title,omitempty"`
	RelationshipStrength float64    `json:"relationship_strength"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

type TrustSignal struct {
	ContactID           string     `json:"contact_id"`
	Strength            Strength   `json:"strength"`
	Score               float64    `json:"score"`
	LastInteractionDate *time.Time `json:"last_interaction_date,omitempty"`
	Justification       []string   `json:"justification"`
	ComputedAt          time.Time  `json:"computed_at"`
	InteractionCount    int        `json:"interaction_count"`
	EmailAddress        string     `json:"email_address,omitempty"`
	SourceType          string     `json:"source_type,omitempty"`
}

// IsStale reports whether the signal is older than expiry at now.
// Staleness depends only on age, never on content.
func (s *TrustSignal) IsStale(now time.Time, expiry time.Duration) bool {
	return now.Sub(s.ComputedAt) > expiry
}

// Interaction direction constants.
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

type Interaction struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Direction  string    `json:"direction"`
	OccurredAt time.Time `json:"occurred_at"`
}

// InteractionFeatures summarizes the interaction history of a contact's
// addresses. It is the input the scorer combines with the contact record.
type InteractionFeatures struct {
	InteractionCount    int        `json:"interaction_count"`
	SentCount           int        `json:"sent_count"`
	ReceivedCount       int        `json:"received_count"`
	LastInteractionDate *time.Time `json:"last_interaction_date,omitempty"`
}

// Sync status constants for the per-source sync_state row.
const (
	SyncStatusIdle    = "idle"
	SyncStatusSyncing = "syncing"
	SyncStatusError   = "error"
)

type SyncState struct {
	SourceType          string     `json:"source_type"`
	ContinuationToken   string     `json:"continuation_token,omitempty"`
	LastFullSync        *time.Time `json:"last_full_sync,omitempty"`
	LastIncrementalSync *time.Time `json:"last_incremental_sync,omitempty"`
	Status              string     `json:"status"`
	ErrorMessage        string     `json:"error_message,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// HasToken reports whether the next sync for this source can be incremental.
func (s *SyncState) HasToken() bool {
	return s != nil && s.ContinuationToken != ""
}

// SyncRunState is the lifecycle of a single sync invocation.
type SyncRunState string

const (
	SyncRunIdle            SyncRunState = "idle"
	SyncRunSyncing         SyncRunState = "syncing"
	SyncRunCompleted       SyncRunState = "completed"
	SyncRunPartiallyFailed SyncRunState = "partially_failed"
)

// Adapter failure kinds reported in AdapterResult.ErrorKind.
const (
	ErrorKindAdapterFetch = "adapter_fetch"
	ErrorKindCacheWrite   = "cache_write"
	ErrorKindCanceled     = "canceled"
)

type AdapterResult struct {
	SourceType           SourceType    `json:"source_type"`
	IsSuccessful         bool          `json:"is_successful"`
	ContactsSynced       int           `json:"contacts_synced"`
	ContactsDeleted      int           `json:"contacts_deleted,omitempty"`
	HasContinuationToken bool          `json:"has_continuation_token"`
	ErrorKind            string        `json:"error_kind,omitempty"`
	ErrorMessage         string        `json:"error_message,omitempty"`
	Duration             time.Duration `json:"duration"`
}

type SyncResult struct {
	RunID          string          `json:"run_id"`
	State          SyncRunState    `json:"state"`
	FullSync       bool            `json:"full_sync"`
	Skipped        bool            `json:"skipped,omitempty"`
	IsSuccessful   bool            `json:"is_successful"`
	ContactsSynced int             `json:"contacts_synced"`
	AdapterResults []AdapterResult `json:"adapter_results"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    time.Time       `json:"completed_at"`
}

// FailedAdapters returns the adapter entries that did not succeed.
func (r *SyncResult) FailedAdapters() []AdapterResult {
	var failed []AdapterResult
	for _, ar := range r.AdapterResults {
		if !ar.IsSuccessful {
			failed = append(failed, ar)
		}
	}
	return failed
}

type AdapterSyncStatus struct {
	SourceType           SourceType `json:"source_type"`
	IsEnabled            bool       `json:"is_enabled"`
	HasContinuationToken bool       `json:"has_continuation_token"`
	LastFetchAt          *time.Time `json:"last_fetch_at,omitempty"`
	LastContactCount     int        `json:"last_contact_count"`
	LastError            string     `json:"last_error,omitempty"`
}

// HealthLevel constants.
const (
	HealthOK      = "ok"
	HealthWarning = "warning"
	HealthError   = "error"
)

type HealthStatus struct {
	Healthy   bool      `json:"healthy"`
	Level     string    `json:"level"`
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

type CacheStatistics struct {
	HitCount        int64   `json:"hit_count"`
	MissCount       int64   `json:"miss_count"`
	TotalLookups    int64   `json:"total_lookups"`
	CombinedHitRate float64 `json:"combined_hit_rate"`
}

type AdapterStatus struct {
	SourceType SourceType        `json:"source_type"`
	Health     HealthStatus      `json:"health"`
	Sync       AdapterSyncStatus `json:"sync"`
}

type ProviderStatus struct {
	IsHealthy           bool            `json:"is_healthy"`
	CachingEnabled      bool            `json:"caching_enabled"`
	SyncState           SyncRunState    `json:"sync_state"`
	LastFullSync        *time.Time      `json:"last_full_sync,omitempty"`
	LastIncrementalSync *time.Time      `json:"last_incremental_sync,omitempty"`
	Cache               CacheStatistics `json:"cache"`
	CacheHealth         HealthStatus    `json:"cache_health"`
	Adapters            []AdapterStatus `json:"adapters"`
	TotalContacts       int             `json:"total_contacts"`
	TotalTrustSignals   int             `json:"total_trust_signals"`
	CheckedAt           time.Time       `json:"checked_at"`
}

// PublicTrust is the simplified view handed to classification callers.
type PublicTrust struct {
	Email         string           `json:"email"`
	Known         bool             `json:"known"`
	Strength      ExternalStrength `json:"strength"`
	Score         float64          `json:"score"`
	Justification []string         `json:"justification"`
}
