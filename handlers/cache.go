// ABOUTME: Sync, cache, and status MCP tool handlers
// ABOUTME: Implements sync_contacts, clear_cache, and get_status tools
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/trustcache/models"
	"github.com/harperreed/trustcache/provider"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type CacheHandlers struct {
	provider *provider.Provider
}

func NewCacheHandlers(p *provider.Provider) *CacheHandlers {
	return &CacheHandlers{provider: p}
}

type SyncContactsInput struct {
	Full bool `json:"full,omitempty" jsonschema:"Ignore stored continuation tokens and fetch every contact"`
}

type AdapterResultOutput struct {
	Source               string `json:"source"`
	Successful           bool   `json:"successful"`
	ContactsSynced       int    `json:"contacts_synced"`
	ContactsDeleted      int    `json:"contacts_deleted,omitempty"`
	HasContinuationToken bool   `json:"has_continuation_token"`
	ErrorKind            string `json:"error_kind,omitempty"`
	Error                string `json:"error,omitempty"`
	DurationMS           int64  `json:"duration_ms"`
}

type SyncOutput struct {
	RunID          string                `json:"run_id"`
	State          string                `json:"state"`
	FullSync       bool                  `json:"full_sync"`
	Skipped        bool                  `json:"skipped,omitempty"`
	Successful     bool                  `json:"successful"`
	ContactsSynced int                   `json:"contacts_synced"`
	Adapters       []AdapterResultOutput `json:"adapters"`
	StartedAt      string                `json:"started_at"`
	CompletedAt    string                `json:"completed_at"`
}

func (h *CacheHandlers) SyncContacts(ctx context.Context, request *mcp.CallToolRequest, input SyncContactsInput) (*mcp.CallToolResult, SyncOutput, error) {
	result, err := h.provider.SyncContacts(ctx, input.Full)
	if err != nil {
		return nil, SyncOutput{}, fmt.Errorf("sync failed: %w", err)
	}
	return nil, syncResultToOutput(result), nil
}

type ClearCacheInput struct{}

type ClearCacheOutput struct {
	Cleared bool `json:"cleared"`
}

func (h *CacheHandlers) ClearCache(ctx context.Context, request *mcp.CallToolRequest, input ClearCacheInput) (*mcp.CallToolResult, ClearCacheOutput, error) {
	cleared, err := h.provider.ClearCache(ctx)
	if err != nil {
		return nil, ClearCacheOutput{}, fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil, ClearCacheOutput{Cleared: cleared}, nil
}

type GetStatusInput struct{}

type AdapterStatusOutput struct {
	Source               string `json:"source"`
	Healthy              bool   `json:"healthy"`
	Level                string `json:"level"`
	Message              string `json:"message,omitempty"`
	Enabled              bool   `json:"enabled"`
	HasContinuationToken bool   `json:"has_continuation_token"`
	LastError            string `json:"last_error,omitempty"`
}

type StatusOutput struct {
	Healthy             bool                  `json:"healthy"`
	CachingEnabled      bool                  `json:"caching_enabled"`
	SyncState           string                `json:"sync_state"`
	LastFullSync        *string               `json:"last_full_sync,omitempty"`
	LastIncrementalSync *string               `json:"last_incremental_sync,omitempty"`
	HitCount            int64                 `json:"hit_count"`
	MissCount           int64                 `json:"miss_count"`
	HitRate             float64               `json:"hit_rate"`
	CacheMessage        string                `json:"cache_message,omitempty"`
	TotalContacts       int                   `json:"total_contacts"`
	TotalTrustSignals   int                   `json:"total_trust_signals"`
	Adapters            []AdapterStatusOutput `json:"adapters"`
}

func (h *CacheHandlers) GetStatus(ctx context.Context, request *mcp.CallToolRequest, input GetStatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	status, err := h.provider.GetStatus(ctx)
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("failed to get status: %w", err)
	}
	return nil, statusToOutput(status), nil
}

func syncResultToOutput(r *models.SyncResult) SyncOutput {
	out := SyncOutput{
		RunID:          r.RunID,
		State:          string(r.State),
		FullSync:       r.FullSync,
		Skipped:        r.Skipped,
		Successful:     r.IsSuccessful,
		ContactsSynced: r.ContactsSynced,
		Adapters:       make([]AdapterResultOutput, 0, len(r.AdapterResults)),
		StartedAt:      r.StartedAt.Format(time.RFC3339),
		CompletedAt:    r.CompletedAt.Format(time.RFC3339),
	}
	for _, ar := range r.AdapterResults {
		out.Adapters = append(out.Adapters, AdapterResultOutput{
			Source:               string(ar.SourceType),
			Successful:           ar.IsSuccessful,
			ContactsSynced:       ar.ContactsSynced,
			ContactsDeleted:      ar.ContactsDeleted,
			HasContinuationToken: ar.HasContinuationToken,
			ErrorKind:            ar.ErrorKind,
			Error:                ar.ErrorMessage,
			DurationMS:           ar.Duration.Milliseconds(),
		})
	}
	return out
}

func statusToOutput(s *models.ProviderStatus) StatusOutput {
	out := StatusOutput{
		Healthy:             s.IsHealthy,
		CachingEnabled:      s.CachingEnabled,
		SyncState:           string(s.SyncState),
		LastFullSync:        formatTimePtr(s.LastFullSync),
		LastIncrementalSync: formatTimePtr(s.LastIncrementalSync),
		HitCount:            s.Cache.HitCount,
		MissCount:           s.Cache.MissCount,
		HitRate:             s.Cache.CombinedHitRate,
		CacheMessage:        s.CacheHealth.Message,
		TotalContacts:       s.TotalContacts,
		TotalTrustSignals:   s.TotalTrustSignals,
		Adapters:            make([]AdapterStatusOutput, 0, len(s.Adapters)),
	}
	for _, a := range s.Adapters {
		out.Adapters = append(out.Adapters, AdapterStatusOutput{
			Source:               string(a.SourceType),
			Healthy:              a.Health.Healthy,
			Level:                a.Health.Level,
			Message:              a.Health.Message,
			Enabled:              a.Sync.IsEnabled,
			HasContinuationToken: a.Sync.HasContinuationToken,
			LastError:            a.Sync.LastError,
		})
	}
	return out
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
