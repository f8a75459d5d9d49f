// ABOUTME: Caller-facing trust provider for the email classification layer
// ABOUTME: Cache-first trust lookups with recompute-on-stale, sync, and status aggregation
package provider

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/trustcache/cache"
	"github.com/harperreed/trustcache/models"
	"github.com/harperreed/trustcache/scoring"
	"github.com/harperreed/trustcache/sync"
	"golang.org/x/sync/errgroup"
)

// DefaultTrustSignalExpiry is how long a computed signal stays fresh.
const DefaultTrustSignalExpiry = 24 * time.Hour

// Interactions is the interaction-feature source. *db.Store satisfies it.
type Interactions interface {
	InteractionFeatures(ctx context.Context, emails []string) (models.InteractionFeatures, error)
	RecordInteraction(ctx context.Context, in *models.Interaction) error
}

// Options configures a Provider.
type Options struct {
	CachingEnabled    bool
	TrustSignalExpiry time.Duration
	Logger            *log.Logger
}

// Provider answers trust questions about email addresses.
type Provider struct {
	cache        *cache.TrustCache
	interactions Interactions
	coordinator  *sync.Coordinator
	opts         Options
	logger       *log.Logger
	now          func() time.Time
}

// New creates a provider.
func New(c *cache.TrustCache, interactions Interactions, coordinator *sync.Coordinator, opts Options) *Provider {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.TrustSignalExpiry <= 0 {
		opts.TrustSignalExpiry = DefaultTrustSignalExpiry
	}

	return &Provider{
		cache:        c,
		interactions: interactions,
		coordinator:  coordinator,
		opts:         opts,
		logger:       logger.WithPrefix("provider"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// GetTrustSignalForEmail returns the trust signal for the contact owning
// email, recomputing it when missing or stale. Unknown addresses and every
// internal failure yield nil, nil so lookups never block classification.
func (p *Provider) GetTrustSignalForEmail(ctx context.Context, email string) (*models.TrustSignal, error) {
	sig, err := p.trustSignalForEmail(ctx, email)
	if err != nil {
		p.logger.Error("trust lookup failed, treating contact as unknown", "email", models.NormalizeEmail(email), "error", err)
		return nil, nil
	}
	return sig, nil
}

func (p *Provider) trustSignalForEmail(ctx context.Context, email string) (*models.TrustSignal, error) {
	contact, err := p.cache.GetContactByEmail(ctx, email)
	if err != nil || contact == nil {
		return nil, err
	}

	current, err := p.cache.GetTrustSignal(ctx, contact.ID)
	if err != nil {
		return nil, err
	}

	now := p.now()
	if current != nil && !current.IsStale(now, p.opts.TrustSignalExpiry) {
		return current, nil
	}

	sig, err := p.recompute(ctx, contact, current, now)
	if err != nil {
		return nil, err
	}
	sig.EmailAddress = models.NormalizeEmail(email)

	p.store(ctx, sig)
	return sig, nil
}

// recompute scores contact. computedAt always moves forward past previous.
func (p *Provider) recompute(ctx context.Context, contact *models.Contact, previous *models.TrustSignal, now time.Time) (*models.TrustSignal, error) {
	features, err := p.interactions.InteractionFeatures(ctx, contact.AllEmails)
	if err != nil {
		return nil, err
	}

	sig := scoring.Compute(contact, features, now)
	if previous != nil && !sig.ComputedAt.After(previous.ComputedAt) {
		sig.ComputedAt = previous.ComputedAt.Add(time.Nanosecond)
	}

	p.logger.Debug("recomputed trust signal", "contact", contact.ID, "strength", sig.Strength, "score", sig.Score)
	return sig, nil
}

func (p *Provider) store(ctx context.Context, sig *models.TrustSignal) {
	if !p.opts.CachingEnabled {
		return
	}
	if err := p.cache.CacheTrustSignal(ctx, sig); err != nil {
		p.logger.Warn("failed to cache trust signal", "contact", sig.ContactID, "error", err)
	}
}

// LookupContact resolves email to its contact, or nil when unknown.
func (p *Provider) LookupContact(ctx context.Context, email string) (*models.Contact, error) {
	return p.cache.GetContactByEmail(ctx, email)
}

// GetPublicTrust returns the collapsed three-level view for email.
func (p *Provider) GetPublicTrust(ctx context.Context, email string) models.PublicTrust {
	out := models.PublicTrust{
		Email:    models.NormalizeEmail(email),
		Strength: models.ExternalNone,
	}

	sig, _ := p.GetTrustSignalForEmail(ctx, email)
	if sig == nil {
		out.Justification = []string{scoring.ReasonUnknown}
		return out
	}

	out.Known = true
	out.Strength = models.Collapse(sig.Strength)
	out.Score = sig.Score
	out.Justification = append([]string(nil), sig.Justification...)
	if len(out.Justification) == 0 {
		out.Justification = []string{scoring.ReasonKnown}
	}
	return out
}

// ComputeBatchTrustSignals scores every contact now, regardless of
// staleness, and caches the results. Contacts whose features cannot be read
// are scored without interaction history.
func (p *Provider) ComputeBatchTrustSignals(ctx context.Context, contacts []*models.Contact) (map[string]*models.TrustSignal, error) {
	out := make(map[string]*models.TrustSignal, len(contacts))
	now := p.now()

	for _, contact := range contacts {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if contact == nil || contact.ID == "" {
			continue
		}

		features, err := p.interactions.InteractionFeatures(ctx, contact.AllEmails)
		if err != nil {
			p.logger.Warn("failed to read interaction features", "contact", contact.ID, "error", err)
			features = models.InteractionFeatures{}
		}

		sig := scoring.Compute(contact, features, now)
		if previous, err := p.cache.GetTrustSignal(ctx, contact.ID); err == nil && previous != nil && !sig.ComputedAt.After(previous.ComputedAt) {
			sig.ComputedAt = previous.ComputedAt.Add(time.Nanosecond)
		}

		p.store(ctx, sig)
		out[contact.ID] = sig
	}

	return out, nil
}

// SyncContacts runs a sync through the coordinator.
func (p *Provider) SyncContacts(ctx context.Context, forceFull bool) (*models.SyncResult, error) {
	return p.coordinator.Sync(ctx, forceFull)
}

// ClearCache empties every cache table and resets the statistics.
func (p *Provider) ClearCache(ctx context.Context) (bool, error) {
	return p.cache.ClearCache(ctx)
}

// RecordInteraction logs mail exchanged with email. The contact's signal
// picks it up on its next recomputation.
func (p *Provider) RecordInteraction(ctx context.Context, email, direction string, at time.Time) (*models.Interaction, error) {
	in := &models.Interaction{Email: email, Direction: direction, OccurredAt: at}
	if err := p.interactions.RecordInteraction(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

// GetStatus aggregates adapter health, cache statistics, and counters. It
// never fails; adapter probes that error are left out and logged.
func (p *Provider) GetStatus(ctx context.Context) (*models.ProviderStatus, error) {
	status := &models.ProviderStatus{
		CachingEnabled: p.opts.CachingEnabled,
		SyncState:      p.coordinator.State(),
		LastFullSync:   p.coordinator.LastFullSync(),
		Cache:          p.cache.Statistics(),
		CacheHealth:    p.cache.Health(),
		CheckedAt:      p.now(),
	}
	status.LastIncrementalSync = p.coordinator.LastIncrementalSync()

	status.Adapters = p.probeAdapters(ctx)

	if n, err := p.cache.CountContacts(ctx); err != nil {
		p.logger.Warn("failed to count contacts", "error", err)
	} else {
		status.TotalContacts = n
	}
	if n, err := p.cache.CountTrustSignals(ctx); err != nil {
		p.logger.Warn("failed to count trust signals", "error", err)
	} else {
		status.TotalTrustSignals = n
	}

	status.IsHealthy = status.CacheHealth.Healthy
	for _, a := range status.Adapters {
		if !a.Health.Healthy {
			status.IsHealthy = false
		}
	}
	return status, nil
}

var errNoProbeResult = errors.New("adapter returned no result")

func (p *Provider) probeAdapters(ctx context.Context) []models.AdapterStatus {
	adapters := p.coordinator.Adapters()
	probes := make([]*models.AdapterStatus, len(adapters))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range adapters {
		g.Go(func() error {
			health, err := a.HealthCheck(gctx)
			if err == nil && health == nil {
				err = errNoProbeResult
			}
			if err != nil {
				p.logger.Warn("adapter health probe failed, omitting from status", "source", a.SourceType(), "error", err)
				return nil
			}
			syncStatus, err := a.GetSyncStatus(gctx)
			if err == nil && syncStatus == nil {
				err = errNoProbeResult
			}
			if err != nil {
				p.logger.Warn("adapter sync status failed, omitting from status", "source", a.SourceType(), "error", err)
				return nil
			}
			probes[i] = &models.AdapterStatus{
				SourceType: a.SourceType(),
				Health:     *health,
				Sync:       *syncStatus,
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.AdapterStatus, 0, len(probes))
	for _, s := range probes {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}
