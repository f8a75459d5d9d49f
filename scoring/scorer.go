// ABOUTME: Trust scoring for address-book contacts
// ABOUTME: Pure, CPU-only mapping from contact and interaction features to a TrustSignal
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/harperreed/trustcache/models"
)

// Score thresholds for the strength buckets.
const (
	StrongThreshold = 0.8
	WeakThreshold   = 0.3
)

// Weights of the score components. Their sum is 1.0.
const (
	baseKnownWeight       = 0.3
	relationshipWeight    = 0.4
	interactionWeight     = 0.2
	recentInteractionBump = 0.1
	olderInteractionBump  = 0.05

	interactionSaturation = 20
	recentWindow          = 30 * 24 * time.Hour
	olderWindow           = 90 * 24 * time.Hour
)

// Justification strings surfaced to callers.
const (
	ReasonKnown   = "Contact found in address book"
	ReasonUnknown = "Contact not found in address book"
)

// StrengthFromScore buckets a score: >= 0.8 Strong, >= 0.3 Weak, otherwise None.
func StrengthFromScore(score float64) models.Strength {
	switch {
	case score >= StrongThreshold:
		return models.StrengthStrong
	case score >= WeakThreshold:
		return models.StrengthWeak
	default:
		return models.StrengthNone
	}
}

// Scorer computes trust signals. The zero value is not usable; call NewScorer.
type Scorer struct {
	now func() time.Time
}

// NewScorer returns a scorer using the wall clock.
func NewScorer() *Scorer {
	return &Scorer{now: func() time.Time { return time.Now().UTC() }}
}

// WithClock returns a scorer that reads time from now. Used by tests and by
// callers that need computedAt to follow their own clock.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	return &Scorer{now: now}
}

// Score computes a signal for contact. A nil contact yields the unknown signal.
func (s *Scorer) Score(contact *models.Contact, features models.InteractionFeatures) *models.TrustSignal {
	return Compute(contact, features, s.now())
}

// Compute is the pure form of Score with an explicit clock reading.
func Compute(contact *models.Contact, features models.InteractionFeatures, now time.Time) *models.TrustSignal {
	if contact == nil {
		return &models.TrustSignal{
			Strength:      models.StrengthNone,
			Score:         0,
			Justification: []string{ReasonUnknown},
			ComputedAt:    now,
		}
	}

	justification := []string{ReasonKnown}
	score := baseKnownWeight

	strength := clamp(contact.RelationshipStrength)
	score += relationshipWeight * strength

	count := features.InteractionCount
	if count < 0 {
		count = 0
	}
	if count > 0 {
		score += interactionWeight * float64(min(count, interactionSaturation)) / interactionSaturation
		justification = append(justification, fmt.Sprintf("%d recorded interactions", count))
	}

	if last := features.LastInteractionDate; last != nil {
		age := now.Sub(*last)
		switch {
		case age <= recentWindow:
			score += recentInteractionBump
			justification = append(justification, "Interacted within the last 30 days")
		case age <= olderWindow:
			score += olderInteractionBump
			justification = append(justification, "Interacted within the last 90 days")
		}
	}

	if contact.OrganizationName != "" {
		justification = append(justification, "Organization: "+contact.OrganizationName)
	}

	score = clamp(round(score))
	level := StrengthFromScore(score)
	justification = append(justification, "Relationship strength: "+level.Label())

	var lastInteraction *time.Time
	if features.LastInteractionDate != nil {
		t := *features.LastInteractionDate
		lastInteraction = &t
	}

	return &models.TrustSignal{
		ContactID:           contact.ID,
		Strength:            level,
		Score:               score,
		LastInteractionDate: lastInteraction,
		Justification:       justification,
		ComputedAt:          now,
		InteractionCount:    count,
		EmailAddress:        contact.PrimaryEmail,
		SourceType:          string(contact.SourceType),
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// round trims float noise so 0.3+0.4+0.1 lands on 0.8 exactly.
func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
