package scoring

import (
	"testing"
	"time"

	"github.com/harperreed/trustcache/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrengthFromScore(t *testing.T) {
	tests := []struct {
		score float64
		want  models.Strength
	}{
		{0.85, models.StrengthStrong},
		{0.8, models.StrengthStrong},
		{1.0, models.StrengthStrong},
		{0.79, models.StrengthWeak},
		{0.5, models.StrengthWeak},
		{0.3, models.StrengthWeak},
		{0.29, models.StrengthNone},
		{0.1, models.StrengthNone},
		{0, models.StrengthNone},
	}

	for _, tt := range tests {
		if got := StrengthFromScore(tt.score); got != tt.want {
			t.Errorf("StrengthFromScore(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestComputeUnknownContact(t *testing.T) {
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	sig := Compute(nil, models.InteractionFeatures{}, now)
	assert.Equal(t, models.StrengthNone, sig.Strength)
	assert.Zero(t, sig.Score)
	assert.Equal(t, []string{ReasonUnknown}, sig.Justification)
	assert.True(t, sig.ComputedAt.Equal(now))
}

func TestComputeKnownContactWithoutHistory(t *testing.T) {
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	c := &models.Contact{ID: "c1", PrimaryEmail: "a@example.com", SourceType: models.SourceGoogleContacts}

	sig := Compute(c, models.InteractionFeatures{}, now)
	assert.InDelta(t, 0.3, sig.Score, 1e-9)
	assert.Equal(t, models.StrengthWeak, sig.Strength)
	require.NotEmpty(t, sig.Justification)
	assert.Equal(t, ReasonKnown, sig.Justification[0])
	assert.Contains(t, sig.Justification, "Relationship strength: Weak")
	assert.Equal(t, "c1", sig.ContactID)
	assert.Equal(t, "a@example.com", sig.EmailAddress)
	assert.Equal(t, "google_contacts", sig.SourceType)
}

func TestComputeStrongContact(t *testing.T) {
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	last := now.Add(-3 * 24 * time.Hour)
	c := &models.Contact{ID: "c1", PrimaryEmail: "a@example.com", RelationshipStrength: 1.0}

	sig := Compute(c, models.InteractionFeatures{InteractionCount: 40, LastInteractionDate: &last}, now)
	assert.InDelta(t, 1.0, sig.Score, 1e-9)
	assert.Equal(t, models.StrengthStrong, sig.Strength)
	assert.Equal(t, 40, sig.InteractionCount)
	require.NotNil(t, sig.LastInteractionDate)
	assert.True(t, sig.LastInteractionDate.Equal(last))
}

func TestComputeHitsStrongBoundaryExactly(t *testing.T) {
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	last := now.Add(-24 * time.Hour)
	c := &models.Contact{ID: "c1", PrimaryEmail: "a@example.com", RelationshipStrength: 1.0}

	// 0.3 + 0.4 + 0.1 recency
	sig := Compute(c, models.InteractionFeatures{LastInteractionDate: &last}, now)
	assert.Equal(t, 0.8, sig.Score)
	assert.Equal(t, models.StrengthStrong, sig.Strength)
}

func TestComputeRecencyWindows(t *testing.T) {
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	c := &models.Contact{ID: "c1", PrimaryEmail: "a@example.com"}

	at := func(days int) *time.Time {
		t := now.Add(-time.Duration(days) * 24 * time.Hour)
		return &t
	}

	recent := Compute(c, models.InteractionFeatures{InteractionCount: 1, LastInteractionDate: at(10)}, now)
	older := Compute(c, models.InteractionFeatures{InteractionCount: 1, LastInteractionDate: at(60)}, now)
	ancient := Compute(c, models.InteractionFeatures{InteractionCount: 1, LastInteractionDate: at(400)}, now)

	assert.InDelta(t, 0.41, recent.Score, 1e-9)
	assert.InDelta(t, 0.36, older.Score, 1e-9)
	assert.InDelta(t, 0.31, ancient.Score, 1e-9)
}

func TestComputeClampsInputs(t *testing.T) {
	now := time.Now()
	c := &models.Contact{ID: "c1", PrimaryEmail: "a@example.com", RelationshipStrength: 7}

	sig := Compute(c, models.InteractionFeatures{InteractionCount: -5}, now)
	assert.LessOrEqual(t, sig.Score, 1.0)
	assert.GreaterOrEqual(t, sig.Score, 0.0)
	assert.Zero(t, sig.InteractionCount)
}

func TestScorerUsesClock(t *testing.T) {
	fixed := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewScorer().WithClock(func() time.Time { return fixed })

	sig := s.Score(&models.Contact{ID: "c1", PrimaryEmail: "a@example.com"}, models.InteractionFeatures{})
	assert.True(t, sig.ComputedAt.Equal(fixed))
}

func TestJustificationNeverEmpty(t *testing.T) {
	now := time.Now()
	for _, c := range []*models.Contact{nil, {ID: "c1", PrimaryEmail: "a@example.com"}} {
		sig := Compute(c, models.InteractionFeatures{}, now)
		assert.NotEmpty(t, sig.Justification)
	}
}
