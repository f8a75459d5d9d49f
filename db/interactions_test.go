package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/trustcache/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordInteraction(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	in := &models.Interaction{Email: " Alice@Example.com ", Direction: models.DirectionSent}
	require.NoError(t, s.RecordInteraction(ctx, in))

	assert.NotEqual(t, uuid.Nil, in.ID)
	assert.Equal(t, "alice@example.com", in.Email)
	assert.False(t, in.OccurredAt.IsZero())
}

func TestRecordInteractionValidation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	assert.True(t, IsValidationError(s.RecordInteraction(ctx, nil)))
	assert.True(t, IsValidationError(s.RecordInteraction(ctx, &models.Interaction{Email: "nope", Direction: models.DirectionSent})))
	assert.True(t, IsValidationError(s.RecordInteraction(ctx, &models.Interaction{Email: "a@example.com", Direction: "forwarded"})))
}

func TestInteractionFeatures(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	records := []*models.Interaction{
		{Email: "a@example.com", Direction: models.DirectionSent, OccurredAt: base},
		{Email: "a@example.com", Direction: models.DirectionReceived, OccurredAt: base.Add(time.Hour)},
		{Email: "alias@example.org", Direction: models.DirectionReceived, OccurredAt: base.Add(48 * time.Hour)},
		{Email: "other@example.com", Direction: models.DirectionSent, OccurredAt: base.Add(96 * time.Hour)},
	}
	for _, r := range records {
		require.NoError(t, s.RecordInteraction(ctx, r))
	}

	features, err := s.InteractionFeatures(ctx, []string{"A@example.com", "alias@example.org"})
	require.NoError(t, err)

	assert.Equal(t, 3, features.InteractionCount)
	assert.Equal(t, 1, features.SentCount)
	assert.Equal(t, 2, features.ReceivedCount)
	require.NotNil(t, features.LastInteractionDate)
	assert.True(t, features.LastInteractionDate.Equal(base.Add(48*time.Hour)))
}

func TestInteractionFeaturesEmpty(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	features, err := s.InteractionFeatures(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, features.InteractionCount)

	features, err = s.InteractionFeatures(ctx, []string{"nobody@example.com"})
	require.NoError(t, err)
	assert.Zero(t, features.InteractionCount)
	assert.Nil(t, features.LastInteractionDate)
}
