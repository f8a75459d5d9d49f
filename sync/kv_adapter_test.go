package sync

import (
	"context"
	"testing"
	"time"

	"github.com/harperreed/trustcache/charm"
	"github.com/harperreed/trustcache/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVAdapterFullThenIncremental(t *testing.T) {
	client := charm.NewTestClient(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, PutKVContact(client, &models.Contact{
		ID:                   "kv-1",
		AllEmails:            []string{"Dana@Example.com"},
		DisplayName:          "Dana",
		RelationshipStrength: 0.7,
	}, base))
	require.NoError(t, PutKVContact(client, &models.Contact{
		ID:        "kv-2",
		AllEmails: []string{"eve@example.com"},
	}, base.Add(time.Minute)))

	a := NewKVContactsAdapter(client, true, nil)
	full, err := a.FetchContacts(ctx, "")
	require.NoError(t, err)
	require.Len(t, full.Contacts, 2)
	assert.Equal(t, base.Add(time.Minute).Format(time.RFC3339Nano), full.NextToken)

	for _, c := range full.Contacts {
		assert.Equal(t, models.SourceCharmKV, c.SourceType)
		if c.ID == "kv-1" {
			assert.Equal(t, "dana@example.com", c.PrimaryEmail)
			assert.InDelta(t, 0.7, c.RelationshipStrength, 1e-9)
		}
	}

	// Nothing changed since the token
	again, err := a.FetchContacts(ctx, full.NextToken)
	require.NoError(t, err)
	assert.Empty(t, again.Contacts)
	assert.Empty(t, again.NextToken)

	require.NoError(t, PutKVContact(client, &models.Contact{ID: "kv-3", AllEmails: []string{"frank@example.com"}}, base.Add(time.Hour)))
	require.NoError(t, DeleteKVContact(client, "kv-1", base.Add(2*time.Hour)))

	inc, err := a.FetchContacts(ctx, full.NextToken)
	require.NoError(t, err)
	require.Len(t, inc.Contacts, 1)
	assert.Equal(t, "kv-3", inc.Contacts[0].ID)
	assert.Equal(t, []string{"kv-1"}, inc.DeletedIDs)
	assert.Equal(t, base.Add(2*time.Hour).Format(time.RFC3339Nano), inc.NextToken)

	status, err := a.GetSyncStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsEnabled)
	assert.True(t, status.HasContinuationToken)
	assert.Equal(t, 1, status.LastContactCount)
}

func TestKVAdapterSkipsUnreadableRecords(t *testing.T) {
	client := charm.NewTestClient(t)
	require.NoError(t, client.Set([]byte(KVContactPrefix+"junk"), []byte("{not json")))
	require.NoError(t, PutKVContact(client, &models.Contact{ID: "kv-1", AllEmails: []string{"a@example.com"}}, time.Now()))

	a := NewKVContactsAdapter(client, true, nil)
	res, err := a.FetchContacts(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, res.Contacts, 1)
}

func TestKVAdapterSkipsRecordsWithoutEmails(t *testing.T) {
	client := charm.NewTestClient(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, PutKVContact(client, &models.Contact{ID: "kv-good", AllEmails: []string{"Good@Example.com"}}, base))
	// Written by another device without going through PutKVContact
	require.NoError(t, client.Set([]byte(KVContactPrefix+"kv-bad"),
		[]byte(`{"id":"kv-bad","all_emails":[],"updated_at":"2026-04-01T13:00:00Z"}`)))
	require.NoError(t, client.Set([]byte(KVContactPrefix+"kv-malformed"),
		[]byte(`{"id":"kv-malformed","all_emails":["not an email"],"updated_at":"2026-04-01T12:30:00Z"}`)))

	a := NewKVContactsAdapter(client, true, nil)
	res, err := a.FetchContacts(ctx, "")
	require.NoError(t, err)
	require.Len(t, res.Contacts, 1)
	assert.Equal(t, "kv-good", res.Contacts[0].ID)
	assert.Equal(t, "good@example.com", res.Contacts[0].PrimaryEmail)
	assert.Equal(t, base.Add(time.Hour).Format(time.RFC3339Nano), res.NextToken, "token moves past skipped records")

	h := newHarness(t)
	coord := h.coordinator(false, a)
	for i := 0; i < 2; i++ {
		result, err := coord.Sync(ctx, false)
		require.NoError(t, err)
		require.True(t, result.IsSuccessful, "sync %d: %+v", i, result.AdapterResults)
	}

	id, err := h.store.GetContactIDByEmail(ctx, "good@example.com")
	require.NoError(t, err)
	assert.Equal(t, "kv-good", id)

	state, err := h.store.GetSyncState(ctx, string(models.SourceCharmKV))
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Hour).Format(time.RFC3339Nano), state.ContinuationToken)
}

func TestKVAdapterBadTokenFallsBackToFull(t *testing.T) {
	client := charm.NewTestClient(t)
	require.NoError(t, PutKVContact(client, &models.Contact{ID: "kv-1", AllEmails: []string{"a@example.com"}}, time.Now()))

	a := NewKVContactsAdapter(client, true, nil)
	res, err := a.FetchContacts(context.Background(), "not-a-time")
	require.NoError(t, err)
	assert.Len(t, res.Contacts, 1)
}

func TestPutKVContactValidates(t *testing.T) {
	client := charm.NewTestClient(t)

	assert.Error(t, PutKVContact(client, nil, time.Now()))
	assert.Error(t, PutKVContact(client, &models.Contact{ID: "x"}, time.Now()))
	assert.Error(t, PutKVContact(client, &models.Contact{ID: "x", AllEmails: []string{"bad"}}, time.Now()))
}

func TestKVAdapterHealth(t *testing.T) {
	client := charm.NewTestClient(t)

	h, err := NewKVContactsAdapter(client, true, nil).HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.HealthOK, h.Level)

	disabled := NewKVContactsAdapter(nil, true, nil)
	assert.False(t, disabled.IsEnabled())
}
