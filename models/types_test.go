package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollapse(t *testing.T) {
	tests := []struct {
		in   Strength
		want ExternalStrength
	}{
		{StrengthNone, ExternalNone},
		{StrengthWeak, ExternalWeak},
		{StrengthModerate, ExternalStrong},
		{StrengthStrong, ExternalStrong},
		{StrengthTrusted, ExternalStrong},
		{Strength("bogus"), ExternalNone},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, Collapse(tt.in))
		})
	}
}

func TestParseStrength(t *testing.T) {
	s, err := ParseStrength("trusted")
	assert.NoError(t, err)
	assert.Equal(t, StrengthTrusted, s)

	_, err = ParseStrength("excellent")
	assert.Error(t, err)
}

func TestTrustSignalIsStale(t *testing.T) {
	now := time.Now()
	expiry := 24 * time.Hour

	old := &TrustSignal{ComputedAt: now.Add(-25 * time.Hour)}
	fresh := &TrustSignal{ComputedAt: now.Add(-1 * time.Hour)}

	assert.True(t, old.IsStale(now, expiry))
	assert.False(t, fresh.IsStale(now, expiry))
}

func TestNormalizeEmails(t *testing.T) {
	c := &Contact{
		PrimaryEmail: "  Alice@Example.COM ",
		AllEmails:    []string{"alice@example.com", "ALICE@work.io", "", "alice@work.io"},
	}
	c.NormalizeEmails()

	assert.Equal(t, "alice@example.com", c.PrimaryEmail)
	assert.Equal(t, []string{"alice@example.com", "alice@work.io"}, c.AllEmails)
}

func TestNormalizeEmailsPicksPrimaryWhenMissing(t *testing.T) {
	c := &Contact{AllEmails: []string{"Bob@Example.com", "bob@home.net"}}
	c.NormalizeEmails()

	assert.Equal(t, "bob@example.com", c.PrimaryEmail)
	assert.Contains(t, c.AllEmails, c.PrimaryEmail)
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("a@b.co"))
	assert.False(t, ValidEmail(""))
	assert.False(t, ValidEmail("not-an-email"))
	assert.False(t, ValidEmail("Name <a@b.co>"))
}

func TestContactName(t *testing.T) {
	assert.Equal(t, "Ada", (&Contact{DisplayName: "Ada"}).Name())
	assert.Equal(t, "Ada Lovelace", (&Contact{GivenName: "Ada", FamilyName: "Lovelace"}).Name())
	assert.Equal(t, "ada@example.com", (&Contact{PrimaryEmail: "ada@example.com"}).Name())
}
