// ABOUTME: Email normalization and contact alias helpers
// ABOUTME: Keeps primaryEmail inside a de-duplicated, lowercase allEmails set
package models

import (
	"net/mail"
	"strings"
)

// NormalizeEmail trims and lowercases an address for comparison and indexing.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether a normalized address is a bare addr-spec.
func ValidEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email
}

// NormalizeEmails lowercases and de-duplicates the contact's addresses, and
// makes sure PrimaryEmail is set and a member of AllEmails. Order is kept,
// with the primary address first.
func (c *Contact) NormalizeEmails() {
	primary := NormalizeEmail(c.PrimaryEmail)

	seen := make(map[string]bool, len(c.AllEmails)+1)
	emails := make([]string, 0, len(c.AllEmails)+1)
	if primary != "" {
		seen[primary] = true
		emails = append(emails, primary)
	}
	for _, e := range c.AllEmails {
		n := NormalizeEmail(e)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		emails = append(emails, n)
	}

	if primary == "" && len(emails) > 0 {
		primary = emails[0]
	}

	c.PrimaryEmail = primary
	c.AllEmails = emails
}

// HasEmail reports whether the contact owns the given address.
func (c *Contact) HasEmail(email string) bool {
	n := NormalizeEmail(email)
	for _, e := range c.AllEmails {
		if NormalizeEmail(e) == n {
			return true
		}
	}
	return false
}

// Name returns the best available display name.
func (c *Contact) Name() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	full := strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	if full != "" {
		return full
	}
	return c.PrimaryEmail
}
