// ABOUTME: Google Contacts source adapter over the People API
// ABOUTME: Pages through connections with sync tokens and reports deleted people
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	gosync "sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/trustcache/models"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/people/v1"
)

const (
	googlePageSize     = 1000
	googlePersonFields = "names,emailAddresses,organizations,memberships,metadata"
	starredGroup       = "contactGroups/starred"
)

// Relationship strength assigned from what the address book tells us.
const (
	strengthStarred   = 0.9
	strengthNamed     = 0.5
	strengthEmailOnly = 0.25
)

// GoogleContactsAdapter fetches contacts from the Google People API.
type GoogleContactsAdapter struct {
	service *people.Service
	enabled bool
	logger  *log.Logger

	mu     gosync.Mutex
	status models.AdapterSyncStatus
}

// NewGoogleContactsAdapter wraps an authenticated People service.
func NewGoogleContactsAdapter(service *people.Service, enabled bool, logger *log.Logger) *GoogleContactsAdapter {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &GoogleContactsAdapter{
		service: service,
		enabled: enabled && service != nil,
		logger:  logger.WithPrefix("google"),
		status: models.AdapterSyncStatus{
			SourceType: models.SourceGoogleContacts,
		},
	}
}

func (a *GoogleContactsAdapter) SourceType() models.SourceType {
	return models.SourceGoogleContacts
}

func (a *GoogleContactsAdapter) IsEnabled() bool {
	return a.enabled
}

// FetchContacts lists all connections, or the changes since token. An
// expired token falls back to a full listing within the same call.
func (a *GoogleContactsAdapter) FetchContacts(ctx context.Context, token string) (*FetchResult, error) {
	res, err := a.list(ctx, token)
	if err != nil && token != "" && isExpiredSyncToken(err) {
		a.logger.Warn("sync token expired, falling back to full listing")
		res, err = a.list(ctx, "")
	}

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
	a.status.HasContinuationToken = res.NextToken != ""
	return res, nil
}

func (a *GoogleContactsAdapter) list(ctx context.Context, syncToken string) (*FetchResult, error) {
	out := &FetchResult{}
	pageToken := ""
	skipped := 0

	for {
		call := a.service.People.Connections.List("people/me").
			PageSize(googlePageSize).
			PersonFields(googlePersonFields).
			RequestSyncToken(true).
			Context(ctx)

		if syncToken != "" {
			call = call.SyncToken(syncToken)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		response, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch contacts: %w", err)
		}
		if response == nil {
			break
		}

		for _, person := range response.Connections {
			if person == nil {
				continue
			}
			if person.Metadata != nil && person.Metadata.Deleted {
				out.DeletedIDs = append(out.DeletedIDs, person.ResourceName)
				continue
			}

			contact := convertPerson(person)
			if contact == nil {
				// A changed person with no usable email cannot be stored, so
				// drop whatever copy the cache still holds.
				if syncToken != "" && person.ResourceName != "" {
					out.DeletedIDs = append(out.DeletedIDs, person.ResourceName)
					continue
				}
				skipped++
				continue
			}
			out.Contacts = append(out.Contacts, contact)
		}

		if response.NextSyncToken != "" {
			out.NextToken = response.NextSyncToken
		}

		pageToken = response.NextPageToken
		if pageToken == "" {
			break
		}
	}

	a.logger.Debug("listed connections",
		"incremental", syncToken != "",
		"contacts", len(out.Contacts),
		"deleted", len(out.DeletedIDs),
		"skipped", skipped,
	)
	return out, nil
}

// isExpiredSyncToken reports whether the API rejected the sync token as too old.
func isExpiredSyncToken(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusGone {
		return true
	}
	return gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "EXPIRED_SYNC_TOKEN")
}

// convertPerson converts a People API person to a contact. People without a
// usable email address are skipped.
func convertPerson(person *people.Person) *models.Contact {
	if person == nil || person.ResourceName == "" {
		return nil
	}

	contact := &models.Contact{
		ID:         person.ResourceName,
		SourceType: models.SourceGoogleContacts,
	}

	// Prefer the primary email, otherwise the first valid one
	for _, email := range person.EmailAddresses {
		value := models.NormalizeEmail(email.Value)
		if !models.ValidEmail(value) {
			continue
		}
		contact.AllEmails = append(contact.AllEmails, value)
		if email.Metadata != nil && email.Metadata.Primary && contact.PrimaryEmail == "" {
			contact.PrimaryEmail = value
		}
	}
	if len(contact.AllEmails) == 0 {
		return nil
	}

	if len(person.Names) > 0 {
		name := person.Names[0]
		contact.DisplayName = name.DisplayName
		contact.GivenName = name.GivenName
		contact.FamilyName = name.FamilyName
	}

	if len(person.Organizations) > 0 {
		org := person.Organizations[0]
		contact.OrganizationName = org.Name
		contact.OrganizationTitle = org.Title
	}

	switch {
	case isStarred(person):
		contact.RelationshipStrength = strengthStarred
	case contact.DisplayName != "" || contact.GivenName != "":
		contact.RelationshipStrength = strengthNamed
	default:
		contact.RelationshipStrength = strengthEmailOnly
	}

	contact.NormalizeEmails()
	return contact
}

func isStarred(person *people.Person) bool {
	for _, m := range person.Memberships {
		if m.ContactGroupMembership != nil && m.ContactGroupMembership.ContactGroupResourceName == starredGroup {
			return true
		}
	}
	return false
}

// GetSyncStatus reports the outcome of the last fetch.
func (a *GoogleContactsAdapter) GetSyncStatus(ctx context.Context) (*models.AdapterSyncStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	status := a.status
	status.IsEnabled = a.enabled
	return &status, nil
}

// HealthCheck issues a one-item listing to confirm the API and token work.
func (a *GoogleContactsAdapter) HealthCheck(ctx context.Context) (*models.HealthStatus, error) {
	now := time.Now().UTC()
	if !a.enabled {
		return &models.HealthStatus{Healthy: true, Level: models.HealthWarning, Message: "adapter disabled", CheckedAt: now}, nil
	}

	_, err := a.service.People.Connections.List("people/me").
		PageSize(1).
		PersonFields("names").
		Context(ctx).
		Do()
	if err != nil {
		return &models.HealthStatus{Healthy: false, Level: models.HealthError, Message: err.Error(), CheckedAt: now}, nil
	}
	return &models.HealthStatus{Healthy: true, Level: models.HealthOK, CheckedAt: now}, nil
}
