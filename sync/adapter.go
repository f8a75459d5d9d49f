// ABOUTME: ContactSourceAdapter interface for external address books
// ABOUTME: Each adapter yields contacts plus an opaque continuation token
package sync

import (
	"context"

	"github.com/harperreed/trustcache/models"
)

// FetchResult is one fetch from a source.
type FetchResult struct {
	Contacts []*models.Contact
	// NextToken resumes the next incremental fetch. Empty means the source
	// issued no token and the stored one is left as is.
	NextToken string
	// DeletedIDs are contacts the source reports as removed since the token.
	DeletedIDs []string
}

// ContactSourceAdapter is an external address book.
type ContactSourceAdapter interface {
	SourceType() models.SourceType
	IsEnabled() bool
	// FetchContacts returns changes since token, or everything when token is empty.
	FetchContacts(ctx context.Context, token string) (*FetchResult, error)
	GetSyncStatus(ctx context.Context) (*models.AdapterSyncStatus, error)
	HealthCheck(ctx context.Context) (*models.HealthStatus, error)
}
