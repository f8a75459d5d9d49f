// ABOUTME: Google People API client for contacts sync
// ABOUTME: Creates an authenticated People API service from a stored OAuth token
package sync

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"
)

// NewPeopleClient creates a People API service authenticated with the token
// stored at tokenPath. Refreshed tokens are written back to the same file.
func NewPeopleClient(ctx context.Context, tokenPath string) (*people.Service, error) {
	config, err := RequireOAuthConfig()
	if err != nil {
		return nil, err
	}

	ts, err := NewTokenSource(ctx, config, tokenPath)
	if err != nil {
		return nil, fmt.Errorf("no authentication token found at %s: %w", tokenPath, err)
	}

	service, err := people.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create People service: %w", err)
	}

	return service, nil
}
