// ABOUTME: MCP resource handlers for exposing trust cache data
// ABOUTME: Provides read-only status and per-sender trust views via trustcache:// URIs
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/harperreed/trustcache/models"
	"github.com/harperreed/trustcache/provider"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	StatusURI        = "trustcache://status"
	TrustURIPrefix   = "trustcache://trust/"
	TrustURITemplate = "trustcache://trust/{email}"
)

type ResourceHandlers struct {
	provider *provider.Provider
}

func NewResourceHandlers(p *provider.Provider) *ResourceHandlers {
	return &ResourceHandlers{provider: p}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, "trustcache://") {
		return nil, fmt.Errorf("invalid URI scheme: expected trustcache://")
	}

	switch {
	case uri == StatusURI:
		return h.readStatus(ctx)
	case strings.HasPrefix(uri, TrustURIPrefix):
		email, err := url.PathUnescape(strings.TrimPrefix(uri, TrustURIPrefix))
		if err != nil {
			return nil, fmt.Errorf("invalid email in URI: %w", err)
		}
		return h.readTrust(ctx, uri, email)
	default:
		return nil, fmt.Errorf("unknown resource: %s", uri)
	}
}

func (h *ResourceHandlers) readStatus(ctx context.Context) (*mcp.ReadResourceResult, error) {
	status, err := h.provider.GetStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch status: %w", err)
	}
	return jsonResource(StatusURI, statusToOutput(status))
}

func (h *ResourceHandlers) readTrust(ctx context.Context, uri, email string) (*mcp.ReadResourceResult, error) {
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	sig, _ := h.provider.GetTrustSignalForEmail(ctx, email)
	return jsonResource(uri, trustSignalToOutput(models.NormalizeEmail(email), sig))
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}

	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
