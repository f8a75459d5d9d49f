// ABOUTME: Trust MCP tool handlers
// ABOUTME: Implements get_trust_signal, compute_trust_signals, and record_interaction tools
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/trustcache/models"
	"github.com/harperreed/trustcache/provider"
	"github.com/harperreed/trustcache/scoring"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type TrustHandlers struct {
	provider *provider.Provider
}

func NewTrustHandlers(p *provider.Provider) *TrustHandlers {
	return &TrustHandlers{provider: p}
}

type GetTrustSignalInput struct {
	Email string `json:"email" jsonschema:"Email address of the sender to look up (required)"`
}

type TrustSignalOutput struct {
	Email               string   `json:"email"`
	Known               bool     `json:"known"`
	ContactID           string   `json:"contact_id,omitempty"`
	Strength            string   `json:"strength"`
	PublicStrength      string   `json:"public_strength"`
	Score               float64  `json:"score"`
	InteractionCount    int      `json:"interaction_count"`
	LastInteractionDate *string  `json:"last_interaction_date,omitempty"`
	Justification       []string `json:"justification"`
	ComputedAt          string   `json:"computed_at,omitempty"`
}

func (h *TrustHandlers) GetTrustSignal(ctx context.Context, request *mcp.CallToolRequest, input GetTrustSignalInput) (*mcp.CallToolResult, TrustSignalOutput, error) {
	if input.Email == "" {
		return nil, TrustSignalOutput{}, fmt.Errorf("email is required")
	}

	sig, _ := h.provider.GetTrustSignalForEmail(ctx, input.Email)
	return nil, trustSignalToOutput(models.NormalizeEmail(input.Email), sig), nil
}

type ComputeTrustSignalsInput struct {
	Emails []string `json:"emails" jsonschema:"Email addresses whose contacts should be rescored now (required)"`
}

type ComputeTrustSignalsOutput struct {
	Signals []TrustSignalOutput `json:"signals"`
	Unknown []string            `json:"unknown,omitempty"`
}

func (h *TrustHandlers) ComputeTrustSignals(ctx context.Context, request *mcp.CallToolRequest, input ComputeTrustSignalsInput) (*mcp.CallToolResult, ComputeTrustSignalsOutput, error) {
	if len(input.Emails) == 0 {
		return nil, ComputeTrustSignalsOutput{}, fmt.Errorf("at least one email is required")
	}

	out := ComputeTrustSignalsOutput{Signals: []TrustSignalOutput{}}
	contacts := make([]*models.Contact, 0, len(input.Emails))
	emailFor := make(map[string]string, len(input.Emails))

	for _, email := range input.Emails {
		normalized := models.NormalizeEmail(email)
		contact, err := h.provider.LookupContact(ctx, normalized)
		if err != nil {
			return nil, ComputeTrustSignalsOutput{}, fmt.Errorf("failed to look up %s: %w", normalized, err)
		}
		if contact == nil {
			out.Unknown = append(out.Unknown, normalized)
			continue
		}
		if _, seen := emailFor[contact.ID]; seen {
			continue
		}
		emailFor[contact.ID] = normalized
		contacts = append(contacts, contact)
	}

	signals, err := h.provider.ComputeBatchTrustSignals(ctx, contacts)
	if err != nil {
		return nil, ComputeTrustSignalsOutput{}, fmt.Errorf("failed to compute trust signals: %w", err)
	}

	for _, contact := range contacts {
		if sig, ok := signals[contact.ID]; ok {
			out.Signals = append(out.Signals, trustSignalToOutput(emailFor[contact.ID], sig))
		}
	}

	return nil, out, nil
}

type RecordInteractionInput struct {
	Email      string `json:"email" jsonschema:"Email address the mail was exchanged with (required)"`
	Direction  string `json:"direction" jsonschema:"Either 'sent' or 'received' (required)"`
	OccurredAt string `json:"occurred_at,omitempty" jsonschema:"RFC3339 timestamp (default: now)"`
}

type InteractionOutput struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Direction  string `json:"direction"`
	OccurredAt string `json:"occurred_at"`
}

func (h *TrustHandlers) RecordInteraction(ctx context.Context, request *mcp.CallToolRequest, input RecordInteractionInput) (*mcp.CallToolResult, InteractionOutput, error) {
	if input.Email == "" {
		return nil, InteractionOutput{}, fmt.Errorf("email is required")
	}

	var at time.Time
	if input.OccurredAt != "" {
		parsed, err := time.Parse(time.RFC3339, input.OccurredAt)
		if err != nil {
			return nil, InteractionOutput{}, fmt.Errorf("invalid occurred_at: %w", err)
		}
		at = parsed
	}

	in, err := h.provider.RecordInteraction(ctx, input.Email, input.Direction, at)
	if err != nil {
		return nil, InteractionOutput{}, fmt.Errorf("failed to record interaction: %w", err)
	}

	return nil, InteractionOutput{
		ID:         in.ID.String(),
		Email:      in.Email,
		Direction:  in.Direction,
		OccurredAt: in.OccurredAt.Format(time.RFC3339),
	}, nil
}

func trustSignalToOutput(email string, sig *models.TrustSignal) TrustSignalOutput {
	if sig == nil {
		return TrustSignalOutput{
			Email:          email,
			Strength:       string(models.StrengthNone),
			PublicStrength: string(models.ExternalNone),
			Justification:  []string{scoring.ReasonUnknown},
		}
	}

	out := TrustSignalOutput{
		Email:            email,
		Known:            true,
		ContactID:        sig.ContactID,
		Strength:         string(sig.Strength),
		PublicStrength:   string(models.Collapse(sig.Strength)),
		Score:            sig.Score,
		InteractionCount: sig.InteractionCount,
		Justification:    sig.Justification,
		ComputedAt:       sig.ComputedAt.Format(time.RFC3339),
	}
	if sig.LastInteractionDate != nil {
		last := sig.LastInteractionDate.Format(time.RFC3339)
		out.LastInteractionDate = &last
	}
	if len(out.Justification) == 0 {
		out.Justification = []string{scoring.ReasonKnown}
	}
	return out
}
