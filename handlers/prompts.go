// ABOUTME: MCP prompt handlers for trust-aware email triage
// ABOUTME: Builds a sender-trust prompt from the cached trust signal
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/trustcache/provider"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type PromptHandlers struct {
	provider *provider.Provider
}

func NewPromptHandlers(p *provider.Provider) *PromptHandlers {
	return &PromptHandlers{provider: p}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	switch request.Params.Name {
	case "sender-trust":
		return h.getSenderTrustPrompt(ctx, request.Params.Arguments)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", request.Params.Name)
	}
}

func (h *PromptHandlers) getSenderTrustPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	email, ok := args["email"]
	if !ok || email == "" {
		return nil, fmt.Errorf("email is required")
	}

	trust := h.provider.GetPublicTrust(ctx, email)

	var promptText strings.Builder
	promptText.WriteString("Use this sender trust information when triaging the email:\n\n")
	promptText.WriteString(fmt.Sprintf("Sender: %s\n", trust.Email))
	if trust.Known {
		promptText.WriteString("Known contact: yes\n")
	} else {
		promptText.WriteString("Known contact: no\n")
	}
	promptText.WriteString(fmt.Sprintf("Relationship strength: %s (score %.2f)\n", trust.Strength, trust.Score))

	promptText.WriteString("\nReasons:\n")
	for _, reason := range trust.Justification {
		promptText.WriteString(fmt.Sprintf("- %s\n", reason))
	}

	promptText.WriteString("\nWeigh mail from strong relationships as more likely to need attention,")
	promptText.WriteString(" and treat unknown senders with extra care for phishing and spam.")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Sender trust for %s", trust.Email),
		Messages: []*mcp.PromptMessage{
			{
				Role: "user",
				Content: &mcp.TextContent{
					Text: promptText.String(),
				},
			},
		},
	}, nil
}
