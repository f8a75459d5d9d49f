// ABOUTME: MCP server assembly
// ABOUTME: Registers trust tools, resources, and prompts on one server
package handlers

import (
	"github.com/harperreed/trustcache/provider"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer builds the MCP server exposing p.
func NewServer(p *provider.Provider, version string) *mcp.Server {
	trustHandlers := NewTrustHandlers(p)
	cacheHandlers := NewCacheHandlers(p)
	resourceHandlers := NewResourceHandlers(p)
	promptHandlers := NewPromptHandlers(p)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "trustcache",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_trust_signal",
		Description: "Look up how trusted an email sender is, based on the address book and interaction history",
	}, trustHandlers.GetTrustSignal)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "compute_trust_signals",
		Description: "Rescore the contacts owning the given email addresses now, regardless of staleness",
	}, trustHandlers.ComputeTrustSignals)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "record_interaction",
		Description: "Record mail sent to or received from an address so it counts toward trust",
	}, trustHandlers.RecordInteraction)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sync_contacts",
		Description: "Sync contacts from every enabled address book, incrementally unless full is set",
	}, cacheHandlers.SyncContacts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_cache",
		Description: "Remove every cached contact, trust signal, and sync token",
	}, cacheHandlers.ClearCache)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_status",
		Description: "Report adapter health, cache hit rate, and cached record counts",
	}, cacheHandlers.GetStatus)

	server.AddResource(&mcp.Resource{
		URI:         StatusURI,
		Name:        "status",
		Description: "Trust cache status",
		MIMEType:    "application/json",
	}, resourceHandlers.ReadResource)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: TrustURITemplate,
		Name:        "trust",
		Description: "Trust signal for one email address",
		MIMEType:    "application/json",
	}, resourceHandlers.ReadResource)

	server.AddPrompt(&mcp.Prompt{
		Name:        "sender-trust",
		Description: "Summarize how much to trust an email sender before triage",
		Arguments: []*mcp.PromptArgument{
			{Name: "email", Description: "Sender email address", Required: true},
		},
	}, promptHandlers.GetPrompt)

	return server
}
