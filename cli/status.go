// ABOUTME: Status and cache clearing CLI commands
// ABOUTME: Renders adapter health, hit rate, and counters; truncates the cache
package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/trustcache/models"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cache health, hit rate, and contact sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			status, err := app.Provider.GetStatus(ctx)
			if err != nil {
				return err
			}

			states, err := app.Store.GetAllSyncStates(ctx)
			if err != nil {
				opts.logger.Warn("failed to read sync state", "error", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}

			printStatus(newPrinter(cmd.OutOrStdout()), status, states)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")

	return cmd
}

func printStatus(p *printer, s *models.ProviderStatus, states []models.SyncState) {
	p.title("Trust Cache Status")

	overall := "healthy"
	if !s.IsHealthy {
		overall = "unhealthy"
	}
	p.field("Overall", p.state(s.IsHealthy, s.CacheHealth.Level, overall))
	p.field("Caching", fmt.Sprintf("%t", s.CachingEnabled))
	p.field("Contacts", fmt.Sprintf("%d", s.TotalContacts))
	p.field("Trust signals", fmt.Sprintf("%d", s.TotalTrustSignals))

	p.header("Cache")
	p.field("Lookups", fmt.Sprintf("%d (%d hits, %d misses)", s.Cache.TotalLookups, s.Cache.HitCount, s.Cache.MissCount))
	p.field("Hit rate", p.state(true, s.CacheHealth.Level, fmt.Sprintf("%.1f%%", s.Cache.CombinedHitRate*100)))
	if s.CacheHealth.Message != "" {
		p.field("", p.render(warnStyle, s.CacheHealth.Message))
	}

	p.header("Sources")
	if len(s.Adapters) == 0 {
		p.println(p.render(mutedStyle, "No source reported status."))
	}
	for _, a := range s.Adapters {
		state := "disabled"
		if a.Sync.IsEnabled {
			state = a.Health.Level
			if a.Health.Message != "" {
				state += ": " + a.Health.Message
			}
		}
		p.field(string(a.SourceType), p.state(a.Health.Healthy, a.Health.Level, state))
	}

	if len(states) == 0 {
		return
	}
	p.header("Sync History")
	for _, st := range states {
		line := st.Status
		if st.LastIncrementalSync != nil {
			line += ", incremental " + formatAgo(*st.LastIncrementalSync)
		}
		if st.LastFullSync != nil {
			line += ", full " + formatAgo(*st.LastFullSync)
		}
		if st.ErrorMessage != "" {
			line += " (" + st.ErrorMessage + ")"
		}
		p.field(st.SourceType, line)
	}
}

func formatAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func newClearCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached contact, trust signal, and sync token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			if _, err := app.Provider.ClearCache(ctx); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared. Run 'trustcache sync' to repopulate.")
			return nil
		},
	}
}
