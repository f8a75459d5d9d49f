// ABOUTME: Contact sync CLI commands
// ABOUTME: One-shot incremental/full sync and a scheduled sync daemon
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harperreed/trustcache/models"
	"github.com/harperreed/trustcache/sync"
	"github.com/spf13/cobra"
)

func newSyncCmd(opts *globalOptions) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync contacts from every enabled address book",
		Long: `Sync contacts from Google Contacts and the Charm contact book.

Each source resumes from its stored continuation token. Use --full to
ignore the tokens and refetch everything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			result, err := app.Provider.SyncContacts(ctx, full)
			if result != nil {
				printSyncResult(newPrinter(cmd.OutOrStdout()), result)
			}
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			if !result.IsSuccessful {
				return fmt.Errorf("every contact source failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "Ignore stored tokens and fetch every contact")

	cmd.AddCommand(newSyncDaemonCmd(opts))
	return cmd
}

func newSyncDaemonCmd(opts *globalOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Sync on a fixed interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("interval") {
				interval = opts.cfg.SyncInterval.Duration
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			scheduler, err := sync.NewScheduler(app.Coordinator, interval, opts.logger)
			if err != nil {
				return err
			}

			out := newPrinter(cmd.OutOrStdout())
			scheduler.OnResult = func(result *models.SyncResult, err error) {
				if result != nil {
					printSyncResult(out, result)
				}
			}

			opts.logger.Info("sync daemon started", "interval", interval)
			return scheduler.Run(ctx)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Minute, "Time between syncs (minimum 1m)")

	return cmd
}

func printSyncResult(p *printer, r *models.SyncResult) {
	mode := "incremental"
	if r.FullSync {
		mode = "full"
	}

	if r.Skipped {
		p.println(p.render(mutedStyle, "Caching is disabled; sync skipped."))
		return
	}

	p.title(fmt.Sprintf("Sync %s (%s)", r.RunID, mode))
	p.field("State", string(r.State))
	p.field("Contacts synced", fmt.Sprintf("%d", r.ContactsSynced))
	p.field("Duration", r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond).String())

	if len(r.AdapterResults) == 0 {
		p.println(p.render(mutedStyle, "No contact sources are enabled."))
		return
	}

	p.header("Sources")
	for _, ar := range r.AdapterResults {
		if ar.IsSuccessful {
			line := fmt.Sprintf("ok  %d synced", ar.ContactsSynced)
			if ar.ContactsDeleted > 0 {
				line += fmt.Sprintf(", %d deleted", ar.ContactsDeleted)
			}
			p.field(string(ar.SourceType), p.state(true, "", line))
			continue
		}
		p.field(string(ar.SourceType), p.state(false, "", fmt.Sprintf("%s: %s", ar.ErrorKind, ar.ErrorMessage)))
	}
}
