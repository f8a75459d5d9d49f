// ABOUTME: Trust lookup and interaction logging CLI commands
// ABOUTME: Prints the trust signal for a sender and records sent/received mail
package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/trustcache/models"
	"github.com/spf13/cobra"
)

func newTrustCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "trust <email>",
		Short: "Show how much a sender is trusted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			email := args[0]
			sig, _ := app.Provider.GetTrustSignalForEmail(ctx, email)
			public := app.Provider.GetPublicTrust(ctx, email)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(public)
			}

			p := newPrinter(cmd.OutOrStdout())
			p.title(public.Email)
			if !public.Known || sig == nil {
				p.field("Known", p.render(mutedStyle, "no"))
			} else {
				p.field("Known", p.render(okStyle, "yes"))
				p.field("Contact", sig.ContactID)
				p.field("Strength", fmt.Sprintf("%s (%s)", public.Strength, sig.Strength))
				p.field("Score", fmt.Sprintf("%.2f", public.Score))
				p.field("Interactions", fmt.Sprintf("%d", sig.InteractionCount))
				if sig.LastInteractionDate != nil {
					p.field("Last interaction", sig.LastInteractionDate.Format("2006-01-02"))
				}
				p.field("Computed", sig.ComputedAt.Local().Format(time.RFC822))
			}

			p.header("Why")
			for _, reason := range public.Justification {
				p.println("  - " + reason)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the collapsed trust view as JSON")

	return cmd
}

func newInteractionCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interaction",
		Short: "Record mail exchanged with a contact",
	}
	cmd.AddCommand(newInteractionAddCmd(opts))
	return cmd
}

func newInteractionAddCmd(opts *globalOptions) *cobra.Command {
	var (
		direction string
		at        string
	)

	cmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Record one sent or received email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var occurred time.Time
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at (want RFC3339): %w", err)
				}
				occurred = parsed
			}

			ctx := cmd.Context()
			app, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			in, err := app.Provider.RecordInteraction(ctx, args[0], strings.ToLower(direction), occurred)
			if err != nil {
				return fmt.Errorf("failed to record interaction: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s interaction with %s at %s\n",
				in.Direction, in.Email, in.OccurredAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&direction, "direction", models.DirectionReceived, "sent or received")
	cmd.Flags().StringVar(&at, "at", "", "When it happened, RFC3339 (default: now)")

	return cmd
}
