// ABOUTME: Shared contact book CLI commands
// ABOUTME: Adds, removes, and lists contacts in the Charm KV contact book
package cli

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/harperreed/trustcache/charm"
	"github.com/harperreed/trustcache/models"
	"github.com/harperreed/trustcache/sync"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
)

func newContactCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Manage the shared Charm contact book",
		Long: `Manage contacts in the Charm KV contact book.

Contacts written here sync to every device linked to the same Charm
account and reach the trust cache on the next 'trustcache sync'.
Requires charm.enabled in the config.`,
	}

	cmd.AddCommand(newContactAddCmd(opts))
	cmd.AddCommand(newContactRemoveCmd(opts))
	cmd.AddCommand(newContactListCmd(opts))
	return cmd
}

func openContactBook(opts *globalOptions) (*charm.Client, error) {
	if !opts.cfg.Charm.Enabled {
		return nil, fmt.Errorf("charm contact book is disabled. Set charm.enabled in %s or TRUSTCACHE_CHARM_ENABLED=true", opts.configPathOrDefault())
	}
	kv, err := newKVClient(&charm.Config{
		Host:     opts.cfg.Charm.Host,
		AutoSync: opts.cfg.Charm.AutoSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Charm: %w", err)
	}
	return kv, nil
}

// newContactID returns a sortable id for contacts created on this device.
func newContactID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

func newContactAddCmd(opts *globalOptions) *cobra.Command {
	var (
		id       string
		emails   []string
		name     string
		given    string
		family   string
		org      string
		title    string
		strength float64
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or replace a contact",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(emails) == 0 {
				return fmt.Errorf("at least one --email is required")
			}
			if strength < 0 || strength > 1 {
				return fmt.Errorf("--strength must be 0-1, got %v", strength)
			}

			kv, err := openContactBook(opts)
			if err != nil {
				return err
			}
			defer func() { _ = kv.Close() }()

			if id == "" {
				id = newContactID()
			}
			contact := &models.Contact{
				ID:                   id,
				AllEmails:            emails,
				PrimaryEmail:         emails[0],
				DisplayName:          name,
				GivenName:            given,
				FamilyName:           family,
				OrganizationName:     org,
				OrganizationTitle:    title,
				RelationshipStrength: strength,
			}
			if err := sync.PutKVContact(kv, contact, time.Now()); err != nil {
				return fmt.Errorf("failed to save contact: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved contact %s (%s)\n", contact.ID, contact.PrimaryEmail)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Contact id (default: new ULID)")
	cmd.Flags().StringSliceVar(&emails, "email", nil, "Email address, repeatable; the first is primary")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&given, "given-name", "", "Given name")
	cmd.Flags().StringVar(&family, "family-name", "", "Family name")
	cmd.Flags().StringVar(&org, "org", "", "Organization name")
	cmd.Flags().StringVar(&title, "title", "", "Title within the organization")
	cmd.Flags().Float64Var(&strength, "strength", 0.5, "Relationship strength 0-1")

	return cmd
}

func newContactRemoveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a contact from the shared book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := openContactBook(opts)
			if err != nil {
				return err
			}
			defer func() { _ = kv.Close() }()

			if err := sync.DeleteKVContact(kv, args[0], time.Now()); err != nil {
				return fmt.Errorf("failed to remove contact: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed contact %s\n", args[0])
			return nil
		},
	}
}

func newContactListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List contacts in the shared book",
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := openContactBook(opts)
			if err != nil {
				return err
			}
			defer func() { _ = kv.Close() }()

			adapter := sync.NewKVContactsAdapter(kv, true, opts.logger)
			res, err := adapter.FetchContacts(cmd.Context(), "")
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout())
			if len(res.Contacts) == 0 {
				p.println(p.render(mutedStyle, "No contacts in the shared book."))
				return nil
			}
			for _, c := range res.Contacts {
				p.field(c.ID, fmt.Sprintf("%s <%s> strength %.2f", c.Name(), c.PrimaryEmail, c.RelationshipStrength))
			}
			return nil
		},
	}
}
