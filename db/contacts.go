// ABOUTME: Contact database operations
// ABOUTME: Upserts with full alias replacement, reverse email lookup, cascade delete, and batch writes
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/harperreed/trustcache/models"
)

// validateContact returns a normalized copy of the contact, or an error if
// it cannot be persisted. The caller's value is left untouched.
func validateContact(c *models.Contact) (*models.Contact, error) {
	if c == nil {
		return nil, &ValidationError{Field: "contact", Message: "must not be nil"}
	}
	if c.ID == "" {
		return nil, &ValidationError{Field: "contact.id", Message: "must not be empty"}
	}

	normalized := *c
	normalized.AllEmails = append([]string(nil), c.AllEmails...)
	normalized.NormalizeEmails()
	if len(normalized.AllEmails) == 0 {
		return nil, &ValidationError{Field: "contact.all_emails", Message: fmt.Sprintf("contact %s has no email addresses", c.ID)}
	}
	for _, e := range normalized.AllEmails {
		if !models.ValidEmail(e) {
			return nil, &ValidationError{Field: "contact.all_emails", Message: fmt.Sprintf("malformed email %q for contact %s", e, c.ID)}
		}
	}

	if c.RelationshipStrength < 0 || c.RelationshipStrength > 1 {
		return nil, &ValidationError{Field: "contact.relationship_strength", Message: fmt.Sprintf("%v is outside 0.0-1.0", c.RelationshipStrength)}
	}
	return &normalized, nil
}

// UpsertContact writes the contact row and replaces its alias rows atomically.
func (s *Store) UpsertContact(ctx context.Context, contact *models.Contact) error {
	normalized, err := validateContact(contact)
	if err != nil {
		return err
	}

	return s.withTx(ctx, "upsert contact", func(tx *sql.Tx) error {
		return s.upsertContactTx(ctx, tx, normalized)
	})
}

func (s *Store) upsertContactTx(ctx context.Context, tx *sql.Tx, contact *models.Contact) error {
	now := s.now()
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = now
	}
	contact.UpdatedAt = now

	_, err := tx.ExecContext(ctx, `
		INSERT INTO contacts (contact_id, primary_email, display_name, given_name, family_name,
			organization_name, organization_title, relationship_strength, source_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(contact_id) DO UPDATE SET
			primary_email = excluded.primary_email,
			display_name = excluded.display_name,
			given_name = excluded.given_name,
			family_name = excluded.family_name,
			organization_name = excluded.organization_name,
			organization_title = excluded.organization_title,
			relationship_strength = excluded.relationship_strength,
			source_type = excluded.source_type,
			updated_at = excluded.updated_at
	`, contact.ID, contact.PrimaryEmail, contact.DisplayName, contact.GivenName, contact.FamilyName,
		contact.OrganizationName, contact.OrganizationTitle, contact.RelationshipStrength,
		string(contact.SourceType), contact.CreatedAt.UTC(), contact.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to write contact %s: %w", contact.ID, err)
	}

	// Replace, never union, the alias set
	if _, err := tx.ExecContext(ctx, `DELETE FROM contact_emails WHERE contact_id = ?`, contact.ID); err != nil {
		return fmt.Errorf("failed to clear aliases for %s: %w", contact.ID, err)
	}

	for _, email := range contact.AllEmails {
		isPrimary := 0
		if email == contact.PrimaryEmail {
			isPrimary = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO contact_emails (contact_id, email, is_primary)
			VALUES (?, ?, ?)
		`, contact.ID, email, isPrimary)
		if err != nil {
			return fmt.Errorf("failed to write alias %s for %s: %w", email, contact.ID, err)
		}
	}

	return nil
}

// GetContactByID returns the contact, or nil if it does not exist.
func (s *Store) GetContactByID(ctx context.Context, id string) (*models.Contact, error) {
	var contact *models.Contact
	err := s.read(ctx, "get contact", func() error {
		c, err := getContact(ctx, s.db, id)
		contact = c
		return err
	})
	if err != nil {
		return nil, err
	}
	return contact, nil
}

func getContact(ctx context.Context, db *sql.DB, id string) (*models.Contact, error) {
	contact := &models.Contact{}
	var (
		displayName, givenName, familyName sql.NullString
		orgName, orgTitle, sourceType      sql.NullString
	)

	err := db.QueryRowContext(ctx, `
		SELECT contact_id, primary_email, display_name, given_name, family_name,
			organization_name, organization_title, relationship_strength, source_type, created_at, updated_at
		FROM contacts WHERE contact_id = ?
	`, id).Scan(
		&contact.ID,
		&contact.PrimaryEmail,
		&displayName,
		&givenName,
		&familyName,
		&orgName,
		&orgTitle,
		&contact.RelationshipStrength,
		&sourceType,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	contact.DisplayName = displayName.String
	contact.GivenName = givenName.String
	contact.FamilyName = familyName.String
	contact.OrganizationName = orgName.String
	contact.OrganizationTitle = orgTitle.String
	contact.SourceType = models.SourceType(sourceType.String)

	rows, err := db.QueryContext(ctx, `
		SELECT email FROM contact_emails
		WHERE contact_id = ?
		ORDER BY is_primary DESC, rowid ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load aliases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		contact.AllEmails = append(contact.AllEmails, email)
	}

	return contact, rows.Err()
}

// GetContactIDByEmail resolves an address through the alias index.
// When several contacts share an address, the one holding it as primary wins,
// then the most recently written.
func (s *Store) GetContactIDByEmail(ctx context.Context, email string) (string, error) {
	normalized := models.NormalizeEmail(email)
	if normalized == "" {
		return "", nil
	}

	var id string
	err := s.read(ctx, "look up email", func() error {
		err := s.db.QueryRowContext(ctx, `
			SELECT contact_id FROM contact_emails
			WHERE email = ?
			ORDER BY is_primary DESC, rowid DESC
			LIMIT 1
		`, normalized).Scan(&id)
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// DeleteContact removes the contact together with its aliases and trust signal.
func (s *Store) DeleteContact(ctx context.Context, id string) error {
	return s.withTx(ctx, "delete contact", func(tx *sql.Tx) error {
		return deleteContactTx(ctx, tx, id)
	})
}

func deleteContactTx(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM trust_signals WHERE contact_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete trust signal: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM contact_emails WHERE contact_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete aliases: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM contacts WHERE contact_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	return nil
}

// BatchUpsertContacts writes every contact or none of them.
func (s *Store) BatchUpsertContacts(ctx context.Context, contacts []*models.Contact) (int, error) {
	written, _, err := s.ApplyContactChanges(ctx, contacts, nil)
	return written, err
}

// ApplyContactChanges upserts and deletes contacts in a single transaction.
// Deleting an unknown id is not an error.
func (s *Store) ApplyContactChanges(ctx context.Context, upserts []*models.Contact, deleteIDs []string) (int, int, error) {
	normalized := make([]*models.Contact, 0, len(upserts))
	for i, c := range upserts {
		n, err := validateContact(c)
		if err != nil {
			if ve, ok := err.(*ValidationError); ok {
				ve.Message = fmt.Sprintf("batch item %d: %s", i, ve.Message)
			}
			return 0, 0, err
		}
		normalized = append(normalized, n)
	}
	if len(upserts) == 0 && len(deleteIDs) == 0 {
		return 0, 0, nil
	}

	err := s.withTx(ctx, "batch upsert contacts", func(tx *sql.Tx) error {
		for _, c := range normalized {
			if err := s.upsertContactTx(ctx, tx, c); err != nil {
				return err
			}
		}
		for _, id := range deleteIDs {
			if err := deleteContactTx(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return len(upserts), len(deleteIDs), nil
}

// ClearAll truncates every cache table, sync state included.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.withTx(ctx, "clear cache tables", func(tx *sql.Tx) error {
		for _, table := range []string{"trust_signals", "contact_emails", "contacts", "sync_state"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// CountContacts returns the number of stored contacts.
func (s *Store) CountContacts(ctx context.Context) (int, error) {
	return s.count(ctx, "contacts")
}

// CountTrustSignals returns the number of stored trust signals.
func (s *Store) CountTrustSignals(ctx context.Context) (int, error) {
	return s.count(ctx, "trust_signals")
}

func (s *Store) count(ctx context.Context, table string) (int, error) {
	var n int
	err := s.read(ctx, "count "+table, func() error {
		return s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	})
	return n, err
}
