// ABOUTME: Trust signal database operations
// ABOUTME: One signal per contact with upsert semantics and JSON justification
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/harperreed/trustcache/models"
)

func validateTrustSignal(sig *models.TrustSignal) error {
	if sig == nil {
		return &ValidationError{Field: "trust_signal", Message: "must not be nil"}
	}
	if sig.ContactID == "" {
		return &ValidationError{Field: "trust_signal.contact_id", Message: "must not be empty"}
	}
	if _, err := models.ParseStrength(string(sig.Strength)); err != nil {
		return &ValidationError{Field: "trust_signal.strength", Message: err.Error()}
	}
	if sig.Score < 0 || sig.Score > 1 {
		return &ValidationError{Field: "trust_signal.score", Message: fmt.Sprintf("%v is outside 0.0-1.0", sig.Score)}
	}
	if sig.InteractionCount < 0 {
		return &ValidationError{Field: "trust_signal.interaction_count", Message: "must not be negative"}
	}
	if sig.ComputedAt.IsZero() {
		return &ValidationError{Field: "trust_signal.computed_at", Message: "must be set"}
	}
	return nil
}

// UpsertTrustSignal stores the signal, replacing any previous one for the contact.
// The contact must already exist. A signal computed no later than the stored
// one is ignored, so computed_at never moves backwards. Times are stored as
// UTC text, which sorts chronologically.
func (s *Store) UpsertTrustSignal(ctx context.Context, sig *models.TrustSignal) error {
	if err := validateTrustSignal(sig); err != nil {
		return err
	}

	justification := sig.Justification
	if justification == nil {
		justification = []string{}
	}
	justificationJSON, err := json.Marshal(justification)
	if err != nil {
		return &ValidationError{Field: "trust_signal.justification", Message: err.Error()}
	}

	var lastInteraction sql.NullTime
	if sig.LastInteractionDate != nil {
		lastInteraction = sql.NullTime{Time: sig.LastInteractionDate.UTC(), Valid: true}
	}

	return s.withTx(ctx, "upsert trust signal", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO trust_signals (contact_id, strength, score, last_interaction_date, justification,
				computed_at, interaction_count, email_address, source_type)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(contact_id) DO UPDATE SET
				strength = excluded.strength,
				score = excluded.score,
				last_interaction_date = excluded.last_interaction_date,
				justification = excluded.justification,
				computed_at = excluded.computed_at,
				interaction_count = excluded.interaction_count,
				email_address = excluded.email_address,
				source_type = excluded.source_type
			WHERE excluded.computed_at > trust_signals.computed_at
		`, sig.ContactID, string(sig.Strength), sig.Score, lastInteraction, string(justificationJSON),
			sig.ComputedAt.UTC(), sig.InteractionCount, sig.EmailAddress, sig.SourceType)
		if err != nil {
			return fmt.Errorf("failed to write trust signal for %s: %w", sig.ContactID, err)
		}
		return nil
	})
}

// GetTrustSignal returns the contact's signal, or nil if none is stored.
func (s *Store) GetTrustSignal(ctx context.Context, contactID string) (*models.TrustSignal, error) {
	var sig *models.TrustSignal
	err := s.read(ctx, "get trust signal", func() error {
		var (
			out               models.TrustSignal
			strength          string
			lastInteraction   sql.NullTime
			justificationJSON string
			email, source     sql.NullString
		)

		err := s.db.QueryRowContext(ctx, `
			SELECT contact_id, strength, score, last_interaction_date, justification,
				computed_at, interaction_count, email_address, source_type
			FROM trust_signals WHERE contact_id = ?
		`, contactID).Scan(
			&out.ContactID,
			&strength,
			&out.Score,
			&lastInteraction,
			&justificationJSON,
			&out.ComputedAt,
			&out.InteractionCount,
			&email,
			&source,
		)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}

		out.Strength, err = models.ParseStrength(strength)
		if err != nil {
			return err
		}
		if lastInteraction.Valid {
			t := lastInteraction.Time
			out.LastInteractionDate = &t
		}
		if err := json.Unmarshal([]byte(justificationJSON), &out.Justification); err != nil {
			return fmt.Errorf("failed to decode justification: %w", err)
		}
		out.EmailAddress = email.String
		out.SourceType = source.String

		sig = &out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sig, nil
}
