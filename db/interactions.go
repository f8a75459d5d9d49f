// ABOUTME: Interaction log operations
// ABOUTME: Records sent/received mail per address and aggregates scorer features
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/harperreed/trustcache/models"
)

// RecordInteraction appends one interaction for an address.
func (s *Store) RecordInteraction(ctx context.Context, in *models.Interaction) error {
	if in == nil {
		return &ValidationError{Field: "interaction", Message: "must not be nil"}
	}
	in.Email = models.NormalizeEmail(in.Email)
	if !models.ValidEmail(in.Email) {
		return &ValidationError{Field: "interaction.email", Message: fmt.Sprintf("malformed email %q", in.Email)}
	}
	if in.Direction != models.DirectionSent && in.Direction != models.DirectionReceived {
		return &ValidationError{Field: "interaction.direction", Message: fmt.Sprintf("unknown direction %q", in.Direction)}
	}
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	if in.OccurredAt.IsZero() {
		in.OccurredAt = s.now()
	}

	return s.withTx(ctx, "record interaction", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO interactions (id, email, direction, occurred_at)
			VALUES (?, ?, ?, ?)
		`, in.ID.String(), in.Email, in.Direction, in.OccurredAt.UTC())
		return err
	})
}

// InteractionFeatures aggregates the interaction history across the given addresses.
func (s *Store) InteractionFeatures(ctx context.Context, emails []string) (models.InteractionFeatures, error) {
	var features models.InteractionFeatures

	args := make([]any, 0, len(emails))
	for _, e := range emails {
		if n := models.NormalizeEmail(e); n != "" {
			args = append(args, n)
		}
	}
	if len(args) == 0 {
		return features, nil
	}
	in := placeholders(len(args))

	err := s.read(ctx, "aggregate interactions", func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT direction, COUNT(*) FROM interactions
			WHERE email IN (`+in+`)
			GROUP BY direction
		`, args...)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var direction string
			var n int
			if err := rows.Scan(&direction, &n); err != nil {
				return err
			}
			switch direction {
			case models.DirectionSent:
				features.SentCount = n
			case models.DirectionReceived:
				features.ReceivedCount = n
			}
			features.InteractionCount += n
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if features.InteractionCount == 0 {
			return nil
		}

		var last sql.NullTime
		err = s.db.QueryRowContext(ctx, `
			SELECT occurred_at FROM interactions
			WHERE email IN (`+in+`)
			ORDER BY occurred_at DESC
			LIMIT 1
		`, args...).Scan(&last)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		if last.Valid {
			t := last.Time
			features.LastInteractionDate = &t
		}
		return nil
	})
	return features, err
}
