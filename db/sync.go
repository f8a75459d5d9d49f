// ABOUTME: Database operations for the sync_state table
// ABOUTME: Manages per-source continuation tokens, sync timestamps, and status
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/trustcache/models"
)

const syncStateColumns = `source_type, continuation_token, last_full_sync, last_incremental_sync,
	status, error_message, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSyncState(row rowScanner) (*models.SyncState, error) {
	var state models.SyncState
	var (
		token, errorMessage             sql.NullString
		lastFullSync, lastIncrementalAt sql.NullTime
	)

	err := row.Scan(
		&state.SourceType,
		&token,
		&lastFullSync,
		&lastIncrementalAt,
		&state.Status,
		&errorMessage,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	state.ContinuationToken = token.String
	state.ErrorMessage = errorMessage.String
	if lastFullSync.Valid {
		t := lastFullSync.Time
		state.LastFullSync = &t
	}
	if lastIncrementalAt.Valid {
		t := lastIncrementalAt.Time
		state.LastIncrementalSync = &t
	}
	return &state, nil
}

// GetSyncState retrieves the sync state for a source, or nil if it never synced.
func (s *Store) GetSyncState(ctx context.Context, sourceType string) (*models.SyncState, error) {
	var state *models.SyncState
	err := s.read(ctx, "get sync state", func() error {
		row := s.db.QueryRowContext(ctx, `SELECT `+syncStateColumns+` FROM sync_state WHERE source_type = ?`, sourceType)
		st, err := scanSyncState(row)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		state = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// GetAllSyncStates retrieves the sync state for all sources.
func (s *Store) GetAllSyncStates(ctx context.Context) ([]models.SyncState, error) {
	var states []models.SyncState
	err := s.read(ctx, "list sync states", func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT `+syncStateColumns+` FROM sync_state ORDER BY source_type`)
		if err != nil {
			return fmt.Errorf("failed to query sync states: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			st, err := scanSyncState(rows)
			if err != nil {
				return fmt.Errorf("failed to scan sync state: %w", err)
			}
			states = append(states, *st)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}

// SaveContinuationToken stores the token the next incremental sync resumes from.
func (s *Store) SaveContinuationToken(ctx context.Context, sourceType, token string) error {
	if token == "" {
		return &ValidationError{Field: "continuation_token", Message: "must not be empty"}
	}

	now := s.now()
	return s.withTx(ctx, "save continuation token", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sync_state (source_type, continuation_token, status, created_at, updated_at)
			VALUES (?, ?, 'idle', ?, ?)
			ON CONFLICT(source_type) DO UPDATE SET
				continuation_token = excluded.continuation_token,
				updated_at = excluded.updated_at
		`, sourceType, token, now, now)
		return err
	})
}

// MarkSynced stamps the last full or incremental sync time and clears any error.
func (s *Store) MarkSynced(ctx context.Context, sourceType string, fullSync bool, at time.Time) error {
	column := "last_incremental_sync"
	if fullSync {
		column = "last_full_sync"
	}

	now := s.now()
	return s.withTx(ctx, "mark synced", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sync_state (source_type, `+column+`, status, created_at, updated_at)
			VALUES (?, ?, 'idle', ?, ?)
			ON CONFLICT(source_type) DO UPDATE SET
				`+column+` = excluded.`+column+`,
				status = 'idle',
				error_message = NULL,
				updated_at = excluded.updated_at
		`, sourceType, at.UTC(), now, now)
		return err
	})
}

// UpdateSyncStatus updates the sync status for a source.
func (s *Store) UpdateSyncStatus(ctx context.Context, sourceType, status string, errorMsg *string) error {
	var errorMsgVal sql.NullString
	if errorMsg != nil {
		errorMsgVal = sql.NullString{String: *errorMsg, Valid: true}
	}

	now := s.now()
	return s.withTx(ctx, "update sync status", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sync_state (source_type, status, error_message, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(source_type) DO UPDATE SET
				status = excluded.status,
				error_message = excluded.error_message,
				updated_at = excluded.updated_at
		`, sourceType, status, errorMsgVal, now, now)
		return err
	})
}
