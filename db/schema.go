// ABOUTME: Database schema definitions for the trust cache
// ABOUTME: Contacts, email aliases, trust signals, sync state, and interactions
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS contacts (
	contact_id TEXT PRIMARY KEY,
	primary_email TEXT NOT NULL,
	display_name TEXT,
	given_name TEXT,
	family_name TEXT,
	organization_name TEXT,
	organization_title TEXT,
	relationship_strength REAL NOT NULL DEFAULT 0 CHECK(relationship_strength >= 0 AND relationship_strength <= 1),
	source_type TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_source_type ON contacts(source_type);

CREATE TABLE IF NOT EXISTS contact_emails (
	contact_id TEXT NOT NULL,
	email TEXT NOT NULL,
	is_primary INTEGER NOT NULL DEFAULT 0,
	UNIQUE(contact_id, email),
	FOREIGN KEY (contact_id) REFERENCES contacts(contact_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_contact_emails_email ON contact_emails(email);

CREATE TABLE IF NOT EXISTS trust_signals (
	contact_id TEXT PRIMARY KEY,
	strength TEXT NOT NULL CHECK(strength IN ('none', 'weak', 'moderate', 'strong', 'trusted')),
	score REAL NOT NULL CHECK(score >= 0 AND score <= 1),
	last_interaction_date DATETIME,
	justification TEXT NOT NULL DEFAULT '[]',
	computed_at DATETIME NOT NULL,
	interaction_count INTEGER NOT NULL DEFAULT 0 CHECK(interaction_count >= 0),
	email_address TEXT,
	source_type TEXT,
	FOREIGN KEY (contact_id) REFERENCES contacts(contact_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_trust_signals_computed_at ON trust_signals(computed_at);

CREATE TABLE IF NOT EXISTS sync_state (
	source_type TEXT PRIMARY KEY,
	continuation_token TEXT,
	last_full_sync DATETIME,
	last_incremental_sync DATETIME,
	status TEXT NOT NULL DEFAULT 'idle' CHECK(status IN ('idle', 'syncing', 'error')),
	error_message TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS interactions (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL,
	direction TEXT NOT NULL CHECK(direction IN ('sent', 'received')),
	occurred_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_interactions_email ON interactions(email);
CREATE INDEX IF NOT EXISTS idx_interactions_occurred_at ON interactions(occurred_at DESC);
`

// InitSchema creates all tables and indexes. Safe to run repeatedly.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
