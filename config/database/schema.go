package database

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates the presentation tables. Safe to call repeatedly.
func CreateSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS presentations (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    owner_id TEXT NOT NULL,
    slides JSONB NOT NULL DEFAULT '[]',
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_presentations_owner ON presentations(owner_id);

CREATE TABLE IF NOT EXISTS participants (
    presentation_id TEXT NOT NULL REFERENCES presentations(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    username TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL DEFAULT 'viewer' CHECK (role IN ('creator', 'editor', 'viewer')),
    joined_at TIMESTAMP NOT NULL DEFAULT NOW(),
    PRIMARY KEY (presentation_id, user_id)
);
`
