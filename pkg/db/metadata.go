package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Metadata manages key-value bookkeeping stored in sync_metadata.
type Metadata struct {
	conn *Connection
}

// NewMetadata creates a new Metadata instance.
func NewMetadata(conn *Connection) *Metadata {
	return &Metadata{conn: conn}
}

// Get retrieves a metadata value.
// Returns an empty string if the key has never been set.
func (m *Metadata) Get(ctx context.Context, key string) (string, error) {
	query := `SELECT value FROM sync_metadata WHERE key = ?`

	var value string
	err := m.conn.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata: %w", err)
	}

	return value, nil
}

// Set sets a metadata value.
func (m *Metadata) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO sync_metadata (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := m.conn.ExecContext(ctx, query, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}

	return nil
}
