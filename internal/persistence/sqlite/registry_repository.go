package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/calendar-federation/internal/persistence"
)

// GroupRegistry implements persistence.GroupRegistry on the shared store.
type GroupRegistry struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewGroupRegistry creates a new SQLite group registry.
func NewGroupRegistry(pool *ConnectionPool) *GroupRegistry {
	return &GroupRegistry{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// SaveEntry records a group session's discovery row with its participants.
func (r *GroupRegistry) SaveEntry(ctx context.Context, entry persistence.GroupRegistryEntry) error {
	if entry.SessionID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := r.helper.ExecTx(tx, `
			INSERT INTO group_registry (session_id, creator_user_id, title, status, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`,
			entry.SessionID,
			entry.CreatorUserID,
			entry.Title,
			entry.Status,
			formatTime(entry.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		for position, userID := range entry.ParticipantUserIDs {
			_, err := r.helper.ExecTx(tx,
				"INSERT INTO group_registry_participants (session_id, user_id, position) VALUES (?, ?, ?)",
				entry.SessionID, userID, position,
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
		}
		return nil
	})
}

// GetEntry retrieves a discovery row by session ID.
func (r *GroupRegistry) GetEntry(ctx context.Context, sessionID string) (persistence.GroupRegistryEntry, error) {
	if sessionID == "" {
		return persistence.GroupRegistryEntry{}, persistence.ErrNotFound
	}

	var entry persistence.GroupRegistryEntry
	var updatedStr string
	err := r.helper.QueryRow(ctx, `
		SELECT session_id, creator_user_id, title, status, updated_at
		FROM group_registry
		WHERE session_id = ?
	`, sessionID).Scan(
		&entry.SessionID,
		&entry.CreatorUserID,
		&entry.Title,
		&entry.Status,
		&updatedStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.GroupRegistryEntry{}, persistence.ErrNotFound
		}
		return persistence.GroupRegistryEntry{}, r.mapper.MapError(err)
	}
	if entry.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return persistence.GroupRegistryEntry{}, err
	}

	rows, err := r.helper.Query(ctx,
		"SELECT user_id FROM group_registry_participants WHERE session_id = ? ORDER BY position", sessionID)
	if err != nil {
		return persistence.GroupRegistryEntry{}, r.mapper.MapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return persistence.GroupRegistryEntry{}, r.mapper.MapError(err)
		}
		entry.ParticipantUserIDs = append(entry.ParticipantUserIDs, userID)
	}
	return entry, rows.Err()
}

// UpdateEntryStatus updates the discovery row's lifecycle state.
func (r *GroupRegistry) UpdateEntryStatus(ctx context.Context, sessionID, status string, at time.Time) error {
	result, err := r.helper.Exec(ctx,
		"UPDATE group_registry SET status = ?, updated_at = ? WHERE session_id = ?",
		status, formatTime(at), sessionID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
