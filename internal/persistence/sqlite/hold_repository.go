package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/calendar-federation/internal/persistence"
)

// HoldRepository implements persistence.HoldRepository using SQLite.
type HoldRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewHoldRepository creates a new SQLite hold repository.
func NewHoldRepository(pool *ConnectionPool) *HoldRepository {
	return &HoldRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateHolds inserts the holds in a single transaction.
func (r *HoldRepository) CreateHolds(ctx context.Context, holds []persistence.Hold) error {
	if len(holds) == 0 {
		return nil
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, hold := range holds {
			if err := insertHoldTx(r.helper, tx, r.mapper, hold); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListHoldsBySession returns every hold of the session regardless of status.
func (r *HoldRepository) ListHoldsBySession(ctx context.Context, sessionID string) ([]persistence.Hold, error) {
	query := `
		SELECT id, session_id, subject_id, start_time, end_time, status, expires_at, released_at
		FROM holds
		WHERE session_id = ?
		ORDER BY start_time, subject_id
	`

	rows, err := r.helper.Query(ctx, query, sessionID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var holds []persistence.Hold
	for rows.Next() {
		var hold persistence.Hold
		var startStr, endStr, expiresStr string
		var releasedAt sql.NullString
		if err := rows.Scan(
			&hold.ID,
			&hold.SessionID,
			&hold.SubjectID,
			&startStr,
			&endStr,
			&hold.Status,
			&expiresStr,
			&releasedAt,
		); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if hold.Start, err = parseTime(startStr); err != nil {
			return nil, err
		}
		if hold.End, err = parseTime(endStr); err != nil {
			return nil, err
		}
		if hold.ExpiresAt, err = parseTime(expiresStr); err != nil {
			return nil, err
		}
		if hold.ReleasedAt, err = parseNullableTime(releasedAt); err != nil {
			return nil, err
		}
		holds = append(holds, hold)
	}
	return holds, rows.Err()
}

// ReleaseHoldsForSession transitions every still-held hold of the session to
// released. Re-running the call finds nothing left to update, which makes it
// naturally idempotent.
func (r *HoldRepository) ReleaseHoldsForSession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.helper.Exec(ctx, `
		UPDATE holds
		SET status = 'released', released_at = ?
		WHERE session_id = ? AND status = 'held'
	`, formatTime(at), sessionID)
	return r.mapper.MapError(err)
}

// ReleaseExpiredHolds releases held holds whose deadline has passed and
// reports how many rows were transitioned. Expiry is just another way a hold
// reaches released; released_at records when the sweep caught it.
func (r *HoldRepository) ReleaseExpiredHolds(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.helper.Exec(ctx, `
		UPDATE holds
		SET status = 'released', released_at = ?
		WHERE status = 'held' AND expires_at <= ?
	`, formatTime(before), formatTime(before))
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func insertHoldTx(helper *QueryHelper, tx *sql.Tx, mapper *ErrorMapper, hold persistence.Hold) error {
	if hold.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := helper.ExecTx(tx, `
		INSERT INTO holds (id, session_id, subject_id, start_time, end_time, status, expires_at, released_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		hold.ID,
		hold.SessionID,
		hold.SubjectID,
		formatTime(hold.Start),
		formatTime(hold.End),
		hold.Status,
		formatTime(hold.ExpiresAt),
		nullableTime(hold.ReleasedAt),
	)
	return mapper.MapError(err)
}
