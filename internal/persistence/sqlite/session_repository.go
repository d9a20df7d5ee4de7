package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/calendar-federation/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite.
type SessionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateSession persists the session with its required accounts, candidates
// and holds in a single transaction.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session, candidates []persistence.Candidate, holds []persistence.Hold) error {
	if session.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO sessions (id, user_id, title, duration_minutes, window_start, window_end,
				max_candidates, hold_timeout_ms, target_calendar_id, status,
				committed_candidate_id, committed_event_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := r.helper.ExecTx(tx, query,
			session.ID,
			session.UserID,
			session.Title,
			session.DurationMinutes,
			formatTime(session.WindowStart),
			formatTime(session.WindowEnd),
			session.MaxCandidates,
			session.HoldTimeoutMs,
			session.TargetCalendarID,
			session.Status,
			nullString(session.CommittedCandidateID),
			nullString(session.CommittedEventID),
			formatTime(session.CreatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		for position, accountID := range session.RequiredAccountIDs {
			_, err := r.helper.ExecTx(tx,
				"INSERT INTO session_accounts (session_id, account_id, position) VALUES (?, ?, ?)",
				session.ID, accountID, position,
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
		}

		for position, cand := range candidates {
			_, err := r.helper.ExecTx(tx,
				"INSERT INTO candidates (id, session_id, start_time, end_time, score, explanation, position) VALUES (?, ?, ?, ?, ?, ?, ?)",
				cand.ID, cand.SessionID, formatTime(cand.Start), formatTime(cand.End), cand.Score, cand.Explanation, position,
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
		}

		for _, hold := range holds {
			if err := insertHoldTx(r.helper, tx, r.mapper, hold); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetSession retrieves a session with its required accounts.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	if id == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	query := `
		SELECT id, user_id, title, duration_minutes, window_start, window_end,
			max_candidates, hold_timeout_ms, target_calendar_id, status,
			committed_candidate_id, committed_event_id, created_at
		FROM sessions
		WHERE id = ?
	`

	var session persistence.Session
	var windowStartStr, windowEndStr, createdStr string
	var committedCandidate, committedEvent sql.NullString
	err := r.helper.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.Title,
		&session.DurationMinutes,
		&windowStartStr,
		&windowEndStr,
		&session.MaxCandidates,
		&session.HoldTimeoutMs,
		&session.TargetCalendarID,
		&session.Status,
		&committedCandidate,
		&committedEvent,
		&createdStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Session{}, persistence.ErrNotFound
		}
		return persistence.Session{}, r.mapper.MapError(err)
	}

	if session.WindowStart, err = parseTime(windowStartStr); err != nil {
		return persistence.Session{}, err
	}
	if session.WindowEnd, err = parseTime(windowEndStr); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTime(createdStr); err != nil {
		return persistence.Session{}, err
	}
	session.CommittedCandidateID = stringPtr(committedCandidate)
	session.CommittedEventID = stringPtr(committedEvent)

	accounts, err := r.listAccounts(ctx, id)
	if err != nil {
		return persistence.Session{}, err
	}
	session.RequiredAccountIDs = accounts
	return session, nil
}

// UpdateSessionStatus performs a guarded terminal transition. The update only
// applies while the session is still live; a session already in a terminal
// state yields ErrConstraintViolation so callers can distinguish a lost race
// from a missing row.
func (r *SessionRepository) UpdateSessionStatus(ctx context.Context, id, status string, committedCandidateID, committedEventID *string) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := r.helper.ExecTx(tx, `
			UPDATE sessions
			SET status = ?, committed_candidate_id = ?, committed_event_id = ?
			WHERE id = ? AND status NOT IN ('committed', 'cancelled')
		`, status, nullString(committedCandidateID), nullString(committedEventID), id)
		if err != nil {
			return r.mapper.MapError(err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected > 0 {
			return nil
		}

		var existing string
		err = r.helper.QueryRowTx(tx, "SELECT status FROM sessions WHERE id = ?", id).Scan(&existing)
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ErrNotFound
		}
		if err != nil {
			return r.mapper.MapError(err)
		}
		return fmt.Errorf("%w: session %s is %s", persistence.ErrConstraintViolation, id, existing)
	})
}

// RecordCommittedEvent stores the calendar event id written for an already
// committed session.
func (r *SessionRepository) RecordCommittedEvent(ctx context.Context, id, eventID string) error {
	result, err := r.helper.Exec(ctx, `
		UPDATE sessions
		SET committed_event_id = ?
		WHERE id = ? AND status = 'committed'
	`, eventID, id)
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

// ListCandidates returns the ranked candidate list for the session.
func (r *SessionRepository) ListCandidates(ctx context.Context, sessionID string) ([]persistence.Candidate, error) {
	return r.listCandidatesFrom(ctx, "candidates", sessionID)
}

// GetCandidate returns a single candidate scoped to its session.
func (r *SessionRepository) GetCandidate(ctx context.Context, sessionID, candidateID string) (persistence.Candidate, error) {
	return r.getCandidateFrom(ctx, "candidates", sessionID, candidateID)
}

func (r *SessionRepository) listAccounts(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := r.helper.Query(ctx,
		"SELECT account_id FROM session_accounts WHERE session_id = ? ORDER BY position", sessionID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var accountID string
		if err := rows.Scan(&accountID); err != nil {
			return nil, r.mapper.MapError(err)
		}
		accounts = append(accounts, accountID)
	}
	return accounts, rows.Err()
}

func (r *SessionRepository) listCandidatesFrom(ctx context.Context, table, sessionID string) ([]persistence.Candidate, error) {
	query := fmt.Sprintf(`
		SELECT id, session_id, start_time, end_time, score, explanation
		FROM %s
		WHERE session_id = ?
		ORDER BY position
	`, table)

	rows, err := r.helper.Query(ctx, query, sessionID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var candidates []persistence.Candidate
	for rows.Next() {
		cand, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, cand)
	}
	return candidates, rows.Err()
}

func (r *SessionRepository) getCandidateFrom(ctx context.Context, table, sessionID, candidateID string) (persistence.Candidate, error) {
	query := fmt.Sprintf(`
		SELECT id, session_id, start_time, end_time, score, explanation
		FROM %s
		WHERE session_id = ? AND id = ?
	`, table)

	var cand persistence.Candidate
	var startStr, endStr string
	err := r.helper.QueryRow(ctx, query, sessionID, candidateID).Scan(
		&cand.ID, &cand.SessionID, &startStr, &endStr, &cand.Score, &cand.Explanation,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Candidate{}, persistence.ErrNotFound
		}
		return persistence.Candidate{}, r.mapper.MapError(err)
	}
	if cand.Start, err = parseTime(startStr); err != nil {
		return persistence.Candidate{}, err
	}
	if cand.End, err = parseTime(endStr); err != nil {
		return persistence.Candidate{}, err
	}
	return cand, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (persistence.Candidate, error) {
	var cand persistence.Candidate
	var startStr, endStr string
	if err := row.Scan(&cand.ID, &cand.SessionID, &startStr, &endStr, &cand.Score, &cand.Explanation); err != nil {
		return persistence.Candidate{}, err
	}
	var err error
	if cand.Start, err = parseTime(startStr); err != nil {
		return persistence.Candidate{}, err
	}
	if cand.End, err = parseTime(endStr); err != nil {
		return persistence.Candidate{}, err
	}
	return cand, nil
}

func nullString(value *string) sql.NullString {
	if value == nil || *value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	out := value.String
	return &out
}
