package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/calendar-federation/internal/persistence"
)

// GroupSessionRepository implements persistence.GroupSessionRepository using
// SQLite. Group sessions live in the creator's store only.
type GroupSessionRepository struct {
	pool     *ConnectionPool
	helper   *QueryHelper
	mapper   *ErrorMapper
	sessions *SessionRepository
}

// NewGroupSessionRepository creates a new SQLite group session repository.
func NewGroupSessionRepository(pool *ConnectionPool) *GroupSessionRepository {
	return &GroupSessionRepository{
		pool:     pool,
		helper:   NewQueryHelper(pool),
		mapper:   NewErrorMapper(),
		sessions: NewSessionRepository(pool),
	}
}

// CreateGroupSession persists the session with its participants and candidates
// in one transaction.
func (r *GroupSessionRepository) CreateGroupSession(ctx context.Context, session persistence.GroupSession, candidates []persistence.Candidate) error {
	if session.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO group_sessions (id, creator_user_id, title, duration_minutes,
				window_start, window_end, status, committed_candidate_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := r.helper.ExecTx(tx, query,
			session.ID,
			session.CreatorUserID,
			session.Title,
			session.DurationMinutes,
			formatTime(session.WindowStart),
			formatTime(session.WindowEnd),
			session.Status,
			nullString(session.CommittedCandidateID),
			formatTime(session.CreatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		for position, userID := range session.ParticipantUserIDs {
			_, err := r.helper.ExecTx(tx,
				"INSERT INTO group_participants (session_id, user_id, position) VALUES (?, ?, ?)",
				session.ID, userID, position,
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
		}

		for position, cand := range candidates {
			_, err := r.helper.ExecTx(tx,
				"INSERT INTO group_candidates (id, session_id, start_time, end_time, score, explanation, position) VALUES (?, ?, ?, ?, ?, ?, ?)",
				cand.ID, cand.SessionID, formatTime(cand.Start), formatTime(cand.End), cand.Score, cand.Explanation, position,
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
		}
		return nil
	})
}

// GetGroupSession retrieves a group session with its participant list.
func (r *GroupSessionRepository) GetGroupSession(ctx context.Context, id string) (persistence.GroupSession, error) {
	if id == "" {
		return persistence.GroupSession{}, persistence.ErrNotFound
	}

	query := `
		SELECT id, creator_user_id, title, duration_minutes, window_start, window_end,
			status, committed_candidate_id, created_at
		FROM group_sessions
		WHERE id = ?
	`

	var session persistence.GroupSession
	var windowStartStr, windowEndStr, createdStr string
	var committedCandidate sql.NullString
	err := r.helper.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.CreatorUserID,
		&session.Title,
		&session.DurationMinutes,
		&windowStartStr,
		&windowEndStr,
		&session.Status,
		&committedCandidate,
		&createdStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.GroupSession{}, persistence.ErrNotFound
		}
		return persistence.GroupSession{}, r.mapper.MapError(err)
	}

	if session.WindowStart, err = parseTime(windowStartStr); err != nil {
		return persistence.GroupSession{}, err
	}
	if session.WindowEnd, err = parseTime(windowEndStr); err != nil {
		return persistence.GroupSession{}, err
	}
	if session.CreatedAt, err = parseTime(createdStr); err != nil {
		return persistence.GroupSession{}, err
	}
	session.CommittedCandidateID = stringPtr(committedCandidate)

	rows, err := r.helper.Query(ctx,
		"SELECT user_id FROM group_participants WHERE session_id = ? ORDER BY position", id)
	if err != nil {
		return persistence.GroupSession{}, r.mapper.MapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return persistence.GroupSession{}, r.mapper.MapError(err)
		}
		session.ParticipantUserIDs = append(session.ParticipantUserIDs, userID)
	}
	return session, rows.Err()
}

// UpdateGroupSessionStatus performs a guarded terminal transition, mirroring
// the single-user session semantics.
func (r *GroupSessionRepository) UpdateGroupSessionStatus(ctx context.Context, id, status string, committedCandidateID *string) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := r.helper.ExecTx(tx, `
			UPDATE group_sessions
			SET status = ?, committed_candidate_id = ?
			WHERE id = ? AND status NOT IN ('committed', 'cancelled')
		`, status, nullString(committedCandidateID), id)
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
		err = r.helper.QueryRowTx(tx, "SELECT status FROM group_sessions WHERE id = ?", id).Scan(&existing)
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ErrNotFound
		}
		if err != nil {
			return r.mapper.MapError(err)
		}
		return fmt.Errorf("%w: group session %s is %s", persistence.ErrConstraintViolation, id, existing)
	})
}

// ListGroupCandidates returns the ranked candidate list for the group session.
func (r *GroupSessionRepository) ListGroupCandidates(ctx context.Context, sessionID string) ([]persistence.Candidate, error) {
	return r.sessions.listCandidatesFrom(ctx, "group_candidates", sessionID)
}

// GetGroupCandidate returns a single candidate scoped to its group session.
func (r *GroupSessionRepository) GetGroupCandidate(ctx context.Context, sessionID, candidateID string) (persistence.Candidate, error) {
	return r.sessions.getCandidateFrom(ctx, "group_candidates", sessionID, candidateID)
}
