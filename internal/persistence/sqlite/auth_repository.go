package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/calendar-federation/internal/persistence"
)

// AuthSessionRepository implements persistence.AuthSessionRepository on the
// shared store.
type AuthSessionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewAuthSessionRepository creates a new SQLite auth session repository.
func NewAuthSessionRepository(pool *ConnectionPool) *AuthSessionRepository {
	return &AuthSessionRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateAuthSession inserts a bearer-token session.
func (r *AuthSessionRepository) CreateAuthSession(ctx context.Context, session persistence.AuthSession) (persistence.AuthSession, error) {
	if session.ID == "" || session.Token == "" {
		return persistence.AuthSession{}, persistence.ErrConstraintViolation
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO auth_sessions (id, user_id, token, expires_at, created_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		session.ID,
		session.UserID,
		session.Token,
		formatTime(session.ExpiresAt),
		formatTime(session.CreatedAt),
		nullableTime(session.RevokedAt),
	)
	if err != nil {
		return persistence.AuthSession{}, r.mapper.MapError(err)
	}
	return session, nil
}

// GetAuthSessionByToken retrieves a session by its bearer token.
func (r *AuthSessionRepository) GetAuthSessionByToken(ctx context.Context, token string) (persistence.AuthSession, error) {
	if token == "" {
		return persistence.AuthSession{}, persistence.ErrNotFound
	}

	var session persistence.AuthSession
	var expiresStr, createdStr string
	var revokedAt sql.NullString
	err := r.helper.QueryRow(ctx, `
		SELECT id, user_id, token, expires_at, created_at, revoked_at
		FROM auth_sessions
		WHERE token = ?
	`, token).Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&expiresStr,
		&createdStr,
		&revokedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.AuthSession{}, persistence.ErrNotFound
		}
		return persistence.AuthSession{}, r.mapper.MapError(err)
	}

	if session.ExpiresAt, err = parseTime(expiresStr); err != nil {
		return persistence.AuthSession{}, err
	}
	if session.CreatedAt, err = parseTime(createdStr); err != nil {
		return persistence.AuthSession{}, err
	}
	if session.RevokedAt, err = parseNullableTime(revokedAt); err != nil {
		return persistence.AuthSession{}, err
	}
	return session, nil
}

// RevokeAuthSession marks a session revoked.
func (r *AuthSessionRepository) RevokeAuthSession(ctx context.Context, token string, revokedAt time.Time) error {
	result, err := r.helper.Exec(ctx,
		"UPDATE auth_sessions SET revoked_at = ? WHERE token = ? AND revoked_at IS NULL",
		formatTime(revokedAt), token)
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

// DeleteExpiredAuthSessions prunes sessions past their expiry.
func (r *AuthSessionRepository) DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error {
	_, err := r.helper.Exec(ctx,
		"DELETE FROM auth_sessions WHERE expires_at <= ?", formatTime(reference))
	return r.mapper.MapError(err)
}
