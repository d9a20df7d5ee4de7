package federation

import (
	"context"
	"fmt"
	"time"

	"github.com/example/calendar-federation/internal/application"
	"github.com/example/calendar-federation/internal/persistence"
	"github.com/example/calendar-federation/internal/persistence/sqlite"
)

// SharedStore is the one database every node shares: API principals, issued
// auth sessions and the group session registry. Per-user calendar data never
// lands here.
type SharedStore struct {
	pool     *sqlite.ConnectionPool
	users    *sqlite.UserRepository
	sessions *sqlite.AuthSessionRepository
	registry *sqlite.GroupRegistry
}

// OpenSharedStore opens and migrates the shared database.
func OpenSharedStore(dsn string) (*SharedStore, error) {
	pool, err := sqlite.NewConnectionPool(dsn)
	if err != nil {
		return nil, fmt.Errorf("open shared store: %w", err)
	}
	if err := sqlite.MigrateSharedStore(pool.DB()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate shared store: %w", err)
	}
	return &SharedStore{
		pool:     pool,
		users:    sqlite.NewUserRepository(pool),
		sessions: sqlite.NewAuthSessionRepository(pool),
		registry: sqlite.NewGroupRegistry(pool),
	}, nil
}

// Close releases the underlying connection pool.
func (s *SharedStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

// CreateUser implements application.UserStore.
func (s *SharedStore) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	stored := persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: passwordHash,
		IsAdmin:      user.IsAdmin,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
	if err := s.users.CreateUser(ctx, stored); err != nil {
		return application.User{}, err
	}
	return user, nil
}

// GetUser implements application.UserStore and the auth service's user lookup.
func (s *SharedStore) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := s.users.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return fromStoredUser(stored), nil
}

// ListUsers implements application.UserStore.
func (s *SharedStore) ListUsers(ctx context.Context) ([]application.User, error) {
	stored, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]application.User, 0, len(stored))
	for _, row := range stored {
		users = append(users, fromStoredUser(row))
	}
	return users, nil
}

// GetUserCredentialsByEmail implements application.CredentialStore.
func (s *SharedStore) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:         fromStoredUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

// CreateAuthSession implements application.AuthSessionStore.
func (s *SharedStore) CreateAuthSession(ctx context.Context, session application.AuthSession) (application.AuthSession, error) {
	stored, err := s.sessions.CreateAuthSession(ctx, persistence.AuthSession{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		RevokedAt: session.RevokedAt,
	})
	if err != nil {
		return application.AuthSession{}, err
	}
	return fromStoredAuthSession(stored), nil
}

// GetAuthSessionByToken implements application.AuthSessionStore.
func (s *SharedStore) GetAuthSessionByToken(ctx context.Context, token string) (application.AuthSession, error) {
	stored, err := s.sessions.GetAuthSessionByToken(ctx, token)
	if err != nil {
		return application.AuthSession{}, err
	}
	return fromStoredAuthSession(stored), nil
}

// RevokeAuthSession implements application.AuthSessionStore.
func (s *SharedStore) RevokeAuthSession(ctx context.Context, token string, revokedAt time.Time) error {
	return s.sessions.RevokeAuthSession(ctx, token, revokedAt)
}

// DeleteExpiredAuthSessions implements application.AuthSessionStore.
func (s *SharedStore) DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error {
	return s.sessions.DeleteExpiredAuthSessions(ctx, reference)
}

// SaveEntry implements application.GroupDirectory.
func (s *SharedStore) SaveEntry(ctx context.Context, entry application.GroupRegistryEntry) error {
	return s.registry.SaveEntry(ctx, persistence.GroupRegistryEntry{
		SessionID:          entry.SessionID,
		CreatorUserID:      entry.CreatorUserID,
		ParticipantUserIDs: entry.ParticipantUserIDs,
		Title:              entry.Title,
		Status:             string(entry.Status),
		UpdatedAt:          entry.UpdatedAt,
	})
}

// GetEntry implements application.GroupDirectory.
func (s *SharedStore) GetEntry(ctx context.Context, sessionID string) (application.GroupRegistryEntry, error) {
	stored, err := s.registry.GetEntry(ctx, sessionID)
	if err != nil {
		return application.GroupRegistryEntry{}, err
	}
	return application.GroupRegistryEntry{
		SessionID:          stored.SessionID,
		CreatorUserID:      stored.CreatorUserID,
		ParticipantUserIDs: stored.ParticipantUserIDs,
		Title:              stored.Title,
		Status:             application.SessionStatus(stored.Status),
		UpdatedAt:          stored.UpdatedAt,
	}, nil
}

// UpdateEntryStatus implements application.GroupDirectory.
func (s *SharedStore) UpdateEntryStatus(ctx context.Context, sessionID string, status application.SessionStatus, at time.Time) error {
	return s.registry.UpdateEntryStatus(ctx, sessionID, string(status), at)
}

func fromStoredUser(user persistence.User) application.User {
	return application.User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		IsAdmin:     user.IsAdmin,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

func fromStoredAuthSession(session persistence.AuthSession) application.AuthSession {
	return application.AuthSession{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		RevokedAt: session.RevokedAt,
	}
}
