package federation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/example/calendar-federation/internal/application"
	"github.com/example/calendar-federation/internal/identifier"
	"github.com/example/calendar-federation/internal/persistence/sqlite"
)

// Router owns the mapping from user ID to that user's database. Stores open
// lazily on first use, get migrated on open and stay cached for the life of
// the process.
type Router struct {
	dataDir     string
	idGenerator func(prefix string) string
	now         func() time.Time
	logger      *slog.Logger

	mu     sync.Mutex
	stores map[string]*UserStore
	closed bool
}

// NewRouter prepares the data directory and returns an empty router.
func NewRouter(dataDir string, idGenerator func(prefix string) string, now func() time.Time, logger *slog.Logger) (*Router, error) {
	if idGenerator == nil {
		idGenerator = identifier.New
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Router{
		dataDir:     dataDir,
		idGenerator: idGenerator,
		now:         now,
		logger:      logger,
		stores:      make(map[string]*UserStore),
	}, nil
}

// UserStore returns the store owning the user's data, opening and migrating
// the database on first access.
func (r *Router) UserStore(ctx context.Context, userID string) (*UserStore, error) {
	fileName, err := storeFileName(userID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("store router is closed")
	}
	if store, ok := r.stores[userID]; ok {
		return store, nil
	}

	pool, err := sqlite.NewConnectionPool(filepath.Join(r.dataDir, fileName))
	if err != nil {
		return nil, fmt.Errorf("open store for %s: %w", userID, err)
	}
	if err := sqlite.MigrateUserStore(pool.DB()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate store for %s: %w", userID, err)
	}

	store := newUserStore(userID, pool, r.idGenerator, r.now)

	// Holds may have expired while the store was offline.
	if released, err := store.SweepExpiredHolds(ctx); err != nil {
		r.logger.WarnContext(ctx, "initial hold sweep failed", "user_id", userID, "error", err)
	} else if released > 0 {
		r.logger.InfoContext(ctx, "released expired holds on open", "user_id", userID, "count", released)
	}

	r.stores[userID] = store
	return store, nil
}

// StoreFor implements application.StoreRouter.
func (r *Router) StoreFor(ctx context.Context, userID string) (application.ParticipantStore, error) {
	return r.UserStore(ctx, userID)
}

// CalendarFor implements application.CalendarStoreRouter.
func (r *Router) CalendarFor(ctx context.Context, userID string) (application.CalendarStore, error) {
	return r.UserStore(ctx, userID)
}

// SweepExpiredHolds releases expired holds in every open store and reports the
// total. Stores not yet opened are swept when they open.
func (r *Router) SweepExpiredHolds(ctx context.Context) (int64, error) {
	r.mu.Lock()
	stores := make([]*UserStore, 0, len(r.stores))
	for _, store := range r.stores {
		stores = append(stores, store)
	}
	r.mu.Unlock()

	var total int64
	var errs []error
	for _, store := range stores {
		released, err := store.SweepExpiredHolds(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep %s: %w", store.UserID(), err))
			continue
		}
		total += released
	}
	return total, errors.Join(errs...)
}

// Close closes every open store. The router cannot be used afterwards.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for userID, store := range r.stores {
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store for %s: %w", userID, err))
		}
	}
	r.stores = nil
	return errors.Join(errs...)
}

// storeFileName derives a safe database file name from the user ID.
func storeFileName(userID string) (string, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return "", fmt.Errorf("user id is required")
	}

	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '-'
	}, trimmed)
	return safe + ".db", nil
}
