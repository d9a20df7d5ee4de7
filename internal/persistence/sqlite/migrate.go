package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/user/*.sql migrations/shared/*.sql
var migrations embed.FS

// goose keeps dialect and base FS as package state.
var migrateMu sync.Mutex

// MigrateUserStore applies the per-user store schema.
func MigrateUserStore(db *sql.DB) error {
	return runMigrations(db, "migrations/user")
}

// MigrateSharedStore applies the shared store schema (users, auth sessions
// and the group registry).
func MigrateSharedStore(db *sql.DB) error {
	return runMigrations(db, "migrations/shared")
}

func runMigrations(db *sql.DB, dir string) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("goose up %s: %w", dir, err)
	}
	return nil
}
