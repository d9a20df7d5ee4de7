package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/calendar-federation/internal/persistence"
)

// ConstraintRepository implements persistence.ConstraintRepository using SQLite.
type ConstraintRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewConstraintRepository creates a new SQLite constraint repository.
func NewConstraintRepository(pool *ConnectionPool) *ConstraintRepository {
	return &ConstraintRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateConstraint inserts a scheduling constraint.
func (r *ConstraintRepository) CreateConstraint(ctx context.Context, constraint persistence.Constraint) error {
	if constraint.ID == "" {
		return persistence.ErrConstraintViolation
	}

	config := constraint.Config
	if config == "" {
		config = "{}"
	}

	query := `
		INSERT INTO constraints (id, subject_id, kind, config, active_from, active_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		constraint.ID,
		constraint.SubjectID,
		constraint.Kind,
		config,
		nullableTime(constraint.ActiveFrom),
		nullableTime(constraint.ActiveTo),
		formatTime(constraint.CreatedAt),
	)
	return r.mapper.MapError(err)
}

// ListConstraints returns every constraint stored for the subject.
func (r *ConstraintRepository) ListConstraints(ctx context.Context, subjectID string) ([]persistence.Constraint, error) {
	query := `
		SELECT id, subject_id, kind, config, active_from, active_to, created_at
		FROM constraints
		WHERE subject_id = ?
		ORDER BY created_at, id
	`

	rows, err := r.helper.Query(ctx, query, subjectID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var constraints []persistence.Constraint
	for rows.Next() {
		var constraint persistence.Constraint
		var activeFrom, activeTo sql.NullString
		var createdStr string
		if err := rows.Scan(
			&constraint.ID,
			&constraint.SubjectID,
			&constraint.Kind,
			&constraint.Config,
			&activeFrom,
			&activeTo,
			&createdStr,
		); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if constraint.ActiveFrom, err = parseNullableTime(activeFrom); err != nil {
			return nil, err
		}
		if constraint.ActiveTo, err = parseNullableTime(activeTo); err != nil {
			return nil, err
		}
		if constraint.CreatedAt, err = parseTime(createdStr); err != nil {
			return nil, err
		}
		constraints = append(constraints, constraint)
	}
	return constraints, rows.Err()
}

// DeleteConstraint removes a constraint by ID.
func (r *ConstraintRepository) DeleteConstraint(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, "DELETE FROM constraints WHERE id = ?", id)
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
