package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/calendar-federation/internal/persistence"
)

// MilestoneRepository implements persistence.MilestoneRepository using SQLite.
type MilestoneRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewMilestoneRepository creates a new SQLite milestone repository.
func NewMilestoneRepository(pool *ConnectionPool) *MilestoneRepository {
	return &MilestoneRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateMilestone inserts a relationship milestone.
func (r *MilestoneRepository) CreateMilestone(ctx context.Context, milestone persistence.Milestone) error {
	if milestone.ID == "" {
		return persistence.ErrConstraintViolation
	}

	var note sql.NullString
	if milestone.Note != nil {
		note = sql.NullString{String: *milestone.Note, Valid: true}
	}

	query := `
		INSERT INTO milestones (id, relationship_id, kind, date, recurs_annually, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		milestone.ID,
		milestone.RelationshipID,
		milestone.Kind,
		formatTime(milestone.Date),
		boolToInt(milestone.RecursAnnually),
		note,
		formatTime(milestone.CreatedAt),
	)
	return r.mapper.MapError(err)
}

// ListMilestones returns every stored milestone.
func (r *MilestoneRepository) ListMilestones(ctx context.Context) ([]persistence.Milestone, error) {
	query := `
		SELECT id, relationship_id, kind, date, recurs_annually, note, created_at
		FROM milestones
		ORDER BY date, id
	`

	rows, err := r.helper.Query(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var milestones []persistence.Milestone
	for rows.Next() {
		var milestone persistence.Milestone
		var dateStr, createdStr string
		var recurs int
		var note sql.NullString
		if err := rows.Scan(
			&milestone.ID,
			&milestone.RelationshipID,
			&milestone.Kind,
			&dateStr,
			&recurs,
			&note,
			&createdStr,
		); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if milestone.Date, err = parseTime(dateStr); err != nil {
			return nil, err
		}
		if milestone.CreatedAt, err = parseTime(createdStr); err != nil {
			return nil, err
		}
		milestone.RecursAnnually = recurs != 0
		if note.Valid {
			value := note.String
			milestone.Note = &value
		}
		milestones = append(milestones, milestone)
	}
	return milestones, rows.Err()
}

// DeleteMilestone removes a milestone by ID.
func (r *MilestoneRepository) DeleteMilestone(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, "DELETE FROM milestones WHERE id = ?", id)
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

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
