package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/calendar-federation/internal/availability"
	"github.com/example/calendar-federation/internal/interval"
	"github.com/example/calendar-federation/internal/persistence/sqlite"
)

// workingHoursConfig is the stored JSON shape of a working_hours constraint.
type workingHoursConfig struct {
	Weekdays    []int  `json:"weekdays"`
	StartMinute int    `json:"startMinute"`
	EndMinute   int    `json:"endMinute"`
	Timezone    string `json:"timezone,omitempty"`
}

func parseWorkingHoursConfig(raw string) (workingHoursConfig, error) {
	var config workingHoursConfig
	if err := json.Unmarshal([]byte(raw), &config); err != nil {
		return workingHoursConfig{}, fmt.Errorf("decode working hours config: %w", err)
	}
	return config, nil
}

// calendarBusySource reads busy intervals for one calendar account.
type calendarBusySource struct {
	events *sqlite.EventRepository
}

func (s calendarBusySource) BusyIntervals(ctx context.Context, subjectID string, window interval.Span) ([]interval.Span, error) {
	return s.events.ListBusyIntervals(ctx, subjectID, window)
}

// storeBusySource reads busy intervals across every calendar in the store,
// used when the store's owner is the scheduling subject.
type storeBusySource struct {
	events *sqlite.EventRepository
}

func (s storeBusySource) BusyIntervals(ctx context.Context, subjectID string, window interval.Span) ([]interval.Span, error) {
	return s.events.ListAllBusyIntervals(ctx, window)
}

// constraintSource maps stored constraint rows into the availability model.
type constraintSource struct {
	constraints *sqlite.ConstraintRepository
}

func (s constraintSource) ListConstraints(ctx context.Context, subjectID string) ([]availability.Constraint, error) {
	stored, err := s.constraints.ListConstraints(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	constraints := make([]availability.Constraint, 0, len(stored))
	for _, row := range stored {
		constraint := availability.Constraint{
			ID:         row.ID,
			Kind:       availability.ConstraintKind(row.Kind),
			ActiveFrom: row.ActiveFrom,
			ActiveTo:   row.ActiveTo,
		}
		if constraint.Kind == availability.ConstraintWorkingHours {
			config, err := parseWorkingHoursConfig(row.Config)
			if err != nil {
				return nil, fmt.Errorf("constraint %s: %w", row.ID, err)
			}
			weekdays := make([]time.Weekday, 0, len(config.Weekdays))
			for _, day := range config.Weekdays {
				weekdays = append(weekdays, time.Weekday(day))
			}
			constraint.WorkingHours = &availability.WorkingHours{
				Weekdays:    weekdays,
				StartMinute: config.StartMinute,
				EndMinute:   config.EndMinute,
				Timezone:    config.Timezone,
			}
		}
		constraints = append(constraints, constraint)
	}
	return constraints, nil
}

// milestoneSource exposes every stored milestone; milestones block their
// owner's whole store regardless of the subject being resolved.
type milestoneSource struct {
	milestones *sqlite.MilestoneRepository
}

func (s milestoneSource) ListMilestones(ctx context.Context, subjectID string) ([]availability.Milestone, error) {
	stored, err := s.milestones.ListMilestones(ctx)
	if err != nil {
		return nil, err
	}

	milestones := make([]availability.Milestone, 0, len(stored))
	for _, row := range stored {
		milestone := availability.Milestone{
			ID:             row.ID,
			RelationshipID: row.RelationshipID,
			Kind:           availability.MilestoneKind(row.Kind),
			Date:           row.Date,
			RecursAnnually: row.RecursAnnually,
		}
		if row.Note != nil {
			milestone.Note = *row.Note
		}
		milestones = append(milestones, milestone)
	}
	return milestones, nil
}
