package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/calendar-federation/internal/availability"
	"github.com/example/calendar-federation/internal/identifier"
)

// CalendarStore is the per-user data surface backing calendar imports,
// constraints and milestones. All writes land in the owning user's store.
type CalendarStore interface {
	ImportEvent(ctx context.Context, event CalendarEvent) error
	GetEvent(ctx context.Context, id string) (CalendarEvent, error)
	AddConstraint(ctx context.Context, constraint SchedulingConstraint) error
	ListConstraints(ctx context.Context, subjectID string) ([]SchedulingConstraint, error)
	RemoveConstraint(ctx context.Context, id string) error
	AddMilestone(ctx context.Context, milestone RelationshipMilestone) error
	ListMilestones(ctx context.Context) ([]RelationshipMilestone, error)
	RemoveMilestone(ctx context.Context, id string) error
}

// CalendarStoreRouter resolves the calendar store owned by a user.
type CalendarStoreRouter interface {
	CalendarFor(ctx context.Context, userID string) (CalendarStore, error)
}

// CalendarService manages the data the availability resolver reads: imported
// events, scheduling constraints and relationship milestones. Every operation
// acts on the requesting principal's own store.
type CalendarService struct {
	stores      CalendarStoreRouter
	idGenerator func(prefix string) string
	now         func() time.Time
	logger      *slog.Logger
}

// NewCalendarService wires dependencies for calendar data operations.
func NewCalendarService(stores CalendarStoreRouter, idGenerator func(prefix string) string, now func() time.Time) *CalendarService {
	return NewCalendarServiceWithLogger(stores, idGenerator, now, nil)
}

// NewCalendarServiceWithLogger constructs a CalendarService with a specified logger.
func NewCalendarServiceWithLogger(stores CalendarStoreRouter, idGenerator func(prefix string) string, now func() time.Time, logger *slog.Logger) *CalendarService {
	if idGenerator == nil {
		idGenerator = identifier.New
	}
	if now == nil {
		now = time.Now
	}
	return &CalendarService{
		stores:      stores,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *CalendarService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CalendarService", operation, attrs...)
}

func (s *CalendarService) storeFor(ctx context.Context, principal Principal) (CalendarStore, error) {
	if s == nil || s.stores == nil {
		return nil, fmt.Errorf("calendar store router not configured")
	}
	return s.stores.CalendarFor(ctx, principal.UserID)
}

// ImportEvent records an externally sourced event in the principal's store.
func (s *CalendarService) ImportEvent(ctx context.Context, params ImportEventParams) (result CalendarEvent, err error) {
	logger := s.loggerWith(ctx, "ImportEvent", "user_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "event import failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", result.ID).InfoContext(ctx, "event imported")
	}()

	input := params.Input
	status := input.Status
	if status == "" {
		status = EventStatusConfirmed
	}
	transparency := input.Transparency
	if transparency == "" {
		transparency = EventTransparencyOpaque
	}

	vErr := &ValidationError{}
	if strings.TrimSpace(input.CalendarID) == "" {
		vErr.add("calendar_id", "calendarId is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}
	if input.Start.IsZero() || input.End.IsZero() || !input.Start.Before(input.End) {
		vErr.add("window", "start must be before end")
	}
	switch status {
	case EventStatusConfirmed, EventStatusTentative, EventStatusCancelled:
	default:
		vErr.add("status", "status must be confirmed, tentative or cancelled")
	}
	switch transparency {
	case EventTransparencyOpaque, EventTransparencyTransparent:
	default:
		vErr.add("transparency", "transparency must be opaque or transparent")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	store, serr := s.storeFor(ctx, params.Principal)
	if serr != nil {
		err = serr
		return
	}

	event := CalendarEvent{
		ID:           s.idGenerator(identifier.PrefixEvent),
		CalendarID:   strings.TrimSpace(input.CalendarID),
		Title:        strings.TrimSpace(input.Title),
		Start:        input.Start,
		End:          input.End,
		Source:       EventSourceNative,
		Status:       status,
		Transparency: transparency,
		CreatedAt:    s.now(),
	}
	if perr := store.ImportEvent(ctx, event); perr != nil {
		err = mapStoreError(perr)
		return
	}
	result = event
	return
}

// GetEvent reads one event from the principal's own store.
func (s *CalendarService) GetEvent(ctx context.Context, params EventRequestParams) (CalendarEvent, error) {
	store, err := s.storeFor(ctx, params.Principal)
	if err != nil {
		return CalendarEvent{}, err
	}
	event, err := store.GetEvent(ctx, params.EventID)
	if err != nil {
		return CalendarEvent{}, mapStoreError(err)
	}
	return event, nil
}

// CreateConstraint records a working-hours preference or a trip block.
func (s *CalendarService) CreateConstraint(ctx context.Context, params CreateConstraintParams) (result SchedulingConstraint, err error) {
	logger := s.loggerWith(ctx, "CreateConstraint", "user_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "constraint creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("constraint_id", result.ID, "kind", result.Kind).InfoContext(ctx, "constraint created")
	}()

	input := params.Input
	vErr := &ValidationError{}
	if strings.TrimSpace(input.SubjectID) == "" {
		vErr.add("subject_id", "subjectId is required")
	}

	switch availability.ConstraintKind(input.Kind) {
	case availability.ConstraintWorkingHours:
		validateWorkingHours(input.WorkingHours, vErr)
	case availability.ConstraintTrip:
		if input.ActiveFrom == nil || input.ActiveTo == nil {
			vErr.add("active_window", "trip requires activeFrom and activeTo")
		} else if !input.ActiveFrom.Before(*input.ActiveTo) {
			vErr.add("active_window", "activeFrom must be before activeTo")
		}
	default:
		vErr.add("kind", "kind must be working_hours or trip")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	store, serr := s.storeFor(ctx, params.Principal)
	if serr != nil {
		err = serr
		return
	}

	constraint := SchedulingConstraint{
		ID:           s.idGenerator(identifier.PrefixConstraint),
		SubjectID:    strings.TrimSpace(input.SubjectID),
		Kind:         input.Kind,
		WorkingHours: input.WorkingHours,
		ActiveFrom:   input.ActiveFrom,
		ActiveTo:     input.ActiveTo,
		CreatedAt:    s.now(),
	}
	if perr := store.AddConstraint(ctx, constraint); perr != nil {
		err = mapStoreError(perr)
		return
	}
	result = constraint
	return
}

// ListConstraints returns the principal's constraints for one subject.
func (s *CalendarService) ListConstraints(ctx context.Context, params ConstraintRequestParams) ([]SchedulingConstraint, error) {
	if strings.TrimSpace(params.SubjectID) == "" {
		vErr := &ValidationError{}
		vErr.add("subject_id", "subjectId is required")
		return nil, vErr
	}

	store, err := s.storeFor(ctx, params.Principal)
	if err != nil {
		return nil, err
	}
	constraints, err := store.ListConstraints(ctx, params.SubjectID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return constraints, nil
}

// DeleteConstraint removes one constraint from the principal's store.
func (s *CalendarService) DeleteConstraint(ctx context.Context, params ConstraintRequestParams) error {
	store, err := s.storeFor(ctx, params.Principal)
	if err != nil {
		return err
	}
	if err := store.RemoveConstraint(ctx, params.ConstraintID); err != nil {
		return mapStoreError(err)
	}
	return nil
}

// CreateMilestone records a relationship milestone in the principal's store.
func (s *CalendarService) CreateMilestone(ctx context.Context, params CreateMilestoneParams) (result RelationshipMilestone, err error) {
	logger := s.loggerWith(ctx, "CreateMilestone", "user_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "milestone creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("milestone_id", result.ID).InfoContext(ctx, "milestone created")
	}()

	input := params.Input
	vErr := &ValidationError{}
	if strings.TrimSpace(input.RelationshipID) == "" {
		vErr.add("relationship_id", "relationshipId is required")
	}
	switch availability.MilestoneKind(input.Kind) {
	case availability.MilestoneBirthday, availability.MilestoneAnniversary, availability.MilestoneCustom:
	default:
		vErr.add("kind", "kind must be birthday, anniversary or custom")
	}
	if input.Date.IsZero() {
		vErr.add("date", "date is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	store, serr := s.storeFor(ctx, params.Principal)
	if serr != nil {
		err = serr
		return
	}

	milestone := RelationshipMilestone{
		ID:             s.idGenerator(identifier.PrefixMilestone),
		RelationshipID: strings.TrimSpace(input.RelationshipID),
		Kind:           input.Kind,
		Date:           input.Date,
		RecursAnnually: input.RecursAnnually,
		Note:           input.Note,
		CreatedAt:      s.now(),
	}
	if perr := store.AddMilestone(ctx, milestone); perr != nil {
		err = mapStoreError(perr)
		return
	}
	result = milestone
	return
}

// ListMilestones returns every milestone in the principal's store.
func (s *CalendarService) ListMilestones(ctx context.Context, principal Principal) ([]RelationshipMilestone, error) {
	store, err := s.storeFor(ctx, principal)
	if err != nil {
		return nil, err
	}
	milestones, err := store.ListMilestones(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return milestones, nil
}

// DeleteMilestone removes one milestone from the principal's store.
func (s *CalendarService) DeleteMilestone(ctx context.Context, params MilestoneRequestParams) error {
	store, err := s.storeFor(ctx, params.Principal)
	if err != nil {
		return err
	}
	if err := store.RemoveMilestone(ctx, params.MilestoneID); err != nil {
		return mapStoreError(err)
	}
	return nil
}

func validateWorkingHours(config *WorkingHoursConfig, vErr *ValidationError) {
	if config == nil {
		vErr.add("working_hours", "workingHours config is required")
		return
	}
	if len(config.Weekdays) == 0 {
		vErr.add("working_hours", "workingHours requires at least one weekday")
	}
	for _, day := range config.Weekdays {
		if day < 0 || day > 6 {
			vErr.add("working_hours", "weekdays must be between 0 and 6")
			break
		}
	}
	if config.StartMinute < 0 || config.EndMinute > 24*60 || config.StartMinute >= config.EndMinute {
		vErr.add("working_hours", "startMinute must be before endMinute within one day")
	}
}
