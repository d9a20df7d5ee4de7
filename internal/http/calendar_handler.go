package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/calendar-federation/internal/application"
)

type calendarService interface {
	ImportEvent(ctx context.Context, params application.ImportEventParams) (application.CalendarEvent, error)
	GetEvent(ctx context.Context, params application.EventRequestParams) (application.CalendarEvent, error)
	CreateConstraint(ctx context.Context, params application.CreateConstraintParams) (application.SchedulingConstraint, error)
	ListConstraints(ctx context.Context, params application.ConstraintRequestParams) ([]application.SchedulingConstraint, error)
	DeleteConstraint(ctx context.Context, params application.ConstraintRequestParams) error
	CreateMilestone(ctx context.Context, params application.CreateMilestoneParams) (application.RelationshipMilestone, error)
	ListMilestones(ctx context.Context, principal application.Principal) ([]application.RelationshipMilestone, error)
	DeleteMilestone(ctx context.Context, params application.MilestoneRequestParams) error
}

// CalendarHandler serves event imports, scheduling constraints and
// relationship milestones, all scoped to the caller's own store.
type CalendarHandler struct {
	service   calendarService
	responder responder
}

func NewCalendarHandler(service calendarService, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{service: service, responder: newResponder(logger)}
}

func (h *CalendarHandler) ImportEvent(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	event, err := h.service.ImportEvent(r.Context(), application.ImportEventParams{
		Principal: principal,
		Input: application.EventImportInput{
			CalendarID:   strings.TrimSpace(req.CalendarID),
			Title:        strings.TrimSpace(req.Title),
			Start:        parseTime(req.Start),
			End:          parseTime(req.End),
			Status:       strings.TrimSpace(req.Status),
			Transparency: strings.TrimSpace(req.Transparency),
		},
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, eventResponse{Event: toEventDTO(event)})
}

func (h *CalendarHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	event, err := h.service.GetEvent(r.Context(), application.EventRequestParams{
		Principal: principal,
		EventID:   eventID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

func (h *CalendarHandler) CreateConstraint(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req constraintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	constraint, err := h.service.CreateConstraint(r.Context(), application.CreateConstraintParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, constraintResponse{Constraint: toConstraintDTO(constraint)})
}

func (h *CalendarHandler) ListConstraints(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	constraints, err := h.service.ListConstraints(r.Context(), application.ConstraintRequestParams{
		Principal: principal,
		SubjectID: strings.TrimSpace(r.URL.Query().Get("subject_id")),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]constraintDTO, 0, len(constraints))
	for _, constraint := range constraints {
		out = append(out, toConstraintDTO(constraint))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listConstraintsResponse{Constraints: out})
}

func (h *CalendarHandler) DeleteConstraint(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	constraintID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(constraintID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidConstraintID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.DeleteConstraint(r.Context(), application.ConstraintRequestParams{
		Principal:    principal,
		ConstraintID: constraintID,
	}); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *CalendarHandler) CreateMilestone(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req milestoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	milestone, err := h.service.CreateMilestone(r.Context(), application.CreateMilestoneParams{
		Principal: principal,
		Input: application.MilestoneInput{
			RelationshipID: strings.TrimSpace(req.RelationshipID),
			Kind:           strings.TrimSpace(req.Kind),
			Date:           parseDate(req.Date),
			RecursAnnually: req.RecursAnnually,
			Note:           req.Note,
		},
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, milestoneResponse{Milestone: toMilestoneDTO(milestone)})
}

func (h *CalendarHandler) ListMilestones(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	milestones, err := h.service.ListMilestones(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]milestoneDTO, 0, len(milestones))
	for _, milestone := range milestones {
		out = append(out, toMilestoneDTO(milestone))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listMilestonesResponse{Milestones: out})
}

func (h *CalendarHandler) DeleteMilestone(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	milestoneID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(milestoneID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMilestoneID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.DeleteMilestone(r.Context(), application.MilestoneRequestParams{
		Principal:   principal,
		MilestoneID: milestoneID,
	}); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// parseDate accepts timestamps or bare dates; milestones usually carry the latter.
func parseDate(value string) time.Time {
	if ts := parseTime(value); !ts.IsZero() {
		return ts
	}
	if ts, err := time.Parse("2006-01-02", strings.TrimSpace(value)); err == nil {
		return ts
	}
	return time.Time{}
}

type eventRequest struct {
	CalendarID   string `json:"calendar_id"`
	Title        string `json:"title"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Status       string `json:"status"`
	Transparency string `json:"transparency"`
}

type eventResponse struct {
	Event eventDTO `json:"event"`
}

type eventDTO struct {
	ID           string `json:"id"`
	CalendarID   string `json:"calendar_id"`
	Title        string `json:"title"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Source       string `json:"source"`
	Status       string `json:"status"`
	Transparency string `json:"transparency"`
	CreatedAt    string `json:"created_at"`
}

func toEventDTO(event application.CalendarEvent) eventDTO {
	return eventDTO{
		ID:           event.ID,
		CalendarID:   event.CalendarID,
		Title:        event.Title,
		Start:        event.Start.UTC().Format(time.RFC3339Nano),
		End:          event.End.UTC().Format(time.RFC3339Nano),
		Source:       event.Source,
		Status:       event.Status,
		Transparency: event.Transparency,
		CreatedAt:    event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type workingHoursDTO struct {
	Weekdays    []int  `json:"weekdays"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	Timezone    string `json:"timezone,omitempty"`
}

type constraintRequest struct {
	SubjectID    string           `json:"subject_id"`
	Kind         string           `json:"kind"`
	WorkingHours *workingHoursDTO `json:"working_hours,omitempty"`
	ActiveFrom   string           `json:"active_from,omitempty"`
	ActiveTo     string           `json:"active_to,omitempty"`
}

func (r constraintRequest) toInput() application.ConstraintInput {
	input := application.ConstraintInput{
		SubjectID: strings.TrimSpace(r.SubjectID),
		Kind:      strings.TrimSpace(r.Kind),
	}
	if r.WorkingHours != nil {
		input.WorkingHours = &application.WorkingHoursConfig{
			Weekdays:    append([]int(nil), r.WorkingHours.Weekdays...),
			StartMinute: r.WorkingHours.StartMinute,
			EndMinute:   r.WorkingHours.EndMinute,
			Timezone:    r.WorkingHours.Timezone,
		}
	}
	if from := parseTime(r.ActiveFrom); !from.IsZero() {
		input.ActiveFrom = &from
	}
	if to := parseTime(r.ActiveTo); !to.IsZero() {
		input.ActiveTo = &to
	}
	return input
}

type constraintResponse struct {
	Constraint constraintDTO `json:"constraint"`
}

type listConstraintsResponse struct {
	Constraints []constraintDTO `json:"constraints"`
}

type constraintDTO struct {
	ID           string           `json:"id"`
	SubjectID    string           `json:"subject_id"`
	Kind         string           `json:"kind"`
	WorkingHours *workingHoursDTO `json:"working_hours,omitempty"`
	ActiveFrom   string           `json:"active_from,omitempty"`
	ActiveTo     string           `json:"active_to,omitempty"`
	CreatedAt    string           `json:"created_at"`
}

func toConstraintDTO(constraint application.SchedulingConstraint) constraintDTO {
	dto := constraintDTO{
		ID:        constraint.ID,
		SubjectID: constraint.SubjectID,
		Kind:      constraint.Kind,
		CreatedAt: constraint.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if constraint.WorkingHours != nil {
		dto.WorkingHours = &workingHoursDTO{
			Weekdays:    append([]int(nil), constraint.WorkingHours.Weekdays...),
			StartMinute: constraint.WorkingHours.StartMinute,
			EndMinute:   constraint.WorkingHours.EndMinute,
			Timezone:    constraint.WorkingHours.Timezone,
		}
	}
	if constraint.ActiveFrom != nil {
		dto.ActiveFrom = constraint.ActiveFrom.UTC().Format(time.RFC3339Nano)
	}
	if constraint.ActiveTo != nil {
		dto.ActiveTo = constraint.ActiveTo.UTC().Format(time.RFC3339Nano)
	}
	return dto
}

type milestoneRequest struct {
	RelationshipID string `json:"relationship_id"`
	Kind           string `json:"kind"`
	Date           string `json:"date"`
	RecursAnnually bool   `json:"recurs_annually"`
	Note           string `json:"note"`
}

type milestoneResponse struct {
	Milestone milestoneDTO `json:"milestone"`
}

type listMilestonesResponse struct {
	Milestones []milestoneDTO `json:"milestones"`
}

type milestoneDTO struct {
	ID             string `json:"id"`
	RelationshipID string `json:"relationship_id"`
	Kind           string `json:"kind"`
	Date           string `json:"date"`
	RecursAnnually bool   `json:"recurs_annually"`
	Note           string `json:"note,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func toMilestoneDTO(milestone application.RelationshipMilestone) milestoneDTO {
	return milestoneDTO{
		ID:             milestone.ID,
		RelationshipID: milestone.RelationshipID,
		Kind:           milestone.Kind,
		Date:           milestone.Date.UTC().Format(time.RFC3339Nano),
		RecursAnnually: milestone.RecursAnnually,
		Note:           milestone.Note,
		CreatedAt:      milestone.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
