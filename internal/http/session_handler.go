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

// SessionService is the scheduling session surface the handler needs. Each
// instance is bound to one user's store.
type SessionService interface {
	CreateSession(ctx context.Context, params application.CreateSessionParams) (application.SchedulingSession, error)
	GetSession(ctx context.Context, params application.SessionRequestParams) (application.SchedulingSession, error)
	GetHolds(ctx context.Context, params application.SessionRequestParams) ([]application.Hold, error)
	CommitCandidate(ctx context.Context, params application.CommitCandidateParams) (application.CommitResult, error)
	CancelSession(ctx context.Context, params application.SessionRequestParams) (application.SchedulingSession, error)
}

// SessionServiceResolver returns the session service bound to the principal's
// own store. Sessions never leave the store that created them, so the handler
// resolves the store per request instead of holding one service.
type SessionServiceResolver func(ctx context.Context, principal application.Principal) (SessionService, error)

// SessionHandler serves the single-user scheduling session lifecycle.
type SessionHandler struct {
	resolve   SessionServiceResolver
	responder responder
}

func NewSessionHandler(resolve SessionServiceResolver, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{resolve: resolve, responder: newResponder(logger)}
}

func (h *SessionHandler) serviceFor(w http.ResponseWriter, r *http.Request) (SessionService, application.Principal, bool) {
	if h == nil || h.resolve == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, application.Principal{}, false
	}

	principal, _ := PrincipalFromContext(r.Context())
	service, err := h.resolve(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return nil, application.Principal{}, false
	}
	return service, principal, true
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	service, principal, ok := h.serviceFor(w, r)
	if !ok {
		return
	}

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	session, err := service.CreateSession(r.Context(), application.CreateSessionParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sessionResponse{Session: toSessionDTO(session)})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	service, principal, ok := h.serviceFor(w, r)
	if !ok {
		return
	}

	sessionID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	session, err := service.GetSession(r.Context(), application.SessionRequestParams{
		Principal: principal,
		SessionID: sessionID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

func (h *SessionHandler) Holds(w http.ResponseWriter, r *http.Request) {
	service, principal, ok := h.serviceFor(w, r)
	if !ok {
		return
	}

	sessionID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	holds, err := service.GetHolds(r.Context(), application.SessionRequestParams{
		Principal: principal,
		SessionID: sessionID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]holdDTO, 0, len(holds))
	for _, hold := range holds {
		out = append(out, toHoldDTO(hold))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listHoldsResponse{Holds: out})
}

func (h *SessionHandler) Commit(w http.ResponseWriter, r *http.Request) {
	service, principal, ok := h.serviceFor(w, r)
	if !ok {
		return
	}

	sessionID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := service.CommitCandidate(r.Context(), application.CommitCandidateParams{
		Principal:   principal,
		SessionID:   sessionID,
		CandidateID: strings.TrimSpace(req.CandidateID),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, commitResponse{
		Session: toSessionDTO(result.Session),
		EventID: result.EventID,
	})
}

func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	service, principal, ok := h.serviceFor(w, r)
	if !ok {
		return
	}

	sessionID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	session, err := service.CancelSession(r.Context(), application.SessionRequestParams{
		Principal: principal,
		SessionID: sessionID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

type sessionRequest struct {
	Title              string   `json:"title"`
	DurationMinutes    int      `json:"duration_minutes"`
	WindowStart        string   `json:"window_start"`
	WindowEnd          string   `json:"window_end"`
	RequiredAccountIDs []string `json:"required_account_ids"`
	MaxCandidates      int      `json:"max_candidates"`
	HoldTimeoutMs      int64    `json:"hold_timeout_ms"`
	TargetCalendarID   string   `json:"target_calendar_id"`
}

func (r sessionRequest) toInput() application.SessionInput {
	return application.SessionInput{
		Title:              strings.TrimSpace(r.Title),
		DurationMinutes:    r.DurationMinutes,
		WindowStart:        parseTime(r.WindowStart),
		WindowEnd:          parseTime(r.WindowEnd),
		RequiredAccountIDs: append([]string(nil), r.RequiredAccountIDs...),
		MaxCandidates:      r.MaxCandidates,
		HoldTimeoutMs:      r.HoldTimeoutMs,
		TargetCalendarID:   strings.TrimSpace(r.TargetCalendarID),
	}
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return time.Time{}
}

type commitRequest struct {
	CandidateID string `json:"candidate_id"`
}

type sessionResponse struct {
	Session sessionDTO `json:"session"`
}

type commitResponse struct {
	Session sessionDTO `json:"session"`
	EventID string     `json:"event_id"`
}

type listHoldsResponse struct {
	Holds []holdDTO `json:"holds"`
}

type sessionDTO struct {
	ID                   string         `json:"id"`
	UserID               string         `json:"user_id"`
	Title                string         `json:"title"`
	DurationMinutes      int            `json:"duration_minutes"`
	WindowStart          string         `json:"window_start"`
	WindowEnd            string         `json:"window_end"`
	RequiredAccountIDs   []string       `json:"required_account_ids"`
	MaxCandidates        int            `json:"max_candidates"`
	HoldTimeoutMs        int64          `json:"hold_timeout_ms"`
	TargetCalendarID     string         `json:"target_calendar_id"`
	Status               string         `json:"status"`
	Candidates           []candidateDTO `json:"candidates"`
	CommittedCandidateID *string        `json:"committed_candidate_id,omitempty"`
	CommittedEventID     *string        `json:"committed_event_id,omitempty"`
	CreatedAt            string         `json:"created_at"`
}

func toSessionDTO(session application.SchedulingSession) sessionDTO {
	return sessionDTO{
		ID:                   session.ID,
		UserID:               session.UserID,
		Title:                session.Title,
		DurationMinutes:      session.DurationMinutes,
		WindowStart:          session.WindowStart.UTC().Format(time.RFC3339Nano),
		WindowEnd:            session.WindowEnd.UTC().Format(time.RFC3339Nano),
		RequiredAccountIDs:   append([]string(nil), session.RequiredAccountIDs...),
		MaxCandidates:        session.MaxCandidates,
		HoldTimeoutMs:        session.HoldTimeoutMs,
		TargetCalendarID:     session.TargetCalendarID,
		Status:               string(session.Status),
		Candidates:           toCandidateDTOs(session.Candidates),
		CommittedCandidateID: session.CommittedCandidateID,
		CommittedEventID:     session.CommittedEventID,
		CreatedAt:            session.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type candidateDTO struct {
	ID          string  `json:"id"`
	Start       string  `json:"start"`
	End         string  `json:"end"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

func toCandidateDTOs(candidates []application.Candidate) []candidateDTO {
	out := make([]candidateDTO, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, candidateDTO{
			ID:          c.ID,
			Start:       c.Start.UTC().Format(time.RFC3339Nano),
			End:         c.End.UTC().Format(time.RFC3339Nano),
			Score:       c.Score,
			Explanation: c.Explanation,
		})
	}
	return out
}

type holdDTO struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	SubjectID string `json:"subject_id"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Status    string `json:"status"`
	ExpiresAt string `json:"expires_at"`
}

func toHoldDTO(hold application.Hold) holdDTO {
	return holdDTO{
		ID:        hold.ID,
		SessionID: hold.SessionID,
		SubjectID: hold.SubjectID,
		Start:     hold.Start.UTC().Format(time.RFC3339Nano),
		End:       hold.End.UTC().Format(time.RFC3339Nano),
		Status:    string(hold.Status),
		ExpiresAt: hold.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
}
