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

type groupService interface {
	CreateGroupSession(ctx context.Context, params application.CreateGroupSessionParams) (application.GroupSession, error)
	GetGroupSession(ctx context.Context, params application.GroupSessionRequestParams) (application.GroupSession, error)
	CommitGroupCandidate(ctx context.Context, params application.CommitGroupCandidateParams) (application.GroupCommitResult, error)
}

// GroupSessionHandler serves the multi-participant scheduling lifecycle.
// Responses expose only candidate intervals and scores; no participant's
// calendar details ever appear in a payload.
type GroupSessionHandler struct {
	service   groupService
	responder responder
}

func NewGroupSessionHandler(service groupService, logger *slog.Logger) *GroupSessionHandler {
	return &GroupSessionHandler{service: service, responder: newResponder(logger)}
}

func (h *GroupSessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req groupSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	session, err := h.service.CreateGroupSession(r.Context(), application.CreateGroupSessionParams{
		Principal: principal,
		Input: application.GroupSessionInput{
			Title:              strings.TrimSpace(req.Title),
			DurationMinutes:    req.DurationMinutes,
			WindowStart:        parseTime(req.WindowStart),
			WindowEnd:          parseTime(req.WindowEnd),
			ParticipantUserIDs: append([]string(nil), req.ParticipantUserIDs...),
			MaxCandidates:      req.MaxCandidates,
		},
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, groupSessionResponse{Session: toGroupSessionDTO(session)})
}

func (h *GroupSessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	session, err := h.service.GetGroupSession(r.Context(), application.GroupSessionRequestParams{
		Principal: principal,
		SessionID: sessionID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, groupSessionResponse{Session: toGroupSessionDTO(session)})
}

func (h *GroupSessionHandler) Commit(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
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

	principal, _ := PrincipalFromContext(r.Context())

	result, err := h.service.CommitGroupCandidate(r.Context(), application.CommitGroupCandidateParams{
		Principal:   principal,
		SessionID:   sessionID,
		CandidateID: strings.TrimSpace(req.CandidateID),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, groupCommitResponse{
		Session:  toGroupSessionDTO(result.Session),
		EventIDs: result.EventIDs,
	})
}

type groupSessionRequest struct {
	Title              string   `json:"title"`
	DurationMinutes    int      `json:"duration_minutes"`
	WindowStart        string   `json:"window_start"`
	WindowEnd          string   `json:"window_end"`
	ParticipantUserIDs []string `json:"participant_user_ids"`
	MaxCandidates      int      `json:"max_candidates"`
}

type groupSessionResponse struct {
	Session groupSessionDTO `json:"session"`
}

type groupCommitResponse struct {
	Session  groupSessionDTO   `json:"session"`
	EventIDs map[string]string `json:"event_ids"`
}

type groupSessionDTO struct {
	ID                   string         `json:"id"`
	CreatorUserID        string         `json:"creator_user_id"`
	ParticipantUserIDs   []string       `json:"participant_user_ids"`
	Title                string         `json:"title"`
	DurationMinutes      int            `json:"duration_minutes"`
	WindowStart          string         `json:"window_start"`
	WindowEnd            string         `json:"window_end"`
	Status               string         `json:"status"`
	Candidates           []candidateDTO `json:"candidates"`
	CommittedCandidateID *string        `json:"committed_candidate_id,omitempty"`
	CreatedAt            string         `json:"created_at"`
}

func toGroupSessionDTO(session application.GroupSession) groupSessionDTO {
	return groupSessionDTO{
		ID:                   session.ID,
		CreatorUserID:        session.CreatorUserID,
		ParticipantUserIDs:   append([]string(nil), session.ParticipantUserIDs...),
		Title:                session.Title,
		DurationMinutes:      session.DurationMinutes,
		WindowStart:          session.WindowStart.UTC().Format(time.RFC3339Nano),
		WindowEnd:            session.WindowEnd.UTC().Format(time.RFC3339Nano),
		Status:               string(session.Status),
		Candidates:           toCandidateDTOs(session.Candidates),
		CommittedCandidateID: session.CommittedCandidateID,
		CreatedAt:            session.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
