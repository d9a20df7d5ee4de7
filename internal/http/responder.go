package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/calendar-federation/internal/application"
)

var (
	errBadRequestBody      = errors.New("The request body could not be parsed.")
	errInvalidSessionID    = errors.New("A session ID is required.")
	errInvalidUserID       = errors.New("A user ID is required.")
	errInvalidEventID      = errors.New("An event ID is required.")
	errInvalidConstraintID = errors.New("A constraint ID is required.")
	errInvalidMilestoneID  = errors.New("A milestone ID is required.")
	errMissingSessionToken = errors.New("A session token is required.")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps application errors onto HTTP statuses. Validation
// failures keep their field map so clients can annotate forms; a partial group
// commit reports which participants already received the event.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var pErr *application.PartialCommitError
	if errors.As(err, &pErr) {
		r.loggerFor(ctx).ErrorContext(ctx, "group commit wrote events partially", "error", err, "session_id", pErr.SessionID)
		r.writeJSON(ctx, w, http.StatusBadGateway, errorResponse{
			ErrorCode:       "GROUP_COMMIT_PARTIAL",
			Message:         "The commit wrote events for some participants before a calendar write failed. Already written events were kept.",
			WrittenEventIDs: pErr.Written,
		})
		return
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Message: vErr.Error(),
			Errors:  vErr.FieldErrors,
		})
		return
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "You do not have permission to perform this operation.",
		})
	case errors.Is(err, application.ErrNotParticipant):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "GROUP_NOT_PARTICIPANT",
			Message:   "The requester is not a participant of the session.",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "The requested resource was not found."})
	case errors.Is(err, application.ErrAlreadyCommitted):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "SESSION_ALREADY_COMMITTED",
			Message:   "The session is already committed.",
		})
	case errors.Is(err, application.ErrSessionCancelled):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "SESSION_CANCELLED",
			Message:   "The session is cancelled.",
		})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Message: "A resource with the same unique attribute already exists."})
	case errors.Is(err, application.ErrInvalidCredentials),
		errors.Is(err, application.ErrSessionExpired),
		errors.Is(err, application.ErrSessionRevoked):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_UNAUTHENTICATED",
			Message:   "Authentication is required.",
		})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unhandled service error", "error", err, "error_kind", application.ErrorKind(err))
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "An internal error occurred."})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "The request is malformed."
	case http.StatusUnauthorized:
		return "Authentication is required."
	case http.StatusForbidden:
		return "You do not have permission to perform this operation."
	case http.StatusNotFound:
		return "The requested resource was not found."
	case http.StatusConflict:
		return "The request conflicts with the current state of the resource."
	case http.StatusUnprocessableEntity:
		return "The request contains invalid fields."
	default:
		return "An internal error occurred."
	}
}

type errorResponse struct {
	ErrorCode       string            `json:"error_code,omitempty"`
	Message         string            `json:"message"`
	Errors          map[string]string `json:"errors,omitempty"`
	WrittenEventIDs map[string]string `json:"written_event_ids,omitempty"`
}
