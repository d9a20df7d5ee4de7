package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/calendar-federation/internal/application"
)

type authServiceStub struct {
	authenticate func(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error)
	revoke       func(ctx context.Context, token string) error
}

func (s *authServiceStub) Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	if s.authenticate == nil {
		return application.AuthenticateResult{}, application.ErrInvalidCredentials
	}
	return s.authenticate(ctx, params)
}

func (s *authServiceStub) RevokeSession(ctx context.Context, token string) error {
	if s.revoke == nil {
		return nil
	}
	return s.revoke(ctx, token)
}

type validatorStub struct {
	validate func(ctx context.Context, token string) (application.Principal, error)
}

func (s *validatorStub) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	if s.validate == nil {
		return application.Principal{}, application.ErrNotFound
	}
	return s.validate(ctx, token)
}

type userServiceStub struct {
	create func(ctx context.Context, params application.CreateUserParams) (application.User, error)
	get    func(ctx context.Context, principal application.Principal, userID string) (application.User, error)
	list   func(ctx context.Context, principal application.Principal) ([]application.User, error)
}

func (s *userServiceStub) CreateUser(ctx context.Context, params application.CreateUserParams) (application.User, error) {
	return s.create(ctx, params)
}

func (s *userServiceStub) GetUser(ctx context.Context, principal application.Principal, userID string) (application.User, error) {
	return s.get(ctx, principal, userID)
}

func (s *userServiceStub) ListUsers(ctx context.Context, principal application.Principal) ([]application.User, error) {
	return s.list(ctx, principal)
}

type sessionServiceStub struct {
	create func(ctx context.Context, params application.CreateSessionParams) (application.SchedulingSession, error)
	get    func(ctx context.Context, params application.SessionRequestParams) (application.SchedulingSession, error)
	holds  func(ctx context.Context, params application.SessionRequestParams) ([]application.Hold, error)
	commit func(ctx context.Context, params application.CommitCandidateParams) (application.CommitResult, error)
	cancel func(ctx context.Context, params application.SessionRequestParams) (application.SchedulingSession, error)
}

func (s *sessionServiceStub) CreateSession(ctx context.Context, params application.CreateSessionParams) (application.SchedulingSession, error) {
	return s.create(ctx, params)
}

func (s *sessionServiceStub) GetSession(ctx context.Context, params application.SessionRequestParams) (application.SchedulingSession, error) {
	return s.get(ctx, params)
}

func (s *sessionServiceStub) GetHolds(ctx context.Context, params application.SessionRequestParams) ([]application.Hold, error) {
	return s.holds(ctx, params)
}

func (s *sessionServiceStub) CommitCandidate(ctx context.Context, params application.CommitCandidateParams) (application.CommitResult, error) {
	return s.commit(ctx, params)
}

func (s *sessionServiceStub) CancelSession(ctx context.Context, params application.SessionRequestParams) (application.SchedulingSession, error) {
	return s.cancel(ctx, params)
}

type groupServiceStub struct {
	create func(ctx context.Context, params application.CreateGroupSessionParams) (application.GroupSession, error)
	get    func(ctx context.Context, params application.GroupSessionRequestParams) (application.GroupSession, error)
	commit func(ctx context.Context, params application.CommitGroupCandidateParams) (application.GroupCommitResult, error)
}

func (s *groupServiceStub) CreateGroupSession(ctx context.Context, params application.CreateGroupSessionParams) (application.GroupSession, error) {
	return s.create(ctx, params)
}

func (s *groupServiceStub) GetGroupSession(ctx context.Context, params application.GroupSessionRequestParams) (application.GroupSession, error) {
	return s.get(ctx, params)
}

func (s *groupServiceStub) CommitGroupCandidate(ctx context.Context, params application.CommitGroupCandidateParams) (application.GroupCommitResult, error) {
	return s.commit(ctx, params)
}

type calendarServiceStub struct {
	importEvent      func(ctx context.Context, params application.ImportEventParams) (application.CalendarEvent, error)
	getEvent         func(ctx context.Context, params application.EventRequestParams) (application.CalendarEvent, error)
	createConstraint func(ctx context.Context, params application.CreateConstraintParams) (application.SchedulingConstraint, error)
	listConstraints  func(ctx context.Context, params application.ConstraintRequestParams) ([]application.SchedulingConstraint, error)
	deleteConstraint func(ctx context.Context, params application.ConstraintRequestParams) error
	createMilestone  func(ctx context.Context, params application.CreateMilestoneParams) (application.RelationshipMilestone, error)
	listMilestones   func(ctx context.Context, principal application.Principal) ([]application.RelationshipMilestone, error)
	deleteMilestone  func(ctx context.Context, params application.MilestoneRequestParams) error
}

func (s *calendarServiceStub) ImportEvent(ctx context.Context, params application.ImportEventParams) (application.CalendarEvent, error) {
	return s.importEvent(ctx, params)
}

func (s *calendarServiceStub) GetEvent(ctx context.Context, params application.EventRequestParams) (application.CalendarEvent, error) {
	return s.getEvent(ctx, params)
}

func (s *calendarServiceStub) CreateConstraint(ctx context.Context, params application.CreateConstraintParams) (application.SchedulingConstraint, error) {
	return s.createConstraint(ctx, params)
}

func (s *calendarServiceStub) ListConstraints(ctx context.Context, params application.ConstraintRequestParams) ([]application.SchedulingConstraint, error) {
	return s.listConstraints(ctx, params)
}

func (s *calendarServiceStub) DeleteConstraint(ctx context.Context, params application.ConstraintRequestParams) error {
	return s.deleteConstraint(ctx, params)
}

func (s *calendarServiceStub) CreateMilestone(ctx context.Context, params application.CreateMilestoneParams) (application.RelationshipMilestone, error) {
	return s.createMilestone(ctx, params)
}

func (s *calendarServiceStub) ListMilestones(ctx context.Context, principal application.Principal) ([]application.RelationshipMilestone, error) {
	return s.listMilestones(ctx, principal)
}

func (s *calendarServiceStub) DeleteMilestone(ctx context.Context, params application.MilestoneRequestParams) error {
	return s.deleteMilestone(ctx, params)
}

func memberValidator(principal application.Principal) SessionValidator {
	return &validatorStub{
		validate: func(ctx context.Context, token string) (application.Principal, error) {
			if token == "" {
				return application.Principal{}, application.ErrNotFound
			}
			return principal, nil
		},
	}
}

func resolverFor(stub *sessionServiceStub) SessionServiceResolver {
	return func(ctx context.Context, principal application.Principal) (SessionService, error) {
		return stub, nil
	}
}

func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestAuthHandler_LoginIssuesToken(t *testing.T) {
	t.Parallel()

	expires := time.Date(2026, time.March, 3, 8, 0, 0, 0, time.UTC)
	auth := &authServiceStub{
		authenticate: func(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
			if params.Email != "dana@example.com" {
				t.Fatalf("unexpected email %q", params.Email)
			}
			return application.AuthenticateResult{
				User:    application.User{ID: "usr_1", Email: params.Email},
				Session: application.AuthSession{Token: "tok_abc", ExpiresAt: expires},
			}, nil
		},
	}

	router := NewRouter(RouterConfig{Auth: NewAuthHandler(auth, nil)})

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"Dana@Example.com","password":"hunter2hunter2"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Session-Token"); got != "tok_abc" {
		t.Fatalf("expected token header, got %q", got)
	}

	var resp loginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token != "tok_abc" || resp.UserID != "usr_1" {
		t.Fatalf("unexpected login response %+v", resp)
	}

	foundCookie := false
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "session_token" && cookie.Value == "tok_abc" {
			foundCookie = true
		}
	}
	if !foundCookie {
		t.Fatalf("expected session cookie to be set")
	}
}

func TestAuthHandler_LoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	auth := &authServiceStub{}
	router := NewRouter(RouterConfig{Auth: NewAuthHandler(auth, nil)})

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"dana@example.com","password":"wrong"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if resp := decodeErrorResponse(t, rec); resp.ErrorCode != "AUTH_INVALID_CREDENTIALS" {
		t.Fatalf("unexpected error code %q", resp.ErrorCode)
	}
}

func TestRouter_RejectsMissingToken(t *testing.T) {
	t.Parallel()

	sessions := NewSessionHandler(resolverFor(&sessionServiceStub{}), nil)
	router := NewRouter(RouterConfig{
		Sessions:      sessions,
		Authenticator: memberValidator(application.Principal{UserID: "usr_1"}),
	})

	req := httptest.NewRequest(http.MethodGet, "/sessions/ses_1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_ExpiredSessionReportsCode(t *testing.T) {
	t.Parallel()

	validator := &validatorStub{
		validate: func(ctx context.Context, token string) (application.Principal, error) {
			return application.Principal{}, application.ErrSessionExpired
		},
	}
	sessions := NewSessionHandler(resolverFor(&sessionServiceStub{}), nil)
	router := NewRouter(RouterConfig{Sessions: sessions, Authenticator: validator})

	req := httptest.NewRequest(http.MethodGet, "/sessions/ses_1", nil)
	req.Header.Set("Authorization", "Bearer tok_old")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if resp := decodeErrorResponse(t, rec); resp.ErrorCode != "AUTH_SESSION_EXPIRED" {
		t.Fatalf("unexpected error code %q", resp.ErrorCode)
	}
}

func TestUserHandler_RegistrationIsPublic(t *testing.T) {
	t.Parallel()

	var captured application.CreateUserParams
	users := &userServiceStub{
		create: func(ctx context.Context, params application.CreateUserParams) (application.User, error) {
			captured = params
			return application.User{ID: "usr_new", Email: params.Input.Email, DisplayName: params.Input.DisplayName}, nil
		},
	}
	router := NewRouter(RouterConfig{
		Users:         NewUserHandler(users, nil),
		Authenticator: memberValidator(application.Principal{UserID: "usr_admin", IsAdmin: true}),
	})

	body := `{"email":"new@example.com","display_name":"New Person","password":"correct horse battery"}`
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Principal.UserID != "" {
		t.Fatalf("expected anonymous principal, got %+v", captured.Principal)
	}
	if captured.Input.Email != "new@example.com" {
		t.Fatalf("unexpected input %+v", captured.Input)
	}
}

func TestUserHandler_RegistrationHonorsAdminToken(t *testing.T) {
	t.Parallel()

	var captured application.CreateUserParams
	users := &userServiceStub{
		create: func(ctx context.Context, params application.CreateUserParams) (application.User, error) {
			captured = params
			return application.User{ID: "usr_new"}, nil
		},
	}
	router := NewRouter(RouterConfig{
		Users:         NewUserHandler(users, nil),
		Authenticator: memberValidator(application.Principal{UserID: "usr_admin", IsAdmin: true}),
	})

	body := `{"email":"ops@example.com","display_name":"Ops","password":"correct horse battery","is_admin":true}`
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer tok_admin")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !captured.Principal.IsAdmin || captured.Principal.UserID != "usr_admin" {
		t.Fatalf("expected admin principal, got %+v", captured.Principal)
	}
}

func TestSessionHandler_CreateParsesRequest(t *testing.T) {
	t.Parallel()

	var captured application.CreateSessionParams
	stub := &sessionServiceStub{
		create: func(ctx context.Context, params application.CreateSessionParams) (application.SchedulingSession, error) {
			captured = params
			return application.SchedulingSession{
				ID:     "ses_1",
				UserID: params.Principal.UserID,
				Status: application.SessionStatusCandidatesReady,
			}, nil
		},
	}
	router := NewRouter(RouterConfig{
		Sessions:      NewSessionHandler(resolverFor(stub), nil),
		Authenticator: memberValidator(application.Principal{UserID: "usr_1"}),
	})

	body := `{
		"title": "Planning",
		"duration_minutes": 60,
		"window_start": "2026-03-02T09:00:00Z",
		"window_end": "2026-03-02T17:00:00Z",
		"required_account_ids": ["cal_work", "cal_home"],
		"max_candidates": 5,
		"hold_timeout_ms": 60000,
		"target_calendar_id": "cal_work"
	}`
	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer tok_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Principal.UserID != "usr_1" {
		t.Fatalf("unexpected principal %+v", captured.Principal)
	}
	input := captured.Input
	if input.Title != "Planning" || input.DurationMinutes != 60 || input.HoldTimeoutMs != 60000 {
		t.Fatalf("unexpected input %+v", input)
	}
	if !input.WindowStart.Equal(time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window start %v", input.WindowStart)
	}
	if len(input.RequiredAccountIDs) != 2 {
		t.Fatalf("unexpected accounts %v", input.RequiredAccountIDs)
	}

	var resp sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Session.ID != "ses_1" || resp.Session.Status != "candidates_ready" {
		t.Fatalf("unexpected session %+v", resp.Session)
	}
}

func TestSessionHandler_ValidationErrorKeepsFieldMessages(t *testing.T) {
	t.Parallel()

	stub := &sessionServiceStub{
		create: func(ctx context.Context, params application.CreateSessionParams) (application.SchedulingSession, error) {
			return application.SchedulingSession{}, &application.ValidationError{FieldErrors: map[string]string{
				"duration_minutes": "durationMinutes must be between 15 and 480",
			}}
		},
	}
	router := NewRouter(RouterConfig{
		Sessions:      NewSessionHandler(resolverFor(stub), nil),
		Authenticator: memberValidator(application.Principal{UserID: "usr_1"}),
	})

	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"title":"x","duration_minutes":5}`))
	req.Header.Set("Authorization", "Bearer tok_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	resp := decodeErrorResponse(t, rec)
	if !strings.Contains(resp.Message, "between 15 and 480") {
		t.Fatalf("expected range message, got %q", resp.Message)
	}
	if resp.Errors["duration_minutes"] == "" {
		t.Fatalf("expected field error map, got %+v", resp.Errors)
	}
}

func TestSessionHandler_CommitConflicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantCode string
		wantText string
	}{
		{name: "already committed", err: application.ErrAlreadyCommitted, wantCode: "SESSION_ALREADY_COMMITTED", wantText: "already committed"},
		{name: "cancelled", err: application.ErrSessionCancelled, wantCode: "SESSION_CANCELLED", wantText: "cancelled"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			stub := &sessionServiceStub{
				commit: func(ctx context.Context, params application.CommitCandidateParams) (application.CommitResult, error) {
					return application.CommitResult{}, tc.err
				},
			}
			router := NewRouter(RouterConfig{
				Sessions:      NewSessionHandler(resolverFor(stub), nil),
				Authenticator: memberValidator(application.Principal{UserID: "usr_1"}),
			})

			req := httptest.NewRequest(http.MethodPost, "/sessions/ses_1/commit", strings.NewReader(`{"candidate_id":"cnd_1"}`))
			req.Header.Set("Authorization", "Bearer tok_1")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusConflict {
				t.Fatalf("expected 409, got %d", rec.Code)
			}
			resp := decodeErrorResponse(t, rec)
			if resp.ErrorCode != tc.wantCode {
				t.Fatalf("unexpected error code %q", resp.ErrorCode)
			}
			if !strings.Contains(resp.Message, tc.wantText) {
				t.Fatalf("expected %q in message, got %q", tc.wantText, resp.Message)
			}
		})
	}
}

func TestGroupHandler_CreateParsesRequest(t *testing.T) {
	t.Parallel()

	var captured application.GroupSessionInput
	stub := &groupServiceStub{
		create: func(ctx context.Context, params application.CreateGroupSessionParams) (application.GroupSession, error) {
			captured = params.Input
			return application.GroupSession{
				ID:                 "grp_1",
				CreatorUserID:      params.Principal.UserID,
				ParticipantUserIDs: params.Input.ParticipantUserIDs,
				Title:              params.Input.Title,
				Status:             application.SessionStatusCandidatesReady,
			}, nil
		},
	}
	router := NewRouter(RouterConfig{
		Groups:        NewGroupSessionHandler(stub, nil),
		Authenticator: memberValidator(application.Principal{UserID: "usr_1"}),
	})

	body := `{
		"title": "Offsite",
		"duration_minutes": 60,
		"window_start": "2026-03-02T09:00:00Z",
		"window_end": "2026-03-02T12:00:00Z",
		"participant_user_ids": ["usr_1", "usr_2"],
		"max_candidates": 3
	}`
	req := httptest.NewRequest(http.MethodPost, "/group-sessions", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer tok_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.MaxCandidates != 3 {
		t.Fatalf("expected max candidates 3, got %d", captured.MaxCandidates)
	}
	if captured.DurationMinutes != 60 || len(captured.ParticipantUserIDs) != 2 {
		t.Fatalf("unexpected input %+v", captured)
	}
	if captured.WindowStart.IsZero() || captured.WindowEnd.IsZero() {
		t.Fatalf("expected parsed window, got %+v", captured)
	}
}

func TestGroupHandler_ValidationSurfacesParticipantRules(t *testing.T) {
	t.Parallel()

	stub := &groupServiceStub{
		create: func(ctx context.Context, params application.CreateGroupSessionParams) (application.GroupSession, error) {
			return application.GroupSession{}, &application.ValidationError{FieldErrors: map[string]string{
				"participants": "At least two distinct participants are required",
			}}
		},
	}
	router := NewRouter(RouterConfig{
		Groups:        NewGroupSessionHandler(stub, nil),
		Authenticator: memberValidator(application.Principal{UserID: "usr_1"}),
	})

	req := httptest.NewRequest(http.MethodPost, "/group-sessions", strings.NewReader(`{"title":"Offsite","participant_user_ids":["usr_1"]}`))
	req.Header.Set("Authorization", "Bearer tok_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if resp := decodeErrorResponse(t, rec); !strings.Contains(resp.Message, "At least two") {
		t.Fatalf("expected participant rule in message, got %q", resp.Message)
	}
}

func TestGroupHandler_NonParticipantForbidden(t *testing.T) {
	t.Parallel()

	stub := &groupServiceStub{
		get: func(ctx context.Context, params application.GroupSessionRequestParams) (application.GroupSession, error) {
			return application.GroupSession{}, application.ErrNotParticipant
		},
	}
	router := NewRouter(RouterConfig{
		Groups:        NewGroupSessionHandler(stub, nil),
		Authenticator: memberValidator(application.Principal{UserID: "usr_outsider"}),
	})

	req := httptest.NewRequest(http.MethodGet, "/group-sessions/grp_1", nil)
	req.Header.Set("Authorization", "Bearer tok_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	resp := decodeErrorResponse(t, rec)
	if resp.ErrorCode != "GROUP_NOT_PARTICIPANT" {
		t.Fatalf("unexpected error code %q", resp.ErrorCode)
	}
	if !strings.Contains(resp.Message, "not a participant") {
		t.Fatalf("expected participant message, got %q", resp.Message)
	}
}

func TestGroupHandler_PartialCommitReportsWrittenEvents(t *testing.T) {
	t.Parallel()

	stub := &groupServiceStub{
		commit: func(ctx context.Context, params application.CommitGroupCandidateParams) (application.GroupCommitResult, error) {
			return application.GroupCommitResult{}, &application.PartialCommitError{
				SessionID:    "grp_1",
				Written:      map[string]string{"usr_1": "evt_1", "usr_2": "evt_2"},
				FailedUserID: "usr_3",
				Err:          context.DeadlineExceeded,
			}
		},
	}
	router := NewRouter(RouterConfig{
		Groups:        NewGroupSessionHandler(stub, nil),
		Authenticator: memberValidator(application.Principal{UserID: "usr_1"}),
	})

	req := httptest.NewRequest(http.MethodPost, "/group-sessions/grp_1/commit", strings.NewReader(`{"candidate_id":"cnd_1"}`))
	req.Header.Set("Authorization", "Bearer tok_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	resp := decodeErrorResponse(t, rec)
	if resp.ErrorCode != "GROUP_COMMIT_PARTIAL" {
		t.Fatalf("unexpected error code %q", resp.ErrorCode)
	}
	if len(resp.WrittenEventIDs) != 2 || resp.WrittenEventIDs["usr_1"] != "evt_1" {
		t.Fatalf("unexpected written events %+v", resp.WrittenEventIDs)
	}
}

// Group session payloads must stay opaque about participants' calendars:
// candidates carry only timing and scoring fields, never event details.
func TestGroupHandler_CandidatePayloadStaysOpaque(t *testing.T) {
	t.Parallel()

	stub := &groupServiceStub{
		get: func(ctx context.Context, params application.GroupSessionRequestParams) (application.GroupSession, error) {
			return application.GroupSession{
				ID:                 "grp_1",
				CreatorUserID:      "usr_1",
				ParticipantUserIDs: []string{"usr_1", "usr_2"},
				Title:              "Offsite",
				DurationMinutes:    60,
				WindowStart:        time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC),
				WindowEnd:          time.Date(2026, time.March, 2, 17, 0, 0, 0, time.UTC),
				Status:             application.SessionStatusCandidatesReady,
				Candidates: []application.Candidate{{
					ID:          "cnd_1",
					SessionID:   "grp_1",
					Start:       time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC),
					End:         time.Date(2026, time.March, 2, 11, 0, 0, 0, time.UTC),
					Score:       1,
					Explanation: "All participants free",
				}},
				CreatedAt: time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	router := NewRouter(RouterConfig{
		Groups:        NewGroupSessionHandler(stub, nil),
		Authenticator: memberValidator(application.Principal{UserID: "usr_2"}),
	})

	req := httptest.NewRequest(http.MethodGet, "/group-sessions/grp_1", nil)
	req.Header.Set("Authorization", "Bearer tok_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Session struct {
			Candidates []map[string]any `json:"candidates"`
		} `json:"session"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Session.Candidates) != 1 {
		t.Fatalf("expected one candidate, got %d", len(payload.Session.Candidates))
	}

	allowed := map[string]bool{"id": true, "start": true, "end": true, "score": true, "explanation": true}
	for key := range payload.Session.Candidates[0] {
		if !allowed[key] {
			t.Fatalf("candidate payload leaked field %q", key)
		}
	}
}

func TestCalendarHandler_ImportEventParsesRequest(t *testing.T) {
	t.Parallel()

	var captured application.ImportEventParams
	stub := &calendarServiceStub{
		importEvent: func(ctx context.Context, params application.ImportEventParams) (application.CalendarEvent, error) {
			captured = params
			return application.CalendarEvent{ID: "evt_1", CalendarID: params.Input.CalendarID, Title: params.Input.Title}, nil
		},
	}
	router := NewRouter(RouterConfig{
		Calendar:      NewCalendarHandler(stub, nil),
		Authenticator: memberValidator(application.Principal{UserID: "usr_1"}),
	})

	body := `{"calendar_id":"cal_work","title":"Standup","start":"2026-03-02T09:00:00Z","end":"2026-03-02T09:15:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer tok_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Principal.UserID != "usr_1" || captured.Input.CalendarID != "cal_work" {
		t.Fatalf("unexpected params %+v", captured)
	}
	if !captured.Input.End.Equal(time.Date(2026, time.March, 2, 9, 15, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %v", captured.Input.End)
	}
}

func TestCalendarHandler_ListConstraintsUsesQueryParam(t *testing.T) {
	t.Parallel()

	stub := &calendarServiceStub{
		listConstraints: func(ctx context.Context, params application.ConstraintRequestParams) ([]application.SchedulingConstraint, error) {
			if params.SubjectID != "cal_work" {
				t.Fatalf("unexpected subject %q", params.SubjectID)
			}
			return []application.SchedulingConstraint{{
				ID:        "cst_1",
				SubjectID: "cal_work",
				Kind:      "working_hours",
				WorkingHours: &application.WorkingHoursConfig{
					Weekdays:    []int{1, 2, 3, 4, 5},
					StartMinute: 9 * 60,
					EndMinute:   17 * 60,
				},
			}}, nil
		},
	}
	router := NewRouter(RouterConfig{
		Calendar:      NewCalendarHandler(stub, nil),
		Authenticator: memberValidator(application.Principal{UserID: "usr_1"}),
	})

	req := httptest.NewRequest(http.MethodGet, "/constraints?subject_id=cal_work", nil)
	req.Header.Set("Authorization", "Bearer tok_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp listConstraintsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Constraints) != 1 || resp.Constraints[0].WorkingHours == nil {
		t.Fatalf("unexpected constraints %+v", resp.Constraints)
	}
	if resp.Constraints[0].WorkingHours.StartMinute != 540 {
		t.Fatalf("unexpected working hours %+v", resp.Constraints[0].WorkingHours)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	router := NewRouter(RouterConfig{
		Sessions:      NewSessionHandler(resolverFor(&sessionServiceStub{}), nil),
		Authenticator: memberValidator(application.Principal{UserID: "usr_1"}),
	})

	req := httptest.NewRequest(http.MethodDelete, "/sessions", nil)
	req.Header.Set("Authorization", "Bearer tok_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); !strings.Contains(allow, http.MethodPost) {
		t.Fatalf("expected Allow header, got %q", allow)
	}
}
