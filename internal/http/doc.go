// Package http provides HTTP handlers and middleware for the scheduling API.
//
// The router exposes the following endpoints:
//   - POST /login: issues a bearer session token. Body: {"email","password"}.
//     The token is returned in the body and surfaced via the `X-Session-Token`
//     header and a `session_token` cookie.
//   - POST /logout: revokes the current session token. Returns 204.
//   - POST /users: registers a user. Anyone may register a regular account;
//     creating an administrator requires an authenticated administrator.
//   - GET /users, GET /users/{id}: user lookups (admin / self-or-admin).
//   - POST /events, GET /events/{id}: calendar event import and lookup in the
//     caller's own store.
//   - POST /constraints, GET /constraints?subject_id=..., DELETE
//     /constraints/{id}: scheduling constraint management.
//   - POST /milestones, GET /milestones, DELETE /milestones/{id}: relationship
//     milestone management.
//   - POST /sessions, GET /sessions/{id}, GET /sessions/{id}/holds,
//     POST /sessions/{id}/commit, POST /sessions/{id}/cancel: the single-user
//     scheduling session lifecycle.
//   - POST /group-sessions, GET /group-sessions/{id},
//     POST /group-sessions/{id}/commit: multi-participant scheduling across
//     independent per-user stores.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
