package http

import (
	"log/slog"
	"net/http"
	"strings"
)

// RouterConfig collects the handlers and cross-cutting pieces the router wires
// together. Nil handlers leave their routes unregistered.
type RouterConfig struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Calendar      *CalendarHandler
	Sessions      *SessionHandler
	Groups        *GroupSessionHandler
	Authenticator SessionValidator
	Logger        *slog.Logger
	Middleware    []func(http.Handler) http.Handler
}

// NewRouter builds the HTTP handler tree. Login and registration stay public;
// every other route requires a valid session token.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	identity := func(next http.Handler) http.Handler { return next }
	require := identity
	attach := identity
	if cfg.Authenticator != nil {
		require = RequireSession(cfg.Authenticator, cfg.Logger)
		attach = AttachSession(cfg.Authenticator, cfg.Logger)
	}
	guard := func(h http.HandlerFunc) http.HandlerFunc {
		return require(h).ServeHTTP
	}
	optional := func(h http.HandlerFunc) http.HandlerFunc {
		return attach(h).ServeHTTP
	}

	if cfg.Auth != nil {
		mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Login(w, r)
		})
		mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Logout(w, r)
		})
	}

	if cfg.Users != nil {
		mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				guard(cfg.Users.List)(w, r)
			case http.MethodPost:
				optional(cfg.Users.Create)(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/users/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithResourceID(r.Context(), id))
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			guard(cfg.Users.Get)(w, r)
		})
	}

	if cfg.Calendar != nil {
		mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			guard(cfg.Calendar.ImportEvent)(w, r)
		})
		mux.HandleFunc("/events/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/events/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithResourceID(r.Context(), id))
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			guard(cfg.Calendar.GetEvent)(w, r)
		})

		mux.HandleFunc("/constraints", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				guard(cfg.Calendar.ListConstraints)(w, r)
			case http.MethodPost:
				guard(cfg.Calendar.CreateConstraint)(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/constraints/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/constraints/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithResourceID(r.Context(), id))
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			guard(cfg.Calendar.DeleteConstraint)(w, r)
		})

		mux.HandleFunc("/milestones", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				guard(cfg.Calendar.ListMilestones)(w, r)
			case http.MethodPost:
				guard(cfg.Calendar.CreateMilestone)(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/milestones/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/milestones/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithResourceID(r.Context(), id))
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			guard(cfg.Calendar.DeleteMilestone)(w, r)
		})
	}

	if cfg.Sessions != nil {
		mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			guard(cfg.Sessions.Create)(w, r)
		})
		mux.HandleFunc("/sessions/", func(w http.ResponseWriter, r *http.Request) {
			id, action := splitResourcePath(r.URL.Path, "/sessions/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithResourceID(r.Context(), id))
			switch action {
			case "":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				guard(cfg.Sessions.Get)(w, r)
			case "holds":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				guard(cfg.Sessions.Holds)(w, r)
			case "commit":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				guard(cfg.Sessions.Commit)(w, r)
			case "cancel":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				guard(cfg.Sessions.Cancel)(w, r)
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.Groups != nil {
		mux.HandleFunc("/group-sessions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			guard(cfg.Groups.Create)(w, r)
		})
		mux.HandleFunc("/group-sessions/", func(w http.ResponseWriter, r *http.Request) {
			id, action := splitResourcePath(r.URL.Path, "/group-sessions/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithResourceID(r.Context(), id))
			switch action {
			case "":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				guard(cfg.Groups.Get)(w, r)
			case "commit":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				guard(cfg.Groups.Commit)(w, r)
			default:
				http.NotFound(w, r)
			}
		})
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

// splitResourcePath separates "/sessions/ses_1/commit" into the resource ID
// and the trailing action, if any.
func splitResourcePath(path, prefix string) (id, action string) {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" {
		return "", ""
	}
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		return rest[:idx], rest[idx+1:]
	}
	return rest, ""
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
