package httpapi

import (
	"context"
	"net/http"
	"net/netip"
	"sort"

	"roledash.org/internal/auth"
	"roledash.org/internal/messages"
	"roledash.org/internal/obs"
	"roledash.org/internal/ratelimit"
	"roledash.org/internal/users"
)

const defaultMaxBodyBytes = 1 << 20

// ReadyProbe runs named dependency checks for /readyz.
type ReadyProbe map[string]func(ctx context.Context) error

func (rp ReadyProbe) Check(ctx context.Context) map[string]string {
	failed := make(map[string]string)
	for name, check := range rp {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	return failed
}

// Deps are the services the HTTP layer dispatches to.
type Deps struct {
	Auth            *auth.Service
	Gate            *auth.Gate
	Users           *users.Service
	Messages        *messages.Service
	RegisterLimiter ratelimit.Limiter
	Ready           ReadyProbe
	Version         string
}

// API is the HTTP layer.
type API struct {
	mux            *http.ServeMux
	deps           Deps
	corsOrigins    []string
	maxBodyBytes   int64
	trustedProxies []netip.Prefix
}

// Option configures API.
type Option func(*API)

// WithCORSOrigins sets the allowed origins; "*" allows any.
func WithCORSOrigins(origins []string) Option {
	return func(a *API) { a.corsOrigins = origins }
}

// WithTrustedProxies names the peers allowed to report the client address
// through X-Forwarded-For. Without it the socket peer is always used.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) { a.trustedProxies = prefixes }
}

func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBodyBytes = n
		}
	}
}

func New(deps Deps, opts ...Option) *API {
	a := &API{
		mux:          http.NewServeMux(),
		deps:         deps,
		corsOrigins:  []string{"*"},
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.routes()
	return a
}

func (a *API) routes() {
	gate := a.deps.Gate
	admin := gate.Authorize(auth.RoleAdmin)
	anyone := gate.AnyAuthenticated()

	a.mux.HandleFunc("GET /api/health", a.health)
	a.mux.HandleFunc("GET /readyz", a.ready)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("POST /api/auth/login", a.login)
	a.mux.Handle("POST /api/auth/register", a.rateLimited(a.deps.RegisterLimiter, registerLimitMessage, http.HandlerFunc(a.register)))

	a.mux.Handle("GET /api/users/all", a.guard(admin, a.listUsers))
	a.mux.Handle("DELETE /api/users/reset", a.guard(admin, a.resetUsers))
	a.mux.Handle("GET /api/users/profile", a.guard(anyone, a.profile))
	a.mux.Handle("PUT /api/users/role/{id}", a.guard(admin, a.updateRole))
	a.mux.Handle("GET /api/users/content", a.guard(gate.Authorize(auth.RoleEditor, auth.RoleAdmin), a.content))
	a.mux.Handle("DELETE /api/users/{id}", a.guard(anyone, a.deleteUser))

	a.mux.Handle("POST /api/messages", a.guard(anyone, a.sendMessage))
	a.mux.Handle("GET /api/messages", a.guard(admin, a.listMessages))
}

// Handler wraps the routes in the middleware chain, outermost first:
// request id, client address, panic recovery, access log, metrics, security headers, CORS, body limit.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = CORS(h, a.corsOrigins)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	h = Recover(h)
	h = ClientIP(h, a.trustedProxies)
	h = RequestID(h)
	return h
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Backend is running",
		"version": a.deps.Version,
	})
}

func (a *API) ready(w http.ResponseWriter, r *http.Request) {
	failed := a.deps.Ready.Check(r.Context())
	if len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for name := range failed {
			names = append(names, name)
		}
		sort.Strings(names)
		obs.Logger().Warn().Strs("failed", names).Interface("errors", failed).Msg("readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"failed": names,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
