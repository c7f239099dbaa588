package httpapi

import (
	"net/http"

	"roledash.org/internal/auth"
)

// guard runs the authentication gate, then check, then next with the
// identity in the request context.
func (a *API) guard(check auth.Check, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := gateRequest(r)
		ctx, _, err := a.deps.Gate.Authenticate(r.Context(), req)
		if err != nil {
			handleError(w, r, err)
			return
		}
		if err := check(ctx, req); err != nil {
			handleError(w, r, err)
			return
		}
		next(w, r.WithContext(ctx))
	})
}

func gateRequest(r *http.Request) auth.Request {
	return auth.Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		ClientIP:      clientIP(r),
		Authorization: r.Header.Get("Authorization"),
	}
}

// identity returns the caller set by guard. Handlers behind guard always have one.
func identity(r *http.Request) (auth.Identity, error) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return auth.Identity{}, auth.ErrUnauthenticated
	}
	return id, nil
}
