package httpapi

import (
	"net/http"
	"time"

	"roledash.org/internal/auth"
)

type sessionResponse struct {
	Message   string          `json:"message"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      auth.PublicUser `json:"user"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if err := decodeJSON(r, &in); err != nil {
		badBody(w, r, err)
		return
	}
	sess, err := a.deps.Auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse("Login successful", sess))
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		badBody(w, r, err)
		return
	}
	sess, err := a.deps.Auth.Register(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse("Registration successful", sess))
}

func newSessionResponse(msg string, s auth.Session) sessionResponse {
	return sessionResponse{
		Message:   msg,
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt.UTC(),
		User:      s.User,
	}
}
