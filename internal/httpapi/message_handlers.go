package httpapi

import (
	"net/http"

	"roledash.org/internal/messages"
)

func (a *API) sendMessage(w http.ResponseWriter, r *http.Request) {
	sender, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var in messages.SendInput
	if err := decodeJSON(r, &in); err != nil {
		badBody(w, r, err)
		return
	}
	if _, err := a.deps.Messages.Send(r.Context(), sender, in.Message); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Message sent successfully"})
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	list, err := a.deps.Messages.List(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
