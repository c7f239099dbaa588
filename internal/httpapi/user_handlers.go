package httpapi

import "net/http"

type roleRequest struct {
	Role string `json:"role"`
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := a.deps.Users.List(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) resetUsers(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if _, err := a.deps.Users.Reset(r.Context(), actor); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "All users deleted successfully"})
}

func (a *API) profile(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	u, err := a.deps.Users.Profile(r.Context(), actor)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) updateRole(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		badBody(w, r, err)
		return
	}
	u, err := a.deps.Users.UpdateRole(r.Context(), actor, r.PathValue("id"), req.Role)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "User role updated", "user": u})
}

func (a *API) content(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	list, err := a.deps.Users.Content(r.Context(), actor)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	byAdmin, err := a.deps.Users.Delete(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	msg := "Your account has been deleted successfully."
	if byAdmin {
		msg = "User deleted successfully (by admin)"
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}
