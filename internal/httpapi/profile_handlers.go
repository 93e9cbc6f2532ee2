package httpapi

import (
	"errors"
	"net/http"

	"linguacode/internal/history"
	"linguacode/internal/identity"
)

// currentEmail resolves the request's identity. With the auth gate
// disabled there is no bearer principal, so requests share one
// anonymous identity.
func currentEmail(r *http.Request) string {
	if email, ok := identity.EmailFromContext(r.Context()); ok {
		return email
	}
	return "anonymous"
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	records, err := a.history.List(r.Context(), currentEmail(r))
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch history")
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": records})
}

func (a *API) handleUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	user, err := a.users.Find(r.Context(), currentEmail(r))
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch user data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user": userPayload{Email: user.Email, Name: user.Name},
	})
}
