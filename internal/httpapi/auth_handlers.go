package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"linguacode/internal/identity"
	"linguacode/internal/session"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type tokenResponse struct {
	Token        string       `json:"token"`
	RefreshToken string       `json:"refresh_token"`
	User         *userPayload `json:"user,omitempty"`
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.users.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrAlreadyExists):
			writeError(w, r, http.StatusBadRequest, "Email already registered")
		default:
			writeError(w, r, http.StatusInternalServerError, "An error occurred during signup")
		}
		return
	}

	pair, err := a.sessions.Issue(user.Email)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "An error occurred during signup")
		return
	}

	a.audit(r.Context(), "auth.signup", map[string]any{"email": user.Email})
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:        pair.Access,
		RefreshToken: pair.Refresh,
		User:         &userPayload{Email: user.Email, Name: user.Name},
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "Missing email or password")
		return
	}

	user, err := a.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorized) {
			writeError(w, r, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "An error occurred during login")
		return
	}

	pair, err := a.sessions.Issue(user.Email)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "An error occurred during login")
		return
	}

	a.audit(r.Context(), "auth.login", map[string]any{"email": user.Email})
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:        pair.Access,
		RefreshToken: pair.Refresh,
		User:         &userPayload{Email: user.Email, Name: user.Name},
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, "Refresh token is missing")
		return
	}

	pair, err := a.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrExpired):
			writeAuthError(w, r, "Refresh token has expired", codeRefreshTokenExpired)
		case errors.Is(err, session.ErrInvalid), errors.Is(err, session.ErrUnknownSubject):
			writeError(w, r, http.StatusUnauthorized, "Invalid refresh token")
		default:
			writeError(w, r, http.StatusInternalServerError, "An error occurred during token refresh")
		}
		return
	}

	a.audit(r.Context(), "auth.refresh", nil)
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:        pair.Access,
		RefreshToken: pair.Refresh,
	})
}
