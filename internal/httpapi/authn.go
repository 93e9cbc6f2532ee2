package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"linguacode/internal/identity"
	"linguacode/internal/session"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	codeTokenExpired        = "TOKEN_EXPIRED"
	codeRefreshTokenExpired = "REFRESH_TOKEN_EXPIRED"
)

// withAuth validates the bearer access token and confirms the encoded
// identity still exists before admitting the request. Expired tokens
// carry a machine-readable code so clients know to refresh rather than
// re-login.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "Token is missing")
			return
		}

		email, err := a.sessions.Validate(token)
		if err != nil {
			if errors.Is(err, session.ErrExpired) {
				writeAuthError(w, r, "Token has expired", codeTokenExpired)
				return
			}
			writeError(w, r, http.StatusUnauthorized, "Invalid token")
			return
		}

		if _, err := a.users.Find(r.Context(), email); err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				writeError(w, r, http.StatusUnauthorized, "Invalid token")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}

		next.ServeHTTP(w, r.WithContext(identity.ContextWithEmail(r.Context(), email)))
	})
}

func writeAuthError(w http.ResponseWriter, r *http.Request, msg, code string) {
	payload := map[string]any{
		"error": msg,
		"code":  code,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, http.StatusUnauthorized, payload)
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
