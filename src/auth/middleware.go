package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"cfdpaper/src/security"

	logger "github.com/sirupsen/logrus"
)

const InternalTokenHeader = "X-Internal-Token"

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg, Code: "unauthorized"})
}

// RequireUser rejects requests without a valid bearer token and stores the
// token subject as the user id.
func RequireUser(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				unauthorized(w, "missing bearer token")
				return
			}
			userID, err := v.ParseToken(parts[1])
			if err != nil {
				logger.WithError(err).Debug("Rejected bearer token")
				unauthorized(w, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// RequireInternalToken guards cron endpoints with a token compared against a
// bcrypt hash.
func RequireInternalToken(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !security.CompareToken(tokenHash, r.Header.Get(InternalTokenHeader)) {
				unauthorized(w, "invalid internal token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
