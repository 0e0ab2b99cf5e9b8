package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cfdpaper/src/security"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(userID))
	})
}

func TestRequireUser(t *testing.T) {
	v := NewVerifier("s3cret", "idp")
	valid, err := v.SignToken("user-42", time.Hour)
	require.NoError(t, err)
	expired, err := v.SignToken("user-42", -time.Minute)
	require.NoError(t, err)
	otherIssuer, err := NewVerifier("s3cret", "someone-else").SignToken("user-42", time.Hour)
	require.NoError(t, err)
	wrongKey, err := NewVerifier("other", "idp").SignToken("user-42", time.Hour)
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-42", Issuer: "idp"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{name: "valid", header: "Bearer " + valid, status: http.StatusOK, body: "user-42"},
		{name: "lowercase scheme", header: "bearer " + valid, status: http.StatusOK, body: "user-42"},
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "basic", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized},
		{name: "issuer", header: "Bearer " + otherIssuer, status: http.StatusUnauthorized},
		{name: "signature", header: "Bearer " + wrongKey, status: http.StatusUnauthorized},
		{name: "alg none", header: "Bearer " + noneAlg, status: http.StatusUnauthorized},
	}

	h := RequireUser(v)(echoUser())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)
			}
		})
	}
}

func TestRequireInternalToken(t *testing.T) {
	hash, err := security.HashToken("cron-secret")
	require.NoError(t, err)

	h := RequireInternalToken(hash)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/internal/positions/refresh", nil)
	req.Header.Set(InternalTokenHeader, "cron-secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/internal/positions/refresh", nil)
	req.Header.Set(InternalTokenHeader, "guess")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Unconfigured hash locks the endpoint.
	rec = httptest.NewRecorder()
	RequireInternalToken("")(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/positions/refresh", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
