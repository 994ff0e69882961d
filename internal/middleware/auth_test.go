package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/et1613/chitchatproject-sub001/internal/utils"
)

var testSecret = []byte("test-jwt-secret")

type fakeRevocations struct {
	listed map[string]bool
}

func (f *fakeRevocations) IsTokenBlacklisted(_ context.Context, tokenKey string) (bool, error) {
	return f.listed[tokenKey], nil
}

func signTestJWT(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return signed
}

func protectedRouter(revoked RevocationChecker) (*mux.Router, *string) {
	var gotUserID string
	router := mux.NewRouter()
	router.Use(AuthMiddleware(testSecret, revoked))
	router.HandleFunc("/protected", func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = r.Context().Value(ContextKeyUserID).(string)
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")
	return router, &gotUserID
}

func doRequest(router *mux.Router, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	router, gotUserID := protectedRouter(&fakeRevocations{listed: map[string]bool{}})

	token := signTestJWT(t, testSecret, jwt.MapClaims{
		"sub": "alice",
		"jti": "token-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	rec := doRequest(router, "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "alice", *gotUserID)
}

func TestAuthMiddlewareRejectsMissingOrMalformedHeader(t *testing.T) {
	router, _ := protectedRouter(&fakeRevocations{listed: map[string]bool{}})

	require.Equal(t, http.StatusUnauthorized, doRequest(router, "").Code)
	require.Equal(t, http.StatusUnauthorized, doRequest(router, "Bearer").Code)
	require.Equal(t, http.StatusUnauthorized, doRequest(router, "Basic abc123").Code)
	require.Equal(t, http.StatusUnauthorized, doRequest(router, "Bearer not-a-jwt").Code)
}

func TestAuthMiddlewareRejectsExpiredToken(t *testing.T) {
	router, _ := protectedRouter(&fakeRevocations{listed: map[string]bool{}})

	token := signTestJWT(t, testSecret, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	require.Equal(t, http.StatusUnauthorized, doRequest(router, "Bearer "+token).Code)
}

func TestAuthMiddlewareRejectsWrongKey(t *testing.T) {
	router, _ := protectedRouter(&fakeRevocations{listed: map[string]bool{}})

	token := signTestJWT(t, []byte("some-other-secret"), jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	require.Equal(t, http.StatusUnauthorized, doRequest(router, "Bearer "+token).Code)
}

func TestAuthMiddlewareRejectsRevokedJTI(t *testing.T) {
	revoked := &fakeRevocations{listed: map[string]bool{
		utils.HashToken("revoked-jti"): true,
	}}
	router, _ := protectedRouter(revoked)

	token := signTestJWT(t, testSecret, jwt.MapClaims{
		"sub": "alice",
		"jti": "revoked-jti",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	require.Equal(t, http.StatusUnauthorized, doRequest(router, "Bearer "+token).Code)
}

func TestAuthMiddlewareRequiresSubject(t *testing.T) {
	router, _ := protectedRouter(&fakeRevocations{listed: map[string]bool{}})

	token := signTestJWT(t, testSecret, jwt.MapClaims{
		"jti": "token-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	require.Equal(t, http.StatusUnauthorized, doRequest(router, "Bearer "+token).Code)
}
