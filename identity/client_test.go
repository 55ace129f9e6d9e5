package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func verifyServer(t *testing.T, calls *int64, tokens map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		assert.Equal(t, "/api/v1/auth/verify", r.URL.Path)
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		var req struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		did, ok := tokens[req.Token]
		if !ok {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"valid": true, "did": did})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPVerifierValidToken(t *testing.T) {
	var calls int64
	srv := verifyServer(t, &calls, map[string]string{"tok": "did:web:example.com:alice"})
	v := NewHTTPVerifier(srv.URL, "service-key")

	did, err := v.VerifyToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "did:web:example.com:alice", did)
}

func TestHTTPVerifierCachesPositiveVerdicts(t *testing.T) {
	var calls int64
	srv := verifyServer(t, &calls, map[string]string{"tok": "did:web:example.com:alice"})
	v := NewHTTPVerifier(srv.URL, "service-key")

	for i := 0; i < 5; i++ {
		_, err := v.VerifyToken(context.Background(), "tok")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls), "positive verdicts are served from cache")
}

func TestHTTPVerifierInvalidTokenNotCached(t *testing.T) {
	var calls int64
	srv := verifyServer(t, &calls, nil)
	v := NewHTTPVerifier(srv.URL, "service-key")

	for i := 0; i < 3; i++ {
		_, err := v.VerifyToken(context.Background(), "bad")
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls), "rejections hit the authority every time")
}

func TestHTTPVerifierNegativeVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"valid": false})
	}))
	t.Cleanup(srv.Close)

	v := NewHTTPVerifier(srv.URL, "service-key")
	_, err := v.VerifyToken(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHTTPVerifierServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	v := NewHTTPVerifier(srv.URL, "service-key")
	_, err := v.VerifyToken(context.Background(), "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken, "authority outages are transport errors, not rejections")
}

func TestHTTPVerifierUnreachable(t *testing.T) {
	v := NewHTTPVerifier("http://127.0.0.1:1", "service-key")
	_, err := v.VerifyToken(context.Background(), "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestStaticVerifier(t *testing.T) {
	v := &StaticVerifier{Tokens: map[string]string{"t": "did:web:x"}}

	did, err := v.VerifyToken(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "did:web:x", did)

	_, err = v.VerifyToken(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
