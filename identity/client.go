package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"
	gocache "github.com/patrickmn/go-cache"

	"github.com/didgateway/llm-gateway/common/config"
)

// ErrInvalidToken marks a token the authority rejected, as opposed to a
// transport failure reaching the authority.
var ErrInvalidToken = errors.New("invalid DIDAuthV1 token")

// HTTPVerifier verifies tokens against the external identity service and
// caches positive results for a short TTL.
type HTTPVerifier struct {
	endpoint   string
	serviceKey string
	client     *http.Client
	cache      *gocache.Cache
}

// NewHTTPVerifier builds a verifier for the given authority endpoint. The
// service key authenticates this gateway to the authority.
func NewHTTPVerifier(endpoint, serviceKey string) *HTTPVerifier {
	ttl := time.Duration(config.DIDCacheTTL) * time.Second
	return &HTTPVerifier{
		endpoint:   endpoint,
		serviceKey: serviceKey,
		client:     &http.Client{Timeout: 10 * time.Second},
		cache:      gocache.New(ttl, 2*ttl),
	}
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Valid bool   `json:"valid"`
	Did   string `json:"did"`
	Error string `json:"error,omitempty"`
}

// VerifyToken validates the token, consulting the cache first. Only positive
// verdicts are cached so a revoked token is re-checked on every attempt.
func (v *HTTPVerifier) VerifyToken(ctx context.Context, token string) (string, error) {
	if cached, ok := v.cache.Get(token); ok {
		return cached.(string), nil
	}

	payload, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return "", errors.Wrap(err, "marshal verify request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		v.endpoint+"/api/v1/auth/verify", bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "build verify request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.serviceKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "call identity service")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", errors.Wrap(err, "read identity service response")
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("identity service returned %d: %s", resp.StatusCode, string(body))
	}

	var verdict verifyResponse
	if err := json.Unmarshal(body, &verdict); err != nil {
		return "", errors.Wrap(err, "decode identity service response")
	}
	if !verdict.Valid || verdict.Did == "" {
		return "", ErrInvalidToken
	}

	v.cache.SetDefault(token, verdict.Did)
	return verdict.Did, nil
}
