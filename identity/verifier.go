package identity

import (
	"context"
)

// Verifier checks DIDAuthV1 tokens against an identity authority and returns
// the caller DID they certify.
type Verifier interface {
	// VerifyToken validates a DIDAuthV1 token. It returns the caller DID on
	// success, or an error when the token is malformed, expired, or its
	// signature does not match the presented DID.
	VerifyToken(ctx context.Context, token string) (did string, err error)
}

// StaticVerifier accepts a fixed token-to-DID mapping. Tests only.
type StaticVerifier struct {
	Tokens map[string]string
}

// VerifyToken resolves the token against the static table.
func (v *StaticVerifier) VerifyToken(_ context.Context, token string) (string, error) {
	if did, ok := v.Tokens[token]; ok {
		return did, nil
	}
	return "", ErrInvalidToken
}
