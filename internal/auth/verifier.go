package auth

import "context"

// Verifier resolves a bearer token into the caller's identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// LocalVerifier checks tokens in-process against the shared secret.
type LocalVerifier struct {
	tokens *Tokens
}

func NewLocalVerifier(tokens *Tokens) *LocalVerifier {
	return &LocalVerifier{tokens: tokens}
}

var _ Verifier = (*LocalVerifier)(nil)

func (v *LocalVerifier) Verify(_ context.Context, token string) (Identity, error) {
	claims, err := v.tokens.Parse(token)
	if err != nil {
		return Identity{}, err
	}
	return claims.Identity(), nil
}
