package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrExpired          = errors.New("token expired")
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrMalformed        = errors.New("token malformed")
)

const DefaultTokenTTL = 10 * time.Minute

type TokenOpts struct {
	Secret   []byte
	TTL      time.Duration // default 10m
	Issuer   string        // optional; checked on parse when set
	Audience string        // optional; checked on parse when set
}

// Tokens issues and verifies HS256 session tokens with a single shared secret.
type Tokens struct {
	secret   []byte
	ttl      time.Duration
	issuer   string
	audience string
	now      func() time.Time
}

func NewTokens(opts TokenOpts) (*Tokens, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("empty token secret")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTokenTTL
	}
	return &Tokens{
		secret:   opts.Secret,
		ttl:      opts.TTL,
		issuer:   opts.Issuer,
		audience: opts.Audience,
		now:      time.Now,
	}, nil
}

func (t *Tokens) TTL() time.Duration { return t.ttl }

func (t *Tokens) Issue(subjectID, username string, scopes, permissions []string) (string, error) {
	if subjectID == "" {
		return "", errors.New("empty subject")
	}
	now := t.now()
	claims := Claims{
		Username:    username,
		Scopes:      scopes,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	if t.audience != "" {
		claims.Audience = jwt.ClaimStrings{t.audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse checks signature then expiry. It does no I/O.
func (t *Tokens) Parse(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	if t.audience != "" {
		opts = append(opts, jwt.WithAudience(t.audience))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrMalformed)
	}
	return claims, nil
}
