package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/younes-bami/hrcut-app/internal/metrics"
)

const validatePath = "/auth/validate-token"

var (
	ErrRemoteRejected = errors.New("auth service rejected token")
	ErrRemoteDown     = errors.New("auth service unavailable")
)

type RemoteOpts struct {
	BaseURL       string        // auth service root; the token is POSTed to BaseURL + /auth/validate-token
	Timeout       time.Duration // default 3s
	FailThreshold int
	OpenFor       time.Duration
}

// RemoteVerifier delegates validation to the auth service and decodes the
// returned claims. Transport failures trip a circuit breaker; 4xx answers do not.
type RemoteVerifier struct {
	url    string
	client *http.Client
	br     *MicroBreaker
}

func NewRemoteVerifier(opts RemoteOpts) *RemoteVerifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	return &RemoteVerifier{
		url:    strings.TrimRight(opts.BaseURL, "/") + validatePath,
		client: &http.Client{Timeout: opts.Timeout},
		br:     NewMicroBreaker(opts.FailThreshold, opts.OpenFor),
	}
}

var _ Verifier = (*RemoteVerifier)(nil)

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if !v.br.TryAcquire() {
		return Identity{}, fmt.Errorf("%w: circuit open", ErrRemoteDown)
	}

	start := time.Now()
	claims, err := v.post(ctx, token)
	metrics.RemoteAuthLatency.Observe(time.Since(start).Seconds())

	if err != nil && !errors.Is(err, ErrRemoteRejected) {
		v.br.OnFailure()
		return Identity{}, err
	}
	v.br.OnSuccess()
	if err != nil {
		return Identity{}, err
	}
	return claims.Identity(), nil
}

func (v *RemoteVerifier) post(ctx context.Context, token string) (*Claims, error) {
	b, _ := json.Marshal(map[string]string{"token": token})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteDown, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode/100 == 2:
	case res.StatusCode/100 == 4:
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, fmt.Errorf("%w: status=%d", ErrRemoteRejected, res.StatusCode)
	default:
		return nil, fmt.Errorf("%w: status=%d", ErrRemoteDown, res.StatusCode)
	}

	var claims Claims
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&claims); err != nil {
		return nil, fmt.Errorf("%w: decode claims: %v", ErrRemoteRejected, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrRemoteRejected)
	}
	return &claims, nil
}
