// Package identity verifies bearer credentials against the auth service.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avian-io/roost/internal/domain/model"
)

// defaultVerifyTimeout bounds one verification round trip.
const defaultVerifyTimeout = 10 * time.Second

// Verifier resolves a bearer credential into a user identity.
type Verifier interface {
	// Verify returns the identity behind token or ErrUnauthorized.
	Verify(ctx context.Context, token string) (model.User, error)
}

// Option applies a configuration option to the HTTPVerifier.
type Option func(*HTTPVerifier)

// WithHTTPClient sets the HTTP client used for verification calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(v *HTTPVerifier) {
		if hc != nil {
			v.httpClient = hc
		}
	}
}

// WithTimeout bounds a single verification call.
func WithTimeout(d time.Duration) Option {
	return func(v *HTTPVerifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// HTTPVerifier implements Verifier against a GoTrue-style user endpoint.
type HTTPVerifier struct {
	authURL    string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
}

// NewHTTPVerifier creates a verifier for the auth service at authURL.
func NewHTTPVerifier(authURL, apiKey string, opts ...Option) *HTTPVerifier {
	v := &HTTPVerifier{
		authURL: strings.TrimRight(authURL, "/"),
		apiKey:  apiKey,
		timeout: defaultVerifyTimeout,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.httpClient == nil {
		v.httpClient = &http.Client{}
	}
	return v
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Verify calls the auth service's user endpoint with the bearer token.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, ErrUnauthorized
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.authURL+"/user", nil)
	if err != nil {
		return model.User{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.apiKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return model.User{}, fmt.Errorf("verify token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return model.User{}, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return model.User{}, fmt.Errorf("verify token: unexpected status %d", resp.StatusCode)
	}

	var u userResponse
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return model.User{}, fmt.Errorf("decode identity: %w", err)
	}
	if u.ID == "" {
		return model.User{}, ErrUnauthorized
	}
	return model.User{ID: u.ID, Email: u.Email}, nil
}
