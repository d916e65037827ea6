package genai

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds for generation errors.
var (
	// ErrNoAPIKey means no upstream credential is configured. Fatal, never retried.
	ErrNoAPIKey = errors.New("generative API key is not configured")

	// ErrUpstreamUnavailable wraps transport-level failures reaching the upstream.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrEmptyResponse means the upstream response parsed but carried no usable text.
	ErrEmptyResponse = errors.New("upstream returned no usable text")

	// ErrGenerationFailed is the generic failure when no candidate could be tried.
	ErrGenerationFailed = errors.New("generation failed")
)

// UpstreamError is a non-2xx response from the generative endpoint.
// Status 404 is the sentinel for "model does not exist" and drives the
// fallback chain; every other status is terminal for the request.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: status %d: %s", e.Status, e.Body)
}

// NotFound reports whether the upstream did not recognize the model.
func (e *UpstreamError) NotFound() bool {
	return e.Status == http.StatusNotFound
}

// IsModelNotFound reports whether err is an upstream 404.
func IsModelNotFound(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.NotFound()
}
