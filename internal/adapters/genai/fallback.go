package genai

import (
	"context"
	"strings"
	"time"

	"github.com/avian-io/roost/pkg/logger"
	"github.com/avian-io/roost/pkg/metrics"
)

// modelPrefix is the provider namespace stripped before comparing model ids.
const modelPrefix = "models/"

// DefaultFallbackModels is the fixed priority list tried after the
// requested model, in descending preference.
var DefaultFallbackModels = []string{
	"gemini-2.5-pro",
	"gemini-pro-latest",
	"gemini-2.5-flash",
	"gemini-2.0-flash",
}

// ResolverOption applies a configuration option to the Resolver.
type ResolverOption func(*Resolver)

// WithFallbackModels replaces the fallback chain. Injected rather than
// hard-coded so tests can drive deterministic candidate lists.
func WithFallbackModels(models []string) ResolverOption {
	return func(r *Resolver) {
		if len(models) > 0 {
			r.fallbacks = models
		}
	}
}

// WithResolverLogger sets the logger used for per-candidate decisions.
func WithResolverLogger(l logger.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// Resolver drives an Invoker across an ordered, de-duplicated candidate
// list, stopping at the first success or the first failure that is not
// "model not found".
type Resolver struct {
	invoker   Invoker
	fallbacks []string
	log       logger.Logger
}

// NewResolver creates a Resolver over invoker with configuration options.
func NewResolver(invoker Invoker, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		invoker:   invoker,
		fallbacks: DefaultFallbackModels,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Generate resolves requestedModel into a concrete upstream model and
// returns the produced text. The requested model (if any) is tried first,
// then the fallback chain in order. A 404 from the upstream moves on to
// the next candidate; any other failure is surfaced immediately. If every
// candidate is unknown upstream, the last 404 is returned.
func (r *Resolver) Generate(ctx context.Context, requestedModel string, parts []Part) (string, error) {
	candidates := r.candidates(requestedModel)

	start := time.Now()
	defer func() {
		metrics.RecordInferenceLatency(float64(time.Since(start).Milliseconds()))
	}()

	var lastErr error
	for i, model := range candidates {
		text, err := r.invoker.Invoke(ctx, model, parts)
		if err == nil {
			metrics.RecordFallbackDepth(i + 1)
			return text, nil
		}
		if !IsModelNotFound(err) {
			metrics.RecordFallbackDepth(i + 1)
			return "", err
		}
		// Unknown model upstream: remember and try the next candidate.
		metrics.RecordModelNotFoundSkip()
		if r.log != nil {
			r.log.Warn(ctx, "model not found upstream, trying next candidate",
				logger.String("model", model),
				logger.Int("remaining", len(candidates)-i-1),
			)
		}
		lastErr = err
	}

	metrics.RecordFallbackDepth(len(candidates))
	if lastErr != nil {
		return "", lastErr
	}
	return "", ErrGenerationFailed
}

// candidates builds the ordered candidate list: the requested model first,
// then the fallback chain, normalized and de-duplicated keeping the first
// occurrence.
func (r *Resolver) candidates(requestedModel string) []string {
	raw := make([]string, 0, len(r.fallbacks)+1)
	if requestedModel != "" {
		raw = append(raw, requestedModel)
	}
	raw = append(raw, r.fallbacks...)

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, m := range raw {
		key := strings.TrimPrefix(m, modelPrefix)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
