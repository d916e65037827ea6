// Package imagery obtains image bytes for generation requests, either by
// downloading from a URL or by reading a device's stored images.
package imagery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avian-io/roost/internal/adapters/blobstore"
	"github.com/avian-io/roost/internal/adapters/genai"
	"github.com/avian-io/roost/pkg/logger"
	"github.com/avian-io/roost/pkg/metrics"
)

// Default fetcher configuration constants.
const (
	defaultFetchTimeout = 30 * time.Second
	defaultMimeType     = "image/jpeg"
	imageMimePrefix     = "image/"
)

// Option applies a configuration option to the Fetcher.
type Option func(*Fetcher)

// WithTimeout bounds a single URL download.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithHTTPClient sets the HTTP client used for URL downloads.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) {
		if hc != nil {
			f.httpClient = hc
		}
	}
}

// WithLogger sets the logger for retention decisions.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.log = l
		}
	}
}

// Fetcher converts remote or stored images into inline content parts.
type Fetcher struct {
	store      blobstore.Store
	httpClient *http.Client
	timeout    time.Duration
	log        logger.Logger
}

// NewFetcher creates a Fetcher over store with configuration options.
func NewFetcher(store blobstore.Store, opts ...Option) *Fetcher {
	f := &Fetcher{
		store:   store,
		timeout: defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.httpClient == nil {
		f.httpClient = &http.Client{}
	}
	return f
}

// FromURL downloads imageURL with a bounded timeout and returns it as an
// inline image part. A content type that is not an image media type is
// coerced to image/jpeg rather than rejected.
func (f *Fetcher) FromURL(ctx context.Context, imageURL string) (genai.Part, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		metrics.RecordImageFetchError()
		return genai.Part{}, fmt.Errorf("%w: %v", ErrImageFetch, err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		metrics.RecordImageFetchError()
		return genai.Part{}, fmt.Errorf("%w: %v", ErrImageFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		metrics.RecordImageFetchError()
		return genai.Part{}, fmt.Errorf("%w: status %d from %s", ErrImageFetch, resp.StatusCode, imageURL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordImageFetchError()
		return genai.Part{}, fmt.Errorf("%w: %v", ErrImageFetch, err)
	}
	if len(data) == 0 {
		metrics.RecordImageFetchError()
		return genai.Part{}, fmt.Errorf("%w: empty body from %s", ErrImageFetch, imageURL)
	}

	mimeType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, imageMimePrefix) {
		mimeType = defaultMimeType
	}

	metrics.RecordImageFetch("url")
	return genai.InlineImage(mimeType, data), nil
}

// FromDevice reads at most maxCount stored images for deviceID in the
// store's listing order and returns them as inline parts. Every stored
// image past the maxCount-th is deleted as a side effect: retention is
// coupled to the read and runs whether or not the fetched images are
// ultimately used downstream.
func (f *Fetcher) FromDevice(ctx context.Context, deviceID string, maxCount int) ([]genai.Part, error) {
	if maxCount < 0 {
		maxCount = 0
	}

	prefix := deviceID + "/"
	names, err := f.store.List(ctx, prefix)
	if err != nil {
		metrics.RecordImageFetchError()
		return nil, fmt.Errorf("%w: list images for %s: %v", ErrImageFetch, deviceID, err)
	}

	keep := names
	if len(names) > maxCount {
		keep = names[:maxCount]
	}
	f.prune(ctx, deviceID, names[len(keep):])

	parts := make([]genai.Part, 0, len(keep))
	for _, name := range keep {
		data, err := f.store.Download(ctx, name)
		if err != nil {
			metrics.RecordImageFetchError()
			return nil, fmt.Errorf("%w: download %s: %v", ErrImageFetch, name, err)
		}
		parts = append(parts, genai.InlineImage(detectMime(data), data))
		metrics.RecordImageFetch("device")
	}
	return parts, nil
}

// prune deletes the given stored objects. Failures are logged, not
// surfaced: retention is best-effort and must not fail the read.
func (f *Fetcher) prune(ctx context.Context, deviceID string, names []string) {
	if len(names) == 0 {
		return
	}
	pruned := 0
	for _, name := range names {
		if err := f.store.Delete(ctx, name); err != nil {
			if f.log != nil {
				f.log.Warn(ctx, "failed to prune stored image",
					logger.String("device", deviceID),
					logger.String("object", name),
					logger.Error(err),
				)
			}
			continue
		}
		pruned++
	}
	metrics.RecordImagesPruned(pruned)
}

func detectMime(data []byte) string {
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, imageMimePrefix) {
		return defaultMimeType
	}
	return mimeType
}
