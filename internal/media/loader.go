package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/farisgozi/attendify/internal/errs"

	"github.com/rs/zerolog/log"
)

// LoadState is the lifecycle state of one image load.
type LoadState int

const (
	StateLoading LoadState = iota
	StateLoaded
	StateRetrying
	StateFailed
)

func (s LoadState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateRetrying:
		return "retrying"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Fetcher retrieves the bytes behind a resolved URL.
type Fetcher func(ctx context.Context, url string) ([]byte, error)

// Loader fetches an image with automatic exponential-backoff retries and
// cache busting. Failed is terminal until an explicit Retry resets the
// attempt counter. A loader serves one display slot and is not safe for
// concurrent use.
type Loader struct {
	fetch       Fetcher
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
	maxAttempts int
	baseDelay   time.Duration
	fallback    []byte

	state   LoadState
	attempt int
	source  string
	data    []byte
}

// NewLoader creates a loader with the given retry policy. A nil fetcher
// uses HTTP GET.
func NewLoader(fetch Fetcher, maxAttempts int, baseDelay time.Duration) *Loader {
	if fetch == nil {
		fetch = HTTPFetcher(http.DefaultClient)
	}
	return &Loader{
		fetch:       fetch,
		sleep:       sleepCtx,
		now:         time.Now,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		state:       StateLoading,
	}
}

// SetFallback configures bytes served in the Failed state instead of an
// error.
func (l *Loader) SetFallback(data []byte) {
	l.fallback = data
}

// State returns the loader's current lifecycle state.
func (l *Loader) State() LoadState { return l.state }

// Attempt returns the count of failed attempts so far.
func (l *Loader) Attempt() int { return l.attempt }

// BackoffDelay returns the scheduled wait before the retry following
// failed attempt k (0-indexed): baseDelay * 2^k.
func BackoffDelay(baseDelay time.Duration, attempt int) time.Duration {
	return baseDelay * (1 << attempt)
}

// StripCacheBuster removes the query string from a URL so repeated cache
// busting does not grow it without bound.
func StripCacheBuster(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}

// cacheBust appends a cache-defeating query parameter, replacing any
// prior one.
func (l *Loader) cacheBust(url string) string {
	return fmt.Sprintf("%s?cache=%d", StripCacheBuster(url), l.now().UnixMilli())
}

// Load fetches the image at the given URL, retrying transient failures
// per the backoff policy. On success the attempt counter resets to zero.
// Once the counter reaches the ceiling the loader transitions to Failed
// and returns the fallback bytes if configured, otherwise a transient
// error.
func (l *Loader) Load(ctx context.Context, url string) ([]byte, error) {
	l.source = url
	l.state = StateLoading
	l.attempt = 0
	l.data = nil
	return l.run(ctx, url)
}

// Retry is the explicit user-triggered reset out of the Failed state. It
// clears the attempt counter and reloads the original source with a
// fresh cache buster.
func (l *Loader) Retry(ctx context.Context) ([]byte, error) {
	if l.source == "" {
		return nil, fmt.Errorf("%w: no source to retry", errs.ErrValidation)
	}
	l.state = StateLoading
	l.attempt = 0
	l.data = nil
	return l.run(ctx, l.cacheBust(l.source))
}

func (l *Loader) run(ctx context.Context, url string) ([]byte, error) {
	current := url
	for {
		data, err := l.fetch(ctx, current)
		if err == nil {
			l.state = StateLoaded
			l.attempt = 0
			l.data = data
			return data, nil
		}

		if l.attempt >= l.maxAttempts {
			l.state = StateFailed
			if l.fallback != nil {
				return l.fallback, nil
			}
			return nil, fmt.Errorf("%w: image load failed after %d attempts: %w", errs.ErrTransient, l.attempt, err)
		}

		delay := BackoffDelay(l.baseDelay, l.attempt)
		log.Debug().
			Err(err).
			Int("attempt", l.attempt+1).
			Dur("delay", delay).
			Msg("Retrying image load")

		l.state = StateRetrying
		if serr := l.sleep(ctx, delay); serr != nil {
			l.state = StateFailed
			return nil, serr
		}
		l.attempt++
		l.state = StateLoading
		current = l.cacheBust(url)
	}
}

// HTTPFetcher returns a Fetcher backed by the given HTTP client.
func HTTPFetcher(client *http.Client) Fetcher {
	return func(ctx context.Context, url string) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrTransient, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, url)
		case resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%w: %s", errs.ErrPermissionDenied, url)
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("%w: unexpected status %d", errs.ErrTransient, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
