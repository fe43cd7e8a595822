package media

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/farisgozi/attendify/internal/errs"

	"github.com/rs/zerolog/log"
)

// URLSigner issues a time-limited access URL for an object path.
type URLSigner interface {
	SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error)
}

// CacheEntry is a signed URL together with its validity window.
type CacheEntry struct {
	Path     string
	URL      string
	IssuedAt time.Time
	TTL      time.Duration
}

// Fresh reports whether the entry is still usable at the given instant.
func (e CacheEntry) Fresh(now time.Time) bool {
	return now.Before(e.IssuedAt.Add(e.TTL))
}

// Manager turns opaque storage paths into short-lived viewable URLs,
// caches them, and re-signs them on a fixed interval strictly shorter
// than their validity window.
type Manager struct {
	signer       URLSigner
	bucket       string
	ttl          time.Duration
	refreshEvery time.Duration
	now          func() time.Time

	mu    sync.Mutex
	cache map[string]CacheEntry
}

// NewManager creates a manager signing against a single bucket.
func NewManager(signer URLSigner, bucket string, ttl, refreshEvery time.Duration) *Manager {
	return &Manager{
		signer:       signer,
		bucket:       bucket,
		ttl:          ttl,
		refreshEvery: refreshEvery,
		now:          time.Now,
		cache:        make(map[string]CacheEntry),
	}
}

// HasURLScheme reports whether the value is already a fully-qualified URL.
func HasURLScheme(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// NormalizePath extracts the object path from a value stored as a
// previously-issued full URL. Legacy rows hold the entire signed URL
// instead of the object path; the usable part is everything after the
// bucket-name marker segment. A value without the marker cannot be
// re-signed and is reported as not found.
func NormalizePath(bucket, stored string) (string, error) {
	marker := bucket + "/"
	idx := strings.Index(stored, marker)
	if idx < 0 {
		return "", fmt.Errorf("%w: no %q marker in stored path", errs.ErrNotFound, marker)
	}
	path := stored[idx+len(marker):]
	// Signed URLs carry their token in the query string; it is not part
	// of the object path.
	if q := strings.IndexByte(path, '?'); q >= 0 {
		path = path[:q]
	}
	if path == "" {
		return "", fmt.Errorf("%w: empty path after %q marker", errs.ErrNotFound, marker)
	}
	return path, nil
}

// Resolve returns a viewable URL for an object path. Values that are
// already fully-qualified URLs pass through unchanged without a backend
// call. A cached URL is reused while its validity window holds.
func (m *Manager) Resolve(ctx context.Context, path string) (string, error) {
	if HasURLScheme(path) {
		return path, nil
	}

	m.mu.Lock()
	entry, ok := m.cache[path]
	m.mu.Unlock()
	if ok && entry.Fresh(m.now()) {
		return entry.URL, nil
	}

	return m.sign(ctx, path)
}

// DisplayURL resolves a stored photo reference that may be either an
// object path or a legacy full signed URL. Legacy values are normalized
// to their object path and re-signed so the viewer never receives an
// already-expired URL.
func (m *Manager) DisplayURL(ctx context.Context, stored string) (string, error) {
	if HasURLScheme(stored) {
		path, err := NormalizePath(m.bucket, stored)
		if err != nil {
			return "", err
		}
		return m.Resolve(ctx, path)
	}
	return m.Resolve(ctx, stored)
}

// sign requests a fresh signed URL and replaces the cache entry.
func (m *Manager) sign(ctx context.Context, path string) (string, error) {
	url, err := m.signer.SignedURL(ctx, m.bucket, path, m.ttl)
	if err != nil {
		return "", fmt.Errorf("%w: signing %s: %w", errs.ErrTransient, path, err)
	}

	m.mu.Lock()
	m.cache[path] = CacheEntry{
		Path:     path,
		URL:      url,
		IssuedAt: m.now(),
		TTL:      m.ttl,
	}
	m.mu.Unlock()

	return url, nil
}

// Forget drops the cached entry for a path, if any.
func (m *Manager) Forget(path string) {
	m.mu.Lock()
	delete(m.cache, path)
	m.mu.Unlock()
}

// ScheduleRefresh re-signs the path on the manager's refresh interval and
// hands each new URL to onRefreshed. The returned stop function cancels
// the schedule; after it returns, onRefreshed is never invoked again.
func (m *Manager) ScheduleRefresh(ctx context.Context, path string, onRefreshed func(url string)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.refreshEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				url, err := m.sign(ctx, path)
				if err != nil {
					log.Warn().Err(err).Str("path", path).Msg("Signed URL refresh failed")
					continue
				}
				if ctx.Err() != nil {
					return
				}
				onRefreshed(url)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
