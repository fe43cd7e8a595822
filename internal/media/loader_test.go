package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/farisgozi/attendify/internal/errs"
)

// scriptedFetcher fails a set number of times before succeeding.
type scriptedFetcher struct {
	failures int
	calls    int
	urls     []string
}

func (f *scriptedFetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls++
	f.urls = append(f.urls, url)
	if f.calls <= f.failures {
		return nil, errors.New("load failed")
	}
	return []byte("image-bytes"), nil
}

// newTestLoader returns a loader with instant, recorded sleeps and a
// fixed clock for deterministic cache busters.
func newTestLoader(fetch Fetcher, maxAttempts int, baseDelay time.Duration) (*Loader, *[]time.Duration) {
	l := NewLoader(fetch, maxAttempts, baseDelay)
	delays := &[]time.Duration{}
	l.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	tick := time.UnixMilli(1700000000000)
	l.now = func() time.Time {
		tick = tick.Add(time.Millisecond)
		return tick
	}
	return l, delays
}

func TestBackoffDelay(t *testing.T) {
	t.Parallel()
	base := 2000 * time.Millisecond
	want := []time.Duration{
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
	}
	for k, w := range want {
		if got := BackoffDelay(base, k); got != w {
			t.Errorf("BackoffDelay(base, %d): got %v, want %v", k, got, w)
		}
	}
}

func TestLoadSucceedsImmediately(t *testing.T) {
	t.Parallel()
	f := &scriptedFetcher{failures: 0}
	l, delays := newTestLoader(f.fetch, 3, 2*time.Second)

	data, err := l.Load(context.Background(), "https://cdn/photo.jpg")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("data: got %q", data)
	}
	if l.State() != StateLoaded {
		t.Errorf("state: got %v, want loaded", l.State())
	}
	if l.Attempt() != 0 {
		t.Errorf("attempt: got %d, want 0", l.Attempt())
	}
	if len(*delays) != 0 {
		t.Errorf("sleeps: got %v, want none", *delays)
	}
}

func TestLoadSucceedsOnThirdAttempt(t *testing.T) {
	t.Parallel()
	f := &scriptedFetcher{failures: 2}
	l, delays := newTestLoader(f.fetch, 3, 2*time.Second)

	data, err := l.Load(context.Background(), "https://cdn/photo.jpg")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("data: got %q", data)
	}

	// Two failures at attempts 0 and 1 schedule delays base*1 and base*2.
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("sleeps: got %v, want %v", *delays, want)
	}
	for i, w := range want {
		if (*delays)[i] != w {
			t.Errorf("sleep %d: got %v, want %v", i, (*delays)[i], w)
		}
	}

	// Success resets the counter.
	if l.Attempt() != 0 {
		t.Errorf("attempt after success: got %d, want 0", l.Attempt())
	}
	if l.State() != StateLoaded {
		t.Errorf("state: got %v, want loaded", l.State())
	}

	// The winning request used a cache-busted URL, not the original.
	final := f.urls[len(f.urls)-1]
	if final == "https://cdn/photo.jpg" {
		t.Error("final request should carry a cache buster")
	}
}

func TestLoadFailsAfterMaxAttempts(t *testing.T) {
	t.Parallel()
	f := &scriptedFetcher{failures: 100}
	l, delays := newTestLoader(f.fetch, 3, 2*time.Second)

	_, err := l.Load(context.Background(), "https://cdn/photo.jpg")
	if !errors.Is(err, errs.ErrTransient) {
		t.Fatalf("Load error: got %v, want ErrTransient", err)
	}
	if l.State() != StateFailed {
		t.Errorf("state: got %v, want failed", l.State())
	}
	if l.Attempt() != 3 {
		t.Errorf("attempt: got %d, want 3", l.Attempt())
	}
	// Initial try plus three retries.
	if f.calls != 4 {
		t.Errorf("fetch calls: got %d, want 4", f.calls)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("sleeps: got %v, want %v", *delays, want)
	}
	for i, w := range want {
		if (*delays)[i] != w {
			t.Errorf("sleep %d: got %v, want %v", i, (*delays)[i], w)
		}
	}
}

func TestLoadServesFallbackWhenFailed(t *testing.T) {
	t.Parallel()
	f := &scriptedFetcher{failures: 100}
	l, _ := newTestLoader(f.fetch, 1, time.Second)
	l.SetFallback([]byte("placeholder"))

	data, err := l.Load(context.Background(), "https://cdn/photo.jpg")
	if err != nil {
		t.Fatalf("Load with fallback: %v", err)
	}
	if string(data) != "placeholder" {
		t.Errorf("data: got %q, want fallback", data)
	}
	if l.State() != StateFailed {
		t.Errorf("state: got %v, want failed", l.State())
	}
}

func TestRetryResetsCounterAndReloads(t *testing.T) {
	t.Parallel()
	f := &scriptedFetcher{failures: 4}
	l, _ := newTestLoader(f.fetch, 3, time.Second)

	if _, err := l.Load(context.Background(), "https://cdn/photo.jpg"); err == nil {
		t.Fatal("expected initial load to fail")
	}
	if l.State() != StateFailed {
		t.Fatalf("state: got %v, want failed", l.State())
	}

	// The fifth fetch succeeds; the explicit retry must start from a
	// clean counter and reach it.
	data, err := l.Retry(context.Background())
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("data: got %q", data)
	}
	if l.Attempt() != 0 {
		t.Errorf("attempt after retry: got %d, want 0", l.Attempt())
	}
	if l.State() != StateLoaded {
		t.Errorf("state: got %v, want loaded", l.State())
	}
}

func TestCacheBusterReplacesPriorQuery(t *testing.T) {
	t.Parallel()
	f := &scriptedFetcher{failures: 2}
	l, _ := newTestLoader(f.fetch, 3, time.Second)

	if _, err := l.Load(context.Background(), "https://cdn/photo.jpg?sig=abc"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	for i, u := range f.urls[1:] {
		if StripCacheBuster(u) != "https://cdn/photo.jpg" {
			t.Errorf("retry url %d: got %q, want single query parameter on base URL", i, u)
		}
	}
}

func TestStripCacheBuster(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"https://cdn/p.jpg", "https://cdn/p.jpg"},
		{"https://cdn/p.jpg?cache=1", "https://cdn/p.jpg"},
		{"https://cdn/p.jpg?sig=a&cache=2", "https://cdn/p.jpg"},
	}
	for _, tt := range tests {
		if got := StripCacheBuster(tt.in); got != tt.want {
			t.Errorf("StripCacheBuster(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}
