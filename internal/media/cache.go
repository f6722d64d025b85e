package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// DefaultRefreshMargin is the lead time before actual expiry at which a
// signed URL is treated as stale and eligible for refresh.
const DefaultRefreshMargin = 60 * time.Second

var ErrNoExpiry = errors.New("no expiry in signed url")

// SignedURL is one fresh URL returned by the signing endpoint.
type SignedURL struct {
	Filename string
	URL      string
	Expires  time.Time
}

// Signer issues signed URLs for a batch of media filenames in one call.
type Signer interface {
	SignMedia(ctx context.Context, filenames []string) ([]SignedURL, error)
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(ctx context.Context, filenames []string) ([]SignedURL, error)

func (f SignerFunc) SignMedia(ctx context.Context, filenames []string) ([]SignedURL, error) {
	return f(ctx, filenames)
}

// Entry is one cached signed URL. A zero ExpiresAt means the expiry
// could not be determined and the entry is always considered stale.
type Entry struct {
	URL       string
	ExpiresAt time.Time
}

// Cache maps media filenames to signed URLs for one editor or viewer
// session. The entries map is copy-on-write: it is replaced wholesale on
// every merge and never mutated in place, so a Snapshot taken by a
// consumer stays valid and Generation detects change cheaply.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]Entry
	gen      uint64
	inflight map[string]struct{}
	signer   Signer
	margin   time.Duration
	now      func() time.Time
}

func NewCache(signer Signer) *Cache {
	return &Cache{
		entries:  map[string]Entry{},
		inflight: map[string]struct{}{},
		signer:   signer,
		margin:   DefaultRefreshMargin,
		now:      time.Now,
	}
}

// SetRefreshMargin overrides the staleness lead time. Zero or negative
// values keep the default.
func (c *Cache) SetRefreshMargin(margin time.Duration) {
	if margin <= 0 {
		return
	}
	c.mu.Lock()
	c.margin = margin
	c.mu.Unlock()
}

// SetClock replaces the time source. Tests only.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *Cache) fresh(entry Entry, now time.Time) bool {
	if entry.ExpiresAt.IsZero() {
		return false
	}
	return now.Add(c.margin).Before(entry.ExpiresAt)
}

// Get returns the entry for filename if it is present and not within
// the refresh margin of expiry. A stale entry reports as missing.
func (c *Cache) Get(filename string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[filename]
	if !ok || !c.fresh(entry, c.now()) {
		return Entry{}, false
	}
	return entry, true
}

// Put records a server-supplied signed URL. Both the sign path and the
// upload path feed the cache through here; nothing else may invent
// expiries.
func (c *Cache) Put(filename, rawURL string, expiresAt time.Time) {
	if filename == "" || rawURL == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	next := cloneEntries(c.entries)
	next[filename] = Entry{URL: rawURL, ExpiresAt: expiresAt}
	c.entries = next
	c.gen++
}

// PutFromURL records a signed URL whose expiry is embedded in the URL
// itself, as the upload response delivers it. An unparsable expiry is
// stored as already expired so the next pass forces a refresh instead
// of serving a possibly dead link.
func (c *Cache) PutFromURL(filename, rawURL string) {
	expiresAt, err := ExpiryFromURL(rawURL)
	if err != nil {
		slog.Debug("signed url expiry unreadable, treating as stale", "filename", filename, "err", err)
		expiresAt = time.Time{}
	}
	c.Put(filename, rawURL, expiresAt)
}

// ResolveBatch refreshes the subset of filenames that is missing or
// stale, in a single signing request. Names already being signed by a
// concurrent call are skipped (best-effort deduplication). On failure
// the cache is left untouched; the next content-change pass retries.
func (c *Cache) ResolveBatch(ctx context.Context, filenames []string) error {
	c.mu.Lock()
	now := c.now()
	seen := map[string]struct{}{}
	var want []string
	for _, name := range filenames {
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if _, busy := c.inflight[name]; busy {
			continue
		}
		if entry, ok := c.entries[name]; ok && c.fresh(entry, now) {
			continue
		}
		c.inflight[name] = struct{}{}
		want = append(want, name)
	}
	c.mu.Unlock()

	if len(want) == 0 {
		return nil
	}
	signed, err := c.signer.SignMedia(ctx, want)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range want {
		delete(c.inflight, name)
	}
	if err != nil {
		return fmt.Errorf("sign media batch: %w", err)
	}
	next := cloneEntries(c.entries)
	for _, s := range signed {
		if s.Filename == "" || s.URL == "" {
			continue
		}
		next[s.Filename] = Entry{URL: s.URL, ExpiresAt: s.Expires}
	}
	c.entries = next
	c.gen++
	return nil
}

// Snapshot returns the current entries map. The map is never mutated
// after publication; callers may read it without locking.
func (c *Cache) Snapshot() map[string]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries
}

// Generation increments on every cache update.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func cloneEntries(entries map[string]Entry) map[string]Entry {
	next := make(map[string]Entry, len(entries)+1)
	for name, entry := range entries {
		next[name] = entry
	}
	return next
}

// ExpiryFromURL reads the absolute expiry embedded in a signed URL as
// the "expires" query parameter, in epoch seconds or milliseconds.
func ExpiryFromURL(rawURL string) (time.Time, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse signed url: %w", err)
	}
	value := parsed.Query().Get("expires")
	if value == "" {
		value = parsed.Query().Get("Expires")
	}
	if value == "" {
		return time.Time{}, ErrNoExpiry
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse expires %q: %w", value, err)
	}
	if n > 1_000_000_000_000 {
		return time.UnixMilli(n), nil
	}
	return time.Unix(n, 0), nil
}
