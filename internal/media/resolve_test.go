package media

import (
	"strings"
	"testing"
	"time"
)

func TestResolveFullURLPassesThrough(t *testing.T) {
	c := NewCache(nil)
	url := "https://cdn.example.com/a.jpg?expires=123"
	if got := Resolve(url, c); got != url {
		t.Fatalf("Resolve(full url) = %q, want unchanged", got)
	}
}

func TestResolvePlaceholderReturnsFiller(t *testing.T) {
	got := Resolve("uploading-1000-0", NewCache(nil))
	if !strings.HasPrefix(got, "data:image/svg+xml,") {
		t.Fatalf("Resolve(placeholder) = %q, want inline data uri", got)
	}
}

func TestResolveFilenameCacheHit(t *testing.T) {
	now := time.Unix(1_690_000_000, 0)
	c, _ := newTestCache(nil, now)
	c.Put("1690000001-ab12-a.jpg", "https://signed/a", now.Add(time.Hour))

	if got := Resolve("1690000001-ab12-a.jpg", c); got != "https://signed/a" {
		t.Fatalf("Resolve(filename hit) = %q, want cached url", got)
	}
}

func TestResolveFilenameCacheMissReturnsRaw(t *testing.T) {
	now := time.Unix(1_690_000_000, 0)
	c, clock := newTestCache(nil, now)

	if got := Resolve("1690000001-ab12-a.jpg", c); got != "1690000001-ab12-a.jpg" {
		t.Fatalf("Resolve(miss) = %q, want raw token", got)
	}

	// A stale entry degrades the same way as an absent one.
	c.Put("1690000001-ab12-a.jpg", "https://signed/a", now.Add(30*time.Second))
	*clock = now
	if got := Resolve("1690000001-ab12-a.jpg", c); got != "1690000001-ab12-a.jpg" {
		t.Fatalf("Resolve(stale) = %q, want raw token", got)
	}
}

func TestResolveNilCache(t *testing.T) {
	if got := Resolve("1690000001-ab12-a.jpg", nil); got != "1690000001-ab12-a.jpg" {
		t.Fatalf("Resolve with nil cache = %q, want raw token", got)
	}
}
