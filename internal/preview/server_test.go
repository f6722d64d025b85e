package preview

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"lifelog/internal/drafts"
	"lifelog/internal/media"
)

func newTestServer(t *testing.T, signer media.Signer) (*Server, *drafts.Store) {
	t.Helper()
	store, err := drafts.Open(filepath.Join(t.TempDir(), "drafts.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	return NewServer(store, signer), store
}

func TestIndexListsDrafts(t *testing.T) {
	srv, store := newTestServer(t, nil)
	if _, err := store.Save(context.Background(), drafts.Draft{Title: "Trip notes"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Trip notes") {
		t.Fatalf("status %d body %q", resp.StatusCode, body)
	}
}

func TestDraftPageRefreshesAndResolves(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	signer := media.SignerFunc(func(_ context.Context, filenames []string) ([]media.SignedURL, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		out := make([]media.SignedURL, 0, len(filenames))
		for _, name := range filenames {
			out = append(out, media.SignedURL{Filename: name, URL: "https://signed/" + name, Expires: time.Now().Add(time.Hour)})
		}
		return out, nil
	})
	srv, store := newTestServer(t, signer)
	draft, err := store.Save(context.Background(), drafts.Draft{
		Title:   "With image",
		Content: "![image](1690000001-ab12-a.jpg)\n",
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := ts.URL + "/drafts/" + strconv.FormatInt(draft.ID, 10)
	for pass := 0; pass < 2; pass++ {
		resp, err := http.Get(url)
		if err != nil {
			t.Fatalf("get draft: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d", resp.StatusCode)
		}
		if !strings.Contains(string(body), `src="https://signed/1690000001-ab12-a.jpg"`) {
			t.Fatalf("pass %d: signed url missing: %q", pass, body)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	// Second request within the TTL reuses the cache.
	if calls != 1 {
		t.Fatalf("sign calls = %d, want 1", calls)
	}
}

func TestDraftPageMissing(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/drafts/12345")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
