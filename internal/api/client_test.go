package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestUploadImage(t *testing.T) {
	var gotAuth, gotFilename string
	var gotData []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/media" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer file.Close()
		gotFilename = header.Filename
		gotData, _ = io.ReadAll(file)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(UploadResult{
			Filename: header.Filename,
			URL:      "https://cdn.example.com/" + header.Filename + "?expires=1700000000",
			Path:     "/media/" + header.Filename,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-1", 5*time.Second)
	result, err := c.UploadImage(context.Background(), "123-abcd-trip.jpg", []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotFilename != "123-abcd-trip.jpg" || string(gotData) != "jpeg-bytes" {
		t.Errorf("server received %q/%q", gotFilename, gotData)
	}
	if result.Filename != "123-abcd-trip.jpg" {
		t.Errorf("Filename = %q", result.Filename)
	}
	if !strings.Contains(result.URL, "expires=") {
		t.Errorf("URL = %q, want embedded expiry", result.URL)
	}
}

func TestUploadImageServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.UploadImage(context.Background(), "a.jpg", []byte("x"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "quota exceeded") || !strings.Contains(err.Error(), "403") {
		t.Errorf("error = %v, want status and body", err)
	}
}

func TestSignMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/media/sign" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req signRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Filenames) != 2 || req.ExpiryMs != (15*time.Minute).Milliseconds() {
			t.Errorf("request = %+v", req)
		}
		out := make([]SignedMedia, 0, len(req.Filenames))
		for _, name := range req.Filenames {
			out = append(out, SignedMedia{
				Filename: name,
				URL:      "https://cdn.example.com/" + name,
				Expires:  1700000000000,
			})
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", time.Second)
	signed, err := c.SignMedia(context.Background(), []string{"a.jpg", "b.png"}, 15*time.Minute)
	if err != nil {
		t.Fatalf("SignMedia: %v", err)
	}
	if len(signed) != 2 || signed[0].Filename != "a.jpg" || signed[1].Filename != "b.png" {
		t.Errorf("signed = %+v", signed)
	}
}

func TestMediaSignerConvertsExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]SignedMedia{
			{Filename: "a.jpg", URL: "https://cdn.example.com/a.jpg", Expires: 1700000000000},
		})
	}))
	defer srv.Close()

	signer := NewClient(srv.URL, "", time.Second).MediaSigner()
	signed, err := signer.SignMedia(context.Background(), []string{"a.jpg"})
	if err != nil {
		t.Fatalf("SignMedia: %v", err)
	}
	want := time.UnixMilli(1700000000000)
	if len(signed) != 1 || !signed[0].Expires.Equal(want) {
		t.Errorf("signed = %+v, want expiry %v", signed, want)
	}
}

func TestEntryRoundTrip(t *testing.T) {
	entries := map[string]Entry{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/entries":
			var e Entry
			json.NewDecoder(r.Body).Decode(&e)
			e.ID = "e1"
			entries[e.ID] = e
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(e)
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/api/entries/"):
			var e Entry
			json.NewDecoder(r.Body).Decode(&e)
			entries[e.ID] = e
			json.NewEncoder(w).Encode(e)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/entries/"):
			id := strings.TrimPrefix(r.URL.Path, "/api/entries/")
			e, ok := entries[id]
			if !ok {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(e)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", time.Second)
	ctx := context.Background()

	created, err := c.SaveEntry(ctx, Entry{Title: "Trip", Content: "Hello"})
	if err != nil {
		t.Fatalf("SaveEntry (create): %v", err)
	}
	if created.ID != "e1" {
		t.Fatalf("created.ID = %q", created.ID)
	}

	created.Content = "Hello again"
	if _, err := c.SaveEntry(ctx, created); err != nil {
		t.Fatalf("SaveEntry (update): %v", err)
	}

	got, err := c.GetEntry(ctx, "e1")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.Content != "Hello again" {
		t.Errorf("Content = %q", got.Content)
	}

	if _, err := c.GetEntry(ctx, "missing"); err == nil {
		t.Error("expected error for missing entry")
	}
}

func TestListEntriesLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q", got)
		}
		json.NewEncoder(w).Encode([]Entry{{ID: "e1", Title: "a"}, {ID: "e2", Title: "b"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	got, err := c.ListEntries(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d", len(got))
	}
}
