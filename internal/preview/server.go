package preview

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"lifelog/internal/drafts"
	"lifelog/internal/media"
)

// Server renders local drafts to HTML over a loopback listener. It is
// a viewer instance: it owns its signed-URL cache, created on
// construction and discarded with the server.
type Server struct {
	store    *drafts.Store
	cache    *media.Cache
	renderer *Renderer
	mux      *http.ServeMux
}

func NewServer(store *drafts.Store, signer media.Signer) *Server {
	cache := media.NewCache(signer)
	s := &Server{
		store: store,
		cache: cache,
		mux:   http.NewServeMux(),
	}
	s.renderer = NewRenderer(func(token string) string {
		return media.Resolve(token, cache)
	})
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/drafts/", s.handleDraft)
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html><head><title>lifelog drafts</title></head><body>
<h1>Drafts</h1>
<ul>
{{range .}}<li><a href="/drafts/{{.ID}}">{{if .Title}}{{.Title}}{{else}}(untitled){{end}}</a> &middot; {{.UpdatedAt.Format "2006-01-02 15:04"}}</li>
{{else}}<li>no drafts</li>
{{end}}</ul>
</body></html>
`))

var draftTemplate = template.Must(template.New("draft").Parse(`<!DOCTYPE html>
<html><head><title>{{.Title}}</title></head><body>
<p><a href="/">&larr; drafts</a></p>
<article>{{.Body}}</article>
</body></html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	list, err := s.store.List(r.Context())
	if err != nil {
		slog.Error("list drafts", "err", err)
		http.Error(w, "list drafts failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, list); err != nil {
		slog.Error("render index", "err", err)
	}
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	rawID := strings.TrimPrefix(r.URL.Path, "/drafts/")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	draft, err := s.store.Get(r.Context(), id)
	if errors.Is(err, drafts.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("load draft", "id", id, "err", err)
		http.Error(w, "load draft failed", http.StatusInternalServerError)
		return
	}

	// Content-change pass: refresh stale signed URLs before rendering.
	// A failed refresh degrades to raw filenames; the next request
	// retries.
	refs := media.Scan(draft.Content)
	if len(refs) > 0 {
		if err := s.cache.ResolveBatch(r.Context(), refs); err != nil {
			slog.Warn("signed url refresh failed", "draft", id, "err", err)
		}
	}

	body, err := s.renderer.HTML(draft.Content)
	if err != nil {
		slog.Error("render draft", "id", id, "err", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	title := draft.Title
	if title == "" {
		title = "(untitled)"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = draftTemplate.Execute(w, struct {
		Title string
		Body  template.HTML
	}{Title: title, Body: template.HTML(body)})
	if err != nil {
		slog.Error("render draft page", "id", id, "err", err)
	}
}
