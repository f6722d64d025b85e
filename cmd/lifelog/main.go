package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"lifelog/internal/api"
	"lifelog/internal/auth"
	"lifelog/internal/config"
	"lifelog/internal/drafts"
	"lifelog/internal/editor"
	"lifelog/internal/media"
	"lifelog/internal/preview"

	"golang.org/x/term"
)

func main() {
	level := parseLogLevel(os.Getenv("LIFELOG_DEBUG_LEVEL"))
	pretty := strings.EqualFold(os.Getenv("LIFELOG_LOG_PRETTY"), "1") || strings.EqualFold(os.Getenv("LIFELOG_LOG_PRETTY"), "true")
	if strings.TrimSpace(os.Getenv("DEV")) != "" {
		file, err := os.Create("dev.log")
		if err != nil {
			slog.Error("open log file", "path", "dev.log", "err", err)
		} else {
			defer file.Close()
			_, _ = fmt.Fprintf(file, "=== lifelog dev log start %s ===\n", time.Now().Format(time.RFC3339))
			fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
			consoleHandler := newPrettyHandler(os.Stderr, level)
			if !pretty {
				consoleHandler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
			}
			slog.SetDefault(slog.New(&teeHandler{handlers: []slog.Handler{consoleHandler, fileHandler}}))
		}
	} else {
		var handler slog.Handler
		if pretty {
			handler = newPrettyHandler(os.Stderr, level)
		} else {
			handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		}
		slog.SetDefault(slog.New(handler))
	}

	cfg := config.Load()

	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	var err error
	switch args[0] {
	case "login":
		err = runLogin(cfg, args[1:])
	case "list":
		err = runList(cfg, args[1:])
	case "new":
		err = runNew(cfg, args[1:])
	case "attach":
		err = runAttach(cfg, args[1:])
	case "view":
		err = runView(cfg, args[1:])
	case "serve":
		err = runServe(cfg, args[1:])
	case "push":
		err = runPush(cfg, args[1:])
	case "pull":
		err = runPull(cfg, args[1:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("command failed", "command", args[0], "err", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: lifelog <command> [arguments]

commands:
  login                     store the API token encrypted on disk
  list                      list local drafts
  new [-title t] [file]     create a draft from stdin or a file
  attach <draft-id> <image file>...
                            attach images to a draft and upload them
  view <draft-id>           render a draft in the terminal
  serve                     serve draft previews over HTTP
  push <draft-id>           save a draft as a remote journal entry
  pull <entry-id>           fetch a remote entry into a new draft
`)
}

// token resolves the API token: the environment wins, then the
// encrypted token file with an interactive passphrase prompt.
func token(cfg config.Config) (string, error) {
	if cfg.APIToken != "" {
		return cfg.APIToken, nil
	}
	path := tokenFilePath(cfg)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no API token: set LIFELOG_API_TOKEN or run lifelog login")
	}
	pass, err := promptSecret("passphrase: ")
	if err != nil {
		return "", err
	}
	tok, err := auth.LoadToken(path, pass)
	if errors.Is(err, auth.ErrWrongPassphrase) {
		return "", fmt.Errorf("wrong passphrase for %s", path)
	}
	return tok, err
}

func tokenFilePath(cfg config.Config) string {
	if cfg.TokenFile != "" {
		return cfg.TokenFile
	}
	return filepath.Join(dataPath(cfg), "token.json")
}

func dataPath(cfg config.Config) string {
	if cfg.DataPath != "" {
		return cfg.DataPath
	}
	return ".lifelog"
}

func openStore(cfg config.Config) (*drafts.Store, error) {
	dir := dataPath(cfg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := drafts.Open(filepath.Join(dir, "drafts.sqlite"))
	if err != nil {
		return nil, err
	}
	if err := store.Init(context.Background()); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func newAPIClient(cfg config.Config) (*api.Client, error) {
	if cfg.APIBaseURL == "" {
		return nil, errors.New("LIFELOG_API_URL is required")
	}
	tok, err := token(cfg)
	if err != nil {
		return nil, err
	}
	return api.NewClient(cfg.APIBaseURL, tok, cfg.HTTPTimeout), nil
}

func runLogin(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	tok, err := promptSecret("API token: ")
	if err != nil {
		return err
	}
	pass, err := promptSecret("passphrase: ")
	if err != nil {
		return err
	}
	confirm, err := promptSecret("passphrase (again): ")
	if err != nil {
		return err
	}
	if pass != confirm {
		return errors.New("passphrases do not match")
	}
	path := tokenFilePath(cfg)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := auth.SaveToken(path, tok, pass); err != nil {
		return err
	}
	fmt.Printf("token stored in %s\n", path)
	return nil
}

func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}
	var line strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				break
			}
			line.WriteByte(buf[0])
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", err
		}
	}
	return strings.TrimSpace(line.String()), nil
}

func runList(cfg config.Config, args []string) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	list, err := store.List(context.Background())
	if err != nil {
		return err
	}
	for _, d := range list {
		title := d.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%d\t%s\t%s\n", d.ID, d.UpdatedAt.Format("2006-01-02 15:04"), title)
	}
	return nil
}

func runNew(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	title := fs.String("title", "", "draft title")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var content []byte
	var err error
	if fs.NArg() > 0 {
		content, err = os.ReadFile(fs.Arg(0))
	} else {
		content, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	saved, err := store.Save(context.Background(), drafts.Draft{Title: *title, Content: string(content)})
	if err != nil {
		return err
	}
	fmt.Printf("draft %d created\n", saved.ID)
	return nil
}

// runAttach is the full pipeline in one shot: splice placeholders into
// the draft, normalize and upload the files, wait for reconciliation
// and persist the final buffer.
func runAttach(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("attach", flag.ExitOnError)
	at := fs.Int("at", -1, "byte offset for the attachment, -1 appends")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("usage: lifelog attach <draft-id> <image file>...")
	}
	draftID, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid draft id %q", fs.Arg(0))
	}
	files := make([]media.File, 0, fs.NArg()-1)
	for _, path := range fs.Args()[1:] {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, media.File{Name: filepath.Base(path), Data: data})
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	client, err := newAPIClient(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()
	draft, err := store.Get(ctx, draftID)
	if err != nil {
		return err
	}

	buf := editor.NewBuffer(draft.Content)
	cache := media.NewCache(client.MediaSigner())
	cache.SetRefreshMargin(cfg.SignMargin)
	session := editor.NewSession(buf, cache, client)
	session.SetNormalizeOptions(media.NormalizeOptions{
		MaxWidth:    cfg.MaxImageWidth,
		MaxHeight:   cfg.MaxImageHeight,
		JPEGQuality: cfg.JPEGQuality,
	})
	var succeeded atomic.Int64
	session.OnUpload(func(result api.UploadResult, originalName string, size int64) {
		succeeded.Add(1)
		if err := store.RecordUpload(ctx, drafts.UploadRecord{
			Filename:     result.Filename,
			OriginalName: originalName,
			Size:         size,
		}); err != nil {
			slog.Warn("record upload", "file", result.Filename, "err", err)
		}
	})

	pos := *at
	if pos < 0 {
		pos = len(draft.Content)
	}
	batch := session.AttachImages(ctx, pos, files)
	if err := batch.Wait(ctx); err != nil {
		return err
	}

	draft.Content = buf.Text()
	if _, err := store.Save(ctx, draft); err != nil {
		return err
	}
	if failed := int64(len(batch.Tasks)) - succeeded.Load(); failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(batch.Tasks))
	}
	fmt.Printf("attached %d image(s) to draft %d\n", len(files), draftID)
	return nil
}

func runView(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	width := fs.Int("width", 0, "render width, 0 for terminal width")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: lifelog view <draft-id>")
	}
	draftID, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid draft id %q", fs.Arg(0))
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()
	draft, err := store.Get(ctx, draftID)
	if err != nil {
		return err
	}

	resolve := func(token string) string { return token }
	if cfg.APIBaseURL != "" {
		client, err := newAPIClient(cfg)
		if err != nil {
			return err
		}
		cache := media.NewCache(client.MediaSigner())
		cache.SetRefreshMargin(cfg.SignMargin)
		if refs := media.Scan(draft.Content); len(refs) > 0 {
			if err := cache.ResolveBatch(ctx, refs); err != nil {
				slog.Warn("refresh signed urls", "err", err)
			}
		}
		resolve = func(token string) string { return media.Resolve(token, cache) }
	}

	w := *width
	if w <= 0 {
		if tw, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			w = tw
		}
	}
	out, err := preview.TerminalRender(draft.Content, resolve, w)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func runServe(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", cfg.ListenAddr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	client, err := newAPIClient(cfg)
	if err != nil {
		return err
	}
	srv := preview.NewServer(store, client.MediaSigner())
	slog.Info("listening", "addr", *addr)
	return http.ListenAndServe(*addr, srv.Handler())
}

func runPush(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("push", flag.ExitOnError)
	entryID := fs.String("entry", "", "remote entry id to update, empty creates")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: lifelog push <draft-id>")
	}
	draftID, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid draft id %q", fs.Arg(0))
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	client, err := newAPIClient(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()
	draft, err := store.Get(ctx, draftID)
	if err != nil {
		return err
	}
	saved, err := client.SaveEntry(ctx, api.Entry{
		ID:      *entryID,
		Title:   draft.Title,
		Content: draft.Content,
	})
	if err != nil {
		return err
	}
	fmt.Printf("draft %d pushed as entry %s\n", draftID, saved.ID)
	return nil
}

func runPull(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("pull", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: lifelog pull <entry-id>")
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	client, err := newAPIClient(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()
	entry, err := client.GetEntry(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	draft, err := store.Save(ctx, drafts.Draft{Title: entry.Title, Content: entry.Content})
	if err != nil {
		return err
	}
	fmt.Printf("entry %s pulled into draft %d\n", entry.ID, draft.ID)
	return nil
}
