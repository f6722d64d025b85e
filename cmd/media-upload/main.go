package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"lifelog/internal/api"
	"lifelog/internal/config"
	"lifelog/internal/media"
)

// media-upload normalizes and uploads images outside of any editing
// session and prints the canonical markdown references, one per file.
// Useful for scripted imports and for repairing entries that reference
// media by local path.
func main() {
	quality := flag.Int("quality", 0, "JPEG quality, 0 uses the configured default")
	maxWidth := flag.Int("max-width", 0, "maximum width, 0 uses the configured default")
	maxHeight := flag.Int("max-height", 0, "maximum height, 0 uses the configured default")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: media-upload [flags] <image file>...")
		os.Exit(2)
	}

	cfg := config.Load()
	if cfg.APIBaseURL == "" {
		slog.Error("LIFELOG_API_URL is required")
		os.Exit(1)
	}
	if cfg.APIToken == "" {
		slog.Error("LIFELOG_API_TOKEN is required")
		os.Exit(1)
	}
	client := api.NewClient(cfg.APIBaseURL, cfg.APIToken, cfg.HTTPTimeout)

	opts := media.NormalizeOptions{
		MaxWidth:    cfg.MaxImageWidth,
		MaxHeight:   cfg.MaxImageHeight,
		JPEGQuality: cfg.JPEGQuality,
	}
	if *maxWidth > 0 {
		opts.MaxWidth = *maxWidth
	}
	if *maxHeight > 0 {
		opts.MaxHeight = *maxHeight
	}
	if *quality > 0 {
		opts.JPEGQuality = *quality
	}

	files := make([]media.File, 0, flag.NArg())
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Error("read file", "path", path, "err", err)
			os.Exit(1)
		}
		files = append(files, media.File{Name: filepath.Base(path), Data: data})
	}

	ctx := context.Background()
	normalized, err := media.NormalizeBatch(ctx, files, opts)
	if err != nil {
		slog.Error("normalize batch", "err", err)
		os.Exit(1)
	}

	exitCode := 0
	for _, file := range normalized {
		result, err := client.UploadImage(ctx, file.NewName, file.Data)
		if err != nil {
			slog.Error("upload failed", "file", file.OriginalName, "err", err)
			exitCode = 1
			continue
		}
		fmt.Printf("![image](%s)\n", result.Filename)
	}
	os.Exit(exitCode)
}
