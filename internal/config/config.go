package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIBaseURL string
	APIToken   string
	TokenFile  string
	DataPath   string
	ListenAddr string

	HTTPTimeout    time.Duration
	SignMargin     time.Duration
	MaxImageWidth  int
	MaxImageHeight int
	JPEGQuality    int
}

func Load() Config {
	initEnvFile()
	cfg := Config{
		APIBaseURL: os.Getenv("LIFELOG_API_URL"),
		APIToken:   os.Getenv("LIFELOG_API_TOKEN"),
		TokenFile:  os.Getenv("LIFELOG_TOKEN_FILE"),
		DataPath:   os.Getenv("LIFELOG_DATA_PATH"),
		ListenAddr: envOr("LIFELOG_LISTEN_ADDR", "127.0.0.1:8750"),
	}
	cfg.HTTPTimeout = parseDurationOr("LIFELOG_HTTP_TIMEOUT", 60*time.Second)
	cfg.SignMargin = parseDurationOr("LIFELOG_SIGN_MARGIN", 60*time.Second)
	cfg.MaxImageWidth = parseIntOr("LIFELOG_MAX_IMAGE_WIDTH", 1920)
	cfg.MaxImageHeight = parseIntOr("LIFELOG_MAX_IMAGE_HEIGHT", 1920)
	cfg.JPEGQuality = parseIntOr("LIFELOG_JPEG_QUALITY", 85)
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func parseIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}
