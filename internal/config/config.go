package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the feed client.
type Config struct {
	// BackendURL is the backend's REST base URL.
	BackendURL string

	// RealtimeURL is the change-feed websocket endpoint. Derived from
	// BackendURL when unset.
	RealtimeURL string

	// APIKey authenticates REST and websocket requests. May be empty for
	// local backends.
	APIKey string

	// UserID is the signed-in user issuing like toggles and comments.
	UserID string

	// PageSize is the number of posts requested per feed page.
	PageSize int

	// CachePath is the sqlite file for the offline feed cache. Empty
	// disables caching.
	CachePath string

	// CacheMaxRows caps how many posts the offline cache retains.
	CacheMaxRows int
}

// Load reads configuration from environment variables with sensible
// defaults.
func Load() (*Config, error) {
	backendURL := os.Getenv("FEEDSYNC_BACKEND_URL")
	if backendURL == "" {
		return nil, fmt.Errorf("FEEDSYNC_BACKEND_URL is required")
	}

	realtimeURL := os.Getenv("FEEDSYNC_REALTIME_URL")
	if realtimeURL == "" {
		realtimeURL = deriveRealtimeURL(backendURL)
	}

	pageSize := 10
	if v := os.Getenv("FEEDSYNC_PAGE_SIZE"); v != "" {
		var err error
		pageSize, err = strconv.Atoi(v)
		if err != nil || pageSize <= 0 {
			return nil, fmt.Errorf("invalid FEEDSYNC_PAGE_SIZE: %q", v)
		}
	}

	cacheMaxRows := 500
	if v := os.Getenv("FEEDSYNC_CACHE_MAX_ROWS"); v != "" {
		var err error
		cacheMaxRows, err = strconv.Atoi(v)
		if err != nil || cacheMaxRows < 0 {
			return nil, fmt.Errorf("invalid FEEDSYNC_CACHE_MAX_ROWS: %q", v)
		}
	}

	cachePath := os.Getenv("FEEDSYNC_CACHE_PATH")
	if cachePath == "" {
		cachePath = "feedsync.db"
	}

	return &Config{
		BackendURL:   backendURL,
		RealtimeURL:  realtimeURL,
		APIKey:       os.Getenv("FEEDSYNC_API_KEY"),
		UserID:       os.Getenv("FEEDSYNC_USER_ID"),
		PageSize:     pageSize,
		CachePath:    cachePath,
		CacheMaxRows: cacheMaxRows,
	}, nil
}

// deriveRealtimeURL maps the REST base URL onto the conventional websocket
// endpoint: https://x → wss://x/realtime/v1.
func deriveRealtimeURL(backendURL string) string {
	ws := backendURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return strings.TrimSuffix(ws, "/") + "/realtime/v1"
}
