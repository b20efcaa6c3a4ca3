package config

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestLoadRequiresBackendURL(t *testing.T) {
	t.Setenv("FEEDSYNC_BACKEND_URL", "")

	_, err := Load()
	assert.NotEqual(t, err, nil)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FEEDSYNC_BACKEND_URL", "https://api.example.com")
	t.Setenv("FEEDSYNC_REALTIME_URL", "")
	t.Setenv("FEEDSYNC_PAGE_SIZE", "")
	t.Setenv("FEEDSYNC_CACHE_PATH", "")
	t.Setenv("FEEDSYNC_CACHE_MAX_ROWS", "")

	cfg, err := Load()
	assert.Equal(t, err, nil)
	assert.Equal(t, cfg.BackendURL, "https://api.example.com")
	assert.Equal(t, cfg.RealtimeURL, "wss://api.example.com/realtime/v1")
	assert.Equal(t, cfg.PageSize, 10)
	assert.Equal(t, cfg.CachePath, "feedsync.db")
	assert.Equal(t, cfg.CacheMaxRows, 500)
}

func TestLoadExplicitValues(t *testing.T) {
	t.Setenv("FEEDSYNC_BACKEND_URL", "http://localhost:8000")
	t.Setenv("FEEDSYNC_REALTIME_URL", "ws://localhost:8000/stream")
	t.Setenv("FEEDSYNC_API_KEY", "key-1")
	t.Setenv("FEEDSYNC_USER_ID", "u1")
	t.Setenv("FEEDSYNC_PAGE_SIZE", "25")

	cfg, err := Load()
	assert.Equal(t, err, nil)
	assert.Equal(t, cfg.RealtimeURL, "ws://localhost:8000/stream")
	assert.Equal(t, cfg.APIKey, "key-1")
	assert.Equal(t, cfg.UserID, "u1")
	assert.Equal(t, cfg.PageSize, 25)
}

func TestLoadRejectsInvalidPageSize(t *testing.T) {
	t.Setenv("FEEDSYNC_BACKEND_URL", "https://api.example.com")

	for _, v := range []string{"abc", "0", "-3"} {
		t.Setenv("FEEDSYNC_PAGE_SIZE", v)
		_, err := Load()
		assert.NotEqual(t, err, nil)
	}
}

func TestDeriveRealtimeURL(t *testing.T) {
	assert.Equal(t, deriveRealtimeURL("https://api.example.com/"), "wss://api.example.com/realtime/v1")
	assert.Equal(t, deriveRealtimeURL("http://localhost:8000"), "ws://localhost:8000/realtime/v1")
}
