// feedwatch runs the feed engine against a live backend and prints the
// feed as it changes. Commands on stdin: "more" loads the next page,
// "refresh" resets to the first page, "like <post-id>" toggles a like.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fusehub/feedsync/internal/backend"
	"github.com/fusehub/feedsync/internal/cache"
	"github.com/fusehub/feedsync/internal/config"
	"github.com/fusehub/feedsync/internal/domain"
	"github.com/fusehub/feedsync/internal/feed"
	"github.com/fusehub/feedsync/internal/realtime"
)

const reconnectDelay = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := backend.NewClient(cfg.BackendURL, cfg.APIKey)

	var feedCache domain.FeedCache
	if cfg.CachePath != "" {
		c, err := cache.Open(cfg.CachePath)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		defer c.Close()
		if deleted, err := c.Trim(ctx, cfg.CacheMaxRows); err != nil {
			logger.Warn("cache trim failed", "error", err)
		} else if deleted > 0 {
			logger.Info("cache trimmed", "deleted", deleted)
		}
		feedCache = c
	}

	session := feed.NewSession(feed.SessionConfig{
		PageSize:    cfg.PageSize,
		CurrentUser: domain.UserID(cfg.UserID),
		Fetcher:     client,
		Likes:       client,
		Cache:       feedCache,
		OnLikeFailure: func(postID domain.PostID, userID domain.UserID, err error) {
			fmt.Printf("like on %s failed, reverted: %v\n", postID, err)
		},
		Logger: logger,
	})
	session.Store().OnChange(printFeed)

	if err := session.WarmStart(ctx, cfg.PageSize); err != nil {
		logger.Warn("warm start failed", "error", err)
	}
	if err := session.Refresh(ctx); err != nil {
		logger.Warn("initial page fetch failed", "error", err)
	}

	transport := realtime.NewWebsocketTransport(cfg.RealtimeURL, cfg.APIKey)
	decoder := realtime.NewDecoder(client, 5, logger)
	manager := realtime.NewManager(transport, decoder, logger)

	handlers := realtime.Handlers{
		OnPost: func(ev domain.ChangeEvent) {
			session.ApplyEvent(ctx, ev)
		},
	}
	// Reconnect policy lives here, not in the manager: redial with a
	// fixed delay until the context is cancelled.
	handlers.OnDisconnect = func(err error) {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(reconnectDelay):
				}
				if err := manager.Start(ctx, handlers); err != nil {
					logger.Error("reconnect failed", "error", err)
					continue
				}
				return
			}
		}()
	}

	if err := manager.Start(ctx, handlers); err != nil {
		return fmt.Errorf("start subscription: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go readCommands(ctx, session)

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	manager.Stop()
	session.Wait()
	return nil
}

func readCommands(ctx context.Context, session *feed.Session) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "more":
			if err := session.LoadMore(ctx); err != nil {
				fmt.Printf("load more failed: %v\n", err)
			} else if session.Exhausted() {
				fmt.Println("no more posts")
			}
		case line == "refresh":
			if err := session.Refresh(ctx); err != nil {
				fmt.Printf("refresh failed: %v\n", err)
			}
		case strings.HasPrefix(line, "like "):
			id := domain.PostID(strings.TrimSpace(strings.TrimPrefix(line, "like ")))
			if err := session.ToggleLike(ctx, id); err != nil {
				fmt.Printf("toggle like failed: %v\n", err)
			}
		case line == "":
		default:
			fmt.Println("commands: more | refresh | like <post-id>")
		}
	}
}

func printFeed(posts []domain.Post) {
	fmt.Printf("---- feed (%d posts) ----\n", len(posts))
	for _, p := range posts {
		fmt.Printf("%s  %-20s  likes=%d comments=%d  %s\n",
			p.CreatedAt.Format("15:04:05"), p.Author.Name, len(p.Likes), p.CommentCount,
			truncate(p.Body, 60))
	}
}

// truncate shortens s to at most n runes, never splitting a multibyte
// character.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
