package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fusehub/feedsync/internal/domain"
	"github.com/fusehub/feedsync/internal/likes"
)

const defaultPageSize = 10

// SessionConfig wires a Session to its collaborators. Fetcher is required;
// Likes is required for ToggleLike; Cache is optional.
type SessionConfig struct {
	// PageSize is the number of rows requested per page. Defaults to 10.
	PageSize int

	// AuthorFilter narrows the feed to one author's posts (profile
	// screen). Empty means the whole feed.
	AuthorFilter domain.UserID

	// CurrentUser is the signed-in user issuing like toggles.
	CurrentUser domain.UserID

	Fetcher domain.PageFetcher
	Likes   domain.LikeWriter
	Cache   domain.FeedCache

	// OnLikeFailure is surfaced when an authoritative like write fails
	// and was rolled back.
	OnLikeFailure likes.FailureFunc

	Logger *slog.Logger
}

// Session owns the feed state for one screen instance: the store, its
// pagination cursor, and the optimistic like tracker. Push events are fed
// in through ApplyEvent; pages are pulled through Refresh and LoadMore.
type Session struct {
	store   *Store
	cursor  *Cursor
	tracker *likes.Tracker

	fetcher domain.PageFetcher
	cache   domain.FeedCache
	filter  domain.UserID
	user    domain.UserID
	logger  *slog.Logger
}

// NewSession creates a session with an empty store and a cursor at offset
// zero.
func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	store := NewStore()
	s := &Session{
		store:   store,
		cursor:  NewCursor(pageSize),
		fetcher: cfg.Fetcher,
		cache:   cfg.Cache,
		filter:  cfg.AuthorFilter,
		user:    cfg.CurrentUser,
		logger:  logger,
	}
	if cfg.Likes != nil {
		s.tracker = likes.NewTracker(store, cfg.Likes, cfg.OnLikeFailure, logger)
	}
	return s
}

// Store exposes the underlying store for observers and snapshots.
func (s *Session) Store() *Store {
	return s.store
}

// Exhausted reports whether the feed has no more pages to fetch.
func (s *Session) Exhausted() bool {
	return s.cursor.State() == CursorExhausted
}

// WarmStart seeds the store from the offline cache so the screen has rows
// to show before the first network page lands. The cursor is untouched;
// cached rows are deduplicated against whatever the first fetch returns.
func (s *Session) WarmStart(ctx context.Context, limit int) error {
	if s.cache == nil {
		return nil
	}
	posts, err := s.cache.LoadRecent(ctx, limit)
	if err != nil {
		return fmt.Errorf("load cached feed: %w", err)
	}
	s.store.AppendPage(posts)
	return nil
}

// Refresh implements pull-to-refresh: the cursor drops back to offset zero
// and the first page is refetched. The store is replaced only once the
// fetch succeeds, so warm-started or previously loaded rows survive a
// refresh attempted while offline. Any in-flight LoadMore becomes stale and
// its result is dropped.
func (s *Session) Refresh(ctx context.Context) error {
	s.cursor.Reset()
	offset, limit, token, ok := s.cursor.Begin()
	if !ok {
		return nil
	}

	posts, err := s.fetcher.FetchPage(ctx, offset, limit, s.filter)
	if err != nil {
		s.cursor.Fail(token)
		return fmt.Errorf("fetch page at offset %d: %w", offset, err)
	}

	if !s.cursor.Complete(token, len(posts)) {
		s.logger.Debug("dropping stale page", "offset", offset, "rows", len(posts))
		return nil
	}

	s.store.Clear()
	added := s.store.AppendPage(posts)
	s.logger.Debug("feed refreshed",
		"fetched", len(posts), "new", added, "exhausted", s.Exhausted())
	s.cachePosts(ctx, posts)
	return nil
}

// LoadMore fetches the next page and merges it into the store. A call while
// a fetch is in flight or after exhaustion is a no-op. Fetch errors leave
// the cursor's offset unchanged so the caller may retry.
func (s *Session) LoadMore(ctx context.Context) error {
	offset, limit, token, ok := s.cursor.Begin()
	if !ok {
		return nil
	}

	posts, err := s.fetcher.FetchPage(ctx, offset, limit, s.filter)
	if err != nil {
		s.cursor.Fail(token)
		return fmt.Errorf("fetch page at offset %d: %w", offset, err)
	}

	if !s.cursor.Complete(token, len(posts)) {
		// Reset raced with this fetch; the page belongs to the old
		// window.
		s.logger.Debug("dropping stale page", "offset", offset, "rows", len(posts))
		return nil
	}

	added := s.store.AppendPage(posts)
	s.logger.Debug("page merged",
		"offset", offset, "fetched", len(posts), "new", added,
		"exhausted", s.Exhausted())
	s.cachePosts(ctx, posts)
	return nil
}

// ToggleLike flips the current user's like on the post optimistically; the
// authoritative write settles in the background.
func (s *Session) ToggleLike(ctx context.Context, postID domain.PostID) error {
	if s.tracker == nil {
		return fmt.Errorf("no like writer configured")
	}
	_, err := s.tracker.ToggleLike(ctx, postID, s.user)
	return err
}

// ApplyEvent funnels a decoded push event into the store and writes the
// change through to the offline cache.
func (s *Session) ApplyEvent(ctx context.Context, ev domain.ChangeEvent) {
	switch ev.Kind {
	case domain.EventInserted:
		if ev.Post == nil {
			return
		}
		if s.store.ApplyInsert(*ev.Post) {
			s.cachePosts(ctx, []domain.Post{*ev.Post})
		}
	case domain.EventUpdated:
		if ev.Patch == nil {
			return
		}
		s.store.ApplyUpdate(ev.ID, *ev.Patch)
		if p, ok := s.store.Get(ev.ID); ok {
			s.cachePosts(ctx, []domain.Post{p})
		}
	case domain.EventDeleted:
		s.store.ApplyDelete(ev.ID)
		if s.cache != nil {
			if err := s.cache.DeletePost(ctx, ev.ID); err != nil {
				s.logger.Warn("cache delete failed", "post_id", ev.ID, "error", err)
			}
		}
	}
}

// Wait blocks until all in-flight like writes have settled. Called on
// teardown.
func (s *Session) Wait() {
	if s.tracker != nil {
		s.tracker.Wait()
	}
}

func (s *Session) cachePosts(ctx context.Context, posts []domain.Post) {
	if s.cache == nil || len(posts) == 0 {
		return
	}
	if err := s.cache.SavePosts(ctx, posts); err != nil {
		s.logger.Warn("cache save failed", "rows", len(posts), "error", err)
	}
}
