package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fusehub/feedsync/internal/domain"
)

// ThreadObserver receives the full comment list, newest first, after every
// thread mutation.
type ThreadObserver func(comments []domain.Comment)

// Thread is the comment list for one post-details screen. Pushed comments
// are prepended as they arrive; removals are optimistic with rollback. The
// post's comment count is kept in step through the feed store.
type Thread struct {
	postID domain.PostID
	store  *Store
	writer domain.CommentWriter
	logger *slog.Logger

	mu        sync.Mutex
	comments  []domain.Comment
	observers []ThreadObserver
}

// NewThread creates an empty thread for the given post. store may be nil
// when the post is not on a loaded feed screen; writer is required for
// AddComment and RemoveComment.
func NewThread(postID domain.PostID, store *Store, writer domain.CommentWriter, logger *slog.Logger) *Thread {
	if logger == nil {
		logger = slog.Default()
	}
	return &Thread{
		postID: postID,
		store:  store,
		writer: writer,
		logger: logger,
	}
}

// OnChange registers an observer.
func (t *Thread) OnChange(fn ThreadObserver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}

// Load replaces the thread contents with a fetched comment list.
func (t *Thread) Load(comments []domain.Comment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.comments = append([]domain.Comment(nil), comments...)
	t.notifyLocked()
}

// ApplyInsert prepends a pushed comment. Comments for other posts and
// redelivered ids are dropped.
func (t *Thread) ApplyInsert(comment domain.Comment) {
	if comment.PostID != t.postID {
		return
	}

	t.mu.Lock()
	for _, c := range t.comments {
		if c.ID == comment.ID {
			t.mu.Unlock()
			return
		}
	}
	t.comments = append([]domain.Comment{comment}, t.comments...)
	t.notifyLocked()
	t.mu.Unlock()

	if t.store != nil {
		t.store.AdjustCommentCount(t.postID, 1)
	}
}

// ApplyDelete removes a pushed-deleted comment and decrements the post's
// comment count. Delete payloads carry only the comment id, so membership
// in the thread is the post filter; unknown ids are a no-op.
func (t *Thread) ApplyDelete(commentID string) {
	t.mu.Lock()
	idx := -1
	for i, c := range t.comments {
		if c.ID == commentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.mu.Unlock()
		return
	}
	t.comments = append(t.comments[:idx], t.comments[idx+1:]...)
	t.notifyLocked()
	t.mu.Unlock()

	if t.store != nil {
		t.store.AdjustCommentCount(t.postID, -1)
	}
}

// ApplyEvent routes a pushed comment event into the thread.
func (t *Thread) ApplyEvent(ev domain.CommentEvent) {
	switch ev.Kind {
	case domain.EventInserted:
		t.ApplyInsert(ev.Comment)
	case domain.EventDeleted:
		t.ApplyDelete(ev.Comment.ID)
	}
}

// AddComment sends a new comment to the backend. The thread itself is not
// changed here; the push stream delivers the created row. The post's
// comment count is bumped optimistically and reverted if the write fails.
func (t *Thread) AddComment(ctx context.Context, author domain.UserSnapshot, text string) error {
	if t.store != nil {
		t.store.AdjustCommentCount(t.postID, 1)
	}

	_, err := t.writer.CreateComment(ctx, domain.Comment{
		PostID: t.postID,
		Author: author,
		Text:   text,
	})
	if err != nil {
		if t.store != nil {
			t.store.AdjustCommentCount(t.postID, -1)
		}
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// RemoveComment deletes a comment optimistically: it disappears from the
// thread immediately and is restored in place if the backend delete fails.
func (t *Thread) RemoveComment(ctx context.Context, commentID string) error {
	t.mu.Lock()
	idx := -1
	var removed domain.Comment
	for i, c := range t.comments {
		if c.ID == commentID {
			idx = i
			removed = c
			break
		}
	}
	if idx < 0 {
		t.mu.Unlock()
		return domain.ErrNotFound
	}
	t.comments = append(t.comments[:idx], t.comments[idx+1:]...)
	t.notifyLocked()
	t.mu.Unlock()

	if t.store != nil {
		t.store.AdjustCommentCount(t.postID, -1)
	}

	if err := t.writer.DeleteComment(ctx, commentID); err != nil {
		t.mu.Lock()
		if idx > len(t.comments) {
			idx = len(t.comments)
		}
		t.comments = append(t.comments[:idx], append([]domain.Comment{removed}, t.comments[idx:]...)...)
		t.notifyLocked()
		t.mu.Unlock()

		if t.store != nil {
			t.store.AdjustCommentCount(t.postID, 1)
		}
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the current comment list.
func (t *Thread) Snapshot() []domain.Comment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.Comment(nil), t.comments...)
}

func (t *Thread) notifyLocked() {
	if len(t.observers) == 0 {
		return
	}
	snap := append([]domain.Comment(nil), t.comments...)
	for _, fn := range t.observers {
		fn(snap)
	}
}
