// Package likes implements optimistic like toggling with rollback and
// last-write-wins supersession.
package likes

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/fusehub/feedsync/internal/domain"
)

// Store is the slice of the feed store the tracker needs: immediate
// like-set mutation and membership reads.
type Store interface {
	MergeLike(postID domain.PostID, userID domain.UserID, added bool)
	Liked(postID domain.PostID, userID domain.UserID) (liked, ok bool)
}

// Status is the lifecycle state of an optimistic edit.
type Status int

const (
	Pending Status = iota
	Confirmed
	RolledBack
)

// Edit records one pending like toggle: the target state, the pre-flip
// snapshot used for rollback, and the per-(post,user) sequence number that
// decides whether a late failure is still allowed to roll back.
type Edit struct {
	ID     uuid.UUID
	PostID domain.PostID
	UserID domain.UserID
	Liked  bool // target state
	prior  bool
	seq    uint64
	Status Status
}

// FailureFunc is invoked when an authoritative write fails and its edit was
// rolled back, so the UI can surface the failure.
type FailureFunc func(postID domain.PostID, userID domain.UserID, err error)

// Tracker applies like toggles to the store immediately and reconciles them
// with the authoritative write. When two toggles for the same (post, user)
// race, only the outcome of the most recently issued write is trusted: an
// earlier in-flight failure must not roll back state a newer edit already
// superseded.
type Tracker struct {
	store     Store
	writer    domain.LikeWriter
	onFailure FailureFunc
	logger    *slog.Logger

	mu   sync.Mutex
	seqs map[pairKey]uint64
	wg   sync.WaitGroup
}

type pairKey struct {
	post domain.PostID
	user domain.UserID
}

// NewTracker creates a tracker writing through to writer. onFailure may be
// nil.
func NewTracker(store Store, writer domain.LikeWriter, onFailure FailureFunc, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:     store,
		writer:    writer,
		onFailure: onFailure,
		logger:    logger,
		seqs:      make(map[pairKey]uint64),
	}
}

// ToggleLike flips the user's like on the post optimistically and issues
// the authoritative write in the background. Toggling a post that is not
// loaded returns domain.ErrNotFound and changes nothing.
func (t *Tracker) ToggleLike(ctx context.Context, postID domain.PostID, userID domain.UserID) (*Edit, error) {
	t.mu.Lock()
	liked, ok := t.store.Liked(postID, userID)
	if !ok {
		t.mu.Unlock()
		return nil, domain.ErrNotFound
	}

	key := pairKey{post: postID, user: userID}
	seq := t.seqs[key] + 1
	t.seqs[key] = seq

	edit := &Edit{
		ID:     uuid.New(),
		PostID: postID,
		UserID: userID,
		Liked:  !liked,
		prior:  liked,
		seq:    seq,
		Status: Pending,
	}
	t.store.MergeLike(postID, userID, edit.Liked)
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.settle(ctx, edit)
	}()
	return edit, nil
}

// Wait blocks until all issued writes have settled. Used on teardown and in
// tests; new toggles issued while waiting are also awaited.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) settle(ctx context.Context, edit *Edit) {
	err := t.writer.SetLike(ctx, edit.PostID, edit.UserID, edit.Liked)

	t.mu.Lock()
	defer t.mu.Unlock()

	key := pairKey{post: edit.PostID, user: edit.UserID}
	latest := t.seqs[key] == edit.seq

	if err == nil {
		edit.Status = Confirmed
		if latest {
			delete(t.seqs, key)
		}
		return
	}

	if !latest {
		// A newer toggle superseded this edit; its outcome is the one
		// that counts. Do not roll back.
		t.logger.Debug("stale like write failed, superseded",
			"post_id", edit.PostID, "user_id", edit.UserID, "error", err)
		edit.Status = RolledBack
		return
	}

	edit.Status = RolledBack
	t.store.MergeLike(edit.PostID, edit.UserID, edit.prior)
	delete(t.seqs, key)
	t.logger.Warn("like write failed, rolled back",
		"post_id", edit.PostID, "user_id", edit.UserID, "error", err)
	if t.onFailure != nil {
		t.onFailure(edit.PostID, edit.UserID, err)
	}
}
