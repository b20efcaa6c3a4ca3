// Package feed holds the client-side feed state: the ordered post store,
// the pagination cursor, and the per-screen session that ties them to the
// backend collaborators and the push stream.
package feed

import (
	"sync"

	"github.com/fusehub/feedsync/internal/domain"
)

// Observer receives the full ordered snapshot after every store mutation.
// Observers must not call back into the store.
type Observer func(posts []domain.Post)

// Store is the canonical in-memory post list for one feed screen. It is the
// single mutation point: push events, pagination merges, and optimistic
// edits all funnel through its methods, which are synchronous and total.
// A missing id is a benign race with deletion, never an error.
type Store struct {
	mu        sync.Mutex
	order     []domain.PostID
	posts     map[domain.PostID]*domain.Post
	observers []Observer
}

func NewStore() *Store {
	return &Store{
		posts: make(map[domain.PostID]*domain.Post),
	}
}

// OnChange registers an observer. Registration order is notification order.
func (s *Store) OnChange(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// ApplyInsert prepends a pushed post. Inserting an id already present is a
// no-op, so redelivered events cannot duplicate rows. Returns whether the
// post was actually added.
func (s *Store) ApplyInsert(post domain.Post) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[post.ID]; ok {
		return false
	}
	p := post.Clone()
	if p.Likes == nil {
		p.Likes = []domain.UserID{}
	}
	s.posts[p.ID] = &p
	s.order = append([]domain.PostID{p.ID}, s.order...)
	s.notifyLocked()
	return true
}

// ApplyUpdate merges the mutable fields of a pushed update into the matching
// post. Author and id never change through this path. Updates for ids
// outside the loaded window are dropped, not queued; a later refresh
// reconverges.
func (s *Store) ApplyUpdate(id domain.PostID, patch domain.PostPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return
	}
	if patch.Body != nil {
		p.Body = *patch.Body
	}
	if patch.MediaURL != nil {
		p.MediaURL = *patch.MediaURL
	}
	if patch.CommentCount != nil {
		p.CommentCount = *patch.CommentCount
	}
	s.notifyLocked()
}

// ApplyDelete removes a post. Absent ids are a no-op.
func (s *Store) ApplyDelete(id domain.PostID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return
	}
	delete(s.posts, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.notifyLocked()
}

// AppendPage merges a fetched page onto the end of the feed, skipping ids
// already present from earlier pages or push events. Fetch order is
// preserved for the genuinely new rows. Returns how many rows were new so
// the cursor can detect exhaustion.
func (s *Store) AppendPage(posts []domain.Post) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, post := range posts {
		if _, ok := s.posts[post.ID]; ok {
			continue
		}
		p := post.Clone()
		if p.Likes == nil {
			p.Likes = []domain.UserID{}
		}
		s.posts[p.ID] = &p
		s.order = append(s.order, p.ID)
		added++
	}
	if added > 0 {
		s.notifyLocked()
	}
	return added
}

// MergeLike adds or removes userID in the post's like-set. Both directions
// are idempotent; a missing post is a no-op.
func (s *Store) MergeLike(postID domain.PostID, userID domain.UserID, added bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return
	}
	if added {
		if p.LikedBy(userID) {
			return
		}
		p.Likes = append(p.Likes, userID)
	} else {
		found := false
		for i, id := range p.Likes {
			if id == userID {
				p.Likes = append(p.Likes[:i], p.Likes[i+1:]...)
				found = true
				break
			}
		}
		if !found {
			return
		}
	}
	s.notifyLocked()
}

// AdjustCommentCount shifts a post's comment count by delta, clamped at
// zero. Used by the comment thread for optimistic count updates.
func (s *Store) AdjustCommentCount(postID domain.PostID, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return
	}
	p.CommentCount += delta
	if p.CommentCount < 0 {
		p.CommentCount = 0
	}
	s.notifyLocked()
}

// Liked reports the like membership for (postID, userID) and whether the
// post is currently loaded.
func (s *Store) Liked(postID domain.PostID, userID domain.UserID) (liked, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, present := s.posts[postID]
	if !present {
		return false, false
	}
	return p.LikedBy(userID), true
}

// Get returns a copy of the post with the given id.
func (s *Store) Get(id domain.PostID) (domain.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return domain.Post{}, false
	}
	return p.Clone(), true
}

// Snapshot returns a deep copy of the current ordered sequence.
func (s *Store) Snapshot() []domain.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Len returns the number of loaded posts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Clear drops all posts, used when a successful refresh replaces the feed
// contents.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) == 0 {
		return
	}
	s.order = nil
	s.posts = make(map[domain.PostID]*domain.Post)
	s.notifyLocked()
}

func (s *Store) snapshotLocked() []domain.Post {
	out := make([]domain.Post, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.posts[id].Clone())
	}
	return out
}

func (s *Store) notifyLocked() {
	if len(s.observers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, fn := range s.observers {
		fn(snap)
	}
}
