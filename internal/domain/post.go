package domain

import "time"

// PostID uniquely identifies a post. Opaque and stable for the lifetime of
// the post; the backend happens to use UUIDs but nothing here depends on it.
type PostID string

// UserID identifies a user in the backend's user directory.
type UserID string

// UserSnapshot is a denormalized copy of a user's public profile, attached
// to a post at insert time. It may go stale until the next refresh; that is
// tolerated in exchange for join-free reads.
type UserSnapshot struct {
	ID        UserID `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"image"`
}

// PlaceholderAuthor is attached to a pushed post when the user directory
// lookup fails. A degraded row beats a dropped feed update.
func PlaceholderAuthor(id UserID) UserSnapshot {
	return UserSnapshot{ID: id, Name: "Unknown User"}
}

// Post is a single feed entry. The body is rich text treated as an opaque
// blob; MediaURL points at an uploaded image or video, or is empty.
type Post struct {
	ID           PostID       `json:"id"`
	Author       UserSnapshot `json:"user"`
	Body         string       `json:"body"`
	MediaURL     string       `json:"file"`
	CreatedAt    time.Time    `json:"created_at"`
	Likes        []UserID     `json:"likes"`
	CommentCount int          `json:"comment_count"`
}

// LikedBy reports whether userID is in the post's like-set.
func (p *Post) LikedBy(userID UserID) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the post so observers can hold snapshots
// without aliasing the store's like-set slice.
func (p *Post) Clone() Post {
	c := *p
	if p.Likes != nil {
		c.Likes = append([]UserID(nil), p.Likes...)
	}
	return c
}

// Comment is a single comment on a post, with the author denormalized the
// same way posts carry theirs.
type Comment struct {
	ID        string       `json:"id"`
	PostID    PostID       `json:"postId"`
	Author    UserSnapshot `json:"user"`
	Text      string       `json:"text"`
	CreatedAt time.Time    `json:"created_at"`
}
