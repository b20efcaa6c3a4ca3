package domain

import "context"

// PageFetcher retrieves one page of the feed, newest first. authorFilter
// narrows the feed to a single author (profile screens); empty means the
// whole feed.
type PageFetcher interface {
	FetchPage(ctx context.Context, offset, limit int, authorFilter UserID) ([]Post, error)
}

// LikeWriter performs the authoritative like write. liked=true adds the
// (post, user) row, liked=false removes it. Both directions are idempotent
// on the server.
type LikeWriter interface {
	SetLike(ctx context.Context, postID PostID, userID UserID, liked bool) error
}

// CommentWriter creates and deletes comments on the backend.
type CommentWriter interface {
	CreateComment(ctx context.Context, comment Comment) (Comment, error)
	DeleteComment(ctx context.Context, commentID string) error
}

// UserDirectory resolves user snapshots for author denormalization.
type UserDirectory interface {
	GetUser(ctx context.Context, userID UserID) (UserSnapshot, error)
}

// FeedCache is the on-device store used to warm the feed before the first
// network page arrives. Implementations must tolerate duplicate saves.
type FeedCache interface {
	// SavePosts upserts the given posts.
	SavePosts(ctx context.Context, posts []Post) error

	// LoadRecent returns up to limit cached posts, newest first.
	LoadRecent(ctx context.Context, limit int) ([]Post, error)

	// DeletePost removes a cached post by id. Missing ids are a no-op.
	DeletePost(ctx context.Context, id PostID) error
}
