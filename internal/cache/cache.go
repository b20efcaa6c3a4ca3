// Package cache is the on-device sqlite store that warms the feed before
// the first network page arrives.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/fusehub/feedsync/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS feed_posts (
	id             TEXT PRIMARY KEY,
	author_id      TEXT NOT NULL,
	author_name    TEXT NOT NULL,
	author_avatar  TEXT NOT NULL,
	body           TEXT NOT NULL,
	media_url      TEXT NOT NULL,
	created_at     TIMESTAMP NOT NULL,
	likes          TEXT NOT NULL,
	comment_count  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS feed_posts_created_at ON feed_posts (created_at DESC);`

// Cache implements domain.FeedCache over a local sqlite file. The caller
// should Close it when done.
type Cache struct {
	db *sql.DB
}

// Open opens (and if needed creates) the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// SavePosts upserts the given posts. Saving the same post twice overwrites
// the row, so redelivered events and refetched pages are harmless.
func (c *Cache) SavePosts(ctx context.Context, posts []domain.Post) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO feed_posts (id, author_id, author_name, author_avatar, body, media_url, created_at, likes, comment_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			author_name = excluded.author_name,
			author_avatar = excluded.author_avatar,
			body = excluded.body,
			media_url = excluded.media_url,
			likes = excluded.likes,
			comment_count = excluded.comment_count`

	for _, post := range posts {
		likes, err := json.Marshal(post.Likes)
		if err != nil {
			return fmt.Errorf("marshal likes for %s: %w", post.ID, err)
		}
		_, err = tx.ExecContext(ctx, query,
			string(post.ID),
			string(post.Author.ID),
			post.Author.Name,
			post.Author.AvatarURL,
			post.Body,
			post.MediaURL,
			post.CreatedAt,
			string(likes),
			post.CommentCount,
		)
		if err != nil {
			return fmt.Errorf("upsert post %s: %w", post.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LoadRecent returns up to limit cached posts, newest first.
func (c *Cache) LoadRecent(ctx context.Context, limit int) ([]domain.Post, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, author_id, author_name, author_avatar, body, media_url, created_at, likes, comment_count
		FROM feed_posts
		ORDER BY created_at DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query cached posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var (
			p         domain.Post
			id        string
			authorID  string
			likesJSON string
		)
		err := rows.Scan(
			&id,
			&authorID,
			&p.Author.Name,
			&p.Author.AvatarURL,
			&p.Body,
			&p.MediaURL,
			&p.CreatedAt,
			&likesJSON,
			&p.CommentCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cached post: %w", err)
		}
		p.ID = domain.PostID(id)
		p.Author.ID = domain.UserID(authorID)
		if err := json.Unmarshal([]byte(likesJSON), &p.Likes); err != nil {
			return nil, fmt.Errorf("unmarshal likes for %s: %w", id, err)
		}
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cached posts: %w", err)
	}
	return posts, nil
}

// DeletePost removes a cached post by id. Missing ids are a no-op.
func (c *Cache) DeletePost(ctx context.Context, id domain.PostID) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM feed_posts WHERE id = ?`, string(id))
	return err
}

// Trim caps the cache at maxRows, keeping the most recent posts. Returns
// the number of rows deleted.
func (c *Cache) Trim(ctx context.Context, maxRows int) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
		DELETE FROM feed_posts WHERE id IN (
			SELECT id FROM feed_posts
			ORDER BY created_at DESC
			LIMIT -1 OFFSET ?
		)`, maxRows,
	)
	if err != nil {
		return 0, fmt.Errorf("trim cache: %w", err)
	}
	deleted, _ := res.RowsAffected()
	return deleted, nil
}
