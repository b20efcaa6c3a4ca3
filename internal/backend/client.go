// Package backend is the REST client for the hosted backend: page fetches,
// like writes, comment writes, and user-directory lookups.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fusehub/feedsync/internal/domain"
)

// Client talks to the backend's REST surface. It implements
// domain.PageFetcher, domain.LikeWriter, domain.CommentWriter, and
// domain.UserDirectory.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the backend at baseURL. apiKey may be
// empty for unauthenticated backends.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// postSelect mirrors the joined shape the feed screen needs: the author
// snapshot, the like rows, and the comment count, denormalized in one
// round trip.
const postSelect = "id,userId,body,file,created_at,user:users(id,name,image),postlikes(userId),comments(count)"

// FetchPage retrieves one feed page, newest first.
func (c *Client) FetchPage(ctx context.Context, offset, limit int, authorFilter domain.UserID) ([]domain.Post, error) {
	q := url.Values{}
	q.Set("select", postSelect)
	q.Set("order", "created_at.desc")
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	if authorFilter != "" {
		q.Set("userId", "eq."+string(authorFilter))
	}

	var rows []postResponse
	if err := c.get(ctx, "/rest/v1/posts", q, &rows); err != nil {
		return nil, fmt.Errorf("fetch posts page: %w", err)
	}

	posts := make([]domain.Post, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, row.toPost())
	}
	return posts, nil
}

// SetLike adds or removes the (post, user) like row. Both directions are
// idempotent: re-adding an existing like or removing a missing one succeeds.
func (c *Client) SetLike(ctx context.Context, postID domain.PostID, userID domain.UserID, liked bool) error {
	if liked {
		body := map[string]string{
			"postId": string(postID),
			"userId": string(userID),
		}
		q := url.Values{}
		q.Set("on_conflict", "postId,userId")
		if err := c.post(ctx, "/rest/v1/postlikes", q, body, nil); err != nil {
			return fmt.Errorf("create like: %w", err)
		}
		return nil
	}

	q := url.Values{}
	q.Set("postId", "eq."+string(postID))
	q.Set("userId", "eq."+string(userID))
	if err := c.delete(ctx, "/rest/v1/postlikes", q); err != nil {
		return fmt.Errorf("remove like: %w", err)
	}
	return nil
}

// GetUser resolves a user snapshot, returning domain.ErrNotFound for
// unknown ids.
func (c *Client) GetUser(ctx context.Context, userID domain.UserID) (domain.UserSnapshot, error) {
	q := url.Values{}
	q.Set("select", "id,name,image")
	q.Set("id", "eq."+string(userID))

	var rows []domain.UserSnapshot
	if err := c.get(ctx, "/rest/v1/users", q, &rows); err != nil {
		return domain.UserSnapshot{}, fmt.Errorf("fetch user %s: %w", userID, err)
	}
	if len(rows) == 0 {
		return domain.UserSnapshot{}, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return rows[0], nil
}

// CreateComment persists a new comment and returns the stored row with its
// server-assigned id.
func (c *Client) CreateComment(ctx context.Context, comment domain.Comment) (domain.Comment, error) {
	body := map[string]string{
		"postId": string(comment.PostID),
		"userId": string(comment.Author.ID),
		"text":   comment.Text,
	}

	var rows []commentResponse
	if err := c.post(ctx, "/rest/v1/comments", nil, body, &rows); err != nil {
		return domain.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	if len(rows) == 0 {
		return domain.Comment{}, fmt.Errorf("create comment: empty response")
	}
	created := comment
	created.ID = rows[0].ID
	created.CreatedAt = rows[0].CreatedAt
	return created, nil
}

// DeleteComment removes a comment by id.
func (c *Client) DeleteComment(ctx context.Context, commentID string) error {
	q := url.Values{}
	q.Set("id", "eq."+commentID)
	if err := c.delete(ctx, "/rest/v1/comments", q); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

// CreatePost persists a new post row. Used by the seeder; the feed screen
// itself receives new posts through the push stream.
func (c *Client) CreatePost(ctx context.Context, post domain.Post) error {
	body := map[string]string{
		"id":     string(post.ID),
		"userId": string(post.Author.ID),
		"body":   post.Body,
		"file":   post.MediaURL,
	}
	if err := c.post(ctx, "/rest/v1/posts", nil, body, nil); err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// CreateUser persists a user row. Used by the seeder.
func (c *Client) CreateUser(ctx context.Context, user domain.UserSnapshot) error {
	body := map[string]string{
		"id":    string(user.ID),
		"name":  user.Name,
		"image": user.AvatarURL,
	}
	if err := c.post(ctx, "/rest/v1/users", nil, body, nil); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, query url.Values, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, query), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if result != nil {
		req.Header.Set("Prefer", "return=representation")
	}
	return c.do(req, result)
}

func (c *Client) delete(ctx context.Context, path string, query url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint(path, query), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, result any) error {
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// postResponse is the joined row shape returned by the posts endpoint.
type postResponse struct {
	ID        string              `json:"id"`
	UserID    string              `json:"userId"`
	Body      string              `json:"body"`
	File      string              `json:"file"`
	CreatedAt time.Time           `json:"created_at"`
	User      domain.UserSnapshot `json:"user"`
	Likes     []likeRow           `json:"postlikes"`
	Comments  []countRow          `json:"comments"`
}

type likeRow struct {
	UserID string `json:"userId"`
}

// commentResponse is the stored comment row returned on create.
type commentResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type countRow struct {
	Count int `json:"count"`
}

func (r postResponse) toPost() domain.Post {
	post := domain.Post{
		ID:        domain.PostID(r.ID),
		Author:    r.User,
		Body:      r.Body,
		MediaURL:  r.File,
		CreatedAt: r.CreatedAt,
		Likes:     make([]domain.UserID, 0, len(r.Likes)),
	}
	if post.Author.ID == "" {
		post.Author = domain.PlaceholderAuthor(domain.UserID(r.UserID))
	}
	for _, l := range r.Likes {
		post.Likes = append(post.Likes, domain.UserID(l.UserID))
	}
	if len(r.Comments) > 0 {
		post.CommentCount = r.Comments[0].Count
	}
	return post
}
