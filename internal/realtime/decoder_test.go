package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/fusehub/feedsync/internal/domain"
)

type fakeDirectory struct {
	users map[domain.UserID]domain.UserSnapshot
	err   error
	calls int
}

func (d *fakeDirectory) GetUser(ctx context.Context, id domain.UserID) (domain.UserSnapshot, error) {
	d.calls++
	if d.err != nil {
		return domain.UserSnapshot{}, d.err
	}
	u, ok := d.users[id]
	if !ok {
		return domain.UserSnapshot{}, domain.ErrNotFound
	}
	return u, nil
}

func testDirectory() *fakeDirectory {
	return &fakeDirectory{users: map[domain.UserID]domain.UserSnapshot{
		"u1": {ID: "u1", Name: "Alice", AvatarURL: "https://cdn.example/a.png"},
	}}
}

func mustEnvelope(t *testing.T, payload string) *envelope {
	t.Helper()
	env, err := parseEnvelope([]byte(payload))
	assert.Equal(t, err, nil)
	return env
}

func TestDecodeInsertDenormalizesAuthor(t *testing.T) {
	dir := testDirectory()
	d := NewDecoder(dir, 100, nil)

	env := mustEnvelope(t, `{
		"eventType": "INSERT",
		"table": "posts",
		"new": {"id": "p1", "userId": "u1", "body": "<p>hello</p>", "file": "", "created_at": "2026-08-30T12:00:00Z"}
	}`)

	ev, err := d.DecodePost(context.Background(), env)
	assert.Equal(t, err, nil)
	assert.Equal(t, ev.Kind, domain.EventInserted)
	assert.Equal(t, ev.Post.ID, domain.PostID("p1"))
	assert.Equal(t, ev.Post.Author.Name, "Alice")
	assert.Equal(t, ev.Post.Body, "<p>hello</p>")
	assert.Equal(t, len(ev.Post.Likes), 0)
	assert.Equal(t, ev.Post.CommentCount, 0)
}

func TestDecodeInsertFallsBackToPlaceholderAuthor(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("directory down")}
	d := NewDecoder(dir, 100, nil)

	env := mustEnvelope(t, `{
		"eventType": "INSERT",
		"table": "posts",
		"new": {"id": "p1", "userId": "u9", "body": "x"}
	}`)

	// Lookup failure degrades the row instead of dropping the event.
	ev, err := d.DecodePost(context.Background(), env)
	assert.Equal(t, err, nil)
	assert.Equal(t, ev.Post.Author.Name, "Unknown User")
	assert.Equal(t, ev.Post.Author.ID, domain.UserID("u9"))
	assert.Equal(t, ev.Post.Author.AvatarURL, "")
}

func TestDecodeInsertRateLimitedLookup(t *testing.T) {
	dir := testDirectory()
	d := NewDecoder(dir, 1, nil)

	env := mustEnvelope(t, `{
		"eventType": "INSERT",
		"table": "posts",
		"new": {"id": "p1", "userId": "u1"}
	}`)

	// Burst capacity is exhausted after a couple of lookups; the rest
	// degrade to placeholders without hitting the directory.
	for i := 0; i < 10; i++ {
		_, err := d.DecodePost(context.Background(), env)
		assert.Equal(t, err, nil)
	}
	assert.Equal(t, dir.calls < 10, true)
}

func TestDecodeUpdateExtractsMutableFieldsOnly(t *testing.T) {
	d := NewDecoder(testDirectory(), 100, nil)

	env := mustEnvelope(t, `{
		"eventType": "UPDATE",
		"table": "posts",
		"new": {"id": "p1", "userId": "u1", "body": "edited"}
	}`)

	ev, err := d.DecodePost(context.Background(), env)
	assert.Equal(t, err, nil)
	assert.Equal(t, ev.Kind, domain.EventUpdated)
	assert.Equal(t, ev.ID, domain.PostID("p1"))
	assert.Equal(t, *ev.Patch.Body, "edited")
	// file was absent from the event: not a clear, just not present.
	assert.Equal(t, ev.Patch.MediaURL, (*string)(nil))
}

func TestDecodeDelete(t *testing.T) {
	d := NewDecoder(testDirectory(), 100, nil)

	env := mustEnvelope(t, `{
		"eventType": "DELETE",
		"table": "posts",
		"old": {"id": "p1"}
	}`)

	ev, err := d.DecodePost(context.Background(), env)
	assert.Equal(t, err, nil)
	assert.Equal(t, ev.Kind, domain.EventDeleted)
	assert.Equal(t, ev.ID, domain.PostID("p1"))
	assert.Equal(t, ev.Post, (*domain.Post)(nil))
}

func TestDecodeComment(t *testing.T) {
	d := NewDecoder(testDirectory(), 100, nil)

	env := mustEnvelope(t, `{
		"eventType": "INSERT",
		"table": "comments",
		"new": {"id": "c1", "postId": "p1", "userId": "u1", "text": "nice"}
	}`)

	ev, err := d.DecodeComment(context.Background(), env)
	assert.Equal(t, err, nil)
	assert.Equal(t, ev.Kind, domain.EventInserted)
	assert.Equal(t, ev.Comment.ID, "c1")
	assert.Equal(t, ev.Comment.PostID, domain.PostID("p1"))
	assert.Equal(t, ev.Comment.Author.Name, "Alice")
}

func TestParseEnvelopeRejectsMalformedPayloads(t *testing.T) {
	cases := []string{
		`not json`,
		`{"eventType": "TRUNCATE", "table": "posts"}`,
		``,
	}
	for _, payload := range cases {
		_, err := parseEnvelope([]byte(payload))
		var decodeErr *domain.DecodeError
		assert.Equal(t, errors.As(err, &decodeErr), true)
	}
}

func TestDecodeInsertMissingID(t *testing.T) {
	d := NewDecoder(testDirectory(), 100, nil)
	env := mustEnvelope(t, `{"eventType": "INSERT", "table": "posts", "new": {"body": "x"}}`)

	_, err := d.DecodePost(context.Background(), env)
	var decodeErr *domain.DecodeError
	assert.Equal(t, errors.As(err, &decodeErr), true)
}
