package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/fusehub/feedsync/internal/domain"
)

// Decoder turns raw change envelopes into canonical events. For inserted
// posts it denormalizes the author through the user directory; a failed or
// rate-limited lookup degrades to a placeholder author instead of dropping
// the event.
type Decoder struct {
	users   domain.UserDirectory
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewDecoder creates a decoder. lookupRate caps user-directory lookups per
// second so an event burst cannot hammer the directory; excess inserts get
// the placeholder author.
func NewDecoder(users domain.UserDirectory, lookupRate rate.Limit, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{
		users:   users,
		limiter: rate.NewLimiter(lookupRate, int(lookupRate)+1),
		logger:  logger,
	}
}

// DecodePost normalizes a posts-table envelope into a ChangeEvent.
func (d *Decoder) DecodePost(ctx context.Context, env *envelope) (domain.ChangeEvent, error) {
	switch env.EventType {
	case opInsert:
		return d.decodeInsert(ctx, env)
	case opUpdate:
		return decodeUpdate(env)
	case opDelete:
		return decodeDelete(env)
	default:
		return domain.ChangeEvent{}, &domain.DecodeError{
			Err: fmt.Errorf("unknown event type %q", env.EventType),
		}
	}
}

// DecodeComment normalizes a comments-table envelope. Only inserts and
// deletes are meaningful for comment threads.
func (d *Decoder) DecodeComment(ctx context.Context, env *envelope) (domain.CommentEvent, error) {
	raw := env.New
	kind := domain.EventInserted
	switch env.EventType {
	case opInsert:
	case opDelete:
		raw = env.Old
		kind = domain.EventDeleted
	default:
		return domain.CommentEvent{}, &domain.DecodeError{
			Err: fmt.Errorf("unsupported comment event %q", env.EventType),
		}
	}

	var row commentRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return domain.CommentEvent{}, &domain.DecodeError{Payload: raw, Err: err}
	}
	if row.ID == "" {
		return domain.CommentEvent{}, &domain.DecodeError{
			Err: fmt.Errorf("comment event missing id"),
		}
	}

	comment := domain.Comment{
		ID:     row.ID,
		PostID: domain.PostID(row.PostID),
		Text:   row.Text,
	}
	if row.CreatedAt != nil {
		comment.CreatedAt = *row.CreatedAt
	}
	if kind == domain.EventInserted {
		comment.Author = d.lookupAuthor(ctx, domain.UserID(row.UserID))
	}
	return domain.CommentEvent{Kind: kind, Comment: comment}, nil
}

func (d *Decoder) decodeInsert(ctx context.Context, env *envelope) (domain.ChangeEvent, error) {
	var row postRow
	if err := json.Unmarshal(env.New, &row); err != nil {
		return domain.ChangeEvent{}, &domain.DecodeError{Payload: env.New, Err: err}
	}
	if row.ID == "" {
		return domain.ChangeEvent{}, &domain.DecodeError{
			Err: fmt.Errorf("insert event missing id"),
		}
	}

	post := domain.Post{
		ID:     domain.PostID(row.ID),
		Author: d.lookupAuthor(ctx, domain.UserID(row.UserID)),
		Likes:  []domain.UserID{},
	}
	if row.Body != nil {
		post.Body = *row.Body
	}
	if row.File != nil {
		post.MediaURL = *row.File
	}
	if row.CreatedAt != nil {
		post.CreatedAt = *row.CreatedAt
	} else {
		post.CreatedAt = time.Now().UTC()
	}

	return domain.ChangeEvent{
		Kind: domain.EventInserted,
		ID:   post.ID,
		Post: &post,
	}, nil
}

func decodeUpdate(env *envelope) (domain.ChangeEvent, error) {
	var row postRow
	if err := json.Unmarshal(env.New, &row); err != nil {
		return domain.ChangeEvent{}, &domain.DecodeError{Payload: env.New, Err: err}
	}
	if row.ID == "" {
		return domain.ChangeEvent{}, &domain.DecodeError{
			Err: fmt.Errorf("update event missing id"),
		}
	}

	// Only the mutable fields travel on an update; author and id never
	// change through this path.
	return domain.ChangeEvent{
		Kind: domain.EventUpdated,
		ID:   domain.PostID(row.ID),
		Patch: &domain.PostPatch{
			Body:     row.Body,
			MediaURL: row.File,
		},
	}, nil
}

func decodeDelete(env *envelope) (domain.ChangeEvent, error) {
	var row postRow
	if err := json.Unmarshal(env.Old, &row); err != nil {
		return domain.ChangeEvent{}, &domain.DecodeError{Payload: env.Old, Err: err}
	}
	if row.ID == "" {
		return domain.ChangeEvent{}, &domain.DecodeError{
			Err: fmt.Errorf("delete event missing id"),
		}
	}
	return domain.ChangeEvent{
		Kind: domain.EventDeleted,
		ID:   domain.PostID(row.ID),
	}, nil
}

func (d *Decoder) lookupAuthor(ctx context.Context, id domain.UserID) domain.UserSnapshot {
	if d.users == nil || id == "" {
		return domain.PlaceholderAuthor(id)
	}
	if !d.limiter.Allow() {
		d.logger.Debug("author lookup rate limited", "user_id", id)
		return domain.PlaceholderAuthor(id)
	}
	user, err := d.users.GetUser(ctx, id)
	if err != nil {
		d.logger.Warn("author lookup failed, using placeholder", "user_id", id, "error", err)
		return domain.PlaceholderAuthor(id)
	}
	return user
}
