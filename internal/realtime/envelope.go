package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fusehub/feedsync/internal/domain"
)

// Row-change envelope pushed by the backend's change feed. The row payloads
// stay raw until the table tag decides how to decode them.
type envelope struct {
	EventType string          `json:"eventType"`
	Table     string          `json:"table"`
	New       json.RawMessage `json:"new,omitempty"`
	Old       json.RawMessage `json:"old,omitempty"`
}

// postRow is the raw posts-table row inside an envelope. Pointer fields
// distinguish "absent from this event" from zero values, which is what
// makes partial updates possible.
type postRow struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Body      *string    `json:"body"`
	File      *string    `json:"file"`
	CreatedAt *time.Time `json:"created_at"`
}

// commentRow is the raw comments-table row inside an envelope.
type commentRow struct {
	ID        string     `json:"id"`
	PostID    string     `json:"postId"`
	UserID    string     `json:"userId"`
	Text      string     `json:"text"`
	CreatedAt *time.Time `json:"created_at"`
}

func parseEnvelope(payload []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &domain.DecodeError{Payload: payload, Err: err}
	}
	switch env.EventType {
	case opInsert, opUpdate, opDelete:
	default:
		return nil, &domain.DecodeError{
			Payload: payload,
			Err:     fmt.Errorf("unknown event type %q", env.EventType),
		}
	}
	return &env, nil
}

const (
	opInsert = "INSERT"
	opUpdate = "UPDATE"
	opDelete = "DELETE"

	tablePosts    = "posts"
	tableComments = "comments"
)
