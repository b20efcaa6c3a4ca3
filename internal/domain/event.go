package domain

// EventKind tags a ChangeEvent variant.
type EventKind int

const (
	EventInserted EventKind = iota
	EventUpdated
	EventDeleted
)

func (k EventKind) String() string {
	switch k {
	case EventInserted:
		return "inserted"
	case EventUpdated:
		return "updated"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// PostPatch carries the fields a server-side update may change. Author and
// id are immutable, so they never appear here. Nil pointers mean "field not
// present in the event", not "clear the field".
type PostPatch struct {
	Body         *string
	MediaURL     *string
	CommentCount *int
}

// ChangeEvent is a normalized push notification about a post row. Exactly
// one of Post/Patch is meaningful depending on Kind; ID is always set for
// updates and deletes. Immutable once constructed.
type ChangeEvent struct {
	Kind EventKind
	ID   PostID

	// Post is populated for EventInserted, with the author snapshot
	// already denormalized.
	Post *Post

	// Patch is populated for EventUpdated.
	Patch *PostPatch
}

// CommentEvent is a normalized push notification about a comment row. The
// feed core does not consume these; they are routed to whichever screen
// owns the comment thread.
type CommentEvent struct {
	Kind    EventKind
	Comment Comment
}
