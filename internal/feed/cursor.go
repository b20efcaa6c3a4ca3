package feed

import "sync"

// CursorState is the pagination state machine's current position.
type CursorState int

const (
	// CursorIdle means no fetch is in flight and more pages may exist.
	CursorIdle CursorState = iota
	// CursorFetching means a page request is in flight. Further requests
	// are ignored until it completes.
	CursorFetching
	// CursorExhausted means the last page came back short; there is
	// nothing more to fetch until a reset.
	CursorExhausted
)

func (s CursorState) String() string {
	switch s {
	case CursorIdle:
		return "idle"
	case CursorFetching:
		return "fetching"
	case CursorExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Cursor tracks pagination progress for one feed screen. It admits at most
// one in-flight fetch, which is what keeps rapid scroll events from issuing
// duplicate page requests, and its offset only advances on success.
//
// Each screen owns its own Cursor; the state is never shared across
// instances.
type Cursor struct {
	mu       sync.Mutex
	state    CursorState
	offset   int
	pageSize int
	epoch    int
}

// NewCursor creates an idle cursor at offset zero.
func NewCursor(pageSize int) *Cursor {
	return &Cursor{pageSize: pageSize}
}

// Begin attempts to start a page fetch. It returns the offset and limit to
// request plus a token to hand back on completion. ok is false when a fetch
// is already in flight or the feed is exhausted, in which case the caller
// must not fetch.
func (c *Cursor) Begin() (offset, limit, token int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != CursorIdle {
		return 0, 0, 0, false
	}
	c.state = CursorFetching
	return c.offset, c.pageSize, c.epoch, true
}

// Complete records a successful fetch of received rows. The offset advances
// and the cursor returns to idle, or to exhausted when the page came back
// short. A completion carrying a token from before a Reset is stale and is
// ignored. Returns whether the completion was accepted.
func (c *Cursor) Complete(token, received int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != CursorFetching || token != c.epoch {
		return false
	}
	c.offset += received
	if received < c.pageSize {
		c.state = CursorExhausted
	} else {
		c.state = CursorIdle
	}
	return true
}

// Fail records a failed fetch: the offset is untouched and the cursor
// returns to idle so the caller may retry. Stale tokens are ignored.
func (c *Cursor) Fail(token int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != CursorFetching || token != c.epoch {
		return
	}
	c.state = CursorIdle
}

// Reset forces the cursor back to idle at offset zero. Valid from any
// state; an in-flight fetch's eventual completion becomes stale and will be
// dropped.
func (c *Cursor) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = CursorIdle
	c.offset = 0
	c.epoch++
}

// State returns the current state.
func (c *Cursor) State() CursorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Offset returns the number of rows fetched so far this session.
func (c *Cursor) Offset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}
