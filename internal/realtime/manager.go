package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fusehub/feedsync/internal/domain"
)

const statsLogInterval = 30 * time.Second

// Transport opens a raw change-payload stream. The websocket implementation
// is the production one; tests substitute an in-memory transport.
type Transport interface {
	Connect(ctx context.Context) (Conn, error)
}

// Conn is one open push-event connection. ReadPayload blocks until the next
// payload arrives or the connection fails.
type Conn interface {
	ReadPayload() ([]byte, error)
	Close() error
}

// Handlers receive the manager's output. OnPost is required; the others may
// be nil. OnDisconnect fires when the connection drops for any reason other
// than Stop; whether to reconnect is the caller's call.
type Handlers struct {
	OnPost       func(domain.ChangeEvent)
	OnComment    func(domain.CommentEvent)
	OnDisconnect func(err error)
}

// Manager owns the lifecycle of one push-event stream for one feed screen:
// connect, decode, dispatch, disconnect. At most one connection is active
// at a time; a second Start while one is running is reported as an error,
// not fatal. Payloads are dispatched in receipt order from a single read
// loop, including anything the transport redelivers between a drop and an
// explicit Stop.
type Manager struct {
	transport Transport
	decoder   *Decoder
	logger    *slog.Logger

	mu       sync.Mutex
	conn     Conn
	running  bool
	stopping bool
	done     chan struct{}
}

// NewManager creates a manager over the given transport and decoder.
func NewManager(transport Transport, decoder *Decoder, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		transport: transport,
		decoder:   decoder,
		logger:    logger,
	}
}

// Start opens the connection and begins dispatching events to the handlers
// in the background. Returns domain.ErrAlreadyStarted if a connection is
// already active.
func (m *Manager) Start(ctx context.Context, h Handlers) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return domain.ErrAlreadyStarted
	}
	m.running = true
	m.stopping = false
	m.mu.Unlock()

	conn, err := m.transport.Connect(ctx)
	if err != nil {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return fmt.Errorf("connect push transport: %w", err)
	}

	m.mu.Lock()
	if m.stopping {
		m.running = false
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	m.conn = conn
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	m.logger.Info("subscription started")

	go func() {
		defer close(done)
		m.readLoop(ctx, conn, h)
	}()
	return nil
}

// Stop closes the active connection and waits for the read loop to drain.
// Stopping an idle manager is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.stopping = true
	conn := m.conn
	done := m.done
	m.mu.Unlock()

	if conn == nil {
		// Start is still connecting; it will observe stopping.
		return
	}
	conn.Close()
	<-done
	m.logger.Info("subscription stopped")
}

// Running reports whether a connection is currently active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) readLoop(ctx context.Context, conn Conn, h Handlers) {
	defer func() {
		m.mu.Lock()
		m.running = false
		m.conn = nil
		m.mu.Unlock()
	}()

	var received, posts, comments, dropped int64
	lastStatsLog := time.Now()

	for {
		payload, err := conn.ReadPayload()
		if err != nil {
			m.mu.Lock()
			stopping := m.stopping
			m.mu.Unlock()
			if stopping || ctx.Err() != nil {
				return
			}
			m.logger.Warn("push connection dropped", "error", err)
			if h.OnDisconnect != nil {
				h.OnDisconnect(err)
			}
			return
		}

		received++
		switch m.dispatch(ctx, payload, h) {
		case dispatchedPost:
			posts++
		case dispatchedComment:
			comments++
		default:
			dropped++
		}

		if time.Since(lastStatsLog) >= statsLogInterval {
			m.logger.Info("push stream stats",
				"received", received,
				"post_events", posts,
				"comment_events", comments,
				"dropped", dropped,
			)
			lastStatsLog = time.Now()
		}
	}
}

type dispatchResult int

const (
	dispatchDropped dispatchResult = iota
	dispatchedPost
	dispatchedComment
)

func (m *Manager) dispatch(ctx context.Context, payload []byte, h Handlers) dispatchResult {
	env, err := parseEnvelope(payload)
	if err != nil {
		m.logDecodeFailure(err)
		return dispatchDropped
	}

	switch env.Table {
	case tablePosts:
		ev, err := m.decoder.DecodePost(ctx, env)
		if err != nil {
			m.logDecodeFailure(err)
			return dispatchDropped
		}
		if h.OnPost != nil {
			h.OnPost(ev)
		}
		return dispatchedPost

	case tableComments:
		if h.OnComment == nil {
			return dispatchDropped
		}
		ev, err := m.decoder.DecodeComment(ctx, env)
		if err != nil {
			m.logDecodeFailure(err)
			return dispatchDropped
		}
		h.OnComment(ev)
		return dispatchedComment

	default:
		m.logger.Debug("ignoring event for table", "table", env.Table)
		return dispatchDropped
	}
}

func (m *Manager) logDecodeFailure(err error) {
	var decodeErr *domain.DecodeError
	if errors.As(err, &decodeErr) {
		m.logger.Error("malformed push payload dropped",
			"error", decodeErr.Err, "payload", string(decodeErr.Payload))
		return
	}
	m.logger.Error("push event dropped", "error", err)
}
