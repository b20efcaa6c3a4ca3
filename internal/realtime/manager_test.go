package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/fusehub/feedsync/internal/domain"
)

var errConnClosed = errors.New("connection closed")

// chanConn feeds payloads from a channel; closing the channel looks like a
// dropped connection.
type chanConn struct {
	payloads chan []byte
	once     sync.Once
}

func newChanConn() *chanConn {
	return &chanConn{payloads: make(chan []byte, 64)}
}

func (c *chanConn) ReadPayload() ([]byte, error) {
	p, ok := <-c.payloads
	if !ok {
		return nil, errConnClosed
	}
	return p, nil
}

func (c *chanConn) Close() error {
	c.once.Do(func() { close(c.payloads) })
	return nil
}

type chanTransport struct {
	mu    sync.Mutex
	conns []*chanConn
	err   error
}

func (t *chanTransport) Connect(ctx context.Context) (Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	conn := newChanConn()
	t.conns = append(t.conns, conn)
	return conn, nil
}

func (t *chanTransport) last() *chanConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[len(t.conns)-1]
}

func newTestManager(t *testing.T) (*Manager, *chanTransport) {
	t.Helper()
	transport := &chanTransport{}
	decoder := NewDecoder(testDirectory(), 100, nil)
	return NewManager(transport, decoder, nil), transport
}

func collectPosts(events chan<- domain.ChangeEvent) Handlers {
	return Handlers{
		OnPost: func(ev domain.ChangeEvent) { events <- ev },
	}
}

func TestManagerDispatchesInReceiptOrder(t *testing.T) {
	manager, transport := newTestManager(t)
	events := make(chan domain.ChangeEvent, 16)

	err := manager.Start(context.Background(), collectPosts(events))
	assert.Equal(t, err, nil)
	defer manager.Stop()

	conn := transport.last()
	conn.payloads <- []byte(`{"eventType": "INSERT", "table": "posts", "new": {"id": "p1", "userId": "u1"}}`)
	conn.payloads <- []byte(`{"eventType": "UPDATE", "table": "posts", "new": {"id": "p1", "body": "x"}}`)
	conn.payloads <- []byte(`{"eventType": "DELETE", "table": "posts", "old": {"id": "p1"}}`)

	first := <-events
	second := <-events
	third := <-events
	assert.Equal(t, first.Kind, domain.EventInserted)
	assert.Equal(t, second.Kind, domain.EventUpdated)
	assert.Equal(t, third.Kind, domain.EventDeleted)
}

func TestManagerSecondStartIsReportedNotFatal(t *testing.T) {
	manager, _ := newTestManager(t)

	err := manager.Start(context.Background(), Handlers{})
	assert.Equal(t, err, nil)
	defer manager.Stop()

	err = manager.Start(context.Background(), Handlers{})
	assert.Equal(t, errors.Is(err, domain.ErrAlreadyStarted), true)
	assert.Equal(t, manager.Running(), true)
}

func TestManagerMalformedPayloadKeepsStreamAlive(t *testing.T) {
	manager, transport := newTestManager(t)
	events := make(chan domain.ChangeEvent, 16)

	manager.Start(context.Background(), collectPosts(events))
	defer manager.Stop()

	conn := transport.last()
	conn.payloads <- []byte(`garbage`)
	conn.payloads <- []byte(`{"eventType": "INSERT", "table": "posts", "new": {"id": "p1", "userId": "u1"}}`)

	ev := <-events
	assert.Equal(t, ev.Post.ID, domain.PostID("p1"))
}

func TestManagerRoutesCommentEvents(t *testing.T) {
	manager, transport := newTestManager(t)
	posts := make(chan domain.ChangeEvent, 16)
	comments := make(chan domain.CommentEvent, 16)

	manager.Start(context.Background(), Handlers{
		OnPost:    func(ev domain.ChangeEvent) { posts <- ev },
		OnComment: func(ev domain.CommentEvent) { comments <- ev },
	})
	defer manager.Stop()

	conn := transport.last()
	conn.payloads <- []byte(`{"eventType": "INSERT", "table": "comments", "new": {"id": "c1", "postId": "p1", "userId": "u1", "text": "hey"}}`)

	ev := <-comments
	assert.Equal(t, ev.Comment.ID, "c1")
	assert.Equal(t, len(posts), 0)
}

func TestManagerDisconnectSurfacesToCaller(t *testing.T) {
	manager, transport := newTestManager(t)
	disconnected := make(chan error, 1)

	manager.Start(context.Background(), Handlers{
		OnPost:       func(domain.ChangeEvent) {},
		OnDisconnect: func(err error) { disconnected <- err },
	})

	transport.last().Close()

	select {
	case err := <-disconnected:
		assert.Equal(t, errors.Is(err, errConnClosed), true)
	case <-time.After(time.Second):
		t.Fatal("disconnect was not surfaced")
	}

	// The manager is restartable: reconnecting is the caller's policy.
	waitForStopped(t, manager)
	err := manager.Start(context.Background(), Handlers{OnPost: func(domain.ChangeEvent) {}})
	assert.Equal(t, err, nil)
	manager.Stop()
}

func TestManagerStopDoesNotSignalDisconnect(t *testing.T) {
	manager, transport := newTestManager(t)
	events := make(chan domain.ChangeEvent, 16)
	disconnected := make(chan error, 1)

	manager.Start(context.Background(), Handlers{
		OnPost:       func(ev domain.ChangeEvent) { events <- ev },
		OnDisconnect: func(err error) { disconnected <- err },
	})

	// Events read before the stop are still dispatched.
	conn := transport.last()
	conn.payloads <- []byte(`{"eventType": "INSERT", "table": "posts", "new": {"id": "p1", "userId": "u1"}}`)
	<-events

	manager.Stop()
	assert.Equal(t, manager.Running(), false)
	assert.Equal(t, len(disconnected), 0)
}

func TestManagerConnectFailure(t *testing.T) {
	transport := &chanTransport{err: errors.New("dial failed")}
	manager := NewManager(transport, NewDecoder(testDirectory(), 100, nil), nil)

	err := manager.Start(context.Background(), Handlers{})
	assert.NotEqual(t, err, nil)
	assert.Equal(t, manager.Running(), false)
}

func waitForStopped(t *testing.T, manager *Manager) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for manager.Running() {
		if time.Now().After(deadline) {
			t.Fatal("manager did not stop")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
