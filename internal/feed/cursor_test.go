package feed

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestCursorHappyPath(t *testing.T) {
	c := NewCursor(4)

	offset, limit, token, ok := c.Begin()
	assert.Equal(t, ok, true)
	assert.Equal(t, offset, 0)
	assert.Equal(t, limit, 4)
	assert.Equal(t, c.State(), CursorFetching)

	assert.Equal(t, c.Complete(token, 4), true)
	assert.Equal(t, c.State(), CursorIdle)
	assert.Equal(t, c.Offset(), 4)

	offset, _, token, ok = c.Begin()
	assert.Equal(t, ok, true)
	assert.Equal(t, offset, 4)
	c.Complete(token, 4)
	assert.Equal(t, c.Offset(), 8)
}

func TestCursorGuardsDoubleFetch(t *testing.T) {
	c := NewCursor(4)

	_, _, _, ok := c.Begin()
	assert.Equal(t, ok, true)

	// Rapid scroll events must not trigger a second concurrent request.
	_, _, _, ok = c.Begin()
	assert.Equal(t, ok, false)
}

func TestCursorExhaustion(t *testing.T) {
	c := NewCursor(4)

	_, _, token, _ := c.Begin()
	c.Complete(token, 2)
	assert.Equal(t, c.State(), CursorExhausted)

	// Further requests are no-ops.
	_, _, _, ok := c.Begin()
	assert.Equal(t, ok, false)
}

func TestCursorFailKeepsOffset(t *testing.T) {
	c := NewCursor(4)
	_, _, token, _ := c.Begin()
	c.Complete(token, 4)

	_, _, token, _ = c.Begin()
	c.Fail(token)
	assert.Equal(t, c.State(), CursorIdle)
	assert.Equal(t, c.Offset(), 4)

	// The retry asks for the same page.
	offset, _, _, ok := c.Begin()
	assert.Equal(t, ok, true)
	assert.Equal(t, offset, 4)
}

func TestCursorResetFromAnyState(t *testing.T) {
	c := NewCursor(4)
	_, _, token, _ := c.Begin()
	c.Complete(token, 2)
	assert.Equal(t, c.State(), CursorExhausted)

	c.Reset()
	assert.Equal(t, c.State(), CursorIdle)
	assert.Equal(t, c.Offset(), 0)

	_, _, _, ok := c.Begin()
	assert.Equal(t, ok, true)
	c.Reset()
	assert.Equal(t, c.State(), CursorIdle)
}

func TestCursorDropsStaleCompletionAfterReset(t *testing.T) {
	c := NewCursor(4)
	_, _, token, _ := c.Begin()

	c.Reset()

	// The in-flight fetch finishing now belongs to the old window.
	assert.Equal(t, c.Complete(token, 4), false)
	assert.Equal(t, c.Offset(), 0)
	assert.Equal(t, c.State(), CursorIdle)
}
