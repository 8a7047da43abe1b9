package realtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestClient() *client {
	return &client{id: uuid.New(), rooms: make(map[string]struct{})}
}

func TestRoomRouter_JoinLeave(t *testing.T) {
	r := newRoomRouter()
	c := newTestClient()

	r.join(c, "lobby")
	assert.Contains(t, r.members("lobby"), c.id)
	assert.Contains(t, c.rooms, "lobby")

	// Idempotent
	r.join(c, "lobby")
	assert.Len(t, r.members("lobby"), 1)

	r.leave(c, "lobby")
	assert.Empty(t, r.members("lobby"))
	assert.NotContains(t, c.rooms, "lobby")

	// Leaving again is a no-op
	r.leave(c, "lobby")
	assert.Equal(t, 0, r.count())
}

func TestRoomRouter_EmptyRoomIsPruned(t *testing.T) {
	r := newRoomRouter()
	c1 := newTestClient()
	c2 := newTestClient()

	r.join(c1, "lobby")
	r.join(c2, "lobby")
	assert.Equal(t, 1, r.count())

	r.leave(c1, "lobby")
	assert.Equal(t, 1, r.count())

	r.leave(c2, "lobby")
	assert.Equal(t, 0, r.count())
}

func TestRoomRouter_LeaveAll(t *testing.T) {
	r := newRoomRouter()
	c := newTestClient()
	other := newTestClient()

	r.join(c, "a")
	r.join(c, "b")
	r.join(other, "b")

	r.leaveAll(c)

	assert.Empty(t, c.rooms)
	assert.Empty(t, r.members("a"))
	assert.Len(t, r.members("b"), 1)
	assert.Contains(t, r.members("b"), other.id)
}

func TestRoomRouter_InterleavedMembership(t *testing.T) {
	r := newRoomRouter()
	c1 := newTestClient()
	c2 := newTestClient()

	r.join(c1, "a")
	r.join(c2, "b")
	r.join(c1, "b")
	r.leave(c2, "b")

	assert.Contains(t, r.members("a"), c1.id)
	assert.Contains(t, r.members("b"), c1.id)
	assert.NotContains(t, r.members("b"), c2.id)
}
