package realtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPresenceRegistry_IdentifyAndRemove(t *testing.T) {
	p := newPresenceRegistry()
	connID := uuid.New()

	p.identify("42", connID)

	got, ok := p.connFor("42")
	assert.True(t, ok)
	assert.Equal(t, connID, got)
	assert.Equal(t, 1, p.online())

	p.remove(connID)
	_, ok = p.connFor("42")
	assert.False(t, ok)
	assert.Equal(t, 0, p.online())
}

func TestPresenceRegistry_LastIdentifyWins(t *testing.T) {
	p := newPresenceRegistry()
	first := uuid.New()
	second := uuid.New()

	p.identify("42", first)
	p.identify("42", second)

	got, ok := p.connFor("42")
	assert.True(t, ok)
	assert.Equal(t, second, got)
	assert.Equal(t, 1, p.online())

	// The superseded connection no longer owns the entry
	p.remove(first)
	got, ok = p.connFor("42")
	assert.True(t, ok)
	assert.Equal(t, second, got)

	p.remove(second)
	_, ok = p.connFor("42")
	assert.False(t, ok)
}

func TestPresenceRegistry_ReidentifySameConnection(t *testing.T) {
	p := newPresenceRegistry()
	connID := uuid.New()

	p.identify("42", connID)
	p.identify("43", connID)

	// The connection owns exactly one entry, under its latest user id
	_, ok := p.connFor("42")
	assert.False(t, ok)
	got, ok := p.connFor("43")
	assert.True(t, ok)
	assert.Equal(t, connID, got)
	assert.Equal(t, 1, p.online())
}

func TestPresenceRegistry_RemoveUnknownIsNoop(t *testing.T) {
	p := newPresenceRegistry()
	p.remove(uuid.New())
	assert.Equal(t, 0, p.online())
}
