package realtime

import "github.com/google/uuid"

// presenceRegistry maps user ids to their current connection. A reverse index
// (connection id -> user id) makes disconnect cleanup O(1). All access is
// confined to the hub loop, so no locking happens here.
type presenceRegistry struct {
	byUser map[string]uuid.UUID
	byConn map[uuid.UUID]string
}

func newPresenceRegistry() *presenceRegistry {
	return &presenceRegistry{
		byUser: make(map[string]uuid.UUID),
		byConn: make(map[uuid.UUID]string),
	}
}

// identify records connID as the current connection for userID. A previous
// mapping for the same user is superseded silently; the old connection is not
// notified. At most one entry per user exists at any time.
func (p *presenceRegistry) identify(userID string, connID uuid.UUID) {
	if old, ok := p.byUser[userID]; ok && old != connID {
		delete(p.byConn, old)
	}
	if prev, ok := p.byConn[connID]; ok && prev != userID {
		delete(p.byUser, prev)
	}
	p.byUser[userID] = connID
	p.byConn[connID] = userID
}

// remove deletes the presence entry owned by connID. No-op if the connection
// never identified or was already superseded.
func (p *presenceRegistry) remove(connID uuid.UUID) {
	userID, ok := p.byConn[connID]
	if !ok {
		return
	}
	delete(p.byConn, connID)
	if cur, ok := p.byUser[userID]; ok && cur == connID {
		delete(p.byUser, userID)
	}
}

// connFor returns the connection currently mapped to userID.
func (p *presenceRegistry) connFor(userID string) (uuid.UUID, bool) {
	connID, ok := p.byUser[userID]
	return connID, ok
}

// userFor returns the user id connID has identified as.
func (p *presenceRegistry) userFor(connID uuid.UUID) (string, bool) {
	userID, ok := p.byConn[connID]
	return userID, ok
}

func (p *presenceRegistry) online() int {
	return len(p.byUser)
}
