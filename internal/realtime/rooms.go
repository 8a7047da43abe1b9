package realtime

import "github.com/google/uuid"

// roomRouter tracks which connections belong to which named rooms. Rooms come
// into existence on first join and disappear when their last member leaves.
// The router also maintains each client's own room set, so membership stays
// bidirectionally consistent. All access is confined to the hub loop.
type roomRouter struct {
	rooms map[string]map[uuid.UUID]struct{}
}

func newRoomRouter() *roomRouter {
	return &roomRouter{rooms: make(map[string]map[uuid.UUID]struct{})}
}

// join adds c to room. Idempotent.
func (r *roomRouter) join(c *client, room string) {
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[uuid.UUID]struct{})
		r.rooms[room] = members
	}
	members[c.id] = struct{}{}
	c.rooms[room] = struct{}{}
}

// leave removes c from room. Idempotent; absent membership is a no-op.
func (r *roomRouter) leave(c *client, room string) {
	delete(c.rooms, room)
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, c.id)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// leaveAll removes c from every room it belongs to.
func (r *roomRouter) leaveAll(c *client) {
	for room := range c.rooms {
		r.leave(c, room)
	}
}

// members returns the membership set of room. Nil if the room has no members.
func (r *roomRouter) members(room string) map[uuid.UUID]struct{} {
	return r.rooms[room]
}

func (r *roomRouter) count() int {
	return len(r.rooms)
}
