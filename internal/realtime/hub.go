package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/jmartens/docpulse/internal/domain"
	"github.com/jmartens/docpulse/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// Reserved control events. Any other event name is relayed.
const (
	eventIdentify = "identify"
	eventJoin     = "join"
	eventLeave    = "leave"
)

// frame is one message on the wire, both directions.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	client       *client
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	client *client
}

type identifyCmd struct {
	baseHubCmd
	client *client
	userID string
}

type joinCmd struct {
	baseHubCmd
	client *client
	room   string
}

type leaveCmd struct {
	baseHubCmd
	client *client
	room   string
}

type relayCmd struct {
	baseHubCmd
	event string
	room  string
	data  map[string]any
}

type broadcastCmd struct {
	baseHubCmd
	room string
	data []byte
}

type clientCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type roomCountCmd struct {
	baseHubCmd
	room         string
	replyChannel chan int
}

type onlineCmd struct {
	baseHubCmd
	userID       string
	replyChannel chan bool
}

type stopCmd struct {
	baseHubCmd
}

// Hub owns the set of live connections and serializes every mutation of the
// presence registry and the room router through a single run loop. Document
// changes reach it through Broadcast; client control messages through Serve.
type Hub struct {
	cmdCh      chan hubCmd
	clock      clockwork.Clock
	clients    map[uuid.UUID]*client
	presence   *presenceRegistry
	rooms      *roomRouter
	maxClients int
	done       chan struct{}
}

// NewHub creates a hub and starts its run loop.
// maxClients caps concurrent connections (prevents resource exhaustion).
func NewHub(clock clockwork.Clock, maxClients int) *Hub {
	h := &Hub{
		cmdCh:      make(chan hubCmd, 256),
		clock:      clock,
		clients:    make(map[uuid.UUID]*client),
		presence:   newPresenceRegistry(),
		rooms:      newRoomRouter(),
		maxClients: maxClients,
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

// Register adds a connection to the hub. identity is nil for anonymous
// connections. Returns an error when the connection cap is reached.
func (h *Hub) Register(conn *websocket.Conn, identity *domain.Identity) (*client, error) {
	c := &client{
		id:       uuid.New(),
		identity: identity,
		conn:     conn,
		rooms:    make(map[string]struct{}),
	}

	errCh := make(chan error, 1)
	h.cmdCh <- registerCmd{client: c, errorChannel: errCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			return nil, err
		}
		return c, nil
	case <-timer.Chan():
		return nil, fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a connection and runs disconnect cleanup. Safe to call
// more than once for the same client.
func (h *Hub) Unregister(c *client) {
	h.cmdCh <- unregisterCmd{client: c}
}

// Serve registers conn and runs its read pump until the transport closes.
// Disconnect cleanup is unconditional.
func (h *Hub) Serve(conn *websocket.Conn, identity *domain.Identity) error {
	c, err := h.Register(conn, identity)
	if err != nil {
		return err
	}
	defer h.Unregister(c)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			metrics.MalformedFramesTotal.Inc()
			slog.Debug("Dropping malformed frame", "conn_id", c.id.String())
			continue
		}
		h.dispatch(c, f)
	}
}

// dispatch routes one inbound frame. Control events mutate presence and room
// state; anything else is relayed to the room named in its payload. Frames
// that do not decode for their event are silently dropped.
func (h *Hub) dispatch(c *client, f frame) {
	switch f.Event {
	case eventIdentify:
		var userID string
		if err := json.Unmarshal(f.Data, &userID); err != nil || userID == "" {
			metrics.MalformedFramesTotal.Inc()
			return
		}
		h.cmdCh <- identifyCmd{client: c, userID: userID}

	case eventJoin, eventLeave:
		var room string
		if err := json.Unmarshal(f.Data, &room); err != nil || room == "" {
			metrics.MalformedFramesTotal.Inc()
			return
		}
		if f.Event == eventJoin {
			h.cmdCh <- joinCmd{client: c, room: room}
		} else {
			h.cmdCh <- leaveCmd{client: c, room: room}
		}

	case "":
		metrics.MalformedFramesTotal.Inc()

	default:
		var data map[string]any
		if err := json.Unmarshal(f.Data, &data); err != nil {
			metrics.MalformedFramesTotal.Inc()
			return
		}
		room, ok := data["room"].(string)
		if !ok || room == "" {
			// Relay without a room field: dropped, no acknowledgment
			// protocol exists to report it.
			metrics.MalformedFramesTotal.Inc()
			return
		}
		delete(data, "room")
		h.cmdCh <- relayCmd{event: f.Event, room: room, data: data}
	}
}

// Broadcast delivers payload under event to every member of room, or to every
// live connection when room is empty. Fire-and-forget: no acknowledgment, no
// retry, per-connection FIFO only.
func (h *Hub) Broadcast(room, event string, payload any) {
	data, err := json.Marshal(outboundFrame{Event: event, Data: payload})
	if err != nil {
		slog.Error("Failed to marshal broadcast frame", "event", event, "error", err)
		return
	}
	h.cmdCh <- broadcastCmd{room: room, data: data}
}

// ClientCount returns the number of live connections. Returns -1 on timeout.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- clientCountCmd{replyChannel: replyCh}
	return h.awaitInt(replyCh)
}

// RoomCount returns the number of members of room. Returns -1 on timeout.
func (h *Hub) RoomCount(room string) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- roomCountCmd{room: room, replyChannel: replyCh}
	return h.awaitInt(replyCh)
}

// IsOnline reports whether userID has a presence entry.
func (h *Hub) IsOnline(userID string) bool {
	replyCh := make(chan bool, 1)
	h.cmdCh <- onlineCmd{userID: userID, replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case online := <-replyCh:
		return online
	case <-timer.Chan():
		slog.Warn("IsOnline timed out", "timeout", commandTimeout)
		return false
	}
}

func (h *Hub) awaitInt(replyCh chan int) int {
	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-replyCh:
		return n
	case <-timer.Chan():
		slog.Warn("Hub query timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop shuts down the hub, closing all connections with a close frame.
// Blocks until the run loop has exited or the stop timeout is reached.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (h *Hub) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Hub panic recovered", "panic", r)
			h.closeAllClients("hub panic")
		}
	}()
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c)
		case unregisterCmd:
			h.removeClient(c.client)
		case identifyCmd:
			h.handleIdentify(c)
		case joinCmd:
			h.rooms.join(c.client, c.room)
			metrics.ActiveRooms.Set(float64(h.rooms.count()))
			slog.Debug("Joined room", "conn_id", c.client.id.String(), "room", c.room)
		case leaveCmd:
			h.rooms.leave(c.client, c.room)
			metrics.ActiveRooms.Set(float64(h.rooms.count()))
			slog.Debug("Left room", "conn_id", c.client.id.String(), "room", c.room)
		case relayCmd:
			h.handleRelay(c)
		case broadcastCmd:
			h.handleBroadcast(c)
		case clientCountCmd:
			c.replyChannel <- len(h.clients)
		case roomCountCmd:
			c.replyChannel <- len(h.rooms.members(c.room))
		case onlineCmd:
			_, online := h.presence.connFor(c.userID)
			c.replyChannel <- online
		case stopCmd:
			h.handleStop()
			return
		default:
			slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if len(h.clients) >= h.maxClients {
		slog.Warn("Rejecting client: max clients reached", "max_clients", h.maxClients)
		c.client.conn.Close()
		c.errorChannel <- fmt.Errorf("max clients (%d) reached", h.maxClients)
		return
	}

	c.client.writer = newClientWriter(c.client.conn, h.clock)
	h.clients[c.client.id] = c.client

	metrics.ActiveConnections.Set(float64(len(h.clients)))
	slog.Debug("Client registered", "conn_id", c.client.id.String(), "total_clients", len(h.clients))
	c.errorChannel <- nil
}

// removeClient is the single cleanup path for a connection: presence entry,
// room memberships, writer. Idempotent; a second call is a no-op.
func (h *Hub) removeClient(c *client) {
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)

	h.presence.remove(c.id)
	h.rooms.leaveAll(c)
	c.writer.stop()

	metrics.ActiveConnections.Set(float64(len(h.clients)))
	metrics.ActiveRooms.Set(float64(h.rooms.count()))
	metrics.OnlineUsers.Set(float64(h.presence.online()))
	slog.Debug("Client unregistered", "conn_id", c.id.String(), "remaining_clients", len(h.clients))
}

func (h *Hub) handleIdentify(c identifyCmd) {
	userID := c.userID
	// An authenticated connection identifies as itself, whatever the
	// payload claims.
	if c.client.identity != nil {
		userID = c.client.identity.ID
	}

	// A re-identify must not keep receiving the previous user's room
	// deliveries.
	if old, ok := h.presence.userFor(c.client.id); ok && old != userID {
		h.rooms.leave(c.client, "user:"+old)
	}

	h.presence.identify(userID, c.client.id)

	// Per-user room, so collection policies can resolve "user:<id>" without
	// requiring an explicit join from the client.
	h.rooms.join(c.client, "user:"+userID)

	metrics.OnlineUsers.Set(float64(h.presence.online()))
	metrics.ActiveRooms.Set(float64(h.rooms.count()))
	slog.Debug("User identified", "user_id", userID, "conn_id", c.client.id.String())
}

func (h *Hub) handleRelay(c relayCmd) {
	data, err := json.Marshal(outboundFrame{Event: c.event, Data: c.data})
	if err != nil {
		slog.Error("Failed to marshal relay frame", "event", c.event, "error", err)
		return
	}
	metrics.RelaysTotal.Inc()
	slog.Debug("Relaying message", "event", c.event, "room", c.room)
	h.deliver(c.room, data)
}

func (h *Hub) handleBroadcast(c broadcastCmd) {
	h.deliver(c.room, c.data)
}

// deliver fans data out to room members, or to all clients when room is
// empty. Clients whose send buffer is full are evicted.
func (h *Hub) deliver(room string, data []byte) {
	var slow []*client

	if room == "" {
		for _, cl := range h.clients {
			if !cl.send(data) {
				slow = append(slow, cl)
			}
		}
	} else {
		for id := range h.rooms.members(room) {
			cl, ok := h.clients[id]
			if !ok {
				continue
			}
			if !cl.send(data) {
				slow = append(slow, cl)
			}
		}
	}

	for _, cl := range slow {
		slog.Warn("Disconnecting slow client", "conn_id", cl.id.String())
		metrics.SlowClientsEvicted.Inc()
		h.removeClient(cl)
	}
}

func (h *Hub) handleStop() {
	slog.Info("Hub shutting down", "clients", len(h.clients))
	h.closeAllClients("Server shutting down")
}

func (h *Hub) closeAllClients(reason string) {
	for _, cl := range h.clients {
		cl.writer.stopGraceful(reason)
		delete(h.clients, cl.id)
	}
	h.presence = newPresenceRegistry()
	h.rooms = newRoomRouter()
	metrics.ActiveConnections.Set(0)
	metrics.ActiveRooms.Set(0)
	metrics.OnlineUsers.Set(0)
}
