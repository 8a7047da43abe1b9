package bridge

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmartens/docpulse/internal/domain"
)

type capturedBroadcast struct {
	room    string
	event   string
	payload any
}

type fakePublisher struct {
	mu         sync.Mutex
	broadcasts []capturedBroadcast
}

func (f *fakePublisher) Broadcast(room, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, capturedBroadcast{room: room, event: event, payload: payload})
}

func (f *fakePublisher) all() []capturedBroadcast {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedBroadcast(nil), f.broadcasts...)
}

func userRoom(doc domain.Document) (string, error) {
	user, ok := doc["user"].(string)
	if !ok {
		return "", errors.New("no user field")
	}
	return "user:" + user, nil
}

func TestBridge_BroadcastToResolvedRoom(t *testing.T) {
	pub := &fakePublisher{}
	b := New(pub, map[string]domain.CollectionPolicy{
		"notifications": {Room: userRoom, Events: []domain.Operation{domain.OperationCreate}},
	})

	doc := domain.Document{"user": "42", "message": "hello"}
	b.HandleChange("notifications", doc, domain.OperationCreate)

	broadcasts := pub.all()
	require.Len(t, broadcasts, 1)
	assert.Equal(t, "user:42", broadcasts[0].room)
	assert.Equal(t, "realtime:notifications", broadcasts[0].event)

	envelope, ok := broadcasts[0].payload.(domain.Envelope)
	require.True(t, ok)
	assert.Equal(t, domain.OperationCreate, envelope.Operation)
	assert.Equal(t, "notifications", envelope.Collection)
	assert.Equal(t, doc, envelope.Data)
}

func TestBridge_OperationNotAllowed(t *testing.T) {
	pub := &fakePublisher{}
	b := New(pub, map[string]domain.CollectionPolicy{
		"notifications": {Room: userRoom, Events: []domain.Operation{domain.OperationCreate}},
	})

	b.HandleChange("notifications", domain.Document{"user": "42"}, domain.OperationUpdate)
	assert.Empty(t, pub.all())
}

func TestBridge_DefaultEventsAreCreateAndUpdate(t *testing.T) {
	pub := &fakePublisher{}
	b := New(pub, map[string]domain.CollectionPolicy{"messages": {}})

	b.HandleChange("messages", domain.Document{"message": "a"}, domain.OperationCreate)
	b.HandleChange("messages", domain.Document{"message": "b"}, domain.OperationUpdate)

	broadcasts := pub.all()
	require.Len(t, broadcasts, 2)
	// No resolver means global delivery
	assert.Equal(t, "", broadcasts[0].room)
	assert.Equal(t, "", broadcasts[1].room)
}

func TestBridge_UnknownCollectionIgnored(t *testing.T) {
	pub := &fakePublisher{}
	b := New(pub, map[string]domain.CollectionPolicy{"messages": {}})

	b.HandleChange("articles", domain.Document{"title": "x"}, domain.OperationCreate)
	assert.Empty(t, pub.all())
}

func TestBridge_ResolverErrorFallsBackToGlobal(t *testing.T) {
	pub := &fakePublisher{}
	b := New(pub, map[string]domain.CollectionPolicy{
		"notifications": {Room: userRoom},
	})

	// Document without a user field makes the resolver fail; the event is
	// still delivered, globally
	b.HandleChange("notifications", domain.Document{"message": "orphan"}, domain.OperationCreate)

	broadcasts := pub.all()
	require.Len(t, broadcasts, 1)
	assert.Equal(t, "", broadcasts[0].room)
	assert.Equal(t, "realtime:notifications", broadcasts[0].event)
}

func TestBridge_ResolverPanicFallsBackToGlobal(t *testing.T) {
	pub := &fakePublisher{}
	b := New(pub, map[string]domain.CollectionPolicy{
		"notifications": {Room: func(doc domain.Document) (string, error) {
			panic("resolver bug")
		}},
	})

	b.HandleChange("notifications", domain.Document{"user": "42"}, domain.OperationCreate)

	broadcasts := pub.all()
	require.Len(t, broadcasts, 1)
	assert.Equal(t, "", broadcasts[0].room)
}

func TestBridge_RegisterWiresEveryCollection(t *testing.T) {
	pub := &fakePublisher{}
	b := New(pub, map[string]domain.CollectionPolicy{
		"messages":      {},
		"notifications": {Room: userRoom},
	})

	registrar := &fakeRegistrar{hooks: make(map[string][]domain.ChangeHook)}
	b.Register(registrar)

	require.Len(t, registrar.hooks, 2)

	// The hook is bound to its own collection
	registrar.hooks["messages"][0](domain.Document{"message": "hi"}, domain.OperationCreate)
	broadcasts := pub.all()
	require.Len(t, broadcasts, 1)
	assert.Equal(t, "realtime:messages", broadcasts[0].event)
}

type fakeRegistrar struct {
	hooks map[string][]domain.ChangeHook
}

func (f *fakeRegistrar) AfterChange(collection string, hook domain.ChangeHook) {
	f.hooks[collection] = append(f.hooks[collection], hook)
}
