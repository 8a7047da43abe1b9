// Package bridge connects the document store's lifecycle hooks to the
// realtime hub: an afterChange event becomes a broadcast envelope delivered
// to the room resolved by the collection's policy, or globally.
package bridge

import (
	"log/slog"

	"github.com/jmartens/docpulse/internal/domain"
	"github.com/jmartens/docpulse/internal/metrics"
)

// Publisher is the hub-side surface the bridge needs.
type Publisher interface {
	Broadcast(room, event string, payload any)
}

// Bridge fans document changes out to subscribers. Policies are fixed at
// construction; HandleChange is safe to call concurrently from hook paths.
type Bridge struct {
	hub      Publisher
	policies map[string]domain.CollectionPolicy
}

func New(hub Publisher, policies map[string]domain.CollectionPolicy) *Bridge {
	return &Bridge{hub: hub, policies: policies}
}

// Register wires HandleChange as the afterChange hook for every configured
// collection.
func (b *Bridge) Register(store domain.HookRegistrar) {
	for collection := range b.policies {
		store.AfterChange(collection, func(doc domain.Document, op domain.Operation) {
			b.HandleChange(collection, doc, op)
		})
	}
}

// HandleChange processes one document change. Operations outside the
// collection's allow-list are ignored. Room resolution failures degrade to a
// global broadcast; they never suppress delivery.
func (b *Bridge) HandleChange(collection string, doc domain.Document, op domain.Operation) {
	policy, ok := b.policies[collection]
	if !ok {
		return
	}
	if !policy.Allows(op) {
		return
	}

	room := b.resolveRoom(collection, policy, doc)

	scope := "room"
	if room == "" {
		scope = "global"
	}
	metrics.BroadcastsTotal.WithLabelValues(collection, scope).Inc()
	slog.Debug("Broadcasting document change", "collection", collection, "operation", string(op), "scope", scope)

	b.hub.Broadcast(room, "realtime:"+collection, domain.Envelope{
		Operation:  op,
		Collection: collection,
		Data:       doc,
	})
}

func (b *Bridge) resolveRoom(collection string, policy domain.CollectionPolicy, doc domain.Document) (room string) {
	if policy.Room == nil {
		return ""
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.ResolverFailuresTotal.WithLabelValues(collection).Inc()
			slog.Warn("Room resolver panicked, broadcasting globally", "collection", collection, "panic", r)
			room = ""
		}
	}()

	resolved, err := policy.Room(doc)
	if err != nil {
		metrics.ResolverFailuresTotal.WithLabelValues(collection).Inc()
		slog.Warn("Room resolver failed, broadcasting globally", "collection", collection, "error", err)
		return ""
	}
	return resolved
}
