// Package domain holds the core types shared across the realtime engine:
// document change operations, broadcast envelopes, per-collection policies,
// and the boundary interfaces for the document store and identity provider.
package domain

import "context"

// Operation is the kind of document mutation that triggers a broadcast.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
)

// Document is the raw body of a stored record.
type Document map[string]any

// Envelope is the payload delivered to subscribers for a document change.
type Envelope struct {
	Operation  Operation `json:"operation"`
	Collection string    `json:"collection"`
	Data       Document  `json:"data"`
}

// RoomResolver maps a changed document to a target room.
// An empty room means global delivery.
type RoomResolver func(doc Document) (string, error)

// CollectionPolicy configures broadcasting for one collection.
// Policies are set once at startup and read-only afterwards.
type CollectionPolicy struct {
	// Room resolves the target room for a changed document. Nil means
	// every change of this collection is delivered globally.
	Room RoomResolver

	// Events lists the operations that trigger a broadcast.
	// Empty means create and update.
	Events []Operation
}

// Allows reports whether op triggers a broadcast under this policy.
func (p CollectionPolicy) Allows(op Operation) bool {
	if len(p.Events) == 0 {
		return op == OperationCreate || op == OperationUpdate
	}
	for _, e := range p.Events {
		if e == op {
			return true
		}
	}
	return false
}

// Identity is a resolved user identity.
type Identity struct {
	ID    string
	Email string
}

// IdentityProvider resolves a bearer credential to an identity.
type IdentityProvider interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// ChangeHook is invoked after a document change has committed. Hooks must be
// re-entrant and may be called more than once per change.
type ChangeHook func(doc Document, op Operation)

// HookRegistrar is the document store's lifecycle-hook boundary.
type HookRegistrar interface {
	AfterChange(collection string, hook ChangeHook)
}
