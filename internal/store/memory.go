// Package store provides document-store adapters that implement the
// lifecycle-hook boundary consumed by the bridge.
package store

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/jmartens/docpulse/internal/domain"
)

// Memory is an in-process document store for development and tests. Hooks
// fire synchronously after the mutation is visible, outside the store lock.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]domain.Document

	hookMu sync.RWMutex
	hooks  map[string][]domain.ChangeHook
}

func NewMemory() *Memory {
	return &Memory{
		docs:  make(map[string]map[string]domain.Document),
		hooks: make(map[string][]domain.ChangeHook),
	}
}

func (m *Memory) AfterChange(collection string, hook domain.ChangeHook) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.hooks[collection] = append(m.hooks[collection], hook)
}

// Create stores doc under a fresh id (unless doc carries one) and fires the
// collection's afterChange hooks.
func (m *Memory) Create(_ context.Context, collection string, doc domain.Document) (domain.Document, error) {
	stored := maps.Clone(doc)
	if stored == nil {
		stored = make(domain.Document)
	}
	id, _ := stored["id"].(string)
	if id == "" {
		id = uuid.NewString()
		stored["id"] = id
	}

	m.mu.Lock()
	coll, ok := m.docs[collection]
	if !ok {
		coll = make(map[string]domain.Document)
		m.docs[collection] = coll
	}
	coll[id] = stored
	m.mu.Unlock()

	m.fireAfterChange(collection, stored, domain.OperationCreate)
	return stored, nil
}

// Update replaces the body of an existing document and fires hooks.
func (m *Memory) Update(_ context.Context, collection, id string, doc domain.Document) (domain.Document, error) {
	stored := maps.Clone(doc)
	if stored == nil {
		stored = make(domain.Document)
	}
	stored["id"] = id

	m.mu.Lock()
	coll, ok := m.docs[collection]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	if _, ok := coll[id]; !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	coll[id] = stored
	m.mu.Unlock()

	m.fireAfterChange(collection, stored, domain.OperationUpdate)
	return stored, nil
}

// Get returns a copy of the stored document.
func (m *Memory) Get(_ context.Context, collection, id string) (domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[collection][id]
	if !ok {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	return maps.Clone(doc), nil
}

// Count returns the number of documents in collection.
func (m *Memory) Count(_ context.Context, collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs[collection]), nil
}

func (m *Memory) fireAfterChange(collection string, doc domain.Document, op domain.Operation) {
	m.hookMu.RLock()
	hooks := m.hooks[collection]
	m.hookMu.RUnlock()

	for _, hook := range hooks {
		hook(maps.Clone(doc), op)
	}
}
