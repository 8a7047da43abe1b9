package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmartens/docpulse/internal/domain"
)

type hookRecorder struct {
	mu    sync.Mutex
	calls []struct {
		doc domain.Document
		op  domain.Operation
	}
}

func (r *hookRecorder) hook(doc domain.Document, op domain.Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, struct {
		doc domain.Document
		op  domain.Operation
	}{doc, op})
}

func (r *hookRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestMemory_CreateFiresHook(t *testing.T) {
	m := NewMemory()
	rec := &hookRecorder{}
	m.AfterChange("messages", rec.hook)

	doc, err := m.Create(context.Background(), "messages", domain.Document{"message": "hi"})
	require.NoError(t, err)
	require.NotEmpty(t, doc["id"])

	require.Equal(t, 1, rec.count())
	assert.Equal(t, domain.OperationCreate, rec.calls[0].op)
	assert.Equal(t, "hi", rec.calls[0].doc["message"])
	assert.Equal(t, doc["id"], rec.calls[0].doc["id"])
}

func TestMemory_UpdateFiresHook(t *testing.T) {
	m := NewMemory()
	rec := &hookRecorder{}
	m.AfterChange("messages", rec.hook)

	doc, err := m.Create(context.Background(), "messages", domain.Document{"message": "hi"})
	require.NoError(t, err)
	id := doc["id"].(string)

	updated, err := m.Update(context.Background(), "messages", id, domain.Document{"message": "edited"})
	require.NoError(t, err)
	assert.Equal(t, id, updated["id"])

	require.Equal(t, 2, rec.count())
	assert.Equal(t, domain.OperationUpdate, rec.calls[1].op)
	assert.Equal(t, "edited", rec.calls[1].doc["message"])
}

func TestMemory_UpdateMissingDocument(t *testing.T) {
	m := NewMemory()

	_, err := m.Update(context.Background(), "messages", "nope", domain.Document{"message": "x"})
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestMemory_HooksScopedToCollection(t *testing.T) {
	m := NewMemory()
	rec := &hookRecorder{}
	m.AfterChange("messages", rec.hook)

	_, err := m.Create(context.Background(), "notifications", domain.Document{"user": "42"})
	require.NoError(t, err)

	assert.Equal(t, 0, rec.count())
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	m := NewMemory()

	doc, err := m.Create(context.Background(), "messages", domain.Document{"message": "hi"})
	require.NoError(t, err)
	id := doc["id"].(string)

	got, err := m.Get(context.Background(), "messages", id)
	require.NoError(t, err)
	got["message"] = "mutated"

	again, err := m.Get(context.Background(), "messages", id)
	require.NoError(t, err)
	assert.Equal(t, "hi", again["message"])
}

func TestMemory_Count(t *testing.T) {
	m := NewMemory()

	n, err := m.Count(context.Background(), "messages")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = m.Create(context.Background(), "messages", domain.Document{"message": "a"})
	require.NoError(t, err)
	_, err = m.Create(context.Background(), "messages", domain.Document{"message": "b"})
	require.NoError(t, err)

	n, err = m.Count(context.Background(), "messages")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSeed_Idempotent(t *testing.T) {
	m := NewMemory()

	require.NoError(t, Seed(context.Background(), m))
	n, err := m.Count(context.Background(), "messages")
	require.NoError(t, err)
	require.Positive(t, n)

	// A second run does not duplicate the demo documents
	require.NoError(t, Seed(context.Background(), m))
	again, err := m.Count(context.Background(), "messages")
	require.NoError(t, err)
	assert.Equal(t, n, again)
}
