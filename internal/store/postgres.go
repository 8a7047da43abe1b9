package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmartens/docpulse/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id         UUID NOT NULL,
    body       JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, id)
)`

// Postgres stores documents as JSONB rows. Hooks fire in their own goroutine
// after the write has committed, keeping the hook path non-blocking relative
// to the store's transaction.
type Postgres struct {
	pool *pgxpool.Pool

	hookMu sync.RWMutex
	hooks  map[string][]domain.ChangeHook
}

// Connect opens a pool against databaseURL and bootstraps the schema.
func Connect(ctx context.Context, databaseURL string) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}

	slog.Info("Database connected", "min_conns", poolCfg.MinConns, "max_conns", poolCfg.MaxConns)
	return &Postgres{pool: pool, hooks: make(map[string][]domain.ChangeHook)}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) AfterChange(collection string, hook domain.ChangeHook) {
	p.hookMu.Lock()
	defer p.hookMu.Unlock()
	p.hooks[collection] = append(p.hooks[collection], hook)
}

func (p *Postgres) Create(ctx context.Context, collection string, doc domain.Document) (domain.Document, error) {
	id := uuid.New()
	stored := make(domain.Document, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	stored["id"] = id.String()

	body, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3)`,
		collection, id, body,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}

	p.fireAfterChange(collection, stored, domain.OperationCreate)
	return stored, nil
}

func (p *Postgres) Update(ctx context.Context, collection, id string, doc domain.Document) (domain.Document, error) {
	docID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid document id %q: %w", id, err)
	}

	stored := make(domain.Document, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	stored["id"] = id

	body, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	tag, err := p.pool.Exec(ctx,
		`UPDATE documents SET body = $3, updated_at = now() WHERE collection = $1 AND id = $2`,
		collection, docID, body,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}

	p.fireAfterChange(collection, stored, domain.OperationUpdate)
	return stored, nil
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	docID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid document id %q: %w", id, err)
	}

	var body []byte
	err = p.pool.QueryRow(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND id = $2`,
		collection, docID,
	).Scan(&body)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}

	var doc domain.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return doc, nil
}

func (p *Postgres) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx,
		`SELECT count(*) FROM documents WHERE collection = $1`, collection,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

func (p *Postgres) fireAfterChange(collection string, doc domain.Document, op domain.Operation) {
	p.hookMu.RLock()
	hooks := p.hooks[collection]
	p.hookMu.RUnlock()

	// Hooks must not block the caller's write path, and each gets its own
	// copy so the caller may mutate the returned document freely.
	for _, hook := range hooks {
		go hook(maps.Clone(doc), op)
	}
}
