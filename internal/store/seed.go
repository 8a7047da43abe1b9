package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmartens/docpulse/internal/domain"
)

// Store is the document-store surface shared by the adapters.
type Store interface {
	domain.HookRegistrar
	Create(ctx context.Context, collection string, doc domain.Document) (domain.Document, error)
	Update(ctx context.Context, collection, id string, doc domain.Document) (domain.Document, error)
	Get(ctx context.Context, collection, id string) (domain.Document, error)
	Count(ctx context.Context, collection string) (int, error)
}

// Seed inserts demo documents when the messages collection is empty, so a
// fresh development instance has something to broadcast.
func Seed(ctx context.Context, s Store) error {
	n, err := s.Count(ctx, "messages")
	if err != nil {
		return fmt.Errorf("failed to count messages: %w", err)
	}
	if n > 0 {
		return nil
	}

	messages := []domain.Document{
		{"message": "Welcome to docpulse", "user": "1"},
		{"message": "Realtime events are live", "user": "2"},
	}
	for _, doc := range messages {
		if _, err := s.Create(ctx, "messages", doc); err != nil {
			return fmt.Errorf("failed to seed message: %w", err)
		}
	}

	if _, err := s.Create(ctx, "notifications", domain.Document{
		"message": "You have a new follower",
		"user":    "1",
	}); err != nil {
		return fmt.Errorf("failed to seed notification: %w", err)
	}

	slog.Info("Seeded demo documents")
	return nil
}
