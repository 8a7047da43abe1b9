package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/jmartens/docpulse/internal/config"
	"github.com/jmartens/docpulse/internal/domain"
)

// Supervisor owns the process's single Server instance. Start is safe to
// call from multiple initialization hooks: the first call constructs and
// launches the server, every later call returns the running instance
// unchanged and ignores its arguments.
type Supervisor struct {
	mu     sync.Mutex
	server *Server
}

func NewSupervisor() *Supervisor {
	return &Supervisor{}
}

// Start lazily constructs the server and begins listening in the background.
// When cfg.Disabled is set the server is constructed but the transport never
// starts, so hook wiring against its hub still works.
func (sv *Supervisor) Start(cfg *config.Config, provider domain.IdentityProvider, clock clockwork.Clock) *Server {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	if sv.server != nil {
		slog.Warn("Realtime server already running, ignoring start")
		return sv.server
	}

	srv := NewServer(cfg, provider, clock)
	sv.server = srv

	if cfg.Disabled {
		slog.Info("Realtime transport disabled, not listening")
		return srv
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Realtime server error", "error", err)
		}
	}()

	return srv
}

// Shutdown stops the running server, if any.
func (sv *Supervisor) Shutdown(ctx context.Context) error {
	sv.mu.Lock()
	srv := sv.server
	sv.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
