package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/devlogs/devlogs-api/internal/app/auth"
	"github.com/devlogs/devlogs-api/internal/app/devlogs"
	"github.com/devlogs/devlogs-api/internal/app/projects"
	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/platform/logging"
	"github.com/devlogs/devlogs-api/internal/ports/out/clock"
	"github.com/devlogs/devlogs-api/internal/ports/out/idempotency"
)

// Server is the HTTP adapter over the application services.
type Server struct {
	Auth     *auth.Service
	Projects *projects.Service
	Logs     *devlogs.Service
	// Idem is optional; without it Idempotency-Key headers are ignored.
	Idem  idempotency.Store
	Clock clock.Clock
	Log   *slog.Logger
}

func NewServer(
	authSvc *auth.Service,
	projectsSvc *projects.Service,
	logsSvc *devlogs.Service,
	idem idempotency.Store,
	clk clock.Clock,
	log *slog.Logger,
) *Server {
	if log == nil {
		log = logging.Discard()
	}
	return &Server{
		Auth:     authSvc,
		Projects: projectsSvc,
		Logs:     logsSvc,
		Idem:     idem,
		Clock:    clk,
		Log:      log,
	}
}

// caller returns the authenticated identity, writing a 401 when it is absent.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject", nil)
		return domain.Identity{}, false
	}
	return id, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeAppError(w, r, s.Log, err)
}
