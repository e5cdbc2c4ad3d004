package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/bridges/insteon"
	"github.com/nerrad567/gray-logic-insteon/internal/device"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-insteon/internal/scheduler"
	"github.com/nerrad567/gray-logic-insteon/internal/traffic"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Commander runs a command against a raw target and returns its ack. The
// Insteon bridge implements it.
type Commander interface {
	Execute(ctx context.Context, cmd insteon.CommandMessage, rawTarget string) insteon.AckMessage
}

// ScheduleView is the read side of the scheduler.
type ScheduleView interface {
	Snapshot() []scheduler.Entry
	Len() int
}

// JournalReader reads the traffic journal.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]traffic.JournalEntry, error)
}

// Deps holds the dependencies required by the API server. Commands,
// Schedule and Journal are optional; the endpoints that need a missing one
// answer 503.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Registry *device.Registry
	Commands Commander
	Schedule ScheduleView
	Journal  JournalReader

	// Hub is the traffic stream. If nil the server creates its own, which
	// then only carries command acks.
	Hub     *Hub
	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	registry *device.Registry
	commands Commander
	schedule ScheduleView
	journal  JournalReader
	hub      *Hub
	version  string
	started  time.Time

	server *http.Server
	cancel context.CancelFunc
}

// New creates an API server. It does not listen until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("device registry is required")
	}
	hub := deps.Hub
	if hub == nil {
		hub = NewHub(time.Duration(deps.Config.PingInterval)*time.Second, deps.Logger)
	}
	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		registry: deps.Registry,
		commands: deps.Commands,
		schedule: deps.Schedule,
		journal:  deps.Journal,
		hub:      hub,
		version:  deps.Version,
		started:  time.Now(),
	}, nil
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in the background. Binding happens
// before Start returns so a port conflict is reported to the caller.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.ReadTimeout) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.WriteTimeout) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.IdleTimeout) * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	s.logger.Info("API server listening", "address", ln.Addr().String(), "auth", s.cfg.JWTSecret != "")
	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}
