// Package api provides the HTTP REST API and WebSocket server for the
// camera bridge.
//
// It exposes the known cameras, their reported attributes and the command
// path to operators and dashboards.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-cameras/internal/audit"
	"github.com/nerrad567/gray-logic-cameras/internal/bridges/camera"
	"github.com/nerrad567/gray-logic-cameras/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-cameras/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// CameraService is the part of the camera bridge the API drives.
// Satisfied by *camera.Bridge.
type CameraService interface {
	Devices() []camera.DeviceView
	Device(id string) (camera.DeviceView, bool)
	Execute(ctx context.Context, deviceID string, cmd camera.Command) error
	Reconcile(ctx context.Context, infos []camera.RawDeviceInfo) camera.ReconcileSummary
	Rescan(ctx context.Context) camera.ReconcileSummary
	SetAuthOverride(ctx context.Context, id string, mode *camera.AuthMode) error
	Metrics() camera.BridgeMetrics
}

// AuditTrail records API actions and lists the recorded trail.
// Satisfied by *audit.Recorder.
type AuditTrail interface {
	Record(ctx context.Context, deviceID, action, source string, details map[string]any, err error)
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// ConnectionChecker reports whether a backing connection is up.
type ConnectionChecker interface {
	IsConnected() bool
}

// DBStatser exposes connection pool statistics.
type DBStatser interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	JWT         config.JWTConfig
	Logger      *logging.Logger
	Cameras     CameraService
	Audit       AuditTrail        // optional
	MQTT        ConnectionChecker // optional
	DB          DBStatser         // optional
	ExternalHub *Hub              // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server for the camera bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	jwtSecret string
	logger    *logging.Logger
	cameras   CameraService
	audit     AuditTrail
	mqtt      ConnectionChecker
	db        DBStatser
	version   string
	startTime time.Time

	server   *http.Server
	listener net.Listener
	hub      *Hub
	cancel   context.CancelFunc // cancels background goroutines on Close()
	mu       sync.Mutex
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns an error if the logger, camera service or JWT secret is missing.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Cameras == nil {
		return nil, fmt.Errorf("camera service is required")
	}
	if deps.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		jwtSecret: deps.JWT.Secret,
		logger:    deps.Logger.Component("api"),
		cameras:   deps.Cameras,
		audit:     deps.Audit,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       deps.ExternalHub,
	}, nil
}

// Start binds the listener and serves HTTP in a background goroutine.
//
// A bind failure (port in use, bad host) is returned synchronously. The
// server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())
	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	cancel := s.cancel
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	// Stops the hub loop if this server owns it.
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
