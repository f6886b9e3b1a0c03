// Package api provides the HTTP REST API and WebSocket server for the PWM service.
//
// It exposes output state, device frequency and all-off operations, plus a
// WebSocket feed of state changes for dashboards and Gray Logic Core.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	manager.AddObserver(server)
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
	"time"

	"github.com/nerrad567/gray-logic-pwm/internal/bridges/pwm"
	"github.com/nerrad567/gray-logic-pwm/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-pwm/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-pwm/internal/output"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Outputs is the output manager surface the API drives.
// *output.Manager satisfies it.
type Outputs interface {
	Execute(ctx context.Context, outputID string, cmd output.Command) (output.Snapshot, error)
	Output(id string) (output.Snapshot, error)
	Outputs() []output.Snapshot
	Devices() []output.DeviceInfo
	Device(id string) (output.DeviceInfo, error)
	SetFrequency(ctx context.Context, deviceID string, hz int) error
	Frequency(ctx context.Context, deviceID string) (int, error)
	AllOff(ctx context.Context, deviceID string) ([]output.Snapshot, error)
	Probe(ctx context.Context) map[string]error
}

// HistoryReader returns recorded state changes. *output.SQLiteStateStore
// satisfies it.
type HistoryReader interface {
	GetHistory(ctx context.Context, outputID string, limit int) ([]output.HistoryEntry, error)
}

// ConnectionStatus reports broker connectivity. *mqtt.Client satisfies it.
type ConnectionStatus interface {
	IsConnected() bool
}

// BridgeMetricsProvider exposes MQTT bridge counters. *pwm.Bridge satisfies it.
type BridgeMetricsProvider interface {
	GetMetrics() pwm.BridgeMetrics
}

// DBStats exposes connection pool statistics. *database.DB satisfies it.
type DBStats interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Outputs  Outputs
	History  HistoryReader         // optional: enables /outputs/{id}/history
	MQTT     ConnectionStatus      // optional: reported in /metrics
	Bridge   BridgeMetricsProvider // optional: reported in /metrics
	DB       DBStats               // optional: reported in /metrics
	Version  string
}

// Server is the HTTP API server for the PWM service.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	outputs   Outputs
	history   HistoryReader
	mqtt      ConnectionStatus
	bridge    BridgeMetricsProvider
	db        DBStats
	version   string
	startTime time.Time
	server    *http.Server
	listener  net.Listener
	hub       *Hub
	tickets   *ticketStore
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The WebSocket hub exists from construction so the server can be
// registered as an output observer before Start.
//
// Parameters:
//   - deps: Required dependencies (logger, outputs)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Outputs == nil {
		return nil, fmt.Errorf("output manager is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		outputs:   deps.Outputs,
		history:   deps.History,
		mqtt:      deps.MQTT,
		bridge:    deps.Bridge,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger),
		tickets:   newTicketStore(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It binds the listener synchronously so address errors are returned,
// then serves in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for background goroutines
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
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

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// OutputChanged relays an output state change to WebSocket subscribers.
func (s *Server) OutputChanged(snap output.Snapshot) {
	s.hub.Broadcast(ChannelOutputState, snap)
}

// FrequencyChanged relays a device frequency change to WebSocket subscribers.
func (s *Server) FrequencyChanged(deviceID string, hz int) {
	s.hub.Broadcast(ChannelDeviceFrequency, frequencyResponse{DeviceID: deviceID, Frequency: hz})
}
