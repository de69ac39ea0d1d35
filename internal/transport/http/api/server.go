package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vigil/internal/agent/engine"
	"vigil/internal/agent/interfaces"
	"vigil/internal/agent/ports"
	"vigil/internal/coordinator"
	"vigil/internal/logger"
	"vigil/internal/safety"
	"vigil/internal/store/flagstore"
	"vigil/internal/store/gormstore"
	"vigil/internal/worldstate"
)

// EngineService is the slice of the decision engine the HTTP surface needs.
type EngineService interface {
	Status() engine.Status
	Latest(symbol string) (*engine.CycleResult, bool)
	RunCycle(ctx context.Context, symbol string) error
}

// DecisionStore reads and annotates the audit log.
type DecisionStore interface {
	ListDecisions(ctx context.Context, symbol string, limit, offset int) ([]gormstore.DecisionRecord, error)
	CountDecisions(ctx context.Context, symbol string) (int, error)
	GetDecision(ctx context.Context, proposalID string) (gormstore.DecisionRecord, bool, error)
	RecordUserAction(ctx context.Context, proposalID, action string, details map[string]any) error
	MarkExecuted(ctx context.Context, proposalID string) error
	RecordOutcome(ctx context.Context, proposalID string, realizedPnL float64, closedAt time.Time) error
}

// KillSwitchStore toggles and reads the persisted halt flag.
type KillSwitchStore interface {
	Engaged(ctx context.Context) (bool, error)
	Engage(ctx context.Context, reason, setBy string) error
	Disengage(ctx context.Context) error
	KillSwitchStatus(ctx context.Context) (flagstore.Status, error)
}

// SafetyGate re-checks a proposal immediately before execution.
type SafetyGate interface {
	Check(ctx context.Context, p *coordinator.TradeProposal, snap *worldstate.Snapshot) safety.Result
}

// ServerConfig wires the HTTP surface's collaborators.
type ServerConfig struct {
	Addr     string
	Engine   EngineService
	Store    DecisionStore
	Flags    KillSwitchStore
	Gate     SafetyGate
	Builder  interfaces.SnapshotBuilder
	Executor ports.Executor

	Timeframe string
}

// Server exposes the decision pipeline over HTTP: status, proposals, the
// audit log, user actions, execution and the kill switch.
type Server struct {
	addr   string
	router *gin.Engine
	cfg    ServerConfig
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil || cfg.Store == nil {
		return nil, errors.New("http server requires engine and store")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9982"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{addr: cfg.Addr, router: router, cfg: cfg}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api/v1")
	api.GET("/status", s.handleStatus)
	api.GET("/proposals/latest", s.handleLatestProposal)
	api.POST("/cycles/run", s.handleRunCycle)
	api.GET("/decisions", s.handleListDecisions)
	api.GET("/decisions/:id", s.handleGetDecision)
	api.POST("/decisions/:id/action", s.handleUserAction)
	api.POST("/decisions/:id/outcome", s.handleOutcome)
	api.POST("/decisions/:id/execute", s.handleExecute)
	api.GET("/killswitch", s.handleKillSwitchStatus)
	api.POST("/killswitch", s.handleKillSwitchToggle)
}

// requestLogger records API calls so manual operator actions stay
// traceable.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	if s == nil {
		return nil
	}
	return s.router
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
