package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"vigil/internal/agent/engine"
	"vigil/internal/config"
	"vigil/internal/logger"
	"vigil/internal/store/flagstore"
	"vigil/internal/store/gormstore"
	apihttp "vigil/internal/transport/http/api"
)

// App owns application-level orchestration: dependency assembly, the
// decision engine loop and the HTTP surface.
type App struct {
	cfg     *config.Config
	engine  *engine.Engine
	httpSrv *apihttp.Server
	store   *gormstore.Store
	flags   *flagstore.FlagStore
	Summary *StartupSummary
}

// NewApp builds the application object without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run starts the engine and the HTTP server, blocking until the context
// is cancelled or either fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	if a.engine == nil {
		return fmt.Errorf("engine not initialized")
	}
	defer a.closeStores()

	group, ctx := errgroup.WithContext(ctx)
	if a.httpSrv != nil {
		group.Go(func() error {
			if err := a.httpSrv.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		return a.engine.Run(ctx)
	})
	return group.Wait()
}

// Engine exposes the decision engine for test and replay harnesses.
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

func (a *App) closeStores() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("closing decision store: %v", err)
		}
	}
	if a.flags != nil {
		if err := a.flags.Close(); err != nil {
			logger.Warnf("closing flag store: %v", err)
		}
	}
}
