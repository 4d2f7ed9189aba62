// Package quack routes tables created with the quack access method into an
// embedded DuckDB database, one file per host database.
//
// An Extension is created once per process from a Config and an engine
// driver. Each host backend session then calls Install, which registers the
// access method, the executor and utility interceptors, and the transaction
// callbacks that keep engine writes in step with host commits and aborts.
//
// Basic usage:
//
//	ext, err := quack.New(cfg, engine.NewDuckDBDriver(cfg.Engine.Threads, cfg.Engine.MemoryLimit), log)
//	if err != nil {
//	    return err
//	}
//	session, err := ext.Install(backend)
package quack

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/quack/internal/engine"
	"github.com/ajitpratap0/quack/internal/hooks"
	"github.com/ajitpratap0/quack/internal/writestate"
	"github.com/ajitpratap0/quack/pkg/config"
	"github.com/ajitpratap0/quack/pkg/errors"
	"github.com/ajitpratap0/quack/pkg/host"
	"github.com/ajitpratap0/quack/pkg/logger"
)

// Extension holds the process-wide state shared by every session.
type Extension struct {
	config *config.Config
	opener *engine.Opener
	logger *zap.Logger
}

// New validates cfg, checks the data directory and prepares the engine
// opener. A directory problem is fatal: the extension cannot load without
// its storage.
func New(cfg *config.Config, driver engine.Driver, log *zap.Logger) (*Extension, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if log == nil {
		log = logger.Get()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid configuration")
	}
	if err := cfg.CheckDataDirectory(); err != nil {
		log.Error("data directory check failed", zap.String("data_dir", cfg.DataDir), zap.Error(err))
		return nil, err
	}
	if driver == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "engine driver is required")
	}

	log = log.With(zap.String("access_method", cfg.AccessMethod))
	log.Info("quack extension loaded", zap.String("data_dir", cfg.DataDir))

	return &Extension{
		config: cfg,
		opener: engine.NewOpener(driver, cfg.DataDir, log),
		logger: log,
	}, nil
}

// Config returns the configuration the extension was created with.
func (e *Extension) Config() *config.Config { return e.config }

// Opener returns the engine opener shared by all sessions.
func (e *Extension) Opener() *engine.Opener { return e.opener }

// Install attaches quack to one backend session.
func (e *Extension) Install(b *host.Backend) (*Session, error) {
	if b == nil || b.Hooks == nil || b.AccessMethods == nil || b.Locker == nil || b.Xact == nil {
		return nil, errors.New(errors.ErrorTypeInternal, "backend is missing required host services")
	}

	log := e.logger.With(zap.String("session_id", b.ID), zap.Uint32("database_id", uint32(b.DatabaseID)))
	runner := hooks.NewQueryRunner(e.opener, b.Locker, b.DatabaseID, log)
	s := &Session{
		ext:     e,
		backend: b,
		cache:   writestate.New(e.opener, b.Locker, e.config.Engine.PreserveInsertOrderOnWrite, log),
		runner:  runner,
		logger:  log,
	}

	if err := b.AccessMethods.Register(s); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to register access method").
			WithDetail("access_method", e.config.AccessMethod)
	}
	if b.Catalog != nil {
		b.Hooks.AddExecutorRun(hooks.NewExecutorInterceptor(b.Catalog, e.config.AccessMethod, runner, log))
	}
	if b.Types != nil {
		b.Hooks.AddProcessUtility(hooks.NewUtilityInterceptor(e.config.AccessMethod, b.Types, e.opener, b.Locker, b.DatabaseID, log))
	}
	b.Hooks.RegisterSubXactCallback(s.onSubXact)
	b.Hooks.RegisterXactCallback(s.onXact)

	log.Debug("installed into backend")
	return s, nil
}
