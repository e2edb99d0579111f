package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/msgvault/internal/account"
	"github.com/matheus3301/msgvault/internal/bus"
	"github.com/matheus3301/msgvault/internal/config"
	"github.com/matheus3301/msgvault/internal/engine"
	"github.com/matheus3301/msgvault/internal/engines"
	"github.com/matheus3301/msgvault/internal/httpd"
	"github.com/matheus3301/msgvault/internal/lock"
	"github.com/matheus3301/msgvault/internal/logging"
	"github.com/matheus3301/msgvault/internal/status"
	"github.com/matheus3301/msgvault/internal/store"
)

// Params holds the resolved account configuration passed to the fx module.
type Params struct {
	AccountName string
	Listen      string // optional override for testing; empty = use config
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideEngine,
			provideStore,
			provideHandlers,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

// provideConfig loads the global config; a missing file is a normal
// first run and falls back to defaults.
func provideConfig() *config.Config {
	cfg, err := config.Load(account.ConfigPath())
	if err != nil {
		return config.Default()
	}
	return cfg
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(account.LogPath(p.AccountName), p.AccountName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := account.EnsureDir(p.AccountName); err != nil {
		return nil, err
	}
	logger.Info("acquiring account lock", zap.String("account", p.AccountName))
	l, err := lock.Acquire(account.Dir(p.AccountName))
	if err != nil {
		return nil, err
	}
	logger.Info("account lock acquired")
	return l, nil
}

// provideEngine opens the configured backend. It depends on the lock so
// no engine touches the account directory before the daemon owns it.
func provideEngine(p Params, cfg *config.Config, _ *lock.Lock, logger *zap.Logger) (engine.Engine, error) {
	e, err := engines.Open(context.Background(), cfg.Engine, p.AccountName)
	if err != nil {
		return nil, err
	}
	logger.Info("engine opened", zap.String("type", engines.Kind(cfg.Engine)))
	return e, nil
}

func provideStore(e engine.Engine) *store.Store {
	return store.New(e)
}

func provideHandlers(p Params, cfg *config.Config, e engine.Engine, m *status.Machine, b *bus.Bus, logger *zap.Logger) *httpd.Handlers {
	return httpd.New(e, p.AccountName, engines.Kind(cfg.Engine), m, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, e engine.Engine, st *store.Store, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
					_ = machine.Transition(status.Error)
				}
			}()

			logStoreSummary(context.Background(), st, logger)
			_ = machine.Transition(status.Ready)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			_ = machine.Transition(status.Closing)
			srv.Stop(ctx)
			if err := e.Close(); err != nil {
				logger.Warn("error closing engine", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

func logStoreSummary(ctx context.Context, st *store.Store, logger *zap.Logger) {
	chats, err := st.Chats().Count(ctx)
	if err != nil {
		logger.Warn("count chats", zap.Error(err))
		return
	}
	contacts, err := st.Contacts().Count(ctx)
	if err != nil {
		logger.Warn("count contacts", zap.Error(err))
		return
	}
	logger.Info("store opened", zap.Int("chats", chats), zap.Int("contacts", contacts))
}
