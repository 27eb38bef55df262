package app

import (
	"context"
	"os"

	"github.com/crmkit/wachat/internal/bus"
	"github.com/crmkit/wachat/internal/cache"
	"github.com/crmkit/wachat/internal/chat"
	"github.com/crmkit/wachat/internal/config"
	"github.com/crmkit/wachat/internal/gateway"
	"github.com/crmkit/wachat/internal/leads"
	"github.com/crmkit/wachat/internal/lock"
	"github.com/crmkit/wachat/internal/logging"
	"github.com/crmkit/wachat/internal/session"
	"github.com/crmkit/wachat/internal/status"
	intsync "github.com/crmkit/wachat/internal/sync"
	"github.com/crmkit/wachat/internal/tui"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module returns the fx module for the client, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("wachat",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideRegistry,
			provideCache,
			provideGatewayClient,
			provideStream,
			provideLeadsTracker,
			provideEngine,
			provideUI,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideRegistry(cfg *config.Config) *chat.Registry {
	return chat.NewRegistry(cfg.UI.DefaultAvatar)
}

func provideCache() *cache.Store {
	return cache.New()
}

func provideGatewayClient(cfg *config.Config, logger *zap.Logger) *gateway.Client {
	return gateway.NewClient(cfg.Gateway.APIURL, logger)
}

func provideStream(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *gateway.Stream {
	return gateway.NewStream(cfg.Gateway.WSURL, b, logger)
}

func provideLeadsTracker(cfg *config.Config, logger *zap.Logger) *leads.Tracker {
	client := leads.NewClient(cfg.Leads.APIURL, logger)
	return leads.NewTracker(client, cfg.Leads.CountryCode, logger)
}

func provideEngine(gw *gateway.Client, reg *chat.Registry, store *cache.Store, b *bus.Bus, machine *status.Machine, cfg *config.Config, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(gw, reg, store, b, machine, cfg.Sync, logger)
}

func provideUI(p Params, b *bus.Bus, engine *intsync.Engine, tracker *leads.Tracker, cfg *config.Config, logger *zap.Logger) *tui.App {
	return tui.NewApp(b, engine, tracker, p.SessionName, cfg.UI.PageSize, logger)
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, ui *tui.App, engine *intsync.Engine, stream *gateway.Stream, tracker *leads.Tracker, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			engine.Start(context.Background())
			stream.Start(context.Background())

			go func() {
				if err := tracker.Load(context.Background()); err != nil {
					logger.Warn("lead list unavailable", zap.Error(err))
				}
			}()

			ui.SetOnStop(func() { _ = shutdowner.Shutdown() })
			go func() {
				if err := ui.Run(); err != nil {
					logger.Error("ui error", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()

			return nil
		},
		OnStop: func(context.Context) error {
			ui.Stop()
			stream.Stop()
			engine.Stop()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}
