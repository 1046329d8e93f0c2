package daemon

import (
	"context"
	"time"

	"github.com/kanux/kanuxd/internal/app"
	"github.com/kanux/kanuxd/internal/bus"
	"github.com/kanux/kanuxd/internal/config"
	"github.com/kanux/kanuxd/internal/lock"
	"github.com/kanux/kanuxd/internal/logging"
	"github.com/kanux/kanuxd/internal/netmon"
	"github.com/kanux/kanuxd/internal/profile"
	"github.com/kanux/kanuxd/internal/remote"
	"github.com/kanux/kanuxd/internal/status"
	"github.com/kanux/kanuxd/internal/store"
	"github.com/kanux/kanuxd/internal/syncer"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
	Config  *config.Config
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideDriver,
			provideLock,
			provideStore,
			provideRemote,
			provideMonitor,
			provideSyncEngine,
			provideMessageService,
			provideTicketService,
			provideDirectoryService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideDriver(m *status.Machine, b *bus.Bus, logger *zap.Logger) *status.Driver {
	return status.NewDriver(m, b, logger)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(p.Profile)
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore opens the durable store, falling back to a memory-only store
// when the disk copy cannot be opened. The fallback keeps the daemon usable
// for the session; nothing written there survives a restart. The machine is
// moved to Degraded directly because providers run before the driver
// subscribes to the bus.
func provideStore(p Params, b *bus.Bus, machine *status.Machine, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.Profile)
	db, err := store.Open(dbPath)
	if err == nil {
		var result *store.MigrateResult
		result, err = db.Migrate()
		if err == nil {
			if result.Changed {
				logger.Info("migrations applied", zap.Uint("version", result.Version))
			} else {
				logger.Info("migrations up to date", zap.Uint("version", result.Version))
			}
			logger.Info("store initialized", zap.String("path", dbPath))
			return db, nil
		}
		_ = db.Close()
	}

	logger.Error("durable store unavailable, using memory-only fallback",
		zap.String("path", dbPath), zap.Error(err))
	mem, merr := store.OpenMemory()
	if merr != nil {
		return nil, merr
	}
	if _, merr := mem.Migrate(); merr != nil {
		_ = mem.Close()
		return nil, merr
	}
	if terr := machine.Transition(status.Degraded); terr != nil {
		logger.Warn("degraded transition refused", zap.Error(terr))
	}
	b.Publish(bus.Event{Kind: bus.StoreDegraded, Timestamp: time.Now(), Payload: err.Error()})
	return mem, nil
}

func provideRemote(p Params) remote.Store {
	return remote.NewClient(p.Config.Remote.BaseURL, p.Config.Remote.APIKey, p.Config.RemoteTimeout())
}

func provideMonitor(p Params, rs remote.Store, b *bus.Bus, logger *zap.Logger) *netmon.Monitor {
	return netmon.NewMonitor(netmon.NewRemoteProber(rs), p.Config.ProbeInterval(), b, logger)
}

func provideSyncEngine(p Params, db *store.DB, rs remote.Store, mon *netmon.Monitor, b *bus.Bus, logger *zap.Logger) *syncer.Engine {
	return syncer.NewEngine(db, rs, mon, b, logger, syncer.Policy{
		SweepInterval: p.Config.SweepInterval(),
		MaxAttempts:   p.Config.Sync.MaxAttempts,
	})
}

func provideMessageService(p Params, db *store.DB, rs remote.Store, mon *netmon.Monitor, b *bus.Bus, logger *zap.Logger) *app.MessageService {
	return app.NewMessageService(db, rs, mon, b, logger, p.Config.Sync.MessagePageSize)
}

func provideTicketService(p Params, db *store.DB, rs remote.Store, mon *netmon.Monitor, b *bus.Bus, logger *zap.Logger) *app.TicketService {
	return app.NewTicketService(db, rs, mon, b, logger, p.Config.Sync.TicketPageSize)
}

func provideDirectoryService(db *store.DB, rs remote.Store, mon *netmon.Monitor, logger *zap.Logger) *app.DirectoryService {
	return app.NewDirectoryService(db, rs, mon, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, driver *status.Driver, mon *netmon.Monitor, engine *syncer.Engine, machine *status.Machine, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// The driver must be consuming before the first probe fires so
			// the boot transition is not missed.
			driver.Start(context.Background())
			mon.Start(context.Background())
			engine.Start(context.Background())

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("api server error", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			engine.Stop()
			mon.Stop()
			driver.Stop()
			srv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
