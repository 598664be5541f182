// Package server wires the add-on keeper together: storage, vault, manifest
// reloads, sync planning, the scheduler and the gRPC control plane. It
// runs until the process receives SIGINT, SIGTERM or SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/addonkeeper/internal/clock"
	"github.com/dmitrijs2005/addonkeeper/internal/logging"
	"github.com/dmitrijs2005/addonkeeper/internal/server/archive"
	"github.com/dmitrijs2005/addonkeeper/internal/server/config"
	"github.com/dmitrijs2005/addonkeeper/internal/server/fetcher"
	"github.com/dmitrijs2005/addonkeeper/internal/server/notify"
	"github.com/dmitrijs2005/addonkeeper/internal/server/reload"
	"github.com/dmitrijs2005/addonkeeper/internal/server/remote"
	"github.com/dmitrijs2005/addonkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/addonkeeper/internal/server/scheduler"
	"github.com/dmitrijs2005/addonkeeper/internal/server/services"
	"github.com/dmitrijs2005/addonkeeper/internal/server/syncplan"
	"github.com/dmitrijs2005/addonkeeper/internal/server/vault"

	gs "github.com/dmitrijs2005/addonkeeper/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	notifier    notify.Notifier
	scheduler   *scheduler.Scheduler
	addons      *services.AddonService
	sync        *services.SyncService
	grpc        *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)

	if c.SyncInterval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive, got %s", c.SyncInterval)
	}

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db, repomanager: rm}

	v := vault.New([]byte(c.VaultKey), c.SessionKeyTTL)
	reconciler := reload.NewReconciler(fetcher.New(c.HTTPTimeout, c.ManifestCacheTTL, logger), c.AutoSelect, logger)
	rc := remote.NewClient(c.RemoteAPIURL, c.HTTPTimeout, c.RemoteRateLimit, c.RemoteBurst, logger)

	app.notifier = notify.Nop{}
	if c.WebhookURL != "" {
		app.notifier = notify.NewWebhookNotifier(c.WebhookURL, c.HTTPTimeout, logger)
	}

	var arch archive.Archive = archive.Nop{}
	if c.S3Bucket != "" {
		arch = archive.NewS3Archive(c)
	}

	cadence := scheduler.Cadence{Interval: c.SyncInterval, Jitter: c.SyncJitter}
	app.scheduler = scheduler.New(clock.Real(), cadence, app.runAccount, logger)

	app.addons = services.NewAddonService(db, rm, v, reconciler, arch, app.notifier, logger)
	app.sync = services.NewSyncService(db, rm, v, syncplan.New(syncplan.DefaultProtectedNames), rc, app.notifier, clock.Real(), logger)

	app.grpc = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, gs.Services{
		Sessions: services.NewSessionService(db, rm, v, app.scheduler, c.SecretKey, c.AccessTokenValidityDuration, logger),
		Groups:   services.NewGroupService(db, rm),
		Addons:   app.addons,
		Users:    services.NewUserService(db, rm, v),
		Sync:     app.sync,
	}, c.SecretKey)

	return app, nil
}

// runAccount is the scheduled job for one account: an optional manifest
// reload followed by a sync of every user.
func (app *App) runAccount(ctx context.Context, accountID string) error {
	var errs []error
	if app.config.ReloadBeforeSync {
		if _, err := app.addons.ReloadAccount(ctx, accountID); err != nil {
			errs = append(errs, fmt.Errorf("reload: %w", err))
		}
	}
	if _, err := app.sync.SyncAccount(ctx, accountID); err != nil {
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}
	return errors.Join(errs...)
}

func (app *App) scheduleAccounts(ctx context.Context) error {
	accounts, err := app.repomanager.Accounts(app.db).List(ctx)
	if err != nil {
		return err
	}
	for _, a := range accounts {
		app.scheduler.Add(a.ID)
	}
	app.logger.Info(ctx, "accounts scheduled", "count", len(accounts))
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.scheduleAccounts(ctx); err != nil {
		app.logger.Error(ctx, "scheduling accounts failed", "error", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			app.logger.Error(ctx, err.Error())
		}
		cancelFunc()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.grpc.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
		}
		cancelFunc()
	}()

	wg.Wait()

	if w, ok := app.notifier.(*notify.WebhookNotifier); ok {
		w.Wait()
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
