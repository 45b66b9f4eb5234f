package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tdex-network/fiatln-daemon/internal/config"
	"github.com/tdex-network/fiatln-daemon/internal/core/application/pubsub"
	"github.com/tdex-network/fiatln-daemon/internal/core/application/trade"
	"github.com/tdex-network/fiatln-daemon/internal/core/bus"
	"github.com/tdex-network/fiatln-daemon/internal/core/ports"
	"github.com/tdex-network/fiatln-daemon/internal/infrastructure/exchange"
	"github.com/tdex-network/fiatln-daemon/internal/infrastructure/lightning"
	pubsubinfra "github.com/tdex-network/fiatln-daemon/internal/infrastructure/pubsub"
	dbbadger "github.com/tdex-network/fiatln-daemon/internal/infrastructure/storage/db/badger"
	"github.com/tdex-network/fiatln-daemon/internal/infrastructure/storage/db/inmemory"
	postgresdb "github.com/tdex-network/fiatln-daemon/internal/infrastructure/storage/db/pg"
	httpinterface "github.com/tdex-network/fiatln-daemon/internal/interfaces/http"
	"github.com/tdex-network/fiatln-daemon/pkg/stats"
)

const (
	// stopGracePeriod is the time given to the order tasks to reach a
	// persisted state before the adapters are closed.
	stopGracePeriod = 10 * time.Second
	statsFile       = "stats"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	initLogger()

	settings := config.Settings()
	datadir := config.GetDatadir()

	repoManager, err := newRepoManager()
	if err != nil {
		log.WithError(err).Fatal("failed to open db")
	}

	ps := pubsubinfra.NewService(0, pubsub.Events()...)
	webhookSvc := pubsub.NewService(ps, settings)
	webhooks, _ := config.Webhooks()
	for _, w := range webhooks {
		if _, err := webhookSvc.AddWebhook(
			context.Background(), w.Event, w.Endpoint, w.Secret,
		); err != nil {
			log.WithError(err).Fatalf("failed to add webhook for %s", w.Event)
		}
	}

	router := bus.NewRouter()

	exchangeSvc, err := exchange.NewService(exchange.Opts{
		Publisher:      router,
		RequestTimeout: time.Duration(config.GetInt(config.ExchangeRequestTimeoutKey)) * time.Second,
		RateLimit:      config.GetInt(config.ExchangeRateLimitKey),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to init exchange adapter")
	}

	lightningSvc, err := lightning.NewService(lightning.Opts{
		Publisher:  router,
		GatewayURL: config.GetString(config.LightningURLKey),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to init lightning adapter")
	}

	backend, err := trade.NewBackend(trade.BackendOpts{
		RepoManager:      repoManager,
		Publisher:        router,
		Notifier:         webhookSvc,
		ConnectionStatus: exchangeSvc,
		Settings:         settings,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to init backend")
	}

	httpSvc, err := httpinterface.NewService(httpinterface.ServiceOpts{
		Address:          fmt.Sprintf(":%d", config.GetInt(config.HTTPListeningPortKey)),
		Publisher:        router,
		Settings:         settings,
		WebhookSvc:       webhookSvc,
		ConnectionStatus: exchangeSvc,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to init http interface")
	}

	for _, r := range []bus.Registrant{backend, exchangeSvc, lightningSvc, httpSvc} {
		if err := router.AddHandler(r); err != nil {
			log.WithError(err).Fatal("failed to register message handlers")
		}
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGTERM, syscall.SIGINT,
	)
	defer stop()

	if interval := config.GetInt(config.StatsIntervalKey); interval > 0 {
		stats.EnableMemoryStatistics(
			ctx, time.Duration(interval)*time.Second, filepath.Join(datadir, statsFile),
		)
	}

	// Messages published by the backend at startup are queued until the
	// router starts, so that every component is registered by then.
	if err := backend.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start backend")
	}
	router.StartMessaging()
	lightningSvc.Start()

	if err := httpSvc.Start(); err != nil {
		log.WithError(err).Fatal("failed to start http interface")
	}

	log.Info("fiatln daemon started")
	<-ctx.Done()
	log.Info("shutting down daemon")

	httpSvc.Stop()
	stopBackend(backend)

	var g errgroup.Group
	g.Go(func() error {
		exchangeSvc.Close()
		return nil
	})
	g.Go(func() error {
		lightningSvc.Close()
		return nil
	})
	g.Go(func() error {
		webhookSvc.Close()
		return nil
	})
	//nolint
	g.Wait()

	repoManager.Close()
	log.Info("daemon stopped")
}

// stopBackend waits at most stopGracePeriod for the order tasks to stop.
// Those still waiting for a reply are resumed at restart.
func stopBackend(backend *trade.Backend) {
	done := make(chan struct{})
	go func() {
		backend.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopGracePeriod):
		log.Warn("order tasks did not stop in time")
	}
}

func initLogger() {
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	logFile := config.GetLogFile()
	if len(logFile) <= 0 {
		return
	}
	fileWriter := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    config.GetInt(config.LogMaxSizeMBKey),
		MaxBackups: config.GetInt(config.LogMaxBackupsKey),
		MaxAge:     config.GetInt(config.LogMaxAgeDaysKey),
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
}

func newRepoManager() (ports.RepoManager, error) {
	switch dbType := config.GetString(config.DBTypeKey); dbType {
	case config.DBInMemory:
		return inmemory.NewRepoManager(), nil
	case config.DBPostgres:
		return postgresdb.NewRepoManager(postgresdb.DbConfig{
			DataSourceURL: config.GetString(config.PgConnectAddr),
		})
	default:
		dbDir := filepath.Join(config.GetDatadir(), config.DbLocation)
		return dbbadger.NewRepoManager(dbDir, log.StandardLogger())
	}
}
