// @title AssetWatch Alert API
// @version 1.0
// @description Alert rule engine for the asset-tracking domain: evaluation, operator actions, preferences and escalation.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pratik-mahalle/assetwatch/internal/api/handlers"
	"github.com/pratik-mahalle/assetwatch/internal/api/router"
	"github.com/pratik-mahalle/assetwatch/internal/config"
	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
	"github.com/pratik-mahalle/assetwatch/internal/domain/asset"
	"github.com/pratik-mahalle/assetwatch/internal/domain/notification"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/logger"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/validator"
	"github.com/pratik-mahalle/assetwatch/internal/providers"
	"github.com/pratik-mahalle/assetwatch/internal/repository/memory"
	"github.com/pratik-mahalle/assetwatch/internal/repository/postgres"
	"github.com/pratik-mahalle/assetwatch/internal/services"
	"github.com/pratik-mahalle/assetwatch/internal/worker"
	"github.com/pratik-mahalle/assetwatch/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	if err := run(cfg, log); err != nil {
		log.ErrorWithErr(err, "Server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	var db *sql.DB
	if cfg.Database.Driver != "memory" {
		var err error
		db, err = postgres.New(cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()

		applied, err := postgres.RunMigrations(db, postgres.Dialect(cfg.Database.Driver), migrations.GetFS())
		if err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.WithFields(map[string]interface{}{
			"driver":  cfg.Database.Driver,
			"applied": applied,
		}).Info("Database ready")
	}

	alerts, prefs := stores(cfg, db)
	snapshots := snapshotProvider(cfg, db)
	dispatcher := services.NewNotificationService(senders(cfg, log), publisher(cfg, log), log)

	alertService := services.NewAlertService(alerts, prefs, snapshots, dispatcher, log,
		services.WithEscalationRules(cfg.Alerts.EscalationRules),
	)

	var sweeper *worker.EscalationSweeper
	if cfg.Alerts.SweepEnabled {
		sweeper = worker.NewEscalationSweeper(alertService, cfg.Alerts.SweepSchedule, log)
		if err := sweeper.Start(); err != nil {
			return fmt.Errorf("start escalation sweeper: %w", err)
		}
	}

	h := &router.Handlers{
		Health: handlers.NewHealthHandler(db, log),
		Alert:  handlers.NewAlertHandler(alertService, log, validator.New()),
	}

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      router.New(cfg, log, h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(map[string]interface{}{
			"addr":        srv.Addr,
			"environment": cfg.Server.Environment,
			"data_source": cfg.DataSource.Kind,
		}).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case sig := <-quit:
		log.With("signal", sig.String()).Info("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if sweeper != nil {
		sweeper.Stop(ctx)
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.ErrorWithErr(err, "HTTP server shutdown failed")
	}
	alertService.Wait()

	log.Info("Server stopped")
	return nil
}

func stores(cfg *config.Config, db *sql.DB) (alert.Repository, alert.PreferenceRepository) {
	if db == nil {
		return memory.NewAlertRepository(), memory.NewPreferenceRepository()
	}
	dialect := postgres.Dialect(cfg.Database.Driver)
	return postgres.NewAlertRepository(db, dialect), postgres.NewPreferenceRepository(db, dialect)
}

func snapshotProvider(cfg *config.Config, db *sql.DB) asset.SnapshotProvider {
	if cfg.DataSource.Kind == "appwrite" {
		ds := cfg.DataSource
		return providers.NewAppwriteProvider(providers.AppwriteConfig{
			Endpoint:           ds.AppwriteEndpoint,
			ProjectID:          ds.AppwriteProject,
			APIKey:             ds.AppwriteAPIKey,
			DatabaseID:         ds.AppwriteDatabase,
			AssetsCollection:   ds.AppwriteAssets,
			RequestsCollection: ds.AppwriteRequests,
			IssuesCollection:   ds.AppwriteIssues,
			ReturnsCollection:  ds.AppwriteReturns,
			Timeout:            ds.AppwriteTimeout,
		})
	}
	return postgres.NewSnapshotRepository(db, postgres.Dialect(cfg.Database.Driver))
}

// senders builds one sender per configured channel. In development an
// unconfigured channel logs its messages instead.
func senders(cfg *config.Config, log *logger.Logger) []notification.Sender {
	n := cfg.Notification
	dev := cfg.Server.Environment == "development"
	var out []notification.Sender

	switch {
	case n.SMTPHost != "":
		out = append(out, services.NewSMTPSender(services.SMTPConfig{
			Host:     n.SMTPHost,
			Port:     n.SMTPPort,
			User:     n.SMTPUser,
			Password: n.SMTPPassword,
			From:     n.SMTPFrom,
		}))
	case dev:
		out = append(out, services.NewLogSender(notification.ChannelEmail, log))
	}

	switch {
	case n.SlackWebhookURL != "":
		out = append(out, services.NewSlackSender(n.SlackWebhookURL, n.Timeout))
	case dev:
		out = append(out, services.NewLogSender(notification.ChannelPush, log))
	}

	switch {
	case n.SMSGatewayURL != "":
		out = append(out, services.NewSMSSender(n.SMSGatewayURL, n.SMSAPIKey, n.Timeout))
	case dev:
		out = append(out, services.NewLogSender(notification.ChannelSMS, log))
	}

	return out
}

func publisher(cfg *config.Config, log *logger.Logger) notification.Publisher {
	n := cfg.Notification
	if len(n.EventWebhookURLs) == 0 {
		return nil
	}
	return services.NewWebhookPublisher(n.EventWebhookURLs, n.EventWebhookSecret, n.Timeout, log)
}
