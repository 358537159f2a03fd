package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coachlyhq/coachly-backend/internal/delivery"
	"github.com/coachlyhq/coachly-backend/internal/dispatcher"
	"github.com/coachlyhq/coachly-backend/internal/inbox"
	"github.com/coachlyhq/coachly-backend/internal/notifications"
	"github.com/coachlyhq/coachly-backend/internal/schedule"
	"github.com/coachlyhq/coachly-backend/internal/tasks"
	"github.com/coachlyhq/coachly-backend/internal/users"
	"github.com/coachlyhq/coachly-backend/pkg/config"
	"github.com/coachlyhq/coachly-backend/pkg/db"
	"github.com/coachlyhq/coachly-backend/pkg/instance"
	"github.com/coachlyhq/coachly-backend/pkg/logger"
	"github.com/coachlyhq/coachly-backend/pkg/metrics"
	"github.com/coachlyhq/coachly-backend/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "dispatcher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "dispatcher"

	logg = logger.New(logger.Options{
		ServiceName: "dispatcher",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	notificationsRepo := notifications.NewRepository(dbClient.DB())
	index := schedule.NewIndex()
	reconciler := schedule.NewReconciler(index, notificationsRepo, logg, 0)

	gateways := []delivery.Gateway{delivery.NewInAppGateway(inbox.NewRepository(dbClient.DB()))}
	telegramGateway, err := delivery.NewTelegramGateway(cfg.Telegram.Token)
	if err != nil {
		logg.Error(context.Background(), "failed to create telegram gateway", err)
		os.Exit(1)
	}
	if telegramGateway != nil {
		gateways = append(gateways, telegramGateway)
	} else {
		logg.Warn(context.Background(), "telegram token not configured, telegram deliveries fall back to in-app")
	}

	service, err := dispatcher.NewService(dispatcher.ServiceParams{
		Config:  cfg,
		Logger:  logg,
		Store:   notificationsRepo,
		Index:   index,
		Users:   users.NewRepository(dbClient.DB()),
		Tasks:   tasks.NewRepository(dbClient.DB()),
		Router:  delivery.NewRouter(gateways...),
		Metrics: metrics.NewDispatcherMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatcher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting dispatcher")

	go func() {
		if err := reconciler.Run(ctx); err != nil && ctx.Err() == nil {
			logg.Error(ctx, "schedule index reconciler stopped", err)
		}
	}()

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "dispatcher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "dispatcher shutting down gracefully")
}
