package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coachlyhq/coachly-backend/internal/cron"
	"github.com/coachlyhq/coachly-backend/internal/inbox"
	"github.com/coachlyhq/coachly-backend/internal/notifications"
	"github.com/coachlyhq/coachly-backend/internal/schedule"
	"github.com/coachlyhq/coachly-backend/internal/schedules"
	"github.com/coachlyhq/coachly-backend/internal/users"
	"github.com/coachlyhq/coachly-backend/pkg/config"
	"github.com/coachlyhq/coachly-backend/pkg/db"
	"github.com/coachlyhq/coachly-backend/pkg/instance"
	"github.com/coachlyhq/coachly-backend/pkg/logger"
	"github.com/coachlyhq/coachly-backend/pkg/metrics"
	"github.com/coachlyhq/coachly-backend/pkg/migrate"
	"github.com/coachlyhq/coachly-backend/pkg/redis"
)

const lockKeyFormat = "coachly:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	notificationsRepo := notifications.NewRepository(dbClient.DB())
	inboxRepo := inbox.NewRepository(dbClient.DB())

	expansionJob, err := cron.NewExpansionJob(cron.ExpansionJobParams{
		Logger:        logg,
		Schedules:     schedules.NewRepository(dbClient.DB()),
		Notifications: notificationsRepo,
		Users:         users.NewRepository(dbClient.DB()),
		Index:         schedule.NewIndex(),
		Horizon:       cfg.Expansion.Horizon,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expansion job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Logger:          logg,
		Notifications:   notificationsRepo,
		Inbox:           inboxRepo,
		SoftDeletedDays: cfg.Retention.SoftDeletedDays,
		InboxDays:       cfg.Retention.InboxDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expansionJob, retentionJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Expansion.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
