package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/coachlyhq/coachly-backend/api/routes"
	"github.com/coachlyhq/coachly-backend/internal/commands"
	"github.com/coachlyhq/coachly-backend/internal/inbox"
	"github.com/coachlyhq/coachly-backend/internal/notifications"
	"github.com/coachlyhq/coachly-backend/internal/schedule"
	"github.com/coachlyhq/coachly-backend/internal/schedules"
	"github.com/coachlyhq/coachly-backend/internal/users"
	"github.com/coachlyhq/coachly-backend/pkg/config"
	"github.com/coachlyhq/coachly-backend/pkg/db"
	"github.com/coachlyhq/coachly-backend/pkg/logger"
	"github.com/coachlyhq/coachly-backend/pkg/migrate"
	"github.com/coachlyhq/coachly-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	usersRepo := users.NewRepository(dbClient.DB())

	index := schedule.NewIndex()
	reconciler := schedule.NewReconciler(index, notificationsRepo, logg, 0)

	notificationsService, err := notifications.NewService(notifications.ServiceParams{
		Repo:  notificationsRepo,
		Index: index,
		Grace: cfg.Dispatcher.CreationGrace,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	schedulesService, err := schedules.NewService(schedules.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create schedules service", err)
		os.Exit(1)
	}

	commandsService, err := commands.NewService(commands.ServiceParams{
		Notifications: notificationsService,
		Index:         index,
		Store:         notificationsRepo,
		Users:         usersRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create commands service", err)
		os.Exit(1)
	}

	inboxService, err := inbox.NewService(inbox.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create inbox service", err)
		os.Exit(1)
	}

	usersService, err := users.NewService(usersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create profile service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	// The index feeds command-surface window queries; the reconcile loop picks
	// up pending rows written by the dispatcher and cron worker.
	go func() {
		if err := reconciler.Run(ctx); err != nil && ctx.Err() == nil {
			logg.Error(ctx, "schedule index reconciler stopped", err)
		}
	}()

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			notificationsService,
			schedulesService,
			commandsService,
			inboxService,
			usersService,
		),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shutting down gracefully")
}
