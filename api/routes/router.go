package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coachlyhq/coachly-backend/api/controllers"
	"github.com/coachlyhq/coachly-backend/api/middleware"
	"github.com/coachlyhq/coachly-backend/internal/commands"
	"github.com/coachlyhq/coachly-backend/internal/inbox"
	"github.com/coachlyhq/coachly-backend/internal/notifications"
	"github.com/coachlyhq/coachly-backend/internal/schedules"
	"github.com/coachlyhq/coachly-backend/internal/users"
	"github.com/coachlyhq/coachly-backend/pkg/config"
	"github.com/coachlyhq/coachly-backend/pkg/db"
	"github.com/coachlyhq/coachly-backend/pkg/logger"
	"github.com/coachlyhq/coachly-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	notificationsService notifications.Service,
	schedulesService schedules.Service,
	commandsService commands.Service,
	inboxService inbox.Service,
	usersService users.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.User(logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Post("/", controllers.CreateNotification(notificationsService, logg))
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Route("/{notificationId}", func(r chi.Router) {
				r.Get("/", controllers.GetNotification(notificationsService, logg))
				r.Patch("/", controllers.EditNotification(notificationsService, logg))
				r.Delete("/", controllers.DeleteNotification(notificationsService, logg))
				r.Post("/reschedule", controllers.RescheduleNotification(notificationsService, logg))
				r.Post("/snooze", controllers.SnoozeNotification(notificationsService, logg))
				r.Post("/duplicate", controllers.DuplicateNotification(notificationsService, logg))
				r.Post("/cancel", controllers.CancelNotification(notificationsService, logg))
			})
		})

		r.Route("/schedules", func(r chi.Router) {
			r.Post("/", controllers.CreateSchedule(schedulesService, logg))
			r.Get("/", controllers.ListSchedules(schedulesService, logg))
			r.Delete("/{scheduleId}", controllers.DeleteSchedule(schedulesService, logg))
		})

		r.Route("/commands", func(r chi.Router) {
			r.Get("/today", controllers.CommandToday(commandsService, logg))
			r.Post("/create", controllers.CommandCreate(commandsService, logg))
			r.Post("/reschedule", controllers.CommandReschedule(commandsService, logg))
			r.Post("/snooze", controllers.CommandSnooze(commandsService, logg))
			r.Post("/cancel", controllers.CommandCancel(commandsService, logg))
		})

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", controllers.GetProfile(usersService, logg))
			r.Put("/", controllers.UpsertProfile(usersService, logg))
		})

		r.Route("/inbox", func(r chi.Router) {
			r.Get("/", controllers.ListInbox(inboxService, logg))
			r.Post("/{itemId}/read", controllers.MarkInboxItemRead(inboxService, logg))
			r.Post("/read-all", controllers.MarkAllInboxRead(inboxService, logg))
		})
	})

	return r
}
