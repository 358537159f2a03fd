package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coachlyhq/coachly-backend/internal/schedule"
	"github.com/coachlyhq/coachly-backend/internal/schedules"
	dbpkg "github.com/coachlyhq/coachly-backend/pkg/db"
	"github.com/coachlyhq/coachly-backend/pkg/db/models"
	"github.com/coachlyhq/coachly-backend/pkg/enums"
	"github.com/coachlyhq/coachly-backend/pkg/logger"
)

const defaultExpansionHorizon = 24 * time.Hour

type scheduleSource interface {
	ListActiveDefinitions(ctx context.Context) ([]models.MessageSchedule, error)
}

type notificationCreator interface {
	Create(ctx context.Context, notification *models.PendingNotification) error
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type indexPublisher interface {
	Upsert(entry schedule.Entry, active bool)
}

// ExpansionJobParams configure the recurring-schedule expansion job.
type ExpansionJobParams struct {
	Logger        *logger.Logger
	Schedules     scheduleSource
	Notifications notificationCreator
	Users         userLookup
	Index         indexPublisher
	Horizon       time.Duration
}

// NewExpansionJob materializes upcoming occurrences of every active recurring
// schedule into concrete pending notifications.
func NewExpansionJob(params ExpansionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Schedules == nil {
		return nil, fmt.Errorf("schedules repository required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Index == nil {
		return nil, fmt.Errorf("schedule index required")
	}
	horizon := params.Horizon
	if horizon <= 0 {
		horizon = defaultExpansionHorizon
	}
	return &expansionJob{
		logg:    params.Logger,
		source:  params.Schedules,
		notifs:  params.Notifications,
		users:   params.Users,
		index:   params.Index,
		horizon: horizon,
		now:     time.Now,
	}, nil
}

type expansionJob struct {
	logg    *logger.Logger
	source  scheduleSource
	notifs  notificationCreator
	users   userLookup
	index   indexPublisher
	horizon time.Duration
	now     func() time.Time
}

func (j *expansionJob) Name() string { return "schedule-expansion" }

func (j *expansionJob) Run(ctx context.Context) error {
	definitions, err := j.source.ListActiveDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("list schedules: %w", err)
	}

	now := j.now().UTC()
	until := now.Add(j.horizon)
	var created, skipped int

	for _, definition := range definitions {
		n, s, err := j.expandOne(ctx, definition, now, until)
		created += n
		skipped += s
		if err != nil {
			defCtx := j.logg.WithField(ctx, "schedule_id", definition.ID.String())
			j.logg.Error(defCtx, "schedule expansion failed", err)
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"schedules": len(definitions),
		"created":   created,
		"skipped":   skipped,
		"horizon":   j.horizon.String(),
	})
	j.logg.Info(logCtx, "schedule expansion complete")
	return nil
}

// expandOne walks the definition's occurrences inside the horizon window.
// Occurrences are computed in the owner's timezone so "8am daily" tracks DST.
// Re-running is safe: the (schedule_id, occurrence_at) unique index turns
// duplicates into skips.
func (j *expansionJob) expandOne(ctx context.Context, definition models.MessageSchedule, from, until time.Time) (created, skipped int, err error) {
	spec, err := schedules.ParseSpec(definition.CronSpec)
	if err != nil {
		return 0, 0, fmt.Errorf("parse spec %q: %w", definition.CronSpec, err)
	}
	user, err := j.users.FindByID(ctx, definition.UserID)
	if err != nil {
		return 0, 0, fmt.Errorf("load user: %w", err)
	}

	cursor := from.In(user.Location())
	for {
		next := spec.Next(cursor)
		if next.IsZero() || next.After(until) {
			return created, skipped, nil
		}
		cursor = next

		occurrence := next.UTC()
		tone := definition.Tone
		row := &models.PendingNotification{
			ID:           uuid.New(),
			UserID:       definition.UserID,
			Type:         definition.Type,
			Tone:         &tone,
			Channel:      definition.Channel,
			Title:        definition.Title,
			Content:      definition.Content,
			Status:       enums.NotificationStatusPending,
			ScheduledFor: occurrence,
			ScheduleID:   &definition.ID,
			OccurrenceAt: &occurrence,
		}
		if err := j.notifs.Create(ctx, row); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_pending_notifications_occurrence") {
				skipped++
				continue
			}
			return created, skipped, fmt.Errorf("create occurrence at %s: %w", occurrence, err)
		}
		created++
		j.index.Upsert(schedule.Entry{ID: row.ID, UserID: row.UserID, ScheduledFor: occurrence}, true)
	}
}
