package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/coachlyhq/coachly-backend/pkg/logger"
)

const (
	defaultSoftDeletedRetentionDays = 30
	defaultInboxRetentionDays       = 90
)

type notificationPurger interface {
	DeleteSoftDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type inboxPurger interface {
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJobParams configure the retention job.
type RetentionJobParams struct {
	Logger          *logger.Logger
	Notifications   notificationPurger
	Inbox           inboxPurger
	SoftDeletedDays int
	InboxDays       int
}

// NewRetentionJob hard-deletes soft-deleted notifications past their
// retention window and prunes old inbox items.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Inbox == nil {
		return nil, fmt.Errorf("inbox repository required")
	}
	softDeleted := params.SoftDeletedDays
	if softDeleted <= 0 {
		softDeleted = defaultSoftDeletedRetentionDays
	}
	inboxDays := params.InboxDays
	if inboxDays <= 0 {
		inboxDays = defaultInboxRetentionDays
	}
	return &retentionJob{
		logg:            params.Logger,
		notifs:          params.Notifications,
		inbox:           params.Inbox,
		softDeletedDays: softDeleted,
		inboxDays:       inboxDays,
		now:             time.Now,
	}, nil
}

type retentionJob struct {
	logg            *logger.Logger
	notifs          notificationPurger
	inbox           inboxPurger
	softDeletedDays int
	inboxDays       int
	now             func() time.Time
}

func (j *retentionJob) Name() string { return "retention" }

func (j *retentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()

	notifCutoff := now.Add(-time.Duration(j.softDeletedDays) * 24 * time.Hour)
	purgedNotifs, err := j.notifs.DeleteSoftDeletedBefore(ctx, notifCutoff)
	if err != nil {
		return fmt.Errorf("purge soft-deleted notifications: %w", err)
	}

	inboxCutoff := now.Add(-time.Duration(j.inboxDays) * 24 * time.Hour)
	purgedInbox, err := j.inbox.DeleteCreatedBefore(ctx, inboxCutoff)
	if err != nil {
		return fmt.Errorf("purge inbox items: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"notifications_purged": purgedNotifs,
		"inbox_purged":         purgedInbox,
		"notification_cutoff":  notifCutoff,
		"inbox_cutoff":         inboxCutoff,
	})
	j.logg.Info(logCtx, "retention complete")
	return nil
}
