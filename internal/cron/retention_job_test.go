package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coachlyhq/coachly-backend/pkg/logger"
)

type fakeNotificationPurger struct {
	lastCutoff time.Time
	purged     int64
	err        error
}

func (f *fakeNotificationPurger) DeleteSoftDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.lastCutoff = cutoff
	return f.purged, f.err
}

type fakeInboxPurger struct {
	lastCutoff time.Time
	purged     int64
	err        error
}

func (f *fakeInboxPurger) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.lastCutoff = cutoff
	return f.purged, f.err
}

func newRetentionJob(t *testing.T, notifs *fakeNotificationPurger, inbox *fakeInboxPurger) *retentionJob {
	t.Helper()
	jobIface, err := NewRetentionJob(RetentionJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "cron-test"}),
		Notifications: notifs,
		Inbox:         inbox,
	})
	if err != nil {
		t.Fatalf("NewRetentionJob: %v", err)
	}
	job, ok := jobIface.(*retentionJob)
	if !ok {
		t.Fatalf("expected retentionJob, got %T", jobIface)
	}
	return job
}

func TestRetentionJobUsesConfiguredCutoffs(t *testing.T) {
	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	notifs := &fakeNotificationPurger{purged: 12}
	inbox := &fakeInboxPurger{purged: 40}
	job := newRetentionJob(t, notifs, inbox)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-defaultSoftDeletedRetentionDays * 24 * time.Hour); !notifs.lastCutoff.Equal(want) {
		t.Fatalf("expected notification cutoff %s, got %s", want, notifs.lastCutoff)
	}
	if want := now.Add(-defaultInboxRetentionDays * 24 * time.Hour); !inbox.lastCutoff.Equal(want) {
		t.Fatalf("expected inbox cutoff %s, got %s", want, inbox.lastCutoff)
	}
}

func TestRetentionJobPropagatesErrors(t *testing.T) {
	notifs := &fakeNotificationPurger{err: errors.New("boom")}
	job := newRetentionJob(t, notifs, &fakeInboxPurger{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
