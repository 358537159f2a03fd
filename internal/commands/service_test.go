package commands

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coachlyhq/coachly-backend/internal/notifications"
	"github.com/coachlyhq/coachly-backend/internal/schedule"
	"github.com/coachlyhq/coachly-backend/pkg/db/models"
	"github.com/coachlyhq/coachly-backend/pkg/enums"
	pkgerrors "github.com/coachlyhq/coachly-backend/pkg/errors"
)

type fakeUsers struct {
	user *models.User
}

func (f *fakeUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return f.user, nil
}

type fakeNotifications struct {
	notifications.Service
	rescheduled []uuid.UUID
	snoozed     []uuid.UUID
	cancelled   []uuid.UUID
}

func (f *fakeNotifications) Reschedule(ctx context.Context, userID, id uuid.UUID, at time.Time) (*models.PendingNotification, error) {
	f.rescheduled = append(f.rescheduled, id)
	return &models.PendingNotification{ID: id, ScheduledFor: at}, nil
}

func (f *fakeNotifications) Snooze(ctx context.Context, userID, id uuid.UUID, minutes int) (*models.PendingNotification, error) {
	f.snoozed = append(f.snoozed, id)
	return &models.PendingNotification{ID: id}, nil
}

func (f *fakeNotifications) Cancel(ctx context.Context, userID, id uuid.UUID) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

type fakeStore struct {
	rows map[uuid.UUID]models.PendingNotification
}

func (f *fakeStore) GetBatch(ctx context.Context, ids []uuid.UUID) ([]models.PendingNotification, error) {
	var out []models.PendingNotification
	for _, id := range ids {
		if row, ok := f.rows[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

type fixture struct {
	svc    Service
	notifs *fakeNotifications
	store  *fakeStore
	index  *schedule.Index
	userID uuid.UUID
	now    time.Time
	loc    *time.Location
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	userID := uuid.New()
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC) // 10:00 in New York

	f := &fixture{
		notifs: &fakeNotifications{},
		store:  &fakeStore{rows: map[uuid.UUID]models.PendingNotification{}},
		index:  schedule.NewIndex(),
		userID: userID,
		now:    now,
		loc:    loc,
	}
	svc, err := NewService(ServiceParams{
		Notifications: f.notifs,
		Index:         f.index,
		Store:         f.store,
		Users:         &fakeUsers{user: &models.User{ID: userID, DisplayName: "Sam", Timezone: "America/New_York"}},
		Clock:         func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) add(t *testing.T, title string, localHour, localMinute int) uuid.UUID {
	t.Helper()
	at := time.Date(2026, 3, 2, localHour, localMinute, 0, 0, f.loc).UTC()
	row := models.PendingNotification{
		ID:           uuid.New(),
		UserID:       f.userID,
		Type:         enums.NotificationTypeReminder,
		Title:        title,
		Content:      "reminder body",
		Status:       enums.NotificationStatusPending,
		ScheduledFor: at,
	}
	f.store.rows[row.ID] = row
	f.index.Upsert(schedule.Entry{ID: row.ID, UserID: f.userID, ScheduledFor: at}, true)
	return row.ID
}

func TestListToday_OrdersByScheduleInUserDay(t *testing.T) {
	f := newFixture(t)
	evening := f.add(t, "Evening review", 20, 0)
	morning := f.add(t, "Morning run", 7, 30)

	// 23:30 local lands in today; in UTC it is already the next day.
	lateNight := f.add(t, "Wind down", 23, 30)

	rows, err := f.svc.ListToday(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].ID != morning || rows[1].ID != evening || rows[2].ID != lateNight {
		t.Fatal("expected rows ordered by local schedule")
	}
}

func TestResolve_ByUUID(t *testing.T) {
	f := newFixture(t)
	id := f.add(t, "Morning run", 7, 30)

	if err := f.svc.Cancel(context.Background(), f.userID, id.String()); err != nil {
		t.Fatalf("unexpected cancel error: %v", err)
	}
	if len(f.notifs.cancelled) != 1 || f.notifs.cancelled[0] != id {
		t.Fatal("expected uuid reference resolved directly")
	}
}

func TestResolve_ByClockTime(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Morning run", 7, 30)
	target := f.add(t, "Lunch walk", 12, 15)

	_, err := f.svc.Snooze(context.Background(), f.userID, "12:15", 10)
	if err != nil {
		t.Fatalf("unexpected snooze error: %v", err)
	}
	if len(f.notifs.snoozed) != 1 || f.notifs.snoozed[0] != target {
		t.Fatal("expected clock reference to match local schedule")
	}
}

func TestResolve_ByClockTimeMeridiem(t *testing.T) {
	f := newFixture(t)
	target := f.add(t, "Evening review", 20, 0)

	_, err := f.svc.Reschedule(context.Background(), f.userID, "8pm", f.now.Add(4*time.Hour))
	if err != nil {
		t.Fatalf("unexpected reschedule error: %v", err)
	}
	if len(f.notifs.rescheduled) != 1 || f.notifs.rescheduled[0] != target {
		t.Fatal("expected meridiem reference to match")
	}
}

func TestResolve_BySubstring(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Evening review", 20, 0)
	target := f.add(t, "Morning run", 7, 30)

	if err := f.svc.Cancel(context.Background(), f.userID, "morning"); err != nil {
		t.Fatalf("unexpected cancel error: %v", err)
	}
	if len(f.notifs.cancelled) != 1 || f.notifs.cancelled[0] != target {
		t.Fatal("expected substring reference to match title")
	}
}

func TestResolve_NoMatchIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Morning run", 7, 30)

	err := f.svc.Cancel(context.Background(), f.userID, "dentist")
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolve_MultipleMatchesIsAmbiguous(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Morning run", 7, 30)
	f.add(t, "Morning stretch", 8, 0)

	err := f.svc.Cancel(context.Background(), f.userID, "morning")
	if !pkgerrors.HasCode(err, pkgerrors.CodeAmbiguous) {
		t.Fatalf("expected ambiguous error, got %v", err)
	}

	details, ok := pkgerrors.As(err).Details().(map[string]any)
	if !ok {
		t.Fatal("expected candidate details")
	}
	candidates, ok := details["candidates"].([]Candidate)
	if !ok || len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %v", details["candidates"])
	}
	if len(f.notifs.cancelled) != 0 {
		t.Fatal("ambiguous reference must not mutate anything")
	}
}

func TestResolve_EmptyReference(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Cancel(context.Background(), f.userID, "   ")
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
