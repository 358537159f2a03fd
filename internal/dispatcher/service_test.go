package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coachlyhq/coachly-backend/internal/delivery"
	"github.com/coachlyhq/coachly-backend/internal/schedule"
	"github.com/coachlyhq/coachly-backend/pkg/config"
	"github.com/coachlyhq/coachly-backend/pkg/db/models"
	"github.com/coachlyhq/coachly-backend/pkg/enums"
	"github.com/coachlyhq/coachly-backend/pkg/logger"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type fakeStore struct {
	getFn         func(ctx context.Context, id uuid.UUID) (*models.PendingNotification, error)
	claimFn       func(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	markSentFn    func(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	markRetryFn   func(ctx context.Context, id uuid.UUID, next time.Time, cause error) (bool, error)
	markFailedFn  func(ctx context.Context, id uuid.UUID, cause error) (bool, error)
	releaseFn     func(ctx context.Context, cutoff time.Time) (int64, error)
	retries       int
	failures      int
	sentConfirmed int
}

func (f *fakeStore) Get(ctx context.Context, id uuid.UUID) (*models.PendingNotification, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStore) Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	if f.claimFn != nil {
		return f.claimFn(ctx, id, now)
	}
	return true, nil
}

func (f *fakeStore) MarkSent(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	f.sentConfirmed++
	if f.markSentFn != nil {
		return f.markSentFn(ctx, id, now)
	}
	return true, nil
}

func (f *fakeStore) MarkRetry(ctx context.Context, id uuid.UUID, next time.Time, cause error) (bool, error) {
	f.retries++
	if f.markRetryFn != nil {
		return f.markRetryFn(ctx, id, next, cause)
	}
	return true, nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, id uuid.UUID, cause error) (bool, error) {
	f.failures++
	if f.markFailedFn != nil {
		return f.markFailedFn(ctx, id, cause)
	}
	return true, nil
}

func (f *fakeStore) ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	if f.releaseFn != nil {
		return f.releaseFn(ctx, cutoff)
	}
	return 0, nil
}

type fakeUsers struct {
	user *models.User
}

func (f *fakeUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if f.user == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.user, nil
}

type fakeTasks struct {
	task *models.Task
}

func (f *fakeTasks) FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	if f.task == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.task, nil
}

type fakeRouter struct {
	sendFn func(ctx context.Context, user *models.User, channel enums.Channel, msg delivery.Message) (delivery.Receipt, error)
	sends  []delivery.Message
}

func (f *fakeRouter) Send(ctx context.Context, user *models.User, channel enums.Channel, msg delivery.Message) (delivery.Receipt, error) {
	f.sends = append(f.sends, msg)
	if f.sendFn != nil {
		return f.sendFn(ctx, user, channel, msg)
	}
	return delivery.Receipt{Channel: channel}, nil
}

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Dispatcher: config.DispatcherConfig{
			TickInterval:    30 * time.Second,
			BatchSize:       100,
			DeliveryTimeout: 10 * time.Second,
			RetryBudget:     3,
			BackoffBase:     time.Minute,
			BackoffCap:      30 * time.Minute,
			StaleClaimAfter: 5 * time.Minute,
		},
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "dispatcher-test", Level: zerolog.Disabled})
}

func pendingRow(userID uuid.UUID) *models.PendingNotification {
	return &models.PendingNotification{
		ID:           uuid.New(),
		UserID:       userID,
		Type:         enums.NotificationTypeReminder,
		Channel:      enums.ChannelInApp,
		Title:        "Stretch break",
		Content:      "{{user}}, time for {{task}}",
		Status:       enums.NotificationStatusDelivering,
		ScheduledFor: testNow.Add(-time.Minute),
	}
}

func newTestService(t *testing.T, store *fakeStore, index *schedule.Index, users *fakeUsers, tasks *fakeTasks, router *fakeRouter) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config: testConfig(),
		Logger: testLogger(),
		Store:  store,
		Index:  index,
		Users:  users,
		Tasks:  tasks,
		Router: router,
		Clock:  func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestDispatchOne_DeliversAndConfirms(t *testing.T) {
	user := &models.User{ID: uuid.New(), DisplayName: "Sam"}
	row := pendingRow(user.ID)
	store := &fakeStore{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.PendingNotification, error) {
			return row, nil
		},
	}
	index := schedule.NewIndex()
	entry := schedule.Entry{ID: row.ID, UserID: row.UserID, ScheduledFor: row.ScheduledFor}
	index.Upsert(entry, true)
	router := &fakeRouter{}
	svc := newTestService(t, store, index, &fakeUsers{user: user}, &fakeTasks{task: &models.Task{Title: "morning run"}}, router)

	if err := svc.dispatchOne(context.Background(), entry); err != nil {
		t.Fatalf("unexpected dispatch error: %v", err)
	}
	if store.sentConfirmed != 1 {
		t.Fatalf("expected one sent confirmation, got %d", store.sentConfirmed)
	}
	if len(router.sends) != 1 {
		t.Fatalf("expected one send, got %d", len(router.sends))
	}
	if got := router.sends[0].Body; got != "Sam, time for morning run" {
		t.Fatalf("unexpected rendered body %q", got)
	}
	if index.Len() != 0 {
		t.Fatal("expected dispatched entry removed from index")
	}
}

func TestDispatchOne_RenderFallsBackWhenTaskMissing(t *testing.T) {
	user := &models.User{ID: uuid.New(), DisplayName: "Sam"}
	row := pendingRow(user.ID)
	taskID := uuid.New()
	row.TaskID = &taskID
	store := &fakeStore{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.PendingNotification, error) {
			return row, nil
		},
	}
	router := &fakeRouter{}
	svc := newTestService(t, store, schedule.NewIndex(), &fakeUsers{user: user}, &fakeTasks{}, router)

	entry := schedule.Entry{ID: row.ID, UserID: row.UserID, ScheduledFor: row.ScheduledFor}
	if err := svc.dispatchOne(context.Background(), entry); err != nil {
		t.Fatalf("unexpected dispatch error: %v", err)
	}
	if got := router.sends[0].Body; got != "Sam, time for Stretch break" {
		t.Fatalf("expected fallback to notification title, got %q", got)
	}
}

func TestDispatchOne_LostClaimSkips(t *testing.T) {
	store := &fakeStore{
		claimFn: func(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
			return false, nil
		},
	}
	router := &fakeRouter{}
	index := schedule.NewIndex()
	entry := schedule.Entry{ID: uuid.New(), UserID: uuid.New(), ScheduledFor: testNow}
	index.Upsert(entry, true)
	svc := newTestService(t, store, index, &fakeUsers{}, &fakeTasks{}, router)

	if err := svc.dispatchOne(context.Background(), entry); err != nil {
		t.Fatalf("unexpected dispatch error: %v", err)
	}
	if len(router.sends) != 0 {
		t.Fatal("lost claim must not send")
	}
	if index.Len() != 0 {
		t.Fatal("expected lost-claim entry removed from index")
	}
}

func TestDispatchOne_OnlyOneWorkerWinsClaim(t *testing.T) {
	user := &models.User{ID: uuid.New(), DisplayName: "Sam"}
	row := pendingRow(user.ID)
	claims := 0
	store := &fakeStore{
		claimFn: func(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
			claims++
			return claims == 1, nil
		},
		getFn: func(ctx context.Context, id uuid.UUID) (*models.PendingNotification, error) {
			return row, nil
		},
	}
	router := &fakeRouter{}
	svc := newTestService(t, store, schedule.NewIndex(), &fakeUsers{user: user}, &fakeTasks{}, router)

	entry := schedule.Entry{ID: row.ID, UserID: row.UserID, ScheduledFor: row.ScheduledFor}
	if err := svc.dispatchOne(context.Background(), entry); err != nil {
		t.Fatalf("unexpected dispatch error: %v", err)
	}
	if err := svc.dispatchOne(context.Background(), entry); err != nil {
		t.Fatalf("unexpected dispatch error: %v", err)
	}
	if len(router.sends) != 1 {
		t.Fatalf("expected exactly one send across racing dispatches, got %d", len(router.sends))
	}
}

func TestDispatchOne_RetryWithBackoff(t *testing.T) {
	user := &models.User{ID: uuid.New(), DisplayName: "Sam"}
	row := pendingRow(user.ID)
	row.RetryCount = 1
	var retryAt time.Time
	store := &fakeStore{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.PendingNotification, error) {
			return row, nil
		},
		markRetryFn: func(ctx context.Context, id uuid.UUID, next time.Time, cause error) (bool, error) {
			retryAt = next
			return true, nil
		},
	}
	router := &fakeRouter{
		sendFn: func(ctx context.Context, user *models.User, channel enums.Channel, msg delivery.Message) (delivery.Receipt, error) {
			return delivery.Receipt{}, errors.New("gateway down")
		},
	}
	index := schedule.NewIndex()
	svc := newTestService(t, store, index, &fakeUsers{user: user}, &fakeTasks{}, router)

	entry := schedule.Entry{ID: row.ID, UserID: row.UserID, ScheduledFor: row.ScheduledFor}
	if err := svc.dispatchOne(context.Background(), entry); err != nil {
		t.Fatalf("unexpected dispatch error: %v", err)
	}
	if store.retries != 1 || store.failures != 0 {
		t.Fatalf("expected one retry, got retries=%d failures=%d", store.retries, store.failures)
	}
	// Second attempt: base doubled once.
	if want := testNow.Add(2 * time.Minute); !retryAt.Equal(want) {
		t.Fatalf("expected retry at %s, got %s", want, retryAt)
	}
	if index.Len() != 1 {
		t.Fatal("expected retried entry republished to index")
	}
}

func TestDispatchOne_BudgetExhaustedFailsTerminally(t *testing.T) {
	user := &models.User{ID: uuid.New(), DisplayName: "Sam"}
	row := pendingRow(user.ID)
	row.RetryCount = 3
	store := &fakeStore{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.PendingNotification, error) {
			return row, nil
		},
	}
	router := &fakeRouter{
		sendFn: func(ctx context.Context, user *models.User, channel enums.Channel, msg delivery.Message) (delivery.Receipt, error) {
			return delivery.Receipt{}, errors.New("gateway down")
		},
	}
	svc := newTestService(t, store, schedule.NewIndex(), &fakeUsers{user: user}, &fakeTasks{}, router)

	entry := schedule.Entry{ID: row.ID, UserID: row.UserID, ScheduledFor: row.ScheduledFor}
	if err := svc.dispatchOne(context.Background(), entry); err != nil {
		t.Fatalf("unexpected dispatch error: %v", err)
	}
	if store.failures != 1 || store.retries != 0 {
		t.Fatalf("expected terminal failure, got retries=%d failures=%d", store.retries, store.failures)
	}
}

func TestDispatchOne_CancelAfterClaimDiscards(t *testing.T) {
	user := &models.User{ID: uuid.New(), DisplayName: "Sam"}
	row := pendingRow(user.ID)
	store := &fakeStore{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.PendingNotification, error) {
			return row, nil
		},
		markSentFn: func(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
			return false, nil
		},
	}
	router := &fakeRouter{}
	svc := newTestService(t, store, schedule.NewIndex(), &fakeUsers{user: user}, &fakeTasks{}, router)

	entry := schedule.Entry{ID: row.ID, UserID: row.UserID, ScheduledFor: row.ScheduledFor}
	if err := svc.dispatchOne(context.Background(), entry); err != nil {
		t.Fatalf("expected discard to settle cleanly: %v", err)
	}
	if store.retries != 0 || store.failures != 0 {
		t.Fatal("discarded delivery must not retry or fail the row")
	}
}

func TestTick_SweepsStaleClaims(t *testing.T) {
	var cutoff time.Time
	store := &fakeStore{
		releaseFn: func(ctx context.Context, at time.Time) (int64, error) {
			cutoff = at
			return 2, nil
		},
	}
	svc := newTestService(t, store, schedule.NewIndex(), &fakeUsers{}, &fakeTasks{}, &fakeRouter{})

	if err := svc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected tick error: %v", err)
	}
	if want := testNow.Add(-5 * time.Minute); !cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, cutoff)
	}
}

func TestTick_BatchLimit(t *testing.T) {
	user := &models.User{ID: uuid.New(), DisplayName: "Sam"}
	index := schedule.NewIndex()
	rows := map[uuid.UUID]*models.PendingNotification{}
	for i := 0; i < 5; i++ {
		row := pendingRow(user.ID)
		rows[row.ID] = row
		index.Upsert(schedule.Entry{ID: row.ID, UserID: row.UserID, ScheduledFor: row.ScheduledFor}, true)
	}
	store := &fakeStore{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.PendingNotification, error) {
			return rows[id], nil
		},
	}
	router := &fakeRouter{}
	cfg := testConfig()
	cfg.Dispatcher.BatchSize = 2
	svc, err := NewService(ServiceParams{
		Config: cfg,
		Logger: testLogger(),
		Store:  store,
		Index:  index,
		Users:  &fakeUsers{user: user},
		Tasks:  &fakeTasks{},
		Router: router,
		Clock:  func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	if err := svc.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected tick error: %v", err)
	}
	if len(router.sends) != 2 {
		t.Fatalf("expected batch of 2 sends, got %d", len(router.sends))
	}
}

func TestBackoffCaps(t *testing.T) {
	svc := newTestService(t, &fakeStore{}, schedule.NewIndex(), &fakeUsers{}, &fakeTasks{}, &fakeRouter{})

	if got := svc.backoff(0); got != time.Minute {
		t.Fatalf("expected base backoff, got %s", got)
	}
	if got := svc.backoff(2); got != 4*time.Minute {
		t.Fatalf("expected 4m backoff, got %s", got)
	}
	if got := svc.backoff(20); got != 30*time.Minute {
		t.Fatalf("expected capped backoff, got %s", got)
	}
}
