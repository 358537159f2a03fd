package schedules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coachlyhq/coachly-backend/pkg/db/models"
	"github.com/coachlyhq/coachly-backend/pkg/enums"
	pkgerrors "github.com/coachlyhq/coachly-backend/pkg/errors"
)

type fakeRepository struct {
	createFn func(ctx context.Context, schedule *models.MessageSchedule) error
	getFn    func(ctx context.Context, id uuid.UUID) (*models.MessageSchedule, error)
	listFn   func(ctx context.Context, userID uuid.UUID) ([]models.MessageSchedule, error)
	updateFn func(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error)
	deleteFn func(ctx context.Context, id uuid.UUID, now time.Time) (int64, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, schedule *models.MessageSchedule) error {
	if f.createFn != nil {
		return f.createFn(ctx, schedule)
	}
	return nil
}

func (f *fakeRepository) Get(ctx context.Context, id uuid.UUID) (*models.MessageSchedule, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) List(ctx context.Context, userID uuid.UUID) ([]models.MessageSchedule, error) {
	if f.listFn != nil {
		return f.listFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeRepository) ListActiveDefinitions(ctx context.Context) ([]models.MessageSchedule, error) {
	return nil, nil
}

func (f *fakeRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, fields)
	}
	return 1, nil
}

func (f *fakeRepository) SoftDelete(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id, now)
	}
	return 1, nil
}

func newServiceWithRepo(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func validCreateParams(userID uuid.UUID) CreateParams {
	return CreateParams{
		UserID:   userID,
		Slug:     "morning-checkin",
		Type:     enums.NotificationTypeMorningMessage,
		Tone:     enums.ToneSupportive,
		Channel:  enums.ChannelInApp,
		Title:    "Good morning",
		Content:  "Ready for today's plan?",
		CronSpec: "0 8 * * *",
	}
}

func TestService_Create(t *testing.T) {
	var created *models.MessageSchedule
	repo := &fakeRepository{
		createFn: func(ctx context.Context, schedule *models.MessageSchedule) error {
			created = schedule
			return nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	row, err := svc.Create(context.Background(), validCreateParams(uuid.New()))
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if created == nil || created.ID != row.ID {
		t.Fatal("expected schedule persisted")
	}
	if !row.Active {
		t.Fatal("expected new schedule to start active")
	}
}

func TestService_CreateInvalidSpec(t *testing.T) {
	svc := newServiceWithRepo(t, &fakeRepository{})
	params := validCreateParams(uuid.New())
	params.CronSpec = "not a cron spec"

	_, err := svc.Create(context.Background(), params)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_CreateBadSlug(t *testing.T) {
	svc := newServiceWithRepo(t, &fakeRepository{})
	params := validCreateParams(uuid.New())
	params.Slug = "Morning Checkin"

	_, err := svc.Create(context.Background(), params)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_CreateSlugConflict(t *testing.T) {
	repo := &fakeRepository{
		createFn: func(ctx context.Context, schedule *models.MessageSchedule) error {
			return errors.New(`duplicate key value violates unique constraint "ux_message_schedules_user_slug_live"`)
		},
	}
	svc := newServiceWithRepo(t, repo)

	_, err := svc.Create(context.Background(), validCreateParams(uuid.New()))
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestService_GetDeletedIsGone(t *testing.T) {
	user := uuid.New()
	deletedAt := time.Now()
	repo := &fakeRepository{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.MessageSchedule, error) {
			return &models.MessageSchedule{ID: id, UserID: user, DeletedAt: &deletedAt}, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	_, err := svc.Get(context.Background(), user, uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeGone) {
		t.Fatalf("expected gone error, got %v", err)
	}
}

func TestService_UpdateValidatesSpec(t *testing.T) {
	user := uuid.New()
	repo := &fakeRepository{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.MessageSchedule, error) {
			return &models.MessageSchedule{ID: id, UserID: user, Active: true}, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	bad := "99 99 * * *"
	_, err := svc.Update(context.Background(), user, uuid.New(), UpdateParams{CronSpec: &bad})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_DeleteIdempotent(t *testing.T) {
	user := uuid.New()
	repo := &fakeRepository{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.MessageSchedule, error) {
			return &models.MessageSchedule{ID: id, UserID: user}, nil
		},
		deleteFn: func(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
			return 0, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	if err := svc.Delete(context.Background(), user, uuid.New()); err != nil {
		t.Fatalf("expected repeat delete to be a no-op: %v", err)
	}
}

func TestParseSpecStandardFormat(t *testing.T) {
	sched, err := ParseSpec("30 7 * * 1-5")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	after := time.Date(2026, 3, 2, 0, 0, 0, 0, loc) // a Monday
	next := sched.Next(after)
	if next.Hour() != 7 || next.Minute() != 30 {
		t.Fatalf("expected 07:30 local, got %s", next)
	}
}
