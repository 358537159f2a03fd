package commands

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coachlyhq/coachly-backend/internal/notifications"
	"github.com/coachlyhq/coachly-backend/internal/schedule"
	"github.com/coachlyhq/coachly-backend/pkg/db/models"
	pkgerrors "github.com/coachlyhq/coachly-backend/pkg/errors"
)

// timeFormats are the clock shapes a reference like "3pm" or "07:30" may take.
var timeFormats = []string{"15:04", "3:04pm", "3:04PM", "3pm", "3PM"}

type windowIndex interface {
	Between(userID uuid.UUID, from, to time.Time) []schedule.Entry
}

type batchStore interface {
	GetBatch(ctx context.Context, ids []uuid.UUID) ([]models.PendingNotification, error)
}

type userDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service is the command surface: operations addressed by a free-form
// reference (id, clock time, or title fragment) instead of a UUID path param.
type Service interface {
	ListToday(ctx context.Context, userID uuid.UUID) ([]models.PendingNotification, error)
	Create(ctx context.Context, params notifications.CreateParams) (*models.PendingNotification, error)
	Reschedule(ctx context.Context, userID uuid.UUID, reference string, at time.Time) (*models.PendingNotification, error)
	Snooze(ctx context.Context, userID uuid.UUID, reference string, minutes int) (*models.PendingNotification, error)
	Cancel(ctx context.Context, userID uuid.UUID, reference string) error
}

// Candidate is one possible match reported with an ambiguous reference.
type Candidate struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	ScheduledFor time.Time `json:"scheduledFor"`
}

// ServiceParams wires the command surface's dependencies.
type ServiceParams struct {
	Notifications notifications.Service
	Index         windowIndex
	Store         batchStore
	Users         userDirectory

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

type service struct {
	notifs notifications.Service
	index  windowIndex
	store  batchStore
	users  userDirectory
	now    func() time.Time
}

// NewService wires command dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Notifications == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications service required")
	}
	if params.Index == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "schedule index required")
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification store required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user directory required")
	}
	now := params.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		notifs: params.Notifications,
		index:  params.Index,
		store:  params.Store,
		users:  params.Users,
		now:    now,
	}, nil
}

// ListToday returns the user's live pending notifications for the current
// calendar day in their timezone, ordered by scheduled time.
func (s *service) ListToday(ctx context.Context, userID uuid.UUID) ([]models.PendingNotification, error) {
	rows, _, err := s.todayRows(ctx, userID)
	return rows, err
}

func (s *service) Create(ctx context.Context, params notifications.CreateParams) (*models.PendingNotification, error) {
	return s.notifs.Create(ctx, params)
}

func (s *service) Reschedule(ctx context.Context, userID uuid.UUID, reference string, at time.Time) (*models.PendingNotification, error) {
	id, err := s.resolve(ctx, userID, reference)
	if err != nil {
		return nil, err
	}
	return s.notifs.Reschedule(ctx, userID, id, at)
}

func (s *service) Snooze(ctx context.Context, userID uuid.UUID, reference string, minutes int) (*models.PendingNotification, error) {
	id, err := s.resolve(ctx, userID, reference)
	if err != nil {
		return nil, err
	}
	return s.notifs.Snooze(ctx, userID, id, minutes)
}

func (s *service) Cancel(ctx context.Context, userID uuid.UUID, reference string) error {
	id, err := s.resolve(ctx, userID, reference)
	if err != nil {
		return err
	}
	return s.notifs.Cancel(ctx, userID, id)
}

// resolve maps a free-form reference onto exactly one of today's pending
// notifications. A UUID reference short-circuits; a clock time matches by
// scheduled time in the user's timezone; anything else is a case-insensitive
// title or content fragment. Zero matches is not found, several is ambiguous
// with the candidates reported back.
func (s *service) resolve(ctx context.Context, userID uuid.UUID, reference string) (uuid.UUID, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "reference required")
	}

	if id, err := uuid.Parse(reference); err == nil {
		return id, nil
	}

	rows, loc, err := s.todayRows(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}

	var matches []models.PendingNotification
	if clock, ok := parseClock(reference); ok {
		for _, row := range rows {
			local := row.ScheduledFor.In(loc)
			if local.Hour() == clock.Hour() && local.Minute() == clock.Minute() {
				matches = append(matches, row)
			}
		}
	} else {
		needle := strings.ToLower(reference)
		for _, row := range rows {
			if strings.Contains(strings.ToLower(row.Title), needle) ||
				strings.Contains(strings.ToLower(row.Content), needle) {
				matches = append(matches, row)
			}
		}
	}

	switch len(matches) {
	case 0:
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "no notification matches reference")
	case 1:
		return matches[0].ID, nil
	default:
		candidates := make([]Candidate, 0, len(matches))
		for _, row := range matches {
			candidates = append(candidates, Candidate{ID: row.ID, Title: row.Title, ScheduledFor: row.ScheduledFor})
		}
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeAmbiguous, "reference matches multiple notifications").
			WithDetails(map[string]any{"candidates": candidates})
	}
}

func (s *service) todayRows(ctx context.Context, userID uuid.UUID) ([]models.PendingNotification, *time.Location, error) {
	if userID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	loc := user.Location()
	local := s.now().In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	entries := s.index.Between(userID, dayStart.UTC(), dayEnd.UTC())
	ids := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}

	rows, err := s.store.GetBatch(ctx, ids)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notifications")
	}
	sort.Slice(rows, func(a, b int) bool {
		if rows[a].ScheduledFor.Equal(rows[b].ScheduledFor) {
			return rows[a].ID.String() < rows[b].ID.String()
		}
		return rows[a].ScheduledFor.Before(rows[b].ScheduledFor)
	})
	return rows, loc, nil
}

func parseClock(reference string) (time.Time, bool) {
	for _, format := range timeFormats {
		if t, err := time.Parse(format, reference); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
