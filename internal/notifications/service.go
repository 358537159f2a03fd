package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coachlyhq/coachly-backend/internal/schedule"
	"github.com/coachlyhq/coachly-backend/pkg/db/models"
	"github.com/coachlyhq/coachly-backend/pkg/enums"
	pkgerrors "github.com/coachlyhq/coachly-backend/pkg/errors"
)

// Service defines the mutation surface for pending notifications.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*models.PendingNotification, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.PendingNotification, error)
	ListActive(ctx context.Context, params ListParams) ([]models.PendingNotification, error)
	Edit(ctx context.Context, userID, id uuid.UUID, params EditParams) (*models.PendingNotification, error)
	Reschedule(ctx context.Context, userID, id uuid.UUID, at time.Time) (*models.PendingNotification, error)
	Snooze(ctx context.Context, userID, id uuid.UUID, minutes int) (*models.PendingNotification, error)
	Duplicate(ctx context.Context, userID, id uuid.UUID, params DuplicateParams) (*models.PendingNotification, error)
	Cancel(ctx context.Context, userID, id uuid.UUID) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// IndexPublisher receives schedule index updates after every successful write.
type IndexPublisher interface {
	Upsert(entry schedule.Entry, active bool)
	Remove(id uuid.UUID)
}

// CreateParams describes a new one-off notification.
type CreateParams struct {
	UserID       uuid.UUID
	Type         enums.NotificationType
	Tone         *enums.Tone
	Channel      enums.Channel
	Title        string
	Content      string
	ScheduledFor time.Time
	TaskID       *uuid.UUID
}

// EditParams patches content fields; nil fields are left unchanged.
type EditParams struct {
	Title   *string
	Content *string
	Tone    *enums.Tone
}

// DuplicateParams optionally overrides the copy's scheduled time.
type DuplicateParams struct {
	ScheduledFor *time.Time
}

// ListParams filters a user's live pending notifications.
type ListParams struct {
	UserID uuid.UUID
	From   *time.Time
	To     *time.Time
	Type   *enums.NotificationType
}

// ServiceParams wires the mutation engine's dependencies.
type ServiceParams struct {
	Repo  Repository
	Index IndexPublisher

	// Grace allows newly created notifications to be scheduled slightly in
	// the past, absorbing client clock skew. Zero means strict.
	Grace time.Duration

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

type service struct {
	repo  Repository
	index IndexPublisher
	grace time.Duration
	now   func() time.Time
}

// NewService wires notification mutation dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if params.Index == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "schedule index required")
	}
	now := params.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:  params.Repo,
		index: params.Index,
		grace: params.Grace,
		now:   now,
	}, nil
}

func (s *service) Create(ctx context.Context, params CreateParams) (*models.PendingNotification, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !params.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification type")
	}
	if params.Tone != nil && !params.Tone.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid tone")
	}
	channel := params.Channel
	if channel == "" {
		channel = enums.ChannelInApp
	}
	if !channel.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery channel")
	}
	if params.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if params.Content == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content required")
	}
	if params.ScheduledFor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduled time required")
	}
	if params.ScheduledFor.Before(s.now().Add(-s.grace)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduled time is in the past")
	}

	row := &models.PendingNotification{
		ID:           uuid.New(),
		UserID:       params.UserID,
		Type:         params.Type,
		Tone:         params.Tone,
		Channel:      channel,
		Title:        params.Title,
		Content:      params.Content,
		Status:       enums.NotificationStatusPending,
		ScheduledFor: params.ScheduledFor.UTC(),
		TaskID:       params.TaskID,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}

	s.index.Upsert(entryFor(row), true)
	return row, nil
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (*models.PendingNotification, error) {
	row, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if row.Deleted() {
		return nil, pkgerrors.New(pkgerrors.CodeGone, "notification deleted")
	}
	return row, nil
}

func (s *service) ListActive(ctx context.Context, params ListParams) ([]models.PendingNotification, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if params.Type != nil && !params.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification type")
	}

	rows, err := s.repo.ListActive(ctx, ListActiveParams{
		UserID: params.UserID,
		From:   params.From,
		To:     params.To,
		Type:   params.Type,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	return rows, nil
}

func (s *service) Edit(ctx context.Context, userID, id uuid.UUID, params EditParams) (*models.PendingNotification, error) {
	if params.Title == nil && params.Content == nil && params.Tone == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	if params.Title != nil && *params.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
	}
	if params.Content != nil && *params.Content == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content cannot be empty")
	}
	if params.Tone != nil && !params.Tone.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid tone")
	}
	if _, err := s.load(ctx, userID, id); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if params.Title != nil {
		fields["title"] = *params.Title
	}
	if params.Content != nil {
		fields["content"] = *params.Content
	}
	if params.Tone != nil {
		fields["tone"] = *params.Tone
	}

	rows, err := s.repo.UpdateFields(ctx, id, fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "edit notification")
	}
	if rows == 0 {
		return nil, s.classifyMiss(ctx, id, "edit")
	}
	return s.load(ctx, userID, id)
}

func (s *service) Reschedule(ctx context.Context, userID, id uuid.UUID, at time.Time) (*models.PendingNotification, error) {
	if at.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduled time required")
	}
	if _, err := s.load(ctx, userID, id); err != nil {
		return nil, err
	}

	rows, err := s.repo.SetSchedule(ctx, id, at.UTC(), false, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reschedule notification")
	}
	if rows == 0 {
		return nil, s.classifyMiss(ctx, id, "reschedule")
	}

	row, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	s.index.Upsert(entryFor(row), true)
	return row, nil
}

func (s *service) Snooze(ctx context.Context, userID, id uuid.UUID, minutes int) (*models.PendingNotification, error) {
	if minutes <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "snooze minutes must be positive")
	}

	row, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if row.Deleted() {
		return nil, pkgerrors.New(pkgerrors.CodeGone, "notification deleted")
	}
	next := row.ScheduledFor.Add(time.Duration(minutes) * time.Minute)

	rows, err := s.repo.SetSchedule(ctx, id, next, true, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "snooze notification")
	}
	if rows == 0 {
		return nil, s.classifyMiss(ctx, id, "snooze")
	}

	row, err = s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	s.index.Upsert(entryFor(row), true)
	return row, nil
}

// Duplicate copies the source's content into a fresh pending row. The copy
// starts with clean flags and its own identity; only duplicated_from ties it
// back. The grace check is intentionally skipped so users can re-send a
// notification that already fired.
func (s *service) Duplicate(ctx context.Context, userID, id uuid.UUID, params DuplicateParams) (*models.PendingNotification, error) {
	source, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if source.Deleted() {
		return nil, pkgerrors.New(pkgerrors.CodeGone, "notification deleted")
	}

	scheduledFor := source.ScheduledFor
	if params.ScheduledFor != nil {
		if params.ScheduledFor.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduled time required")
		}
		scheduledFor = params.ScheduledFor.UTC()
	}

	copyRow := &models.PendingNotification{
		ID:             uuid.New(),
		UserID:         source.UserID,
		Type:           source.Type,
		Tone:           source.Tone,
		Channel:        source.Channel,
		Title:          source.Title,
		Content:        source.Content,
		Status:         enums.NotificationStatusPending,
		ScheduledFor:   scheduledFor,
		TaskID:         source.TaskID,
		DuplicatedFrom: &source.ID,
	}
	if err := s.repo.Create(ctx, copyRow); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "duplicate notification")
	}

	s.index.Upsert(entryFor(copyRow), true)
	return copyRow, nil
}

func (s *service) Cancel(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.load(ctx, userID, id); err != nil {
		return err
	}

	rows, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel notification")
	}
	if rows > 0 {
		s.index.Remove(id)
		return nil
	}

	row, err := s.load(ctx, userID, id)
	if err != nil {
		return err
	}
	// Cancelling something already cancelled or deleted is a no-op.
	if row.Deleted() || row.Status == enums.NotificationStatusCancelled {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot cancel %s notification", row.Status)).
		WithDetails(map[string]any{"status": row.Status})
}

func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.load(ctx, userID, id); err != nil {
		return err
	}

	rows, err := s.repo.SoftDelete(ctx, id, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete notification")
	}
	if rows > 0 {
		s.index.Remove(id)
	}
	// Zero rows means the row was already soft-deleted; deleting twice is fine.
	return nil
}

// load fetches the row and enforces ownership. Rows belonging to another user
// surface as not found rather than forbidden.
func (s *service) load(ctx context.Context, userID, id uuid.UUID) (*models.PendingNotification, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	row, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notification")
	}
	if userID != uuid.Nil && row.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return row, nil
}

// classifyMiss turns a zero-row conditional update into the precise error:
// the row raced into deletion, a terminal status, or delivery.
func (s *service) classifyMiss(ctx context.Context, id uuid.UUID, op string) error {
	row, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notification")
	}
	if row.Deleted() {
		return pkgerrors.New(pkgerrors.CodeGone, "notification deleted")
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot %s %s notification", op, row.Status)).
		WithDetails(map[string]any{"status": row.Status})
}

func entryFor(row *models.PendingNotification) schedule.Entry {
	return schedule.Entry{ID: row.ID, UserID: row.UserID, ScheduledFor: row.ScheduledFor}
}
