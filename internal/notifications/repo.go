package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coachlyhq/coachly-backend/internal/schedule"
	"github.com/coachlyhq/coachly-backend/pkg/db/models"
	"github.com/coachlyhq/coachly-backend/pkg/enums"
)

// Repository exposes persistence helpers for pending notifications.
//
// Every query that powers dispatch or the command surface excludes
// soft-deleted rows, and GetBatch additionally drops rows that left the
// pending state so a lagging index entry can never resurface a terminal row.
// Get is the one exception: it loads the row regardless so callers can
// distinguish deleted from missing.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.PendingNotification) error
	Get(ctx context.Context, id uuid.UUID) (*models.PendingNotification, error)
	GetBatch(ctx context.Context, ids []uuid.UUID) ([]models.PendingNotification, error)
	ListActive(ctx context.Context, params ListActiveParams) ([]models.PendingNotification, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error)
	SetSchedule(ctx context.Context, id uuid.UUID, at time.Time, markSnoozed, markRescheduled bool) (int64, error)
	Cancel(ctx context.Context, id uuid.UUID) (int64, error)
	SoftDelete(ctx context.Context, id uuid.UUID, now time.Time) (int64, error)
	Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	MarkSent(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	MarkRetry(ctx context.Context, id uuid.UUID, next time.Time, cause error) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) (bool, error)
	ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int64, error)
	ListPendingEntries(ctx context.Context) ([]schedule.Entry, error)
	DeleteSoftDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a notification repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// ListActiveParams filters the live pending set for a user.
type ListActiveParams struct {
	UserID uuid.UUID
	From   *time.Time
	To     *time.Time
	Type   *enums.NotificationType
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, notification *models.PendingNotification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *repositoryImpl) Get(ctx context.Context, id uuid.UUID) (*models.PendingNotification, error) {
	var row models.PendingNotification
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repositoryImpl) GetBatch(ctx context.Context, ids []uuid.UUID) ([]models.PendingNotification, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.PendingNotification
	err := r.db.WithContext(ctx).
		Where("id IN ? AND status = ? AND deleted_at IS NULL", ids, enums.NotificationStatusPending).
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) ListActive(ctx context.Context, params ListActiveParams) ([]models.PendingNotification, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PendingNotification{}).
		Where("user_id = ? AND status = ? AND deleted_at IS NULL", params.UserID, enums.NotificationStatusPending)
	if params.From != nil {
		query = query.Where("scheduled_for >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("scheduled_for < ?", *params.To)
	}
	if params.Type != nil {
		query = query.Where("type = ?", *params.Type)
	}

	var rows []models.PendingNotification
	err := query.Order("scheduled_for ASC, id ASC").Find(&rows).Error
	return rows, err
}

// UpdateFields patches content fields on a live pending row. Rows that have
// started delivering, finished, or been deleted are left untouched.
func (r *repositoryImpl) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PendingNotification{}).
		Where("id = ? AND status = ? AND deleted_at IS NULL", id, enums.NotificationStatusPending).
		Updates(fields)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) SetSchedule(ctx context.Context, id uuid.UUID, at time.Time, markSnoozed, markRescheduled bool) (int64, error) {
	fields := map[string]any{"scheduled_for": at}
	if markSnoozed {
		fields["snoozed"] = true
	}
	if markRescheduled {
		fields["rescheduled"] = true
	}
	result := r.db.WithContext(ctx).
		Model(&models.PendingNotification{}).
		Where("id = ? AND status = ? AND deleted_at IS NULL", id, enums.NotificationStatusPending).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// Cancel moves a pending or in-flight row to cancelled. Cancelling a row the
// dispatcher has already claimed is allowed; the dispatcher's terminal update
// then affects zero rows and the send is discarded.
func (r *repositoryImpl) Cancel(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PendingNotification{}).
		Where("id = ? AND status IN ? AND deleted_at IS NULL",
			id, []enums.NotificationStatus{enums.NotificationStatusPending, enums.NotificationStatusDelivering}).
		Updates(map[string]any{"status": enums.NotificationStatusCancelled, "claimed_at": nil})
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) SoftDelete(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PendingNotification{}).
		Where("id = ? AND deleted_at IS NULL", id).
		UpdateColumn("deleted_at", now)
	return result.RowsAffected, result.Error
}

// Claim is the dispatch serialization point: a conditional single-row update
// that only one worker can win. A false return means another worker claimed
// the row first or a mutation moved it out of pending.
func (r *repositoryImpl) Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PendingNotification{}).
		Where("id = ? AND status = ? AND deleted_at IS NULL", id, enums.NotificationStatusPending).
		Updates(map[string]any{"status": enums.NotificationStatusDelivering, "claimed_at": now})
	return result.RowsAffected > 0, result.Error
}

func (r *repositoryImpl) MarkSent(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PendingNotification{}).
		Where("id = ? AND status = ? AND deleted_at IS NULL", id, enums.NotificationStatusDelivering).
		Updates(map[string]any{"status": enums.NotificationStatusSent, "sent_at": now, "claimed_at": nil, "last_error": nil})
	return result.RowsAffected > 0, result.Error
}

func (r *repositoryImpl) MarkRetry(ctx context.Context, id uuid.UUID, next time.Time, cause error) (bool, error) {
	fields := map[string]any{
		"status":        enums.NotificationStatusPending,
		"scheduled_for": next,
		"retry_count":   gorm.Expr("retry_count + 1"),
		"claimed_at":    nil,
	}
	if cause != nil {
		fields["last_error"] = cause.Error()
	}
	result := r.db.WithContext(ctx).
		Model(&models.PendingNotification{}).
		Where("id = ? AND status = ? AND deleted_at IS NULL", id, enums.NotificationStatusDelivering).
		Updates(fields)
	return result.RowsAffected > 0, result.Error
}

func (r *repositoryImpl) MarkFailed(ctx context.Context, id uuid.UUID, cause error) (bool, error) {
	fields := map[string]any{
		"status":     enums.NotificationStatusFailed,
		"claimed_at": nil,
	}
	if cause != nil {
		fields["last_error"] = cause.Error()
	}
	result := r.db.WithContext(ctx).
		Model(&models.PendingNotification{}).
		Where("id = ? AND status = ? AND deleted_at IS NULL", id, enums.NotificationStatusDelivering).
		Updates(fields)
	return result.RowsAffected > 0, result.Error
}

// ReleaseStaleClaims returns rows stuck in delivering (worker crash mid-send)
// to pending so a later tick retries them. The claim timestamp doubles as the
// staleness marker.
func (r *repositoryImpl) ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PendingNotification{}).
		Where("status = ? AND claimed_at IS NOT NULL AND claimed_at < ? AND deleted_at IS NULL",
			enums.NotificationStatusDelivering, cutoff).
		Updates(map[string]any{"status": enums.NotificationStatusPending, "claimed_at": nil})
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) ListPendingEntries(ctx context.Context) ([]schedule.Entry, error) {
	var rows []models.PendingNotification
	err := r.db.WithContext(ctx).
		Select("id", "user_id", "scheduled_for").
		Where("status = ? AND deleted_at IS NULL", enums.NotificationStatusPending).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]schedule.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, schedule.Entry{ID: row.ID, UserID: row.UserID, ScheduledFor: row.ScheduledFor})
	}
	return entries, nil
}

func (r *repositoryImpl) DeleteSoftDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Delete(&models.PendingNotification{})
	return result.RowsAffected, result.Error
}
