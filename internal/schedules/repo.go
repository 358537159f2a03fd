package schedules

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coachlyhq/coachly-backend/pkg/db/models"
)

// Repository exposes persistence helpers for recurring message schedules.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, schedule *models.MessageSchedule) error
	Get(ctx context.Context, id uuid.UUID) (*models.MessageSchedule, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.MessageSchedule, error)
	ListActiveDefinitions(ctx context.Context) ([]models.MessageSchedule, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error)
	SoftDelete(ctx context.Context, id uuid.UUID, now time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a schedule repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, schedule *models.MessageSchedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *repositoryImpl) Get(ctx context.Context, id uuid.UUID) (*models.MessageSchedule, error) {
	var row models.MessageSchedule
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repositoryImpl) List(ctx context.Context, userID uuid.UUID) ([]models.MessageSchedule, error) {
	var rows []models.MessageSchedule
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Order("slug ASC").
		Find(&rows).Error
	return rows, err
}

// ListActiveDefinitions feeds the expansion job: every live, active schedule
// across all users.
func (r *repositoryImpl) ListActiveDefinitions(ctx context.Context) ([]models.MessageSchedule, error) {
	var rows []models.MessageSchedule
	err := r.db.WithContext(ctx).
		Where("active = TRUE AND deleted_at IS NULL").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.MessageSchedule{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(fields)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) SoftDelete(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.MessageSchedule{}).
		Where("id = ? AND deleted_at IS NULL", id).
		UpdateColumn("deleted_at", now)
	return result.RowsAffected, result.Error
}
