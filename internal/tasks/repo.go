package tasks

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coachlyhq/coachly-backend/pkg/db/models"
)

// Repository exposes task lookups for notification rendering.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a tasks repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a live task. Soft-deleted tasks are treated as missing so
// rendering falls back to the notification's own title.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}
