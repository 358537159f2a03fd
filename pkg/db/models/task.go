package models

import (
	"time"

	"github.com/google/uuid"
)

// Task is a coaching task a notification may reference by TaskID.
type Task struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index" json:"userId"`
	Title       string     `gorm:"column:title;type:text;not null" json:"title"`
	Description string     `gorm:"column:description;type:text" json:"description"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
	DeletedAt   *time.Time `gorm:"column:deleted_at;type:timestamptz;index" json:"deletedAt,omitempty"`
}
