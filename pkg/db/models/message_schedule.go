package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/coachlyhq/coachly-backend/pkg/enums"
)

// MessageSchedule is a recurring coach-message definition. The expansion job
// materializes its upcoming occurrences into pending_notifications.
//
// Slug is unique per user among rows with deleted_at IS NULL; a soft-deleted
// schedule frees its slug for reuse.
type MessageSchedule struct {
	ID       uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID   uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index" json:"userId"`
	Slug     string                 `gorm:"column:slug;type:text;not null" json:"slug"`
	Type     enums.NotificationType `gorm:"column:type;type:notification_type;not null" json:"type"`
	Tone     enums.Tone             `gorm:"column:tone;type:message_tone;not null" json:"tone"`
	Channel  enums.Channel          `gorm:"column:channel;type:delivery_channel;not null;default:'in_app'" json:"channel"`
	Title    string                 `gorm:"column:title;type:text;not null" json:"title"`
	Content  string                 `gorm:"column:content;type:text;not null" json:"content"`
	CronSpec string                 `gorm:"column:cron_spec;type:text;not null" json:"cronSpec"`
	Active   bool                   `gorm:"column:active;not null;default:true" json:"active"`

	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
	DeletedAt *time.Time `gorm:"column:deleted_at;type:timestamptz;index" json:"deletedAt,omitempty"`
}

// Deleted reports whether the row is soft-deleted.
func (s *MessageSchedule) Deleted() bool {
	return s.DeletedAt != nil
}
