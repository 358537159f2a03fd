package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/coachlyhq/coachly-backend/pkg/enums"
)

// InboxItem is a delivered in-app message. Rows are written by the in-app
// delivery gateway and read by the inbox API.
type InboxItem struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID         uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index" json:"userId"`
	NotificationID *uuid.UUID             `gorm:"column:notification_id;type:uuid" json:"notificationId,omitempty"`
	Type           enums.NotificationType `gorm:"column:type;type:notification_type;not null" json:"type"`
	Title          string                 `gorm:"column:title;type:text;not null" json:"title"`
	Body           string                 `gorm:"column:body;type:text;not null" json:"body"`
	ReadAt         *time.Time             `gorm:"column:read_at;type:timestamptz" json:"readAt,omitempty"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}
