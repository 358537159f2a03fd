package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/coachlyhq/coachly-backend/pkg/enums"
)

// PendingNotification is one concrete schedulable message instance.
//
// SentAt is set exactly once, when status moves to sent. DeletedAt non-null
// excludes the row from every dispatcher and command-surface query regardless
// of status. ScheduledFor is mutable only while status is pending.
type PendingNotification struct {
	ID      uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID  uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index" json:"userId"`
	Type    enums.NotificationType   `gorm:"column:type;type:notification_type;not null" json:"type"`
	Tone    *enums.Tone              `gorm:"column:tone;type:message_tone" json:"tone,omitempty"`
	Channel enums.Channel            `gorm:"column:channel;type:delivery_channel;not null;default:'in_app'" json:"channel"`
	Title   string                   `gorm:"column:title;type:text;not null" json:"title"`
	Content string                   `gorm:"column:content;type:text;not null" json:"content"`
	Status  enums.NotificationStatus `gorm:"column:status;type:notification_status;not null;default:'pending'" json:"status"`

	ScheduledFor time.Time  `gorm:"column:scheduled_for;type:timestamptz;not null;index" json:"scheduledFor"`
	SentAt       *time.Time `gorm:"column:sent_at;type:timestamptz" json:"sentAt,omitempty"`
	ClaimedAt    *time.Time `gorm:"column:claimed_at;type:timestamptz" json:"-"`

	// Weak reference: the task may be deleted out from under us, in which
	// case rendering falls back to the notification's own title.
	TaskID         *uuid.UUID `gorm:"column:task_id;type:uuid" json:"taskId,omitempty"`
	DuplicatedFrom *uuid.UUID `gorm:"column:duplicated_from;type:uuid" json:"duplicatedFrom,omitempty"`

	// Set when the row was materialized from a recurring MessageSchedule;
	// (ScheduleID, OccurrenceAt) dedupes re-expansion.
	ScheduleID   *uuid.UUID `gorm:"column:schedule_id;type:uuid" json:"scheduleId,omitempty"`
	OccurrenceAt *time.Time `gorm:"column:occurrence_at;type:timestamptz" json:"-"`

	Rescheduled bool    `gorm:"column:rescheduled;not null;default:false" json:"rescheduled"`
	Snoozed     bool    `gorm:"column:snoozed;not null;default:false" json:"snoozed"`
	RetryCount  int     `gorm:"column:retry_count;not null;default:0" json:"retryCount"`
	LastError   *string `gorm:"column:last_error;type:text" json:"-"`

	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
	DeletedAt *time.Time `gorm:"column:deleted_at;type:timestamptz;index" json:"deletedAt,omitempty"`
}

// Deleted reports whether the row is soft-deleted.
func (n *PendingNotification) Deleted() bool {
	return n.DeletedAt != nil
}
