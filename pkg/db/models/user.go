package models

import (
	"time"

	"github.com/google/uuid"
)

// User holds the delivery-relevant slice of a coached user: display name for
// template rendering, IANA timezone for day-window queries, and the Telegram
// chat the bot may deliver to.
type User struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DisplayName    string    `gorm:"column:display_name;type:text;not null" json:"displayName"`
	Timezone       string    `gorm:"column:timezone;type:text;not null;default:'UTC'" json:"timezone"`
	TelegramChatID *int64    `gorm:"column:telegram_chat_id" json:"-"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// Location resolves the user's timezone, falling back to UTC.
func (u *User) Location() *time.Location {
	if u == nil || u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
