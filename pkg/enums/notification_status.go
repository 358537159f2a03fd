package enums

import "fmt"

// NotificationStatus maps to the notification_status enum in Postgres.
//
// Lifecycle: pending -> delivering -> sent | pending (retry) | failed.
// pending and delivering can also move to cancelled. delivering is a
// transient claim state; rows stuck there past the stale-claim threshold
// are swept back to pending.
type NotificationStatus string

const (
	NotificationStatusPending    NotificationStatus = "pending"
	NotificationStatusDelivering NotificationStatus = "delivering"
	NotificationStatusSent       NotificationStatus = "sent"
	NotificationStatusFailed     NotificationStatus = "failed"
	NotificationStatusCancelled  NotificationStatus = "cancelled"
)

var validNotificationStatuses = []NotificationStatus{
	NotificationStatusPending,
	NotificationStatusDelivering,
	NotificationStatusSent,
	NotificationStatusFailed,
	NotificationStatusCancelled,
}

// IsValid checks whether the given status matches the canonical enum.
func (s NotificationStatus) IsValid() bool {
	for _, candidate := range validNotificationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Terminal reports whether the status ends the delivery lifecycle.
func (s NotificationStatus) Terminal() bool {
	return s == NotificationStatusSent || s == NotificationStatusFailed || s == NotificationStatusCancelled
}

// ParseNotificationStatus converts raw strings into NotificationStatus.
func ParseNotificationStatus(value string) (NotificationStatus, error) {
	for _, candidate := range validNotificationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification status %q", value)
}
