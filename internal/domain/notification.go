package domain

import "time"

// NotificationKind classifies an inbox notification.
type NotificationKind string

const (
	NotificationInfo    NotificationKind = "info"
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

// Notification is one inbox entry for a user. Job progress updates rewrite an
// existing row in place rather than appending a new one.
type Notification struct {
	ID        string
	UserID    string
	Kind      NotificationKind
	Title     string
	Body      string
	Read      bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
