package domain

import "time"

const (
	NotificationSuccess = "success"
	NotificationError   = "error"

	NotificationDuration = 5 * time.Second
)

// Notification is a user-facing message, shown by the client as a toast.
type Notification struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Variant     string        `json:"variant"`
	Duration    time.Duration `json:"duration"`
	CreatedAt   time.Time     `json:"created_at"`
}
