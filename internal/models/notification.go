package models

import (
	"slices"
	"time"
)

// NotificationType represents notification severity
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationInfo, NotificationSuccess, NotificationWarning, NotificationError:
		return true
	}
	return false
}

// Target is the audience of a notification. Global wins over UserIDs.
type Target struct {
	Global  bool     `json:"global"`
	UserIDs []string `json:"userIds,omitempty"`
}

// Includes reports whether userID is a recipient of the target
func (t Target) Includes(userID string) bool {
	return t.Global || slices.Contains(t.UserIDs, userID)
}

type Notification struct {
	ID        string           `json:"id" db:"id"`
	Title     string           `json:"title" db:"title"`
	Message   string           `json:"message" db:"message"`
	Type      NotificationType `json:"type" db:"type"`
	Target    Target           `json:"target"`
	Link      string           `json:"link,omitempty" db:"link"`
	CreatedAt time.Time        `json:"createdAt" db:"created_at"`
	ReadBy    []string         `json:"-" db:"read_by"`
}

// IsReadBy reports whether userID has marked the notification read
func (n *Notification) IsReadBy(userID string) bool {
	return slices.Contains(n.ReadBy, userID)
}
