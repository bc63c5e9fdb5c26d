package model

import "time"

// NotificationType groups notifications for the notification center.
type NotificationType string

// Notification types raised by the ledger.
const (
	NotificationSystem      NotificationType = "system"
	NotificationPerformance NotificationType = "performance"
)

// Priority of a notification.
type Priority string

// Priorities understood by the notification center.
const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Notification is a fire-and-forget request to the notification center.
type Notification struct {
	Type     NotificationType `json:"type"`
	Title    string           `json:"title"`
	Message  string           `json:"message"`
	Priority Priority         `json:"priority"`
	DriverID string           `json:"driverId,omitempty"`
	RaisedAt time.Time        `json:"raisedAt"`
}
