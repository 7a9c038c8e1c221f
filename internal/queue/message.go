// Package queue carries notifications from the reservation engine to the
// notification service over RabbitMQ. Publishing is fire-and-forget: the
// Dispatcher accepts messages without blocking and a background worker
// hands them to the broker.
package queue

import (
	"time"

	"github.com/google/uuid"
)

const (
	// EventTypeSendNotification is the only event type the notification
	// service currently understands.
	EventTypeSendNotification = "send_notification"

	ChannelEmail = "email"
)

// Notification is the JSON payload consumed by the notification service.
type Notification struct {
	EventType       string                `json:"event_type"`
	Channels        []string              `json:"channels"`
	ForAllUsers     bool                  `json:"for_all_users"`
	UserParams      map[string]UserParams `json:"user_params"`
	SendInLocalTime bool                  `json:"send_in_local_time"`
	SendAt          *time.Time            `json:"send_at,omitempty"`
}

// UserParams is the per-recipient part of a notification. Address is left
// empty: the notification service resolves the user's contact from the ID.
type UserParams struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Address string `json:"address"`
}

// NewEmail builds an immediate email notification for a single user.
func NewEmail(userID uuid.UUID, subject, body string) Notification {
	return Notification{
		EventType: EventTypeSendNotification,
		Channels:  []string{ChannelEmail},
		UserParams: map[string]UserParams{
			userID.String(): {Subject: subject, Body: body},
		},
	}
}
