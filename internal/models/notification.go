// internal/models/notification.go
package models

import "time"

// Channel identifies an outbound delivery path.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// NotificationType names the business event that triggered a message.
type NotificationType string

const (
	NotificationApproved NotificationType = "loan_approved"
	NotificationRejected NotificationType = "loan_rejected"
)

// Notification is one outbound email or SMS.
type Notification struct {
	ID            string           `json:"id"`
	ApplicationID string           `json:"applicationId"`
	Type          NotificationType `json:"type"`
	Channel       Channel          `json:"channel"`
	Recipient     string           `json:"recipient"`
	Subject       string           `json:"subject,omitempty"`
	Body          string           `json:"body"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// Turn is the record of one processed message, used by the audit log and
// the transcript index.
type Turn struct {
	ApplicationID string    `json:"applicationId"`
	CustomerID    string    `json:"customerId"`
	Message       string    `json:"message"`
	Response      string    `json:"response"`
	Handlers      []string  `json:"handlers"`
	FromStatus    Status    `json:"fromStatus"`
	ToStatus      Status    `json:"toStatus"`
	Action        Action    `json:"action,omitempty"`
	RoutingRule   string    `json:"routingRule,omitempty"`
	Fields        []string  `json:"fields,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}
