package model

import "time"

type NotificationKind string

const (
	NotificationPaymentConfirmed      NotificationKind = "payment_confirmed"
	NotificationPaymentFailed         NotificationKind = "payment_failed"
	NotificationSubscriptionCancelled NotificationKind = "subscription_cancelled"
	NotificationRenewalReminder       NotificationKind = "renewal_reminder"
)

// Notification is handed to the delivery collaborator after the triggering change commits.
type Notification struct {
	Kind           NotificationKind  `json:"kind"`
	StudentID      string            `json:"student_id"`
	SubscriptionID string            `json:"subscription_id,omitempty"`
	Data           map[string]string `json:"data,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
