package models

import "time"

// Payload is the user-visible content of a notification.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// TriggerType selects how a scheduled notification fires.
type TriggerType string

const (
	TriggerTimestamp TriggerType = "timestamp"
	TriggerInterval  TriggerType = "interval"
)

// Trigger describes when a notification fires: once at At, or every
// Interval starting at At for interval triggers.
type Trigger struct {
	Type     TriggerType   `json:"type"`
	At       time.Time     `json:"at"`
	Interval time.Duration `json:"interval,omitempty"`
}

// AtTime returns a one-shot trigger.
func AtTime(t time.Time) Trigger {
	return Trigger{Type: TriggerTimestamp, At: t}
}

// Every returns a repeating trigger whose first fire is at start.
func Every(start time.Time, interval time.Duration) Trigger {
	return Trigger{Type: TriggerInterval, At: start, Interval: interval}
}

// ScheduledNotification is a notification known to a scheduler.
type ScheduledNotification struct {
	ID          string    `json:"id"`
	TriggerTime time.Time `json:"triggerTime"`
	Payload     Payload   `json:"payload"`
}

// TriggerCommand is the message published to the trigger topic when
// notifications are delivered by an external dispatcher.
type TriggerCommand struct {
	Action         string    `json:"action"` // schedule, cancel, deliver
	NotificationID string    `json:"notification_id"`
	Payload        *Payload  `json:"payload,omitempty"`
	Trigger        *Trigger  `json:"trigger,omitempty"`
	PushToken      string    `json:"push_token,omitempty"`
	RequestedAt    time.Time `json:"requested_at"`
}
