package constants

type EventKind string

const (
	EventAssigned            EventKind = "assigned"
	EventQueued              EventKind = "queued"
	EventAccepted            EventKind = "accepted"
	EventPaused              EventKind = "paused"
	EventResumed             EventKind = "resumed"
	EventCompletionRequested EventKind = "completion_requested"
	EventCompleted           EventKind = "completed"
	EventAmountMismatch      EventKind = "amount_mismatch"
	EventClicked             EventKind = "clicked"
	EventClaimed             EventKind = "claimed"
	EventPromotionOffered    EventKind = "promotion_offered"
	EventNotificationFailed  EventKind = "notification_failed"
)
