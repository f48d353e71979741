package services

import (
	"context"

	"operator-dispatch.com/operator-dispatch/internal/constants"
)

type CardKind string

const (
	// CardTask is the task card itself; its controls follow the task status.
	CardTask CardKind = "task"
	// CardEvidencePrompt asks the operator to reply with settlement evidence.
	CardEvidencePrompt CardKind = "evidence_prompt"
	CardCompleted      CardKind = "completed"
	CardAmountMismatch CardKind = "amount_mismatch"
	// CardPromotionOffer offers a queued task to an operator who just freed up.
	CardPromotionOffer CardKind = "promotion_offer"
)

// Card is everything a Notifier needs to render an operator-facing message.
type Card struct {
	Kind       CardKind
	TaskID     uint
	Status     constants.TaskStatus
	TrackedURL string
	OriginURL  string
	Actions    []constants.Action

	Expected string
	Received string
	Reason   MismatchReason

	// ThreadID reuses the task's operator thread; MessageID edits an existing
	// message in place instead of sending a new one.
	ThreadID  *int
	MessageID *int
}

// Delivery tells where a card ended up.
type Delivery struct {
	ThreadID  *int
	MessageID *int
}

// Notifier delivers cards to operators. Implementations return
// errors.ErrOperatorUnmapped for operators without a configured channel.
type Notifier interface {
	Notify(ctx context.Context, operatorID string, card Card) (Delivery, error)
}

// ActionsFor lists the callback controls a task card offers in status.
func ActionsFor(status constants.TaskStatus) []constants.Action {
	switch status {
	case constants.StatusPending:
		return []constants.Action{constants.ActionAccept}
	case constants.StatusActive:
		return []constants.Action{constants.ActionPause, constants.ActionCompleteRequest}
	case constants.StatusPaused:
		return []constants.Action{constants.ActionResume}
	}
	return nil
}
