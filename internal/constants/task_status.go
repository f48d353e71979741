package constants

type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusActive    TaskStatus = "active"
	StatusPaused    TaskStatus = "paused"
	StatusCompleted TaskStatus = "completed"
)

// QueueOperatorID owns every task that is waiting for an operator.
const QueueOperatorID = "queue"

// BusyStatuses are the statuses that keep an operator from receiving new work.
var BusyStatuses = []TaskStatus{StatusPending, StatusActive}

func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted
}
