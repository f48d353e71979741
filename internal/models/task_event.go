package model

import (
	"time"

	"operator-dispatch.com/operator-dispatch/internal/constants"
)

// TaskEvent is an append-only audit record of something that happened to a task.
type TaskEvent struct {
	ID         uint                  `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID     uint                  `gorm:"not null;index" json:"task_id"`
	OperatorID string                `gorm:"size:64" json:"operator_id,omitempty"`
	Kind       constants.EventKind   `gorm:"type:varchar(32);not null" json:"kind"`
	FromStatus *constants.TaskStatus `gorm:"type:varchar(20)" json:"from_status,omitempty"`
	ToStatus   *constants.TaskStatus `gorm:"type:varchar(20)" json:"to_status,omitempty"`
	Note       string                `gorm:"type:text" json:"note,omitempty"`
	At         time.Time             `gorm:"not null" json:"at"`
}
