package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"operator-dispatch.com/operator-dispatch/internal/constants"
)

type Task struct {
	ID                uint                 `gorm:"primaryKey;autoIncrement" json:"id"`
	OperatorID        string               `gorm:"size:64;not null;index" json:"operator_id"`
	OriginChatID      string               `gorm:"size:64;not null;index:idx_tasks_origin" json:"origin_chat_id"`
	OriginThreadID    int                  `gorm:"not null;index:idx_tasks_origin" json:"origin_thread_id"`
	TargetURL         string               `gorm:"type:text" json:"target_url,omitempty"`
	Status            constants.TaskStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Version           uint                 `gorm:"not null;default:1" json:"version"`
	AssignedAt        time.Time            `gorm:"not null;index" json:"assigned_at"`
	ClickedAt         *time.Time           `json:"clicked_at,omitempty"`
	ExpectedAmount    decimal.NullDecimal  `gorm:"type:text" json:"expected_amount"`
	OperatorThreadID  *int                 `json:"operator_thread_id,omitempty"`
	OperatorMessageID *int                 `json:"operator_message_id,omitempty"`
	BlockchainURL     *string              `gorm:"type:text" json:"blockchain_url,omitempty"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// Queued reports whether the task is still waiting for an operator.
func (t *Task) Queued() bool {
	return t.OperatorID == constants.QueueOperatorID
}

func (t *Task) Origin() Origin {
	return Origin{ChatID: t.OriginChatID, ThreadID: t.OriginThreadID}
}

// Origin points at the conversation thread a task was requested from.
type Origin struct {
	ChatID   string
	ThreadID int
}

// Link builds a t.me deep link to the origin thread. Public chats addressed
// by @username use the username path; private supergroups use /c/ with the
// -100 prefix dropped.
func (o Origin) Link() string {
	if name, ok := strings.CutPrefix(o.ChatID, "@"); ok {
		return fmt.Sprintf("https://t.me/%s/%d", name, o.ThreadID)
	}
	id := strings.TrimPrefix(o.ChatID, "-100")
	return fmt.Sprintf("https://t.me/c/%s/%d", id, o.ThreadID)
}
