package model

import "time"

// Operator is a roster entry. Its status is owned by whoever runs the roster;
// the scheduler only reads it.
type Operator struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Handle    string    `gorm:"size:64;not null" json:"handle"`
	Role      string    `gorm:"size:32;not null;index" json:"role"`
	Status    string    `gorm:"size:16;not null;index" json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Mention renders the handle the way chat users expect to see it.
func (o *Operator) Mention() string {
	if o.Handle == "" {
		return o.ID
	}
	return "@" + o.Handle
}
