package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	model "operator-dispatch.com/operator-dispatch/internal/models"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Append(ctx context.Context, event *model.TaskEvent) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

// ListByTask returns the events of a task in the order they were recorded.
func (r *EventRepository) ListByTask(ctx context.Context, taskID uint) ([]model.TaskEvent, error) {
	var events []model.TaskEvent
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("id asc").Find(&events).Error
	return events, err
}
