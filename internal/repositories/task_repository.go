package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"operator-dispatch.com/operator-dispatch/internal/constants"
	apperrors "operator-dispatch.com/operator-dispatch/internal/errors"
	model "operator-dispatch.com/operator-dispatch/internal/models"
)

type TaskRepository struct {
	db *gorm.DB
}

var ErrOptimisticLock = apperrors.ErrOptimisticLock

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) CreateTask(
	ctx context.Context,
	operatorID string,
	origin model.Origin,
	targetURL string,
	assignedAt time.Time,
) (*model.Task, error) {
	task := &model.Task{
		OperatorID:     operatorID,
		OriginChatID:   origin.ChatID,
		OriginThreadID: origin.ThreadID,
		TargetURL:      targetURL,
		Status:         constants.StatusPending,
		Version:        1,
		AssignedAt:     assignedAt.UTC(),
	}

	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, err
	}

	return task, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id uint) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) List(ctx context.Context, limit int) ([]model.Task, error) {
	if limit <= 0 || limit > apperrors.MaxListLimit {
		return nil, apperrors.ErrInvalidLimit
	}

	var tasks []model.Task
	err := r.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&tasks).Error
	return tasks, err
}

// CountBusy counts the tasks that keep an operator from being offered new work.
func (r *TaskRepository) CountBusy(ctx context.Context, operatorID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("operator_id = ? AND status IN ?", operatorID, constants.BusyStatuses).
		Count(&n).Error
	return n, err
}

// CountActive counts the operator's active tasks other than excludeID.
func (r *TaskRepository) CountActive(ctx context.Context, operatorID string, excludeID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("operator_id = ? AND status = ? AND id <> ?", operatorID, constants.StatusActive, excludeID).
		Count(&n).Error
	return n, err
}

// FindActiveByOperator returns nil, nil when the operator has no active task.
func (r *TaskRepository) FindActiveByOperator(ctx context.Context, operatorID string) (*model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("operator_id = ? AND status = ?", operatorID, constants.StatusActive).
		Order("id desc").Limit(1).Find(&tasks).Error
	if err != nil || len(tasks) == 0 {
		return nil, err
	}
	return &tasks[0], nil
}

// OldestQueued returns nil, nil when nothing is waiting in the queue.
func (r *TaskRepository) OldestQueued(ctx context.Context) (*model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("operator_id = ? AND status = ?", constants.QueueOperatorID, constants.StatusPending).
		Order("assigned_at asc").Order("id asc").Limit(1).Find(&tasks).Error
	if err != nil || len(tasks) == 0 {
		return nil, err
	}
	return &tasks[0], nil
}

func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	updatedAt := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND version = ?", task.ID, task.Version).
		Updates(map[string]interface{}{
			"operator_id":     task.OperatorID,
			"status":          task.Status,
			"expected_amount": task.ExpectedAmount,
			"blockchain_url":  task.BlockchainURL,
			"updated_at":      updatedAt,
			"version":         gorm.Expr("version + 1"),
		})

	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return ErrOptimisticLock
	}

	task.Version++
	task.UpdatedAt = updatedAt
	return nil
}

// MarkClicked stores the first click only. It reports whether this call was
// the one that set it.
func (r *TaskRepository) MarkClicked(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND clicked_at IS NULL", id).
		Update("clicked_at", at.UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClaimQueued moves a queued task to operatorID. It reports false when the
// task already left the queue.
func (r *TaskRepository) ClaimQueued(ctx context.Context, id uint, operatorID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND operator_id = ? AND status = ?", id, constants.QueueOperatorID, constants.StatusPending).
		Updates(map[string]interface{}{
			"operator_id": operatorID,
			"updated_at":  time.Now().UTC(),
			"version":     gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetDelivery remembers where the operator card lives so it can be edited in
// place. It does not bump the version: delivery data never races with status.
func (r *TaskRepository) SetDelivery(ctx context.Context, id uint, threadID, messageID *int) error {
	updates := map[string]interface{}{}
	if threadID != nil {
		updates["operator_thread_id"] = *threadID
	}
	if messageID != nil {
		updates["operator_message_id"] = *messageID
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", id).Updates(updates).Error
}

// SetExpectedAmount sets the amount on the newest unfinished task of origin.
func (r *TaskRepository) SetExpectedAmount(ctx context.Context, origin model.Origin, amount decimal.Decimal) (*model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("origin_chat_id = ? AND origin_thread_id = ? AND status <> ?",
			origin.ChatID, origin.ThreadID, constants.StatusCompleted).
		Order("id desc").Limit(1).Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, apperrors.ErrTaskNotFound
	}

	task := &tasks[0]
	task.ExpectedAmount = decimal.NewNullDecimal(amount)
	if err := r.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}
