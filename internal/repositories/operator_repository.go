package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"operator-dispatch.com/operator-dispatch/internal/constants"
	model "operator-dispatch.com/operator-dispatch/internal/models"
)

type OperatorRepository struct {
	db *gorm.DB
}

func NewOperatorRepository(db *gorm.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// ListOnline returns online operators in roster order (ascending id).
func (r *OperatorRepository) ListOnline(ctx context.Context) ([]model.Operator, error) {
	var operators []model.Operator
	err := r.db.WithContext(ctx).
		Where("status = ? AND role = ?", constants.OperatorOnline, constants.RoleOperator).
		Order("id asc").Find(&operators).Error
	return operators, err
}

func (r *OperatorRepository) List(ctx context.Context) ([]model.Operator, error) {
	var operators []model.Operator
	err := r.db.WithContext(ctx).Order("id asc").Find(&operators).Error
	return operators, err
}

func (r *OperatorRepository) Upsert(ctx context.Context, op *model.Operator) error {
	if op.Role == "" {
		op.Role = constants.RoleOperator
	}
	op.UpdatedAt = time.Now().UTC()

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"handle", "role", "status", "updated_at"}),
	}).Create(op).Error
}
