package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	apperrors "operator-dispatch.com/operator-dispatch/internal/errors"
	model "operator-dispatch.com/operator-dispatch/internal/models"
	"operator-dispatch.com/operator-dispatch/internal/queue"
	repository "operator-dispatch.com/operator-dispatch/internal/repositories"
)

// RegistryService answers who is online and who can take work right now.
type RegistryService struct {
	operators *repository.OperatorRepository
	tasks     *repository.TaskRepository
	locker    queue.Locker
}

// Availability is the outcome of one availability decision. Operator is nil
// when nobody can take work; Online tells "nobody online" from "all busy".
type Availability struct {
	Operator *model.Operator
	Online   int
}

func NewRegistryService(
	operators *repository.OperatorRepository,
	tasks *repository.TaskRepository,
	locker queue.Locker,
) *RegistryService {
	return &RegistryService{
		operators: operators,
		tasks:     tasks,
		locker:    locker,
	}
}

// ListOnlineOperators never fails: a roster lookup error means nobody is
// available.
func (r *RegistryService) ListOnlineOperators(ctx context.Context) []model.Operator {
	operators, err := r.operators.ListOnline(ctx)
	if err != nil {
		log.Printf("registry: failed to list online operators: %v", err)
		return nil
	}
	return operators
}

func (r *RegistryService) GetAvailableOperator(ctx context.Context) (*model.Operator, error) {
	var operator *model.Operator
	err := r.Reserve(ctx, func(av Availability) error {
		operator = av.Operator
		return nil
	})
	return operator, err
}

// Reserve makes the availability decision and runs fn with it while still
// holding the assignment lock, so fn can record the reservation before any
// other caller looks at the same operator.
func (r *RegistryService) Reserve(ctx context.Context, fn func(Availability) error) error {
	return r.WithLock(ctx, func() error {
		av, err := r.availability(ctx)
		if err != nil {
			return err
		}
		return fn(av)
	})
}

// WithLock runs fn under the assignment lock.
func (r *RegistryService) WithLock(ctx context.Context, fn func() error) error {
	release, err := r.locker.Acquire(ctx)
	if err != nil {
		if errors.Is(err, queue.ErrLockTimeout) {
			return apperrors.ErrLockTimeout
		}
		return fmt.Errorf("acquire assignment lock: %w", err)
	}
	defer release()

	return fn()
}

// availability picks the first online operator in roster order that holds no
// pending or active task.
func (r *RegistryService) availability(ctx context.Context) (Availability, error) {
	online := r.ListOnlineOperators(ctx)
	av := Availability{Online: len(online)}

	for i := range online {
		busy, err := r.tasks.CountBusy(ctx, online[i].ID)
		if err != nil {
			return av, fmt.Errorf("count tasks of operator %s: %w", online[i].ID, err)
		}
		if busy == 0 {
			av.Operator = &online[i]
			return av, nil
		}
	}

	return av, nil
}
