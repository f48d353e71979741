package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"operator-dispatch.com/operator-dispatch/internal/constants"
	apperrors "operator-dispatch.com/operator-dispatch/internal/errors"
	"operator-dispatch.com/operator-dispatch/internal/metrics"
	model "operator-dispatch.com/operator-dispatch/internal/models"
	repository "operator-dispatch.com/operator-dispatch/internal/repositories"
)

// maxWriteAttempts bounds re-reads after optimistic lock conflicts.
const maxWriteAttempts = 3

type AssignOutcome string

const (
	OutcomeAssigned   AssignOutcome = "assigned"
	OutcomeQueued     AssignOutcome = "queued"
	OutcomeNoneOnline AssignOutcome = "none_online"
)

type AssignResult struct {
	Outcome        AssignOutcome   `json:"outcome"`
	Task           *model.Task     `json:"task"`
	Operator       *model.Operator `json:"operator,omitempty"`
	Degraded       bool            `json:"degraded"`
	DegradedReason string          `json:"degraded_reason,omitempty"`
}

// Display is the human-readable assignment result posted back to the origin.
func (r *AssignResult) Display() string {
	switch r.Outcome {
	case OutcomeAssigned:
		if r.Degraded {
			return fmt.Sprintf("%s (operator not notified: %s)", r.Operator.Mention(), r.DegradedReason)
		}
		return r.Operator.Mention()
	case OutcomeNoneOnline:
		return "no operator online"
	}
	return "queued"
}

type ActionRequest struct {
	TaskID     uint
	OperatorID string
	Action     constants.Action
}

type ActionResult struct {
	Task *model.Task `json:"task"`
	// Changed is false when the request repeated an already applied action.
	Changed        bool   `json:"changed"`
	Degraded       bool   `json:"degraded"`
	DegradedReason string `json:"degraded_reason,omitempty"`
}

type EvidenceResult struct {
	// Evidence is false when the text did not look like settlement evidence
	// at all and was ignored.
	Evidence bool           `json:"evidence"`
	Matched  bool           `json:"matched"`
	Reason   MismatchReason `json:"reason,omitempty"`
	Task     *model.Task    `json:"task,omitempty"`
	Promoted *model.Task    `json:"promoted,omitempty"`
	// Degraded is set when the verdict was stored but a card (mismatch,
	// completion or promotion offer) did not reach the operator.
	Degraded       bool   `json:"degraded"`
	DegradedReason string `json:"degraded_reason,omitempty"`
}

func (r *EvidenceResult) degrade(reason string) {
	if reason == "" || r.Degraded {
		return
	}
	r.Degraded = true
	r.DegradedReason = reason
}

// deliveryFailure is the degraded reason for a failed notification, or ""
// when it went through.
func deliveryFailure(err error) string {
	if err == nil {
		return ""
	}
	return apperrors.PublicMessage(err)
}

type ClickResult struct {
	TaskID     uint   `json:"task_id"`
	TargetURL  string `json:"target_url"`
	FirstClick bool   `json:"first_click"`
}

type SchedulerOptions struct {
	// PublicURL is the externally reachable base of the click redirect.
	PublicURL       string
	NotifyTimeout   time.Duration
	PromotionPolicy constants.PromotionPolicy
}

type transition struct {
	from        constants.TaskStatus
	to          constants.TaskStatus
	event       constants.EventKind
	guardActive bool
}

var transitions = map[constants.Action]transition{
	constants.ActionAccept: {constants.StatusPending, constants.StatusActive, constants.EventAccepted, true},
	constants.ActionPause:  {constants.StatusActive, constants.StatusPaused, constants.EventPaused, false},
	constants.ActionResume: {constants.StatusPaused, constants.StatusActive, constants.EventResumed, true},
}

// SchedulerService assigns work to operators and drives the task lifecycle.
type SchedulerService struct {
	registry *RegistryService
	tasks    *repository.TaskRepository
	events   *repository.EventRepository
	notifier Notifier
	metrics  *metrics.Metrics
	opts     SchedulerOptions
	now      func() time.Time
}

func NewSchedulerService(
	registry *RegistryService,
	tasks *repository.TaskRepository,
	events *repository.EventRepository,
	notifier Notifier,
	m *metrics.Metrics,
	opts SchedulerOptions,
) *SchedulerService {
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	if opts.PromotionPolicy == "" {
		opts.PromotionPolicy = constants.PromotionNotify
	}

	return &SchedulerService{
		registry: registry,
		tasks:    tasks,
		events:   events,
		notifier: notifier,
		metrics:  m,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Assign hands a new work item to the first free operator, or parks it in the
// queue when nobody can take it.
func (s *SchedulerService) Assign(ctx context.Context, origin model.Origin, targetURL string) (*AssignResult, error) {
	result := &AssignResult{}

	err := s.registry.Reserve(ctx, func(av Availability) error {
		operatorID := constants.QueueOperatorID
		if av.Operator != nil {
			operatorID = av.Operator.ID
		}

		task, err := s.tasks.CreateTask(ctx, operatorID, origin, targetURL, s.now())
		if err != nil {
			return fmt.Errorf("create task: %w", err)
		}

		result.Task = task
		result.Operator = av.Operator
		switch {
		case av.Operator != nil:
			result.Outcome = OutcomeAssigned
		case av.Online == 0:
			result.Outcome = OutcomeNoneOnline
		default:
			result.Outcome = OutcomeQueued
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Assignment(string(result.Outcome))
	task := result.Task
	pending := constants.StatusPending

	if result.Outcome != OutcomeAssigned {
		s.record(ctx, task.ID, "", constants.EventQueued, nil, &pending, string(result.Outcome))
		log.Printf("scheduler: task %d queued (%s)", task.ID, result.Outcome)
		return result, nil
	}

	s.record(ctx, task.ID, task.OperatorID, constants.EventAssigned, nil, &pending, "")
	log.Printf("scheduler: task %d assigned to operator %s", task.ID, task.OperatorID)

	if err := s.notify(ctx, task, task.OperatorID, s.taskCard(task), true); err != nil {
		result.Degraded = true
		result.DegradedReason = apperrors.PublicMessage(err)
	}

	return result, nil
}

// OnOperatorAction applies an operator's button press to a task.
func (s *SchedulerService) OnOperatorAction(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	task, err := s.tasks.FindByID(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}

	if req.Action == constants.ActionClaim {
		return s.claim(ctx, task, req.OperatorID)
	}

	if task.Queued() {
		return nil, fmt.Errorf("%s queued task %d: %w", req.Action, task.ID, apperrors.ErrInvalidTransition)
	}
	if req.OperatorID != "" && req.OperatorID != task.OperatorID {
		return nil, apperrors.ErrNotTaskOwner
	}

	if req.Action == constants.ActionCompleteRequest {
		return s.requestCompletion(ctx, task)
	}

	tr, ok := transitions[req.Action]
	if !ok {
		return nil, apperrors.ErrInvalidAction
	}

	result, err := s.transition(ctx, task, req.Action, tr)
	if err != nil {
		s.metrics.Action(string(req.Action), "rejected")
		return nil, err
	}
	if !result.Changed {
		s.metrics.Action(string(req.Action), "duplicate")
		return result, nil
	}

	s.metrics.Action(string(req.Action), "applied")
	if err := s.notify(ctx, result.Task, result.Task.OperatorID, s.taskCard(result.Task), true); err != nil {
		result.Degraded = true
		result.DegradedReason = apperrors.PublicMessage(err)
	}
	return result, nil
}

func (s *SchedulerService) transition(
	ctx context.Context,
	task *model.Task,
	action constants.Action,
	tr transition,
) (*ActionResult, error) {
	apply := func() (*ActionResult, error) {
		for attempt := 0; attempt < maxWriteAttempts; attempt++ {
			if task.Status == tr.to {
				return &ActionResult{Task: task}, nil
			}
			if task.Status.Terminal() {
				return nil, fmt.Errorf("%s task %d: already %s: %w", action, task.ID, task.Status, apperrors.ErrInvalidTransition)
			}
			if task.Status != tr.from {
				return nil, fmt.Errorf("%s task %d in status %s: %w", action, task.ID, task.Status, apperrors.ErrInvalidTransition)
			}

			if tr.guardActive {
				active, err := s.tasks.CountActive(ctx, task.OperatorID, task.ID)
				if err != nil {
					return nil, err
				}
				if active > 0 {
					return nil, fmt.Errorf("%s task %d: %w", action, task.ID, apperrors.ErrActiveTaskConflict)
				}
			}

			from := task.Status
			task.Status = tr.to
			err := s.tasks.Update(ctx, task)
			if err == nil {
				s.record(ctx, task.ID, task.OperatorID, tr.event, &from, &tr.to, "")
				log.Printf("scheduler: task %d %s -> %s", task.ID, from, tr.to)
				return &ActionResult{Task: task, Changed: true}, nil
			}
			if !errors.Is(err, repository.ErrOptimisticLock) {
				return nil, err
			}

			task, err = s.tasks.FindByID(ctx, task.ID)
			if err != nil {
				return nil, err
			}
		}
		return nil, repository.ErrOptimisticLock
	}

	if !tr.guardActive {
		return apply()
	}

	// Guarded transitions share the assignment lock so two tasks of one
	// operator cannot become active side by side.
	var result *ActionResult
	err := s.registry.WithLock(ctx, func() error {
		var err error
		result, err = apply()
		return err
	})
	return result, err
}

func (s *SchedulerService) requestCompletion(ctx context.Context, task *model.Task) (*ActionResult, error) {
	if task.Status != constants.StatusActive {
		s.metrics.Action(string(constants.ActionCompleteRequest), "rejected")
		return nil, fmt.Errorf("complete task %d in status %s: %w", task.ID, task.Status, apperrors.ErrInvalidTransition)
	}

	s.metrics.Action(string(constants.ActionCompleteRequest), "applied")
	s.record(ctx, task.ID, task.OperatorID, constants.EventCompletionRequested, nil, nil, "")

	result := &ActionResult{Task: task}
	card := Card{
		Kind:     CardEvidencePrompt,
		TaskID:   task.ID,
		Status:   task.Status,
		Expected: formatAmount(task.ExpectedAmount),
	}
	if err := s.notify(ctx, task, task.OperatorID, card, false); err != nil {
		result.Degraded = true
		result.DegradedReason = apperrors.PublicMessage(err)
	}
	return result, nil
}

func (s *SchedulerService) claim(ctx context.Context, task *model.Task, operatorID string) (*ActionResult, error) {
	if operatorID == "" {
		return nil, apperrors.ErrNotTaskOwner
	}
	if task.OperatorID == operatorID {
		return &ActionResult{Task: task}, nil
	}
	if !task.Queued() {
		return nil, apperrors.ErrTaskAlreadyClaimed
	}

	err := s.registry.WithLock(ctx, func() error {
		busy, err := s.tasks.CountBusy(ctx, operatorID)
		if err != nil {
			return err
		}
		if busy > 0 {
			return fmt.Errorf("claim task %d: %w", task.ID, apperrors.ErrActiveTaskConflict)
		}

		claimed, err := s.tasks.ClaimQueued(ctx, task.ID, operatorID)
		if err != nil {
			return err
		}
		if !claimed {
			return apperrors.ErrTaskAlreadyClaimed
		}
		return nil
	})
	if err != nil {
		s.metrics.Action(string(constants.ActionClaim), "rejected")
		return nil, err
	}

	s.metrics.Action(string(constants.ActionClaim), "applied")
	return s.afterClaim(ctx, task.ID, operatorID, "")
}

func (s *SchedulerService) afterClaim(ctx context.Context, taskID uint, operatorID, note string) (*ActionResult, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, task.ID, operatorID, constants.EventClaimed, nil, nil, note)
	log.Printf("scheduler: queued task %d claimed by operator %s", task.ID, operatorID)

	result := &ActionResult{Task: task, Changed: true}
	if err := s.notify(ctx, task, operatorID, s.taskCard(task), true); err != nil {
		result.Degraded = true
		result.DegradedReason = apperrors.PublicMessage(err)
	}
	return result, nil
}

// OnEvidenceMessage verifies settlement evidence sent by an operator against
// the expected amount of their active task.
func (s *SchedulerService) OnEvidenceMessage(ctx context.Context, operatorID, rawText string) (*EvidenceResult, error) {
	if !LooksLikeEvidence(rawText) {
		return &EvidenceResult{}, nil
	}

	task, err := s.tasks.FindActiveByOperator(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		s.metrics.Evidence(string(ReasonNoActiveTask))
		log.Printf("scheduler: evidence from operator %s without an active task", operatorID)
		return &EvidenceResult{Evidence: true, Reason: ReasonNoActiveTask}, nil
	}

	result := &EvidenceResult{Evidence: true, Task: task}
	received, parseErr := ParseAmount(rawText)

	switch {
	case !task.ExpectedAmount.Valid:
		result.Reason = ReasonNoExpectedAmount
	case parseErr != nil:
		result.Reason = ReasonUnparseable
	case !received.Equal(task.ExpectedAmount.Decimal):
		result.Reason = ReasonAmountMismatch
	}

	if result.Reason != ReasonNone {
		s.metrics.Evidence(string(result.Reason))
		note := string(result.Reason)
		if parseErr == nil {
			note = fmt.Sprintf("%s: received %s", result.Reason, received)
		}
		s.record(ctx, task.ID, operatorID, constants.EventAmountMismatch, nil, nil, note)

		card := Card{
			Kind:     CardAmountMismatch,
			TaskID:   task.ID,
			Status:   task.Status,
			Reason:   result.Reason,
			Expected: formatAmount(task.ExpectedAmount),
		}
		if parseErr == nil {
			card.Received = received.String()
		}
		result.degrade(deliveryFailure(s.notify(ctx, task, operatorID, card, false)))
		return result, nil
	}

	completed, changed, err := s.complete(ctx, task, ExtractProof(rawText))
	if err != nil {
		return nil, err
	}
	result.Matched = true
	result.Task = completed
	s.metrics.Evidence("matched")

	if !changed {
		return result, nil
	}

	card := s.taskCard(completed)
	card.Kind = CardCompleted
	result.degrade(deliveryFailure(s.notify(ctx, completed, operatorID, card, true)))

	promoted, failure := s.promote(ctx, operatorID)
	result.Promoted = promoted
	result.degrade(failure)
	return result, nil
}

func (s *SchedulerService) complete(ctx context.Context, task *model.Task, proof string) (*model.Task, bool, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		if task.Status.Terminal() {
			return task, false, nil
		}
		if task.Status != constants.StatusActive {
			return nil, false, fmt.Errorf("complete task %d in status %s: %w", task.ID, task.Status, apperrors.ErrInvalidTransition)
		}

		from := task.Status
		task.Status = constants.StatusCompleted
		if proof != "" {
			task.BlockchainURL = &proof
		}

		err := s.tasks.Update(ctx, task)
		if err == nil {
			to := constants.StatusCompleted
			s.record(ctx, task.ID, task.OperatorID, constants.EventCompleted, &from, &to, proof)
			log.Printf("scheduler: task %d completed by operator %s", task.ID, task.OperatorID)
			return task, true, nil
		}
		if !errors.Is(err, repository.ErrOptimisticLock) {
			return nil, false, err
		}

		task, err = s.tasks.FindByID(ctx, task.ID)
		if err != nil {
			return nil, false, err
		}
	}
	return nil, false, repository.ErrOptimisticLock
}

// promote offers (or, with the auto policy, hands) the oldest queued task to
// an operator that just freed up. Store failures are logged: the completion
// that triggered promotion has already been committed. The returned string is
// the degraded reason when the promoted task's card was not delivered.
func (s *SchedulerService) promote(ctx context.Context, operatorID string) (*model.Task, string) {
	queued, err := s.tasks.OldestQueued(ctx)
	if err != nil {
		log.Printf("scheduler: promotion lookup failed: %v", err)
		return nil, ""
	}
	if queued == nil {
		return nil, ""
	}

	s.metrics.Promotion(string(s.opts.PromotionPolicy))

	if s.opts.PromotionPolicy == constants.PromotionAuto {
		var claimed bool
		err := s.registry.WithLock(ctx, func() error {
			busy, err := s.tasks.CountBusy(ctx, operatorID)
			if err != nil || busy > 0 {
				return err
			}
			claimed, err = s.tasks.ClaimQueued(ctx, queued.ID, operatorID)
			return err
		})
		if err != nil {
			log.Printf("scheduler: auto promotion of task %d failed: %v", queued.ID, err)
			return nil, ""
		}
		if claimed {
			result, err := s.afterClaim(ctx, queued.ID, operatorID, "auto promotion")
			if err != nil {
				log.Printf("scheduler: auto promotion of task %d: %v", queued.ID, err)
				return nil, ""
			}
			return result.Task, result.DegradedReason
		}
		// Busy or raced by a claim: fall back to an offer.
	}

	s.record(ctx, queued.ID, operatorID, constants.EventPromotionOffered, nil, nil, "")
	card := Card{
		Kind:       CardPromotionOffer,
		TaskID:     queued.ID,
		Status:     queued.Status,
		TrackedURL: s.trackedURL(queued),
		OriginURL:  queued.Origin().Link(),
		Actions:    []constants.Action{constants.ActionClaim},
	}
	return queued, deliveryFailure(s.notify(ctx, queued, operatorID, card, false))
}

// OnTrackedClick records the first time an operator opens a task link and
// resolves where to redirect them.
func (s *SchedulerService) OnTrackedClick(ctx context.Context, taskID uint) (*ClickResult, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.TargetURL == "" {
		return nil, apperrors.ErrTargetMissing
	}

	at := s.now()
	if at.Before(task.AssignedAt) {
		at = task.AssignedAt
	}

	first, err := s.tasks.MarkClicked(ctx, task.ID, at)
	if err != nil {
		return nil, err
	}
	if first {
		s.metrics.Click()
		s.record(ctx, task.ID, task.OperatorID, constants.EventClicked, nil, nil, "")
	}

	return &ClickResult{TaskID: task.ID, TargetURL: task.TargetURL, FirstClick: first}, nil
}

// SetExpectedAmount stores the amount the calculation step expects the
// operator to settle for the newest open task of origin.
func (s *SchedulerService) SetExpectedAmount(ctx context.Context, origin model.Origin, amount decimal.Decimal) (*model.Task, error) {
	var err error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		var task *model.Task
		task, err = s.tasks.SetExpectedAmount(ctx, origin, amount)
		if err == nil {
			return task, nil
		}
		if !errors.Is(err, repository.ErrOptimisticLock) {
			return nil, err
		}
	}
	return nil, err
}

func (s *SchedulerService) GetTask(ctx context.Context, id uint) (*model.Task, []model.TaskEvent, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	events, err := s.events.ListByTask(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return task, events, nil
}

func (s *SchedulerService) ListTasks(ctx context.Context, limit int) ([]model.Task, error) {
	return s.tasks.List(ctx, limit)
}

func (s *SchedulerService) taskCard(task *model.Task) Card {
	return Card{
		Kind:       CardTask,
		TaskID:     task.ID,
		Status:     task.Status,
		TrackedURL: s.trackedURL(task),
		OriginURL:  task.Origin().Link(),
		Actions:    ActionsFor(task.Status),
		Expected:   formatAmount(task.ExpectedAmount),
	}
}

func (s *SchedulerService) trackedURL(task *model.Task) string {
	if task.TargetURL == "" {
		return ""
	}
	if s.opts.PublicURL == "" {
		return task.TargetURL
	}
	return fmt.Sprintf("%s/r/%d", strings.TrimRight(s.opts.PublicURL, "/"), task.ID)
}

// notify delivers card under the notification timeout. Failures are logged and
// recorded but never undo the state change that triggered the notification.
// With keep set, the task card message is remembered for later in-place edits.
func (s *SchedulerService) notify(ctx context.Context, task *model.Task, operatorID string, card Card, keep bool) error {
	if !task.Queued() {
		card.ThreadID = task.OperatorThreadID
	}
	if keep {
		card.MessageID = task.OperatorMessageID
	}

	nctx, cancel := context.WithTimeout(ctx, s.opts.NotifyTimeout)
	defer cancel()

	delivery, err := s.notifier.Notify(nctx, operatorID, card)
	s.metrics.Notification(err == nil)
	if err != nil {
		log.Printf("scheduler: task %d: notify operator %s (%s) failed: %v", task.ID, operatorID, card.Kind, err)
		s.record(ctx, task.ID, operatorID, constants.EventNotificationFailed, nil, nil, fmt.Sprintf("%s: %v", card.Kind, err))
		return err
	}

	if task.Queued() {
		return nil
	}

	var threadID, messageID *int
	if task.OperatorThreadID == nil && delivery.ThreadID != nil {
		threadID = delivery.ThreadID
		task.OperatorThreadID = delivery.ThreadID
	}
	if keep && delivery.MessageID != nil {
		messageID = delivery.MessageID
		task.OperatorMessageID = delivery.MessageID
	}
	if err := s.tasks.SetDelivery(ctx, task.ID, threadID, messageID); err != nil {
		log.Printf("scheduler: task %d: failed to store delivery: %v", task.ID, err)
	}
	return nil
}

// record appends to the task event log. The state write it describes is
// already committed, so a failure here is logged rather than returned.
func (s *SchedulerService) record(
	ctx context.Context,
	taskID uint,
	operatorID string,
	kind constants.EventKind,
	from, to *constants.TaskStatus,
	note string,
) {
	event := &model.TaskEvent{
		TaskID:     taskID,
		OperatorID: operatorID,
		Kind:       kind,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
		At:         s.now(),
	}
	if err := s.events.Append(ctx, event); err != nil {
		log.Printf("scheduler: task %d: failed to record %s event: %v", taskID, kind, err)
	}
}

func formatAmount(amount decimal.NullDecimal) string {
	if !amount.Valid {
		return ""
	}
	return amount.Decimal.String()
}
