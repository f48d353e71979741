package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"operator-dispatch.com/operator-dispatch/internal/constants"
	apperrors "operator-dispatch.com/operator-dispatch/internal/errors"
	model "operator-dispatch.com/operator-dispatch/internal/models"
	"operator-dispatch.com/operator-dispatch/internal/queue"
	repository "operator-dispatch.com/operator-dispatch/internal/repositories"
)

// mockNotifier records delivered cards and hands out message ids.
type mockNotifier struct {
	mu     sync.Mutex
	sent   []sentCard
	fail   error
	nextID int
}

type sentCard struct {
	operatorID string
	card       Card
}

func (n *mockNotifier) Notify(ctx context.Context, operatorID string, card Card) (Delivery, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.fail != nil {
		return Delivery{}, n.fail
	}

	n.nextID++
	messageID := n.nextID
	delivery := Delivery{MessageID: &messageID}
	if card.Kind == CardTask && card.ThreadID == nil {
		threadID := 1000 + messageID
		delivery.ThreadID = &threadID
	}

	n.sent = append(n.sent, sentCard{operatorID: operatorID, card: card})
	return delivery, nil
}

func (n *mockNotifier) last() sentCard {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.sent) == 0 {
		return sentCard{}
	}
	return n.sent[len(n.sent)-1]
}

func setupTestDB(t *testing.T) *gorm.DB {
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(&model.Task{}, &model.Operator{}, &model.TaskEvent{})
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

type testEnv struct {
	scheduler *SchedulerService
	registry  *RegistryService
	tasks     *repository.TaskRepository
	events    *repository.EventRepository
	operators *repository.OperatorRepository
	notifier  *mockNotifier
}

func newTestEnv(t *testing.T, opts SchedulerOptions, online ...string) *testEnv {
	db := setupTestDB(t)
	env := &testEnv{
		tasks:     repository.NewTaskRepository(db),
		events:    repository.NewEventRepository(db),
		operators: repository.NewOperatorRepository(db),
		notifier:  &mockNotifier{},
	}
	env.registry = NewRegistryService(env.operators, env.tasks, queue.NewMutexLocker(5*time.Second))
	env.scheduler = NewSchedulerService(env.registry, env.tasks, env.events, env.notifier, nil, opts)

	for _, id := range online {
		env.setOperator(t, id, constants.OperatorOnline)
	}
	return env
}

func (e *testEnv) setOperator(t *testing.T, id, status string) {
	t.Helper()
	err := e.operators.Upsert(context.Background(), &model.Operator{
		ID:     id,
		Handle: "handle_" + id,
		Role:   constants.RoleOperator,
		Status: status,
	})
	if err != nil {
		t.Fatalf("upsert operator %s: %v", id, err)
	}
}

func (e *testEnv) act(t *testing.T, task *model.Task, action constants.Action) *ActionResult {
	t.Helper()
	result, err := e.scheduler.OnOperatorAction(context.Background(), ActionRequest{
		TaskID:     task.ID,
		OperatorID: task.OperatorID,
		Action:     action,
	})
	if err != nil {
		t.Fatalf("%s task %d: %v", action, task.ID, err)
	}
	return result
}

var testOrigin = model.Origin{ChatID: "-1001234567890", ThreadID: 7}

const evidenceHash = "4f6a2c3e9b1d8e7f6a5b4c3d2e1f0a9b8c7d6e5f4a3b2c1d0e9f8a7b6c5d4e3f"

func evidenceText(amount string) string {
	return "https://tronscan.org/#/transaction/" + evidenceHash + " " + amount
}

func TestSchedulerService_ConcurrentAssignments(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{}, "op-1", "op-2", "op-3")

	const concurrentCount = 10
	var wg sync.WaitGroup
	wg.Add(concurrentCount)

	results := make(chan *AssignResult, concurrentCount)
	errs := make(chan error, concurrentCount)

	for i := 0; i < concurrentCount; i++ {
		go func(idx int) {
			defer wg.Done()
			result, err := env.scheduler.Assign(context.Background(), testOrigin, fmt.Sprintf("https://forms.example/%d", idx))
			if err != nil {
				errs <- err
				return
			}
			results <- result
		}(i)
	}

	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Errorf("concurrent assignment failed: %v", err)
	}

	assigned := map[string]int{}
	queued := 0
	for result := range results {
		switch result.Outcome {
		case OutcomeAssigned:
			assigned[result.Task.OperatorID]++
		case OutcomeQueued:
			queued++
			if result.Task.OperatorID != constants.QueueOperatorID {
				t.Errorf("queued task owned by %q", result.Task.OperatorID)
			}
		default:
			t.Errorf("unexpected outcome %s", result.Outcome)
		}
	}

	if len(assigned) != 3 {
		t.Errorf("expected 3 distinct operators, got %v", assigned)
	}
	for op, n := range assigned {
		if n != 1 {
			t.Errorf("operator %s got %d tasks", op, n)
		}
	}
	if queued != concurrentCount-3 {
		t.Errorf("expected %d queued, got %d", concurrentCount-3, queued)
	}
}

func TestSchedulerService_AssignNoneOnline(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{})
	env.setOperator(t, "op-1", constants.OperatorOffline)

	result, err := env.scheduler.Assign(context.Background(), testOrigin, "https://forms.example/1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	if result.Outcome != OutcomeNoneOnline {
		t.Errorf("expected none_online, got %s", result.Outcome)
	}
	if result.Task.Status != constants.StatusPending || !result.Task.Queued() {
		t.Errorf("expected pending queue task, got %+v", result.Task)
	}
	if result.Display() != "no operator online" {
		t.Errorf("unexpected display %q", result.Display())
	}
}

func TestSchedulerService_AssignDegradedWhenNotifierFails(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{}, "op-1")
	env.notifier.fail = apperrors.ErrOperatorUnmapped
	ctx := context.Background()

	result, err := env.scheduler.Assign(ctx, testOrigin, "https://forms.example/1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	if result.Outcome != OutcomeAssigned || !result.Degraded {
		t.Fatalf("expected degraded assignment, got %+v", result)
	}
	if !strings.Contains(result.Display(), "@handle_op-1") {
		t.Errorf("display should still name the operator: %q", result.Display())
	}

	_, events, err := env.scheduler.GetTask(ctx, result.Task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if len(events) != 2 || events[1].Kind != constants.EventNotificationFailed {
		t.Errorf("expected assigned + notification_failed events, got %+v", events)
	}
}

func TestSchedulerService_Lifecycle(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{PublicURL: "https://dispatch.example/"}, "op-1")
	ctx := context.Background()

	assigned, err := env.scheduler.Assign(ctx, testOrigin, "https://forms.example/1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	task := assigned.Task

	card := env.notifier.last().card
	if card.TrackedURL != fmt.Sprintf("https://dispatch.example/r/%d", task.ID) {
		t.Errorf("unexpected tracked url %q", card.TrackedURL)
	}

	if got := env.act(t, task, constants.ActionAccept).Task.Status; got != constants.StatusActive {
		t.Errorf("after accept: %s", got)
	}
	if got := env.act(t, task, constants.ActionPause).Task.Status; got != constants.StatusPaused {
		t.Errorf("after pause: %s", got)
	}
	if got := env.act(t, task, constants.ActionResume).Task.Status; got != constants.StatusActive {
		t.Errorf("after resume: %s", got)
	}

	stored, events, err := env.scheduler.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if stored.OperatorThreadID == nil || stored.OperatorMessageID == nil {
		t.Errorf("expected delivery to be stored, got %+v", stored)
	}

	want := []constants.EventKind{
		constants.EventAssigned,
		constants.EventAccepted,
		constants.EventPaused,
		constants.EventResumed,
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, kind := range want {
		if events[i].Kind != kind {
			t.Errorf("event %d: expected %s, got %s", i, kind, events[i].Kind)
		}
	}
}

func TestSchedulerService_DuplicateAccept(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{}, "op-1")

	assigned, _ := env.scheduler.Assign(context.Background(), testOrigin, "https://forms.example/1")
	env.act(t, assigned.Task, constants.ActionAccept)

	result := env.act(t, assigned.Task, constants.ActionAccept)
	if result.Changed {
		t.Error("second accept should not change the task")
	}
	if result.Task.Status != constants.StatusActive {
		t.Errorf("expected active, got %s", result.Task.Status)
	}
}

func TestSchedulerService_RejectsForeignAndInvalidActions(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{}, "op-1")
	ctx := context.Background()

	assigned, _ := env.scheduler.Assign(ctx, testOrigin, "https://forms.example/1")

	_, err := env.scheduler.OnOperatorAction(ctx, ActionRequest{
		TaskID:     assigned.Task.ID,
		OperatorID: "op-2",
		Action:     constants.ActionAccept,
	})
	if !errors.Is(err, apperrors.ErrNotTaskOwner) {
		t.Errorf("expected ErrNotTaskOwner, got %v", err)
	}

	_, err = env.scheduler.OnOperatorAction(ctx, ActionRequest{
		TaskID:     assigned.Task.ID,
		OperatorID: "op-1",
		Action:     constants.ActionPause,
	})
	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for pause of pending task, got %v", err)
	}

	_, err = env.scheduler.OnOperatorAction(ctx, ActionRequest{TaskID: 999, OperatorID: "op-1", Action: constants.ActionAccept})
	if !errors.Is(err, apperrors.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestSchedulerService_ResumeConflictsWithActiveTask(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{}, "op-1")
	ctx := context.Background()

	first, _ := env.scheduler.Assign(ctx, testOrigin, "https://forms.example/1")
	env.act(t, first.Task, constants.ActionAccept)
	env.act(t, first.Task, constants.ActionPause)

	// A paused task does not keep its operator busy.
	second, err := env.scheduler.Assign(ctx, testOrigin, "https://forms.example/2")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if second.Outcome != OutcomeAssigned || second.Task.OperatorID != "op-1" {
		t.Fatalf("expected second task assigned to op-1, got %+v", second)
	}
	env.act(t, second.Task, constants.ActionAccept)

	_, err = env.scheduler.OnOperatorAction(ctx, ActionRequest{
		TaskID:     first.Task.ID,
		OperatorID: "op-1",
		Action:     constants.ActionResume,
	})
	if !errors.Is(err, apperrors.ErrActiveTaskConflict) {
		t.Fatalf("expected ErrActiveTaskConflict, got %v", err)
	}

	stored, _, _ := env.scheduler.GetTask(ctx, first.Task.ID)
	if stored.Status != constants.StatusPaused {
		t.Errorf("resumed task should stay paused, got %s", stored.Status)
	}
	other, _, _ := env.scheduler.GetTask(ctx, second.Task.ID)
	if other.Status != constants.StatusActive {
		t.Errorf("other task should stay active, got %s", other.Status)
	}
}

func TestSchedulerService_TrackedClick(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{}, "op-1")
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env.scheduler.now = func() time.Time { return base }

	assigned, _ := env.scheduler.Assign(ctx, testOrigin, "https://forms.example/1")

	if _, err := env.scheduler.OnTrackedClick(ctx, 999); !errors.Is(err, apperrors.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}

	env.scheduler.now = func() time.Time { return base.Add(time.Minute) }
	first, err := env.scheduler.OnTrackedClick(ctx, assigned.Task.ID)
	if err != nil {
		t.Fatalf("first click: %v", err)
	}
	if !first.FirstClick || first.TargetURL != "https://forms.example/1" {
		t.Errorf("unexpected first click result %+v", first)
	}

	env.scheduler.now = func() time.Time { return base.Add(2 * time.Minute) }
	second, err := env.scheduler.OnTrackedClick(ctx, assigned.Task.ID)
	if err != nil {
		t.Fatalf("second click: %v", err)
	}
	if second.FirstClick {
		t.Error("second click should not be recorded as first")
	}

	stored, events, _ := env.scheduler.GetTask(ctx, assigned.Task.ID)
	if stored.ClickedAt == nil || !stored.ClickedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("expected first click time to be kept, got %v", stored.ClickedAt)
	}

	clicks := 0
	for _, e := range events {
		if e.Kind == constants.EventClicked {
			clicks++
		}
	}
	if clicks != 1 {
		t.Errorf("expected one clicked event, got %d", clicks)
	}
}

func TestSchedulerService_TrackedClickWithoutTarget(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{}, "op-1")
	ctx := context.Background()

	assigned, _ := env.scheduler.Assign(ctx, testOrigin, "")

	_, err := env.scheduler.OnTrackedClick(ctx, assigned.Task.ID)
	if !errors.Is(err, apperrors.ErrTargetMissing) {
		t.Errorf("expected ErrTargetMissing, got %v", err)
	}
}

func TestSchedulerService_EvidenceMatchCompletesTask(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{}, "op-1")
	ctx := context.Background()

	assigned, _ := env.scheduler.Assign(ctx, testOrigin, "https://forms.example/1")
	if _, err := env.scheduler.SetExpectedAmount(ctx, testOrigin, decimal.RequireFromString("100.5")); err != nil {
		t.Fatalf("set expected amount: %v", err)
	}
	env.act(t, assigned.Task, constants.ActionAccept)

	result, err := env.scheduler.OnEvidenceMessage(ctx, "op-1", evidenceText("100.50"))
	if err != nil {
		t.Fatalf("evidence: %v", err)
	}
	if !result.Matched || result.Task.Status != constants.StatusCompleted {
		t.Fatalf("expected completed task, got %+v", result)
	}
	if result.Task.BlockchainURL == nil || !strings.Contains(*result.Task.BlockchainURL, "tronscan.org") {
		t.Errorf("expected explorer link to be stored, got %v", result.Task.BlockchainURL)
	}
	if result.Promoted != nil {
		t.Errorf("nothing queued, got promotion %+v", result.Promoted)
	}
	if card := env.notifier.last().card; card.Kind != CardCompleted {
		t.Errorf("expected completed card, got %s", card.Kind)
	}
}

func TestSchedulerService_EvidenceMismatchKeepsTaskActive(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{}, "op-1")
	ctx := context.Background()

	assigned, _ := env.scheduler.Assign(ctx, testOrigin, "https://forms.example/1")
	_, _ = env.scheduler.SetExpectedAmount(ctx, testOrigin, decimal.RequireFromString("100.5"))
	env.act(t, assigned.Task, constants.ActionAccept)

	cases := []struct {
		text   string
		reason MismatchReason
	}{
		{evidenceText("99.99"), ReasonAmountMismatch},
		{evidenceHash, ReasonUnparseable},
	}

	for _, tc := range cases {
		result, err := env.scheduler.OnEvidenceMessage(ctx, "op-1", tc.text)
		if err != nil {
			t.Fatalf("evidence %q: %v", tc.text, err)
		}
		if result.Matched || result.Reason != tc.reason {
			t.Errorf("evidence %q: expected %s, got %+v", tc.text, tc.reason, result)
		}
		if card := env.notifier.last().card; card.Kind != CardAmountMismatch || card.Reason != tc.reason {
			t.Errorf("evidence %q: unexpected card %+v", tc.text, card)
		}
	}

	stored, _, _ := env.scheduler.GetTask(ctx, assigned.Task.ID)
	if stored.Status != constants.StatusActive {
		t.Errorf("expected task to stay active, got %s", stored.Status)
	}
}

func TestSchedulerService_EvidenceDegradedWhenNotifierFails(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{}, "op-1")
	ctx := context.Background()

	assigned, _ := env.scheduler.Assign(ctx, testOrigin, "https://forms.example/1")
	_, _ = env.scheduler.SetExpectedAmount(ctx, testOrigin, decimal.RequireFromString("1000.5"))
	env.act(t, assigned.Task, constants.ActionAccept)
	queued, _ := env.scheduler.Assign(ctx, model.Origin{ChatID: "-100200", ThreadID: 1}, "https://forms.example/2")

	env.notifier.fail = apperrors.ErrOperatorUnmapped

	mismatch, err := env.scheduler.OnEvidenceMessage(ctx, "op-1", evidenceText("999"))
	if err != nil {
		t.Fatalf("mismatch: %v", err)
	}
	if mismatch.Matched || mismatch.Reason != ReasonAmountMismatch {
		t.Errorf("expected amount_mismatch, got %+v", mismatch)
	}
	if !mismatch.Degraded || mismatch.DegradedReason != apperrors.ErrOperatorUnmapped.Message {
		t.Errorf("lost mismatch card must degrade the result, got %+v", mismatch)
	}

	matched, err := env.scheduler.OnEvidenceMessage(ctx, "op-1", evidenceText("1 000.50"))
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if !matched.Matched || matched.Task.Status != constants.StatusCompleted {
		t.Fatalf("expected completion despite failed delivery, got %+v", matched)
	}
	if !matched.Degraded {
		t.Error("lost completion card must degrade the result")
	}
	if matched.Promoted == nil || matched.Promoted.ID != queued.Task.ID {
		t.Errorf("promotion should still happen, got %+v", matched.Promoted)
	}

	_, events, _ := env.scheduler.GetTask(ctx, assigned.Task.ID)
	failures := 0
	for _, ev := range events {
		if ev.Kind == constants.EventNotificationFailed {
			failures++
		}
	}
	if failures != 2 {
		t.Errorf("expected mismatch and completion delivery failures logged, got %d", failures)
	}
}

func TestSchedulerService_EvidenceNotDegradedOnDelivery(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{}, "op-1")
	ctx := context.Background()

	assigned, _ := env.scheduler.Assign(ctx, testOrigin, "https://forms.example/1")
	_, _ = env.scheduler.SetExpectedAmount(ctx, testOrigin, decimal.RequireFromString("20"))
	env.act(t, assigned.Task, constants.ActionAccept)

	result, err := env.scheduler.OnEvidenceMessage(ctx, "op-1", evidenceText("20"))
	if err != nil {
		t.Fatalf("evidence: %v", err)
	}
	if !result.Matched || result.Degraded {
		t.Errorf("expected clean completion, got %+v", result)
	}
}

func TestSchedulerService_CompletedTaskIsTerminal(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{}, "op-1")
	ctx := context.Background()

	assigned, _ := env.scheduler.Assign(ctx, testOrigin, "https://forms.example/1")
	_, _ = env.scheduler.SetExpectedAmount(ctx, testOrigin, decimal.RequireFromString("5"))
	env.act(t, assigned.Task, constants.ActionAccept)

	if _, err := env.scheduler.OnEvidenceMessage(ctx, "op-1", evidenceText("5")); err != nil {
		t.Fatalf("evidence: %v", err)
	}

	for _, action := range []constants.Action{constants.ActionAccept, constants.ActionPause, constants.ActionResume} {
		_, err := env.scheduler.OnOperatorAction(ctx, ActionRequest{
			TaskID:     assigned.Task.ID,
			OperatorID: "op-1",
			Action:     action,
		})
		if !errors.Is(err, apperrors.ErrInvalidTransition) {
			t.Errorf("%s on completed task: expected ErrInvalidTransition, got %v", action, err)
		}
	}

	stored, _, _ := env.scheduler.GetTask(ctx, assigned.Task.ID)
	if stored.Status != constants.StatusCompleted {
		t.Errorf("completed task changed status to %s", stored.Status)
	}
}

func TestSchedulerService_EvidenceEdgeCases(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{}, "op-1")
	ctx := context.Background()

	ignored, err := env.scheduler.OnEvidenceMessage(ctx, "op-1", "on my way")
	if err != nil || ignored.Evidence {
		t.Errorf("plain chatter should be ignored, got %+v, %v", ignored, err)
	}

	result, err := env.scheduler.OnEvidenceMessage(ctx, "op-1", evidenceText("10"))
	if err != nil {
		t.Fatalf("evidence: %v", err)
	}
	if result.Reason != ReasonNoActiveTask {
		t.Errorf("expected no_active_task, got %s", result.Reason)
	}

	assigned, _ := env.scheduler.Assign(ctx, testOrigin, "https://forms.example/1")
	env.act(t, assigned.Task, constants.ActionAccept)

	result, err = env.scheduler.OnEvidenceMessage(ctx, "op-1", evidenceText("10"))
	if err != nil {
		t.Fatalf("evidence: %v", err)
	}
	if result.Reason != ReasonNoExpectedAmount {
		t.Errorf("expected no_expected_amount, got %s", result.Reason)
	}
}

func TestSchedulerService_CompleteRequestPromptsForEvidence(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{}, "op-1")
	ctx := context.Background()

	assigned, _ := env.scheduler.Assign(ctx, testOrigin, "https://forms.example/1")

	_, err := env.scheduler.OnOperatorAction(ctx, ActionRequest{
		TaskID:     assigned.Task.ID,
		OperatorID: "op-1",
		Action:     constants.ActionCompleteRequest,
	})
	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition before accept, got %v", err)
	}

	env.act(t, assigned.Task, constants.ActionAccept)
	result := env.act(t, assigned.Task, constants.ActionCompleteRequest)
	if result.Task.Status != constants.StatusActive {
		t.Errorf("completion request must not change status, got %s", result.Task.Status)
	}
	if card := env.notifier.last().card; card.Kind != CardEvidencePrompt {
		t.Errorf("expected evidence prompt, got %s", card.Kind)
	}
}

func TestSchedulerService_PromotionOfferAndClaim(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{}, "op-1")
	ctx := context.Background()

	first, _ := env.scheduler.Assign(ctx, testOrigin, "https://forms.example/1")
	_, _ = env.scheduler.SetExpectedAmount(ctx, testOrigin, decimal.RequireFromString("50"))
	env.act(t, first.Task, constants.ActionAccept)

	queuedA, _ := env.scheduler.Assign(ctx, model.Origin{ChatID: "-100200", ThreadID: 1}, "https://forms.example/2")
	queuedB, _ := env.scheduler.Assign(ctx, model.Origin{ChatID: "-100200", ThreadID: 2}, "https://forms.example/3")
	if queuedA.Outcome != OutcomeQueued || queuedB.Outcome != OutcomeQueued {
		t.Fatalf("expected both tasks queued, got %s and %s", queuedA.Outcome, queuedB.Outcome)
	}

	result, err := env.scheduler.OnEvidenceMessage(ctx, "op-1", evidenceText("50"))
	if err != nil {
		t.Fatalf("evidence: %v", err)
	}
	if result.Promoted == nil || result.Promoted.ID != queuedA.Task.ID {
		t.Fatalf("expected oldest queued task %d offered, got %+v", queuedA.Task.ID, result.Promoted)
	}

	offer := env.notifier.last()
	if offer.operatorID != "op-1" || offer.card.Kind != CardPromotionOffer || offer.card.TaskID != queuedA.Task.ID {
		t.Errorf("unexpected offer %+v", offer)
	}

	// An offer does not move ownership until the operator claims.
	stored, _, _ := env.scheduler.GetTask(ctx, queuedA.Task.ID)
	if !stored.Queued() {
		t.Errorf("offered task should still be queued, got owner %s", stored.OperatorID)
	}

	claimed, err := env.scheduler.OnOperatorAction(ctx, ActionRequest{
		TaskID:     queuedA.Task.ID,
		OperatorID: "op-1",
		Action:     constants.ActionClaim,
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Task.OperatorID != "op-1" || claimed.Task.Status != constants.StatusPending {
		t.Errorf("unexpected claimed task %+v", claimed.Task)
	}

	_, err = env.scheduler.OnOperatorAction(ctx, ActionRequest{
		TaskID:     queuedA.Task.ID,
		OperatorID: "op-2",
		Action:     constants.ActionClaim,
	})
	if !errors.Is(err, apperrors.ErrTaskAlreadyClaimed) {
		t.Errorf("expected ErrTaskAlreadyClaimed, got %v", err)
	}

	_, err = env.scheduler.OnOperatorAction(ctx, ActionRequest{
		TaskID:     queuedB.Task.ID,
		OperatorID: "op-1",
		Action:     constants.ActionClaim,
	})
	if !errors.Is(err, apperrors.ErrActiveTaskConflict) {
		t.Errorf("busy operator must not claim a second task, got %v", err)
	}
}

func TestSchedulerService_AutoPromotion(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{PromotionPolicy: constants.PromotionAuto}, "op-1")
	ctx := context.Background()

	first, _ := env.scheduler.Assign(ctx, testOrigin, "https://forms.example/1")
	_, _ = env.scheduler.SetExpectedAmount(ctx, testOrigin, decimal.RequireFromString("75.25"))
	env.act(t, first.Task, constants.ActionAccept)

	queued, _ := env.scheduler.Assign(ctx, model.Origin{ChatID: "-100200", ThreadID: 1}, "https://forms.example/2")

	result, err := env.scheduler.OnEvidenceMessage(ctx, "op-1", evidenceText("75.25"))
	if err != nil {
		t.Fatalf("evidence: %v", err)
	}
	if result.Promoted == nil || result.Promoted.ID != queued.Task.ID {
		t.Fatalf("expected task %d promoted, got %+v", queued.Task.ID, result.Promoted)
	}
	if result.Promoted.OperatorID != "op-1" {
		t.Errorf("expected promoted task owned by op-1, got %s", result.Promoted.OperatorID)
	}
	if card := env.notifier.last().card; card.Kind != CardTask || card.TaskID != queued.Task.ID {
		t.Errorf("expected task card for promoted task, got %+v", card)
	}
}

func TestRegistryService_SkipsBusyAndOfflineOperators(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{}, "op-a", "op-b", "op-c")
	env.setOperator(t, "op-b", constants.OperatorOffline)
	ctx := context.Background()

	task, err := env.tasks.CreateTask(ctx, "op-a", testOrigin, "", time.Now())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	task.Status = constants.StatusActive
	if err := env.tasks.Update(ctx, task); err != nil {
		t.Fatalf("update: %v", err)
	}

	operator, err := env.registry.GetAvailableOperator(ctx)
	if err != nil {
		t.Fatalf("get available: %v", err)
	}
	if operator == nil || operator.ID != "op-c" {
		t.Errorf("expected op-c, got %+v", operator)
	}

	if online := env.registry.ListOnlineOperators(ctx); len(online) != 2 {
		t.Errorf("expected 2 online operators, got %d", len(online))
	}
}

func TestRegistryService_FirstFreeInRosterOrder(t *testing.T) {
	env := newTestEnv(t, SchedulerOptions{}, "op-b", "op-a")
	ctx := context.Background()

	task, _ := env.tasks.CreateTask(ctx, "op-b", testOrigin, "", time.Now())
	task.Status = constants.StatusActive
	_ = env.tasks.Update(ctx, task)

	operator, err := env.registry.GetAvailableOperator(ctx)
	if err != nil {
		t.Fatalf("get available: %v", err)
	}
	if operator == nil || operator.ID != "op-a" {
		t.Errorf("expected op-a, got %+v", operator)
	}
}
