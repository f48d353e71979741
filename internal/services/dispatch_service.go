package services

import (
	"context"
	"log"
	"sync"
	"time"

	"operator-dispatch.com/operator-dispatch/internal/constants"
)

type InboundKind string

const (
	InboundAction   InboundKind = "action"
	InboundEvidence InboundKind = "evidence"
)

// InboundEvent is one chat update waiting to be applied to the scheduler.
type InboundEvent struct {
	// Key identifies the delivery; a second event with the same key is
	// dropped while the first one is still queued or running.
	Key        string
	Kind       InboundKind
	OperatorID string
	TaskID     uint
	Action     constants.Action
	Text       string
	// Reply, when set, is called with the outcome once the event is handled.
	Reply func(ctx context.Context, outcome InboundOutcome)
}

type InboundOutcome struct {
	Action   *ActionResult
	Evidence *EvidenceResult
	Err      error
}

// DispatchService feeds inbound chat events to the scheduler through a fixed
// pool of workers.
type DispatchService struct {
	queue         chan InboundEvent
	wg            sync.WaitGroup
	enqueued      sync.Map
	scheduler     *SchedulerService
	handleTimeout time.Duration
}

func NewDispatchService(
	scheduler *SchedulerService,
	workers int,
	queueSize int,
	handleTimeout time.Duration,
) *DispatchService {
	p := &DispatchService{
		queue:         make(chan InboundEvent, queueSize),
		scheduler:     scheduler,
		handleTimeout: handleTimeout,
	}

	for i := 1; i <= workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	return p
}

// Submit queues an event. It reports false for duplicates and when the queue
// is full.
func (p *DispatchService) Submit(event InboundEvent) bool {
	ok, queueFull := p.enqueueIfNotPresent(event)
	if queueFull {
		log.Printf("dispatch: queue full, dropping %s event %s", event.Kind, event.Key)
	}
	return ok
}

func (p *DispatchService) worker(workerID int) {
	defer p.wg.Done()

	log.Printf("dispatch worker %d started", workerID)

	for event := range p.queue {
		p.handleEvent(workerID, event)
	}

	log.Printf("dispatch worker %d stopped", workerID)
}

func (p *DispatchService) handleEvent(workerID int, event InboundEvent) {
	defer p.untrackEnqueued(event.Key)

	ctx, cancel := context.WithTimeout(context.Background(), p.handleTimeout)
	defer cancel()

	var outcome InboundOutcome
	switch event.Kind {
	case InboundAction:
		outcome.Action, outcome.Err = p.scheduler.OnOperatorAction(ctx, ActionRequest{
			TaskID:     event.TaskID,
			OperatorID: event.OperatorID,
			Action:     event.Action,
		})
	case InboundEvidence:
		outcome.Evidence, outcome.Err = p.scheduler.OnEvidenceMessage(ctx, event.OperatorID, event.Text)
	default:
		log.Printf("dispatch worker %d: unknown event kind %q", workerID, event.Kind)
		return
	}

	if outcome.Err != nil {
		log.Printf("dispatch worker %d: %s event %s failed: %v", workerID, event.Kind, event.Key, outcome.Err)
	}

	if event.Reply != nil {
		event.Reply(ctx, outcome)
	}
}

func (p *DispatchService) enqueueIfNotPresent(event InboundEvent) (bool, bool) {
	if !p.trackEnqueued(event.Key) {
		return false, false
	}

	select {
	case p.queue <- event:
		return true, false
	default:
		p.untrackEnqueued(event.Key)
		return false, true
	}
}

func (p *DispatchService) trackEnqueued(key string) bool {
	_, loaded := p.enqueued.LoadOrStore(key, struct{}{})
	return !loaded
}

func (p *DispatchService) untrackEnqueued(key string) {
	p.enqueued.Delete(key)
}

func (p *DispatchService) Shutdown(ctx context.Context) {
	close(p.queue)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("dispatch pool shut down cleanly")
	case <-ctx.Done():
		log.Println("dispatch pool shutdown timed out")
	}
}
