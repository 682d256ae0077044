package chat

import (
	"context"
	"sync"
	"time"

	"intralu-bot/internal/components/assert"
	"intralu-bot/internal/components/telemetry"
	"intralu-bot/internal/portal"
)

const report_dispatcher_dispatch = "dispatcher.dispatch"

const (
	queueSize       = 16
	workerIdleAfter = time.Minute
)

type HandleFunc func(ctx context.Context, update Update)

// Dispatcher runs updates of the same chat one after another in delivery
// order while different chats proceed concurrently. A chat's worker exits
// after sitting idle and is started again by its next update.
type Dispatcher struct {
	ctx    context.Context
	handle HandleFunc
	idle   time.Duration
	tel    telemetry.API

	mu     sync.Mutex
	queues map[portal.ChatID]chan Update
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(ctx context.Context, handle HandleFunc, tel telemetry.API) *Dispatcher {
	return newDispatcher(ctx, handle, workerIdleAfter, tel)
}

func newDispatcher(ctx context.Context, handle HandleFunc, idle time.Duration, tel telemetry.API) *Dispatcher {
	assert.NotNil(handle)
	assert.NotNil(tel)

	return &Dispatcher{
		ctx:    ctx,
		handle: handle,
		idle:   idle,
		tel:    telemetry.NewScopedAPI("chat", tel),
		queues: make(map[portal.ChatID]chan Update),
	}
}

// Dispatch queues an update without blocking. Updates for a chat whose queue
// is full are dropped.
func (d *Dispatcher) Dispatch(update Update) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.tel.ReportWarning(report_dispatcher_dispatch, "dispatcher closed, update dropped", update.ChatID)
		return
	}

	queue, ok := d.queues[update.ChatID]
	if !ok {
		queue = make(chan Update, queueSize)
		d.queues[update.ChatID] = queue
		d.wg.Add(1)
		go d.worker(update.ChatID, queue)
	}

	select {
	case queue <- update:
	default:
		d.tel.ReportWarning(report_dispatcher_dispatch, "queue full, update dropped", update.ChatID)
	}
}

func (d *Dispatcher) worker(chatID portal.ChatID, queue chan Update) {
	defer d.wg.Done()

	idle := time.NewTimer(d.idle)
	defer idle.Stop()

	for {
		select {
		case update, ok := <-queue:
			if !ok {
				return
			}
			d.handle(d.ctx, update)
			idle.Reset(d.idle)
		case <-idle.C:
			d.mu.Lock()
			if len(queue) > 0 {
				d.mu.Unlock()
				idle.Reset(d.idle)
				continue
			}
			delete(d.queues, chatID)
			d.mu.Unlock()
			return
		}
	}
}

// Close stops accepting updates and waits for the queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	for chatID, queue := range d.queues {
		close(queue)
		delete(d.queues, chatID)
	}
	d.mu.Unlock()

	d.wg.Wait()
}
