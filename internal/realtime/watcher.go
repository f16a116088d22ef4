package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/desk-kit/support-desk/internal/observability"
)

// Projector re-runs the full read projection for a ticket. The watcher
// never patches state from notification payloads; every change signal
// triggers a fresh load through this function.
type Projector func(ctx context.Context, ticketID string) (interface{}, error)

// Update is one freshly projected view delivered to the consumer.
// Generation increases monotonically per watcher; a consumer holding an
// update with a lower generation than one already applied must drop it.
type Update struct {
	TicketID   string
	Generation uint64
	View       interface{}
}

// TicketWatcher follows one ticket's message and audit channels and emits
// a re-projected view whenever either signals a change. Subscriptions that
// drop are re-established with exponential backoff, followed by a refetch
// to cover anything missed while disconnected.
type TicketWatcher struct {
	transport Transport
	project   Projector
	logger    *zap.Logger
	metrics   *observability.Metrics

	backoffBase time.Duration
	backoffMax  time.Duration

	gen       atomic.Uint64
	updates   chan Update
	wg        sync.WaitGroup
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewTicketWatcher constructs a watcher. metrics may be nil.
func NewTicketWatcher(transport Transport, project Projector, logger *zap.Logger, metrics *observability.Metrics, backoffBase, backoffMax time.Duration) *TicketWatcher {
	if backoffBase <= 0 {
		backoffBase = 250 * time.Millisecond
	}
	if backoffMax < backoffBase {
		backoffMax = 10 * time.Second
	}
	return &TicketWatcher{
		transport:   transport,
		project:     project,
		logger:      logger,
		metrics:     metrics,
		backoffBase: backoffBase,
		backoffMax:  backoffMax,
		updates:     make(chan Update, 4),
	}
}

// Updates returns the stream of re-projected views. The channel is closed
// after Close returns and all watch loops have stopped.
func (w *TicketWatcher) Updates() <-chan Update {
	return w.updates
}

// Watch starts following the ticket until Close is called or ctx ends.
func (w *TicketWatcher) Watch(ctx context.Context, ticketID string) {
	ctx, w.cancel = context.WithCancel(ctx)
	for _, table := range []string{TableTicketMessages, TableTicketEvents} {
		w.wg.Add(1)
		go w.watchChannel(ctx, ticketID, table)
	}
	go func() {
		w.wg.Wait()
		close(w.updates)
	}()
}

// Close stops the watcher. Safe to call more than once.
func (w *TicketWatcher) Close() error {
	w.closeOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
	})
	return nil
}

func (w *TicketWatcher) watchChannel(ctx context.Context, ticketID, table string) {
	defer w.wg.Done()
	channel := Channel(table, ticketID)
	delay := w.backoffBase
	for {
		if ctx.Err() != nil {
			return
		}
		sub, err := w.transport.Subscribe(ctx, channel)
		if err != nil {
			w.logger.Warn("realtime subscribe failed",
				zap.String("channel", channel),
				zap.Duration("retry_in", delay),
				zap.Error(err))
			if !sleep(ctx, delay) {
				return
			}
			delay = nextDelay(delay, w.backoffMax)
			continue
		}
		delay = w.backoffBase

		// Changes may have landed while we were disconnected.
		w.refetch(ctx, ticketID)

	consume:
		for {
			select {
			case _, ok := <-sub.Notifications():
				if !ok {
					break consume
				}
				w.refetch(ctx, ticketID)
			case <-ctx.Done():
				_ = sub.Close()
				return
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		w.logger.Warn("realtime subscription ended, reconnecting",
			zap.String("channel", channel))
		if !sleep(ctx, delay) {
			return
		}
		delay = nextDelay(delay, w.backoffMax)
	}
}

// refetch runs the projection and emits the result unless a newer change
// arrived while the load was in flight.
func (w *TicketWatcher) refetch(ctx context.Context, ticketID string) {
	gen := w.gen.Add(1)
	w.metrics.RecordRefetch(ticketID)
	view, err := w.project(ctx, ticketID)
	if err != nil {
		w.logger.Warn("refetch failed",
			zap.String("ticket_id", ticketID),
			zap.Error(err))
		return
	}
	if w.gen.Load() != gen {
		// Superseded; the in-flight fetch for the newer change wins.
		return
	}
	select {
	case w.updates <- Update{TicketID: ticketID, Generation: gen, View: view}:
	case <-ctx.Done():
	}
}

func nextDelay(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
