package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/desk-kit/support-desk/internal/auth"
	"github.com/desk-kit/support-desk/internal/observability"
	"github.com/desk-kit/support-desk/internal/realtime"
	"github.com/desk-kit/support-desk/internal/service"
	"github.com/desk-kit/support-desk/pkg/util"
)

// streamHeartbeat keeps idle connections alive and surfaces dead clients
// between updates.
const streamHeartbeat = 15 * time.Second

// TicketProjector loads the role-scoped view streamed to watchers.
type TicketProjector interface {
	GetTicket(ctx context.Context, actor service.Actor, ticketID string) (*service.TicketView, error)
}

// StreamHandler serves live ticket views over server-sent events. Each
// connection gets its own watcher on the shared transport; every change
// signal re-runs the projection and pushes a full view frame, so clients
// never patch state from partial payloads.
type StreamHandler struct {
	transport   realtime.Transport
	projections TicketProjector
	logger      *zap.Logger
	metrics     *observability.Metrics

	backoffBase time.Duration
	backoffMax  time.Duration
}

// NewStreamHandler constructs the handler. metrics may be nil.
func NewStreamHandler(transport realtime.Transport, projections TicketProjector, logger *zap.Logger, metrics *observability.Metrics, backoffBase, backoffMax time.Duration) *StreamHandler {
	return &StreamHandler{
		transport:   transport,
		projections: projections,
		logger:      logger,
		metrics:     metrics,
		backoffBase: backoffBase,
		backoffMax:  backoffMax,
	}
}

// Stream handles GET /tickets/:id/stream.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("missing auth context")
	}
	ticketID := c.Params("id")

	// Scope-check before committing to a stream so unauthorized callers
	// get a plain error response.
	if _, err := h.projections.GetTicket(c.UserContext(), actor, ticketID); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// The watcher outlives this handler: the request context is released
	// once the stream writer takes over, so the watcher runs on its own
	// context until the client goes away.
	ctx, cancel := context.WithCancel(context.Background())
	watcher := h.watch(ctx, actor, ticketID)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer watcher.Close() //nolint:errcheck

		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case update, open := <-watcher.Updates():
				if !open {
					return
				}
				if err := writeUpdateFrame(w, update); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-heartbeat.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

// watch builds a per-connection watcher whose projector is bound to the
// authenticated actor, so streamed frames carry the same visibility rules
// as a plain GET.
func (h *StreamHandler) watch(ctx context.Context, actor service.Actor, ticketID string) *realtime.TicketWatcher {
	project := func(ctx context.Context, id string) (interface{}, error) {
		return h.projections.GetTicket(ctx, actor, id)
	}
	watcher := realtime.NewTicketWatcher(h.transport, project, h.logger, h.metrics, h.backoffBase, h.backoffMax)
	watcher.Watch(ctx, ticketID)
	return watcher
}

// writeUpdateFrame encodes one re-projected view as an SSE event. The
// generation doubles as the event id so reconnecting clients can discard
// frames older than the last one applied.
func writeUpdateFrame(w *bufio.Writer, update realtime.Update) error {
	payload, err := json.Marshal(update.View)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: ticket\ndata: %s\n\n", update.Generation, payload)
	return err
}
