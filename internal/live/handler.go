package live

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "timekeep/pkg/domain-errors"
	"timekeep/pkg/platform/httputil"
	"timekeep/pkg/requestcontext"
)

// Handler streams an owner's live timer updates over server-sent events.
// Each delivery from the subscription becomes one `data:` frame, so a display
// surface gets the initial snapshot, per-second elapsed values, and
// reconciliation corrections over a single long-lived response.
type Handler struct {
	driver *Driver
	logger *slog.Logger
}

func NewHandler(driver *Driver, logger *slog.Logger) *Handler {
	return &Handler{driver: driver, logger: logger}
}

// Register mounts the streaming endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/timers/live", h.HandleStream)
}

type streamTimer struct {
	ID             string `json:"id"`
	Category       string `json:"category"`
	Status         string `json:"status"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
}

type streamEvent struct {
	Timers []streamTimer `json:"timers"`
	Error  string        `json:"error,omitempty"`
}

// HandleStream handles GET /timers/live. The stream stays open until the
// client disconnects; closing the request context tears down the
// subscription synchronously.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := requestcontext.OwnerID(ctx)
	if ownerID.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The subscription goroutine never blocks on a slow client: a full
	// buffer drops the delivery and the next tick carries fresher values.
	updates := make(chan Update, 16)
	sub := h.driver.Subscribe(ctx, ownerID, func(u Update) {
		select {
		case updates <- u:
		default:
		}
	})
	defer h.driver.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			if err := writeEvent(w, flusher, u); err != nil {
				h.logger.DebugContext(ctx, "live stream ended",
					"owner_id", ownerID,
					"error", err,
				)
				return
			}
		}
	}
}

func writeEvent(w io.Writer, flusher http.Flusher, u Update) error {
	event := streamEvent{Timers: make([]streamTimer, 0, len(u.Timers))}
	for _, view := range u.Timers {
		event.Timers = append(event.Timers, streamTimer{
			ID:             view.Timer.ID.String(),
			Category:       view.Timer.Category,
			Status:         string(view.Timer.Status),
			ElapsedSeconds: view.LiveElapsedSeconds,
		})
	}
	if u.Err != nil {
		event.Error = u.Err.Error()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
