package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"timekeep/internal/report"
	"timekeep/internal/report/cache"
	"timekeep/internal/timer/models"
	id "timekeep/pkg/domain"
	dErrors "timekeep/pkg/domain-errors"
	"timekeep/pkg/platform/httputil"
	"timekeep/pkg/requestcontext"
)

// Service defines the timer operations the HTTP layer delegates to.
type Service interface {
	Start(ctx context.Context, ownerID id.OwnerID, category string) (*models.Timer, error)
	Get(ctx context.Context, timerID id.TimerID) (*models.Timer, error)
	ListByOwner(ctx context.Context, ownerID id.OwnerID, statuses []models.Status) ([]*models.Timer, error)
	Pause(ctx context.Context, timerID id.TimerID) (*models.Timer, error)
	Resume(ctx context.Context, timerID id.TimerID) (*models.Timer, error)
	Complete(ctx context.Context, timerID id.TimerID) (*models.Timer, error)
	LiveElapsed(ctx context.Context, timer *models.Timer) int64
}

// Handler wires timer endpoints to the timer service.
type Handler struct {
	service Service
	summary *cache.SummaryCache
	logger  *slog.Logger
}

// New constructs a timer handler with its dependencies.
func New(service Service, summaryCache *cache.SummaryCache, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		summary: summaryCache,
		logger:  logger,
	}
}

// Register mounts timer endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/timers", h.HandleStart)
	r.Get("/timers", h.HandleList)
	r.Get("/timers/{timerID}", h.HandleGet)
	r.Post("/timers/{timerID}/pause", h.transitionHandler("pause", h.service.Pause))
	r.Post("/timers/{timerID}/resume", h.transitionHandler("resume", h.service.Resume))
	r.Post("/timers/{timerID}/complete", h.transitionHandler("complete", h.service.Complete))
	r.Get("/summary", h.HandleSummary)
}

// HandleStart handles POST /timers.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	ownerID, ok := h.requireOwner(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[StartTimerRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	timer, err := h.service.Start(ctx, ownerID, req.Category)
	if err != nil {
		h.logger.ErrorContext(ctx, "start timer failed",
			"request_id", requestID,
			"owner_id", ownerID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.invalidateSummary(ctx, ownerID)

	h.logger.InfoContext(ctx, "timer started",
		"request_id", requestID,
		"timer_id", timer.ID,
		"category", timer.Category,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromTimer(timer, h.service.LiveElapsed(ctx, timer)))
}

// HandleGet handles GET /timers/{timerID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(w, ctx)
	if !ok {
		return
	}
	timer, ok := h.ownedTimer(w, r, ownerID)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTimer(timer, h.service.LiveElapsed(ctx, timer)))
}

// HandleList handles GET /timers?status=active,paused.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(w, ctx)
	if !ok {
		return
	}
	statuses, err := parseStatuses(r.URL.Query().Get("status"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	timers, err := h.service.ListByOwner(ctx, ownerID, statuses)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := ListResponse{Timers: make([]TimerResponse, 0, len(timers))}
	for _, timer := range timers {
		resp.Timers = append(resp.Timers, FromTimer(timer, h.service.LiveElapsed(ctx, timer)))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleSummary handles GET /summary: the owner's aggregation, cache-fronted.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.requireOwner(w, ctx)
	if !ok {
		return
	}

	if summary, hit := h.summary.Get(ctx, ownerID); hit {
		httputil.WriteJSON(w, http.StatusOK, FromSummary(summary))
		return
	}

	timers, err := h.service.ListByOwner(ctx, ownerID, nil)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	summary := report.Summarize(timers, requestcontext.Now(ctx))
	if summary.ClampedCount > 0 {
		h.logger.WarnContext(ctx, "negative durations clamped during aggregation",
			"owner_id", ownerID,
			"clamped", summary.ClampedCount,
		)
	}
	h.summary.Set(ctx, ownerID, summary)
	httputil.WriteJSON(w, http.StatusOK, FromSummary(summary))
}

// transitionHandler builds the shared handler for pause/resume/complete.
func (h *Handler) transitionHandler(name string, apply func(ctx context.Context, timerID id.TimerID) (*models.Timer, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := requestcontext.RequestID(ctx)

		ownerID, ok := h.requireOwner(w, ctx)
		if !ok {
			return
		}
		timer, ok := h.ownedTimer(w, r, ownerID)
		if !ok {
			return
		}

		updated, err := apply(ctx, timer.ID)
		if err != nil {
			h.logger.WarnContext(ctx, "timer transition rejected",
				"request_id", requestID,
				"transition", name,
				"timer_id", timer.ID,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		h.invalidateSummary(ctx, ownerID)

		h.logger.InfoContext(ctx, "timer transition applied",
			"request_id", requestID,
			"transition", name,
			"timer_id", updated.ID,
			"status", updated.Status,
		)
		httputil.WriteJSON(w, http.StatusOK, FromTimer(updated, h.service.LiveElapsed(ctx, updated)))
	}
}

// requireOwner rejects unauthenticated requests.
func (h *Handler) requireOwner(w http.ResponseWriter, ctx context.Context) (id.OwnerID, bool) {
	ownerID := requestcontext.OwnerID(ctx)
	if ownerID.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.OwnerID{}, false
	}
	return ownerID, true
}

// ownedTimer loads the path timer and enforces ownership. A foreign timer
// reads as not-found so ids cannot be probed.
func (h *Handler) ownedTimer(w http.ResponseWriter, r *http.Request, ownerID id.OwnerID) (*models.Timer, bool) {
	timerID, err := id.ParseTimerID(chi.URLParam(r, "timerID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed timer id"))
		return nil, false
	}
	timer, err := h.service.Get(r.Context(), timerID)
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	if timer.OwnerID != ownerID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "timer not found"))
		return nil, false
	}
	return timer, true
}

func (h *Handler) invalidateSummary(ctx context.Context, ownerID id.OwnerID) {
	h.summary.Invalidate(ctx, ownerID)
}
