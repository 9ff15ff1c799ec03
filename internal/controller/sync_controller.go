package controller

import (
	"net/http"

	"github.com/taskgoapp/taskgo-sync/internal/domain/entity"
	domainErrors "github.com/taskgoapp/taskgo-sync/internal/domain/errors"
	"github.com/taskgoapp/taskgo-sync/internal/domain/outbox"
	"github.com/taskgoapp/taskgo-sync/internal/sync"
)

// SyncController exposes the outbox over the ops API: schedule a write,
// trigger a drain cycle, force a single entity past its debounce window
// and read the pending-count indicator.
type SyncController struct {
	scheduler *sync.Scheduler
	loop      *sync.Loop
}

func NewSyncController(scheduler *sync.Scheduler, loop *sync.Loop) *SyncController {
	return &SyncController{scheduler: scheduler, loop: loop}
}

// Schedule handles POST /sync/schedule
func (h *SyncController) Schedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	t, err := entity.ParseType(req.EntityType)
	if err != nil {
		writeError(w, domainErrors.NewValidationError("entity_type", err.Error()))
		return
	}

	if err := h.scheduler.Schedule(r.Context(), t, req.EntityID, outbox.Operation(req.Operation), req.Payload); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, CycleResponse{Status: "scheduled"})
}

// RunCycle handles POST /sync/cycle
func (h *SyncController) RunCycle(w http.ResponseWriter, r *http.Request) {
	if err := h.loop.RunOneCycle(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CycleResponse{Status: "ok"})
}

// ForceSync handles POST /sync/force
func (h *SyncController) ForceSync(w http.ResponseWriter, r *http.Request) {
	var req ForceSyncRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	t, err := entity.ParseType(req.EntityType)
	if err != nil {
		writeError(w, domainErrors.NewValidationError("entity_type", err.Error()))
		return
	}

	dispatched, err := h.loop.ForceSync(r.Context(), t, req.EntityID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ForceSyncResponse{Dispatched: dispatched})
}

// Pending handles GET /sync/pending
func (h *SyncController) Pending(w http.ResponseWriter, r *http.Request) {
	n, err := h.scheduler.PendingCount(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PendingResponse{Pending: n})
}
