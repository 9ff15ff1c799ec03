package controller

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/taskgoapp/taskgo-sync/internal/domain/entity"
	domainErrors "github.com/taskgoapp/taskgo-sync/internal/domain/errors"
	"github.com/taskgoapp/taskgo-sync/internal/repository/local"
)

// EntityController serves the local-first entity surface: reads come
// straight from the on-device cache, writes go cache-then-schedule
// through the local repository.
type EntityController struct {
	repo *local.Repository
}

func NewEntityController(repo *local.Repository) *EntityController {
	return &EntityController{repo: repo}
}

// Save handles PUT /entities/{entityType}. The body is the entity
// document itself; an absent id means create, and the allocated id
// comes back in the response.
func (h *EntityController) Save(w http.ResponseWriter, r *http.Request) {
	t, err := entity.ParseType(chi.URLParam(r, "entityType"))
	if err != nil {
		writeError(w, domainErrors.NewValidationError("entity_type", err.Error()))
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, domainErrors.NewValidationError("body", err.Error()))
		return
	}

	p, err := entity.DecodePayload(t, json.RawMessage(raw))
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := h.repo.Save(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, EntityWriteResponse{Status: "accepted", EntityID: id})
}

// Delete handles DELETE /entities/{entityType}/{id}
func (h *EntityController) Delete(w http.ResponseWriter, r *http.Request) {
	t, err := entity.ParseType(chi.URLParam(r, "entityType"))
	if err != nil {
		writeError(w, domainErrors.NewValidationError("entity_type", err.Error()))
		return
	}

	if err := h.repo.Delete(r.Context(), t, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, EntityWriteResponse{Status: "accepted", EntityID: chi.URLParam(r, "id")})
}

// Get handles GET /entities/{entityType}/{id}
func (h *EntityController) Get(w http.ResponseWriter, r *http.Request) {
	t, err := entity.ParseType(chi.URLParam(r, "entityType"))
	if err != nil {
		writeError(w, domainErrors.NewValidationError("entity_type", err.Error()))
		return
	}

	doc, err := h.repo.Get(r.Context(), t, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// List handles GET /entities/{entityType}
func (h *EntityController) List(w http.ResponseWriter, r *http.Request) {
	t, err := entity.ParseType(chi.URLParam(r, "entityType"))
	if err != nil {
		writeError(w, domainErrors.NewValidationError("entity_type", err.Error()))
		return
	}

	docs, err := h.repo.List(r.Context(), t)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, EntityListResponse{Items: docs, Count: len(docs)})
}
