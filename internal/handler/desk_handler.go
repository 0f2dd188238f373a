package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"agentdesk/internal/model"
	"agentdesk/internal/service"
	"agentdesk/internal/undo"
	"agentdesk/pkg/apierror"
)

type DeskHandler struct {
	service *service.DeskService
}

func NewDeskHandler(service *service.DeskService) *DeskHandler {
	return &DeskHandler{service: service}
}

func (h *DeskHandler) Lists(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, model.ListsData{Items: h.service.Lists()}, nil)
}

func (h *DeskHandler) Records(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Records(chi.URLParam(r, "resource"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, data, nil)
}

func (h *DeskHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	if err := h.service.Refresh(r.Context(), resource); err != nil {
		writeError(w, err)
		return
	}

	data, err := h.service.Records(resource)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, data, nil)
}

// RequestDelete treats the confirm flag as the operator's answer to the
// prompt. Without it the prompt is returned and nothing changes.
func (h *DeskHandler) RequestDelete(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")

	var payload model.DeleteRecordRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	payload.RecordID = strings.TrimSpace(payload.RecordID)
	if payload.RecordID == "" {
		writeError(w, apierror.BadRequest("record_id is required", "record_id"))
		return
	}

	if !payload.Confirm {
		prompt, err := h.service.Prompt(resource, payload.RecordID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, model.DeleteRecordResponse{Confirmed: false, Prompt: prompt}, nil)
		return
	}

	ticket, confirmed, err := h.service.RequestDelete(r.Context(), resource, payload.RecordID, undo.Confirmed, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusAccepted, model.DeleteRecordResponse{Confirmed: confirmed, Ticket: &ticket}, nil)
}

func (h *DeskHandler) ActiveDeletion(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.service.ActiveDeletion(chi.URLParam(r, "resource"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, ticket, nil)
}

// Undo and Finalize answer 200 with applied=false when nothing was pending.
// Finalize answers 502 DELETE_FAILED when the platform refused.
func (h *DeskHandler) Undo(w http.ResponseWriter, r *http.Request) {
	applied, err := h.service.Undo(chi.URLParam(r, "resource"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.TriggerResponse{Applied: applied}, nil)
}

func (h *DeskHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	applied, err := h.service.FinalizeNow(r.Context(), chi.URLParam(r, "resource"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.TriggerResponse{Applied: applied}, nil)
}
