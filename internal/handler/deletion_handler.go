package handler

import (
	"context"
	"net/http"
	"strings"

	"agentdesk/internal/model"
)

type deletionQuerier interface {
	Query(ctx context.Context, q model.DeletionQuery) ([]model.DeletionEntry, model.Meta, error)
}

type DeletionHandler struct {
	journal deletionQuerier
}

func NewDeletionHandler(journal deletionQuerier) *DeletionHandler {
	return &DeletionHandler{journal: journal}
}

func (h *DeletionHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	items, meta, err := h.journal.Query(r.Context(), model.DeletionQuery{
		Resource: strings.TrimSpace(query.Get("resource")),
		Phase:    strings.TrimSpace(query.Get("phase")),
		ActorID:  strings.TrimSpace(query.Get("actor_id")),
		Page:     parseIntOrDefault(query.Get("page"), 1),
		Limit:    parseIntOrDefault(query.Get("limit"), 50),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.DeletionListData{Items: items}, &meta)
}
