package http

import (
	"net/http"
	"strings"

	"stockledger/internal/domain"
	"stockledger/internal/repository"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset, err := page(r, 200)
	if err != nil {
		badRequest(w, err)
		return
	}
	itemID, err := parseOptionalInt64(query.Get("item_id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	resolved, err := parseOptionalBool(query.Get("is_resolved"), "is_resolved")
	if err != nil {
		badRequest(w, err)
		return
	}

	alerts, err := h.svc.ListAlerts(r.Context(), repository.AlertFilter{
		ItemID:     itemID,
		Severity:   domain.Severity(strings.ToLower(strings.TrimSpace(query.Get("severity")))),
		IsResolved: resolved,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": alerts, "count": len(alerts)})
}

func (h *Handler) UnresolvedAlertCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.UnresolvedAlertCount(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	alert, err := h.svc.GetAlert(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	alert, err := h.svc.ResolveAlert(r.Context(), id, actorFrom(r.Context()).ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (h *Handler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := h.svc.DeleteAlert(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
