package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/excel"
	"stockledger/internal/repository"
)

func movementFilter(r *http.Request, defaultLimit int) (repository.MovementFilter, error) {
	query := r.URL.Query()
	limit, offset, err := page(r, defaultLimit)
	if err != nil {
		return repository.MovementFilter{}, err
	}
	itemID, err := parseOptionalInt64(query.Get("item_id"))
	if err != nil {
		return repository.MovementFilter{}, err
	}
	refID, err := parseOptionalInt64(query.Get("ref_id"))
	if err != nil {
		return repository.MovementFilter{}, err
	}

	filter := repository.MovementFilter{
		ItemID:       itemID,
		RefType:      domain.RefType(strings.ToUpper(strings.TrimSpace(query.Get("ref_type")))),
		RefID:        refID,
		MovementType: domain.Direction(strings.ToUpper(strings.TrimSpace(query.Get("movement_type")))),
		Limit:        limit,
		Offset:       offset,
	}
	switch filter.RefType {
	case "", domain.RefPurchase, domain.RefSale, domain.RefReturn, domain.RefAdjustment:
	default:
		return repository.MovementFilter{}, fmt.Errorf("invalid ref_type: %s", filter.RefType)
	}
	if filter.MovementType != "" && !filter.MovementType.Valid() {
		return repository.MovementFilter{}, fmt.Errorf("invalid movement_type: %s", filter.MovementType)
	}
	return filter, nil
}

func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	filter, err := movementFilter(r, 100)
	if err != nil {
		badRequest(w, err)
		return
	}
	movements, err := h.svc.ListMovements(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": movements, "count": len(movements)})
}

func (h *Handler) ExportMovements(w http.ResponseWriter, r *http.Request) {
	filter, err := movementFilter(r, 1000)
	if err != nil {
		badRequest(w, err)
		return
	}
	movements, err := h.svc.ListMovements(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := excel.WriteMovements(&buf, movements); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	fileName := fmt.Sprintf("stock-movements-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
