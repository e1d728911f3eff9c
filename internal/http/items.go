package http

import (
	"errors"
	"net/http"
	"strings"

	"stockledger/internal/domain"
	"stockledger/internal/excel"
	"stockledger/internal/repository"
	"stockledger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset, err := page(r, 200)
	if err != nil {
		badRequest(w, err)
		return
	}
	includeInactive, err := parseOptionalBool(query.Get("include_inactive"), "include_inactive")
	if err != nil {
		badRequest(w, err)
		return
	}

	filter := repository.ItemListFilter{
		Search:   query.Get("search"),
		Category: query.Get("category"),
		Limit:    limit,
		Offset:   offset,
	}
	if includeInactive != nil {
		filter.IncludeInactive = *includeInactive
	}
	items, err := h.svc.ListItems(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r, 200)
	if err != nil {
		badRequest(w, err)
		return
	}
	items, err := h.svc.LowStock(r.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	item, err := h.svc.GetItem(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type createItemRequest struct {
	SKU           string          `json:"sku" validate:"max=64"`
	Name          string          `json:"name" validate:"required,max=200"`
	Category      string          `json:"category" validate:"max=100"`
	Unit          string          `json:"unit" validate:"omitempty,oneof=pcs kg box ltr mtr"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	MinStockLevel *int            `json:"min_stock_level" validate:"omitempty,gte=0"`
	OpeningStock  int             `json:"opening_stock" validate:"gte=0"`
}

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	item, err := h.svc.CreateItem(r.Context(), service.ItemInput{
		SKU:           req.SKU,
		Name:          req.Name,
		Category:      req.Category,
		Unit:          req.Unit,
		PurchasePrice: req.PurchasePrice,
		SellingPrice:  req.SellingPrice,
		MinStockLevel: req.MinStockLevel,
		OpeningStock:  req.OpeningStock,
	}, actorFrom(r.Context()).ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

type patchItemRequest struct {
	Name          *string          `json:"name" validate:"omitempty,max=200"`
	Category      *string          `json:"category" validate:"omitempty,max=100"`
	Unit          *string          `json:"unit" validate:"omitempty,oneof=pcs kg box ltr mtr"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	SellingPrice  *decimal.Decimal `json:"selling_price"`
	MinStockLevel *int             `json:"min_stock_level" validate:"omitempty,gte=0"`
	IsActive      *bool            `json:"is_active"`
}

// PatchItem never touches current_stock; the field is not accepted here.
func (h *Handler) PatchItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	var req patchItemRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	item, err := h.svc.PatchItem(r.Context(), id, repository.ItemPatch{
		Name:          req.Name,
		Category:      req.Category,
		Unit:          req.Unit,
		PurchasePrice: req.PurchasePrice,
		SellingPrice:  req.SellingPrice,
		MinStockLevel: req.MinStockLevel,
		IsActive:      req.IsActive,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) DeactivateItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	item, err := h.svc.DeactivateItem(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type adjustStockRequest struct {
	Quantity     int     `json:"quantity" validate:"required,gt=0"`
	MovementType string  `json:"movement_type" validate:"required,oneof=IN OUT"`
	Notes        *string `json:"notes" validate:"omitempty,max=500"`
}

func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	var req adjustStockRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	item, movement, err := h.svc.AdjustStock(r.Context(), id, service.AdjustmentInput{
		Quantity:  req.Quantity,
		Direction: domain.Direction(req.MovementType),
		Notes:     req.Notes,
	}, actorFrom(r.Context()).ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item, "movement": movement})
}

func (h *Handler) ImportItemsExcel(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequest(w, errors.New("failed to parse multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, errors.New("file field is required"))
		return
	}
	defer file.Close()

	rows, err := excel.ParseItemRows(header.Filename, file)
	if err != nil {
		badRequest(w, err)
		return
	}

	result, err := h.svc.ImportItems(r.Context(), rows, actorFrom(r.Context()).ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file_name":  strings.TrimSpace(header.Filename),
		"total_rows": len(rows),
		"created":    result.Created,
		"failed":     result.Failed,
		"errors":     result.Errors,
	})
}
