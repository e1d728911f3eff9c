package http

import (
	"net/http"
	"strings"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/repository"
	"stockledger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type lineRequest struct {
	ItemID   int64           `json:"item_id" validate:"required,gt=0"`
	Quantity int             `json:"quantity" validate:"required,gt=0"`
	Rate     decimal.Decimal `json:"rate"`
}

type documentRequest struct {
	Number    string        `json:"number" validate:"max=32"`
	PartyID   *int64        `json:"party_id" validate:"omitempty,gt=0"`
	PartyName string        `json:"party_name" validate:"max=200"`
	SourceID  *int64        `json:"source_id" validate:"omitempty,gt=0"`
	Lines     []lineRequest `json:"lines" validate:"required,min=1,dive"`
	Reason    *string       `json:"reason" validate:"omitempty,max=500"`
	Notes     *string       `json:"notes" validate:"omitempty,max=1000"`
	Status    domain.Status `json:"status" validate:"omitempty,oneof=Draft Completed"`
}

func (req documentRequest) input() service.DocumentInput {
	lines := make([]service.LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, service.LineInput{ItemID: l.ItemID, Quantity: l.Quantity, Rate: l.Rate})
	}
	return service.DocumentInput{
		Number:    req.Number,
		PartyID:   req.PartyID,
		PartyName: req.PartyName,
		SourceID:  req.SourceID,
		Lines:     lines,
		Reason:    req.Reason,
		Notes:     req.Notes,
		Status:    req.Status,
	}
}

// documentHandlers serves one document kind; every route of the kind shares
// the same handlers.
type documentHandlers struct {
	h    *Handler
	kind domain.DocumentKind
}

func (d documentHandlers) list(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r, 200)
	if err != nil {
		badRequest(w, err)
		return
	}
	query := r.URL.Query()
	docs, err := d.h.svc.ListDocuments(r.Context(), repository.DocumentFilter{
		Kind:   d.kind,
		Status: domain.Status(strings.TrimSpace(query.Get("status"))),
		Search: query.Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		d.h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": docs, "count": len(docs)})
}

func (d documentHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	doc, err := d.h.svc.GetDocument(r.Context(), d.kind, id)
	if err != nil {
		d.h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (d documentHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if !d.h.decodeValid(w, r, &req) {
		return
	}
	doc, err := d.h.svc.CreateDocument(r.Context(), d.kind, req.input(), actorFrom(r.Context()).ID)
	if err != nil {
		d.h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (d documentHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	var req documentRequest
	if !d.h.decodeValid(w, r, &req) {
		return
	}
	doc, err := d.h.svc.UpdateDocument(r.Context(), d.kind, id, req.input())
	if err != nil {
		d.h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (d documentHandlers) complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	doc, err := d.h.svc.CompleteDocument(r.Context(), d.kind, id, actorFrom(r.Context()).ID)
	if err != nil {
		d.h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (d documentHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := d.h.svc.DeleteDocument(r.Context(), d.kind, id); err != nil {
		d.h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type paymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   *time.Time      `json:"payment_date"`
	PaymentMethod string          `json:"payment_method" validate:"max=32"`
	Reference     *string         `json:"reference" validate:"omitempty,max=100"`
	Notes         *string         `json:"notes" validate:"omitempty,max=500"`
}

func (d documentHandlers) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	var req paymentRequest
	if !d.h.decodeValid(w, r, &req) {
		return
	}
	doc, err := d.h.svc.RecordPayment(r.Context(), d.kind, id, service.PaymentInput{
		Amount:    req.Amount,
		Date:      req.PaymentDate,
		Method:    req.PaymentMethod,
		Reference: req.Reference,
		Notes:     req.Notes,
	}, actorFrom(r.Context()).ID)
	if err != nil {
		d.h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (d documentHandlers) paymentSummary(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	summary, err := d.h.svc.GetPaymentSummary(r.Context(), d.kind, id)
	if err != nil {
		d.h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type orderStatusRequest struct {
	Status domain.Status `json:"status" validate:"required,oneof=Draft Sent Approved Confirmed Cancelled"`
}

func (d documentHandlers) setStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	var req orderStatusRequest
	if !d.h.decodeValid(w, r, &req) {
		return
	}
	doc, err := d.h.svc.SetOrderStatus(r.Context(), d.kind, id, req.Status)
	if err != nil {
		d.h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
