package service

import (
	"context"
	"fmt"
	"strings"

	"stockledger/internal/domain"
	"stockledger/internal/lock"
	"stockledger/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type LineInput struct {
	ItemID   int64
	Quantity int
	Rate     decimal.Decimal
}

type DocumentInput struct {
	Number    string
	PartyID   *int64
	PartyName string
	// SourceID is the sales invoice a return is raised against.
	SourceID *int64
	Lines    []LineInput
	Reason   *string
	Notes    *string
	// Status may be Completed on create to complete a stock document in
	// the same call. Anything other than blank or Draft is rejected on update.
	Status domain.Status
}

func (s *Service) CreateDocument(ctx context.Context, kind domain.DocumentKind, input DocumentInput, actorID int64) (domain.Document, error) {
	if !kind.Valid() {
		return domain.Document{}, domain.Validationf("unknown document kind %q", kind)
	}
	completeNow := false
	switch input.Status {
	case "", domain.StatusDraft:
	case domain.StatusCompleted:
		if !kind.AffectsStock() {
			return domain.Document{}, domain.Validationf("%s cannot be created as %s", kind.Label(), input.Status)
		}
		completeNow = true
	default:
		return domain.Document{}, domain.Validationf("%s cannot be created as %s", kind.Label(), input.Status)
	}

	lines, err := buildLines(input.Lines)
	if err != nil {
		return domain.Document{}, err
	}
	doc := domain.Document{
		Kind:      kind,
		Number:    strings.ToUpper(strings.TrimSpace(input.Number)),
		Status:    domain.StatusDraft,
		PartyID:   input.PartyID,
		PartyName: strings.TrimSpace(input.PartyName),
		Lines:     lines,
		Reason:    normalizeNullable(input.Reason),
		Notes:     normalizeNullable(input.Notes),
		CreatedBy: actorID,
	}
	if kind == domain.KindSalesReturn {
		if err := s.attachReturnSource(ctx, &doc, input.SourceID); err != nil {
			return domain.Document{}, err
		}
	}

	created, err := s.store.CreateDocument(ctx, doc)
	if err != nil {
		return domain.Document{}, err
	}
	s.logger.WithFields(logrus.Fields{
		"kind":   created.Kind,
		"id":     created.ID,
		"number": created.Number,
	}).Info("document created")

	if !completeNow {
		return created, nil
	}
	completed, err := s.CompleteDocument(ctx, kind, created.ID, actorID)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w; %s %s (id %d) was saved as draft",
			err, strings.ToLower(kind.Label()), created.Number, created.ID)
	}
	return completed, nil
}

// attachReturnSource ties a return to a completed invoice and copies its
// customer onto the return.
func (s *Service) attachReturnSource(ctx context.Context, doc *domain.Document, sourceID *int64) error {
	if sourceID == nil || *sourceID <= 0 {
		return domain.Validationf("sales invoice is required for a sales return")
	}
	invoice, err := s.store.GetDocument(ctx, domain.KindSalesInvoice, *sourceID)
	if err != nil {
		return err
	}
	if invoice.Status != domain.StatusCompleted {
		return domain.NewError(domain.CodeNotCompleted, "Can only create returns for completed invoices")
	}
	id := invoice.ID
	doc.SourceID = &id
	doc.PartyID = invoice.PartyID
	doc.PartyName = invoice.PartyName
	return nil
}

func buildLines(inputs []LineInput) ([]domain.LineItem, error) {
	if len(inputs) == 0 {
		return nil, domain.Validationf("at least one line item is required")
	}
	lines := make([]domain.LineItem, 0, len(inputs))
	for i, in := range inputs {
		if in.ItemID <= 0 {
			return nil, domain.Validationf("line %d: item is required", i+1)
		}
		if in.Quantity <= 0 {
			return nil, domain.Validationf("line %d: quantity must be greater than 0", i+1)
		}
		if in.Rate.IsNegative() {
			return nil, domain.Validationf("line %d: rate cannot be negative", i+1)
		}
		if !domain.IsMoney(in.Rate) {
			return nil, domain.Validationf("line %d: rate cannot have more than 2 decimal places", i+1)
		}
		lines = append(lines, domain.LineItem{ItemID: in.ItemID, Quantity: in.Quantity, Rate: in.Rate})
	}
	return lines, nil
}

// CompleteDocument moves stock for every line, one Orchestrator call per
// line, then marks the document Completed. Lines are not applied as one
// transaction: if a line fails the earlier ones stay applied and the document
// stays Draft. Calling again resumes, skipping lines that already have a
// movement.
func (s *Service) CompleteDocument(ctx context.Context, kind domain.DocumentKind, id, actorID int64) (domain.Document, error) {
	if !kind.AffectsStock() {
		return domain.Document{}, domain.Validationf("%s does not move stock", kind.Label())
	}
	unlock, err := s.locker.Acquire(ctx, lock.DocumentKey(string(kind), id))
	if err != nil {
		return domain.Document{}, err
	}
	defer s.release(ctx, unlock)

	doc, err := s.store.GetDocument(ctx, kind, id)
	if err != nil {
		return domain.Document{}, err
	}
	if doc.Status == domain.StatusCompleted {
		return domain.Document{}, domain.NewError(domain.CodeAlreadyCompleted, kind.Label()+" is already completed")
	}

	for i, line := range doc.Lines {
		lineNo := i + 1
		done, err := s.store.HasMovement(ctx, kind.RefType(), doc.ID, lineNo)
		if err != nil {
			return domain.Document{}, err
		}
		if done {
			continue
		}
		if _, _, err := s.ApplyStockChange(ctx, domain.StockChange{
			ItemID:    line.ItemID,
			Quantity:  line.Quantity,
			Direction: kind.StockDirection(),
			RefType:   kind.RefType(),
			RefID:     doc.ID,
			RefNumber: doc.Number,
			LineNo:    lineNo,
			ActorID:   actorID,
		}); err != nil {
			s.logger.WithFields(logrus.Fields{
				"kind":    kind,
				"id":      doc.ID,
				"line_no": lineNo,
				"item_id": line.ItemID,
			}).WithError(err).Warn("document completion stopped")
			return domain.Document{}, err
		}
	}

	completed, err := s.store.UpdateDocument(ctx, kind, id, func(d *domain.Document) error {
		if d.Status == domain.StatusCompleted {
			return domain.NewError(domain.CodeAlreadyCompleted, kind.Label()+" is already completed")
		}
		at := s.now()
		d.Status = domain.StatusCompleted
		d.CompletedAt = &at
		return nil
	})
	if err != nil {
		return domain.Document{}, err
	}

	if kind == domain.KindSalesReturn && completed.SourceID != nil {
		s.applyReturnToInvoice(ctx, completed)
	}
	return completed, nil
}

// applyReturnToInvoice is the second step of completing a return. The return
// is already Completed when this runs, so a failure here leaves the invoice's
// totalReturned short; it is logged for manual repair rather than rolled back.
func (s *Service) applyReturnToInvoice(ctx context.Context, ret domain.Document) {
	ctx, cancel := detached(ctx)
	defer cancel()

	invoiceID := *ret.SourceID
	_, err := s.store.UpdateDocument(ctx, domain.KindSalesInvoice, invoiceID, func(d *domain.Document) error {
		d.TotalReturned = d.TotalReturned.Add(ret.GrandTotal)
		return nil
	})
	if err != nil {
		s.logError("applyReturnToInvoice", "invoice total returned not updated", logrus.Fields{
			"return_id":     ret.ID,
			"return_number": ret.Number,
			"invoice_id":    invoiceID,
			"amount":        ret.GrandTotal.StringFixed(2),
		}, err)
	}
}

// UpdateDocument replaces the editable fields of a document that is still
// open for edits.
func (s *Service) UpdateDocument(ctx context.Context, kind domain.DocumentKind, id int64, input DocumentInput) (domain.Document, error) {
	if !kind.Valid() {
		return domain.Document{}, domain.Validationf("unknown document kind %q", kind)
	}
	if input.Status != "" && input.Status != domain.StatusDraft {
		return domain.Document{}, domain.Validationf("status cannot be changed by update")
	}
	lines, err := buildLines(input.Lines)
	if err != nil {
		return domain.Document{}, err
	}

	unlock, err := s.locker.Acquire(ctx, lock.DocumentKey(string(kind), id))
	if err != nil {
		return domain.Document{}, err
	}
	defer s.release(ctx, unlock)

	started, err := s.completionStarted(ctx, kind, id)
	if err != nil {
		return domain.Document{}, err
	}
	return s.store.UpdateDocument(ctx, kind, id, func(d *domain.Document) error {
		if err := d.CheckEditable(); err != nil {
			return err
		}
		if started {
			return domain.NewError(domain.CodeCannotModifyCompleted,
				"Cannot update partially completed "+strings.ToLower(kind.Label())+"; complete it first")
		}
		d.Lines = lines
		d.Reason = normalizeNullable(input.Reason)
		d.Notes = normalizeNullable(input.Notes)
		if kind != domain.KindSalesReturn {
			d.PartyID = input.PartyID
			d.PartyName = strings.TrimSpace(input.PartyName)
		}
		return nil
	})
}

func (s *Service) DeleteDocument(ctx context.Context, kind domain.DocumentKind, id int64) error {
	if !kind.Valid() {
		return domain.Validationf("unknown document kind %q", kind)
	}
	unlock, err := s.locker.Acquire(ctx, lock.DocumentKey(string(kind), id))
	if err != nil {
		return err
	}
	defer s.release(ctx, unlock)

	started, err := s.completionStarted(ctx, kind, id)
	if err != nil {
		return err
	}
	return s.store.DeleteDocument(ctx, kind, id, func(d domain.Document) error {
		if err := d.CheckDeletable(); err != nil {
			return err
		}
		if started {
			return domain.NewError(domain.CodeCannotDeleteNonDraft,
				"Cannot delete partially completed "+strings.ToLower(kind.Label())+"; its stock movements are recorded")
		}
		return nil
	})
}

// completionStarted reports whether a stock document already moved stock for
// some of its lines. Completion applies lines in order, so line 1 has a
// movement whenever any line does. Callers must hold the document lock.
func (s *Service) completionStarted(ctx context.Context, kind domain.DocumentKind, id int64) (bool, error) {
	if !kind.AffectsStock() {
		return false, nil
	}
	return s.store.HasMovement(ctx, kind.RefType(), id, 1)
}

func (s *Service) GetDocument(ctx context.Context, kind domain.DocumentKind, id int64) (*domain.Document, error) {
	return s.store.GetDocument(ctx, kind, id)
}

func (s *Service) ListDocuments(ctx context.Context, filter repository.DocumentFilter) ([]domain.Document, error) {
	if !filter.Kind.Valid() {
		return nil, domain.Validationf("unknown document kind %q", filter.Kind)
	}
	return s.store.ListDocuments(ctx, filter)
}

// SetOrderStatus walks a purchase or sales order through its status machine.
func (s *Service) SetOrderStatus(ctx context.Context, kind domain.DocumentKind, id int64, status domain.Status) (domain.Document, error) {
	if !kind.IsOrder() {
		return domain.Document{}, domain.Validationf("%s has no status transitions", kind.Label())
	}
	return s.store.UpdateDocument(ctx, kind, id, func(d *domain.Document) error {
		if err := domain.CheckTransition(kind, d.Status, status); err != nil {
			return err
		}
		d.Status = status
		return nil
	})
}

func (s *Service) release(ctx context.Context, unlock lock.Unlock) {
	ctx, cancel := detached(ctx)
	defer cancel()
	if err := unlock(ctx); err != nil {
		s.logError("release", "release document lock", nil, err)
	}
}
