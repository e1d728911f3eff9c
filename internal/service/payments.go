package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/lock"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type PaymentInput struct {
	Amount    decimal.Decimal
	Date      *time.Time
	Method    string
	Reference *string
	Notes     *string
}

// RecordPayment appends a payment to a completed bill or invoice. The amount
// is checked against the remaining balance while the document row is locked,
// so two concurrent payments cannot both fit into the same balance.
func (s *Service) RecordPayment(ctx context.Context, kind domain.DocumentKind, id int64, input PaymentInput, actorID int64) (domain.Document, error) {
	if !kind.Payable() {
		return domain.Document{}, domain.Validationf("%s does not accept payments", kind.Label())
	}
	method := strings.TrimSpace(input.Method)
	if method == "" {
		method = domain.DefaultPaymentMethod
	}
	if !slices.Contains(domain.PaymentMethods, method) {
		return domain.Document{}, domain.Validationf("payment method must be one of %s", strings.Join(domain.PaymentMethods, ", "))
	}

	unlock, err := s.locker.Acquire(ctx, lock.DocumentKey(string(kind), id))
	if err != nil {
		return domain.Document{}, err
	}
	defer s.release(ctx, unlock)

	now := s.now()
	payment := domain.Payment{
		ID:         s.newID(),
		Amount:     input.Amount,
		Date:       now,
		Method:     method,
		Reference:  normalizeNullable(input.Reference),
		Notes:      normalizeNullable(input.Notes),
		RecordedBy: actorID,
		RecordedAt: now,
	}
	if input.Date != nil {
		payment.Date = input.Date.UTC()
	}

	doc, err := s.store.UpdateDocument(ctx, kind, id, func(d *domain.Document) error {
		if err := d.CheckPayment(input.Amount); err != nil {
			return err
		}
		d.Payments = append(d.Payments, payment)
		return nil
	})
	if err != nil {
		return domain.Document{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"kind":           kind,
		"id":             id,
		"payment_id":     payment.ID,
		"amount":         payment.Amount.StringFixed(2),
		"payment_status": doc.PaymentStatus,
	}).Info("payment recorded")
	return doc, nil
}

func (s *Service) GetPaymentSummary(ctx context.Context, kind domain.DocumentKind, id int64) (domain.PaymentSummary, error) {
	if !kind.Payable() {
		return domain.PaymentSummary{}, domain.Validationf("%s does not accept payments", kind.Label())
	}
	doc, err := s.store.GetDocument(ctx, kind, id)
	if err != nil {
		return domain.PaymentSummary{}, err
	}
	return doc.Summary(), nil
}
