package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type DocumentKind string

const (
	KindPurchaseBill  DocumentKind = "purchase_bill"
	KindSalesInvoice  DocumentKind = "sales_invoice"
	KindSalesReturn   DocumentKind = "sales_return"
	KindPurchaseOrder DocumentKind = "purchase_order"
	KindSalesOrder    DocumentKind = "sales_order"
)

type Status string

const (
	StatusDraft     Status = "Draft"
	StatusCompleted Status = "Completed"
	StatusSent      Status = "Sent"
	StatusConfirmed Status = "Confirmed"
	StatusApproved  Status = "Approved"
	StatusCancelled Status = "Cancelled"
)

type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "Unpaid"
	PaymentPartiallyPaid PaymentStatus = "Partially Paid"
	PaymentPaid          PaymentStatus = "Paid"
	PaymentOverpaid      PaymentStatus = "Overpaid"
)

type kindRules struct {
	prefix    string
	label     string
	direction Direction
	refType   RefType
	stock     bool
	payable   bool
}

var kinds = map[DocumentKind]kindRules{
	KindPurchaseBill:  {prefix: "PB", label: "Purchase bill", direction: DirectionIn, refType: RefPurchase, stock: true, payable: true},
	KindSalesInvoice:  {prefix: "INV", label: "Sales invoice", direction: DirectionOut, refType: RefSale, stock: true, payable: true},
	KindSalesReturn:   {prefix: "SR", label: "Sales return", direction: DirectionIn, refType: RefReturn, stock: true},
	KindPurchaseOrder: {prefix: "PO", label: "Purchase order"},
	KindSalesOrder:    {prefix: "SO", label: "Sales order"},
}

func (k DocumentKind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Prefix is the human-readable number prefix, e.g. "PB" for PB000001.
func (k DocumentKind) Prefix() string { return kinds[k].prefix }

func (k DocumentKind) Label() string { return kinds[k].label }

// StockDirection is the direction each line moves stock on completion.
func (k DocumentKind) StockDirection() Direction { return kinds[k].direction }

func (k DocumentKind) RefType() RefType { return kinds[k].refType }

// AffectsStock reports whether completing the document moves stock.
func (k DocumentKind) AffectsStock() bool { return kinds[k].stock }

// Payable reports whether the document carries a payment ledger.
func (k DocumentKind) Payable() bool { return kinds[k].payable }

// IsOrder reports whether the kind is an upstream order with a status enum
// instead of the Draft/Completed lifecycle.
func (k DocumentKind) IsOrder() bool {
	return k == KindPurchaseOrder || k == KindSalesOrder
}

// Recalculate refreshes every derived field from lines and payments. It runs
// on every save, not only when a payment is recorded.
func (d *Document) Recalculate() {
	total := decimal.Zero
	for i := range d.Lines {
		d.Lines[i].Amount = d.Lines[i].Rate.Mul(decimal.NewFromInt(int64(d.Lines[i].Quantity)))
		total = total.Add(d.Lines[i].Amount)
	}
	d.GrandTotal = total

	if d.Kind != KindSalesInvoice {
		d.TotalReturned = decimal.Zero
	}
	d.AdjustedTotal = d.GrandTotal.Sub(d.TotalReturned)

	paid := decimal.Zero
	for _, p := range d.Payments {
		paid = paid.Add(p.Amount)
	}
	d.PaidAmount = paid
	d.PaymentStatus = DerivePaymentStatus(d.Kind, d.PaidAmount, d.GrandTotal, d.AdjustedTotal)
}

// DerivePaymentStatus applies the bill rules (against the grand total) or the
// return-aware invoice rules (against the adjusted total). Only invoices can
// be Overpaid. Non-payable kinds have no payment status.
func DerivePaymentStatus(kind DocumentKind, paid, grandTotal, adjustedTotal decimal.Decimal) PaymentStatus {
	switch kind {
	case KindPurchaseBill:
		switch {
		case paid.IsZero():
			return PaymentUnpaid
		case paid.GreaterThanOrEqual(grandTotal):
			return PaymentPaid
		default:
			return PaymentPartiallyPaid
		}
	case KindSalesInvoice:
		switch {
		case paid.IsZero():
			return PaymentUnpaid
		case paid.GreaterThan(adjustedTotal):
			return PaymentOverpaid
		case paid.GreaterThanOrEqual(adjustedTotal):
			return PaymentPaid
		default:
			return PaymentPartiallyPaid
		}
	}
	return ""
}

// RemainingBalance is what can still be paid against the document.
func (d Document) RemainingBalance() decimal.Decimal {
	return d.AdjustedTotal.Sub(d.PaidAmount)
}

// CheckPayment validates a new payment against the document's current state.
func (d Document) CheckPayment(amount decimal.Decimal) error {
	if !d.Kind.Payable() {
		return Validationf("%s does not accept payments", d.Kind.Label())
	}
	if d.Status != StatusCompleted {
		return NewError(CodeNotCompleted, "Can only add payments to completed documents")
	}
	if !amount.IsPositive() {
		return NewError(CodeInvalidAmount, "Payment amount must be greater than 0")
	}
	if !IsMoney(amount) {
		return NewError(CodeInvalidAmount, "Payment amount cannot have more than 2 decimal places")
	}
	remaining := d.RemainingBalance()
	if amount.GreaterThan(remaining) {
		return NewError(CodeExceedsRemainingBalance,
			"Payment amount ("+amount.StringFixed(2)+") exceeds remaining balance ("+remaining.StringFixed(2)+")")
	}
	return nil
}

func (d Document) Summary() PaymentSummary {
	payments := d.Payments
	if payments == nil {
		payments = []Payment{}
	}
	return PaymentSummary{
		GrandTotal:      d.GrandTotal,
		TotalReturned:   d.TotalReturned,
		AdjustedTotal:   d.AdjustedTotal,
		PaidAmount:      d.PaidAmount,
		RemainingAmount: d.RemainingBalance(),
		PaymentStatus:   d.PaymentStatus,
		Payments:        payments,
	}
}

// CheckEditable rejects edits to documents that can no longer change.
func (d Document) CheckEditable() error {
	switch d.Kind {
	case KindPurchaseOrder:
		if d.Status == StatusApproved || d.Status == StatusCancelled {
			return NewError(CodeCannotModifyCompleted, "Cannot update "+strings.ToLower(string(d.Status))+" purchase order")
		}
	case KindSalesOrder:
		if d.Status == StatusCancelled {
			return NewError(CodeCannotModifyCompleted, "Cannot update cancelled sales order")
		}
	default:
		if d.Status == StatusCompleted {
			return NewError(CodeCannotModifyCompleted, "Cannot update completed "+strings.ToLower(d.Kind.Label()))
		}
	}
	return nil
}

// CheckDeletable only lets drafts go.
func (d Document) CheckDeletable() error {
	if d.Status != StatusDraft {
		return NewError(CodeCannotDeleteNonDraft, "Only draft "+strings.ToLower(d.Kind.Label())+"s can be deleted")
	}
	return nil
}

var orderTransitions = map[DocumentKind]map[Status][]Status{
	KindPurchaseOrder: {
		StatusDraft: {StatusSent, StatusApproved, StatusCancelled},
		StatusSent:  {StatusApproved, StatusCancelled},
	},
	KindSalesOrder: {
		StatusDraft:     {StatusConfirmed, StatusCancelled},
		StatusConfirmed: {StatusCancelled},
	},
}

// CheckTransition validates an order status change.
func CheckTransition(kind DocumentKind, from, to Status) error {
	table, ok := orderTransitions[kind]
	if !ok {
		return Validationf("%s has no status transitions", kind.Label())
	}
	for _, next := range table[from] {
		if next == to {
			return nil
		}
	}
	return NewError(CodeInvalidTransition, kind.Label()+" cannot move from "+string(from)+" to "+string(to))
}
