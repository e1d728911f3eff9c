package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDerivePaymentStatus(t *testing.T) {
	cases := []struct {
		kind     DocumentKind
		paid     string
		grand    string
		adjusted string
		want     PaymentStatus
	}{
		{KindPurchaseBill, "0", "100", "100", PaymentUnpaid},
		{KindPurchaseBill, "40", "100", "100", PaymentPartiallyPaid},
		{KindPurchaseBill, "100", "100", "100", PaymentPaid},
		{KindPurchaseBill, "120", "100", "100", PaymentPaid},
		{KindSalesInvoice, "0", "500", "400", PaymentUnpaid},
		{KindSalesInvoice, "300", "500", "400", PaymentPartiallyPaid},
		{KindSalesInvoice, "400", "500", "400", PaymentPaid},
		{KindSalesInvoice, "450", "500", "400", PaymentOverpaid},
		{KindSalesReturn, "0", "100", "100", ""},
		{KindPurchaseOrder, "0", "100", "100", ""},
	}
	for _, tc := range cases {
		got := DerivePaymentStatus(tc.kind, dec(tc.paid), dec(tc.grand), dec(tc.adjusted))
		if got != tc.want {
			t.Fatalf("%s paid=%s grand=%s adjusted=%s: expected %q, got %q",
				tc.kind, tc.paid, tc.grand, tc.adjusted, tc.want, got)
		}
	}
}

func TestRecalculate(t *testing.T) {
	doc := Document{
		Kind: KindSalesInvoice,
		Lines: []LineItem{
			{ItemID: 1, Quantity: 3, Rate: dec("10.50")},
			{ItemID: 2, Quantity: 2, Rate: dec("4")},
		},
		TotalReturned: dec("8"),
		Payments:      []Payment{{Amount: dec("10")}, {Amount: dec("5.50")}},
	}
	doc.Recalculate()

	if !doc.Lines[0].Amount.Equal(dec("31.5")) {
		t.Fatalf("expected line amount 31.5, got %s", doc.Lines[0].Amount)
	}
	if !doc.GrandTotal.Equal(dec("39.5")) {
		t.Fatalf("expected grand total 39.5, got %s", doc.GrandTotal)
	}
	if !doc.AdjustedTotal.Equal(dec("31.5")) {
		t.Fatalf("expected adjusted total 31.5, got %s", doc.AdjustedTotal)
	}
	if !doc.PaidAmount.Equal(dec("15.5")) {
		t.Fatalf("expected paid 15.5, got %s", doc.PaidAmount)
	}
	if doc.PaymentStatus != PaymentPartiallyPaid {
		t.Fatalf("expected partially paid, got %s", doc.PaymentStatus)
	}
	if !doc.RemainingBalance().Equal(dec("16")) {
		t.Fatalf("expected remaining 16, got %s", doc.RemainingBalance())
	}
}

func TestRecalculateIgnoresReturnsOutsideInvoices(t *testing.T) {
	doc := Document{
		Kind:          KindPurchaseBill,
		Lines:         []LineItem{{ItemID: 1, Quantity: 1, Rate: dec("50")}},
		TotalReturned: dec("20"),
	}
	doc.Recalculate()
	if !doc.TotalReturned.IsZero() || !doc.AdjustedTotal.Equal(dec("50")) {
		t.Fatalf("expected bill adjusted total to equal grand total, got returned=%s adjusted=%s",
			doc.TotalReturned, doc.AdjustedTotal)
	}
}

func TestCheckPayment(t *testing.T) {
	doc := Document{
		Kind:   KindPurchaseBill,
		Status: StatusCompleted,
		Lines:  []LineItem{{ItemID: 1, Quantity: 10, Rate: dec("10")}},
	}
	doc.Recalculate()

	if err := doc.CheckPayment(dec("100")); err != nil {
		t.Fatalf("expected full payment to pass, got %v", err)
	}
	err := doc.CheckPayment(dec("150"))
	if !errors.Is(err, ErrExceedsRemainingBalance) {
		t.Fatalf("expected exceeds balance, got %v", err)
	}
	if err.Error() != "Payment amount (150.00) exceeds remaining balance (100.00)" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if err := doc.CheckPayment(decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if err := doc.CheckPayment(dec("-1")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount for negative, got %v", err)
	}
	if err := doc.CheckPayment(dec("0.004")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected sub-cent amount to be invalid, got %v", err)
	}
	if err := doc.CheckPayment(dec("99.995")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected three decimal places to be invalid, got %v", err)
	}

	doc.Status = StatusDraft
	if err := doc.CheckPayment(dec("10")); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("expected not completed, got %v", err)
	}

	ret := Document{Kind: KindSalesReturn, Status: StatusCompleted}
	if err := ret.CheckPayment(dec("1")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected returns to refuse payments, got %v", err)
	}
}

func TestIsMoney(t *testing.T) {
	cases := map[string]bool{
		"0":      true,
		"12":     true,
		"12.5":   true,
		"12.50":  true,
		"0.01":   true,
		"-3.25":  true,
		"0.005":  false,
		"12.345": false,
		"1.0001": false,
	}
	for raw, want := range cases {
		if got := IsMoney(dec(raw)); got != want {
			t.Fatalf("IsMoney(%s) = %v, want %v", raw, got, want)
		}
	}
}

func TestCheckEditableAndDeletable(t *testing.T) {
	cases := []struct {
		kind     DocumentKind
		status   Status
		editable bool
	}{
		{KindPurchaseBill, StatusDraft, true},
		{KindPurchaseBill, StatusCompleted, false},
		{KindSalesInvoice, StatusCompleted, false},
		{KindPurchaseOrder, StatusSent, true},
		{KindPurchaseOrder, StatusApproved, false},
		{KindPurchaseOrder, StatusCancelled, false},
		{KindSalesOrder, StatusConfirmed, true},
		{KindSalesOrder, StatusCancelled, false},
	}
	for _, tc := range cases {
		err := Document{Kind: tc.kind, Status: tc.status}.CheckEditable()
		if tc.editable && err != nil {
			t.Fatalf("%s %s: expected editable, got %v", tc.kind, tc.status, err)
		}
		if !tc.editable && !errors.Is(err, ErrCannotModifyCompleted) {
			t.Fatalf("%s %s: expected cannot modify, got %v", tc.kind, tc.status, err)
		}
	}

	if err := (Document{Kind: KindSalesInvoice, Status: StatusDraft}).CheckDeletable(); err != nil {
		t.Fatalf("expected draft to be deletable, got %v", err)
	}
	err := Document{Kind: KindSalesInvoice, Status: StatusCompleted}.CheckDeletable()
	if !errors.Is(err, ErrCannotDeleteNonDraft) {
		t.Fatalf("expected cannot delete, got %v", err)
	}
	if err.Error() != "Only draft sales invoices can be deleted" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestCheckTransition(t *testing.T) {
	allowed := []struct {
		kind     DocumentKind
		from, to Status
	}{
		{KindPurchaseOrder, StatusDraft, StatusSent},
		{KindPurchaseOrder, StatusSent, StatusApproved},
		{KindPurchaseOrder, StatusDraft, StatusCancelled},
		{KindSalesOrder, StatusDraft, StatusConfirmed},
		{KindSalesOrder, StatusConfirmed, StatusCancelled},
	}
	for _, tc := range allowed {
		if err := CheckTransition(tc.kind, tc.from, tc.to); err != nil {
			t.Fatalf("%s %s->%s: expected allowed, got %v", tc.kind, tc.from, tc.to, err)
		}
	}

	refused := []struct {
		kind     DocumentKind
		from, to Status
	}{
		{KindPurchaseOrder, StatusApproved, StatusDraft},
		{KindPurchaseOrder, StatusCancelled, StatusSent},
		{KindSalesOrder, StatusCancelled, StatusConfirmed},
		{KindSalesOrder, StatusDraft, StatusApproved},
	}
	for _, tc := range refused {
		if err := CheckTransition(tc.kind, tc.from, tc.to); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s %s->%s: expected invalid transition, got %v", tc.kind, tc.from, tc.to, err)
		}
	}

	if err := CheckTransition(KindPurchaseBill, StatusDraft, StatusCompleted); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected bills to have no transitions, got %v", err)
	}
}

func TestNumbering(t *testing.T) {
	if got := FormatNumber("PB", 7); got != "PB000007" {
		t.Fatalf("expected PB000007, got %s", got)
	}
	if got := FormatNumber("INV", 1234567); got != "INV1234567" {
		t.Fatalf("expected wide sequences to keep all digits, got %s", got)
	}

	if seq, ok := ParseNumber("SR", "SR000042"); !ok || seq != 42 {
		t.Fatalf("expected 42, got %d ok=%v", seq, ok)
	}
	for _, bad := range []string{"PB", "PBX00001", "INV000001", "PB-00001", ""} {
		if _, ok := ParseNumber("PB", bad); ok {
			t.Fatalf("expected %q not to parse", bad)
		}
	}

	got := NextNumber("PB", []string{"PB000002", "CUSTOM-9", "PB000010", "INV000099"})
	if got != "PB000011" {
		t.Fatalf("expected PB000011, got %s", got)
	}
	if got := NextNumber("ITEM", nil); got != "ITEM000001" {
		t.Fatalf("expected ITEM000001, got %s", got)
	}
}

func TestAlertFor(t *testing.T) {
	if _, ok := AlertFor(Item{ID: 1, Name: "Bolt", CurrentStock: 11, MinStockLevel: 10}); ok {
		t.Fatalf("expected no alert above the reorder level")
	}

	alert, ok := AlertFor(Item{ID: 1, Name: "Bolt", Unit: "pcs", CurrentStock: 10, MinStockLevel: 10})
	if !ok || alert.Severity != SeverityLow {
		t.Fatalf("expected low alert at the reorder level, got %+v ok=%v", alert, ok)
	}
	if alert.Message != "Bolt stock is low (10 pcs remaining)" {
		t.Fatalf("unexpected message %q", alert.Message)
	}

	alert, ok = AlertFor(Item{ID: 2, Name: "Nut", CurrentStock: 0, MinStockLevel: 0})
	if !ok || alert.Severity != SeverityCritical || alert.Message != "Nut is out of stock!" {
		t.Fatalf("expected critical alert at zero, got %+v ok=%v", alert, ok)
	}
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewError(CodeAlreadyCompleted, "Purchase bill is already completed"))
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected code match through wrapping")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("expected different codes not to match")
	}
	if code, ok := CodeOf(err); !ok || code != CodeAlreadyCompleted {
		t.Fatalf("expected ALREADY_COMPLETED, got %q ok=%v", code, ok)
	}

	stock := fmt.Errorf("line 1: %w", &InsufficientStockError{ItemName: "Bolt", Available: 4, Required: 6})
	if !errors.Is(stock, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock match")
	}
	if code, _ := CodeOf(stock); code != CodeInsufficientStock {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %q", code)
	}
	if stock.Error() != "line 1: Insufficient stock for Bolt. Available: 4, Required: 6" {
		t.Fatalf("unexpected message %q", stock.Error())
	}

	if _, ok := CodeOf(errors.New("boom")); ok {
		t.Fatalf("expected plain errors to carry no code")
	}
	if CodeInsufficientStock.Category() != CategoryConflict || CodeNotFound.Category() != CategoryNotFound ||
		CodeInvalidAmount.Category() != CategoryBadRequest || CodeForbidden.Category() != CategoryForbidden {
		t.Fatalf("unexpected category mapping")
	}
}
