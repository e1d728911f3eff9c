package repository

import (
	"context"
	"time"

	"stockledger/internal/domain"

	"github.com/shopspring/decimal"
)

type ItemListFilter struct {
	Search          string
	Category        string
	IncludeInactive bool
	LowStockOnly    bool
	Limit           int
	Offset          int
}

type ItemPatch struct {
	Name          *string
	Category      *string
	Unit          *string
	PurchasePrice *decimal.Decimal
	SellingPrice  *decimal.Decimal
	MinStockLevel *int
	IsActive      *bool
}

type MovementFilter struct {
	ItemID       *int64
	RefType      domain.RefType
	RefID        *int64
	MovementType domain.Direction
	Limit        int
	Offset       int
}

type AlertFilter struct {
	ItemID     *int64
	Severity   domain.Severity
	IsResolved *bool
	Limit      int
	Offset     int
}

type DocumentFilter struct {
	Kind   domain.DocumentKind
	Status domain.Status
	Search string
	Limit  int
	Offset int
}

// AlertOutcome reports what ReconcileAlert changed. Raised and Resolved are
// both empty when the alert state already matched the stock level.
type AlertOutcome struct {
	Item     domain.Item
	Raised   *domain.Alert
	Resolved bool
}

// Store is the persistence boundary of the ledger. Implementations must
// serialize ApplyStockChange per item and UpdateDocument per document.
type Store interface {
	CreateItem(ctx context.Context, item domain.Item) (domain.Item, error)
	GetItem(ctx context.Context, id int64) (*domain.Item, error)
	ListItems(ctx context.Context, filter ItemListFilter) ([]domain.Item, error)
	PatchItem(ctx context.Context, id int64, patch ItemPatch) (*domain.Item, error)

	// ApplyStockChange checks availability, writes the new stock level and
	// appends the movement as one atomic unit.
	ApplyStockChange(ctx context.Context, change domain.StockChange) (domain.Item, domain.StockMovement, error)
	HasMovement(ctx context.Context, refType domain.RefType, refID int64, lineNo int) (bool, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]domain.StockMovement, error)

	// ReconcileAlert reads the item under the same per-item lock as
	// ApplyStockChange and settles its alert from that stock level: an item at
	// or below its reorder level gets an alert unless one is open, an item
	// above it has its open alert resolved at the given time.
	ReconcileAlert(ctx context.Context, itemID int64, at time.Time) (AlertOutcome, error)
	ResolveAlert(ctx context.Context, id, resolvedBy int64, at time.Time) (domain.Alert, error)
	GetAlert(ctx context.Context, id int64) (*domain.Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]domain.Alert, error)
	DeleteAlert(ctx context.Context, id int64) error
	CountOpenAlerts(ctx context.Context) (int, error)

	// CreateDocument assigns the next number for the kind when Number is
	// blank and recalculates derived fields before persisting.
	CreateDocument(ctx context.Context, doc domain.Document) (domain.Document, error)
	GetDocument(ctx context.Context, kind domain.DocumentKind, id int64) (*domain.Document, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]domain.Document, error)
	// UpdateDocument loads the document under a write lock, hands it to
	// mutate, recalculates derived fields and persists the result. Payments
	// are append-only: entries already stored are never rewritten.
	UpdateDocument(ctx context.Context, kind domain.DocumentKind, id int64, mutate func(*domain.Document) error) (domain.Document, error)
	DeleteDocument(ctx context.Context, kind domain.DocumentKind, id int64, check func(domain.Document) error) error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func itemNotFound(id int64) error {
	return domain.NotFoundf("Item %d not found", id)
}

func alertNotFound(id int64) error {
	return domain.NotFoundf("Alert %d not found", id)
}

func documentNotFound(kind domain.DocumentKind, id int64) error {
	return domain.NotFoundf("%s %d not found", kind.Label(), id)
}

func linesEqual(a, b []domain.LineItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ItemID != b[i].ItemID || a[i].Quantity != b[i].Quantity || !a[i].Rate.Equal(b[i].Rate) {
			return false
		}
	}
	return true
}

func cloneDocument(doc domain.Document) domain.Document {
	doc.Lines = append([]domain.LineItem{}, doc.Lines...)
	doc.Payments = append([]domain.Payment{}, doc.Payments...)
	return doc
}
