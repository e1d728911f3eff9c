package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

type RefType string

const (
	RefPurchase   RefType = "PURCHASE"
	RefSale       RefType = "SALE"
	RefReturn     RefType = "RETURN"
	RefAdjustment RefType = "ADJUSTMENT"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityCritical Severity = "critical"
)

type Item struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Unit          string          `json:"unit"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	CurrentStock  int             `json:"current_stock"`
	MinStockLevel int             `json:"min_stock_level"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsLowStock reports whether the item sits at or below its reorder level.
func (i Item) IsLowStock() bool {
	return i.CurrentStock <= i.MinStockLevel
}

type StockMovement struct {
	ID           int64     `json:"id"`
	ItemID       int64     `json:"item_id"`
	ItemName     string    `json:"item_name,omitempty"`
	RefType      RefType   `json:"ref_type"`
	RefID        int64     `json:"ref_id"`
	RefNumber    string    `json:"ref_number"`
	LineNo       int       `json:"line_no"`
	BeforeStock  int       `json:"before_stock"`
	AfterStock   int       `json:"after_stock"`
	Quantity     int       `json:"quantity"`
	MovementType Direction `json:"movement_type"`
	Notes        *string   `json:"notes,omitempty"`
	CreatedBy    int64     `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// StockChange is one signed quantity delta requested against an item.
type StockChange struct {
	ItemID    int64
	Quantity  int
	Direction Direction
	RefType   RefType
	RefID     int64
	RefNumber string
	LineNo    int
	ActorID   int64
	Notes     *string
}

type Alert struct {
	ID         int64      `json:"id"`
	ItemID     int64      `json:"item_id"`
	ItemName   string     `json:"item_name,omitempty"`
	Message    string     `json:"message"`
	Severity   Severity   `json:"severity"`
	IsResolved bool       `json:"is_resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy *int64     `json:"resolved_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type LineItem struct {
	ItemID   int64           `json:"item_id"`
	ItemName string          `json:"item_name,omitempty"`
	Quantity int             `json:"quantity"`
	Rate     decimal.Decimal `json:"rate"`
	Amount   decimal.Decimal `json:"amount"`
}

type Payment struct {
	ID         string          `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Date       time.Time       `json:"payment_date"`
	Method     string          `json:"payment_method"`
	Reference  *string         `json:"reference,omitempty"`
	Notes      *string         `json:"notes,omitempty"`
	RecordedBy int64           `json:"recorded_by"`
	RecordedAt time.Time       `json:"recorded_at"`
}

var PaymentMethods = []string{"Cash", "Bank Transfer", "Cheque", "Credit Card", "UPI", "Other"}

const DefaultPaymentMethod = "Cash"

// Document is the shared shape of purchase bills, sales invoices, sales
// returns and the upstream purchase/sales orders. Fields that do not apply
// to a kind stay zero.
type Document struct {
	ID            int64           `json:"id"`
	Kind          DocumentKind    `json:"kind"`
	Number        string          `json:"number"`
	Status        Status          `json:"status"`
	PartyID       *int64          `json:"party_id,omitempty"`
	PartyName     string          `json:"party_name"`
	SourceID      *int64          `json:"source_id,omitempty"`
	Lines         []LineItem      `json:"lines"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	TotalReturned decimal.Decimal `json:"total_returned"`
	AdjustedTotal decimal.Decimal `json:"adjusted_total"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PaymentStatus PaymentStatus   `json:"payment_status,omitempty"`
	Payments      []Payment       `json:"payments"`
	Reason        *string         `json:"reason,omitempty"`
	Notes         *string         `json:"notes,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type PaymentSummary struct {
	GrandTotal      decimal.Decimal `json:"grand_total"`
	TotalReturned   decimal.Decimal `json:"total_returned"`
	AdjustedTotal   decimal.Decimal `json:"adjusted_total"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	Payments        []Payment       `json:"payments"`
}

type ItemImportRow struct {
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Unit          string          `json:"unit"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	MinStockLevel *int            `json:"min_stock_level,omitempty"`
	OpeningStock  int             `json:"opening_stock"`
}

var Units = []string{"pcs", "kg", "box", "ltr", "mtr"}

const (
	DefaultUnit          = "pcs"
	DefaultMinStockLevel = 10
)

// MoneyScale is the number of decimal places stored for prices, rates and
// payment amounts.
const MoneyScale = 2

// IsMoney reports whether d can be stored at MoneyScale without rounding.
func IsMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyScale))
}
