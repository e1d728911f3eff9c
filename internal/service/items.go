package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"stockledger/internal/domain"
	"stockledger/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type ItemInput struct {
	SKU           string
	Name          string
	Category      string
	Unit          string
	PurchasePrice decimal.Decimal
	SellingPrice  decimal.Decimal
	MinStockLevel *int
	OpeningStock  int
}

// CreateItem stores a new item at zero stock and books any opening quantity
// as an adjustment, so the movement log explains every unit on hand. If the
// opening movement fails the item is kept at zero stock and the error names it.
func (s *Service) CreateItem(ctx context.Context, input ItemInput, actorID int64) (domain.Item, error) {
	item, err := newItem(input)
	if err != nil {
		return domain.Item{}, err
	}
	if input.OpeningStock < 0 {
		return domain.Item{}, domain.Validationf("opening stock cannot be negative")
	}

	created, err := s.store.CreateItem(ctx, item)
	if err != nil {
		return domain.Item{}, err
	}
	if input.OpeningStock == 0 {
		return created, nil
	}

	notes := "Opening stock"
	updated, _, err := s.ApplyStockChange(ctx, domain.StockChange{
		ItemID:    created.ID,
		Quantity:  input.OpeningStock,
		Direction: domain.DirectionIn,
		RefType:   domain.RefAdjustment,
		RefID:     created.ID,
		RefNumber: created.SKU,
		ActorID:   actorID,
		Notes:     &notes,
	})
	if err != nil {
		s.logError("CreateItem", "opening stock not booked", logrus.Fields{
			"item_id":       created.ID,
			"sku":           created.SKU,
			"opening_stock": input.OpeningStock,
		}, err)
		return domain.Item{}, fmt.Errorf("%w; item %s (id %d) was created with zero stock", err, created.SKU, created.ID)
	}
	return updated, nil
}

func newItem(input ItemInput) (domain.Item, error) {
	item := domain.Item{
		SKU:           strings.ToUpper(strings.TrimSpace(input.SKU)),
		Name:          strings.TrimSpace(input.Name),
		Category:      strings.TrimSpace(input.Category),
		Unit:          strings.ToLower(strings.TrimSpace(input.Unit)),
		PurchasePrice: input.PurchasePrice,
		SellingPrice:  input.SellingPrice,
		MinStockLevel: domain.DefaultMinStockLevel,
		IsActive:      true,
	}
	if item.Name == "" {
		return domain.Item{}, domain.Validationf("name is required")
	}
	if item.Unit == "" {
		item.Unit = domain.DefaultUnit
	}
	if !slices.Contains(domain.Units, item.Unit) {
		return domain.Item{}, domain.Validationf("unit must be one of %s", strings.Join(domain.Units, ", "))
	}
	if item.PurchasePrice.IsNegative() || item.SellingPrice.IsNegative() {
		return domain.Item{}, domain.Validationf("prices cannot be negative")
	}
	if !domain.IsMoney(item.PurchasePrice) || !domain.IsMoney(item.SellingPrice) {
		return domain.Item{}, domain.Validationf("prices cannot have more than 2 decimal places")
	}
	if input.MinStockLevel != nil {
		if *input.MinStockLevel < 0 {
			return domain.Item{}, domain.Validationf("min stock level cannot be negative")
		}
		item.MinStockLevel = *input.MinStockLevel
	}
	return item, nil
}

func (s *Service) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	return s.store.GetItem(ctx, id)
}

func (s *Service) ListItems(ctx context.Context, filter repository.ItemListFilter) ([]domain.Item, error) {
	return s.store.ListItems(ctx, filter)
}

func (s *Service) LowStock(ctx context.Context, limit, offset int) ([]domain.Item, error) {
	return s.store.ListItems(ctx, repository.ItemListFilter{LowStockOnly: true, Limit: limit, Offset: offset})
}

// PatchItem edits descriptive fields. Stock is not patchable; it only moves
// through ApplyStockChange. A changed reorder level re-runs reconciliation.
func (s *Service) PatchItem(ctx context.Context, id int64, patch repository.ItemPatch) (*domain.Item, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, domain.Validationf("name cannot be empty")
		}
		patch.Name = &name
	}
	if patch.Category != nil {
		category := strings.TrimSpace(*patch.Category)
		patch.Category = &category
	}
	if patch.Unit != nil {
		unit := strings.ToLower(strings.TrimSpace(*patch.Unit))
		if !slices.Contains(domain.Units, unit) {
			return nil, domain.Validationf("unit must be one of %s", strings.Join(domain.Units, ", "))
		}
		patch.Unit = &unit
	}
	if (patch.PurchasePrice != nil && patch.PurchasePrice.IsNegative()) ||
		(patch.SellingPrice != nil && patch.SellingPrice.IsNegative()) {
		return nil, domain.Validationf("prices cannot be negative")
	}
	if (patch.PurchasePrice != nil && !domain.IsMoney(*patch.PurchasePrice)) ||
		(patch.SellingPrice != nil && !domain.IsMoney(*patch.SellingPrice)) {
		return nil, domain.Validationf("prices cannot have more than 2 decimal places")
	}
	if patch.MinStockLevel != nil && *patch.MinStockLevel < 0 {
		return nil, domain.Validationf("min stock level cannot be negative")
	}

	item, err := s.store.PatchItem(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if patch.MinStockLevel != nil {
		s.ReconcileAlert(ctx, item.ID)
	}
	return item, nil
}

// DeactivateItem hides an item from default listings. Items are never hard
// deleted because movements and documents keep referencing them.
func (s *Service) DeactivateItem(ctx context.Context, id int64) (*domain.Item, error) {
	inactive := false
	return s.store.PatchItem(ctx, id, repository.ItemPatch{IsActive: &inactive})
}

type ImportResult struct {
	Created int      `json:"created"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// ImportItems creates one item per row. A bad row is reported and skipped;
// the rest still go in.
func (s *Service) ImportItems(ctx context.Context, rows []domain.ItemImportRow, actorID int64) (ImportResult, error) {
	if len(rows) == 0 {
		return ImportResult{}, domain.Validationf("import file has no data rows")
	}
	result := ImportResult{Errors: []string{}}
	for i, row := range rows {
		_, err := s.CreateItem(ctx, ItemInput{
			SKU:           row.SKU,
			Name:          row.Name,
			Category:      row.Category,
			Unit:          row.Unit,
			PurchasePrice: row.PurchasePrice,
			SellingPrice:  row.SellingPrice,
			MinStockLevel: row.MinStockLevel,
			OpeningStock:  row.OpeningStock,
		}, actorID)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+2, err))
			continue
		}
		result.Created++
	}
	return result, nil
}
