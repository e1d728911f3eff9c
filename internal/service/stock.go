package service

import (
	"context"

	"stockledger/internal/domain"
	"stockledger/internal/repository"

	"github.com/sirupsen/logrus"
)

// ApplyStockChange is the only path that moves stock. The availability check,
// the new level and the movement row commit together; alert reconciliation
// follows and never fails the call.
func (s *Service) ApplyStockChange(ctx context.Context, change domain.StockChange) (domain.Item, domain.StockMovement, error) {
	if change.Quantity <= 0 {
		return domain.Item{}, domain.StockMovement{}, domain.Validationf("quantity must be greater than 0")
	}
	if !change.Direction.Valid() {
		return domain.Item{}, domain.StockMovement{}, domain.Validationf("invalid movement type %q", change.Direction)
	}
	switch change.RefType {
	case domain.RefPurchase, domain.RefSale, domain.RefReturn, domain.RefAdjustment:
	default:
		return domain.Item{}, domain.StockMovement{}, domain.Validationf("invalid reference type %q", change.RefType)
	}
	change.Notes = normalizeNullable(change.Notes)

	item, movement, err := s.store.ApplyStockChange(ctx, change)
	if err != nil {
		return domain.Item{}, domain.StockMovement{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"item_id":       item.ID,
		"ref_type":      movement.RefType,
		"ref_number":    movement.RefNumber,
		"movement_type": movement.MovementType,
		"quantity":      movement.Quantity,
		"after_stock":   movement.AfterStock,
	}).Debug("stock movement recorded")

	s.ReconcileAlert(ctx, item.ID)
	return item, movement, nil
}

type AdjustmentInput struct {
	Quantity  int
	Direction domain.Direction
	Notes     *string
}

// AdjustStock books a manual correction against one item.
func (s *Service) AdjustStock(ctx context.Context, itemID int64, input AdjustmentInput, actorID int64) (domain.Item, domain.StockMovement, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return domain.Item{}, domain.StockMovement{}, err
	}
	return s.ApplyStockChange(ctx, domain.StockChange{
		ItemID:    item.ID,
		Quantity:  input.Quantity,
		Direction: input.Direction,
		RefType:   domain.RefAdjustment,
		RefID:     item.ID,
		RefNumber: item.SKU,
		ActorID:   actorID,
		Notes:     input.Notes,
	})
}

func (s *Service) ListMovements(ctx context.Context, filter repository.MovementFilter) ([]domain.StockMovement, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.store.ListMovements(ctx, filter)
}
