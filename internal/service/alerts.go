package service

import (
	"context"

	"stockledger/internal/domain"
	"stockledger/internal/repository"

	"github.com/sirupsen/logrus"
)

// ReconcileAlert brings the item's open alert in line with its stock level:
// one is opened when the item sits at or below its reorder level and none is
// open, and the open one is closed once stock recovers. The store decides from
// the level it reads under the item lock, not from the caller's snapshot. An
// existing open alert is left as is even if severity would now differ.
// Failures are logged, never returned.
func (s *Service) ReconcileAlert(ctx context.Context, itemID int64) {
	ctx, cancel := detached(ctx)
	defer cancel()

	out, err := s.store.ReconcileAlert(ctx, itemID, s.now())
	if err != nil {
		s.logError("ReconcileAlert", "reconcile alert", logrus.Fields{"item_id": itemID}, err)
		return
	}
	fields := logrus.Fields{"item_id": itemID, "current_stock": out.Item.CurrentStock, "min_stock_level": out.Item.MinStockLevel}
	switch {
	case out.Raised != nil:
		s.invalidateAlertCount(ctx)
		s.logger.WithFields(fields).WithField("severity", out.Raised.Severity).Info("low stock alert raised")
	case out.Resolved:
		s.invalidateAlertCount(ctx)
		s.logger.WithFields(fields).Info("low stock alert resolved")
	}
}

func (s *Service) ListAlerts(ctx context.Context, filter repository.AlertFilter) ([]domain.Alert, error) {
	if filter.Severity != "" && filter.Severity != domain.SeverityLow && filter.Severity != domain.SeverityCritical {
		return nil, domain.Validationf("invalid severity %q", filter.Severity)
	}
	return s.store.ListAlerts(ctx, filter)
}

func (s *Service) GetAlert(ctx context.Context, id int64) (*domain.Alert, error) {
	return s.store.GetAlert(ctx, id)
}

// ResolveAlert closes an alert by hand and records who did it.
func (s *Service) ResolveAlert(ctx context.Context, id, actorID int64) (domain.Alert, error) {
	alert, err := s.store.ResolveAlert(ctx, id, actorID, s.now())
	if err != nil {
		return domain.Alert{}, err
	}
	s.invalidateAlertCount(ctx)
	return alert, nil
}

func (s *Service) DeleteAlert(ctx context.Context, id int64) error {
	if err := s.store.DeleteAlert(ctx, id); err != nil {
		return err
	}
	s.invalidateAlertCount(ctx)
	return nil
}

// UnresolvedAlertCount serves the polling badge. A cached value may lag
// writes by up to the cache TTL.
func (s *Service) UnresolvedAlertCount(ctx context.Context) (int, error) {
	if s.alertCount != nil {
		n, ok, err := s.alertCount.Get(ctx)
		if err != nil {
			s.logError("UnresolvedAlertCount", "read cached count", nil, err)
		} else if ok {
			return n, nil
		}
	}

	n, err := s.store.CountOpenAlerts(ctx)
	if err != nil {
		return 0, err
	}
	if s.alertCount != nil {
		if err := s.alertCount.Set(ctx, n); err != nil {
			s.logError("UnresolvedAlertCount", "store cached count", nil, err)
		}
	}
	return n, nil
}

func (s *Service) invalidateAlertCount(ctx context.Context) {
	if s.alertCount == nil {
		return
	}
	if err := s.alertCount.Invalidate(ctx); err != nil {
		s.logError("invalidateAlertCount", "drop cached count", nil, err)
	}
}
