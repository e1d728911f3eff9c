package repository

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"stockledger/internal/domain"
)

// Memory is a Store held in process memory. One mutex guards everything, so
// every operation is serialized. It backs the server when no DATABASE_URL is
// configured and the service tests.
type Memory struct {
	mu        sync.Mutex
	now       func() time.Time
	items     map[int64]domain.Item
	movements []domain.StockMovement
	alerts    []domain.Alert
	documents map[int64]domain.Document
	nextID    map[string]int64
}

func NewMemory() *Memory {
	return &Memory{
		now:       func() time.Time { return time.Now().UTC() },
		items:     map[int64]domain.Item{},
		documents: map[int64]domain.Document{},
		nextID:    map[string]int64{},
	}
}

func (m *Memory) id(table string) int64 {
	m.nextID[table]++
	return m.nextID[table]
}

func (m *Memory) CreateItem(_ context.Context, item domain.Item) (domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item.SKU = strings.ToUpper(strings.TrimSpace(item.SKU))
	if item.SKU == "" {
		existing := make([]string, 0, len(m.items))
		for _, it := range m.items {
			existing = append(existing, it.SKU)
		}
		item.SKU = domain.NextNumber(domain.ItemSKUPrefix, existing)
	}
	for _, it := range m.items {
		if it.SKU == item.SKU {
			return domain.Item{}, domain.Validationf("SKU %s already exists", item.SKU)
		}
	}

	now := m.now()
	item.ID = m.id("items")
	item.CreatedAt = now
	item.UpdatedAt = now
	m.items[item.ID] = item
	return item, nil
}

func (m *Memory) GetItem(_ context.Context, id int64) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return nil, itemNotFound(id)
	}
	return &item, nil
}

func (m *Memory) ListItems(_ context.Context, filter ItemListFilter) ([]domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	list := make([]domain.Item, 0, len(m.items))
	for _, item := range m.items {
		if !filter.IncludeInactive && !item.IsActive {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(item.Category, filter.Category) {
			continue
		}
		if filter.LowStockOnly && !item.IsLowStock() {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(item.Name), search) &&
			!strings.Contains(strings.ToLower(item.SKU), search) {
			continue
		}
		list = append(list, item)
	}
	if filter.LowStockOnly {
		slices.SortFunc(list, func(a, b domain.Item) int {
			if a.CurrentStock != b.CurrentStock {
				return cmp.Compare(a.CurrentStock, b.CurrentStock)
			}
			return cmp.Compare(a.ID, b.ID)
		})
	} else {
		slices.SortFunc(list, func(a, b domain.Item) int { return cmp.Compare(a.ID, b.ID) })
	}
	return page(list, filter.Limit, filter.Offset), nil
}

func (m *Memory) PatchItem(_ context.Context, id int64, patch ItemPatch) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return nil, itemNotFound(id)
	}
	applyItemPatch(&item, patch)
	item.UpdatedAt = m.now()
	m.items[id] = item
	return &item, nil
}

func (m *Memory) ApplyStockChange(_ context.Context, change domain.StockChange) (domain.Item, domain.StockMovement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[change.ItemID]
	if !ok {
		return domain.Item{}, domain.StockMovement{}, itemNotFound(change.ItemID)
	}
	if change.LineNo > 0 && m.hasMovement(change.RefType, change.RefID, change.LineNo) {
		return domain.Item{}, domain.StockMovement{}, domain.Validationf(
			"movement for %s %d line %d already recorded", change.RefType, change.RefID, change.LineNo)
	}

	after, err := nextStock(item, change)
	if err != nil {
		return domain.Item{}, domain.StockMovement{}, err
	}

	now := m.now()
	movement := domain.StockMovement{
		ID:           m.id("movements"),
		ItemID:       item.ID,
		ItemName:     item.Name,
		RefType:      change.RefType,
		RefID:        change.RefID,
		RefNumber:    change.RefNumber,
		LineNo:       change.LineNo,
		BeforeStock:  item.CurrentStock,
		AfterStock:   after,
		Quantity:     change.Quantity,
		MovementType: change.Direction,
		Notes:        change.Notes,
		CreatedBy:    change.ActorID,
		CreatedAt:    now,
	}
	item.CurrentStock = after
	item.UpdatedAt = now
	m.items[item.ID] = item
	m.movements = append(m.movements, movement)
	return item, movement, nil
}

func (m *Memory) HasMovement(_ context.Context, refType domain.RefType, refID int64, lineNo int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasMovement(refType, refID, lineNo), nil
}

func (m *Memory) hasMovement(refType domain.RefType, refID int64, lineNo int) bool {
	for _, mv := range m.movements {
		if mv.RefType == refType && mv.RefID == refID && mv.LineNo == lineNo {
			return true
		}
	}
	return false
}

func (m *Memory) ListMovements(_ context.Context, filter MovementFilter) ([]domain.StockMovement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]domain.StockMovement, 0)
	for i := len(m.movements) - 1; i >= 0; i-- {
		mv := m.movements[i]
		if filter.ItemID != nil && mv.ItemID != *filter.ItemID {
			continue
		}
		if filter.RefType != "" && mv.RefType != filter.RefType {
			continue
		}
		if filter.RefID != nil && mv.RefID != *filter.RefID {
			continue
		}
		if filter.MovementType != "" && mv.MovementType != filter.MovementType {
			continue
		}
		list = append(list, mv)
	}
	return page(list, filter.Limit, filter.Offset), nil
}

func (m *Memory) openAlertIndex(itemID int64) int {
	for i, a := range m.alerts {
		if a.ItemID == itemID && !a.IsResolved {
			return i
		}
	}
	return -1
}

func (m *Memory) ReconcileAlert(_ context.Context, itemID int64, at time.Time) (AlertOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		return AlertOutcome{}, itemNotFound(itemID)
	}
	out := AlertOutcome{Item: item}
	idx := m.openAlertIndex(itemID)
	want, low := domain.AlertFor(item)
	switch {
	case !low && idx >= 0:
		m.alerts[idx].IsResolved = true
		m.alerts[idx].ResolvedAt = &at
		out.Resolved = true
	case low && idx < 0:
		want.ID = m.id("alerts")
		want.CreatedAt = m.now()
		m.alerts = append(m.alerts, want)
		out.Raised = &want
	}
	return out, nil
}

func (m *Memory) ResolveAlert(_ context.Context, id, resolvedBy int64, at time.Time) (domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.alerts {
		if m.alerts[i].ID != id {
			continue
		}
		if m.alerts[i].IsResolved {
			return domain.Alert{}, domain.NewError(domain.CodeAlreadyResolved, "Alert is already resolved")
		}
		m.alerts[i].IsResolved = true
		m.alerts[i].ResolvedAt = &at
		m.alerts[i].ResolvedBy = &resolvedBy
		return m.withItemName(m.alerts[i]), nil
	}
	return domain.Alert{}, alertNotFound(id)
}

func (m *Memory) GetAlert(_ context.Context, id int64) (*domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.alerts {
		if a.ID == id {
			alert := m.withItemName(a)
			return &alert, nil
		}
	}
	return nil, alertNotFound(id)
}

func (m *Memory) withItemName(a domain.Alert) domain.Alert {
	if item, ok := m.items[a.ItemID]; ok {
		a.ItemName = item.Name
	}
	return a
}

func (m *Memory) ListAlerts(_ context.Context, filter AlertFilter) ([]domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]domain.Alert, 0)
	for i := len(m.alerts) - 1; i >= 0; i-- {
		a := m.alerts[i]
		if filter.ItemID != nil && a.ItemID != *filter.ItemID {
			continue
		}
		if filter.Severity != "" && a.Severity != filter.Severity {
			continue
		}
		if filter.IsResolved != nil && a.IsResolved != *filter.IsResolved {
			continue
		}
		list = append(list, m.withItemName(a))
	}
	return page(list, filter.Limit, filter.Offset), nil
}

func (m *Memory) DeleteAlert(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, a := range m.alerts {
		if a.ID == id {
			m.alerts = slices.Delete(m.alerts, i, i+1)
			return nil
		}
	}
	return alertNotFound(id)
}

func (m *Memory) CountOpenAlerts(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, a := range m.alerts {
		if !a.IsResolved {
			count++
		}
	}
	return count, nil
}

func (m *Memory) CreateDocument(_ context.Context, doc domain.Document) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLineItems(doc.Lines); err != nil {
		return domain.Document{}, err
	}
	doc.Number = strings.TrimSpace(doc.Number)
	if doc.Number == "" {
		existing := make([]string, 0)
		for _, d := range m.documents {
			if d.Kind == doc.Kind {
				existing = append(existing, d.Number)
			}
		}
		doc.Number = domain.NextNumber(doc.Kind.Prefix(), existing)
	}
	for _, d := range m.documents {
		if d.Kind == doc.Kind && d.Number == doc.Number {
			return domain.Document{}, domain.Validationf("%s number %s already exists", doc.Kind.Label(), doc.Number)
		}
	}

	now := m.now()
	doc = cloneDocument(doc)
	doc.ID = m.id("documents")
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.Recalculate()
	m.documents[doc.ID] = doc
	return m.withLineNames(cloneDocument(doc)), nil
}

func (m *Memory) checkLineItems(lines []domain.LineItem) error {
	for _, line := range lines {
		if _, ok := m.items[line.ItemID]; !ok {
			return itemNotFound(line.ItemID)
		}
	}
	return nil
}

func (m *Memory) GetDocument(_ context.Context, kind domain.DocumentKind, id int64) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.documents[id]
	if !ok || doc.Kind != kind {
		return nil, documentNotFound(kind, id)
	}
	doc = m.withLineNames(cloneDocument(doc))
	return &doc, nil
}

func (m *Memory) withLineNames(doc domain.Document) domain.Document {
	for i := range doc.Lines {
		if item, ok := m.items[doc.Lines[i].ItemID]; ok {
			doc.Lines[i].ItemName = item.Name
		}
	}
	return doc
}

func (m *Memory) ListDocuments(_ context.Context, filter DocumentFilter) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	list := make([]domain.Document, 0)
	for _, doc := range m.documents {
		if doc.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(doc.PartyName), search) &&
			!strings.Contains(strings.ToLower(doc.Number), search) {
			continue
		}
		list = append(list, m.withLineNames(cloneDocument(doc)))
	}
	slices.SortFunc(list, func(a, b domain.Document) int { return cmp.Compare(b.ID, a.ID) })
	return page(list, filter.Limit, filter.Offset), nil
}

func (m *Memory) UpdateDocument(
	_ context.Context,
	kind domain.DocumentKind,
	id int64,
	mutate func(*domain.Document) error,
) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.documents[id]
	if !ok || stored.Kind != kind {
		return domain.Document{}, documentNotFound(kind, id)
	}
	doc := m.withLineNames(cloneDocument(stored))
	if err := mutate(&doc); err != nil {
		return domain.Document{}, err
	}
	if err := m.checkLineItems(doc.Lines); err != nil {
		return domain.Document{}, err
	}
	doc.ID, doc.Kind, doc.Number, doc.CreatedAt = stored.ID, stored.Kind, stored.Number, stored.CreatedAt
	var appended []domain.Payment
	if len(doc.Payments) > len(stored.Payments) {
		appended = doc.Payments[len(stored.Payments):]
	}
	doc.Payments = append(append([]domain.Payment{}, stored.Payments...), appended...)
	doc.UpdatedAt = m.now()
	doc.Recalculate()
	m.documents[id] = cloneDocument(doc)
	return m.withLineNames(doc), nil
}

func (m *Memory) DeleteDocument(
	_ context.Context,
	kind domain.DocumentKind,
	id int64,
	check func(domain.Document) error,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.documents[id]
	if !ok || doc.Kind != kind {
		return documentNotFound(kind, id)
	}
	if check != nil {
		if err := check(doc); err != nil {
			return err
		}
	}
	delete(m.documents, id)
	return nil
}

func applyItemPatch(item *domain.Item, patch ItemPatch) {
	if patch.Name != nil {
		item.Name = *patch.Name
	}
	if patch.Category != nil {
		item.Category = *patch.Category
	}
	if patch.Unit != nil {
		item.Unit = *patch.Unit
	}
	if patch.PurchasePrice != nil {
		item.PurchasePrice = *patch.PurchasePrice
	}
	if patch.SellingPrice != nil {
		item.SellingPrice = *patch.SellingPrice
	}
	if patch.MinStockLevel != nil {
		item.MinStockLevel = *patch.MinStockLevel
	}
	if patch.IsActive != nil {
		item.IsActive = *patch.IsActive
	}
}

// nextStock computes the post-movement level or refuses an OUT that would
// overdraw the item.
func nextStock(item domain.Item, change domain.StockChange) (int, error) {
	if change.Quantity <= 0 {
		return 0, domain.Validationf("quantity must be greater than 0")
	}
	switch change.Direction {
	case domain.DirectionIn:
		return item.CurrentStock + change.Quantity, nil
	case domain.DirectionOut:
		if item.CurrentStock < change.Quantity {
			return 0, &domain.InsufficientStockError{
				ItemID:    item.ID,
				ItemName:  item.Name,
				Available: item.CurrentStock,
				Required:  change.Quantity,
			}
		}
		return item.CurrentStock - change.Quantity, nil
	default:
		return 0, domain.Validationf("invalid movement type %q", change.Direction)
	}
}

func page[T any](list []T, limit, offset int) []T {
	limit = normalizeLimit(limit)
	offset = normalizeOffset(offset)
	if offset >= len(list) {
		return []T{}
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end]
}
