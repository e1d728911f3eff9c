package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stockledger/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	itemColumns = `
		i.id,
		i.sku,
		i.name,
		i.category,
		i.unit,
		i.purchase_price::text,
		i.selling_price::text,
		i.current_stock,
		i.min_stock_level,
		i.is_active,
		i.created_at,
		i.updated_at
	`
	movementColumns = `
		m.id,
		m.item_id,
		i.name,
		m.ref_type,
		m.ref_id,
		m.ref_number,
		m.line_no,
		m.before_stock,
		m.after_stock,
		m.quantity,
		m.movement_type,
		m.notes,
		m.created_by,
		m.created_at
	`
	alertColumns = `
		a.id,
		a.item_id,
		i.name,
		a.message,
		a.severity,
		a.is_resolved,
		a.resolved_at,
		a.resolved_by,
		a.created_at
	`
	documentColumns = `
		d.id,
		d.kind,
		d.number,
		d.status,
		d.party_id,
		d.party_name,
		d.source_id,
		d.grand_total::text,
		d.total_returned::text,
		d.adjusted_total::text,
		d.paid_amount::text,
		d.payment_status,
		d.reason,
		d.notes,
		d.completed_at,
		d.created_by,
		d.created_at,
		d.updated_at
	`
)

type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) CreateItem(ctx context.Context, item domain.Item) (domain.Item, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Item{}, fmt.Errorf("begin create item tx: %w", err)
	}
	defer tx.Rollback(ctx)

	item.SKU = strings.ToUpper(strings.TrimSpace(item.SKU))
	if item.SKU == "" {
		seq, err := nextSequence(ctx, tx, "items", "sku", domain.ItemSKUPrefix, "")
		if err != nil {
			return domain.Item{}, err
		}
		item.SKU = domain.FormatNumber(domain.ItemSKUPrefix, seq)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO items AS i (
			sku,
			name,
			category,
			unit,
			purchase_price,
			selling_price,
			current_stock,
			min_stock_level,
			is_active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+itemColumns,
		item.SKU,
		item.Name,
		item.Category,
		item.Unit,
		item.PurchasePrice,
		item.SellingPrice,
		item.CurrentStock,
		item.MinStockLevel,
		item.IsActive,
	)
	created, err := scanItemRow(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Item{}, domain.Validationf("SKU %s already exists", item.SKU)
		}
		return domain.Item{}, fmt.Errorf("create item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Item{}, fmt.Errorf("commit create item tx: %w", err)
	}
	return created, nil
}

func (r *Repository) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items i WHERE i.id = $1`, id)
	item, err := scanItemRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, itemNotFound(id)
		}
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}
	return &item, nil
}

func (r *Repository) ListItems(ctx context.Context, filter ItemListFilter) ([]domain.Item, error) {
	limit := normalizeLimit(filter.Limit)
	offset := normalizeOffset(filter.Offset)

	query := `
		SELECT ` + itemColumns + `
		FROM items i
		WHERE ($1 = '' OR i.name ILIKE '%' || $1 || '%' OR i.sku ILIKE '%' || $1 || '%')
			AND ($2 = '' OR LOWER(i.category) = LOWER($2))
			AND ($3 OR i.is_active)
	`
	if filter.LowStockOnly {
		query += ` AND i.current_stock <= i.min_stock_level ORDER BY i.current_stock ASC, i.id ASC`
	} else {
		query += ` ORDER BY i.id ASC`
	}
	query += ` LIMIT $4 OFFSET $5`

	rows, err := r.pool.Query(ctx, query,
		strings.TrimSpace(filter.Search),
		strings.TrimSpace(filter.Category),
		filter.IncludeInactive,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, fmt.Errorf("collect items: %w", err)
	}
	return items, nil
}

func (r *Repository) PatchItem(ctx context.Context, id int64, patch ItemPatch) (*domain.Item, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin patch item tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items i WHERE i.id = $1 FOR UPDATE`, id)
	item, err := scanItemRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, itemNotFound(id)
		}
		return nil, fmt.Errorf("load item for patch: %w", err)
	}
	applyItemPatch(&item, patch)

	row = tx.QueryRow(ctx, `
		UPDATE items AS i
		SET
			name = $2,
			category = $3,
			unit = $4,
			purchase_price = $5,
			selling_price = $6,
			min_stock_level = $7,
			is_active = $8,
			updated_at = NOW()
		WHERE i.id = $1
		RETURNING `+itemColumns,
		id,
		item.Name,
		item.Category,
		item.Unit,
		item.PurchasePrice,
		item.SellingPrice,
		item.MinStockLevel,
		item.IsActive,
	)
	updated, err := scanItemRow(row)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit patch item tx: %w", err)
	}
	return &updated, nil
}

func (r *Repository) ApplyStockChange(ctx context.Context, change domain.StockChange) (domain.Item, domain.StockMovement, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Item{}, domain.StockMovement{}, fmt.Errorf("begin stock tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// The row lock serializes concurrent movements on the same item, so the
	// availability check and the write cannot interleave.
	row := tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items i WHERE i.id = $1 FOR UPDATE`, change.ItemID)
	item, err := scanItemRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Item{}, domain.StockMovement{}, itemNotFound(change.ItemID)
		}
		return domain.Item{}, domain.StockMovement{}, fmt.Errorf("lock item %d: %w", change.ItemID, err)
	}

	after, err := nextStock(item, change)
	if err != nil {
		return domain.Item{}, domain.StockMovement{}, err
	}

	row = tx.QueryRow(ctx, `
		UPDATE items AS i
		SET current_stock = $2, updated_at = NOW()
		WHERE i.id = $1
		RETURNING `+itemColumns,
		item.ID, after,
	)
	updated, err := scanItemRow(row)
	if err != nil {
		return domain.Item{}, domain.StockMovement{}, fmt.Errorf("update stock for item %d: %w", item.ID, err)
	}

	movement := domain.StockMovement{
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
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO stock_movements (
			item_id,
			ref_type,
			ref_id,
			ref_number,
			line_no,
			before_stock,
			after_stock,
			quantity,
			movement_type,
			notes,
			created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`,
		movement.ItemID,
		movement.RefType,
		movement.RefID,
		movement.RefNumber,
		movement.LineNo,
		movement.BeforeStock,
		movement.AfterStock,
		movement.Quantity,
		movement.MovementType,
		movement.Notes,
		movement.CreatedBy,
	).Scan(&movement.ID, &movement.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.Item{}, domain.StockMovement{}, domain.Validationf(
				"movement for %s %d line %d already recorded", change.RefType, change.RefID, change.LineNo)
		}
		return domain.Item{}, domain.StockMovement{}, fmt.Errorf("insert stock movement: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Item{}, domain.StockMovement{}, fmt.Errorf("commit stock tx: %w", err)
	}
	return updated, movement, nil
}

func (r *Repository) HasMovement(ctx context.Context, refType domain.RefType, refID int64, lineNo int) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM stock_movements
			WHERE ref_type = $1 AND ref_id = $2 AND line_no = $3
		)
	`, refType, refID, lineNo).Scan(&exists); err != nil {
		return false, fmt.Errorf("check movement %s %d/%d: %w", refType, refID, lineNo, err)
	}
	return exists, nil
}

func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]domain.StockMovement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+movementColumns+`
		FROM stock_movements m
		JOIN items i ON i.id = m.item_id
		WHERE ($1::bigint IS NULL OR m.item_id = $1)
			AND ($2 = '' OR m.ref_type = $2)
			AND ($3::bigint IS NULL OR m.ref_id = $3)
			AND ($4 = '' OR m.movement_type = $4)
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $5 OFFSET $6
	`,
		filter.ItemID,
		string(filter.RefType),
		filter.RefID,
		string(filter.MovementType),
		normalizeLimit(filter.Limit),
		normalizeOffset(filter.Offset),
	)
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	movements, err := pgx.CollectRows(rows, scanMovement)
	if err != nil {
		return nil, fmt.Errorf("collect stock movements: %w", err)
	}
	return movements, nil
}

func (r *Repository) ReconcileAlert(ctx context.Context, itemID int64, at time.Time) (AlertOutcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return AlertOutcome{}, fmt.Errorf("begin reconcile alert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Holding the item row keeps movements out until the alert write commits.
	row := tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items i WHERE i.id = $1 FOR UPDATE`, itemID)
	item, err := scanItemRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AlertOutcome{}, itemNotFound(itemID)
		}
		return AlertOutcome{}, fmt.Errorf("lock item %d: %w", itemID, err)
	}

	out := AlertOutcome{Item: item}
	want, low := domain.AlertFor(item)
	if !low {
		cmd, err := tx.Exec(ctx, `
			UPDATE alerts
			SET is_resolved = TRUE, resolved_at = $2
			WHERE item_id = $1 AND NOT is_resolved
		`, itemID, at)
		if err != nil {
			return AlertOutcome{}, fmt.Errorf("resolve open alert for item %d: %w", itemID, err)
		}
		out.Resolved = cmd.RowsAffected() > 0
	} else {
		err := tx.QueryRow(ctx, `
			INSERT INTO alerts (item_id, message, severity)
			VALUES ($1, $2, $3)
			ON CONFLICT (item_id) WHERE NOT is_resolved DO NOTHING
			RETURNING id, created_at
		`, itemID, want.Message, want.Severity).Scan(&want.ID, &want.CreatedAt)
		switch {
		case err == nil:
			out.Raised = &want
		case errors.Is(err, pgx.ErrNoRows):
			// already open
		default:
			return AlertOutcome{}, fmt.Errorf("create alert for item %d: %w", itemID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return AlertOutcome{}, fmt.Errorf("commit reconcile alert tx: %w", err)
	}
	return out, nil
}

func (r *Repository) ResolveAlert(ctx context.Context, id, resolvedBy int64, at time.Time) (domain.Alert, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("begin resolve alert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var resolved bool
	if err := tx.QueryRow(ctx, `SELECT is_resolved FROM alerts WHERE id = $1 FOR UPDATE`, id).Scan(&resolved); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Alert{}, alertNotFound(id)
		}
		return domain.Alert{}, fmt.Errorf("lock alert %d: %w", id, err)
	}
	if resolved {
		return domain.Alert{}, domain.NewError(domain.CodeAlreadyResolved, "Alert is already resolved")
	}

	if _, err := tx.Exec(ctx, `
		UPDATE alerts
		SET is_resolved = TRUE, resolved_at = $2, resolved_by = $3
		WHERE id = $1
	`, id, at, resolvedBy); err != nil {
		return domain.Alert{}, fmt.Errorf("resolve alert %d: %w", id, err)
	}
	alert, err := scanAlertRow(tx.QueryRow(ctx, `
		SELECT `+alertColumns+`
		FROM alerts a
		JOIN items i ON i.id = a.item_id
		WHERE a.id = $1
	`, id))
	if err != nil {
		return domain.Alert{}, fmt.Errorf("reload alert %d: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Alert{}, fmt.Errorf("commit resolve alert tx: %w", err)
	}
	return alert, nil
}

func (r *Repository) GetAlert(ctx context.Context, id int64) (*domain.Alert, error) {
	alert, err := scanAlertRow(r.pool.QueryRow(ctx, `
		SELECT `+alertColumns+`
		FROM alerts a
		JOIN items i ON i.id = a.item_id
		WHERE a.id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, alertNotFound(id)
		}
		return nil, fmt.Errorf("get alert %d: %w", id, err)
	}
	return &alert, nil
}

func (r *Repository) ListAlerts(ctx context.Context, filter AlertFilter) ([]domain.Alert, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+alertColumns+`
		FROM alerts a
		JOIN items i ON i.id = a.item_id
		WHERE ($1::bigint IS NULL OR a.item_id = $1)
			AND ($2 = '' OR a.severity = $2)
			AND ($3::boolean IS NULL OR a.is_resolved = $3)
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $4 OFFSET $5
	`,
		filter.ItemID,
		string(filter.Severity),
		filter.IsResolved,
		normalizeLimit(filter.Limit),
		normalizeOffset(filter.Offset),
	)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	alerts, err := pgx.CollectRows(rows, scanAlert)
	if err != nil {
		return nil, fmt.Errorf("collect alerts: %w", err)
	}
	return alerts, nil
}

func (r *Repository) DeleteAlert(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, "DELETE FROM alerts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete alert %d: %w", id, err)
	}
	if cmd.RowsAffected() == 0 {
		return alertNotFound(id)
	}
	return nil
}

func (r *Repository) CountOpenAlerts(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)::int FROM alerts WHERE NOT is_resolved`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count open alerts: %w", err)
	}
	return count, nil
}

func (r *Repository) CreateDocument(ctx context.Context, doc domain.Document) (domain.Document, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Document{}, fmt.Errorf("begin create document tx: %w", err)
	}
	defer tx.Rollback(ctx)

	doc.Number = strings.TrimSpace(doc.Number)
	if doc.Number == "" {
		seq, err := nextSequence(ctx, tx, "documents", "number", doc.Kind.Prefix(), string(doc.Kind))
		if err != nil {
			return domain.Document{}, err
		}
		doc.Number = domain.FormatNumber(doc.Kind.Prefix(), seq)
	}
	doc.Recalculate()

	if err := tx.QueryRow(ctx, `
		INSERT INTO documents (
			kind,
			number,
			status,
			party_id,
			party_name,
			source_id,
			grand_total,
			total_returned,
			adjusted_total,
			paid_amount,
			payment_status,
			reason,
			notes,
			completed_at,
			created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at
	`,
		doc.Kind,
		doc.Number,
		doc.Status,
		doc.PartyID,
		doc.PartyName,
		doc.SourceID,
		doc.GrandTotal,
		doc.TotalReturned,
		doc.AdjustedTotal,
		doc.PaidAmount,
		doc.PaymentStatus,
		doc.Reason,
		doc.Notes,
		doc.CompletedAt,
		doc.CreatedBy,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.Document{}, domain.Validationf("%s number %s already exists", doc.Kind.Label(), doc.Number)
		}
		return domain.Document{}, fmt.Errorf("insert %s: %w", doc.Kind, err)
	}

	if err := insertLinesTx(ctx, tx, doc.ID, doc.Lines); err != nil {
		return domain.Document{}, err
	}
	for _, p := range doc.Payments {
		if err := insertPaymentTx(ctx, tx, doc.ID, p); err != nil {
			return domain.Document{}, err
		}
	}

	created, err := loadDocumentTx(ctx, tx, doc.Kind, doc.ID, false)
	if err != nil {
		return domain.Document{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Document{}, fmt.Errorf("commit create document tx: %w", err)
	}
	return created, nil
}

func (r *Repository) GetDocument(ctx context.Context, kind domain.DocumentKind, id int64) (*domain.Document, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin get document tx: %w", err)
	}
	defer tx.Rollback(ctx)

	doc, err := loadDocumentTx(ctx, tx, kind, id, false)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit get document tx: %w", err)
	}
	return &doc, nil
}

func (r *Repository) ListDocuments(ctx context.Context, filter DocumentFilter) ([]domain.Document, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+documentColumns+`
		FROM documents d
		WHERE d.kind = $1
			AND ($2 = '' OR d.status = $2)
			AND ($3 = '' OR d.party_name ILIKE '%' || $3 || '%' OR d.number ILIKE '%' || $3 || '%')
		ORDER BY d.created_at DESC, d.id DESC
		LIMIT $4 OFFSET $5
	`,
		filter.Kind,
		string(filter.Status),
		strings.TrimSpace(filter.Search),
		normalizeLimit(filter.Limit),
		normalizeOffset(filter.Offset),
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	docs, err := pgx.CollectRows(rows, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("collect documents: %w", err)
	}
	if len(docs) == 0 {
		return docs, nil
	}

	index := make(map[int64]int, len(docs))
	ids := make([]int64, 0, len(docs))
	for i := range docs {
		index[docs[i].ID] = i
		ids = append(ids, docs[i].ID)
		docs[i].Lines = []domain.LineItem{}
		docs[i].Payments = []domain.Payment{}
	}
	lineRows, err := r.pool.Query(ctx, `
		SELECT l.document_id, l.item_id, i.name, l.quantity, l.rate::text, l.amount::text
		FROM document_lines l
		JOIN items i ON i.id = l.item_id
		WHERE l.document_id = ANY($1)
		ORDER BY l.document_id, l.line_no
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("list document lines: %w", err)
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var (
			docID int64
			line  domain.LineItem
		)
		if err := lineRows.Scan(&docID, &line.ItemID, &line.ItemName, &line.Quantity, &line.Rate, &line.Amount); err != nil {
			return nil, fmt.Errorf("scan document line: %w", err)
		}
		i := index[docID]
		docs[i].Lines = append(docs[i].Lines, line)
	}
	if err := lineRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document lines: %w", err)
	}

	paymentRows, err := r.pool.Query(ctx, `
		SELECT document_id, id::text, amount::text, payment_date, payment_method, reference, notes, recorded_by, recorded_at
		FROM document_payments
		WHERE document_id = ANY($1)
		ORDER BY document_id, recorded_at, seq
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("list document payments: %w", err)
	}
	defer paymentRows.Close()
	for paymentRows.Next() {
		var (
			docID int64
			p     domain.Payment
		)
		if err := paymentRows.Scan(&docID, &p.ID, &p.Amount, &p.Date, &p.Method, &p.Reference, &p.Notes, &p.RecordedBy, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan document payment: %w", err)
		}
		i := index[docID]
		docs[i].Payments = append(docs[i].Payments, p)
	}
	if err := paymentRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document payments: %w", err)
	}
	return docs, nil
}

func (r *Repository) UpdateDocument(
	ctx context.Context,
	kind domain.DocumentKind,
	id int64,
	mutate func(*domain.Document) error,
) (domain.Document, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Document{}, fmt.Errorf("begin update document tx: %w", err)
	}
	defer tx.Rollback(ctx)

	stored, err := loadDocumentTx(ctx, tx, kind, id, true)
	if err != nil {
		return domain.Document{}, err
	}
	doc := cloneDocument(stored)
	if err := mutate(&doc); err != nil {
		return domain.Document{}, err
	}
	doc.ID, doc.Kind, doc.Number = stored.ID, stored.Kind, stored.Number
	var appended []domain.Payment
	if len(doc.Payments) > len(stored.Payments) {
		appended = doc.Payments[len(stored.Payments):]
	}
	doc.Payments = append(append([]domain.Payment{}, stored.Payments...), appended...)
	doc.Recalculate()

	if _, err := tx.Exec(ctx, `
		UPDATE documents
		SET
			status = $2,
			party_id = $3,
			party_name = $4,
			source_id = $5,
			grand_total = $6,
			total_returned = $7,
			adjusted_total = $8,
			paid_amount = $9,
			payment_status = $10,
			reason = $11,
			notes = $12,
			completed_at = $13,
			updated_at = NOW()
		WHERE id = $1
	`,
		id,
		doc.Status,
		doc.PartyID,
		doc.PartyName,
		doc.SourceID,
		doc.GrandTotal,
		doc.TotalReturned,
		doc.AdjustedTotal,
		doc.PaidAmount,
		doc.PaymentStatus,
		doc.Reason,
		doc.Notes,
		doc.CompletedAt,
	); err != nil {
		return domain.Document{}, fmt.Errorf("update %s %d: %w", kind, id, err)
	}

	if !linesEqual(stored.Lines, doc.Lines) {
		if _, err := tx.Exec(ctx, `DELETE FROM document_lines WHERE document_id = $1`, id); err != nil {
			return domain.Document{}, fmt.Errorf("clear lines of %s %d: %w", kind, id, err)
		}
		if err := insertLinesTx(ctx, tx, id, doc.Lines); err != nil {
			return domain.Document{}, err
		}
	}
	for _, p := range appended {
		if err := insertPaymentTx(ctx, tx, id, p); err != nil {
			return domain.Document{}, err
		}
	}

	updated, err := loadDocumentTx(ctx, tx, kind, id, false)
	if err != nil {
		return domain.Document{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Document{}, fmt.Errorf("commit update document tx: %w", err)
	}
	return updated, nil
}

func (r *Repository) DeleteDocument(
	ctx context.Context,
	kind domain.DocumentKind,
	id int64,
	check func(domain.Document) error,
) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete document tx: %w", err)
	}
	defer tx.Rollback(ctx)

	doc, err := loadDocumentTx(ctx, tx, kind, id, true)
	if err != nil {
		return err
	}
	if check != nil {
		if err := check(doc); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete %s %d: %w", kind, id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete document tx: %w", err)
	}
	return nil
}

func loadDocumentTx(ctx context.Context, tx pgx.Tx, kind domain.DocumentKind, id int64, forUpdate bool) (domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents d WHERE d.id = $1 AND d.kind = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	doc, err := scanDocumentRow(tx.QueryRow(ctx, query, id, kind))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Document{}, documentNotFound(kind, id)
		}
		return domain.Document{}, fmt.Errorf("load %s %d: %w", kind, id, err)
	}

	rows, err := tx.Query(ctx, `
		SELECT l.item_id, i.name, l.quantity, l.rate::text, l.amount::text
		FROM document_lines l
		JOIN items i ON i.id = l.item_id
		WHERE l.document_id = $1
		ORDER BY l.line_no
	`, id)
	if err != nil {
		return domain.Document{}, fmt.Errorf("load lines of %s %d: %w", kind, id, err)
	}
	doc.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.LineItem, error) {
		var line domain.LineItem
		err := row.Scan(&line.ItemID, &line.ItemName, &line.Quantity, &line.Rate, &line.Amount)
		return line, err
	})
	if err != nil {
		return domain.Document{}, fmt.Errorf("collect lines of %s %d: %w", kind, id, err)
	}

	rows, err = tx.Query(ctx, `
		SELECT id::text, amount::text, payment_date, payment_method, reference, notes, recorded_by, recorded_at
		FROM document_payments
		WHERE document_id = $1
		ORDER BY recorded_at, seq
	`, id)
	if err != nil {
		return domain.Document{}, fmt.Errorf("load payments of %s %d: %w", kind, id, err)
	}
	doc.Payments, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Payment, error) {
		var p domain.Payment
		err := row.Scan(&p.ID, &p.Amount, &p.Date, &p.Method, &p.Reference, &p.Notes, &p.RecordedBy, &p.RecordedAt)
		return p, err
	})
	if err != nil {
		return domain.Document{}, fmt.Errorf("collect payments of %s %d: %w", kind, id, err)
	}
	return doc, nil
}

func insertLinesTx(ctx context.Context, tx pgx.Tx, documentID int64, lines []domain.LineItem) error {
	for i, line := range lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO document_lines (document_id, line_no, item_id, quantity, rate, amount)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, documentID, i+1, line.ItemID, line.Quantity, line.Rate, line.Amount); err != nil {
			if isForeignKeyViolation(err) {
				return itemNotFound(line.ItemID)
			}
			return fmt.Errorf("insert line %d of document %d: %w", i+1, documentID, err)
		}
	}
	return nil
}

func insertPaymentTx(ctx context.Context, tx pgx.Tx, documentID int64, p domain.Payment) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO document_payments (
			id,
			document_id,
			amount,
			payment_date,
			payment_method,
			reference,
			notes,
			recorded_by,
			recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, documentID, p.Amount, p.Date, p.Method, p.Reference, p.Notes, p.RecordedBy, p.RecordedAt); err != nil {
		return fmt.Errorf("insert payment for document %d: %w", documentID, err)
	}
	return nil
}

// nextSequence returns highest existing number + 1 for the prefix. The
// transaction-scoped advisory lock serializes concurrent generators until
// the caller commits its insert.
func nextSequence(ctx context.Context, tx pgx.Tx, table, column, prefix, kind string) (int64, error) {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "number:"+table+":"+prefix); err != nil {
		return 0, fmt.Errorf("lock %s numbering: %w", prefix, err)
	}

	query := fmt.Sprintf(`
		SELECT COALESCE(MAX(SUBSTRING(%[1]s FROM $1::int + 1)::bigint), 0)
		FROM %[2]s
		WHERE %[1]s ~ ('^' || $2 || '[0-9]+$')
	`, column, table)
	args := []any{len(prefix), prefix}
	if kind != "" {
		query += ` AND kind = $3`
		args = append(args, kind)
	}

	var highest int64
	if err := tx.QueryRow(ctx, query, args...).Scan(&highest); err != nil {
		return 0, fmt.Errorf("read highest %s number: %w", prefix, err)
	}
	return highest + 1, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func scanItem(rows pgx.CollectableRow) (domain.Item, error) {
	return scanItemRow(rows)
}

func scanItemRow(row pgx.Row) (domain.Item, error) {
	var item domain.Item
	if err := row.Scan(
		&item.ID,
		&item.SKU,
		&item.Name,
		&item.Category,
		&item.Unit,
		&item.PurchasePrice,
		&item.SellingPrice,
		&item.CurrentStock,
		&item.MinStockLevel,
		&item.IsActive,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return domain.Item{}, err
	}
	return item, nil
}

func scanMovement(row pgx.CollectableRow) (domain.StockMovement, error) {
	var mv domain.StockMovement
	err := row.Scan(
		&mv.ID,
		&mv.ItemID,
		&mv.ItemName,
		&mv.RefType,
		&mv.RefID,
		&mv.RefNumber,
		&mv.LineNo,
		&mv.BeforeStock,
		&mv.AfterStock,
		&mv.Quantity,
		&mv.MovementType,
		&mv.Notes,
		&mv.CreatedBy,
		&mv.CreatedAt,
	)
	return mv, err
}

func scanAlert(rows pgx.CollectableRow) (domain.Alert, error) {
	return scanAlertRow(rows)
}

func scanAlertRow(row pgx.Row) (domain.Alert, error) {
	var a domain.Alert
	err := row.Scan(
		&a.ID,
		&a.ItemID,
		&a.ItemName,
		&a.Message,
		&a.Severity,
		&a.IsResolved,
		&a.ResolvedAt,
		&a.ResolvedBy,
		&a.CreatedAt,
	)
	return a, err
}

func scanDocument(rows pgx.CollectableRow) (domain.Document, error) {
	return scanDocumentRow(rows)
}

func scanDocumentRow(row pgx.Row) (domain.Document, error) {
	var doc domain.Document
	err := row.Scan(
		&doc.ID,
		&doc.Kind,
		&doc.Number,
		&doc.Status,
		&doc.PartyID,
		&doc.PartyName,
		&doc.SourceID,
		&doc.GrandTotal,
		&doc.TotalReturned,
		&doc.AdjustedTotal,
		&doc.PaidAmount,
		&doc.PaymentStatus,
		&doc.Reason,
		&doc.Notes,
		&doc.CompletedAt,
		&doc.CreatedBy,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	return doc, err
}
