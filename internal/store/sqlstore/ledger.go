package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"kopiadmin/backend/internal/domain"
	"kopiadmin/backend/internal/ledger"
	"kopiadmin/backend/internal/store"
)

const transactionColumns = `id, product_id, product_name, type, direction, requested_quantity, applied_quantity, delta,
	stock_before, stock_after, note, input_value, input_unit, receipt_id, created_by, created_at`

type lockedProduct struct {
	name  string
	stock int
}

// ApplyMovements locks every touched product row in id order, runs the clamp
// arithmetic against the locked stock and commits rows and ledger entries in
// one database transaction.
func (s *Store) ApplyMovements(ctx context.Context, batch domain.MovementBatch) ([]domain.InventoryTransaction, error) {
	if len(batch.Movements) == 0 {
		return nil, fmt.Errorf("%w: empty batch", store.ErrInvalidTransaction)
	}
	movements := make([]domain.StockMovement, 0, len(batch.Movements))
	productIDs := make([]string, 0, len(batch.Movements))
	for _, raw := range batch.Movements {
		m, err := ledger.NormalizeMovement(raw)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
		productIDs = append(productIDs, m.ProductID)
	}
	slices.Sort(productIDs)
	productIDs = slices.Compact(productIDs)
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	locked := make(map[string]lockedProduct, len(productIDs))
	for _, id := range productIDs {
		var row lockedProduct
		err := tx.QueryRowContext(ctx, s.q(`
			SELECT name, stock_quantity FROM products WHERE id = ? FOR UPDATE
		`), id).Scan(&row.name, &row.stock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: %s", store.ErrProductNotFound, id)
			}
			return nil, unavailable("lock product", err)
		}
		locked[id] = row
	}

	running := make(map[string]int, len(productIDs))
	entries := make([]domain.InventoryTransaction, 0, len(movements))
	for _, m := range movements {
		before, seen := running[m.ProductID]
		if !seen {
			before = locked[m.ProductID].stock
		}
		result, err := ledger.Compute(m.Direction, before, m.Quantity)
		if err != nil {
			return nil, err
		}
		running[m.ProductID] = result.StockAfter
		entries = append(entries, ledger.Entry(batch, m, locked[m.ProductID].name, before, result))
	}

	for _, id := range productIDs {
		if _, err := tx.ExecContext(ctx, s.q(`
			UPDATE products SET stock_quantity = ?, updated_at = ? WHERE id = ?
		`), running[id], batch.CreatedAt, id); err != nil {
			return nil, unavailable("update stock", err)
		}
	}

	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO inventory_transactions (`+transactionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`), entry.ID, entry.ProductID, entry.ProductName, string(entry.Type), string(entry.Direction),
			entry.RequestedQuantity, entry.AppliedQuantity, entry.Delta, entry.StockBefore, entry.StockAfter,
			entry.Note, entry.InputValue, nullIfEmpty(entry.InputUnit), nullIfEmpty(entry.ReceiptID),
			entry.CreatedBy, entry.CreatedAt); err != nil {
			return nil, unavailable("insert transaction", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit", err)
	}
	return entries, nil
}

func (s *Store) ListInventoryTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.InventoryTransaction, error) {
	where := make([]string, 0, 5)
	args := make([]any, 0, 5)
	if filter.ProductID != "" {
		where = append(where, "product_id = ?")
		args = append(args, filter.ProductID)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.ReceiptID != "" {
		where = append(where, "receipt_id = ?")
		args = append(args, filter.ReceiptID)
	}
	if filter.From != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		where = append(where, "created_at < ?")
		args = append(args, filter.To.UTC())
	}

	query := `SELECT ` + transactionColumns + ` FROM inventory_transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC` + limitClause(filter.Limit)

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, unavailable("list transactions", err)
	}
	defer rows.Close()

	result := make([]domain.InventoryTransaction, 0, 64)
	for rows.Next() {
		var txn domain.InventoryTransaction
		var txnType, direction string
		var inputUnit, receiptID sql.NullString
		if err := rows.Scan(&txn.ID, &txn.ProductID, &txn.ProductName, &txnType, &direction,
			&txn.RequestedQuantity, &txn.AppliedQuantity, &txn.Delta, &txn.StockBefore, &txn.StockAfter,
			&txn.Note, &txn.InputValue, &inputUnit, &receiptID, &txn.CreatedBy, &txn.CreatedAt); err != nil {
			return nil, unavailable("scan transaction", err)
		}
		txn.Type = domain.TransactionType(txnType)
		txn.Direction = domain.Direction(direction)
		txn.InputUnit = inputUnit.String
		txn.ReceiptID = receiptID.String
		txn.CreatedAt = txn.CreatedAt.UTC()
		result = append(result, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list transactions", err)
	}
	return result, nil
}
