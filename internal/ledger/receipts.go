package ledger

import (
	"slices"
	"strings"

	"kopiadmin/backend/internal/domain"
)

type receiptKey struct {
	id  string
	typ domain.TransactionType
}

// GroupReceipts folds transactions into one summary per (receipt_id, type),
// newest first. Transactions without a receipt_id are skipped.
func GroupReceipts(txns []domain.InventoryTransaction) []domain.ReceiptSummary {
	index := map[receiptKey]int{}
	out := make([]domain.ReceiptSummary, 0)

	for _, txn := range txns {
		if strings.TrimSpace(txn.ReceiptID) == "" {
			continue
		}
		key := receiptKey{id: txn.ReceiptID, typ: txn.Type}
		pos, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, domain.ReceiptSummary{
				ReceiptID: txn.ReceiptID,
				Type:      txn.Type,
				CreatedAt: txn.CreatedAt,
				Note:      txn.Note,
				CreatedBy: txn.CreatedBy,
			})
			pos = len(out) - 1
		}

		summary := &out[pos]
		summary.TotalLines++
		summary.TotalQty += txn.AppliedQuantity
		if txn.CreatedAt.Before(summary.CreatedAt) {
			summary.CreatedAt = txn.CreatedAt
			summary.Note = txn.Note
			summary.CreatedBy = txn.CreatedBy
		}
	}

	slices.SortFunc(out, func(a, b domain.ReceiptSummary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ReceiptID, a.ReceiptID)
	})
	return out
}

// ReceiptLines returns the lines of receiptID ordered by created_at then id.
// An unknown receipt yields an empty, non-nil slice.
func ReceiptLines(txns []domain.InventoryTransaction, receiptID string) []domain.ReceiptLine {
	matched := make([]domain.InventoryTransaction, 0)
	for _, txn := range txns {
		if txn.ReceiptID == receiptID && receiptID != "" {
			matched = append(matched, txn)
		}
	}
	slices.SortFunc(matched, func(a, b domain.InventoryTransaction) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	lines := make([]domain.ReceiptLine, 0, len(matched))
	for _, txn := range matched {
		lines = append(lines, domain.ReceiptLine{
			TransactionID:     txn.ID,
			ProductID:         txn.ProductID,
			ProductName:       txn.ProductName,
			Type:              txn.Type,
			Direction:         txn.Direction,
			RequestedQuantity: txn.RequestedQuantity,
			AppliedQuantity:   txn.AppliedQuantity,
			Delta:             txn.Delta,
			InputText:         InputText(txn.InputValue, txn.InputUnit),
			Note:              txn.Note,
			CreatedAt:         txn.CreatedAt,
		})
	}
	return lines
}
