package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kopiadmin/backend/internal/cache"
	"kopiadmin/backend/internal/domain"
	"kopiadmin/backend/internal/export"
	"kopiadmin/backend/internal/ledger"
	"kopiadmin/backend/internal/store"
	"kopiadmin/backend/internal/xid"
)

const maxBatchLines = 200

// RecordIncrease books an IN of quantity units and returns the transaction id.
func (s *Service) RecordIncrease(ctx context.Context, productID string, quantity int, note string) (string, error) {
	return s.recordSingle(ctx, domain.StockMovement{
		ProductID: productID,
		Type:      domain.TransactionIn,
		Quantity:  quantity,
		Note:      note,
	})
}

// RecordDecrease books an OUT. The applied quantity is clamped to the
// product's current stock; it never fails for insufficient stock.
func (s *Service) RecordDecrease(ctx context.Context, productID string, quantity int, note string) (string, error) {
	return s.recordSingle(ctx, domain.StockMovement{
		ProductID: productID,
		Type:      domain.TransactionOut,
		Quantity:  quantity,
		Note:      note,
	})
}

func (s *Service) RecordAdjust(ctx context.Context, productID string, direction domain.Direction, quantity int, note string) (string, error) {
	return s.recordSingle(ctx, domain.StockMovement{
		ProductID: productID,
		Type:      domain.TransactionAdjust,
		Direction: direction,
		Quantity:  quantity,
		Note:      note,
	})
}

func (s *Service) recordSingle(ctx context.Context, m domain.StockMovement) (string, error) {
	if m.Quantity <= 0 || m.Quantity > ledger.MaxQuantity {
		return "", fmt.Errorf("%w: %d", store.ErrInvalidQuantity, m.Quantity)
	}
	resp, err := s.record(ctx, m.Type, []domain.StockMovement{m})
	if err != nil {
		return "", err
	}
	return resp.Transactions[0].ID, nil
}

// RecordBatch books every line of req under one receipt, all or nothing.
func (s *Service) RecordBatch(ctx context.Context, txType domain.TransactionType, req domain.InventoryBatchRequest) (domain.InventoryBatchResponse, error) {
	if !txType.Valid() {
		return domain.InventoryBatchResponse{}, fmt.Errorf("%w: unknown type %q", store.ErrInvalidTransaction, txType)
	}
	if len(req.Lines) == 0 {
		return domain.InventoryBatchResponse{}, fmt.Errorf("%w: at least one line is required", store.ErrInvalidTransaction)
	}
	if len(req.Lines) > maxBatchLines {
		return domain.InventoryBatchResponse{}, fmt.Errorf("%w: at most %d lines per receipt", store.ErrInvalidTransaction, maxBatchLines)
	}

	note := strings.TrimSpace(req.Note)
	movements := make([]domain.StockMovement, 0, len(req.Lines))
	for i, line := range req.Lines {
		quantity, err := ledger.ParseQuantity(line.Quantity)
		if err != nil {
			return domain.InventoryBatchResponse{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		if line.InputValue.Valid && line.InputValue.Decimal.IsNegative() {
			return domain.InventoryBatchResponse{}, fmt.Errorf("%w: line %d: input_value must not be negative", store.ErrInvalidTransaction, i+1)
		}
		movements = append(movements, domain.StockMovement{
			ProductID:  strings.TrimSpace(line.ProductID),
			Type:       txType,
			Direction:  domain.Direction(strings.ToUpper(strings.TrimSpace(line.Direction))),
			Quantity:   quantity,
			Note:       note,
			InputValue: line.InputValue,
			InputUnit:  strings.ToUpper(strings.TrimSpace(line.InputUnit)),
		})
	}
	return s.record(ctx, txType, movements)
}

func (s *Service) record(ctx context.Context, txType domain.TransactionType, movements []domain.StockMovement) (resp domain.InventoryBatchResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "inventory.record", trace.WithAttributes(
		attribute.String("inventory.type", string(txType)),
		attribute.Int("inventory.lines", len(movements)),
	))
	defer func() { endSpan(span, err) }()

	createdBy := "system"
	if actor, ok := ActorFromContext(ctx); ok && actor.Username != "" {
		createdBy = actor.Username
	}
	batch := domain.MovementBatch{
		ReceiptID: xid.New("rcp"),
		CreatedBy: createdBy,
		CreatedAt: s.now(),
		Movements: movements,
	}
	span.SetAttributes(attribute.String("inventory.receipt_id", batch.ReceiptID))

	txns, err := s.repo.ApplyMovements(ctx, batch)
	if err != nil {
		return domain.InventoryBatchResponse{}, err
	}

	keys := cache.KeysFor(cache.EntityReceipt, batch.ReceiptID)
	applied := 0
	for _, txn := range txns {
		keys = append(keys, cache.ProductKey(txn.ProductID))
		applied += txn.AppliedQuantity
	}
	keys = append(keys, "products:list:*")
	s.invalidate(ctx, keys...)

	s.logAudit(ctx, "inventory_"+strings.ToLower(string(txType)), "receipt", batch.ReceiptID,
		fmt.Sprintf("lines=%d,applied=%d", len(txns), applied))

	return domain.InventoryBatchResponse{
		ReceiptID:    batch.ReceiptID,
		Type:         txType,
		Transactions: txns,
	}, nil
}

func (s *Service) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.InventoryTransaction, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, store.ErrInvalidTransaction
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, fmt.Errorf("%w: from must be before to", store.ErrInvalidTransaction)
	}
	if filter.Limit < 1 {
		filter.Limit = 100
	}
	if filter.Limit > 500 {
		filter.Limit = 500
	}
	return s.repo.ListInventoryTransactions(ctx, filter)
}

// ListReceipts returns one summary per receipt, newest first.
func (s *Service) ListReceipts(ctx context.Context) ([]domain.ReceiptSummary, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.list_receipts")
	var err error
	defer func() { endSpan(span, err) }()

	receipts, err := readThrough(ctx, s, cache.KeyReceiptList, func() ([]domain.ReceiptSummary, error) {
		txns, err := s.repo.ListInventoryTransactions(ctx, domain.TransactionFilter{})
		if err != nil {
			return nil, err
		}
		return ledger.GroupReceipts(txns), nil
	})
	return receipts, err
}

// GetReceiptLines returns the lines of receiptID; an unknown receipt yields
// an empty slice.
func (s *Service) GetReceiptLines(ctx context.Context, receiptID string) ([]domain.ReceiptLine, error) {
	receiptID = strings.TrimSpace(receiptID)
	if receiptID == "" {
		return []domain.ReceiptLine{}, nil
	}
	lines, err := readThrough(ctx, s, cache.ReceiptLinesKey(receiptID), func() ([]domain.ReceiptLine, error) {
		txns, err := s.repo.ListInventoryTransactions(ctx, domain.TransactionFilter{ReceiptID: receiptID})
		if err != nil {
			return nil, err
		}
		return ledger.ReceiptLines(txns, receiptID), nil
	})
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []domain.ReceiptLine{}
	}
	return lines, nil
}

// GetReceipt returns a receipt summary with its lines. Unlike
// GetReceiptLines, an unknown receipt is store.ErrNotFound.
func (s *Service) GetReceipt(ctx context.Context, receiptID string) (domain.ReceiptDetail, error) {
	receiptID = strings.TrimSpace(receiptID)
	if receiptID == "" {
		return domain.ReceiptDetail{}, store.ErrNotFound
	}
	txns, err := s.repo.ListInventoryTransactions(ctx, domain.TransactionFilter{ReceiptID: receiptID})
	if err != nil {
		return domain.ReceiptDetail{}, err
	}
	summaries := ledger.GroupReceipts(txns)
	if len(summaries) == 0 {
		return domain.ReceiptDetail{}, store.ErrNotFound
	}
	return domain.ReceiptDetail{Receipt: summaries[0], Lines: ledger.ReceiptLines(txns, receiptID)}, nil
}

// BuildReceiptPrint renders a receipt as an ESC/POS byte stream for a
// thermal printer plus a plain-text preview.
func (s *Service) BuildReceiptPrint(ctx context.Context, receiptID string) (domain.ReceiptPrintResponse, error) {
	detail, err := s.GetReceipt(ctx, receiptID)
	if err != nil {
		return domain.ReceiptPrintResponse{}, err
	}
	r := detail.Receipt

	lines := []string{
		"KopiAdmin Inventory",
		"========================",
		"Receipt: " + r.ReceiptID,
		"Type: " + string(r.Type),
		"Date: " + r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if r.CreatedBy != "" {
		lines = append(lines, "By: "+r.CreatedBy)
	}
	lines = append(lines, "------------------------")
	for _, line := range detail.Lines {
		lines = append(lines, line.ProductName)
		qty := fmt.Sprintf("  %+d (req %d)", line.Delta, line.RequestedQuantity)
		if line.InputText != "-" {
			qty += "  " + line.InputText
		}
		lines = append(lines, qty)
	}
	lines = append(lines,
		"------------------------",
		fmt.Sprintf("Lines : %d", r.TotalLines),
		fmt.Sprintf("Qty   : %d", r.TotalQty),
	)
	if r.Note != "" {
		lines = append(lines, "Note  : "+r.Note)
	}
	lines = append(lines, "========================", "")

	escpos := []byte{0x1b, 0x40}
	for _, line := range lines {
		escpos = append(escpos, []byte(line)...)
		escpos = append(escpos, '\n')
	}
	escpos = append(escpos, []byte{0x1d, 0x56, 0x41, 0x10}...)

	return domain.ReceiptPrintResponse{
		ReceiptID:    r.ReceiptID,
		EscposBase64: base64.StdEncoding.EncodeToString(escpos),
		PreviewText:  strings.Join(lines, "\n"),
		FileName:     fmt.Sprintf("receipt-%s.bin", r.ReceiptID),
	}, nil
}

func (s *Service) ExportReceiptXLSX(ctx context.Context, receiptID string) ([]byte, string, error) {
	detail, err := s.GetReceipt(ctx, receiptID)
	if err != nil {
		return nil, "", err
	}
	raw, err := export.ReceiptXLSX(detail)
	if err != nil {
		return nil, "", err
	}
	return raw, export.ReceiptFileName(detail.Receipt.ReceiptID), nil
}
