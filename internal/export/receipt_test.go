package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"kopiadmin/backend/internal/domain"
)

func TestReceiptXLSXWritesLines(t *testing.T) {
	at := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	detail := domain.ReceiptDetail{
		Receipt: domain.ReceiptSummary{ReceiptID: "rcp-1", Type: domain.TransactionOut, CreatedAt: at, TotalLines: 2, TotalQty: 7, CreatedBy: "admin"},
		Lines: []domain.ReceiptLine{
			{TransactionID: "itx-1", ProductID: "prod-gayo-250", ProductName: "Arabica Gayo 250g", Direction: domain.DirectionDecrease, RequestedQuantity: 5, AppliedQuantity: 5, Delta: -5, InputText: "-", CreatedAt: at},
			{TransactionID: "itx-2", ProductID: "prod-milk", ProductName: "Fresh Milk", Direction: domain.DirectionDecrease, RequestedQuantity: 4, AppliedQuantity: 2, Delta: -2, InputText: "500 ML", CreatedAt: at},
		},
	}

	raw, err := ReceiptXLSX(detail)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{receiptSheet}, f.GetSheetList())

	receiptID, err := f.GetCellValue(receiptSheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "rcp-1", receiptID)

	rows, err := f.GetRows(receiptSheet)
	require.NoError(t, err)
	last := rows[len(rows)-1]
	assert.Equal(t, "Fresh Milk", last[2])
	assert.Equal(t, "2", last[5])
	assert.Equal(t, "500 ML", last[7])

	assert.Equal(t, "receipt-rcp-1.xlsx", ReceiptFileName("rcp-1"))
}
