// Package export renders receipts into downloadable spreadsheets.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"kopiadmin/backend/internal/domain"
)

const (
	receiptSheet = "Receipt"
	XLSXMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var receiptHeaders = []string{"No", "Product ID", "Product", "Direction", "Requested", "Applied", "Delta", "Measure", "Note", "Created At"}

// ReceiptXLSX writes the receipt header block followed by one row per line.
func ReceiptXLSX(detail domain.ReceiptDetail) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(receiptSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	summary := detail.Receipt
	header := [][2]any{
		{"Receipt", summary.ReceiptID},
		{"Type", string(summary.Type)},
		{"Created At", summary.CreatedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Created By", summary.CreatedBy},
		{"Total Lines", summary.TotalLines},
		{"Total Qty", summary.TotalQty},
		{"Note", summary.Note},
	}
	for i, kv := range header {
		row := i + 1
		if err := f.SetCellValue(receiptSheet, fmt.Sprintf("A%d", row), kv[0]); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(receiptSheet, fmt.Sprintf("B%d", row), kv[1]); err != nil {
			return nil, err
		}
	}

	tableStart := len(header) + 2
	for i, title := range receiptHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, tableStart)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(receiptSheet, cell, title); err != nil {
			return nil, err
		}
	}

	for i, line := range detail.Lines {
		values := []any{
			i + 1,
			line.ProductID,
			line.ProductName,
			string(line.Direction),
			line.RequestedQuantity,
			line.AppliedQuantity,
			line.Delta,
			line.InputText,
			line.Note,
			line.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, tableStart+1+i)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(receiptSheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

func ReceiptFileName(receiptID string) string {
	return fmt.Sprintf("receipt-%s.xlsx", receiptID)
}
