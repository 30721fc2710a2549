package httpapi

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"kopiadmin/backend/internal/domain"
	"kopiadmin/backend/internal/export"
	"kopiadmin/backend/internal/store"
)

// handleInventory books one receipt of txType. A request with a single line
// is the single-operation form.
func (a *API) handleInventory(txType domain.TransactionType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}

		var req domain.InventoryBatchRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		resp, err := a.service.RecordBatch(r.Context(), txType, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func (a *API) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	filter := domain.TransactionFilter{
		ProductID: strings.TrimSpace(query.Get("product_id")),
		Type:      domain.TransactionType(strings.ToUpper(strings.TrimSpace(query.Get("type")))),
		ReceiptID: strings.TrimSpace(query.Get("receipt_id")),
		Limit:     parsePositiveLimit(query.Get("limit"), 100, 500),
	}
	var err error
	if filter.From, err = parseTimeParam(query.Get("from"), false); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if filter.To, err = parseTimeParam(query.Get("to"), true); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	txns, err := a.service.ListTransactions(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

// parseTimeParam accepts RFC 3339 or a bare date. A bare date used as an
// upper bound covers the whole day.
func parseTimeParam(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid time %q", store.ErrInvalidTransaction, raw)
	}
	if endOfDay {
		t = t.Add(24 * time.Hour)
	}
	return &t, nil
}

func (a *API) handleReceipts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	receipts, err := a.service.ListReceipts(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if limit := parsePositiveLimit(r.URL.Query().Get("limit"), len(receipts), 0); limit < len(receipts) {
		receipts = receipts[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipts": receipts})
}

// handleReceipt returns the receipt lines. An unknown id yields an empty
// list rather than a 404.
func (a *API) handleReceipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	receiptID := r.PathValue("id")
	lines, err := a.service.GetReceiptLines(r.Context(), receiptID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipt_id": receiptID, "lines": lines})
}

func (a *API) handleReceiptPrint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	printable, err := a.service.BuildReceiptPrint(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, printable)
}

func (a *API) handleReceiptPrintHTML(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	detail, err := a.service.GetReceipt(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(receiptToPrintableHTML(detail)))
}

func (a *API) handleReceiptExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	raw, fileName, err := a.service.ExportReceiptXLSX(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", export.XLSXMimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	_, _ = w.Write(raw)
}

// receiptHTMLTmpl escapes every field, notes and product names included.
var receiptHTMLTmpl = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"stamp": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04") },
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Receipt {{.Receipt.ReceiptID}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    td.num { text-align: right; }
    @media print { button { display: none; } }
  </style>
</head>
<body>
  <h2>Stock Receipt {{.Receipt.ReceiptID}}</h2>
  <p>Type: {{.Receipt.Type}} | Date: {{stamp .Receipt.CreatedAt}}{{if .Receipt.CreatedBy}} | By: {{.Receipt.CreatedBy}}{{end}}</p>
  {{if .Receipt.Note}}<p>Note: {{.Receipt.Note}}</p>{{end}}
  <table>
    <thead><tr><th>Product</th><th>Direction</th><th>Requested</th><th>Applied</th><th>Delta</th><th>Measure</th></tr></thead>
    <tbody>{{range .Lines}}<tr><td>{{.ProductName}}</td><td>{{.Direction}}</td><td class="num">{{.RequestedQuantity}}</td><td class="num">{{.AppliedQuantity}}</td><td class="num">{{.Delta}}</td><td>{{.InputText}}</td></tr>{{end}}</tbody>
  </table>
  <p>Lines: {{.Receipt.TotalLines}} | Total applied: {{.Receipt.TotalQty}}</p>
  <button onclick="window.print()">Print</button>
</body>
</html>
`))

func receiptToPrintableHTML(detail domain.ReceiptDetail) string {
	var buf bytes.Buffer
	if err := receiptHTMLTmpl.Execute(&buf, detail); err != nil {
		log.Printf("[httpapi] WARN: render receipt %s: %v", detail.Receipt.ReceiptID, err)
		return "<!doctype html><html><body><p>Receipt rendering error.</p></body></html>"
	}
	return buf.String()
}
