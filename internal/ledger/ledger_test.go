package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kopiadmin/backend/internal/domain"
	"kopiadmin/backend/internal/store"
)

func TestComputeIncrease(t *testing.T) {
	r, err := Compute(domain.DirectionIncrease, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, Result{Applied: 5, StockAfter: 15, Delta: 5}, r)
}

func TestComputeDecreaseClampsAtZero(t *testing.T) {
	cases := []struct {
		name      string
		current   int
		requested int
		want      Result
	}{
		{name: "within stock", current: 10, requested: 4, want: Result{Applied: 4, StockAfter: 6, Delta: -4}},
		{name: "exact stock", current: 3, requested: 3, want: Result{Applied: 3, StockAfter: 0, Delta: -3}},
		{name: "over stock", current: 3, requested: 8, want: Result{Applied: 3, StockAfter: 0, Delta: -3}},
		{name: "empty stock", current: 0, requested: 5, want: Result{Applied: 0, StockAfter: 0, Delta: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Compute(domain.DirectionDecrease, tc.current, tc.requested)
			require.NoError(t, err)
			assert.Equal(t, tc.want, r)
		})
	}
}

func TestComputeRejectsNonPositiveQuantity(t *testing.T) {
	for _, q := range []int{0, -1} {
		_, err := Compute(domain.DirectionIncrease, 5, q)
		require.ErrorIs(t, err, store.ErrInvalidQuantity)
	}
}

func TestComputeBoundsQuantityAndStock(t *testing.T) {
	_, err := Compute(domain.DirectionDecrease, 5, MaxQuantity+1)
	require.ErrorIs(t, err, store.ErrInvalidQuantity)

	r, err := Compute(domain.DirectionIncrease, MaxQuantity-10, 10)
	require.NoError(t, err)
	assert.Equal(t, MaxQuantity, r.StockAfter)

	_, err = Compute(domain.DirectionIncrease, MaxQuantity-10, 11)
	require.ErrorIs(t, err, store.ErrInvalidQuantity)

	_, err = NormalizeMovement(domain.StockMovement{ProductID: "p1", Type: domain.TransactionIn, Quantity: MaxQuantity + 1})
	require.ErrorIs(t, err, store.ErrInvalidQuantity)
}

func TestComputeRejectsUnknownDirection(t *testing.T) {
	_, err := Compute(domain.Direction("SIDEWAYS"), 5, 1)
	require.ErrorIs(t, err, store.ErrInvalidTransaction)
}

func TestParseQuantity(t *testing.T) {
	q, err := ParseQuantity(json.Number("12"))
	require.NoError(t, err)
	assert.Equal(t, 12, q)

	q, err = ParseQuantity(json.Number("3.0"))
	require.NoError(t, err)
	assert.Equal(t, 3, q)

	for _, raw := range []string{"", "0", "-2", "1.5", "abc", "1e12"} {
		_, err := ParseQuantity(json.Number(raw))
		assert.ErrorIs(t, err, store.ErrInvalidQuantity, raw)
	}
}

func TestNormalizeMovementPinsDirection(t *testing.T) {
	m, err := NormalizeMovement(domain.StockMovement{ProductID: " p1 ", Type: domain.TransactionIn, Direction: domain.DirectionDecrease, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, "p1", m.ProductID)
	assert.Equal(t, domain.DirectionIncrease, m.Direction)

	m, err = NormalizeMovement(domain.StockMovement{ProductID: "p1", Type: domain.TransactionOut, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionDecrease, m.Direction)

	m, err = NormalizeMovement(domain.StockMovement{ProductID: "p1", Type: domain.TransactionAdjust, Direction: "decrease", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionDecrease, m.Direction)

	_, err = NormalizeMovement(domain.StockMovement{ProductID: "p1", Type: domain.TransactionAdjust, Quantity: 1})
	require.ErrorIs(t, err, store.ErrInvalidTransaction)

	_, err = NormalizeMovement(domain.StockMovement{ProductID: "p1", Type: domain.TransactionIn})
	require.ErrorIs(t, err, store.ErrInvalidQuantity)
}

func TestInputText(t *testing.T) {
	assert.Equal(t, "500 ML", InputText(decimal.NewNullDecimal(decimal.NewFromInt(500)), "ML"))
	assert.Equal(t, "0.25 KG", InputText(decimal.NewNullDecimal(decimal.RequireFromString("0.25")), " KG "))
	assert.Equal(t, "-", InputText(decimal.NullDecimal{}, "ML"))
	assert.Equal(t, "-", InputText(decimal.NewNullDecimal(decimal.NewFromInt(500)), ""))
}

func TestGroupReceipts(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	txns := []domain.InventoryTransaction{
		{ID: "a2", ReceiptID: "rcp-a", Type: domain.TransactionIn, AppliedQuantity: 4, CreatedAt: base.Add(time.Second), Note: "late"},
		{ID: "a1", ReceiptID: "rcp-a", Type: domain.TransactionIn, AppliedQuantity: 6, CreatedAt: base, Note: "delivery"},
		{ID: "b1", ReceiptID: "rcp-b", Type: domain.TransactionOut, RequestedQuantity: 9, AppliedQuantity: 2, CreatedAt: base.Add(time.Hour)},
		{ID: "x1", Type: domain.TransactionIn, AppliedQuantity: 100, CreatedAt: base.Add(2 * time.Hour)},
	}

	got := GroupReceipts(txns)
	require.Len(t, got, 2)

	assert.Equal(t, "rcp-b", got[0].ReceiptID)
	assert.Equal(t, 1, got[0].TotalLines)
	assert.Equal(t, 2, got[0].TotalQty)

	assert.Equal(t, "rcp-a", got[1].ReceiptID)
	assert.Equal(t, domain.TransactionIn, got[1].Type)
	assert.Equal(t, 2, got[1].TotalLines)
	assert.Equal(t, 10, got[1].TotalQty)
	assert.True(t, got[1].CreatedAt.Equal(base))
	assert.Equal(t, "delivery", got[1].Note)
}

func TestGroupReceiptsEmpty(t *testing.T) {
	got := GroupReceipts(nil)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReceiptLinesOrderAndUnknown(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	txns := []domain.InventoryTransaction{
		{ID: "b", ReceiptID: "r1", ProductID: "p2", CreatedAt: base, InputValue: decimal.NewNullDecimal(decimal.NewFromInt(500)), InputUnit: "ML"},
		{ID: "a", ReceiptID: "r1", ProductID: "p1", CreatedAt: base},
		{ID: "c", ReceiptID: "r1", ProductID: "p3", CreatedAt: base.Add(-time.Minute)},
		{ID: "d", ReceiptID: "r2", ProductID: "p4", CreatedAt: base},
	}

	lines := ReceiptLines(txns, "r1")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{lines[0].TransactionID, lines[1].TransactionID, lines[2].TransactionID})
	assert.Equal(t, "500 ML", lines[2].InputText)
	assert.Equal(t, "-", lines[0].InputText)

	unknown := ReceiptLines(txns, "missing")
	require.NotNil(t, unknown)
	assert.Empty(t, unknown)
}
