package restock

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kopiadmin/backend/internal/domain"
)

func product(id string, stock int, price int64, active bool) domain.Product {
	return domain.Product{ID: id, Name: id, StockQuantity: stock, Price: decimal.NewFromInt(price), Active: active}
}

func out(productID string, qty int) domain.InventoryTransaction {
	return domain.InventoryTransaction{ProductID: productID, Type: domain.TransactionOut, Direction: domain.DirectionDecrease, AppliedQuantity: qty}
}

func TestSuggestRanksFastMoverFirst(t *testing.T) {
	engine := NewEngine(14)
	products := []domain.Product{
		product("prod-fast", 10, 50000, true),
		product("prod-idle", 200, 50000, true),
	}
	txns := []domain.InventoryTransaction{out("prod-fast", 70)}

	got := engine.Suggest(products, txns, 7, 5)
	require.Len(t, got, 1)
	assert.Equal(t, "prod-fast", got[0].ProductID)
	assert.Equal(t, 10.0, got[0].DailyOutbound)
	assert.Equal(t, 1.0, got[0].CoverDays)
	assert.Equal(t, 130, got[0].SuggestedQty)
	assert.Equal(t, ReasonFastMoving, got[0].ReasonCode)
}

func TestSuggestFlagsBelowThresholdWithoutSales(t *testing.T) {
	engine := NewEngine(14)
	got := engine.Suggest([]domain.Product{product("prod-low", 2, 10000, true)}, nil, 7, 10)

	require.Len(t, got, 1)
	assert.Equal(t, ReasonBelowThreshold, got[0].ReasonCode)
	assert.Equal(t, 9, got[0].SuggestedQty)
	assert.Equal(t, -1.0, got[0].CoverDays)
}

func TestSuggestSkipsInactiveAndIgnoresIncreases(t *testing.T) {
	engine := NewEngine(14)
	products := []domain.Product{product("prod-archived", 0, 10000, false), product("prod-full", 100, 10000, true)}
	txns := []domain.InventoryTransaction{
		{ProductID: "prod-full", Type: domain.TransactionIn, Direction: domain.DirectionIncrease, AppliedQuantity: 500},
	}

	assert.Empty(t, engine.Suggest(products, txns, 7, 10))
}
