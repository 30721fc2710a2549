// Package storetest runs the same ledger behaviour checks against any
// store.Repository implementation.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kopiadmin/backend/internal/domain"
	"kopiadmin/backend/internal/store"
)

// RunLedger exercises ApplyMovements and ListInventoryTransactions. Products
// are created with unique names so the suite can share a database.
func RunLedger(t *testing.T, repo store.Repository) {
	t.Helper()
	stamp := time.Now().UnixNano()

	newProduct := func(t *testing.T, stock int) domain.Product {
		t.Helper()
		ctx := context.Background()
		p, err := repo.CreateProduct(ctx, domain.Product{
			Name:  fmt.Sprintf("Ledger Suite %d %s", stamp, t.Name()),
			Price: decimal.NewFromInt(25000),
		})
		require.NoError(t, err)
		require.Equal(t, 0, p.StockQuantity)
		if stock > 0 {
			_, err := repo.ApplyMovements(ctx, domain.MovementBatch{
				ReceiptID: fmt.Sprintf("rcp-suite-%d-%s", stamp, p.ID),
				Movements: []domain.StockMovement{{ProductID: p.ID, Type: domain.TransactionIn, Quantity: stock}},
			})
			require.NoError(t, err)
		}
		return *p
	}

	stockOf := func(t *testing.T, id string) int {
		t.Helper()
		p, err := repo.GetProduct(context.Background(), id)
		require.NoError(t, err)
		return p.StockQuantity
	}

	transactionsOf := func(t *testing.T, id string) []domain.InventoryTransaction {
		t.Helper()
		txns, err := repo.ListInventoryTransactions(context.Background(), domain.TransactionFilter{ProductID: id})
		require.NoError(t, err)
		return txns
	}

	sumDeltas := func(t *testing.T, id string) int {
		t.Helper()
		txns, err := repo.ListInventoryTransactions(context.Background(), domain.TransactionFilter{ProductID: id})
		require.NoError(t, err)
		total := 0
		for _, txn := range txns {
			total += txn.Delta
		}
		return total
	}

	t.Run("decrease clamps at zero", func(t *testing.T) {
		p := newProduct(t, 4)
		txns, err := repo.ApplyMovements(context.Background(), domain.MovementBatch{
			ReceiptID: fmt.Sprintf("rcp-clamp-%d", stamp),
			CreatedBy: "suite",
			Movements: []domain.StockMovement{{ProductID: p.ID, Type: domain.TransactionOut, Quantity: 9, Note: "spill"}},
		})
		require.NoError(t, err)
		require.Len(t, txns, 1)
		assert.Equal(t, 9, txns[0].RequestedQuantity)
		assert.Equal(t, 4, txns[0].AppliedQuantity)
		assert.Equal(t, -4, txns[0].Delta)
		assert.Equal(t, 0, stockOf(t, p.ID))
		assert.Equal(t, stockOf(t, p.ID), sumDeltas(t, p.ID))
	})

	t.Run("adjust follows direction", func(t *testing.T) {
		p := newProduct(t, 2)
		txns, err := repo.ApplyMovements(context.Background(), domain.MovementBatch{
			ReceiptID: fmt.Sprintf("rcp-adjust-%d", stamp),
			Movements: []domain.StockMovement{
				{ProductID: p.ID, Type: domain.TransactionAdjust, Direction: domain.DirectionIncrease, Quantity: 5,
					InputValue: decimal.NewNullDecimal(decimal.NewFromInt(500)), InputUnit: "ML"},
				{ProductID: p.ID, Type: domain.TransactionAdjust, Direction: domain.DirectionDecrease, Quantity: 3},
			},
		})
		require.NoError(t, err)
		require.Len(t, txns, 2)
		assert.Equal(t, 5, txns[0].Delta)
		assert.Equal(t, -3, txns[1].Delta)
		assert.Equal(t, 7, txns[1].StockBefore)
		assert.Equal(t, 4, stockOf(t, p.ID))

		listed, err := repo.ListInventoryTransactions(context.Background(), domain.TransactionFilter{ReceiptID: txns[0].ReceiptID})
		require.NoError(t, err)
		require.Len(t, listed, 2)
		var withMeasure *domain.InventoryTransaction
		for i := range listed {
			if listed[i].InputUnit != "" {
				withMeasure = &listed[i]
			}
		}
		require.NotNil(t, withMeasure)
		assert.True(t, withMeasure.InputValue.Valid)
		assert.True(t, withMeasure.InputValue.Decimal.Equal(decimal.NewFromInt(500)))
	})

	t.Run("unknown product leaves batch unapplied", func(t *testing.T) {
		p := newProduct(t, 3)
		receiptID := fmt.Sprintf("rcp-missing-%d", stamp)
		_, err := repo.ApplyMovements(context.Background(), domain.MovementBatch{
			ReceiptID: receiptID,
			Movements: []domain.StockMovement{
				{ProductID: p.ID, Type: domain.TransactionIn, Quantity: 10},
				{ProductID: fmt.Sprintf("prod-missing-%d", stamp), Type: domain.TransactionIn, Quantity: 1},
			},
		})
		require.ErrorIs(t, err, store.ErrProductNotFound)
		assert.Equal(t, 3, stockOf(t, p.ID))

		txns, err := repo.ListInventoryTransactions(context.Background(), domain.TransactionFilter{ReceiptID: receiptID})
		require.NoError(t, err)
		assert.Empty(t, txns)
	})

	t.Run("invalid quantity is rejected before mutation", func(t *testing.T) {
		p := newProduct(t, 3)
		_, err := repo.ApplyMovements(context.Background(), domain.MovementBatch{
			Movements: []domain.StockMovement{{ProductID: p.ID, Type: domain.TransactionOut, Quantity: -1}},
		})
		require.ErrorIs(t, err, store.ErrInvalidQuantity)
		assert.Equal(t, 3, stockOf(t, p.ID))
		assert.Len(t, transactionsOf(t, p.ID), 1)
	})

	t.Run("stock beyond the quantity limit is rejected before mutation", func(t *testing.T) {
		p := newProduct(t, 3)
		receiptID := fmt.Sprintf("rcp-overflow-%d", stamp)
		_, err := repo.ApplyMovements(context.Background(), domain.MovementBatch{
			ReceiptID: receiptID,
			Movements: []domain.StockMovement{
				{ProductID: p.ID, Type: domain.TransactionIn, Quantity: 2_000_000_000},
				{ProductID: p.ID, Type: domain.TransactionIn, Quantity: 2_000_000_000},
			},
		})
		require.ErrorIs(t, err, store.ErrInvalidQuantity)
		assert.NotErrorIs(t, err, store.ErrStoreUnavailable)
		assert.Equal(t, 3, stockOf(t, p.ID))
		assert.Len(t, transactionsOf(t, p.ID), 1)

		_, err = repo.ApplyMovements(context.Background(), domain.MovementBatch{
			Movements: []domain.StockMovement{{ProductID: p.ID, Type: domain.TransactionIn, Quantity: 3_000_000_000}},
		})
		require.ErrorIs(t, err, store.ErrInvalidQuantity)
		assert.Equal(t, 3, stockOf(t, p.ID))
	})

	t.Run("concurrent movements keep the ledger consistent", func(t *testing.T) {
		p := newProduct(t, 20)
		var wg sync.WaitGroup
		for i := 0; i < 12; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				m := domain.StockMovement{ProductID: p.ID, Type: domain.TransactionOut, Quantity: 4}
				if i%3 == 0 {
					m = domain.StockMovement{ProductID: p.ID, Type: domain.TransactionIn, Quantity: 2}
				}
				_, err := repo.ApplyMovements(context.Background(), domain.MovementBatch{Movements: []domain.StockMovement{m}})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		stock := stockOf(t, p.ID)
		assert.GreaterOrEqual(t, stock, 0)
		assert.Equal(t, stock, sumDeltas(t, p.ID))
	})
}
