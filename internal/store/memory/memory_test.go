package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kopiadmin/backend/internal/domain"
	"kopiadmin/backend/internal/store"
	"kopiadmin/backend/internal/store/storetest"
)

func TestLedgerSuite(t *testing.T) {
	storetest.RunLedger(t, New())
}

func newProduct(t *testing.T, s *Store, stock int) domain.Product {
	t.Helper()
	ctx := context.Background()
	p, err := s.CreateProduct(ctx, domain.Product{Name: "Kopi Susu Literan", Price: decimal.NewFromInt(60000)})
	require.NoError(t, err)
	if stock > 0 {
		_, err = s.ApplyMovements(ctx, domain.MovementBatch{
			ReceiptID: "rcp-init",
			Movements: []domain.StockMovement{{ProductID: p.ID, Type: domain.TransactionIn, Quantity: stock}},
		})
		require.NoError(t, err)
	}
	return *p
}

func sumDeltas(t *testing.T, s *Store, productID string) int {
	t.Helper()
	txns, err := s.ListInventoryTransactions(context.Background(), domain.TransactionFilter{ProductID: productID})
	require.NoError(t, err)
	total := 0
	for _, txn := range txns {
		total += txn.Delta
	}
	return total
}

func TestSeededStockMatchesOpeningReceipt(t *testing.T) {
	s := NewSeeded()
	products, err := s.ListProducts(context.Background(), domain.ProductFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, products)
	for _, p := range products {
		assert.Equal(t, p.StockQuantity, sumDeltas(t, s, p.ID), p.ID)
	}
}

func TestApplyMovementsClampsDecrease(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := newProduct(t, s, 3)

	txns, err := s.ApplyMovements(ctx, domain.MovementBatch{
		ReceiptID: "rcp-out",
		Movements: []domain.StockMovement{{ProductID: p.ID, Type: domain.TransactionOut, Quantity: 10}},
	})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, 10, txns[0].RequestedQuantity)
	assert.Equal(t, 3, txns[0].AppliedQuantity)
	assert.Equal(t, -3, txns[0].Delta)
	assert.Equal(t, 3, txns[0].StockBefore)
	assert.Equal(t, 0, txns[0].StockAfter)
	assert.Equal(t, domain.DirectionDecrease, txns[0].Direction)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.StockQuantity)
}

func TestApplyMovementsIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := newProduct(t, s, 5)

	_, err := s.ApplyMovements(ctx, domain.MovementBatch{
		ReceiptID: "rcp-bad",
		Movements: []domain.StockMovement{
			{ProductID: p.ID, Type: domain.TransactionIn, Quantity: 4},
			{ProductID: "prod-missing", Type: domain.TransactionIn, Quantity: 1},
		},
	})
	require.ErrorIs(t, err, store.ErrProductNotFound)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockQuantity)

	txns, err := s.ListInventoryTransactions(ctx, domain.TransactionFilter{ReceiptID: "rcp-bad"})
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestApplyMovementsRunsDuplicatesAgainstRunningStock(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := newProduct(t, s, 5)

	txns, err := s.ApplyMovements(ctx, domain.MovementBatch{
		ReceiptID: "rcp-dup",
		Movements: []domain.StockMovement{
			{ProductID: p.ID, Type: domain.TransactionAdjust, Direction: domain.DirectionDecrease, Quantity: 4},
			{ProductID: p.ID, Type: domain.TransactionAdjust, Direction: domain.DirectionDecrease, Quantity: 4},
		},
	})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, 4, txns[0].AppliedQuantity)
	assert.Equal(t, 1, txns[1].AppliedQuantity)
	assert.Equal(t, 1, txns[1].StockBefore)
	assert.Equal(t, 0, txns[1].StockAfter)
}

func TestApplyMovementsRejectsInvalidQuantity(t *testing.T) {
	s := New()
	p := newProduct(t, s, 0)
	_, err := s.ApplyMovements(context.Background(), domain.MovementBatch{
		Movements: []domain.StockMovement{{ProductID: p.ID, Type: domain.TransactionIn, Quantity: 0}},
	})
	require.ErrorIs(t, err, store.ErrInvalidQuantity)
}

func TestConcurrentDecreasesNeverOversell(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := newProduct(t, s, 50)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.ApplyMovements(ctx, domain.MovementBatch{
				Movements: []domain.StockMovement{{ProductID: p.ID, Type: domain.TransactionOut, Quantity: 3}},
			})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := s.ApplyMovements(ctx, domain.MovementBatch{
				Movements: []domain.StockMovement{{ProductID: p.ID, Type: domain.TransactionIn, Quantity: 1}},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.StockQuantity, 0)
	assert.Equal(t, got.StockQuantity, sumDeltas(t, s, p.ID))

	txns, err := s.ListInventoryTransactions(ctx, domain.TransactionFilter{ProductID: p.ID})
	require.NoError(t, err)
	for _, txn := range txns {
		assert.Equal(t, txn.StockBefore+txn.Delta, txn.StockAfter)
		assert.LessOrEqual(t, txn.AppliedQuantity, txn.RequestedQuantity)
	}
}

func TestUpdateProductKeepsStock(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := newProduct(t, s, 7)

	p.Name = "Kopi Susu Literan 1L"
	p.StockQuantity = 999
	updated, err := s.UpdateProduct(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.StockQuantity)
	assert.Equal(t, "Kopi Susu Literan 1L", updated.Name)
}

func TestCreateCategoryRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.CreateCategory(ctx, domain.Category{Name: "Coffee"})
	require.NoError(t, err)
	_, err = s.CreateCategory(ctx, domain.Category{Name: "coffee"})
	require.ErrorIs(t, err, store.ErrConflict)
}

func TestVoucherCodeIsUnique(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.CreateVoucher(ctx, domain.Voucher{Code: "NGOPI10", Type: domain.VoucherTypePercent, Value: decimal.NewFromInt(10)})
	require.NoError(t, err)
	_, err = s.CreateVoucher(ctx, domain.Voucher{Code: "ngopi10", Type: domain.VoucherTypeFlat, Value: decimal.NewFromInt(5000)})
	require.ErrorIs(t, err, store.ErrConflict)
}
