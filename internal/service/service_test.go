package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"

	"kopiadmin/backend/internal/auth"
	"kopiadmin/backend/internal/cache"
	"kopiadmin/backend/internal/domain"
	"kopiadmin/backend/internal/store"
	"kopiadmin/backend/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.NewSeeded()
	users := auth.NewManager(context.Background(), "service-test-secret-with-32-bytes!", time.Hour, repo)
	return New(repo, Config{Users: users}), repo
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func staffCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "staff", Role: domain.RoleStaff})
}

func latestTransaction(t *testing.T, svc *Service, productID string) domain.InventoryTransaction {
	t.Helper()
	txns, err := svc.ListTransactions(context.Background(), domain.TransactionFilter{ProductID: productID, Limit: 1})
	if err != nil {
		t.Fatalf("list transactions failed: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("expected one transaction for %s, got %d", productID, len(txns))
	}
	return txns[0]
}

func TestRecordDecreaseClampsAtCurrentStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := staffCtx()

	id, err := svc.RecordDecrease(ctx, "prod-v60-02", 10, "damaged on shelf")
	if err != nil {
		t.Fatalf("record decrease failed: %v", err)
	}

	txn := latestTransaction(t, svc, "prod-v60-02")
	if txn.ID != id {
		t.Fatalf("expected latest transaction %s, got %s", id, txn.ID)
	}
	if txn.RequestedQuantity != 10 || txn.AppliedQuantity != 6 || txn.Delta != -6 {
		t.Fatalf("unexpected clamp result: requested=%d applied=%d delta=%d", txn.RequestedQuantity, txn.AppliedQuantity, txn.Delta)
	}
	if txn.StockBefore != 6 || txn.StockAfter != 0 {
		t.Fatalf("unexpected stock before/after: %d/%d", txn.StockBefore, txn.StockAfter)
	}
	if txn.CreatedBy != "staff" || txn.ReceiptID == "" {
		t.Fatalf("expected receipt stamped by staff, got receipt=%q by=%q", txn.ReceiptID, txn.CreatedBy)
	}

	product, err := svc.GetProduct(ctx, "prod-v60-02")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.StockQuantity != 0 {
		t.Fatalf("expected stock 0, got %d", product.StockQuantity)
	}

	// A further decrease on an empty product is recorded with nothing applied.
	if _, err := svc.RecordDecrease(ctx, "prod-v60-02", 3, ""); err != nil {
		t.Fatalf("decrease on empty stock should not fail: %v", err)
	}
	txn = latestTransaction(t, svc, "prod-v60-02")
	if txn.AppliedQuantity != 0 || txn.Delta != 0 || txn.RequestedQuantity != 3 {
		t.Fatalf("expected zero applied, got applied=%d delta=%d", txn.AppliedQuantity, txn.Delta)
	}
}

func ledgerCounts(t *testing.T, svc *Service, repo *memory.Store) (int, int) {
	t.Helper()
	txns, err := svc.ListTransactions(context.Background(), domain.TransactionFilter{Limit: 500})
	if err != nil {
		t.Fatalf("list transactions failed: %v", err)
	}
	logs, err := repo.ListAuditLogs(context.Background(), time.Time{}, time.Now().Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("list audit logs failed: %v", err)
	}
	return len(txns), len(logs)
}

func TestRecordRejectsBadInputBeforeMutation(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := staffCtx()
	txnsBefore, auditBefore := ledgerCounts(t, svc, repo)

	for _, quantity := range []int{0, -3, 3_000_000_000} {
		if _, err := svc.RecordIncrease(ctx, "prod-gayo-250", quantity, ""); !errors.Is(err, store.ErrInvalidQuantity) {
			t.Fatalf("expected ErrInvalidQuantity for %d, got %v", quantity, err)
		}
	}
	if _, err := svc.RecordAdjust(ctx, "prod-gayo-250", domain.DirectionIncrease, 3_000_000_000, ""); !errors.Is(err, store.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity for oversized adjust, got %v", err)
	}
	if _, err := svc.RecordIncrease(ctx, "prod-missing", 5, ""); !errors.Is(err, store.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if _, err := svc.RecordAdjust(ctx, "prod-gayo-250", domain.Direction("SIDEWAYS"), 5, ""); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected ErrInvalidTransaction, got %v", err)
	}

	product, err := svc.GetProduct(ctx, "prod-gayo-250")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.StockQuantity != 40 {
		t.Fatalf("expected untouched stock 40, got %d", product.StockQuantity)
	}

	txnsAfter, auditAfter := ledgerCounts(t, svc, repo)
	if txnsAfter != txnsBefore || auditAfter != auditBefore {
		t.Fatalf("rejected calls must not append rows: transactions %d->%d, audit %d->%d", txnsBefore, txnsAfter, auditBefore, auditAfter)
	}
}

func TestRecordIncreaseRejectsStockBeyondLimit(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := staffCtx()

	if _, err := svc.RecordIncrease(ctx, "prod-gayo-250", 2_000_000_000, "bulk"); err != nil {
		t.Fatalf("first large increase failed: %v", err)
	}
	txnsBefore, auditBefore := ledgerCounts(t, svc, repo)

	_, err := svc.RecordBatch(ctx, domain.TransactionIn, domain.InventoryBatchRequest{
		Lines: []domain.InventoryLineRequest{{ProductID: "prod-gayo-250", Quantity: json.Number("2000000000")}},
	})
	if !errors.Is(err, store.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity on stock overflow, got %v", err)
	}

	product, err := svc.GetProduct(ctx, "prod-gayo-250")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.StockQuantity != 2_000_000_040 {
		t.Fatalf("expected stock 2000000040, got %d", product.StockQuantity)
	}
	txnsAfter, auditAfter := ledgerCounts(t, svc, repo)
	if txnsAfter != txnsBefore || auditAfter != auditBefore {
		t.Fatalf("rejected batch must not append rows: transactions %d->%d, audit %d->%d", txnsBefore, txnsAfter, auditBefore, auditAfter)
	}
}

func TestCreateProductRejectsOversizedInitialStockBeforeInsert(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	before, err := svc.ListProducts(ctx, domain.ProductFilter{IncludeInactive: true})
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	_, err = svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name:         "Aceh Gayo Wine Process",
		Price:        decimal.NewFromInt(120000),
		InitialStock: 3_000_000_000,
	})
	if !errors.Is(err, store.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	after, err := svc.ListProducts(ctx, domain.ProductFilter{IncludeInactive: true})
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("expected no product inserted, had %d now %d", len(before), len(after))
	}
}

func TestRecordBatchProducesOneReceipt(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := staffCtx()

	resp, err := svc.RecordBatch(ctx, domain.TransactionIn, domain.InventoryBatchRequest{
		Note: "supplier delivery",
		Lines: []domain.InventoryLineRequest{
			{ProductID: "prod-jasmine-100", Quantity: json.Number("4"), InputValue: decimal.NewNullDecimal(decimal.NewFromInt(500)), InputUnit: "ml"},
			{ProductID: "prod-toraja-250", Quantity: json.Number("6")},
		},
	})
	if err != nil {
		t.Fatalf("record batch failed: %v", err)
	}
	if len(resp.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(resp.Transactions))
	}

	receipts, err := svc.ListReceipts(ctx)
	if err != nil {
		t.Fatalf("list receipts failed: %v", err)
	}
	if receipts[0].ReceiptID != resp.ReceiptID {
		t.Fatalf("expected newest receipt %s first, got %s", resp.ReceiptID, receipts[0].ReceiptID)
	}
	if receipts[0].TotalLines != 2 || receipts[0].TotalQty != 10 || receipts[0].Note != "supplier delivery" {
		t.Fatalf("unexpected receipt summary: %+v", receipts[0])
	}

	lines, err := svc.GetReceiptLines(ctx, resp.ReceiptID)
	if err != nil {
		t.Fatalf("get receipt lines failed: %v", err)
	}
	if len(lines) != 2 || lines[0].ProductID != "prod-jasmine-100" || lines[1].ProductID != "prod-toraja-250" {
		t.Fatalf("unexpected line order: %+v", lines)
	}
	if lines[0].InputText != "500 ML" || lines[1].InputText != "-" {
		t.Fatalf("unexpected input text: %q %q", lines[0].InputText, lines[1].InputText)
	}
}

func TestRecordBatchIsAllOrNothing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := staffCtx()

	_, err := svc.RecordBatch(ctx, domain.TransactionOut, domain.InventoryBatchRequest{
		Lines: []domain.InventoryLineRequest{
			{ProductID: "prod-gayo-250", Quantity: json.Number("5")},
			{ProductID: "prod-missing", Quantity: json.Number("1")},
		},
	})
	if !errors.Is(err, store.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}

	_, err = svc.RecordBatch(ctx, domain.TransactionOut, domain.InventoryBatchRequest{
		Lines: []domain.InventoryLineRequest{{ProductID: "prod-gayo-250", Quantity: json.Number("1.5")}},
	})
	if !errors.Is(err, store.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity for fractional quantity, got %v", err)
	}

	product, _ := svc.GetProduct(ctx, "prod-gayo-250")
	if product.StockQuantity != 40 {
		t.Fatalf("expected stock 40 after rejected batches, got %d", product.StockQuantity)
	}
}

func TestGetReceiptUnknown(t *testing.T) {
	svc, _ := newTestService(t)

	lines, err := svc.GetReceiptLines(context.Background(), "rcp-unknown")
	if err != nil {
		t.Fatalf("unknown receipt lines should not fail: %v", err)
	}
	if lines == nil || len(lines) != 0 {
		t.Fatalf("expected empty non-nil lines, got %#v", lines)
	}
	if _, err := svc.GetReceipt(context.Background(), "rcp-unknown"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBuildReceiptPrint(t *testing.T) {
	svc, _ := newTestService(t)

	printed, err := svc.BuildReceiptPrint(context.Background(), "rcp-opening")
	if err != nil {
		t.Fatalf("build receipt print failed: %v", err)
	}
	if printed.EscposBase64 == "" || !strings.Contains(printed.PreviewText, "Arabica Gayo 250g") {
		t.Fatalf("unexpected print payload: %+v", printed)
	}
	if !strings.Contains(printed.PreviewText, "Qty   : 121") {
		t.Fatalf("expected opening total in preview, got:\n%s", printed.PreviewText)
	}
}

func TestCreateProductRequiresAdminAndBooksInitialStock(t *testing.T) {
	svc, _ := newTestService(t)
	req := domain.ProductCreateRequest{
		Name:         "Kalita Wave 185",
		CategoryID:   "cat-gear",
		Price:        decimal.NewFromInt(320000),
		InitialStock: 15,
	}

	if _, err := svc.CreateProduct(staffCtx(), req); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for staff, got %v", err)
	}

	created, err := svc.CreateProduct(adminCtx(), req)
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	if created.StockQuantity != 15 {
		t.Fatalf("expected stock 15, got %d", created.StockQuantity)
	}

	txn := latestTransaction(t, svc, created.ID)
	if txn.Type != domain.TransactionIn || txn.Delta != 15 || txn.Note != "initial stock" {
		t.Fatalf("expected initial stock IN transaction, got %+v", txn)
	}
}

func TestProductPriceValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:      "Overpriced Sale",
		Price:     decimal.NewFromInt(10000),
		SalePrice: decimal.NewNullDecimal(decimal.NewFromInt(12000)),
	})
	if !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected ErrInvalidTransaction for sale above price, got %v", err)
	}

	zero := decimal.Zero
	_, err = svc.UpdateProduct(adminCtx(), "prod-gayo-250", domain.ProductUpdateRequest{Price: &zero})
	if !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected ErrInvalidTransaction for zero price, got %v", err)
	}
}

func TestUpdateProductArchivesWithoutTouchingStock(t *testing.T) {
	svc, _ := newTestService(t)
	inactive := false

	updated, err := svc.UpdateProduct(adminCtx(), "prod-toraja-250", domain.ProductUpdateRequest{Active: &inactive, ClearSalePrice: true})
	if err != nil {
		t.Fatalf("update product failed: %v", err)
	}
	if updated.Active || updated.StockQuantity != 25 {
		t.Fatalf("expected archived product with stock 25, got active=%t stock=%d", updated.Active, updated.StockQuantity)
	}

	products, err := svc.ListProducts(context.Background(), domain.ProductFilter{})
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	for _, p := range products {
		if p.ID == "prod-toraja-250" {
			t.Fatalf("archived product should be hidden from the default list")
		}
	}
}

func TestReadCacheIsInvalidatedByInventoryWrites(t *testing.T) {
	mr := miniredis.RunT(t)
	repo := memory.NewSeeded()
	svc := New(repo, Config{Cache: cache.NewRedisViewCache(mr.Addr(), "", 0), CacheTTL: time.Minute})
	ctx := staffCtx()

	before, err := svc.GetProduct(ctx, "prod-earlgrey-100")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if !mr.Exists("kopiadmin:products:prod-earlgrey-100") {
		t.Fatalf("expected product view to be cached")
	}
	if _, err := svc.ListReceipts(ctx); err != nil {
		t.Fatalf("list receipts failed: %v", err)
	}

	if _, err := svc.RecordIncrease(ctx, "prod-earlgrey-100", 12, "restock"); err != nil {
		t.Fatalf("record increase failed: %v", err)
	}
	after, err := svc.GetProduct(ctx, "prod-earlgrey-100")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if after.StockQuantity != before.StockQuantity+12 {
		t.Fatalf("expected stale cache to be dropped: before=%d after=%d", before.StockQuantity, after.StockQuantity)
	}

	receipts, err := svc.ListReceipts(ctx)
	if err != nil {
		t.Fatalf("list receipts failed: %v", err)
	}
	if len(receipts) != 2 {
		t.Fatalf("expected opening plus restock receipt, got %d", len(receipts))
	}
}

func TestVoucherRules(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	created, err := svc.CreateVoucher(ctx, domain.VoucherCreateRequest{
		Code:  " kopi10 ",
		Type:  "PERCENT",
		Value: decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("create voucher failed: %v", err)
	}
	if created.Code != "KOPI10" || created.Type != domain.VoucherTypePercent || !created.Active {
		t.Fatalf("unexpected voucher: %+v", created)
	}

	_, err = svc.CreateVoucher(ctx, domain.VoucherCreateRequest{Code: "KOPI10", Type: "flat", Value: decimal.NewFromInt(5000)})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate code, got %v", err)
	}

	_, err = svc.CreateVoucher(ctx, domain.VoucherCreateRequest{Code: "HALF150", Type: "percent", Value: decimal.NewFromInt(150)})
	if !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected ErrInvalidTransaction for percent above 100, got %v", err)
	}

	past := created.StartsAt.Add(-time.Hour)
	if _, err := svc.UpdateVoucher(ctx, created.ID, domain.VoucherUpdateRequest{EndsAt: &past}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected ErrInvalidTransaction for ends_at before starts_at, got %v", err)
	}

	if err := svc.DeleteVoucher(ctx, created.ID); err != nil {
		t.Fatalf("delete voucher failed: %v", err)
	}
	if _, err := svc.GetVoucher(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestNewsSlugsStayUnique(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	first, err := svc.CreateNews(ctx, domain.NewsCreateRequest{Title: "New Harvest: Gayo!", Body: "Fresh beans.", Published: true})
	if err != nil {
		t.Fatalf("create news failed: %v", err)
	}
	second, err := svc.CreateNews(ctx, domain.NewsCreateRequest{Title: "New harvest gayo", Body: "Draft."})
	if err != nil {
		t.Fatalf("create second news failed: %v", err)
	}
	if first.Slug != "new-harvest-gayo" || second.Slug != "new-harvest-gayo-2" {
		t.Fatalf("unexpected slugs %q and %q", first.Slug, second.Slug)
	}
	if first.PublishedAt == nil || second.PublishedAt != nil {
		t.Fatalf("published_at should be set only when published")
	}

	published, err := svc.ListNews(ctx, true)
	if err != nil {
		t.Fatalf("list news failed: %v", err)
	}
	if len(published) != 1 || published[0].ID != first.ID {
		t.Fatalf("expected only the published article, got %+v", published)
	}
}

func TestDashboardSummaryAndLowStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := staffCtx()

	summary, err := svc.Summary(ctx, 0)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.Days != 7 || len(summary.Movements) != 7 {
		t.Fatalf("expected a 7 day window, got days=%d movements=%d", summary.Days, len(summary.Movements))
	}
	if summary.TotalProducts != 6 || summary.ActiveProducts != 6 || summary.TotalUnits != 121 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if summary.LowStockCount != 2 {
		t.Fatalf("expected 2 low stock products, got %d", summary.LowStockCount)
	}
	inbound := 0
	for _, day := range summary.Movements {
		inbound += day.Inbound
	}
	if inbound != 121 {
		t.Fatalf("expected opening stock counted as inbound, got %d", inbound)
	}
	if len(summary.RecentReceipts) != 1 || summary.RecentReceipts[0].ReceiptID != "rcp-opening" {
		t.Fatalf("unexpected recent receipts: %+v", summary.RecentReceipts)
	}
	if summary.TopMovers[0].ProductID != "prod-gayo-250" {
		t.Fatalf("expected gayo as top mover, got %s", summary.TopMovers[0].ProductID)
	}

	lowStock, err := svc.LowStock(ctx)
	if err != nil {
		t.Fatalf("low stock failed: %v", err)
	}
	if len(lowStock) != 2 || lowStock[0].ProductID != "prod-v60-02" || lowStock[1].ProductID != "prod-earlgrey-100" {
		t.Fatalf("unexpected low stock order: %+v", lowStock)
	}
}

func TestRestockSuggestionsFollowOutboundMovement(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := staffCtx()

	if _, err := svc.RecordDecrease(ctx, "prod-jasmine-100", 28, "weekend market"); err != nil {
		t.Fatalf("record decrease failed: %v", err)
	}

	suggestions, err := svc.RestockSuggestions(ctx, 7)
	if err != nil {
		t.Fatalf("restock suggestions failed: %v", err)
	}
	found := false
	for _, s := range suggestions {
		if s.ProductID == "prod-jasmine-100" {
			found = true
			if s.SuggestedQty < 1 || s.DailyOutbound != 4 {
				t.Fatalf("unexpected jasmine suggestion: %+v", s)
			}
		}
	}
	if !found {
		t.Fatalf("expected jasmine tea to be suggested, got %+v", suggestions)
	}
}

func TestUserManagementIsAdminOnly(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.ListUsers(staffCtx()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	created, err := svc.CreateUser(adminCtx(), domain.UserCreateRequest{Username: "barista01", Password: "espresso"})
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	if created.Role != domain.RoleStaff || !created.Active {
		t.Fatalf("unexpected user: %+v", created)
	}

	inactive := false
	if _, err := svc.UpdateUser(adminCtx(), "admin", domain.UserUpdateRequest{Active: &inactive}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected self deactivation to be rejected, got %v", err)
	}
	updated, err := svc.UpdateUser(adminCtx(), "barista01", domain.UserUpdateRequest{Active: &inactive})
	if err != nil {
		t.Fatalf("update user failed: %v", err)
	}
	if updated.Active {
		t.Fatalf("expected user to be deactivated")
	}
}

func TestAdminMutationsAreAudited(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	if _, err := svc.CreateCategory(ctx, domain.CategoryCreateRequest{Name: "Syrups"}); err != nil {
		t.Fatalf("create category failed: %v", err)
	}
	if _, err := svc.RecordIncrease(ctx, "prod-gayo-250", 2, ""); err != nil {
		t.Fatalf("record increase failed: %v", err)
	}

	logs, err := svc.ListAuditLogs(ctx, "", 10)
	if err != nil {
		t.Fatalf("list audit logs failed: %v", err)
	}
	actions := make(map[string]bool, len(logs))
	for _, entry := range logs {
		actions[entry.Action] = true
		if entry.ActorUsername != "admin" {
			t.Fatalf("expected admin actor, got %q", entry.ActorUsername)
		}
	}
	if !actions["category_create"] || !actions["inventory_in"] {
		t.Fatalf("expected category_create and inventory_in audit rows, got %v", actions)
	}

	if _, err := svc.ListAuditLogs(staffCtx(), "", 10); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for staff, got %v", err)
	}
}
