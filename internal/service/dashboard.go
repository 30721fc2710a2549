package service

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"kopiadmin/backend/internal/cache"
	"kopiadmin/backend/internal/domain"
	"kopiadmin/backend/internal/ledger"
)

const (
	maxDashboardDays = 90
	topMoverCount    = 5
	recentReceipts   = 5
)

// Summary aggregates catalog KPIs and ledger movements for the last days
// calendar days (UTC), today included.
func (s *Service) Summary(ctx context.Context, days int) (domain.DashboardSummary, error) {
	days = clampDays(days)
	return readThrough(ctx, s, cache.DashboardKey(days, s.lowStockThreshold), func() (domain.DashboardSummary, error) {
		return s.buildSummary(ctx, days)
	})
}

func (s *Service) buildSummary(ctx context.Context, days int) (domain.DashboardSummary, error) {
	ctx, span := s.tracer.Start(ctx, "dashboard.summary")
	var err error
	defer func() { endSpan(span, err) }()

	now := s.now()
	from := now.Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))

	products, err := s.repo.ListProducts(ctx, domain.ProductFilter{IncludeInactive: true})
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	txns, err := s.repo.ListInventoryTransactions(ctx, domain.TransactionFilter{From: &from})
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	summary := domain.DashboardSummary{
		From:           from.Format("2006-01-02"),
		To:             now.Format("2006-01-02"),
		Days:           days,
		TotalProducts:  len(products),
		InventoryValue: decimal.Zero,
		GeneratedAt:    now.Format(time.RFC3339),
	}
	for _, p := range products {
		summary.TotalUnits += p.StockQuantity
		summary.InventoryValue = summary.InventoryValue.Add(p.EffectivePrice().Mul(decimal.NewFromInt(int64(p.StockQuantity))))
		if !p.Active {
			continue
		}
		summary.ActiveProducts++
		if p.StockQuantity <= s.lowStockThreshold {
			summary.LowStockCount++
		}
	}

	summary.Movements = make([]domain.DailyMovement, days)
	dayIndex := make(map[string]int, days)
	for i := range days {
		date := from.AddDate(0, 0, i).Format("2006-01-02")
		summary.Movements[i] = domain.DailyMovement{Date: date}
		dayIndex[date] = i
	}

	movers := make(map[string]*domain.ProductMovement)
	for _, txn := range txns {
		if i, ok := dayIndex[txn.CreatedAt.UTC().Format("2006-01-02")]; ok {
			day := &summary.Movements[i]
			switch {
			case txn.Type == domain.TransactionIn:
				day.Inbound += txn.AppliedQuantity
			case txn.Type == domain.TransactionOut:
				day.Outbound += txn.AppliedQuantity
			case txn.Direction == domain.DirectionIncrease:
				day.AdjustIn += txn.AppliedQuantity
			default:
				day.AdjustOut += txn.AppliedQuantity
			}
		}

		mover, ok := movers[txn.ProductID]
		if !ok {
			mover = &domain.ProductMovement{ProductID: txn.ProductID, ProductName: txn.ProductName}
			movers[txn.ProductID] = mover
		}
		if txn.Direction == domain.DirectionIncrease {
			mover.UnitsIn += txn.AppliedQuantity
		} else {
			mover.UnitsOut += txn.AppliedQuantity
		}
	}

	summary.TopMovers = make([]domain.ProductMovement, 0, len(movers))
	for _, mover := range movers {
		summary.TopMovers = append(summary.TopMovers, *mover)
	}
	slices.SortFunc(summary.TopMovers, func(a, b domain.ProductMovement) int {
		if c := cmp.Compare(b.UnitsIn+b.UnitsOut, a.UnitsIn+a.UnitsOut); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	if len(summary.TopMovers) > topMoverCount {
		summary.TopMovers = summary.TopMovers[:topMoverCount]
	}

	summary.RecentReceipts = ledger.GroupReceipts(txns)
	if len(summary.RecentReceipts) > recentReceipts {
		summary.RecentReceipts = summary.RecentReceipts[:recentReceipts]
	}
	return summary, nil
}

// LowStock lists active products at or under the threshold, lowest first.
func (s *Service) LowStock(ctx context.Context) ([]domain.LowStockItem, error) {
	return readThrough(ctx, s, cache.LowStockKey(s.lowStockThreshold), func() ([]domain.LowStockItem, error) {
		products, err := s.repo.ListProducts(ctx, domain.ProductFilter{})
		if err != nil {
			return nil, err
		}

		items := make([]domain.LowStockItem, 0, 8)
		for _, p := range products {
			if !p.Active || p.StockQuantity > s.lowStockThreshold {
				continue
			}
			items = append(items, domain.LowStockItem{
				ProductID:     p.ID,
				Name:          p.Name,
				StockQuantity: p.StockQuantity,
				Threshold:     s.lowStockThreshold,
			})
		}
		slices.SortFunc(items, func(a, b domain.LowStockItem) int {
			if c := cmp.Compare(a.StockQuantity, b.StockQuantity); c != 0 {
				return c
			}
			return cmp.Compare(a.Name, b.Name)
		})
		return items, nil
	})
}

// RestockSuggestions ranks products to reorder from outbound movement over
// the last days.
func (s *Service) RestockSuggestions(ctx context.Context, days int) ([]domain.RestockSuggestion, error) {
	days = clampDays(days)
	return readThrough(ctx, s, cache.RestockKey(days, s.lowStockThreshold), func() ([]domain.RestockSuggestion, error) {
		products, err := s.repo.ListProducts(ctx, domain.ProductFilter{})
		if err != nil {
			return nil, err
		}
		from := s.now().AddDate(0, 0, -days)
		txns, err := s.repo.ListInventoryTransactions(ctx, domain.TransactionFilter{From: &from})
		if err != nil {
			return nil, err
		}
		return s.restock.Suggest(products, txns, days, s.lowStockThreshold), nil
	})
}

func clampDays(days int) int {
	if days < 1 {
		return 7
	}
	return min(days, maxDashboardDays)
}
