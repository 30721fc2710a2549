package restock

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"kopiadmin/backend/internal/domain"
)

const (
	ReasonFastMoving     = "fast_moving"
	ReasonBelowThreshold = "below_threshold"
	ReasonHighValue      = "high_value"
)

// Engine ranks products for reordering. It is pure: callers pass in the
// catalog and the ledger rows of the observation window.
type Engine struct {
	horizonDays int
	minScore    float64
	maxResults  int
}

func NewEngine(horizonDays int) *Engine {
	if horizonDays <= 0 {
		horizonDays = 14
	}
	return &Engine{
		horizonDays: horizonDays,
		minScore:    0.35,
		maxResults:  20,
	}
}

// Suggest scores every active product against outbound units seen over
// windowDays. A product is suggested when its score clears the minimum and
// stocking it to cover the horizon needs at least one more unit.
func (e *Engine) Suggest(
	products []domain.Product,
	txns []domain.InventoryTransaction,
	windowDays int,
	threshold int,
) []domain.RestockSuggestion {
	if windowDays < 1 {
		windowDays = 1
	}

	outbound := make(map[string]int, len(products))
	for _, txn := range txns {
		if txn.Direction == domain.DirectionDecrease {
			outbound[txn.ProductID] += txn.AppliedQuantity
		}
	}

	maxPrice := decimal.Zero
	for _, p := range products {
		if p.Active && p.EffectivePrice().GreaterThan(maxPrice) {
			maxPrice = p.EffectivePrice()
		}
	}

	result := make([]domain.RestockSuggestion, 0, 8)
	for _, p := range products {
		if !p.Active {
			continue
		}

		velocity := float64(outbound[p.ID]) / float64(windowDays)
		coverDays := -1.0
		urgency := 0.0
		if velocity > 0 {
			coverDays = float64(p.StockQuantity) / velocity
			urgency = clamp(1-coverDays/float64(e.horizonDays), 0, 1)
		}

		lowStock := 0.0
		switch {
		case p.StockQuantity <= threshold:
			lowStock = 1
		case threshold > 0:
			lowStock = clamp(float64(threshold)/float64(p.StockQuantity), 0, 1)
		}

		valueScore := 0.0
		if maxPrice.IsPositive() {
			valueScore, _ = p.EffectivePrice().Div(maxPrice).Float64()
		}

		score := 0.55*urgency + 0.35*lowStock + 0.10*valueScore
		if score < e.minScore {
			continue
		}

		target := max(int(math.Ceil(velocity*float64(e.horizonDays))), threshold+1)
		suggested := target - p.StockQuantity
		if suggested < 1 {
			continue
		}

		result = append(result, domain.RestockSuggestion{
			ProductID:     p.ID,
			Name:          p.Name,
			StockQuantity: p.StockQuantity,
			DailyOutbound: round2(velocity),
			CoverDays:     round2(coverDays),
			SuggestedQty:  suggested,
			ReasonCode:    deriveReason(urgency, lowStock, valueScore),
			Score:         round2(score),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].ProductID < result[j].ProductID
	})
	if len(result) > e.maxResults {
		result = result[:e.maxResults]
	}
	return result
}

func deriveReason(urgency float64, lowStock float64, valueScore float64) string {
	type reasonWeight struct {
		code  string
		value float64
	}

	reasons := []reasonWeight{
		{code: ReasonFastMoving, value: urgency},
		{code: ReasonBelowThreshold, value: lowStock},
		{code: ReasonHighValue, value: valueScore},
	}

	sort.SliceStable(reasons, func(i, j int) bool {
		return reasons[i].value > reasons[j].value
	})
	return reasons[0].code
}

func clamp(val float64, minVal float64, maxVal float64) float64 {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

func round2(val float64) float64 {
	return math.Round(val*100) / 100
}
