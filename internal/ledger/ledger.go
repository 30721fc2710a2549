// Package ledger holds the stock arithmetic shared by every store and the
// receipt projection built over inventory transactions.
package ledger

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kopiadmin/backend/internal/domain"
	"kopiadmin/backend/internal/store"
	"kopiadmin/backend/internal/xid"
)

// MaxQuantity bounds both a single movement and a product's stock, matching
// the 32-bit stock columns of the SQL schemas.
const MaxQuantity = math.MaxInt32

type Result struct {
	Applied    int
	StockAfter int
	Delta      int
}

// Compute returns the effect of moving requested units in direction against
// current stock. Decreases are clamped so stock never goes below zero.
func Compute(direction domain.Direction, current int, requested int) (Result, error) {
	if requested <= 0 {
		return Result{}, store.ErrInvalidQuantity
	}
	if requested > MaxQuantity {
		return Result{}, fmt.Errorf("%w: %d is too large", store.ErrInvalidQuantity, requested)
	}
	if current < 0 {
		return Result{}, fmt.Errorf("%w: negative stock %d", store.ErrInvalidTransaction, current)
	}

	switch direction {
	case domain.DirectionIncrease:
		if current > MaxQuantity-requested {
			return Result{}, fmt.Errorf("%w: stock would exceed %d", store.ErrInvalidQuantity, MaxQuantity)
		}
		return Result{Applied: requested, StockAfter: current + requested, Delta: requested}, nil
	case domain.DirectionDecrease:
		applied := min(requested, current)
		return Result{Applied: applied, StockAfter: current - applied, Delta: -applied}, nil
	default:
		return Result{}, fmt.Errorf("%w: unknown direction %q", store.ErrInvalidTransaction, direction)
	}
}

// ParseQuantity accepts a JSON number holding a positive integer.
func ParseQuantity(raw json.Number) (int, error) {
	text := strings.TrimSpace(raw.String())
	if text == "" {
		return 0, store.ErrInvalidQuantity
	}
	value, err := decimal.NewFromString(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", store.ErrInvalidQuantity, text)
	}
	if !value.IsInteger() || !value.IsPositive() {
		return 0, fmt.Errorf("%w: %s", store.ErrInvalidQuantity, value.String())
	}
	if value.GreaterThan(decimal.NewFromInt(MaxQuantity)) {
		return 0, fmt.Errorf("%w: %s is too large", store.ErrInvalidQuantity, value.String())
	}
	return int(value.IntPart()), nil
}

// NormalizeMovement pins the direction implied by IN and OUT and rejects
// anything a store must not apply.
func NormalizeMovement(m domain.StockMovement) (domain.StockMovement, error) {
	m.ProductID = strings.TrimSpace(m.ProductID)
	m.InputUnit = strings.TrimSpace(m.InputUnit)
	if m.ProductID == "" {
		return m, fmt.Errorf("%w: product_id is required", store.ErrInvalidTransaction)
	}
	if m.Quantity <= 0 {
		return m, store.ErrInvalidQuantity
	}
	if m.Quantity > MaxQuantity {
		return m, fmt.Errorf("%w: %d is too large", store.ErrInvalidQuantity, m.Quantity)
	}

	switch m.Type {
	case domain.TransactionIn:
		m.Direction = domain.DirectionIncrease
	case domain.TransactionOut:
		m.Direction = domain.DirectionDecrease
	case domain.TransactionAdjust:
		m.Direction = domain.Direction(strings.ToUpper(strings.TrimSpace(string(m.Direction))))
		if !m.Direction.Valid() {
			return m, fmt.Errorf("%w: adjust direction must be INCREASE or DECREASE", store.ErrInvalidTransaction)
		}
	default:
		return m, fmt.Errorf("%w: unknown type %q", store.ErrInvalidTransaction, m.Type)
	}
	return m, nil
}

// Entry builds the ledger row for a movement already computed against before.
func Entry(batch domain.MovementBatch, m domain.StockMovement, productName string, before int, r Result) domain.InventoryTransaction {
	createdAt := batch.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return domain.InventoryTransaction{
		ID:                xid.New("itx"),
		ProductID:         m.ProductID,
		ProductName:       productName,
		Type:              m.Type,
		Direction:         m.Direction,
		RequestedQuantity: m.Quantity,
		AppliedQuantity:   r.Applied,
		Delta:             r.Delta,
		StockBefore:       before,
		StockAfter:        r.StockAfter,
		Note:              m.Note,
		InputValue:        m.InputValue,
		InputUnit:         m.InputUnit,
		ReceiptID:         batch.ReceiptID,
		CreatedBy:         batch.CreatedBy,
		CreatedAt:         createdAt,
	}
}

// InputText renders a declared measure as "500 ML", or "-" when either part
// is missing.
func InputText(value decimal.NullDecimal, unit string) string {
	unit = strings.TrimSpace(unit)
	if !value.Valid || unit == "" {
		return "-"
	}
	return value.Decimal.String() + " " + unit
}
