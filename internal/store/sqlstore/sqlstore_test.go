package sqlstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"kopiadmin/backend/internal/store"
)

func TestRebindDollar(t *testing.T) {
	got := RebindDollar(`UPDATE products SET stock_quantity = ?, updated_at = ? WHERE id = ?`)
	assert.Equal(t, `UPDATE products SET stock_quantity = $1, updated_at = $2 WHERE id = $3`, got)
	assert.Equal(t, `SELECT 1`, RebindDollar(`SELECT 1`))
}

func TestUnavailableWrapsSentinel(t *testing.T) {
	err := unavailable("commit", errors.New("connection reset"))
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestLimitClause(t *testing.T) {
	assert.Equal(t, "", limitClause(0))
	assert.Equal(t, " LIMIT 25", limitClause(25))
}
