package xid

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New returns a prefixed time-ordered identifier such as "itx-0190f3…".
// Identifiers minted by one process sort in creation order.
func New(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	if prefix == "" {
		return id.String()
	}
	return prefix + "-" + id.String()
}
