// Package sqlstore implements store.Repository over database/sql. Queries are
// written with ? placeholders and rebound by the Dialect of the driver.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"kopiadmin/backend/internal/store"
)

type Dialect interface {
	Name() string
	Rebind(query string) string
	IsUniqueViolation(err error) bool
	IsForeignKeyViolation(err error) bool
}

type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ store.Repository = (*Store)(nil)

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// Migrate runs each statement of schema in order. Statements are separated
// by semicolons; the schemas carry no procedural bodies.
func (s *Store) Migrate(ctx context.Context, schema string) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func (s *Store) q(query string) string {
	return s.dialect.Rebind(query)
}

// RebindDollar turns ? placeholders into $1..$n.
func RebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", store.ErrStoreUnavailable, op, err)
}

func firstLine(stmt string) string {
	if idx := strings.IndexByte(stmt, '\n'); idx >= 0 {
		return strings.TrimSpace(stmt[:idx])
	}
	return stmt
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return val.UTC()
}

func timePtr(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	t := val.Time.UTC()
	return &t
}

func limitClause(limit int) string {
	if limit < 1 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}
