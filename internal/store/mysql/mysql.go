package mysql

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"kopiadmin/backend/internal/store/sqlstore"
)

//go:embed schema.sql
var schema string

type Store struct {
	*sqlstore.Store
}

// New opens dsn with parseTime and UTC forced on, so DATETIME columns round
// trip as UTC time.Time values.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true

	connector, err := driver.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)
	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{Store: sqlstore.New(db, dialect{})}
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.Store.Migrate(ctx, schema)
}

type dialect struct{}

func (dialect) Name() string { return "mysql" }

func (dialect) Rebind(query string) string { return query }

func (dialect) IsUniqueViolation(err error) bool {
	return mysqlCode(err) == 1062
}

func (dialect) IsForeignKeyViolation(err error) bool {
	code := mysqlCode(err)
	return code == 1452 || code == 1216
}

func mysqlCode(err error) uint16 {
	var myErr *driver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number
	}
	return 0
}
