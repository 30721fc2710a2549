package store

import (
	"context"
	"errors"
	"time"

	"kopiadmin/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrProductNotFound    = errors.New("product not found")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrConflict           = errors.New("conflict")
)

type CatalogRepository interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// LedgerRepository owns stock_quantity. ApplyMovements serializes the
// read-clamp-write of every touched product and appends one transaction per
// movement, all or nothing.
type LedgerRepository interface {
	ApplyMovements(ctx context.Context, batch domain.MovementBatch) ([]domain.InventoryTransaction, error)
	ListInventoryTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.InventoryTransaction, error)
}

type ContentRepository interface {
	ListVouchers(ctx context.Context) ([]domain.Voucher, error)
	GetVoucher(ctx context.Context, id string) (*domain.Voucher, error)
	CreateVoucher(ctx context.Context, voucher domain.Voucher) (*domain.Voucher, error)
	UpdateVoucher(ctx context.Context, voucher domain.Voucher) (*domain.Voucher, error)
	DeleteVoucher(ctx context.Context, id string) error
	ListNews(ctx context.Context, publishedOnly bool) ([]domain.News, error)
	GetNews(ctx context.Context, id string) (*domain.News, error)
	CreateNews(ctx context.Context, news domain.News) (*domain.News, error)
	UpdateNews(ctx context.Context, news domain.News) (*domain.News, error)
	DeleteNews(ctx context.Context, id string) error
}

type AuditRepository interface {
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUser(ctx context.Context, user domain.UserAccount) error
}

type Repository interface {
	CatalogRepository
	LedgerRepository
	ContentRepository
	AuditRepository
	UserRepository
}
