package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"kopiadmin/backend/internal/domain"
	"kopiadmin/backend/internal/ledger"
	"kopiadmin/backend/internal/store"
	"kopiadmin/backend/internal/xid"
)

// Store keeps everything behind one RWMutex, so every ledger write is
// serialized across all products.
type Store struct {
	mu              sync.RWMutex
	categories      map[string]domain.Category
	products        map[string]domain.Product
	transactions    []domain.InventoryTransaction
	vouchersByID    map[string]domain.Voucher
	newsByID        map[string]domain.News
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

var _ store.Repository = (*Store)(nil)

// New returns an empty store with no users.
func New() *Store {
	return &Store{
		categories:      make(map[string]domain.Category),
		products:        make(map[string]domain.Product),
		transactions:    make([]domain.InventoryTransaction, 0, 256),
		vouchersByID:    make(map[string]domain.Voucher),
		newsByID:        make(map[string]domain.News),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the dev/demo accounts. Passwords come from
// SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD, falling back to dev defaults.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with a small coffee and tea catalog whose opening
// stock is booked as one IN receipt.
func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()

	now := time.Now().UTC()
	for _, c := range []domain.Category{
		{ID: "cat-coffee", Name: "Coffee Beans"},
		{ID: "cat-tea", Name: "Tea"},
		{ID: "cat-gear", Name: "Brewing Gear"},
	} {
		c.CreatedAt = now
		s.categories[c.ID] = c
	}

	seed := []struct {
		product domain.Product
		stock   int
	}{
		{domain.Product{ID: "prod-gayo-250", Name: "Arabica Gayo 250g", CategoryID: "cat-coffee", Price: decimal.NewFromInt(85000), Featured: true}, 40},
		{domain.Product{ID: "prod-toraja-250", Name: "Arabica Toraja 250g", CategoryID: "cat-coffee", Price: decimal.NewFromInt(92000)}, 25},
		{domain.Product{ID: "prod-robusta-1k", Name: "Robusta Lampung 1kg", CategoryID: "cat-coffee", Price: decimal.NewFromInt(165000), SalePrice: decimal.NewNullDecimal(decimal.NewFromInt(149000))}, 12},
		{domain.Product{ID: "prod-jasmine-100", Name: "Jasmine Green Tea 100g", CategoryID: "cat-tea", Price: decimal.NewFromInt(48000)}, 30},
		{domain.Product{ID: "prod-earlgrey-100", Name: "Earl Grey 100g", CategoryID: "cat-tea", Price: decimal.NewFromInt(52000)}, 8},
		{domain.Product{ID: "prod-v60-02", Name: "V60 Dripper 02", CategoryID: "cat-gear", Price: decimal.NewFromInt(275000)}, 6},
	}

	movements := make([]domain.StockMovement, 0, len(seed))
	for _, item := range seed {
		p := item.product
		p.Active = true
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
		movements = append(movements, domain.StockMovement{
			ProductID: p.ID,
			Type:      domain.TransactionIn,
			Quantity:  item.stock,
			Note:      "opening stock",
		})
	}
	if _, err := s.applyLocked(domain.MovementBatch{
		ReceiptID: "rcp-opening",
		CreatedBy: "system",
		CreatedAt: now,
		Movements: movements,
	}); err != nil {
		log.Fatalf("[memory-store] failed to book opening stock: %v", err)
	}
	return s
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		categories = append(categories, c)
	}
	slices.SortFunc(categories, func(a, b domain.Category) int {
		return strings.Compare(a.Name, b.Name)
	})
	return categories, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, store.ErrInvalidTransaction
	}
	for _, existing := range s.categories {
		if strings.EqualFold(existing.Name, category.Name) {
			return nil, fmt.Errorf("%w: category %q exists", store.ErrConflict, category.Name)
		}
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	s.categories[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active && !filter.IncludeInactive {
			continue
		}
		if filter.CategoryID != "" && p.CategoryID != filter.CategoryID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Name == b.Name {
			return strings.Compare(a.ID, b.ID)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateProductLocked(product); err != nil {
		return nil, err
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, fmt.Errorf("%w: product %s exists", store.ErrConflict, product.ID)
	}

	now := time.Now().UTC()
	product.StockQuantity = 0
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	created := product
	return &created, nil
}

// UpdateProduct never touches stock_quantity.
func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if err := s.validateProductLocked(product); err != nil {
		return nil, err
	}

	product.StockQuantity = current.StockQuantity
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) validateProductLocked(product domain.Product) error {
	if strings.TrimSpace(product.Name) == "" || !product.Price.IsPositive() {
		return store.ErrInvalidTransaction
	}
	if product.CategoryID != "" {
		if _, ok := s.categories[product.CategoryID]; !ok {
			return fmt.Errorf("%w: unknown category %s", store.ErrInvalidTransaction, product.CategoryID)
		}
	}
	return nil
}

func (s *Store) ApplyMovements(_ context.Context, batch domain.MovementBatch) ([]domain.InventoryTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyLocked(batch)
}

// applyLocked validates and computes the whole batch before mutating
// anything, so a failing line leaves the store untouched.
func (s *Store) applyLocked(batch domain.MovementBatch) ([]domain.InventoryTransaction, error) {
	if len(batch.Movements) == 0 {
		return nil, fmt.Errorf("%w: empty batch", store.ErrInvalidTransaction)
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}

	running := make(map[string]int, len(batch.Movements))
	entries := make([]domain.InventoryTransaction, 0, len(batch.Movements))
	for _, raw := range batch.Movements {
		m, err := ledger.NormalizeMovement(raw)
		if err != nil {
			return nil, err
		}
		product, exists := s.products[m.ProductID]
		if !exists {
			return nil, fmt.Errorf("%w: %s", store.ErrProductNotFound, m.ProductID)
		}
		before, seen := running[m.ProductID]
		if !seen {
			before = product.StockQuantity
		}
		result, err := ledger.Compute(m.Direction, before, m.Quantity)
		if err != nil {
			return nil, err
		}
		running[m.ProductID] = result.StockAfter
		entries = append(entries, ledger.Entry(batch, m, product.Name, before, result))
	}

	for productID, stock := range running {
		product := s.products[productID]
		product.StockQuantity = stock
		product.UpdatedAt = batch.CreatedAt
		s.products[productID] = product
	}
	s.transactions = append(s.transactions, entries...)
	return slices.Clone(entries), nil
}

func (s *Store) ListInventoryTransactions(_ context.Context, filter domain.TransactionFilter) ([]domain.InventoryTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryTransaction, 0, 64)
	for _, txn := range s.transactions {
		if filter.ProductID != "" && txn.ProductID != filter.ProductID {
			continue
		}
		if filter.Type != "" && txn.Type != filter.Type {
			continue
		}
		if filter.ReceiptID != "" && txn.ReceiptID != filter.ReceiptID {
			continue
		}
		if filter.From != nil && txn.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !txn.CreatedAt.Before(*filter.To) {
			continue
		}
		result = append(result, txn)
	}

	slices.SortFunc(result, func(a, b domain.InventoryTransaction) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}
