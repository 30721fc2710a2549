package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"kopiadmin/backend/internal/cache"
	"kopiadmin/backend/internal/domain"
	"kopiadmin/backend/internal/ledger"
	"kopiadmin/backend/internal/store"
)

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return readThrough(ctx, s, cache.KeyCategoryList, func() ([]domain.Category, error) {
		return s.repo.ListCategories(ctx)
	})
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Category{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 120 {
		return domain.Category{}, fmt.Errorf("%w: name is required", store.ErrInvalidTransaction)
	}

	created, err := s.repo.CreateCategory(ctx, domain.Category{Name: name})
	if err != nil {
		return domain.Category{}, err
	}
	s.invalidate(ctx, cache.KeysFor(cache.EntityCategory, created.ID)...)
	s.logAudit(ctx, "category_create", "category", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	filter.CategoryID = strings.TrimSpace(filter.CategoryID)
	filter.Search = strings.ToLower(strings.TrimSpace(filter.Search))
	key := cache.ProductListKey(filter.CategoryID, filter.Search, filter.IncludeInactive)
	return readThrough(ctx, s, key, func() ([]domain.Product, error) {
		return s.repo.ListProducts(ctx, filter)
	})
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrNotFound
	}
	return readThrough(ctx, s, cache.ProductKey(id), func() (domain.Product, error) {
		p, err := s.repo.GetProduct(ctx, id)
		if err != nil {
			return domain.Product{}, err
		}
		return *p, nil
	})
}

// CreateProduct stores the product with zero stock; a positive initial stock
// is booked as an IN receipt so the ledger stays the source of truth.
func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		CategoryID:  strings.TrimSpace(req.CategoryID),
		Price:       req.Price,
		SalePrice:   req.SalePrice,
		Featured:    req.Featured,
		ImageURL:    strings.TrimSpace(req.ImageURL),
	}
	if err := validateProduct(product); err != nil {
		return domain.Product{}, err
	}
	if req.InitialStock < 0 || req.InitialStock > ledger.MaxQuantity {
		return domain.Product{}, fmt.Errorf("%w: initial_stock must be between 0 and %d", store.ErrInvalidQuantity, ledger.MaxQuantity)
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidate(ctx, cache.KeysFor(cache.EntityProduct, created.ID)...)
	s.logAudit(ctx, "product_create", "product", created.ID,
		fmt.Sprintf("name=%s,price=%s,stock=%d", created.Name, created.Price.String(), req.InitialStock))

	// A store failure here leaves the product in place with zero stock and
	// no ledger rows; the caller can retry the stock as a normal IN receipt.
	if req.InitialStock > 0 {
		if _, err := s.RecordBatch(ctx, domain.TransactionIn, domain.InventoryBatchRequest{
			Note:  "initial stock",
			Lines: []domain.InventoryLineRequest{{ProductID: created.ID, Quantity: json.Number(fmt.Sprint(req.InitialStock))}},
		}); err != nil {
			return domain.Product{}, err
		}
		return s.GetProduct(ctx, created.ID)
	}
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.CategoryID != nil {
		updated.CategoryID = strings.TrimSpace(*req.CategoryID)
	}
	if req.Price != nil {
		updated.Price = *req.Price
	}
	if req.SalePrice != nil {
		updated.SalePrice = decimal.NewNullDecimal(*req.SalePrice)
	}
	if req.ClearSalePrice {
		updated.SalePrice = decimal.NullDecimal{}
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	if req.Featured != nil {
		updated.Featured = *req.Featured
	}
	if req.ImageURL != nil {
		updated.ImageURL = strings.TrimSpace(*req.ImageURL)
	}
	if err := validateProduct(updated); err != nil {
		return domain.Product{}, err
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidate(ctx, cache.KeysFor(cache.EntityProduct, saved.ID)...)

	detail := fmt.Sprintf("name=%s,price=%s,active=%t", saved.Name, saved.Price.String(), saved.Active)
	if !existing.Price.Equal(saved.Price) {
		detail += fmt.Sprintf(",old_price=%s", existing.Price.String())
	}
	s.logAudit(ctx, "product_update", "product", saved.ID, detail)
	return *saved, nil
}

func validateProduct(p domain.Product) error {
	if p.Name == "" || len(p.Name) > 200 {
		return fmt.Errorf("%w: name is required", store.ErrInvalidTransaction)
	}
	if !p.Price.IsPositive() {
		return fmt.Errorf("%w: price must be greater than zero", store.ErrInvalidTransaction)
	}
	if p.SalePrice.Valid {
		if p.SalePrice.Decimal.IsNegative() || p.SalePrice.Decimal.GreaterThan(p.Price) {
			return fmt.Errorf("%w: sale_price must be between 0 and price", store.ErrInvalidTransaction)
		}
	}
	return nil
}
