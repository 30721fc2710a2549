package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"kopiadmin/backend/internal/domain"
	"kopiadmin/backend/internal/store"
	"kopiadmin/backend/internal/xid"
)

const productColumns = `id, name, description, category_id, price, sale_price, stock_quantity, active, featured, image_url, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	var categoryID sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &categoryID, &p.Price, &p.SalePrice, &p.StockQuantity,
		&p.Active, &p.Featured, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, err
	}
	p.CategoryID = categoryID.String
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, store.ErrInvalidTransaction
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO categories (id, name, created_at) VALUES (?, ?, ?)
	`), category.ID, category.Name, category.CreatedAt)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: category %q exists", store.ErrConflict, category.Name)
		}
		return nil, err
	}
	created := category
	return &created, nil
}

func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if !filter.IncludeInactive {
		where = append(where, "active = ?")
		args = append(args, true)
	}
	if filter.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, filter.CategoryID)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		where = append(where, "LOWER(name) LIKE ?")
		args = append(args, "%"+search+"%")
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY name, id`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, s.q(`SELECT `+productColumns+` FROM products WHERE id = ?`), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || !product.Price.IsPositive() {
		return nil, store.ErrInvalidTransaction
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	product.StockQuantity = 0
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO products (id, name, description, category_id, price, sale_price, stock_quantity, active, featured, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?)
	`), product.ID, product.Name, product.Description, nullIfEmpty(product.CategoryID), product.Price, product.SalePrice,
		product.Active, product.Featured, product.ImageURL, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return nil, s.classifyProductErr(err, product)
	}
	created := product
	return &created, nil
}

// UpdateProduct writes every column except stock_quantity.
func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || !product.Price.IsPositive() {
		return nil, store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE products
		SET name = ?, description = ?, category_id = ?, price = ?, sale_price = ?, active = ?, featured = ?, image_url = ?, updated_at = ?
		WHERE id = ?
	`), product.Name, product.Description, nullIfEmpty(product.CategoryID), product.Price, product.SalePrice,
		product.Active, product.Featured, product.ImageURL, time.Now().UTC(), product.ID)
	if err != nil {
		return nil, s.classifyProductErr(err, product)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProduct(ctx, product.ID)
}

func (s *Store) classifyProductErr(err error, product domain.Product) error {
	switch {
	case s.dialect.IsUniqueViolation(err):
		return fmt.Errorf("%w: product %s exists", store.ErrConflict, product.ID)
	case s.dialect.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: unknown category %s", store.ErrInvalidTransaction, product.CategoryID)
	default:
		return err
	}
}
