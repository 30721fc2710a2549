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

const voucherColumns = `id, code, type, value, min_order, max_uses, starts_at, ends_at, active, created_at, updated_at`

func scanVoucher(row rowScanner) (domain.Voucher, error) {
	var v domain.Voucher
	var endsAt sql.NullTime
	if err := row.Scan(&v.ID, &v.Code, &v.Type, &v.Value, &v.MinOrder, &v.MaxUses, &v.StartsAt, &endsAt,
		&v.Active, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return v, err
	}
	v.StartsAt = v.StartsAt.UTC()
	v.EndsAt = timePtr(endsAt)
	v.CreatedAt = v.CreatedAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()
	return v, nil
}

func (s *Store) ListVouchers(ctx context.Context) ([]domain.Voucher, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+voucherColumns+` FROM vouchers ORDER BY created_at DESC, code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vouchers := make([]domain.Voucher, 0, 16)
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

func (s *Store) GetVoucher(ctx context.Context, id string) (*domain.Voucher, error) {
	v, err := scanVoucher(s.db.QueryRowContext(ctx, s.q(`SELECT `+voucherColumns+` FROM vouchers WHERE id = ?`), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (s *Store) CreateVoucher(ctx context.Context, voucher domain.Voucher) (*domain.Voucher, error) {
	if strings.TrimSpace(voucher.Code) == "" {
		return nil, store.ErrInvalidTransaction
	}
	if voucher.ID == "" {
		voucher.ID = xid.New("vch")
	}
	now := time.Now().UTC()
	voucher.CreatedAt = now
	voucher.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO vouchers (`+voucherColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), voucher.ID, voucher.Code, voucher.Type, voucher.Value, voucher.MinOrder, voucher.MaxUses,
		voucher.StartsAt.UTC(), nullTime(voucher.EndsAt), voucher.Active, voucher.CreatedAt, voucher.UpdatedAt)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: voucher code %s exists", store.ErrConflict, voucher.Code)
		}
		return nil, err
	}
	created := voucher
	return &created, nil
}

func (s *Store) UpdateVoucher(ctx context.Context, voucher domain.Voucher) (*domain.Voucher, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE vouchers
		SET type = ?, value = ?, min_order = ?, max_uses = ?, starts_at = ?, ends_at = ?, active = ?, updated_at = ?
		WHERE id = ?
	`), voucher.Type, voucher.Value, voucher.MinOrder, voucher.MaxUses, voucher.StartsAt.UTC(),
		nullTime(voucher.EndsAt), voucher.Active, time.Now().UTC(), voucher.ID)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return s.GetVoucher(ctx, voucher.ID)
}

func (s *Store) DeleteVoucher(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM vouchers WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

const newsColumns = `id, title, slug, body, image_url, published, published_at, created_at, updated_at`

func scanNews(row rowScanner) (domain.News, error) {
	var n domain.News
	var publishedAt sql.NullTime
	if err := row.Scan(&n.ID, &n.Title, &n.Slug, &n.Body, &n.ImageURL, &n.Published, &publishedAt,
		&n.CreatedAt, &n.UpdatedAt); err != nil {
		return n, err
	}
	n.PublishedAt = timePtr(publishedAt)
	n.CreatedAt = n.CreatedAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()
	return n, nil
}

func (s *Store) ListNews(ctx context.Context, publishedOnly bool) ([]domain.News, error) {
	query := `SELECT ` + newsColumns + ` FROM news`
	args := []any{}
	if publishedOnly {
		query += ` WHERE published = ?`
		args = append(args, true)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.News, 0, 16)
	for rows.Next() {
		n, err := scanNews(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (s *Store) GetNews(ctx context.Context, id string) (*domain.News, error) {
	n, err := scanNews(s.db.QueryRowContext(ctx, s.q(`SELECT `+newsColumns+` FROM news WHERE id = ?`), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (s *Store) CreateNews(ctx context.Context, news domain.News) (*domain.News, error) {
	if strings.TrimSpace(news.Title) == "" || strings.TrimSpace(news.Slug) == "" {
		return nil, store.ErrInvalidTransaction
	}
	if news.ID == "" {
		news.ID = xid.New("news")
	}
	now := time.Now().UTC()
	news.CreatedAt = now
	news.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO news (`+newsColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), news.ID, news.Title, news.Slug, news.Body, news.ImageURL, news.Published, nullTime(news.PublishedAt),
		news.CreatedAt, news.UpdatedAt)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: slug %s exists", store.ErrConflict, news.Slug)
		}
		return nil, err
	}
	created := news
	return &created, nil
}

func (s *Store) UpdateNews(ctx context.Context, news domain.News) (*domain.News, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE news
		SET title = ?, slug = ?, body = ?, image_url = ?, published = ?, published_at = ?, updated_at = ?
		WHERE id = ?
	`), news.Title, news.Slug, news.Body, news.ImageURL, news.Published, nullTime(news.PublishedAt),
		time.Now().UTC(), news.ID)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: slug %s exists", store.ErrConflict, news.Slug)
		}
		return nil, err
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return s.GetNews(ctx, news.ID)
}

func (s *Store) DeleteNews(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM news WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
