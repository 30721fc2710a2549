package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kopiadmin/backend/internal/cache"
	"kopiadmin/backend/internal/domain"
	"kopiadmin/backend/internal/store"
)

var (
	voucherCodePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,40}$`)
	slugStrip          = regexp.MustCompile(`[^a-z0-9]+`)
	hundred            = decimal.NewFromInt(100)
)

func (s *Service) ListVouchers(ctx context.Context) ([]domain.Voucher, error) {
	return readThrough(ctx, s, cache.KeyVoucherList, func() ([]domain.Voucher, error) {
		return s.repo.ListVouchers(ctx)
	})
}

func (s *Service) GetVoucher(ctx context.Context, id string) (domain.Voucher, error) {
	return readThrough(ctx, s, cache.VoucherKey(id), func() (domain.Voucher, error) {
		v, err := s.repo.GetVoucher(ctx, id)
		if err != nil {
			return domain.Voucher{}, err
		}
		return *v, nil
	})
}

func (s *Service) CreateVoucher(ctx context.Context, req domain.VoucherCreateRequest) (domain.Voucher, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Voucher{}, err
	}

	voucher := domain.Voucher{
		Code:     strings.ToUpper(strings.TrimSpace(req.Code)),
		Type:     strings.ToLower(strings.TrimSpace(req.Type)),
		Value:    req.Value,
		MinOrder: req.MinOrder,
		MaxUses:  req.MaxUses,
		StartsAt: s.now(),
		EndsAt:   req.EndsAt,
		Active:   true,
	}
	if req.StartsAt != nil {
		voucher.StartsAt = req.StartsAt.UTC()
	}
	if !voucherCodePattern.MatchString(voucher.Code) {
		return domain.Voucher{}, fmt.Errorf("%w: code must be 3-40 letters, digits, _ or -", store.ErrInvalidTransaction)
	}
	if err := validateVoucher(voucher); err != nil {
		return domain.Voucher{}, err
	}

	created, err := s.repo.CreateVoucher(ctx, voucher)
	if err != nil {
		return domain.Voucher{}, err
	}
	s.invalidate(ctx, cache.KeysFor(cache.EntityVoucher, created.ID)...)
	s.logAudit(ctx, "voucher_create", "voucher", created.ID, fmt.Sprintf("code=%s,type=%s,value=%s", created.Code, created.Type, created.Value.String()))
	return *created, nil
}

func (s *Service) UpdateVoucher(ctx context.Context, id string, req domain.VoucherUpdateRequest) (domain.Voucher, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Voucher{}, err
	}
	existing, err := s.repo.GetVoucher(ctx, id)
	if err != nil {
		return domain.Voucher{}, err
	}

	updated := *existing
	if req.Value != nil {
		updated.Value = *req.Value
	}
	if req.MinOrder != nil {
		updated.MinOrder = *req.MinOrder
	}
	if req.MaxUses != nil {
		updated.MaxUses = *req.MaxUses
	}
	if req.EndsAt != nil {
		endsAt := req.EndsAt.UTC()
		updated.EndsAt = &endsAt
	}
	if req.ClearEnds {
		updated.EndsAt = nil
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	if err := validateVoucher(updated); err != nil {
		return domain.Voucher{}, err
	}

	saved, err := s.repo.UpdateVoucher(ctx, updated)
	if err != nil {
		return domain.Voucher{}, err
	}
	s.invalidate(ctx, cache.KeysFor(cache.EntityVoucher, saved.ID)...)
	s.logAudit(ctx, "voucher_update", "voucher", saved.ID, fmt.Sprintf("value=%s,active=%t", saved.Value.String(), saved.Active))
	return *saved, nil
}

func (s *Service) DeleteVoucher(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteVoucher(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, cache.KeysFor(cache.EntityVoucher, id)...)
	s.logAudit(ctx, "voucher_delete", "voucher", id, "")
	return nil
}

func validateVoucher(v domain.Voucher) error {
	switch v.Type {
	case domain.VoucherTypePercent:
		if !v.Value.IsPositive() || v.Value.GreaterThan(hundred) {
			return fmt.Errorf("%w: percent value must be in (0, 100]", store.ErrInvalidTransaction)
		}
	case domain.VoucherTypeFlat:
		if !v.Value.IsPositive() {
			return fmt.Errorf("%w: flat value must be greater than zero", store.ErrInvalidTransaction)
		}
	default:
		return fmt.Errorf("%w: type must be percent or flat", store.ErrInvalidTransaction)
	}
	if v.MinOrder.IsNegative() || v.MaxUses < 0 {
		return fmt.Errorf("%w: min_order and max_uses must not be negative", store.ErrInvalidTransaction)
	}
	if v.EndsAt != nil && !v.EndsAt.After(v.StartsAt) {
		return fmt.Errorf("%w: ends_at must be after starts_at", store.ErrInvalidTransaction)
	}
	return nil
}

func (s *Service) ListNews(ctx context.Context, publishedOnly bool) ([]domain.News, error) {
	return readThrough(ctx, s, cache.NewsListKey(publishedOnly), func() ([]domain.News, error) {
		return s.repo.ListNews(ctx, publishedOnly)
	})
}

func (s *Service) GetNews(ctx context.Context, id string) (domain.News, error) {
	return readThrough(ctx, s, cache.NewsKey(id), func() (domain.News, error) {
		n, err := s.repo.GetNews(ctx, id)
		if err != nil {
			return domain.News{}, err
		}
		return *n, nil
	})
}

// CreateNews derives the slug from the title, suffixing -2, -3, ... when
// it is taken.
func (s *Service) CreateNews(ctx context.Context, req domain.NewsCreateRequest) (domain.News, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.News{}, err
	}

	news := domain.News{
		Title:     strings.TrimSpace(req.Title),
		Body:      strings.TrimSpace(req.Body),
		ImageURL:  strings.TrimSpace(req.ImageURL),
		Published: req.Published,
	}
	if news.Title == "" || news.Body == "" {
		return domain.News{}, fmt.Errorf("%w: title and body are required", store.ErrInvalidTransaction)
	}
	if news.Published {
		now := s.now()
		news.PublishedAt = &now
	}

	base := Slugify(news.Title)
	var created *domain.News
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		news.Slug = base
		if attempt > 1 {
			news.Slug = fmt.Sprintf("%s-%d", base, attempt)
		}
		created, err = s.repo.CreateNews(ctx, news)
		if !errors.Is(err, store.ErrConflict) {
			break
		}
	}
	if err != nil {
		return domain.News{}, err
	}

	s.invalidate(ctx, cache.KeysFor(cache.EntityNews, created.ID)...)
	s.logAudit(ctx, "news_create", "news", created.ID, "slug="+created.Slug)
	return *created, nil
}

func (s *Service) UpdateNews(ctx context.Context, id string, req domain.NewsUpdateRequest) (domain.News, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.News{}, err
	}
	existing, err := s.repo.GetNews(ctx, id)
	if err != nil {
		return domain.News{}, err
	}

	updated := *existing
	if req.Title != nil {
		updated.Title = strings.TrimSpace(*req.Title)
	}
	if req.Body != nil {
		updated.Body = strings.TrimSpace(*req.Body)
	}
	if req.ImageURL != nil {
		updated.ImageURL = strings.TrimSpace(*req.ImageURL)
	}
	if req.Published != nil {
		updated.Published = *req.Published
		if updated.Published && updated.PublishedAt == nil {
			now := s.now()
			updated.PublishedAt = &now
		}
	}
	if updated.Title == "" || updated.Body == "" {
		return domain.News{}, fmt.Errorf("%w: title and body are required", store.ErrInvalidTransaction)
	}

	saved, err := s.repo.UpdateNews(ctx, updated)
	if err != nil {
		return domain.News{}, err
	}
	s.invalidate(ctx, cache.KeysFor(cache.EntityNews, saved.ID)...)
	s.logAudit(ctx, "news_update", "news", saved.ID, fmt.Sprintf("published=%t", saved.Published))
	return *saved, nil
}

func (s *Service) DeleteNews(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteNews(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, cache.KeysFor(cache.EntityNews, id)...)
	s.logAudit(ctx, "news_delete", "news", id, "")
	return nil
}

func Slugify(title string) string {
	slug := strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(slug) > 200 {
		slug = strings.TrimRight(slug[:200], "-")
	}
	if slug == "" {
		slug = fmt.Sprintf("news-%d", time.Now().UnixNano())
	}
	return slug
}
