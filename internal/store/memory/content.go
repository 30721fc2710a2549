package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"kopiadmin/backend/internal/domain"
	"kopiadmin/backend/internal/store"
	"kopiadmin/backend/internal/xid"
)

func (s *Store) ListVouchers(_ context.Context) ([]domain.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vouchers := make([]domain.Voucher, 0, len(s.vouchersByID))
	for _, v := range s.vouchersByID {
		vouchers = append(vouchers, cloneVoucher(v))
	}
	slices.SortFunc(vouchers, func(a, b domain.Voucher) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Code, b.Code)
	})
	return vouchers, nil
}

func (s *Store) GetVoucher(_ context.Context, id string) (*domain.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, exists := s.vouchersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	out := cloneVoucher(v)
	return &out, nil
}

func (s *Store) CreateVoucher(_ context.Context, voucher domain.Voucher) (*domain.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(voucher.Code) == "" {
		return nil, store.ErrInvalidTransaction
	}
	for _, existing := range s.vouchersByID {
		if strings.EqualFold(existing.Code, voucher.Code) {
			return nil, fmt.Errorf("%w: voucher code %s exists", store.ErrConflict, voucher.Code)
		}
	}
	if voucher.ID == "" {
		voucher.ID = xid.New("vch")
	}
	now := time.Now().UTC()
	voucher.CreatedAt = now
	voucher.UpdatedAt = now
	s.vouchersByID[voucher.ID] = cloneVoucher(voucher)
	out := cloneVoucher(voucher)
	return &out, nil
}

func (s *Store) UpdateVoucher(_ context.Context, voucher domain.Voucher) (*domain.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.vouchersByID[voucher.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	voucher.Code = current.Code
	voucher.CreatedAt = current.CreatedAt
	voucher.UpdatedAt = time.Now().UTC()
	s.vouchersByID[voucher.ID] = cloneVoucher(voucher)
	out := cloneVoucher(voucher)
	return &out, nil
}

func (s *Store) DeleteVoucher(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.vouchersByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.vouchersByID, id)
	return nil
}

func (s *Store) ListNews(_ context.Context, publishedOnly bool) ([]domain.News, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.News, 0, len(s.newsByID))
	for _, n := range s.newsByID {
		if publishedOnly && !n.Published {
			continue
		}
		items = append(items, cloneNews(n))
	}
	slices.SortFunc(items, func(a, b domain.News) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return items, nil
}

func (s *Store) GetNews(_ context.Context, id string) (*domain.News, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, exists := s.newsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	out := cloneNews(n)
	return &out, nil
}

func (s *Store) CreateNews(_ context.Context, news domain.News) (*domain.News, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(news.Title) == "" || strings.TrimSpace(news.Slug) == "" {
		return nil, store.ErrInvalidTransaction
	}
	if err := s.checkSlugLocked(news.Slug, ""); err != nil {
		return nil, err
	}
	if news.ID == "" {
		news.ID = xid.New("news")
	}
	now := time.Now().UTC()
	news.CreatedAt = now
	news.UpdatedAt = now
	s.newsByID[news.ID] = cloneNews(news)
	out := cloneNews(news)
	return &out, nil
}

func (s *Store) UpdateNews(_ context.Context, news domain.News) (*domain.News, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.newsByID[news.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if err := s.checkSlugLocked(news.Slug, news.ID); err != nil {
		return nil, err
	}
	news.CreatedAt = current.CreatedAt
	news.UpdatedAt = time.Now().UTC()
	s.newsByID[news.ID] = cloneNews(news)
	out := cloneNews(news)
	return &out, nil
}

func (s *Store) DeleteNews(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.newsByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.newsByID, id)
	return nil
}

func (s *Store) checkSlugLocked(slug string, selfID string) error {
	for _, existing := range s.newsByID {
		if existing.ID != selfID && existing.Slug == slug {
			return fmt.Errorf("%w: slug %s exists", store.ErrConflict, slug)
		}
	}
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if _, exists := s.usersByUsername[username]; exists {
		return fmt.Errorf("%w: user %s exists", store.ErrConflict, username)
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	current, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	current.Password = user.Password
	current.Active = user.Active
	if user.Role != "" {
		current.Role = user.Role
	}
	s.usersByUsername[username] = current
	return nil
}

func cloneVoucher(src domain.Voucher) domain.Voucher {
	out := src
	if src.EndsAt != nil {
		endsAt := *src.EndsAt
		out.EndsAt = &endsAt
	}
	return out
}

func cloneNews(src domain.News) domain.News {
	out := src
	if src.PublishedAt != nil {
		publishedAt := *src.PublishedAt
		out.PublishedAt = &publishedAt
	}
	return out
}
