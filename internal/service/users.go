package service

import (
	"context"
	"fmt"
	"strings"

	"kopiadmin/backend/internal/domain"
	"kopiadmin/backend/internal/store"
)

func (s *Service) ListUsers(ctx context.Context) ([]domain.UserView, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if s.users == nil {
		return nil, store.ErrStoreUnavailable
	}
	return s.users.ListUsers(ctx), nil
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.UserView, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.UserView{}, err
	}
	if s.users == nil {
		return domain.UserView{}, store.ErrStoreUnavailable
	}

	user, err := s.users.CreateUser(ctx, req)
	if err != nil {
		return domain.UserView{}, err
	}
	s.logAudit(ctx, "user_create", "user", user.Username, "role="+user.Role)
	return user, nil
}

// UpdateUser changes a password or toggles an account. Admins cannot
// deactivate themselves.
func (s *Service) UpdateUser(ctx context.Context, username string, req domain.UserUpdateRequest) (domain.UserView, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.UserView{}, err
	}
	if s.users == nil {
		return domain.UserView{}, store.ErrStoreUnavailable
	}

	username = strings.ToLower(strings.TrimSpace(username))
	actor, _ := ActorFromContext(ctx)
	if req.Active != nil && !*req.Active && strings.EqualFold(actor.Username, username) {
		return domain.UserView{}, fmt.Errorf("%w: cannot deactivate your own account", store.ErrInvalidTransaction)
	}

	user, err := s.users.UpdateUser(ctx, username, req)
	if err != nil {
		return domain.UserView{}, err
	}

	detail := fmt.Sprintf("active=%t", user.Active)
	if req.Password != nil {
		detail += ",password_changed=true"
	}
	s.logAudit(ctx, "user_update", "user", user.Username, detail)
	return user, nil
}
