package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kopiadmin/backend/internal/cache"
	"kopiadmin/backend/internal/domain"
	"kopiadmin/backend/internal/restock"
	"kopiadmin/backend/internal/store"
	"kopiadmin/backend/internal/xid"
)

var ErrForbidden = errors.New("admin role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// UserManager owns dashboard accounts; the auth manager satisfies it.
type UserManager interface {
	CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.UserView, error)
	ListUsers(ctx context.Context) []domain.UserView
	UpdateUser(ctx context.Context, username string, req domain.UserUpdateRequest) (domain.UserView, error)
}

type Config struct {
	Cache             cache.ViewCache
	CacheTTL          time.Duration
	LowStockThreshold int
	RestockHorizon    int
	Users             UserManager
}

type Service struct {
	repo              store.Repository
	cache             cache.ViewCache
	cacheTTL          time.Duration
	lowStockThreshold int
	users             UserManager
	restock           *restock.Engine
	tracer            trace.Tracer
	now               func() time.Time
}

func New(repo store.Repository, cfg Config) *Service {
	if cfg.Cache == nil {
		cfg.Cache = cache.NoopViewCache{}
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 60 * time.Second
	}
	if cfg.LowStockThreshold <= 0 {
		cfg.LowStockThreshold = 10
	}

	return &Service{
		repo:              repo,
		cache:             cfg.Cache,
		cacheTTL:          cfg.CacheTTL,
		lowStockThreshold: cfg.LowStockThreshold,
		users:             cfg.Users,
		restock:           restock.NewEngine(cfg.RestockHorizon),
		tracer:            otel.Tracer("kopiadmin/backend/internal/service"),
		now:               func() time.Time { return time.Now().UTC() },
	}
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// readThrough serves key from the view cache, loading and storing it on a
// miss. Cache failures are logged and never fail the read.
func readThrough[T any](ctx context.Context, s *Service, key string, load func() (T, error)) (T, error) {
	var cached T
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		log.Printf("[cache] WARN: get %s: %v", key, err)
	}
	if hit {
		return cached, nil
	}

	value, err := load()
	if err != nil {
		return value, err
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		log.Printf("[cache] WARN: set %s: %v", key, err)
	}
	return value, nil
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		log.Printf("[cache] WARN: invalidate %s: %v", strings.Join(keys, ","), err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidTransaction
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
