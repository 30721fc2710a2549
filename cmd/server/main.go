package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"

	"kopiadmin/backend/internal/auth"
	"kopiadmin/backend/internal/cache"
	"kopiadmin/backend/internal/config"
	"kopiadmin/backend/internal/domain"
	"kopiadmin/backend/internal/grpcapi"
	"kopiadmin/backend/internal/httpapi"
	"kopiadmin/backend/internal/service"
	"kopiadmin/backend/internal/store"
	"kopiadmin/backend/internal/store/memory"
	mysqlstore "kopiadmin/backend/internal/store/mysql"
	pgstore "kopiadmin/backend/internal/store/postgres"
	"kopiadmin/backend/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}

	shutdownTracing, err := telemetry.Setup(telemetry.Options{ServiceName: cfg.ServiceName, Exporter: cfg.TracesExporter})
	if err != nil {
		log.Fatalf("telemetry setup failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	repo, closers, err := openRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("repository unavailable: %v", err)
	}

	viewCache := cache.ViewCache(cache.NoopViewCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisViewCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			viewCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	manager := auth.NewManager(ctx, cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	if err := ensureBootstrapAdmin(ctx, manager, cfg.BootstrapAdminPass); err != nil {
		log.Fatalf("bootstrap admin failed: %v", err)
	}

	svc := service.New(repo, service.Config{
		Cache:             viewCache,
		CacheTTL:          time.Duration(cfg.CacheTTLSeconds) * time.Second,
		LowStockThreshold: cfg.LowStockThreshold,
		RestockHorizon:    cfg.RestockHorizonDays,
		Users:             manager,
	})
	api := httpapi.New(svc, manager, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           otelhttp.NewHandler(api.Handler(), "kopiadmin-http"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("kopiadmin backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	var grpcServer *grpc.Server
	if addr := cfg.GRPCAddress(); addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			log.Fatalf("grpc listen failed: %v", err)
		}
		grpcServer = grpcapi.NewGRPCServer(svc, manager)
		go func() {
			log.Printf("gRPC inventory service listening on %s", addr)
			if err := grpcServer.Serve(lis); err != nil {
				log.Printf("grpc server error: %v", err)
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown error: %v", err)
	}

	log.Println("server stopped")
}

// openRepository picks the SQL store named by DATABASE_DRIVER when
// DATABASE_URL is set and the seeded in-memory store otherwise. A configured
// database that cannot be reached is fatal; there is no silent fallback.
func openRepository(ctx context.Context, cfg config.Config) (store.Repository, []func() error, error) {
	if cfg.DatabaseURL == "" {
		log.Println("repository: in-memory")
		return memory.NewSeeded(), nil, nil
	}

	type migratable interface {
		store.Repository
		Migrate(ctx context.Context) error
		Close() error
	}

	var (
		repo migratable
		err  error
	)
	switch cfg.DatabaseDriver {
	case "postgres":
		repo, err = pgstore.New(ctx, cfg.DatabaseURL)
	case "mysql":
		repo, err = mysqlstore.New(ctx, cfg.DatabaseURL)
	default:
		return nil, nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", cfg.DatabaseDriver, err)
	}

	if cfg.AutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			_ = repo.Close()
			return nil, nil, fmt.Errorf("%s migrate: %w", cfg.DatabaseDriver, err)
		}
		log.Printf("repository: %s schema migrated", cfg.DatabaseDriver)
	}
	log.Printf("repository: %s", cfg.DatabaseDriver)
	return repo, []func() error{repo.Close}, nil
}

// ensureBootstrapAdmin creates the first admin on an empty user table.
func ensureBootstrapAdmin(ctx context.Context, manager *auth.Manager, password string) error {
	if len(manager.ListUsers(ctx)) > 0 {
		return nil
	}
	if password == "" {
		log.Println("[auth] WARN: no users exist; set BOOTSTRAP_ADMIN_PASSWORD to create the first admin")
		return nil
	}
	_, err := manager.CreateUser(ctx, domain.UserCreateRequest{
		Username: "admin",
		Password: password,
		Role:     domain.RoleAdmin,
	})
	if err == nil {
		log.Println("[auth] bootstrap admin account created")
	}
	return err
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.BootstrapAdminPass != "" && len(cfg.BootstrapAdminPass) < 10 {
		return fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD must be at least 10 characters")
	}
	return nil
}
