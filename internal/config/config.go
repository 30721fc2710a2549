package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port                  string
	GRPCPort              string
	AllowedOrigin         string
	DatabaseDriver        string
	DatabaseURL           string
	AutoMigrate           bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	CacheTTLSeconds       int
	AuthSecret            string
	AccessTokenTTLMinutes int
	BootstrapAdminPass    string
	LowStockThreshold     int
	RestockHorizonDays    int
	TracesExporter        string
	ServiceName           string
}

// Load reads the environment. When CONFIG_FILE names a YAML file, its keys
// (the environment names, case-insensitive) supply values the environment
// leaves unset.
func Load() (Config, error) {
	src := source{}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		values, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		src.file = values
	}

	cfg := Config{
		Port:                  src.get("PORT", "8080"),
		GRPCPort:              src.get("GRPC_PORT", ""),
		AllowedOrigin:         src.get("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseDriver:        strings.ToLower(src.get("DATABASE_DRIVER", "postgres")),
		DatabaseURL:           src.get("DATABASE_URL", ""),
		AutoMigrate:           src.getBool("AUTO_MIGRATE", false),
		RedisAddr:             src.get("REDIS_ADDR", ""),
		RedisPassword:         src.get("REDIS_PASSWORD", ""),
		RedisDB:               src.getInt("REDIS_DB", 0, 0),
		CacheTTLSeconds:       src.getInt("CACHE_TTL_SECONDS", 60, 1),
		AuthSecret:            strings.TrimSpace(src.get("AUTH_SECRET", "")),
		AccessTokenTTLMinutes: src.getInt("ACCESS_TOKEN_TTL_MINUTES", 480, 1),
		BootstrapAdminPass:    src.get("BOOTSTRAP_ADMIN_PASSWORD", ""),
		LowStockThreshold:     src.getInt("LOW_STOCK_THRESHOLD", 10, 1),
		RestockHorizonDays:    src.getInt("RESTOCK_HORIZON_DAYS", 14, 1),
		TracesExporter:        strings.ToLower(src.get("OTEL_TRACES_EXPORTER", "none")),
		ServiceName:           src.get("SERVICE_NAME", "kopiadmin-backend"),
	}

	switch cfg.DatabaseDriver {
	case "postgres", "mysql":
	default:
		return Config{}, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) GRPCAddress() string {
	if c.GRPCPort == "" {
		return ""
	}
	return fmt.Sprintf(":%s", c.GRPCPort)
}

type source struct {
	file map[string]string
}

func readFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	parsed := map[string]any{}
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(parsed))
	for key, value := range parsed {
		if value == nil {
			continue
		}
		values[strings.ToUpper(strings.TrimSpace(key))] = fmt.Sprint(value)
	}
	return values, nil
}

func (s source) get(key string, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if val, ok := s.file[key]; ok && val != "" {
		return val
	}
	return fallback
}

func (s source) getInt(key string, fallback int, minVal int) int {
	val, err := strconv.Atoi(s.get(key, strconv.Itoa(fallback)))
	if err != nil || val < minVal {
		return fallback
	}
	return val
}

func (s source) getBool(key string, fallback bool) bool {
	val, err := strconv.ParseBool(s.get(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return val
}
