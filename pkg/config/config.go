// Package config loads application configuration from ATRIUM_* environment
// variables with validated defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/canopysoft/atrium/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Session       SessionConfig
	SSO           SSOConfig
	Authz         AuthzConfig
	Observability ObservabilityConfig
	Audit         AuditConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// SessionConfig holds Redis session store configuration
type SessionConfig struct {
	RedisURL      string
	RedisPassword string
	TTL           time.Duration
}

// SSOConfig holds OIDC configuration
type SSOConfig struct {
	Enabled      bool
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	TenantClaim  string
	RolesClaim   string
}

// AuthzConfig holds permission and route table configuration
type AuthzConfig struct {
	// RouteTablePath optionally replaces the built-in route table with a
	// YAML file
	RouteTablePath string
	// CatalogPath optionally replaces the built-in permission catalog
	CatalogPath string
	// SnapshotTTL bounds how stale a cached effective-permission snapshot
	// may be
	SnapshotTTL time.Duration
	CacheSize   int
	DenialPath  string
	// EditSessionTTL bounds how long an abandoned role edit stays open
	EditSessionTTL time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// AuditConfig holds audit sink configuration
type AuditConfig struct {
	// ToDatabase writes audit events to the audit_logs table
	ToDatabase bool
	// FilePath, when set, also writes rotated JSON-lines audit files
	// under that directory
	FilePath string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("ATRIUM_HOST", "0.0.0.0"),
			Port:            getEnv("ATRIUM_PORT", "8080"),
			ReadTimeout:     getEnvDuration("ATRIUM_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("ATRIUM_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("ATRIUM_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("ATRIUM_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("ATRIUM_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("ATRIUM_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("ATRIUM_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("ATRIUM_POSTGRES_IDLE_CONNS", 5),
			ConnLifetime: getEnvDuration("ATRIUM_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		},
		Session: SessionConfig{
			RedisURL:      getEnv("ATRIUM_REDIS_URL", "redis://localhost:6379"),
			RedisPassword: getEnv("ATRIUM_REDIS_PASSWORD", ""),
			TTL:           getEnvDuration("ATRIUM_SESSION_TTL", 12*time.Hour),
		},
		SSO: SSOConfig{
			Enabled:      getEnvBool("ATRIUM_SSO_ENABLED", false),
			IssuerURL:    getEnv("ATRIUM_SSO_ISSUER_URL", ""),
			ClientID:     getEnv("ATRIUM_SSO_CLIENT_ID", ""),
			ClientSecret: getEnv("ATRIUM_SSO_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("ATRIUM_SSO_REDIRECT_URL", ""),
			Scopes:       getEnvList("ATRIUM_SSO_SCOPES", []string{"openid", "email", "profile"}),
			TenantClaim:  getEnv("ATRIUM_SSO_TENANT_CLAIM", "tenant"),
			RolesClaim:   getEnv("ATRIUM_SSO_ROLES_CLAIM", "roles"),
		},
		Authz: AuthzConfig{
			RouteTablePath: getEnv("ATRIUM_ROUTE_TABLE", ""),
			CatalogPath:    getEnv("ATRIUM_PERMISSION_CATALOG", ""),
			SnapshotTTL:    getEnvDuration("ATRIUM_SNAPSHOT_TTL", time.Minute),
			CacheSize:      getEnvInt("ATRIUM_SNAPSHOT_CACHE_SIZE", 1024),
			DenialPath:     getEnv("ATRIUM_DENIAL_PATH", "/access-denied"),
			EditSessionTTL: getEnvDuration("ATRIUM_EDIT_SESSION_TTL", 30*time.Minute),
		},
		Observability: ObservabilityConfig{
			LogLevel:           parseLogLevel(getEnv("ATRIUM_LOG_LEVEL", "info")),
			MetricsEnabled:     getEnvBool("ATRIUM_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("ATRIUM_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("ATRIUM_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("ATRIUM_OTEL_SERVICE_NAME", "atrium-portal"),
			OTelServiceVersion: getEnv("ATRIUM_OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("ATRIUM_OTEL_INSECURE", true),
		},
		Audit: AuditConfig{
			ToDatabase: getEnvBool("ATRIUM_AUDIT_DB", true),
			FilePath:   getEnv("ATRIUM_AUDIT_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("ATRIUM_POSTGRES_URL is required")
	}
	if c.Session.RedisURL == "" {
		return fmt.Errorf("ATRIUM_REDIS_URL is required")
	}
	if c.SSO.Enabled {
		if c.SSO.IssuerURL == "" || c.SSO.ClientID == "" || c.SSO.ClientSecret == "" || c.SSO.RedirectURL == "" {
			return fmt.Errorf("SSO issuer, client id, client secret and redirect URL are required when SSO is enabled")
		}
	}
	return nil
}

func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
