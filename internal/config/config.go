package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kevin07696/donation-service/internal/domain"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Gateway     GatewayConfig
	Donation    DonationConfig
	Secrets     SecretsConfig
	RateLimit   RateLimitConfig
	Logger      LoggerConfig
	Environment string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port          int
	Host          string
	MetricsPort   int
	PublicBaseURL string // Absolute base used to build RedirectURL and BackURL
}

// DatabaseConfig holds PostgreSQL configuration for the token store
type DatabaseConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
}

// GatewayConfig holds DPO Pay (API3G) configuration
type GatewayConfig struct {
	APIURL                    string // API3G v6 endpoint
	PaymentPageURL            string // Hosted payment page
	CompanyToken              string // Merchant credential; may be resolved from a secret manager instead
	CompanyTokenSecretPath    string // Secret path holding the company token
	CompanyTokenSecretVersion string
	ServiceType               int
	ServiceDescription        string
	PTLMinutes                int // Payment time limit of the created token
	PageTimeout               int // Optional hosted page timeout; 0 omits it
	Timeout                   int // Request timeout in seconds
}

// DonationConfig holds donation page configuration
type DonationConfig struct {
	Currency        string
	Presets         []string
	ReferencePrefix string
	TokenStore      string // memory or postgres
}

// SecretsConfig selects and configures the secret manager backend
type SecretsConfig struct {
	Backend        string // env, local, aws, vault, gcp
	LocalPath      string
	AWSRegion      string
	AWSProfile     string
	AWSEndpoint    string
	VaultAddress   string
	VaultToken     string
	VaultRoleID    string
	VaultSecretID  string
	VaultMountPath string
	GCPProjectID   string
	CacheTTL       time.Duration
}

// RateLimitConfig holds per-client request limits
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables and validates it
func LoadFromEnv() (*Config, error) {
	cfg := Read()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read loads configuration from environment variables without validating.
// Operator commands that need only part of it call this directly.
func Read() *Config {
	environment := getEnv("ENVIRONMENT", "development")

	cfg := &Config{
		Server: ServerConfig{
			Port:          getEnvAsInt("HTTP_PORT", 8080),
			Host:          getEnv("HTTP_HOST", "0.0.0.0"),
			MetricsPort:   getEnvAsInt("METRICS_PORT", 9090),
			PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 10)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 1)),
		},
		Gateway: GatewayConfig{
			APIURL:                    getEnv("DPO_API_URL", "https://secure.3gdirectpay.com/API/v6/"),
			PaymentPageURL:            getEnv("DPO_PAYMENT_PAGE_URL", "https://secure.3gdirectpay.com/dpopayment.php"),
			CompanyToken:              getEnv("DPO_COMPANY_TOKEN", ""),
			CompanyTokenSecretPath:    getEnv("DPO_COMPANY_TOKEN_SECRET_PATH", ""),
			CompanyTokenSecretVersion: getEnv("DPO_COMPANY_TOKEN_SECRET_VERSION", ""),
			ServiceType:               getEnvAsInt("DPO_SERVICE_TYPE", 3854),
			ServiceDescription:        getEnv("DPO_SERVICE_DESCRIPTION", "Donation"),
			PTLMinutes:                getEnvAsInt("DPO_PTL_MINUTES", 60),
			PageTimeout:               getEnvAsInt("DPO_PAGE_TIMEOUT", 0),
			Timeout:                   getEnvAsInt("DPO_TIMEOUT", 30),
		},
		Donation: DonationConfig{
			Currency:        strings.ToUpper(getEnv("DONATION_CURRENCY", "USD")),
			Presets:         getEnvAsList("DONATION_PRESETS", []string{"10", "25", "50", "100"}),
			ReferencePrefix: getEnv("DONATION_REFERENCE_PREFIX", "DON"),
			TokenStore:      getEnv("TOKEN_STORE", "memory"),
		},
		Secrets: SecretsConfig{
			Backend:        getEnv("SECRET_MANAGER", "env"),
			LocalPath:      getEnv("LOCAL_SECRETS_PATH", "./secrets"),
			AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
			AWSProfile:     getEnv("AWS_PROFILE", ""),
			AWSEndpoint:    getEnv("AWS_SECRETS_ENDPOINT", ""),
			VaultAddress:   getEnv("VAULT_ADDR", ""),
			VaultToken:     getEnv("VAULT_TOKEN", ""),
			VaultRoleID:    getEnv("VAULT_ROLE_ID", ""),
			VaultSecretID:  getEnv("VAULT_SECRET_ID", ""),
			VaultMountPath: getEnv("VAULT_MOUNT_PATH", "secret"),
			GCPProjectID:   getEnv("GCP_PROJECT_ID", ""),
			CacheTTL:       time.Duration(getEnvAsInt("SECRET_CACHE_TTL_MINUTES", 5)) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 5),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: environment != "production",
		},
		Environment: environment,
	}

	return cfg
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.Gateway.CompanyToken == "" && c.Gateway.CompanyTokenSecretPath == "" {
		return fmt.Errorf("DPO_COMPANY_TOKEN or DPO_COMPANY_TOKEN_SECRET_PATH is required")
	}
	if c.Gateway.APIURL == "" {
		return fmt.Errorf("DPO_API_URL is required")
	}
	if c.Gateway.PaymentPageURL == "" {
		return fmt.Errorf("DPO_PAYMENT_PAGE_URL is required")
	}
	if c.Gateway.PTLMinutes <= 0 {
		return fmt.Errorf("DPO_PTL_MINUTES must be positive, got %d", c.Gateway.PTLMinutes)
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("DPO_TIMEOUT must be a positive number of seconds, got %d", c.Gateway.Timeout)
	}
	if c.Gateway.PageTimeout < 0 {
		return fmt.Errorf("DPO_PAGE_TIMEOUT must not be negative, got %d", c.Gateway.PageTimeout)
	}
	if len(c.Donation.Currency) != 3 {
		return fmt.Errorf("DONATION_CURRENCY must be a 3-letter code, got %q", c.Donation.Currency)
	}
	for _, preset := range c.Donation.Presets {
		if _, err := domain.ParseAmount(preset); err != nil {
			return fmt.Errorf("DONATION_PRESETS entry %q is not a positive amount", preset)
		}
	}

	switch c.Donation.TokenStore {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when TOKEN_STORE=postgres")
		}
	default:
		return fmt.Errorf("unsupported TOKEN_STORE %q (memory or postgres)", c.Donation.TokenStore)
	}

	return nil
}

// PaymentTimeLimit returns the PTL as a duration
func (g *GatewayConfig) PaymentTimeLimit() time.Duration {
	return time.Duration(g.PTLMinutes) * time.Minute
}

// RequestTimeout returns the gateway request timeout as a duration
func (g *GatewayConfig) RequestTimeout() time.Duration {
	return time.Duration(g.Timeout) * time.Second
}

// ReturnURL is where the gateway sends the donor after payment
func (s *ServerConfig) ReturnURL() string {
	return s.PublicBaseURL + "/payment-complete"
}

// BackURL is where the gateway sends the donor when they cancel
func (s *ServerConfig) BackURL() string {
	return s.PublicBaseURL + "/donation?cancelled=1"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
