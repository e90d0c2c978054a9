package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Lending  LendingConfig  `yaml:"lending"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	CORS     CORSConfig     `yaml:"cors"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Port      int    `yaml:"port"`
	LogFormat string `yaml:"logFormat"`
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Driver     string `yaml:"driver"` // postgres, pgx or sqlite3
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	DBName     string `yaml:"name"`
	SSLMode    string `yaml:"sslMode"`
	Path       string `yaml:"path"`       // sqlite3 only
	TestDBName string `yaml:"testDBName"` // Separate database for testing
}

// AuthConfig holds the authentication configuration
type AuthConfig struct {
	JWTSecret   string `yaml:"jwtSecret"`
	JWTTTLHours int    `yaml:"jwtTTLHours"`
}

// LendingConfig holds the borrow policy
type LendingConfig struct {
	MaxActiveBorrows int `yaml:"maxActiveBorrows"`
	LoanPeriodDays   int `yaml:"loanPeriodDays"`
}

// CatalogConfig holds the external book search configuration
type CatalogConfig struct {
	GoogleAPIKey    string `yaml:"googleAPIKey"`
	GoogleCredsFile string `yaml:"googleCredentialsFile"` // service account JSON, used instead of the API key
	GoogleEndpoint  string `yaml:"googleEndpoint"`
	OpenLibraryURL  string `yaml:"openLibraryURL"`
	CacheTTLSeconds int    `yaml:"cacheTTLSeconds"`
	TimeoutSeconds  int    `yaml:"timeoutSeconds"`
}

// CORSConfig lists browser origins allowed to call the API
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// IsSQLite reports whether the embedded sqlite driver is configured
func (c *DatabaseConfig) IsSQLite() bool {
	return c.Driver == "sqlite3"
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	if c.IsSQLite() {
		return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1&_txlock=immediate", c.Path)
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}

// TokenTTL returns how long issued tokens stay valid
func (c *AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

// LoanPeriod returns the time between borrow approval and the return due date
func (c *LendingConfig) LoanPeriod() time.Duration {
	return time.Duration(c.LoanPeriodDays) * 24 * time.Hour
}

// CacheTTL returns how long catalog search pages are cached
func (c *CatalogConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Timeout returns the per-call deadline for external catalog requests
func (c *CatalogConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoadConfig loads the configuration. Values are layered: defaults, then the
// YAML file named by CONFIG_FILE, then environment variables (a .env file in
// the working directory is loaded into the environment first).
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects policy values that would disable lending
func (c *Config) validate() error {
	if c.Lending.MaxActiveBorrows < 1 {
		return fmt.Errorf("invalid config: maxActiveBorrows must be at least 1, got %d", c.Lending.MaxActiveBorrows)
	}
	if c.Lending.LoanPeriodDays < 1 {
		return fmt.Errorf("invalid config: loanPeriodDays must be at least 1, got %d", c.Lending.LoanPeriodDays)
	}
	if c.Auth.JWTTTLHours < 1 {
		return fmt.Errorf("invalid config: jwtTTLHours must be at least 1, got %d", c.Auth.JWTTTLHours)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      8080,
			LogFormat: "text",
		},
		Database: DatabaseConfig{
			Driver:     "postgres",
			Host:       "localhost",
			Port:       5432,
			Username:   "postgres",
			Password:   "password",
			DBName:     "librarydb",
			SSLMode:    "disable",
			Path:       "library.db",
			TestDBName: "librarydb_test",
		},
		Auth: AuthConfig{
			JWTSecret:   "your-secret-key-here",
			JWTTTLHours: 24,
		},
		Lending: LendingConfig{
			MaxActiveBorrows: 3,
			LoanPeriodDays:   14,
		},
		Catalog: CatalogConfig{
			OpenLibraryURL:  "https://openlibrary.org",
			CacheTTLSeconds: 3600,
			TimeoutSeconds:  10,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		},
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvAsInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.LogFormat = getEnv("LOG_FORMAT", cfg.Server.LogFormat)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvAsInt("DB_PORT", cfg.Database.Port)
	cfg.Database.Username = getEnv("DB_USERNAME", cfg.Database.Username)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = getEnv("DB_NAME", cfg.Database.DBName)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.Path = getEnv("DB_PATH", cfg.Database.Path)
	cfg.Database.TestDBName = getEnv("TEST_DB_NAME", cfg.Database.TestDBName)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTTTLHours = getEnvAsInt("JWT_TTL_HOURS", cfg.Auth.JWTTTLHours)

	cfg.Lending.MaxActiveBorrows = getEnvAsInt("MAX_ACTIVE_BORROWS", cfg.Lending.MaxActiveBorrows)
	cfg.Lending.LoanPeriodDays = getEnvAsInt("LOAN_PERIOD_DAYS", cfg.Lending.LoanPeriodDays)

	cfg.Catalog.GoogleAPIKey = getEnv("GOOGLE_BOOKS_API_KEY", cfg.Catalog.GoogleAPIKey)
	cfg.Catalog.GoogleCredsFile = getEnv("GOOGLE_BOOKS_CREDENTIALS_FILE", cfg.Catalog.GoogleCredsFile)
	cfg.Catalog.GoogleEndpoint = getEnv("GOOGLE_BOOKS_ENDPOINT", cfg.Catalog.GoogleEndpoint)
	cfg.Catalog.OpenLibraryURL = getEnv("OPENLIBRARY_URL", cfg.Catalog.OpenLibraryURL)
	cfg.Catalog.CacheTTLSeconds = getEnvAsInt("CATALOG_CACHE_TTL_SECONDS", cfg.Catalog.CacheTTLSeconds)
	cfg.Catalog.TimeoutSeconds = getEnvAsInt("CATALOG_TIMEOUT_SECONDS", cfg.Catalog.TimeoutSeconds)

	if origins := getEnv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.CORS.AllowedOrigins = splitList(origins)
	}
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
