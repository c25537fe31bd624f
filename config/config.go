// Package config has the configuration for the MediSearch service
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment is the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

// String returns the canonical short name
func (e Environment) String() string {
	return string(e)
}

// ParseEnvironment maps an ENV value, long or short form, to an Environment
func ParseEnvironment(value string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	}
	return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", value)
}

// Catalog and identity backends
const (
	CatalogMemory    = "memory"
	CatalogFirestore = "firestore"

	IdentityLocal    = "local"
	IdentityFirebase = "firebase"
)

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogDir            string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes

	DatabasePath string

	CatalogBackend       string
	CatalogSeed          string
	CatalogRefresh       string // gocron At() times, e.g. "06:00;18:00"
	FirestoreProjectID   string
	FirestoreCollection  string
	FirestoreCredentials string

	IdentityBackend string
	FirebaseAPIKey  string
	BcryptCost      int

	SearchQueryTimeout time.Duration // 0 disables the timeout
	SearchMaxLength    int

	AllowedOrigins []string
}

// LoadEnvFile reads a .env file into the process environment. A missing
// default file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) && path == ".env" {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default

		DatabasePath: getEnvWithDefault("DATABASE_PATH", "data/medisearch.db"),

		CatalogBackend:       strings.ToLower(getEnvWithDefault("CATALOG_BACKEND", CatalogMemory)),
		CatalogSeed:          getEnvWithDefault("CATALOG_SEED", "files/catalog.json"),
		CatalogRefresh:       getEnvWithDefault("CATALOG_REFRESH", "06:00;18:00"),
		FirestoreProjectID:   os.Getenv("FIRESTORE_PROJECT_ID"),
		FirestoreCollection:  getEnvWithDefault("FIRESTORE_COLLECTION", "categories"),
		FirestoreCredentials: os.Getenv("FIRESTORE_CREDENTIALS"),

		IdentityBackend: strings.ToLower(getEnvWithDefault("IDENTITY_BACKEND", IdentityLocal)),
		FirebaseAPIKey:  os.Getenv("FIREBASE_API_KEY"),
		BcryptCost:      getIntEnvWithDefault("BCRYPT_COST", 10),

		SearchQueryTimeout: time.Duration(getIntEnvWithDefault("SEARCH_QUERY_TIMEOUT", 10)) * time.Second,
		SearchMaxLength:    getIntEnvWithDefault("SEARCH_MAX_LENGTH", 100),

		AllowedOrigins: splitList(getEnvWithDefault("ALLOWED_ORIGINS", "http://localhost:5173")),
	}

	env, err := ParseEnvironment(getEnvWithDefault("ENV", EnvDevelopment.String()))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}
	cfg.Env = env

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateEnv(cfg.Env); err != nil {
		return fmt.Errorf("invalid ENV: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validateCatalog(cfg); err != nil {
		return fmt.Errorf("invalid CATALOG_BACKEND: %w", err)
	}

	if err := validateIdentity(cfg); err != nil {
		return fmt.Errorf("invalid IDENTITY_BACKEND: %w", err)
	}

	if cfg.SearchQueryTimeout < 0 {
		return fmt.Errorf("invalid SEARCH_QUERY_TIMEOUT: must not be negative")
	}

	if cfg.SearchMaxLength <= 0 || cfg.SearchMaxLength > 1000 {
		return fmt.Errorf("invalid SEARCH_MAX_LENGTH: must be between 1 and 1000, got: %d", cfg.SearchMaxLength)
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	// The session is process-wide, so the service must not face the internet
	if !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("ADDRESS %s is a public IP, use a loopback or private address", address)
	}

	return nil
}

// validateEnv validates the ENV environment variable
func validateEnv(env Environment) error {
	if env == "" {
		return fmt.Errorf("ENV cannot be empty")
	}

	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction, EnvTest:
		return nil
	}

	return fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", env)
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 {
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// validateCatalog checks the catalogue backend and its required settings
func validateCatalog(cfg *Config) error {
	switch cfg.CatalogBackend {
	case CatalogMemory:
		if cfg.CatalogSeed == "" {
			return fmt.Errorf("CATALOG_SEED is required for the memory backend")
		}
		if cfg.CatalogRefresh == "" {
			return fmt.Errorf("CATALOG_REFRESH is required for the memory backend")
		}
	case CatalogFirestore:
		if cfg.FirestoreProjectID == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID is required for the firestore backend")
		}
	default:
		return fmt.Errorf("must be one of: [%s %s], got: %s", CatalogMemory, CatalogFirestore, cfg.CatalogBackend)
	}
	return nil
}

// validateIdentity checks the identity backend and its required settings
func validateIdentity(cfg *Config) error {
	switch cfg.IdentityBackend {
	case IdentityLocal:
		if cfg.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required for the local backend")
		}
		if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
			return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got: %d", cfg.BcryptCost)
		}
	case IdentityFirebase:
		if cfg.FirebaseAPIKey == "" {
			return fmt.Errorf("FIREBASE_API_KEY is required for the firebase backend")
		}
	default:
		return fmt.Errorf("must be one of: [%s %s], got: %s", IdentityLocal, IdentityFirebase, cfg.IdentityBackend)
	}
	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"DATABASE_PATH",
		"CATALOG_BACKEND",
		"CATALOG_SEED",
		"CATALOG_REFRESH",
		"FIRESTORE_PROJECT_ID",
		"FIRESTORE_COLLECTION",
		"FIRESTORE_CREDENTIALS",
		"IDENTITY_BACKEND",
		"FIREBASE_API_KEY",
		"BCRYPT_COST",
		"SEARCH_QUERY_TIMEOUT",
		"SEARCH_MAX_LENGTH",
		"ALLOWED_ORIGINS",
	}
}
