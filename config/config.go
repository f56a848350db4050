// Package config loads walletlink settings from an optional YAML file and the
// environment. Environment variables take precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values of the walletlink server
type Config struct {
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Empty selects the in-memory store
	DatabaseURL string `koanf:"database_url"`
	DBMaxConns  int    `koanf:"db_max_conns"`

	// Empty selects the in-process locker and event bus
	RedisURL string `koanf:"redis_url"`

	Domain          string `koanf:"domain"`
	ProtocolBanner  string `koanf:"protocol_banner"`
	SignatureScheme string `koanf:"signature_scheme"`

	JWTPublicKeyFile  string `koanf:"jwt_public_key_file"`
	JWTPrivateKeyFile string `koanf:"jwt_private_key_file"`

	MaxAttemptsPerHour int `koanf:"max_attempts_per_hour"`
	MaxWalletReuse     int `koanf:"max_wallet_reuse"`

	// Account ids seeded into the in-memory store in development
	DevAccounts []string `koanf:"dev_accounts"`
}

// Configuration validation errors
var (
	ErrInvalidPort           = errors.New("PORT must be a valid port number")
	ErrInvalidInteger        = errors.New("value must be a valid integer")
	ErrInvalidEnv            = errors.New("ENV must be development or production")
	ErrInvalidScheme         = errors.New("SIGNATURE_SCHEME must be ed25519 or secp256k1")
	ErrMissingJWTPublicKey   = errors.New("JWT_PUBLIC_KEY_FILE is required in production")
	ErrInvalidAttemptLimit   = errors.New("MAX_ATTEMPTS_PER_HOUR must be positive")
	ErrInvalidWalletReuse    = errors.New("MAX_WALLET_REUSE must be positive")
	ErrInvalidDBMaxConns     = errors.New("DB_MAX_CONNS must be positive")
	ErrMissingDomain         = errors.New("DOMAIN must not be empty")
	ErrMissingProtocolBanner = errors.New("PROTOCOL_BANNER must not be empty")
)

// Default values
const (
	DefaultPort               = 8080
	DefaultEnv                = "development"
	DefaultDomain             = "localhost"
	DefaultProtocolBanner     = "Wallet Ownership Verification"
	DefaultSignatureScheme    = "ed25519"
	DefaultMaxAttemptsPerHour = 10
	DefaultMaxWalletReuse     = 5
	DefaultDBMaxConns         = 10
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Load reads configuration from an optional config file and the environment.
// It returns the config and every validation problem found.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	intSetting := func(envKeys []string, koanfKey string, defaultVal int) int {
		v, err := getEnvIntOrDefault(envKeys, k.Int(koanfKey), defaultVal)
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
		return v
	}

	cfg := &Config{
		Port:               intSetting([]string{"WALLETLINK_PORT", "PORT"}, "port", DefaultPort),
		Env:                getEnvOrDefault([]string{"WALLETLINK_ENV", "ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:        getEnvOrDefault([]string{"DATABASE_URL"}, k.String("database_url"), ""),
		DBMaxConns:         intSetting([]string{"DB_MAX_CONNS"}, "db_max_conns", DefaultDBMaxConns),
		RedisURL:           getEnvOrDefault([]string{"REDIS_URL"}, k.String("redis_url"), ""),
		Domain:             getEnvOrDefault([]string{"DOMAIN"}, k.String("domain"), DefaultDomain),
		ProtocolBanner:     getEnvOrDefault([]string{"PROTOCOL_BANNER"}, k.String("protocol_banner"), DefaultProtocolBanner),
		SignatureScheme:    strings.ToLower(getEnvOrDefault([]string{"SIGNATURE_SCHEME"}, k.String("signature_scheme"), DefaultSignatureScheme)),
		JWTPublicKeyFile:   getEnvOrDefault([]string{"JWT_PUBLIC_KEY_FILE"}, k.String("jwt_public_key_file"), ""),
		JWTPrivateKeyFile:  getEnvOrDefault([]string{"JWT_PRIVATE_KEY_FILE"}, k.String("jwt_private_key_file"), ""),
		MaxAttemptsPerHour: intSetting([]string{"MAX_ATTEMPTS_PER_HOUR"}, "max_attempts_per_hour", DefaultMaxAttemptsPerHour),
		MaxWalletReuse:     intSetting([]string{"MAX_WALLET_REUSE"}, "max_wallet_reuse", DefaultMaxWalletReuse),
		DevAccounts:        getEnvListOrDefault("DEV_ACCOUNTS", k.Strings("dev_accounts")),
	}

	errs := cfg.Validate()
	return cfg, append(loadErrs, errs...)
}

// getEnvOrDefault returns the first non-empty environment variable, otherwise
// the koanf value, or the default.
func getEnvOrDefault(envKeys []string, koanfVal, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault is getEnvOrDefault for integers. A zero koanf value falls
// back to the default.
func getEnvIntOrDefault(envKeys []string, koanfVal, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s: %w", key, ErrInvalidInteger)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvListOrDefault splits a comma separated environment variable, otherwise
// returns the koanf list
func getEnvListOrDefault(envKey string, koanfVal []string) []string {
	val := os.Getenv(envKey)
	if val == "" {
		return koanfVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks the loaded values and returns every problem found
func (c *Config) Validate() []error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errs = append(errs, ErrInvalidEnv)
	}
	if c.SignatureScheme != "ed25519" && c.SignatureScheme != "secp256k1" {
		errs = append(errs, ErrInvalidScheme)
	}
	if c.Env == EnvProduction && c.JWTPublicKeyFile == "" {
		errs = append(errs, ErrMissingJWTPublicKey)
	}
	if c.MaxAttemptsPerHour < 1 {
		errs = append(errs, ErrInvalidAttemptLimit)
	}
	if c.MaxWalletReuse < 1 {
		errs = append(errs, ErrInvalidWalletReuse)
	}
	if c.DBMaxConns < 1 {
		errs = append(errs, ErrInvalidDBMaxConns)
	}
	if strings.TrimSpace(c.Domain) == "" {
		errs = append(errs, ErrMissingDomain)
	}
	if strings.TrimSpace(c.ProtocolBanner) == "" {
		errs = append(errs, ErrMissingProtocolBanner)
	}

	return errs
}

// LogSummary returns the configuration with credentials masked
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                  strconv.Itoa(c.Port),
		"env":                   c.Env,
		"database_url":          maskURL(c.DatabaseURL),
		"db_max_conns":          strconv.Itoa(c.DBMaxConns),
		"redis_url":             maskURL(c.RedisURL),
		"domain":                c.Domain,
		"signature_scheme":      c.SignatureScheme,
		"jwt_public_key_file":   c.JWTPublicKeyFile,
		"max_attempts_per_hour": strconv.Itoa(c.MaxAttemptsPerHour),
		"max_wallet_reuse":      strconv.Itoa(c.MaxWalletReuse),
	}
}

// maskURL hides the password of user:password@host URLs
func maskURL(s string) string {
	if s == "" {
		return "<not set>"
	}
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return "****"
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s
	}
	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s
	}
	return s[:schemeEnd+3] + rest[:colonIndex] + ":****" + rest[atIndex:]
}
