package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"WALLETLINK_PORT", "PORT", "WALLETLINK_ENV", "ENV", "DATABASE_URL", "DB_MAX_CONNS",
	"REDIS_URL", "DOMAIN", "PROTOCOL_BANNER", "SIGNATURE_SCHEME", "JWT_PUBLIC_KEY_FILE",
	"JWT_PRIVATE_KEY_FILE", "MAX_ATTEMPTS_PER_HOUR", "MAX_WALLET_REUSE", "DEV_ACCOUNTS",
}

// clearEnv blanks every variable Load reads for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "walletlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, errs := Load("")
	require.Empty(t, errs)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, DefaultDomain, cfg.Domain)
	assert.Equal(t, DefaultProtocolBanner, cfg.ProtocolBanner)
	assert.Equal(t, "ed25519", cfg.SignatureScheme)
	assert.Equal(t, 10, cfg.MaxAttemptsPerHour)
	assert.Equal(t, 5, cfg.MaxWalletReuse)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
port: 9000
domain: wallet.example.com
signature_scheme: secp256k1
max_attempts_per_hour: 3
redis_url: redis://localhost:6379/0
dev_accounts: [alice, bob]
`)
	t.Setenv("DOMAIN", "override.example.com")
	t.Setenv("SIGNATURE_SCHEME", "ED25519")

	cfg, errs := Load(path)
	require.Empty(t, errs)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "override.example.com", cfg.Domain)
	assert.Equal(t, "ed25519", cfg.SignatureScheme)
	assert.Equal(t, 3, cfg.MaxAttemptsPerHour)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, []string{"alice", "bob"}, cfg.DevAccounts)

	t.Setenv("DEV_ACCOUNTS", "carol, ,dave")
	cfg, errs = Load(path)
	require.Empty(t, errs)
	assert.Equal(t, []string{"carol", "dave"}, cfg.DevAccounts)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	cfg, errs := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Nil(t, cfg)
	require.Len(t, errs, 1)
}

func TestLoadCollectsErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")
	t.Setenv("ENV", "production")
	t.Setenv("SIGNATURE_SCHEME", "rsa")
	t.Setenv("MAX_WALLET_REUSE", "-1")

	_, errs := Load("")
	assert.ErrorIs(t, errs[0], ErrInvalidInteger)
	assert.Contains(t, errs, ErrInvalidScheme)
	assert.Contains(t, errs, ErrMissingJWTPublicKey)
	assert.Contains(t, errs, ErrInvalidWalletReuse)
	assert.Contains(t, errs, ErrInvalidPort)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:               8080,
			Env:                EnvProduction,
			DBMaxConns:         10,
			Domain:             "wallet.example.com",
			ProtocolBanner:     "Example",
			SignatureScheme:    "secp256k1",
			JWTPublicKeyFile:   "/etc/walletlink/jwt.pub",
			MaxAttemptsPerHour: 10,
			MaxWalletReuse:     5,
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{"valid", func(c *Config) {}, nil},
		{"port out of range", func(c *Config) { c.Port = 70000 }, ErrInvalidPort},
		{"unknown env", func(c *Config) { c.Env = "staging" }, ErrInvalidEnv},
		{"blank domain", func(c *Config) { c.Domain = "  " }, ErrMissingDomain},
		{"blank banner", func(c *Config) { c.ProtocolBanner = "" }, ErrMissingProtocolBanner},
		{"zero attempts", func(c *Config) { c.MaxAttemptsPerHour = 0 }, ErrInvalidAttemptLimit},
		{"zero conns", func(c *Config) { c.DBMaxConns = 0 }, ErrInvalidDBMaxConns},
		{"development without key", func(c *Config) { c.Env = EnvDevelopment; c.JWTPublicKeyFile = "" }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			errs := cfg.Validate()
			if tt.want == nil {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, []error{tt.want}, errs)
		})
	}
}

func TestLogSummaryMasksCredentials(t *testing.T) {
	cfg := Config{
		DatabaseURL: "postgres://walletlink:hunter2@db:5432/walletlink",
		RedisURL:    "redis://:s3cret@cache:6379/0",
	}
	summary := cfg.LogSummary()
	assert.Equal(t, "postgres://walletlink:****@db:5432/walletlink", summary["database_url"])
	assert.Equal(t, "redis://:****@cache:6379/0", summary["redis_url"])
	assert.NotContains(t, summary["database_url"], "hunter2")
}
