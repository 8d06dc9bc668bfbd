package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "argon2id", cfg.PasswordHasher)
	assert.Equal(t, 7*24*time.Hour, cfg.ApprovalTokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.VerificationTokenTTL)
	assert.True(t, cfg.ApprovalDefaultEnabled)
	assert.Equal(t, "log", cfg.NotifyBackend)
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("NOTIFY_FROM=reviews@prompts.test\nAPPROVAL_NOTIFY_DEFAULT= a@x.test , b@x.test\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("NOTIFY_FROM", "")
	os.Unsetenv("NOTIFY_FROM")
	os.Unsetenv("APPROVAL_NOTIFY_DEFAULT")
	t.Cleanup(func() {
		os.Unsetenv("NOTIFY_FROM")
		os.Unsetenv("APPROVAL_NOTIFY_DEFAULT")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "reviews@prompts.test", cfg.NotifyFrom)
	assert.Equal(t, []string{"a@x.test", "b@x.test"}, cfg.ApprovalNotifyDefault)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("DB_DRIVER", "oracle")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRequiresDSNForPostgres(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadPasswordBounds(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("PASSWORD_MIN_LENGTH", "16")
	t.Setenv("PASSWORD_MAX_LENGTH", "12")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadBcryptCostBounds(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("PASSWORD_HASHER", "bcrypt")
	t.Setenv("BCRYPT_COST", "40")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRedisCacheNeedsAddr(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SETTINGS_CACHE", "redis")
	t.Setenv("REDIS_ADDR", "")
	_, err := Load()
	require.Error(t, err)
}

func TestCaptchaEndpoint(t *testing.T) {
	cfg := Config{CaptchaProvider: "hcaptcha"}
	got, err := cfg.CaptchaEndpoint()
	require.NoError(t, err)
	assert.Equal(t, "https://hcaptcha.com/siteverify", got)

	cfg.CaptchaProvider = "recaptcha"
	_, err = cfg.CaptchaEndpoint()
	require.Error(t, err)
}
