package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr    string   `env:"LISTEN_ADDR" env-default:":8080"`
	PublicBaseURL string   `env:"PUBLIC_BASE_URL" env-default:"http://localhost:8080"`
	TrustProxy    bool     `env:"TRUST_PROXY" env-default:"false"`
	CORSOrigins   []string `env:"CORS_ALLOWED_ORIGINS" env-separator:","`

	LogFormat string `env:"LOG_FORMAT" env-default:"text"`
	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`

	DBDriver          string        `env:"DB_DRIVER" env-default:"sqlite"`
	DBPath            string        `env:"DB_PATH" env-default:"./data/app.db"`
	DBDSN             string        `env:"DB_DSN"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"2"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`
	DBConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" env-default:"30s"`
	DBConnectTimeout  time.Duration `env:"DB_CONNECT_TIMEOUT" env-default:"5s"`

	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	HTTPReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" env-default:"5s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`

	PasswordHasher    string `env:"PASSWORD_HASHER" env-default:"argon2id"`
	BcryptCost        int    `env:"BCRYPT_COST" env-default:"10"`
	PasswordMinLength int    `env:"PASSWORD_MIN_LENGTH" env-default:"8"`
	PasswordMaxLength int    `env:"PASSWORD_MAX_LENGTH" env-default:"128"`

	ApprovalDefaultEnabled bool          `env:"APPROVAL_DEFAULT_ENABLED" env-default:"true"`
	ApprovalNotifyDefault  []string      `env:"APPROVAL_NOTIFY_DEFAULT" env-separator:","`
	ApprovalTokenTTL       time.Duration `env:"APPROVAL_TOKEN_TTL" env-default:"168h"`
	VerificationTokenTTL   time.Duration `env:"VERIFICATION_TOKEN_TTL" env-default:"24h"`
	ResetTokenTTL          time.Duration `env:"RESET_TOKEN_TTL" env-default:"1h"`

	SettingsCache    string        `env:"SETTINGS_CACHE" env-default:"memory"`
	SettingsCacheTTL time.Duration `env:"SETTINGS_CACHE_TTL" env-default:"5s"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	RateLimitBackend string `env:"RATE_LIMIT_BACKEND" env-default:"memory"`

	NotifyBackend   string `env:"NOTIFY_BACKEND" env-default:"log"`
	NotifyFrom      string `env:"NOTIFY_FROM" env-default:"no-reply@example.com"`
	NotifyOutboxDir string `env:"NOTIFY_OUTBOX_DIR" env-default:"./data/outbox"`
	SMTPHost        string `env:"SMTP_HOST" env-default:"127.0.0.1"`
	SMTPPort        int    `env:"SMTP_PORT" env-default:"587"`
	SMTPUsername    string `env:"SMTP_USERNAME"`
	SMTPPassword    string `env:"SMTP_PASSWORD"`
	SMTPTLS         bool   `env:"SMTP_TLS" env-default:"true"`
	ResendAPIKey    string `env:"RESEND_API_KEY"`

	CaptchaEnabled   bool   `env:"CAPTCHA_ENABLED" env-default:"false"`
	CaptchaProvider  string `env:"CAPTCHA_PROVIDER" env-default:"turnstile"`
	CaptchaVerifyURL string `env:"CAPTCHA_VERIFY_URL"`
	CaptchaSecret    string `env:"CAPTCHA_SECRET"`

	BootstrapAdminUsername string `env:"BOOTSTRAP_ADMIN_USERNAME" env-default:"admin"`
	BootstrapAdminEmail    string `env:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `env:"BOOTSTRAP_ADMIN_PASSWORD"`

	CleanupInterval  time.Duration `env:"CLEANUP_INTERVAL" env-default:"1h"`
	CleanupRetention time.Duration `env:"CLEANUP_RETENTION" env-default:"720h"`
}

// Load reads an optional env file (ENV_FILE, default .env) and then the
// process environment.
func Load() (Config, error) {
	envFile := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.PasswordHasher = strings.ToLower(strings.TrimSpace(c.PasswordHasher))
	c.SettingsCache = strings.ToLower(strings.TrimSpace(c.SettingsCache))
	c.RateLimitBackend = strings.ToLower(strings.TrimSpace(c.RateLimitBackend))
	c.NotifyBackend = strings.ToLower(strings.TrimSpace(c.NotifyBackend))
	c.CaptchaProvider = strings.ToLower(strings.TrimSpace(c.CaptchaProvider))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
	c.ApprovalNotifyDefault = trimList(c.ApprovalNotifyDefault)
	c.CORSOrigins = trimList(c.CORSOrigins)
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite":
		if strings.TrimSpace(c.DBPath) == "" {
			return fmt.Errorf("DB_PATH is required for sqlite")
		}
	case "postgres", "mysql":
		if strings.TrimSpace(c.DBDSN) == "" {
			return fmt.Errorf("DB_DSN is required for %s", c.DBDriver)
		}
	default:
		return fmt.Errorf("DB_DRIVER must be one of: sqlite, postgres, mysql")
	}
	if c.DBMaxOpenConns <= 0 || c.DBMaxIdleConns < 0 {
		return fmt.Errorf("invalid DB pool config")
	}
	switch c.PasswordHasher {
	case "argon2id":
	case "bcrypt":
		if c.BcryptCost < 4 || c.BcryptCost > 31 {
			return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
		}
	default:
		return fmt.Errorf("PASSWORD_HASHER must be one of: argon2id, bcrypt")
	}
	if c.PasswordMinLength < 6 {
		return fmt.Errorf("password min length must be >= 6")
	}
	if c.PasswordMaxLength < c.PasswordMinLength {
		return fmt.Errorf("password max length must be >= min length")
	}
	if c.ApprovalTokenTTL <= 0 || c.VerificationTokenTTL <= 0 || c.ResetTokenTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	switch c.SettingsCache {
	case "none", "memory":
	case "redis":
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("REDIS_ADDR is required when SETTINGS_CACHE=redis")
		}
	default:
		return fmt.Errorf("SETTINGS_CACHE must be one of: none, memory, redis")
	}
	switch c.RateLimitBackend {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("REDIS_ADDR is required when RATE_LIMIT_BACKEND=redis")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be one of: memory, redis")
	}
	switch c.NotifyBackend {
	case "log":
	case "file":
		if strings.TrimSpace(c.NotifyOutboxDir) == "" {
			return fmt.Errorf("NOTIFY_OUTBOX_DIR is required when NOTIFY_BACKEND=file")
		}
	case "smtp":
		if strings.TrimSpace(c.SMTPHost) == "" || c.SMTPPort <= 0 {
			return fmt.Errorf("SMTP_HOST and SMTP_PORT are required when NOTIFY_BACKEND=smtp")
		}
	case "resend":
		if strings.TrimSpace(c.ResendAPIKey) == "" {
			return fmt.Errorf("RESEND_API_KEY is required when NOTIFY_BACKEND=resend")
		}
	default:
		return fmt.Errorf("NOTIFY_BACKEND must be one of: log, file, smtp, resend")
	}
	u, err := url.Parse(c.PublicBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("PUBLIC_BASE_URL must be an absolute URL")
	}
	if c.CaptchaEnabled && strings.TrimSpace(c.CaptchaSecret) == "" {
		return fmt.Errorf("CAPTCHA_SECRET is required when CAPTCHA_ENABLED=true")
	}
	return nil
}

// CaptchaEndpoint resolves the provider's verify URL unless one is configured.
func (c Config) CaptchaEndpoint() (string, error) {
	if v := strings.TrimSpace(c.CaptchaVerifyURL); v != "" {
		return v, nil
	}
	switch c.CaptchaProvider {
	case "turnstile", "":
		return "https://challenges.cloudflare.com/turnstile/v0/siteverify", nil
	case "hcaptcha":
		return "https://hcaptcha.com/siteverify", nil
	default:
		return "", fmt.Errorf("unsupported CAPTCHA_PROVIDER: %s", c.CaptchaProvider)
	}
}

func trimList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
