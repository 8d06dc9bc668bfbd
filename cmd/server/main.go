package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"promptmarket/internal/account"
	"promptmarket/internal/api"
	"promptmarket/internal/approval"
	"promptmarket/internal/auth"
	"promptmarket/internal/captcha"
	"promptmarket/internal/config"
	"promptmarket/internal/db"
	"promptmarket/internal/logging"
	"promptmarket/internal/notify"
	"promptmarket/internal/rate"
	"promptmarket/internal/settings"
	"promptmarket/internal/store"
	"promptmarket/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(log)
	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqdb, dialect, err := db.Open(db.Options{
		Driver:         cfg.DBDriver,
		Path:           cfg.DBPath,
		DSN:            cfg.DBDSN,
		MaxOpenConns:   cfg.DBMaxOpenConns,
		MaxIdleConns:   cfg.DBMaxIdleConns,
		MaxLifetime:    cfg.DBConnMaxLifetime,
		MaxIdleTime:    cfg.DBConnMaxIdleTime,
		ConnectTimeout: cfg.DBConnectTimeout,
	})
	if err != nil {
		return err
	}
	defer sqdb.Close()
	if err := db.Migrate(sqdb, dialect); err != nil {
		return err
	}
	st := store.New(sqdb, dialect)

	hasher, err := auth.NewHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		return err
	}
	if cfg.BootstrapAdminEmail != "" && cfg.BootstrapAdminPassword != "" {
		hash, err := hasher.Hash(cfg.BootstrapAdminPassword)
		if err != nil {
			return err
		}
		if err := st.EnsureAdmin(ctx, cfg.BootstrapAdminUsername, cfg.BootstrapAdminEmail, hash); err != nil {
			return err
		}
		log.Info("bootstrap admin ensured", "username", cfg.BootstrapAdminUsername)
	}

	var rdb *redis.Client
	if cfg.SettingsCache == "redis" || cfg.RateLimitBackend == "redis" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
	}

	var cache settings.Cache
	switch cfg.SettingsCache {
	case "memory":
		cache = settings.NewMemoryCache(cfg.SettingsCacheTTL)
	case "redis":
		cache = settings.NewRedisCache(rdb, cfg.SettingsCacheTTL, log)
	default:
		cache = settings.NopCache{}
	}
	svc := settings.New(st, settings.Options{
		Cache:                  cache,
		DefaultApprovalEnabled: cfg.ApprovalDefaultEnabled,
		DefaultNotify:          cfg.ApprovalNotifyDefault,
		Logger:                 log,
	})

	mailer, err := notify.New(cfg, log)
	if err != nil {
		return err
	}
	policy := approval.PasswordPolicy{MinLength: cfg.PasswordMinLength, MaxLength: cfg.PasswordMaxLength}
	engine := approval.New(approval.Deps{
		Pending:         st,
		Users:           st,
		Settings:        svc,
		Notifier:        mailer,
		Hasher:          hasher,
		Audit:           st,
		Metrics:         approval.NewMetrics(prometheus.DefaultRegisterer),
		Logger:          log,
		Passwords:       policy,
		TokenTTL:        cfg.ApprovalTokenTTL,
		VerificationTTL: cfg.VerificationTokenTTL,
	})
	accounts := account.New(st, mailer, account.Options{
		Hasher:          hasher,
		Passwords:       policy,
		VerificationTTL: cfg.VerificationTokenTTL,
		ResetTTL:        cfg.ResetTokenTTL,
		Logger:          log,
	})

	var limiter rate.Limiter = rate.NewMemory()
	if cfg.RateLimitBackend == "redis" {
		limiter = rate.NewRedis(rdb)
	}
	verifier, err := captcha.NewVerifier(cfg)
	if err != nil {
		return err
	}

	hsrv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: api.NewRouter(api.Deps{
			Config:   cfg,
			Engine:   engine,
			Accounts: accounts,
			Settings: svc,
			Store:    st,
			Mailer:   mailer,
			Limiter:  limiter,
			Captcha:  verifier,
			Gatherer: prometheus.DefaultGatherer,
			Logger:   log,
		}),
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: cfg.HTTPReadHeaderTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		engine.RunCleanup(ctx, cfg.CleanupInterval, cfg.CleanupRetention)
	}()

	errc := make(chan error, 1)
	go func() {
		info := version.Current()
		log.Info("listening", "addr", cfg.ListenAddr, "db", dialect.Name, "notify", mailer.Backend(), "version", info.Version)
		if err := hsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		stop()
		wg.Wait()
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err = hsrv.Shutdown(shutdownCtx)
	wg.Wait()
	return err
}
