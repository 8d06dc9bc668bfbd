package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"promptmarket/internal/account"
	"promptmarket/internal/approval"
	"promptmarket/internal/captcha"
	"promptmarket/internal/config"
	"promptmarket/internal/middleware"
	"promptmarket/internal/rate"
	"promptmarket/internal/settings"
	"promptmarket/internal/store"
	"promptmarket/internal/util"
	"promptmarket/internal/version"
)

// Prober reports whether a dependency is usable.
type Prober interface {
	Probe(ctx context.Context) error
}

type Deps struct {
	Config   config.Config
	Engine   *approval.Engine
	Accounts *account.Service
	Settings *settings.Service
	Store    *store.Store
	Mailer   Prober
	Limiter  rate.Limiter
	Captcha  captcha.Verifier
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

type Handlers struct {
	cfg      config.Config
	engine   *approval.Engine
	accounts *account.Service
	settings *settings.Service
	st       *store.Store
	mailer   Prober
	limiter  rate.Limiter
	captcha  captcha.Verifier
	log      *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	h := &Handlers{
		cfg:      d.Config,
		engine:   d.Engine,
		accounts: d.Accounts,
		settings: d.Settings,
		st:       d.Store,
		mailer:   d.Mailer,
		limiter:  d.Limiter,
		captcha:  d.Captcha,
		log:      d.Logger,
	}
	if h.limiter == nil {
		h.limiter = rate.NewMemory()
	}
	if h.captcha == nil {
		h.captcha = captcha.NoopVerifier{}
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	trust := h.cfg.TrustProxy

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLogger(h.log, trust))
	r.Use(middleware.SecurityHeaders)
	if len(h.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", h.Ready)
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSON(w, http.StatusOK, version.Current())
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(h.limiter, "register", 10, time.Minute, trust, h.log)).Post("/register", h.Register)
		r.With(middleware.RateLimit(h.limiter, "review_link", 30, time.Minute, trust, h.log)).Get("/registrations/approve", h.ApproveLink)
		r.With(middleware.RateLimit(h.limiter, "review_link", 30, time.Minute, trust, h.log)).Get("/registrations/reject", h.RejectLink)
		r.With(middleware.RateLimit(h.limiter, "verify_email", 30, time.Minute, trust, h.log)).Get("/verify-email", h.VerifyEmail)
		r.With(middleware.RateLimit(h.limiter, "verify_resend", 5, time.Minute, trust, h.log)).Post("/verify-email/resend", h.ResendVerification)
		r.With(middleware.RateLimit(h.limiter, "reset_request", 10, time.Minute, trust, h.log)).Post("/password/reset/request", h.PasswordResetRequest)
		r.With(middleware.RateLimit(h.limiter, "reset_confirm", 20, time.Minute, trust, h.log)).Post("/password/reset/confirm", h.PasswordResetConfirm)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminBasicAuth(h.st, h.log))
			r.Get("/registrations", h.AdminListRegistrations)
			r.Post("/registrations/cleanup", h.AdminCleanupRegistrations)
			r.Get("/registrations/{id}", h.AdminGetRegistration)
			r.Post("/registrations/{id}/approve", h.AdminApproveRegistration)
			r.Post("/registrations/{id}/reject", h.AdminRejectRegistration)
			r.Post("/registrations/{id}/resend", h.AdminResendNotification)
			r.Get("/settings/{key}", h.AdminGetSetting)
			r.Put("/settings/{key}", h.AdminPutSetting)
			r.Get("/audit-log", h.AdminAuditLog)
		})
	})

	return r
}

func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	ready := map[string]any{"checked_at": time.Now().UTC().Format(time.RFC3339)}
	comps := map[string]any{}
	ok := true

	if err := h.st.Ping(ctx); err != nil {
		ok = false
		comps["database"] = map[string]any{"ok": false, "error": err.Error()}
	} else {
		comps["database"] = map[string]any{"ok": true}
	}
	if h.mailer != nil {
		if err := h.mailer.Probe(ctx); err != nil {
			ok = false
			comps["mail"] = map[string]any{"ok": false, "error": err.Error()}
		} else {
			comps["mail"] = map[string]any{"ok": true}
		}
	}
	ready["components"] = comps
	if ok {
		ready["status"] = "ready"
		util.WriteJSON(w, http.StatusOK, ready)
		return
	}
	ready["status"] = "degraded"
	util.WriteJSON(w, http.StatusServiceUnavailable, ready)
}

func parsePagination(r *http.Request) (int, int) {
	page := 1
	pageSize := 25
	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil {
			if ps < 1 {
				ps = 1
			}
			if ps > 100 {
				ps = 100
			}
			pageSize = ps
		}
	}
	return page, pageSize
}
