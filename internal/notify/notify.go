// Package notify composes the workflow's transactional emails and hands them
// to a delivery transport.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"promptmarket/internal/config"
	"promptmarket/internal/models"
)

type Notifier interface {
	SendApprovalNotification(ctx context.Context, to []string, rec models.PendingRegistration, approveToken, rejectToken string) error
	SendVerificationEmail(ctx context.Context, email, username, token string) error
	SendRejectionEmail(ctx context.Context, email, username string) error
	SendWelcomeEmail(ctx context.Context, email, username string) error
	SendPasswordReset(ctx context.Context, email, username, token string) error
}

type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Transport delivers one composed message.
type Transport interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}

// Prober is implemented by transports that can check their upstream.
type Prober interface {
	Probe(ctx context.Context) error
}

var ErrNoRecipients = errors.New("no recipients")

type Mailer struct {
	transport Transport
	links     Links
	log       *slog.Logger
	fanout    int
}

func NewMailer(t Transport, links Links, log *slog.Logger) *Mailer {
	if log == nil {
		log = slog.Default()
	}
	return &Mailer{transport: t, links: links, log: log, fanout: 4}
}

// New builds the mailer for the configured backend.
func New(cfg config.Config, log *slog.Logger) (*Mailer, error) {
	var t Transport
	switch cfg.NotifyBackend {
	case "", "log":
		t = NewLogTransport(log)
	case "file":
		ft, err := NewFileTransport(cfg.NotifyOutboxDir, cfg.NotifyFrom)
		if err != nil {
			return nil, err
		}
		t = ft
	case "smtp":
		st, err := NewSMTPTransport(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			TLS:      cfg.SMTPTLS,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.NotifyFrom,
		})
		if err != nil {
			return nil, err
		}
		t = st
	case "resend":
		t = NewResendTransport(cfg.ResendAPIKey, cfg.NotifyFrom)
	default:
		return nil, fmt.Errorf("unknown notify backend %q", cfg.NotifyBackend)
	}
	return NewMailer(t, Links{BaseURL: cfg.PublicBaseURL}, log), nil
}

func (m *Mailer) Backend() string { return m.transport.Name() }

// Probe checks the transport when it supports it.
func (m *Mailer) Probe(ctx context.Context) error {
	if p, ok := m.transport.(Prober); ok {
		return p.Probe(ctx)
	}
	return nil
}

// SendApprovalNotification delivers one message per reviewer so a bad
// address does not block the others. Failures are joined.
func (m *Mailer) SendApprovalNotification(ctx context.Context, to []string, rec models.PendingRegistration, approveToken, rejectToken string) error {
	recipients := dedupe(to)
	if len(recipients) == 0 {
		return ErrNoRecipients
	}
	subject, text, html := approvalRequest(rec, m.links.Approve(approveToken), m.links.Reject(rejectToken))

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.fanout)
	for _, addr := range recipients {
		g.Go(func() error {
			err := m.transport.Deliver(gctx, Message{To: []string{addr}, Subject: subject, Text: text, HTML: html})
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", addr, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (m *Mailer) SendVerificationEmail(ctx context.Context, email, username, token string) error {
	subject, text, html := verification(username, m.links.Verify(token))
	return m.deliverOne(ctx, email, subject, text, html)
}

func (m *Mailer) SendRejectionEmail(ctx context.Context, email, username string) error {
	subject, text, html := rejection(username)
	return m.deliverOne(ctx, email, subject, text, html)
}

func (m *Mailer) SendWelcomeEmail(ctx context.Context, email, username string) error {
	subject, text, html := welcome(username)
	return m.deliverOne(ctx, email, subject, text, html)
}

func (m *Mailer) SendPasswordReset(ctx context.Context, email, username, token string) error {
	subject, text, html := passwordReset(username, m.links.Reset(token))
	return m.deliverOne(ctx, email, subject, text, html)
}

func (m *Mailer) deliverOne(ctx context.Context, to, subject, text, html string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return ErrNoRecipients
	}
	return m.transport.Deliver(ctx, Message{To: []string{to}, Subject: subject, Text: text, HTML: html})
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
