// Package account handles the token flows owned by an existing user: email
// verification and password reset.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"promptmarket/internal/approval"
	"promptmarket/internal/auth"
	"promptmarket/internal/models"
	"promptmarket/internal/notify"
	"promptmarket/internal/store"
)

var (
	ErrInvalidToken    = errors.New("this link is invalid or has expired")
	ErrAlreadyVerified = errors.New("email already verified")
)

type Store interface {
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByVerificationHash(ctx context.Context, tokenHash string) (models.User, error)
	GetUserByResetHash(ctx context.Context, tokenHash string) (models.User, error)
	SetVerificationToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	MarkEmailVerified(ctx context.Context, userID, tokenHash string) error
	SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, userID, tokenHash, passwordHash string) error
}

type Options struct {
	Hasher          auth.Hasher
	Passwords       approval.PasswordPolicy
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	Logger          *slog.Logger
	Now             func() time.Time
}

type Service struct {
	st        Store
	notifier  notify.Notifier
	hasher    auth.Hasher
	passwords approval.PasswordPolicy
	verifyTTL time.Duration
	resetTTL  time.Duration
	log       *slog.Logger
	now       func() time.Time
}

func New(st Store, n notify.Notifier, opts Options) *Service {
	s := &Service{
		st:        st,
		notifier:  n,
		hasher:    opts.Hasher,
		passwords: opts.Passwords,
		verifyTTL: opts.VerificationTTL,
		resetTTL:  opts.ResetTTL,
		log:       opts.Logger,
		now:       opts.Now,
	}
	if s.hasher == nil {
		s.hasher = auth.Argon2idHasher{}
	}
	if s.passwords.MinLength <= 0 {
		s.passwords = approval.PasswordPolicy{MinLength: 8, MaxLength: 128}
	}
	if s.verifyTTL <= 0 {
		s.verifyTTL = approval.DefaultVerificationTTL
	}
	if s.resetTTL <= 0 {
		s.resetTTL = time.Hour
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// VerifyEmail consumes a verification token and sends the welcome email.
func (s *Service) VerifyEmail(ctx context.Context, token string) (models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.User{}, ErrInvalidToken
	}
	digest := auth.HashToken(token)
	u, err := s.st.GetUserByVerificationHash(ctx, digest)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, ErrInvalidToken
	}
	if err != nil {
		return models.User{}, fmt.Errorf("load user by verification token: %w", err)
	}
	if u.EmailVerified {
		return models.User{}, ErrAlreadyVerified
	}
	if u.VerificationExpiresAt == nil || !s.now().Before(*u.VerificationExpiresAt) {
		return models.User{}, ErrInvalidToken
	}
	if err := s.st.MarkEmailVerified(ctx, u.ID, digest); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return models.User{}, ErrInvalidToken
		}
		return models.User{}, fmt.Errorf("mark email verified: %w", err)
	}
	u.EmailVerified = true
	u.VerificationTokenHash = nil
	u.VerificationExpiresAt = nil
	s.log.Info("email verified", "user_id", u.ID)

	if s.notifier != nil {
		if err := s.notifier.SendWelcomeEmail(ctx, u.Email, u.Username); err != nil {
			s.log.Error("welcome email failed", "user_id", u.ID, "recipient", u.Email, "error", err)
		}
	}
	return u, nil
}

// ResendVerification issues a fresh verification token. Unknown or already
// verified addresses succeed silently.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	u, err := s.st.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if u.EmailVerified {
		return nil
	}
	raw, digest, err := auth.NewOpaqueToken()
	if err != nil {
		return err
	}
	if err := s.st.SetVerificationToken(ctx, u.ID, digest, s.now().UTC().Add(s.verifyTTL)); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}
	if s.notifier != nil {
		if err := s.notifier.SendVerificationEmail(ctx, u.Email, u.Username, raw); err != nil {
			s.log.Error("verification email failed", "user_id", u.ID, "recipient", u.Email, "error", err)
		}
	}
	return nil
}

// RequestPasswordReset never reveals whether the address belongs to a user.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.st.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Error("password reset lookup", "error", err)
		}
		return nil
	}
	raw, digest, err := auth.NewOpaqueToken()
	if err != nil {
		return err
	}
	if err := s.st.SetResetToken(ctx, u.ID, digest, s.now().UTC().Add(s.resetTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	if s.notifier != nil {
		if err := s.notifier.SendPasswordReset(ctx, u.Email, u.Username, raw); err != nil {
			s.log.Error("password reset email failed", "user_id", u.ID, "recipient", u.Email, "error", err)
		}
	}
	return nil
}

func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if err := approval.ValidatePassword(newPassword, s.passwords); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	digest := auth.HashToken(token)
	u, err := s.st.GetUserByResetHash(ctx, digest)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("load user by reset token: %w", err)
	}
	if u.ResetExpiresAt == nil || !s.now().Before(*u.ResetExpiresAt) {
		return ErrInvalidToken
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.st.ConsumeResetToken(ctx, u.ID, digest, hash); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrInvalidToken
		}
		return fmt.Errorf("consume reset token: %w", err)
	}
	s.log.Info("password reset", "user_id", u.ID)
	return nil
}
