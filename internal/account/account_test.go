package account

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptmarket/internal/approval"
	"promptmarket/internal/auth"
	"promptmarket/internal/db"
	"promptmarket/internal/logging"
	"promptmarket/internal/models"
	"promptmarket/internal/store"
)

type mailbox struct {
	mu      sync.Mutex
	welcome []string
	verify  map[string]string
	reset   map[string]string
	fail    error
}

func (m *mailbox) SendApprovalNotification(context.Context, []string, models.PendingRegistration, string, string) error {
	return nil
}

func (m *mailbox) SendVerificationEmail(_ context.Context, email, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verify[email] = token
	return m.fail
}

func (*mailbox) SendRejectionEmail(context.Context, string, string) error { return nil }

func (m *mailbox) SendWelcomeEmail(_ context.Context, email, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcome = append(m.welcome, email)
	return nil
}

func (m *mailbox) SendPasswordReset(_ context.Context, email, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset[email] = token
	return m.fail
}

type fixture struct {
	svc  *Service
	st   *store.Store
	box  *mailbox
	now  time.Time
	user models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sqdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "account.db"), 1, 1, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqdb.Close() })
	require.NoError(t, db.Migrate(sqdb, db.SQLite))

	f := &fixture{
		st:  store.New(sqdb, db.SQLite),
		box: &mailbox{verify: map[string]string{}, reset: map[string]string{}},
		now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = New(f.st, f.box, Options{
		Hasher:    auth.BcryptHasher{Cost: 4},
		Passwords: approval.PasswordPolicy{MinLength: 8, MaxLength: 72},
		Logger:    logging.Discard(),
		Now:       func() time.Time { return f.now },
	})
	f.user = models.User{ID: "u-1", Username: "alice", Email: "alice@prompts.test", PasswordHash: "old", CreatedAt: f.now}
	require.NoError(t, f.st.CreateUser(context.Background(), f.user))
	return f
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ResendVerification(ctx, "ALICE@prompts.test"))
	raw := f.box.verify["alice@prompts.test"]
	require.NotEmpty(t, raw)

	u, err := f.svc.VerifyEmail(ctx, raw)
	require.NoError(t, err)
	assert.True(t, u.EmailVerified)
	assert.Equal(t, []string{"alice@prompts.test"}, f.box.welcome)

	stored, err := f.st.GetUserByID(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)
	assert.Nil(t, stored.VerificationTokenHash)

	_, err = f.svc.VerifyEmail(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	delete(f.box.verify, "alice@prompts.test")
	require.NoError(t, f.svc.ResendVerification(ctx, "alice@prompts.test"))
	assert.Empty(t, f.box.verify)
}

func TestMailFailuresLookLikeUnknownAddresses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.box.fail = errors.New("smtp down")

	assert.NoError(t, f.svc.ResendVerification(ctx, "alice@prompts.test"))
	assert.NoError(t, f.svc.ResendVerification(ctx, "nobody@prompts.test"))
	assert.NoError(t, f.svc.RequestPasswordReset(ctx, "alice@prompts.test"))
	assert.NoError(t, f.svc.RequestPasswordReset(ctx, "nobody@prompts.test"))

	stored, err := f.st.GetUserByID(ctx, "u-1")
	require.NoError(t, err)
	require.NotNil(t, stored.VerificationTokenHash)
	assert.Equal(t, auth.HashToken(f.box.verify["alice@prompts.test"]), *stored.VerificationTokenHash)
}

func TestVerifyEmailExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.ResendVerification(ctx, "alice@prompts.test"))
	raw := f.box.verify["alice@prompts.test"]

	f.now = f.now.Add(approval.DefaultVerificationTTL + time.Second)
	_, err := f.svc.VerifyEmail(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.svc.VerifyEmail(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordResetRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "nobody@prompts.test"))
	assert.Empty(t, f.box.reset)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "alice@prompts.test"))
	raw := f.box.reset["alice@prompts.test"]
	require.NotEmpty(t, raw)

	err := f.svc.ConfirmPasswordReset(ctx, raw, "short")
	assert.ErrorIs(t, err, approval.ErrValidation)

	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, raw, "a brand new secret"))
	u, err := f.st.GetUserByID(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, auth.VerifyPassword(u.PasswordHash, "a brand new secret"))
	assert.Nil(t, u.ResetTokenHash)

	assert.ErrorIs(t, f.svc.ConfirmPasswordReset(ctx, raw, "another secret!"), ErrInvalidToken)
}

func TestPasswordResetExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "alice@prompts.test"))
	raw := f.box.reset["alice@prompts.test"]

	f.now = f.now.Add(time.Hour)
	assert.ErrorIs(t, f.svc.ConfirmPasswordReset(ctx, raw, "a brand new secret"), ErrInvalidToken)
}
