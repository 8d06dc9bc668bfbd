package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptmarket/internal/db"
	"promptmarket/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	sqdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "store.db"), 1, 1, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqdb.Close() })
	require.NoError(t, db.Migrate(sqdb, db.SQLite))
	return New(sqdb, db.SQLite)
}

func newPending(username, email string) models.PendingRegistration {
	now := time.Now().UTC()
	exp := now.Add(7 * 24 * time.Hour)
	approve, reject := uuid.NewString(), uuid.NewString()
	return models.PendingRegistration{
		ID:             uuid.NewString(),
		Username:       username,
		Email:          email,
		PasswordHash:   "hash",
		Status:         models.PendingStatusPending,
		ApprovalToken:  &approve,
		RejectToken:    &reject,
		TokenExpiresAt: &exp,
		CreatedAt:      now,
	}
}

func TestCreatePendingClassifiesDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePending(ctx, newPending("alice", "alice@x.test")))
	assert.ErrorIs(t, s.CreatePending(ctx, newPending("alicia", "alice@x.test")), ErrDuplicateEmail)
	assert.ErrorIs(t, s.CreatePending(ctx, newPending("alice", "other@x.test")), ErrDuplicateUsername)

	require.NoError(t, s.CreatePending(ctx, newPending("emailfan", "fan@x.test")))
	assert.ErrorIs(t, s.CreatePending(ctx, newPending("emailfan", "fan2@x.test")), ErrDuplicateUsername)

	rows, err := s.FindPendingByUsernameOrEmail(ctx, "nobody", "alice@x.test")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0].Username)
	assert.NotNil(t, rows[0].ApprovalToken)
}

func TestTokenLookupsUseTheirOwnColumn(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := newPending("bob", "bob@x.test")
	require.NoError(t, s.CreatePending(ctx, p))

	got, err := s.GetPendingByApprovalToken(ctx, *p.ApprovalToken)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = s.GetPendingByRejectToken(ctx, *p.ApprovalToken)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetPendingByApprovalToken(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResetPendingOnlyFromReviewedStates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := newPending("carol", "carol@x.test")
	require.NoError(t, s.CreatePending(ctx, p))

	p.PasswordHash = "new-hash"
	assert.ErrorIs(t, s.ResetPending(ctx, p), ErrConflict)

	now := time.Now().UTC()
	notes := "spam"
	reviewer := "admin-1"
	rejected := p
	rejected.Status = models.PendingStatusRejected
	rejected.ReviewedAt = &now
	rejected.ReviewedBy = &reviewer
	rejected.ReviewNotes = &notes
	require.NoError(t, s.RejectPending(ctx, rejected))
	assert.ErrorIs(t, s.RejectPending(ctx, rejected), ErrConflict)

	fresh := newPending("carol", "carol@x.test")
	fresh.ID = p.ID
	require.NoError(t, s.ResetPending(ctx, fresh))

	got, err := s.GetPendingByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PendingStatusPending, got.Status)
	assert.Nil(t, got.ReviewedAt)
	assert.Nil(t, got.ReviewedBy)
	assert.Nil(t, got.ReviewNotes)
	assert.Equal(t, *fresh.ApprovalToken, *got.ApprovalToken)
	assert.Equal(t, "hash", got.PasswordHash)
}

func TestPromotePendingIsSingleShot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := newPending("dave", "dave@x.test")
	require.NoError(t, s.CreatePending(ctx, p))

	now := time.Now().UTC()
	approved := p
	approved.Status = models.PendingStatusApproved
	approved.ReviewedAt = &now
	u := models.User{ID: uuid.NewString(), Username: p.Username, Email: p.Email, PasswordHash: p.PasswordHash, CreatedAt: now}
	require.NoError(t, s.PromotePending(ctx, approved, u))

	again := u
	again.ID = uuid.NewString()
	assert.ErrorIs(t, s.PromotePending(ctx, approved, again), ErrConflict)

	got, err := s.GetPendingByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PendingStatusApproved, got.Status)
	require.NotNil(t, got.PromotedUserID)
	assert.Equal(t, u.ID, *got.PromotedUserID)

	user, err := s.GetUserByEmail(ctx, "DAVE@x.test")
	require.NoError(t, err)
	assert.False(t, user.EmailVerified)
}

func TestPromotePendingRollsBackOnUserCollision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, s.CreateUser(ctx, models.User{ID: uuid.NewString(), Username: "someone", Email: "erin@x.test", PasswordHash: "h", CreatedAt: now}))

	p := newPending("erin", "erin@x.test")
	require.NoError(t, s.CreatePending(ctx, p))
	approved := p
	approved.Status = models.PendingStatusApproved
	approved.ReviewedAt = &now
	err := s.PromotePending(ctx, approved, models.User{ID: uuid.NewString(), Username: "erin", Email: "erin@x.test", PasswordHash: "h", CreatedAt: now})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	got, err := s.GetPendingByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PendingStatusPending, got.Status)
	assert.Nil(t, got.PromotedUserID)
}

func TestListPendingFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"frank", "grace", "heidi"} {
		require.NoError(t, s.CreatePending(ctx, newPending(name, name+"@x.test")))
	}
	rows, err := s.FindPendingByUsernameOrEmail(ctx, "grace", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	g := rows[0]
	now := time.Now().UTC()
	g.Status = models.PendingStatusRejected
	g.ReviewedAt = &now
	require.NoError(t, s.RejectPending(ctx, g))

	pending, total, err := s.ListPending(ctx, models.PendingQuery{Status: "pending"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, pending, 2)

	all, total, err := s.ListPending(ctx, models.PendingQuery{Status: "all", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 1)

	found, total, err := s.ListPending(ctx, models.PendingQuery{Q: "HEI"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "heidi", found[0].Username)
}

func TestDeletePromotedBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC()

	for i, at := range []time.Time{old, recent} {
		p := newPending(uuid.NewString()[:8], uuid.NewString()[:8]+"@x.test")
		require.NoError(t, s.CreatePending(ctx, p), "row %d", i)
		reviewed := at
		p.Status = models.PendingStatusApproved
		p.ReviewedAt = &reviewed
		require.NoError(t, s.PromotePending(ctx, p, models.User{ID: uuid.NewString(), Username: p.Username, Email: p.Email, PasswordHash: "h", CreatedAt: at}))
	}
	require.NoError(t, s.CreatePending(ctx, newPending("ivan", "ivan@x.test")))

	n, err := s.DeletePromotedBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, total, err := s.ListPending(ctx, models.PendingQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestUserTokensAndAdmins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureAdmin(ctx, "root", "Root@X.test", "admin-hash"))
	require.NoError(t, s.EnsureAdmin(ctx, "root", "root@x.test", "admin-hash-2"))

	count, err := s.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	emails, err := s.ListAdminEmails(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"root@x.test"}, emails)

	admin, err := s.GetUserByUsername(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, "admin-hash-2", admin.PasswordHash)
	assert.True(t, admin.IsAdmin)

	exp := time.Now().UTC().Add(time.Hour)
	require.NoError(t, s.SetVerificationToken(ctx, admin.ID, "digest-v", exp))
	got, err := s.GetUserByVerificationHash(ctx, "digest-v")
	require.NoError(t, err)
	require.NotNil(t, got.VerificationExpiresAt)
	require.NoError(t, s.MarkEmailVerified(ctx, admin.ID, "digest-v"))
	assert.ErrorIs(t, s.MarkEmailVerified(ctx, admin.ID, "digest-v"), ErrConflict)

	require.NoError(t, s.SetResetToken(ctx, admin.ID, "digest-r", exp))
	_, err = s.GetUserByVerificationHash(ctx, "digest-r")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.ConsumeResetToken(ctx, admin.ID, "digest-r", "new-hash"))
	assert.ErrorIs(t, s.ConsumeResetToken(ctx, admin.ID, "digest-r", "again"), ErrConflict)

	assert.ErrorIs(t, s.SetResetToken(ctx, "missing", "x", exp), ErrNotFound)
}

func TestSettingsAndAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetSetting(ctx, "user_approval_enabled")
	require.NoError(t, err)
	assert.False(t, ok)

	by := "admin-1"
	require.NoError(t, s.UpsertSetting(ctx, models.Setting{Key: "user_approval_enabled", Value: "true", Description: "gate"}))
	require.NoError(t, s.UpsertSetting(ctx, models.Setting{Key: "user_approval_enabled", Value: "false", Description: "gate", UpdatedBy: &by}))
	st, ok, err := s.GetSetting(ctx, "user_approval_enabled")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "false", st.Value)
	require.NotNil(t, st.UpdatedBy)
	assert.Equal(t, by, *st.UpdatedBy)

	require.NoError(t, s.InsertAudit(ctx, &by, "registration.approve", "pending:1", `{"channel":"admin"}`))
	require.NoError(t, s.InsertAudit(ctx, nil, "registration.reject", "pending:2", ""))
	entries, err := s.ListAudit(ctx, models.AuditQuery{Action: "registration.reject"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].ActorUserID)
	assert.Equal(t, "{}", entries[0].MetadataJSON)
}

func newUser(username, email string) models.User {
	return models.User{ID: uuid.NewString(), Username: username, Email: email, PasswordHash: "h", CreatedAt: time.Now().UTC()}
}
