//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"promptmarket/internal/db"
	"promptmarket/internal/models"
)

func newPostgresStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("promptmarket"),
		postgres.WithUsername("promptmarket"),
		postgres.WithPassword("promptmarket"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	sqdb, d, err := db.Open(db.Options{
		Driver:         "postgres",
		DSN:            dsn,
		MaxOpenConns:   4,
		MaxIdleConns:   2,
		ConnectTimeout: 10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqdb.Close() })
	require.NoError(t, db.Migrate(sqdb, d))
	return New(sqdb, d)
}

func TestPostgresPendingLifecycle(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()

	p := newPending("alice", "alice@x.test")
	require.NoError(t, s.CreatePending(ctx, p))
	assert.ErrorIs(t, s.CreatePending(ctx, newPending("alice", "other@x.test")), ErrDuplicateUsername)

	got, err := s.GetPendingByApprovalToken(ctx, *p.ApprovalToken)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	now := time.Now().UTC()
	reviewer := "admin"
	got.Status = models.PendingStatusApproved
	got.ReviewedAt = &now
	got.ReviewedBy = &reviewer
	u := models.User{
		ID:           uuid.NewString(),
		Username:     got.Username,
		Email:        got.Email,
		PasswordHash: got.PasswordHash,
		CreatedAt:    now,
	}
	require.NoError(t, s.PromotePending(ctx, got, u))
	assert.ErrorIs(t, s.PromotePending(ctx, got, u), ErrConflict)

	user, err := s.FindUserByUsernameOrEmail(ctx, "nobody", "alice@x.test")
	require.NoError(t, err)
	assert.Equal(t, u.ID, user.ID)

	rows, total, err := s.ListPending(ctx, models.PendingQuery{Status: "approved", Q: "ALICE", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].PromotedUserID)
	assert.Equal(t, u.ID, *rows[0].PromotedUserID)
}
