package approval

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptmarket/internal/models"
)

func TestCanTransition(t *testing.T) {
	p, a, r := models.PendingStatusPending, models.PendingStatusApproved, models.PendingStatusRejected
	assert.True(t, canTransition(p, a))
	assert.True(t, canTransition(p, r))
	assert.True(t, canTransition(a, p))
	assert.True(t, canTransition(r, p))
	assert.False(t, canTransition(a, r))
	assert.False(t, canTransition(r, a))
	assert.False(t, canTransition(p, p))
}

func TestResetRecordClearsReview(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := newRecord("p-1", credentials{Username: "alice", Email: "alice@x.test", PasswordHash: "h1"},
		tokenPair{Approve: "a1", Reject: "r1", ExpiresAt: now.Add(time.Hour)}, now)

	reviewer := "admin"
	approved, err := approveRecord(rec, review{ReviewerID: &reviewer, At: now}, "u-1")
	require.NoError(t, err)

	_, err = resetRecord(rec, credentials{Email: "alice@x.test"}, tokenPair{}, now)
	assert.ErrorIs(t, err, &Error{Kind: KindDuplicatePending, Field: "email"})

	later := now.Add(time.Hour)
	next, err := resetRecord(approved, credentials{Username: "alice2", Email: "alice@x.test", PasswordHash: "h2"},
		tokenPair{Approve: "a2", Reject: "r2", ExpiresAt: later.Add(time.Hour)}, later)
	require.NoError(t, err)
	assert.Equal(t, "p-1", next.ID)
	assert.Equal(t, models.PendingStatusPending, next.Status)
	assert.Nil(t, next.ReviewedAt)
	assert.Nil(t, next.ReviewedBy)
	assert.Nil(t, next.PromotedUserID)
	assert.Equal(t, "a2", *next.ApprovalToken)
	assert.Equal(t, later, next.CreatedAt)
	assert.Equal(t, "h2", next.PasswordHash)
}

func TestReviewOnlyFromPending(t *testing.T) {
	now := time.Now()
	rec := newRecord("p-1", credentials{Username: "alice", Email: "alice@x.test"}, tokenPair{}, now)
	rejected, err := rejectRecord(rec, review{At: now})
	require.NoError(t, err)
	assert.Equal(t, models.PendingStatusRejected, rejected.Status)
	assert.Nil(t, rejected.PromotedUserID)

	_, err = approveRecord(rejected, review{At: now}, "u-1")
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
	_, err = rejectRecord(rejected, review{At: now})
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", userConflict("email"))
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, &Error{Kind: KindConflict, Field: "email"})
	assert.NotErrorIs(t, err, &Error{Kind: KindConflict, Field: "username"})
	assert.NotErrorIs(t, err, ErrDuplicatePending)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))

	cause := errors.New("disk full")
	sf := storeFailure("create user", cause)
	assert.ErrorIs(t, sf, cause)
	assert.Equal(t, "create user failed: disk full", sf.Error())
	assert.Equal(t, "store_failure", KindStoreFailure.String())
}
