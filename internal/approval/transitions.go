package approval

import (
	"time"

	"promptmarket/internal/models"
)

// transitions is the whole state machine. Approved and rejected rows only
// leave their state through a reset started by a fresh registration.
var transitions = map[models.PendingStatus][]models.PendingStatus{
	models.PendingStatusPending:  {models.PendingStatusApproved, models.PendingStatusRejected},
	models.PendingStatusApproved: {models.PendingStatusPending},
	models.PendingStatusRejected: {models.PendingStatusPending},
}

func canTransition(from, to models.PendingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type credentials struct {
	Username     string
	Email        string
	PasswordHash string
}

type tokenPair struct {
	Approve   string
	Reject    string
	ExpiresAt time.Time
}

type review struct {
	ReviewerID *string
	Notes      *string
	At         time.Time
}

// newRecord starts the first epoch of a registration.
func newRecord(id string, c credentials, tp tokenPair, now time.Time) models.PendingRegistration {
	rec := models.PendingRegistration{
		ID:           id,
		Username:     c.Username,
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		Status:       models.PendingStatusPending,
		CreatedAt:    now,
	}
	return withTokens(rec, tp)
}

// resetRecord starts a new epoch on a reviewed row: same id, new
// credentials and tokens, review metadata cleared.
func resetRecord(rec models.PendingRegistration, c credentials, tp tokenPair, now time.Time) (models.PendingRegistration, error) {
	if !canTransition(rec.Status, models.PendingStatusPending) {
		return rec, duplicatePending(matchField(rec, c))
	}
	out := rec
	out.Username = c.Username
	out.Email = c.Email
	out.PasswordHash = c.PasswordHash
	out.Status = models.PendingStatusPending
	out.ReviewedAt = nil
	out.ReviewedBy = nil
	out.ReviewNotes = nil
	out.PromotedUserID = nil
	out.CreatedAt = now
	return withTokens(out, tp), nil
}

func approveRecord(rec models.PendingRegistration, r review, userID string) (models.PendingRegistration, error) {
	if !canTransition(rec.Status, models.PendingStatusApproved) {
		return rec, alreadyReviewed(rec.ID)
	}
	out := applyReview(rec, models.PendingStatusApproved, r)
	out.PromotedUserID = &userID
	return out, nil
}

func rejectRecord(rec models.PendingRegistration, r review) (models.PendingRegistration, error) {
	if !canTransition(rec.Status, models.PendingStatusRejected) {
		return rec, alreadyReviewed(rec.ID)
	}
	return applyReview(rec, models.PendingStatusRejected, r), nil
}

func applyReview(rec models.PendingRegistration, to models.PendingStatus, r review) models.PendingRegistration {
	at := r.At
	rec.Status = to
	rec.ReviewedAt = &at
	rec.ReviewedBy = r.ReviewerID
	rec.ReviewNotes = r.Notes
	return rec
}

func withTokens(rec models.PendingRegistration, tp tokenPair) models.PendingRegistration {
	approve, reject, exp := tp.Approve, tp.Reject, tp.ExpiresAt
	rec.ApprovalToken = &approve
	rec.RejectToken = &reject
	rec.TokenExpiresAt = &exp
	return rec
}

// matchField names which identifier of c collides with rec.
func matchField(rec models.PendingRegistration, c credentials) string {
	if rec.Email == c.Email {
		return "email"
	}
	return "username"
}
