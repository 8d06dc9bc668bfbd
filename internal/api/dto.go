package api

import (
	"time"

	"github.com/jinzhu/copier"

	"promptmarket/internal/models"
)

// registrationView is the admin-facing shape of a pending record. Tokens and
// the password hash never leave the server.
type registrationView struct {
	ID             string               `json:"id"`
	Username       string               `json:"username"`
	Email          string               `json:"email"`
	Status         models.PendingStatus `json:"status"`
	ReviewedAt     *time.Time           `json:"reviewed_at,omitempty"`
	ReviewedBy     *string              `json:"reviewed_by,omitempty"`
	ReviewNotes    *string              `json:"review_notes,omitempty"`
	TokenExpiresAt *time.Time           `json:"token_expires_at,omitempty"`
	PromotedUserID *string              `json:"promoted_user_id,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

type userView struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

func toRegistrationView(p models.PendingRegistration) registrationView {
	var v registrationView
	_ = copier.Copy(&v, &p)
	return v
}

func toRegistrationViews(in []models.PendingRegistration) []registrationView {
	out := make([]registrationView, 0, len(in))
	_ = copier.Copy(&out, &in)
	return out
}

func toUserView(u models.User) userView {
	var v userView
	_ = copier.Copy(&v, &u)
	return v
}
