package models

import "time"

type PendingStatus string

const (
	PendingStatusPending  PendingStatus = "pending"
	PendingStatusApproved PendingStatus = "approved"
	PendingStatusRejected PendingStatus = "rejected"
)

func (s PendingStatus) Valid() bool {
	switch s {
	case PendingStatusPending, PendingStatusApproved, PendingStatusRejected:
		return true
	}
	return false
}

// PendingRegistration is a registration awaiting (or past) moderation. A row
// is reused across epochs: re-registration resets it in place.
type PendingRegistration struct {
	ID             string        `json:"id"`
	Username       string        `json:"username"`
	Email          string        `json:"email"`
	PasswordHash   string        `json:"-"`
	Status         PendingStatus `json:"status"`
	ReviewedAt     *time.Time    `json:"reviewed_at,omitempty"`
	ReviewedBy     *string       `json:"reviewed_by,omitempty"`
	ReviewNotes    *string       `json:"review_notes,omitempty"`
	ApprovalToken  *string       `json:"-"`
	RejectToken    *string       `json:"-"`
	TokenExpiresAt *time.Time    `json:"token_expires_at,omitempty"`
	PromotedUserID *string       `json:"promoted_user_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

type User struct {
	ID                    string     `json:"id"`
	Username              string     `json:"username"`
	Email                 string     `json:"email"`
	PasswordHash          string     `json:"-"`
	EmailVerified         bool       `json:"email_verified"`
	IsAdmin               bool       `json:"is_admin"`
	IsManager             bool       `json:"is_manager"`
	VerificationTokenHash *string    `json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`
	ResetTokenHash        *string    `json:"-"`
	ResetExpiresAt        *time.Time `json:"-"`
	CreatedAt             time.Time  `json:"created_at"`
}

type Setting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	UpdatedBy   *string   `json:"updated_by,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type AuditEntry struct {
	ID           string    `json:"id"`
	ActorUserID  *string   `json:"actor_user_id,omitempty"`
	Action       string    `json:"action"`
	Target       string    `json:"target"`
	MetadataJSON string    `json:"metadata_json"`
	CreatedAt    time.Time `json:"created_at"`
}

type PendingQuery struct {
	// Status filters by lifecycle state; empty or "all" lists every row.
	Status string
	Q      string
	Limit  int
	Offset int
}

type AuditQuery struct {
	Action string
	Limit  int
	Offset int
}
