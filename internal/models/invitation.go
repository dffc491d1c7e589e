package models

import "time"

// InvitationStatus enumerates staff invitation lifecycle states.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationRevoked  InvitationStatus = "REVOKED"
)

// InviteRequest is the payload for inviting a staff member.
type InviteRequest struct {
	Email string   `json:"email" validate:"required,email"`
	Role  UserRole `json:"role" validate:"required,oneof=ADMIN DOCTOR STAFF"`
}

// AcceptInvitationRequest completes an invitation and creates the account.
type AcceptInvitationRequest struct {
	Token    string `json:"token" validate:"required"`
	FullName string `json:"full_name" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=8"`
}

// Invitation represents a pending staff invitation token.
type Invitation struct {
	ID         string           `db:"id" json:"id"`
	Email      string           `db:"email" json:"email"`
	Role       UserRole         `db:"role" json:"role"`
	Token      string           `db:"token" json:"-"`
	Status     InvitationStatus `db:"status" json:"status"`
	InvitedBy  string           `db:"invited_by" json:"invited_by"`
	ExpiresAt  time.Time        `db:"expires_at" json:"expires_at"`
	AcceptedAt *time.Time       `db:"accepted_at" json:"accepted_at,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}
