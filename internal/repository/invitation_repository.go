package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/klinikgo/klinik-api/internal/models"
)

// InvitationRepository manages persistence for staff invitations.
type InvitationRepository struct {
	db *sqlx.DB
}

// NewInvitationRepository constructs an InvitationRepository.
func NewInvitationRepository(db *sqlx.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

const invitationColumns = "id, email, role, token, status, invited_by, expires_at, accepted_at, created_at"

// Create inserts a new invitation.
func (r *InvitationRepository) Create(ctx context.Context, invitation *models.Invitation) error {
	if invitation.ID == "" {
		invitation.ID = uuid.NewString()
	}
	if invitation.CreatedAt.IsZero() {
		invitation.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO invitations (id, email, role, token, status, invited_by, expires_at, created_at)
        VALUES (:id, :email, :role, :token, :status, :invited_by, :expires_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, invitation); err != nil {
		return fmt.Errorf("create invitation: %w", err)
	}
	return nil
}

// FindByToken returns an invitation by its opaque token.
func (r *InvitationRepository) FindByToken(ctx context.Context, token string) (*models.Invitation, error) {
	query := fmt.Sprintf("SELECT %s FROM invitations WHERE token = $1 LIMIT 1", invitationColumns)
	var invitation models.Invitation
	if err := r.db.GetContext(ctx, &invitation, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find invitation by token: %w", err)
	}
	return &invitation, nil
}

// HasPendingByEmail reports whether a pending, unexpired invitation exists for the email.
func (r *InvitationRepository) HasPendingByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT 1 FROM invitations WHERE LOWER(email) = LOWER($1) AND status = $2 AND expires_at > $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, email, models.InvitationPending, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending invitation: %w", err)
	}
	return true, nil
}

// MarkAccepted records acceptance of an invitation.
func (r *InvitationRepository) MarkAccepted(ctx context.Context, id string, acceptedAt time.Time) error {
	const query = `UPDATE invitations SET status = $2, accepted_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.InvitationAccepted, acceptedAt); err != nil {
		return fmt.Errorf("accept invitation: %w", err)
	}
	return nil
}

// Revoke marks an invitation as revoked.
func (r *InvitationRepository) Revoke(ctx context.Context, id string) error {
	const query = `UPDATE invitations SET status = $2 WHERE id = $1 AND status = $3`
	result, err := r.db.ExecContext(ctx, query, id, models.InvitationRevoked, models.InvitationPending)
	if err != nil {
		return fmt.Errorf("revoke invitation: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPending returns pending invitations ordered by creation time.
func (r *InvitationRepository) ListPending(ctx context.Context) ([]models.Invitation, error) {
	query := fmt.Sprintf("SELECT %s FROM invitations WHERE status = $1 ORDER BY created_at DESC", invitationColumns)
	var invitations []models.Invitation
	if err := r.db.SelectContext(ctx, &invitations, query, models.InvitationPending); err != nil {
		return nil, fmt.Errorf("list pending invitations: %w", err)
	}
	return invitations, nil
}
