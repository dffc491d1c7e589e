package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/klinikgo/klinik-api/internal/models"
	appErrors "github.com/klinikgo/klinik-api/pkg/errors"
)

type invitationRepository interface {
	Create(ctx context.Context, invitation *models.Invitation) error
	FindByToken(ctx context.Context, token string) (*models.Invitation, error)
	HasPendingByEmail(ctx context.Context, email string) (bool, error)
	MarkAccepted(ctx context.Context, id string, acceptedAt time.Time) error
	Revoke(ctx context.Context, id string) error
	ListPending(ctx context.Context) ([]models.Invitation, error)
}

type invitationUserRepository interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
}

// InvitationService handles staff onboarding via invitation tokens.
type InvitationService struct {
	invitations invitationRepository
	users       invitationUserRepository
	validator   *validator.Validate
	logger      *zap.Logger
	ttl         time.Duration
}

// NewInvitationService constructs an InvitationService.
func NewInvitationService(invitations invitationRepository, users invitationUserRepository, validate *validator.Validate, logger *zap.Logger, ttl time.Duration) *InvitationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &InvitationService{
		invitations: invitations,
		users:       users,
		validator:   validate,
		logger:      logger,
		ttl:         ttl,
	}
}

// Invite creates a pending invitation for the email and role.
func (s *InvitationService) Invite(ctx context.Context, inviterID string, req models.InviteRequest) (*models.Invitation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invitation payload")
	}

	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check user email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a user with this email already exists")
	}

	pending, err := s.invitations.HasPendingByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending invitations")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an invitation for this email is already pending")
	}

	token, err := generateInvitationToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate invitation token")
	}

	invitation := &models.Invitation{
		Email:     req.Email,
		Role:      req.Role,
		Token:     token,
		Status:    models.InvitationPending,
		InvitedBy: inviterID,
		ExpiresAt: time.Now().UTC().Add(s.ttl),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.invitations.Create(ctx, invitation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invitation")
	}

	s.logger.Info("staff invitation created",
		zap.String("email", req.Email),
		zap.String("role", string(req.Role)),
		zap.String("invited_by", inviterID))
	return invitation, nil
}

// Accept consumes a pending invitation and creates the user account.
func (s *InvitationService) Accept(ctx context.Context, req models.AcceptInvitationRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid accept payload")
	}

	invitation, err := s.invitations.FindByToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invitation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invitation")
	}

	if invitation.Status != models.InvitationPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "invitation is no longer pending")
	}
	if time.Now().UTC().After(invitation.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "invitation has expired")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        invitation.Email,
		PasswordHash: string(hashed),
		FullName:     req.FullName,
		Role:         invitation.Role,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	if err := s.invitations.MarkAccepted(ctx, invitation.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to mark invitation accepted", zap.String("invitation_id", invitation.ID), zap.Error(err))
	}
	return user, nil
}

// Revoke cancels a pending invitation.
func (s *InvitationService) Revoke(ctx context.Context, id string) error {
	if err := s.invitations.Revoke(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "pending invitation not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke invitation")
	}
	return nil
}

// ListPending returns invitations awaiting acceptance.
func (s *InvitationService) ListPending(ctx context.Context) ([]models.Invitation, error) {
	invitations, err := s.invitations.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invitations")
	}
	return invitations, nil
}

func generateInvitationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
