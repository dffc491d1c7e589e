package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/klinikgo/klinik-api/internal/models"
	appErrors "github.com/klinikgo/klinik-api/pkg/errors"
)

type mockInvitationRepo struct {
	byToken  map[string]*models.Invitation
	pending  bool
	created  []*models.Invitation
	accepted []string
	revoked  []string
}

func (m *mockInvitationRepo) Create(ctx context.Context, invitation *models.Invitation) error {
	m.created = append(m.created, invitation)
	return nil
}

func (m *mockInvitationRepo) FindByToken(ctx context.Context, token string) (*models.Invitation, error) {
	inv, ok := m.byToken[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return inv, nil
}

func (m *mockInvitationRepo) HasPendingByEmail(ctx context.Context, email string) (bool, error) {
	return m.pending, nil
}

func (m *mockInvitationRepo) MarkAccepted(ctx context.Context, id string, acceptedAt time.Time) error {
	m.accepted = append(m.accepted, id)
	return nil
}

func (m *mockInvitationRepo) Revoke(ctx context.Context, id string) error {
	m.revoked = append(m.revoked, id)
	return nil
}

func (m *mockInvitationRepo) ListPending(ctx context.Context) ([]models.Invitation, error) {
	var out []models.Invitation
	for _, inv := range m.byToken {
		if inv.Status == models.InvitationPending {
			out = append(out, *inv)
		}
	}
	return out, nil
}

type mockInvitationUserRepo struct {
	exists  bool
	created []*models.User
}

func (m *mockInvitationUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return m.exists, nil
}

func (m *mockInvitationUserRepo) Create(ctx context.Context, user *models.User) error {
	m.created = append(m.created, user)
	return nil
}

func TestInvitationServiceInvite(t *testing.T) {
	invitations := &mockInvitationRepo{}
	users := &mockInvitationUserRepo{}
	svc := NewInvitationService(invitations, users, validator.New(), zap.NewNop(), 72*time.Hour)

	invitation, err := svc.Invite(context.Background(), "admin-1", models.InviteRequest{Email: "new@example.com", Role: models.RoleStaff})
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, invitation.Status)
	assert.NotEmpty(t, invitation.Token)
	assert.Equal(t, "admin-1", invitation.InvitedBy)
	assert.WithinDuration(t, time.Now().UTC().Add(72*time.Hour), invitation.ExpiresAt, time.Minute)
	require.Len(t, invitations.created, 1)
}

func TestInvitationServiceInviteExistingUser(t *testing.T) {
	svc := NewInvitationService(&mockInvitationRepo{}, &mockInvitationUserRepo{exists: true}, validator.New(), zap.NewNop(), 0)

	_, err := svc.Invite(context.Background(), "admin-1", models.InviteRequest{Email: "taken@example.com", Role: models.RoleStaff})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestInvitationServiceInvitePendingDuplicate(t *testing.T) {
	svc := NewInvitationService(&mockInvitationRepo{pending: true}, &mockInvitationUserRepo{}, validator.New(), zap.NewNop(), 0)

	_, err := svc.Invite(context.Background(), "admin-1", models.InviteRequest{Email: "dup@example.com", Role: models.RoleDoctor})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestInvitationServiceInviteRejectsSuperadmin(t *testing.T) {
	svc := NewInvitationService(&mockInvitationRepo{}, &mockInvitationUserRepo{}, validator.New(), zap.NewNop(), 0)

	_, err := svc.Invite(context.Background(), "admin-1", models.InviteRequest{Email: "root@example.com", Role: models.RoleSuperAdmin})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestInvitationServiceAccept(t *testing.T) {
	invitation := &models.Invitation{
		ID:        "inv-1",
		Email:     "new@example.com",
		Role:      models.RoleStaff,
		Token:     "tok",
		Status:    models.InvitationPending,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	invitations := &mockInvitationRepo{byToken: map[string]*models.Invitation{"tok": invitation}}
	users := &mockInvitationUserRepo{}
	svc := NewInvitationService(invitations, users, validator.New(), zap.NewNop(), 0)

	user, err := svc.Accept(context.Background(), models.AcceptInvitationRequest{Token: "tok", FullName: "New Staff", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, models.RoleStaff, user.Role)
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
	assert.Equal(t, []string{"inv-1"}, invitations.accepted)
	require.Len(t, users.created, 1)
}

func TestInvitationServiceAcceptExpired(t *testing.T) {
	invitation := &models.Invitation{
		ID:        "inv-1",
		Email:     "late@example.com",
		Role:      models.RoleStaff,
		Token:     "tok",
		Status:    models.InvitationPending,
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	invitations := &mockInvitationRepo{byToken: map[string]*models.Invitation{"tok": invitation}}
	svc := NewInvitationService(invitations, &mockInvitationUserRepo{}, validator.New(), zap.NewNop(), 0)

	_, err := svc.Accept(context.Background(), models.AcceptInvitationRequest{Token: "tok", FullName: "Late Staff", Password: "password123"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestInvitationServiceAcceptUnknownToken(t *testing.T) {
	svc := NewInvitationService(&mockInvitationRepo{}, &mockInvitationUserRepo{}, validator.New(), zap.NewNop(), 0)

	_, err := svc.Accept(context.Background(), models.AcceptInvitationRequest{Token: "nope", FullName: "Ghost", Password: "password123"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
