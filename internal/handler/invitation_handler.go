package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/klinikgo/klinik-api/internal/models"
	"github.com/klinikgo/klinik-api/internal/service"
	appErrors "github.com/klinikgo/klinik-api/pkg/errors"
	"github.com/klinikgo/klinik-api/pkg/response"
)

// InvitationHandler exposes staff invitation endpoints.
type InvitationHandler struct {
	invitations *service.InvitationService
}

// NewInvitationHandler constructs InvitationHandler.
func NewInvitationHandler(invitations *service.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations}
}

// Invite godoc
// @Summary Invite a staff member by email
// @Tags Invitations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.InviteRequest true "Invitation payload"
// @Success 201 {object} response.Envelope
// @Router /invitations [post]
func (h *InvitationHandler) Invite(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	invitation, err := h.invitations.Invite(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invitation)
}

// Accept godoc
// @Summary Accept an invitation and create the account
// @Tags Invitations
// @Accept json
// @Produce json
// @Param payload body models.AcceptInvitationRequest true "Acceptance payload"
// @Success 201 {object} response.Envelope
// @Router /invitations/accept [post]
func (h *InvitationHandler) Accept(c *gin.Context) {
	var req models.AcceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	user, err := h.invitations.Accept(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, models.UserInfo{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
	})
}

// Revoke godoc
// @Summary Revoke a pending invitation
// @Tags Invitations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Invitation ID"
// @Success 204
// @Router /invitations/{id} [delete]
func (h *InvitationHandler) Revoke(c *gin.Context) {
	if err := h.invitations.Revoke(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListPending godoc
// @Summary List pending invitations
// @Tags Invitations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /invitations [get]
func (h *InvitationHandler) ListPending(c *gin.Context) {
	invitations, err := h.invitations.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invitations, nil)
}
