package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/stagecast/distributor/internal/config"
	"github.com/stagecast/distributor/internal/middleware"
	"github.com/stagecast/distributor/internal/services"
	"github.com/stagecast/distributor/internal/utils"
	"github.com/stagecast/distributor/pkg/response"
)

// AuthHandler issues access tokens. Identity is taken at face value
// from the upstream auth provider's uid; this service does not verify
// credentials itself.
type AuthHandler struct {
	distributor *services.Distributor
	expireHour  int
}

func NewAuthHandler(d *services.Distributor, cfg *config.Config) *AuthHandler {
	return &AuthHandler{distributor: d, expireHour: cfg.Auth.ExpireHour}
}

type TokenRequest struct {
	Uid       string `json:"uid" binding:"required"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

// IssueToken finds or creates the user for the given uid and returns a
// signed token for the socket gateway and the REST surface.
// POST /api/auth/token
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.distributor.GetOrCreateUserByUid(req.Uid, req.Name, req.AvatarURL)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Uid, h.expireHour)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"token": token,
		"user":  user,
	})
}

// GetCurrentUser returns the authenticated user.
// GET /api/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	user, err := h.distributor.GetUser(middleware.GetUserID(c))
	if err != nil {
		response.NotFound(c, "user not found")
		return
	}
	response.Success(c, user)
}
