package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/agora-backend/internal/http/response"
	"github.com/yungbote/agora-backend/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// POST /auth/magic-link
// Always answers 202 for a well-formed email so the endpoint does not reveal
// which addresses have accounts.
func (ah *AuthHandler) MagicLink(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, badJSON(err))
		return
	}
	if err := ah.authService.RequestMagicLink(dbcOf(c), req.Email); err != nil {
		response.RespondError(c, err)
		return
	}
	c.JSON(202, gin.H{"ok": true})
}

// POST /auth/verify
func (ah *AuthHandler) Verify(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, badJSON(err))
		return
	}
	sess, err := ah.authService.VerifyMagicLink(dbcOf(c), req.Token)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	ah.respondSession(c, sess)
}

// POST /auth/refresh
func (ah *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, badJSON(err))
		return
	}
	sess, err := ah.authService.Refresh(dbcOf(c), req.RefreshToken)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	ah.respondSession(c, sess)
}

// POST /auth/logout
func (ah *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, badJSON(err))
		return
	}
	if err := ah.authService.Logout(dbcOf(c), req.RefreshToken); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

func (ah *AuthHandler) respondSession(c *gin.Context, sess *services.Session) {
	response.RespondOK(c, gin.H{
		"access_token":  sess.AccessToken,
		"refresh_token": sess.RefreshToken,
		"expires_at":    sess.ExpiresAt,
		"expires_in":    int(ah.authService.GetAccessTTL().Seconds()),
		"user":          sess.User,
	})
}
