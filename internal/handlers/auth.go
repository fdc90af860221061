package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/forum-web/internal/apperr"
	"github.com/emilythestrangee/forum-web/internal/middleware"
	"github.com/emilythestrangee/forum-web/internal/models"
)

type AuthHandler struct {
	*deps
}

// Register creates the account upstream and signs the session in.
func (h *AuthHandler) Register(c *gin.Context) {
	var input models.RegisterRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.api.Register(c.Request.Context(), input)
	if err != nil {
		fail(c, err)
		return
	}
	h.signIn(c, http.StatusCreated, resp)
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var input models.LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.api.Login(c.Request.Context(), input)
	if err != nil {
		fail(c, err)
		return
	}
	h.signIn(c, http.StatusOK, resp)
}

// GoogleLogin exchanges a Google ID token for a forum identity.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var input models.GoogleLoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.api.GoogleLogin(c.Request.Context(), input)
	if err != nil {
		fail(c, err)
		return
	}
	h.signIn(c, http.StatusOK, resp)
}

// Logout clears the identity of the session. The session itself stays.
func (h *AuthHandler) Logout(c *gin.Context) {
	s := middleware.CurrentSession(c)
	if s == nil {
		fail(c, apperr.New(apperr.CodeUnauthenticated, "no session"))
		return
	}
	if err := h.sessions.SignOut(c.Request.Context(), s); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

func (h *AuthHandler) signIn(c *gin.Context, status int, resp models.AuthResponse) {
	s := middleware.CurrentSession(c)
	if s == nil {
		fail(c, apperr.New(apperr.CodeUnauthenticated, "no session"))
		return
	}
	if _, err := h.sessions.SignIn(c.Request.Context(), s, resp.Token); err != nil {
		h.log.Warn().Err(err).Str("email", resp.User.Email).Msg("forum API issued an unverifiable token")
		fail(c, err)
		return
	}

	c.JSON(status, gin.H{
		"user": resp.User,
		"role": s.Roles().Snapshot(),
	})
}
