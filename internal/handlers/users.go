package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/forum-web/internal/models"
	"github.com/emilythestrangee/forum-web/internal/nav"
	"github.com/emilythestrangee/forum-web/internal/role"
)

type UserHandler struct {
	*deps
}

// GetMe returns the signed-in profile and the role as currently resolved.
func (h *UserHandler) GetMe(c *gin.Context) {
	s, v, ok := viewer(c)
	if !ok {
		return
	}

	profile, err := h.api.GetUser(c.Request.Context(), v.Token, v.Email)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user": profile,
		"role": s.Roles().Snapshot(),
	})
}

// UpdateMe edits the about-me text and photo URL of the signed-in user.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	_, v, ok := viewer(c)
	if !ok {
		return
	}

	var input models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	profile, err := h.api.UpdateProfile(c.Request.Context(), v.Token, v.Email, input)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Dashboard returns the navigation for the session's role. A role still
// being resolved is waited on briefly; anything but admin gets the user
// navigation.
func (h *UserHandler) Dashboard(c *gin.Context) {
	s, _, ok := viewer(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.roleWait)
	snap := s.Roles().Await(ctx)
	cancel()

	c.JSON(http.StatusOK, dashboard{
		Role:  snap,
		Items: nav.ForRole(snap.Role),
		Home:  nav.Home(snap.Role),
	})
}

type dashboard struct {
	Role  role.Snapshot `json:"role"`
	Items []nav.Item    `json:"items"`
	Home  string        `json:"home"`
}
