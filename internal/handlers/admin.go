package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/forum-web/internal/models"
)

// AdminHandler serves the admin dashboard. The routes sit behind the admin
// view gate; the forum API checks the role again on every call.
type AdminHandler struct {
	*deps
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	_, v, ok := viewer(c)
	if !ok {
		return
	}
	users, err := h.api.ListUsers(c.Request.Context(), v.Token, c.Query("search"))
	if err != nil {
		fail(c, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	c.JSON(http.StatusOK, users)
}

// SetRole changes a user's role. Changing one's own role refreshes the
// session's resolved role.
func (h *AdminHandler) SetRole(c *gin.Context) {
	s, v, ok := viewer(c)
	if !ok {
		return
	}

	var input models.SetRoleRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	user, err := h.api.SetRole(ctx, v.Token, c.Param("id"), input.Role)
	if err != nil {
		fail(c, err)
		return
	}
	h.log.Info().Str("user_id", c.Param("id")).Str("role", string(input.Role)).Str("by", v.UserID).Msg("role changed")

	if c.Param("id") == v.UserID || strings.EqualFold(user.Email, v.Email) {
		s.Roles().Invalidate(ctx)
	}
	c.JSON(http.StatusOK, user)
}

func (h *AdminHandler) ListReports(c *gin.Context) {
	_, v, ok := viewer(c)
	if !ok {
		return
	}
	reports, err := h.api.ListReports(c.Request.Context(), v.Token)
	if err != nil {
		fail(c, err)
		return
	}
	if reports == nil {
		reports = []models.Report{}
	}
	c.JSON(http.StatusOK, reports)
}

// DismissReport deletes a report and keeps the comment.
func (h *AdminHandler) DismissReport(c *gin.Context) {
	_, v, ok := viewer(c)
	if !ok {
		return
	}
	if err := h.api.DismissReport(c.Request.Context(), v.Token, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Report dismissed"})
}

// DeleteComment removes a reported comment along with its reports.
func (h *AdminHandler) DeleteComment(c *gin.Context) {
	_, v, ok := viewer(c)
	if !ok {
		return
	}
	if err := h.api.DeleteComment(c.Request.Context(), v.Token, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	h.log.Info().Str("comment_id", c.Param("id")).Str("by", v.UserID).Msg("comment deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}

type AnnouncementHandler struct {
	*deps
}

func (h *AnnouncementHandler) List(c *gin.Context) {
	list, err := h.api.ListAnnouncements(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if list == nil {
		list = []models.Announcement{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *AnnouncementHandler) Create(c *gin.Context) {
	_, v, ok := viewer(c)
	if !ok {
		return
	}

	var input models.CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	a, err := h.api.CreateAnnouncement(c.Request.Context(), v.Token, input)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}
