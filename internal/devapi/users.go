package devapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/forum-web/internal/apperr"
	"github.com/emilythestrangee/forum-web/internal/middleware"
	"github.com/emilythestrangee/forum-web/internal/models"
)

// GetUser returns a profile by email.
func (a *API) GetUser(c *gin.Context) {
	var user models.User
	email := strings.ToLower(c.Param("email"))
	if err := a.db.WithContext(c.Request.Context()).First(&user, "email = ?", email).Error; err != nil {
		respond(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateUser edits the caller's own about-me text and photo.
func (a *API) UpdateUser(c *gin.Context) {
	_, callerEmail := caller(c)
	email := strings.ToLower(c.Param("email"))
	if !strings.EqualFold(callerEmail, email) {
		middleware.Abort(c, apperr.New(apperr.CodeForbidden, "You can only edit your own profile"))
		return
	}

	var input models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	var user models.User
	if err := a.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		respond(c, err)
		return
	}
	err := a.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"about_me":  input.AboutMe,
		"photo_url": input.PhotoURL,
	}).Error
	if err != nil {
		respond(c, err)
		return
	}
	user.AboutMe, user.PhotoURL = input.AboutMe, input.PhotoURL
	c.JSON(http.StatusOK, user)
}

// ListUsers lists users, optionally filtered by name or email.
func (a *API) ListUsers(c *gin.Context) {
	q := a.db.WithContext(c.Request.Context()).Order("created_at asc")
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(display_name) LIKE ? OR email LIKE ?", like, like)
	}

	users := []models.User{}
	if err := q.Find(&users).Error; err != nil {
		respond(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// SetRole makes a user an admin or a plain user.
func (a *API) SetRole(c *gin.Context) {
	var input models.SetRoleRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	var user models.User
	if err := a.db.WithContext(ctx).First(&user, "id = ?", c.Param("id")).Error; err != nil {
		respond(c, err)
		return
	}
	if err := a.db.WithContext(ctx).Model(&user).Update("role", input.Role).Error; err != nil {
		respond(c, err)
		return
	}
	user.Role = input.Role
	callerID, _ := caller(c)
	a.log.Info().Str("user_id", user.ID).Str("role", string(input.Role)).Str("by", callerID).Msg("role changed")
	c.JSON(http.StatusOK, user)
}
