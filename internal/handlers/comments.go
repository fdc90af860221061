package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/forum-web/internal/models"
)

type CommentHandler struct {
	*deps
}

// GetComments returns all comments for a post
func (h *CommentHandler) GetComments(c *gin.Context) {
	comments, err := h.api.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	c.JSON(http.StatusOK, comments)
}

// CreateComment comments on a post as the signed-in user.
func (h *CommentHandler) CreateComment(c *gin.Context) {
	s, v, ok := viewer(c)
	if !ok {
		return
	}

	var input models.CreateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	postID := c.Param("id")
	comment, err := h.api.CreateComment(c.Request.Context(), v.Token, postID, input)
	if err != nil {
		fail(c, err)
		return
	}
	if view := s.View(); view != nil && view.PostID() == postID {
		view.CommentAdded()
	}
	c.JSON(http.StatusCreated, comment)
}

// ReportComment flags a comment for admin review.
func (h *CommentHandler) ReportComment(c *gin.Context) {
	_, v, ok := viewer(c)
	if !ok {
		return
	}

	var input models.ReportRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	report, err := h.api.ReportComment(c.Request.Context(), v.Token, c.Param("id"), input)
	if err != nil {
		fail(c, err)
		return
	}
	h.log.Info().Str("comment_id", report.CommentID).Str("reporter_id", v.UserID).Msg("comment reported")
	c.JSON(http.StatusCreated, report)
}
