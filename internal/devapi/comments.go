package devapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emilythestrangee/forum-web/internal/models"
)

// ListComments returns all comments for a post, oldest first.
func (a *API) ListComments(c *gin.Context) {
	comments := []models.Comment{}
	err := a.db.WithContext(c.Request.Context()).
		Where("post_id = ?", c.Param("id")).
		Order("created_at asc").
		Find(&comments).Error
	if err != nil {
		respond(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

// CreateComment comments on a post and bumps its comment count.
func (a *API) CreateComment(c *gin.Context) {
	var input models.CreateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	userID, _ := caller(c)
	var author models.User
	if err := a.db.WithContext(ctx).First(&author, "id = ?", userID).Error; err != nil {
		respond(c, err)
		return
	}

	comment := models.Comment{
		ID:          uuid.NewString(),
		PostID:      c.Param("id"),
		AuthorID:    author.ID,
		AuthorName:  author.DisplayName,
		AuthorEmail: author.Email,
		Body:        input.Body,
	}
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).Where("id = ?", comment.PostID).
			Update("comment_count", gorm.Expr("comment_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(&comment).Error
	})
	if err != nil {
		respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// ReportComment files a report against a comment.
func (a *API) ReportComment(c *gin.Context) {
	var input models.ReportRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	var comment models.Comment
	if err := a.db.WithContext(ctx).First(&comment, "id = ?", c.Param("id")).Error; err != nil {
		respond(c, err)
		return
	}

	userID, email := caller(c)
	report := models.Report{
		ID:         uuid.NewString(),
		CommentID:  comment.ID,
		ReporterID: userID,
		Reporter:   email,
		Feedback:   input.Feedback,
	}
	if err := a.db.WithContext(ctx).Omit("Comment").Create(&report).Error; err != nil {
		respond(c, err)
		return
	}
	report.Comment = comment
	c.JSON(http.StatusCreated, report)
}

// ListReports returns open reports with their comments, newest first.
func (a *API) ListReports(c *gin.Context) {
	reports := []models.Report{}
	err := a.db.WithContext(c.Request.Context()).
		Preload("Comment").
		Order("created_at desc").
		Find(&reports).Error
	if err != nil {
		respond(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

// DismissReport deletes a report and keeps the comment.
func (a *API) DismissReport(c *gin.Context) {
	res := a.db.WithContext(c.Request.Context()).Delete(&models.Report{}, "id = ?", c.Param("id"))
	if res.Error != nil {
		respond(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respond(c, gorm.ErrRecordNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteComment deletes a comment with its reports.
func (a *API) DeleteComment(c *gin.Context) {
	ctx := c.Request.Context()
	var comment models.Comment
	if err := a.db.WithContext(ctx).First(&comment, "id = ?", c.Param("id")).Error; err != nil {
		respond(c, err)
		return
	}

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id = ?", comment.ID).Delete(&models.Report{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ? AND comment_count > 0", comment.PostID).
			Update("comment_count", gorm.Expr("comment_count - 1")).Error
	})
	if err != nil {
		respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
