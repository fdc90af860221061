package devapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emilythestrangee/forum-web/internal/apperr"
	"github.com/emilythestrangee/forum-web/internal/middleware"
	"github.com/emilythestrangee/forum-web/internal/models"
)

func (a *API) ListAnnouncements(c *gin.Context) {
	list := []models.Announcement{}
	if err := a.db.WithContext(c.Request.Context()).Order("created_at desc").Find(&list).Error; err != nil {
		respond(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (a *API) CreateAnnouncement(c *gin.Context) {
	var input models.CreateAnnouncementRequest
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

	ann := models.Announcement{
		ID:          uuid.NewString(),
		AuthorID:    author.ID,
		AuthorName:  author.DisplayName,
		AuthorPhoto: author.PhotoURL,
		Title:       input.Title,
		Description: input.Description,
	}
	if err := a.db.WithContext(ctx).Create(&ann).Error; err != nil {
		respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, ann)
}

// RecordPayment stores a membership payment and raises the payer's badge.
// A repeated transaction ID is a conflict.
func (a *API) RecordPayment(c *gin.Context) {
	var input models.PaymentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	userID, _ := caller(c)
	if input.UserID != userID {
		middleware.Abort(c, apperr.New(apperr.CodeForbidden, "You can only pay for yourself"))
		return
	}

	payment := models.Payment{
		ID:            uuid.NewString(),
		UserID:        userID,
		Tier:          input.Tier,
		AmountCents:   input.AmountCents,
		TransactionID: input.TransactionID,
	}
	err := a.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).Update("badge", input.Tier).Error
	})
	if err != nil {
		respond(c, err)
		return
	}
	a.log.Info().Str("user_id", userID).Str("tier", string(input.Tier)).Int64("amount_cents", input.AmountCents).Msg("payment recorded")
	c.JSON(http.StatusCreated, payment)
}
