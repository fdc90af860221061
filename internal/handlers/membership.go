package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/emilythestrangee/forum-web/internal/apperr"
	"github.com/emilythestrangee/forum-web/internal/membership"
	"github.com/emilythestrangee/forum-web/internal/models"
)

type MembershipHandler struct {
	*deps
}

// Checkout upgrades the signed-in user's badge after checking the card.
func (h *MembershipHandler) Checkout(c *gin.Context) {
	s, v, ok := viewer(c)
	if !ok {
		return
	}

	var input membership.CheckoutRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	profile, err := h.api.GetUser(ctx, v.Token, v.Email)
	if err != nil {
		fail(c, err)
		return
	}
	if !membership.CanUpgrade(profile.Badge, input.Tier) {
		fail(c, apperr.New(apperr.CodeConflict, fmt.Sprintf("already a %s member", profile.Badge)))
		return
	}
	if err := input.Card.Validate(h.now()); err != nil {
		h.log.Info().Str("user_id", v.UserID).Str("last4", input.Card.Last4()).Err(err).Msg("card declined")
		fail(c, err)
		return
	}
	amount, err := membership.Price(input.Tier)
	if err != nil {
		fail(c, err)
		return
	}

	payment, err := h.api.RecordPayment(ctx, v.Token, models.PaymentRequest{
		UserID:        v.UserID,
		Tier:          input.Tier,
		AmountCents:   amount,
		TransactionID: uuid.NewString(),
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.log.Info().
		Str("user_id", v.UserID).
		Str("tier", string(input.Tier)).
		Int64("amount_cents", amount).
		Str("transaction_id", payment.TransactionID).
		Msg("membership purchased")

	s.Roles().Refresh()
	c.JSON(http.StatusCreated, gin.H{
		"payment": payment,
		"badge":   input.Tier,
	})
}
