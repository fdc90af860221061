// Package membership prices badge upgrades and checks the card details
// submitted at checkout. No card is ever charged; the check only rejects
// obviously bad input before a payment is recorded.
package membership

import (
	"strconv"
	"strings"
	"time"

	"github.com/emilythestrangee/forum-web/internal/apperr"
	"github.com/emilythestrangee/forum-web/internal/models"
)

type Card struct {
	Holder string `json:"holder"`
	Number string `json:"number" binding:"required"`
	Expiry string `json:"expiry" binding:"required"`
	CVC    string `json:"cvc" binding:"required"`
}

type CheckoutRequest struct {
	Tier models.Badge `json:"tier" binding:"required,oneof=silver gold"`
	Card Card         `json:"card" binding:"required"`
}

var prices = map[models.Badge]int64{
	models.BadgeSilver: 500,
	models.BadgeGold:   1000,
}

var rank = map[models.Badge]int{
	models.BadgeBronze: 0,
	models.BadgeSilver: 1,
	models.BadgeGold:   2,
}

// Price returns the tier's price in US cents.
func Price(tier models.Badge) (int64, error) {
	p, ok := prices[tier]
	if !ok {
		return 0, apperr.New(apperr.CodeInvalidInput, "unknown membership tier")
	}
	return p, nil
}

// CanUpgrade reports whether a member holding current may buy tier.
func CanUpgrade(current, tier models.Badge) bool {
	if current == "" {
		current = models.BadgeBronze
	}
	return rank[tier] > rank[current]
}

// Validate checks the card number checksum, that the card has not expired
// at now, and the CVC format.
func (c Card) Validate(now time.Time) error {
	number := digitsOnly(c.Number)
	if len(number) < 12 || len(number) > 19 || !luhn(number) {
		return apperr.New(apperr.CodePaymentDeclined, "card number is invalid")
	}

	month, year, ok := parseExpiry(c.Expiry)
	if !ok {
		return apperr.New(apperr.CodePaymentDeclined, "expiry must be MM/YY")
	}
	// A card is valid through the last day of its expiry month.
	end := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.UTC().Before(end) {
		return apperr.New(apperr.CodePaymentDeclined, "card has expired")
	}

	cvc := strings.TrimSpace(c.CVC)
	if len(cvc) < 3 || len(cvc) > 4 || digitsOnly(cvc) != cvc {
		return apperr.New(apperr.CodePaymentDeclined, "cvc is invalid")
	}
	return nil
}

// Last4 is the masked form kept in logs.
func (c Card) Last4() string {
	n := digitsOnly(c.Number)
	if len(n) < 4 {
		return n
	}
	return n[len(n)-4:]
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
		default:
			return ""
		}
	}
	return b.String()
}

func luhn(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func parseExpiry(s string) (month, year int, ok bool) {
	mm, yy, found := strings.Cut(strings.TrimSpace(s), "/")
	if !found || len(mm) != 2 || len(yy) != 2 {
		return 0, 0, false
	}
	month, err := strconv.Atoi(mm)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	y, err := strconv.Atoi(yy)
	if err != nil || y < 0 {
		return 0, 0, false
	}
	return month, 2000 + y, true
}
