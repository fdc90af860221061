package models

import "time"

// Payment records a completed membership checkout.
type Payment struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"_id"`
	UserID        string    `gorm:"type:uuid;index;not null" json:"userId"`
	Tier          Badge     `gorm:"not null" json:"tier"`
	AmountCents   int64     `gorm:"not null" json:"amountCents"`
	TransactionID string    `gorm:"uniqueIndex;not null" json:"transactionId"`
	CreatedAt     time.Time `json:"createdAt"`
}

type PaymentRequest struct {
	UserID        string `json:"userId" binding:"required"`
	Tier          Badge  `json:"tier" binding:"required,oneof=silver gold"`
	AmountCents   int64  `json:"amountCents" binding:"required,gt=0"`
	TransactionID string `json:"transactionId" binding:"required"`
}
