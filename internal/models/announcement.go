package models

import "time"

type Announcement struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"_id"`
	AuthorID    string    `gorm:"type:uuid;not null" json:"authorId"`
	AuthorName  string    `json:"authorName"`
	AuthorPhoto string    `json:"authorPhoto"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"not null" json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CreateAnnouncementRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
}
