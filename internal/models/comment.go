package models

import "time"

type Comment struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"_id"`
	PostID      string    `gorm:"type:uuid;index;not null" json:"postId"`
	AuthorID    string    `gorm:"type:uuid;not null" json:"authorId"`
	AuthorName  string    `json:"authorName"`
	AuthorEmail string    `json:"authorEmail"`
	Body        string    `gorm:"not null" json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateCommentRequest struct {
	Body string `json:"body" binding:"required"`
}

// Report is a user's complaint about a comment, reviewed by admins.
type Report struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"_id"`
	CommentID  string    `gorm:"type:uuid;index;not null" json:"commentId"`
	Comment    Comment   `gorm:"foreignKey:CommentID;constraint:OnDelete:CASCADE" json:"comment"`
	ReporterID string    `gorm:"type:uuid;not null" json:"reporterId"`
	Reporter   string    `json:"reporter"`
	Feedback   string    `gorm:"not null" json:"feedback"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ReportRequest struct {
	Feedback string `json:"feedback" binding:"required"`
}
