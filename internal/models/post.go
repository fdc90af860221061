package models

import (
	"time"

	"github.com/lib/pq"
)

type Post struct {
	ID           string         `gorm:"primaryKey;type:uuid" json:"_id"`
	AuthorID     string         `gorm:"type:uuid;index;not null" json:"authorId"`
	AuthorName   string         `json:"authorName"`
	AuthorEmail  string         `json:"authorEmail"`
	AuthorPhoto  string         `json:"authorPhoto"`
	Title        string         `gorm:"not null" json:"title"`
	Body         string         `json:"body"`
	Tags         pq.StringArray `gorm:"type:text[]" json:"tags"`
	Upvotes      int            `gorm:"default:0;check:upvotes >= 0" json:"upvotes"`
	Downvotes    int            `gorm:"default:0;check:downvotes >= 0" json:"downvotes"`
	CommentCount int            `gorm:"default:0" json:"commentCount"`

	// UserVote is the requesting user's vote, filled per request ("up", "down" or nil).
	UserVote *string `gorm:"-" json:"userVote"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Popularity is the ranking score used by the "popular" sort.
func (p Post) Popularity() int {
	return p.Upvotes - p.Downvotes
}

// HasTag reports whether the post carries tag.
func (p Post) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type CreatePostRequest struct {
	Title string   `json:"title" binding:"required"`
	Body  string   `json:"body" binding:"required"`
	Tags  []string `json:"tags"`
}

type PostPage struct {
	Posts []Post `json:"posts"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}
