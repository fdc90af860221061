package models

import "time"

// Vote tracks one user's vote on one post.
type Vote struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"_id"`
	UserID    string    `gorm:"type:uuid;uniqueIndex:idx_vote_user_post;not null" json:"userId"`
	PostID    string    `gorm:"type:uuid;uniqueIndex:idx_vote_user_post;not null" json:"postId"`
	VoteType  string    `gorm:"not null" json:"voteType"` // "up" or "down"
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// VoteRequest is the body of POST /posts/{id}/vote. PreviousVote is sent as
// null when the voter had no vote, so the server can apply the same transition.
type VoteRequest struct {
	UserID       string  `json:"userId" binding:"required"`
	VoteType     string  `json:"voteType" binding:"required,oneof=up down"`
	PreviousVote *string `json:"previousVote"`
}

type VoteResponse struct {
	Upvotes   int     `json:"upvotes"`
	Downvotes int     `json:"downvotes"`
	UserVote  *string `json:"userVote"`
}
