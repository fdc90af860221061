package devapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/forum-web/internal/apperr"
	"github.com/emilythestrangee/forum-web/internal/middleware"
	"github.com/emilythestrangee/forum-web/internal/models"
	"github.com/emilythestrangee/forum-web/internal/vote"
)

// ListPosts returns a page of posts. Query: tag, sort (newest|popular),
// page, limit, author.
func (a *API) ListPosts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	page = max(page, 1)
	if limit < 1 || limit > 50 {
		limit = 10
	}

	q := a.db.WithContext(c.Request.Context()).Model(&models.Post{})
	if tag := strings.TrimSpace(c.Query("tag")); tag != "" {
		q = q.Where("? = ANY(tags)", tag)
	}
	if author := c.Query("author"); author != "" {
		q = q.Where("author_id = ?", author)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		respond(c, err)
		return
	}

	order := "created_at DESC"
	if c.Query("sort") == "popular" {
		order = "(upvotes - downvotes) DESC, created_at DESC"
	}
	posts := []models.Post{}
	if err := q.Order(order).Offset((page - 1) * limit).Limit(limit).Find(&posts).Error; err != nil {
		respond(c, err)
		return
	}

	if err := a.fillUserVotes(c, posts); err != nil {
		respond(c, err)
		return
	}
	c.JSON(http.StatusOK, models.PostPage{Posts: posts, Total: total, Page: page, Limit: limit})
}

// GetPost returns a single post by ID
func (a *API) GetPost(c *gin.Context) {
	var post models.Post
	if err := a.db.WithContext(c.Request.Context()).First(&post, "id = ?", c.Param("id")).Error; err != nil {
		respond(c, err)
		return
	}
	posts := []models.Post{post}
	if err := a.fillUserVotes(c, posts); err != nil {
		respond(c, err)
		return
	}
	c.JSON(http.StatusOK, posts[0])
}

// fillUserVotes sets UserVote on posts for the calling user, if any.
func (a *API) fillUserVotes(c *gin.Context, posts []models.Post) error {
	claims, ok := middleware.Claims(c)
	if !ok || len(posts) == 0 {
		return nil
	}
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	var votes []models.Vote
	err := a.db.WithContext(c.Request.Context()).
		Where("user_id = ? AND post_id IN ?", claims.UserID, ids).
		Find(&votes).Error
	if err != nil {
		return err
	}
	byPost := make(map[string]string, len(votes))
	for _, v := range votes {
		byPost[v.PostID] = v.VoteType
	}
	for i := range posts {
		if vt, ok := byPost[posts[i].ID]; ok {
			posts[i].UserVote = &vt
		}
	}
	return nil
}

// CreatePost creates a new post as the caller.
func (a *API) CreatePost(c *gin.Context) {
	var input models.CreatePostRequest
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

	post := models.Post{
		ID:          uuid.NewString(),
		AuthorID:    author.ID,
		AuthorName:  author.DisplayName,
		AuthorEmail: author.Email,
		AuthorPhoto: author.PhotoURL,
		Title:       input.Title,
		Body:        input.Body,
		Tags:        normalizeTags(input.Tags),
	}
	if err := a.db.WithContext(ctx).Create(&post).Error; err != nil {
		respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// DeletePost deletes a post (requires ownership or admin)
func (a *API) DeletePost(c *gin.Context) {
	ctx := c.Request.Context()
	var post models.Post
	if err := a.db.WithContext(ctx).First(&post, "id = ?", c.Param("id")).Error; err != nil {
		respond(c, err)
		return
	}

	userID, _ := caller(c)
	if post.AuthorID != userID {
		var user models.User
		if err := a.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil || !user.Role.IsAdmin() {
			middleware.Abort(c, apperr.New(apperr.CodeForbidden, "You can only delete your own posts"))
			return
		}
	}

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// VotePost applies the caller's up or down vote. The client sends the vote
// it believes it holds; a mismatch with the stored vote is a conflict, so
// both sides always apply the same transition.
func (a *API) VotePost(c *gin.Context) {
	var input models.VoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	userID, _ := caller(c)
	if input.UserID != userID {
		middleware.Abort(c, apperr.New(apperr.CodeForbidden, "You can only vote as yourself"))
		return
	}
	action, err := vote.ParseAction(input.VoteType)
	if err != nil {
		badRequest(c, err)
		return
	}
	claimed, err := vote.ParseState(input.PreviousVote)
	if err != nil {
		badRequest(c, err)
		return
	}

	postID := c.Param("id")
	var resp models.VoteResponse
	err = a.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&post, "id = ?", postID).Error; err != nil {
			return err
		}

		var existing models.Vote
		found := true
		err := tx.Where("user_id = ? AND post_id = ?", userID, postID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			found = false
		} else if err != nil {
			return err
		}

		current := vote.None
		if found {
			if current, err = vote.ParseState(&existing.VoteType); err != nil {
				return err
			}
		}
		if current != claimed {
			return apperr.New(apperr.CodeConflict, "Your vote changed elsewhere, reload the post")
		}

		next, delta, err := vote.Next(current, action)
		if err != nil {
			return err
		}
		counters := vote.Counters{Upvotes: post.Upvotes, Downvotes: post.Downvotes}.Apply(delta)
		err = tx.Model(&post).Updates(map[string]any{
			"upvotes":   counters.Upvotes,
			"downvotes": counters.Downvotes,
		}).Error
		if err != nil {
			return err
		}

		switch {
		case next == vote.None:
			err = tx.Delete(&existing).Error
		case found:
			err = tx.Model(&existing).Update("vote_type", string(next)).Error
		default:
			err = tx.Create(&models.Vote{
				ID:       uuid.NewString(),
				UserID:   userID,
				PostID:   postID,
				VoteType: string(next),
			}).Error
		}
		if err != nil {
			return err
		}

		resp = models.VoteResponse{
			Upvotes:   counters.Upvotes,
			Downvotes: counters.Downvotes,
			UserVote:  next.Wire(),
		}
		return nil
	})
	if err != nil {
		respond(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListTags returns every tag in use.
func (a *API) ListTags(c *gin.Context) {
	tags := []string{}
	err := a.db.WithContext(c.Request.Context()).
		Raw("SELECT DISTINCT unnest(tags) AS tag FROM posts ORDER BY tag").
		Scan(&tags).Error
	if err != nil {
		respond(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

func normalizeTags(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
