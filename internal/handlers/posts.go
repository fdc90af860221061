package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/forum-web/internal/apperr"
	"github.com/emilythestrangee/forum-web/internal/forumapi"
	"github.com/emilythestrangee/forum-web/internal/metrics"
	"github.com/emilythestrangee/forum-web/internal/middleware"
	"github.com/emilythestrangee/forum-web/internal/models"
	"github.com/emilythestrangee/forum-web/internal/reaction"
	"github.com/emilythestrangee/forum-web/internal/session"
	"github.com/emilythestrangee/forum-web/internal/vote"
)

type PostHandler struct {
	*deps
}

// GetPosts lists posts, optionally filtered by tag and sorted by popularity.
func (h *PostHandler) GetPosts(c *gin.Context) {
	page, limit, err := pageQuery(c)
	if err != nil {
		fail(c, err)
		return
	}
	sort := c.DefaultQuery("sort", "newest")
	if sort != "newest" && sort != "popular" {
		fail(c, apperr.New(apperr.CodeInvalidInput, "sort must be newest or popular"))
		return
	}

	result, err := h.api.ListPosts(c.Request.Context(), token(c), forumapi.ListPostsQuery{
		Tag:   c.Query("tag"),
		Sort:  sort,
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetPost opens a post. It becomes the session's viewed post, which is what
// votes apply to.
func (h *PostHandler) GetPost(c *gin.Context) {
	s := middleware.CurrentSession(c)
	postID := c.Param("id")

	var userID string
	if v := s.Viewer(); v != nil {
		userID = v.UserID
	}

	post, state, err := h.load(c, s, postID, userID)
	if err != nil {
		fail(c, err)
		return
	}

	// A view with a vote in flight keeps its optimistic state.
	if view := s.Reopen(postID, userID); view != nil {
		view.Reload(post, state)
		c.JSON(http.StatusOK, view.Snapshot())
		return
	}

	view := reaction.NewPostView(post, userID, state, h.api, s.Votes(), h.log)
	s.SetView(view)
	c.JSON(http.StatusOK, view.Snapshot())
}

// VotePost applies an up or down vote to the viewed post optimistically.
func (h *PostHandler) VotePost(c *gin.Context) {
	s := middleware.CurrentSession(c)
	var viewer *reaction.Viewer
	if s != nil {
		viewer = s.Viewer()
	}
	if viewer == nil {
		metrics.Votes.WithLabelValues(metrics.VoteUnauthenticated).Inc()
		fail(c, apperr.New(apperr.CodeUnauthenticated, "sign in to vote"))
		return
	}

	var input struct {
		VoteType string `json:"voteType" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	action, err := vote.ParseAction(input.VoteType)
	if err != nil {
		fail(c, apperr.Wrap(apperr.CodeInvalidInput, "voteType must be up or down", err))
		return
	}

	postID := c.Param("id")
	view := s.Reopen(postID, viewer.UserID)
	if view == nil {
		if view, err = h.open(c, s, postID, viewer.UserID); err != nil {
			fail(c, err)
			return
		}
	}

	snap, err := view.Vote(c.Request.Context(), viewer, action)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// CreatePost publishes a post within the author's badge limit.
func (h *PostHandler) CreatePost(c *gin.Context) {
	_, v, ok := viewer(c)
	if !ok {
		return
	}

	var input models.CreatePostRequest
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
	if limit := profile.Badge.PostLimit(); limit > 0 {
		count, err := h.api.CountPosts(ctx, v.Token, v.UserID)
		if err != nil {
			fail(c, err)
			return
		}
		if count >= int64(limit) {
			fail(c, apperr.New(apperr.CodePostLimitReached,
				fmt.Sprintf("%s members can publish %d posts, upgrade your membership to post more", profile.Badge, limit)))
			return
		}
	}

	post, err := h.api.CreatePost(ctx, v.Token, input)
	if err != nil {
		fail(c, err)
		return
	}
	h.log.Info().Str("post_id", post.ID).Str("user_id", v.UserID).Msg("post created")
	c.JSON(http.StatusCreated, post)
}

// MyPosts lists the signed-in user's posts.
func (h *PostHandler) MyPosts(c *gin.Context) {
	_, v, ok := viewer(c)
	if !ok {
		return
	}
	page, limit, err := pageQuery(c)
	if err != nil {
		fail(c, err)
		return
	}

	result, err := h.api.ListPosts(c.Request.Context(), v.Token, forumapi.ListPostsQuery{
		AuthorID: v.UserID,
		Sort:     "newest",
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeletePost deletes a post of the signed-in user.
func (h *PostHandler) DeletePost(c *gin.Context) {
	s, v, ok := viewer(c)
	if !ok {
		return
	}
	postID := c.Param("id")

	if err := h.api.DeletePost(c.Request.Context(), v.Token, postID); err != nil {
		fail(c, err)
		return
	}
	if view := s.View(); view != nil && view.PostID() == postID {
		s.SetView(nil)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// GetTags lists the tags posts can be filtered by.
func (h *PostHandler) GetTags(c *gin.Context) {
	tags, err := h.api.ListTags(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	c.JSON(http.StatusOK, tags)
}

// load fetches postID and the vote userID has on it.
func (h *PostHandler) load(c *gin.Context, s *session.Session, postID, userID string) (models.Post, vote.State, error) {
	post, err := h.api.GetPost(c.Request.Context(), s.Token(), postID)
	if err != nil {
		return models.Post{}, vote.None, err
	}
	if userID == "" {
		return post, vote.None, nil
	}
	state, err := vote.ParseState(post.UserVote)
	if err != nil {
		h.log.Debug().Err(err).Str("post_id", postID).Msg("ignoring unknown vote state")
		state = vote.None
	}
	return post, state, nil
}

// open loads postID and makes it the session's viewed post.
func (h *PostHandler) open(c *gin.Context, s *session.Session, postID, userID string) (*reaction.PostView, error) {
	post, state, err := h.load(c, s, postID, userID)
	if err != nil {
		return nil, err
	}
	view := reaction.NewPostView(post, userID, state, h.api, s.Votes(), h.log)
	s.SetView(view)
	return view, nil
}
