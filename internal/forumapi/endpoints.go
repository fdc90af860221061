package forumapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/emilythestrangee/forum-web/internal/models"
)

func (c *Client) Register(ctx context.Context, in models.RegisterRequest) (models.AuthResponse, error) {
	var out models.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", "", in, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, in models.LoginRequest) (models.AuthResponse, error) {
	var out models.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", "", in, &out)
	return out, err
}

func (c *Client) GoogleLogin(ctx context.Context, in models.GoogleLoginRequest) (models.AuthResponse, error) {
	var out models.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/google", "", in, &out)
	return out, err
}

// GetUser fetches a profile by email. A profile without a role is a
// plain user.
func (c *Client) GetUser(ctx context.Context, token, email string) (models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodGet, "/users/"+escape(email), token, nil, &out); err != nil {
		return models.User{}, err
	}
	if out.Role == "" {
		out.Role = models.RoleUser
	}
	if out.Badge == "" {
		out.Badge = models.BadgeBronze
	}
	return out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, token, email string, in models.UpdateProfileRequest) (models.User, error) {
	var out models.User
	err := c.do(ctx, http.MethodPatch, "/users/"+escape(email), token, in, &out)
	return out, err
}

func (c *Client) ListUsers(ctx context.Context, token, search string) ([]models.User, error) {
	path := "/users"
	if search != "" {
		path += "?" + url.Values{"search": {search}}.Encode()
	}
	var out []models.User
	err := c.do(ctx, http.MethodGet, path, token, nil, &out)
	return out, err
}

func (c *Client) SetRole(ctx context.Context, token, userID string, role models.Role) (models.User, error) {
	var out models.User
	err := c.do(ctx, http.MethodPatch, "/admin/users/"+escape(userID)+"/role", token, models.SetRoleRequest{Role: role}, &out)
	return out, err
}

type ListPostsQuery struct {
	Tag      string
	Sort     string // "newest" or "popular"
	Page     int
	Limit    int
	AuthorID string
}

func (q ListPostsQuery) encode() string {
	v := url.Values{}
	if q.Tag != "" {
		v.Set("tag", q.Tag)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.AuthorID != "" {
		v.Set("author", q.AuthorID)
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

func (c *Client) ListPosts(ctx context.Context, token string, q ListPostsQuery) (models.PostPage, error) {
	var out models.PostPage
	err := c.do(ctx, http.MethodGet, "/posts"+q.encode(), token, nil, &out)
	if out.Posts == nil {
		out.Posts = []models.Post{}
	}
	return out, err
}

// CountPosts returns how many posts authorID has published.
func (c *Client) CountPosts(ctx context.Context, token, authorID string) (int64, error) {
	page, err := c.ListPosts(ctx, token, ListPostsQuery{AuthorID: authorID, Limit: 1})
	return page.Total, err
}

// GetPost fetches one post. With a token the API fills in the caller's vote.
func (c *Client) GetPost(ctx context.Context, token, id string) (models.Post, error) {
	var out models.Post
	err := c.do(ctx, http.MethodGet, "/posts/"+escape(id), token, nil, &out)
	return out, err
}

func (c *Client) CreatePost(ctx context.Context, token string, in models.CreatePostRequest) (models.Post, error) {
	var out models.Post
	err := c.do(ctx, http.MethodPost, "/posts", token, in, &out)
	return out, err
}

func (c *Client) DeletePost(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/posts/"+escape(id), token, nil, nil)
}

// Vote submits a vote. It satisfies reaction.Voter.
func (c *Client) Vote(ctx context.Context, token, postID string, in models.VoteRequest) (*models.VoteResponse, error) {
	var out *models.VoteResponse
	if err := c.do(ctx, http.MethodPost, "/posts/"+escape(postID)+"/vote", token, in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	var out []models.Comment
	err := c.do(ctx, http.MethodGet, "/posts/"+escape(postID)+"/comments", "", nil, &out)
	return out, err
}

func (c *Client) CreateComment(ctx context.Context, token, postID string, in models.CreateCommentRequest) (models.Comment, error) {
	var out models.Comment
	err := c.do(ctx, http.MethodPost, "/posts/"+escape(postID)+"/comments", token, in, &out)
	return out, err
}

func (c *Client) ReportComment(ctx context.Context, token, commentID string, in models.ReportRequest) (models.Report, error) {
	var out models.Report
	err := c.do(ctx, http.MethodPost, "/comments/"+escape(commentID)+"/report", token, in, &out)
	return out, err
}

func (c *Client) ListReports(ctx context.Context, token string) ([]models.Report, error) {
	var out []models.Report
	err := c.do(ctx, http.MethodGet, "/reports", token, nil, &out)
	return out, err
}

func (c *Client) DismissReport(ctx context.Context, token, reportID string) error {
	return c.do(ctx, http.MethodDelete, "/reports/"+escape(reportID), token, nil, nil)
}

func (c *Client) DeleteComment(ctx context.Context, token, commentID string) error {
	return c.do(ctx, http.MethodDelete, "/comments/"+escape(commentID), token, nil, nil)
}

func (c *Client) ListAnnouncements(ctx context.Context) ([]models.Announcement, error) {
	var out []models.Announcement
	err := c.do(ctx, http.MethodGet, "/announcements", "", nil, &out)
	return out, err
}

func (c *Client) CreateAnnouncement(ctx context.Context, token string, in models.CreateAnnouncementRequest) (models.Announcement, error) {
	var out models.Announcement
	err := c.do(ctx, http.MethodPost, "/announcements", token, in, &out)
	return out, err
}

func (c *Client) ListTags(ctx context.Context) ([]string, error) {
	var out []string
	err := c.do(ctx, http.MethodGet, "/tags", "", nil, &out)
	return out, err
}

func (c *Client) RecordPayment(ctx context.Context, token string, in models.PaymentRequest) (models.Payment, error) {
	var out models.Payment
	err := c.do(ctx, http.MethodPost, "/payments", token, in, &out)
	return out, err
}
