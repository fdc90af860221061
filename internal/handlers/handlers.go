package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/emilythestrangee/forum-web/internal/apperr"
	"github.com/emilythestrangee/forum-web/internal/forumapi"
	"github.com/emilythestrangee/forum-web/internal/middleware"
	"github.com/emilythestrangee/forum-web/internal/models"
	"github.com/emilythestrangee/forum-web/internal/reaction"
	"github.com/emilythestrangee/forum-web/internal/session"
)

// Forum is the part of the forum API the web tier calls.
type Forum interface {
	reaction.Voter
	session.ProfileSource

	Register(ctx context.Context, in models.RegisterRequest) (models.AuthResponse, error)
	Login(ctx context.Context, in models.LoginRequest) (models.AuthResponse, error)
	GoogleLogin(ctx context.Context, in models.GoogleLoginRequest) (models.AuthResponse, error)

	UpdateProfile(ctx context.Context, token, email string, in models.UpdateProfileRequest) (models.User, error)
	ListUsers(ctx context.Context, token, search string) ([]models.User, error)
	SetRole(ctx context.Context, token, userID string, role models.Role) (models.User, error)

	ListPosts(ctx context.Context, token string, q forumapi.ListPostsQuery) (models.PostPage, error)
	CountPosts(ctx context.Context, token, authorID string) (int64, error)
	GetPost(ctx context.Context, token, id string) (models.Post, error)
	CreatePost(ctx context.Context, token string, in models.CreatePostRequest) (models.Post, error)
	DeletePost(ctx context.Context, token, id string) error

	ListComments(ctx context.Context, postID string) ([]models.Comment, error)
	CreateComment(ctx context.Context, token, postID string, in models.CreateCommentRequest) (models.Comment, error)
	ReportComment(ctx context.Context, token, commentID string, in models.ReportRequest) (models.Report, error)
	ListReports(ctx context.Context, token string) ([]models.Report, error)
	DismissReport(ctx context.Context, token, reportID string) error
	DeleteComment(ctx context.Context, token, commentID string) error

	ListAnnouncements(ctx context.Context) ([]models.Announcement, error)
	CreateAnnouncement(ctx context.Context, token string, in models.CreateAnnouncementRequest) (models.Announcement, error)
	ListTags(ctx context.Context) ([]string, error)
	RecordPayment(ctx context.Context, token string, in models.PaymentRequest) (models.Payment, error)
}

type Options struct {
	// RoleWait bounds how long role-dependent answers wait for a pending
	// role resolution.
	RoleWait time.Duration
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Handler combines all handler types
type Handler struct {
	Auth         *AuthHandler
	Post         *PostHandler
	Comment      *CommentHandler
	User         *UserHandler
	Admin        *AdminHandler
	Announcement *AnnouncementHandler
	Membership   *MembershipHandler
}

// deps is shared by every sub-handler.
type deps struct {
	api      Forum
	sessions *session.Manager
	roleWait time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(api Forum, sessions *session.Manager, opts Options) *Handler {
	if opts.RoleWait <= 0 {
		opts.RoleWait = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	d := &deps{
		api:      api,
		sessions: sessions,
		roleWait: opts.RoleWait,
		log:      opts.Logger,
		now:      opts.Now,
	}

	return &Handler{
		Auth:         &AuthHandler{d},
		Post:         &PostHandler{d},
		Comment:      &CommentHandler{d},
		User:         &UserHandler{d},
		Admin:        &AdminHandler{d},
		Announcement: &AnnouncementHandler{d},
		Membership:   &MembershipHandler{d},
	}
}

func fail(c *gin.Context, err error) {
	middleware.Abort(c, err)
}

func badRequest(c *gin.Context, err error) {
	fail(c, apperr.Wrap(apperr.CodeInvalidInput, err.Error(), err))
}

// viewer returns the signed-in user of the request or answers 401.
func viewer(c *gin.Context) (*session.Session, *reaction.Viewer, bool) {
	s := middleware.CurrentSession(c)
	if s == nil {
		fail(c, apperr.New(apperr.CodeUnauthenticated, "sign in required"))
		return nil, nil, false
	}
	v := s.Viewer()
	if v == nil {
		fail(c, apperr.New(apperr.CodeUnauthenticated, "sign in required"))
		return s, nil, false
	}
	return s, v, true
}

// token is the identity token of the request's session, empty when anonymous.
func token(c *gin.Context) string {
	if s := middleware.CurrentSession(c); s != nil {
		return s.Token()
	}
	return ""
}

func pageQuery(c *gin.Context) (page, limit int, err error) {
	page, limit = 1, 10
	if raw := c.Query("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, apperr.New(apperr.CodeInvalidInput, "page must be a positive number")
		}
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 50 {
			return 0, 0, apperr.New(apperr.CodeInvalidInput, "limit must be between 1 and 50")
		}
	}
	return page, limit, nil
}
