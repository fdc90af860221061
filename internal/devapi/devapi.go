// Package devapi is a local stand-in for the external forum REST API. It
// serves the same routes the web tier's client calls, backed by postgres.
package devapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/emilythestrangee/forum-web/internal/apperr"
	"github.com/emilythestrangee/forum-web/internal/logging"
	"github.com/emilythestrangee/forum-web/internal/middleware"
	"github.com/emilythestrangee/forum-web/internal/models"
)

// Models lists the tables the dev API migrates.
func Models() []any {
	return []any{
		&models.User{},
		&models.Post{},
		&models.Vote{},
		&models.Comment{},
		&models.Report{},
		&models.Announcement{},
		&models.Payment{},
	}
}

type Options struct {
	Secret             []byte
	TokenTTL           time.Duration
	AdminEmails        []string
	GoogleTokenInfoURL string
	HTTPClient         *http.Client
	Logger             zerolog.Logger
}

type API struct {
	db     *gorm.DB
	opts   Options
	admins map[string]bool
	log    zerolog.Logger
}

func New(db *gorm.DB, opts Options) *API {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 72 * time.Hour
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.GoogleTokenInfoURL == "" {
		opts.GoogleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"
	}
	admins := make(map[string]bool, len(opts.AdminEmails))
	for _, e := range opts.AdminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = true
		}
	}
	return &API{db: db, opts: opts, admins: admins, log: opts.Logger}
}

// RegisterRoutes sets up all dev API routes
func (a *API) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.RequestLogger(a.log))

	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:    []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	r.GET("/health", a.health)

	auth := middleware.BearerAuth(a.opts.Secret, false)
	optional := middleware.BearerAuth(a.opts.Secret, true)
	admin := []gin.HandlerFunc{auth, a.requireAdmin}

	// Auth routes (public)
	r.POST("/auth/register", a.Register)
	r.POST("/auth/login", a.Login)
	r.POST("/auth/google", a.GoogleLogin)

	// Users
	r.GET("/users/:email", auth, a.GetUser)
	r.PATCH("/users/:email", auth, a.UpdateUser)
	r.GET("/users", append(admin, a.ListUsers)...)
	r.PATCH("/admin/users/:id/role", append(admin, a.SetRole)...)

	// Posts; reads fill in the caller's vote when a token is sent
	r.GET("/posts", optional, a.ListPosts)
	r.GET("/posts/:id", optional, a.GetPost)
	r.POST("/posts", auth, a.CreatePost)
	r.DELETE("/posts/:id", auth, a.DeletePost)
	r.POST("/posts/:id/vote", auth, a.VotePost)

	// Comments and moderation
	r.GET("/posts/:id/comments", a.ListComments)
	r.POST("/posts/:id/comments", auth, a.CreateComment)
	r.POST("/comments/:id/report", auth, a.ReportComment)
	r.DELETE("/comments/:id", append(admin, a.DeleteComment)...)
	r.GET("/reports", append(admin, a.ListReports)...)
	r.DELETE("/reports/:id", append(admin, a.DismissReport)...)

	r.GET("/announcements", a.ListAnnouncements)
	r.POST("/announcements", append(admin, a.CreateAnnouncement)...)
	r.GET("/tags", a.ListTags)
	r.POST("/payments", auth, a.RecordPayment)

	return r
}

func (a *API) health(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requireAdmin checks the caller's stored role.
func (a *API) requireAdmin(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		middleware.Abort(c, apperr.New(apperr.CodeUnauthenticated, "sign in required"))
		return
	}
	var user models.User
	if err := a.db.WithContext(c.Request.Context()).First(&user, "id = ?", claims.UserID).Error; err != nil {
		respond(c, err)
		return
	}
	if !user.Role.IsAdmin() {
		middleware.Abort(c, apperr.New(apperr.CodeForbidden, "admin role required"))
		return
	}
	c.Next()
}

// respond answers err. Missing rows become 404 and unique violations 409.
func respond(c *gin.Context, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = apperr.Wrap(apperr.CodeNotFound, "not found", err)
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		err = apperr.Wrap(apperr.CodeConflict, "already exists", err)
	case errors.As(err, &pgErr) && pgErr.Code == "22P02":
		// malformed uuid in the path
		err = apperr.Wrap(apperr.CodeNotFound, "not found", err)
	}
	middleware.Abort(c, err)
}

func badRequest(c *gin.Context, err error) {
	middleware.Abort(c, apperr.Wrap(apperr.CodeInvalidInput, err.Error(), err))
}

// caller returns the verified identity. Routes using it sit behind BearerAuth.
func caller(c *gin.Context) (string, string) {
	claims, _ := middleware.Claims(c)
	return claims.UserID, claims.Email
}
