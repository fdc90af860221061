package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/emilythestrangee/forum-web/internal/config"
	"github.com/emilythestrangee/forum-web/internal/database"
	"github.com/emilythestrangee/forum-web/internal/handlers"
	"github.com/emilythestrangee/forum-web/internal/logging"
	"github.com/emilythestrangee/forum-web/internal/metrics"
	"github.com/emilythestrangee/forum-web/internal/middleware"
	"github.com/emilythestrangee/forum-web/internal/session"
)

// HealthChecker is a dependency reported by /health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type Deps struct {
	Config   *config.Web
	DB       database.Service // nil when sessions are kept in memory
	Cache    HealthChecker    // nil when no shared session cache is configured
	Sessions *session.Manager
	API      handlers.Forum
	Logger   zerolog.Logger
}

type Server struct {
	cfg      *config.Web
	db       database.Service
	cache    HealthChecker
	sessions *session.Manager
	handler  *handlers.Handler
	log      zerolog.Logger
}

// NewServer creates and configures the web tier server
func NewServer(d Deps) *http.Server {
	s := New(d)

	server := &http.Server{
		Addr:         "0.0.0.0:" + d.Config.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	d.Logger.Info().Str("port", d.Config.Port).Str("forum_api", d.Config.ForumAPIURL).Msg("🚀 Server starting")
	return server
}

func New(d Deps) *Server {
	return &Server{
		cfg:      d.Config,
		db:       d.DB,
		cache:    d.Cache,
		sessions: d.Sessions,
		handler: handlers.NewHandler(d.API, d.Sessions, handlers.Options{
			RoleWait: d.Config.RoleWait,
			Logger:   d.Logger,
		}),
		log: d.Logger,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.RequestLogger(s.log))
	r.Use(metrics.Middleware())

	// without origins only same-origin requests are served
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
			AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", s.health)
	r.GET("/metrics", metrics.Handler())

	h := s.handler
	api := r.Group("/api")
	api.Use(middleware.Sessions(s.sessions, middleware.CookieOptions{
		TTL:    s.cfg.SessionTTL,
		Secure: s.cfg.CookieSecure,
	}, s.log))
	{
		// Auth routes (public)
		api.POST("/auth/register", h.Auth.Register)
		api.POST("/auth/login", h.Auth.Login)
		api.POST("/auth/google", h.Auth.GoogleLogin)

		// Public reads
		api.GET("/posts", h.Post.GetPosts)
		api.GET("/posts/:id", h.Post.GetPost)
		api.GET("/posts/:id/comments", h.Comment.GetComments)
		api.GET("/tags", h.Post.GetTags)
		api.GET("/announcements", h.Announcement.List)

		// Votes answer 401 themselves so rejected attempts are counted.
		api.POST("/posts/:id/vote", h.Post.VotePost)

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			protected.POST("/auth/logout", h.Auth.Logout)
			protected.GET("/me", h.User.GetMe)
			protected.PUT("/me", h.User.UpdateMe)
			protected.GET("/dashboard", h.User.Dashboard)

			protected.POST("/posts", h.Post.CreatePost)
			protected.GET("/my/posts", h.Post.MyPosts)
			protected.DELETE("/posts/:id", h.Post.DeletePost)

			protected.POST("/posts/:id/comments", h.Comment.CreateComment)
			protected.POST("/comments/:id/report", h.Comment.ReportComment)

			protected.POST("/membership/checkout", h.Membership.Checkout)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.AuthMiddleware(), middleware.RequireAdminView(s.cfg.RoleWait))
		{
			admin.GET("/users", h.Admin.ListUsers)
			admin.PATCH("/users/:id/role", h.Admin.SetRole)
			admin.GET("/reports", h.Admin.ListReports)
			admin.DELETE("/reports/:id", h.Admin.DismissReport)
			admin.DELETE("/comments/:id", h.Admin.DeleteComment)
			admin.POST("/announcements", h.Announcement.Create)
		}
	}

	return r
}

func (s *Server) health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}

	if s.db != nil {
		db := s.db.Health(c.Request.Context())
		body["database"] = db
		if db["status"] != "up" {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	if s.cache != nil {
		if err := s.cache.Health(c.Request.Context()); err != nil {
			body["cache"] = gin.H{"status": "down", "error": err.Error()}
		} else {
			body["cache"] = gin.H{"status": "up"}
		}
	}

	c.JSON(status, body)
}
