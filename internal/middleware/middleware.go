// Package middleware holds the gin middleware of the web tier: browser
// session binding and the identity and role gates built on it.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/emilythestrangee/forum-web/internal/apperr"
	"github.com/emilythestrangee/forum-web/internal/models"
	"github.com/emilythestrangee/forum-web/internal/session"
)

const sessionKey = "session"

// Abort answers err as a JSON error envelope and stops the chain.
func Abort(c *gin.Context, err error) {
	status, body := apperr.Response(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

type CookieOptions struct {
	TTL    time.Duration
	Secure bool
}

// Sessions binds the browser session named by the session cookie to the
// request, starting a new one when the cookie is missing or stale.
func Sessions(m *session.Manager, opts CookieOptions, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var s *session.Session
		if id, err := c.Cookie(session.CookieName); err == nil {
			s, err = m.Lookup(ctx, id)
			if err != nil && !errors.Is(err, session.ErrNotFound) {
				log.Warn().Err(err).Msg("session lookup failed")
			}
		}

		if s == nil {
			var err error
			s, err = m.Create(ctx)
			if err != nil {
				Abort(c, err)
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(session.CookieName, s.ID(), int(opts.TTL.Seconds()), "/", "", opts.Secure, true)
		}

		c.Set(sessionKey, s)
		c.Next()
	}
}

// CurrentSession returns the session bound by Sessions.
func CurrentSession(c *gin.Context) *session.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*session.Session)
	return s
}

// AuthMiddleware rejects requests whose session carries no identity.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := CurrentSession(c)
		if s == nil || s.Viewer() == nil {
			Abort(c, apperr.New(apperr.CodeUnauthenticated, "sign in required"))
			return
		}
		c.Next()
	}
}

// RequireAdminView lets only sessions whose resolved role is admin through.
// It waits up to wait for a pending resolution. The forum API enforces the
// role again on every admin call.
func RequireAdminView(wait time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := CurrentSession(c)
		if s == nil || s.Viewer() == nil {
			Abort(c, apperr.New(apperr.CodeUnauthenticated, "sign in required"))
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
		snap := s.Roles().Await(ctx)
		cancel()

		if snap.Role != models.RoleAdmin {
			Abort(c, apperr.New(apperr.CodeForbidden, "admin role required"))
			return
		}
		c.Next()
	}
}
