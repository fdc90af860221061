// Package logging configures zerolog for both binaries.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Logger is the process logger. Init replaces it; until then it discards.
var Logger = zerolog.Nop()

// Init sets up the global logger with structured JSON output on stdout.
// Level is parsed from the given string (e.g. "debug", "info", "warn").
func Init(level, service string) zerolog.Logger {
	return InitWriter(os.Stdout, level, service)
}

func InitWriter(w io.Writer, level, service string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.DurationFieldInteger = true

	Logger = zerolog.New(w).With().
		Timestamp().
		Str("service", service).
		Logger()
	return Logger
}

// RequestLogger logs one line per request. Emails and IDs in the path are
// replaced with placeholders.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		evt := log.Info()
		if status >= 500 {
			evt = log.Error()
		} else if status >= 400 {
			evt = log.Warn()
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}

		evt.
			Str("method", c.Request.Method).
			Str("path", sanitizePath(c.Request.URL.Path)).
			Int("status", status).
			Dur("duration_ms", time.Since(start)).
			Int("bytes_sent", c.Writer.Size()).
			Msg("request")
	}
}

func sanitizePath(path string) string {
	parts := strings.Split(path, "/")
	for i := 1; i < len(parts); i++ {
		switch parts[i-1] {
		case "users":
			parts[i] = ":user"
		case "posts":
			parts[i] = ":postId"
		case "comments":
			parts[i] = ":commentId"
		case "reports":
			parts[i] = ":reportId"
		}
	}
	return strings.Join(parts, "/")
}
