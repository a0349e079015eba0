// Package server exposes the RSVP HTTP API in front of the spreadsheet.
package server

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wedding-rsvp/internal/rsvp"
	"wedding-rsvp/internal/sheets"
)

const requestIDHeader = "X-Request-ID"

// Options configures the API server.
type Options struct {
	Deadline      time.Time
	AdminPassword string
	Now           func() time.Time
}

// Server serves /api/*. Build it once with NewServer and mount it as an
// http.Handler.
type Server struct {
	sheets   *sheets.Client
	deadline rsvp.DeadlineGate
	password string
	log      zerolog.Logger
	mux      *gin.Engine
}

// NewServer wires the routes.
func NewServer(client *sheets.Client, opts Options, logger zerolog.Logger) *Server {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	gate := rsvp.NewDeadlineGate(opts.Deadline)
	if opts.Now != nil {
		gate.Now = opts.Now
	}
	s := &Server{
		sheets:   client,
		deadline: gate,
		password: opts.AdminPassword,
		log:      logger.With().Str("component", "http").Logger(),
	}

	mux := gin.New()
	mux.HandleMethodNotAllowed = true
	mux.Use(requestID(), accessLog(s.log), gin.Recovery())

	api := mux.Group("/api")
	api.GET("/party", s.party)
	api.GET("/rsvp-status", s.rsvpStatus)
	api.POST("/rsvp", s.readOnly(), s.submit)
	api.POST("/admin-list", s.adminList)
	api.GET("/wallet-pass", walletPass)
	mux.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	mux.NoRoute(notFound)
	mux.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"ok": false, "error": "Método no permitido"})
	})

	s.mux = mux
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"code": "PAGE_NOT_FOUND", "message": "Page not found"})
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			event = logger.Error()
		case status >= http.StatusBadRequest:
			event = logger.Warn()
		default:
			event = logger.Info()
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			event = event.Str("errors", errs.String())
		}
		event.
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	}
}

// readOnly rejects writes once the RSVP deadline has passed.
func (s *Server) readOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.deadline.Passed() {
			s.log.Warn().Str("path", c.Request.URL.Path).Msg("Write rejected after deadline")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"ok": false, "reason": "deadline_passed"})
			return
		}
		c.Next()
	}
}

func walletPass(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"ok": false, "error": "Wallet pass no disponible"})
}
