// Package api is the HTTP surface the browser extension talks to.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"igbackend/pkg/config"
	"igbackend/pkg/history"
	"igbackend/pkg/logger"
	"igbackend/pkg/scraper"
	"igbackend/pkg/session"
)

// Sessions is the session side of the backend. *session.Manager implements it.
type Sessions interface {
	Login(ctx context.Context, creds session.Credentials) (*session.LoginResult, error)
	Logout()
	Status(ctx context.Context) session.Status
	LoggedInAs() string
}

// Downloader runs download requests. *scraper.Scraper implements it.
type Downloader interface {
	Download(ctx context.Context, req scraper.Request) (*scraper.Result, error)
}

// Options wires a Server
type Options struct {
	Sessions   Sessions
	Downloader Downloader
	// History enables GET /history when set
	History history.Recorder
	// Defaults fill in omitted /download parameters
	Defaults config.DownloadConfig
	Logger   logger.Logger
}

// Server holds the handler dependencies
type Server struct {
	sessions  Sessions
	downloads Downloader
	history   history.Recorder
	defaults  config.DownloadConfig
	logger    logger.Logger
}

// New creates a Server
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	return &Server{
		sessions:  opts.Sessions,
		downloads: opts.Downloader,
		history:   opts.History,
		defaults:  opts.Defaults,
		logger:    log.WithField("component", "api"),
	}
}

// Router builds the gin engine with all routes and middleware
func (s *Server) Router() *gin.Engine {
	r := gin.New()

	r.Use(Recovery(s.logger))
	r.Use(RequestID())
	r.Use(AccessLog(s.logger))
	r.Use(CORS())

	r.GET("/", s.handleRoot)
	r.POST("/login", s.handleLogin)
	r.POST("/logout", s.handleLogout)
	r.GET("/status", s.handleStatus)
	r.GET("/download", s.handleDownload)
	if s.history != nil {
		r.GET("/history", s.handleHistory)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	return r
}

// nullable maps "" to JSON null
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
