// Package httpapi is the HTTP transport for the server. It is a thin layer:
// it moves cookies, path segments, and query parameters in and out of the
// services, and maps their sentinel errors to status codes. No business rule
// lives here.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/avelichko/linkvault/internal/logging"
	"github.com/avelichko/linkvault/internal/server/config"
	"github.com/avelichko/linkvault/internal/server/services"
	"github.com/gin-gonic/gin"
)

// sessionCookie names the HTTP-only cookie carrying the session token.
const sessionCookie = "lv_session"

type Server struct {
	address  string
	config   *config.Config
	logger   logging.Logger
	sessions *services.SessionService
	links    *services.LinkService
	access   *services.AccessService
	engine   *gin.Engine
}

func NewServer(cfg *config.Config, logger logging.Logger, sessions *services.SessionService, links *services.LinkService, access *services.AccessService) *Server {
	s := &Server{
		address:  cfg.EndpointAddr,
		config:   cfg,
		logger:   logger.With("module", "http_server"),
		sessions: sessions,
		links:    links,
		access:   access,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	s.registerRoutes(engine)
	s.engine = engine

	return s
}

func (s *Server) registerRoutes(engine *gin.Engine) {
	api := engine.Group("/api/v1")

	users := api.Group("/users")
	users.POST("/signup", s.handleSignup)
	users.POST("/login", s.handleLogin)
	users.POST("/logout", s.handleLogout)
	users.GET("/me", s.handleMe)
	users.PATCH("/password", s.requireSession, s.handleChangePassword)

	items := api.Group("/items")
	items.POST("/plainText", s.requireSession, s.handleCreateText)
	items.GET("/plainText/:id", s.handleRedeemText)
	items.POST("/file", s.requireSession, s.handleCreateFile)
	items.GET("/file/:id", s.handleRedeemFile)
	items.GET("/my-links", s.requireSession, s.handleMyLinks)
	items.PATCH("/my-links/:id", s.requireSession, s.handleUpdateLink)
	items.DELETE("/my-links/:id", s.requireSession, s.handleDeleteLink)
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.engine,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// setSessionCookie installs the session token as an HTTP-only cookie with
// the lifetime chosen by the session authority.
func (s *Server) setSessionCookie(c *gin.Context, session *services.Session) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, session.Token, int(session.Lifetime.Seconds()), "/", "", s.config.CookieSecure, true)
}

// clearSessionCookie overwrites the cookie with a short-lived placeholder.
func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, "logged-out", 1, "/", "", s.config.CookieSecure, true)
}
