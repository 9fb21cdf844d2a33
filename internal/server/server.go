package server

import (
	"context"
	"net/http"
	"time"

	"github.com/cozy-creator/captcha-server/internal/api/middleware"
	"github.com/cozy-creator/captcha-server/internal/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/logger"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

type Server struct {
	listenAddr string
	ginEngine  *gin.Engine
	inner      *http.Server
}

func NewServer(config *config.Config) (*Server, error) {
	gin.SetMode(getGinMode(config.Environment))
	r := gin.New()

	// Setup logger middleware
	r.Use(logger.SetLogger(
		logger.WithUTC(true),
		logger.WithSkipPath([]string{"/healthz"}),
	))

	// Setup CORS middleware
	r.Use(middleware.AllowAnyOrigin)
	r.Use(cors.New(
		cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
			AllowHeaders:    []string{"*"},
			ExposeHeaders:   []string{middleware.RequestIDHeader},
			MaxAge:          300 * time.Second,
		},
	))

	// Serve static files
	if config.PublicDir != "" {
		r.Use(static.Serve("/static", static.LocalFile(config.PublicDir, false)))
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID)

	return &Server{
		listenAddr: config.Addr(),
		ginEngine:  r,
		inner: &http.Server{
			Handler:           r,
			Addr:              config.Addr(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *Server) Start() error {
	if err := s.inner.ListenAndServe(); err != nil {
		return err
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return s.inner.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.listenAddr
}

func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

func getGinMode(env string) string {
	switch env {
	case "dev":
		return gin.DebugMode
	case "test":
		return gin.TestMode
	default:
		return gin.ReleaseMode
	}
}
