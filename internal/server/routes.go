package server

import (
	"github.com/cozy-creator/captcha-server/internal/api"
	"github.com/cozy-creator/captcha-server/internal/app"
	"github.com/gin-gonic/gin"
)

func (s *Server) SetupRoutes(app *app.App) {
	s.ginEngine.GET("/", api.HelloCaptcha)
	s.ginEngine.POST("/captcha", handlerWrapper(app, api.Captcha))

	// Health check endpoint
	s.ginEngine.GET("/healthz", handlerWrapper(app, api.Healthz))
}

func handlerWrapper(app *app.App, f func(c *gin.Context)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set("app", app)
		f(ctx)
	}
}
