package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "request_id"
)

// RequestID tags every request with an id, reusing the caller's X-Request-ID
// when one is sent.
func RequestID(ctx *gin.Context) {
	id := ctx.GetHeader(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}

	ctx.Set(RequestIDKey, id)
	ctx.Header(RequestIDHeader, id)
	ctx.Next()
}

// AllowAnyOrigin sets the wildcard origin header on every response, including
// requests that carry no Origin header and are skipped by the cors handler.
func AllowAnyOrigin(ctx *gin.Context) {
	ctx.Header("Access-Control-Allow-Origin", "*")
	ctx.Next()
}

func GetRequestID(ctx *gin.Context) string {
	return ctx.GetString(RequestIDKey)
}
