package handlers

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "keyrepository/internal/db"
)

func Home() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{
			"message": "Hello, I'm Key Repository API",
		})
	}
}

// Healthz reports 503 when the database cannot be reached.
func Healthz(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if err := dbpkg.Ping(pingCtx, db); err != nil {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			ctx.SetBodyString("database unavailable")
			return
		}
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	}
}
