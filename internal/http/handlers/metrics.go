package handlers

import (
	"strconv"
	"time"

	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	httpctx "keyrepository/internal/http/ctx"
	"keyrepository/internal/metrics"
)

// RequestLogger returns fasthttp middleware that tags each request with an
// id, then logs and counts it by matched route, method and status.
func RequestLogger(logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()

			reqID := string(ctx.Request.Header.Peek("X-Request-ID"))
			if reqID == "" {
				reqID = uuid.NewString()
			}
			httpctx.SetRequestID(ctx, reqID)
			ctx.Response.Header.Set("X-Request-ID", reqID)

			next(ctx)

			elapsed := time.Since(start)
			route, _ := ctx.UserValue(router.MatchedRoutePathParam).(string)
			if route == "" {
				route = "unmatched"
			}
			method := string(ctx.Method())
			status := ctx.Response.StatusCode()

			metrics.HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())

			fields := []zap.Field{
				zap.String("request_id", reqID),
				zap.String("method", method),
				zap.ByteString("path", ctx.Path()),
				zap.Int("status", status),
				zap.Duration("elapsed", elapsed),
				zap.String("ip", ctx.RemoteIP().String()),
			}
			if caller, ok := httpctx.CallerFromCtx(ctx); ok {
				fields = append(fields, zap.String("caller", caller))
			}
			logger.Info("request", fields...)
		}
	}
}
