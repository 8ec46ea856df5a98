package handlers

import (
	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"keyrepository/internal/config"
	appmw "keyrepository/internal/http/middleware"
)

// NewRouter wires every route behind the request logger. The /v1 API sits
// behind bearer authentication.
func NewRouter(db *gorm.DB, cfg *config.Config, logger *zap.Logger, gatherer prometheus.Gatherer) fasthttp.RequestHandler {
	r := router.New()
	r.SaveMatchedRoutePath = true

	auth := appmw.BearerAuth(cfg.APITokenHash)

	r.GET("/", Home())
	r.GET("/healthz", Healthz(db))
	r.GET("/metrics", MetricsHandler(db, gatherer, logger))

	v1 := r.Group("/v1")
	v1.POST("/keys", auth(StoreKey(db, logger)))
	v1.GET("/keys", auth(ListKeys(db, logger)))
	v1.GET("/keys/{id}", auth(GetKey(db, logger)))
	v1.PATCH("/keys/{id}", auth(UpdateKey(db, logger)))
	v1.DELETE("/keys/{id}", auth(DeleteKey(db, logger)))
	v1.POST("/keys/{id}/restore", auth(RestoreKey(db, logger)))

	return RequestLogger(logger)(r.Handler)
}
