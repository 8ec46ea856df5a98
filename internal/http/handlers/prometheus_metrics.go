package handlers

import (
	"bytes"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	dbpkg "keyrepository/internal/db"
	"keyrepository/internal/metrics"
)

// scrapeMu keeps one scrape's gauge reset, refill and gather together.
var scrapeMu sync.Mutex

// MetricsHandler samples the stored-key gauge and serves every gathered
// family in the Prometheus text format.
func MetricsHandler(db *gorm.DB, gatherer prometheus.Gatherer, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		metricFamilies, err := gather(ctx, db, gatherer, logger)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "METRICS_ERROR", "failed to gather metrics")
			return
		}

		families := make([]*dto.MetricFamily, 0, len(metricFamilies))
		for _, mf := range metricFamilies {
			if len(mf.GetMetric()) == 0 {
				continue
			}
			families = append(families, mf)
		}

		var buf bytes.Buffer
		encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
		for _, mf := range families {
			if err := encoder.Encode(mf); err != nil {
				errResponse(ctx, fasthttp.StatusInternalServerError, "METRICS_ERROR", "failed to encode metrics")
				return
			}
		}

		ctx.SetContentType(string(expfmt.FmtText))
		ctx.Response.Header.Set("Cache-Control", "no-store")
		ctx.SetBody(buf.Bytes())
	}
}

func gather(ctx *fasthttp.RequestCtx, db *gorm.DB, gatherer prometheus.Gatherer, logger *zap.Logger) ([]*dto.MetricFamily, error) {
	scrapeMu.Lock()
	defer scrapeMu.Unlock()

	if counts, err := dbpkg.CountKeys(ctx, db); err != nil {
		logger.Warn("failed to sample key counts", zap.Error(err))
	} else {
		metrics.KeysStored.Reset()
		for keyType, n := range counts {
			metrics.KeysStored.WithLabelValues(string(keyType)).Set(float64(n))
		}
	}
	return gatherer.Gather()
}
