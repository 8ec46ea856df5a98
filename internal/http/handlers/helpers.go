package handlers

import (
	"encoding/json"
	"errors"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	dbpkg "keyrepository/internal/db"
	httpctx "keyrepository/internal/http/ctx"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func jsonResponse(ctx *fasthttp.RequestCtx, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		errResponse(ctx, fasthttp.StatusInternalServerError, "ENCODE_ERROR", "failed to encode response")
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func errResponse(ctx *fasthttp.RequestCtx, status int, code, msg string) {
	body, _ := json.Marshal(errorBody{Code: code, Message: msg})
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

// storeError maps key store errors onto API errors. Unexpected errors are
// logged and reported as DB_ERROR without leaking details.
func storeError(ctx *fasthttp.RequestCtx, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, dbpkg.ErrKeyNotFound):
		errResponse(ctx, fasthttp.StatusNotFound, "KEY_NOT_FOUND", "key is not found")
	case errors.Is(err, dbpkg.ErrInvalidKey):
		errResponse(ctx, fasthttp.StatusBadRequest, "INVALID_KEY", err.Error())
	default:
		reqID, _ := httpctx.RequestIDFromCtx(ctx)
		logger.Error("key store error", zap.String("request_id", reqID), zap.Error(err))
		errResponse(ctx, fasthttp.StatusInternalServerError, "DB_ERROR", "database error")
	}
}

// pathID returns the {id} route parameter.
func pathID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	return id
}
