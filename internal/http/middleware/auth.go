package middleware

import (
	"bytes"
	"strings"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	httpctx "keyrepository/internal/http/ctx"
)

// BearerAuth validates Bearer tokens against a bcrypt hash. An empty hash
// disables authentication and marks callers as anonymous.
func BearerAuth(tokenHash string) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	hash := []byte(strings.TrimSpace(tokenHash))

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if len(hash) == 0 {
				httpctx.SetCaller(ctx, "anonymous")
				next(ctx)
				return
			}

			auth := ctx.Request.Header.Peek("Authorization")
			if len(auth) == 0 {
				unauthorized(ctx, "missing Authorization header")
				return
			}

			const prefix = "Bearer "
			if !bytes.HasPrefix(auth, []byte(prefix)) {
				unauthorized(ctx, "invalid Authorization header")
				return
			}

			token := strings.TrimSpace(string(auth[len(prefix):]))
			if token == "" {
				unauthorized(ctx, "empty bearer token")
				return
			}

			if err := bcrypt.CompareHashAndPassword(hash, []byte(token)); err != nil {
				unauthorized(ctx, "invalid bearer token")
				return
			}

			httpctx.SetCaller(ctx, "token")
			next(ctx)
		}
	}
}

// HashToken returns the bcrypt hash to configure as APP_API_TOKEN_HASH.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func unauthorized(ctx *fasthttp.RequestCtx, msg string) {
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"code":"UNAUTHORIZED","message":"` + msg + `"}`)
}
