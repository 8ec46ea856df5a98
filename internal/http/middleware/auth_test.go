package middleware

import (
	"testing"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	httpctx "keyrepository/internal/http/ctx"
)

func TestBearerAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}

	tests := []struct {
		name       string
		hash       string
		header     string
		wantStatus int
		wantCaller string
	}{
		{name: "disabled", hash: "", wantStatus: fasthttp.StatusOK, wantCaller: "anonymous"},
		{name: "missing header", hash: string(hash), wantStatus: fasthttp.StatusUnauthorized},
		{name: "wrong scheme", hash: string(hash), header: "Basic abc", wantStatus: fasthttp.StatusUnauthorized},
		{name: "empty token", hash: string(hash), header: "Bearer  ", wantStatus: fasthttp.StatusUnauthorized},
		{name: "wrong token", hash: string(hash), header: "Bearer nope", wantStatus: fasthttp.StatusUnauthorized},
		{name: "valid token", hash: string(hash), header: "Bearer s3cret", wantStatus: fasthttp.StatusOK, wantCaller: "token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var caller string
			next := func(ctx *fasthttp.RequestCtx) {
				caller, _ = httpctx.CallerFromCtx(ctx)
				ctx.SetStatusCode(fasthttp.StatusOK)
			}

			var ctx fasthttp.RequestCtx
			ctx.Request.SetRequestURI("/v1/keys")
			if tt.header != "" {
				ctx.Request.Header.Set("Authorization", tt.header)
			}

			BearerAuth(tt.hash)(next)(&ctx)

			if got := ctx.Response.StatusCode(); got != tt.wantStatus {
				t.Fatalf("status = %d, want %d", got, tt.wantStatus)
			}
			if caller != tt.wantCaller {
				t.Fatalf("caller = %q, want %q", caller, tt.wantCaller)
			}
		})
	}
}

func TestHashTokenRoundTrip(t *testing.T) {
	hash, err := HashToken("token-value")
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("token-value")); err != nil {
		t.Fatalf("hash does not match token: %v", err)
	}
}
