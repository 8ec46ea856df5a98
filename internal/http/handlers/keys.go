package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	dbpkg "keyrepository/internal/db"
)

type storeKeyRequest struct {
	PublicKey           string `json:"public_key"`
	PrivateKeyEncrypted string `json:"private_key_encrypted"`
	Type                string `json:"type"`
}

type updateKeyRequest struct {
	PublicKey           *string `json:"public_key"`
	PrivateKeyEncrypted *string `json:"private_key_encrypted"`
	Type                *string `json:"type"`
}

type listKeysResponse struct {
	Keys   []dbpkg.Key `json:"keys"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// StoreKey stores a key record whose private half was encrypted by the caller.
func StoreKey(db *gorm.DB, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var payload storeKeyRequest
		if err := json.Unmarshal(ctx.PostBody(), &payload); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
			return
		}

		key, err := dbpkg.CreateKey(ctx, db, dbpkg.KeyInput{
			PublicKey:           payload.PublicKey,
			PrivateKeyEncrypted: payload.PrivateKeyEncrypted,
			Type:                dbpkg.KeyType(payload.Type),
		})
		if err != nil {
			storeError(ctx, logger, err)
			return
		}

		logger.Info("key stored", zap.String("id", key.ID), zap.String("type", string(key.Type)))
		jsonResponse(ctx, fasthttp.StatusCreated, key)
	}
}

func GetKey(db *gorm.DB, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		key, err := dbpkg.FindKey(ctx, db, pathID(ctx))
		if err != nil {
			storeError(ctx, logger, err)
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, key)
	}
}

// ListKeys accepts type, include_deleted, limit and offset query parameters.
func ListKeys(db *gorm.DB, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		args := ctx.QueryArgs()
		opts := dbpkg.ListKeysOptions{
			Type: dbpkg.KeyType(args.Peek("type")),
		}

		if v := string(args.Peek("include_deleted")); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errResponse(ctx, fasthttp.StatusBadRequest, "INVALID_QUERY", "invalid include_deleted")
				return
			}
			opts.IncludeDeleted = b
		}
		for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
			v := string(args.Peek(name))
			if v == "" {
				continue
			}
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				errResponse(ctx, fasthttp.StatusBadRequest, "INVALID_QUERY", "invalid "+name)
				return
			}
			*dst = n
		}

		opts = opts.WithDefaults()
		keys, err := dbpkg.ListKeys(ctx, db, opts)
		if err != nil {
			storeError(ctx, logger, err)
			return
		}

		jsonResponse(ctx, fasthttp.StatusOK, listKeysResponse{Keys: keys, Limit: opts.Limit, Offset: opts.Offset})
	}
}

// UpdateKey replaces any of public_key, private_key_encrypted and type.
func UpdateKey(db *gorm.DB, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var payload updateKeyRequest
		if err := json.Unmarshal(ctx.PostBody(), &payload); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
			return
		}

		update := dbpkg.KeyUpdate{
			PublicKey:           payload.PublicKey,
			PrivateKeyEncrypted: payload.PrivateKeyEncrypted,
		}
		if payload.Type != nil {
			t := dbpkg.KeyType(*payload.Type)
			update.Type = &t
		}

		key, err := dbpkg.UpdateKey(ctx, db, pathID(ctx), update)
		if err != nil {
			storeError(ctx, logger, err)
			return
		}

		logger.Info("key updated", zap.String("id", key.ID))
		jsonResponse(ctx, fasthttp.StatusOK, key)
	}
}

// DeleteKey soft deletes a key record.
func DeleteKey(db *gorm.DB, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id := pathID(ctx)
		if err := dbpkg.DeleteKey(ctx, db, id); err != nil {
			storeError(ctx, logger, err)
			return
		}

		logger.Info("key deleted", zap.String("id", id))
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}
}

func RestoreKey(db *gorm.DB, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		key, err := dbpkg.RestoreKey(ctx, db, pathID(ctx))
		if err != nil {
			storeError(ctx, logger, err)
			return
		}

		logger.Info("key restored", zap.String("id", key.ID))
		jsonResponse(ctx, fasthttp.StatusOK, key)
	}
}
