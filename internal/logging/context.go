// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userIDKey    contextKey = "user_id"
)

// NewRequestID returns a fresh request identifier.
func NewRequestID() string {
	return uuid.NewString()
}

// ContextWithRequestID stores a request id on ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextWithUserID stores the user being served on ctx.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the user id or "".
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// Ctx returns the global logger enriched with request_id and user_id from ctx.
//
//	logging.Ctx(ctx).Info().Int("count", n).Msg("recommendations served")
func Ctx(ctx context.Context) *zerolog.Logger {
	l := FromContext(ctx, Logger())
	return &l
}

// FromContext enriches base with the request-scoped fields found on ctx.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func FromContext(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	zctx := base.With()
	if id := RequestIDFromContext(ctx); id != "" {
		zctx = zctx.Str("request_id", id)
	}
	if uid := UserIDFromContext(ctx); uid != "" {
		zctx = zctx.Str("user_id", uid)
	}
	return zctx.Logger()
}
