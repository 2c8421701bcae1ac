package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// LoggingInterceptor returns a Connect interceptor that logs every RPC call
// with its procedure, caller, duration and error code.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure
			userID := GetUserID(ctx) // empty if pre-auth

			resp, err := next(ctx, req)

			attrs := []any{
				"procedure", procedure,
				"user_id", userID,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if err == nil {
				slog.Info("RPC ok", attrs...)
				return resp, nil
			}

			var connectErr *connect.Error
			if errors.As(err, &connectErr) && connectErr.Code() != connect.CodeInternal {
				slog.Warn("RPC error", append(attrs, "code", connectErr.Code(), "error", connectErr.Message())...)
			} else {
				slog.Error("RPC error", append(attrs, "code", connect.CodeOf(err), "error", err)...)
			}
			return resp, err
		}
	}
}
