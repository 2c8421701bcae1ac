package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"connectrpc.com/connect"
)

var (
	serverURL = flag.String("server", envOr("TRIPLEDGER_SERVER", "http://localhost:8080"), "tripledger server URL")
	token     = flag.String("token", os.Getenv("TRIPLEDGER_SESSION"), "session token from tripctl login")
	timeout   = flag.Duration("timeout", 30*time.Second, "request timeout")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// bearer adds the session token to every call.
func bearer(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token != "" {
				req.Header().Set("Authorization", "Bearer "+token)
			}
			return next(ctx, req)
		}
	}
}

func httpClient() *http.Client {
	return &http.Client{Timeout: *timeout}
}

func clientOptions() []connect.ClientOption {
	return []connect.ClientOption{connect.WithInterceptors(bearer(*token))}
}
