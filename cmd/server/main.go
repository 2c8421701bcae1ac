package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/tripledger/internal/auth"
	"github.com/mmynk/tripledger/internal/config"
	"github.com/mmynk/tripledger/internal/currency"
	"github.com/mmynk/tripledger/internal/ledger"
	"github.com/mmynk/tripledger/internal/metrics"
	"github.com/mmynk/tripledger/internal/middleware"
	"github.com/mmynk/tripledger/internal/reconcile"
	"github.com/mmynk/tripledger/internal/service"
	"github.com/mmynk/tripledger/internal/storage/sqlite"
	"github.com/mmynk/tripledger/internal/submission"
	"github.com/mmynk/tripledger/pkg/api"
	"github.com/mmynk/tripledger/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a tripledger.yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.SetupWithLevel(logging.ParseLevel(cfg.Log.Level))

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.Database.Path)

	provider := currency.NewHTTPProvider(&http.Client{Timeout: cfg.Rates.Timeout},
		cfg.Rates.URLTemplate, cfg.Rates.APIKey, cfg.Rates.RatePath)
	normalizer := currency.NewNormalizer(provider, currency.NewRateCache(), cfg.Reporting,
		currency.WithLookupTimeout(cfg.Rates.Timeout))

	// Both stay nil interfaces when no token is configured.
	var (
		remote    ledger.Client
		directory ledger.Directory
	)
	if cfg.LedgerEnabled() {
		client := ledger.NewSplitwiseClient(cfg.Ledger.BaseURL, cfg.Ledger.Token, cfg.Ledger.Timeout)
		remote, directory = client, client
		slog.Info("Remote ledger enabled", "base_url", cfg.Ledger.BaseURL)
	} else {
		slog.Warn("No remote ledger token configured; only personal expenses can be recorded")
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
		slog.Warn("No JWT secret configured; sessions will not survive a restart")
	}
	jwtManager := auth.NewJWTManager(secret, cfg.Auth.TokenDuration)

	engine := reconcile.NewEngine(store, normalizer)
	syncer := service.NewSyncer(remote, engine, cfg.Ledger.Limit)
	flow := submission.NewFlow(store, remote, normalizer, submission.WithGroupLock(engine))

	remoteAuth := auth.NewRemoteAuthenticator(store, func(token string) ledger.Directory {
		return ledger.NewSplitwiseClient(cfg.Ledger.BaseURL, token, cfg.Ledger.Timeout)
	})
	authService := service.NewAuthService(auth.NewPasswordAuthenticator(store), remoteAuth, store, jwtManager, slog.Default())

	authed := connect.WithInterceptors(
		middleware.MetricsInterceptor(),
		middleware.RequireAuth(jwtManager),
		middleware.LoggingInterceptor(),
	)
	public := connect.WithInterceptors(
		middleware.MetricsInterceptor(),
		middleware.OptionalAuth(jwtManager),
		middleware.LoggingInterceptor(),
	)

	mux := http.NewServeMux()
	mux.Handle(api.NewExpenseServiceHandler(service.NewExpenseService(store, flow, syncer, cfg.Reporting), authed))
	mux.Handle(api.NewTripServiceHandler(service.NewTripService(store, directory, syncer, cfg.Reporting), authed))
	mux.Handle(api.NewCurrencyServiceHandler(service.NewCurrencyService(normalizer, directory), public))
	mux.Handle(api.NewAuthServiceHandler(authService, public))
	mux.Handle("/metrics", metrics.Handler())

	if cfg.Server.StaticPath != "" {
		static, err := staticHandler(cfg.Server.StaticPath)
		if err != nil {
			slog.Error("Failed to resolve static path", "error", err)
			os.Exit(1)
		}
		mux.Handle("/", static)
	}

	// h2c serves HTTP/2 without TLS for Connect clients.
	handler := h2c.NewHandler(loggingMiddleware(corsMiddleware(mux)), &http2.Server{})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	slog.Info("Connect server starting",
		"address", addr,
		"url", fmt.Sprintf("http://localhost%s", addr),
		"reporting_currency", cfg.Reporting,
	)
	if err := http.ListenAndServe(addr, handler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
