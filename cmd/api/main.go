package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devlogs/devlogs-api/internal/adapters/gotrue"
	"github.com/devlogs/devlogs-api/internal/adapters/httpapi"
	memcreds "github.com/devlogs/devlogs-api/internal/adapters/memory/credentialrepo"
	memidempotency "github.com/devlogs/devlogs-api/internal/adapters/memory/idempotency"
	memlogs "github.com/devlogs/devlogs-api/internal/adapters/memory/logrepo"
	memprofiles "github.com/devlogs/devlogs-api/internal/adapters/memory/profilerepo"
	memprojects "github.com/devlogs/devlogs-api/internal/adapters/memory/projectrepo"
	postgres "github.com/devlogs/devlogs-api/internal/adapters/postgres"
	pgcreds "github.com/devlogs/devlogs-api/internal/adapters/postgres/credentialrepo"
	pgidempotency "github.com/devlogs/devlogs-api/internal/adapters/postgres/idempotency"
	pglogs "github.com/devlogs/devlogs-api/internal/adapters/postgres/logrepo"
	pgprofiles "github.com/devlogs/devlogs-api/internal/adapters/postgres/profilerepo"
	pgprojects "github.com/devlogs/devlogs-api/internal/adapters/postgres/projectrepo"
	"github.com/devlogs/devlogs-api/internal/app/auth"
	"github.com/devlogs/devlogs-api/internal/app/devlogs"
	"github.com/devlogs/devlogs-api/internal/app/projects"
	"github.com/devlogs/devlogs-api/internal/platform/auth/jwtverifier"
	"github.com/devlogs/devlogs-api/internal/platform/auth/sessiontoken"
	platformclock "github.com/devlogs/devlogs-api/internal/platform/clock"
	"github.com/devlogs/devlogs-api/internal/platform/config"
	"github.com/devlogs/devlogs-api/internal/platform/logging"
	credentialport "github.com/devlogs/devlogs-api/internal/ports/out/credentialrepo"
	idempotencyport "github.com/devlogs/devlogs-api/internal/ports/out/idempotency"
	logrepoport "github.com/devlogs/devlogs-api/internal/ports/out/logrepo"
	profilerepoport "github.com/devlogs/devlogs-api/internal/ports/out/profilerepo"
	projectrepoport "github.com/devlogs/devlogs-api/internal/ports/out/projectrepo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("api exited", "error", logging.Redact(err.Error(), cfg.Auth.Secrets()...))
		os.Exit(1)
	}
}

type stores struct {
	creds    credentialport.Repository
	profiles profilerepoport.Repository
	projects projectrepoport.Repository
	logs     logrepoport.Repository
	idem     idempotencyport.Store
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := platformclock.NewSystemClock()

	var st stores
	switch cfg.Server.StorageBackend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return err
		}
		defer pool.Close()
		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, pool, logger); err != nil {
				return err
			}
		}
		st = stores{
			creds:    pgcreds.NewRepo(pool),
			profiles: pgprofiles.NewRepo(pool),
			projects: pgprojects.NewRepo(pool),
			logs:     pglogs.NewRepo(pool),
			idem:     pgidempotency.NewStore(pool, clk, 0),
		}
	default:
		projectRepo := memprojects.NewRepo()
		logRepo := memlogs.NewRepo(projectRepo)
		projectRepo.AttachLogs(logRepo)
		st = stores{
			creds:    memcreds.NewRepo(),
			profiles: memprofiles.NewRepo(),
			projects: projectRepo,
			logs:     logRepo,
			idem:     memidempotency.NewStore(clk, 0),
		}
	}

	provider := gotrue.New(gotrue.Config{
		BaseURL:    cfg.Auth.ProviderURL,
		AnonKey:    cfg.Auth.AnonKey,
		ServiceKey: cfg.Auth.ServiceKey,
		Timeout:    cfg.Auth.ProviderTimeout,
	})

	// Auth configuration:
	// - Production: verify bearer tokens (HS* with JWT_SECRET, ES*/RS*/PS* via the provider JWKS)
	// - Local dev: AUTH_MODE=dev trusts X-Debug-Subject instead
	secret := cfg.Auth.JWTSecret
	var authMW func(http.Handler) http.Handler
	switch cfg.Server.AuthMode {
	case "dev":
		authMW = httpapi.NewDevAuthMiddleware(cfg.Server.DevSubject)
		if secret == "" {
			secret = ephemeralSecret()
			logger.Warn("JWT_SECRET not set; fallback tokens are signed with a per-process secret")
		}
	default:
		var keys jwtverifier.KeyCache
		if url := cfg.Auth.JWKS(); url != "" {
			keys = jwtverifier.NewJWKSCache(url, provider.HTTPClient(),
				jwtverifier.WithRefreshInterval(cfg.Auth.JWKSRefreshInterval))
		}
		verifier := jwtverifier.New(jwtverifier.Options{
			Secret:    secret,
			Keys:      keys,
			ClockSkew: cfg.Auth.ClockSkew,
		})
		authMW = httpapi.NewAuthMiddleware(verifier, logger)
	}

	issuer, err := sessiontoken.NewIssuer(secret, cfg.Auth.JWTAudience, clk)
	if err != nil {
		return err
	}

	authSvc := auth.NewService(provider, st.creds, st.profiles, issuer, auth.Options{
		FallbackTTL: cfg.Auth.FallbackTTL,
		PendingTTL:  cfg.Auth.PendingTTL,
		Secrets:     cfg.Auth.Secrets(),
		Logger:      logger,
	})
	api := httpapi.NewServer(
		authSvc,
		projects.NewService(st.projects, clk),
		devlogs.NewService(st.logs, st.projects, clk),
		st.idem,
		clk,
		logger,
	)

	handler := httpapi.NewRouter(api, httpapi.RouterOptions{
		AuthMiddleware:    authMW,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		LoginLimiter:      httpapi.NewIPRateLimiter(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.LoginBurst),
		TrustProxyHeaders: cfg.Server.TrustProxy,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening",
			"port", cfg.Server.Port,
			"storage", cfg.Server.StorageBackend,
			"auth_mode", cfg.Server.AuthMode,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func ephemeralSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
