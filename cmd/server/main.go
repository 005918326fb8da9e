package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/certgen/internal/artifacts"
	"github.com/JonMunkholm/certgen/internal/audit"
	"github.com/JonMunkholm/certgen/internal/config"
	"github.com/JonMunkholm/certgen/internal/core"
	"github.com/JonMunkholm/certgen/internal/generate"
	"github.com/JonMunkholm/certgen/internal/logging"
	"github.com/JonMunkholm/certgen/internal/pdfgen"
	"github.com/JonMunkholm/certgen/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Overload lets a local .env win over the shell environment.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"generate_max_concurrent", cfg.Generate.MaxConcurrent,
		"redis", cfg.Storage.RedisAddr != "",
		"database", cfg.Database.Enabled(),
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	recorder, pool, err := openAudit(ctx, cfg)
	if err != nil {
		slog.Error("failed to open audit database", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open artifact store", "error", err)
		os.Exit(1)
	}

	service, err := core.NewService(core.Options{
		SessionTTL:  cfg.Session.TTL,
		MaxSessions: cfg.Session.MaxSessions,
		Canvas:      pdfgen.Size{W: cfg.Generate.CanvasWidth, H: cfg.Generate.CanvasHeight},
		NameColumn:  cfg.Generate.NameColumn,
		RunTimeout:  cfg.Generate.Timeout,
		ArtifactTTL: cfg.Storage.ArtifactTTL,
		Binder: pdfgen.Options{
			FontDir:          cfg.Generate.FontDir,
			VerificationCode: cfg.Generate.VerificationCode,
			Creator:          "certgen",
		},
		Limiter:   generate.NewLimiter(cfg.Generate.MaxConcurrent, cfg.Generate.MaxWaitTime),
		Artifacts: store,
		Audit:     recorder,
		Tokens:    core.NewTokenIssuer(cfg.Session.Secret, cfg.Session.TTL),
	})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}
	defer service.Close()

	server := web.NewServer(service, cfg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartSweeper(jobCtx, cfg.Session.SweepInterval)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for generation runs to finish", "active", status.Active)
			if err := service.WaitForRuns(shutdownCtx); err != nil {
				slog.Warn("generation runs did not finish in time", "error", err)
			} else {
				slog.Info("all generation runs finished")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

// openAudit logs run events, and also stores them in PostgreSQL when a
// database is configured. The returned pool is nil without a database.
func openAudit(ctx context.Context, cfg *config.Config) (audit.Recorder, *pgxpool.Pool, error) {
	if !cfg.Database.Enabled() {
		return audit.LogRecorder{}, nil, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	pg := audit.NewPGRecorder(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	slog.Info("connected to audit database")
	return audit.Tee(audit.LogRecorder{}, pg), pool, nil
}

// openStore picks Redis when configured and memory otherwise, sealing
// documents when an artifact key is set.
func openStore(ctx context.Context, cfg *config.Config) (artifacts.Store, error) {
	var store artifacts.Store
	if cfg.Storage.RedisAddr != "" {
		rs, err := artifacts.NewRedisStore(ctx, artifacts.RedisOptions{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
			TTL:      cfg.Storage.ArtifactTTL,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("storing documents in redis", "addr", cfg.Storage.RedisAddr)
		store = rs
	} else {
		store = artifacts.NewMemoryStore(cfg.Storage.ArtifactTTL)
	}

	if cfg.Storage.ArtifactKey == "" {
		return store, nil
	}
	sealer, err := artifacts.NewSealerHex(cfg.Storage.ArtifactKey)
	if err != nil {
		store.Close()
		return nil, err
	}
	return artifacts.Sealed(store, sealer), nil
}
