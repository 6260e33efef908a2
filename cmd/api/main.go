package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/synapse-qa/synapse-backend/config"
	"github.com/synapse-qa/synapse-backend/internal/audits/domain"
	"github.com/synapse-qa/synapse-backend/internal/audits/normalize"
	"github.com/synapse-qa/synapse-backend/internal/audits/repository"
	"github.com/synapse-qa/synapse-backend/internal/auth"
	"github.com/synapse-qa/synapse-backend/internal/bootstrap"
	"github.com/synapse-qa/synapse-backend/internal/llm"
	"github.com/synapse-qa/synapse-backend/internal/logging"
	"github.com/synapse-qa/synapse-backend/internal/settings"
	"github.com/synapse-qa/synapse-backend/internal/storage/postgres"
	"github.com/synapse-qa/synapse-backend/internal/workspace"
)

type settingsKV interface {
	settings.KV
	settings.Resetter
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := logging.Init(cfg.App.Environment, cfg.App.LogLevel); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logging.Sync()
	logger := logging.L()

	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		pool  *pgxpool.Pool
		sqlDB *sql.DB
		store domain.AuditStore
		keys  settings.KeyStore = settings.NewMemoryKeyStore()
	)
	if cfg.Database.Enabled() {
		pool, err = bootstrap.OpenDB(ctx, bootstrap.DBOptions{DSN: postgres.DSN(cfg.Database)})
		if err != nil {
			logger.Fatalw("open database pool", "error", err)
		}
		defer pool.Close()

		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			logger.Fatalw("ensure schema", "error", err)
		}

		sqlDB, err = postgres.NewConnection(cfg.Database)
		if err != nil {
			logger.Fatalw("open database", "error", err)
		}
		defer sqlDB.Close()

		store = repository.NewAuditRepository(sqlDB)
		keys = settings.NewKeysRepo(pool)
	} else {
		logger.Warn("no database configured, running local-only")
	}

	var (
		rdb   *redis.Client
		kv    settingsKV      = settings.NewMemoryKV()
		guard workspace.Guard = workspace.NewMemoryGuard()
	)
	if cfg.Redis.Enabled() {
		rdb, err = bootstrap.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Fatalw("open redis", "error", err)
		}
		defer rdb.Close()

		kv = settings.NewRedisKV(rdb)
		guard = workspace.NewRedisGuard(rdb, 0)
	}

	var verifier auth.TokenVerifier
	if cfg.Firebase.CredentialsPath != "" {
		client, err := auth.InitializeFirebase(ctx, cfg.Firebase)
		if err != nil {
			logger.Fatalw("init firebase", "error", err)
		}
		verifier = client
	}

	providers := llm.NewRegistry(
		llm.NewGemini(providerConfig(cfg.LLM, cfg.LLM.Gemini)),
		llm.NewGroq(providerConfig(cfg.LLM, cfg.LLM.Groq)),
	)
	settingsStore := settings.NewStore(kv, cfg.Credits.Default, providers.Names())

	refill := settings.NewRefillScheduler(kv, cfg.Credits.RefillCron)
	if err := refill.Start(); err != nil {
		logger.Fatalw("schedule credit refill", "error", err)
	}
	defer refill.Stop()

	workspaces := workspace.NewManager(workspace.Deps{
		Providers:  providers,
		Normalizer: normalize.Options{StrictCategory: cfg.LLM.StrictCategory},
		Store:      store,
		Settings:   settingsStore,
		Keys:       keys,
		Guard:      guard,
	})

	go workspaces.RunEviction(ctx, time.Minute, cfg.Server.WorkspaceIdleTTL)

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName:    cfg.App.ServiceName,
		Version:        cfg.App.Version,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		DB:             pool,
		Redis:          rdb,
		Providers:      providers,
		Workspaces:     workspaces,
		Settings:       settingsStore,
		Keys:           keys,
		Verifier:       verifier,
		AllowDevAuth:   cfg.App.AllowDevAuth,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Infow("listening", "addr", srv.Addr, "env", cfg.App.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("shutdown", "error", err)
	}
	workspaces.Wait()
}

func providerConfig(c config.LLMConfig, p config.ProviderConfig) llm.Config {
	return llm.Config{
		APIKey:  p.APIKey,
		BaseURL: p.BaseURL,
		Model:   p.Model,
		Timeout: c.Timeout,
		RPS:     c.RPS,
		Burst:   c.Burst,
	}
}
