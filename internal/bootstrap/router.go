package bootstrap

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/synapse-qa/synapse-backend/internal/api/http"
	"github.com/synapse-qa/synapse-backend/internal/api/http/middleware"
	"github.com/synapse-qa/synapse-backend/internal/auth"
	"github.com/synapse-qa/synapse-backend/internal/llm"
	llmhttp "github.com/synapse-qa/synapse-backend/internal/llm/http"
	"github.com/synapse-qa/synapse-backend/internal/settings"
	settingshttp "github.com/synapse-qa/synapse-backend/internal/settings/http"
	"github.com/synapse-qa/synapse-backend/internal/workspace"
	workspacehttp "github.com/synapse-qa/synapse-backend/internal/workspace/http"
)

type RouterDeps struct {
	ServiceName    string
	Version        string
	AllowedOrigins []string
	DB             *pgxpool.Pool
	Redis          *redis.Client
	Providers      *llm.Registry
	Workspaces     *workspace.Manager
	Settings       *settings.Store
	Keys           settings.KeyStore
	Verifier       auth.TokenVerifier
	AllowDevAuth   bool
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     dep.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id", "X-User-Id"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)

	requireOwner := auth.RequireOwner(dep.Verifier, dep.AllowDevAuth)

	llmhttp.New(dep.Providers, dep.Settings).Register(r.Group("/api", requireOwner))

	api := r.Group("/api/v1")
	api.Use(requireOwner)

	workspacehttp.New(dep.Workspaces).Register(api)
	settingshttp.New(dep.Settings, dep.Keys, dep.Providers.Names()).Register(api)

	return r
}
