package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"

	"github.com/openclaw/hello-api/pkg/audit"
	"github.com/openclaw/hello-api/pkg/authn"
	"github.com/openclaw/hello-api/pkg/config"
	"github.com/openclaw/hello-api/pkg/hello"
	"github.com/openclaw/hello-api/pkg/iam"
	"github.com/openclaw/hello-api/pkg/ratelimit"
	"github.com/openclaw/hello-api/pkg/rbac"
)

type Config struct {
	Database  config.DatabaseConfig
	Auth      config.AuthConfig
	RateLimit ratelimit.Config

	// InMemory runs against in-memory repositories with seeded roles, for
	// local development without Postgres.
	InMemory bool `env:"HELLO_IN_MEMORY" env-default:"false"`

	CORSAllowedOrigins []string `env:"HELLO_CORS_ALLOWED_ORIGINS" env-default:"http://localhost:3000"`
}

// loadEnvFile loads a .env file when present; missing files are fine,
// container environments configure through real env vars.
func loadEnvFile() {
	envFile := config.GetEnvOrDefault("ENV_FILE", ".env")
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return
	}
	if err := godotenv.Load(envFile); err != nil {
		slog.Error("Failed to load .env file", "error", err, "path", envFile)
		os.Exit(-1)
	}
	slog.Info("Configuration loaded from .env file", "path", envFile)
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	loadEnvFile()

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)
	if err := cfg.Auth.Validate(); err != nil {
		slog.Error("Invalid auth configuration", "error", err)
		os.Exit(-1)
	}

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)

	requestLogger := httplog.NewLogger("hello-api", httplog.Options{
		JSON:            config.IsProduction(),
		LogLevel:        slog.LevelInfo,
		Concise:         true,
		RequestHeaders:  false,
		QuietDownRoutes: []string{"/healthz"},
		QuietDownPeriod: 10 * time.Second,
	})
	server.R.Use(httplog.RequestLogger(requestLogger))
	server.R.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	limiter := ratelimit.NewMiddleware(cfg.RateLimit)
	server.R.Use(limiter.Handler)
	server.R.Use(audit.Middleware)

	userRepo, roleRepo, auditRepo, entityRepo := buildRepositories(cfg)

	roleService := rbac.NewRoleService(roleRepo)
	userService := iam.NewUserService(userRepo, roleService, cfg.Auth.DefaultRole)
	auditService := audit.NewService(auditRepo)
	entityService := hello.NewService(entityRepo, auditService)
	guard := rbac.NewGuard(roleService, userService)

	resolver, err := authn.NewResolver(context.Background(), cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.ResolveJwksURL())
	if err != nil {
		slog.Error("Failed to set up token verification", "issuer", cfg.Auth.Issuer, "error", err)
		os.Exit(-1)
	}

	userHandle := iam.NewHandle(userService, cfg.Auth.WebhookSecret)
	roleHandle := rbac.NewHandle(roleService)
	auditHandle := audit.NewHandle(auditService)
	entityHandle := hello.NewHandle(entityService)

	// Webhook deliveries authenticate by signature, not bearer token
	userHandle.RegisterWebhookRoutes(server.R)

	server.R.Group(func(r chi.Router) {
		r.Use(authn.Require(resolver))
		r.Use(limiter.UserHandler)
		userHandle.RegisterRoutes(r, guard)
		roleHandle.RegisterRoutes(r, guard)
		auditHandle.RegisterRoutes(r, guard)
		entityHandle.RegisterRoutes(r, guard)
	})

	server.Run()
	auditService.Flush()
}

// buildRepositories wires either Postgres or in-memory persistence
func buildRepositories(cfg Config) (iam.UserRepository, rbac.RoleRepository, audit.Repository, hello.EntityRepository) {
	if cfg.InMemory {
		slog.Info("Running with in-memory repositories")
		roleRepo := rbac.NewInMemoryRoleRepository()
		seedRoles(roleRepo)
		return iam.NewInMemoryUserRepository(), roleRepo,
			audit.NewInMemoryRepository(), hello.NewInMemoryEntityRepository()
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.ToDatabaseURL())
	if err != nil {
		slog.Error("Failed creating dbpool",
			"db", cfg.Database.Database,
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"user", cfg.Database.User,
			"schema", cfg.Database.Schema)
		os.Exit(-1)
	}
	return iam.NewPostgresUserRepository(pool), rbac.NewPostgresRoleRepository(pool),
		audit.NewPostgresRepository(pool), hello.NewPostgresEntityRepository(pool)
}

// seedRoles mirrors the migration seed data for in-memory runs
func seedRoles(repo *rbac.InMemoryRoleRepository) {
	repo.SeedRole(rbac.Role{Name: "admin", Description: "Full access", Permissions: []string{rbac.Wildcard}})
	repo.SeedRole(rbac.Role{Name: "editor", Description: "Manage hello entities", Permissions: []string{rbac.PermHelloRead, rbac.PermHelloWrite}})
	repo.SeedRole(rbac.Role{Name: "user", Description: "Read hello entities", Permissions: []string{rbac.PermHelloRead}})
}
