package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dhawalhost/mcpguard/internal/authz"
	"github.com/dhawalhost/mcpguard/internal/guard"
	"github.com/dhawalhost/mcpguard/internal/identity"
	"github.com/dhawalhost/mcpguard/internal/policy"
	"github.com/dhawalhost/mcpguard/pkg/database"
	"github.com/dhawalhost/mcpguard/pkg/logger"
	"github.com/dhawalhost/mcpguard/pkg/middleware"
	"github.com/dhawalhost/mcpguard/pkg/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

const serviceName = "guardsvc"

func main() {
	log, err := logger.New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		os.Stderr.WriteString("logger init failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("guardsvc failed", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    envOr("ENVIRONMENT", "development"),
	}, log)
	if err != nil {
		return err
	}
	defer shutdownTracer(context.Background())

	idCfg, err := loadIdentityConfig()
	if err != nil {
		return err
	}
	ids, err := identity.NewManager(idCfg, log)
	if err != nil {
		return err
	}

	loader := policy.NewLoader(log)
	var policies []authz.Policy
	if dir := os.Getenv("POLICY_DIR"); dir != "" {
		policies, err = loader.LoadDir(dir)
		if err != nil {
			return err
		}
	}

	var store policy.Store
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := database.Connect(ctx, dsn)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := policy.Migrate(ctx, db); err != nil {
			return err
		}
		store = policy.NewStore(db)

		// Persisted policies extend the file set; files win on name
		// collision since they are the operator-reviewed source.
		persisted, err := store.ListPolicies(ctx)
		if err != nil {
			return err
		}
		policies = mergePolicies(policies, persisted)
	}

	engine, err := authz.NewEngine(policies,
		authz.WithLogger(log),
		authz.WithLegacyToolFallback(os.Getenv("LEGACY_TOOL_FALLBACK") == "true"),
	)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()

	if os.Getenv("ENVIRONMENT") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(serviceName),
		metrics.GinMiddleware(),
		middleware.SecurityHeadersMiddleware(),
		middleware.RateLimitMiddleware(rate.Limit(100), 50),
		cors.New(cors.Config{
			AllowOrigins: []string{envOr("CORS_ORIGIN", "*")},
			AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
			AllowHeaders: []string{"Authorization", "Content-Type", "X-API-Key", "X-User-ID", "X-Agent-ID"},
		}),
	)
	router.GET("/metrics", gin.WrapH(observability.Handler()))

	h := guard.NewHTTPHandler(engine, ids, store, metrics, log)
	var adminGuard gin.HandlerFunc
	if ids.Required() {
		adminGuard = middleware.Guard(ids, engine, log)
	}
	h.RegisterRoutes(router, adminGuard)

	srv := &http.Server{
		Addr:              envOr("GUARD_ADDR", ":8090"),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting",
			zap.String("addr", srv.Addr),
			zap.Int("policies", engine.PolicyCount()),
			zap.String("auth_method", string(idCfg.Method)),
		)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// loadIdentityConfig reads the identity configuration from the YAML file
// named by AUTH_CONFIG, falling back to env-var basics and finally to
// unauthenticated mode.
func loadIdentityConfig() (identity.Config, error) {
	if path := os.Getenv("AUTH_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return identity.Config{}, err
		}
		var cfg identity.Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return identity.Config{}, err
		}
		return cfg, nil
	}

	method := authz.AuthMethod(envOr("AUTH_METHOD", string(authz.MethodNone)))
	cfg := identity.Config{Method: method}
	if method == authz.MethodJWT {
		cfg.JWTSecret = os.Getenv("JWT_SECRET")
		cfg.JWTAudience = os.Getenv("JWT_AUDIENCE")
		cfg.JWTIssuer = os.Getenv("JWT_ISSUER")
	}
	return cfg, nil
}

func mergePolicies(files, persisted []authz.Policy) []authz.Policy {
	byName := make(map[string]struct{}, len(files))
	for _, p := range files {
		byName[p.Name] = struct{}{}
	}
	out := files
	for _, p := range persisted {
		if _, dup := byName[p.Name]; !dup {
			out = append(out, p)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
