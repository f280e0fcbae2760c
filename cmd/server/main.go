package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/MaxymChyncha/house-security-system/internal/access"
	"github.com/MaxymChyncha/house-security-system/internal/auth"
	"github.com/MaxymChyncha/house-security-system/internal/property"
	"github.com/MaxymChyncha/house-security-system/internal/staff"
	"github.com/MaxymChyncha/house-security-system/pkg/audit"
	"github.com/MaxymChyncha/house-security-system/pkg/cache"
	"github.com/MaxymChyncha/house-security-system/pkg/config"
	"github.com/MaxymChyncha/house-security-system/pkg/database"
	"github.com/MaxymChyncha/house-security-system/pkg/logger"
	"github.com/MaxymChyncha/house-security-system/pkg/metrics"
	"github.com/MaxymChyncha/house-security-system/pkg/middleware"
	"github.com/MaxymChyncha/house-security-system/pkg/migrations"
	"github.com/MaxymChyncha/house-security-system/pkg/validation"
	"github.com/MaxymChyncha/house-security-system/pkg/vault"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "development").Fatal("failed to load configuration", err)
	}

	log := logger.New(cfg.App.LogLevel, cfg.App.Environment)
	log.WithField("version", cfg.App.Version).Info("starting house security server")

	if cfg.Vault.Enabled {
		log.Info("loading secrets from vault")
		vaultClient, err := vault.NewClient(vault.Config{
			Address:        cfg.Vault.Address,
			Token:          cfg.Vault.Token,
			UseKubernetes:  cfg.Vault.UseKubernetes,
			KubernetesRole: cfg.Vault.KubernetesRole,
			KubernetesPath: cfg.Vault.KubernetesPath,
			TokenPath:      cfg.Vault.TokenPath,
			MountPath:      cfg.Vault.MountPath,
			SecretPath:     cfg.Vault.SecretPath,
			RenewToken:     cfg.Vault.RenewToken,
			RenewInterval:  cfg.Vault.RenewInterval,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to vault", err)
		}
		defer vaultClient.Close()

		if err := config.ApplyVaultSecrets(ctx, cfg, vaultClient, log); err != nil {
			log.Fatal("failed to apply vault secrets", err)
		}
	}

	log.Info("connecting to database")
	db, err := database.NewPostgres(database.Config{
		DSN:             cfg.Database.DSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal("failed to connect to database", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		applied, err := database.NewMigrationRunner(db.DB, log).RunMigrations(ctx, migrations.FS, migrations.Dir)
		if err != nil {
			log.Fatal("failed to run migrations", err)
		}
		log.WithField("applied", applied).Info("database schema up to date")
	}

	cacheInstance := newCache(cfg.Redis, log)
	defer cacheInstance.Close()

	collector := metrics.NewCollector(metrics.CollectorConfig{
		Cache:                cacheInstance,
		EnableGoMetrics:      cfg.IsProduction(),
		EnableProcessMetrics: cfg.IsProduction(),
	})

	table, err := access.NewTable(collector)
	if err != nil {
		log.Fatal("failed to load capability table", err)
	}

	recorder := audit.Discard
	var auditManager *audit.Manager
	if cfg.Audit.Enabled {
		auditManager, err = audit.NewManager(audit.ManagerConfig{
			BasePath:      cfg.Audit.Path,
			BatchSize:     cfg.Audit.BatchSize,
			FlushInterval: cfg.Audit.FlushInterval,
			MaxFileSize:   cfg.Audit.MaxFileSize,
			Logger:        log,
		})
		if err != nil {
			log.Fatal("failed to open audit log", err)
		}
		defer auditManager.Close()
		recorder = auditManager
	}

	validation.RegisterGinBinding()

	staffModule := staff.NewModule(db, staff.ModuleConfig{Recorder: recorder}, log)
	propertyModule := property.NewModule(db, property.ModuleConfig{
		Users:    staffModule.Repository,
		Recorder: recorder,
	}, log)
	authModule := auth.NewModule(staffModule.Repository, auth.Config{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		TokenTTL: cfg.Auth.TokenTTL,
		Revoked:  cacheInstance,
		Recorder: recorder,
		Observer: collector,
		Rules:    table,
	}, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID(log))
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	router.Use(collector.GinMiddleware())

	metrics.NewHandler(collector, map[string]metrics.HealthCheck{
		"database": db.Health,
		"cache":    cacheInstance.Ping,
	}).RegisterRoutes(router)

	var auditHandler *audit.Handler
	if auditManager != nil {
		auditHandler = audit.NewHandler(auditManager)
	}

	registerRoutes(router.Group("/api/v1"), routes{
		table:        table,
		verifier:     authModule.Service,
		loginLimiter: middleware.NewIPRateLimiter(cfg.Auth.LoginRate, cfg.Auth.LoginBurst),
		authHandler:  authModule.Handler,
		staffHandler: staffModule.Handler,
		propHandler:  propertyModule.Handler,
		auditHandler: auditHandler,
	})

	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.WithField("address", srv.Addr).Info("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", err)
	}

	log.Info("server stopped")
}

// newCache connects to Redis when enabled and falls back to a process local
// cache otherwise. Revoked tokens only survive restarts with Redis.
func newCache(cfg config.RedisConfig, log *logger.Logger) cache.Cache {
	if !cfg.Enabled {
		log.Info("redis disabled, using in-memory cache")
		return cache.NewInMemoryCache()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	redisCache, err := cache.NewRedisCache(cache.RedisConfig{
		Client:       client,
		MaxFailures:  5,
		ResetTimeout: 30 * time.Second,
	})
	if err != nil {
		log.Warnf("redis connection failed, falling back to in-memory cache: %v", err)
		client.Close()
		return cache.NewInMemoryCache()
	}

	log.WithField("address", cfg.RedisAddr()).Info("redis cache initialized")
	return redisCache
}
