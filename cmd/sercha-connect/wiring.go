package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/auth"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/crypto"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/memory"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/oauth"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/sercha-connect/internal/adapters/driven/redis"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/sqlite"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-connect/internal/core/services"
	"github.com/custodia-labs/sercha-connect/internal/providers"
)

// app holds the wired adapters and services shared by the run modes.
type app struct {
	logger *slog.Logger

	connections driven.ConnectionStore
	states      driven.AuthorizationStateStore
	cache       driven.StatusCache
	lock        driven.DistributedLock
	redisClient *redis.Client

	authAdapter *auth.Adapter
	registry    *providers.Registry
	service     driving.ConnectionService
	maintenance *services.Maintenance

	closers []func() error
}

// Close releases database and redis connections in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
}

// loadRegistry builds the provider registry from PROVIDERS_FILE and the
// environment.
func loadRegistry(logger *slog.Logger) (*providers.Registry, error) {
	registry, err := providers.Load(providers.LoadOptions{
		File:   getEnv("PROVIDERS_FILE", ""),
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	return registry, nil
}

// newApp wires every adapter from environment configuration.
func newApp(ctx context.Context, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	masterSecret := getEnv("MASTER_SECRET", "")
	if masterSecret == "" {
		return nil, errors.New("MASTER_SECRET is required")
	}
	keys, err := crypto.DeriveKeys([]byte(masterSecret))
	if err != nil {
		return nil, fmt.Errorf("derive keys: %w", err)
	}
	cipher, err := crypto.NewSecretEncryptor(keys.Encryption)
	if err != nil {
		return nil, fmt.Errorf("create encryptor: %w", err)
	}
	codec, err := auth.NewStateCodec(keys.StateSigning)
	if err != nil {
		return nil, fmt.Errorf("create state codec: %w", err)
	}

	a.authAdapter = auth.NewAdapter(getEnv("JWT_SECRET", "development-secret-change-in-production"))

	a.registry, err = loadRegistry(logger)
	if err != nil {
		return nil, err
	}
	logger.Info("providers registered", "count", a.registry.Len(), "platforms", a.registry.Platforms())

	// ===== Relational store (PostgreSQL if configured, otherwise SQLite) =====
	var pgDB *postgres.DB
	if databaseURL := getEnv("DATABASE_URL", ""); databaseURL != "" {
		cfg := postgres.DefaultConfig(databaseURL)
		cfg.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", cfg.MaxOpenConns)
		cfg.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", cfg.MaxIdleConns)
		pgDB, err = postgres.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pgDB.Close)
		if err := pgDB.InitSchema(ctx); err != nil {
			return nil, fmt.Errorf("init schema: %w", err)
		}
		a.connections = postgres.NewConnectionStore(pgDB.DB)
		a.states = postgres.NewStateStore(pgDB.DB)
		logger.Info("using postgres store")
	} else {
		path := getEnv("SQLITE_PATH", "sercha-connect.db")
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.connections = store.ConnectionStore()
		a.states = store.StateStore()
		logger.Info("using sqlite store", "path", store.Path())
	}

	cacheTTL := getEnvDuration("STATUS_CACHE_TTL", services.DefaultStatusCacheTTL)

	// ===== Redis (optional): status cache, lock, optionally state store =====
	if redisURL := getEnv("REDIS_URL", ""); redisURL != "" {
		a.redisClient, err = redisadapter.Connect(ctx, redisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.redisClient.Close)
		a.cache = redisadapter.NewStatusCache(a.redisClient)
		lock, err := redisadapter.NewLock(a.redisClient)
		if err != nil {
			return nil, err
		}
		a.lock = lock
		if getEnv("STATE_STORE", "") == "redis" {
			a.states = redisadapter.NewStateStore(a.redisClient)
			logger.Info("using redis state store")
		}
		logger.Info("using redis status cache and lock")
	} else {
		a.cache = memory.NewStatusCache(getEnvInt("STATUS_CACHE_SIZE", memory.DefaultCacheSize), cacheTTL)
		if pgDB != nil {
			a.lock = postgres.NewAdvisoryLock(pgDB)
			logger.Info("using in-process status cache and postgres advisory lock")
		} else {
			a.lock = memory.NewLock()
			logger.Info("using in-process status cache and lock")
		}
	}

	a.cache = services.TrackGenerations(a.cache)
	client := oauth.NewClient(oauth.Config{Logger: logger})

	refreshSkew := getEnvDuration("REFRESH_SKEW", services.DefaultRefreshSkew)
	refresher := services.NewRefresher(services.RefresherConfig{
		Connections: a.connections,
		Cache:       a.cache,
		Registry:    a.registry,
		Client:      client,
		Cipher:      cipher,
		Logger:      logger,
	})

	a.service = services.NewConnectionService(services.ConnectionServiceConfig{
		Connections: a.connections,
		States:      a.states,
		Cache:       a.cache,
		Registry:    a.registry,
		Client:      client,
		Cipher:      cipher,
		Codec:       codec,
		PKCE:        crypto.PKCEGenerator{},
		Refresher:   refresher,
		BaseURL:     getEnv("BASE_URL", fmt.Sprintf("http://localhost:%d", getEnvInt("PORT", 8080))),
		StateTTL:    getEnvDuration("STATE_TTL", 0),
		CacheTTL:    cacheTTL,
		RefreshSkew: refreshSkew,
		Logger:      logger,
	})

	a.maintenance = services.NewMaintenance(services.MaintenanceConfig{
		States:      a.states,
		Connections: a.connections,
		Refresher:   refresher,
		Logger:      logger,
		Horizon:     refreshSkew,
		BatchSize:   getEnvInt("MAINTENANCE_BATCH_SIZE", 100),
		Concurrency: getEnvInt("MAINTENANCE_CONCURRENCY", 4),
	})

	ok = true
	return a, nil
}
