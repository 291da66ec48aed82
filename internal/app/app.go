// Package app provides application initialization and dependency injection.
package app

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/dashwatch/config"
	"github.com/guttosm/dashwatch/internal/api"
	"github.com/guttosm/dashwatch/internal/cache"
	"github.com/guttosm/dashwatch/internal/channel"
	"github.com/guttosm/dashwatch/internal/circuitbreaker"
	"github.com/guttosm/dashwatch/internal/http"
	"github.com/guttosm/dashwatch/internal/watcher"
)

// App bundles the wired components that the entry point drives.
type App struct {
	Router  *gin.Engine
	Watcher *watcher.Watcher

	closeStore func() error
}

// InitializeApp creates and wires all application dependencies.
// This is the main orchestration function that initializes all components.
func InitializeApp(cfg config.Config) (*App, error) {
	// Initialize logger first (needed by other components)
	InitializeLogger()

	store, closeStore, err := initializeStore(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("app: open cache store: %w", err)
	}
	dataCache := cache.New(store, cache.Options{Namespace: cfg.Cache.Namespace})

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.API.CircuitBreakerFailureThreshold,
		SuccessThreshold: cfg.API.CircuitBreakerSuccessThreshold,
		Timeout:          cfg.API.CircuitBreakerTimeout,
		Name:             "dashboard-api",
	})
	client := api.NewBreakerClient(api.NewHTTPClient(cfg.API.BaseURL, cfg.API.Timeout), breaker)

	endpoint, err := channel.ResolveEndpoint(cfg.API.BaseURL, cfg.Channel.SocketPath)
	if err != nil {
		_ = closeStore()
		return nil, err
	}
	channelCfg := channel.DefaultConfig(endpoint)
	channelCfg.MaxReconnects = cfg.Channel.MaxReconnects
	channelCfg.ReconnectDelay = cfg.Channel.ReconnectDelay
	channelCfg.MaxReconnectDelay = cfg.Channel.MaxReconnectDelay
	channelCfg.HeartbeatInterval = cfg.Channel.HeartbeatInterval
	ch := channel.New(channelCfg)

	watcherCfg := watcher.DefaultConfig()
	watcherCfg.SnapshotTTL = cfg.Cache.TTL
	watcherCfg.HostTTL = cfg.Cache.HostTTL
	w := watcher.New(watcherCfg, dataCache, client, ch)

	healthHandler := http.NewHealthHandler()
	healthHandler.RegisterCircuitBreaker("dashboard_api", breaker)
	debugHandler := http.NewDebugHandler(dataCache, ch, w)

	router := http.NewRouter(debugHandler, healthHandler, http.RouterConfig{
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	return &App{
		Router:     router,
		Watcher:    w,
		closeStore: closeStore,
	}, nil
}

// Shutdown tears down the watcher (channel + cache) and the backing store.
func (a *App) Shutdown() {
	a.Watcher.Close()
	_ = a.closeStore()
}

// initializeStore selects the cache backend: a persistent bolt store when a
// path is configured, an in-memory store otherwise.
func initializeStore(cfg config.CacheConfig) (cache.Store, func() error, error) {
	if cfg.Path == "" {
		return cache.NewMemoryStore(), func() error { return nil }, nil
	}
	store, err := cache.OpenBolt(cfg.Path, cache.BoltOptions{})
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}
