// Package config provides configuration management for the dashboard client.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete application configuration.
type Config struct {
	Server  ServerConfig
	Channel ChannelConfig
	Cache   CacheConfig
	API     APIConfig
}

// ServerConfig holds the debug HTTP server configuration.
type ServerConfig struct {
	Port        string
	CORSOrigins []string
}

// ChannelConfig holds reconnecting channel configuration.
type ChannelConfig struct {
	SocketPath        string
	MaxReconnects     int
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	HeartbeatInterval time.Duration
}

// CacheConfig holds cache configuration.
type CacheConfig struct {
	Namespace string
	TTL       time.Duration
	HostTTL   time.Duration
	// Path is the bolt database file. Empty selects the in-memory store.
	Path string
}

// APIConfig holds dashboard backend API configuration.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
	// CircuitBreaker configuration
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration
}

// Load creates a Config from environment variables.
func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			CORSOrigins: parseCORSOrigins(os.Getenv("CORS_ORIGINS")),
		},
		Channel: ChannelConfig{
			SocketPath:        getEnv("CHANNEL_SOCKET_PATH", "/ws/dashboard/"),
			MaxReconnects:     getEnvInt("CHANNEL_MAX_RECONNECTS", 5),
			ReconnectDelay:    getEnvDuration("CHANNEL_RECONNECT_DELAY", time.Second),
			MaxReconnectDelay: getEnvDuration("CHANNEL_MAX_RECONNECT_DELAY", 30*time.Second),
			HeartbeatInterval: getEnvDuration("CHANNEL_HEARTBEAT_INTERVAL", 30*time.Second),
		},
		Cache: CacheConfig{
			Namespace: getEnv("CACHE_NAMESPACE", "dashwatch:"),
			TTL:       getEnvDuration("CACHE_TTL", 5*time.Minute),
			HostTTL:   getEnvDuration("CACHE_HOST_TTL", 3*time.Minute),
			Path:      getEnv("CACHE_PATH", ""),
		},
		API: APIConfig{
			BaseURL:                        getEnv("API_BASE_URL", "http://localhost:8000"),
			Timeout:                        getEnvDuration("API_TIMEOUT", 10*time.Second),
			CircuitBreakerFailureThreshold: getEnvInt("CIRCUIT_BREAKER_FAILURE_THRESHOLD", 5),
			CircuitBreakerSuccessThreshold: getEnvInt("CIRCUIT_BREAKER_SUCCESS_THRESHOLD", 2),
			CircuitBreakerTimeout:          getEnvDuration("CIRCUIT_BREAKER_TIMEOUT", 30*time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseCORSOrigins(s string) []string {
	// Default origins for local development
	defaults := []string{
		"http://localhost:3000",
		"http://127.0.0.1:3000",
	}
	if s == "" {
		return defaults
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts)+len(defaults))
	result = append(result, defaults...)
	for _, p := range parts {
		if origin := strings.TrimSpace(p); origin != "" {
			result = append(result, origin)
		}
	}
	return result
}
