package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Queue      QueueConfig
	EventStore EventStoreConfig
	Registry   RegistryConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

type AuthConfig struct {
	// JWTSecret verifies staff tokens issued by the clinic's identity
	// provider. Tokens are never issued here.
	JWTSecret string
}

// QueueConfig holds the tunables of the queue engine.
type QueueConfig struct {
	// StaleAfter is the age past which an unserved waiting visit is
	// considered abandoned and re-check-in is permitted.
	StaleAfter time.Duration
	// GuestSessionTTL is the hard expiry of a guest login.
	GuestSessionTTL time.Duration
	// RateLimitRPS and RateLimitBurst bound unauthenticated intake
	// traffic per client IP.
	RateLimitRPS   int
	RateLimitBurst int
}

// EventStoreConfig holds connection settings for the optional
// visit-lifecycle audit stream.
type EventStoreConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
}

// RegistryConfig selects the student directory backend.
type RegistryConfig struct {
	// Backend: "postgres" (default) or "mssql" for a legacy school
	// information system view.
	Backend  string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "clinic"),
			Password: getEnv("DB_PASSWORD", "clinic"),
			Database: getEnv("DB_NAME", "clinic"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
		},
		Queue: QueueConfig{
			StaleAfter:      time.Duration(getEnvInt("VISIT_STALE_AFTER_MINUTES", 60)) * time.Minute,
			GuestSessionTTL: time.Duration(getEnvInt("GUEST_SESSION_TTL_SECONDS", 120)) * time.Second,
			RateLimitRPS:    getEnvInt("CHECKIN_RATE_RPS", 5),
			RateLimitBurst:  getEnvInt("CHECKIN_RATE_BURST", 10),
		},
		EventStore: EventStoreConfig{
			Enabled:  getEnvBool("EVENTSTORE_ENABLED", false),
			Host:     getEnv("EVENTSTORE_HOST", "localhost"),
			Port:     getEnvInt("EVENTSTORE_PORT", 2113),
			Insecure: getEnvBool("EVENTSTORE_INSECURE", true),
			Username: getEnv("EVENTSTORE_USERNAME", ""),
			Password: getEnv("EVENTSTORE_PASSWORD", ""),
		},
		Registry: RegistryConfig{
			Backend:  getEnv("REGISTRY_BACKEND", "postgres"),
			Host:     getEnv("REGISTRY_DB_HOST", "localhost"),
			Port:     getEnvInt("REGISTRY_DB_PORT", 1433),
			User:     getEnv("REGISTRY_DB_USER", ""),
			Password: getEnv("REGISTRY_DB_PASSWORD", ""),
			Database: getEnv("REGISTRY_DB_NAME", "school"),
			SSLMode:  getEnv("REGISTRY_DB_SSLMODE", "disable"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
