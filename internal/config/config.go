package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Scraper  ScraperConfig
}

type ServerConfig struct {
	Port int
}

// StoreConfig selects the property store. The memory backend is for local
// development; it disables the outbox relay since events require Postgres.
type StoreConfig struct {
	Backend      string
	SnapshotFile string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ScraperConfig struct {
	TimeoutSeconds int
	DelayMinMillis int
	DelayMaxMillis int
	MaxProperties  int
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("PORT", 8086),
		},
		Store: StoreConfig{
			Backend:      getEnv("STORE_BACKEND", StoreBackendPostgres),
			SnapshotFile: getEnv("STORE_SNAPSHOT_FILE", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "caribvillas"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 20)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Scraper: ScraperConfig{
			TimeoutSeconds: getEnvInt("SCRAPER_TIMEOUT", 30),
			DelayMinMillis: getEnvInt("SCRAPER_DELAY_MIN_MS", 500),
			DelayMaxMillis: getEnvInt("SCRAPER_DELAY_MAX_MS", 1500),
			MaxProperties:  getEnvInt("SCRAPER_MAX_PROPERTIES", 50),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Store.Backend {
	case StoreBackendPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
	case StoreBackendMemory:
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}

	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper timeout must be positive")
	}
	if c.Scraper.DelayMinMillis < 0 || c.Scraper.DelayMaxMillis < c.Scraper.DelayMinMillis {
		return fmt.Errorf("invalid scraper delay range: %d-%d", c.Scraper.DelayMinMillis, c.Scraper.DelayMaxMillis)
	}
	if c.Scraper.MaxProperties <= 0 {
		return fmt.Errorf("scraper max properties must be positive")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
