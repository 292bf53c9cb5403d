// Package config builds the runtime configuration from the environment.
// The six core variables are required at startup; the binary refuses to boot
// without them.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries everything cmd/server needs to wire the service together.
type Config struct {
	DBPath    string
	RedisHost string
	RedisPort string
	RedisDB   int
	Host      string
	Port      string

	// Optional knobs.
	ModelPath     string        // predictor centroid model; empty disables prediction
	SweepInterval time.Duration // stale-incident sweeper period
}

// FromEnv reads the configuration from the process environment. All six core
// variables are required; MODEL_PATH and SWEEP_INTERVAL are optional.
func FromEnv() (*Config, error) {
	cfg := &Config{
		ModelPath:     os.Getenv("MODEL_PATH"),
		SweepInterval: time.Minute,
	}

	var err error
	if cfg.DBPath, err = required("DB_PATH"); err != nil {
		return nil, err
	}
	if cfg.RedisHost, err = required("REDIS_HOST"); err != nil {
		return nil, err
	}
	if cfg.RedisPort, err = required("REDIS_PORT"); err != nil {
		return nil, err
	}
	rdb, err := required("REDIS_DB")
	if err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = strconv.Atoi(rdb); err != nil {
		return nil, fmt.Errorf("REDIS_DB must be an integer: %v", err)
	}
	if cfg.Host, err = required("HOST"); err != nil {
		return nil, err
	}
	if cfg.Port, err = required("PORT"); err != nil {
		return nil, err
	}

	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SWEEP_INTERVAL: %v", err)
		}
		cfg.SweepInterval = d
	}
	return cfg, nil
}

// RedisAddr returns the host:port pair for the Redis client.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// ListenAddr returns the host:port pair the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return c.Host + ":" + c.Port
}

func required(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return v, nil
}
