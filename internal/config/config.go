package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	JWTExpiry   time.Duration

	Logger LoggerConfig

	PresenceInterval         time.Duration
	DeviceScanInterval       time.Duration
	DiscoveryRefreshInterval time.Duration
	NearbyWindow             time.Duration
	UnconnectedWindow        time.Duration

	ScanRateLimit float64
	ScanRateBurst int
}

type LoggerConfig struct {
	Level       string
	Encoding    string
	Development bool
}

func LoadConfig() (*Config, error) {
	expiry, err := getDuration("JWT_EXPIRY", "24h")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTExpiry:   expiry,
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Encoding:    getEnv("LOG_ENCODING", "json"),
			Development: getEnv("LOG_DEVELOPMENT", "false") == "true",
		},
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"PRESENCE_INTERVAL", "30s", &cfg.PresenceInterval},
		{"DEVICE_SCAN_INTERVAL", "60s", &cfg.DeviceScanInterval},
		{"DISCOVERY_REFRESH_INTERVAL", "15s", &cfg.DiscoveryRefreshInterval},
		{"NEARBY_WINDOW", "15m", &cfg.NearbyWindow},
		{"UNCONNECTED_WINDOW", "24h", &cfg.UnconnectedWindow},
	}
	for _, d := range durations {
		v, err := getDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	cfg.ScanRateLimit, err = strconv.ParseFloat(getEnv("SCAN_RATE_LIMIT", "1"), 64)
	if err != nil {
		return nil, errors.New("invalid SCAN_RATE_LIMIT format")
	}
	cfg.ScanRateBurst, err = strconv.Atoi(getEnv("SCAN_RATE_BURST", "3"))
	if err != nil {
		return nil, errors.New("invalid SCAN_RATE_BURST format")
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s format", key)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
