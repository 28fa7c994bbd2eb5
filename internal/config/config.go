package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "swapgrid/libs/config"
)

// Config defines fleet-engine configuration. Durations are carried as plain
// integers in the file/env surface and exposed as time.Duration accessors.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"FLEET_HTTP_PORT"`
	} `yaml:"http"`
	Database struct {
		DSN string `yaml:"dsn" env:"FLEET_POSTGRES_DSN"`
	} `yaml:"database"`
	Redis struct {
		Addr       string `yaml:"addr" env:"FLEET_REDIS_ADDR"`
		Password   string `yaml:"password" env:"FLEET_REDIS_PASSWORD"`
		TTLSeconds int    `yaml:"ttlSeconds" env:"FLEET_REDIS_TTL"`
	} `yaml:"redis"`
	Auth struct {
		Secret string `yaml:"secret" env:"FLEET_AUTH_SECRET"`
	} `yaml:"auth"`
	Engine struct {
		LowAvailabilityThreshold    float64 `yaml:"lowAvailabilityThreshold" env:"FLEET_LOW_AVAILABILITY_THRESHOLD"`
		LowAvailabilityHysteresis   float64 `yaml:"lowAvailabilityHysteresis" env:"FLEET_LOW_AVAILABILITY_HYSTERESIS"`
		MaintenanceBacklogThreshold int     `yaml:"maintenanceBacklogThreshold" env:"FLEET_MAINTENANCE_BACKLOG_THRESHOLD"`
		MaintenanceGraceMinutes     int     `yaml:"maintenanceGraceMinutes" env:"FLEET_MAINTENANCE_GRACE_MINUTES"`
		ReservationTimeoutSeconds   int     `yaml:"reservationTimeoutSeconds" env:"FLEET_RESERVATION_TIMEOUT_SECONDS"`
		LivenessWindowSeconds       int     `yaml:"livenessWindowSeconds" env:"FLEET_LIVENESS_WINDOW_SECONDS"`
		SubscriberQueueDepth        int     `yaml:"subscriberQueueDepth" env:"FLEET_SUBSCRIBER_QUEUE_DEPTH"`
	} `yaml:"engine"`
}

// Load reads configuration via the shared helper and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8080"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.TTLSeconds = 600
	cfg.Engine.LowAvailabilityThreshold = 0.15
	cfg.Engine.LowAvailabilityHysteresis = 0.25
	cfg.Engine.MaintenanceBacklogThreshold = 2
	cfg.Engine.MaintenanceGraceMinutes = 30
	cfg.Engine.ReservationTimeoutSeconds = 120
	cfg.Engine.LivenessWindowSeconds = 300
	cfg.Engine.SubscriberQueueDepth = 32

	if err := libconfig.Load(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database dsn required")
	}
	if strings.TrimSpace(cfg.Auth.Secret) == "" {
		return nil, errors.New("config: auth secret required")
	}
	if cfg.Engine.LowAvailabilityHysteresis < cfg.Engine.LowAvailabilityThreshold {
		return nil, errors.New("config: hysteresis must not be below the low-availability threshold")
	}
	return cfg, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// SnapshotTTL is how long mirrored snapshots live in Redis.
func (c *Config) SnapshotTTL() time.Duration {
	if c.Redis.TTLSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}

// MaintenanceGracePeriod returns the backlog grace period.
func (c *Config) MaintenanceGracePeriod() time.Duration {
	if c.Engine.MaintenanceGraceMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Engine.MaintenanceGraceMinutes) * time.Minute
}

// ReservationTimeout returns how long a reservation may sit unconfirmed.
func (c *Config) ReservationTimeout() time.Duration {
	if c.Engine.ReservationTimeoutSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.Engine.ReservationTimeoutSeconds) * time.Second
}

// LivenessWindow returns the window after which a silent station is offline.
func (c *Config) LivenessWindow() time.Duration {
	if c.Engine.LivenessWindowSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Engine.LivenessWindowSeconds) * time.Second
}
