// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full service configuration.
type Config struct {
	Server     Server
	Database   Database
	Redis      RedisConfig
	Kafka      Kafka
	Log        Log
	Trust      Trust
	OTP        OTP
	Matcher    Matcher
	Terminal   Terminal
	Attendance Attendance
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"KIOSK_ADDR"             envDefault:":8080"`
	AdminToken      string        `env:"KIOSK_ADMIN_TOKEN"`
	ShutdownTimeout time.Duration `env:"KIOSK_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Database configures Postgres. An empty URL selects in-memory stores.
type Database struct {
	URL             string        `env:"KIOSK_DATABASE_URL"`
	MaxOpenConns    int           `env:"KIOSK_DATABASE_MAX_OPEN_CONNS"    envDefault:"20"`
	MaxIdleConns    int           `env:"KIOSK_DATABASE_MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"KIOSK_DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
	Migrate         bool          `env:"KIOSK_DATABASE_MIGRATE"           envDefault:"true"`
}

// RedisConfig configures the optional Redis client.
type RedisConfig struct {
	URL          string        `env:"KIOSK_REDIS_URL"`
	PoolSize     int           `env:"KIOSK_REDIS_POOL_SIZE"      envDefault:"10"`
	MinIdleConns int           `env:"KIOSK_REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"KIOSK_REDIS_DIAL_TIMEOUT"   envDefault:"5s"`
	ReadTimeout  time.Duration `env:"KIOSK_REDIS_READ_TIMEOUT"   envDefault:"3s"`
	WriteTimeout time.Duration `env:"KIOSK_REDIS_WRITE_TIMEOUT"  envDefault:"3s"`
}

// Kafka configures the activity-log outbox relay. No brokers disables the relay.
type Kafka struct {
	Brokers           []string      `env:"KIOSK_KAFKA_BROKERS"            envSeparator:","`
	Topic             string        `env:"KIOSK_KAFKA_TOPIC"              envDefault:"kiosk.activity"`
	Partitions        int32         `env:"KIOSK_KAFKA_PARTITIONS"         envDefault:"3"`
	ReplicationFactor int16         `env:"KIOSK_KAFKA_REPLICATION_FACTOR" envDefault:"1"`
	RelayInterval     time.Duration `env:"KIOSK_KAFKA_RELAY_INTERVAL"     envDefault:"1s"`
	RelayBatchSize    int           `env:"KIOSK_KAFKA_RELAY_BATCH_SIZE"   envDefault:"100"`
}

// Log configures the structured logger.
type Log struct {
	Level  string `env:"KIOSK_LOG_LEVEL"  envDefault:"info"`
	Format string `env:"KIOSK_LOG_FORMAT" envDefault:"json"`
}

// Trust configures the device trust gate and PIN handling.
type Trust struct {
	AllowSelfRegistration bool          `env:"KIOSK_ALLOW_SELF_REGISTRATION" envDefault:"true"`
	PinSigningKey         string        `env:"KIOSK_PIN_SIGNING_KEY"`
	PinLockoutThreshold   int           `env:"KIOSK_PIN_LOCKOUT_THRESHOLD"   envDefault:"5"`
	PinLockoutWindow      time.Duration `env:"KIOSK_PIN_LOCKOUT_WINDOW"      envDefault:"15m"`
	PinLockoutDuration    time.Duration `env:"KIOSK_PIN_LOCKOUT_DURATION"    envDefault:"15m"`
}

// OTP configures remote device registration.
type OTP struct {
	Window       time.Duration `env:"KIOSK_OTP_WINDOW"        envDefault:"10m"`
	PollInterval time.Duration `env:"KIOSK_OTP_POLL_INTERVAL" envDefault:"3s"`
	MaxPolls     int           `env:"KIOSK_OTP_MAX_POLLS"     envDefault:"100"`
}

// Matcher configures the biometric retry loop.
type Matcher struct {
	MaxAttempts int           `env:"KIOSK_MATCH_MAX_ATTEMPTS" envDefault:"5"`
	Delay       time.Duration `env:"KIOSK_MATCH_DELAY"        envDefault:"1s"`
	Threshold   float64       `env:"KIOSK_MATCH_THRESHOLD"    envDefault:"0.6"`
	Dimensions  int           `env:"KIOSK_EMBEDDING_DIMENSIONS" envDefault:"128"`
}

// Terminal configures how long result screens stay up before resetting to idle.
type Terminal struct {
	SuccessDisplay time.Duration `env:"KIOSK_SUCCESS_DISPLAY" envDefault:"3s"`
	ErrorDisplay   time.Duration `env:"KIOSK_ERROR_DISPLAY"   envDefault:"5s"`
	LockTTL        time.Duration `env:"KIOSK_TERMINAL_LOCK_TTL" envDefault:"2m"`
}

// Attendance configures the organization's civil time.
type Attendance struct {
	Timezone string `env:"KIOSK_TIMEZONE" envDefault:"UTC"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot run.
func (c Config) Validate() error {
	var errs []error
	if c.Trust.PinSigningKey == "" {
		errs = append(errs, errors.New("KIOSK_PIN_SIGNING_KEY is required"))
	} else if len(c.Trust.PinSigningKey) < 32 {
		errs = append(errs, errors.New("KIOSK_PIN_SIGNING_KEY must be at least 32 bytes"))
	}
	if _, err := time.LoadLocation(c.Attendance.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("KIOSK_TIMEZONE: %w", err))
	}
	if c.Matcher.MaxAttempts <= 0 {
		errs = append(errs, errors.New("KIOSK_MATCH_MAX_ATTEMPTS must be positive"))
	}
	if c.Matcher.Dimensions <= 0 {
		errs = append(errs, errors.New("KIOSK_EMBEDDING_DIMENSIONS must be positive"))
	}
	if c.Matcher.Threshold <= 0 {
		errs = append(errs, errors.New("KIOSK_MATCH_THRESHOLD must be positive"))
	}
	if c.OTP.MaxPolls <= 0 || c.OTP.PollInterval <= 0 {
		errs = append(errs, errors.New("KIOSK_OTP_POLL_INTERVAL and KIOSK_OTP_MAX_POLLS must be positive"))
	}
	if c.Terminal.ErrorDisplay < c.Terminal.SuccessDisplay {
		errs = append(errs, errors.New("KIOSK_ERROR_DISPLAY must not be shorter than KIOSK_SUCCESS_DISPLAY"))
	}
	return errors.Join(errs...)
}

// Location returns the organization's time zone. Validate guarantees it loads.
func (a Attendance) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
