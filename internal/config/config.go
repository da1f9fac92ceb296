package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all application settings
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Nats      NatsConfig
	WebSocket WebSocketConfig
	Wheel     WheelConfig
	Checkin   CheckinConfig
	CORS      CORSConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
	// Authoritative marks the single instance allowed to run spins.
	// Other instances only serve reads and fan out events.
	Authoritative bool
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string `mapstructure:"migrations_path"`
}

// RedisConfig holds Redis connection settings.
// Supported modes: single, sentinel, cluster.
type RedisConfig struct {
	// Mode is "single", "sentinel" or "cluster". Defaults to "single".
	Mode string `mapstructure:"mode"`

	// Addrs lists host:port pairs. In single mode the first one is used.
	Addrs []string `mapstructure:"addrs"`

	// Addr is used in single mode when Addrs is empty.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName is the sentinel master name
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"` // ms
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"` // ms
}

// NatsConfig holds NATS connection settings, used when the cluster
// provider is "nats"
type NatsConfig struct {
	URL             string `mapstructure:"url"`
	Name            string `mapstructure:"name"`
	MaxReconnects   int    `mapstructure:"max_reconnects"`
	ReconnectWaitMs int    `mapstructure:"reconnect_wait_ms"`
}

// WebSocketConfig holds WebSocket subsystem settings
type WebSocketConfig struct {
	Buffers BuffersConfig
	Ping    PingConfig
	Cluster ClusterConfig
	Limits  LimitsConfig
}

// BuffersConfig holds channel buffer sizes
type BuffersConfig struct {
	ClientSendBuffer int `mapstructure:"client_send_buffer"`
	BroadcastBuffer  int `mapstructure:"broadcast_buffer"`
}

// PingConfig holds keepalive settings in seconds
type PingConfig struct {
	Interval int
	Timeout  int
}

// ClusterConfig holds event fan-out settings
type ClusterConfig struct {
	Enabled          bool
	Provider         string // "redis" or "nats"
	InstanceID       string `mapstructure:"instance_id"`
	BroadcastChannel string `mapstructure:"broadcast_channel"`
}

// LimitsConfig holds connection limits
type LimitsConfig struct {
	MaxMessageSize int `mapstructure:"max_message_size"`
	WriteWait      int `mapstructure:"write_wait"`
	PongWait       int `mapstructure:"pong_wait"`
}

// WheelConfig holds spin timing and randomness settings
type WheelConfig struct {
	CountdownSeconds int `mapstructure:"countdown_seconds"`
	CountdownGraceMs int `mapstructure:"countdown_grace_ms"`
	SpinDurationMs   int `mapstructure:"spin_duration_ms"`
	FrameIntervalMs  int `mapstructure:"frame_interval_ms"`
	MinFullTurns     int `mapstructure:"min_full_turns"`
	MaxFullTurns     int `mapstructure:"max_full_turns"`
	MinActive        int `mapstructure:"min_active"`
}

// CheckinConfig holds check-in rate limits
type CheckinConfig struct {
	RateLimit     int `mapstructure:"rate_limit"`
	RateWindowSec int `mapstructure:"rate_window_sec"`
}

// CORSConfig holds allowed browser origins for HTTP and WebSocket
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Pretty bool
}

// PostgresConnectionString builds the PostgreSQL DSN
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// PostgresURL builds the URL form of the DSN expected by golang-migrate
func (d *DatabaseConfig) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// CountdownGrace returns the grace pause as a duration
func (w *WheelConfig) CountdownGrace() time.Duration {
	return time.Duration(w.CountdownGraceMs) * time.Millisecond
}

// SpinDuration returns the animation length as a duration
func (w *WheelConfig) SpinDuration() time.Duration {
	return time.Duration(w.SpinDurationMs) * time.Millisecond
}

// FrameInterval returns the frame period as a duration
func (w *WheelConfig) FrameInterval() time.Duration {
	return time.Duration(w.FrameIntervalMs) * time.Millisecond
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.readtimeout", 15)
	vip.SetDefault("server.writetimeout", 15)
	vip.SetDefault("server.authoritative", true)

	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("database.migrations_path", "migrations")

	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("redis.addr", "localhost:6379")

	vip.SetDefault("nats.url", "nats://localhost:4222")
	vip.SetDefault("nats.name", "lucky-wheel")
	vip.SetDefault("nats.max_reconnects", 10)
	vip.SetDefault("nats.reconnect_wait_ms", 2000)

	vip.SetDefault("websocket.buffers.client_send_buffer", 128)
	vip.SetDefault("websocket.buffers.broadcast_buffer", 256)
	vip.SetDefault("websocket.ping.interval", 27)
	vip.SetDefault("websocket.ping.timeout", 30)
	vip.SetDefault("websocket.cluster.enabled", false)
	vip.SetDefault("websocket.cluster.provider", "redis")
	vip.SetDefault("websocket.cluster.broadcast_channel", "wheel:events")
	vip.SetDefault("websocket.limits.max_message_size", 4096)
	vip.SetDefault("websocket.limits.write_wait", 10)
	vip.SetDefault("websocket.limits.pong_wait", 30)

	vip.SetDefault("wheel.countdown_seconds", 5)
	vip.SetDefault("wheel.countdown_grace_ms", 500)
	vip.SetDefault("wheel.spin_duration_ms", 5000)
	vip.SetDefault("wheel.frame_interval_ms", 16)
	vip.SetDefault("wheel.min_full_turns", 5)
	vip.SetDefault("wheel.max_full_turns", 10)
	vip.SetDefault("wheel.min_active", 2)

	vip.SetDefault("checkin.rate_limit", 10)
	vip.SetDefault("checkin.rate_window_sec", 60)

	vip.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})

	vip.SetDefault("log.level", "info")
	vip.SetDefault("log.pretty", true)
}

// Load reads configuration from the given file and the environment.
// A missing file is not an error.
func Load(configPath string) (*Config, error) {
	vip := viper.New()
	setDefaults(vip)

	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")
	vip.BindEnv("database.migrations_path", "DATABASE_MIGRATIONS_PATH")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("nats.url", "NATS_URL")

	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("server.authoritative", "SERVER_AUTHORITATIVE")

	vip.BindEnv("websocket.cluster.enabled", "WEBSOCKET_CLUSTER_ENABLED")
	vip.BindEnv("websocket.cluster.provider", "WEBSOCKET_CLUSTER_PROVIDER")
	vip.BindEnv("websocket.cluster.instance_id", "WEBSOCKET_CLUSTER_INSTANCE_ID")

	vip.BindEnv("cors.allowed_origins", "CORS_ALLOWED_ORIGINS")

	vip.BindEnv("log.level", "LOG_LEVEL")
	vip.BindEnv("log.pretty", "LOG_PRETTY")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
				log.Warn().Str("path", configPath).Msg("Config file not found, using environment and defaults")
			} else {
				log.Warn().Err(err).Str("path", configPath).Msg("Failed to read config file")
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Comma-separated env values arrive as a single element
	cfg.CORS.AllowedOrigins = splitList(cfg.CORS.AllowedOrigins)
	cfg.Redis.Addrs = splitList(cfg.Redis.Addrs)

	if os.Getenv("GIN_MODE") != "release" {
		log.Debug().
			Str("db_host", cfg.Database.Host).
			Str("db_name", cfg.Database.DBName).
			Str("redis_mode", cfg.Redis.Mode).
			Str("redis_addr", cfg.Redis.Addr).
			Str("server_port", cfg.Server.Port).
			Bool("authoritative", cfg.Server.Authoritative).
			Bool("cluster_enabled", cfg.WebSocket.Cluster.Enabled).
			Str("cluster_provider", cfg.WebSocket.Cluster.Provider).
			Msg("Configuration loaded")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings and value ranges
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER)")
	}
	if c.WebSocket.Cluster.Enabled {
		switch c.WebSocket.Cluster.Provider {
		case "redis", "nats":
		default:
			return fmt.Errorf("unknown websocket cluster provider %q (expected redis or nats)", c.WebSocket.Cluster.Provider)
		}
	}
	if c.Wheel.CountdownSeconds < 0 || c.Wheel.SpinDurationMs <= 0 {
		return fmt.Errorf("wheel timings must be positive")
	}
	if c.Wheel.MinFullTurns < 1 || c.Wheel.MaxFullTurns < c.Wheel.MinFullTurns {
		return fmt.Errorf("wheel full turns range [%d,%d) is invalid", c.Wheel.MinFullTurns, c.Wheel.MaxFullTurns)
	}
	if c.Wheel.MinActive < 2 {
		return fmt.Errorf("wheel.min_active must be at least 2")
	}
	return nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
