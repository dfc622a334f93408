package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Overlay   OverlayConfig   `mapstructure:"overlay"`
	Feeder    FeederConfig    `mapstructure:"feeder"`
	Retention RetentionConfig `mapstructure:"retention"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
}

// OverlayConfig holds the defaults applied to new overlay sessions.
type OverlayConfig struct {
	Pane          string `mapstructure:"pane"`
	ClassName     string `mapstructure:"class_name"`
	ShowMarker    bool   `mapstructure:"show_marker"`
	ShowAccuracy  bool   `mapstructure:"show_accuracy"`
	DefaultZoom   int    `mapstructure:"default_zoom"`
	DefaultWidth  int    `mapstructure:"default_width"`
	DefaultHeight int    `mapstructure:"default_height"`
	MaxSessions   int    `mapstructure:"max_sessions"`
}

type FeederConfig struct {
	FeedsFile    string        `mapstructure:"feeds_file"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Concurrency  int           `mapstructure:"concurrency"`
}

type RetentionConfig struct {
	MaxAge   time.Duration `mapstructure:"max_age"`
	Schedule string        `mapstructure:"schedule"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "mylocation")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "mylocation")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("overlay.pane", "overlayLayer")
	v.SetDefault("overlay.class_name", "gmaps-overlay-mylocation-accuracy")
	v.SetDefault("overlay.show_marker", true)
	v.SetDefault("overlay.show_accuracy", true)
	v.SetDefault("overlay.default_zoom", 15)
	v.SetDefault("overlay.default_width", 800)
	v.SetDefault("overlay.default_height", 600)
	v.SetDefault("overlay.max_sessions", 1000)
	v.SetDefault("feeder.feeds_file", "feeds.json")
	v.SetDefault("feeder.poll_interval", "10s")
	v.SetDefault("feeder.concurrency", 4)
	v.SetDefault("retention.max_age", "720h")
	v.SetDefault("retention.schedule", "0 3 * * *")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: MYLOCATION_DATABASE_HOST → database.host
	v.SetEnvPrefix("MYLOCATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Overlay.DefaultZoom < 0 || c.Overlay.DefaultZoom > 22 {
		errs = append(errs, fmt.Sprintf("overlay.default_zoom must be 0-22, got %d", c.Overlay.DefaultZoom))
	}
	if c.Overlay.DefaultWidth <= 0 || c.Overlay.DefaultWidth > 4096 {
		errs = append(errs, fmt.Sprintf("overlay.default_width must be 1-4096, got %d", c.Overlay.DefaultWidth))
	}
	if c.Overlay.DefaultHeight <= 0 || c.Overlay.DefaultHeight > 4096 {
		errs = append(errs, fmt.Sprintf("overlay.default_height must be 1-4096, got %d", c.Overlay.DefaultHeight))
	}
	if c.Overlay.MaxSessions <= 0 {
		errs = append(errs, "overlay.max_sessions must be positive")
	}
	if c.Feeder.PollInterval <= 0 {
		errs = append(errs, "feeder.poll_interval must be positive")
	}
	if c.Feeder.Concurrency <= 0 {
		errs = append(errs, "feeder.concurrency must be positive")
	}
	if c.Retention.MaxAge <= 0 {
		errs = append(errs, "retention.max_age must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
